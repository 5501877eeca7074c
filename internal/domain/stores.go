package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type UserStore interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*User, error)
	AdjustReputation(ctx context.Context, id uuid.UUID, delta int) error
}

type ClaimStore interface {
	Create(ctx context.Context, c *Claim) error
	GetByID(ctx context.Context, id uuid.UUID) (*Claim, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status ClaimStatus) error
	SetAIResult(ctx context.Context, id uuid.UUID, verdict Verdict, confidence float64, flags []string, explanation string) error
	// Resolve commits the terminal write: final verdict, final confidence,
	// resolved_at and status=resolved together, and only if the claim is not
	// already resolved. Returns ErrNotFound when the guard fails.
	Resolve(ctx context.Context, id uuid.UUID, verdict Verdict, confidence float64, resolvedAt time.Time) error
	FindSimilar(ctx context.Context, embedding []float32, limit int) ([]ClaimWithScore, error)
	SetEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error
}

type SignalResultStore interface {
	Create(ctx context.Context, r *SignalResult) error
	GetByClaimID(ctx context.Context, claimID uuid.UUID) ([]SignalResult, error)
}

type VotingStore interface {
	CreateSession(ctx context.Context, s *VotingSession) error
	GetSession(ctx context.Context, id uuid.UUID) (*VotingSession, error)
	GetOpenSessionByClaim(ctx context.Context, claimID uuid.UUID) (*VotingSession, error)
	// CloseSession transitions open -> closed exactly once; ErrNotFound when
	// the session is already closed.
	CloseSession(ctx context.Context, id uuid.UUID, closedAt time.Time) error
	ListExpiredOpenSessions(ctx context.Context, now time.Time, limit int) ([]VotingSession, error)
	// ListClosedUnresolvedSessions returns closed sessions whose claims
	// still lack a terminal verdict, so an interrupted finalization can be
	// resumed.
	ListClosedUnresolvedSessions(ctx context.Context, limit int) ([]VotingSession, error)

	CreateVote(ctx context.Context, v *Vote) error
	GetVote(ctx context.Context, sessionID, voterID uuid.UUID) (*Vote, error)
	GetVotesBySession(ctx context.Context, sessionID uuid.UUID) ([]Vote, error)
}

type LedgerStore interface {
	GetAccount(ctx context.Context, voterID uuid.UUID) (*LedgerAccount, error)
	UpsertAccount(ctx context.Context, a *LedgerAccount) error

	CreateMarket(ctx context.Context, m *Market) error
	GetMarket(ctx context.Context, claimID uuid.UUID) (*Market, error)
	UpdateMarket(ctx context.Context, m *Market) error

	GetStake(ctx context.Context, claimID, voterID uuid.UUID) (*Stake, error)
	UpsertStake(ctx context.Context, s *Stake) error
}

type NotificationStore interface {
	Create(ctx context.Context, n *Notification) error
	ListPending(ctx context.Context, limit int) ([]Notification, error)
}

type ChainEventStore interface {
	Append(ctx context.Context, e *ChainEvent) error
	GetByClaimID(ctx context.Context, claimID uuid.UUID) ([]ChainEvent, error)
}

// SignalSource is one opaque analyzer. How a verdict is produced (language
// model, rule engine, human review) is the implementation's business; each
// call carries its own timeout and may fail independently.
type SignalSource interface {
	Name() SignalName
	Evaluate(ctx context.Context, claim *Claim) (*SignalOutput, error)
}

// RoutingDecider decides whether the AI verdict stands or the claim goes to
// a community vote.
type RoutingDecider interface {
	Decide(ctx context.Context, claim *Claim, agg *AggregationResult) (*RouteDecision, error)
}

// ReputationSink receives accuracy-based standing adjustments. Fire and
// forget: the ledger never rolls back on sink failure.
type ReputationSink interface {
	ApplyDelta(ctx context.Context, voterID uuid.UUID, delta int)
}

// Publisher receives the terminal verdict after the resolution write commits.
// Delivery and retry are the publisher's responsibility.
type Publisher interface {
	PublishResolved(ctx context.Context, claimID uuid.UUID, verdict Verdict, confidence float64)
}

type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
