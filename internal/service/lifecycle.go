package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/veritasnet/veritas/internal/domain"
	"github.com/veritasnet/veritas/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrClaimNotFound     = errors.New("claim not found")
	ErrClaimTextEmpty    = errors.New("claim text is required")
	ErrSubmitterMissing  = errors.New("submitter_id is required")
	ErrAllSignalsFailed  = errors.New("all signal analyzers failed")
	ErrNoSignals         = errors.New("no signal results stored for claim")
	ErrAlreadyResolved   = errors.New("claim already resolved")
	ErrClaimNotEvaluated = errors.New("claim has not been evaluated")
)

const defaultSignalTimeout = 30 * time.Second

// SignalSelector picks which analyzers run for a claim. The policy is
// external to the lifecycle; the default runs everything except media
// forensics on media-free claims.
type SignalSelector func(claim *domain.Claim, sources []domain.SignalSource) []domain.SignalSource

func DefaultSignalSelector(claim *domain.Claim, sources []domain.SignalSource) []domain.SignalSource {
	selected := make([]domain.SignalSource, 0, len(sources))
	for _, src := range sources {
		if src.Name() == domain.SignalMediaForensics && !claim.HasMedia() {
			continue
		}
		selected = append(selected, src)
	}
	return selected
}

// LifecycleService drives a claim through intake, signal collection,
// aggregation, routing, optional voting and terminal resolution. Claims are
// processed independently; phases within one claim run strictly in order.
type LifecycleService struct {
	claimStore  domain.ClaimStore
	signalStore domain.SignalResultStore
	aggregator  *Aggregator
	sources     []domain.SignalSource
	selector    SignalSelector
	router      domain.RoutingDecider
	ledger      *LedgerService
	voting      *VotingService
	events      domain.ChainEventStore
	logger      *zap.Logger

	publisher     domain.Publisher
	embedder      domain.EmbeddingClient
	notifications domain.NotificationStore

	signalTimeout time.Duration
}

func NewLifecycleService(
	cs domain.ClaimStore,
	ss domain.SignalResultStore,
	aggregator *Aggregator,
	sources []domain.SignalSource,
	router domain.RoutingDecider,
	ledger *LedgerService,
	voting *VotingService,
	es domain.ChainEventStore,
	logger *zap.Logger,
) *LifecycleService {
	return &LifecycleService{
		claimStore:    cs,
		signalStore:   ss,
		aggregator:    aggregator,
		sources:       sources,
		selector:      DefaultSignalSelector,
		router:        router,
		ledger:        ledger,
		voting:        voting,
		events:        es,
		logger:        logger,
		signalTimeout: defaultSignalTimeout,
	}
}

func (s *LifecycleService) SetPublisher(p domain.Publisher)                  { s.publisher = p }
func (s *LifecycleService) SetEmbeddingClient(ec domain.EmbeddingClient)     { s.embedder = ec }
func (s *LifecycleService) SetNotificationStore(ns domain.NotificationStore) { s.notifications = ns }
func (s *LifecycleService) SetSignalSelector(sel SignalSelector)             { s.selector = sel }
func (s *LifecycleService) SetSignalTimeout(d time.Duration)                 { s.signalTimeout = d }

// Intake creates the claim record in pending_ai. A fresh identifier is
// generated per submission; semantically identical claims are not
// de-duplicated here.
func (s *LifecycleService) Intake(ctx context.Context, claim *domain.Claim) error {
	if claim.NormalizedText == "" {
		return ErrClaimTextEmpty
	}
	if claim.SubmitterID == uuid.Nil {
		return ErrSubmitterMissing
	}
	if claim.Type == "" {
		claim.Type = domain.ClaimTypeText
	}
	claim.Status = domain.ClaimStatusPendingAI

	if err := s.claimStore.Create(ctx, claim); err != nil {
		return err
	}

	// Embedding is best effort: similar-claims lookup won't find the claim,
	// but evaluation proceeds regardless.
	if s.embedder != nil {
		if emb, err := s.embedder.Embed(ctx, claim.NormalizedText); err != nil {
			s.logger.Warn("claim embedding failed", zap.String("claim_id", claim.ID.String()), zap.Error(err))
		} else if err := s.claimStore.SetEmbedding(ctx, claim.ID, emb); err != nil {
			s.logger.Warn("failed to store claim embedding", zap.String("claim_id", claim.ID.String()), zap.Error(err))
		} else {
			claim.Embedding = emb
		}
	}

	s.appendEvent(ctx, claim.ID, domain.EventClaimRegistered, claim.NormalizedText)
	s.logger.Info("claim registered",
		zap.String("claim_id", claim.ID.String()),
		zap.String("type", string(claim.Type)))
	return nil
}

// Process runs the remaining phases for a claim in pending_ai: collection,
// aggregation, routing and, unless routed to a vote, resolution.
func (s *LifecycleService) Process(ctx context.Context, claimID uuid.UUID) error {
	claim, err := s.GetClaim(ctx, claimID)
	if err != nil {
		return err
	}

	if err := s.CollectSignals(ctx, claim); err != nil {
		return err
	}
	agg, err := s.Aggregate(ctx, claim)
	if err != nil {
		return err
	}
	return s.Route(ctx, claim, agg)
}

func (s *LifecycleService) GetClaim(ctx context.Context, id uuid.UUID) (*domain.Claim, error) {
	claim, err := s.claimStore.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrClaimNotFound
		}
		return nil, err
	}
	return claim, nil
}

// CollectSignals fans out to the selected analyzers concurrently. Each call
// carries its own timeout and fails independently; every successful result
// is persisted as it completes, and sibling failures never roll back stored
// results. At least one success is required to proceed — a claim with zero
// usable signals stays in pending_ai rather than getting a fabricated
// verdict.
func (s *LifecycleService) CollectSignals(ctx context.Context, claim *domain.Claim) error {
	selected := s.selector(claim, s.sources)
	if len(selected) == 0 {
		return ErrAllSignalsFailed
	}

	var (
		g         errgroup.Group
		successes = make(chan struct{}, len(selected))
	)
	for _, src := range selected {
		src := src
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, s.signalTimeout)
			defer cancel()

			out, err := src.Evaluate(callCtx, claim)
			if err != nil {
				s.logger.Warn("signal analyzer failed",
					zap.String("claim_id", claim.ID.String()),
					zap.String("signal", string(src.Name())),
					zap.Error(err))
				return nil
			}

			result := &domain.SignalResult{
				ClaimID:    claim.ID,
				SignalName: src.Name(),
				Verdict:    domain.NormalizeVerdict(string(out.Verdict)),
				Confidence: sanitizeConfidence(out.Confidence),
				Flags:      out.Flags,
				RawResult:  out.RawResult,
			}
			if err := s.signalStore.Create(ctx, result); err != nil {
				s.logger.Error("failed to persist signal result",
					zap.String("claim_id", claim.ID.String()),
					zap.String("signal", string(src.Name())),
					zap.Error(err))
				return nil
			}
			successes <- struct{}{}
			return nil
		})
	}
	_ = g.Wait()
	close(successes)

	succeeded := len(successes)
	if succeeded == 0 {
		return ErrAllSignalsFailed
	}

	if err := s.claimStore.UpdateStatus(ctx, claim.ID, domain.ClaimStatusAIEvaluated); err != nil {
		return err
	}
	claim.Status = domain.ClaimStatusAIEvaluated

	s.logger.Info("signals collected",
		zap.String("claim_id", claim.ID.String()),
		zap.Int("invoked", len(selected)),
		zap.Int("succeeded", succeeded))
	return nil
}

// Aggregate feeds every stored signal into the aggregator and records the
// AI verdict on the claim. Pure given phase 2 produced at least one signal.
func (s *LifecycleService) Aggregate(ctx context.Context, claim *domain.Claim) (*domain.AggregationResult, error) {
	signals, err := s.signalStore.GetByClaimID(ctx, claim.ID)
	if err != nil {
		return nil, err
	}
	if len(signals) == 0 {
		return nil, ErrNoSignals
	}

	agg := s.aggregator.Aggregate(signals)

	flags := collectFlags(signals)
	if err := s.claimStore.SetAIResult(ctx, claim.ID, agg.Verdict, agg.Confidence, flags, agg.Explanation); err != nil {
		return nil, err
	}
	claim.AIVerdict = &agg.Verdict
	claim.AIConfidence = &agg.Confidence
	claim.AIFlags = flags

	s.logger.Info("claim aggregated",
		zap.String("claim_id", claim.ID.String()),
		zap.String("verdict", string(agg.Verdict)),
		zap.Float64("score", agg.OverallScore),
		zap.Float64("confidence", agg.Confidence))
	return agg, nil
}

func collectFlags(signals []domain.SignalResult) []string {
	seen := make(map[string]bool)
	var flags []string
	for _, sig := range signals {
		for _, f := range sig.Flags {
			if !seen[f] {
				seen[f] = true
				flags = append(flags, f)
			}
		}
	}
	return flags
}

// Route consults the routing collaborator and acts on its decision:
// ai_only and defer_archived resolve immediately with the AI verdict;
// community_vote opens an arbitration session.
func (s *LifecycleService) Route(ctx context.Context, claim *domain.Claim, agg *domain.AggregationResult) error {
	decision, err := s.router.Decide(ctx, claim, agg)
	if err != nil {
		return err
	}

	s.logger.Info("claim routed",
		zap.String("claim_id", claim.ID.String()),
		zap.String("route", string(decision.Route)),
		zap.String("reason", decision.Reason))

	switch decision.Route {
	case domain.RouteCommunityVote:
		if _, err := s.voting.OpenSession(ctx, claim.ID, decision); err != nil {
			return err
		}
		if err := s.claimStore.UpdateStatus(ctx, claim.ID, domain.ClaimStatusNeedsVote); err != nil {
			return err
		}
		claim.Status = domain.ClaimStatusNeedsVote
		s.notifySubmitter(ctx, claim.ID, "voting_opened", "")
		return nil
	case domain.RouteDeferArchived:
		// Resolution mechanics are identical to ai_only; the route only
		// differs in external bookkeeping.
		return s.Resolve(ctx, claim.ID, agg.Verdict, agg.Confidence)
	default:
		return s.Resolve(ctx, claim.ID, agg.Verdict, agg.Confidence)
	}
}

// Resolve is the single terminal write: final verdict, final confidence,
// resolved_at and status commit together, exactly once. Publishing and
// notifications run only after that write.
func (s *LifecycleService) Resolve(ctx context.Context, claimID uuid.UUID, verdict domain.Verdict, confidence float64) error {
	resolvedAt := time.Now().UTC()
	if err := s.claimStore.Resolve(ctx, claimID, verdict, confidence, resolvedAt); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Either the claim is gone or the guard found it already
			// resolved; distinguish for the caller.
			if claim, gerr := s.claimStore.GetByID(ctx, claimID); gerr == nil && claim.IsResolved() {
				return ErrAlreadyResolved
			}
			return ErrClaimNotFound
		}
		return err
	}

	s.appendEvent(ctx, claimID, domain.EventClaimResolved, string(verdict))
	if s.publisher != nil {
		s.publisher.PublishResolved(ctx, claimID, verdict, confidence)
	}
	s.notifySubmitter(ctx, claimID, "claim_resolved", verdict)

	s.logger.Info("claim resolved",
		zap.String("claim_id", claimID.String()),
		zap.String("verdict", string(verdict)),
		zap.Float64("confidence", confidence))
	return nil
}

// FinalizeVoting tallies an expired session, resolves the claim with the
// community verdict (or the AI fallback) and settles the staking market.
// Closing the session and the terminal writes are separate steps, so a
// transient failure in between is picked up by the next call rather than
// stranding the claim in needs_vote.
func (s *LifecycleService) FinalizeVoting(ctx context.Context, sessionID uuid.UUID) error {
	session, err := s.voting.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	tally, err := s.voting.Tally(ctx, sessionID)
	if errors.Is(err, ErrSessionNotOpen) {
		return s.resumeFinalization(ctx, session)
	}
	if err != nil {
		return err
	}
	return s.completeFinalization(ctx, session, tally)
}

// resumeFinalization picks up a session whose close committed but whose
// terminal writes did not. A fully finalized session reports
// ErrSessionNotOpen so callers can tell a no-op from a resumed recovery.
func (s *LifecycleService) resumeFinalization(ctx context.Context, session *domain.VotingSession) error {
	// Re-read: the snapshot predates the close that sent us here.
	session, err := s.voting.GetSession(ctx, session.ID)
	if err != nil {
		return err
	}

	claim, err := s.GetClaim(ctx, session.ClaimID)
	if err != nil {
		return err
	}

	if claim.IsResolved() {
		// Only the settlement can still be outstanding.
		err := s.ledger.SettleClaim(ctx, session.ClaimID)
		if errors.Is(err, ErrMarketAlreadySettled) {
			return ErrSessionNotOpen
		}
		if err != nil {
			return err
		}
		s.appendEvent(ctx, session.ClaimID, domain.EventRewardsDistributed, string(*claim.FinalVerdict))
		return nil
	}

	tally, err := s.voting.TallyClosed(ctx, session)
	if err != nil {
		return err
	}

	s.logger.Info("resuming interrupted finalization",
		zap.String("session_id", session.ID.String()),
		zap.String("claim_id", session.ClaimID.String()))
	return s.completeFinalization(ctx, session, tally)
}

func (s *LifecycleService) completeFinalization(ctx context.Context, session *domain.VotingSession, tally *domain.TallyResult) error {
	err := s.Resolve(ctx, session.ClaimID, tally.Verdict, tally.Confidence)
	if err != nil && !errors.Is(err, ErrAlreadyResolved) {
		return err
	}

	if err := s.ledger.SettleClaim(ctx, session.ClaimID); err != nil {
		// The claim is resolved; an unsettled market is retryable and must
		// not undo the terminal verdict.
		s.logger.Error("failed to settle market after resolution",
			zap.String("claim_id", session.ClaimID.String()),
			zap.Error(err))
		return err
	}
	s.appendEvent(ctx, session.ClaimID, domain.EventRewardsDistributed, string(tally.Verdict))
	return nil
}

func (s *LifecycleService) notifySubmitter(ctx context.Context, claimID uuid.UUID, event string, verdict domain.Verdict) {
	if s.notifications == nil {
		return
	}
	claim, err := s.claimStore.GetByID(ctx, claimID)
	if err != nil {
		return
	}
	fields := map[string]string{
		"event": event,
		"claim": claimID.String(),
	}
	if verdict != "" {
		fields["verdict"] = string(verdict)
	}
	payload, _ := json.Marshal(fields)
	id := claimID
	n := &domain.Notification{
		UserID:  claim.SubmitterID,
		ClaimID: &id,
		Status:  domain.NotifStatusPending,
		Payload: string(payload),
	}
	if err := s.notifications.Create(ctx, n); err != nil {
		s.logger.Warn("failed to create notification",
			zap.String("claim_id", claimID.String()),
			zap.String("event", event),
			zap.Error(err))
	}
}

func (s *LifecycleService) appendEvent(ctx context.Context, claimID uuid.UUID, typ domain.EventType, payload string) {
	if s.events == nil {
		return
	}
	id := claimID
	if err := s.events.Append(ctx, &domain.ChainEvent{ClaimID: &id, Type: typ, Payload: payload}); err != nil {
		s.logger.Warn("failed to append chain event",
			zap.String("claim_id", claimID.String()),
			zap.String("type", string(typ)),
			zap.Error(err))
	}
}
