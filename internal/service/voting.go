package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/veritasnet/veritas/internal/domain"
	"github.com/veritasnet/veritas/internal/store"
	"go.uber.org/zap"
)

var (
	ErrSessionNotFound    = errors.New("voting session not found")
	ErrSessionNotOpen     = errors.New("voting session is not open")
	ErrSessionAlreadyOpen = errors.New("claim already has an open voting session")
	ErrSessionStillOpen   = errors.New("voting window has not closed yet")
	ErrAlreadyVoted       = errors.New("voter already voted in this session")
	ErrInvalidChoice      = errors.New("invalid vote choice")
	ErrCannotStakeUnclear = errors.New("unclear votes cannot carry stake")
	ErrVotingWindowClosed = errors.New("voting window has closed")
)

const (
	DefaultVotingWindowSecs = 24 * 60 * 60
	DefaultMinVotesRequired = 5
)

// voteKey identifies one voter's slot in one session.
type voteKey struct {
	session uuid.UUID
	voter   uuid.UUID
}

// VotingService manages arbitration sessions and the whole-vote tally that
// determines a community verdict. Stake movement is delegated to the ledger.
type VotingService struct {
	votingStore domain.VotingStore
	claimStore  domain.ClaimStore
	ledger      *LedgerService
	events      domain.ChainEventStore
	logger      *zap.Logger

	voteLocks *keyedMutex[voteKey]

	now func() time.Time
}

func NewVotingService(vs domain.VotingStore, cs domain.ClaimStore, ledger *LedgerService, es domain.ChainEventStore, logger *zap.Logger) *VotingService {
	return &VotingService{
		votingStore: vs,
		claimStore:  cs,
		ledger:      ledger,
		events:      es,
		logger:      logger,
		voteLocks:   newKeyedMutex[voteKey](),
		now:         time.Now,
	}
}

// OpenSession opens the arbitration window and the staking market for a
// claim routed to community vote. At most one open session per claim.
func (s *VotingService) OpenSession(ctx context.Context, claimID uuid.UUID, decision *domain.RouteDecision) (*domain.VotingSession, error) {
	if _, err := s.votingStore.GetOpenSessionByClaim(ctx, claimID); err == nil {
		return nil, ErrSessionAlreadyOpen
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	windowSecs := decision.VotingWindowSecs
	if windowSecs <= 0 {
		windowSecs = DefaultVotingWindowSecs
	}
	minVotes := decision.MinVotesRequired
	if minVotes <= 0 {
		minVotes = DefaultMinVotesRequired
	}
	urgency := decision.Urgency
	if urgency == "" {
		urgency = domain.UrgencyNormal
	}

	// Market before session. A session without a market cannot accept stake
	// and blocks every retry behind ErrSessionAlreadyOpen, while an orphaned
	// market is harmless: the next attempt finds it already open and
	// proceeds to create the session.
	if _, err := s.ledger.OpenVoting(ctx, claimID); err != nil && !errors.Is(err, ErrMarketAlreadyOpen) {
		return nil, err
	}

	now := s.now().UTC()
	session := &domain.VotingSession{
		ClaimID:          claimID,
		RouteReason:      decision.Reason,
		Urgency:          urgency,
		VotingWindowSecs: windowSecs,
		MinVotesRequired: minVotes,
		Status:           domain.VotingStatusOpen,
		OpenedAt:         now,
		ClosesAt:         now.Add(time.Duration(windowSecs) * time.Second),
	}
	if err := s.votingStore.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info("voting session opened",
		zap.String("claim_id", claimID.String()),
		zap.String("session_id", session.ID.String()),
		zap.Int("window_secs", windowSecs),
		zap.Int("min_votes", minVotes))
	return session, nil
}

func (s *VotingService) GetSession(ctx context.Context, id uuid.UUID) (*domain.VotingSession, error) {
	session, err := s.votingStore.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return session, nil
}

// GetSessionByClaim returns the open voting session for a claim, if any.
func (s *VotingService) GetSessionByClaim(ctx context.Context, claimID uuid.UUID) (*domain.VotingSession, error) {
	session, err := s.votingStore.GetOpenSessionByClaim(ctx, claimID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return session, nil
}

// CastVote records one voter's choice and locks their stake. One vote per
// voter per session; re-voting is rejected. Unclear votes participate in the
// count but cannot carry stake, because the market only has two sides.
func (s *VotingService) CastVote(ctx context.Context, sessionID, voterID uuid.UUID, choice domain.Verdict, amount float64) (*domain.Vote, error) {
	if !domain.ValidVerdict(string(choice)) {
		return nil, ErrInvalidChoice
	}
	if choice == domain.VerdictUnclear && amount > 0 {
		return nil, ErrCannotStakeUnclear
	}
	if choice != domain.VerdictUnclear && amount <= 0 {
		return nil, ErrInvalidAmount
	}

	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsOpen() {
		return nil, ErrSessionNotOpen
	}
	if session.Expired(s.now().UTC()) {
		return nil, ErrVotingWindowClosed
	}

	// The duplicate check and the insert hold the same (session, voter)
	// lock, so two concurrent identical requests cannot both pass the check
	// and double-record.
	unlock := s.voteLocks.lock(voteKey{session: sessionID, voter: voterID})
	defer unlock()

	if _, err := s.votingStore.GetVote(ctx, sessionID, voterID); err == nil {
		return nil, ErrAlreadyVoted
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	support := choice == domain.VerdictTrue
	if amount > 0 {
		if err := s.ledger.Vote(ctx, voterID, session.ClaimID, support, amount); err != nil {
			return nil, err
		}
	}

	vote := &domain.Vote{
		SessionID:    sessionID,
		ClaimID:      session.ClaimID,
		VoterID:      voterID,
		Choice:       choice,
		StakedAmount: amount,
	}
	if err := s.votingStore.CreateVote(ctx, vote); err != nil {
		// Stake locked with no vote recorded would strand the funds until
		// settlement; back it out.
		if amount > 0 {
			if rerr := s.ledger.ReleaseStake(ctx, voterID, session.ClaimID, support, amount); rerr != nil {
				s.logger.Error("failed to release stake after vote insert failure",
					zap.String("session_id", sessionID.String()),
					zap.String("voter_id", voterID.String()),
					zap.Error(rerr))
			}
		}
		return nil, err
	}

	s.appendEvent(ctx, session.ClaimID, domain.EventVoteCast)

	s.logger.Debug("vote cast",
		zap.String("session_id", sessionID.String()),
		zap.String("voter_id", voterID.String()),
		zap.String("choice", string(choice)),
		zap.Float64("amount", amount))
	return vote, nil
}

// Tally closes the session and computes the community verdict. It must not
// run before the window closes and runs at most once: closing the session is
// the ownership claim, so a concurrent second tally loses the close and gets
// ErrSessionNotOpen.
//
// Participation below the session minimum skips the stake tally and falls
// back to the claim's AI verdict.
func (s *VotingService) Tally(ctx context.Context, sessionID uuid.UUID) (*domain.TallyResult, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsOpen() {
		return nil, ErrSessionNotOpen
	}

	now := s.now().UTC()
	if !session.Expired(now) {
		return nil, ErrSessionStillOpen
	}

	if err := s.votingStore.CloseSession(ctx, sessionID, now); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSessionNotOpen
		}
		return nil, err
	}

	return s.computeTally(ctx, session)
}

// TallyClosed recomputes the outcome of a session that is already closed.
// Finalization uses it to resume after a failure between the close and the
// claim's terminal write; the tally is a pure function of the recorded
// votes, so recomputing yields the same result the lost attempt saw.
func (s *VotingService) TallyClosed(ctx context.Context, session *domain.VotingSession) (*domain.TallyResult, error) {
	if session.IsOpen() {
		return nil, ErrSessionStillOpen
	}
	return s.computeTally(ctx, session)
}

func (s *VotingService) computeTally(ctx context.Context, session *domain.VotingSession) (*domain.TallyResult, error) {
	votes, err := s.votingStore.GetVotesBySession(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	if len(votes) < session.MinVotesRequired {
		return s.fallbackTally(ctx, session, len(votes))
	}

	result := tallyStakes(votes)
	s.logger.Info("session tallied",
		zap.String("session_id", session.ID.String()),
		zap.String("verdict", string(result.Verdict)),
		zap.Float64("confidence", result.Confidence),
		zap.Int("votes", result.VoteCount))
	return result, nil
}

func (s *VotingService) fallbackTally(ctx context.Context, session *domain.VotingSession, voteCount int) (*domain.TallyResult, error) {
	claim, err := s.claimStore.GetByID(ctx, session.ClaimID)
	if err != nil {
		return nil, err
	}

	verdict := domain.VerdictUnclear
	confidence := NeutralConfidence
	if claim.AIVerdict != nil {
		verdict = *claim.AIVerdict
	}
	if claim.AIConfidence != nil {
		confidence = *claim.AIConfidence
	}

	s.logger.Info("insufficient participation, falling back to AI verdict",
		zap.String("session_id", session.ID.String()),
		zap.Int("votes", voteCount),
		zap.Int("min_votes", session.MinVotesRequired))

	return &domain.TallyResult{
		Verdict:       verdict,
		Confidence:    confidence,
		StakeByChoice: map[domain.Verdict]float64{},
		VoteCount:     voteCount,
		FellBack:      true,
	}, nil
}

// tallyStakes picks the verdict with the largest staked amount. Ties never
// invent a winner: any tie involving the top stake resolves to unclear.
func tallyStakes(votes []domain.Vote) *domain.TallyResult {
	stakeByChoice := map[domain.Verdict]float64{
		domain.VerdictTrue:    0,
		domain.VerdictFalse:   0,
		domain.VerdictUnclear: 0,
	}
	var total float64
	for _, v := range votes {
		stakeByChoice[v.Choice] += v.StakedAmount
		total += v.StakedAmount
	}

	result := &domain.TallyResult{
		StakeByChoice: stakeByChoice,
		TotalStake:    total,
		VoteCount:     len(votes),
	}

	if total == 0 {
		result.Verdict = domain.VerdictUnclear
		result.Confidence = NeutralConfidence
		return result
	}

	winner := domain.VerdictUnclear
	best := stakeByChoice[domain.VerdictUnclear]
	tied := false
	for _, choice := range []domain.Verdict{domain.VerdictTrue, domain.VerdictFalse} {
		switch {
		case stakeByChoice[choice] > best:
			winner = choice
			best = stakeByChoice[choice]
			tied = false
		case stakeByChoice[choice] == best:
			tied = true
		}
	}
	if tied {
		result.Verdict = domain.VerdictUnclear
		result.Confidence = NeutralConfidence
		return result
	}

	result.Verdict = winner
	result.Confidence = stakeByChoice[winner] / total
	return result
}

func (s *VotingService) appendEvent(ctx context.Context, claimID uuid.UUID, typ domain.EventType) {
	if s.events == nil {
		return
	}
	id := claimID
	if err := s.events.Append(ctx, &domain.ChainEvent{ClaimID: &id, Type: typ}); err != nil {
		s.logger.Warn("failed to append chain event",
			zap.String("claim_id", claimID.String()),
			zap.String("type", string(typ)),
			zap.Error(err))
	}
}
