package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veritasnet/veritas/internal/domain"
	"go.uber.org/zap"
)

type votingFixture struct {
	voting *VotingService
	ledger *LedgerService

	claims  *mockClaimStore
	votes   *mockVotingStore
	ledgerS *mockLedgerStore
	events  *mockEventStore

	now time.Time
}

func newVotingFixture(t *testing.T) *votingFixture {
	t.Helper()
	claims := newMockClaimStore()
	votes := newMockVotingStore()
	votes.claims = claims
	ledgerStore := newMockLedgerStore()
	events := newMockEventStore()

	ledger := NewLedgerService(ledgerStore, claims, zap.NewNop())
	f := &votingFixture{
		voting:  NewVotingService(votes, claims, ledger, events, zap.NewNop()),
		ledger:  ledger,
		claims:  claims,
		votes:   votes,
		ledgerS: ledgerStore,
		events:  events,
		now:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.voting.now = func() time.Time { return f.now }
	return f
}

func (f *votingFixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func (f *votingFixture) newClaim(t *testing.T) *domain.Claim {
	t.Helper()
	claim := &domain.Claim{
		SubmitterID:    uuid.New(),
		NormalizedText: "the bridge closed in 2019",
		Type:           domain.ClaimTypeText,
		Status:         domain.ClaimStatusAIEvaluated,
	}
	require.NoError(t, f.claims.Create(context.Background(), claim))
	return claim
}

func (f *votingFixture) openSession(t *testing.T, claimID uuid.UUID, windowSecs, minVotes int) *domain.VotingSession {
	t.Helper()
	session, err := f.voting.OpenSession(context.Background(), claimID, &domain.RouteDecision{
		Route:            domain.RouteCommunityVote,
		Reason:           "low confidence",
		VotingWindowSecs: windowSecs,
		MinVotesRequired: minVotes,
	})
	require.NoError(t, err)
	return session
}

func (f *votingFixture) fundVoter(t *testing.T, amount float64) uuid.UUID {
	t.Helper()
	voterID := uuid.New()
	_, err := f.ledger.Deposit(context.Background(), voterID, amount)
	require.NoError(t, err)
	return voterID
}

func TestOpenSessionAppliesDefaults(t *testing.T) {
	f := newVotingFixture(t)
	claim := f.newClaim(t)

	session, err := f.voting.OpenSession(context.Background(), claim.ID, &domain.RouteDecision{
		Route:  domain.RouteCommunityVote,
		Reason: "conflicting signals",
	})
	require.NoError(t, err)

	assert.Equal(t, DefaultVotingWindowSecs, session.VotingWindowSecs)
	assert.Equal(t, DefaultMinVotesRequired, session.MinVotesRequired)
	assert.Equal(t, domain.UrgencyNormal, session.Urgency)
	assert.Equal(t, domain.VotingStatusOpen, session.Status)
	assert.Equal(t, f.now, session.OpenedAt)
	assert.Equal(t, f.now.Add(24*time.Hour), session.ClosesAt)

	// The staking market opens with the session.
	market, err := f.ledger.GetMarket(context.Background(), claim.ID)
	require.NoError(t, err)
	assert.True(t, market.IsOpen)
}

func TestOpenSessionOnePerClaim(t *testing.T) {
	f := newVotingFixture(t)
	claim := f.newClaim(t)
	f.openSession(t, claim.ID, 3600, 3)

	_, err := f.voting.OpenSession(context.Background(), claim.ID, &domain.RouteDecision{
		Route: domain.RouteCommunityVote,
	})
	assert.ErrorIs(t, err, ErrSessionAlreadyOpen)
}

func TestCastVoteLocksStake(t *testing.T) {
	f := newVotingFixture(t)
	claim := f.newClaim(t)
	session := f.openSession(t, claim.ID, 3600, 3)
	voterID := f.fundVoter(t, 100)

	vote, err := f.voting.CastVote(context.Background(), session.ID, voterID, domain.VerdictTrue, 40)
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictTrue, vote.Choice)
	assert.Equal(t, 40.0, vote.StakedAmount)

	account, err := f.ledger.GetAccount(context.Background(), voterID)
	require.NoError(t, err)
	assert.Equal(t, 40.0, account.Locked)
	assert.Equal(t, 60.0, account.Available())
}

func TestCastVoteRejectsInvalidChoice(t *testing.T) {
	f := newVotingFixture(t)
	claim := f.newClaim(t)
	session := f.openSession(t, claim.ID, 3600, 3)

	_, err := f.voting.CastVote(context.Background(), session.ID, uuid.New(), domain.Verdict("maybe"), 10)
	assert.ErrorIs(t, err, ErrInvalidChoice)
}

func TestCastVoteUnclearCannotStake(t *testing.T) {
	f := newVotingFixture(t)
	claim := f.newClaim(t)
	session := f.openSession(t, claim.ID, 3600, 3)
	voterID := f.fundVoter(t, 100)

	_, err := f.voting.CastVote(context.Background(), session.ID, voterID, domain.VerdictUnclear, 10)
	assert.ErrorIs(t, err, ErrCannotStakeUnclear)

	// Zero stake is the only valid unclear vote.
	vote, err := f.voting.CastVote(context.Background(), session.ID, voterID, domain.VerdictUnclear, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, vote.StakedAmount)
}

func TestCastVoteRejectsRevote(t *testing.T) {
	f := newVotingFixture(t)
	claim := f.newClaim(t)
	session := f.openSession(t, claim.ID, 3600, 3)
	voterID := f.fundVoter(t, 100)

	_, err := f.voting.CastVote(context.Background(), session.ID, voterID, domain.VerdictTrue, 10)
	require.NoError(t, err)

	_, err = f.voting.CastVote(context.Background(), session.ID, voterID, domain.VerdictFalse, 10)
	assert.ErrorIs(t, err, ErrAlreadyVoted)

	// The first vote's stake is the only one locked.
	account, err := f.ledger.GetAccount(context.Background(), voterID)
	require.NoError(t, err)
	assert.Equal(t, 10.0, account.Locked)
}

func TestCastVoteAfterWindowRejected(t *testing.T) {
	f := newVotingFixture(t)
	claim := f.newClaim(t)
	session := f.openSession(t, claim.ID, 3600, 3)
	voterID := f.fundVoter(t, 100)

	f.advance(2 * time.Hour)

	_, err := f.voting.CastVote(context.Background(), session.ID, voterID, domain.VerdictTrue, 10)
	assert.ErrorIs(t, err, ErrVotingWindowClosed)
}

func TestCastVoteInsufficientFunds(t *testing.T) {
	f := newVotingFixture(t)
	claim := f.newClaim(t)
	session := f.openSession(t, claim.ID, 3600, 3)
	voterID := f.fundVoter(t, 5)

	_, err := f.voting.CastVote(context.Background(), session.ID, voterID, domain.VerdictTrue, 10)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	// Rejected votes leave no vote row behind.
	_, err = f.votes.GetVote(context.Background(), session.ID, voterID)
	assert.Error(t, err)
}

func TestTallyBeforeWindowRejected(t *testing.T) {
	f := newVotingFixture(t)
	claim := f.newClaim(t)
	session := f.openSession(t, claim.ID, 3600, 3)

	_, err := f.voting.Tally(context.Background(), session.ID)
	assert.ErrorIs(t, err, ErrSessionStillOpen)
}

func TestTallyRunsOnce(t *testing.T) {
	f := newVotingFixture(t)
	claim := f.newClaim(t)
	session := f.openSession(t, claim.ID, 3600, 1)
	voterID := f.fundVoter(t, 100)

	_, err := f.voting.CastVote(context.Background(), session.ID, voterID, domain.VerdictTrue, 50)
	require.NoError(t, err)

	f.advance(2 * time.Hour)

	_, err = f.voting.Tally(context.Background(), session.ID)
	require.NoError(t, err)

	_, err = f.voting.Tally(context.Background(), session.ID)
	assert.ErrorIs(t, err, ErrSessionNotOpen)
}

func TestTallyStakeMajorityWins(t *testing.T) {
	f := newVotingFixture(t)
	claim := f.newClaim(t)
	session := f.openSession(t, claim.ID, 3600, 2)

	a := f.fundVoter(t, 100)
	b := f.fundVoter(t, 100)
	c := f.fundVoter(t, 100)

	_, err := f.voting.CastVote(context.Background(), session.ID, a, domain.VerdictTrue, 60)
	require.NoError(t, err)
	_, err = f.voting.CastVote(context.Background(), session.ID, b, domain.VerdictTrue, 20)
	require.NoError(t, err)
	_, err = f.voting.CastVote(context.Background(), session.ID, c, domain.VerdictFalse, 20)
	require.NoError(t, err)

	f.advance(2 * time.Hour)

	result, err := f.voting.Tally(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictTrue, result.Verdict)
	assert.InDelta(t, 0.8, result.Confidence, 1e-9)
	assert.Equal(t, 100.0, result.TotalStake)
	assert.Equal(t, 3, result.VoteCount)
	assert.False(t, result.FellBack)
}

func TestTallyTieResolvesUnclear(t *testing.T) {
	f := newVotingFixture(t)
	claim := f.newClaim(t)
	session := f.openSession(t, claim.ID, 3600, 2)

	a := f.fundVoter(t, 100)
	b := f.fundVoter(t, 100)

	_, err := f.voting.CastVote(context.Background(), session.ID, a, domain.VerdictTrue, 50)
	require.NoError(t, err)
	_, err = f.voting.CastVote(context.Background(), session.ID, b, domain.VerdictFalse, 50)
	require.NoError(t, err)

	f.advance(2 * time.Hour)

	result, err := f.voting.Tally(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictUnclear, result.Verdict)
	assert.Equal(t, NeutralConfidence, result.Confidence)
}

func TestTallyAllUnclearZeroStake(t *testing.T) {
	f := newVotingFixture(t)
	claim := f.newClaim(t)
	session := f.openSession(t, claim.ID, 3600, 2)

	for i := 0; i < 3; i++ {
		_, err := f.voting.CastVote(context.Background(), session.ID, uuid.New(), domain.VerdictUnclear, 0)
		require.NoError(t, err)
	}

	f.advance(2 * time.Hour)

	result, err := f.voting.Tally(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictUnclear, result.Verdict)
	assert.Equal(t, NeutralConfidence, result.Confidence)
	assert.Equal(t, 0.0, result.TotalStake)
}

func TestTallyBelowMinimumFallsBackToAIVerdict(t *testing.T) {
	f := newVotingFixture(t)
	claim := f.newClaim(t)

	require.NoError(t, f.claims.SetAIResult(context.Background(), claim.ID, domain.VerdictFalse, 0.72, nil, ""))

	session := f.openSession(t, claim.ID, 3600, 5)

	a := f.fundVoter(t, 100)
	b := f.fundVoter(t, 100)
	_, err := f.voting.CastVote(context.Background(), session.ID, a, domain.VerdictTrue, 90)
	require.NoError(t, err)
	_, err = f.voting.CastVote(context.Background(), session.ID, b, domain.VerdictTrue, 90)
	require.NoError(t, err)

	f.advance(2 * time.Hour)

	// Two votes against a minimum of five: the stakes are ignored and the
	// AI verdict becomes the outcome.
	result, err := f.voting.Tally(context.Background(), session.ID)
	require.NoError(t, err)
	assert.True(t, result.FellBack)
	assert.Equal(t, domain.VerdictFalse, result.Verdict)
	assert.Equal(t, 0.72, result.Confidence)
	assert.Equal(t, 2, result.VoteCount)
}

func TestTallyFallbackWithoutAIVerdict(t *testing.T) {
	f := newVotingFixture(t)
	claim := f.newClaim(t)
	session := f.openSession(t, claim.ID, 3600, 5)

	f.advance(2 * time.Hour)

	result, err := f.voting.Tally(context.Background(), session.ID)
	require.NoError(t, err)
	assert.True(t, result.FellBack)
	assert.Equal(t, domain.VerdictUnclear, result.Verdict)
	assert.Equal(t, NeutralConfidence, result.Confidence)
}

func TestCastVoteConcurrentDuplicateRecordsOnce(t *testing.T) {
	f := newVotingFixture(t)
	claim := f.newClaim(t)
	session := f.openSession(t, claim.ID, 3600, 3)
	voterID := f.fundVoter(t, 100)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.voting.CastVote(context.Background(), session.ID, voterID, domain.VerdictTrue, 30)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, rejected int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrAlreadyVoted):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)

	votes, err := f.votes.GetVotesBySession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Len(t, votes, 1)

	// Exactly one stake got locked.
	account, err := f.ledger.GetAccount(context.Background(), voterID)
	require.NoError(t, err)
	assert.Equal(t, 30.0, account.Locked)
}

func TestCastVoteReleasesStakeWhenInsertFails(t *testing.T) {
	f := newVotingFixture(t)
	claim := f.newClaim(t)
	session := f.openSession(t, claim.ID, 3600, 3)
	voterID := f.fundVoter(t, 100)

	f.votes.createVoteErr = errors.New("insert failed")
	_, err := f.voting.CastVote(context.Background(), session.ID, voterID, domain.VerdictTrue, 30)
	require.Error(t, err)

	// The failed insert left nothing locked behind it.
	account, err := f.ledger.GetAccount(context.Background(), voterID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, account.Locked)
	assert.Equal(t, 100.0, account.Available())

	market, err := f.ledger.GetMarket(context.Background(), claim.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, market.StakesFor)

	// A retry starts clean.
	vote, err := f.voting.CastVote(context.Background(), session.ID, voterID, domain.VerdictTrue, 30)
	require.NoError(t, err)
	assert.Equal(t, 30.0, vote.StakedAmount)
}

func TestOpenSessionReusesExistingMarket(t *testing.T) {
	f := newVotingFixture(t)
	claim := f.newClaim(t)

	// A market left behind by an earlier attempt that died before the
	// session row existed.
	_, err := f.ledger.OpenVoting(context.Background(), claim.ID)
	require.NoError(t, err)

	session := f.openSession(t, claim.ID, 3600, 3)
	assert.Equal(t, domain.VotingStatusOpen, session.Status)

	market, err := f.ledger.GetMarket(context.Background(), claim.ID)
	require.NoError(t, err)
	assert.True(t, market.IsOpen)
}

func TestCastVoteAppendsChainEvent(t *testing.T) {
	f := newVotingFixture(t)
	claim := f.newClaim(t)
	session := f.openSession(t, claim.ID, 3600, 3)
	voterID := f.fundVoter(t, 100)

	_, err := f.voting.CastVote(context.Background(), session.ID, voterID, domain.VerdictTrue, 10)
	require.NoError(t, err)

	events, err := f.events.GetByClaimID(context.Background(), claim.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventVoteCast, events[0].Type)
}
