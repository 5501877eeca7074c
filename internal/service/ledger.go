package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/veritasnet/veritas/internal/domain"
	"github.com/veritasnet/veritas/internal/store"
	"go.uber.org/zap"
)

var (
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrInsufficientFunds    = errors.New("insufficient available funds")
	ErrAccountNotFound      = errors.New("ledger account not found")
	ErrMarketNotFound       = errors.New("market not found")
	ErrMarketNotOpen        = errors.New("market is not open")
	ErrMarketAlreadyOpen    = errors.New("market already open for claim")
	ErrMarketAlreadySettled = errors.New("market already settled")
	ErrMarketNotSettled     = errors.New("market not settled")
	ErrNoStake              = errors.New("no stake to claim")
	ErrClaimNotResolved     = errors.New("claim verdict not resolved")
)

const (
	// RewardDivisor: winners earn stake/10 on top of their refund.
	RewardDivisor = 10.0
	// PenaltyDivisor: losers forfeit stake/2 of their refund.
	PenaltyDivisor = 2.0

	// WinReputationDelta / LoseReputationDelta are forwarded to the
	// reputation sink per settled side.
	WinReputationDelta  = 10
	LoseReputationDelta = -10
)

// keyedMutex serializes operations per key. Balance and locked mutations for
// one voter must never interleave; different voters stay independent.
type keyedMutex[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*sync.Mutex
}

func newKeyedMutex[K comparable]() *keyedMutex[K] {
	return &keyedMutex[K]{locks: make(map[K]*sync.Mutex)}
}

func (k *keyedMutex[K]) lock(key K) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// LedgerService owns deposit/lock/stake/settle bookkeeping. It is the single
// authoritative ledger: every precondition check and its mutation happen
// under the same per-voter or per-market lock.
type LedgerService struct {
	ledgerStore domain.LedgerStore
	claimStore  domain.ClaimStore
	reputation  domain.ReputationSink
	logger      *zap.Logger

	voterLocks  *keyedMutex[uuid.UUID]
	marketLocks *keyedMutex[uuid.UUID]
}

func NewLedgerService(ls domain.LedgerStore, cs domain.ClaimStore, logger *zap.Logger) *LedgerService {
	return &LedgerService{
		ledgerStore: ls,
		claimStore:  cs,
		logger:      logger,
		voterLocks:  newKeyedMutex[uuid.UUID](),
		marketLocks: newKeyedMutex[uuid.UUID](),
	}
}

// SetReputationSink wires the outbound reputation collaborator. The ledger
// never depends on the sink succeeding.
func (s *LedgerService) SetReputationSink(sink domain.ReputationSink) {
	s.reputation = sink
}

func (s *LedgerService) getOrCreateAccount(ctx context.Context, voterID uuid.UUID) (*domain.LedgerAccount, error) {
	acct, err := s.ledgerStore.GetAccount(ctx, voterID)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return &domain.LedgerAccount{VoterID: voterID}, nil
}

func (s *LedgerService) Deposit(ctx context.Context, voterID uuid.UUID, amount float64) (*domain.LedgerAccount, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	unlock := s.voterLocks.lock(voterID)
	defer unlock()

	acct, err := s.getOrCreateAccount(ctx, voterID)
	if err != nil {
		return nil, err
	}

	acct.Balance += amount
	if err := s.ledgerStore.UpsertAccount(ctx, acct); err != nil {
		return nil, err
	}

	s.logger.Debug("deposit",
		zap.String("voter_id", voterID.String()),
		zap.Float64("amount", amount),
		zap.Float64("balance", acct.Balance))
	return acct, nil
}

func (s *LedgerService) Withdraw(ctx context.Context, voterID uuid.UUID, amount float64) (*domain.LedgerAccount, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	unlock := s.voterLocks.lock(voterID)
	defer unlock()

	acct, err := s.ledgerStore.GetAccount(ctx, voterID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	if amount > acct.Available() {
		return nil, ErrInsufficientFunds
	}

	acct.Balance -= amount
	if err := s.ledgerStore.UpsertAccount(ctx, acct); err != nil {
		return nil, err
	}

	s.logger.Debug("withdraw",
		zap.String("voter_id", voterID.String()),
		zap.Float64("amount", amount),
		zap.Float64("balance", acct.Balance))
	return acct, nil
}

func (s *LedgerService) GetAccount(ctx context.Context, voterID uuid.UUID) (*domain.LedgerAccount, error) {
	acct, err := s.ledgerStore.GetAccount(ctx, voterID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return acct, nil
}

func (s *LedgerService) GetMarket(ctx context.Context, claimID uuid.UUID) (*domain.Market, error) {
	m, err := s.ledgerStore.GetMarket(ctx, claimID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMarketNotFound
		}
		return nil, err
	}
	return m, nil
}

// OpenVoting creates and opens the staking market for a claim. Only the
// lifecycle orchestrator calls this; handlers never reach it directly.
func (s *LedgerService) OpenVoting(ctx context.Context, claimID uuid.UUID) (*domain.Market, error) {
	unlock := s.marketLocks.lock(claimID)
	defer unlock()

	existing, err := s.ledgerStore.GetMarket(ctx, claimID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		if existing.IsSettled {
			return nil, ErrMarketAlreadySettled
		}
		return nil, ErrMarketAlreadyOpen
	}

	m := &domain.Market{ClaimID: claimID, IsOpen: true}
	if err := s.ledgerStore.CreateMarket(ctx, m); err != nil {
		return nil, err
	}

	s.logger.Info("market opened", zap.String("claim_id", claimID.String()))
	return m, nil
}

// Vote locks amount of the voter's available balance behind one side of the
// market. A voter may stake both sides across multiple calls; that is a
// policy choice carried over from the settlement contract, not an oversight.
func (s *LedgerService) Vote(ctx context.Context, voterID, claimID uuid.UUID, support bool, amount float64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	// Market lock before voter lock, always, so concurrent votes cannot
	// deadlock against settlement.
	unlockMarket := s.marketLocks.lock(claimID)
	defer unlockMarket()

	market, err := s.ledgerStore.GetMarket(ctx, claimID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrMarketNotOpen
		}
		return err
	}
	if !market.IsOpen {
		return ErrMarketNotOpen
	}

	unlockVoter := s.voterLocks.lock(voterID)
	defer unlockVoter()

	acct, err := s.ledgerStore.GetAccount(ctx, voterID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInsufficientFunds
		}
		return err
	}
	if amount > acct.Available() {
		return ErrInsufficientFunds
	}

	stake, err := s.ledgerStore.GetStake(ctx, claimID, voterID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		stake = &domain.Stake{ClaimID: claimID, VoterID: voterID}
	}

	acct.Locked += amount
	if support {
		market.StakesFor += amount
		stake.For += amount
	} else {
		market.StakesAgainst += amount
		stake.Against += amount
	}

	if err := s.ledgerStore.UpsertAccount(ctx, acct); err != nil {
		return err
	}
	if err := s.ledgerStore.UpsertStake(ctx, stake); err != nil {
		return err
	}
	if err := s.ledgerStore.UpdateMarket(ctx, market); err != nil {
		return err
	}

	s.logger.Debug("stake placed",
		zap.String("voter_id", voterID.String()),
		zap.String("claim_id", claimID.String()),
		zap.Bool("support", support),
		zap.Float64("amount", amount))
	return nil
}

// ReleaseStake backs out a stake placement whose vote never got recorded.
// The exact reverse of Vote, clamped at zero so releasing more than was
// placed cannot drive anything negative.
func (s *LedgerService) ReleaseStake(ctx context.Context, voterID, claimID uuid.UUID, support bool, amount float64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	unlockMarket := s.marketLocks.lock(claimID)
	defer unlockMarket()

	market, err := s.ledgerStore.GetMarket(ctx, claimID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrMarketNotFound
		}
		return err
	}

	unlockVoter := s.voterLocks.lock(voterID)
	defer unlockVoter()

	stake, err := s.ledgerStore.GetStake(ctx, claimID, voterID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNoStake
		}
		return err
	}

	if support {
		if amount > stake.For {
			amount = stake.For
		}
		stake.For -= amount
		market.StakesFor -= amount
	} else {
		if amount > stake.Against {
			amount = stake.Against
		}
		stake.Against -= amount
		market.StakesAgainst -= amount
	}
	if amount <= 0 {
		return ErrNoStake
	}

	acct, err := s.ledgerStore.GetAccount(ctx, voterID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrAccountNotFound
		}
		return err
	}
	acct.Locked -= amount
	if acct.Locked < 0 {
		acct.Locked = 0
	}

	if err := s.ledgerStore.UpsertAccount(ctx, acct); err != nil {
		return err
	}
	if err := s.ledgerStore.UpsertStake(ctx, stake); err != nil {
		return err
	}
	if err := s.ledgerStore.UpdateMarket(ctx, market); err != nil {
		return err
	}

	s.logger.Info("stake released",
		zap.String("voter_id", voterID.String()),
		zap.String("claim_id", claimID.String()),
		zap.Bool("support", support),
		zap.Float64("amount", amount))
	return nil
}

// SettleClaim closes the market once the claim's verdict is final. It moves
// no funds: iterating every voter in one call is unbounded, so payout is
// voter-initiated through ClaimReward.
func (s *LedgerService) SettleClaim(ctx context.Context, claimID uuid.UUID) error {
	claim, err := s.claimStore.GetByID(ctx, claimID)
	if err != nil {
		return err
	}
	if !claim.IsResolved() || claim.FinalVerdict == nil {
		return ErrClaimNotResolved
	}

	unlock := s.marketLocks.lock(claimID)
	defer unlock()

	market, err := s.ledgerStore.GetMarket(ctx, claimID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrMarketNotFound
		}
		return err
	}
	if market.IsSettled {
		return ErrMarketAlreadySettled
	}
	if !market.IsOpen {
		return ErrMarketNotOpen
	}

	now := time.Now().UTC()
	market.IsOpen = false
	market.IsSettled = true
	market.SettledAt = &now
	if err := s.ledgerStore.UpdateMarket(ctx, market); err != nil {
		return err
	}

	s.logger.Info("market settled",
		zap.String("claim_id", claimID.String()),
		zap.String("verdict", string(*claim.FinalVerdict)),
		zap.Float64("stakes_for", market.StakesFor),
		zap.Float64("stakes_against", market.StakesAgainst))
	return nil
}

// ClaimReward applies one voter's settlement against a settled market:
// unconditional unlock of the full stake, reward of winning-stake/10,
// penalty of losing-stake/2, and a reputation delta per staked side.
// Stake entries are zeroed before any balance change becomes visible
// outside the ledger, so a second call finds nothing to claim.
func (s *LedgerService) ClaimReward(ctx context.Context, voterID, claimID uuid.UUID) (*domain.Settlement, error) {
	market, err := s.ledgerStore.GetMarket(ctx, claimID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMarketNotFound
		}
		return nil, err
	}
	if !market.IsSettled {
		return nil, ErrMarketNotSettled
	}

	claim, err := s.claimStore.GetByID(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if claim.FinalVerdict == nil {
		return nil, ErrClaimNotResolved
	}
	verdict := *claim.FinalVerdict

	unlock := s.voterLocks.lock(voterID)
	defer unlock()

	stake, err := s.ledgerStore.GetStake(ctx, claimID, voterID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoStake
		}
		return nil, err
	}
	if stake.Total() <= 0 {
		return nil, ErrNoStake
	}

	settlement := computeSettlement(verdict, stake)
	settlement.ClaimID = claimID
	settlement.VoterID = voterID

	// Zero the stake entries first. If the balance write below fails the
	// voter loses a retry, never gains a double claim.
	stake.For = 0
	stake.Against = 0
	if err := s.ledgerStore.UpsertStake(ctx, stake); err != nil {
		return nil, err
	}

	acct, err := s.ledgerStore.GetAccount(ctx, voterID)
	if err != nil {
		return nil, err
	}
	acct.Locked -= settlement.Unlocked
	if acct.Locked < 0 {
		acct.Locked = 0
	}
	acct.Balance += settlement.Reward - settlement.Penalty
	if err := s.ledgerStore.UpsertAccount(ctx, acct); err != nil {
		return nil, err
	}
	settlement.NewBalance = acct.Balance

	if s.reputation != nil && settlement.ReputationDelta != 0 {
		s.reputation.ApplyDelta(ctx, voterID, settlement.ReputationDelta)
	}

	s.logger.Info("stake claimed",
		zap.String("voter_id", voterID.String()),
		zap.String("claim_id", claimID.String()),
		zap.Float64("reward", settlement.Reward),
		zap.Float64("penalty", settlement.Penalty),
		zap.Int("reputation_delta", settlement.ReputationDelta))
	return settlement, nil
}

// computeSettlement is the pure settlement rule. Symmetric in the verdict:
// swapping true/false and for/against yields identical magnitudes. An
// unclear verdict refunds via unlock with no balance or reputation change.
func computeSettlement(verdict domain.Verdict, stake *domain.Stake) *domain.Settlement {
	st := &domain.Settlement{Unlocked: stake.Total()}

	var winning, losing float64
	switch verdict {
	case domain.VerdictTrue:
		winning, losing = stake.For, stake.Against
	case domain.VerdictFalse:
		winning, losing = stake.Against, stake.For
	default:
		return st
	}

	if winning > 0 {
		st.Reward = winning / RewardDivisor
		st.ReputationDelta += WinReputationDelta
	}
	if losing > 0 {
		st.Penalty = losing / PenaltyDivisor
		st.ReputationDelta += LoseReputationDelta
	}
	return st
}
