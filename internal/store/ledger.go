package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/veritasnet/veritas/internal/domain"
)

type LedgerStore struct {
	db *pgxpool.Pool
}

func NewLedgerStore(db *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{db: db}
}

func (s *LedgerStore) GetAccount(ctx context.Context, voterID uuid.UUID) (*domain.LedgerAccount, error) {
	a := &domain.LedgerAccount{}
	err := s.db.QueryRow(ctx,
		`SELECT voter_id, balance, locked, created_at, updated_at
		 FROM ledger_accounts WHERE voter_id = $1`,
		voterID,
	).Scan(&a.VoterID, &a.Balance, &a.Locked, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func (s *LedgerStore) UpsertAccount(ctx context.Context, a *domain.LedgerAccount) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO ledger_accounts (voter_id, balance, locked)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (voter_id)
		 DO UPDATE SET balance = EXCLUDED.balance, locked = EXCLUDED.locked, updated_at = NOW()
		 RETURNING created_at, updated_at`,
		a.VoterID, a.Balance, a.Locked,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (s *LedgerStore) CreateMarket(ctx context.Context, m *domain.Market) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO markets (claim_id, is_open, is_settled, stakes_for, stakes_against)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		m.ClaimID, m.IsOpen, m.IsSettled, m.StakesFor, m.StakesAgainst,
	).Scan(&m.CreatedAt)
}

func (s *LedgerStore) GetMarket(ctx context.Context, claimID uuid.UUID) (*domain.Market, error) {
	m := &domain.Market{}
	err := s.db.QueryRow(ctx,
		`SELECT claim_id, is_open, is_settled, stakes_for, stakes_against, created_at, settled_at
		 FROM markets WHERE claim_id = $1`,
		claimID,
	).Scan(&m.ClaimID, &m.IsOpen, &m.IsSettled, &m.StakesFor, &m.StakesAgainst, &m.CreatedAt, &m.SettledAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

func (s *LedgerStore) UpdateMarket(ctx context.Context, m *domain.Market) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE markets
		 SET is_open = $1, is_settled = $2, stakes_for = $3, stakes_against = $4, settled_at = $5
		 WHERE claim_id = $6`,
		m.IsOpen, m.IsSettled, m.StakesFor, m.StakesAgainst, m.SettledAt, m.ClaimID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *LedgerStore) GetStake(ctx context.Context, claimID, voterID uuid.UUID) (*domain.Stake, error) {
	st := &domain.Stake{}
	err := s.db.QueryRow(ctx,
		`SELECT claim_id, voter_id, stake_for, stake_against, updated_at
		 FROM stakes WHERE claim_id = $1 AND voter_id = $2`,
		claimID, voterID,
	).Scan(&st.ClaimID, &st.VoterID, &st.For, &st.Against, &st.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return st, nil
}

func (s *LedgerStore) UpsertStake(ctx context.Context, st *domain.Stake) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO stakes (claim_id, voter_id, stake_for, stake_against)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (claim_id, voter_id)
		 DO UPDATE SET stake_for = EXCLUDED.stake_for, stake_against = EXCLUDED.stake_against, updated_at = NOW()
		 RETURNING updated_at`,
		st.ClaimID, st.VoterID, st.For, st.Against,
	).Scan(&st.UpdatedAt)
}
