package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/veritasnet/veritas/internal/domain"
)

type UserStore struct {
	db *pgxpool.Pool
}

func NewUserStore(db *pgxpool.Pool) *UserStore {
	return &UserStore{db: db}
}

const userColumns = `id, wallet_address, full_name, email, reddit_profile, x_profile, farcaster_profile, notif_preference, reputation_score, created_at, updated_at`

func (s *UserStore) Create(ctx context.Context, u *domain.User) error {
	if u.NotifPreference == "" {
		u.NotifPreference = domain.NotifStandard
	}
	return s.db.QueryRow(ctx,
		`INSERT INTO users (wallet_address, full_name, email, reddit_profile, x_profile, farcaster_profile, notif_preference, reputation_score, api_key_hash)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at, updated_at`,
		u.WalletAddress, u.FullName, u.Email, u.RedditProfile, u.XProfile, u.FarcasterProfile, u.NotifPreference, u.ReputationScore, u.APIKeyHash,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
}

func scanUser(row pgx.Row) (*domain.User, error) {
	u := &domain.User{}
	err := row.Scan(
		&u.ID, &u.WalletAddress, &u.FullName, &u.Email,
		&u.RedditProfile, &u.XProfile, &u.FarcasterProfile,
		&u.NotifPreference, &u.ReputationScore,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return scanUser(s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id,
	))
}

func (s *UserStore) GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*domain.User, error) {
	return scanUser(s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE api_key_hash = $1`, apiKeyHash,
	))
}

func (s *UserStore) AdjustReputation(ctx context.Context, id uuid.UUID, delta int) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE users SET reputation_score = reputation_score + $1, updated_at = NOW() WHERE id = $2`,
		delta, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
