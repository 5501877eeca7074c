package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/veritasnet/veritas/internal/domain"
)

// ChainEventStore is the append-only journal downstream anchoring consumes.
type ChainEventStore struct {
	db *pgxpool.Pool
}

func NewChainEventStore(db *pgxpool.Pool) *ChainEventStore {
	return &ChainEventStore{db: db}
}

func (s *ChainEventStore) Append(ctx context.Context, e *domain.ChainEvent) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO chain_events (claim_id, type, payload)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		e.ClaimID, e.Type, e.Payload,
	).Scan(&e.ID, &e.CreatedAt)
}

func (s *ChainEventStore) GetByClaimID(ctx context.Context, claimID uuid.UUID) ([]domain.ChainEvent, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, claim_id, type, payload, created_at
		 FROM chain_events WHERE claim_id = $1
		 ORDER BY created_at ASC`,
		claimID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.ChainEvent
	for rows.Next() {
		var e domain.ChainEvent
		if err := rows.Scan(&e.ID, &e.ClaimID, &e.Type, &e.Payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
