package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/veritasnet/veritas/internal/domain"
)

type SignalResultStore struct {
	db *pgxpool.Pool
}

func NewSignalResultStore(db *pgxpool.Pool) *SignalResultStore {
	return &SignalResultStore{db: db}
}

func (s *SignalResultStore) Create(ctx context.Context, r *domain.SignalResult) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO signal_results (claim_id, signal_name, verdict, confidence, flags, raw_result)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		r.ClaimID, r.SignalName, r.Verdict, r.Confidence, r.Flags, r.RawResult,
	).Scan(&r.ID, &r.CreatedAt)
}

func (s *SignalResultStore) GetByClaimID(ctx context.Context, claimID uuid.UUID) ([]domain.SignalResult, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, claim_id, signal_name, verdict, confidence, flags, raw_result, created_at
		 FROM signal_results WHERE claim_id = $1
		 ORDER BY created_at ASC`,
		claimID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.SignalResult
	for rows.Next() {
		var r domain.SignalResult
		if err := rows.Scan(&r.ID, &r.ClaimID, &r.SignalName, &r.Verdict, &r.Confidence, &r.Flags, &r.RawResult, &r.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
