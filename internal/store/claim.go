package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/veritasnet/veritas/internal/domain"
)

type ClaimStore struct {
	db *pgxpool.Pool
}

func NewClaimStore(db *pgxpool.Pool) *ClaimStore {
	return &ClaimStore{db: db}
}

const claimColumns = `id, submitter_id, raw_input, normalized_text, type, platform, platform_post_id, platform_author, platform_url, extracted_urls, media_images, media_videos, ai_verdict, ai_confidence, ai_flags, ai_explanation, final_verdict, final_confidence, status, created_at, updated_at, resolved_at`

func (s *ClaimStore) Create(ctx context.Context, c *domain.Claim) error {
	if c.Status == "" {
		c.Status = domain.ClaimStatusPendingAI
	}
	if c.Type == "" {
		c.Type = domain.ClaimTypeText
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO claims (submitter_id, raw_input, normalized_text, type, platform, platform_post_id, platform_author, platform_url, extracted_urls, media_images, media_videos, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id, created_at, updated_at`,
		c.SubmitterID, c.RawInput, c.NormalizedText, c.Type, c.Platform, c.PlatformPostID, c.PlatformAuthor, c.PlatformURL, c.ExtractedURLs, c.MediaImages, c.MediaVideos, c.Status,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (s *ClaimStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Claim, error) {
	c := &domain.Claim{}
	var embedding *pgvector.Vector
	err := s.db.QueryRow(ctx,
		`SELECT `+claimColumns+`, embedding FROM claims WHERE id = $1`,
		id,
	).Scan(
		&c.ID, &c.SubmitterID, &c.RawInput, &c.NormalizedText, &c.Type,
		&c.Platform, &c.PlatformPostID, &c.PlatformAuthor, &c.PlatformURL,
		&c.ExtractedURLs, &c.MediaImages, &c.MediaVideos,
		&c.AIVerdict, &c.AIConfidence, &c.AIFlags, &c.AIExplanation,
		&c.FinalVerdict, &c.FinalConfidence, &c.Status,
		&c.CreatedAt, &c.UpdatedAt, &c.ResolvedAt,
		&embedding,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if embedding != nil {
		c.Embedding = embedding.Slice()
	}
	return c, nil
}

func (s *ClaimStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ClaimStatus) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE claims SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ClaimStore) SetAIResult(ctx context.Context, id uuid.UUID, verdict domain.Verdict, confidence float64, flags []string, explanation string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE claims SET ai_verdict = $1, ai_confidence = $2, ai_flags = $3, ai_explanation = $4, updated_at = NOW() WHERE id = $5`,
		verdict, confidence, flags, explanation, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Resolve commits every resolution field in one guarded statement. The
// status predicate makes the write exactly-once: a second resolution (or a
// resolution of a missing claim) matches zero rows.
func (s *ClaimStore) Resolve(ctx context.Context, id uuid.UUID, verdict domain.Verdict, confidence float64, resolvedAt time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE claims
		 SET final_verdict = $1, final_confidence = $2, resolved_at = $3, status = $4, updated_at = NOW()
		 WHERE id = $5 AND status != $4`,
		verdict, confidence, resolvedAt, domain.ClaimStatusResolved, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ClaimStore) SetEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	vec := pgvector.NewVector(embedding)
	tag, err := s.db.Exec(ctx,
		`UPDATE claims SET embedding = $1, updated_at = NOW() WHERE id = $2`,
		vec, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ClaimStore) FindSimilar(ctx context.Context, embedding []float32, limit int) ([]domain.ClaimWithScore, error) {
	if limit <= 0 {
		limit = 10
	}
	vec := pgvector.NewVector(embedding)

	rows, err := s.db.Query(ctx,
		`SELECT `+claimColumns+`,
		        1 - (embedding <=> $1) AS score
		 FROM claims
		 WHERE status = $2 AND embedding IS NOT NULL
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		vec, domain.ClaimStatusResolved, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("find similar query: %w", err)
	}
	defer rows.Close()

	var results []domain.ClaimWithScore
	for rows.Next() {
		var cs domain.ClaimWithScore
		err := rows.Scan(
			&cs.ID, &cs.SubmitterID, &cs.RawInput, &cs.NormalizedText, &cs.Type,
			&cs.Platform, &cs.PlatformPostID, &cs.PlatformAuthor, &cs.PlatformURL,
			&cs.ExtractedURLs, &cs.MediaImages, &cs.MediaVideos,
			&cs.AIVerdict, &cs.AIConfidence, &cs.AIFlags, &cs.AIExplanation,
			&cs.FinalVerdict, &cs.FinalConfidence, &cs.Status,
			&cs.CreatedAt, &cs.UpdatedAt, &cs.ResolvedAt,
			&cs.Score,
		)
		if err != nil {
			return nil, fmt.Errorf("scan similar claim row: %w", err)
		}
		results = append(results, cs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("similar claim rows: %w", err)
	}
	return results, nil
}
