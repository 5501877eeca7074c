package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/veritasnet/veritas/internal/domain"
	"github.com/veritasnet/veritas/internal/store"
	"go.uber.org/zap"
)

var ErrNoEmbedding = errors.New("claim has no embedding")

const (
	resolvedClaimTTL     = 10 * time.Minute
	cacheCleanupInterval = 15 * time.Minute
	defaultSimilarLimit  = 5
	maxSimilarLimit      = 20
)

// ClaimQueryService serves read paths: single claims, their signal and
// event history, and nearest resolved claims. Resolved claims are
// immutable, so they sit behind a short-TTL cache; everything else reads
// through to the store.
type ClaimQueryService struct {
	claimStore  domain.ClaimStore
	signalStore domain.SignalResultStore
	events      domain.ChainEventStore
	embedder    domain.EmbeddingClient
	logger      *zap.Logger

	resolved *gocache.Cache
}

func NewClaimQueryService(cs domain.ClaimStore, ss domain.SignalResultStore, es domain.ChainEventStore, logger *zap.Logger) *ClaimQueryService {
	return &ClaimQueryService{
		claimStore:  cs,
		signalStore: ss,
		events:      es,
		logger:      logger,
		resolved:    gocache.New(resolvedClaimTTL, cacheCleanupInterval),
	}
}

func (s *ClaimQueryService) SetEmbeddingClient(ec domain.EmbeddingClient) { s.embedder = ec }

func (s *ClaimQueryService) GetClaim(ctx context.Context, id uuid.UUID) (*domain.Claim, error) {
	if cached, found := s.resolved.Get(id.String()); found {
		claim := cached.(domain.Claim)
		return &claim, nil
	}

	claim, err := s.claimStore.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrClaimNotFound
		}
		return nil, err
	}
	if claim.IsResolved() {
		s.resolved.Set(id.String(), *claim, gocache.DefaultExpiration)
	}
	return claim, nil
}

func (s *ClaimQueryService) GetSignals(ctx context.Context, claimID uuid.UUID) ([]domain.SignalResult, error) {
	if _, err := s.GetClaim(ctx, claimID); err != nil {
		return nil, err
	}
	return s.signalStore.GetByClaimID(ctx, claimID)
}

func (s *ClaimQueryService) GetEvents(ctx context.Context, claimID uuid.UUID) ([]domain.ChainEvent, error) {
	if _, err := s.GetClaim(ctx, claimID); err != nil {
		return nil, err
	}
	return s.events.GetByClaimID(ctx, claimID)
}

// FindSimilar returns the nearest resolved claims to an existing claim,
// using its stored embedding.
func (s *ClaimQueryService) FindSimilar(ctx context.Context, claimID uuid.UUID, limit int) ([]domain.ClaimWithScore, error) {
	claim, err := s.GetClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if len(claim.Embedding) == 0 {
		return nil, ErrNoEmbedding
	}
	return s.similar(ctx, claim.Embedding, claimID, limit)
}

// SearchSimilar embeds free text and returns the nearest resolved claims.
// Useful for checking whether a claim was already adjudicated before
// submitting it.
func (s *ClaimQueryService) SearchSimilar(ctx context.Context, text string, limit int) ([]domain.ClaimWithScore, error) {
	if text == "" {
		return nil, ErrClaimTextEmpty
	}
	if s.embedder == nil {
		return nil, ErrNoEmbedding
	}
	emb, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return s.similar(ctx, emb, uuid.Nil, limit)
}

func (s *ClaimQueryService) similar(ctx context.Context, embedding []float32, exclude uuid.UUID, limit int) ([]domain.ClaimWithScore, error) {
	if limit <= 0 {
		limit = defaultSimilarLimit
	}
	if limit > maxSimilarLimit {
		limit = maxSimilarLimit
	}

	// Fetch one extra so excluding the claim itself still fills the page.
	matches, err := s.claimStore.FindSimilar(ctx, embedding, limit+1)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ClaimWithScore, 0, limit)
	for _, m := range matches {
		if m.ID == exclude {
			continue
		}
		out = append(out, m)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}
