package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/veritasnet/veritas/internal/domain"
	"go.uber.org/zap"
)

// ReputationService adjusts voter standing after settlements. Fire and
// forget from the caller's perspective: failures are logged, never
// propagated, and the ledger does not roll back on a missed delta.
type ReputationService struct {
	userStore domain.UserStore
	logger    *zap.Logger
}

func NewReputationService(us domain.UserStore, logger *zap.Logger) *ReputationService {
	return &ReputationService{userStore: us, logger: logger}
}

var _ domain.ReputationSink = (*ReputationService)(nil)

func (s *ReputationService) ApplyDelta(ctx context.Context, voterID uuid.UUID, delta int) {
	if delta == 0 {
		return
	}
	if err := s.userStore.AdjustReputation(ctx, voterID, delta); err != nil {
		s.logger.Warn("failed to adjust reputation",
			zap.String("voter_id", voterID.String()),
			zap.Int("delta", delta),
			zap.Error(err))
		return
	}
	s.logger.Debug("reputation adjusted",
		zap.String("voter_id", voterID.String()),
		zap.Int("delta", delta))
}
