package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/veritasnet/veritas/internal/domain"
	"go.uber.org/zap"
)

// LogPublisher announces resolutions to the structured log. Onchain
// anchoring or webhook delivery would implement domain.Publisher the same
// way; the journal rows themselves are written by the lifecycle.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) PublishResolved(ctx context.Context, claimID uuid.UUID, verdict domain.Verdict, confidence float64) {
	p.logger.Info("resolution published",
		zap.String("claim_id", claimID.String()),
		zap.String("verdict", string(verdict)),
		zap.Float64("confidence", confidence))
}

var _ domain.Publisher = (*LogPublisher)(nil)
