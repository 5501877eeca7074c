package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/veritasnet/veritas/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultCloserInterval = 1 * time.Minute
	closerBatchSize       = 50
)

// CloserService sweeps voting sessions past their closing time and drives
// each one through tally, resolution and settlement. Safe to run alongside
// manual finalization: closing a session is an exactly-once transition, so
// a session finalized elsewhere just falls out of the expired list.
type CloserService struct {
	votingStore domain.VotingStore
	lifecycle   *LifecycleService
	logger      *zap.Logger

	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewCloserService(vs domain.VotingStore, lifecycle *LifecycleService, logger *zap.Logger) *CloserService {
	return &CloserService{
		votingStore: vs,
		lifecycle:   lifecycle,
		logger:      logger,
		interval:    defaultCloserInterval,
		stopCh:      make(chan struct{}),
	}
}

func (s *CloserService) SetInterval(d time.Duration) {
	s.interval = d
}

// Start runs the closer on a periodic schedule in a background goroutine.
func (s *CloserService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("session closer started", zap.Duration("interval", s.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				s.run(ctx)
				cancel()
			case <-s.stopCh:
				s.logger.Info("session closer stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the closer.
func (s *CloserService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *CloserService) run(ctx context.Context) {
	sessions, err := s.votingStore.ListExpiredOpenSessions(ctx, time.Now().UTC(), closerBatchSize)
	if err != nil {
		s.logger.Error("failed to list expired sessions", zap.Error(err))
		return
	}

	// Sessions whose close committed but whose terminal writes failed stay
	// out of the expired list; pick those up too so a transient failure
	// heals on the next sweep instead of stranding the claim.
	stuck, err := s.votingStore.ListClosedUnresolvedSessions(ctx, closerBatchSize)
	if err != nil {
		s.logger.Error("failed to list unresolved closed sessions", zap.Error(err))
	} else {
		sessions = append(sessions, stuck...)
	}

	for _, session := range sessions {
		if err := s.lifecycle.FinalizeVoting(ctx, session.ID); err != nil {
			// A concurrent finalizer won the close; nothing to do here.
			if errors.Is(err, ErrSessionNotOpen) {
				continue
			}
			s.logger.Error("failed to finalize expired session",
				zap.String("session_id", session.ID.String()),
				zap.String("claim_id", session.ClaimID.String()),
				zap.Error(err))
			continue
		}
		s.logger.Info("expired session finalized",
			zap.String("session_id", session.ID.String()),
			zap.String("claim_id", session.ClaimID.String()))
	}
}
