package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/veritasnet/veritas/internal/domain"
	"github.com/veritasnet/veritas/internal/store"
)

// In-memory store doubles shared by the service tests.

type mockClaimStore struct {
	mu     sync.Mutex
	claims map[uuid.UUID]*domain.Claim

	// resolveErr is returned by the next Resolve call, then cleared.
	resolveErr error
}

func newMockClaimStore() *mockClaimStore {
	return &mockClaimStore{claims: make(map[uuid.UUID]*domain.Claim)}
}

func (m *mockClaimStore) Create(ctx context.Context, c *domain.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = uuid.New()
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	m.claims[c.ID] = &cp
	return nil
}

func (m *mockClaimStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockClaimStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ClaimStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[id]
	if !ok {
		return store.ErrNotFound
	}
	c.Status = status
	return nil
}

func (m *mockClaimStore) SetAIResult(ctx context.Context, id uuid.UUID, verdict domain.Verdict, confidence float64, flags []string, explanation string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[id]
	if !ok {
		return store.ErrNotFound
	}
	c.AIVerdict = &verdict
	c.AIConfidence = &confidence
	c.AIFlags = flags
	c.AIExplanation = explanation
	return nil
}

func (m *mockClaimStore) Resolve(ctx context.Context, id uuid.UUID, verdict domain.Verdict, confidence float64, resolvedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resolveErr != nil {
		err := m.resolveErr
		m.resolveErr = nil
		return err
	}
	c, ok := m.claims[id]
	if !ok {
		return store.ErrNotFound
	}
	if c.Status == domain.ClaimStatusResolved {
		// Mirrors the SQL guard: the row no longer matches status != resolved.
		return store.ErrNotFound
	}
	c.FinalVerdict = &verdict
	c.FinalConfidence = &confidence
	c.ResolvedAt = &resolvedAt
	c.Status = domain.ClaimStatusResolved
	return nil
}

func (m *mockClaimStore) FindSimilar(ctx context.Context, embedding []float32, limit int) ([]domain.ClaimWithScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ClaimWithScore
	for _, c := range m.claims {
		if c.Status != domain.ClaimStatusResolved || len(c.Embedding) == 0 {
			continue
		}
		out = append(out, domain.ClaimWithScore{Claim: *c, Score: 0.9})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *mockClaimStore) SetEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[id]
	if !ok {
		return store.ErrNotFound
	}
	c.Embedding = embedding
	return nil
}

type mockSignalResultStore struct {
	mu      sync.Mutex
	results map[uuid.UUID][]domain.SignalResult
}

func newMockSignalResultStore() *mockSignalResultStore {
	return &mockSignalResultStore{results: make(map[uuid.UUID][]domain.SignalResult)}
}

func (m *mockSignalResultStore) Create(ctx context.Context, r *domain.SignalResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = uuid.New()
	r.CreatedAt = time.Now().UTC()
	m.results[r.ClaimID] = append(m.results[r.ClaimID], *r)
	return nil
}

func (m *mockSignalResultStore) GetByClaimID(ctx context.Context, claimID uuid.UUID) ([]domain.SignalResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.SignalResult(nil), m.results[claimID]...), nil
}

type stakeKey struct {
	claimID uuid.UUID
	voterID uuid.UUID
}

type mockLedgerStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*domain.LedgerAccount
	markets  map[uuid.UUID]*domain.Market
	stakes   map[stakeKey]*domain.Stake
}

func newMockLedgerStore() *mockLedgerStore {
	return &mockLedgerStore{
		accounts: make(map[uuid.UUID]*domain.LedgerAccount),
		markets:  make(map[uuid.UUID]*domain.Market),
		stakes:   make(map[stakeKey]*domain.Stake),
	}
}

func (m *mockLedgerStore) GetAccount(ctx context.Context, voterID uuid.UUID) (*domain.LedgerAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[voterID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockLedgerStore) UpsertAccount(ctx context.Context, a *domain.LedgerAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	cp.UpdatedAt = time.Now().UTC()
	m.accounts[a.VoterID] = &cp
	return nil
}

func (m *mockLedgerStore) CreateMarket(ctx context.Context, mk *domain.Market) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mk.CreatedAt = time.Now().UTC()
	cp := *mk
	m.markets[mk.ClaimID] = &cp
	return nil
}

func (m *mockLedgerStore) GetMarket(ctx context.Context, claimID uuid.UUID) (*domain.Market, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mk, ok := m.markets[claimID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *mk
	return &cp, nil
}

func (m *mockLedgerStore) UpdateMarket(ctx context.Context, mk *domain.Market) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.markets[mk.ClaimID]; !ok {
		return store.ErrNotFound
	}
	cp := *mk
	m.markets[mk.ClaimID] = &cp
	return nil
}

func (m *mockLedgerStore) GetStake(ctx context.Context, claimID, voterID uuid.UUID) (*domain.Stake, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stakes[stakeKey{claimID, voterID}]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockLedgerStore) UpsertStake(ctx context.Context, s *domain.Stake) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	cp.UpdatedAt = time.Now().UTC()
	m.stakes[stakeKey{s.ClaimID, s.VoterID}] = &cp
	return nil
}

type mockVotingStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*domain.VotingSession
	votes    map[uuid.UUID][]domain.Vote

	// claims backs ListClosedUnresolvedSessions, mirroring the SQL join.
	claims *mockClaimStore

	// createVoteErr is returned by the next CreateVote call, then cleared.
	createVoteErr error
}

func newMockVotingStore() *mockVotingStore {
	return &mockVotingStore{
		sessions: make(map[uuid.UUID]*domain.VotingSession),
		votes:    make(map[uuid.UUID][]domain.Vote),
	}
}

func (m *mockVotingStore) CreateSession(ctx context.Context, s *domain.VotingSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = uuid.New()
	if s.OpenedAt.IsZero() {
		s.OpenedAt = time.Now().UTC()
	}
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *mockVotingStore) GetSession(ctx context.Context, id uuid.UUID) (*domain.VotingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockVotingStore) GetOpenSessionByClaim(ctx context.Context, claimID uuid.UUID) (*domain.VotingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.ClaimID == claimID && s.Status == domain.VotingStatusOpen {
			cp := *s
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockVotingStore) CloseSession(ctx context.Context, id uuid.UUID, closedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.Status != domain.VotingStatusOpen {
		return store.ErrNotFound
	}
	s.Status = domain.VotingStatusClosed
	s.ClosedAt = &closedAt
	return nil
}

func (m *mockVotingStore) ListExpiredOpenSessions(ctx context.Context, now time.Time, limit int) ([]domain.VotingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.VotingSession
	for _, s := range m.sessions {
		if s.Status == domain.VotingStatusOpen && s.Expired(now) {
			out = append(out, *s)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *mockVotingStore) ListClosedUnresolvedSessions(ctx context.Context, limit int) ([]domain.VotingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.VotingSession
	for _, s := range m.sessions {
		if s.Status != domain.VotingStatusClosed {
			continue
		}
		if m.claims != nil {
			claim, err := m.claims.GetByID(ctx, s.ClaimID)
			if err != nil || claim.Status == domain.ClaimStatusResolved {
				continue
			}
		}
		out = append(out, *s)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *mockVotingStore) CreateVote(ctx context.Context, v *domain.Vote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createVoteErr != nil {
		err := m.createVoteErr
		m.createVoteErr = nil
		return err
	}
	v.ID = uuid.New()
	v.CreatedAt = time.Now().UTC()
	m.votes[v.SessionID] = append(m.votes[v.SessionID], *v)
	return nil
}

func (m *mockVotingStore) GetVote(ctx context.Context, sessionID, voterID uuid.UUID) (*domain.Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.votes[sessionID] {
		if v.VoterID == voterID {
			cp := v
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockVotingStore) GetVotesBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Vote(nil), m.votes[sessionID]...), nil
}

type mockUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{users: make(map[uuid.UUID]*domain.User)}
}

func (m *mockUserStore) Create(ctx context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = uuid.New()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *mockUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserStore) GetByAPIKeyHash(ctx context.Context, hash string) (*domain.User, error) {
	return nil, store.ErrNotFound
}

func (m *mockUserStore) AdjustReputation(ctx context.Context, id uuid.UUID, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.ReputationScore += delta
	return nil
}

type mockEventStore struct {
	mu     sync.Mutex
	events []domain.ChainEvent
}

func newMockEventStore() *mockEventStore { return &mockEventStore{} }

func (m *mockEventStore) Append(ctx context.Context, e *domain.ChainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = uuid.New()
	e.CreatedAt = time.Now().UTC()
	m.events = append(m.events, *e)
	return nil
}

func (m *mockEventStore) GetByClaimID(ctx context.Context, claimID uuid.UUID) ([]domain.ChainEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ChainEvent
	for _, e := range m.events {
		if e.ClaimID != nil && *e.ClaimID == claimID {
			out = append(out, e)
		}
	}
	return out, nil
}

type mockNotificationStore struct {
	mu    sync.Mutex
	notes []domain.Notification
}

func newMockNotificationStore() *mockNotificationStore { return &mockNotificationStore{} }

func (m *mockNotificationStore) Create(ctx context.Context, n *domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = uuid.New()
	n.CreatedAt = time.Now().UTC()
	m.notes = append(m.notes, *n)
	return nil
}

func (m *mockNotificationStore) ListPending(ctx context.Context, limit int) ([]domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Notification
	for _, n := range m.notes {
		if n.Status == domain.NotifStatusPending {
			out = append(out, n)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// mockSignalSource returns a fixed output, or an error when err is set.
type mockSignalSource struct {
	name   domain.SignalName
	output domain.SignalOutput
	err    error
	delay  time.Duration

	mu    sync.Mutex
	calls int
}

func (m *mockSignalSource) Name() domain.SignalName { return m.name }

func (m *mockSignalSource) Evaluate(ctx context.Context, claim *domain.Claim) (*domain.SignalOutput, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	out := m.output
	return &out, nil
}

func (m *mockSignalSource) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockRoutingDecider struct {
	decision *domain.RouteDecision
	err      error
}

func (m *mockRoutingDecider) Decide(ctx context.Context, claim *domain.Claim, agg *domain.AggregationResult) (*domain.RouteDecision, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.decision, nil
}

type mockReputationSink struct {
	mu     sync.Mutex
	deltas map[uuid.UUID]int
}

func newMockReputationSink() *mockReputationSink {
	return &mockReputationSink{deltas: make(map[uuid.UUID]int)}
}

func (m *mockReputationSink) ApplyDelta(ctx context.Context, voterID uuid.UUID, delta int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deltas[voterID] += delta
}

func (m *mockReputationSink) deltaFor(voterID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deltas[voterID]
}

type publishedVerdict struct {
	claimID    uuid.UUID
	verdict    domain.Verdict
	confidence float64
}

type mockPublisher struct {
	mu        sync.Mutex
	published []publishedVerdict
}

func newMockPublisher() *mockPublisher { return &mockPublisher{} }

func (m *mockPublisher) PublishResolved(ctx context.Context, claimID uuid.UUID, verdict domain.Verdict, confidence float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, publishedVerdict{claimID, verdict, confidence})
}

func (m *mockPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.published)
}

type mockEmbeddingClient struct{}

func (m *mockEmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}
