package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/veritasnet/veritas/internal/domain"
)

type VotingStore struct {
	db *pgxpool.Pool
}

func NewVotingStore(db *pgxpool.Pool) *VotingStore {
	return &VotingStore{db: db}
}

func (s *VotingStore) CreateSession(ctx context.Context, sess *domain.VotingSession) error {
	if sess.Status == "" {
		sess.Status = domain.VotingStatusOpen
	}
	return s.db.QueryRow(ctx,
		`INSERT INTO voting_sessions (claim_id, route_reason, urgency, voting_window_secs, min_votes_required, status, opened_at, closes_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		sess.ClaimID, sess.RouteReason, sess.Urgency, sess.VotingWindowSecs, sess.MinVotesRequired, sess.Status, sess.OpenedAt, sess.ClosesAt,
	).Scan(&sess.ID)
}

const sessionColumns = `id, claim_id, route_reason, urgency, voting_window_secs, min_votes_required, status, opened_at, closes_at, closed_at`

func scanSession(row pgx.Row, sess *domain.VotingSession) error {
	return row.Scan(
		&sess.ID, &sess.ClaimID, &sess.RouteReason, &sess.Urgency,
		&sess.VotingWindowSecs, &sess.MinVotesRequired, &sess.Status,
		&sess.OpenedAt, &sess.ClosesAt, &sess.ClosedAt,
	)
}

func (s *VotingStore) GetSession(ctx context.Context, id uuid.UUID) (*domain.VotingSession, error) {
	sess := &domain.VotingSession{}
	err := scanSession(s.db.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM voting_sessions WHERE id = $1`, id,
	), sess)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sess, nil
}

func (s *VotingStore) GetOpenSessionByClaim(ctx context.Context, claimID uuid.UUID) (*domain.VotingSession, error) {
	sess := &domain.VotingSession{}
	err := scanSession(s.db.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM voting_sessions WHERE claim_id = $1 AND status = $2`,
		claimID, domain.VotingStatusOpen,
	), sess)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sess, nil
}

// CloseSession transitions open -> closed exactly once. The status predicate
// is what lets concurrent finalizers race safely: the loser matches zero
// rows and gets ErrNotFound.
func (s *VotingStore) CloseSession(ctx context.Context, id uuid.UUID, closedAt time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE voting_sessions SET status = $1, closed_at = $2 WHERE id = $3 AND status = $4`,
		domain.VotingStatusClosed, closedAt, id, domain.VotingStatusOpen,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *VotingStore) ListExpiredOpenSessions(ctx context.Context, now time.Time, limit int) ([]domain.VotingSession, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM voting_sessions
		 WHERE status = $1 AND closes_at <= $2
		 ORDER BY closes_at ASC
		 LIMIT $3`,
		domain.VotingStatusOpen, now, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.VotingSession
	for rows.Next() {
		var sess domain.VotingSession
		if err := scanSession(rows, &sess); err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *VotingStore) ListClosedUnresolvedSessions(ctx context.Context, limit int) ([]domain.VotingSession, error) {
	rows, err := s.db.Query(ctx,
		`SELECT v.id, v.claim_id, v.route_reason, v.urgency, v.voting_window_secs, v.min_votes_required, v.status, v.opened_at, v.closes_at, v.closed_at
		 FROM voting_sessions v
		 JOIN claims c ON c.id = v.claim_id
		 WHERE v.status = $1 AND c.status != $2
		 ORDER BY v.closed_at ASC
		 LIMIT $3`,
		domain.VotingStatusClosed, domain.ClaimStatusResolved, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.VotingSession
	for rows.Next() {
		var sess domain.VotingSession
		if err := scanSession(rows, &sess); err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *VotingStore) CreateVote(ctx context.Context, v *domain.Vote) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO votes (session_id, claim_id, voter_id, choice, staked_amount)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		v.SessionID, v.ClaimID, v.VoterID, v.Choice, v.StakedAmount,
	).Scan(&v.ID, &v.CreatedAt)
}

func (s *VotingStore) GetVote(ctx context.Context, sessionID, voterID uuid.UUID) (*domain.Vote, error) {
	v := &domain.Vote{}
	err := s.db.QueryRow(ctx,
		`SELECT id, session_id, claim_id, voter_id, choice, staked_amount, created_at
		 FROM votes WHERE session_id = $1 AND voter_id = $2`,
		sessionID, voterID,
	).Scan(&v.ID, &v.SessionID, &v.ClaimID, &v.VoterID, &v.Choice, &v.StakedAmount, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

func (s *VotingStore) GetVotesBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.Vote, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, session_id, claim_id, voter_id, choice, staked_amount, created_at
		 FROM votes WHERE session_id = $1
		 ORDER BY created_at ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var votes []domain.Vote
	for rows.Next() {
		var v domain.Vote
		if err := rows.Scan(&v.ID, &v.SessionID, &v.ClaimID, &v.VoterID, &v.Choice, &v.StakedAmount, &v.CreatedAt); err != nil {
			return nil, err
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}
