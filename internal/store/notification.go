package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/veritasnet/veritas/internal/domain"
)

type NotificationStore struct {
	db *pgxpool.Pool
}

func NewNotificationStore(db *pgxpool.Pool) *NotificationStore {
	return &NotificationStore{db: db}
}

func (s *NotificationStore) Create(ctx context.Context, n *domain.Notification) error {
	if n.Status == "" {
		n.Status = domain.NotifStatusPending
	}
	return s.db.QueryRow(ctx,
		`INSERT INTO notifications (user_id, claim_id, session_id, status, payload)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		n.UserID, n.ClaimID, n.SessionID, n.Status, n.Payload,
	).Scan(&n.ID, &n.CreatedAt)
}

func (s *NotificationStore) ListPending(ctx context.Context, limit int) ([]domain.Notification, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, claim_id, session_id, status, payload, created_at, sent_at
		 FROM notifications WHERE status = $1
		 ORDER BY created_at ASC
		 LIMIT $2`,
		domain.NotifStatusPending, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.ClaimID, &n.SessionID, &n.Status, &n.Payload, &n.CreatedAt, &n.SentAt); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
