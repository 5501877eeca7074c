package domain

import (
	"time"

	"github.com/google/uuid"
)

type NotifPreference string

const (
	NotifNone          NotifPreference = "none"
	NotifImportantOnly NotifPreference = "important_only"
	NotifStandard      NotifPreference = "standard"
	NotifFrequent      NotifPreference = "frequent"
)

func ValidNotifPreference(p string) bool {
	switch NotifPreference(p) {
	case NotifNone, NotifImportantOnly, NotifStandard, NotifFrequent:
		return true
	}
	return false
}

type User struct {
	ID            uuid.UUID `json:"id"`
	WalletAddress string    `json:"wallet_address"`
	FullName      string    `json:"full_name,omitempty"`
	Email         string    `json:"email,omitempty"`

	RedditProfile    string `json:"reddit_profile,omitempty"`
	XProfile         string `json:"x_profile,omitempty"`
	FarcasterProfile string `json:"farcaster_profile,omitempty"`

	NotifPreference NotifPreference `json:"notif_preference"`
	ReputationScore int             `json:"reputation_score"`
	APIKeyHash      string          `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type NotifStatus string

const (
	NotifStatusPending NotifStatus = "pending"
	NotifStatusSent    NotifStatus = "sent"
	NotifStatusFailed  NotifStatus = "failed"
)

// Notification is a pending delivery record. The core only creates rows;
// delivery and retry belong to an external dispatcher.
type Notification struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	ClaimID   *uuid.UUID `json:"claim_id,omitempty"`
	SessionID *uuid.UUID `json:"session_id,omitempty"`

	Status  NotifStatus `json:"status"`
	Payload string      `json:"payload,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
}

type EventType string

const (
	EventClaimRegistered    EventType = "claim_registered"
	EventVoteCast           EventType = "vote_cast"
	EventRewardsDistributed EventType = "rewards_distributed"
	EventClaimResolved      EventType = "claim_resolved"
)

// ChainEvent is one row of the append-only journal that downstream anchoring
// consumes. The core never reads it back.
type ChainEvent struct {
	ID      uuid.UUID  `json:"id"`
	ClaimID *uuid.UUID `json:"claim_id,omitempty"`

	Type    EventType `json:"type"`
	Payload string    `json:"payload,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
