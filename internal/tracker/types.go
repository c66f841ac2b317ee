package tracker

import (
	"context"
	"time"

	"voucherbot/internal/config"
)

// trackedUsersKey names the single persisted document holding the whole
// subscription mapping.
const trackedUsersKey = "tracked_users"

// Record is one recipient's subscription state.
//
// Presence of a record means "subscribed"; Notified=true means the recipient
// received the notification for the current stock-appearance event and is
// excluded from dispatch until they re-subscribe.
type Record struct {
	Username  string    `json:"username,omitempty"`
	TrackedAt time.Time `json:"tracked_at"`
	Notified  bool      `json:"notified"`
}

// Backend persists the serialized subscription mapping as one document.
//
// Load returns ok=false when no document exists yet. Backends only move
// bytes; serialization, corrupt-entry tolerance and mutation serialization
// live in Store.
type Backend interface {
	Load(ctx context.Context) (data []byte, ok bool, err error)
	Save(ctx context.Context, data []byte) error
	Close() error
}

// Config aliases the storage section of the app config.
type Config = config.StorageConfig
