package models

import (
	"encoding/json"
	"time"
)

// Notification categories.
const (
	NotifyInfo    = "info"
	NotifyWarning = "warning"
	NotifySuccess = "success"
	NotifyAlert   = "alert"
	NotifyLoan    = "loan"
	NotifyTrade   = "trade"
)

// Notification is a server-created alert for a single user. Metadata is an
// opaque payload (for example a related loan request id used for navigation)
// and is carried through untouched.
type Notification struct {
	ID        int             `db:"id" json:"id"`
	UserID    int             `db:"user_id" json:"user_id"`
	Category  string          `db:"category" json:"category"`
	Title     string          `db:"title" json:"title"`
	Body      string          `db:"body" json:"body"`
	Metadata  json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	Read      bool            `db:"read" json:"read"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
