package models

import "time"

// Message represents a conversation message.
//
// ClientKey is the uuid the sending client assigned before dispatch; the
// server echoes it in acks and broadcasts so optimistic entries are always
// reconciled by key, never by content heuristics.
type Message struct {
	ID             int       `db:"id" json:"id"`
	ClientKey      string    `db:"client_key" json:"client_key,omitempty"`
	ConversationID int       `db:"conversation_id" json:"conversation_id"`
	SenderID       int       `db:"sender_id" json:"sender_id"`
	ReceiverID     int       `db:"receiver_id" json:"receiver_id"`
	Content        string    `db:"content" json:"content"`
	Read           bool      `db:"read" json:"read"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// HelpRequest is a client request for an advisor to be assigned.
// Its id doubles as the provisional conversation id.
type HelpRequest struct {
	ConversationID int       `json:"conversation_id"`
	RequesterID    int       `json:"requester_id"`
	RequesterName  string    `json:"requester_name,omitempty"`
	Content        string    `json:"content"`
	Status         string    `json:"status"`
	AdvisorID      int       `json:"advisor_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// User identifies an account holder or advisor.
type User struct {
	ID       int    `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
	Role     string `db:"role" json:"role"`
}

// User roles.
const (
	RoleClient  = "client"
	RoleAdvisor = "advisor"
)
