package models

import "time"

// Conversation statuses.
const (
	ConversationPending = "pending"
	ConversationOpen    = "open"
	ConversationClosed  = "closed"
)

// Conversation is a thread between a client and an assigned advisor.
// AdvisorID is zero while the conversation is still a pending help request.
type Conversation struct {
	ID        int       `db:"id" json:"id"`
	ClientID  int       `db:"client_id" json:"client_id"`
	AdvisorID int       `db:"advisor_id" json:"advisor_id"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ConversationSummary is the API view of a conversation for one user.
type ConversationSummary struct {
	Conversation
	PeerName    string   `json:"peer_name,omitempty"`
	UnreadCount int      `json:"unread_count"`
	LastMessage *Message `json:"last_message,omitempty"`
}

// Peer returns the other participant for the given user.
func (c Conversation) Peer(userID int) int {
	if c.ClientID == userID {
		return c.AdvisorID
	}
	return c.ClientID
}

// HasParticipant reports whether userID belongs to the conversation.
func (c Conversation) HasParticipant(userID int) bool {
	return c.ClientID == userID || c.AdvisorID == userID
}
