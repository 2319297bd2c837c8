package models

import "encoding/json"

// Realtime socket actions (client to server).
const (
	ActionSendMessage = "send_message"
	ActionRequestHelp = "request_help"
	ActionAcceptHelp  = "accept_help"
	ActionMarkRead    = "mark_read"
	ActionTransfer    = "transfer_conversation"
)

// Realtime event types (server to client).
const (
	EventAck          = "ack"
	EventNewMessage   = "new_message"
	EventHelpRequest  = "help_request"
	EventHelpAccepted = "help_accepted"
	EventRequestTaken = "request_taken"
	EventNotification = "notification"
)

// ActionFrame is a request sent over the realtime socket. ID correlates the
// server ack with the request.
type ActionFrame struct {
	ID      string          `json:"id"`
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// EventFrame is pushed through the realtime socket. For acks, AckID carries
// the originating request id and OK/Error the outcome.
type EventFrame struct {
	Type         string        `json:"type"`
	AckID        string        `json:"ack_id,omitempty"`
	OK           bool          `json:"ok,omitempty"`
	Error        string        `json:"error,omitempty"`
	Message      *Message      `json:"message,omitempty"`
	Conversation *Conversation `json:"conversation,omitempty"`
	HelpRequest  *HelpRequest  `json:"help_request,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
}

// SendMessagePayload is the payload for ActionSendMessage.
type SendMessagePayload struct {
	ConversationID int    `json:"conversation_id"`
	ClientKey      string `json:"client_key"`
	Content        string `json:"content"`
}

// RequestHelpPayload is the payload for ActionRequestHelp.
type RequestHelpPayload struct {
	ClientKey string `json:"client_key"`
	Content   string `json:"content"`
}

// AcceptHelpPayload is the payload for ActionAcceptHelp.
type AcceptHelpPayload struct {
	ConversationID int `json:"conversation_id"`
}

// MarkReadPayload is the payload for ActionMarkRead.
type MarkReadPayload struct {
	ConversationID int `json:"conversation_id"`
}

// TransferPayload is the payload for ActionTransfer.
type TransferPayload struct {
	ConversationID int    `json:"conversation_id"`
	NewAdvisorID   int    `json:"new_advisor_id"`
	Reason         string `json:"reason"`
}
