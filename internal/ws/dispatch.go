package ws

import (
	"context"
	"encoding/json"

	"avenir-sync/internal/models"
	"avenir-sync/internal/service"
)

// Dispatch executes one realtime action and builds the ack frame. It is
// shared by the websocket session handler and the in-process transport so
// both paths have identical semantics.
func Dispatch(ctx context.Context, svc *service.ChatService, userID int, frame models.ActionFrame) models.EventFrame {
	ack := models.EventFrame{Type: models.EventAck, AckID: frame.ID}

	fail := func(err error) models.EventFrame {
		ack.OK = false
		ack.Error = err.Error()
		return ack
	}

	switch frame.Action {
	case models.ActionSendMessage:
		var p models.SendMessagePayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return fail(err)
		}
		msg, err := svc.SendMessage(ctx, userID, p.ConversationID, p.ClientKey, p.Content)
		if err != nil {
			return fail(err)
		}
		ack.OK = true
		ack.Message = &msg

	case models.ActionRequestHelp:
		var p models.RequestHelpPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return fail(err)
		}
		conv, msg, err := svc.RequestHelp(ctx, userID, p.ClientKey, p.Content)
		if err != nil {
			return fail(err)
		}
		ack.OK = true
		ack.Conversation = &conv
		ack.Message = &msg

	case models.ActionAcceptHelp:
		var p models.AcceptHelpPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return fail(err)
		}
		conv, err := svc.AcceptHelp(ctx, userID, p.ConversationID)
		if err != nil {
			return fail(err)
		}
		ack.OK = true
		ack.Conversation = &conv

	case models.ActionMarkRead:
		var p models.MarkReadPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return fail(err)
		}
		if err := svc.MarkConversationRead(ctx, userID, p.ConversationID); err != nil {
			return fail(err)
		}
		ack.OK = true

	case models.ActionTransfer:
		var p models.TransferPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return fail(err)
		}
		conv, err := svc.Transfer(ctx, userID, p.ConversationID, p.NewAdvisorID, p.Reason)
		if err != nil {
			return fail(err)
		}
		ack.OK = true
		ack.Conversation = &conv

	default:
		ack.OK = false
		ack.Error = "unknown action"
	}
	return ack
}
