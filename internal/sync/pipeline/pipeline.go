package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"avenir-sync/internal/models"
	"avenir-sync/internal/observability"
	"avenir-sync/internal/sync/cache"
	"avenir-sync/internal/sync/transport"
)

// Pipeline carries optimistic sends. Submit inserts a provisional entry
// into the cache before the server answers, promotes it on ack and rolls it
// back completely on failure.
type Pipeline struct {
	transport transport.Transport
	cache     *cache.Cache
	selfID    int
}

// New builds a pipeline bound to one authenticated user.
func New(t transport.Transport, c *cache.Cache, selfID int) *Pipeline {
	return &Pipeline{transport: t, cache: c, selfID: selfID}
}

// Result reports what a submit produced once the server answered.
type Result struct {
	Message      models.Message
	Conversation *models.Conversation

	// RolledBack carries the original input when the send failed, so the
	// caller can restore it for the user to retry.
	RolledBack bool
	Restored   string
}

// Submit sends content optimistically. The routing decision happens here, at
// submit time: an existing live conversation receives a direct message,
// otherwise the content opens a help request. A stale pre-captured route
// would misdirect messages when the conversation state changed between
// render and click.
func (p *Pipeline) Submit(ctx context.Context, content string) (Result, error) {
	clientKey := uuid.NewString()
	conv, hasConv := p.cache.ActiveConversation()

	provisional := models.Message{
		ClientKey: clientKey,
		SenderID:  p.selfID,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if hasConv {
		provisional.ConversationID = conv.ID
		provisional.ReceiverID = conv.Peer(p.selfID)
	}
	p.cache.InsertPending(provisional)

	var (
		ack models.EventFrame
		err error
	)
	if hasConv {
		// Open or still-pending conversation: append to it.
		ack, err = p.transport.Send(ctx, models.ActionSendMessage, models.SendMessagePayload{
			ConversationID: conv.ID,
			ClientKey:      clientKey,
			Content:        content,
		})
	} else {
		ack, err = p.transport.Send(ctx, models.ActionRequestHelp, models.RequestHelpPayload{
			ClientKey: clientKey,
			Content:   content,
		})
	}

	if err != nil {
		restored, _ := p.cache.Rollback(clientKey)
		observability.IncOptimisticSend("rolled_back")
		return Result{RolledBack: true, Restored: restored}, err
	}

	res := Result{Conversation: ack.Conversation}
	if ack.Message != nil {
		res.Message = *ack.Message
		p.cache.Promote(clientKey, *ack.Message)
	} else {
		p.cache.Rollback(clientKey)
	}
	if ack.Conversation != nil {
		p.cache.ApplyConversationEvent(*ack.Conversation)
	}
	observability.IncOptimisticSend("confirmed")
	return res, nil
}

// MarkConversationRead applies the read state locally first, then tells the
// server. The local zero survives even if the server call fails; the next
// poll converges it.
func (p *Pipeline) MarkConversationRead(ctx context.Context, conversationID int) error {
	p.cache.MarkConversationRead(conversationID)
	_, err := p.transport.Send(ctx, models.ActionMarkRead, models.MarkReadPayload{
		ConversationID: conversationID,
	})
	return err
}

// Accept assigns the caller to a pending help request.
func (p *Pipeline) Accept(ctx context.Context, conversationID int) (models.Conversation, error) {
	ack, err := p.transport.Send(ctx, models.ActionAcceptHelp, models.AcceptHelpPayload{
		ConversationID: conversationID,
	})
	if err != nil {
		return models.Conversation{}, err
	}
	if ack.Conversation != nil {
		p.cache.ApplyConversationEvent(*ack.Conversation)
		return *ack.Conversation, nil
	}
	return models.Conversation{}, nil
}

// Transfer hands the conversation to another advisor.
func (p *Pipeline) Transfer(ctx context.Context, conversationID, newAdvisorID int, reason string) (models.Conversation, error) {
	ack, err := p.transport.Send(ctx, models.ActionTransfer, models.TransferPayload{
		ConversationID: conversationID,
		NewAdvisorID:   newAdvisorID,
		Reason:         reason,
	})
	if err != nil {
		return models.Conversation{}, err
	}
	if ack.Conversation != nil {
		p.cache.ApplyConversationEvent(*ack.Conversation)
		return *ack.Conversation, nil
	}
	return models.Conversation{}, nil
}
