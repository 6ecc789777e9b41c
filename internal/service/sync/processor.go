// Package sync orchestrates one webhook event end to end: agent resolution,
// conversation mutation, presence transition, and post-close note pushes.
package sync

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"syncbridge-service/internal/domain/agent"
	domain "syncbridge-service/internal/domain/conversation"
	"syncbridge-service/internal/domain/customer"
	"syncbridge-service/internal/domain/synclog"
	"syncbridge-service/internal/domain/webhook"
	"syncbridge-service/internal/service/contact"

	"go.uber.org/zap"
)

// Agents resolves platform agent keys to internal identities.
type Agents interface {
	FindByLiveChatID(ctx context.Context, livechatAgentID string) (*agent.Agent, error)
	FindByExtensionID(ctx context.Context, extensionID string) (*agent.Agent, error)
}

// Conversations is the conversation store the processor drives.
type Conversations interface {
	OpenChat(ctx context.Context, chatID string, ag *agent.Agent, cust contact.Params) (*domain.Conversation, error)
	OpenCall(ctx context.Context, sessionID string, ag *agent.Agent, direction, fromNumber, toNumber, callStatus string) (*domain.Conversation, *domain.CallRecord, error)
	CloseChat(ctx context.Context, chatID string) (int64, *domain.Conversation, error)
	CloseCall(ctx context.Context, sessionID string) (int64, *domain.Conversation, error)
	AppendChatMessage(ctx context.Context, chatID, externalMessageID, authorID, text string, sentAt time.Time) error
	BuildTranscript(ctx context.Context, conv *domain.Conversation) (string, error)
	BuildCallSummary(ctx context.Context, conv *domain.Conversation) (string, error)
}

// Presence applies agent state transitions.
type Presence interface {
	SetBusyOnChat(ctx context.Context, ag *agent.Agent) error
	SetBusyOnCall(ctx context.Context, ag *agent.Agent) error
	SetAvailableIfIdle(ctx context.Context, ag *agent.Agent, sourcePlatform string) error
}

// Ledger finalizes the idempotency record once an event is fully handled.
type Ledger interface {
	MarkProcessed(ctx context.Context, webhookID string) error
	IncrementRetry(ctx context.Context, webhookID string) error
}

// Customers looks up the stored customer for note targeting.
type Customers interface {
	FindByID(ctx context.Context, id int64) (*customer.Customer, error)
}

// NoteSink pushes conversation artifacts to the opposite platform.
type NoteSink interface {
	CreateNote(ctx context.Context, title, body string) error
}

// CustomerNoteSink pushes notes to the chat platform's customer timeline.
type CustomerNoteSink interface {
	CreateCustomerNote(ctx context.Context, customerID, title, text string) error
}

// SyncLogs records note-push outcomes.
type SyncLogs interface {
	Insert(ctx context.Context, e *synclog.Entry) error
}

type Processor struct {
	agents        Agents
	conversations Conversations
	presence      Presence
	ledger        Ledger
	customers     Customers
	rcNotes       NoteSink
	lcNotes       CustomerNoteSink
	syncLogs      SyncLogs
	logger        *zap.Logger
}

func NewProcessor(agents Agents, conversations Conversations, presence Presence, ledger Ledger, customers Customers, rcNotes NoteSink, lcNotes CustomerNoteSink, syncLogs SyncLogs, logger *zap.Logger) *Processor {
	return &Processor{
		agents:        agents,
		conversations: conversations,
		presence:      presence,
		ledger:        ledger,
		customers:     customers,
		rcNotes:       rcNotes,
		lcNotes:       lcNotes,
		syncLogs:      syncLogs,
		logger:        logger,
	}
}

// Process applies one normalized event. On success the ledger entry is marked
// processed; on error it is left unprocessed (retry counter bumped) so a
// platform redelivery can try again.
func (p *Processor) Process(ctx context.Context, webhookID string, ev webhook.Event) error {
	if ev.Kind == webhook.KindNone {
		return p.ledger.MarkProcessed(ctx, webhookID)
	}

	if err := p.handle(ctx, ev); err != nil {
		if rerr := p.ledger.IncrementRetry(ctx, webhookID); rerr != nil {
			p.logger.Error("failed to bump retry count", zap.Error(rerr))
		}
		p.logger.Error("webhook processing failed",
			zap.String("webhook_id", webhookID),
			zap.String("kind", string(ev.Kind)),
			zap.Error(err),
		)
		return err
	}

	return p.ledger.MarkProcessed(ctx, webhookID)
}

// ProcessMessage stores one chat message. Messages never change presence;
// they only extend the transcript.
func (p *Processor) ProcessMessage(ctx context.Context, webhookID, chatID, externalMessageID, authorID, text string, sentAt time.Time) error {
	if err := p.conversations.AppendChatMessage(ctx, chatID, externalMessageID, authorID, text, sentAt); err != nil {
		if rerr := p.ledger.IncrementRetry(ctx, webhookID); rerr != nil {
			p.logger.Error("failed to bump retry count", zap.Error(rerr))
		}
		return err
	}
	return p.ledger.MarkProcessed(ctx, webhookID)
}

func (p *Processor) handle(ctx context.Context, ev webhook.Event) error {
	ag, err := p.resolveAgent(ctx, ev)
	if err != nil {
		return err
	}

	switch ev.Kind {
	case webhook.KindChatStarted:
		return p.chatStarted(ctx, ev, ag)
	case webhook.KindChatEnded:
		return p.chatEnded(ctx, ev, ag)
	case webhook.KindCallStarted:
		return p.callStarted(ctx, ev, ag)
	case webhook.KindCallEnded:
		return p.callEnded(ctx, ev, ag)
	default:
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}
}

func (p *Processor) resolveAgent(ctx context.Context, ev webhook.Event) (*agent.Agent, error) {
	var (
		ag  *agent.Agent
		err error
	)
	if ev.Platform == "livechat" {
		ag, err = p.agents.FindByLiveChatID(ctx, ev.AgentKey)
	} else {
		ag, err = p.agents.FindByExtensionID(ctx, ev.AgentKey)
	}
	if err != nil {
		return nil, fmt.Errorf("agent mapping for %s key %q: %w", ev.Platform, ev.AgentKey, err)
	}
	return ag, nil
}

func (p *Processor) chatStarted(ctx context.Context, ev webhook.Event, ag *agent.Agent) error {
	_, err := p.conversations.OpenChat(ctx, ev.ChatID, ag, contact.Params{
		LiveChatCustomerID: ev.LiveChatCustomerID,
		Email:              ev.CustomerEmail,
		Name:               ev.CustomerName,
	})
	if err != nil {
		return err
	}

	return p.presence.SetBusyOnChat(ctx, ag)
}

func (p *Processor) chatEnded(ctx context.Context, ev webhook.Event, ag *agent.Agent) error {
	affected, conv, err := p.conversations.CloseChat(ctx, ev.ChatID)
	if err != nil {
		return err
	}

	// Nothing closed means the chat was unknown or already ended; the
	// agent's presence must not change on a stale redelivery.
	if affected == 0 {
		p.logger.Info("chat end matched no active conversation",
			zap.String("chat_id", ev.ChatID),
		)
		return nil
	}

	p.pushTranscript(ctx, conv)
	return p.presence.SetAvailableIfIdle(ctx, ag, "livechat")
}

func (p *Processor) callStarted(ctx context.Context, ev webhook.Event, ag *agent.Agent) error {
	_, _, err := p.conversations.OpenCall(ctx, ev.SessionID, ag, ev.Direction, ev.FromNumber, ev.ToNumber, ev.CallStatus)
	if err != nil {
		return err
	}

	return p.presence.SetBusyOnCall(ctx, ag)
}

func (p *Processor) callEnded(ctx context.Context, ev webhook.Event, ag *agent.Agent) error {
	affected, conv, err := p.conversations.CloseCall(ctx, ev.SessionID)
	if err != nil {
		return err
	}

	if affected == 0 {
		p.logger.Info("call end matched no active conversation",
			zap.String("session_id", ev.SessionID),
		)
		return nil
	}

	p.pushCallSummary(ctx, conv)
	return p.presence.SetAvailableIfIdle(ctx, ag, "ringcentral")
}

// pushTranscript sends the chat transcript to the telephony platform as a
// note. Best-effort: the conversation is already closed locally.
func (p *Processor) pushTranscript(ctx context.Context, conv *domain.Conversation) {
	body, err := p.conversations.BuildTranscript(ctx, conv)
	if err != nil {
		p.logger.Warn("failed to build transcript", zap.Int64("conversation_id", conv.ID), zap.Error(err))
		return
	}

	title := "LiveChat Transcript " + conv.ExternalID()
	err = p.rcNotes.CreateNote(ctx, title, body)
	p.recordNoteSync(ctx, conv, synclog.OpTranscriptSync, "livechat", "ringcentral", err)
}

// pushCallSummary sends the call summary to the chat platform's customer
// timeline. Skipped when no matched customer with a chat-side identity exists.
func (p *Processor) pushCallSummary(ctx context.Context, conv *domain.Conversation) {
	if !conv.CustomerID.Valid {
		p.logger.Info("call summary skipped, no matched customer",
			zap.Int64("conversation_id", conv.ID),
		)
		return
	}

	cust, err := p.customers.FindByID(ctx, conv.CustomerID.Int64)
	if err != nil || !cust.LiveChatCustomerID.Valid {
		p.logger.Info("call summary skipped, customer has no chat identity",
			zap.Int64("conversation_id", conv.ID),
		)
		return
	}

	body, err := p.conversations.BuildCallSummary(ctx, conv)
	if err != nil {
		p.logger.Warn("failed to build call summary", zap.Int64("conversation_id", conv.ID), zap.Error(err))
		return
	}

	title := "Call Summary " + conv.ExternalID()
	err = p.lcNotes.CreateCustomerNote(ctx, cust.LiveChatCustomerID.String, title, body)
	p.recordNoteSync(ctx, conv, synclog.OpCallSummary, "ringcentral", "livechat", err)
}

func (p *Processor) recordNoteSync(ctx context.Context, conv *domain.Conversation, op, source, target string, pushErr error) {
	entry := &synclog.Entry{
		OperationType:  op,
		SourcePlatform: source,
		TargetPlatform: sql.NullString{String: target, Valid: true},
		Status:         synclog.StatusSuccess,
		AgentID:        sql.NullInt64{Int64: conv.AgentID, Valid: true},
		ConversationID: sql.NullInt64{Int64: conv.ID, Valid: true},
	}
	if pushErr != nil {
		entry.Status = synclog.StatusFailed
		entry.ErrorMessage = sql.NullString{String: pushErr.Error(), Valid: true}
		p.logger.Warn("note push failed",
			zap.String("operation", op),
			zap.Int64("conversation_id", conv.ID),
			zap.Error(pushErr),
		)
	}

	if err := p.syncLogs.Insert(ctx, entry); err != nil {
		p.logger.Error("failed to write sync log entry", zap.Error(err))
	}
}
