// Package conversation owns the unified conversation, message and call
// records.
package conversation

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"syncbridge-service/internal/domain/agent"
	domain "syncbridge-service/internal/domain/conversation"
	"syncbridge-service/internal/domain/customer"
	"syncbridge-service/internal/service/contact"

	"go.uber.org/zap"
)

// Repository is the conversation persistence the service needs.
type Repository interface {
	InsertChatIfAbsent(ctx context.Context, c *domain.Conversation) (bool, error)
	InsertCallIfAbsent(ctx context.Context, c *domain.Conversation) (bool, error)
	FindActiveByChatID(ctx context.Context, chatID string) (*domain.Conversation, error)
	FindByID(ctx context.Context, id int64) (*domain.Conversation, error)
	CloseByChatID(ctx context.Context, chatID string, endedAt time.Time) (int64, *domain.Conversation, error)
	CloseBySessionID(ctx context.Context, sessionID string, endedAt time.Time) (int64, *domain.Conversation, error)
	HasActiveForAgent(ctx context.Context, agentID int64) (bool, error)
}

// CallRecords is the call-record persistence.
type CallRecords interface {
	Upsert(ctx context.Context, rec *domain.CallRecord) error
	FindByConversation(ctx context.Context, conversationID int64) (*domain.CallRecord, error)
}

// Messages is the message persistence.
type Messages interface {
	Insert(ctx context.Context, m *domain.Message) error
	ListByConversation(ctx context.Context, conversationID int64) ([]domain.Message, error)
}

// CustomerMatcher resolves counterparty info to a customer record.
type CustomerMatcher interface {
	FindOrCreate(ctx context.Context, p contact.Params) (*customer.Customer, error)
}

// AgentDirectory resolves conversation owners for sender classification.
type AgentDirectory interface {
	FindByID(ctx context.Context, id int64) (*agent.Agent, error)
}

type Service struct {
	repo        Repository
	callRecords CallRecords
	messages    Messages
	matcher     CustomerMatcher
	agents      AgentDirectory
	logger      *zap.Logger
}

func NewService(repo Repository, callRecords CallRecords, messages Messages, matcher CustomerMatcher, agents AgentDirectory, logger *zap.Logger) *Service {
	return &Service{
		repo:        repo,
		callRecords: callRecords,
		messages:    messages,
		matcher:     matcher,
		agents:      agents,
		logger:      logger,
	}
}

// OpenChat creates the active chat conversation for a chat id, or returns the
// existing one unchanged. The idempotency ledger only guarantees the event is
// new; a crashed prior attempt may already have created this row.
func (s *Service) OpenChat(ctx context.Context, chatID string, ag *agent.Agent, cust contact.Params) (*domain.Conversation, error) {
	var customerID sql.NullInt64
	c, err := s.matcher.FindOrCreate(ctx, cust)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve customer: %w", err)
	}
	if c != nil {
		customerID = sql.NullInt64{Int64: c.ID, Valid: true}
	}

	conv := &domain.Conversation{
		ConversationType: domain.TypeChat,
		Platform:         domain.PlatformLiveChat,
		LiveChatChatID:   sql.NullString{String: chatID, Valid: true},
		AgentID:          ag.ID,
		CustomerID:       customerID,
		StartedAt:        time.Now().UTC(),
		Status:           domain.StatusActive,
	}

	created, err := s.repo.InsertChatIfAbsent(ctx, conv)
	if err != nil {
		return nil, fmt.Errorf("failed to open chat conversation: %w", err)
	}

	if created {
		s.logger.Info("chat conversation created",
			zap.Int64("conversation_id", conv.ID),
			zap.String("chat_id", chatID),
		)
	}

	return conv, nil
}

// OpenCall creates the active call conversation plus its call record for a
// session id, idempotently. Re-delivery with a later leg status only updates
// the stored call status.
func (s *Service) OpenCall(ctx context.Context, sessionID string, ag *agent.Agent, direction, fromNumber, toNumber, callStatus string) (*domain.Conversation, *domain.CallRecord, error) {
	// The counterparty number is the remote end of the leg.
	phone := fromNumber
	if direction == domain.DirectionOutbound {
		phone = toNumber
	}

	var customerID sql.NullInt64
	c, err := s.matcher.FindOrCreate(ctx, contact.Params{Phone: phone})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve customer: %w", err)
	}
	if c != nil {
		customerID = sql.NullInt64{Int64: c.ID, Valid: true}
	}

	conv := &domain.Conversation{
		ConversationType:     domain.TypeCall,
		Platform:             domain.PlatformRingCentral,
		RingCentralSessionID: sql.NullString{String: sessionID, Valid: true},
		AgentID:              ag.ID,
		CustomerID:           customerID,
		StartedAt:            time.Now().UTC(),
		Status:               domain.StatusActive,
	}

	created, err := s.repo.InsertCallIfAbsent(ctx, conv)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open call conversation: %w", err)
	}

	rec := &domain.CallRecord{
		ConversationID: conv.ID,
		SessionID:      sessionID,
		Direction:      direction,
		FromNumber:     sql.NullString{String: fromNumber, Valid: fromNumber != ""},
		ToNumber:       sql.NullString{String: toNumber, Valid: toNumber != ""},
		CallStatus:     callStatus,
	}
	if err := s.callRecords.Upsert(ctx, rec); err != nil {
		return nil, nil, fmt.Errorf("failed to upsert call record: %w", err)
	}

	if created {
		s.logger.Info("call conversation created",
			zap.Int64("conversation_id", conv.ID),
			zap.String("session_id", sessionID),
		)
	}

	return conv, rec, nil
}

// CloseChat ends the active conversation for a chat id. Zero affected rows
// (already closed, or never opened) is a benign no-op.
func (s *Service) CloseChat(ctx context.Context, chatID string) (int64, *domain.Conversation, error) {
	affected, conv, err := s.repo.CloseByChatID(ctx, chatID, time.Now().UTC())
	if err != nil {
		return 0, nil, err
	}
	if affected == 0 {
		s.logger.Info("no active conversation to close", zap.String("chat_id", chatID))
		return 0, nil, nil
	}

	s.logger.Info("conversation closed",
		zap.Int64("conversation_id", conv.ID),
		zap.Int64("duration_seconds", conv.DurationSeconds.Int64),
	)
	return affected, conv, nil
}

// CloseCall ends the active conversation for a telephony session id.
func (s *Service) CloseCall(ctx context.Context, sessionID string) (int64, *domain.Conversation, error) {
	affected, conv, err := s.repo.CloseBySessionID(ctx, sessionID, time.Now().UTC())
	if err != nil {
		return 0, nil, err
	}
	if affected == 0 {
		s.logger.Info("no active conversation to close", zap.String("session_id", sessionID))
		return 0, nil, nil
	}

	s.logger.Info("conversation closed",
		zap.Int64("conversation_id", conv.ID),
		zap.Int64("duration_seconds", conv.DurationSeconds.Int64),
	)
	return affected, conv, nil
}

// HasOtherActive reports whether the agent still owns any active
// conversation. The presence synchronizer uses this to decide whether the
// available transition may be applied.
func (s *Service) HasOtherActive(ctx context.Context, agentID int64) (bool, error) {
	return s.repo.HasActiveForAgent(ctx, agentID)
}

// AppendChatMessage stores one chat message against the active conversation
// for its chat id. A message for an unknown or closed chat is acknowledged
// and dropped.
func (s *Service) AppendChatMessage(ctx context.Context, chatID, externalMessageID, authorID, text string, sentAt time.Time) error {
	conv, err := s.repo.FindActiveByChatID(ctx, chatID)
	if err != nil {
		s.logger.Info("message for unknown chat dropped", zap.String("chat_id", chatID))
		return nil
	}

	senderType := domain.SenderCustomer
	if authorID != "" {
		if ag, err := s.agents.FindByID(ctx, conv.AgentID); err == nil && ag.LiveChatAgentID == authorID {
			senderType = domain.SenderAgent
		}
	}

	m := &domain.Message{
		ConversationID:    conv.ID,
		ExternalMessageID: sql.NullString{String: externalMessageID, Valid: externalMessageID != ""},
		SenderType:        senderType,
		SenderID:          sql.NullString{String: authorID, Valid: authorID != ""},
		MessageText:       text,
		MessageType:       "text",
		SentAt:            sentAt,
	}

	return s.messages.Insert(ctx, m)
}

// BuildTranscript renders the stored messages of a chat conversation into the
// note body pushed to the telephony platform after the chat ends.
func (s *Service) BuildTranscript(ctx context.Context, conv *domain.Conversation) (string, error) {
	messages, err := s.messages.ListByConversation(ctx, conv.ID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "LiveChat Transcript - Chat ID: %s\n", conv.LiveChatChatID.String)
	fmt.Fprintf(&b, "Started: %s\n", conv.StartedAt.Format(time.RFC3339))
	if conv.EndedAt.Valid {
		fmt.Fprintf(&b, "Ended: %s\n", conv.EndedAt.Time.Format(time.RFC3339))
	}
	b.WriteString("\n")

	for _, m := range messages {
		sender := strings.ToUpper(m.SenderType[:1]) + m.SenderType[1:]
		fmt.Fprintf(&b, "[%s] %s: %s\n", m.SentAt.Format(time.RFC3339), sender, m.MessageText)
	}

	return b.String(), nil
}

// BuildCallSummary renders the call metadata note pushed to the live-chat
// platform after a call ends.
func (s *Service) BuildCallSummary(ctx context.Context, conv *domain.Conversation) (string, error) {
	rec, err := s.callRecords.FindByConversation(ctx, conv.ID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("RingCentral Call Summary\n")
	fmt.Fprintf(&b, "Direction: %s\n", rec.Direction)
	fmt.Fprintf(&b, "From: %s\n", rec.FromNumber.String)
	fmt.Fprintf(&b, "To: %s\n", rec.ToNumber.String)
	fmt.Fprintf(&b, "Duration: %ds\n", conv.DurationSeconds.Int64)
	fmt.Fprintf(&b, "Started: %s\n", conv.StartedAt.Format(time.RFC3339))
	if conv.EndedAt.Valid {
		fmt.Fprintf(&b, "Ended: %s\n", conv.EndedAt.Time.Format(time.RFC3339))
	}

	return b.String(), nil
}
