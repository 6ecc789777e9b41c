// Package reporting serves the read-only monitoring API: agent states,
// conversation history and sync health.
package reporting

import (
	"context"
	"errors"
	"time"

	"syncbridge-service/internal/domain/agent"
	"syncbridge-service/internal/domain/conversation"
	"syncbridge-service/internal/domain/customer"
	"syncbridge-service/internal/domain/synclog"
	xerrors "syncbridge-service/internal/pkg/errors"

	"go.uber.org/zap"
)

type Agents interface {
	List(ctx context.Context) ([]agent.Agent, error)
	FindByID(ctx context.Context, id int64) (*agent.Agent, error)
	Count(ctx context.Context) (int64, error)
}

type Presence interface {
	LatestForAgent(ctx context.Context, agentID int64) (*agent.PresenceRecord, error)
	HistoryForAgent(ctx context.Context, agentID int64, limit int) ([]agent.PresenceRecord, error)
}

type Conversations interface {
	List(ctx context.Context, limit, offset int) ([]conversation.Conversation, int64, error)
	FindByID(ctx context.Context, id int64) (*conversation.Conversation, error)
	CountActive(ctx context.Context) (int64, error)
	CountStartedSince(ctx context.Context, t time.Time) (int64, error)
	CountAll(ctx context.Context) (int64, error)
}

type Messages interface {
	ListByConversation(ctx context.Context, conversationID int64) ([]conversation.Message, error)
	CountByConversation(ctx context.Context, conversationID int64) (int64, error)
}

type CallRecords interface {
	FindByConversation(ctx context.Context, conversationID int64) (*conversation.CallRecord, error)
}

type Customers interface {
	FindByID(ctx context.Context, id int64) (*customer.Customer, error)
}

type SyncLogs interface {
	List(ctx context.Context, limit, offset int) ([]synclog.Entry, int64, error)
	CountByStatus(ctx context.Context, status string) (int64, error)
	CountAll(ctx context.Context) (int64, error)
	Latest(ctx context.Context) (*synclog.Entry, error)
}

// AgentState is one agent with its current presence attached.
type AgentState struct {
	Agent   agent.Agent           `json:"agent"`
	Current *agent.PresenceRecord `json:"current_state,omitempty"`
}

// ConversationDetail is a conversation with its related records resolved.
type ConversationDetail struct {
	Conversation conversation.Conversation `json:"conversation"`
	Customer     *customer.Customer        `json:"customer,omitempty"`
	CallRecord   *conversation.CallRecord  `json:"call_record,omitempty"`
	MessageCount int64                     `json:"message_count"`
	Messages     []conversation.Message    `json:"messages,omitempty"`
}

// Stats is the dashboard snapshot.
type Stats struct {
	TotalAgents         int64      `json:"total_agents"`
	AgentsAvailable     int64      `json:"agents_available"`
	AgentsBusy          int64      `json:"agents_busy"`
	ActiveConversations int64      `json:"active_conversations"`
	ConversationsToday  int64      `json:"conversations_today"`
	ConversationsTotal  int64      `json:"conversations_total"`
	SyncTotal           int64      `json:"sync_total"`
	SyncFailed          int64      `json:"sync_failed"`
	SyncSuccessRate     float64    `json:"sync_success_rate"`
	LastSyncAt          *time.Time `json:"last_sync_at,omitempty"`
}

type Service struct {
	agents        Agents
	presence      Presence
	conversations Conversations
	messages      Messages
	callRecords   CallRecords
	customers     Customers
	syncLogs      SyncLogs
	logger        *zap.Logger
}

func NewService(agents Agents, presence Presence, conversations Conversations, messages Messages, callRecords CallRecords, customers Customers, syncLogs SyncLogs, logger *zap.Logger) *Service {
	return &Service{
		agents:        agents,
		presence:      presence,
		conversations: conversations,
		messages:      messages,
		callRecords:   callRecords,
		customers:     customers,
		syncLogs:      syncLogs,
		logger:        logger,
	}
}

// ListAgentStates returns every agent with its current presence. Agents with
// no presence history yet report a nil current state.
func (s *Service) ListAgentStates(ctx context.Context) ([]AgentState, error) {
	agents, err := s.agents.List(ctx)
	if err != nil {
		return nil, err
	}

	states := make([]AgentState, 0, len(agents))
	for _, a := range agents {
		st := AgentState{Agent: a}
		rec, err := s.presence.LatestForAgent(ctx, a.ID)
		if err == nil {
			st.Current = rec
		} else if !errors.Is(err, xerrors.ErrNotFound) {
			return nil, err
		}
		states = append(states, st)
	}

	return states, nil
}

// AgentState returns one agent with its current presence.
func (s *Service) AgentState(ctx context.Context, agentID int64) (*AgentState, error) {
	a, err := s.agents.FindByID(ctx, agentID)
	if err != nil {
		return nil, err
	}

	st := &AgentState{Agent: *a}
	rec, err := s.presence.LatestForAgent(ctx, agentID)
	if err == nil {
		st.Current = rec
	} else if !errors.Is(err, xerrors.ErrNotFound) {
		return nil, err
	}

	return st, nil
}

// AgentHistory returns the recent presence log for an agent, newest first.
func (s *Service) AgentHistory(ctx context.Context, agentID int64, limit int) ([]agent.PresenceRecord, error) {
	if _, err := s.agents.FindByID(ctx, agentID); err != nil {
		return nil, err
	}
	return s.presence.HistoryForAgent(ctx, agentID, limit)
}

// ListConversations returns paginated conversations with message counts.
func (s *Service) ListConversations(ctx context.Context, limit, offset int) ([]ConversationDetail, int64, error) {
	convs, total, err := s.conversations.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	details := make([]ConversationDetail, 0, len(convs))
	for _, c := range convs {
		n, err := s.messages.CountByConversation(ctx, c.ID)
		if err != nil {
			return nil, 0, err
		}
		details = append(details, ConversationDetail{Conversation: c, MessageCount: n})
	}

	return details, total, nil
}

// ConversationDetail returns one conversation with its messages, customer and
// call record resolved.
func (s *Service) ConversationDetail(ctx context.Context, id int64) (*ConversationDetail, error) {
	conv, err := s.conversations.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	d := &ConversationDetail{Conversation: *conv}

	msgs, err := s.messages.ListByConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Messages = msgs
	d.MessageCount = int64(len(msgs))

	if conv.CustomerID.Valid {
		cust, err := s.customers.FindByID(ctx, conv.CustomerID.Int64)
		if err == nil {
			d.Customer = cust
		} else if !errors.Is(err, xerrors.ErrNotFound) {
			return nil, err
		}
	}

	if conv.ConversationType == conversation.TypeCall {
		rec, err := s.callRecords.FindByConversation(ctx, id)
		if err == nil {
			d.CallRecord = rec
		} else if !errors.Is(err, xerrors.ErrNotFound) {
			return nil, err
		}
	}

	return d, nil
}

// ListSyncLogs returns paginated sync log entries, newest first.
func (s *Service) ListSyncLogs(ctx context.Context, limit, offset int) ([]synclog.Entry, int64, error) {
	return s.syncLogs.List(ctx, limit, offset)
}

// Stats assembles the dashboard snapshot.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	var err error

	if st.TotalAgents, err = s.agents.Count(ctx); err != nil {
		return nil, err
	}

	agents, err := s.agents.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range agents {
		rec, err := s.presence.LatestForAgent(ctx, a.ID)
		if errors.Is(err, xerrors.ErrNotFound) {
			st.AgentsAvailable++
			continue
		}
		if err != nil {
			return nil, err
		}
		if rec.RingCentralPresence == agent.PresenceBusy {
			st.AgentsBusy++
		} else {
			st.AgentsAvailable++
		}
	}

	if st.ActiveConversations, err = s.conversations.CountActive(ctx); err != nil {
		return nil, err
	}

	midnight := time.Now().UTC().Truncate(24 * time.Hour)
	if st.ConversationsToday, err = s.conversations.CountStartedSince(ctx, midnight); err != nil {
		return nil, err
	}
	if st.ConversationsTotal, err = s.conversations.CountAll(ctx); err != nil {
		return nil, err
	}

	if st.SyncTotal, err = s.syncLogs.CountAll(ctx); err != nil {
		return nil, err
	}
	if st.SyncFailed, err = s.syncLogs.CountByStatus(ctx, synclog.StatusFailed); err != nil {
		return nil, err
	}
	if st.SyncTotal > 0 {
		st.SyncSuccessRate = float64(st.SyncTotal-st.SyncFailed) / float64(st.SyncTotal)
	}

	latest, err := s.syncLogs.Latest(ctx)
	if err == nil {
		st.LastSyncAt = &latest.CreatedAt
	} else if !errors.Is(err, xerrors.ErrNotFound) {
		return nil, err
	}

	return &st, nil
}
