// Package presence applies cross-platform agent state transitions. The local
// presence log is always written; remote pushes are best-effort and their
// outcomes land in the sync log.
package presence

import (
	"context"
	"database/sql"
	"time"

	"syncbridge-service/internal/domain/agent"
	"syncbridge-service/internal/domain/synclog"

	"go.uber.org/zap"
)

// Records is the append-only presence log.
type Records interface {
	Insert(ctx context.Context, rec *agent.PresenceRecord) error
	LatestForAgent(ctx context.Context, agentID int64) (*agent.PresenceRecord, error)
}

// SyncLogs records the outcome of every remote push.
type SyncLogs interface {
	Insert(ctx context.Context, e *synclog.Entry) error
}

// ActivityChecker reports whether an agent still owns active conversations.
type ActivityChecker interface {
	HasOtherActive(ctx context.Context, agentID int64) (bool, error)
}

// LiveChatGateway pushes routing status to the chat platform.
type LiveChatGateway interface {
	SetAgentStatus(ctx context.Context, agentID, status string) error
}

// RingCentralGateway pushes presence to the telephony platform.
type RingCentralGateway interface {
	SetUserPresence(ctx context.Context, extensionID, status string) error
}

// Broadcaster fans presence changes out to connected dashboards. May be nil.
type Broadcaster interface {
	BroadcastPresence(ag *agent.Agent, rec *agent.PresenceRecord)
}

type Service struct {
	records     Records
	syncLogs    SyncLogs
	activity    ActivityChecker
	livechat    LiveChatGateway
	ringcentral RingCentralGateway
	broadcaster Broadcaster
	logger      *zap.Logger
}

func NewService(records Records, syncLogs SyncLogs, activity ActivityChecker, lc LiveChatGateway, rc RingCentralGateway, broadcaster Broadcaster, logger *zap.Logger) *Service {
	return &Service{
		records:     records,
		syncLogs:    syncLogs,
		activity:    activity,
		livechat:    lc,
		ringcentral: rc,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// SetBusyOnChat marks the agent busy because a chat started. Busy transitions
// are unconditional: if the agent is already busy for another reason the new
// record supersedes it.
func (s *Service) SetBusyOnChat(ctx context.Context, ag *agent.Agent) error {
	return s.apply(ctx, ag, agent.StatusNotAcceptingChats, agent.PresenceBusy, agent.ReasonChatting, "livechat")
}

// SetBusyOnCall marks the agent busy because a call started.
func (s *Service) SetBusyOnCall(ctx context.Context, ag *agent.Agent) error {
	return s.apply(ctx, ag, agent.StatusNotAcceptingChats, agent.PresenceBusy, agent.ReasonOnCall, "ringcentral")
}

// SetAvailableIfIdle returns the agent to available, but only when no other
// conversation is still active. An agent on a chat and a call who finishes
// one of them stays busy.
func (s *Service) SetAvailableIfIdle(ctx context.Context, ag *agent.Agent, sourcePlatform string) error {
	busy, err := s.activity.HasOtherActive(ctx, ag.ID)
	if err != nil {
		return err
	}
	if busy {
		s.logger.Info("agent still has active conversations, staying busy",
			zap.Int64("agent_id", ag.ID),
		)
		return nil
	}

	return s.apply(ctx, ag, agent.StatusAcceptingChats, agent.PresenceAvailable, agent.ReasonAvailable, sourcePlatform)
}

// apply commits the presence record locally, then pushes the state to both
// platforms. Remote failures are logged to the sync log and do not roll back
// the local record.
func (s *Service) apply(ctx context.Context, ag *agent.Agent, lcStatus, rcPresence, reason, sourcePlatform string) error {
	rec := &agent.PresenceRecord{
		AgentID:             ag.ID,
		LiveChatStatus:      lcStatus,
		RingCentralPresence: rcPresence,
		Reason:              sql.NullString{String: reason, Valid: true},
		StateChangedAt:      time.Now().UTC(),
	}
	if err := s.records.Insert(ctx, rec); err != nil {
		return err
	}

	s.logger.Info("agent presence changed",
		zap.Int64("agent_id", ag.ID),
		zap.String("livechat_status", lcStatus),
		zap.String("ringcentral_presence", rcPresence),
		zap.String("reason", reason),
	)

	// Both platforms are pushed independently, including the one that
	// originated the event, so each push leaves its own sync log row.
	s.pushLiveChat(ctx, ag, lcStatus, sourcePlatform)
	s.pushRingCentral(ctx, ag, rcPresence, sourcePlatform)

	if s.broadcaster != nil {
		s.broadcaster.BroadcastPresence(ag, rec)
	}

	return nil
}

func (s *Service) pushLiveChat(ctx context.Context, ag *agent.Agent, status, sourcePlatform string) {
	err := s.livechat.SetAgentStatus(ctx, ag.LiveChatAgentID, status)
	s.recordSync(ctx, ag.ID, sourcePlatform, "livechat", err)
	if err != nil {
		s.logger.Warn("livechat status push failed",
			zap.Int64("agent_id", ag.ID),
			zap.Error(err),
		)
	}
}

func (s *Service) pushRingCentral(ctx context.Context, ag *agent.Agent, presence, sourcePlatform string) {
	err := s.ringcentral.SetUserPresence(ctx, ag.RingCentralExtensionID, presence)
	s.recordSync(ctx, ag.ID, sourcePlatform, "ringcentral", err)
	if err != nil {
		s.logger.Warn("ringcentral presence push failed",
			zap.Int64("agent_id", ag.ID),
			zap.Error(err),
		)
	}
}

func (s *Service) recordSync(ctx context.Context, agentID int64, source, target string, pushErr error) {
	entry := &synclog.Entry{
		OperationType:  synclog.OpAgentStateSync,
		SourcePlatform: source,
		TargetPlatform: sql.NullString{String: target, Valid: true},
		Status:         synclog.StatusSuccess,
		AgentID:        sql.NullInt64{Int64: agentID, Valid: true},
	}
	if pushErr != nil {
		entry.Status = synclog.StatusFailed
		entry.ErrorMessage = sql.NullString{String: pushErr.Error(), Valid: true}
	}

	if err := s.syncLogs.Insert(ctx, entry); err != nil {
		s.logger.Error("failed to write sync log entry", zap.Error(err))
	}
}

// Current returns the agent's latest presence record.
func (s *Service) Current(ctx context.Context, agentID int64) (*agent.PresenceRecord, error) {
	return s.records.LatestForAgent(ctx, agentID)
}
