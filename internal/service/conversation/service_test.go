package conversation

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"syncbridge-service/internal/domain/agent"
	domain "syncbridge-service/internal/domain/conversation"
	"syncbridge-service/internal/domain/customer"
	xerrors "syncbridge-service/internal/pkg/errors"
	"syncbridge-service/internal/service/contact"

	"go.uber.org/zap"
)

type fakeRepo struct {
	active     map[string]*domain.Conversation
	nextID     int64
	closedIDs  []int64
	agentBusy  bool
	insertSeen bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{active: make(map[string]*domain.Conversation)}
}

func (f *fakeRepo) InsertChatIfAbsent(_ context.Context, c *domain.Conversation) (bool, error) {
	key := c.LiveChatChatID.String
	if existing, ok := f.active[key]; ok {
		*c = *existing
		return false, nil
	}
	f.nextID++
	c.ID = f.nextID
	f.active[key] = c
	f.insertSeen = true
	return true, nil
}

func (f *fakeRepo) InsertCallIfAbsent(_ context.Context, c *domain.Conversation) (bool, error) {
	key := c.RingCentralSessionID.String
	if existing, ok := f.active[key]; ok {
		*c = *existing
		return false, nil
	}
	f.nextID++
	c.ID = f.nextID
	f.active[key] = c
	return true, nil
}

func (f *fakeRepo) FindActiveByChatID(_ context.Context, chatID string) (*domain.Conversation, error) {
	if c, ok := f.active[chatID]; ok {
		return c, nil
	}
	return nil, xerrors.ErrNotFound
}

func (f *fakeRepo) FindByID(_ context.Context, id int64) (*domain.Conversation, error) {
	for _, c := range f.active {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (f *fakeRepo) CloseByChatID(_ context.Context, chatID string, endedAt time.Time) (int64, *domain.Conversation, error) {
	return f.close(chatID, endedAt)
}

func (f *fakeRepo) CloseBySessionID(_ context.Context, sessionID string, endedAt time.Time) (int64, *domain.Conversation, error) {
	return f.close(sessionID, endedAt)
}

func (f *fakeRepo) close(key string, endedAt time.Time) (int64, *domain.Conversation, error) {
	c, ok := f.active[key]
	if !ok {
		return 0, nil, nil
	}
	delete(f.active, key)
	c.Status = domain.StatusEnded
	c.EndedAt = sql.NullTime{Time: endedAt, Valid: true}
	c.DurationSeconds = sql.NullInt64{Int64: int64(endedAt.Sub(c.StartedAt).Seconds()), Valid: true}
	f.closedIDs = append(f.closedIDs, c.ID)
	return 1, c, nil
}

func (f *fakeRepo) HasActiveForAgent(_ context.Context, _ int64) (bool, error) {
	return f.agentBusy, nil
}

type fakeCallRecords struct {
	upserts []*domain.CallRecord
}

func (f *fakeCallRecords) Upsert(_ context.Context, rec *domain.CallRecord) error {
	f.upserts = append(f.upserts, rec)
	return nil
}

func (f *fakeCallRecords) FindByConversation(_ context.Context, conversationID int64) (*domain.CallRecord, error) {
	for _, rec := range f.upserts {
		if rec.ConversationID == conversationID {
			return rec, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

type fakeMessages struct {
	stored []*domain.Message
}

func (f *fakeMessages) Insert(_ context.Context, m *domain.Message) error {
	f.stored = append(f.stored, m)
	return nil
}

func (f *fakeMessages) ListByConversation(_ context.Context, conversationID int64) ([]domain.Message, error) {
	var out []domain.Message
	for _, m := range f.stored {
		if m.ConversationID == conversationID {
			out = append(out, *m)
		}
	}
	return out, nil
}

type fakeMatcher struct {
	customer *customer.Customer
}

func (f *fakeMatcher) FindOrCreate(_ context.Context, p contact.Params) (*customer.Customer, error) {
	return f.customer, nil
}

type fakeAgents struct {
	agent *agent.Agent
}

func (f *fakeAgents) FindByID(_ context.Context, _ int64) (*agent.Agent, error) {
	if f.agent == nil {
		return nil, xerrors.ErrNotFound
	}
	return f.agent, nil
}

func newTestService(repo *fakeRepo, calls *fakeCallRecords, msgs *fakeMessages, matcher *fakeMatcher, agents *fakeAgents) *Service {
	return NewService(repo, calls, msgs, matcher, agents, zap.NewNop())
}

func testAgent() *agent.Agent {
	return &agent.Agent{ID: 1, LiveChatAgentID: "lc-agent", RingCentralExtensionID: "ext-1"}
}

func TestOpenChatIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeCallRecords{}, &fakeMessages{}, &fakeMatcher{}, &fakeAgents{})

	ctx := context.Background()
	first, err := svc.OpenChat(ctx, "chat-1", testAgent(), contact.Params{})
	if err != nil {
		t.Fatalf("OpenChat: %v", err)
	}

	second, err := svc.OpenChat(ctx, "chat-1", testAgent(), contact.Params{})
	if err != nil {
		t.Fatalf("OpenChat repeat: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("repeated open created a new conversation: %d vs %d", first.ID, second.ID)
	}
}

func TestOpenChatAttachesCustomer(t *testing.T) {
	repo := newFakeRepo()
	matcher := &fakeMatcher{customer: &customer.Customer{ID: 77}}
	svc := newTestService(repo, &fakeCallRecords{}, &fakeMessages{}, matcher, &fakeAgents{})

	conv, err := svc.OpenChat(context.Background(), "chat-1", testAgent(), contact.Params{Email: "x@example.com"})
	if err != nil {
		t.Fatalf("OpenChat: %v", err)
	}
	if !conv.CustomerID.Valid || conv.CustomerID.Int64 != 77 {
		t.Errorf("CustomerID = %+v, want 77", conv.CustomerID)
	}
}

func TestOpenCallCreatesCallRecord(t *testing.T) {
	repo := newFakeRepo()
	calls := &fakeCallRecords{}
	svc := newTestService(repo, calls, &fakeMessages{}, &fakeMatcher{}, &fakeAgents{})

	conv, rec, err := svc.OpenCall(context.Background(), "sess-1", testAgent(), domain.DirectionInbound, "+15551234567", "101", "Answered")
	if err != nil {
		t.Fatalf("OpenCall: %v", err)
	}
	if rec.ConversationID != conv.ID {
		t.Errorf("call record conversation %d, want %d", rec.ConversationID, conv.ID)
	}
	if len(calls.upserts) != 1 {
		t.Fatalf("upserted %d call records, want 1", len(calls.upserts))
	}
	if rec.CallStatus != "Answered" || rec.Direction != domain.DirectionInbound {
		t.Errorf("unexpected call record: %+v", rec)
	}
}

func TestCloseChatNoActiveIsNoop(t *testing.T) {
	svc := newTestService(newFakeRepo(), &fakeCallRecords{}, &fakeMessages{}, &fakeMatcher{}, &fakeAgents{})

	affected, conv, err := svc.CloseChat(context.Background(), "chat-unknown")
	if err != nil {
		t.Fatalf("CloseChat: %v", err)
	}
	if affected != 0 || conv != nil {
		t.Errorf("got (%d, %v), want benign no-op", affected, conv)
	}
}

func TestCloseChatComputesDuration(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeCallRecords{}, &fakeMessages{}, &fakeMatcher{}, &fakeAgents{})

	ctx := context.Background()
	conv, err := svc.OpenChat(ctx, "chat-1", testAgent(), contact.Params{})
	if err != nil {
		t.Fatal(err)
	}
	conv.StartedAt = time.Now().UTC().Add(-90 * time.Second)

	affected, closed, err := svc.CloseChat(ctx, "chat-1")
	if err != nil {
		t.Fatalf("CloseChat: %v", err)
	}
	if affected != 1 {
		t.Fatalf("affected = %d, want 1", affected)
	}
	if closed.DurationSeconds.Int64 < 89 || closed.DurationSeconds.Int64 > 91 {
		t.Errorf("DurationSeconds = %d, want ~90", closed.DurationSeconds.Int64)
	}
}

func TestAppendChatMessageClassifiesSender(t *testing.T) {
	repo := newFakeRepo()
	msgs := &fakeMessages{}
	agents := &fakeAgents{agent: testAgent()}
	svc := newTestService(repo, &fakeCallRecords{}, msgs, &fakeMatcher{}, agents)

	ctx := context.Background()
	if _, err := svc.OpenChat(ctx, "chat-1", testAgent(), contact.Params{}); err != nil {
		t.Fatal(err)
	}

	now := time.Now().UTC()
	if err := svc.AppendChatMessage(ctx, "chat-1", "m1", "lc-agent", "hi there", now); err != nil {
		t.Fatal(err)
	}
	if err := svc.AppendChatMessage(ctx, "chat-1", "m2", "cust-9", "hello", now); err != nil {
		t.Fatal(err)
	}

	if len(msgs.stored) != 2 {
		t.Fatalf("stored %d messages, want 2", len(msgs.stored))
	}
	if msgs.stored[0].SenderType != domain.SenderAgent {
		t.Errorf("first message sender = %q, want agent", msgs.stored[0].SenderType)
	}
	if msgs.stored[1].SenderType != domain.SenderCustomer {
		t.Errorf("second message sender = %q, want customer", msgs.stored[1].SenderType)
	}
}

func TestAppendChatMessageUnknownChatDropped(t *testing.T) {
	msgs := &fakeMessages{}
	svc := newTestService(newFakeRepo(), &fakeCallRecords{}, msgs, &fakeMatcher{}, &fakeAgents{})

	err := svc.AppendChatMessage(context.Background(), "chat-x", "m1", "a", "text", time.Now())
	if err != nil {
		t.Fatalf("AppendChatMessage: %v", err)
	}
	if len(msgs.stored) != 0 {
		t.Error("message for unknown chat should be dropped")
	}
}

func TestBuildTranscript(t *testing.T) {
	repo := newFakeRepo()
	msgs := &fakeMessages{}
	agents := &fakeAgents{agent: testAgent()}
	svc := newTestService(repo, &fakeCallRecords{}, msgs, &fakeMatcher{}, agents)

	ctx := context.Background()
	conv, err := svc.OpenChat(ctx, "chat-1", testAgent(), contact.Params{})
	if err != nil {
		t.Fatal(err)
	}

	sentAt := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	if err := svc.AppendChatMessage(ctx, "chat-1", "m1", "cust-9", "I need help", sentAt); err != nil {
		t.Fatal(err)
	}

	transcript, err := svc.BuildTranscript(ctx, conv)
	if err != nil {
		t.Fatalf("BuildTranscript: %v", err)
	}

	if !strings.Contains(transcript, "Chat ID: chat-1") {
		t.Errorf("transcript missing chat id header:\n%s", transcript)
	}
	if !strings.Contains(transcript, "Customer: I need help") {
		t.Errorf("transcript missing message line:\n%s", transcript)
	}
}

func TestBuildCallSummary(t *testing.T) {
	repo := newFakeRepo()
	calls := &fakeCallRecords{}
	svc := newTestService(repo, calls, &fakeMessages{}, &fakeMatcher{}, &fakeAgents{})

	ctx := context.Background()
	conv, _, err := svc.OpenCall(ctx, "sess-1", testAgent(), domain.DirectionInbound, "+15551234567", "101", "Answered")
	if err != nil {
		t.Fatal(err)
	}
	conv.DurationSeconds = sql.NullInt64{Int64: 45, Valid: true}

	summary, err := svc.BuildCallSummary(ctx, conv)
	if err != nil {
		t.Fatalf("BuildCallSummary: %v", err)
	}

	if !strings.Contains(summary, "Direction: inbound") {
		t.Errorf("summary missing direction:\n%s", summary)
	}
	if !strings.Contains(summary, "Duration: 45s") {
		t.Errorf("summary missing duration:\n%s", summary)
	}
	if !strings.Contains(summary, "From: +15551234567") {
		t.Errorf("summary missing from number:\n%s", summary)
	}
}
