package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "syncbridge-service/internal/domain/webhook"
	xerrors "syncbridge-service/internal/pkg/errors"
	"syncbridge-service/internal/pkg/signature"
	"syncbridge-service/internal/platform/livechat"
	"syncbridge-service/internal/platform/ringcentral"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type fakeDeduper struct {
	seen      map[string]*domain.Record
	processed []string
}

func newFakeDeduper() *fakeDeduper {
	return &fakeDeduper{seen: make(map[string]*domain.Record)}
}

func (f *fakeDeduper) CheckAndRecord(_ context.Context, webhookID, platform, eventType string, payload []byte) (bool, *domain.Record, error) {
	if rec, ok := f.seen[webhookID]; ok {
		return true, rec, nil
	}
	rec := &domain.Record{WebhookID: webhookID, Platform: platform, EventType: eventType}
	f.seen[webhookID] = rec
	return false, rec, nil
}

func (f *fakeDeduper) MarkProcessed(_ context.Context, webhookID string) error {
	f.processed = append(f.processed, webhookID)
	if rec, ok := f.seen[webhookID]; ok {
		rec.Processed = true
	}
	return nil
}

type fakePipeline struct {
	events   []domain.Event
	messages []string
}

func (f *fakePipeline) Process(_ context.Context, _ string, ev domain.Event) error {
	f.events = append(f.events, ev)
	return nil
}

func (f *fakePipeline) ProcessMessage(_ context.Context, _, chatID, _, _, _ string, _ time.Time) error {
	f.messages = append(f.messages, chatID)
	return nil
}

// fakePool runs jobs inline so tests observe pipeline effects synchronously.
type fakePool struct {
	full bool
	jobs []string
}

func (f *fakePool) Enqueue(name string, run func(ctx context.Context) error) (string, error) {
	if f.full {
		return "", xerrors.ErrQueueFull
	}
	f.jobs = append(f.jobs, name)
	if err := run(context.Background()); err != nil {
		return "", nil
	}
	return "job-1", nil
}

const testSecret = "test-secret"

func setupLiveChat(t *testing.T) (*fakeDeduper, *fakePipeline, *fakePool, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	deduper := newFakeDeduper()
	pipeline := &fakePipeline{}
	pool := &fakePool{}
	h := NewLiveChatHandler(testSecret, deduper, pipeline, pool, zap.NewNop())

	r := gin.New()
	r.POST("/webhooks/livechat", h.Handle)
	return deduper, pipeline, pool, r
}

func setupRingCentral(t *testing.T) (*fakeDeduper, *fakePipeline, *fakePool, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	deduper := newFakeDeduper()
	pipeline := &fakePipeline{}
	pool := &fakePool{}
	h := NewRingCentralHandler(testSecret, deduper, pipeline, pool, zap.NewNop())

	r := gin.New()
	r.POST("/webhooks/ringcentral", h.Handle)
	return deduper, pipeline, pool, r
}

func signedRequest(t *testing.T, path string, body []byte, header string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set(header, signature.Sign(body, testSecret))
	return req
}

func livechatChatStarted(webhookID string) []byte {
	return []byte(`{
		"webhook_id": "` + webhookID + `",
		"action": "incoming_chat",
		"payload": {
			"chat": {
				"id": "chat-1",
				"users": [
					{"id": "agent-1", "type": "agent"},
					{"id": "cust-1", "type": "customer", "email": "c@example.com"}
				]
			}
		}
	}`)
}

func TestLiveChatAccepted(t *testing.T) {
	_, pipeline, _, r := setupLiveChat(t)

	body := livechatChatStarted("wh-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(t, "/webhooks/livechat", body, livechat.SignatureHeader))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if len(pipeline.events) != 1 || pipeline.events[0].Kind != domain.KindChatStarted {
		t.Errorf("pipeline events = %+v", pipeline.events)
	}
}

func TestLiveChatBadSignature(t *testing.T) {
	_, pipeline, _, r := setupLiveChat(t)

	body := livechatChatStarted("wh-1")
	req := httptest.NewRequest(http.MethodPost, "/webhooks/livechat", bytes.NewReader(body))
	req.Header.Set(livechat.SignatureHeader, "deadbeef")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if len(pipeline.events) != 0 {
		t.Error("rejected webhook must not reach the pipeline")
	}
}

func TestLiveChatMissingWebhookID(t *testing.T) {
	_, _, _, r := setupLiveChat(t)

	body := []byte(`{"action": "incoming_chat", "payload": {}}`)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(t, "/webhooks/livechat", body, livechat.SignatureHeader))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestLiveChatDuplicateProcessed(t *testing.T) {
	deduper, pipeline, _, r := setupLiveChat(t)

	body := livechatChatStarted("wh-1")
	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, signedRequest(t, "/webhooks/livechat", body, livechat.SignatureHeader))
	deduper.seen["wh-1"].Processed = true

	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, signedRequest(t, "/webhooks/livechat", body, livechat.SignatureHeader))

	if w2.Code != http.StatusOK {
		t.Fatalf("duplicate status = %d, want 200", w2.Code)
	}

	var resp struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(w2.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Message != "already processed" {
		t.Errorf("message = %q, want already processed", resp.Message)
	}
	if len(pipeline.events) != 1 {
		t.Errorf("pipeline ran %d times, want 1", len(pipeline.events))
	}
}

func TestLiveChatDuplicateUnprocessedRetries(t *testing.T) {
	deduper, pipeline, _, r := setupLiveChat(t)

	// First delivery is recorded but never finishes processing.
	body := livechatChatStarted("wh-1")
	deduper.seen["wh-1"] = &domain.Record{WebhookID: "wh-1", Platform: "livechat"}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(t, "/webhooks/livechat", body, livechat.SignatureHeader))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(pipeline.events) != 1 {
		t.Errorf("pipeline ran %d times on unprocessed duplicate, want 1", len(pipeline.events))
	}
}

func TestLiveChatQueueFull(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deduper := newFakeDeduper()
	pool := &fakePool{full: true}
	h := NewLiveChatHandler(testSecret, deduper, &fakePipeline{}, pool, zap.NewNop())

	r := gin.New()
	r.POST("/webhooks/livechat", h.Handle)

	body := livechatChatStarted("wh-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(t, "/webhooks/livechat", body, livechat.SignatureHeader))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestLiveChatUnknownActionIgnored(t *testing.T) {
	deduper, pipeline, _, r := setupLiveChat(t)

	body := []byte(`{"webhook_id": "wh-9", "action": "agent_updated", "payload": {}}`)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(t, "/webhooks/livechat", body, livechat.SignatureHeader))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(pipeline.events) != 0 {
		t.Error("ignored action must not reach the pipeline")
	}
	if len(deduper.processed) != 1 {
		t.Error("ignored action should be marked processed")
	}
}

func TestLiveChatMessageEnqueued(t *testing.T) {
	_, pipeline, _, r := setupLiveChat(t)

	body := []byte(`{
		"webhook_id": "wh-m1",
		"action": "incoming_event",
		"payload": {"chat_id": "chat-1", "event": {"id": "m1", "type": "message", "text": "hi", "author_id": "cust-1"}}
	}`)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(t, "/webhooks/livechat", body, livechat.SignatureHeader))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(pipeline.messages) != 1 || pipeline.messages[0] != "chat-1" {
		t.Errorf("pipeline messages = %v", pipeline.messages)
	}
}

func TestRingCentralValidationHandshake(t *testing.T) {
	_, pipeline, _, r := setupRingCentral(t)

	// Handshakes are unsigned and answered before signature checks.
	body := []byte(`{"validationToken": "vt-123"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/ringcentral", bytes.NewReader(body))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Header().Get("Validation-Token") != "vt-123" {
		t.Errorf("Validation-Token header = %q", w.Header().Get("Validation-Token"))
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["validationToken"] != "vt-123" {
		t.Errorf("body = %s", w.Body.String())
	}
	if len(pipeline.events) != 0 {
		t.Error("handshake must not reach the pipeline")
	}
}

func TestRingCentralCallStartedAccepted(t *testing.T) {
	_, pipeline, _, r := setupRingCentral(t)

	body := []byte(`{
		"uuid": "u-1",
		"event": "/restapi/v1.0/account/~/telephony/sessions",
		"body": {
			"sessionId": "s-1",
			"parties": [{"extensionId": "ext-1", "direction": "Inbound", "status": "Answered"}]
		}
	}`)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(t, "/webhooks/ringcentral", body, ringcentral.SignatureHeader))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if len(pipeline.events) != 1 || pipeline.events[0].Kind != domain.KindCallStarted {
		t.Errorf("pipeline events = %+v", pipeline.events)
	}
}

func TestRingCentralNoAgentPartyIgnored(t *testing.T) {
	deduper, pipeline, _, r := setupRingCentral(t)

	body := []byte(`{
		"uuid": "u-2",
		"body": {"sessionId": "s-2", "parties": [{"direction": "Inbound", "status": "Answered"}]}
	}`)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(t, "/webhooks/ringcentral", body, ringcentral.SignatureHeader))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(pipeline.events) != 0 {
		t.Error("no-op session must not reach the pipeline")
	}
	if len(deduper.processed) != 1 {
		t.Error("no-op session should be marked processed")
	}
}

func TestRingCentralBadSignature(t *testing.T) {
	_, _, _, r := setupRingCentral(t)

	body := []byte(`{"uuid": "u-3", "body": {}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/ringcentral", bytes.NewReader(body))
	req.Header.Set(ringcentral.SignatureHeader, "bogus")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestRingCentralDuplicateProcessed(t *testing.T) {
	deduper, pipeline, _, r := setupRingCentral(t)

	body := []byte(`{
		"uuid": "u-4",
		"body": {"sessionId": "s-4", "parties": [{"extensionId": "ext-1", "status": "Setup"}]}
	}`)
	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, signedRequest(t, "/webhooks/ringcentral", body, ringcentral.SignatureHeader))
	deduper.seen["u-4"].Processed = true

	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, signedRequest(t, "/webhooks/ringcentral", body, ringcentral.SignatureHeader))

	if w2.Code != http.StatusOK {
		t.Fatalf("duplicate status = %d, want 200", w2.Code)
	}
	if len(pipeline.events) != 1 {
		t.Errorf("pipeline ran %d times, want 1", len(pipeline.events))
	}
}

func TestRingCentralDuplicateUnprocessedRetries(t *testing.T) {
	deduper, pipeline, _, r := setupRingCentral(t)

	body := []byte(`{
		"uuid": "u-5",
		"body": {"sessionId": "s-5", "parties": [{"extensionId": "ext-1", "status": "Setup"}]}
	}`)
	deduper.seen["u-5"] = &domain.Record{WebhookID: "u-5", Platform: "ringcentral"}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(t, "/webhooks/ringcentral", body, ringcentral.SignatureHeader))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(pipeline.events) != 1 {
		t.Errorf("pipeline ran %d times on unprocessed duplicate, want 1", len(pipeline.events))
	}
}
