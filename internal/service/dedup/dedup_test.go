package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"syncbridge-service/internal/domain/webhook"

	"go.uber.org/zap"
)

type fakeLedger struct {
	records   map[string]*webhook.Record
	insertErr error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{records: make(map[string]*webhook.Record)}
}

func (f *fakeLedger) InsertIfAbsent(_ context.Context, webhookID, platform, eventType string, payload []byte, ttl time.Duration) (bool, *webhook.Record, error) {
	if f.insertErr != nil {
		return false, nil, f.insertErr
	}
	if rec, ok := f.records[webhookID]; ok {
		return false, rec, nil
	}
	rec := &webhook.Record{
		WebhookID:  webhookID,
		Platform:   platform,
		EventType:  eventType,
		Payload:    payload,
		ReceivedAt: time.Now().UTC(),
		ExpiresAt:  time.Now().UTC().Add(ttl),
	}
	f.records[webhookID] = rec
	return true, rec, nil
}

func (f *fakeLedger) FindByWebhookID(_ context.Context, webhookID string) (*webhook.Record, error) {
	rec, ok := f.records[webhookID]
	if !ok {
		return nil, errors.New("not found")
	}
	return rec, nil
}

func (f *fakeLedger) MarkProcessed(_ context.Context, webhookID string) error {
	if rec, ok := f.records[webhookID]; ok {
		rec.Processed = true
	}
	return nil
}

func (f *fakeLedger) IncrementRetry(_ context.Context, webhookID string) error {
	if rec, ok := f.records[webhookID]; ok {
		rec.RetryCount++
	}
	return nil
}

func (f *fakeLedger) DeleteExpired(_ context.Context) (int64, error) {
	return 0, nil
}

func TestCheckAndRecordFirstDelivery(t *testing.T) {
	ledger := newFakeLedger()
	svc := NewService(ledger, nil, time.Hour, zap.NewNop())

	duplicate, rec, err := svc.CheckAndRecord(context.Background(), "wh-1", "livechat", "incoming_chat", []byte(`{}`))
	if err != nil {
		t.Fatalf("CheckAndRecord: %v", err)
	}
	if duplicate {
		t.Fatal("first delivery reported as duplicate")
	}
	if rec.WebhookID != "wh-1" {
		t.Errorf("WebhookID = %q", rec.WebhookID)
	}
}

func TestCheckAndRecordDuplicate(t *testing.T) {
	ledger := newFakeLedger()
	svc := NewService(ledger, nil, time.Hour, zap.NewNop())

	ctx := context.Background()
	if _, _, err := svc.CheckAndRecord(ctx, "wh-1", "livechat", "incoming_chat", nil); err != nil {
		t.Fatal(err)
	}
	if err := svc.MarkProcessed(ctx, "wh-1"); err != nil {
		t.Fatal(err)
	}

	duplicate, rec, err := svc.CheckAndRecord(ctx, "wh-1", "livechat", "incoming_chat", nil)
	if err != nil {
		t.Fatalf("CheckAndRecord: %v", err)
	}
	if !duplicate {
		t.Fatal("second delivery not reported as duplicate")
	}
	if !rec.Processed {
		t.Error("duplicate record should carry the processed flag")
	}
}

func TestCheckAndRecordLedgerError(t *testing.T) {
	ledger := newFakeLedger()
	ledger.insertErr = errors.New("db down")
	svc := NewService(ledger, nil, time.Hour, zap.NewNop())

	if _, _, err := svc.CheckAndRecord(context.Background(), "wh-1", "livechat", "x", nil); err == nil {
		t.Fatal("expected error when ledger insert fails")
	}
}

func TestIncrementRetry(t *testing.T) {
	ledger := newFakeLedger()
	svc := NewService(ledger, nil, time.Hour, zap.NewNop())

	ctx := context.Background()
	if _, _, err := svc.CheckAndRecord(ctx, "wh-1", "ringcentral", "telephony", nil); err != nil {
		t.Fatal(err)
	}
	if err := svc.IncrementRetry(ctx, "wh-1"); err != nil {
		t.Fatal(err)
	}

	if ledger.records["wh-1"].RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", ledger.records["wh-1"].RetryCount)
	}
}
