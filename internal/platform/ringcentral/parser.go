// internal/platform/ringcentral/parser.go
package ringcentral

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"syncbridge-service/internal/domain/webhook"

	"github.com/oklog/ulid/v2"
)

// SignatureHeader carries the RingCentral webhook HMAC.
const SignatureHeader = "X-RingCentral-Signature"

// Party statuses that mean a call is starting or in progress.
var startedStatuses = map[string]bool{
	"Setup":      true,
	"Proceeding": true,
	"Answered":   true,
	"Connected":  true,
}

// flexString accepts the two shapes RingCentral sends interchangeably: a bare
// JSON string, or an object carrying the string under "value" or "code". The
// ambiguity is resolved once here, never re-sniffed downstream.
type flexString struct {
	Value string
}

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		f.Value = s
		return nil
	}

	var obj struct {
		Value string `json:"value"`
		Code  string `json:"code"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("unexpected shape: %s", string(b))
	}

	if obj.Value != "" {
		f.Value = obj.Value
	} else {
		f.Value = obj.Code
	}
	return nil
}

type phoneEndpoint struct {
	PhoneNumber     string `json:"phoneNumber"`
	ExtensionNumber string `json:"extensionNumber"`
}

func (p phoneEndpoint) number() string {
	if p.PhoneNumber != "" {
		return p.PhoneNumber
	}
	return p.ExtensionNumber
}

type party struct {
	ExtensionID string        `json:"extensionId"`
	Direction   flexString    `json:"direction"`
	Status      flexString    `json:"status"`
	From        phoneEndpoint `json:"from"`
	To          phoneEndpoint `json:"to"`
}

type sessionEnvelope struct {
	UUID            string `json:"uuid"`
	Event           string `json:"event"`
	Timestamp       string `json:"timestamp"`
	ValidationToken string `json:"validationToken"`
	Body            struct {
		SessionID string  `json:"sessionId"`
		ID        string  `json:"id"`
		Parties   []party `json:"parties"`
	} `json:"body"`
}

// ValidationToken returns the subscription-handshake token if the payload is
// a handshake request. Handshakes are unsigned, so this check runs before any
// signature verification.
func ValidationToken(raw []byte) string {
	var env sessionEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ""
	}
	return env.ValidationToken
}

// ExtractWebhookID returns the event uuid or a synthesized fallback id when
// absent. Synthesized ids weaken idempotency (a redelivered event gets a
// fresh id); callers log the fallback path.
func ExtractWebhookID(raw []byte) (id string, fallback bool) {
	var env sessionEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && env.UUID != "" {
		return env.UUID, false
	}

	if err := json.Unmarshal(raw, &env); err == nil && env.Timestamp != "" {
		return "rc_" + env.Timestamp, true
	}

	return "rc_" + ulid.Make().String(), true
}

// EventType returns the subscription event filter string for ledger records.
func EventType(raw []byte) string {
	var env sessionEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
		return "unknown"
	}
	return env.Event
}

// ParseSession normalizes a telephony-session payload into a canonical event.
//
// The internal call leg is the party carrying an extensionId; if no such
// party exists the session involves no tracked agent and the event is a
// no-op (Kind none), not an error. Status classification: Setup, Proceeding,
// Answered and Connected mean the call is starting or live; Disconnected
// means it ended; anything else is ignored.
func ParseSession(raw []byte) (webhook.Event, error) {
	var env sessionEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return webhook.Event{}, fmt.Errorf("failed to parse telephony session payload: %w", err)
	}

	ev := webhook.Event{
		Platform:   "ringcentral",
		OccurredAt: time.Now().UTC(),
	}
	if env.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339, env.Timestamp); err == nil {
			ev.OccurredAt = t
		}
	}

	ev.SessionID = env.Body.SessionID
	if ev.SessionID == "" {
		ev.SessionID = env.Body.ID
	}
	if ev.SessionID == "" {
		return ev, nil
	}

	var agentParty *party
	for i := range env.Body.Parties {
		if env.Body.Parties[i].ExtensionID != "" {
			agentParty = &env.Body.Parties[i]
			break
		}
	}
	if agentParty == nil {
		return ev, nil
	}

	ev.AgentKey = agentParty.ExtensionID
	ev.Direction = normalizeDirection(agentParty.Direction.Value)
	ev.FromNumber = agentParty.From.number()
	ev.ToNumber = agentParty.To.number()
	ev.CallStatus = agentParty.Status.Value

	switch {
	case startedStatuses[agentParty.Status.Value]:
		ev.Kind = webhook.KindCallStarted
	case agentParty.Status.Value == "Disconnected":
		ev.Kind = webhook.KindCallEnded
	default:
		// Unrecognized leg status: acknowledge and do nothing.
	}

	return ev, nil
}

func normalizeDirection(d string) string {
	switch strings.ToLower(d) {
	case "outbound":
		return "outbound"
	default:
		return "inbound"
	}
}
