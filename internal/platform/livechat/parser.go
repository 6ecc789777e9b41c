// internal/platform/livechat/parser.go
package livechat

import (
	"encoding/json"
	"fmt"
	"time"

	"syncbridge-service/internal/domain/webhook"
)

// SignatureHeader carries the LiveChat webhook HMAC.
const SignatureHeader = "X-LiveChat-Signature"

type userPayload struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type chatPayload struct {
	ID    string        `json:"id"`
	Users []userPayload `json:"users"`
}

type eventPayload struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Text      string `json:"text"`
	AuthorID  string `json:"author_id"`
	CreatedAt string `json:"created_at"`
}

type webhookEnvelope struct {
	WebhookID string `json:"webhook_id"`
	Action    string `json:"action"`
	Payload   struct {
		Chat   chatPayload  `json:"chat"`
		ChatID string       `json:"chat_id"`
		Event  eventPayload `json:"event"`
	} `json:"payload"`
}

// ExtractWebhookID returns the platform-assigned event id, or "" when the
// payload carries none. LiveChat always supplies one; a missing id is a 400
// at admission.
func ExtractWebhookID(raw []byte) string {
	var env webhookEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ""
	}
	return env.WebhookID
}

// Action returns the webhook action name used for dispatch.
func Action(raw []byte) string {
	var env webhookEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ""
	}
	return env.Action
}

// ParseChatStarted normalizes an incoming_chat payload. The agent and the
// customer are located by role; the list order is never assumed.
func ParseChatStarted(raw []byte) (webhook.Event, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return webhook.Event{}, fmt.Errorf("failed to parse incoming_chat payload: %w", err)
	}

	ev := webhook.Event{
		Kind:       webhook.KindChatStarted,
		Platform:   "livechat",
		ChatID:     env.Payload.Chat.ID,
		OccurredAt: time.Now().UTC(),
	}

	for _, u := range env.Payload.Chat.Users {
		switch u.Type {
		case "agent":
			if ev.AgentKey == "" {
				ev.AgentKey = u.ID
			}
		case "customer":
			if ev.LiveChatCustomerID == "" {
				ev.LiveChatCustomerID = u.ID
				ev.CustomerEmail = u.Email
				ev.CustomerName = u.Name
			}
		}
	}

	if ev.ChatID == "" {
		return webhook.Event{}, fmt.Errorf("incoming_chat payload has no chat id")
	}
	if ev.AgentKey == "" {
		return webhook.Event{}, fmt.Errorf("incoming_chat payload has no agent user")
	}

	return ev, nil
}

// ParseChatEnded normalizes a chat_deactivated payload. The chat id lives on
// the nested chat object.
func ParseChatEnded(raw []byte) (webhook.Event, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return webhook.Event{}, fmt.Errorf("failed to parse chat_deactivated payload: %w", err)
	}

	ev := webhook.Event{
		Kind:       webhook.KindChatEnded,
		Platform:   "livechat",
		ChatID:     env.Payload.Chat.ID,
		OccurredAt: time.Now().UTC(),
	}

	for _, u := range env.Payload.Chat.Users {
		if u.Type == "agent" {
			ev.AgentKey = u.ID
			break
		}
	}

	if ev.ChatID == "" {
		return webhook.Event{}, fmt.Errorf("chat_deactivated payload has no chat id")
	}

	return ev, nil
}

// ChatMessage is one incoming_event message payload, normalized.
type ChatMessage struct {
	ChatID            string
	ExternalMessageID string
	AuthorID          string
	Text              string
	SentAt            time.Time
}

// ParseChatMessage extracts a message event. Non-message event types return
// ok=false and are acknowledged without effect.
func ParseChatMessage(raw []byte) (ChatMessage, bool, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ChatMessage{}, false, fmt.Errorf("failed to parse incoming_event payload: %w", err)
	}

	if env.Payload.Event.Type != "message" {
		return ChatMessage{}, false, nil
	}

	chatID := env.Payload.ChatID
	if chatID == "" {
		chatID = env.Payload.Chat.ID
	}
	if chatID == "" {
		return ChatMessage{}, false, fmt.Errorf("incoming_event payload has no chat id")
	}

	sentAt := time.Now().UTC()
	if env.Payload.Event.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339, env.Payload.Event.CreatedAt); err == nil {
			sentAt = t
		}
	}

	return ChatMessage{
		ChatID:            chatID,
		ExternalMessageID: env.Payload.Event.ID,
		AuthorID:          env.Payload.Event.AuthorID,
		Text:              env.Payload.Event.Text,
		SentAt:            sentAt,
	}, true, nil
}
