// internal/platform/livechat/client.go
package livechat

import (
	"context"
	"time"

	"syncbridge-service/internal/platform/httpx"

	"go.uber.org/zap"
)

// Client calls the LiveChat agent API. All calls are best-effort from the
// pipeline's point of view; failures surface as httpx.ErrUnavailable or
// *httpx.APIError and are handled by the caller.
type Client struct {
	http   *httpx.Client
	logger *zap.Logger
}

func NewClient(apiURL, accessToken string, timeout time.Duration, maxRetries int, logger *zap.Logger) *Client {
	return &Client{
		http:   httpx.NewClient(apiURL, accessToken, timeout, maxRetries, logger),
		logger: logger,
	}
}

// SetAgentStatus sets an agent's routing status (accepting_chats or
// not_accepting_chats).
func (c *Client) SetAgentStatus(ctx context.Context, agentID, status string) error {
	body := map[string]string{
		"agent_id": agentID,
		"status":   status,
	}

	if err := c.http.PostJSON(ctx, "/agent/action/set_routing_status", body, nil); err != nil {
		return err
	}

	c.logger.Debug("livechat agent status set",
		zap.String("agent_id", agentID),
		zap.String("status", status),
	)
	return nil
}

// CreateCustomerNote attaches a note (e.g. a call summary) to a LiveChat
// customer.
func (c *Client) CreateCustomerNote(ctx context.Context, customerID, title, text string) error {
	body := map[string]interface{}{
		"customer_id": customerID,
		"note": map[string]string{
			"title": title,
			"text":  text,
		},
	}

	return c.http.PostJSON(ctx, "/agent/action/add_customer_note", body, nil)
}
