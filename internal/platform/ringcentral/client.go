// internal/platform/ringcentral/client.go
package ringcentral

import (
	"context"
	"time"

	"syncbridge-service/internal/platform/httpx"

	"go.uber.org/zap"
)

// Client calls the RingCentral REST API.
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

// SetUserPresence sets the presence status for an extension (Available, Busy
// or Offline).
func (c *Client) SetUserPresence(ctx context.Context, extensionID, status string) error {
	body := map[string]interface{}{
		"userStatus":         status,
		"dndStatus":          "TakeAllCalls",
		"allowSeeMyPresence": true,
	}
	if status == "Busy" {
		body["dndStatus"] = "DoNotAcceptAnyCalls"
	}

	path := "/restapi/v1.0/account/~/extension/" + extensionID + "/presence"
	if err := c.http.PutJSON(ctx, path, body, nil); err != nil {
		return err
	}

	c.logger.Debug("ringcentral presence set",
		zap.String("extension_id", extensionID),
		zap.String("status", status),
	)
	return nil
}

// CreateNote posts a note (chat transcripts, summaries) to the company notes
// endpoint.
func (c *Client) CreateNote(ctx context.Context, title, body string) error {
	payload := map[string]string{
		"title": title,
		"body":  body,
	}

	return c.http.PostJSON(ctx, "/restapi/v1.0/account/~/notes", payload, nil)
}
