package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// PushChannel delivers alerts through an HTTP push/messaging gateway
// (WhatsApp-style). It is normally first in the channel order because
// delivery is near-instant and carries the full message text.
type PushChannel struct {
	client *resty.Client
}

// NewPushChannel creates a push channel against the gateway base URL.
// The token, when set, is sent as a bearer credential.
func NewPushChannel(baseURL, token string, timeout time.Duration) *PushChannel {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(1)
	if token != "" {
		client.SetAuthToken(token)
	}
	return &PushChannel{client: client}
}

func (p *PushChannel) Name() string { return "push" }

// Send posts the alert to the gateway's message endpoint.
func (p *PushChannel) Send(ctx context.Context, c Contact, message string) error {
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"to":   c.Phone,
			"text": message,
		}).
		Post("/v1/messages")
	if err != nil {
		return fmt.Errorf("push to %s: %w", c.Phone, err)
	}
	if resp.IsError() {
		return fmt.Errorf("push to %s: gateway returned %s", c.Phone, resp.Status())
	}
	return nil
}
