package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// SMSChannel delivers alerts through an SMS gateway. It is the fallback
// when push delivery fails: slower and length-limited, but reaches
// contacts without a data connection.
type SMSChannel struct {
	client *resty.Client
	from   string
}

// NewSMSChannel creates an SMS channel against the gateway base URL.
func NewSMSChannel(baseURL, token, from string, timeout time.Duration) *SMSChannel {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(1)
	if token != "" {
		client.SetAuthToken(token)
	}
	return &SMSChannel{client: client, from: from}
}

func (s *SMSChannel) Name() string { return "sms" }

// Send submits the alert as a single SMS.
func (s *SMSChannel) Send(ctx context.Context, c Contact, message string) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"from": s.from,
			"to":   c.Phone,
			"body": message,
		}).
		Post("/v1/sms")
	if err != nil {
		return fmt.Errorf("sms to %s: %w", c.Phone, err)
	}
	if resp.IsError() {
		return fmt.Errorf("sms to %s: gateway returned %s", c.Phone, resp.Status())
	}
	return nil
}
