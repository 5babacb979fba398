package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// VoiceChannel places an automated voice call through a telephony
// gateway. It is not part of the regular message fan-out; the dispatcher
// uses it to ring the primary contact after the alerts have gone out.
type VoiceChannel struct {
	client *resty.Client
}

// NewVoiceChannel creates a voice channel against the gateway base URL.
func NewVoiceChannel(baseURL, token string, timeout time.Duration) *VoiceChannel {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout)
	if token != "" {
		client.SetAuthToken(token)
	}
	return &VoiceChannel{client: client}
}

func (v *VoiceChannel) Name() string { return "voice" }

// Send asks the gateway to originate a call; the message becomes the
// gateway's text-to-speech announcement. The call outcome itself is not
// tracked, only whether the gateway accepted the request.
func (v *VoiceChannel) Send(ctx context.Context, c Contact, message string) error {
	resp, err := v.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"to":       c.Phone,
			"announce": message,
		}).
		Post("/v1/calls")
	if err != nil {
		return fmt.Errorf("call to %s: %w", c.Phone, err)
	}
	if resp.IsError() {
		return fmt.Errorf("call to %s: gateway returned %s", c.Phone, resp.Status())
	}
	return nil
}
