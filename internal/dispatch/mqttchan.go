package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/banshee-data/falldetect/internal/monitoring"
)

// BusChannel publishes alerts onto an MQTT topic for in-home subscribers
// (hub displays, sirens, home-automation bridges). Unlike the gateway
// channels it does not reach a contact directly, so it is normally
// appended after push and SMS in the channel order.
type BusChannel struct {
	client mqtt.Client
	topic  string
	qos    byte
}

type busAlert struct {
	ContactID string `json:"contact_id"`
	Contact   string `json:"contact"`
	Phone     string `json:"phone"`
	Message   string `json:"message"`
	SentAt    string `json:"sent_at"`
}

// NewBusChannel connects to the broker and returns the channel. The
// connection is kept open with auto-reconnect; a broker that is down at
// startup is an error so misconfiguration surfaces early.
func NewBusChannel(broker, clientID, topic string) (*BusChannel, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			monitoring.Logf("mqtt: connection lost: %v", err)
		})
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10*time.Second) || token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}
	monitoring.Logf("mqtt: connected to %s, alert topic %s", broker, topic)
	return &BusChannel{client: client, topic: topic, qos: 1}, nil
}

func (b *BusChannel) Name() string { return "mqtt" }

// Send publishes the alert and waits for broker acknowledgement within
// the context deadline (or 10s when none is set).
func (b *BusChannel) Send(ctx context.Context, c Contact, message string) error {
	payload, err := json.Marshal(busAlert{
		ContactID: c.ID,
		Contact:   c.Name,
		Phone:     c.Phone,
		Message:   message,
		SentAt:    time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("mqtt alert encode: %w", err)
	}

	wait := 10 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		wait = time.Until(deadline)
	}
	token := b.client.Publish(b.topic, b.qos, false, payload)
	if !token.WaitTimeout(wait) {
		return fmt.Errorf("mqtt publish to %s: timed out", b.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish to %s: %w", b.topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (b *BusChannel) Close() {
	b.client.Disconnect(250)
}
