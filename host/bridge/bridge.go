// Package bridge publishes decoded link traffic to an MQTT broker, so the
// proxy's keyboard, mouse and status events can feed home-automation and
// monitoring pipelines.
package bridge

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/denisbrodbeck/machineid"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"hidlink/protocol"
)

// Defaults applied when Options leaves a field empty.
const (
	DefaultTopicPrefix    = "hidlink"
	DefaultConnectTimeout  = 5 * time.Second
	DefaultPublishTimeout = time.Second
)

// Options configure the broker connection.
type Options struct {
	Broker         string // e.g. tcp://localhost:1883
	TopicPrefix    string
	ClientSuffix   string // distinguishes multiple links on one machine
	ConnectTimeout time.Duration
}

// Bridge forwards decoded messages to an MQTT broker.
type Bridge struct {
	client paho.Client
	prefix string
	log    zerolog.Logger
}

// ClientID derives a stable MQTT client ID for this machine, falling back
// to the hostname where no machine ID is available.
func ClientID(suffix string) string {
	id, err := machineid.ID()
	if err != nil {
		id, _ = os.Hostname()
	}
	if len(id) > 12 {
		id = id[:12]
	}
	if suffix != "" {
		return "hidlink-" + id + "-" + suffix
	}
	return "hidlink-" + id
}

// Connect dials the broker and returns a ready bridge.
func Connect(opts Options, log zerolog.Logger) (*Bridge, error) {
	if opts.Broker == "" {
		return nil, errors.New("bridge: broker URL required")
	}
	prefix := opts.TopicPrefix
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	timeout := opts.ConnectTimeout
	if timeout == 0 {
		timeout = DefaultConnectTimeout
	}

	clientOpts := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(ClientID(opts.ClientSuffix)).
		SetAutoReconnect(true).
		SetConnectTimeout(timeout)

	client := paho.NewClient(clientOpts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("bridge: connect to %s timed out", opts.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("bridge: connect to %s: %w", opts.Broker, err)
	}

	log.Info().Str("broker", opts.Broker).Str("prefix", prefix).Msg("mqtt bridge connected")
	return &Bridge{client: client, prefix: prefix, log: log}, nil
}

// Publish forwards one decoded message. Failures are logged, not returned:
// the serial stream must keep draining regardless of broker health.
func (b *Bridge) Publish(msg protocol.Message) {
	topic, payload, err := Render(b.prefix, msg)
	if err != nil {
		b.log.Warn().Err(err).Msg("skipping unpublishable message")
		return
	}
	token := b.client.Publish(topic, 0, false, payload)
	if token.WaitTimeout(DefaultPublishTimeout) {
		if err := token.Error(); err != nil {
			b.log.Warn().Err(err).Str("topic", topic).Msg("publish failed")
		}
	}
}

// Close disconnects from the broker, allowing in-flight publishes a short
// grace period.
func (b *Bridge) Close() {
	b.client.Disconnect(250)
}

type keyboardEvent struct {
	Modifiers string  `json:"modifiers"`
	Keys      []uint8 `json:"keys"`
}

type mouseEvent struct {
	Buttons string `json:"buttons"`
	DX      int8   `json:"dx"`
	DY      int8   `json:"dy"`
}

type statusEvent struct {
	Text string `json:"text,omitempty"`
	Raw  string `json:"raw,omitempty"`
}

type rawEvent struct {
	Raw string `json:"raw"`
}

type unknownEvent struct {
	Type    uint8  `json:"type"`
	Payload string `json:"payload"`
}
