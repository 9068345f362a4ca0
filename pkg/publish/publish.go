// Package publish forwards telemetry frames to an MQTT broker as JSON.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/itohio/gopedal/pkg/config"
	"github.com/itohio/gopedal/pkg/record"
	"github.com/itohio/gopedal/pkg/telemetry"
)

// publishTimeout bounds how long a single publish may wait for the broker.
const publishTimeout = 2 * time.Second

// Client is the part of a broker connection the publisher needs.
type Client interface {
	Publish(topic string, payload []byte) error
	Close()
}

// Axis is one pedal in a published message.
type Axis struct {
	Raw int32 `json:"raw"`
	Out int   `json:"out"`
}

// Message is the JSON payload of a published frame.
type Message struct {
	Time     time.Time `json:"time"`
	Clutch   Axis      `json:"clutch"`
	Throttle Axis      `json:"throttle"`
	Brake    Axis      `json:"brake"`
}

// NewMessage converts a frame to its payload form.
func NewMessage(f telemetry.Frame) Message {
	axis := func(ch record.Channel) Axis {
		return Axis{Raw: f.Raw[ch], Out: f.Out[ch]}
	}
	return Message{
		Time:     f.Time,
		Clutch:   axis(record.Clutch),
		Throttle: axis(record.Throttle),
		Brake:    axis(record.Brake),
	}
}

// Publisher publishes frames to a topic.
type Publisher struct {
	client Client
	topic  string
}

// New creates a publisher on client.
func New(client Client, topic string) *Publisher {
	return &Publisher{
		client: client,
		topic:  topic,
	}
}

// Publish sends one frame.
func (p *Publisher) Publish(f telemetry.Frame) error {
	payload, err := json.Marshal(NewMessage(f))
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	if err := p.client.Publish(p.topic, payload); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	return nil
}

// Forward publishes frames until the channel closes or ctx is done. Publish
// errors are logged and do not stop forwarding.
func (p *Publisher) Forward(ctx context.Context, frames <-chan telemetry.Frame) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-frames:
			if !ok {
				return nil
			}
			if err := p.Publish(f); err != nil {
				log.Printf("mqtt: %v", err)
			}
		}
	}
}

// Close disconnects the client.
func (p *Publisher) Close() {
	p.client.Close()
}

// pahoClient adapts a paho client.
type pahoClient struct {
	client mqtt.Client
}

// Connect connects to the broker in cfg.
func Connect(cfg config.MQTTConfig) (Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, token.Error())
	}
	return &pahoClient{client: client}, nil
}

func (c *pahoClient) Publish(topic string, payload []byte) error {
	token := c.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("timed out after %v", publishTimeout)
	}
	return token.Error()
}

func (c *pahoClient) Close() {
	c.client.Disconnect(250)
}
