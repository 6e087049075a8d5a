// Package telemetry publishes pipeline events to an MQTT broker. It is
// optional: the station runs fine without a broker, and delivery is
// best-effort. Events are dropped rather than ever blocking the capture loop.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

// queueSize bounds the event backlog. Offers beyond it are dropped.
const queueSize = 32

// PublisherConfig holds MQTT connection settings.
type PublisherConfig struct {
	Broker      string // e.g. "tcp://broker.local:1883"
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string // e.g. "chirp"
	DeviceID    string
}

// DetectionEvent is published when a sound is promoted to a detection.
type DetectionEvent struct {
	Timestamp  time.Time `json:"timestamp"`
	RMS        float64   `json:"rms"`
	DominantHz float64   `json:"dominant_hz"`
	AzimuthDeg float64   `json:"azimuth_deg"`
	Confidence float64   `json:"confidence"`
	Sector     string    `json:"sector"`
}

// ClipEvent is published when a recording completes and leaves the engine.
type ClipEvent struct {
	Timestamp       time.Time `json:"timestamp"`
	Filename        string    `json:"filename"`
	DurationSeconds float64   `json:"duration_seconds"`
	Peak            int       `json:"peak"`
	AzimuthDeg      float64   `json:"azimuth_deg"`
	Sector          string    `json:"sector"`
	Outcome         string    `json:"outcome"`
}

type event struct {
	topic   string
	payload any
}

// Publisher drains a bounded event queue to the broker. Producers offer
// events without blocking; when the queue is full the event is dropped with
// a warning. A nil *Publisher is valid and discards everything, so callers
// do not need telemetry-enabled checks.
type Publisher struct {
	client mqtt.Client
	cfg    PublisherConfig
	events chan event
}

// NewPublisher connects to the broker and returns a ready publisher. Call
// Start on its own goroutine to begin draining the queue.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Info().Str("broker", cfg.Broker).Msg("Telemetry connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("Telemetry connection lost")
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return &Publisher{
		client: client,
		cfg:    cfg,
		events: make(chan event, queueSize),
	}, nil
}

// OfferDetection queues a detection event.
func (p *Publisher) OfferDetection(ev DetectionEvent) {
	p.offer("detections", ev)
}

// OfferClip queues a clip lifecycle event.
func (p *Publisher) OfferClip(ev ClipEvent) {
	p.offer("clips", ev)
}

// OfferStatus queues a status snapshot.
func (p *Publisher) OfferStatus(status any) {
	p.offer("status", status)
}

func (p *Publisher) offer(leaf string, payload any) {
	if p == nil {
		return
	}
	select {
	case p.events <- event{topic: p.topic(leaf), payload: payload}:
	default:
		log.Warn().Str("topic", p.topic(leaf)).Msg("Telemetry queue full, dropping event")
	}
}

func (p *Publisher) topic(leaf string) string {
	return p.cfg.TopicPrefix + "/" + p.cfg.DeviceID + "/" + leaf
}

// Start drains the queue until ctx is cancelled.
func (p *Publisher) Start(ctx context.Context) {
	if p == nil {
		return
	}
	log.Info().Msg("Telemetry publisher started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Telemetry publisher stopped")
			return
		case ev := <-p.events:
			if err := p.publish(ev); err != nil {
				log.Error().Err(err).Str("topic", ev.topic).Msg("Failed to publish event")
			}
		}
	}
}

func (p *Publisher) publish(ev event) error {
	payload, err := json.Marshal(ev.payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	token := p.client.Publish(ev.topic, 1, false, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish to %s: %w", ev.topic, token.Error())
	}
	return nil
}

// Close disconnects from the broker after a short grace period.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.client.Disconnect(250)
}
