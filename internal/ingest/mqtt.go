// Package ingest feeds observations published over MQTT into the pipeline.
// Camera agents that cannot reach the HTTP API publish the same JSON payload
// to a broker topic instead.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/banshee-data/barn.report/internal/livestock"
	"github.com/banshee-data/barn.report/internal/monitoring"
)

const subscribeTimeout = 5 * time.Second

// Submitter is the part of the pipeline the subscriber needs.
type Submitter interface {
	Submit(ctx context.Context, obs livestock.Observation) (livestock.Result, error)
}

// Stats counts messages seen since the subscriber started.
type Stats struct {
	Accepted int64 `json:"accepted"`
	Rejected int64 `json:"rejected"`
	Failed   int64 `json:"failed"`
}

// Subscriber consumes one topic. Messages are handled in arrival order;
// invalid payloads are logged and dropped since MQTT has no reply channel.
type Subscriber struct {
	client mqtt.Client
	topic  string
	qos    byte
	proc   Submitter

	ctx context.Context

	accepted atomic.Int64
	rejected atomic.Int64
	failed   atomic.Int64
}

// Connect dials broker and returns a connected client that reconnects on its
// own after a dropped connection.
func Connect(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(false)
	opts.SetOrderMatters(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Printf("mqtt: connection to %s lost: %v", broker, err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", broker, token.Error())
	}
	return client, nil
}

// NewSubscriber builds a subscriber for topic at QoS 1.
func NewSubscriber(client mqtt.Client, topic string, proc Submitter) *Subscriber {
	return &Subscriber{
		client: client,
		topic:  topic,
		qos:    1,
		proc:   proc,
		ctx:    context.Background(),
	}
}

// Start subscribes to the topic. ctx bounds every Submit made for incoming
// messages.
func (s *Subscriber) Start(ctx context.Context) error {
	s.ctx = ctx
	token := s.client.Subscribe(s.topic, s.qos, s.onMessage)
	if !token.WaitTimeout(subscribeTimeout) {
		return fmt.Errorf("subscribe to %s: timed out after %s", s.topic, subscribeTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", s.topic, err)
	}
	log.Printf("mqtt: subscribed to %s", s.topic)
	return nil
}

// Stop unsubscribes and disconnects.
func (s *Subscriber) Stop() {
	if s.client.IsConnected() {
		s.client.Unsubscribe(s.topic).WaitTimeout(subscribeTimeout)
	}
	s.client.Disconnect(250)
}

// Stats returns the message counters.
func (s *Subscriber) Stats() Stats {
	return Stats{
		Accepted: s.accepted.Load(),
		Rejected: s.rejected.Load(),
		Failed:   s.failed.Load(),
	}
}

func (s *Subscriber) onMessage(_ mqtt.Client, msg mqtt.Message) {
	if err := s.HandlePayload(s.ctx, msg.Payload()); err != nil {
		log.Printf("mqtt: message %d on %s: %v", msg.MessageID(), msg.Topic(), err)
	}
}

// HandlePayload decodes and submits one message payload.
func (s *Subscriber) HandlePayload(ctx context.Context, payload []byte) error {
	obs, err := livestock.DecodeObservation(payload)
	if err != nil {
		s.rejected.Add(1)
		monitoring.DataQualityf("mqtt observation rejected: %v", err)
		return nil
	}
	res, err := s.proc.Submit(ctx, obs)
	if err != nil {
		var verr *livestock.ValidationError
		if errors.As(err, &verr) {
			s.rejected.Add(1)
			monitoring.DataQualityf("mqtt observation for animal %s rejected: %v", obs.ID, err)
			return nil
		}
		s.failed.Add(1)
		return fmt.Errorf("submit observation for animal %s: %w", obs.ID, err)
	}
	s.accepted.Add(1)
	monitoring.Logf("mqtt: animal %s %s, %.2f s in state", res.ID, res.State, res.CumulativeStateSeconds)
	return nil
}
