// Package events publishes auction events to NATS JetStream for downstream
// archival. The publisher is optional: without a configured NATS URL the
// service runs with the in-process stream only.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"harvestbid.org/internal/stream"
)

const (
	streamName    = "BID_EVENTS"
	subjectPrefix = "bid.events."
)

// Publisher writes auction events to a JetStream work queue.
type Publisher struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// Connect dials NATS and ensures the BID_EVENTS stream exists.
func Connect(ctx context.Context, url string) (*Publisher, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName,
		Subjects:  []string{subjectPrefix + "*"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.WorkQueuePolicy,
		MaxAge:    24 * time.Hour,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}
	return &Publisher{nc: nc, js: js}, nil
}

// Publish sends the event under bid.events.<crop_id>.
func (p *Publisher) Publish(ctx context.Context, evt stream.Event) error {
	if p == nil {
		return nil
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := p.js.Publish(ctx, subjectPrefix+evt.CropID, data); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Close drains the underlying connection.
func (p *Publisher) Close() {
	if p == nil || p.nc == nil {
		return
	}
	p.nc.Close()
}
