// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package applog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/tomtom215/tracklog/internal/metrics"
)

// RecordsTopic is the topic records are published on.
const RecordsTopic = "applog.records"

// maxBacklog bounds the records held while Serve has not subscribed yet.
const maxBacklog = 1024

// BrokerDispatcher publishes records as Watermill messages and consumes
// them in Serve. Any Watermill transport works; the in-process gochannel
// and core NATS are wired by the server.
type BrokerDispatcher struct {
	name       string
	publisher  message.Publisher
	subscriber message.Subscriber
	writer     *recordWriter

	mu     sync.RWMutex
	closed bool

	readyOnce sync.Once
	ready     chan struct{}

	// Neither gochannel nor core NATS keeps messages published before a
	// subscriber exists, so early records wait here until Serve subscribes.
	backlogMu  sync.Mutex
	backlog    []*Record
	subscribed bool
}

// NewBrokerDispatcher creates a dispatcher over a Watermill pub/sub pair.
func NewBrokerDispatcher(name string, pub message.Publisher, sub message.Subscriber, store Store, side SideChannel, writeTimeout time.Duration) *BrokerDispatcher {
	return &BrokerDispatcher{
		name:       name,
		publisher:  pub,
		subscriber: sub,
		writer:     newRecordWriter(store, side, writeTimeout),
		ready:      make(chan struct{}),
	}
}

// NewGoChannelPubSub creates the in-process Watermill pub/sub used by the
// watermill dispatcher mode.
func NewGoChannelPubSub(bufferSize int, logger watermill.LoggerAdapter) *gochannel.GoChannel {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            int64(bufferSize),
		Persistent:                     false,
		BlockPublishUntilSubscriberAck: false,
	}, logger)
}

// Name implements Dispatcher.
func (d *BrokerDispatcher) Name() string { return d.name }

// Ready is closed once Serve has subscribed to the topic.
func (d *BrokerDispatcher) Ready() <-chan struct{} {
	return d.ready
}

// Enqueue implements Dispatcher. Records arriving before Serve has
// subscribed are held in a bounded backlog and published once it has.
func (d *BrokerDispatcher) Enqueue(r *Record) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	if held, err := d.hold(r); held {
		return err
	}
	return d.publish(r)
}

// hold appends r to the backlog while nothing is subscribed.
func (d *BrokerDispatcher) hold(r *Record) (bool, error) {
	d.backlogMu.Lock()
	defer d.backlogMu.Unlock()
	if d.subscribed {
		return false, nil
	}
	if len(d.backlog) >= maxBacklog {
		return true, ErrQueueFull
	}
	d.backlog = append(d.backlog, r)
	return true, nil
}

func (d *BrokerDispatcher) publish(r *Record) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode log record: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("log_type", string(r.LogType))
	msg.Metadata.Set("level", string(r.Level))

	if err := d.publisher.Publish(RecordsTopic, msg); err != nil {
		return fmt.Errorf("publish log record: %w", err)
	}
	return nil
}

// releaseBacklog marks the topic subscribed and publishes the held
// records. A record that fails to publish is reported and dropped.
func (d *BrokerDispatcher) releaseBacklog() {
	d.backlogMu.Lock()
	held := d.backlog
	d.backlog = nil
	d.subscribed = true
	d.backlogMu.Unlock()

	for _, r := range held {
		if err := d.publish(r); err != nil {
			metrics.RecordLogDropped("enqueue_failed")
			attrs := r.Attributes()
			attrs["error"] = err.Error()
			d.writer.side.Write(LevelError, "Failed to publish held log record", attrs)
		}
	}
}

// Held returns the number of records waiting for Serve to subscribe.
func (d *BrokerDispatcher) Held() int {
	d.backlogMu.Lock()
	defer d.backlogMu.Unlock()
	return len(d.backlog)
}

// Serve consumes the topic until ctx is canceled. Every message is acked
// after one write attempt, successful or not.
func (d *BrokerDispatcher) Serve(ctx context.Context) error {
	messages, err := d.subscriber.Subscribe(ctx, RecordsTopic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", RecordsTopic, err)
	}
	d.releaseBacklog()
	d.readyOnce.Do(func() { close(d.ready) })

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return ctx.Err()
			}
			d.handle(ctx, msg)
		}
	}
}

func (d *BrokerDispatcher) handle(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var r Record
	if err := json.Unmarshal(msg.Payload, &r); err != nil {
		metrics.RecordLogDropped("decode_failed")
		d.writer.side.Write(LevelError, "Failed to decode queued log record", map[string]any{
			"message_uuid": msg.UUID,
			"error":        err.Error(),
		})
		return
	}
	d.writer.write(ctx, &r)
}

// Close closes the publisher and subscriber.
func (d *BrokerDispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	pubErr := d.publisher.Close()
	subErr := d.subscriber.Close()
	if pubErr != nil {
		return fmt.Errorf("close publisher: %w", pubErr)
	}
	if subErr != nil {
		return fmt.Errorf("close subscriber: %w", subErr)
	}
	return nil
}

// String implements fmt.Stringer for suture logging.
func (d *BrokerDispatcher) String() string {
	return "applog-" + d.name + "-dispatcher"
}
