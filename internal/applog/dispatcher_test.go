// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package applog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// runService starts serve in the background and returns a stop function
// that cancels it and waits for it to return.
func runService(t *testing.T, serve func(context.Context) error) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = serve(ctx)
		close(done)
	}()
	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("service did not stop")
		}
	}
}

func TestChannelDispatcher_WritesRecords(t *testing.T) {
	store := NewMemoryStore(100)
	d := NewChannelDispatcher(ChannelDispatcherConfig{BufferSize: 16, Workers: 2}, store, NewRecordingSideChannel())
	stop := runService(t, d.Serve)
	defer stop()

	for i := 0; i < 10; i++ {
		if err := d.Enqueue(&Record{LogType: TypeSystem, Level: LevelInfo, Message: "queued"}); err != nil {
			t.Fatalf("enqueue %d failed: %v", i, err)
		}
	}
	waitFor(t, func() bool { return store.Len() == 10 })
}

func TestChannelDispatcher_DrainsOnShutdown(t *testing.T) {
	store := NewMemoryStore(100)
	d := NewChannelDispatcher(ChannelDispatcherConfig{BufferSize: 16, Workers: 1}, store, NewRecordingSideChannel())

	for i := 0; i < 5; i++ {
		if err := d.Enqueue(&Record{LogType: TypeSystem, Level: LevelInfo, Message: "buffered"}); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}

	// Serve with an already canceled context only drains.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Serve(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if store.Len() != 5 {
		t.Errorf("expected buffered records written on drain, got %d", store.Len())
	}
	if d.Pending() != 0 {
		t.Errorf("expected empty queue, got %d", d.Pending())
	}
}

func TestChannelDispatcher_QueueFullAndClosed(t *testing.T) {
	d := NewChannelDispatcher(ChannelDispatcherConfig{BufferSize: 1}, NewMemoryStore(10), NewRecordingSideChannel())

	if err := d.Enqueue(&Record{}); err != nil {
		t.Fatalf("first enqueue failed: %v", err)
	}
	if err := d.Enqueue(&Record{}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}

	_ = d.Close()
	if err := d.Enqueue(&Record{}); !errors.Is(err, ErrDispatcherClosed) {
		t.Errorf("expected ErrDispatcherClosed, got %v", err)
	}
}

func TestChannelDispatcher_RejectedRecordsLeaveNoDepth(t *testing.T) {
	d := NewChannelDispatcher(ChannelDispatcherConfig{BufferSize: 2}, NewMemoryStore(10), NewRecordingSideChannel())

	for i := 0; i < 5; i++ {
		_ = d.Enqueue(&Record{})
	}
	if got := d.pending.Load(); got != 2 {
		t.Errorf("expected depth 2 after overflow, got %d", got)
	}
}

func TestChannelDispatcher_DepthNeverNegative(t *testing.T) {
	store := NewMemoryStore(10000)
	d := NewChannelDispatcher(ChannelDispatcherConfig{BufferSize: 8, Workers: 4}, store, NewRecordingSideChannel())
	stop := runService(t, d.Serve)
	defer stop()

	var (
		wg       sync.WaitGroup
		done     = make(chan struct{})
		negative = make(chan int64, 1)
	)
	go func() {
		for {
			select {
			case <-done:
				return
			default:
			}
			if v := d.pending.Load(); v < 0 {
				select {
				case negative <- v:
				default:
				}
			}
		}
	}()

	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				_ = d.Enqueue(&Record{LogType: TypeError, Level: LevelError, Message: "x"})
			}
		}()
	}
	wg.Wait()
	waitFor(t, func() bool { return d.pending.Load() == 0 && d.Pending() == 0 })
	close(done)

	select {
	case v := <-negative:
		t.Errorf("queue depth went negative: %d", v)
	default:
	}
}

func TestChannelDispatcher_WriteFailureGoesToSideChannel(t *testing.T) {
	side := NewRecordingSideChannel()
	store := &failingStore{MemoryStore: NewMemoryStore(10), err: errors.New("disk full")}
	d := NewChannelDispatcher(ChannelDispatcherConfig{BufferSize: 4, Workers: 1}, store, side)
	stop := runService(t, d.Serve)
	defer stop()

	if err := d.Enqueue(&Record{LogType: TypeError, Level: LevelError, Message: "doomed"}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	waitFor(t, func() bool {
		_, ok := side.Find("Failed to write log record")
		return ok
	})

	entry, _ := side.Find("Failed to write log record")
	if entry.Attrs["message"] != "doomed" {
		t.Errorf("expected record attributes in side entry, got %v", entry.Attrs)
	}
}

func TestChannelDispatcher_WorkerSurvivesPanic(t *testing.T) {
	side := NewRecordingSideChannel()
	d := NewChannelDispatcher(ChannelDispatcherConfig{BufferSize: 4, Workers: 1}, &panickingStore{NewMemoryStore(10)}, side)
	stop := runService(t, d.Serve)
	defer stop()

	_ = d.Enqueue(&Record{LogType: TypeError, Level: LevelError, Message: "first"})
	_ = d.Enqueue(&Record{LogType: TypeError, Level: LevelError, Message: "second"})

	waitFor(t, func() bool { return side.Len() == 2 })
}

func TestBrokerDispatcher_GoChannel(t *testing.T) {
	store := NewMemoryStore(100)
	pubsub := NewGoChannelPubSub(64, watermill.NopLogger{})
	d := NewBrokerDispatcher("watermill", pubsub, pubsub, store, NewRecordingSideChannel(), time.Second)
	stop := runService(t, d.Serve)
	defer func() {
		stop()
		_ = d.Close()
	}()

	select {
	case <-d.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher never subscribed")
	}

	userID := int64(5)
	sent := &Record{
		LogType:    TypeUserAction,
		Level:      LevelInfo,
		Message:    "Exported report",
		UserID:     &userID,
		Action:     "export",
		Context:    []byte(`{"format":"pdf"}`),
		OccurredAt: baseTime,
	}
	if err := d.Enqueue(sent); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	waitFor(t, func() bool { return store.Len() == 1 })

	records, _ := store.Query(context.Background(), Filter{})
	got := records[0]
	if got.Message != sent.Message || got.Action != "export" || got.UserID == nil || *got.UserID != 5 {
		t.Errorf("record did not survive the broker: %+v", got)
	}
	if !got.OccurredAt.Equal(baseTime) {
		t.Errorf("expected occurred_at %v, got %v", baseTime, got.OccurredAt)
	}
	if string(got.Context) != `{"format":"pdf"}` {
		t.Errorf("unexpected context %s", got.Context)
	}
}

func TestBrokerDispatcher_HoldsRecordsUntilSubscribed(t *testing.T) {
	store := NewMemoryStore(100)
	pubsub := NewGoChannelPubSub(64, watermill.NopLogger{})
	d := NewBrokerDispatcher("watermill", pubsub, pubsub, store, NewRecordingSideChannel(), time.Second)

	for i := 0; i < 3; i++ {
		if err := d.Enqueue(&Record{LogType: TypeError, Level: LevelError, Message: "early", OccurredAt: baseTime}); err != nil {
			t.Fatalf("enqueue before serve failed: %v", err)
		}
	}
	if d.Held() != 3 {
		t.Fatalf("expected 3 held records, got %d", d.Held())
	}

	stop := runService(t, d.Serve)
	defer func() {
		stop()
		_ = d.Close()
	}()
	<-d.Ready()

	if err := d.Enqueue(&Record{LogType: TypeError, Level: LevelError, Message: "late", OccurredAt: baseTime}); err != nil {
		t.Fatalf("enqueue after serve failed: %v", err)
	}
	waitFor(t, func() bool { return store.Len() == 4 })
	if d.Held() != 0 {
		t.Errorf("expected backlog released, %d still held", d.Held())
	}
}

func TestBrokerDispatcher_BacklogIsBounded(t *testing.T) {
	pubsub := NewGoChannelPubSub(8, watermill.NopLogger{})
	d := NewBrokerDispatcher("watermill", pubsub, pubsub, NewMemoryStore(10), NewRecordingSideChannel(), time.Second)
	defer d.Close()

	for i := 0; i < maxBacklog; i++ {
		if err := d.Enqueue(&Record{}); err != nil {
			t.Fatalf("enqueue %d failed: %v", i, err)
		}
	}
	if err := d.Enqueue(&Record{}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull once the backlog is full, got %v", err)
	}
}

func TestBrokerDispatcher_BadPayload(t *testing.T) {
	side := NewRecordingSideChannel()
	pubsub := NewGoChannelPubSub(8, watermill.NopLogger{})
	d := NewBrokerDispatcher("watermill", pubsub, pubsub, NewMemoryStore(10), side, time.Second)
	stop := runService(t, d.Serve)
	defer stop()

	<-d.Ready()
	if err := pubsub.Publish(RecordsTopic, message.NewMessage(watermill.NewUUID(), []byte("not json"))); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	waitFor(t, func() bool {
		_, ok := side.Find("Failed to decode queued log record")
		return ok
	})
}

func TestBrokerDispatcher_ClosedRejects(t *testing.T) {
	pubsub := NewGoChannelPubSub(8, watermill.NopLogger{})
	d := NewBrokerDispatcher("watermill", pubsub, pubsub, NewMemoryStore(10), NewRecordingSideChannel(), time.Second)
	if err := d.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := d.Enqueue(&Record{}); !errors.Is(err, ErrDispatcherClosed) {
		t.Errorf("expected ErrDispatcherClosed, got %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
}

func TestSpoolDispatcher_InMemory(t *testing.T) {
	store := NewMemoryStore(100)
	d, err := OpenSpoolDispatcher(SpoolConfig{InMemory: true}, store, NewRecordingSideChannel())
	if err != nil {
		t.Fatalf("open spool: %v", err)
	}
	defer d.Close()

	for i := 0; i < 3; i++ {
		if err := d.Enqueue(&Record{LogType: TypeSystem, Level: LevelInfo, Message: "spooled", OccurredAt: baseTime}); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}
	pending, err := d.Pending()
	if err != nil || pending != 3 {
		t.Fatalf("expected 3 pending, got %d (%v)", pending, err)
	}

	stop := runService(t, d.Serve)
	defer stop()

	waitFor(t, func() bool { return store.Len() == 3 })
	waitFor(t, func() bool {
		n, _ := d.Pending()
		return n == 0
	})
}

func TestSpoolDispatcher_AttemptsOnce(t *testing.T) {
	side := NewRecordingSideChannel()
	store := &failingStore{MemoryStore: NewMemoryStore(10), err: errors.New("down")}
	d, err := OpenSpoolDispatcher(SpoolConfig{InMemory: true}, store, side)
	if err != nil {
		t.Fatalf("open spool: %v", err)
	}
	defer d.Close()

	_ = d.Enqueue(&Record{LogType: TypeError, Level: LevelError, Message: "once"})

	n, err := d.drainBatch(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("expected one drained item, got %d (%v)", n, err)
	}
	n, _ = d.drainBatch(context.Background())
	if n != 0 {
		t.Errorf("expected failed record not to be retried, drained %d", n)
	}
	if side.Len() != 1 {
		t.Errorf("expected one side-channel failure, got %d", side.Len())
	}
}

func TestSpoolDispatcher_RequiresDir(t *testing.T) {
	if _, err := OpenSpoolDispatcher(SpoolConfig{}, NewMemoryStore(1), NewRecordingSideChannel()); err == nil {
		t.Error("expected error without a directory")
	}
}
