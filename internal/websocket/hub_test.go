// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package websocket

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/tracklog/internal/applog"
)

// startHub runs a hub until the test ends. The returned channel yields
// RunWithContext's result.
func startHub(t *testing.T) (*Hub, context.CancelFunc, <-chan error) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.RunWithContext(ctx) }()
	t.Cleanup(cancel)
	return hub, cancel, done
}

func createTestClient(hub *Hub, filter applog.Filter, buffer int) *Client {
	return &Client{
		id:     nextClientID.Add(1),
		hub:    hub,
		send:   make(chan Message, buffer),
		filter: filter,
	}
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.GetClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", n, hub.GetClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func receive(t *testing.T, c *Client) (Message, bool) {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		return msg, ok
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}, false
	}
}

func expectNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.send:
		t.Errorf("expected no message, got %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func testRecord(logType applog.LogType, level applog.Level) *applog.Record {
	return &applog.Record{
		ID:         "0190a1b2-0000-7000-8000-000000000001",
		LogType:    logType,
		Level:      level,
		Message:    "test record",
		OccurredAt: time.Now().UTC(),
	}
}

func TestHub_BroadcastRespectsClientFilter(t *testing.T) {
	hub, _, _ := startHub(t)

	everything := createTestClient(hub, applog.Filter{}, 8)
	errorsOnly := createTestClient(hub, applog.Filter{Levels: []applog.Level{applog.LevelError}}, 8)
	hub.Register <- everything
	hub.Register <- errorsOnly
	waitForClients(t, hub, 2)

	hub.RecordPersisted(testRecord(applog.TypeHTTPRequest, applog.LevelInfo))
	hub.RecordPersisted(testRecord(applog.TypeError, applog.LevelError))

	for _, want := range []applog.Level{applog.LevelInfo, applog.LevelError} {
		msg, _ := receive(t, everything)
		record, ok := msg.Data.(*applog.Record)
		if msg.Type != MessageTypeLog || !ok || record.Level != want {
			t.Errorf("expected %s log message, got %+v", want, msg)
		}
	}

	msg, _ := receive(t, errorsOnly)
	if record, ok := msg.Data.(*applog.Record); !ok || record.Level != applog.LevelError {
		t.Errorf("expected only the error record, got %+v", msg)
	}
	expectNothing(t, errorsOnly)
}

func TestHub_DropsSlowClient(t *testing.T) {
	hub, _, _ := startHub(t)

	slow := createTestClient(hub, applog.Filter{}, 0)
	hub.Register <- slow
	waitForClients(t, hub, 1)

	hub.RecordPersisted(testRecord(applog.TypeError, applog.LevelError))
	waitForClients(t, hub, 0)

	if _, ok := <-slow.send; ok {
		t.Error("expected slow client's channel to be closed")
	}
}

func TestHub_Unregister(t *testing.T) {
	hub, _, _ := startHub(t)

	client := createTestClient(hub, applog.Filter{}, 1)
	hub.Register <- client
	waitForClients(t, hub, 1)

	hub.leave(client)
	waitForClients(t, hub, 0)

	// A second unregister of the same client is a no-op.
	hub.leave(client)
	waitForClients(t, hub, 0)
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	hub, cancel, done := startHub(t)

	client := createTestClient(hub, applog.Filter{}, 1)
	hub.Register <- client
	waitForClients(t, hub, 1)

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}

	if _, ok := <-client.send; ok {
		t.Error("expected client channel closed on shutdown")
	}
	if hub.GetClientCount() != 0 {
		t.Errorf("expected no clients after shutdown, got %d", hub.GetClientCount())
	}

	// Neither call may block once the hub is gone.
	hub.leave(client)
	if hub.join(createTestClient(hub, applog.Filter{}, 1)) {
		t.Error("expected join to fail after shutdown")
	}
}

func TestHub_RecordPersistedNeverBlocks(t *testing.T) {
	hub := NewHub()

	finished := make(chan struct{})
	go func() {
		hub.RecordPersisted(nil)
		for i := 0; i < broadcastBuffer*2; i++ {
			hub.RecordPersisted(testRecord(applog.TypeSystem, applog.LevelInfo))
		}
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("RecordPersisted blocked with no hub running")
	}
}

func TestGetShutdownReason(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	if got := getShutdownReason(canceled); got != ShutdownReasonContextCanceled {
		t.Errorf("expected %s, got %s", ShutdownReasonContextCanceled, got)
	}

	expired, cancel2 := context.WithTimeout(context.Background(), -time.Second)
	defer cancel2()
	if got := getShutdownReason(expired); got != ShutdownReasonContextDeadline {
		t.Errorf("expected %s, got %s", ShutdownReasonContextDeadline, got)
	}
}
