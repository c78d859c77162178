// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package websocket

import (
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tomtom215/tracklog/internal/applog"
	"github.com/tomtom215/tracklog/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024 // clients only send pings

	sendBuffer = 256
)

// nextClientID orders clients for broadcast.
var nextClientID atomic.Uint64

// Client is one live tail subscriber. The hub pushes matching records into
// send and the client's writer goroutine frames them onto the socket.
type Client struct {
	id     uint64
	hub    *Hub
	conn   *websocket.Conn
	send   chan Message
	filter applog.Filter
	log    zerolog.Logger
}

// NewClient creates a client that receives records matching filter.
// Pagination fields of filter are ignored.
func NewClient(hub *Hub, conn *websocket.Conn, filter applog.Filter) *Client {
	filter.Limit, filter.Offset = 0, 0
	id := nextClientID.Add(1)
	return &Client{
		id:     id,
		hub:    hub,
		conn:   conn,
		send:   make(chan Message, sendBuffer),
		filter: filter,
		log:    logging.With().Str("component", "live-tail").Uint64("client_id", id).Logger(),
	}
}

// ID orders clients for broadcast.
func (c *Client) ID() uint64 {
	return c.id
}

// Start launches the reader and writer goroutines.
func (c *Client) Start() {
	go c.writeLoop()
	go c.readLoop()
}

// readLoop keeps the read deadline alive, answers application pings and
// unregisters the client once the peer goes away.
func (c *Client) readLoop() {
	defer func() {
		c.hub.leave(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	extend := func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) }
	if err := extend(""); err != nil {
		c.log.Error().Err(err).Msg("Failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(extend)

	for {
		var in Message
		if err := c.conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("Live tail connection closed unexpectedly")
			}
			return
		}
		if in.Type != MessageTypePing {
			continue
		}
		select {
		case c.send <- Message{Type: MessageTypePong}:
		default:
		}
	}
}

// writeLoop drains send and pings the peer every pingPeriod. A closed send
// channel means the hub dropped the client.
func (c *Client) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, open := <-c.send:
			if !open {
				_ = c.frame(func() error {
					return c.conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				})
				return
			}
			if err := c.frame(func() error { return c.conn.WriteJSON(msg) }); err != nil {
				c.log.Debug().Err(err).Msg("Live tail write failed")
				return
			}
		case <-ping.C:
			if err := c.frame(func() error { return c.conn.WriteMessage(websocket.PingMessage, nil) }); err != nil {
				return
			}
		}
	}
}

// frame runs one write under a fresh write deadline.
func (c *Client) frame(write func() error) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return write()
}
