// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package server

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/warthog618/ads131m/acquire"
)

const (
	sendQueueSize = 64
	pingPeriod    = 30 * time.Second
	pongWait      = 60 * time.Second
	writeWait     = 10 * time.Second
	maxReadSize   = 512
)

// Hub fans readings out to the connected websocket clients.
//
// A slow client drops readings rather than stalling acquisition.
type Hub struct {
	mu      sync.Mutex
	log     *slog.Logger
	clients map[*client]struct{}
	closed  bool
}

func newHub(log *slog.Logger) *Hub {
	return &Hub{
		log:     log,
		clients: make(map[*client]struct{}),
	}
}

// Publish sends r to every connected client.
func (h *Hub) Publish(r acquire.Reading) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.send(r)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects all clients.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		c.close()
	}
	h.clients = make(map[*client]struct{})
}

func (h *Hub) add(conn *websocket.Conn) *client {
	c := &client{
		hub:    h,
		conn:   conn,
		sendCh: make(chan acquire.Reading, sendQueueSize),
		done:   make(chan struct{}),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		c.close()
		return c
	}
	h.clients[c] = struct{}{}
	h.log.Debug("websocket client connected", "remote", conn.RemoteAddr().String())
	return c
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		h.log.Debug("websocket client disconnected", "remote", c.conn.RemoteAddr().String())
	}
}

type client struct {
	hub     *Hub
	conn    *websocket.Conn
	sendCh  chan acquire.Reading
	done    chan struct{}
	once    sync.Once
	dropped uint64
}

// send queues r, dropping it if the queue is full.
//
// Called with the hub lock held.
func (c *client) send(r acquire.Reading) {
	select {
	case c.sendCh <- r:
	case <-c.done:
	default:
		c.dropped++
		if c.dropped&(c.dropped-1) == 0 {
			c.hub.log.Warn("websocket client lagging", "dropped", c.dropped)
		}
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// readPump discards client messages, keeping the connection alive until the
// client goes away.
func (c *client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.close()
	}()
	c.conn.SetReadLimit(maxReadSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("websocket read", "err", err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case r := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(r); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
