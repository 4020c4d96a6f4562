// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

// Package server provides an HTTP readout of the acquired values, with a
// websocket stream of each reading.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/warthog618/ads131m"
	"github.com/warthog618/ads131m/acquire"
)

// ValueSource provides the latest reading.
type ValueSource interface {
	Latest() (acquire.Reading, bool)
}

// StatsSource provides the acquisition counters.
type StatsSource interface {
	Stats() acquire.Stats
}

// RegisterSource provides the device register shadow.
type RegisterSource interface {
	Registers() ads131m.Registers
}

// Register is a register as reported by /api/registers.
type Register struct {
	Addr  uint8  `json:"addr"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

const shutdownTimeout = 2 * time.Second

// Server serves the readout API.
type Server struct {
	values   ValueSource
	stats    StatsSource
	regs     RegisterSource
	channels int
	log      *slog.Logger
	hub      *Hub
	upgrader websocket.Upgrader
	mux      *http.ServeMux
}

// New creates a Server reporting the readings from values.
func New(values ValueSource, options ...Option) *Server {
	s := Server{
		values:   values,
		channels: ads131m.DefaultChannels,
		log:      slog.Default(),
	}
	for _, option := range options {
		option(&s)
	}
	s.hub = newHub(s.log)
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
	s.mux = http.NewServeMux()
	s.mux.HandleFunc("/api/values", s.handleValues)
	s.mux.HandleFunc("/api/stats", s.handleStats)
	s.mux.HandleFunc("/api/registers", s.handleRegisters)
	s.mux.HandleFunc("/ws", s.handleWebSocket)
	return &s
}

// Handler returns the HTTP handler for the API.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Hub returns the websocket hub, which publishes readings to connected
// clients.
func (s *Server) Hub() *Hub {
	return s.hub
}

// ListenAndServe serves the API on addr until ctx is done.
//
// If provided, ready is called with the listening address once the server is
// accepting connections.
func (s *Server) ListenAndServe(ctx context.Context, addr string, ready func(net.Addr)) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	hs := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info("server listening", "addr", l.Addr().String())
	if ready != nil {
		ready(l.Addr())
	}
	errs := make(chan error, 1)
	go func() {
		errs <- hs.Serve(l)
	}()
	select {
	case err = <-errs:
	case <-ctx.Done():
		s.hub.Close()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		err = hs.Shutdown(sctx)
		cancel()
		<-errs
	}
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	return err
}

func (s *Server) handleValues(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rd, ok := s.values.Latest()
	if !ok {
		http.Error(w, "no reading available", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, rd)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.stats == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, s.stats.Stats())
}

func (s *Server) handleRegisters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.regs == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, Dump(s.regs.Registers(), s.channels))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade", "err", err)
		return
	}
	c := s.hub.add(conn)
	go c.writePump()
	c.readPump()
}

// Dump returns the registers of a device with the given number of channels,
// in address order.
func Dump(regs ads131m.Registers, channels int) []Register {
	last := ads131m.ChGCalLSB(channels - 1)
	rr := make([]Register, 0, int(last)+2)
	for addr := uint8(0); addr <= last; addr++ {
		rr = append(rr, Register{
			Addr:  addr,
			Name:  ads131m.RegisterName(addr),
			Value: fmt.Sprintf("0x%04x", regs[addr]),
		})
	}
	rr = append(rr, Register{
		Addr:  ads131m.RegMapCRC,
		Name:  ads131m.RegisterName(ads131m.RegMapCRC),
		Value: fmt.Sprintf("0x%04x", regs[ads131m.RegMapCRC]),
	})
	return rr
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// Option specifies a construction option for a Server.
type Option func(*Server)

// WithStats adds the /api/stats endpoint reporting the counters from ss.
func WithStats(ss StatsSource) Option {
	return func(s *Server) {
		s.stats = ss
	}
}

// WithRegisters adds the /api/registers endpoint reporting the registers of
// a device with the given number of channels.
func WithRegisters(rs RegisterSource, channels int) Option {
	return func(s *Server) {
		s.regs = rs
		s.channels = channels
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}
