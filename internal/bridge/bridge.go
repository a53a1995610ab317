// Package bridge relays broadcast state to an embedding host and
// accepts control commands back, over a single websocket.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/normanking/anchorcast/internal/bus"
)

// Controller is the subset of session control the host may drive
type Controller interface {
	StartScript(data []byte) error
	Pause() error
	Resume() error
	Stop()
}

// hostMessage is the frame format in both directions
type hostMessage struct {
	Type string `json:"type"`

	// Outbound: segment-progress
	Current int `json:"current,omitempty"`
	Total   int `json:"total,omitempty"`

	// Outbound: broadcast-status
	Status string `json:"status,omitempty"`
	RunID  string `json:"runId,omitempty"`

	// Outbound: overlay and indicator payloads
	State    any   `json:"state,omitempty"`
	Degraded *bool `json:"degraded,omitempty"`

	// Inbound: command
	Action string          `json:"action,omitempty"`
	Script json.RawMessage `json:"script,omitempty"`

	Error string `json:"error,omitempty"`
}

// Bridge connects the engine to its host. Lifecycle events published
// on the bus are forwarded as outbound frames; inbound command frames
// are dispatched to the controller.
type Bridge struct {
	url        string
	events     *bus.EventBus
	controller Controller
	logger     zerolog.Logger

	writeMu sync.Mutex
	conn    *websocket.Conn
	closed  bool
}

// New creates a bridge client for the given host websocket URL
func New(url string, events *bus.EventBus, controller Controller, logger zerolog.Logger) *Bridge {
	return &Bridge{
		url:        url,
		events:     events,
		controller: controller,
		logger:     logger.With().Str("component", "bridge").Logger(),
	}
}

// Connect dials the host, wires bus subscriptions, and starts reading
// commands.
func (b *Bridge) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, b.url, nil)
	if err != nil {
		return fmt.Errorf("connect to host: %w", err)
	}

	b.writeMu.Lock()
	b.conn = conn
	b.writeMu.Unlock()

	b.subscribe()
	go b.readCommands(conn)

	b.logger.Info().Str("url", b.url).Msg("Connected to host")
	return nil
}

func (b *Bridge) subscribe() {
	b.events.Subscribe(bus.EventTypeSegmentProgress, func(e bus.Event) {
		current, _ := e.Data["current"].(int)
		total, _ := e.Data["total"].(int)
		b.post(hostMessage{Type: "segment-progress", Current: current, Total: total})
	})

	b.events.Subscribe(bus.EventTypeStatusChanged, func(e bus.Event) {
		status, _ := e.Data["status"].(string)
		runID, _ := e.Data["runID"].(string)
		b.post(hostMessage{Type: "broadcast-status", Status: status, RunID: runID})
	})

	b.events.Subscribe(bus.EventTypeOverlayChanged, func(e bus.Event) {
		b.post(hostMessage{Type: "overlay", State: e.Data["state"]})
	})

	b.events.Subscribe(bus.EventTypeIndicator, func(e bus.Event) {
		if degraded, ok := e.Data["degraded"].(bool); ok {
			b.post(hostMessage{Type: "indicator", Degraded: &degraded})
			return
		}
		if status, ok := e.Data["status"].(string); ok {
			b.post(hostMessage{Type: "indicator", Status: status})
		}
	})
}

func (b *Bridge) post(msg hostMessage) {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if b.conn == nil || b.closed {
		return
	}
	if err := b.conn.WriteJSON(msg); err != nil {
		b.logger.Warn().Err(err).Str("type", msg.Type).Msg("Failed to post to host")
	}
}

func (b *Bridge) readCommands(conn *websocket.Conn) {
	for {
		var msg hostMessage
		if err := conn.ReadJSON(&msg); err != nil {
			b.writeMu.Lock()
			closed := b.closed
			b.writeMu.Unlock()
			if !closed {
				b.logger.Warn().Err(err).Msg("Host connection lost")
			}
			return
		}
		if msg.Type != "command" {
			continue
		}
		b.dispatch(msg)
	}
}

// dispatch runs one host command and reports failures back
func (b *Bridge) dispatch(msg hostMessage) {
	var err error
	switch msg.Action {
	case "start":
		err = b.controller.StartScript(msg.Script)
	case "pause":
		err = b.controller.Pause()
	case "resume":
		err = b.controller.Resume()
	case "stop":
		b.controller.Stop()
	default:
		err = fmt.Errorf("unknown action %q", msg.Action)
	}

	if err != nil {
		b.logger.Warn().Err(err).Str("action", msg.Action).Msg("Host command failed")
		b.post(hostMessage{Type: "command-error", Action: msg.Action, Error: err.Error()})
	}
}

// Close shuts the host connection
func (b *Bridge) Close() error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	b.closed = true
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn = nil
	return err
}
