package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/cryptopilot/internal/events"
	"github.com/aristath/cryptopilot/internal/utils"
)

// streamBuffer bounds the per-connection queue; events beyond it are dropped
const streamBuffer = 100

// heartbeatInterval keeps idle streams open through proxies
var heartbeatInterval = 30 * time.Second

// streamMessage is the envelope written to SSE and WebSocket clients
type streamMessage struct {
	Type      string      `json:"type"`
	Module    string      `json:"module,omitempty"`
	Timestamp string      `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

func newStreamMessage(event *events.Event) streamMessage {
	return streamMessage{
		Type:      string(event.Type),
		Module:    event.Module,
		Timestamp: event.Timestamp.Format(time.RFC3339),
		Data:      event.Data,
	}
}

// subscribeAll subscribes handler to every type in types and returns a
// function that removes all of those subscriptions.
func subscribeAll(bus *events.Bus, types []events.EventType, handler events.Handler) func() {
	unsubscribers := make([]func(), 0, len(types))
	for _, eventType := range types {
		unsubscribers = append(unsubscribers, bus.Subscribe(eventType, handler))
	}
	return func() {
		for _, unsubscribe := range unsubscribers {
			unsubscribe()
		}
	}
}

// parseTypes reads an optional comma separated filter of dashboard event types
func parseTypes(filter string) []events.EventType {
	if filter == "" {
		return events.StreamTypes
	}

	known := make(map[events.EventType]bool, len(events.StreamTypes))
	for _, t := range events.StreamTypes {
		known[t] = true
	}

	var types []events.EventType
	for _, raw := range utils.ParseCSV(filter) {
		t := events.EventType(raw)
		if known[t] {
			types = append(types, t)
		}
	}
	return types
}

// EventsStreamHandler streams bus events as Server-Sent Events
type EventsStreamHandler struct {
	eventBus  *events.Bus
	log       zerolog.Logger
	done      chan struct{}
	closeOnce sync.Once
}

// NewEventsStreamHandler creates a new events stream handler
func NewEventsStreamHandler(eventBus *events.Bus, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		eventBus: eventBus,
		log:      log.With().Str("component", "events_stream").Logger(),
		done:     make(chan struct{}),
	}
}

// Close ends every open stream. http.Server.Shutdown does not cancel
// request contexts, so streams would otherwise hold it until its deadline.
func (h *EventsStreamHandler) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// ServeHTTP handles GET /api/events/stream requests (SSE)
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	types := parseTypes(r.URL.Query().Get("types"))

	eventChan := make(chan *events.Event, streamBuffer)
	unsubscribe := subscribeAll(h.eventBus, types, func(event *events.Event) {
		// Non-blocking send (drop if channel full)
		select {
		case eventChan <- event:
		default:
			h.log.Warn().
				Str("event_type", string(event.Type)).
				Msg("Event channel full, dropping event")
		}
	})
	defer unsubscribe()

	h.log.Info().Int("types", len(types)).Msg("Client connected to event stream")

	h.write(w, map[string]interface{}{
		"type":    "connected",
		"message": "Connected to event stream",
	})
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.log.Info().Msg("Client disconnected from event stream")
			return

		case <-h.done:
			h.log.Info().Msg("Closing event stream for shutdown")
			return

		case event := <-eventChan:
			h.write(w, newStreamMessage(event))
			flusher.Flush()

		case <-heartbeat.C:
			h.write(w, map[string]interface{}{
				"type":      "heartbeat",
				"timestamp": time.Now().Format(time.RFC3339),
			})
			flusher.Flush()
		}
	}
}

func (h *EventsStreamHandler) write(w http.ResponseWriter, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to marshal event")
		data = []byte(`{"error":"failed to encode event"}`)
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}
