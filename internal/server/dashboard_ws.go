package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
	"nhooyr.io/websocket"

	"github.com/aristath/cryptopilot/internal/events"
)

const writeWait = 10 * time.Second

// StatusProvider builds the status event sent to new dashboard connections
type StatusProvider interface {
	StatusEvent() *events.StatusData
}

// Forcer starts a cycle in the background
type Forcer interface {
	Force() bool
}

// clientMessage is a command sent by the dashboard
type clientMessage struct {
	Type string `json:"type"`
}

// DashboardHub pushes bus events to WebSocket dashboards.
// Clients may request msgpack frames with ?encoding=msgpack.
type DashboardHub struct {
	eventBus *events.Bus
	status   StatusProvider
	cycle    Forcer
	log      zerolog.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewDashboardHub creates a new dashboard hub
func NewDashboardHub(eventBus *events.Bus, status StatusProvider, cycle Forcer, log zerolog.Logger) *DashboardHub {
	return &DashboardHub{
		eventBus: eventBus,
		status:   status,
		cycle:    cycle,
		log:      log.With().Str("component", "dashboard_ws").Logger(),
		conns:    make(map[*websocket.Conn]struct{}),
	}
}

// Connections returns the number of open dashboard connections
func (h *DashboardHub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// CloseAll disconnects every dashboard
func (h *DashboardHub) CloseAll() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}

// ServeHTTP handles GET /ws upgrades
func (h *DashboardHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	binary := r.URL.Query().Get("encoding") == "msgpack"

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.CloseNow()

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.conns, conn)
		h.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	eventChan := make(chan *events.Event, streamBuffer)
	unsubscribe := subscribeAll(h.eventBus, events.StreamTypes, func(event *events.Event) {
		select {
		case eventChan <- event:
		default:
			h.log.Warn().
				Str("event_type", string(event.Type)).
				Msg("Dashboard channel full, dropping event")
		}
	})
	defer unsubscribe()

	h.log.Info().Bool("msgpack", binary).Msg("Dashboard connected")

	status := h.status.StatusEvent()
	if err := h.send(ctx, conn, binary, streamMessage{
		Type:      string(status.EventType()),
		Timestamp: time.Now().Format(time.RFC3339),
		Data:      status,
	}); err != nil {
		h.log.Debug().Err(err).Msg("Failed to send status")
		return
	}

	go h.readLoop(ctx, cancel, conn)

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Dashboard disconnected")
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case event := <-eventChan:
			if err := h.send(ctx, conn, binary, newStreamMessage(event)); err != nil {
				h.log.Debug().Err(err).Msg("Dropping dashboard connection")
				return
			}
		}
	}
}

// readLoop handles dashboard commands until the connection closes
func (h *DashboardHub) readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn) {
	defer cancel()

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				h.log.Debug().Err(err).Msg("Dashboard read failed")
			}
			return
		}

		var msg clientMessage
		switch msgType {
		case websocket.MessageBinary:
			err = decodeMsgpack(data, &msg)
		default:
			err = json.Unmarshal(data, &msg)
		}
		if err != nil {
			h.log.Debug().Err(err).Msg("Ignoring malformed dashboard message")
			continue
		}

		switch msg.Type {
		case "force_analysis":
			started := h.cycle.Force()
			h.log.Info().Bool("started", started).Msg("Analysis forced from dashboard")
		default:
			h.log.Debug().Str("type", msg.Type).Msg("Ignoring unknown dashboard message")
		}
	}
}

func (h *DashboardHub) send(ctx context.Context, conn *websocket.Conn, binary bool, msg streamMessage) error {
	msgType := websocket.MessageText
	var data []byte
	var err error
	if binary {
		msgType = websocket.MessageBinary
		data, err = encodeMsgpack(msg)
	} else {
		data, err = json.Marshal(msg)
	}
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	return conn.Write(writeCtx, msgType, data)
}

// encodeMsgpack encodes v using its json field names
func encodeMsgpack(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeMsgpack decodes data into v using its json field names
func decodeMsgpack(data []byte, v interface{}) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}
