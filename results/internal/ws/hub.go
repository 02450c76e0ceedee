package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/modelperf/modelperf/results/internal/api"
	"github.com/modelperf/modelperf/results/internal/store"
)

const (
	writeTimeout = 10 * time.Second

	// pongWait bounds how long a silent connection is considered alive;
	// pingPeriod must stay below it.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// outBufSize is the per-subscriber outgoing message buffer depth. A
	// subscriber that falls this far behind is disconnected.
	outBufSize = 16
)

// Message is the JSON envelope sent to subscribers on every broadcast tick.
type Message struct {
	Event string           `json:"event"`
	Data  api.RunsResponse `json:"data"`
}

// Hub fans the live run list out to WebSocket subscribers on a fixed
// interval, so a dashboard following a sweep sees measurements land without
// polling the REST API.
type Hub struct {
	store    *store.Store
	interval time.Duration
	upgrader websocket.Upgrader

	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	conn *websocket.Conn
	out  chan []byte
}

// New creates a Hub that reads from st and broadcasts every interval.
func New(st *store.Store, interval time.Duration) *Hub {
	return &Hub{
		store:    st,
		interval: interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Origin checks belong to the reverse proxy in front of this.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		subs: make(map[*subscriber]struct{}),
	}
}

// Run drives the broadcast ticker. It blocks until ctx is cancelled, then
// drops every active subscriber.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.dropAll()
			return
		case <-t.C:
			h.broadcast(h.payload())
		}
	}
}

// ServeHTTP upgrades the connection and serves the subscriber until it
// disconnects. The current run list is pushed immediately on connect.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return
	}

	s := &subscriber{conn: conn, out: make(chan []byte, outBufSize)}

	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	defer h.drop(s)

	if data := h.payload(); data != nil {
		h.send(s, data)
	}

	go s.writePump()
	s.readPump() // returns when the connection closes
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) payload() []byte {
	data, err := json.Marshal(Message{Event: "runs", Data: api.BuildRuns(h.store)})
	if err != nil {
		return nil
	}
	return data
}

func (h *Hub) broadcast(data []byte) {
	if data == nil {
		return
	}

	// Sends happen under the read lock: drop removes a subscriber and closes
	// its channel under the write lock, so a channel reached here cannot be
	// closed mid-send.
	h.mu.RLock()
	var slow []*subscriber
	for s := range h.subs {
		select {
		case s.out <- data:
		default:
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range slow {
		// Subscriber can't keep up; cut it loose.
		h.drop(s)
	}
}

// send queues data for one subscriber, skipping it when the buffer is full
// or the subscriber was already dropped.
func (h *Hub) send(s *subscriber, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.subs[s]; !ok {
		return
	}
	select {
	case s.out <- data:
	default:
	}
}

func (h *Hub) drop(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.out)
	}
}

func (h *Hub) dropAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		close(s.out)
		delete(h.subs, s)
	}
}

// writePump forwards queued messages to the connection and keeps it alive
// with ping frames. One goroutine per subscriber.
func (s *subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.out:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				// Hub shut down or dropped this subscriber.
				s.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes control frames (pong, close) so disconnects are noticed.
// Blocks until the connection closes.
func (s *subscriber) readPump() {
	defer s.conn.Close()
	s.conn.SetReadLimit(512)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			break
		}
	}
}
