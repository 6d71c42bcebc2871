package api

import (
	"log"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"maze-wars/internal/match"
	"maze-wars/internal/protocol"
)

const (
	// MaxSessionsTotal is the hard cap on concurrent sessions.
	MaxSessionsTotal = 64

	// MaxSessionsPerIP limits concurrent sessions from one address.
	MaxSessionsPerIP = 4

	// sessionSendBuffer is the per-session outbound queue depth. A client
	// that can't keep up gets messages dropped, never the loop stalled.
	sessionSendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The maze protocol is trust-on-connect; any origin may join.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// session is one connected client: its socket, the name it asked for, and
// the queues that decouple socket I/O from the tick loop.
type session struct {
	id   uint64
	name string
	ip   string
	conn *websocket.Conn

	outbound chan []byte // drained by the writer goroutine
	pending  [][]byte    // staged by Send, moved to outbound by SendPackets
	inbound  [][]byte    // filled by the reader goroutine, popped by Receive
	closed   bool
}

// Hub is the transport/session adapter: a websocket hub exposing the
// non-blocking polling surface the match controller drives. Each session
// gets an opaque uint64 client id from a process-wide counter; that id is
// the ONLY identity the rest of the server ever sees.
//
// Reader and writer goroutines touch only their own session's queues under
// the hub mutex; the match state itself never leaves the tick loop.
type Hub struct {
	mu       sync.Mutex
	sessions map[uint64]*session
	events   []match.SessionEvent

	nextID  atomic.Uint64
	limiter *SessionLimiter
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		sessions: make(map[uint64]*session),
		limiter:  NewSessionLimiter(MaxSessionsPerIP),
	}
}

// HandleWS upgrades an HTTP request into a session. The client passes its
// requested display name as a `name` query parameter.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	h.mu.Lock()
	total := len(h.sessions)
	h.mu.Unlock()

	if total >= MaxSessionsTotal {
		log.Printf("⚠️ session rejected: total limit reached (%d)", total)
		RecordConnectionRejected("total_limit")
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}

	if !h.limiter.Allow(ip) {
		log.Printf("⚠️ session rejected from %s: per-IP limit reached", ip)
		RecordConnectionRejected("ip_limit")
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("⚠️ websocket upgrade failed: %v", err)
		h.limiter.Release(ip)
		return
	}
	conn.SetReadLimit(protocol.MaxMessageSize)

	s := &session{
		id:       h.nextID.Add(1),
		name:     r.URL.Query().Get("name"),
		ip:       ip,
		conn:     conn,
		outbound: make(chan []byte, sessionSendBuffer),
	}

	h.mu.Lock()
	h.sessions[s.id] = s
	h.events = append(h.events, match.SessionConnected{ClientID: s.id, Name: s.name})
	UpdateSessionCount(len(h.sessions))
	h.mu.Unlock()

	log.Printf("📡 session %d connected from %s", s.id, ip)

	go h.writeLoop(s)
	go h.readLoop(s)
}

func (h *Hub) readLoop(s *session) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			h.drop(s, err.Error())
			return
		}

		h.mu.Lock()
		s.inbound = append(s.inbound, data)
		h.mu.Unlock()
		IncrementMessagesReceived()
	}
}

func (h *Hub) writeLoop(s *session) {
	for data := range s.outbound {
		if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			break
		}
		IncrementMessagesSent()
	}
	s.conn.Close()
}

// drop tears a session down once. If the controller already removed it via
// Disconnect, the transport event is suppressed: the controller initiated
// the close and does not need to hear about it.
func (h *Hub) drop(s *session, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[s.id]; !ok {
		return
	}
	delete(h.sessions, s.id)
	h.closeSession(s)
	h.events = append(h.events, match.SessionDisconnected{ClientID: s.id, Reason: reason})
	UpdateSessionCount(len(h.sessions))

	log.Printf("📡 session %d disconnected: %s", s.id, reason)
}

// closeSession flushes staged messages and shuts the writer down. Caller
// holds the hub mutex.
func (h *Hub) closeSession(s *session) {
	if s.closed {
		return
	}
	s.closed = true
	h.limiter.Release(s.ip)

	for _, data := range s.pending {
		select {
		case s.outbound <- data:
		default:
		}
	}
	s.pending = nil
	close(s.outbound) // writer drains what's buffered, then closes the conn
}

// Update is the per-tick transport pump. The hub's goroutines do the real
// work; this only refreshes the session gauge.
func (h *Hub) Update(elapsed time.Duration) {
	h.mu.Lock()
	UpdateSessionCount(len(h.sessions))
	h.mu.Unlock()
}

// PollEvent pops the next pending connection change.
func (h *Hub) PollEvent() (match.SessionEvent, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.events) == 0 {
		return nil, false
	}
	event := h.events[0]
	h.events = h.events[1:]
	return event, true
}

// Clients returns the connected session ids in ascending order, so message
// draining is first-come-first-served within a tick.
func (h *Hub) Clients() []uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	ids := make([]uint64, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Receive pops the next queued inbound message for a session.
func (h *Hub) Receive(clientID uint64) ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[clientID]
	if !ok || len(s.inbound) == 0 {
		return nil, false
	}
	data := s.inbound[0]
	s.inbound = s.inbound[1:]
	return data, true
}

// Send stages a message for one session until the next SendPackets.
func (h *Hub) Send(clientID uint64, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s, ok := h.sessions[clientID]; ok {
		s.pending = append(s.pending, data)
	}
}

// Broadcast stages a message for every connected session.
func (h *Hub) Broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, s := range h.sessions {
		s.pending = append(s.pending, data)
	}
}

// BroadcastExcept stages a message for every session but one.
func (h *Hub) BroadcastExcept(except uint64, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, s := range h.sessions {
		if id == except {
			continue
		}
		s.pending = append(s.pending, data)
	}
}

// Disconnect drops a session server-side. Staged messages (the
// AccessForbidden rejection, typically) are flushed before the socket
// closes, and no SessionDisconnected event is raised for it.
func (h *Hub) Disconnect(clientID uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[clientID]
	if !ok {
		return
	}
	delete(h.sessions, clientID)
	h.closeSession(s)
	UpdateSessionCount(len(h.sessions))
}

// SendPackets moves everything staged this tick onto the session sockets.
// A session whose outbound queue is full loses the overflow (backpressure:
// slow clients never stall the loop).
func (h *Hub) SendPackets() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, s := range h.sessions {
		for _, data := range s.pending {
			select {
			case s.outbound <- data:
			default:
				IncrementMessagesDropped()
			}
		}
		s.pending = nil
	}
}

// SessionCount returns how many sessions are connected.
func (h *Hub) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}
