package match

import "time"

// SessionEvent is a transport-level connection change surfaced to the
// controller: either a new session or a lost one.
type SessionEvent interface {
	sessionEvent()
}

// SessionConnected reports a freshly accepted session. Name is the display
// name the client asked for in its handshake; it may be empty.
type SessionConnected struct {
	ClientID uint64
	Name     string
}

// SessionDisconnected reports a session the transport gave up on.
type SessionDisconnected struct {
	ClientID uint64
	Reason   string
}

func (SessionConnected) sessionEvent()    {}
func (SessionDisconnected) sessionEvent() {}

// Transport is the connection-oriented, reliable-ordered message channel the
// controller drives. The production implementation is the websocket hub in
// internal/api; tests use an in-memory fake. All methods are non-blocking:
// receives return only what has already arrived, sends are queued until
// SendPackets.
//
// The controller calls Update and SendPackets exactly once per tick.
type Transport interface {
	// Update pumps the transport's internal bookkeeping for one tick.
	Update(elapsed time.Duration)

	// PollEvent pops the next pending connection change, if any.
	PollEvent() (SessionEvent, bool)

	// Clients lists the currently connected session ids.
	Clients() []uint64

	// Receive pops the next queued inbound message for a session.
	Receive(clientID uint64) ([]byte, bool)

	// Send queues a message for one session.
	Send(clientID uint64, data []byte)

	// Broadcast queues a message for every connected session.
	Broadcast(data []byte)

	// BroadcastExcept queues a message for every session but one.
	BroadcastExcept(except uint64, data []byte)

	// Disconnect drops a session server-side (admission rejection).
	Disconnect(clientID uint64)

	// SendPackets flushes everything queued by Send this tick.
	SendPackets()
}
