package match

import (
	"slices"
	"testing"
	"time"

	"maze-wars/internal/game"
	"maze-wars/internal/protocol"
)

// fakeTransport is an in-memory Transport: tests enqueue connection events
// and inbound messages, then inspect what the controller sent where.
type fakeTransport struct {
	clients      []uint64
	events       []SessionEvent
	inbound      map[uint64][][]byte
	sent         map[uint64][][]byte
	disconnected []uint64
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbound: make(map[uint64][][]byte),
		sent:    make(map[uint64][][]byte),
	}
}

func (f *fakeTransport) connect(clientID uint64, name string) {
	f.clients = append(f.clients, clientID)
	f.events = append(f.events, SessionConnected{ClientID: clientID, Name: name})
}

func (f *fakeTransport) disconnect(clientID uint64, reason string) {
	f.remove(clientID)
	f.events = append(f.events, SessionDisconnected{ClientID: clientID, Reason: reason})
}

func (f *fakeTransport) submit(t *testing.T, clientID uint64, event game.Event) {
	t.Helper()
	data, err := protocol.Encode(event)
	if err != nil {
		t.Fatalf("encoding %T: %v", event, err)
	}
	f.inbound[clientID] = append(f.inbound[clientID], data)
}

func (f *fakeTransport) sentEvents(t *testing.T, clientID uint64) []game.Event {
	t.Helper()
	var events []game.Event
	for _, data := range f.sent[clientID] {
		event, err := protocol.Decode(data)
		if err != nil {
			t.Fatalf("decoding sent message: %v", err)
		}
		events = append(events, event)
	}
	return events
}

func (f *fakeTransport) clearSent() {
	f.sent = make(map[uint64][][]byte)
}

func (f *fakeTransport) remove(clientID uint64) {
	if i := slices.Index(f.clients, clientID); i >= 0 {
		f.clients = slices.Delete(f.clients, i, i+1)
	}
	delete(f.inbound, clientID)
}

func (f *fakeTransport) Update(time.Duration) {}

func (f *fakeTransport) PollEvent() (SessionEvent, bool) {
	if len(f.events) == 0 {
		return nil, false
	}
	event := f.events[0]
	f.events = f.events[1:]
	return event, true
}

func (f *fakeTransport) Clients() []uint64 {
	return slices.Clone(f.clients)
}

func (f *fakeTransport) Receive(clientID uint64) ([]byte, bool) {
	queue := f.inbound[clientID]
	if len(queue) == 0 {
		return nil, false
	}
	f.inbound[clientID] = queue[1:]
	return queue[0], true
}

func (f *fakeTransport) Send(clientID uint64, data []byte) {
	f.sent[clientID] = append(f.sent[clientID], data)
}

func (f *fakeTransport) Broadcast(data []byte) {
	for _, id := range f.clients {
		f.Send(id, data)
	}
}

func (f *fakeTransport) BroadcastExcept(except uint64, data []byte) {
	for _, id := range f.clients {
		if id != except {
			f.Send(id, data)
		}
	}
}

func (f *fakeTransport) Disconnect(clientID uint64) {
	f.remove(clientID)
	f.disconnected = append(f.disconnected, clientID)
}

func (f *fakeTransport) SendPackets() {}

func newTestController(t *testing.T, ft *fakeTransport, cfg Config) (*Controller, *game.State) {
	t.Helper()
	state := game.NewState()
	if err := state.SetLevel(1); err != nil {
		t.Fatalf("SetLevel: %v", err)
	}
	return NewController(state, ft, nil, cfg), state
}

func eventTypes(events []game.Event) []game.EventType {
	types := make([]game.EventType, len(events))
	for i, e := range events {
		types[i] = e.Type()
	}
	return types
}

// TestJoinSequencing verifies the asymmetric join payloads: the joiner gets
// catch-up PlayerJoined messages plus its own Spawn; everyone else gets the
// new PlayerJoined only.
func TestJoinSequencing(t *testing.T) {
	ft := newFakeTransport()
	c, state := newTestController(t, ft, Config{PlayerLimit: 10, CountdownSeconds: 20})
	now := time.Now()

	ft.connect(100, "alice")
	c.Tick(now)

	aliceEvents := ft.sentEvents(t, 100)
	if len(aliceEvents) != 1 {
		t.Fatalf("alice got %d messages, want 1 (Spawn): %v", len(aliceEvents), eventTypes(aliceEvents))
	}
	spawn, ok := aliceEvents[0].(game.Spawn)
	if !ok {
		t.Fatalf("alice got %T, want Spawn", aliceEvents[0])
	}
	if spawn.Level != 1 {
		t.Errorf("spawn level %d, want 1", spawn.Level)
	}

	ft.clearSent()
	ft.connect(200, "bob")
	c.Tick(now)

	bobEvents := ft.sentEvents(t, 200)
	if got := eventTypes(bobEvents); len(got) != 2 ||
		got[0] != game.EventPlayerJoined || got[1] != game.EventSpawn {
		t.Fatalf("bob got %v, want [player_joined spawn]", got)
	}
	catchup := bobEvents[0].(game.PlayerJoined)
	if catchup.PlayerID != spawn.PlayerID {
		t.Errorf("catch-up join is about player %d, want %d", catchup.PlayerID, spawn.PlayerID)
	}

	aliceEvents = ft.sentEvents(t, 100)
	if got := eventTypes(aliceEvents); len(got) != 1 || got[0] != game.EventPlayerJoined {
		t.Fatalf("alice got %v, want [player_joined]", got)
	}

	if state.PlayerCount() != 2 {
		t.Errorf("expected 2 players, got %d", state.PlayerCount())
	}
}

// TestLimitTriggeredStart verifies the match begins immediately at the
// player limit, each client receiving a list without itself in it.
func TestLimitTriggeredStart(t *testing.T) {
	ft := newFakeTransport()
	c, state := newTestController(t, ft, Config{PlayerLimit: 2, CountdownSeconds: 20})

	ft.connect(100, "alice")
	ft.connect(200, "bob")
	c.Tick(time.Now())

	if state.Stage() != game.StageInGame {
		t.Fatalf("expected ingame, got %s", state.Stage())
	}

	for _, clientID := range []uint64{100, 200} {
		events := ft.sentEvents(t, clientID)
		var begin *game.BeginGame
		for _, e := range events {
			if b, ok := e.(game.BeginGame); ok {
				begin = &b
			}
		}
		if begin == nil {
			t.Fatalf("client %d never received BeginGame: %v", clientID, eventTypes(events))
		}
		if len(begin.PlayerList) != 1 {
			t.Fatalf("client %d got %d players in list, want 1", clientID, len(begin.PlayerList))
		}
		selfID, _ := state.PlayerIDForClient(clientID)
		if _, ok := begin.PlayerList[selfID]; ok {
			t.Errorf("client %d sees itself in the BeginGame list", clientID)
		}
	}
}

// TestAccessForbiddenWhenRunning covers scenario F: a connection outside the
// lobby phase is turned away without touching the player set.
func TestAccessForbiddenWhenRunning(t *testing.T) {
	ft := newFakeTransport()
	c, state := newTestController(t, ft, Config{PlayerLimit: 2, CountdownSeconds: 20})

	ft.connect(100, "alice")
	ft.connect(200, "bob")
	c.Tick(time.Now()) // fills the lobby, match begins

	ft.clearSent()
	ft.connect(300, "late")
	c.Tick(time.Now())

	events := ft.sentEvents(t, 300)
	if got := eventTypes(events); len(got) != 1 || got[0] != game.EventAccessForbidden {
		t.Fatalf("late client got %v, want [access_forbidden]", got)
	}
	if !slices.Contains(ft.disconnected, 300) {
		t.Error("late session was not dropped")
	}
	if state.PlayerCount() != 2 {
		t.Errorf("player count changed to %d", state.PlayerCount())
	}
}

// TestCountdownBroadcastsTimer verifies the lobby timer ticks once per
// wall-clock second and starts the match at zero.
func TestCountdownBroadcastsTimer(t *testing.T) {
	ft := newFakeTransport()
	c, state := newTestController(t, ft, Config{PlayerLimit: 10, CountdownSeconds: 3})
	base := time.Now()

	ft.connect(100, "alice")
	ft.connect(200, "bob")
	c.Tick(base) // admits both, arms the timer

	var remaining []uint8
	for i := 1; i <= 3; i++ {
		ft.clearSent()
		c.Tick(base.Add(time.Duration(i) * time.Second))
		for _, e := range ft.sentEvents(t, 100) {
			if timer, ok := e.(game.Timer); ok {
				remaining = append(remaining, timer.Remaining)
			}
		}
	}

	want := []uint8{2, 1, 0}
	if !slices.Equal(remaining, want) {
		t.Errorf("timer values %v, want %v", remaining, want)
	}
	if state.Stage() != game.StageInGame {
		t.Errorf("expected ingame after countdown, got %s", state.Stage())
	}
}

// TestCountdownRearmsBelowQuorum verifies the countdown resets when the
// lobby drops back under two players.
func TestCountdownRearmsBelowQuorum(t *testing.T) {
	ft := newFakeTransport()
	c, _ := newTestController(t, ft, Config{PlayerLimit: 10, CountdownSeconds: 10})
	base := time.Now()

	ft.connect(100, "alice")
	ft.connect(200, "bob")
	c.Tick(base)
	c.Tick(base.Add(1 * time.Second))
	c.Tick(base.Add(2 * time.Second))

	if c.Stats().Countdown >= 10 {
		t.Fatalf("countdown never advanced: %d", c.Stats().Countdown)
	}

	ft.disconnect(200, "connection reset")
	c.Tick(base.Add(3 * time.Second))

	if got := c.Stats().Countdown; got != 10 {
		t.Errorf("countdown %d after quorum loss, want 10", got)
	}
}

// TestForgedMoveRouting covers scenario D end to end: the mover's session
// decides authorship, the sender gets nothing back, and every observer's
// payload excludes the observer itself.
func TestForgedMoveRouting(t *testing.T) {
	ft := newFakeTransport()
	c, state := newTestController(t, ft, Config{PlayerLimit: 3, CountdownSeconds: 20})

	ft.connect(100, "alice")
	ft.connect(200, "bob")
	ft.connect(300, "carol")
	c.Tick(time.Now()) // limit reached, match begins

	aliceID, _ := state.PlayerIDForClient(100)
	bobID, _ := state.PlayerIDForClient(200)
	carolID, _ := state.PlayerIDForClient(300)

	ft.clearSent()
	ft.submit(t, 100, game.PlayerMove{
		PlayerID: bobID, // forged authorship
		At:       game.NewPosition(5, 0.2, 5),
		Vision:   game.Vector2{X: 1, Y: 0},
	})
	c.Tick(time.Now())

	if len(ft.sentEvents(t, 100)) != 0 {
		t.Error("mover received its own move back")
	}

	for clientID, selfID := range map[uint64]game.PlayerID{200: bobID, 300: carolID} {
		events := ft.sentEvents(t, clientID)
		if len(events) != 1 {
			t.Fatalf("client %d got %d messages, want 1", clientID, len(events))
		}
		move, ok := events[0].(game.PlayerMove)
		if !ok {
			t.Fatalf("client %d got %T, want PlayerMove", clientID, events[0])
		}
		if move.PlayerID != aliceID {
			t.Errorf("move attributed to %d, want %d (the actual sender)", move.PlayerID, aliceID)
		}
		if _, ok := move.PlayerList[selfID]; ok {
			t.Errorf("client %d sees itself in the move payload", clientID)
		}
		if _, ok := move.PlayerList[aliceID]; ok {
			t.Errorf("client %d sees the mover duplicated in the list", clientID)
		}
	}

	if got := state.Player(aliceID).Position; got != game.NewPosition(5, 0.2, 5) {
		t.Errorf("alice's record not updated: %+v", got)
	}
	if got := state.Player(bobID).Position; got == game.NewPosition(5, 0.2, 5) {
		t.Error("forged id moved bob's record")
	}
}

// TestImpactRoutedToVictimOnly verifies hit reports reach the victim's
// session and nobody else.
func TestImpactRoutedToVictimOnly(t *testing.T) {
	ft := newFakeTransport()
	c, state := newTestController(t, ft, Config{PlayerLimit: 3, CountdownSeconds: 20})

	ft.connect(100, "alice")
	ft.connect(200, "bob")
	ft.connect(300, "carol")
	c.Tick(time.Now())

	bobID, _ := state.PlayerIDForClient(200)

	ft.clearSent()
	ft.submit(t, 100, game.Impact{TargetID: bobID})
	c.Tick(time.Now())

	if got := eventTypes(ft.sentEvents(t, 200)); len(got) != 1 || got[0] != game.EventImpact {
		t.Fatalf("victim got %v, want [impact]", got)
	}
	if len(ft.sentEvents(t, 100)) != 0 {
		t.Error("shooter received the impact")
	}
	if len(ft.sentEvents(t, 300)) != 0 {
		t.Error("bystander received the impact")
	}
	if lives := state.Player(bobID).Lives; lives != game.StartingLives-1 {
		t.Errorf("victim has %d lives, want %d", lives, game.StartingLives-1)
	}
}

// TestDeathEndsMatch verifies a death that leaves one player standing
// triggers the broadcast EndGame.
func TestDeathEndsMatch(t *testing.T) {
	ft := newFakeTransport()
	c, state := newTestController(t, ft, Config{PlayerLimit: 2, CountdownSeconds: 20})

	ft.connect(100, "alice")
	ft.connect(200, "bob")
	c.Tick(time.Now())

	bobID, _ := state.PlayerIDForClient(200)

	ft.clearSent()
	ft.submit(t, 200, game.Death{PlayerID: bobID})
	c.Tick(time.Now())

	if state.Stage() != game.StageEnded {
		t.Fatalf("expected ended, got %s", state.Stage())
	}
	got := eventTypes(ft.sentEvents(t, 100))
	if !slices.Equal(got, []game.EventType{game.EventDeath, game.EventEndGame}) {
		t.Errorf("survivor got %v, want [death end_game]", got)
	}
}

// TestDisconnectEndsMatch covers scenario C through the transport path.
func TestDisconnectEndsMatch(t *testing.T) {
	ft := newFakeTransport()
	c, state := newTestController(t, ft, Config{PlayerLimit: 2, CountdownSeconds: 20})

	ft.connect(100, "alice")
	ft.connect(200, "bob")
	c.Tick(time.Now())

	ft.clearSent()
	ft.disconnect(200, "connection reset")
	c.Tick(time.Now())

	if state.PlayerCount() != 1 {
		t.Fatalf("expected 1 player, got %d", state.PlayerCount())
	}
	if state.Stage() != game.StageEnded {
		t.Fatalf("expected ended, got %s", state.Stage())
	}
	got := eventTypes(ft.sentEvents(t, 100))
	if !slices.Equal(got, []game.EventType{game.EventPlayerDisconnected, game.EventEndGame}) {
		t.Errorf("survivor got %v, want [player_disconnected end_game]", got)
	}
}

// TestMalformedAndInvalidDropped verifies protocol and semantic violations
// are swallowed without state changes or replies.
func TestMalformedAndInvalidDropped(t *testing.T) {
	ft := newFakeTransport()
	c, state := newTestController(t, ft, Config{PlayerLimit: 10, CountdownSeconds: 20})

	ft.connect(100, "alice")
	c.Tick(time.Now())
	historyBefore := state.HistoryLen()

	ft.clearSent()
	ft.inbound[100] = append(ft.inbound[100], []byte("not an envelope"))
	ft.submit(t, 100, game.EndGame{}) // semantically invalid in pregame
	c.Tick(time.Now())

	if state.HistoryLen() != historyBefore {
		t.Error("dropped messages reached consume")
	}
	if len(ft.sentEvents(t, 100)) != 0 {
		t.Error("sender received a reply to a dropped message")
	}
}

// TestSpawnPoolExhaustionRejectsJoin verifies the explicit recoverable error
// path: joins beyond the spawn pool are turned away, not panicked on.
func TestSpawnPoolExhaustionRejectsJoin(t *testing.T) {
	ft := newFakeTransport()
	c, state := newTestController(t, ft, Config{PlayerLimit: 64, CountdownSeconds: 600})

	// Level 1 ships exactly 10 spawn positions.
	for i := 0; i < 10; i++ {
		ft.connect(uint64(100+i), "")
	}
	c.Tick(time.Now())
	if state.PlayerCount() != 10 {
		t.Fatalf("expected 10 players, got %d", state.PlayerCount())
	}

	ft.clearSent()
	ft.connect(500, "unlucky")
	c.Tick(time.Now())

	if got := eventTypes(ft.sentEvents(t, 500)); len(got) != 1 || got[0] != game.EventAccessForbidden {
		t.Fatalf("overflow client got %v, want [access_forbidden]", got)
	}
	if state.PlayerCount() != 10 {
		t.Errorf("player count changed to %d", state.PlayerCount())
	}
}

// TestStatsSnapshot verifies the atomically published view tracks the tick.
func TestStatsSnapshot(t *testing.T) {
	ft := newFakeTransport()
	c, _ := newTestController(t, ft, Config{PlayerLimit: 10, CountdownSeconds: 20})

	ft.connect(100, "alice")
	c.Tick(time.Now())

	stats := c.Stats()
	if stats.Players != 1 {
		t.Errorf("stats players %d, want 1", stats.Players)
	}
	if stats.Stage != "pregame" {
		t.Errorf("stats stage %q, want pregame", stats.Stage)
	}
	if stats.Ticks != 1 {
		t.Errorf("stats ticks %d, want 1", stats.Ticks)
	}
	if stats.SpawnsLeft != 9 {
		t.Errorf("stats spawns left %d, want 9", stats.SpawnsLeft)
	}
}

// TestGeneratedNameFallback verifies empty handshake names get a fallback.
func TestGeneratedNameFallback(t *testing.T) {
	ft := newFakeTransport()
	c, state := newTestController(t, ft, Config{PlayerLimit: 10, CountdownSeconds: 20})

	ft.connect(100, "")
	c.Tick(time.Now())

	id, ok := state.PlayerIDForClient(100)
	if !ok {
		t.Fatal("player never joined")
	}
	if name := state.Player(id).Name; name == "" {
		t.Error("player admitted with an empty name")
	}
}
