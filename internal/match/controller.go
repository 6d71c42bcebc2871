// Package match drives one authoritative maze-wars match: lobby admission,
// the countdown to kickoff, per-event broadcast routing and last-player-
// standing win detection. The controller owns the game state exclusively;
// everything happens inside its single tick loop.
package match

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"maze-wars/internal/game"
	"maze-wars/internal/protocol"
)

// Config holds the knobs of one match.
type Config struct {
	PlayerLimit      int // lobby capacity; reaching it starts the match at once
	CountdownSeconds int // lobby countdown once two players are present
	TickRate         int // ticks per second for Run
}

// DefaultConfig returns the classic maze-wars settings.
func DefaultConfig() Config {
	return Config{
		PlayerLimit:      10,
		CountdownSeconds: 20,
		TickRate:         60,
	}
}

// Stats is a point-in-time view of the match for the HTTP surface. It is
// published atomically each tick so readers never touch live state.
type Stats struct {
	Stage      string `json:"stage"`
	Level      int    `json:"level"`
	Players    int    `json:"players"`
	Ticks      uint64 `json:"ticks"`
	Countdown  int    `json:"countdown"`
	SpawnsLeft int    `json:"spawnsLeft"`
	History    int    `json:"history"`
}

// Controller runs the match lifecycle on top of the game state machine.
// It is NOT safe for concurrent use: exactly one goroutine calls Run (or
// Tick). Stats is the only method other goroutines may call.
type Controller struct {
	state     *game.State
	transport Transport
	audit     *game.AuditLog // optional; nil disables the audit trail
	cfg       Config

	countdown   int
	nextTimerAt time.Time
	lastTick    time.Time
	tickCount   uint64

	stats atomic.Pointer[Stats]
}

// NewController wires a controller over a state and a transport. audit may
// be nil.
func NewController(state *game.State, transport Transport, audit *game.AuditLog, cfg Config) *Controller {
	if cfg.PlayerLimit <= 0 {
		cfg.PlayerLimit = DefaultConfig().PlayerLimit
	}
	if cfg.CountdownSeconds <= 0 {
		cfg.CountdownSeconds = DefaultConfig().CountdownSeconds
	}
	if cfg.TickRate <= 0 {
		cfg.TickRate = DefaultConfig().TickRate
	}

	c := &Controller{
		state:     state,
		transport: transport,
		audit:     audit,
		cfg:       cfg,
		countdown: cfg.CountdownSeconds,
	}
	c.publishStats()
	return c
}

// Run drives the fixed-rate tick loop until the context is cancelled.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second / time.Duration(c.cfg.TickRate))
	defer ticker.Stop()

	log.Printf("🕹 match loop running at %d TPS (limit %d players, %ds countdown)",
		c.cfg.TickRate, c.cfg.PlayerLimit, c.cfg.CountdownSeconds)

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.Tick(now)
		}
	}
}

// Tick executes one iteration of the server loop: pump the transport, handle
// connection changes, drain inbound messages, run the countdown, flush
// outbound. Per-event errors never escape.
func (c *Controller) Tick(now time.Time) {
	start := time.Now()

	elapsed := time.Duration(0)
	if !c.lastTick.IsZero() {
		elapsed = now.Sub(c.lastTick)
	}
	c.lastTick = now
	c.tickCount++

	c.transport.Update(elapsed)

	for {
		event, ok := c.transport.PollEvent()
		if !ok {
			break
		}
		switch e := event.(type) {
		case SessionConnected:
			c.admit(e)
		case SessionDisconnected:
			c.dropSession(e)
		}
	}

	for _, clientID := range c.transport.Clients() {
		for {
			data, ok := c.transport.Receive(clientID)
			if !ok {
				break
			}
			c.handleMessage(clientID, data)
		}
	}

	c.runCountdown(now)

	c.transport.SendPackets()
	c.publishStats()
	tickDuration.Observe(time.Since(start).Seconds())
}

// Stats returns the snapshot published by the most recent tick. Safe to call
// from any goroutine.
func (c *Controller) Stats() Stats {
	return *c.stats.Load()
}

func (c *Controller) publishStats() {
	c.stats.Store(&Stats{
		Stage:      c.state.Stage().String(),
		Level:      c.state.Level(),
		Players:    c.state.PlayerCount(),
		Ticks:      c.tickCount,
		Countdown:  c.countdown,
		SpawnsLeft: c.state.SpawnsLeft(),
		History:    c.state.HistoryLen(),
	})
	playerGauge.Set(float64(c.state.PlayerCount()))
}

// admit runs the join sequence for a freshly connected session: allocate an
// id, draw a spawn, tell the newcomer about everyone already in, announce
// the newcomer to everyone else, and hand the newcomer its spawn point.
func (c *Controller) admit(e SessionConnected) {
	if c.state.Stage() != game.StagePreGame {
		c.reject(e.ClientID, "stage", "match already running")
		return
	}
	if c.state.PlayerCount() >= c.cfg.PlayerLimit {
		c.reject(e.ClientID, "full", "lobby is full")
		return
	}

	id, err := c.state.GenerateID()
	if err != nil {
		c.reject(e.ClientID, "ids", err.Error())
		return
	}
	position, err := c.state.RandomSpawn()
	if err != nil {
		c.reject(e.ClientID, "spawns", err.Error())
		return
	}

	name := e.Name
	if name == "" {
		name = fmt.Sprintf("warrior-%d", id)
	}

	// Catch the newcomer up on every player already present.
	for pid, p := range c.state.PlayersExcept() {
		c.send(e.ClientID, game.PlayerJoined{
			PlayerID: pid,
			Name:     p.Name,
			Position: p.Position,
			ClientID: p.ClientID,
		})
	}

	joined := game.PlayerJoined{
		PlayerID: id,
		Name:     name,
		Position: position,
		ClientID: e.ClientID,
	}
	if !c.state.Validate(joined, e.ClientID) {
		c.reject(e.ClientID, "stage", "join rejected by state")
		return
	}
	outbound := c.consume(joined, e.ClientID)

	// Everyone else learns a peer exists; the joiner gets its own spawn.
	c.broadcastExcept(e.ClientID, outbound)
	spawn := game.Spawn{
		PlayerID: id,
		Position: position,
		Level:    c.state.Level(),
	}
	if c.state.Validate(spawn, e.ClientID) {
		c.consume(spawn, e.ClientID)
	}
	c.send(e.ClientID, spawn)

	log.Printf("⚔️ %s [%d] joined the maze (%d/%d players)",
		name, id, c.state.PlayerCount(), c.cfg.PlayerLimit)

	if c.state.PlayerCount() >= c.cfg.PlayerLimit {
		c.beginGame()
	}
}

// reject turns a connection attempt away: AccessForbidden to that session
// only, then drop it. No record is created, nothing is broadcast.
func (c *Controller) reject(clientID uint64, reason, detail string) {
	log.Printf("⚠️ rejecting session %d: %s", clientID, detail)
	joinsRejected.WithLabelValues(reason).Inc()
	c.send(clientID, game.AccessForbidden{})
	c.transport.Disconnect(clientID)
}

// dropSession handles a transport-level disconnect: remove the player,
// announce it, and see whether the departure decided the match.
func (c *Controller) dropSession(e SessionDisconnected) {
	id, ok := c.state.PlayerIDForClient(e.ClientID)
	if !ok {
		// A session rejected during admission, or one that never joined.
		return
	}

	event := game.PlayerDisconnected{PlayerID: id}
	if !c.state.Validate(event, e.ClientID) {
		return
	}
	outbound := c.consume(event, e.ClientID)
	c.broadcast(outbound)

	log.Printf("👋 player %d left (%s), %d remaining", id, e.Reason, c.state.PlayerCount())

	c.checkWinner()
}

// handleMessage decodes, validates, consumes and routes one client message.
// Malformed or inadmissible messages are dropped with a warning; the sender
// gets no reply.
func (c *Controller) handleMessage(clientID uint64, data []byte) {
	event, err := protocol.Decode(data)
	if err != nil {
		log.Printf("⚠️ dropping undecodable message from session %d: %v", clientID, err)
		eventsRejected.WithLabelValues("malformed").Inc()
		return
	}

	if !c.state.Validate(event, clientID) {
		log.Printf("⚠️ session %d sent invalid %s event", clientID, event.Type())
		eventsRejected.WithLabelValues("invalid").Inc()
		return
	}

	outbound := c.consume(event, clientID)
	c.route(clientID, outbound)
	c.checkWinner()
}

// route applies the per-variant broadcast policy. Movement is per-observer
// (each recipient's payload excludes its own record), impacts go to the
// victim only, everything else is a global truth.
func (c *Controller) route(senderID uint64, outbound game.Event) {
	switch ev := outbound.(type) {
	case game.PlayerMove:
		for _, clientID := range c.transport.Clients() {
			if clientID == senderID {
				continue
			}
			payload := ev
			if recipientID, ok := c.state.PlayerIDForClient(clientID); ok {
				payload.PlayerList = c.state.PlayersExcept(ev.PlayerID, recipientID)
			}
			c.send(clientID, payload)
		}

	case game.Impact:
		if victim := c.state.Player(ev.TargetID); victim != nil {
			c.send(victim.ClientID, ev)
		}

	default:
		c.broadcast(outbound)
	}
}

// runCountdown ticks the lobby timer once per wall-clock second while at
// least two players are waiting. Dropping back below two rearms the timer.
func (c *Controller) runCountdown(now time.Time) {
	if c.state.Stage() != game.StagePreGame {
		return
	}
	if c.state.PlayerCount() < 2 {
		c.countdown = c.cfg.CountdownSeconds
		c.nextTimerAt = time.Time{}
		return
	}

	if c.nextTimerAt.IsZero() {
		c.nextTimerAt = now.Add(time.Second)
		return
	}

	for !now.Before(c.nextTimerAt) {
		c.countdown--
		c.nextTimerAt = c.nextTimerAt.Add(time.Second)
		c.broadcast(game.Timer{Remaining: uint8(c.countdown)})

		if c.countdown <= 0 {
			c.beginGame()
			return
		}
	}
}

// beginGame flips the match to InGame and sends every client a BeginGame
// whose player list excludes that client's own record.
func (c *Controller) beginGame() {
	begin := game.BeginGame{}
	if !c.state.Validate(begin, 0) {
		return
	}
	c.consume(begin, 0)

	for _, clientID := range c.transport.Clients() {
		payload := game.BeginGame{PlayerList: c.state.PlayersExcept()}
		if recipientID, ok := c.state.PlayerIDForClient(clientID); ok {
			payload.PlayerList = c.state.PlayersExcept(recipientID)
		}
		c.send(clientID, payload)
	}

	log.Printf("🚀 the game has begun with %d warriors", c.state.PlayerCount())
}

// checkWinner ends the match as soon as exactly one player is left standing.
func (c *Controller) checkWinner() {
	winner, ok := c.state.DetermineWinner()
	if !ok {
		return
	}

	end := game.EndGame{}
	if !c.state.Validate(end, 0) {
		return
	}
	outbound := c.consume(end, 0)
	c.broadcast(outbound)

	log.Printf("🏆 player %d won the match", winner)
}

// consume applies a validated event, mirrors it to the audit trail and
// counts it. All state mutation funnels through here.
func (c *Controller) consume(event game.Event, clientID uint64) game.Event {
	outbound := c.state.Consume(event, clientID)
	eventsConsumed.WithLabelValues(string(event.Type())).Inc()
	if c.audit != nil {
		c.audit.Record(event, c.tickCount, clientID)
	}
	return outbound
}

func (c *Controller) send(clientID uint64, event game.Event) {
	data, err := protocol.Encode(event)
	if err != nil {
		log.Printf("⚠️ encode %s failed: %v", event.Type(), err)
		return
	}
	c.transport.Send(clientID, data)
}

func (c *Controller) broadcast(event game.Event) {
	data, err := protocol.Encode(event)
	if err != nil {
		log.Printf("⚠️ encode %s failed: %v", event.Type(), err)
		return
	}
	c.transport.Broadcast(data)
}

func (c *Controller) broadcastExcept(except uint64, event game.Event) {
	data, err := protocol.Encode(event)
	if err != nil {
		log.Printf("⚠️ encode %s failed: %v", event.Type(), err)
		return
	}
	c.transport.BroadcastExcept(except, data)
}
