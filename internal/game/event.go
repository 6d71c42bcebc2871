package game

// EventType tags the closed set of messages exchanged between the server and
// its clients. Every wire message is exactly one of these.
type EventType string

const (
	EventBeginGame          EventType = "begin_game"
	EventEndGame            EventType = "end_game"
	EventAccessForbidden    EventType = "access_forbidden"
	EventPlayerJoined       EventType = "player_joined"
	EventPlayerDisconnected EventType = "player_disconnected"
	EventPlayerMove         EventType = "player_move"
	EventSpawn              EventType = "spawn"
	EventTimer              EventType = "timer"
	EventImpact             EventType = "impact"
	EventDeath              EventType = "death"
)

// Event is a single tagged message: either a client request or a
// server-broadcast fact. The concrete types below are the only
// implementations; Validate and Consume switch over all of them.
type Event interface {
	Type() EventType
}

// BeginGame announces the match start. The outbound form carries a snapshot
// of player records; the lifecycle controller rebuilds PlayerList per
// recipient so no client ever sees its own record in the list.
type BeginGame struct {
	PlayerList map[PlayerID]Player `json:"playerList,omitempty"`
}

// EndGame announces the match is over. No payload: clients already know the
// survivor from the disconnect/death events that preceded it.
type EndGame struct{}

// AccessForbidden is sent to a single session whose connection attempt
// arrived outside the lobby phase. The session is dropped right after.
type AccessForbidden struct{}

// PlayerJoined announces a new participant to everyone already connected.
type PlayerJoined struct {
	PlayerID PlayerID `json:"playerId"`
	Name     string   `json:"name"`
	Position Position `json:"position"`
	ClientID uint64   `json:"clientId"`
}

// PlayerDisconnected announces that a participant left the match.
type PlayerDisconnected struct {
	PlayerID PlayerID `json:"playerId"`
}

// PlayerMove is both the client's movement report and the server's enriched
// broadcast. Inbound it carries only At and Vision (the server ignores the
// claimed PlayerID); outbound it additionally carries PlayerList, the current
// records of every player the recipient is not, so one message is enough to
// reconcile all remote avatars.
type PlayerMove struct {
	PlayerID   PlayerID            `json:"playerId"`
	At         Position            `json:"at"`
	Vision     Vector2             `json:"vision"`
	PlayerList map[PlayerID]Player `json:"playerList,omitempty"`
}

// Spawn tells the joining client, and only that client, its own id, start
// position and the level being played.
type Spawn struct {
	PlayerID PlayerID `json:"playerId"`
	Position Position `json:"position"`
	Level    int      `json:"level"`
}

// Timer carries the remaining lobby countdown in whole seconds.
type Timer struct {
	Remaining uint8 `json:"remaining"`
}

// Impact is a hit report: inbound from the shooter's client, outbound to the
// victim's client only.
type Impact struct {
	TargetID PlayerID `json:"targetId"`
}

// Death reports that a player ran out of lives and must leave the match.
type Death struct {
	PlayerID PlayerID `json:"playerId"`
}

func (BeginGame) Type() EventType          { return EventBeginGame }
func (EndGame) Type() EventType            { return EventEndGame }
func (AccessForbidden) Type() EventType    { return EventAccessForbidden }
func (PlayerJoined) Type() EventType       { return EventPlayerJoined }
func (PlayerDisconnected) Type() EventType { return EventPlayerDisconnected }
func (PlayerMove) Type() EventType         { return EventPlayerMove }
func (Spawn) Type() EventType              { return EventSpawn }
func (Timer) Type() EventType              { return EventTimer }
func (Impact) Type() EventType             { return EventImpact }
func (Death) Type() EventType              { return EventDeath }
