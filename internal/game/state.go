package game

import (
	"errors"
	"math"
	"math/rand"
	"time"
)

// Stage is the match's coarse lifecycle phase. Transitions are monotonic:
// PreGame -> InGame -> Ended, each taken exactly once per match.
type Stage int

const (
	StagePreGame Stage = iota
	StageInGame
	StageEnded
)

// String returns a human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StagePreGame:
		return "pregame"
	case StageInGame:
		return "ingame"
	case StageEnded:
		return "ended"
	default:
		return "unknown"
	}
}

var (
	// ErrSpawnPoolEmpty means every candidate start position for the level
	// has already been handed out. The join must be rejected.
	ErrSpawnPoolEmpty = errors.New("spawn pool exhausted")

	// ErrPlayerIDExhausted means the sequential id allocator ran off the end
	// of the PlayerID space. The join must be rejected.
	ErrPlayerIDExhausted = errors.New("player id space exhausted")
)

// State is the single authoritative match aggregate. It is owned exclusively
// by the server tick loop: no mutex, no sharing, every mutation goes through
// Consume. One State instance lives for the whole server process.
type State struct {
	stage          Stage
	players        map[PlayerID]*Player
	history        []Event
	idCounter      uint16 // wider than PlayerID so exhaustion is detectable
	level          int
	spawnPositions []Position

	rng *rand.Rand
}

// NewState creates a fresh lobby-stage match with an empty player set.
// Call SetLevel before admitting anyone so the spawn pool is seeded.
func NewState() *State {
	return &State{
		stage:   StagePreGame,
		players: make(map[PlayerID]*Player),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetLevel selects the maze and seeds the spawn pool from its fixed
// candidate positions.
func (s *State) SetLevel(level int) error {
	positions, err := SpawnPositions(level)
	if err != nil {
		return err
	}
	s.level = level
	s.spawnPositions = positions
	return nil
}

// Stage returns the current lifecycle phase.
func (s *State) Stage() Stage { return s.stage }

// Level returns the selected maze identifier.
func (s *State) Level() int { return s.level }

// PlayerCount returns how many players are currently in the match.
func (s *State) PlayerCount() int { return len(s.players) }

// HistoryLen returns how many events have been consumed so far.
func (s *State) HistoryLen() int { return len(s.history) }

// SpawnsLeft returns how many unused spawn positions remain.
func (s *State) SpawnsLeft() int { return len(s.spawnPositions) }

// Player returns the record for an id, or nil if absent.
func (s *State) Player(id PlayerID) *Player {
	return s.players[id]
}

// PlayerIDForClient resolves a transport session id to the player it owns.
// This is the ONLY way identity is established for client-submitted events;
// the payload's claimed player id is never trusted.
func (s *State) PlayerIDForClient(clientID uint64) (PlayerID, bool) {
	for id, p := range s.players {
		if p.ClientID == clientID {
			return id, true
		}
	}
	return 0, false
}

// PlayersExcept returns a value snapshot of every player record except the
// listed ids. Used to build per-recipient broadcast payloads.
func (s *State) PlayersExcept(exclude ...PlayerID) map[PlayerID]Player {
	snapshot := make(map[PlayerID]Player, len(s.players))
outer:
	for id, p := range s.players {
		for _, ex := range exclude {
			if id == ex {
				continue outer
			}
		}
		snapshot[id] = *p
	}
	return snapshot
}

// Validate reports whether an event is admissible against the current state.
// Pure predicate: no mutation. Callers must not Consume a rejected event.
//
// clientID is the transport session the event arrived on; server-generated
// events pass the session id of the client they concern (or zero for
// lifecycle events, which never consult it).
func (s *State) Validate(event Event, clientID uint64) bool {
	switch ev := event.(type) {
	case BeginGame:
		// Don't double-start a match.
		return s.stage == StagePreGame

	case EndGame:
		// A match that never began can't end.
		return s.stage == StageInGame

	case PlayerJoined:
		if s.stage != StagePreGame {
			return false
		}
		_, taken := s.players[ev.PlayerID]
		return !taken

	case PlayerDisconnected:
		_, ok := s.players[ev.PlayerID]
		return ok

	case PlayerMove:
		// Authorship comes from the session, never the payload.
		_, ok := s.PlayerIDForClient(clientID)
		return ok

	case Spawn:
		return s.stage == StagePreGame

	case Impact:
		if s.stage != StageInGame {
			return false
		}
		_, ok := s.players[ev.TargetID]
		return ok

	case Death:
		if s.stage != StageInGame {
			return false
		}
		_, ok := s.players[ev.PlayerID]
		return ok

	default:
		// Timer and AccessForbidden are server-origin only; a client
		// submitting one is a protocol abuse and is rejected here.
		return false
	}
}

// Consume applies a pre-validated event to the state and returns its
// outbound form, the sanitized payload the caller routes to clients. The
// outbound event may differ from the inbound one (PlayerMove and BeginGame
// are enriched with player snapshots). Every consumed event is appended to
// the history log regardless of variant.
func (s *State) Consume(event Event, clientID uint64) Event {
	outbound := event

	switch ev := event.(type) {
	case BeginGame:
		s.stage = StageInGame
		outbound = BeginGame{PlayerList: s.PlayersExcept()}

	case EndGame:
		s.stage = StageEnded

	case PlayerJoined:
		s.players[ev.PlayerID] = &Player{
			ID:       ev.PlayerID,
			Name:     ev.Name,
			ClientID: ev.ClientID,
			Position: ev.Position,
			Lives:    StartingLives,
		}

	case PlayerDisconnected:
		delete(s.players, ev.PlayerID)

	case PlayerMove:
		id, _ := s.PlayerIDForClient(clientID)
		player := s.players[id]
		player.Position = ev.At
		player.Vision = ev.Vision
		outbound = PlayerMove{
			PlayerID:   id,
			At:         ev.At,
			Vision:     ev.Vision,
			PlayerList: s.PlayersExcept(id),
		}

	case Impact:
		target := s.players[ev.TargetID]
		if target.Lives > 0 {
			target.Lives--
		}

	case Death:
		delete(s.players, ev.PlayerID)

	case Spawn, Timer, AccessForbidden:
		// No state to mutate; recorded in history like everything else.
	}

	s.history = append(s.history, event)
	return outbound
}

// DetermineWinner returns the sole surviving player's id when exactly one
// player remains in a running match. Evaluate it after every consumed
// gameplay event, not on a timer.
func (s *State) DetermineWinner() (PlayerID, bool) {
	if s.stage != StageInGame || len(s.players) != 1 {
		return 0, false
	}
	for id := range s.players {
		return id, true
	}
	return 0, false
}

// GenerateID allocates the next sequential player id. It fails instead of
// wrapping once the PlayerID space is spent.
func (s *State) GenerateID() (PlayerID, error) {
	if s.idCounter > math.MaxUint8 {
		return 0, ErrPlayerIDExhausted
	}
	id := PlayerID(s.idCounter)
	s.idCounter++
	return id, nil
}

// RandomSpawn draws one start position from the pool, without replacement.
// It fails instead of panicking when the pool is empty.
func (s *State) RandomSpawn() (Position, error) {
	if len(s.spawnPositions) == 0 {
		return Position{}, ErrSpawnPoolEmpty
	}
	i := s.rng.Intn(len(s.spawnPositions))
	position := s.spawnPositions[i]
	s.spawnPositions = append(s.spawnPositions[:i], s.spawnPositions[i+1:]...)
	return position, nil
}
