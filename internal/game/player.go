package game

// PlayerID is the small match-scoped identifier the server assigns
// sequentially on join. It is NOT the transport session id; that lives in
// Player.ClientID and belongs to a completely separate namespace.
type PlayerID uint8

// StartingLives is how many hits a player survives before dying.
const StartingLives uint8 = 3

// Player is the authoritative record for one connected participant.
type Player struct {
	ID       PlayerID `json:"id"`
	Name     string   `json:"name"`
	ClientID uint64   `json:"clientId"`
	Position Position `json:"position"`
	Vision   Vector2  `json:"vision"`
	Lives    uint8    `json:"lives"`
}

// NewPlayer creates a player record with a full set of lives.
func NewPlayer(id PlayerID, name string, position Position, clientID uint64) *Player {
	return &Player{
		ID:       id,
		Name:     name,
		ClientID: clientID,
		Position: position,
		Lives:    StartingLives,
	}
}
