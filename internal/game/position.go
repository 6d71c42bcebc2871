package game

// Position is a point in maze world coordinates.
// Pure value type: no identity, freely copied.
type Position struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// NewPosition creates a position from its three components.
func NewPosition(x, y, z float32) Position {
	return Position{X: x, Y: y, Z: z}
}

// Vector2 is a two-component look/aim delta reported by the client.
// The server stores it verbatim; it never affects authoritative movement.
type Vector2 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}
