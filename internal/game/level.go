package game

import "fmt"

// MinLevel and MaxLevel bound the playable maze selection.
const (
	MinLevel = 1
	MaxLevel = 3
)

// SpawnPositions returns the fixed candidate start coordinates for a level.
// The caller receives a fresh slice it may consume destructively.
func SpawnPositions(level int) ([]Position, error) {
	switch level {
	case 1:
		return []Position{
			{X: -7.9, Y: 0.2, Z: -6.0},
			{X: 3.9, Y: 0.2, Z: -6.3},
			{X: 9.5, Y: 0.2, Z: -6.7},
			{X: 9.1, Y: 0.2, Z: 10.5},
			{X: -6.1, Y: 0.2, Z: 10.2},
			{X: -5.2, Y: 0.2, Z: 2.2},
			{X: 1.9, Y: 0.2, Z: -1.4},
			{X: 0.2, Y: 0.2, Z: -2.1},
			{X: -2.1, Y: 0.2, Z: 6.2},
			{X: 3.0, Y: 0.2, Z: 3.8},
		}, nil
	case 2:
		return []Position{
			{X: -11.4, Y: 0.2, Z: -9.8},
			{X: -8.7, Y: 0.2, Z: 4.1},
			{X: -3.5, Y: 0.2, Z: -10.9},
			{X: -1.2, Y: 0.2, Z: 7.6},
			{X: 0.8, Y: 0.2, Z: -3.4},
			{X: 4.6, Y: 0.2, Z: 11.3},
			{X: 6.9, Y: 0.2, Z: -7.2},
			{X: 9.3, Y: 0.2, Z: 2.5},
			{X: 11.8, Y: 0.2, Z: -11.1},
			{X: 12.4, Y: 0.2, Z: 9.7},
		}, nil
	case 3:
		return []Position{
			{X: -14.6, Y: 0.2, Z: -13.2},
			{X: -12.1, Y: 0.2, Z: 8.9},
			{X: -9.8, Y: 0.2, Z: -2.7},
			{X: -5.3, Y: 0.2, Z: 13.6},
			{X: -2.9, Y: 0.2, Z: -8.1},
			{X: 1.4, Y: 0.2, Z: 5.2},
			{X: 5.7, Y: 0.2, Z: -12.5},
			{X: 8.2, Y: 0.2, Z: 14.1},
			{X: 11.9, Y: 0.2, Z: -5.6},
			{X: 14.3, Y: 0.2, Z: 1.8},
		}, nil
	default:
		return nil, fmt.Errorf("unknown level %d (want %d..%d)", level, MinLevel, MaxLevel)
	}
}
