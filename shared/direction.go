package shared

import "fmt"

// Direction represents the direction of a trade.
type Direction int

const (
	None Direction = iota
	Long
	Short
)

// String stringifies the provided direction.
func (d Direction) String() string {
	switch d {
	case None:
		return "none"
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return "unknown"
	}
}

// ParseDirection parses a direction from the provided string.
func ParseDirection(direction string) (Direction, error) {
	switch direction {
	case "none":
		return None, nil
	case "long":
		return Long, nil
	case "short":
		return Short, nil
	default:
		return 0, fmt.Errorf("%w: unknown direction %q", ErrInvalidArgument, direction)
	}
}
