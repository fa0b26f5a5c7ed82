package shared

import "errors"

var (
	// ErrInvalidArgument indicates a caller bug, like an unknown enum value or
	// a non-positive price or size.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrPositionOpen indicates an open was attempted while another position
	// is still active.
	ErrPositionOpen = errors.New("position already open")
)
