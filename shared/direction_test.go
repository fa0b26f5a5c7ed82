package shared

import (
	"errors"
	"testing"

	"github.com/peterldowns/testy/assert"
)

func TestDirectionString(t *testing.T) {
	tests := []struct {
		name      string
		direction Direction
		want      string
	}{
		{
			name:      "none",
			direction: None,
			want:      "none",
		},
		{
			name:      "long",
			direction: Long,
			want:      "long",
		},
		{
			name:      "short",
			direction: Short,
			want:      "short",
		},
		{
			name:      "unknown",
			direction: Direction(999),
			want:      "unknown",
		},
	}

	for _, test := range tests {
		str := test.direction.String()
		if str != test.want {
			t.Errorf("%s: expected %v, got %v", test.name, test.want, str)
		}
	}
}

func TestParseDirection(t *testing.T) {
	directions := []Direction{None, Long, Short}

	// Ensure all directions round trip through their string forms.
	for _, direction := range directions {
		parsed, err := ParseDirection(direction.String())
		assert.NoError(t, err)
		assert.Equal(t, parsed, direction)
	}

	// Ensure unknown direction strings are rejected.
	_, err := ParseDirection("sideways")
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}
