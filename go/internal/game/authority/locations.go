package authority

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mcdev12/geoduel/go/internal/game/geo"
)

var ErrNoLocations = errors.New("no locations available")

// Location is the answer of one round.
type Location struct {
	Label string    `yaml:"label" json:"label"`
	Point geo.Point `yaml:",inline" json:"point"`
}

// LocationProvider chooses the answer for a round. Implementations must
// return quickly; the game holds its lock while asking.
type LocationProvider interface {
	Location(ctx context.Context, sessionID uuid.UUID, round int) (Location, error)
}

// StaticLocations cycles through a fixed list in order.
type StaticLocations struct {
	locations []Location
}

// NewStaticLocations validates every entry and returns a provider over them.
func NewStaticLocations(locations []Location) (*StaticLocations, error) {
	if len(locations) == 0 {
		return nil, ErrNoLocations
	}
	for i, l := range locations {
		if err := l.Point.Validate(); err != nil {
			return nil, fmt.Errorf("location %d (%s): %w", i, l.Label, err)
		}
	}
	return &StaticLocations{locations: append([]Location(nil), locations...)}, nil
}

func (s *StaticLocations) Location(_ context.Context, _ uuid.UUID, round int) (Location, error) {
	if round < 0 {
		return Location{}, fmt.Errorf("round %d: %w", round, ErrNoLocations)
	}
	return s.locations[round%len(s.locations)], nil
}
