package scoring

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrInvalidInput is returned when a scoring call receives malformed input.
// Callers are expected to validate upstream; the engine does not sanitize.
var ErrInvalidInput = errors.New("invalid score input")

// Bonus thresholds in kilometres. Each bound is inclusive.
const (
	BonusNearKm   = 100.0
	BonusMediumKm = 500.0
	BonusFarKm    = 1000.0
)

// Guess is a single player's guess for a round, already resolved to a distance.
type Guess struct {
	PlayerID   string  `json:"playerId"`
	DistanceKm float64 `json:"distanceKm"`
}

// PlacementResult is the placement of one guess within its round.
type PlacementResult struct {
	PlayerID        string `json:"playerId"`
	Placement       int    `json:"placement"`
	PlacementPoints int    `json:"placementPoints"`
}

// RoundScore is the full per-player line for a closed round.
type RoundScore struct {
	PlayerID        string  `json:"playerId"`
	DistanceKm      float64 `json:"distanceKm"`
	Placement       int     `json:"placement"`
	PlacementPoints int     `json:"placementPoints"`
	BonusPoints     int     `json:"bonusPoints"`
	RoundPoints     int     `json:"roundPoints"`
}

// CalculatePlacementPoints ranks guesses by ascending distance using
// competition ranking (1,1,3) and awards totalPlayers-placement+1 points.
// The result holds one row per input guess in placement order; tied guesses
// keep their input order.
func CalculatePlacementPoints(guesses []Guess, totalPlayers int) ([]PlacementResult, error) {
	_, results, err := place(guesses, totalPlayers)
	return results, err
}

// place returns the guesses in placement order alongside their placements,
// row for row.
func place(guesses []Guess, totalPlayers int) ([]Guess, []PlacementResult, error) {
	if err := validate(guesses, totalPlayers); err != nil {
		return nil, nil, err
	}
	if len(guesses) == 0 {
		return nil, []PlacementResult{}, nil
	}

	sorted := make([]Guess, len(guesses))
	copy(sorted, guesses)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].DistanceKm < sorted[j].DistanceKm
	})

	results := make([]PlacementResult, len(sorted))
	placement := 0
	for i, g := range sorted {
		if i == 0 || g.DistanceKm != sorted[i-1].DistanceKm {
			placement = i + 1
		}
		results[i] = PlacementResult{
			PlayerID:        g.PlayerID,
			Placement:       placement,
			PlacementPoints: totalPlayers - placement + 1,
		}
	}
	return sorted, results, nil
}

// CalculateBonusPoints returns the proximity bonus for a distance:
// 5 up to 100km, 2 up to 500km, 1 up to 1000km, 0 beyond.
func CalculateBonusPoints(distanceKm float64) (int, error) {
	if err := validateDistance(distanceKm); err != nil {
		return 0, err
	}
	switch {
	case distanceKm <= BonusNearKm:
		return 5, nil
	case distanceKm <= BonusMediumKm:
		return 2, nil
	case distanceKm <= BonusFarKm:
		return 1, nil
	default:
		return 0, nil
	}
}

// ScoreRound combines placement and bonus points for every guess of a round.
// Each row's bonus comes from that row's own distance.
func ScoreRound(guesses []Guess, totalPlayers int) ([]RoundScore, error) {
	sorted, placements, err := place(guesses, totalPlayers)
	if err != nil {
		return nil, err
	}

	scores := make([]RoundScore, len(placements))
	for i, p := range placements {
		d := sorted[i].DistanceKm
		bonus, err := CalculateBonusPoints(d)
		if err != nil {
			return nil, err
		}
		scores[i] = RoundScore{
			PlayerID:        p.PlayerID,
			DistanceKm:      d,
			Placement:       p.Placement,
			PlacementPoints: p.PlacementPoints,
			BonusPoints:     bonus,
			RoundPoints:     p.PlacementPoints + bonus,
		}
	}
	return scores, nil
}

func validate(guesses []Guess, totalPlayers int) error {
	distinct := make(map[string]struct{}, len(guesses))
	for _, g := range guesses {
		if err := validateDistance(g.DistanceKm); err != nil {
			return fmt.Errorf("player %s: %w", g.PlayerID, err)
		}
		distinct[g.PlayerID] = struct{}{}
	}
	if totalPlayers < len(distinct) {
		return fmt.Errorf("%w: total players %d smaller than %d distinct guessers",
			ErrInvalidInput, totalPlayers, len(distinct))
	}
	return nil
}

func validateDistance(distanceKm float64) error {
	if math.IsNaN(distanceKm) || distanceKm < 0 {
		return fmt.Errorf("%w: distance %v", ErrInvalidInput, distanceKm)
	}
	return nil
}
