package scoring

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCalculatePlacementPoints(t *testing.T) {
	tests := []struct {
		name         string
		guesses      []Guess
		totalPlayers int
		want         []PlacementResult
	}{
		{
			name:         "empty",
			guesses:      nil,
			totalPlayers: 4,
			want:         []PlacementResult{},
		},
		{
			name:         "single guess",
			guesses:      []Guess{{PlayerID: "a", DistanceKm: 12}},
			totalPlayers: 1,
			want:         []PlacementResult{{PlayerID: "a", Placement: 1, PlacementPoints: 1}},
		},
		{
			name: "distinct distances",
			guesses: []Guess{
				{PlayerID: "a", DistanceKm: 50},
				{PlayerID: "b", DistanceKm: 150},
				{PlayerID: "c", DistanceKm: 300},
			},
			totalPlayers: 3,
			want: []PlacementResult{
				{PlayerID: "a", Placement: 1, PlacementPoints: 3},
				{PlayerID: "b", Placement: 2, PlacementPoints: 2},
				{PlayerID: "c", Placement: 3, PlacementPoints: 1},
			},
		},
		{
			name: "tie at first leaves a gap",
			guesses: []Guess{
				{PlayerID: "a", DistanceKm: 100},
				{PlayerID: "b", DistanceKm: 100},
				{PlayerID: "c", DistanceKm: 200},
			},
			totalPlayers: 3,
			want: []PlacementResult{
				{PlayerID: "a", Placement: 1, PlacementPoints: 3},
				{PlayerID: "b", Placement: 1, PlacementPoints: 3},
				{PlayerID: "c", Placement: 3, PlacementPoints: 1},
			},
		},
		{
			name: "unsorted input with tie keeps input order",
			guesses: []Guess{
				{PlayerID: "c", DistanceKm: 900},
				{PlayerID: "b", DistanceKm: 20},
				{PlayerID: "d", DistanceKm: 900},
				{PlayerID: "a", DistanceKm: 5},
			},
			totalPlayers: 4,
			want: []PlacementResult{
				{PlayerID: "a", Placement: 1, PlacementPoints: 4},
				{PlayerID: "b", Placement: 2, PlacementPoints: 3},
				{PlayerID: "c", Placement: 3, PlacementPoints: 2},
				{PlayerID: "d", Placement: 3, PlacementPoints: 2},
			},
		},
		{
			name: "more players than guesses",
			guesses: []Guess{
				{PlayerID: "a", DistanceKm: 10},
				{PlayerID: "b", DistanceKm: 20},
			},
			totalPlayers: 5,
			want: []PlacementResult{
				{PlayerID: "a", Placement: 1, PlacementPoints: 5},
				{PlayerID: "b", Placement: 2, PlacementPoints: 4},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculatePlacementPoints(tt.guesses, tt.totalPlayers)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("placements mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCalculatePlacementPointsMatchesFirstOccurrence(t *testing.T) {
	guesses := []Guess{
		{PlayerID: "a", DistanceKm: 3},
		{PlayerID: "b", DistanceKm: 3},
		{PlayerID: "c", DistanceKm: 3},
		{PlayerID: "d", DistanceKm: 7},
		{PlayerID: "e", DistanceKm: 8},
		{PlayerID: "f", DistanceKm: 8},
		{PlayerID: "g", DistanceKm: 9},
	}
	got, err := CalculatePlacementPoints(guesses, len(guesses))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := make(map[float64]int)
	for i, g := range guesses {
		if _, ok := first[g.DistanceKm]; !ok {
			first[g.DistanceKm] = i + 1
		}
	}
	for i, r := range got {
		want := first[guesses[i].DistanceKm]
		if r.Placement != want {
			t.Fatalf("row %d: placement %d, want %d", i, r.Placement, want)
		}
		if r.PlacementPoints != len(guesses)-r.Placement+1 {
			t.Fatalf("row %d: points %d do not match placement %d", i, r.PlacementPoints, r.Placement)
		}
	}
}

func TestCalculatePlacementPointsDoesNotMutateInput(t *testing.T) {
	guesses := []Guess{{PlayerID: "a", DistanceKm: 9}, {PlayerID: "b", DistanceKm: 1}}
	if _, err := CalculatePlacementPoints(guesses, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if guesses[0].PlayerID != "a" {
		t.Fatalf("input reordered: %+v", guesses)
	}
}

func TestCalculatePlacementPointsInvalidInput(t *testing.T) {
	tests := []struct {
		name         string
		guesses      []Guess
		totalPlayers int
	}{
		{"negative distance", []Guess{{PlayerID: "a", DistanceKm: -1}}, 1},
		{"nan distance", []Guess{{PlayerID: "a", DistanceKm: math.NaN()}}, 1},
		{"too few players", []Guess{{PlayerID: "a"}, {PlayerID: "b"}}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CalculatePlacementPoints(tt.guesses, tt.totalPlayers)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestCalculatePlacementPointsCountsDistinctPlayers(t *testing.T) {
	guesses := []Guess{{PlayerID: "a", DistanceKm: 1}, {PlayerID: "a", DistanceKm: 2}}
	if _, err := CalculatePlacementPoints(guesses, 1); err != nil {
		t.Fatalf("duplicate ids should count once: %v", err)
	}
}

func TestCalculateBonusPoints(t *testing.T) {
	tests := []struct {
		distance float64
		want     int
	}{
		{0, 5},
		{99.9, 5},
		{100, 5},
		{100.01, 2},
		{500, 2},
		{500.5, 1},
		{1000, 1},
		{1000.001, 0},
		{20000, 0},
	}
	for _, tt := range tests {
		got, err := CalculateBonusPoints(tt.distance)
		if err != nil {
			t.Fatalf("distance %v: unexpected error %v", tt.distance, err)
		}
		if got != tt.want {
			t.Fatalf("distance %v: got %d, want %d", tt.distance, got, tt.want)
		}
	}

	if _, err := CalculateBonusPoints(-0.5); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCalculateBonusPointsNonIncreasing(t *testing.T) {
	prev := math.MaxInt
	for d := 0.0; d <= 1500; d += 0.5 {
		got, err := CalculateBonusPoints(d)
		if err != nil {
			t.Fatalf("distance %v: %v", d, err)
		}
		if got > prev {
			t.Fatalf("bonus increased at %v: %d > %d", d, got, prev)
		}
		prev = got
	}
}

func TestScoreRound(t *testing.T) {
	got, err := ScoreRound([]Guess{
		{PlayerID: "far", DistanceKm: 1200},
		{PlayerID: "near", DistanceKm: 40},
		{PlayerID: "mid", DistanceKm: 420},
	}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []RoundScore{
		{PlayerID: "near", DistanceKm: 40, Placement: 1, PlacementPoints: 3, BonusPoints: 5, RoundPoints: 8},
		{PlayerID: "mid", DistanceKm: 420, Placement: 2, PlacementPoints: 2, BonusPoints: 2, RoundPoints: 4},
		{PlayerID: "far", DistanceKm: 1200, Placement: 3, PlacementPoints: 1, BonusPoints: 0, RoundPoints: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("scores mismatch (-want +got):\n%s", diff)
	}
}

func TestScoreRoundDuplicatePlayerUsesOwnDistance(t *testing.T) {
	got, err := ScoreRound([]Guess{
		{PlayerID: "a", DistanceKm: 2000},
		{PlayerID: "a", DistanceKm: 50},
	}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []RoundScore{
		{PlayerID: "a", DistanceKm: 50, Placement: 1, PlacementPoints: 1, BonusPoints: 5, RoundPoints: 6},
		{PlayerID: "a", DistanceKm: 2000, Placement: 2, PlacementPoints: 0, BonusPoints: 0, RoundPoints: 0},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("scores mismatch (-want +got):\n%s", diff)
	}
}

func TestTallyStandings(t *testing.T) {
	tally := Tally{}
	tally.Add([]RoundScore{{PlayerID: "b", RoundPoints: 4}, {PlayerID: "a", RoundPoints: 6}})
	tally.Add([]RoundScore{{PlayerID: "b", RoundPoints: 2}, {PlayerID: "c", RoundPoints: 1}})

	want := []Standing{
		{PlayerID: "a", Total: 6, Rank: 1},
		{PlayerID: "b", Total: 6, Rank: 1},
		{PlayerID: "c", Total: 1, Rank: 3},
	}
	if diff := cmp.Diff(want, tally.Standings()); diff != "" {
		t.Fatalf("standings mismatch (-want +got):\n%s", diff)
	}
	if w := tally.Winner(); w != "a" {
		t.Fatalf("winner = %q, want a", w)
	}
	if w := (Tally{}).Winner(); w != "" {
		t.Fatalf("empty tally winner = %q", w)
	}
}
