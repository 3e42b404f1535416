package protocol

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mcdev12/geoduel/go/internal/game/scoring"
)

func TestEncodeDecode(t *testing.T) {
	messages := []Message{
		Ping{},
		Pong{},
		RoundStart{TimeLeft: 30, RoundIndex: 2},
		RoundUpdate{TimeLeft: 12.5},
		RoundResult{
			RoundIndex: 1,
			Guesses:    []GuessReveal{{PlayerID: "p1", Lat: 1, Lon: 2, DistanceKm: 42}},
			Scores:     []scoring.RoundScore{{PlayerID: "p1", Placement: 1, PlacementPoints: 1, BonusPoints: 5, RoundPoints: 6}},
		},
		GameOver{Winner: "p1"},
		Guess{Lat: -33.86, Lon: 151.2},
	}

	for _, m := range messages {
		t.Run(string(m.MessageType()), func(t *testing.T) {
			b, err := Encode(m)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			got, err := Decode(b)
			if err != nil {
				t.Fatalf("decode %s: %v", b, err)
			}
			if diff := cmp.Diff(m, got); diff != "" {
				t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  error
	}{
		{"empty", ``, ErrMalformed},
		{"not json", `{"type":`, ErrMalformed},
		{"no type", `{"payload":{}}`, ErrMissingField},
		{"unknown type", `{"type":"chat","payload":{"text":"hi"}}`, ErrUnknownType},
		{"round_start without timeLeft", `{"type":"round_start","payload":{"roundIndex":0}}`, ErrMissingField},
		{"round_start without payload", `{"type":"round_start"}`, ErrMissingField},
		{"round_update negative", `{"type":"round_update","payload":{"timeLeft":-1}}`, ErrMalformed},
		{"round_update wrong type", `{"type":"round_update","payload":{"timeLeft":"soon"}}`, ErrMalformed},
		{"round_result without scores", `{"type":"round_result","payload":{"guesses":[]}}`, ErrMissingField},
		{"game_over without winner", `{"type":"game_over","payload":{}}`, ErrMissingField},
		{"guess out of range", `{"type":"guess","payload":{"lat":95,"lon":0}}`, ErrMalformed},
		{"guess missing lon", `{"type":"guess","payload":{"lat":5}}`, ErrMissingField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.frame))
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if !IsProtocolViolation(err) {
				t.Fatalf("expected protocol violation, got %v", err)
			}
		})
	}
}

func TestDecodeAcceptsEmptyResultLists(t *testing.T) {
	m, err := Decode([]byte(`{"type":"round_result","payload":{"guesses":[],"scores":[]}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := m.(RoundResult); !ok {
		t.Fatalf("expected RoundResult, got %T", m)
	}
}

func TestDecodePingIgnoresPayload(t *testing.T) {
	m, err := Decode([]byte(`{"type":"ping","payload":{"ts":123}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != (Ping{}) {
		t.Fatalf("expected Ping, got %#v", m)
	}
}
