package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/mcdev12/geoduel/go/internal/game/geo"
	"github.com/mcdev12/geoduel/go/internal/game/scoring"
)

var (
	// ErrMalformed covers envelopes or payloads that are not valid JSON
	// for their declared type.
	ErrMalformed = errors.New("malformed envelope")
	// ErrMissingField is returned when a required payload field is absent.
	ErrMissingField = errors.New("missing required field")
	// ErrUnknownType is returned for envelope types outside the protocol.
	ErrUnknownType = errors.New("unknown message type")
)

// Envelope is the wire frame shared by every message.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// IsProtocolViolation reports whether err was produced by Decode rejecting
// a frame, as opposed to a transport failure.
func IsProtocolViolation(err error) bool {
	return errors.Is(err, ErrMalformed) || errors.Is(err, ErrMissingField) || errors.Is(err, ErrUnknownType)
}

// Encode wraps a message into its envelope.
func Encode(m Message) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("encode: nil message")
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", m.MessageType(), err)
	}
	return json.Marshal(Envelope{Type: m.MessageType(), Payload: payload})
}

// Decode parses a frame and validates its payload. The returned Message is
// one of the concrete payload types in this package.
func Decode(b []byte) (Message, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrMalformed)
	}
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: type", ErrMissingField)
	}

	switch env.Type {
	case TypePing:
		return Ping{}, nil

	case TypePong:
		return Pong{}, nil

	case TypeRoundStart:
		var w struct {
			TimeLeft   *float64 `json:"timeLeft"`
			RoundIndex *int     `json:"roundIndex"`
		}
		if err := unmarshalPayload(env, &w); err != nil {
			return nil, err
		}
		if w.TimeLeft == nil {
			return nil, fmt.Errorf("%w: round_start.timeLeft", ErrMissingField)
		}
		if w.RoundIndex == nil {
			return nil, fmt.Errorf("%w: round_start.roundIndex", ErrMissingField)
		}
		if err := validateTimeLeft(*w.TimeLeft); err != nil {
			return nil, err
		}
		return RoundStart{TimeLeft: *w.TimeLeft, RoundIndex: *w.RoundIndex}, nil

	case TypeRoundUpdate:
		var w struct {
			TimeLeft *float64 `json:"timeLeft"`
		}
		if err := unmarshalPayload(env, &w); err != nil {
			return nil, err
		}
		if w.TimeLeft == nil {
			return nil, fmt.Errorf("%w: round_update.timeLeft", ErrMissingField)
		}
		if err := validateTimeLeft(*w.TimeLeft); err != nil {
			return nil, err
		}
		return RoundUpdate{TimeLeft: *w.TimeLeft}, nil

	case TypeRoundResult:
		var w struct {
			RoundIndex int                  `json:"roundIndex"`
			Answer     *geo.Point           `json:"answer"`
			Guesses    []GuessReveal        `json:"guesses"`
			Scores     []scoring.RoundScore `json:"scores"`
			Standings  []scoring.Standing   `json:"standings"`
		}
		if err := unmarshalPayload(env, &w); err != nil {
			return nil, err
		}
		if w.Guesses == nil {
			return nil, fmt.Errorf("%w: round_result.guesses", ErrMissingField)
		}
		if w.Scores == nil {
			return nil, fmt.Errorf("%w: round_result.scores", ErrMissingField)
		}
		return RoundResult{
			RoundIndex: w.RoundIndex,
			Answer:     w.Answer,
			Guesses:    w.Guesses,
			Scores:     w.Scores,
			Standings:  w.Standings,
		}, nil

	case TypeGameOver:
		var w struct {
			Winner    *string            `json:"winner"`
			Standings []scoring.Standing `json:"standings"`
		}
		if err := unmarshalPayload(env, &w); err != nil {
			return nil, err
		}
		if w.Winner == nil {
			return nil, fmt.Errorf("%w: game_over.winner", ErrMissingField)
		}
		return GameOver{Winner: *w.Winner, Standings: w.Standings}, nil

	case TypeGuess:
		var w struct {
			Lat *float64 `json:"lat"`
			Lon *float64 `json:"lon"`
		}
		if err := unmarshalPayload(env, &w); err != nil {
			return nil, err
		}
		if w.Lat == nil || w.Lon == nil {
			return nil, fmt.Errorf("%w: guess.lat/lon", ErrMissingField)
		}
		if err := (geo.Point{Lat: *w.Lat, Lon: *w.Lon}).Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return Guess{Lat: *w.Lat, Lon: *w.Lon}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

func unmarshalPayload(env Envelope, v any) error {
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return fmt.Errorf("%w: %s payload", ErrMissingField, env.Type)
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrMalformed, env.Type, err)
	}
	return nil
}

func validateTimeLeft(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("%w: timeLeft %v", ErrMalformed, v)
	}
	return nil
}
