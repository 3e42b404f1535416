package protocol

import (
	"github.com/mcdev12/geoduel/go/internal/game/geo"
	"github.com/mcdev12/geoduel/go/internal/game/scoring"
)

// MessageType identifies the payload carried by an Envelope.
type MessageType string

const (
	// authority -> client
	TypePing        MessageType = "ping"
	TypeRoundStart  MessageType = "round_start"
	TypeRoundUpdate MessageType = "round_update"
	TypeRoundResult MessageType = "round_result"
	TypeGameOver    MessageType = "game_over"

	// client -> authority
	TypePong  MessageType = "pong"
	TypeGuess MessageType = "guess"
)

// Message is implemented by every payload the protocol knows about.
type Message interface {
	MessageType() MessageType
}

// Ping is the authority's liveness signal.
type Ping struct{}

// Pong acknowledges a Ping.
type Pong struct{}

// RoundStart opens a round with the authoritative remaining time in seconds.
type RoundStart struct {
	TimeLeft   float64 `json:"timeLeft"`
	RoundIndex int     `json:"roundIndex"`
}

// RoundUpdate re-states the authoritative remaining time of the open round.
type RoundUpdate struct {
	TimeLeft float64 `json:"timeLeft"`
}

// GuessReveal is one player's guess as revealed when the round closes.
type GuessReveal struct {
	PlayerID   string  `json:"playerId"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	DistanceKm float64 `json:"distanceKm"`
}

// RoundResult closes a round.
type RoundResult struct {
	RoundIndex int                  `json:"roundIndex"`
	Answer     *geo.Point           `json:"answer,omitempty"`
	Guesses    []GuessReveal        `json:"guesses"`
	Scores     []scoring.RoundScore `json:"scores"`
	Standings  []scoring.Standing   `json:"standings,omitempty"`
}

// GameOver ends the session.
type GameOver struct {
	Winner    string             `json:"winner"`
	Standings []scoring.Standing `json:"standings,omitempty"`
}

// Guess is a player's answer for the open round.
type Guess struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (Ping) MessageType() MessageType        { return TypePing }
func (Pong) MessageType() MessageType        { return TypePong }
func (RoundStart) MessageType() MessageType  { return TypeRoundStart }
func (RoundUpdate) MessageType() MessageType { return TypeRoundUpdate }
func (RoundResult) MessageType() MessageType { return TypeRoundResult }
func (GameOver) MessageType() MessageType    { return TypeGameOver }
func (Guess) MessageType() MessageType       { return TypeGuess }
