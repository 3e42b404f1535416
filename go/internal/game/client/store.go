package client

import (
	"reflect"
	"slices"
	"sync"

	"github.com/mcdev12/geoduel/go/internal/game/scoring"
)

// Snapshot is the read-only view of a session handed to the presentation
// layer.
type Snapshot struct {
	ConnectionStatus ConnectionState  `json:"connectionStatus"`
	Reconnection     ReconnectionInfo `json:"reconnectionInfo"`
	RoundTimerState
	RoundIndex int                  `json:"roundIndex"`
	Scores     []scoring.RoundScore `json:"scores"`
	Standings  []scoring.Standing   `json:"standings,omitempty"`
	Winner     string               `json:"winner,omitempty"`
	GameOver   bool                 `json:"gameOver"`
}

func (s Snapshot) clone() Snapshot {
	s.Scores = slices.Clone(s.Scores)
	s.Standings = slices.Clone(s.Standings)
	return s
}

// Store holds the latest snapshot and fans changes out to subscribers.
type Store struct {
	mu      sync.Mutex
	current Snapshot
	subs    map[int]func(Snapshot)
	nextID  int
}

// NewStore returns a store seeded with an initial snapshot.
func NewStore(initial Snapshot) *Store {
	return &Store{
		current: initial.clone(),
		subs:    make(map[int]func(Snapshot)),
	}
}

// Current returns a copy of the latest snapshot.
func (s *Store) Current() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.clone()
}

// Subscribe registers fn and immediately calls it with the current snapshot.
// Callbacks run on the publisher's goroutine and must not block. The
// returned function removes the subscription.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	current := s.current.clone()
	s.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Publish stores next and notifies subscribers when it differs from the
// current snapshot. It reports whether anything changed.
func (s *Store) Publish(next Snapshot) bool {
	s.mu.Lock()
	if reflect.DeepEqual(s.current, next) {
		s.mu.Unlock()
		return false
	}
	s.current = next.clone()
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(next.clone())
	}
	return true
}
