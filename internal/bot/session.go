package bot

import (
	"context"
	"sync"
)

type State string

const (
	StateIdle               State = ""
	StateAwaitingGameName   State = "awaiting_game_name"
	StateAwaitingPasscode   State = "awaiting_passcode"
	StateAwaitingCapacity   State = "awaiting_capacity"
	StateAwaitingExceptions State = "awaiting_exceptions"
	StateJoiningGame        State = "joining_game"
)

func (s State) String() string {
	if s == StateIdle {
		return "idle"
	}
	return string(s)
}

// Session is one user's dialog position plus the input collected so far.
type Session struct {
	State    State  `json:"state"`
	GameName string `json:"game_name,omitempty"`
	Passcode string `json:"passcode,omitempty"`
}

func (s Session) Idle() bool {
	return s.State == StateIdle
}

// SessionStore keeps sessions by user id. A missing session reads as idle,
// and storing an idle session deletes it.
type SessionStore interface {
	Get(ctx context.Context, userID int64) (Session, error)
	Put(ctx context.Context, userID int64, session Session) error
}

// MemorySessionStore is a process-local SessionStore. Sessions are lost on
// restart.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[int64]Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[int64]Session)}
}

func (s *MemorySessionStore) Get(ctx context.Context, userID int64) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[userID], nil
}

func (s *MemorySessionStore) Put(ctx context.Context, userID int64, session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session.Idle() {
		delete(s.sessions, userID)
		return nil
	}
	s.sessions[userID] = session
	return nil
}

func (s *MemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
