package roster

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps games in process memory. The index is guarded by mu and
// each game has its own lock, so mutations of different games never contend.
// Lock order is game lock, then playersMu; mu is never held while waiting on
// a game lock.
type MemoryStore struct {
	mu    sync.RWMutex
	games map[string]*memoryGame

	playersMu sync.Mutex
	players   map[string]Player

	passcodeCost int
	now          func() time.Time
}

type memoryGame struct {
	mu     sync.Mutex
	roster Roster
}

type MemoryOption func(*MemoryStore)

// WithPasscodeCost sets the bcrypt cost used to hash passcodes.
func WithPasscodeCost(cost int) MemoryOption {
	return func(s *MemoryStore) {
		s.passcodeCost = cost
	}
}

func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		games:   make(map[string]*memoryGame),
		players: make(map[string]Player),
		now:     timeNowUTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) CreateGame(ctx context.Context, req NewGame) (Game, error) {
	req, err := ValidateNewGame(req)
	if err != nil {
		return Game{}, err
	}
	hash, err := HashPasscode(req.Passcode, s.passcodeCost)
	if err != nil {
		return Game{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[req.Name]; ok {
		return Game{}, ErrDuplicateName
	}
	now := s.now()
	admin := s.upsertPlayer(req.AdminUsername, req.AdminChatID)
	game := Game{
		Name:          req.Name,
		Capacity:      req.Capacity,
		AdminUsername: req.AdminUsername,
		AdminChatID:   admin.ChatID,
		PasscodeHash:  hash,
		Active:        true,
		PlayerCount:   1,
		CreatedAt:     now,
	}
	s.games[req.Name] = &memoryGame{roster: Roster{
		Game:         game,
		Participants: []Participation{{Player: admin, JoinedAt: now}},
	}}
	return game, nil
}

func (s *MemoryStore) Game(ctx context.Context, name string) (Game, error) {
	var game Game
	err := s.withGame(name, func(r *Roster) error {
		game = r.Game
		return nil
	})
	return game, err
}

func (s *MemoryStore) GamesByAdmin(ctx context.Context, username string) ([]Game, error) {
	var games []Game
	for _, entry := range s.entries() {
		entry.mu.Lock()
		if entry.roster.Game.AdminUsername == username {
			games = append(games, entry.roster.Game)
		}
		entry.mu.Unlock()
	}
	return games, nil
}

func (s *MemoryStore) Roster(ctx context.Context, name string) (Roster, error) {
	var out Roster
	err := s.withGame(name, func(r *Roster) error {
		out = cloneRoster(*r)
		return nil
	})
	return out, err
}

func (s *MemoryStore) AddParticipant(ctx context.Context, name, username string, chatID int64) (Game, error) {
	username = NormalizeUsername(username)
	var game Game
	err := s.withGame(name, func(r *Roster) error {
		if err := CheckJoin(*r, username); err != nil {
			return err
		}
		player := s.upsertPlayer(username, chatID)
		r.Participants = append(r.Participants, Participation{Player: player, JoinedAt: s.now()})
		r.Game.PlayerCount = len(r.Participants)
		game = r.Game
		return nil
	})
	return game, err
}

func (s *MemoryStore) RemoveParticipant(ctx context.Context, name, username string) (Game, error) {
	username = NormalizeUsername(username)
	var game Game
	err := s.withGame(name, func(r *Roster) error {
		if err := CheckRemoval(*r, username); err != nil {
			return err
		}
		r.Participants = slices.DeleteFunc(r.Participants, func(p Participation) bool {
			return p.Player.Username == username
		})
		r.Exclusions = slices.DeleteFunc(r.Exclusions, func(e Exclusion) bool {
			return e.Involves(username)
		})
		r.Game.PlayerCount = len(r.Participants)
		game = r.Game
		return nil
	})
	return game, err
}

func (s *MemoryStore) AddExclusion(ctx context.Context, name, a, b string) (Exclusion, error) {
	var added Exclusion
	err := s.withGame(name, func(r *Roster) error {
		exclusion, err := CheckExclusion(*r, a, b)
		if err != nil {
			return err
		}
		r.Exclusions = append(r.Exclusions, exclusion)
		added = exclusion
		return nil
	})
	return added, err
}

func (s *MemoryStore) RemoveExclusion(ctx context.Context, name, a, b string) error {
	a, b = NormalizeUsername(a), NormalizeUsername(b)
	return s.withGame(name, func(r *Roster) error {
		if !r.Game.Active {
			return ErrInactiveGame
		}
		before := len(r.Exclusions)
		r.Exclusions = slices.DeleteFunc(r.Exclusions, func(e Exclusion) bool {
			return e.Matches(a, b)
		})
		if len(r.Exclusions) == before {
			return ErrExclusionNotFound
		}
		return nil
	})
}

func (s *MemoryStore) ListAvailableGames(ctx context.Context) iter.Seq2[Game, error] {
	return func(yield func(Game, error) bool) {
		for _, entry := range s.entries() {
			if err := ctx.Err(); err != nil {
				yield(Game{}, err)
				return
			}
			entry.mu.Lock()
			game := entry.roster.Game
			entry.mu.Unlock()
			if !game.Active || game.Full() {
				continue
			}
			if !yield(game, nil) {
				return
			}
		}
	}
}

func (s *MemoryStore) VerifyPasscode(ctx context.Context, name, candidate string) (bool, error) {
	game, err := s.Game(ctx, name)
	if err != nil {
		return false, err
	}
	return CheckPasscode(game.PasscodeHash, candidate), nil
}

func (s *MemoryStore) Rollout(ctx context.Context, name, adminUsername string, gen Generator) ([]Assignment, error) {
	var result []Assignment
	err := s.withGame(name, func(r *Roster) error {
		assignments, err := PlanRollout(*r, adminUsername, gen)
		if err != nil {
			return err
		}
		receivers := make(map[string]string, len(assignments))
		for _, a := range assignments {
			receivers[a.Giver.Username] = a.Receiver
		}
		committed := cloneRoster(*r)
		for i := range committed.Participants {
			committed.Participants[i].AssignedReceiver = receivers[committed.Participants[i].Player.Username]
		}
		committed.Game.Active = false
		*r = committed
		result = assignments
		return nil
	})
	return result, err
}

// withGame runs fn under the lock of the named game. fn may mutate the
// roster in place; it must leave it untouched when returning an error.
func (s *MemoryStore) withGame(name string, fn func(r *Roster) error) error {
	s.mu.RLock()
	entry, ok := s.games[NormalizeName(name)]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrGameNotFound, name)
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return fn(&entry.roster)
}

// entries returns the games sorted by name.
func (s *MemoryStore) entries() []*memoryGame {
	s.mu.RLock()
	names := make([]string, 0, len(s.games))
	for name := range s.games {
		names = append(names, name)
	}
	sort.Strings(names)
	list := make([]*memoryGame, 0, len(names))
	for _, name := range names {
		list = append(list, s.games[name])
	}
	s.mu.RUnlock()
	return list
}

func (s *MemoryStore) upsertPlayer(username string, chatID int64) Player {
	s.playersMu.Lock()
	defer s.playersMu.Unlock()
	player, ok := s.players[username]
	if !ok || (chatID != 0 && player.ChatID != chatID) {
		player = Player{Username: username, ChatID: chatID}
		s.players[username] = player
	}
	return player
}

func cloneRoster(r Roster) Roster {
	r.Participants = slices.Clone(r.Participants)
	r.Exclusions = slices.Clone(r.Exclusions)
	r.Game.PasscodeHash = slices.Clone(r.Game.PasscodeHash)
	return r
}

func timeNowUTC() time.Time {
	return time.Now().UTC()
}
