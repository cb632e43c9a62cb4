package roster

import (
	"context"
	"iter"
	"time"

	"github.com/Ovsov/tecret-anta/internal/assign"
)

type Game struct {
	Name          string
	Capacity      int
	AdminUsername string
	AdminChatID   int64
	PasscodeHash  []byte
	Active        bool
	PlayerCount   int
	CreatedAt     time.Time
}

func (g Game) Full() bool {
	return g.PlayerCount >= g.Capacity
}

func (g Game) SlotsLeft() int {
	if left := g.Capacity - g.PlayerCount; left > 0 {
		return left
	}
	return 0
}

func (g Game) IsAdmin(username string) bool {
	return username != "" && username == g.AdminUsername
}

type Player struct {
	Username string
	ChatID   int64
}

type Participation struct {
	Player           Player
	JoinedAt         time.Time
	AssignedReceiver string
}

// Exclusion is an unordered pair; A always sorts before B.
type Exclusion struct {
	A string
	B string
}

func NewExclusion(a, b string) Exclusion {
	if b < a {
		a, b = b, a
	}
	return Exclusion{A: a, B: b}
}

func (e Exclusion) Matches(x, y string) bool {
	return e == NewExclusion(x, y)
}

func (e Exclusion) Involves(username string) bool {
	return e.A == username || e.B == username
}

// Roster is a snapshot of one game with its participants in join order.
type Roster struct {
	Game         Game
	Participants []Participation
	Exclusions   []Exclusion
}

func (r Roster) Usernames() []string {
	names := make([]string, 0, len(r.Participants))
	for _, p := range r.Participants {
		names = append(names, p.Player.Username)
	}
	return names
}

func (r Roster) HasParticipant(username string) bool {
	for _, p := range r.Participants {
		if p.Player.Username == username {
			return true
		}
	}
	return false
}

func (r Roster) HasExclusion(a, b string) bool {
	for _, e := range r.Exclusions {
		if e.Matches(a, b) {
			return true
		}
	}
	return false
}

// Assignment is one giver's result of a committed rollout.
type Assignment struct {
	Giver    Player
	Receiver string
}

type NewGame struct {
	Name          string `validate:"required"`
	Capacity      int    `validate:"gte=2"`
	AdminUsername string `validate:"required"`
	AdminChatID   int64
	Passcode      string `validate:"required"`
}

// Generator computes a giver to receiver assignment for a roster.
type Generator interface {
	Generate(roster []string, exclusions []assign.Pair) ([]assign.Pair, error)
}

// Store is the persistence boundary for games. Every mutation of one game
// runs as a critical section scoped to that game.
type Store interface {
	CreateGame(ctx context.Context, req NewGame) (Game, error)
	Game(ctx context.Context, name string) (Game, error)
	GamesByAdmin(ctx context.Context, username string) ([]Game, error)
	Roster(ctx context.Context, name string) (Roster, error)
	AddParticipant(ctx context.Context, name, username string, chatID int64) (Game, error)
	RemoveParticipant(ctx context.Context, name, username string) (Game, error)
	AddExclusion(ctx context.Context, name, a, b string) (Exclusion, error)
	RemoveExclusion(ctx context.Context, name, a, b string) error
	// ListAvailableGames yields active games with free slots, ordered by
	// name. Each range over the sequence starts a fresh scan.
	ListAvailableGames(ctx context.Context) iter.Seq2[Game, error]
	VerifyPasscode(ctx context.Context, name, candidate string) (bool, error)
	// Rollout generates and commits an assignment and closes the game in one
	// step. On any error the game is left untouched.
	Rollout(ctx context.Context, name, adminUsername string, gen Generator) ([]Assignment, error)
}

func exclusionPairs(exclusions []Exclusion) []assign.Pair {
	pairs := make([]assign.Pair, 0, len(exclusions))
	for _, e := range exclusions {
		pairs = append(pairs, assign.Pair{Giver: e.A, Receiver: e.B})
	}
	return pairs
}
