// Package rostertest holds behaviour tests shared by every roster.Store
// implementation.
package rostertest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ovsov/tecret-anta/internal/assign"
	"github.com/Ovsov/tecret-anta/internal/roster"
)

// Factory returns an empty store. Game names only need to be unique within
// one store.
type Factory func(t *testing.T) roster.Store

func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, store roster.Store)
	}{
		{"CreateGameEnrollsAdmin", testCreateGameEnrollsAdmin},
		{"CreateGameValidation", testCreateGameValidation},
		{"CreateGameDuplicateName", testCreateGameDuplicateName},
		{"AddParticipantTwice", testAddParticipantTwice},
		{"AddParticipantFull", testAddParticipantFull},
		{"ConcurrentJoinsOnLastSlot", testConcurrentJoinsOnLastSlot},
		{"RemoveParticipant", testRemoveParticipant},
		{"ExclusionOrderIndependent", testExclusionOrderIndependent},
		{"ExclusionValidation", testExclusionValidation},
		{"RemoveExclusion", testRemoveExclusion},
		{"ListAvailableGames", testListAvailableGames},
		{"VerifyPasscode", testVerifyPasscode},
		{"RolloutCommits", testRolloutCommits},
		{"RolloutUnsatisfiableLeavesGameOpen", testRolloutUnsatisfiableLeavesGameOpen},
		{"RolloutRejectsBrokenGenerator", testRolloutRejectsBrokenGenerator},
		{"RolloutGuards", testRolloutGuards},
		{"RolloutRacesExclusionEdits", testRolloutRacesExclusionEdits},
		{"RolloutRacesJoins", testRolloutRacesJoins},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func newGame(name string, capacity int) roster.NewGame {
	return roster.NewGame{
		Name:          name,
		Capacity:      capacity,
		AdminUsername: "santa",
		AdminChatID:   100,
		Passcode:      "hohoho",
	}
}

// fillGame creates a game of the given capacity and fills it with players
// p1..p(capacity-1).
func fillGame(t *testing.T, store roster.Store, name string, capacity int) []string {
	t.Helper()
	ctx := context.Background()
	_, err := store.CreateGame(ctx, newGame(name, capacity))
	require.NoError(t, err)
	names := []string{"santa"}
	for i := 1; i < capacity; i++ {
		username := fmt.Sprintf("p%d", i)
		_, err := store.AddParticipant(ctx, name, username, int64(100+i))
		require.NoError(t, err)
		names = append(names, username)
	}
	return names
}

func testCreateGameEnrollsAdmin(t *testing.T, store roster.Store) {
	ctx := context.Background()
	game, err := store.CreateGame(ctx, newGame("  Office   Party ", 4))
	require.NoError(t, err)

	assert.Equal(t, "Office Party", game.Name)
	assert.True(t, game.Active)
	assert.Equal(t, 1, game.PlayerCount)
	assert.Equal(t, int64(100), game.AdminChatID)
	assert.NotEqual(t, "hohoho", string(game.PasscodeHash))

	r, err := store.Roster(ctx, "Office Party")
	require.NoError(t, err)
	assert.Equal(t, []string{"santa"}, r.Usernames())
}

func testCreateGameValidation(t *testing.T, store roster.Store) {
	ctx := context.Background()
	for _, capacity := range []int{-3, 0, 1} {
		req := newGame(fmt.Sprintf("cap-%d", capacity), capacity)
		_, err := store.CreateGame(ctx, req)
		require.ErrorIs(t, err, roster.ErrInvalidCapacity)
		assert.Equal(t, roster.KindValidation, roster.KindOf(err))

		_, err = store.Game(ctx, req.Name)
		assert.ErrorIs(t, err, roster.ErrGameNotFound)
	}

	blank := newGame("   ", 3)
	_, err := store.CreateGame(ctx, blank)
	assert.ErrorIs(t, err, roster.ErrEmptyField)

	noPass := newGame("no-pass", 3)
	noPass.Passcode = " \t "
	_, err = store.CreateGame(ctx, noPass)
	assert.ErrorIs(t, err, roster.ErrEmptyField)

	noAdmin := newGame("no-admin", 3)
	noAdmin.AdminUsername = ""
	_, err = store.CreateGame(ctx, noAdmin)
	assert.ErrorIs(t, err, roster.ErrEmptyField)
}

func testCreateGameDuplicateName(t *testing.T, store roster.Store) {
	ctx := context.Background()
	_, err := store.CreateGame(ctx, newGame("xmas", 3))
	require.NoError(t, err)

	_, err = store.CreateGame(ctx, newGame("xmas", 5))
	require.ErrorIs(t, err, roster.ErrDuplicateName)
	assert.Equal(t, roster.KindDuplicate, roster.KindOf(err))

	game, err := store.Game(ctx, "xmas")
	require.NoError(t, err)
	assert.Equal(t, 3, game.Capacity)
}

func testAddParticipantTwice(t *testing.T, store roster.Store) {
	ctx := context.Background()
	_, err := store.CreateGame(ctx, newGame("twice", 5))
	require.NoError(t, err)

	game, err := store.AddParticipant(ctx, "twice", "elf", 7)
	require.NoError(t, err)
	assert.Equal(t, 2, game.PlayerCount)

	_, err = store.AddParticipant(ctx, "twice", "elf", 7)
	require.ErrorIs(t, err, roster.ErrAlreadyJoined)

	_, err = store.AddParticipant(ctx, "twice", "santa", 100)
	require.ErrorIs(t, err, roster.ErrAlreadyJoined)

	game, err = store.Game(ctx, "twice")
	require.NoError(t, err)
	assert.Equal(t, 2, game.PlayerCount)
}

func testAddParticipantFull(t *testing.T, store roster.Store) {
	ctx := context.Background()
	fillGame(t, store, "full", 2)

	_, err := store.AddParticipant(ctx, "full", "late", 9)
	require.ErrorIs(t, err, roster.ErrFull)

	_, err = store.AddParticipant(ctx, "missing", "late", 9)
	require.ErrorIs(t, err, roster.ErrGameNotFound)
}

func testConcurrentJoinsOnLastSlot(t *testing.T, store roster.Store) {
	ctx := context.Background()
	fillGame(t, store, "last-slot", 3)
	_, err := store.RemoveParticipant(ctx, "last-slot", "p2")
	require.NoError(t, err)

	const contenders = 8
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, contenders)
	)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = store.AddParticipant(ctx, "last-slot", fmt.Sprintf("racer%d", i), int64(500+i))
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, roster.ErrFull)
	}
	assert.Equal(t, 1, succeeded)

	game, err := store.Game(ctx, "last-slot")
	require.NoError(t, err)
	assert.Equal(t, game.Capacity, game.PlayerCount)
	r, err := store.Roster(ctx, "last-slot")
	require.NoError(t, err)
	assert.Len(t, r.Participants, game.Capacity)
}

func testRemoveParticipant(t *testing.T, store roster.Store) {
	ctx := context.Background()
	fillGame(t, store, "kick", 3)
	_, err := store.AddExclusion(ctx, "kick", "p1", "p2")
	require.NoError(t, err)

	_, err = store.RemoveParticipant(ctx, "kick", "santa")
	require.ErrorIs(t, err, roster.ErrCannotRemoveAdmin)

	game, err := store.RemoveParticipant(ctx, "kick", "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, game.PlayerCount)

	r, err := store.Roster(ctx, "kick")
	require.NoError(t, err)
	assert.Equal(t, []string{"santa", "p2"}, r.Usernames())
	assert.Empty(t, r.Exclusions, "exclusions of a removed player go with them")

	_, err = store.RemoveParticipant(ctx, "kick", "p1")
	assert.ErrorIs(t, err, roster.ErrNotParticipant)
}

func testExclusionOrderIndependent(t *testing.T, store roster.Store) {
	ctx := context.Background()
	fillGame(t, store, "pairs", 3)

	added, err := store.AddExclusion(ctx, "pairs", "p2", "@p1")
	require.NoError(t, err)
	assert.Equal(t, roster.Exclusion{A: "p1", B: "p2"}, added)

	_, err = store.AddExclusion(ctx, "pairs", "p1", "p2")
	require.ErrorIs(t, err, roster.ErrDuplicateExclusion)
	assert.Equal(t, roster.KindDuplicate, roster.KindOf(err))

	r, err := store.Roster(ctx, "pairs")
	require.NoError(t, err)
	assert.Len(t, r.Exclusions, 1)
}

func testExclusionValidation(t *testing.T, store roster.Store) {
	ctx := context.Background()
	fillGame(t, store, "rules", 3)

	_, err := store.AddExclusion(ctx, "rules", "p1", "p1")
	assert.ErrorIs(t, err, roster.ErrSelfPair)

	_, err = store.AddExclusion(ctx, "rules", "p1", "stranger")
	assert.ErrorIs(t, err, roster.ErrNotParticipant)

	_, err = store.AddExclusion(ctx, "rules", "", "p1")
	assert.ErrorIs(t, err, roster.ErrEmptyField)

	r, err := store.Roster(ctx, "rules")
	require.NoError(t, err)
	assert.Empty(t, r.Exclusions)
}

func testRemoveExclusion(t *testing.T, store roster.Store) {
	ctx := context.Background()
	fillGame(t, store, "undo", 3)
	_, err := store.AddExclusion(ctx, "undo", "p1", "santa")
	require.NoError(t, err)

	require.NoError(t, store.RemoveExclusion(ctx, "undo", "santa", "p1"))
	assert.ErrorIs(t, store.RemoveExclusion(ctx, "undo", "santa", "p1"), roster.ErrExclusionNotFound)
}

func testListAvailableGames(t *testing.T, store roster.Store) {
	ctx := context.Background()
	_, err := store.CreateGame(ctx, newGame("b-open", 3))
	require.NoError(t, err)
	_, err = store.CreateGame(ctx, newGame("a-open", 4))
	require.NoError(t, err)
	fillGame(t, store, "c-full", 2)

	collect := func() []string {
		var names []string
		for game, err := range store.ListAvailableGames(ctx) {
			require.NoError(t, err)
			names = append(names, game.Name)
		}
		return names
	}
	assert.Equal(t, []string{"a-open", "b-open"}, collect())
	assert.Equal(t, []string{"a-open", "b-open"}, collect(), "sequence restarts")

	for game, err := range store.ListAvailableGames(ctx) {
		require.NoError(t, err)
		assert.Equal(t, "a-open", game.Name)
		break
	}
}

func testVerifyPasscode(t *testing.T, store roster.Store) {
	ctx := context.Background()
	_, err := store.CreateGame(ctx, newGame("secret", 3))
	require.NoError(t, err)

	ok, err := store.VerifyPasscode(ctx, "secret", "hohoho")
	require.NoError(t, err)
	assert.True(t, ok)

	for _, candidate := range []string{"", "HOHOHO", "hohoho ", "hoho"} {
		ok, err := store.VerifyPasscode(ctx, "secret", candidate)
		require.NoError(t, err)
		assert.False(t, ok, "candidate %q", candidate)
	}

	_, err = store.VerifyPasscode(ctx, "nope", "hohoho")
	assert.ErrorIs(t, err, roster.ErrGameNotFound)
}

func testRolloutCommits(t *testing.T, store roster.Store) {
	ctx := context.Background()
	names := fillGame(t, store, "rollout", 4)
	_, err := store.AddExclusion(ctx, "rollout", "santa", "p1")
	require.NoError(t, err)

	assignments, err := store.Rollout(ctx, "rollout", "santa", assign.New())
	require.NoError(t, err)
	require.Len(t, assignments, 4)

	pairs := make([]assign.Pair, 0, len(assignments))
	for i, a := range assignments {
		assert.Equal(t, names[i], a.Giver.Username)
		assert.NotZero(t, a.Giver.ChatID)
		pairs = append(pairs, assign.Pair{Giver: a.Giver.Username, Receiver: a.Receiver})
	}
	require.NoError(t, assign.Validate(names, []assign.Pair{{Giver: "santa", Receiver: "p1"}}, pairs))

	r, err := store.Roster(ctx, "rollout")
	require.NoError(t, err)
	assert.False(t, r.Game.Active)
	for i, p := range r.Participants {
		assert.Equal(t, assignments[i].Receiver, p.AssignedReceiver)
	}

	_, err = store.AddParticipant(ctx, "rollout", "late", 1)
	assert.ErrorIs(t, err, roster.ErrInactiveGame)
	_, err = store.AddExclusion(ctx, "rollout", "p2", "p3")
	assert.ErrorIs(t, err, roster.ErrInactiveGame)
	_, err = store.RemoveParticipant(ctx, "rollout", "p2")
	assert.ErrorIs(t, err, roster.ErrInactiveGame)
	_, err = store.Rollout(ctx, "rollout", "santa", assign.New())
	assert.ErrorIs(t, err, roster.ErrInactiveGame)
	assert.ErrorIs(t, store.RemoveExclusion(ctx, "rollout", "santa", "p1"), roster.ErrInactiveGame)

	for game, err := range store.ListAvailableGames(ctx) {
		require.NoError(t, err)
		assert.NotEqual(t, "rollout", game.Name)
	}
}

func testRolloutUnsatisfiableLeavesGameOpen(t *testing.T, store roster.Store) {
	ctx := context.Background()
	fillGame(t, store, "stuck", 2)
	_, err := store.AddExclusion(ctx, "stuck", "santa", "p1")
	require.NoError(t, err)

	_, err = store.Rollout(ctx, "stuck", "santa", assign.New())
	require.ErrorIs(t, err, roster.ErrUnsatisfiable)
	assert.ErrorIs(t, err, assign.ErrUnsatisfiable)
	assert.Equal(t, roster.KindUnsatisfiable, roster.KindOf(err))

	assertUntouched(t, store, "stuck")

	require.NoError(t, store.RemoveExclusion(ctx, "stuck", "santa", "p1"))
	assignments, err := store.Rollout(ctx, "stuck", "santa", assign.New())
	require.NoError(t, err)
	assert.Len(t, assignments, 2)
}

// partialGenerator returns an assignment that is valid for the first givers
// only, as if an attempt had been cut short.
type partialGenerator struct{}

func (partialGenerator) Generate(names []string, _ []assign.Pair) ([]assign.Pair, error) {
	return []assign.Pair{{Giver: names[0], Receiver: names[1]}}, nil
}

type failingGenerator struct{ err error }

func (g failingGenerator) Generate([]string, []assign.Pair) ([]assign.Pair, error) {
	return nil, g.err
}

func testRolloutRejectsBrokenGenerator(t *testing.T, store roster.Store) {
	ctx := context.Background()
	fillGame(t, store, "broken", 3)

	_, err := store.Rollout(ctx, "broken", "santa", partialGenerator{})
	require.ErrorIs(t, err, roster.ErrInvalidAssignment)
	assertUntouched(t, store, "broken")

	boom := errors.New("boom")
	_, err = store.Rollout(ctx, "broken", "santa", failingGenerator{err: boom})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, roster.KindInternal, roster.KindOf(err))
	assertUntouched(t, store, "broken")
}

func testRolloutGuards(t *testing.T, store roster.Store) {
	ctx := context.Background()
	_, err := store.CreateGame(ctx, newGame("waiting", 3))
	require.NoError(t, err)
	_, err = store.AddParticipant(ctx, "waiting", "p1", 1)
	require.NoError(t, err)

	_, err = store.Rollout(ctx, "waiting", "p1", assign.New())
	assert.ErrorIs(t, err, roster.ErrNotAdmin)

	_, err = store.Rollout(ctx, "waiting", "santa", assign.New())
	assert.ErrorIs(t, err, roster.ErrNotFull)

	_, err = store.Rollout(ctx, "ghost", "santa", assign.New())
	assert.ErrorIs(t, err, roster.ErrGameNotFound)

	assertUntouched(t, store, "waiting")
}

const raceRounds = 20

// runTogether starts every fn at once and waits for all of them.
func runTogether(fns ...func()) {
	var wg sync.WaitGroup
	start := make(chan struct{})
	for _, fn := range fns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			fn()
		}()
	}
	close(start)
	wg.Wait()
}

func testRolloutRacesExclusionEdits(t *testing.T, store roster.Store) {
	ctx := context.Background()
	for i := 0; i < raceRounds; i++ {
		name := fmt.Sprintf("race-exclusion-%d", i)
		fillGame(t, store, name, 4)

		var rolloutErr, addErr, removeErr error
		runTogether(
			func() { _, rolloutErr = store.Rollout(ctx, name, "santa", assign.New()) },
			func() { _, addErr = store.AddExclusion(ctx, name, "p1", "p2") },
			func() { removeErr = store.RemoveExclusion(ctx, name, "santa", "p3") },
		)
		require.NoError(t, rolloutErr, "round %d", i)
		if addErr != nil {
			require.ErrorIs(t, addErr, roster.ErrInactiveGame, "round %d", i)
		}
		if !errors.Is(removeErr, roster.ErrExclusionNotFound) {
			require.ErrorIs(t, removeErr, roster.ErrInactiveGame, "round %d", i)
		}

		r, err := store.Roster(ctx, name)
		require.NoError(t, err)
		require.False(t, r.Game.Active)
		assert.Equal(t, addErr == nil, r.HasExclusion("p1", "p2"), "round %d", i)
		require.NoError(t, assign.Validate(r.Usernames(), exclusionPairs(r), committedPairs(r)), "round %d", i)
	}
}

func testRolloutRacesJoins(t *testing.T, store roster.Store) {
	ctx := context.Background()
	for i := 0; i < raceRounds; i++ {
		name := fmt.Sprintf("race-join-%d", i)
		fillGame(t, store, name, 3)
		_, err := store.RemoveParticipant(ctx, name, "p2")
		require.NoError(t, err)

		var rolloutErr error
		joinErrs := make([]error, 2)
		runTogether(
			func() { _, rolloutErr = store.Rollout(ctx, name, "santa", assign.New()) },
			func() { _, joinErrs[0] = store.AddParticipant(ctx, name, "late", 700) },
			func() { _, joinErrs[1] = store.AddParticipant(ctx, name, "later", 701) },
		)
		if rolloutErr != nil {
			require.ErrorIs(t, rolloutErr, roster.ErrNotFull, "round %d", i)
		}
		joined := 0
		for _, err := range joinErrs {
			if err == nil {
				joined++
				continue
			}
			if !errors.Is(err, roster.ErrFull) {
				require.ErrorIs(t, err, roster.ErrInactiveGame, "round %d", i)
			}
		}
		assert.LessOrEqual(t, joined, 1, "round %d", i)

		r, err := store.Roster(ctx, name)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(r.Participants), r.Game.Capacity)
		assert.Equal(t, len(r.Participants), r.Game.PlayerCount)
		if r.Game.Active {
			require.Error(t, rolloutErr, "round %d", i)
			continue
		}
		require.NoError(t, rolloutErr, "round %d", i)
		assert.Len(t, r.Participants, r.Game.Capacity)
		require.NoError(t, assign.Validate(r.Usernames(), exclusionPairs(r), committedPairs(r)), "round %d", i)
	}
}

func exclusionPairs(r roster.Roster) []assign.Pair {
	pairs := make([]assign.Pair, 0, len(r.Exclusions))
	for _, e := range r.Exclusions {
		pairs = append(pairs, assign.Pair{Giver: e.A, Receiver: e.B})
	}
	return pairs
}

// committedPairs reads the stored assignment back from the participants.
func committedPairs(r roster.Roster) []assign.Pair {
	pairs := make([]assign.Pair, 0, len(r.Participants))
	for _, p := range r.Participants {
		pairs = append(pairs, assign.Pair{Giver: p.Player.Username, Receiver: p.AssignedReceiver})
	}
	return pairs
}

func assertUntouched(t *testing.T, store roster.Store, name string) {
	t.Helper()
	r, err := store.Roster(context.Background(), name)
	require.NoError(t, err)
	assert.True(t, r.Game.Active)
	for _, p := range r.Participants {
		assert.Empty(t, p.AssignedReceiver, "participant %s", p.Player.Username)
	}
}
