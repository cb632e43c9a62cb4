package db

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/Ovsov/tecret-anta/internal/assign"
	"github.com/Ovsov/tecret-anta/internal/config"
	"github.com/Ovsov/tecret-anta/internal/roster"
	"github.com/Ovsov/tecret-anta/internal/roster/rostertest"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	cfg := config.Default()
	cfg.DatabaseURL = dsn
	conn, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, Migrate(conn))
	require.NoError(t, conn.Exec("TRUNCATE events, exclusions, participations, games, players RESTART IDENTITY CASCADE").Error)
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

func TestGormStore(t *testing.T) {
	rostertest.Run(t, func(t *testing.T) roster.Store {
		return NewGormStore(openTestDB(t), bcrypt.MinCost)
	})
}

func TestGormStoreRecordsEvents(t *testing.T) {
	conn := openTestDB(t)
	store := NewGormStore(conn, bcrypt.MinCost)
	ctx := context.Background()

	_, err := store.CreateGame(ctx, roster.NewGame{
		Name: "Office", Capacity: 2, AdminUsername: "santa", AdminChatID: 1, Passcode: "pw",
	})
	require.NoError(t, err)
	_, err = store.AddParticipant(ctx, "Office", "elf", 2)
	require.NoError(t, err)
	_, err = store.Rollout(ctx, "Office", "santa", assign.New())
	require.NoError(t, err)

	var events []Event
	require.NoError(t, conn.Order("id").Find(&events).Error)
	require.Len(t, events, 3)
	assert.Equal(t, EventGameCreated, events[0].Type)
	assert.Equal(t, EventPlayerJoined, events[1].Type)
	assert.Equal(t, EventGameRolledOut, events[2].Type)

	var payload EventPayload
	require.NoError(t, json.Unmarshal(events[2].Payload, &payload))
	assert.ElementsMatch(t, []string{"santa", "elf"}, payload.Givers)
}

func TestGormStoreListPagesThroughGames(t *testing.T) {
	conn := openTestDB(t)
	store := NewGormStore(conn, bcrypt.MinCost)
	store.pageSize = 2
	ctx := context.Background()

	for _, name := range []string{"e", "d", "c", "b", "a"} {
		_, err := store.CreateGame(ctx, roster.NewGame{
			Name: name, Capacity: 3, AdminUsername: "santa", AdminChatID: 1, Passcode: "pw",
		})
		require.NoError(t, err)
	}

	var names []string
	for game, err := range store.ListAvailableGames(ctx) {
		require.NoError(t, err)
		names = append(names, game.Name)
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, names)
}

func TestOrderedIDs(t *testing.T) {
	low, high := orderedIDs(9, 3)
	assert.Equal(t, uint(3), low)
	assert.Equal(t, uint(9), high)
}
