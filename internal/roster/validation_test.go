package roster

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestValidateNewGame(t *testing.T) {
	valid := NewGame{Name: " Team  Gifts ", Capacity: 3, AdminUsername: "@santa", Passcode: " pass "}

	got, err := ValidateNewGame(valid)
	require.NoError(t, err)
	assert.Equal(t, "Team Gifts", got.Name)
	assert.Equal(t, "santa", got.AdminUsername)
	assert.Equal(t, " pass ", got.Passcode, "passcodes are matched verbatim")

	tests := []struct {
		name   string
		mutate func(*NewGame)
		want   error
	}{
		{"blank name", func(g *NewGame) { g.Name = " " }, ErrEmptyField},
		{"capacity one", func(g *NewGame) { g.Capacity = 1 }, ErrInvalidCapacity},
		{"blank admin", func(g *NewGame) { g.AdminUsername = "@" }, ErrEmptyField},
		{"blank passcode", func(g *NewGame) { g.Passcode = "   " }, ErrEmptyField},
		{"long name", func(g *NewGame) { g.Name = strings.Repeat("n", MaxGameNameBytes+1) }, ErrNameTooLong},
		{"long passcode", func(g *NewGame) { g.Passcode = strings.Repeat("p", MaxPasscodeBytes+1) }, ErrPasscodeTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			_, err := ValidateNewGame(req)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, KindValidation, KindOf(err))
		})
	}
}

func TestValidateGameName(t *testing.T) {
	name, err := ValidateGameName("  Ёлка   2026 ")
	require.NoError(t, err)
	assert.Equal(t, "Ёлка 2026", name)

	_, err = ValidateGameName("\n")
	assert.ErrorIs(t, err, ErrEmptyField)
}

func TestPasscodeHashing(t *testing.T) {
	hash, err := HashPasscode("hohoho", bcrypt.MinCost)
	require.NoError(t, err)

	assert.True(t, CheckPasscode(hash, "hohoho"))
	assert.False(t, CheckPasscode(hash, "hohoho!"))
	assert.False(t, CheckPasscode(hash, ""))
	assert.False(t, CheckPasscode(nil, "hohoho"))
}

func TestExclusionIsUnordered(t *testing.T) {
	assert.Equal(t, NewExclusion("bob", "ada"), NewExclusion("ada", "bob"))
	assert.True(t, NewExclusion("ada", "bob").Matches("bob", "ada"))
	assert.True(t, NewExclusion("ada", "bob").Involves("bob"))
	assert.False(t, NewExclusion("ada", "bob").Involves("cy"))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindState, KindOf(ErrFull))
	assert.Equal(t, "full", CodeOf(ErrFull))
	assert.Equal(t, KindInternal, KindOf(assert.AnError))
	assert.Equal(t, "", CodeOf(nil))
	assert.Equal(t, "unsatisfiable", KindUnsatisfiable.String())
}
