package assign

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x5eed))
}

func TestGenerateTwoPlayersExcludedIsUnsatisfiable(t *testing.T) {
	engine := New(WithRand(seeded(1)))

	pairs, err := engine.Generate([]string{"ada", "bob"}, []Pair{{Giver: "bob", Receiver: "ada"}})

	require.ErrorIs(t, err, ErrUnsatisfiable)
	assert.Nil(t, pairs)
	assert.Contains(t, err.Error(), "100 attempts")
}

func TestGenerateThreePlayersReturnsThreeCycle(t *testing.T) {
	roster := []string{"ada", "bob", "cy"}
	cycles := map[string]bool{
		"ada>bob,bob>cy,cy>ada": true,
		"ada>cy,bob>ada,cy>bob": true,
	}
	for seed := uint64(0); seed < 50; seed++ {
		engine := New(WithRand(seeded(seed)))
		pairs, err := engine.Generate(roster, nil)
		require.NoError(t, err)
		require.NoError(t, Validate(roster, nil, pairs))

		key := fmt.Sprintf("%s>%s,%s>%s,%s>%s",
			pairs[0].Giver, pairs[0].Receiver,
			pairs[1].Giver, pairs[1].Receiver,
			pairs[2].Giver, pairs[2].Receiver)
		assert.True(t, cycles[key], "unexpected assignment %s", key)
	}
}

func TestGenerateRespectsExclusions(t *testing.T) {
	roster := []string{"a", "b", "c", "d", "e", "f"}
	exclusions := []Pair{{Giver: "a", Receiver: "b"}, {Giver: "d", Receiver: "c"}, {Giver: "e", Receiver: "f"}}

	for seed := uint64(0); seed < 200; seed++ {
		engine := New(WithRand(seeded(seed)))
		pairs, err := engine.Generate(roster, exclusions)
		if err != nil {
			require.ErrorIs(t, err, ErrUnsatisfiable)
			continue
		}
		require.NoError(t, Validate(roster, exclusions, pairs))
		for i, pair := range pairs {
			assert.Equal(t, roster[i], pair.Giver, "pairs follow roster order")
		}
	}
}

func TestGenerateWithoutSourceUsesGlobalRand(t *testing.T) {
	roster := []string{"a", "b", "c", "d"}
	pairs, err := New().Generate(roster, nil)
	require.NoError(t, err)
	assert.NoError(t, Validate(roster, nil, pairs))
}

func TestGenerateRejectsBadRosters(t *testing.T) {
	engine := New()

	_, err := engine.Generate([]string{"solo"}, nil)
	assert.ErrorIs(t, err, ErrRosterTooSmall)

	_, err = engine.Generate([]string{"a", "b", "a"}, nil)
	assert.ErrorIs(t, err, ErrDuplicateGiver)
}

func TestWithAttemptsIgnoresNonPositive(t *testing.T) {
	assert.Equal(t, DefaultAttempts, New(WithAttempts(0)).Attempts())
	assert.Equal(t, 7, New(WithAttempts(7)).Attempts())
}

func TestValidate(t *testing.T) {
	roster := []string{"a", "b", "c"}
	ok := []Pair{{"a", "b"}, {"b", "c"}, {"c", "a"}}

	tests := []struct {
		name       string
		exclusions []Pair
		pairs      []Pair
		want       error
	}{
		{name: "valid", pairs: ok},
		{name: "partial", pairs: ok[:2], want: ErrIncompleteMapping},
		{name: "fixed point", pairs: []Pair{{"a", "a"}, {"b", "c"}, {"c", "b"}}, want: ErrForbiddenPair},
		{name: "receives twice", pairs: []Pair{{"a", "b"}, {"b", "a"}, {"c", "a"}}, want: ErrIncompleteMapping},
		{name: "stranger", pairs: []Pair{{"a", "b"}, {"b", "c"}, {"c", "zed"}}, want: ErrIncompleteMapping},
		{name: "excluded either direction", exclusions: []Pair{{"b", "a"}}, pairs: ok, want: ErrForbiddenPair},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(roster, tt.exclusions, tt.pairs)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
