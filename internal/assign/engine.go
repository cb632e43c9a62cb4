// Package assign computes Secret Santa assignments: a permutation of the
// roster with no fixed points that avoids every excluded pair.
package assign

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
)

// DefaultAttempts bounds the rejection sampling. Dense exclusion sets can
// exhaust it even when a valid assignment exists.
const DefaultAttempts = 100

var (
	ErrUnsatisfiable     = errors.New("no valid assignment found")
	ErrRosterTooSmall    = errors.New("roster needs at least two participants")
	ErrDuplicateGiver    = errors.New("participant listed more than once")
	ErrIncompleteMapping = errors.New("assignment does not cover the roster")
	ErrForbiddenPair     = errors.New("assignment contains a forbidden pair")
)

// Pair is a giver and receiver. As an exclusion it is unordered.
type Pair struct {
	Giver    string
	Receiver string
}

type Engine struct {
	attempts int

	mu  sync.Mutex
	rnd *rand.Rand
}

type Option func(*Engine)

func WithAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.attempts = n
		}
	}
}

// WithRand makes the engine draw permutations from r, for reproducible runs.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) {
		e.rnd = r
	}
}

func New(opts ...Option) *Engine {
	e := &Engine{attempts: DefaultAttempts}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Attempts() int {
	return e.attempts
}

// Generate draws up to Attempts uniform permutations of roster as receivers,
// aligned with roster as givers, and returns the first one in which nobody
// draws themselves or an excluded partner. Pairs come back in roster order.
func (e *Engine) Generate(roster []string, exclusions []Pair) ([]Pair, error) {
	if len(roster) < 2 {
		return nil, ErrRosterTooSmall
	}
	seen := make(map[string]struct{}, len(roster))
	for _, name := range roster {
		if _, ok := seen[name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateGiver, name)
		}
		seen[name] = struct{}{}
	}
	forbidden := newPairSet(exclusions)

	receivers := make([]string, len(roster))
	for attempt := 0; attempt < e.attempts; attempt++ {
		copy(receivers, roster)
		e.shuffle(receivers)
		if acceptable(roster, receivers, forbidden) {
			pairs := make([]Pair, len(roster))
			for i, giver := range roster {
				pairs[i] = Pair{Giver: giver, Receiver: receivers[i]}
			}
			return pairs, nil
		}
	}
	return nil, fmt.Errorf("%w after %d attempts", ErrUnsatisfiable, e.attempts)
}

func (e *Engine) shuffle(names []string) {
	swap := func(i, j int) { names[i], names[j] = names[j], names[i] }
	if e.rnd == nil {
		rand.Shuffle(len(names), swap)
		return
	}
	e.mu.Lock()
	e.rnd.Shuffle(len(names), swap)
	e.mu.Unlock()
}

func acceptable(givers, receivers []string, forbidden pairSet) bool {
	for i, giver := range givers {
		receiver := receivers[i]
		if giver == receiver || forbidden.has(giver, receiver) {
			return false
		}
	}
	return true
}

// Validate checks that pairs is a bijection on roster with no fixed point and
// no excluded pair.
func Validate(roster []string, exclusions []Pair, pairs []Pair) error {
	if len(pairs) != len(roster) {
		return fmt.Errorf("%w: %d pairs for %d participants", ErrIncompleteMapping, len(pairs), len(roster))
	}
	members := make(map[string]bool, len(roster))
	for _, name := range roster {
		members[name] = true
	}
	forbidden := newPairSet(exclusions)
	givers := make(map[string]struct{}, len(pairs))
	receivers := make(map[string]struct{}, len(pairs))
	for _, pair := range pairs {
		if !members[pair.Giver] || !members[pair.Receiver] {
			return fmt.Errorf("%w: unknown participant in %s -> %s", ErrIncompleteMapping, pair.Giver, pair.Receiver)
		}
		if _, dup := givers[pair.Giver]; dup {
			return fmt.Errorf("%w: %s gives twice", ErrIncompleteMapping, pair.Giver)
		}
		if _, dup := receivers[pair.Receiver]; dup {
			return fmt.Errorf("%w: %s receives twice", ErrIncompleteMapping, pair.Receiver)
		}
		if pair.Giver == pair.Receiver {
			return fmt.Errorf("%w: %s draws themselves", ErrForbiddenPair, pair.Giver)
		}
		if forbidden.has(pair.Giver, pair.Receiver) {
			return fmt.Errorf("%w: %s -> %s is excluded", ErrForbiddenPair, pair.Giver, pair.Receiver)
		}
		givers[pair.Giver] = struct{}{}
		receivers[pair.Receiver] = struct{}{}
	}
	return nil
}

type pairSet map[Pair]struct{}

func newPairSet(pairs []Pair) pairSet {
	set := make(pairSet, len(pairs))
	for _, p := range pairs {
		set[normalize(p.Giver, p.Receiver)] = struct{}{}
	}
	return set
}

func (s pairSet) has(a, b string) bool {
	_, ok := s[normalize(a, b)]
	return ok
}

func normalize(a, b string) Pair {
	if b < a {
		a, b = b, a
	}
	return Pair{Giver: a, Receiver: b}
}
