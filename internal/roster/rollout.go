package roster

import (
	"errors"
	"fmt"

	"github.com/Ovsov/tecret-anta/internal/assign"
)

// PlanRollout runs gen over r and returns the assignment to commit. It
// performs no writes; stores call it inside their per-game critical section
// and persist the result only when it returns nil.
func PlanRollout(r Roster, adminUsername string, gen Generator) ([]Assignment, error) {
	if !r.Game.Active {
		return nil, ErrInactiveGame
	}
	if !r.Game.IsAdmin(adminUsername) {
		return nil, ErrNotAdmin
	}
	if len(r.Participants) < r.Game.Capacity {
		return nil, ErrNotFull
	}

	names := r.Usernames()
	excluded := exclusionPairs(r.Exclusions)
	pairs, err := gen.Generate(names, excluded)
	if err != nil {
		if errors.Is(err, assign.ErrUnsatisfiable) {
			return nil, fmt.Errorf("%w: %w", ErrUnsatisfiable, err)
		}
		return nil, fmt.Errorf("generate assignment: %w", err)
	}
	if err := assign.Validate(names, excluded, pairs); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAssignment, err)
	}

	receivers := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		receivers[pair.Giver] = pair.Receiver
	}
	out := make([]Assignment, 0, len(r.Participants))
	for _, p := range r.Participants {
		out = append(out, Assignment{Giver: p.Player, Receiver: receivers[p.Player.Username]})
	}
	return out, nil
}
