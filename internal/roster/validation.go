package roster

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

const (
	// Action ids carry the game name and must fit Telegram's 64 byte
	// callback data limit together with the verb prefix.
	MaxGameNameBytes = 48
	// bcrypt ignores input past 72 bytes.
	MaxPasscodeBytes = 72
	MaxUsernameBytes = 64
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// NormalizeName trims a game name and collapses inner whitespace.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// NormalizeUsername strips whitespace and a leading '@' mention marker.
func NormalizeUsername(username string) string {
	return strings.TrimPrefix(strings.TrimSpace(username), "@")
}

func ValidateGameName(name string) (string, error) {
	name = NormalizeName(name)
	if name == "" {
		return "", fmt.Errorf("%w: name", ErrEmptyField)
	}
	if len(name) > MaxGameNameBytes {
		return "", ErrNameTooLong
	}
	return name, nil
}

// ValidateNewGame normalizes req and checks the fields required to open a
// game. The passcode is kept verbatim since it is matched exactly.
func ValidateNewGame(req NewGame) (NewGame, error) {
	req.Name = NormalizeName(req.Name)
	req.AdminUsername = NormalizeUsername(req.AdminUsername)
	if strings.TrimSpace(req.Passcode) == "" {
		req.Passcode = ""
	}
	if err := structValidator().Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
			return req, err
		}
		first := fieldErrs[0]
		if first.Tag() == "gte" {
			return req, ErrInvalidCapacity
		}
		return req, fmt.Errorf("%w: %s", ErrEmptyField, strings.ToLower(first.Field()))
	}
	if len(req.Name) > MaxGameNameBytes {
		return req, ErrNameTooLong
	}
	if len(req.Passcode) > MaxPasscodeBytes {
		return req, ErrPasscodeTooLong
	}
	return req, nil
}

func HashPasscode(passcode string, cost int) ([]byte, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(passcode), cost)
	if err != nil {
		return nil, fmt.Errorf("hash passcode: %w", err)
	}
	return hash, nil
}

func CheckPasscode(hash []byte, candidate string) bool {
	if len(hash) == 0 || candidate == "" || len(candidate) > MaxPasscodeBytes {
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(candidate)) == nil
}

// CheckJoin reports why username cannot join r, if anything.
func CheckJoin(r Roster, username string) error {
	if username == "" {
		return fmt.Errorf("%w: username", ErrEmptyField)
	}
	if !r.Game.Active {
		return ErrInactiveGame
	}
	if r.HasParticipant(username) {
		return ErrAlreadyJoined
	}
	if len(r.Participants) >= r.Game.Capacity {
		return ErrFull
	}
	return nil
}

// CheckExclusion validates a new exclusion against r and returns it
// normalized.
func CheckExclusion(r Roster, a, b string) (Exclusion, error) {
	a, b = NormalizeUsername(a), NormalizeUsername(b)
	if a == "" || b == "" {
		return Exclusion{}, fmt.Errorf("%w: username", ErrEmptyField)
	}
	if !r.Game.Active {
		return Exclusion{}, ErrInactiveGame
	}
	if a == b {
		return Exclusion{}, ErrSelfPair
	}
	for _, name := range []string{a, b} {
		if !r.HasParticipant(name) {
			return Exclusion{}, fmt.Errorf("%w: %s", ErrNotParticipant, name)
		}
	}
	if r.HasExclusion(a, b) {
		return Exclusion{}, ErrDuplicateExclusion
	}
	return NewExclusion(a, b), nil
}

func CheckRemoval(r Roster, username string) error {
	if !r.Game.Active {
		return ErrInactiveGame
	}
	if r.Game.IsAdmin(username) {
		return ErrCannotRemoveAdmin
	}
	if !r.HasParticipant(username) {
		return fmt.Errorf("%w: %s", ErrNotParticipant, username)
	}
	return nil
}
