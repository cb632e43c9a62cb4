package roster

import "errors"

// Kind classifies roster errors so callers can decide how to answer the user.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindDuplicate
	KindState
	KindNotFound
	KindUnsatisfiable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindDuplicate:
		return "duplicate"
	case KindState:
		return "state"
	case KindNotFound:
		return "not_found"
	case KindUnsatisfiable:
		return "unsatisfiable"
	default:
		return "internal"
	}
}

// Error is a classified roster failure. Sentinels are compared by identity,
// so wrap them with fmt.Errorf("...: %w", ErrX) to add context.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrEmptyField         = &Error{Kind: KindValidation, Code: "empty_field", Message: "required field is blank"}
	ErrInvalidCapacity    = &Error{Kind: KindValidation, Code: "invalid_capacity", Message: "capacity must be at least 2"}
	ErrNameTooLong        = &Error{Kind: KindValidation, Code: "name_too_long", Message: "game name is too long"}
	ErrPasscodeTooLong    = &Error{Kind: KindValidation, Code: "passcode_too_long", Message: "passcode is too long"}
	ErrSelfPair           = &Error{Kind: KindValidation, Code: "self_pair", Message: "a player cannot be excluded from themselves"}
	ErrNotParticipant     = &Error{Kind: KindValidation, Code: "not_participant", Message: "player is not in this game"}
	ErrDuplicateName      = &Error{Kind: KindDuplicate, Code: "duplicate_name", Message: "game name already taken"}
	ErrAlreadyJoined      = &Error{Kind: KindDuplicate, Code: "already_joined", Message: "player already joined this game"}
	ErrDuplicateExclusion = &Error{Kind: KindDuplicate, Code: "duplicate_exclusion", Message: "exclusion already exists"}
	ErrFull               = &Error{Kind: KindState, Code: "full", Message: "game is full"}
	ErrNotFull            = &Error{Kind: KindState, Code: "not_full", Message: "game is not full yet"}
	ErrInactiveGame       = &Error{Kind: KindState, Code: "inactive_game", Message: "game is closed"}
	ErrCannotRemoveAdmin  = &Error{Kind: KindState, Code: "cannot_remove_admin", Message: "admin cannot leave the game"}
	ErrNotAdmin           = &Error{Kind: KindState, Code: "not_admin", Message: "only the game admin can do this"}
	ErrGameNotFound       = &Error{Kind: KindNotFound, Code: "game_not_found", Message: "game not found"}
	ErrExclusionNotFound  = &Error{Kind: KindNotFound, Code: "exclusion_not_found", Message: "exclusion not found"}
	ErrUnsatisfiable      = &Error{Kind: KindUnsatisfiable, Code: "unsatisfiable", Message: "could not find a valid assignment"}
	ErrInvalidAssignment  = &Error{Kind: KindInternal, Code: "invalid_assignment", Message: "generated assignment is invalid"}
)

// KindOf returns the kind of the first roster error in err's chain,
// or KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the machine-readable code of err, or "" when err is not a
// roster error.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
