package i18n

// Message keys. Arguments are listed next to keys that take any.
const (
	Welcome          = "welcome"
	Help             = "help"
	NeedUsername     = "need_username"
	ButtonCreateGame = "button.create_game"
	ButtonJoinGame   = "button.join_game"
	ButtonRollout    = "button.rollout"
	ButtonExclusions = "button.exclusions"

	EnterGameName     = "create.enter_name"
	EnterPasscode     = "create.enter_passcode"
	EnterCapacity     = "create.enter_capacity"
	InvalidCapacity   = "create.invalid_capacity"
	EnterExceptions   = "create.enter_exceptions"  // game
	ExceptionAdded    = "create.exception_added"   // user1, user2
	ExceptionRemoved  = "create.exception_removed" // user1, user2
	InvalidException  = "create.invalid_exception"
	GameCreated       = "create.game_created" // game
	NothingToFinalize = "create.nothing_to_finalize"

	NoGames           = "join.no_games"
	SelectGame        = "join.select_game"
	JoinEnterPasscode = "join.enter_passcode" // game
	WrongPasscode     = "join.wrong_passcode"
	TooManyAttempts   = "join.too_many_attempts"
	JoinedGame        = "join.joined" // game

	AdminNewPlayer = "admin.new_player" // game, player, count, capacity
	AdminGameFull  = "admin.game_full"  // game

	NoFullGames     = "rollout.no_full_games"
	SelectRollout   = "rollout.select"
	RolloutSuccess  = "rollout.success"    // game
	RolloutFailed   = "rollout.failed"     // game, reason
	SantaAssignment = "rollout.assignment" // game, receiver

	MyGamesHeader = "mygames.header"
	MyGamesEmpty  = "mygames.empty"
	MyGamesLine   = "mygames.line" // game, count, capacity, status
	StatusOpen    = "status.open"
	StatusFull    = "status.full"
	StatusClosed  = "status.closed"

	ExcludeUsage = "exclude.usage"
	KickUsage    = "kick.usage"
	Kicked       = "kick.done"   // player, game
	KickedNotice = "kick.notice" // game

	Cancelled       = "cancelled"
	NothingToCancel = "nothing_to_cancel"
	UnknownInput    = "unknown_input"
	Retry           = "retry"
)

// ErrorKey returns the key describing a roster error code.
func ErrorKey(code string) string {
	return "error." + code
}
