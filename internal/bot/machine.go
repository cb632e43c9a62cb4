package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/text/message"

	"github.com/Ovsov/tecret-anta/internal/assign"
	"github.com/Ovsov/tecret-anta/internal/i18n"
	"github.com/Ovsov/tecret-anta/internal/roster"
)

const defaultBrowseLimit = 20

type MachineConfig struct {
	Store     roster.Store
	Generator roster.Generator
	Sessions  SessionStore
	Guard     *JoinGuard
	Transport Transport
	Catalog   *i18n.Catalog
	// Locale is used for users whose client language has no catalog and
	// for notifications sent to other users.
	Locale      string
	Logger      *slog.Logger
	BrowseLimit int
}

// Machine runs the per-user dialogs. Each event is decoded into a Command
// and dispatched on (session state, command kind).
type Machine struct {
	store       roster.Store
	generator   roster.Generator
	sessions    SessionStore
	guard       *JoinGuard
	transport   Transport
	catalog     *i18n.Catalog
	locale      string
	printer     *message.Printer
	log         *slog.Logger
	browseLimit int
}

func NewMachine(cfg MachineConfig) *Machine {
	m := &Machine{
		store:       cfg.Store,
		generator:   cfg.Generator,
		sessions:    cfg.Sessions,
		guard:       cfg.Guard,
		transport:   cfg.Transport,
		catalog:     cfg.Catalog,
		locale:      cfg.Locale,
		log:         cfg.Logger,
		browseLimit: cfg.BrowseLimit,
	}
	if m.generator == nil {
		m.generator = assign.New()
	}
	if m.sessions == nil {
		m.sessions = NewMemorySessionStore()
	}
	if m.guard == nil {
		m.guard = NewJoinGuard(DefaultJoinAttempts)
	}
	if m.catalog == nil {
		m.catalog = i18n.MustLoad()
	}
	if m.locale == "" {
		m.locale = i18n.BaseLocale
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	if m.browseLimit <= 0 {
		m.browseLimit = defaultBrowseLimit
	}
	m.printer = m.catalog.Printer(m.locale)
	return m
}

type turn struct {
	cmd     Command
	session Session
	p       *message.Printer
	replied bool
}

type handler func(m *Machine, ctx context.Context, t *turn) error

type transitionKey struct {
	state State
	kind  CommandKind
}

var transitions = map[transitionKey]handler{
	{StateIdle, CmdDone}:               (*Machine).nothingToFinalize,
	{StateAwaitingGameName, CmdText}:   (*Machine).onGameName,
	{StateAwaitingPasscode, CmdText}:   (*Machine).onCreationPasscode,
	{StateAwaitingCapacity, CmdText}:   (*Machine).onCapacity,
	{StateAwaitingExceptions, CmdText}: (*Machine).onExclusion,
	{StateAwaitingExceptions, CmdDone}: (*Machine).onDone,
	{StateJoiningGame, CmdText}:        (*Machine).onJoinPasscode,
}

// anyState handles commands and buttons that mean the same in every state.
// Buttons that open a dialog replace the current one.
var anyState = map[CommandKind]handler{
	CmdStart:       (*Machine).onStart,
	CmdHelp:        (*Machine).onHelp,
	CmdCancel:      (*Machine).onCancel,
	CmdRollout:     (*Machine).onRolloutList,
	CmdMyGames:     (*Machine).onMyGames,
	CmdExclude:     (*Machine).onExcludeCommand,
	CmdKick:        (*Machine).onKick,
	ActCreateGame:  (*Machine).onCreate,
	ActBrowseGames: (*Machine).onBrowse,
	ActJoinGame:    (*Machine).onJoin,
	ActRolloutGame: (*Machine).onRollout,
	ActExcludeGame: (*Machine).onExcludeAction,
	ActUnknown:     (*Machine).onUnknownAction,
}

// Handle applies one event. Roster errors the user can act on are answered
// here; anything else is returned and the session is left as it was.
func (m *Machine) Handle(ctx context.Context, ev Event) error {
	cmd := Decode(ev)
	userID := cmd.Sender.UserID
	session, err := m.sessions.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	h, ok := transitions[transitionKey{session.State, cmd.Kind}]
	if !ok {
		h, ok = anyState[cmd.Kind]
	}
	if !ok {
		h = (*Machine).reprompt
	}
	m.log.Debug("handle command",
		"user_id", userID,
		"state", session.State.String(),
		"command", cmd.Kind.String())

	t := &turn{cmd: cmd, session: session, p: m.catalog.PrinterFor(cmd.Sender.Locale, m.locale)}
	if err := h(m, ctx, t); err != nil {
		return err
	}
	if t.session != session {
		if err := m.sessions.Put(ctx, userID, t.session); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
	}
	return nil
}

func (m *Machine) onStart(ctx context.Context, t *turn) error {
	if t.cmd.Sender.Username == "" {
		m.say(ctx, t, i18n.NeedUsername)
		return nil
	}
	m.reply(ctx, t, Message{
		Text: t.p.Sprintf(i18n.Welcome),
		Actions: [][]Action{
			{{Label: t.p.Sprintf(i18n.ButtonCreateGame), ID: ActionID(VerbCreate, "")}},
			{{Label: t.p.Sprintf(i18n.ButtonJoinGame), ID: ActionID(VerbBrowse, "")}},
		},
	})
	return nil
}

func (m *Machine) onHelp(ctx context.Context, t *turn) error {
	m.say(ctx, t, i18n.Help)
	return nil
}

func (m *Machine) onCancel(ctx context.Context, t *turn) error {
	if t.session.Idle() {
		m.say(ctx, t, i18n.NothingToCancel)
		return nil
	}
	t.session = Session{}
	m.say(ctx, t, i18n.Cancelled)
	return nil
}

func (m *Machine) nothingToFinalize(ctx context.Context, t *turn) error {
	m.say(ctx, t, i18n.NothingToFinalize)
	return nil
}

func (m *Machine) onCreate(ctx context.Context, t *turn) error {
	if t.cmd.Sender.Username == "" {
		m.say(ctx, t, i18n.NeedUsername)
		return nil
	}
	t.session = Session{State: StateAwaitingGameName}
	m.say(ctx, t, i18n.EnterGameName)
	return nil
}

func (m *Machine) onGameName(ctx context.Context, t *turn) error {
	name, err := roster.ValidateGameName(t.cmd.Text)
	if err != nil {
		return m.rejectInput(ctx, t, err)
	}
	_, err = m.store.Game(ctx, name)
	switch {
	case err == nil:
		return m.rejectInput(ctx, t, roster.ErrDuplicateName)
	case !errors.Is(err, roster.ErrGameNotFound):
		return err
	}
	t.session = Session{State: StateAwaitingPasscode, GameName: name}
	m.say(ctx, t, i18n.EnterPasscode)
	return nil
}

func (m *Machine) onCreationPasscode(ctx context.Context, t *turn) error {
	passcode := t.cmd.Text
	if strings.TrimSpace(passcode) == "" {
		return m.rejectInput(ctx, t, roster.ErrEmptyField)
	}
	if len(passcode) > roster.MaxPasscodeBytes {
		return m.rejectInput(ctx, t, roster.ErrPasscodeTooLong)
	}
	t.session.State = StateAwaitingCapacity
	t.session.Passcode = passcode
	m.say(ctx, t, i18n.EnterCapacity)
	return nil
}

func (m *Machine) onCapacity(ctx context.Context, t *turn) error {
	capacity, err := strconv.Atoi(strings.TrimSpace(t.cmd.Text))
	if err != nil {
		m.say(ctx, t, i18n.InvalidCapacity)
		return nil
	}
	sender := t.cmd.Sender
	game, err := m.store.CreateGame(ctx, roster.NewGame{
		Name:          t.session.GameName,
		Capacity:      capacity,
		AdminUsername: sender.Username,
		AdminChatID:   sender.ChatID,
		Passcode:      t.session.Passcode,
	})
	switch {
	case errors.Is(err, roster.ErrDuplicateName):
		// Taken since the name was checked; ask for another.
		t.session = Session{State: StateAwaitingGameName}
		return m.rejectInput(ctx, t, err)
	case err != nil:
		return m.rejectInput(ctx, t, err)
	}
	m.log.Info("game created",
		"game", game.Name,
		"admin", game.AdminUsername,
		"capacity", game.Capacity)
	t.session = Session{State: StateAwaitingExceptions, GameName: game.Name}
	m.say(ctx, t, i18n.EnterExceptions, game.Name)
	return nil
}

func (m *Machine) onExclusion(ctx context.Context, t *turn) error {
	text := strings.TrimSpace(t.cmd.Text)
	remove := strings.HasPrefix(text, "-")
	text = strings.TrimPrefix(text, "-")
	first, second, ok := strings.Cut(text, ",")
	a, b := roster.NormalizeUsername(first), roster.NormalizeUsername(second)
	if !ok || a == "" || b == "" || strings.Contains(second, ",") {
		m.say(ctx, t, i18n.InvalidException)
		return nil
	}

	game := t.session.GameName
	if remove {
		if err := m.store.RemoveExclusion(ctx, game, a, b); err != nil {
			return m.exclusionFailed(ctx, t, err)
		}
		m.say(ctx, t, i18n.ExceptionRemoved, a, b)
		return nil
	}
	if _, err := m.store.AddExclusion(ctx, game, a, b); err != nil {
		return m.exclusionFailed(ctx, t, err)
	}
	m.say(ctx, t, i18n.ExceptionAdded, a, b)
	return nil
}

// exclusionFailed ends the dialog when the game itself went away or was
// drawn; other failures leave it open for the next pair.
func (m *Machine) exclusionFailed(ctx context.Context, t *turn, err error) error {
	if errors.Is(err, roster.ErrGameNotFound) || errors.Is(err, roster.ErrInactiveGame) {
		t.session = Session{}
	}
	return m.replyError(ctx, t, err)
}

func (m *Machine) onDone(ctx context.Context, t *turn) error {
	name := t.session.GameName
	t.session = Session{}
	m.say(ctx, t, i18n.GameCreated, name)
	return nil
}

func (m *Machine) onBrowse(ctx context.Context, t *turn) error {
	var rows [][]Action
	for game, err := range m.store.ListAvailableGames(ctx) {
		if err != nil {
			return fmt.Errorf("list available games: %w", err)
		}
		rows = append(rows, []Action{{
			Label: fmt.Sprintf("%s (%d/%d)", game.Name, game.PlayerCount, game.Capacity),
			ID:    ActionID(VerbJoin, game.Name),
		}})
		if len(rows) == m.browseLimit {
			break
		}
	}
	if len(rows) == 0 {
		m.say(ctx, t, i18n.NoGames)
		return nil
	}
	m.reply(ctx, t, Message{Text: t.p.Sprintf(i18n.SelectGame), Actions: rows})
	return nil
}

func (m *Machine) onJoin(ctx context.Context, t *turn) error {
	if t.cmd.Sender.Username == "" {
		m.say(ctx, t, i18n.NeedUsername)
		return nil
	}
	game, err := m.store.Game(ctx, t.cmd.Game)
	if err != nil {
		return m.replyError(ctx, t, err)
	}
	switch {
	case !game.Active:
		return m.replyError(ctx, t, roster.ErrInactiveGame)
	case game.Full():
		return m.replyError(ctx, t, roster.ErrFull)
	}
	t.session = Session{State: StateJoiningGame, GameName: game.Name}
	m.say(ctx, t, i18n.JoinEnterPasscode, game.Name)
	return nil
}

func (m *Machine) onJoinPasscode(ctx context.Context, t *turn) error {
	sender := t.cmd.Sender
	name := t.session.GameName
	ok, err := m.store.VerifyPasscode(ctx, name, t.cmd.Text)
	if err != nil {
		if roster.KindOf(err) != roster.KindInternal {
			t.session = Session{}
		}
		return m.replyError(ctx, t, err)
	}
	if !ok {
		if m.guard.Fail(sender.UserID) {
			m.log.Info("join locked out", "user_id", sender.UserID, "game", name)
			t.session = Session{}
			m.say(ctx, t, i18n.TooManyAttempts)
			return nil
		}
		m.say(ctx, t, i18n.WrongPasscode)
		return nil
	}

	m.guard.Reset(sender.UserID)
	t.session = Session{}
	game, err := m.store.AddParticipant(ctx, name, sender.Username, sender.ChatID)
	if err != nil {
		return m.replyError(ctx, t, err)
	}
	m.log.Info("player joined",
		"game", game.Name,
		"player", sender.Username,
		"players", game.PlayerCount,
		"capacity", game.Capacity)
	m.say(ctx, t, i18n.JoinedGame, game.Name)
	m.notifyAdmin(ctx, game, sender.Username)
	return nil
}

func (m *Machine) notifyAdmin(ctx context.Context, game roster.Game, username string) {
	if game.AdminChatID == 0 || game.IsAdmin(username) {
		return
	}
	p := m.printer
	m.notify(ctx, game.AdminChatID, Message{
		Text: p.Sprintf(i18n.AdminNewPlayer, game.Name, username, game.PlayerCount, game.Capacity),
	})
	if !game.Full() {
		return
	}
	m.notify(ctx, game.AdminChatID, Message{
		Text: p.Sprintf(i18n.AdminGameFull, game.Name),
		Actions: [][]Action{
			{{Label: p.Sprintf(i18n.ButtonRollout), ID: ActionID(VerbRollout, game.Name)}},
			{{Label: p.Sprintf(i18n.ButtonExclusions), ID: ActionID(VerbExclude, game.Name)}},
		},
	})
}

func (m *Machine) onRollout(ctx context.Context, t *turn) error {
	name := roster.NormalizeName(t.cmd.Game)
	admin := t.cmd.Sender.Username
	assignments, err := m.store.Rollout(ctx, name, admin, m.generator)
	if err != nil {
		kind := roster.KindOf(err)
		if kind == roster.KindInternal || kind == roster.KindNotFound || errors.Is(err, roster.ErrNotAdmin) {
			return m.replyError(ctx, t, err)
		}
		m.log.Info("rollout refused", "game", name, "admin", admin, "error", err)
		m.say(ctx, t, i18n.RolloutFailed, name, t.p.Sprintf(i18n.ErrorKey(roster.CodeOf(err))))
		return nil
	}

	m.log.Info("game rolled out", "game", name, "players", len(assignments))
	for _, a := range assignments {
		m.notify(ctx, a.Giver.ChatID, Message{Text: m.printer.Sprintf(i18n.SantaAssignment, name, a.Receiver)})
	}
	m.say(ctx, t, i18n.RolloutSuccess, name)
	return nil
}

func (m *Machine) onRolloutList(ctx context.Context, t *turn) error {
	username := t.cmd.Sender.Username
	if username == "" {
		m.say(ctx, t, i18n.NeedUsername)
		return nil
	}
	games, err := m.store.GamesByAdmin(ctx, username)
	if err != nil {
		return err
	}
	var rows [][]Action
	for _, game := range games {
		if game.Active && game.Full() {
			rows = append(rows, []Action{{Label: game.Name, ID: ActionID(VerbRollout, game.Name)}})
		}
	}
	if len(rows) == 0 {
		m.say(ctx, t, i18n.NoFullGames)
		return nil
	}
	m.reply(ctx, t, Message{Text: t.p.Sprintf(i18n.SelectRollout), Actions: rows})
	return nil
}

func (m *Machine) onMyGames(ctx context.Context, t *turn) error {
	games, err := m.store.GamesByAdmin(ctx, t.cmd.Sender.Username)
	if err != nil {
		return err
	}
	if t.cmd.Sender.Username == "" || len(games) == 0 {
		m.say(ctx, t, i18n.MyGamesEmpty)
		return nil
	}
	var b strings.Builder
	b.WriteString(t.p.Sprintf(i18n.MyGamesHeader))
	for _, game := range games {
		status := i18n.StatusOpen
		switch {
		case !game.Active:
			status = i18n.StatusClosed
		case game.Full():
			status = i18n.StatusFull
		}
		b.WriteString("\n")
		b.WriteString(t.p.Sprintf(i18n.MyGamesLine, game.Name, game.PlayerCount, game.Capacity, t.p.Sprintf(status)))
	}
	m.reply(ctx, t, Message{Text: b.String()})
	return nil
}

func (m *Machine) onExcludeCommand(ctx context.Context, t *turn) error {
	if len(t.cmd.Args) == 0 {
		m.say(ctx, t, i18n.ExcludeUsage)
		return nil
	}
	return m.enterExclusions(ctx, t, strings.Join(t.cmd.Args, " "))
}

func (m *Machine) onExcludeAction(ctx context.Context, t *turn) error {
	return m.enterExclusions(ctx, t, t.cmd.Game)
}

func (m *Machine) enterExclusions(ctx context.Context, t *turn, name string) error {
	game, err := m.store.Game(ctx, name)
	if err != nil {
		return m.replyError(ctx, t, err)
	}
	switch {
	case !game.IsAdmin(t.cmd.Sender.Username):
		return m.replyError(ctx, t, roster.ErrNotAdmin)
	case !game.Active:
		return m.replyError(ctx, t, roster.ErrInactiveGame)
	}
	t.session = Session{State: StateAwaitingExceptions, GameName: game.Name}
	m.say(ctx, t, i18n.EnterExceptions, game.Name)
	return nil
}

func (m *Machine) onKick(ctx context.Context, t *turn) error {
	name, username, ok := kickArgs(t.cmd.Args)
	if !ok {
		m.say(ctx, t, i18n.KickUsage)
		return nil
	}
	username = roster.NormalizeUsername(username)
	r, err := m.store.Roster(ctx, name)
	if err != nil {
		return m.replyError(ctx, t, err)
	}
	if !r.Game.IsAdmin(t.cmd.Sender.Username) {
		return m.replyError(ctx, t, roster.ErrNotAdmin)
	}
	var kicked roster.Player
	for _, p := range r.Participants {
		if p.Player.Username == username {
			kicked = p.Player
		}
	}
	game, err := m.store.RemoveParticipant(ctx, name, username)
	if err != nil {
		return m.replyError(ctx, t, err)
	}
	m.log.Info("player removed", "game", game.Name, "player", username)
	m.say(ctx, t, i18n.Kicked, username, game.Name)
	m.notify(ctx, kicked.ChatID, Message{Text: m.printer.Sprintf(i18n.KickedNotice, game.Name)})
	return nil
}

func (m *Machine) onUnknownAction(ctx context.Context, t *turn) error {
	m.log.Debug("unknown action", "user_id", t.cmd.Sender.UserID)
	m.say(ctx, t, i18n.UnknownInput)
	return nil
}

// reprompt answers input the current state has no transition for.
func (m *Machine) reprompt(ctx context.Context, t *turn) error {
	m.reply(ctx, t, Message{Text: m.prompt(t)})
	return nil
}

func (m *Machine) prompt(t *turn) string {
	switch t.session.State {
	case StateAwaitingGameName:
		return t.p.Sprintf(i18n.EnterGameName)
	case StateAwaitingPasscode:
		return t.p.Sprintf(i18n.EnterPasscode)
	case StateAwaitingCapacity:
		return t.p.Sprintf(i18n.EnterCapacity)
	case StateAwaitingExceptions:
		return t.p.Sprintf(i18n.EnterExceptions, t.session.GameName)
	case StateJoiningGame:
		return t.p.Sprintf(i18n.JoinEnterPasscode, t.session.GameName)
	default:
		return t.p.Sprintf(i18n.UnknownInput)
	}
}

// rejectInput explains a validation failure and repeats the prompt of the
// session's state.
func (m *Machine) rejectInput(ctx context.Context, t *turn, err error) error {
	if roster.KindOf(err) == roster.KindInternal {
		return err
	}
	text := t.p.Sprintf(i18n.ErrorKey(roster.CodeOf(err))) + "\n" + m.prompt(t)
	m.reply(ctx, t, Message{Text: text})
	return nil
}

// replyError tells the user about a classified roster error. Unclassified
// errors go back to the caller.
func (m *Machine) replyError(ctx context.Context, t *turn, err error) error {
	if roster.KindOf(err) == roster.KindInternal {
		return err
	}
	m.say(ctx, t, i18n.ErrorKey(roster.CodeOf(err)))
	return nil
}

func (m *Machine) say(ctx context.Context, t *turn, key string, args ...any) {
	m.reply(ctx, t, Message{Text: t.p.Sprintf(key, args...)})
}

// reply answers the sender. The first reply to a button press replaces the
// message that carried the button.
func (m *Machine) reply(ctx context.Context, t *turn, msg Message) {
	chatID := t.cmd.Sender.ChatID
	if t.cmd.MessageID != 0 && !t.replied {
		t.replied = true
		ref := MessageRef{ChatID: chatID, MessageID: t.cmd.MessageID}
		err := m.transport.Edit(ctx, ref, msg)
		if err == nil {
			return
		}
		m.log.Warn("edit message failed", "chat_id", chatID, "message_id", t.cmd.MessageID, "error", err)
	}
	t.replied = true
	if _, err := m.transport.Send(ctx, chatID, msg); err != nil {
		m.log.Warn("send message failed", "chat_id", chatID, "error", err)
	}
}

// notify messages another user. Delivery is best effort.
func (m *Machine) notify(ctx context.Context, chatID int64, msg Message) {
	if chatID == 0 {
		return
	}
	if _, err := m.transport.Send(ctx, chatID, msg); err != nil {
		m.log.Warn("notify failed", "chat_id", chatID, "error", err)
	}
}
