package bot

import (
	"strings"
)

type CommandKind int

const (
	CmdText CommandKind = iota
	CmdStart
	CmdHelp
	CmdCancel
	CmdDone
	CmdRollout
	CmdMyGames
	CmdExclude
	CmdKick
	ActCreateGame
	ActBrowseGames
	ActJoinGame
	ActRolloutGame
	ActExcludeGame
	ActUnknown
)

var commandNames = map[CommandKind]string{
	CmdText:        "text",
	CmdStart:       "/start",
	CmdHelp:        "/help",
	CmdCancel:      "/cancel",
	CmdDone:        "/done",
	CmdRollout:     "/rollout",
	CmdMyGames:     "/mygames",
	CmdExclude:     "/exclude",
	CmdKick:        "/kick",
	ActCreateGame:  "action:create",
	ActBrowseGames: "action:browse",
	ActJoinGame:    "action:join",
	ActRolloutGame: "action:rollout",
	ActExcludeGame: "action:exclude",
	ActUnknown:     "action:unknown",
}

func (k CommandKind) String() string {
	if name, ok := commandNames[k]; ok {
		return name
	}
	return "unknown"
}

// Action verbs. An action id is the verb alone or "verb:game".
const (
	VerbCreate  = "create"
	VerbBrowse  = "browse"
	VerbJoin    = "join"
	VerbRollout = "rollout"
	VerbExclude = "exclude"
)

var actionKinds = map[string]CommandKind{
	VerbCreate:  ActCreateGame,
	VerbBrowse:  ActBrowseGames,
	VerbJoin:    ActJoinGame,
	VerbRollout: ActRolloutGame,
	VerbExclude: ActExcludeGame,
}

var slashCommands = map[string]CommandKind{
	"start":   CmdStart,
	"help":    CmdHelp,
	"cancel":  CmdCancel,
	"done":    CmdDone,
	"rollout": CmdRollout,
	"mygames": CmdMyGames,
	"exclude": CmdExclude,
	"kick":    CmdKick,
}

// ActionID encodes a button payload. Game names may contain ':' since
// decoding splits on the first one only.
func ActionID(verb, game string) string {
	if game == "" {
		return verb
	}
	return verb + ":" + game
}

// Command is an inbound event decoded into the closed command set.
type Command struct {
	Kind   CommandKind
	Sender Sender
	// Text is the raw message text for CmdText.
	Text string
	// Args holds the words after a slash command.
	Args []string
	// Game is the game an action refers to.
	Game      string
	MessageID int
}

// Decode turns an inbound event into a Command. Unknown slash commands are
// plain text, since passcodes may start with '/'.
func Decode(ev Event) Command {
	switch ev := ev.(type) {
	case TextEvent:
		return decodeText(ev)
	case ActionEvent:
		kind, game := parseAction(ev.ActionID)
		return Command{Kind: kind, Sender: ev.Sender, Game: game, MessageID: ev.MessageID}
	default:
		return Command{Kind: CmdText, Sender: ev.From()}
	}
}

func decodeText(ev TextEvent) Command {
	cmd := Command{Kind: CmdText, Sender: ev.Sender, Text: ev.Text}
	trimmed := strings.TrimSpace(ev.Text)
	if !strings.HasPrefix(trimmed, "/") {
		return cmd
	}
	head, rest, _ := strings.Cut(trimmed[1:], " ")
	name, _, _ := strings.Cut(head, "@")
	kind, ok := slashCommands[strings.ToLower(name)]
	if !ok {
		return cmd
	}
	cmd.Kind = kind
	cmd.Args = strings.Fields(rest)
	return cmd
}

func parseAction(id string) (CommandKind, string) {
	verb, game, _ := strings.Cut(id, ":")
	kind, ok := actionKinds[verb]
	if !ok {
		return ActUnknown, ""
	}
	switch kind {
	case ActJoinGame, ActRolloutGame, ActExcludeGame:
		if strings.TrimSpace(game) == "" {
			return ActUnknown, ""
		}
	}
	return kind, game
}

// kickArgs splits "/kick <game> <username>"; the game name may contain
// spaces, the username is the last word.
func kickArgs(args []string) (game, username string, ok bool) {
	if len(args) < 2 {
		return "", "", false
	}
	return strings.Join(args[:len(args)-1], " "), args[len(args)-1], true
}
