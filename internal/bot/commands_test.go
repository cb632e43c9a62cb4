package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeText(t *testing.T) {
	from := Sender{UserID: 1, Username: "ada", ChatID: 10}

	tests := []struct {
		text string
		kind CommandKind
		args []string
	}{
		{text: "/start", kind: CmdStart},
		{text: "  /HELP  ", kind: CmdHelp},
		{text: "/done@SecretSantaBot", kind: CmdDone},
		{text: "/rollout", kind: CmdRollout},
		{text: "/mygames", kind: CmdMyGames},
		{text: "/cancel", kind: CmdCancel},
		{text: "/exclude Office Party", kind: CmdExclude, args: []string{"Office", "Party"}},
		{text: "/kick Office @bob", kind: CmdKick, args: []string{"Office", "@bob"}},
		{text: "/s3cret", kind: CmdText},
		{text: "ada,bob", kind: CmdText},
		{text: "", kind: CmdText},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			cmd := Decode(TextEvent{Sender: from, Text: tt.text})
			assert.Equal(t, tt.kind, cmd.Kind)
			assert.Equal(t, from, cmd.Sender)
			assert.Equal(t, tt.text, cmd.Text)
			if tt.args != nil {
				assert.Equal(t, tt.args, cmd.Args)
			}
		})
	}
}

func TestDecodeAction(t *testing.T) {
	from := Sender{UserID: 1, Username: "ada", ChatID: 10}

	tests := []struct {
		id   string
		kind CommandKind
		game string
	}{
		{id: VerbCreate, kind: ActCreateGame},
		{id: VerbBrowse, kind: ActBrowseGames},
		{id: ActionID(VerbJoin, "Office"), kind: ActJoinGame, game: "Office"},
		{id: ActionID(VerbRollout, "join_me"), kind: ActRolloutGame, game: "join_me"},
		{id: ActionID(VerbExclude, "a:b"), kind: ActExcludeGame, game: "a:b"},
		{id: "join:", kind: ActUnknown},
		{id: "join_Office", kind: ActUnknown},
		{id: "", kind: ActUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			cmd := Decode(ActionEvent{Sender: from, MessageID: 7, ActionID: tt.id})
			assert.Equal(t, tt.kind, cmd.Kind)
			assert.Equal(t, tt.game, cmd.Game)
			assert.Equal(t, 7, cmd.MessageID)
		})
	}
}

func TestKickArgs(t *testing.T) {
	game, user, ok := kickArgs([]string{"Office", "Party", "bob"})
	assert.True(t, ok)
	assert.Equal(t, "Office Party", game)
	assert.Equal(t, "bob", user)

	_, _, ok = kickArgs([]string{"bob"})
	assert.False(t, ok)
}

func TestCommandKindString(t *testing.T) {
	assert.Equal(t, "/done", CmdDone.String())
	assert.Equal(t, "action:join", ActJoinGame.String())
	assert.Equal(t, "unknown", CommandKind(99).String())
}
