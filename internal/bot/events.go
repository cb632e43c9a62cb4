package bot

// Sender identifies who produced an inbound event and where replies go.
type Sender struct {
	UserID   int64
	Username string
	ChatID   int64
	Locale   string
}

func (s Sender) From() Sender {
	return s
}

// Event is an inbound TextEvent or ActionEvent.
type Event interface {
	From() Sender
}

type TextEvent struct {
	Sender
	Text string
}

// ActionEvent is a button press. MessageID is the message that carried the
// button, so the reply can replace it.
type ActionEvent struct {
	Sender
	MessageID int
	ActionID  string
}
