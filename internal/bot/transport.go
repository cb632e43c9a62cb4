package bot

import "context"

// Action is a button. ID comes back in the ActionEvent when pressed.
type Action struct {
	Label string
	ID    string
}

// Message is outbound text with optional rows of buttons.
type Message struct {
	Text    string
	Actions [][]Action
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

type Transport interface {
	Send(ctx context.Context, chatID int64, msg Message) (MessageRef, error)
	Edit(ctx context.Context, ref MessageRef, msg Message) error
}
