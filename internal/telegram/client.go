// Package telegram adapts the Telegram Bot API to bot.Transport and turns
// updates into bot events.
package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Ovsov/tecret-anta/internal/bot"
)

// API is the part of *tgbotapi.BotAPI the client uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Client struct {
	api         API
	pollTimeout int
	log         *slog.Logger
}

// Dial authenticates with token and returns a long-polling client.
func Dial(token string, debug bool, pollTimeout int, logger *slog.Logger) (*Client, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	api.Debug = debug
	logger.Info("telegram authorized", "bot", api.Self.UserName)
	return NewClient(api, pollTimeout, logger), nil
}

func NewClient(api API, pollTimeout int, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{api: api, pollTimeout: pollTimeout, log: logger}
}

var _ bot.Transport = (*Client)(nil)

func (c *Client) Send(ctx context.Context, chatID int64, msg bot.Message) (bot.MessageRef, error) {
	out := tgbotapi.NewMessage(chatID, msg.Text)
	if len(msg.Actions) > 0 {
		out.ReplyMarkup = keyboard(msg.Actions)
	}
	sent, err := c.api.Send(out)
	if err != nil {
		return bot.MessageRef{}, fmt.Errorf("send message: %w", err)
	}
	return bot.MessageRef{ChatID: chatID, MessageID: sent.MessageID}, nil
}

func (c *Client) Edit(ctx context.Context, ref bot.MessageRef, msg bot.Message) error {
	var edit tgbotapi.EditMessageTextConfig
	if len(msg.Actions) > 0 {
		edit = tgbotapi.NewEditMessageTextAndMarkup(ref.ChatID, ref.MessageID, msg.Text, keyboard(msg.Actions))
	} else {
		edit = tgbotapi.NewEditMessageText(ref.ChatID, ref.MessageID, msg.Text)
	}
	if _, err := c.api.Request(edit); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

// Events long-polls for updates until ctx is done. The channel closes
// after polling stops.
func (c *Client) Events(ctx context.Context) <-chan bot.Event {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = c.pollTimeout
	updates := c.api.GetUpdatesChan(cfg)

	events := make(chan bot.Event)
	go func() {
		defer close(events)
		for {
			select {
			case <-ctx.Done():
				c.api.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				ev, ok := toEvent(update)
				if !ok {
					continue
				}
				if update.CallbackQuery != nil {
					c.answer(update.CallbackQuery.ID)
				}
				select {
				case events <- ev:
				case <-ctx.Done():
					c.api.StopReceivingUpdates()
					return
				}
			}
		}
	}()
	return events
}

// answer stops the client's spinner on a pressed button.
func (c *Client) answer(callbackID string) {
	if _, err := c.api.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		c.log.Warn("answer callback failed", "error", err)
	}
}

func toEvent(update tgbotapi.Update) (bot.Event, bool) {
	switch {
	case update.CallbackQuery != nil:
		q := update.CallbackQuery
		if q.From == nil {
			return nil, false
		}
		ev := bot.ActionEvent{Sender: sender(q.From, q.From.ID), ActionID: q.Data}
		if q.Message != nil && q.Message.Chat != nil {
			ev.ChatID = q.Message.Chat.ID
			ev.MessageID = q.Message.MessageID
		}
		return ev, true
	case update.Message != nil:
		m := update.Message
		if m.From == nil || m.Chat == nil || m.Text == "" {
			return nil, false
		}
		return bot.TextEvent{Sender: sender(m.From, m.Chat.ID), Text: m.Text}, true
	default:
		return nil, false
	}
}

func sender(u *tgbotapi.User, chatID int64) bot.Sender {
	return bot.Sender{
		UserID:   u.ID,
		Username: u.UserName,
		ChatID:   chatID,
		Locale:   u.LanguageCode,
	}
}

func keyboard(rows [][]bot.Action) tgbotapi.InlineKeyboardMarkup {
	markup := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, action := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(action.Label, action.ID))
		}
		markup = append(markup, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(markup...)
}
