package telegram

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ovsov/tecret-anta/internal/bot"
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	updates  chan tgbotapi.Update
	stopped  bool
	sendErr  error
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

func newTestClient(api *fakeAPI) *Client {
	return NewClient(api, 60, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSendBuildsInlineKeyboard(t *testing.T) {
	api := &fakeAPI{}
	client := newTestClient(api)

	ref, err := client.Send(context.Background(), 10, bot.Message{
		Text: "Pick a game:",
		Actions: [][]bot.Action{
			{{Label: "Office", ID: "join:Office"}},
			{{Label: "Home", ID: "join:Home"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, bot.MessageRef{ChatID: 10, MessageID: 1}, ref)

	require.Len(t, api.sent, 1)
	msg, ok := api.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(10), msg.ChatID)
	assert.Equal(t, "Pick a game:", msg.Text)
	markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 2)
	assert.Equal(t, "Office", markup.InlineKeyboard[0][0].Text)
	require.NotNil(t, markup.InlineKeyboard[1][0].CallbackData)
	assert.Equal(t, "join:Home", *markup.InlineKeyboard[1][0].CallbackData)
}

func TestSendPlainTextHasNoMarkup(t *testing.T) {
	api := &fakeAPI{}
	_, err := newTestClient(api).Send(context.Background(), 10, bot.Message{Text: "hi"})
	require.NoError(t, err)

	msg := api.sent[0].(tgbotapi.MessageConfig)
	assert.Nil(t, msg.ReplyMarkup)
}

func TestSendWrapsErrors(t *testing.T) {
	api := &fakeAPI{sendErr: errors.New("Forbidden: bot was blocked by the user")}
	_, err := newTestClient(api).Send(context.Background(), 10, bot.Message{Text: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send message")
}

func TestEditReplacesText(t *testing.T) {
	api := &fakeAPI{}
	client := newTestClient(api)

	err := client.Edit(context.Background(), bot.MessageRef{ChatID: 10, MessageID: 7}, bot.Message{
		Text:    "Start the draw",
		Actions: [][]bot.Action{{{Label: "Go", ID: "rollout:Office"}}},
	})
	require.NoError(t, err)

	require.Len(t, api.requests, 1)
	edit, ok := api.requests[0].(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.Equal(t, int64(10), edit.ChatID)
	assert.Equal(t, 7, edit.MessageID)
	assert.Equal(t, "Start the draw", edit.Text)
	require.NotNil(t, edit.ReplyMarkup)
	assert.Equal(t, "Go", edit.ReplyMarkup.InlineKeyboard[0][0].Text)
}

func TestToEvent(t *testing.T) {
	user := &tgbotapi.User{ID: 5, UserName: "elf", LanguageCode: "ru"}
	chat := &tgbotapi.Chat{ID: 50}

	ev, ok := toEvent(tgbotapi.Update{Message: &tgbotapi.Message{From: user, Chat: chat, Text: "/start"}})
	require.True(t, ok)
	assert.Equal(t, bot.TextEvent{
		Sender: bot.Sender{UserID: 5, Username: "elf", ChatID: 50, Locale: "ru"},
		Text:   "/start",
	}, ev)

	ev, ok = toEvent(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    user,
		Message: &tgbotapi.Message{MessageID: 9, Chat: chat},
		Data:    "join:Office",
	}})
	require.True(t, ok)
	assert.Equal(t, bot.ActionEvent{
		Sender:    bot.Sender{UserID: 5, Username: "elf", ChatID: 50, Locale: "ru"},
		MessageID: 9,
		ActionID:  "join:Office",
	}, ev)

	ev, ok = toEvent(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{ID: "cb", From: user, Data: "browse"}})
	require.True(t, ok)
	assert.Equal(t, int64(5), ev.From().ChatID, "inline buttons answer in the private chat")

	_, ok = toEvent(tgbotapi.Update{Message: &tgbotapi.Message{From: user, Chat: chat}})
	assert.False(t, ok, "stickers and photos carry no text")
	_, ok = toEvent(tgbotapi.Update{})
	assert.False(t, ok)
}

func TestEventsAnswersCallbacksAndStops(t *testing.T) {
	api := &fakeAPI{updates: make(chan tgbotapi.Update, 2)}
	client := newTestClient(api)
	user := &tgbotapi.User{ID: 5, UserName: "elf"}
	api.updates <- tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{ID: "cb-1", From: user, Data: "browse"}}

	ctx, cancel := context.WithCancel(context.Background())
	events := client.Events(ctx)

	select {
	case ev := <-events:
		assert.IsType(t, bot.ActionEvent{}, ev)
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}

	cancel()
	for range events {
	}
	api.mu.Lock()
	defer api.mu.Unlock()
	assert.True(t, api.stopped)
	require.Len(t, api.requests, 1)
	callback, ok := api.requests[0].(tgbotapi.CallbackConfig)
	require.True(t, ok)
	assert.Equal(t, "cb-1", callback.CallbackQueryID)
}
