// Package telegram adapts a Telegram bot to chat.Transport.
//
// Telegram pushes updates instead of exposing a room history, so inbound
// private-chat texts are buffered per chat and handed out by
// FetchRecentMessages. Rooms are chat ids and message ids are "chatID:messageID".
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/m3rciful/rocketbot/core/chat"
	"github.com/m3rciful/rocketbot/core/chat/netutil"
	"github.com/m3rciful/rocketbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// Options configures the transport.
type Options struct {
	Token      string
	Poller     PollerOptions
	BufferSize int
	HTTPClient *http.Client
	// Offline skips the getMe call and the update loop.
	Offline bool
}

// Transport implements chat.Transport on top of telebot.
type Transport struct {
	opts  Options
	inbox *inbox

	mu      sync.Mutex
	bot     *tele.Bot
	self    int64
	started bool
}

var _ chat.Transport = (*Transport)(nil)

// New constructs a Transport. The bot is created in Connect.
func New(opts Options) *Transport {
	return &Transport{opts: opts, inbox: newInbox(opts.BufferSize)}
}

// Name implements chat.Transport.
func (t *Transport) Name() string { return "telegram" }

// Connect authenticates the bot token and starts receiving updates.
func (t *Transport) Connect(ctx context.Context) (chat.Identity, error) {
	client := t.opts.HTTPClient
	if client == nil {
		client = netutil.BuildHTTPClient()
	}
	bot, err := tele.NewBot(tele.Settings{
		Token:   t.opts.Token,
		Poller:  BuildPoller(t.opts.Poller),
		Client:  client,
		Offline: t.opts.Offline,
		OnError: func(err error, c tele.Context) {
			logger.LogEvent(context.Background(), logger.Chat, slog.LevelWarn, "telegram.error",
				slog.String("status", "fail"),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
		},
	})
	if err != nil {
		var apiErr *tele.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized {
			return chat.Identity{}, fmt.Errorf("telegram connect: %w: %v", chat.ErrUnauthorized, err)
		}
		return chat.Identity{}, fmt.Errorf("telegram connect: %w", err)
	}
	bot.Handle(tele.OnText, t.handleText)

	// A webhook left registered by an earlier deployment blocks getUpdates.
	if !t.opts.Offline && !t.opts.Poller.webhook() {
		if err := bot.RemoveWebhook(false); err != nil {
			logger.LogEvent(ctx, logger.Chat, slog.LevelWarn, "telegram.delete_webhook",
				slog.String("status", "fail"),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
		}
	}

	t.mu.Lock()
	t.bot = bot
	if bot.Me != nil {
		t.self = bot.Me.ID
	}
	if !t.opts.Offline {
		t.started = true
		go bot.Start()
	}
	t.mu.Unlock()

	id := chat.Identity{}
	if bot.Me != nil {
		id.UserID = strconv.FormatInt(bot.Me.ID, 10)
		id.Username = bot.Me.Username
	}
	logger.LogEvent(ctx, logger.Chat, slog.LevelInfo, "chat.connect",
		slog.String("status", "ok"),
		slog.String("transport", t.Name()),
		slog.String("run_mode", t.opts.Poller.RunMode),
		slog.String("username", id.Username),
	)
	return id, nil
}

func (t *Transport) handleText(c tele.Context) error {
	msg := c.Message()
	ch := c.Chat()
	sender := c.Sender()
	if msg == nil || ch == nil || sender == nil || ch.Type != tele.ChatPrivate {
		return nil
	}
	if sender.ID == t.self || sender.IsBot {
		return nil
	}
	room := strconv.FormatInt(ch.ID, 10)
	t.inbox.push(chat.Message{
		ID:         room + ":" + strconv.Itoa(msg.ID),
		Sender:     strconv.FormatInt(sender.ID, 10),
		SenderName: sender.Username,
		Room:       room,
		Text:       msg.Text,
		Timestamp:  msg.Time(),
	})
	return nil
}

// ListDirectRooms reports private chats with buffered messages.
func (t *Transport) ListDirectRooms(context.Context) ([]chat.Room, error) {
	return t.inbox.rooms(), nil
}

// FetchRecentMessages hands out up to count buffered messages, oldest first.
func (t *Transport) FetchRecentMessages(_ context.Context, roomID string, count int) ([]chat.Message, error) {
	return t.inbox.take(roomID, count), nil
}

// SendMessage sends text to a chat id.
func (t *Transport) SendMessage(_ context.Context, roomID, text string) error {
	t.mu.Lock()
	bot := t.bot
	t.mu.Unlock()
	if bot == nil {
		return errors.New("telegram: not connected")
	}
	id, err := strconv.ParseInt(roomID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: bad chat id %q: %w", roomID, err)
	}
	if _, err := bot.Send(tele.ChatID(id), text); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// Dropped returns how many buffered messages were discarded on overflow.
func (t *Transport) Dropped() uint64 {
	return t.inbox.droppedCount()
}

// Close stops the update loop.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bot != nil && t.started {
		t.bot.Stop()
		t.started = false
	}
	return nil
}
