// Package bot draws the reservation client in Telegram chats. Each chat gets
// its own app.App; the chat itself is the view the controllers write to.
package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"salas/internal/api"
	"salas/internal/app"
	"salas/internal/metrics"
	"salas/internal/session"
	"salas/internal/view"
)

// Options tunes the adapter.
type Options struct {
	Policy session.Policy
	// SendRate is the sustained message rate towards Telegram, per second.
	SendRate float64
	// SendBurst is the number of messages sent without pacing.
	SendBurst int
	// ReminderHour is the local hour of the daily reminder; negative disables it.
	ReminderHour int
}

// Bot routes Telegram updates to the per-chat shells.
type Bot struct {
	api     *api.Client
	tg      telegramClient
	policy  session.Policy
	limiter *rate.Limiter
	opts    Options
	logger  *zerolog.Logger

	mu    sync.Mutex
	chats map[int64]*chat
}

// New connects to Telegram with token.
func New(token string, client *api.Client, opts Options, logger *zerolog.Logger) (*Bot, error) {
	tg, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return newBot(&realTelegramClient{api: tg}, client, opts, logger)
}

// NewWithTelegramClient allows injecting a mocked Telegram client for tests.
func NewWithTelegramClient(tg telegramClient, client *api.Client, opts Options, logger *zerolog.Logger) (*Bot, error) {
	return newBot(tg, client, opts, logger)
}

func newBot(tg telegramClient, client *api.Client, opts Options, logger *zerolog.Logger) (*Bot, error) {
	if tg == nil {
		return nil, fmt.Errorf("telegram client is nil")
	}
	if client == nil {
		return nil, fmt.Errorf("api client is nil")
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if opts.SendRate <= 0 {
		opts.SendRate = 25
	}
	if opts.SendBurst <= 0 {
		opts.SendBurst = 5
	}
	return &Bot{
		api:     client,
		tg:      tg,
		policy:  opts.Policy,
		limiter: rate.NewLimiter(rate.Limit(opts.SendRate), opts.SendBurst),
		opts:    opts,
		logger:  logger,
		chats:   make(map[int64]*chat),
	}, nil
}

// Start polls updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.tg.GetUpdatesChan(u)
	b.logger.Info().Str("username", b.tg.SelfUser().UserName).Msg("bot authorized")

	if b.opts.ReminderHour >= 0 {
		b.StartReminders(ctx, b.opts.ReminderHour)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			requestID := uuid.New().String()
			l := b.logger.With().Str("request_id", requestID).Logger()
			updateCtx := api.WithRequestID(l.WithContext(ctx), requestID)
			b.handleUpdate(updateCtx, &update)
		}
	}
}

func (b *Bot) chat(chatID int64) *chat {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.chats[chatID]
	if c == nil {
		c = newChat(b, chatID)
		b.chats[chatID] = c
	}
	return c
}

func (b *Bot) snapshot() []*chat {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*chat, 0, len(b.chats))
	for _, c := range b.chats {
		out = append(out, c)
	}
	return out
}

func (b *Bot) handleUpdate(ctx context.Context, update *tgbotapi.Update) {
	l := zerolog.Ctx(ctx)
	switch {
	case update.CallbackQuery != nil:
		cq := update.CallbackQuery
		if cq.Message == nil || cq.Message.Chat == nil {
			return
		}
		metrics.IncBotUpdate("callback")
		l.Debug().Int64("chat_id", cq.Message.Chat.ID).Str("data", cq.Data).Msg("handling callback query")
		_ = b.answerCallback(ctx, cq.ID)
		c := b.chat(cq.Message.Chat.ID)
		c.mu.Lock()
		defer c.mu.Unlock()
		c.begin(ctx)
		c.handleCallback(ctx, cq.Data, cq.Message.MessageID)
	case update.Message != nil:
		msg := update.Message
		if msg.Chat == nil {
			return
		}
		kind := "message"
		if msg.IsCommand() {
			kind = "command"
		}
		metrics.IncBotUpdate(kind)
		l.Debug().Int64("chat_id", msg.Chat.ID).Str("kind", kind).Msg("handling message")
		c := b.chat(msg.Chat.ID)
		c.mu.Lock()
		defer c.mu.Unlock()
		c.begin(ctx)
		c.handleMessage(ctx, msg)
	}
}

func (b *Bot) answerCallback(ctx context.Context, id string) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := b.tg.Request(tgbotapi.NewCallback(id, ""))
	return err
}

// send paces every outgoing message through the limiter.
func (b *Bot) send(ctx context.Context, msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return tgbotapi.Message{}, err
	}
	sent, err := b.tg.Send(msg)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("telegram send failed")
	}
	return sent, err
}

var tabLabels = map[view.Tab]string{
	view.TabRooms:        "Salas",
	view.TabParticipants: "Participantes",
	view.TabSlots:        "Turnos",
	view.TabReservations: "Reservas",
	view.TabAvailability: "Disponibilidad",
	view.TabSanctions:    "Sanciones",
	view.TabReports:      "Reportes",
}

func tabByLabel(text string) (view.Tab, bool) {
	for tab, label := range tabLabels {
		if strings.EqualFold(label, text) {
			return tab, true
		}
	}
	return "", false
}

func menuKeyboard(tabs []view.Tab) tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	var row []tgbotapi.KeyboardButton
	for _, t := range tabs {
		row = append(row, tgbotapi.NewKeyboardButton(tabLabels[t]))
		if len(row) == 3 {
			rows = append(rows, tgbotapi.NewKeyboardButtonRow(row...))
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(row...))
	}
	return tgbotapi.NewReplyKeyboard(rows...)
}

func tomorrow(now time.Time) string {
	return now.AddDate(0, 0, 1).Format("2006-01-02")
}

// appFor builds the shell of one chat.
func (b *Bot) appFor(c *chat) *app.App {
	logger := b.logger.With().Int64("chat_id", c.id).Logger()
	return app.New(b.api, b.policy, c, logger)
}
