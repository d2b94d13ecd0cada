package bot

import (
	"context"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"salas/internal/api"
	"salas/internal/app"
	"salas/internal/events"
	"salas/internal/view"
)

// Chat texts.
const (
	MsgWelcome    = "Bienvenido al sistema de reservas de salas. Ingrese su CI (ej. 1.234.567-8) para iniciar sesión."
	MsgAskCI      = "Indique su CI, por ejemplo /login 1.234.567-8"
	MsgUseMenu    = "Use el menú para elegir una pestaña"
	MsgExpired    = "La acción ya no está disponible, actualice con /refresh"
	MsgCancelled  = "Cancelado"
	MsgUnexpected = "Error inesperado"
	MsgUnknownCmd = "Comando desconocido. " + MsgHelp
	MsgHelp       = "Comandos: /login <ci>, /logout, /refresh, /cancel"
	MsgHello      = "Sesión iniciada como "
)

const maxTokens = 256

// chat is the view of one Telegram chat. Its methods run with mu held.
type chat struct {
	mu     sync.Mutex
	bot    *Bot
	id     int64
	app    *app.App
	ctx    context.Context
	logger zerolog.Logger

	statusID   int
	statusText string
	// quiet suppresses the table refresh after an update that already
	// produced its own reply (form prompt, confirmation, file).
	quiet bool

	flow   *formFlow
	tokens *tokenStore
	page   int
}

func newChat(b *Bot, id int64) *chat {
	c := &chat{
		bot:    b,
		id:     id,
		ctx:    context.Background(),
		logger: b.logger.With().Int64("chat_id", id).Logger(),
		tokens: newTokenStore(maxTokens),
	}
	c.app = b.appFor(c)
	c.app.Bus().Subscribe(events.SessionChanged, func(events.Event) {
		c.tokens.clear()
		c.flow = nil
		c.sendMenu()
	})
	c.app.Bus().Subscribe(events.TabChanged, func(events.Event) { c.page = 0 })
	return c
}

// begin starts handling one update: a fresh status message and request context.
func (c *chat) begin(ctx context.Context) {
	c.ctx = ctx
	c.statusID = 0
	c.statusText = ""
	c.quiet = false
}

func (c *chat) reply(text string) {
	_, _ = c.bot.send(c.ctx, tgbotapi.NewMessage(c.id, text))
}

func statusIcon(kind view.StatusKind, text string) string {
	switch {
	case kind == view.StatusOK:
		return "✅ "
	case kind == view.StatusError:
		return "⚠️ "
	case text == api.MsgLoading:
		return "⏳ "
	default:
		return "ℹ️ "
	}
}

// SetStatus keeps one status message per update and edits it in place.
func (c *chat) SetStatus(kind view.StatusKind, text string) {
	text = statusIcon(kind, text) + text
	if c.statusID != 0 {
		if text == c.statusText {
			return
		}
		if _, err := c.bot.send(c.ctx, tgbotapi.NewEditMessageText(c.id, c.statusID, text)); err == nil {
			c.statusText = text
			return
		}
	}
	sent, err := c.bot.send(c.ctx, tgbotapi.NewMessage(c.id, text))
	if err != nil {
		return
	}
	c.statusID = sent.MessageID
	c.statusText = text
}

// Notify sends a separate message.
func (c *chat) Notify(text string) {
	c.reply("ℹ️ " + text)
}

// AskConfirm offers Sí/No; Sí re-dispatches action with Confirmed set.
func (c *chat) AskConfirm(prompt string, action view.Action) {
	c.quiet = true
	tok := c.tokens.put(action)
	msg := tgbotapi.NewMessage(c.id, prompt)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Sí", "y:"+tok),
			tgbotapi.NewInlineKeyboardButtonData("No", "n"),
		),
	)
	_, _ = c.bot.send(c.ctx, msg)
}

// SwitchTab follows a controller-initiated navigation.
func (c *chat) SwitchTab(tab view.Tab) {
	c.page = 0
	c.logger.Debug().Str("tab", string(tab)).Msg("tab switched")
}

// ShowForm starts prompting the fields of form.
func (c *chat) ShowForm(form view.Form) {
	c.quiet = true
	c.flow = newFlow(form)
	c.prompt()
}

// SendFile uploads data as a document.
func (c *chat) SendFile(name string, data []byte) {
	c.quiet = true
	doc := tgbotapi.NewDocument(c.id, tgbotapi.FileBytes{Name: name, Bytes: data})
	_, _ = c.bot.send(c.ctx, doc)
}

func (c *chat) sendMenu() {
	if c.app.State() == app.LoggedOut {
		msg := tgbotapi.NewMessage(c.id, MsgWelcome)
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
		_, _ = c.bot.send(c.ctx, msg)
		return
	}
	u, _ := c.app.Session().User()
	msg := tgbotapi.NewMessage(c.id, MsgHello+u.FullName())
	msg.ReplyMarkup = menuKeyboard(c.app.VisibleTabs())
	_, _ = c.bot.send(c.ctx, msg)
}

func (c *chat) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)
	if msg.IsCommand() {
		c.handleCommand(ctx, msg.Command(), strings.TrimSpace(msg.CommandArguments()))
		return
	}
	if text == "" {
		return
	}
	switch {
	case c.app.State() == app.LoggedOut:
		c.login(ctx, text)
	case c.flow != nil:
		c.answer(ctx, text)
	default:
		tab, ok := tabByLabel(text)
		if !ok {
			c.reply(MsgUseMenu)
			return
		}
		c.flow = nil
		c.finish(c.app.Open(ctx, tab))
	}
}

func (c *chat) handleCommand(ctx context.Context, cmd, args string) {
	switch cmd {
	case "start":
		c.flow = nil
		c.sendMenu()
		if c.app.State() == app.LoggedIn {
			c.render(0)
		}
	case "login":
		c.flow = nil
		if args == "" {
			c.reply(MsgAskCI)
			return
		}
		c.login(ctx, args)
	case "logout":
		c.flow = nil
		c.app.Logout()
	case "refresh":
		c.finish(c.app.Reload(api.Fresh(ctx)))
	case "cancel":
		c.cancelFlow()
	case "help":
		c.reply(MsgHelp)
	default:
		c.reply(MsgUnknownCmd)
	}
}

func (c *chat) login(ctx context.Context, raw string) {
	err := c.app.Login(ctx, raw)
	if err != nil && !app.IsReported(err) {
		zerolog.Ctx(ctx).Error().Err(err).Msg("login failed")
		c.SetStatus(view.StatusError, MsgUnexpected)
	}
	if err == nil {
		c.render(0)
	}
}

func (c *chat) handleCallback(ctx context.Context, data string, messageID int) {
	prefix, arg, _ := strings.Cut(data, ":")
	switch prefix {
	case "a", "y":
		act, ok := c.tokens.get(arg)
		if !ok {
			c.reply(MsgExpired)
			return
		}
		if prefix == "y" {
			act = act.WithConfirmed()
		}
		c.flow = nil
		c.finish(c.app.HandleAction(ctx, act))
	case "n":
		c.SetStatus(view.StatusInfo, MsgCancelled)
	case "p":
		page, err := strconv.Atoi(arg)
		if err != nil {
			return
		}
		c.page = page
		c.render(messageID)
	case "o", "k", "s", "x":
		if c.flow == nil {
			c.reply(MsgExpired)
			return
		}
		c.flowCallback(ctx, prefix, arg)
	}
}

// finish reports an unexpected error or refreshes the active table.
func (c *chat) finish(err error) {
	if err != nil {
		if !app.IsReported(err) {
			c.logger.Error().Err(err).Msg("dispatch failed")
			c.SetStatus(view.StatusError, MsgUnexpected)
		}
		return
	}
	if c.quiet || c.flow != nil {
		return
	}
	c.render(0)
}

func (c *chat) render(messageID int) {
	ctl, ok := c.app.Active()
	if !ok {
		return
	}
	c.sendTable(ctl.Table(), messageID)
}

type tokenStore struct {
	next    int
	limit   int
	actions map[int]view.Action
}

func newTokenStore(limit int) *tokenStore {
	return &tokenStore{limit: limit, actions: make(map[int]view.Action)}
}

// put registers a and returns its callback token. Only the newest limit
// tokens stay valid.
func (s *tokenStore) put(a view.Action) string {
	s.next++
	s.actions[s.next] = a
	delete(s.actions, s.next-s.limit)
	return strconv.Itoa(s.next)
}

// clear drops every token. The counter keeps going so earlier buttons
// never resolve to a newer action.
func (s *tokenStore) clear() {
	s.actions = make(map[int]view.Action)
}

func (s *tokenStore) get(tok string) (view.Action, bool) {
	n, err := strconv.Atoi(tok)
	if err != nil {
		return view.Action{}, false
	}
	a, ok := s.actions[n]
	return a, ok
}
