package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"salas/internal/app"
	"salas/internal/validate"
	"salas/internal/view"
)

// Form prompts.
const (
	MsgPickOption = "Elija una de las opciones"
	MsgNoOptions  = "No hay opciones disponibles para %s"
	MsgCurrent    = "Actual: "
)

var boolOptions = []view.Option{{Value: "sí", Label: "Sí"}, {Value: "no", Label: "No"}}

// formFlow collects one form field by field.
type formFlow struct {
	form    view.Form
	values  view.Values
	index   int
	options []view.Option
}

func newFlow(form view.Form) *formFlow {
	values := form.Values.Clone()
	if values == nil {
		values = view.Values{}
	}
	return &formFlow{form: form, values: values}
}

func (f *formFlow) done() bool {
	return f.index >= len(f.form.Fields)
}

func (f *formFlow) field() view.Field {
	return f.form.Fields[f.index]
}

// set stores the answer of the current field and drops the values of the
// fields that depend on it when it changed.
func (f *formFlow) set(value string) {
	fl := f.field()
	if f.values[fl.Key] != value {
		for _, other := range f.form.Fields {
			if other.DependsOn == fl.Key {
				delete(f.values, other.Key)
			}
		}
	}
	f.values[fl.Key] = value
}

func (f *formFlow) startAt(key string) {
	for i, fl := range f.form.Fields {
		if fl.Key == key {
			f.index = i
			return
		}
	}
	f.index = 0
}

func matchOption(opts []view.Option, text string) int {
	for i, o := range opts {
		if strings.EqualFold(o.Value, text) || strings.EqualFold(o.Label, text) {
			return i
		}
	}
	return -1
}

// prompt asks for the current field, or submits once every field is answered.
func (c *chat) prompt() {
	f := c.flow
	if f == nil {
		return
	}
	if f.done() {
		c.submitFlow()
		return
	}
	fl := f.field()
	f.options = nil
	switch fl.Kind {
	case view.FieldBool:
		f.options = boolOptions
	case view.FieldSelect:
		opts, err := c.app.FieldOptions(c.ctx, fl, f.values)
		if err != nil {
			c.flow = nil
			return
		}
		if len(opts) == 0 && !fl.Optional {
			c.flow = nil
			c.SetStatus(view.StatusError, fmt.Sprintf(MsgNoOptions, fl.Label))
			return
		}
		f.options = opts
	}

	var text strings.Builder
	fmt.Fprintf(&text, "%s (%d/%d)\n%s", f.form.Title, f.index+1, len(f.form.Fields), fl.Label)
	if fl.Hint != "" {
		fmt.Fprintf(&text, " · %s", fl.Hint)
	}
	current := f.values[fl.Key]
	if current != "" {
		text.WriteString("\n" + MsgCurrent + current)
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for i, o := range f.options {
		label := o.Label
		if label == "" {
			label = o.Value
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, "o:"+strconv.Itoa(i)))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	var extra []tgbotapi.InlineKeyboardButton
	if current != "" {
		extra = append(extra, tgbotapi.NewInlineKeyboardButtonData("Mantener", "k"))
	}
	if fl.Optional {
		extra = append(extra, tgbotapi.NewInlineKeyboardButtonData("Omitir", "s"))
	}
	extra = append(extra, tgbotapi.NewInlineKeyboardButtonData("Cancelar", "x"))
	rows = append(rows, extra)

	msg := tgbotapi.NewMessage(c.id, text.String())
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	_, _ = c.bot.send(c.ctx, msg)
}

// answer takes a typed reply for the current field.
func (c *chat) answer(_ context.Context, text string) {
	f := c.flow
	if f.field().Kind == view.FieldText {
		f.set(text)
		f.index++
		c.prompt()
		return
	}
	i := matchOption(f.options, text)
	if i < 0 {
		c.reply(MsgPickOption)
		c.prompt()
		return
	}
	f.set(f.options[i].Value)
	f.index++
	c.prompt()
}

func (c *chat) flowCallback(_ context.Context, prefix, arg string) {
	f := c.flow
	switch prefix {
	case "x":
		c.cancelFlow()
		return
	case "o":
		i, err := strconv.Atoi(arg)
		if err != nil || i < 0 || i >= len(f.options) {
			c.reply(MsgPickOption)
			c.prompt()
			return
		}
		f.set(f.options[i].Value)
	case "s":
		f.set("")
	case "k":
	}
	f.index++
	c.prompt()
}

func (c *chat) cancelFlow() {
	if c.flow == nil {
		return
	}
	if ctl, ok := c.app.Controller(c.flow.form.Tab); ok {
		ctl.Reset()
	}
	c.flow = nil
	c.SetStatus(view.StatusInfo, MsgCancelled)
}

// submitFlow hands the answers to the shell. A validation failure restarts
// the form at the offending field with the answers kept.
func (c *chat) submitFlow() {
	f := c.flow
	c.flow = nil
	c.quiet = false
	err := c.app.Submit(c.ctx, f.form, f.values)
	if err != nil && validate.IsValidation(err) {
		retry := &formFlow{form: f.form, values: f.values}
		retry.startAt(validate.FieldOf(err))
		c.flow = retry
		c.prompt()
		return
	}
	if err != nil && !app.IsReported(err) {
		c.logger.Error().Err(err).Str("form", f.form.ID).Msg("submit failed")
		c.SetStatus(view.StatusError, MsgUnexpected)
		return
	}
	if err == nil && c.flow == nil && !c.quiet {
		c.render(0)
	}
}
