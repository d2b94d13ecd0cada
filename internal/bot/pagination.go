package bot

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"salas/internal/view"
)

const rowsPerPage = 8

var badgeIcons = map[string]string{
	"activa":         "🟢",
	"finalizada":     "🔵",
	"cancelada":      "⚪",
	"sin_asistencia": "🔴",
	"unknown":        "❔",
	"libre":          "🟢",
	"reservado":      "🔴",
	"active":         "🔴",
	"pending":        "🟡",
	"expired":        "⚪",
}

func esc(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, s)
}

func badgeIcon(b *view.Badge) string {
	if b == nil {
		return ""
	}
	if icon, ok := badgeIcons[b.Kind]; ok {
		return icon + " "
	}
	return ""
}

// renderTable formats one page of t and the keyboard of its actions. Every
// action button is registered in the chat's token store.
func (c *chat) renderTable(t view.Table, page int) (string, [][]tgbotapi.InlineKeyboardButton) {
	pages := (len(t.Rows) + rowsPerPage - 1) / rowsPerPage
	if pages == 0 {
		pages = 1
	}
	if page < 0 {
		page = 0
	}
	if page >= pages {
		page = pages - 1
	}
	startIdx := page * rowsPerPage
	endIdx := startIdx + rowsPerPage
	if endIdx > len(t.Rows) {
		endIdx = len(t.Rows)
	}

	var message strings.Builder
	message.WriteString("*" + esc(t.Title) + "*\n")
	if len(t.Columns) > 0 {
		message.WriteString("_" + esc(strings.Join(t.Columns, " · ")) + "_\n")
	}
	if pages > 1 {
		message.WriteString(esc(fmt.Sprintf("Página %d de %d", page+1, pages)) + "\n")
	}
	message.WriteString("\n")

	var keyboard [][]tgbotapi.InlineKeyboardButton
	readOnly := false
	for i, row := range t.Rows[startIdx:endIdx] {
		n := startIdx + i + 1
		line := fmt.Sprintf("%d. %s", n, strings.Join(row.Cells, " · "))
		message.WriteString(badgeIcon(row.Badge) + esc(line) + "\n")
		if row.Notice != "" {
			readOnly = true
		}
		var buttons []tgbotapi.InlineKeyboardButton
		for _, a := range row.Actions {
			label := fmt.Sprintf("%s %d", a.Label, n)
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(label, "a:"+c.tokens.put(a)))
		}
		if len(buttons) > 0 {
			keyboard = append(keyboard, buttons)
		}
	}

	switch {
	case t.Notice != "":
		message.WriteString("\n" + esc(t.Notice) + "\n")
	case t.Empty():
		message.WriteString(esc(view.EmptyText) + "\n")
	}
	if readOnly {
		message.WriteString("\n_" + esc(view.ReadOnlyNotice) + "_\n")
	}

	var navButtons []tgbotapi.InlineKeyboardButton
	if page > 0 {
		navButtons = append(navButtons, tgbotapi.NewInlineKeyboardButtonData("⬅️ Anterior", "p:"+strconv.Itoa(page-1)))
	}
	if endIdx < len(t.Rows) {
		navButtons = append(navButtons, tgbotapi.NewInlineKeyboardButtonData("Siguiente ➡️", "p:"+strconv.Itoa(page+1)))
	}
	if len(navButtons) > 0 {
		keyboard = append(keyboard, navButtons)
	}

	var toolbar []tgbotapi.InlineKeyboardButton
	for _, a := range t.Actions {
		toolbar = append(toolbar, tgbotapi.NewInlineKeyboardButtonData(a.Label, "a:"+c.tokens.put(a)))
	}
	if len(toolbar) > 0 {
		keyboard = append(keyboard, toolbar)
	}
	return message.String(), keyboard
}

// sendTable shows the current page of t, editing messageID when given.
func (c *chat) sendTable(t view.Table, messageID int) {
	text, keyboard := c.renderTable(t, c.page)
	if messageID != 0 {
		edit := tgbotapi.NewEditMessageText(c.id, messageID, text)
		edit.ParseMode = tgbotapi.ModeMarkdownV2
		if len(keyboard) > 0 {
			markup := tgbotapi.NewInlineKeyboardMarkup(keyboard...)
			edit.ReplyMarkup = &markup
		}
		_, _ = c.bot.send(c.ctx, edit)
		return
	}
	msg := tgbotapi.NewMessage(c.id, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	if len(keyboard) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(keyboard...)
	}
	_, _ = c.bot.send(c.ctx, msg)
}
