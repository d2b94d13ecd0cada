package bot

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"salas/internal/api"
	"salas/internal/model"
)

// StartReminders schedules a daily message with the next-day reservations of
// every logged-in chat.
func (b *Bot) StartReminders(ctx context.Context, hour int) {
	if b == nil || b.tg == nil {
		return
	}

	go func() {
		timer := time.NewTimer(timeUntilNextHour(time.Now(), hour))
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				b.sendTomorrowReminders(ctx, time.Now())
				timer.Reset(24 * time.Hour)
			}
		}
	}()
}

func (b *Bot) sendTomorrowReminders(ctx context.Context, now time.Time) int {
	date := tomorrow(now)
	sent := 0
	for _, c := range b.snapshot() {
		sent += b.remindChat(ctx, c, date)
	}
	b.logger.Info().Str("fecha", date).Int("sent", sent).Msg("reminders sent")
	return sent
}

// remindChat holds the chat lock only while reading chat state, never across
// the backend call or the sends.
func (b *Bot) remindChat(ctx context.Context, c *chat, date string) int {
	c.mu.Lock()
	ci := c.app.Session().CI()
	c.mu.Unlock()
	if ci == "" {
		return 0
	}

	items, err := b.api.Reservations(ctx, api.ReservationFilter{Date: date, CI: ci}, nil)
	if err != nil {
		b.logger.Warn().Err(err).Int64("chat_id", c.id).Msg("reminder: list reservations")
		return 0
	}

	var texts []string
	c.mu.Lock()
	for _, r := range items {
		if shouldRemindState(r.State) {
			texts = append(texts, formatReminderMessage(r, c.app.Lookups().SlotLabel(r.SlotID)))
		}
	}
	c.mu.Unlock()

	sent := 0
	for _, text := range texts {
		if _, err := b.send(ctx, tgbotapi.NewMessage(c.id, text)); err != nil {
			b.logger.Warn().Err(err).Int64("chat_id", c.id).Msg("reminder: send")
			continue
		}
		sent++
	}
	return sent
}

func shouldRemindState(state model.ReservationState) bool {
	return state == model.StateActive
}

func formatReminderMessage(r model.Reservation, slot string) string {
	return "Recordatorio: mañana " + r.Date + " tiene reservada la sala " + r.Room +
		" (" + r.Building + "), turno " + slot + "."
}

func timeUntilNextHour(now time.Time, hour int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}
