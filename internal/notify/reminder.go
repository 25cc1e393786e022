package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"clothingrental/internal/availability"
	"clothingrental/internal/models"
)

// BookingLister is the read side of the booking service used for reminders.
type BookingLister interface {
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]models.BookingDetails, error)
}

// ParseReminderTime reads "HH:MM" and returns the hour; empty means 9.
func ParseReminderTime(raw string) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return 9, nil
	}
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid reminder time %q: %w", raw, err)
	}
	return t.Hour(), nil
}

// StartReminders sends the next-day pickup list once a day at hour until ctx is done.
func (n *TelegramNotifier) StartReminders(ctx context.Context, bookings BookingLister, hour int) {
	timer := time.NewTimer(timeUntilNextHour(time.Now(), hour))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if _, err := n.SendPickupReminders(ctx, bookings, time.Now()); err != nil {
				n.logger.Error().Err(err).Msg("reminder: send error")
			}
			timer.Reset(24 * time.Hour)
		}
	}
}

// SendPickupReminders tells admins which active bookings start the day after now.
// Returns how many bookings were listed; nothing is sent when there are none.
func (n *TelegramNotifier) SendPickupReminders(ctx context.Context, bookings BookingLister, now time.Time) (int, error) {
	all, err := bookings.ListBookings(ctx, models.BookingFilter{})
	if err != nil {
		return 0, fmt.Errorf("reminder: list bookings: %w", err)
	}

	tomorrow := availability.Today(now.AddDate(0, 0, 1))
	var due []models.BookingDetails
	for _, d := range all {
		if d.Status == models.BookingActive && d.FromDate == tomorrow {
			due = append(due, d)
		}
	}
	if len(due) == 0 {
		return 0, nil
	}
	return len(due), n.Broadcast(formatReminder(tomorrow, due))
}

func formatReminder(date string, due []models.BookingDetails) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Напоминание: выдача %s\n", availability.FormatDate(date))
	for _, d := range due {
		item := d.ProductID
		if d.Item != nil {
			item = fmt.Sprintf("%s (%s)", d.Item.Name, d.Item.Code)
		}
		fmt.Fprintf(&b, "- %s: %s, %s\n", item, d.CustomerName, d.CustomerPhone)
	}
	return strings.TrimRight(b.String(), "\n")
}

func timeUntilNextHour(now time.Time, hour int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}
