package tool

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"
)

// CalendarTool reads events from the primary Google calendar. A nil
// service means Google credentials were not configured.
type CalendarTool struct {
	service    *calendar.Service
	calendarID string
	now        func() time.Time
}

type CalendarOption func(*CalendarTool)

func WithCalendarID(id string) CalendarOption {
	return func(t *CalendarTool) { t.calendarID = id }
}

func WithCalendarClock(now func() time.Time) CalendarOption {
	return func(t *CalendarTool) { t.now = now }
}

func NewCalendarTool(service *calendar.Service, opts ...CalendarOption) *CalendarTool {
	t := &CalendarTool{
		service:    service,
		calendarID: "primary",
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *CalendarTool) Name() string { return NameCalendar }

func (t *CalendarTool) Description() string {
	return "Check upcoming calendar events, availability for today, and schedule details."
}

func (t *CalendarTool) Available() bool { return t != nil && t.service != nil }

func (t *CalendarTool) Invoke(ctx context.Context, args map[string]any) (string, error) {
	query := strings.ToLower(stringArg(args, ArgQuery))
	if !t.Available() {
		return "Calendar not connected. Set up Google credentials to manage events.", nil
	}

	switch {
	case containsAny(query, "create", "add", "new event", "book"):
		return "Creating events is not supported yet. I can list your upcoming events and check availability.", nil
	case containsAny(query, "delete", "cancel", "remove"):
		return "Deleting events is not supported yet. I can list your upcoming events and check availability.", nil
	case containsAny(query, "update", "move", "reschedule"):
		return "Updating events is not supported yet. I can list your upcoming events and check availability.", nil
	case containsAny(query, "free", "available", "availability", "busy"):
		return t.availabilityToday(ctx)
	default:
		return t.listUpcoming(ctx, 10)
	}
}

func (t *CalendarTool) listUpcoming(ctx context.Context, max int64) (string, error) {
	events, err := t.service.Events.List(t.calendarID).
		Context(ctx).
		TimeMin(t.now().Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(max).
		Do()
	if err != nil {
		return "", fmt.Errorf("calendar list failed: %w", err)
	}
	if len(events.Items) == 0 {
		return "No upcoming events found.", nil
	}

	var b strings.Builder
	b.WriteString("Upcoming events:\n")
	for _, item := range events.Items {
		b.WriteString(fmt.Sprintf("- %s (%s)\n", item.Summary, eventStart(item)))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (t *CalendarTool) availabilityToday(ctx context.Context) (string, error) {
	now := t.now()
	endOfDay := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, now.Location())

	events, err := t.service.Events.List(t.calendarID).
		Context(ctx).
		TimeMin(now.Format(time.RFC3339)).
		TimeMax(endOfDay.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Do()
	if err != nil {
		return "", fmt.Errorf("calendar availability check failed: %w", err)
	}
	if len(events.Items) == 0 {
		return "You are free for the rest of today.", nil
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("You have %d event(s) left today:\n", len(events.Items)))
	for _, item := range events.Items {
		b.WriteString(fmt.Sprintf("- %s (%s)\n", item.Summary, eventStart(item)))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func eventStart(item *calendar.Event) string {
	if item.Start == nil {
		return "unknown time"
	}
	if item.Start.DateTime != "" {
		if ts, err := time.Parse(time.RFC3339, item.Start.DateTime); err == nil {
			return ts.Format("Mon Jan 2 15:04")
		}
		return item.Start.DateTime
	}
	if item.Start.Date != "" {
		return item.Start.Date + " (all day)"
	}
	return "unknown time"
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
