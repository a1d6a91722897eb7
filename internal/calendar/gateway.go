package calendar

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ldi/telepathic/internal/logging"
	"github.com/ldi/telepathic/pkg/models"
)

// Gateway is the read-mostly view of the user's calendars used by the
// prioritizer and the calendar assist.
type Gateway struct {
	provider Provider
}

func NewGateway(provider Provider) *Gateway {
	return &Gateway{provider: provider}
}

func (g *Gateway) ListCalendars(ctx context.Context) ([]models.CalendarInfo, error) {
	return g.provider.ListCalendars(ctx)
}

// EventsForDay returns the events of day on the given calendars, sorted by
// start. A calendar that fails to load is logged and skipped.
func (g *Gateway) EventsForDay(ctx context.Context, day time.Time, calendarIDs []string) []models.CalendarEvent {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	var events []models.CalendarEvent
	for _, id := range calendarIDs {
		got, err := g.provider.ListEvents(ctx, id, start, end)
		if err != nil {
			logging.Warn("calendar", "Failed to load events for calendar %s: %v", id, err)
			continue
		}
		events = append(events, got...)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
	return events
}

// FirstCalendar returns the first available calendar, or ErrNoCalendars.
func (g *Gateway) FirstCalendar(ctx context.Context) (*models.CalendarInfo, error) {
	cals, err := g.provider.ListCalendars(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}
	if len(cals) == 0 {
		return nil, ErrNoCalendars
	}
	c := cals[0]
	return &c, nil
}

func (g *Gateway) CreateEvent(ctx context.Context, calendarID string, e *models.CalendarEvent) (string, error) {
	if !e.End.After(e.Start) {
		return "", fmt.Errorf("event must end after it starts")
	}
	return g.provider.CreateEvent(ctx, calendarID, e)
}

// SyncSelection lists the provider's calendars and carries over the
// selection flags from saved.
func (g *Gateway) SyncSelection(ctx context.Context, saved []models.CalendarInfo) ([]models.CalendarInfo, error) {
	fresh, err := g.provider.ListCalendars(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}

	selected := make(map[string]bool, len(saved))
	for _, c := range saved {
		selected[c.ID] = c.IsSelected
	}
	for i := range fresh {
		fresh[i].IsSelected = selected[fresh[i].ID]
	}
	return fresh, nil
}
