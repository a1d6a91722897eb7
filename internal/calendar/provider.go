package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/ldi/telepathic/internal/db"
	"github.com/ldi/telepathic/pkg/models"
)

var ErrNoCalendars = errors.New("no calendars available")

// Provider is a calendar backend.
type Provider interface {
	ListCalendars(ctx context.Context) ([]models.CalendarInfo, error)
	ListEvents(ctx context.Context, calendarID string, start, end time.Time) ([]models.CalendarEvent, error)
	// CreateEvent stores e on calendarID and returns the new event id.
	CreateEvent(ctx context.Context, calendarID string, e *models.CalendarEvent) (string, error)
}

// LocalProvider keeps calendars in the application database.
type LocalProvider struct {
	db *db.DB
}

func NewLocalProvider(database *db.DB) *LocalProvider {
	return &LocalProvider{db: database}
}

func (p *LocalProvider) ListCalendars(ctx context.Context) ([]models.CalendarInfo, error) {
	return p.db.ListCalendars(ctx)
}

func (p *LocalProvider) ListEvents(ctx context.Context, calendarID string, start, end time.Time) ([]models.CalendarEvent, error) {
	return p.db.ListEvents(ctx, calendarID, start, end)
}

func (p *LocalProvider) CreateEvent(ctx context.Context, calendarID string, e *models.CalendarEvent) (string, error) {
	e.CalendarID = calendarID
	if err := p.db.CreateEvent(ctx, e); err != nil {
		return "", err
	}
	return e.ID, nil
}
