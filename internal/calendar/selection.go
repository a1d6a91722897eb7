package calendar

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ldi/telepathic/internal/db"
	"github.com/ldi/telepathic/pkg/models"
)

// PreferenceStore is the subset of the database used for calendar selection.
type PreferenceStore interface {
	GetPreference(ctx context.Context, key string) (string, bool, error)
	SetPreference(ctx context.Context, key, value string) error
	SetBoolPreference(ctx context.Context, key string, value bool) error
}

// Selection persists which calendars the user has connected.
type Selection struct {
	store PreferenceStore
}

func NewSelection(store PreferenceStore) *Selection {
	return &Selection{store: store}
}

func (s *Selection) Load(ctx context.Context) ([]models.CalendarInfo, error) {
	raw, ok, err := s.store.GetPreference(ctx, db.PrefSavedCalendars)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var cals []models.CalendarInfo
	if err := json.Unmarshal([]byte(raw), &cals); err != nil {
		return nil, fmt.Errorf("failed to decode saved calendars: %w", err)
	}
	return cals, nil
}

// Save stores cals and keeps the connected flag in step with them.
func (s *Selection) Save(ctx context.Context, cals []models.CalendarInfo) error {
	data, err := json.Marshal(cals)
	if err != nil {
		return fmt.Errorf("failed to encode calendars: %w", err)
	}
	if err := s.store.SetPreference(ctx, db.PrefSavedCalendars, string(data)); err != nil {
		return err
	}
	return s.store.SetBoolPreference(ctx, db.PrefCalendarConnected, len(SelectedIDs(cals)) > 0)
}

// Toggle flips the selection of id and returns the updated list with the
// message to show the user.
func (s *Selection) Toggle(ctx context.Context, cals []models.CalendarInfo, id string) ([]models.CalendarInfo, string, error) {
	out := make([]models.CalendarInfo, len(cals))
	copy(out, cals)

	idx := -1
	for i := range out {
		if out[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return cals, "", fmt.Errorf("calendar not found: %s", id)
	}

	out[idx].IsSelected = !out[idx].IsSelected
	if err := s.Save(ctx, out); err != nil {
		return cals, "", err
	}

	state := "disconnected"
	if out[idx].IsSelected {
		state = "connected"
	}
	return out, fmt.Sprintf("Calendar '%s' %s!", out[idx].Name, state), nil
}

// DisconnectAll clears every selection.
func (s *Selection) DisconnectAll(ctx context.Context, cals []models.CalendarInfo) ([]models.CalendarInfo, string, error) {
	out := make([]models.CalendarInfo, len(cals))
	copy(out, cals)
	for i := range out {
		out[i].IsSelected = false
	}
	if err := s.Save(ctx, out); err != nil {
		return cals, "", err
	}
	return out, "All calendars disconnected!", nil
}

// SelectedIDs returns the ids of the selected calendars in order.
func SelectedIDs(cals []models.CalendarInfo) []string {
	var ids []string
	for _, c := range cals {
		if c.IsSelected {
			ids = append(ids, c.ID)
		}
	}
	return ids
}
