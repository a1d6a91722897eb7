package assist

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ldi/telepathic/embed/prompts"
	"github.com/ldi/telepathic/internal/ai"
	"github.com/ldi/telepathic/internal/calendar"
	"github.com/ldi/telepathic/internal/location"
	"github.com/ldi/telepathic/internal/logging"
	"github.com/ldi/telepathic/internal/notify"
	"github.com/ldi/telepathic/pkg/models"
)

const (
	MsgNoCalendars       = "No calendars available. Please connect a calendar in settings."
	MsgEventCreated      = "Calendar event created successfully!"
	MsgEventFailed       = "Failed to create calendar event."
	MsgEventError        = "Error creating calendar event. See logs for details."
	MsgNoLocation        = "No location specified and location services are disabled."
	MsgLocationUnknown   = "Could not determine your location coordinates. Enable location services or specify a location."
	MsgNoURL             = "Could not generate a valid URL for this task"
	MsgBrowserError      = "Error opening browser. See logs for details."
	AIAlertTitle         = "AI Assist"
	currentLocationLabel = "Current Location"
	searchURL            = "https://www.bing.com/search?q="
	eventDuration        = time.Hour
)

// Executor performs the quick action attached to a task.
type Executor struct {
	launcher Launcher
	calendar *calendar.Gateway
	ai       ai.Provider
	location *location.Service
	notifier notify.Notifier
	now      func() time.Time
}

func NewExecutor(launcher Launcher, gateway *calendar.Gateway, provider ai.Provider, loc *location.Service, notifier notify.Notifier) *Executor {
	if notifier == nil {
		notifier = notify.Log{}
	}
	return &Executor{
		launcher: launcher,
		calendar: gateway,
		ai:       provider,
		location: loc,
		notifier: notifier,
		now:      time.Now,
	}
}

// Execute runs the task's assist. Tasks without an assist are ignored.
// Failures are reported through the notifier, never returned.
func (e *Executor) Execute(ctx context.Context, task *models.Task, locationEnabled bool) {
	if task == nil || task.AssistType == models.AssistNone {
		return
	}
	logging.Info("assist", "Running %s assist for task %d", task.AssistType, task.ID)

	switch task.AssistType {
	case models.AssistCalendar:
		e.createEvent(ctx, task)
	case models.AssistMaps:
		e.openMaps(ctx, task, locationEnabled)
	case models.AssistPhone:
		if err := e.launcher.OpenDialer(ctx, task.AssistData); err != nil {
			e.notifier.Error(err)
		}
	case models.AssistEmail:
		if err := e.launcher.OpenEmail(ctx, task.AssistData, task.Title); err != nil {
			e.notifier.Error(err)
		}
	case models.AssistAI:
		e.askAI(ctx, task)
	case models.AssistBrowser:
		e.openBrowser(ctx, task)
	}
}

func (e *Executor) createEvent(ctx context.Context, task *models.Task) {
	if e.calendar == nil {
		e.notifier.Toast(MsgNoCalendars)
		return
	}
	cal, err := e.calendar.FirstCalendar(ctx)
	if errors.Is(err, calendar.ErrNoCalendars) {
		e.notifier.Toast(MsgNoCalendars)
		return
	}
	if err != nil {
		e.notifier.Error(fmt.Errorf("error creating calendar event: %w", err))
		e.notifier.Toast(MsgEventError)
		return
	}

	start := e.now()
	event := &models.CalendarEvent{
		CalendarID:  cal.ID,
		Title:       task.Title,
		Description: task.AssistData,
		Start:       start,
		End:         start.Add(eventDuration),
	}
	id, err := e.calendar.CreateEvent(ctx, cal.ID, event)
	if err != nil {
		e.notifier.Error(fmt.Errorf("error creating calendar event: %w", err))
		e.notifier.Toast(MsgEventError)
		return
	}
	if id == "" {
		e.notifier.Toast(MsgEventFailed)
		return
	}
	e.notifier.Toast(MsgEventCreated)
}

func (e *Executor) openMaps(ctx context.Context, task *models.Task, locationEnabled bool) {
	data := strings.TrimSpace(task.AssistData)

	var err error
	if c, ok := location.ParseCoordinates(data); ok {
		err = e.launcher.OpenMapsCoordinates(ctx, c, task.Title)
	} else if data != "" {
		err = e.launcher.OpenMapsPlace(ctx, data)
	} else if locationEnabled {
		current, known := e.currentLocation()
		if !known {
			e.notifier.Toast(MsgLocationUnknown)
			return
		}
		err = e.launcher.OpenMapsCoordinates(ctx, current, currentLocationLabel)
	} else {
		e.notifier.Toast(MsgNoLocation)
		return
	}

	if err != nil {
		e.notifier.Toast(fmt.Sprintf("Failed to navigate to location: %s", err))
	}
}

func (e *Executor) currentLocation() (location.Coordinates, bool) {
	if e.location == nil {
		return location.Coordinates{}, false
	}
	return e.location.CurrentLocation()
}

func (e *Executor) askAI(ctx context.Context, task *models.Task) {
	client, err := e.client()
	if err != nil {
		e.notifier.Error(err)
		return
	}
	answer, err := client.Text(ctx, fmt.Sprintf("Assist me with: %s %s", task.Title, task.AssistData))
	if err != nil {
		e.notifier.Error(fmt.Errorf("AI assist failed: %w", err))
		return
	}
	e.notifier.Alert(AIAlertTitle, answer)
}

func (e *Executor) openBrowser(ctx context.Context, task *models.Task) {
	target := e.browserURL(ctx, task)
	if target == "" {
		e.notifier.Toast(MsgNoURL)
		return
	}
	if err := e.launcher.OpenURL(ctx, target); err != nil {
		e.notifier.Error(fmt.Errorf("error opening browser: %w", err))
		e.notifier.Toast(MsgBrowserError)
	}
}

// browserURL asks the model for a URL. Without a model it searches for the
// assist data (or the title); when the model fails it searches for the title.
func (e *Executor) browserURL(ctx context.Context, task *models.Task) string {
	if e.ai == nil || !e.ai.IsInitialized() {
		term := task.AssistData
		if term == "" {
			term = task.Title
		}
		u := SearchURL(term)
		logging.Info("assist", "AI not available, using basic search URL: %s", u)
		return u
	}

	client, err := e.ai.GetClient()
	if err != nil {
		e.notifier.Error(err)
		return SearchURL(task.Title)
	}
	prompt, err := prompts.Render("browser", prompts.Browser, struct{ Title, Data string }{task.Title, task.AssistData})
	if err != nil {
		e.notifier.Error(err)
		return SearchURL(task.Title)
	}
	answer, err := client.Text(ctx, prompt)
	if err != nil {
		e.notifier.Error(fmt.Errorf("failed to generate browser URL: %w", err))
		return SearchURL(task.Title)
	}

	u := strings.Trim(strings.TrimSpace(answer), "\"'`")
	if u == "" {
		return SearchURL(task.Title)
	}
	u = EnsureScheme(u)
	logging.Info("assist", "Generated URL for browser task: %s", u)
	return u
}

func (e *Executor) client() (ai.Client, error) {
	if e.ai == nil {
		return nil, ai.ErrNotInitialized
	}
	return e.ai.GetClient()
}

// SearchURL builds the fallback web search for term.
func SearchURL(term string) string {
	return searchURL + strings.ReplaceAll(url.QueryEscape(term), "+", "%20")
}

// EnsureScheme prefixes https:// unless u already names http or https.
func EnsureScheme(u string) string {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return "https://" + u
}
