package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ldi/telepathic/embed/prompts"
	"github.com/ldi/telepathic/internal/ai"
	"github.com/ldi/telepathic/internal/location"
	"github.com/ldi/telepathic/internal/logging"
	"github.com/ldi/telepathic/pkg/models"
	"github.com/mark3labs/mcp-go/server"
)

// TimeOfDay labels an hour of the day.
func TimeOfDay(hour int) string {
	switch {
	case hour >= 5 && hour <= 11:
		return "Morning"
	case hour >= 12 && hour <= 16:
		return "Afternoon"
	case hour >= 17 && hour <= 20:
		return "Evening"
	default:
		return "Night"
	}
}

func DefaultGreeting(timeOfDay string) string {
	switch timeOfDay {
	case "Morning":
		return "Good morning!"
	case "Afternoon":
		return "Good afternoon!"
	case "Evening":
		return "Good evening!"
	default:
		return "Hello, night owl!"
	}
}

// Refresh re-evaluates the priority view. A refresh already in flight makes
// this a no-op. Within the recheck interval an unfinished priority view is
// kept as is. Failures are reported to the notifier and leave the view empty.
func (o *Orchestrator) Refresh(ctx context.Context) {
	if !o.busy.CompareAndSwap(false, true) {
		logging.Debug("orchestrator", "Refresh already running, skipping")
		return
	}
	o.sendMsg(BusyMsg{Busy: true})
	defer func() {
		o.busy.Store(false)
		o.sendMsg(BusyMsg{Busy: false})
		o.publishPriorities()
	}()

	now := o.now()
	if o.withinRecheckWindow(now) {
		logging.Debug("orchestrator", "Priority set is still fresh, skipping AI call")
		return
	}

	client, ok := o.readyClient()
	if !ok {
		o.clearPriorities()
		return
	}

	o.clearPriorities()

	user := o.User()
	var events []models.CalendarEvent
	if o.calendar != nil && len(user.SelectedCalendarIDs) > 0 {
		events = o.calendar.EventsForDay(ctx, now, user.SelectedCalendarIDs)
	}

	prompt, err := o.BuildPrompt(now, events)
	if err != nil {
		o.notifier.Error(fmt.Errorf("failed to build priority prompt: %w", err))
		return
	}

	var tools []server.ServerTool
	if user.LocationEnabled && o.location != nil {
		tools = append(tools, location.NewTool(o.location))
	}

	var result models.PriorityTaskResult
	if err := client.Structured(ctx, prompt, &result, tools...); err != nil {
		o.notifier.Error(fmt.Errorf("failed to prioritize tasks: %w", err))
		return
	}

	o.reconcile(&result, now)
	logging.Info("orchestrator", "Prioritized %d tasks", len(o.PriorityTasks()))
}

func (o *Orchestrator) withinRecheckWindow(now time.Time) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	incomplete := false
	for _, id := range o.priority {
		if t, ok := o.tasks[id]; ok && !t.IsCompleted {
			incomplete = true
			break
		}
	}
	if !incomplete || o.user.LastPrioritized.IsZero() || now.Sub(o.user.LastPrioritized) >= o.interval {
		return false
	}
	o.hasPrio = true
	return true
}

// readyClient checks the feature flag, the credential and the client, and
// returns the client snapshot to use for this refresh.
func (o *Orchestrator) readyClient() (ai.Client, bool) {
	user := o.User()
	if !user.TelepathyEnabled || !user.HasAPIKey || o.ai == nil || !o.ai.IsInitialized() {
		logging.Debug("orchestrator", "Prioritization disabled (enabled=%v key=%v)", user.TelepathyEnabled, user.HasAPIKey)
		return nil, false
	}
	client, err := o.ai.GetClient()
	if err != nil {
		return nil, false
	}
	return client, true
}

func (o *Orchestrator) clearPriorities() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, id := range o.priority {
		if t, ok := o.tasks[id]; ok {
			t.IsPriority = false
		}
	}
	o.priority = nil
	o.reasoning = make(map[int64]bool)
	o.hasPrio = false
}

// BuildPrompt composes the prioritization context for now and the given
// events, followed by the fixed instructions.
func (o *Orchestrator) BuildPrompt(now time.Time, events []models.CalendarEvent) (string, error) {
	user := o.User()
	tod := TimeOfDay(now.Hour())

	var sb strings.Builder
	sb.WriteString("## Context\n")
	fmt.Fprintf(&sb, "Current time: %s\n", now.Format("2006-01-02 15:04"))
	fmt.Fprintf(&sb, "Day of week: %s\n", now.Weekday())
	fmt.Fprintf(&sb, "Time of day: %s\n", tod)
	if user.LocationEnabled {
		fmt.Fprintf(&sb, "Current location: %s\n", o.locationString(user))
	}

	sb.WriteString("\n## Today's calendar\n")
	if len(events) == 0 {
		sb.WriteString("No events today.\n")
	}
	for _, e := range events {
		fmt.Fprintf(&sb, "- %s-%s %s\n", e.Start.In(now.Location()).Format("15:04"), e.End.In(now.Location()).Format("15:04"), e.Title)
	}

	if strings.TrimSpace(user.AboutMe) != "" {
		sb.WriteString("\n## About me\n")
		sb.WriteString(strings.TrimSpace(user.AboutMe))
		sb.WriteString("\n")
	}

	sb.WriteString("\n## My open tasks\n")
	open := 0
	for _, t := range o.Tasks() {
		if t.IsCompleted {
			continue
		}
		open++
		project := t.ProjectName
		if project == "" {
			project = "none"
		}
		due := "none"
		if t.DueDate != nil {
			due = t.DueDate.Format("2006-01-02")
		}
		priority := "unset"
		if t.Priority > 0 {
			priority = fmt.Sprintf("%d", t.Priority)
		}
		fmt.Fprintf(&sb, "- Title: %s | Project: %s | Due: %s | Priority: %s\n", t.Title, project, due, priority)
	}
	if open == 0 {
		sb.WriteString("No open tasks.\n")
	}

	instructions, err := prompts.Render("priority", prompts.Priority, struct {
		LocationEnabled bool
		MaxTasks        int
	}{user.LocationEnabled && o.location != nil, o.maxTasks})
	if err != nil {
		return "", err
	}
	sb.WriteString("\n")
	sb.WriteString(instructions)
	return sb.String(), nil
}

func (o *Orchestrator) locationString(user UserContext) string {
	if o.location != nil {
		if c, ok := o.location.CurrentLocation(); ok {
			return c.Label()
		}
	}
	if user.LocationLabel != "" {
		return user.LocationLabel
	}
	return location.LabelDisabled
}

// reconcile maps the AI answer back onto the task list. Reasoning is reset
// on every task first. Each entry claims the first incomplete task, by id,
// with the same trimmed title that is not already claimed. Every claimed
// task keeps its reasoning; only the view is capped at maxTasks.
func (o *Orchestrator) reconcile(result *models.PriorityTaskResult, now time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, t := range o.tasks {
		t.PriorityReasoning = ""
		t.IsPriority = false
	}

	ids := o.sortedIDsLocked()
	claimed := make(map[int64]bool)
	for _, entry := range result.Tasks {
		title := strings.TrimSpace(entry.Title)
		if title == "" {
			continue
		}
		for _, id := range ids {
			t := o.tasks[id]
			if t.IsCompleted || claimed[id] || strings.TrimSpace(t.Title) != title {
				continue
			}
			claimed[id] = true
			t.PriorityReasoning = entry.PriorityReasoning
			t.AssistType = entry.AssistType
			t.AssistData = entry.AssistData
			t.IsPriority = true
			o.priority = append(o.priority, id)
			break
		}
	}

	if g := strings.TrimSpace(result.PersonalizedGreeting); g != "" {
		o.greeting = g
	} else {
		o.greeting = DefaultGreeting(TimeOfDay(now.Hour()))
	}
	o.hasPrio = len(o.priority) > 0
	o.user.LastPrioritized = now
}
