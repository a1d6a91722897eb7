package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/ldi/telepathic/internal/calendar"
	"github.com/ldi/telepathic/internal/db"
	"github.com/ldi/telepathic/internal/logging"
	"github.com/ldi/telepathic/pkg/models"
)

const (
	MsgCleanedUp   = "All cleaned up!"
	MsgAPIKeySaved = "API Key saved!"
)

// ToggleComplete persists the completion state of a task. A completed task
// drops out of the priority view.
func (o *Orchestrator) ToggleComplete(ctx context.Context, id int64, completed bool) error {
	if err := o.store.SetTaskCompleted(ctx, id, completed); err != nil {
		return err
	}

	o.mu.Lock()
	if t, ok := o.tasks[id]; ok {
		t.IsCompleted = completed
		if completed {
			t.IsPriority = false
			o.removePriorityLocked(id)
		}
	}
	o.mu.Unlock()

	o.sendMsg(TasksChangedMsg{})
	o.publishPriorities()
	return nil
}

func (o *Orchestrator) DeleteTask(ctx context.Context, id int64) error {
	n, err := o.store.DeleteTask(ctx, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("not found: %d", id)
	}

	o.mu.Lock()
	delete(o.tasks, id)
	o.removePriorityLocked(id)
	o.mu.Unlock()

	o.sendMsg(TasksChangedMsg{})
	o.publishPriorities()
	return nil
}

// CleanCompleted deletes every completed task.
func (o *Orchestrator) CleanCompleted(ctx context.Context) (int64, error) {
	n, err := o.store.DeleteCompletedTasks(ctx)
	if err != nil {
		return 0, err
	}

	o.mu.Lock()
	for id, t := range o.tasks {
		if t.IsCompleted {
			delete(o.tasks, id)
			o.removePriorityLocked(id)
		}
	}
	o.mu.Unlock()

	o.sendMsg(TasksChangedMsg{})
	o.notifier.Toast(MsgCleanedUp)
	return n, nil
}

// AddTask saves a new task and tries to attach an assist to it.
func (o *Orchestrator) AddTask(ctx context.Context, title string, projectID *int64) (*models.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("task title cannot be empty")
	}

	task := &models.Task{Title: title, ProjectID: projectID}
	if _, err := o.store.SaveTask(ctx, task); err != nil {
		return nil, err
	}
	if o.classifier != nil {
		if _, err := o.classifier.AnalyzeAndSave(ctx, o.store, task); err != nil {
			logging.Warn("orchestrator", "Failed to save assist for task %d: %v", task.ID, err)
		}
	}

	// Reload to pick up the joined project name.
	if err := o.Load(ctx); err != nil {
		o.mu.Lock()
		o.tasks[task.ID] = task
		o.mu.Unlock()
	}
	return o.Task(task.ID), nil
}

// RunAssist performs the assist of one task. A second call while one is
// running is ignored.
func (o *Orchestrator) RunAssist(ctx context.Context, id int64) {
	if o.executor == nil {
		return
	}
	if !o.assisting.CompareAndSwap(false, true) {
		return
	}
	defer o.assisting.Store(false)

	task := o.Task(id)
	if task == nil {
		o.notifier.Error(fmt.Errorf("not found: %d", id))
		return
	}
	o.executor.Execute(ctx, task, o.User().LocationEnabled)
}

// ToggleReasoning flips whether a priority task shows its reasoning and
// returns the new state.
func (o *Orchestrator) ToggleReasoning(id int64) bool {
	o.mu.Lock()
	o.reasoning[id] = !o.reasoning[id]
	showing := o.reasoning[id]
	o.mu.Unlock()

	o.publishPriorities()
	return showing
}

func (o *Orchestrator) SetTelepathyEnabled(ctx context.Context, enabled bool) error {
	if err := o.store.SetBoolPreference(ctx, db.PrefTelepathyEnabled, enabled); err != nil {
		return err
	}
	o.mu.Lock()
	o.user.TelepathyEnabled = enabled
	o.mu.Unlock()

	if !enabled {
		o.clearPriorities()
		o.publishPriorities()
	}
	return nil
}

func (o *Orchestrator) SetAboutMe(ctx context.Context, text string) error {
	if err := o.store.SetPreference(ctx, db.PrefAboutMe, text); err != nil {
		return err
	}
	o.mu.Lock()
	o.user.AboutMe = text
	o.mu.Unlock()
	return nil
}

// SaveAPIKey stores the key and swaps the AI client. Operations already
// running keep the client they started with. An empty key forgets the saved
// one and falls back to the configured key.
func (o *Orchestrator) SaveAPIKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		if err := o.store.DeletePreference(ctx, db.PrefAPIKey); err != nil {
			return err
		}
		key = o.configAPIKey
	} else if err := o.store.SetPreference(ctx, db.PrefAPIKey, key); err != nil {
		return err
	}
	if o.ai != nil {
		o.ai.UpdateClient(key, "")
	}
	o.mu.Lock()
	o.user.HasAPIKey = key != ""
	o.mu.Unlock()

	o.notifier.Toast(MsgAPIKeySaved)
	return nil
}

// SetLocationEnabled persists the setting and starts or stops tracking.
func (o *Orchestrator) SetLocationEnabled(ctx context.Context, enabled bool) error {
	if err := o.store.SetBoolPreference(ctx, db.PrefLocationEnabled, enabled); err != nil {
		return err
	}
	o.mu.Lock()
	o.user.LocationEnabled = enabled
	o.mu.Unlock()

	if o.tracker == nil {
		return nil
	}
	if enabled {
		o.tracker.Enable(ctx)
	} else {
		o.tracker.Disable()
	}
	return nil
}

// LoadCalendars lists the available calendars with the saved selection
// applied.
func (o *Orchestrator) LoadCalendars(ctx context.Context) ([]models.CalendarInfo, error) {
	if o.calendar == nil || o.selection == nil {
		return nil, nil
	}
	saved, err := o.selection.Load(ctx)
	if err != nil {
		logging.Warn("orchestrator", "Failed to load saved calendars: %v", err)
	}
	cals, err := o.calendar.SyncSelection(ctx, saved)
	if err != nil {
		return nil, err
	}
	o.setCalendars(cals)
	return cals, nil
}

// ToggleCalendar connects or disconnects one calendar.
func (o *Orchestrator) ToggleCalendar(ctx context.Context, id string) error {
	if o.selection == nil {
		return fmt.Errorf("calendar selection is not available")
	}
	o.mu.RLock()
	current := append([]models.CalendarInfo(nil), o.calendars...)
	o.mu.RUnlock()

	cals, msg, err := o.selection.Toggle(ctx, current, id)
	if err != nil {
		return err
	}
	o.setCalendars(cals)
	o.notifier.Toast(msg)
	return nil
}

func (o *Orchestrator) DisconnectCalendars(ctx context.Context) error {
	if o.selection == nil {
		return nil
	}
	o.mu.RLock()
	current := append([]models.CalendarInfo(nil), o.calendars...)
	o.mu.RUnlock()

	cals, msg, err := o.selection.DisconnectAll(ctx, current)
	if err != nil {
		return err
	}
	o.setCalendars(cals)
	o.notifier.Toast(msg)
	return nil
}

// Calendars returns the last loaded calendar list.
func (o *Orchestrator) Calendars() []models.CalendarInfo {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]models.CalendarInfo(nil), o.calendars...)
}

func (o *Orchestrator) setCalendars(cals []models.CalendarInfo) {
	o.mu.Lock()
	o.calendars = cals
	o.user.SelectedCalendarIDs = calendar.SelectedIDs(cals)
	o.mu.Unlock()
}

func (o *Orchestrator) removePriorityLocked(id int64) {
	kept := o.priority[:0]
	for _, pid := range o.priority {
		if pid != id {
			kept = append(kept, pid)
		}
	}
	o.priority = kept
	delete(o.reasoning, id)
	o.hasPrio = len(o.priority) > 0
}
