package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ldi/telepathic/internal/ai"
	"github.com/ldi/telepathic/internal/assist"
	"github.com/ldi/telepathic/internal/calendar"
	"github.com/ldi/telepathic/internal/db"
	"github.com/ldi/telepathic/internal/location"
	"github.com/ldi/telepathic/internal/logging"
	"github.com/ldi/telepathic/internal/notify"
	"github.com/ldi/telepathic/pkg/models"
)

const (
	DefaultRecheckInterval = 4 * time.Hour
	DefaultMaxTasks        = 3
)

// Store is the persistence the orchestrator needs.
type Store interface {
	ListTasks(ctx context.Context, projectID *int64) ([]*models.Task, error)
	SaveTask(ctx context.Context, t *models.Task) (int64, error)
	SetTaskCompleted(ctx context.Context, id int64, completed bool) error
	DeleteTask(ctx context.Context, id int64) (int64, error)
	DeleteCompletedTasks(ctx context.Context) (int64, error)
	GetPreference(ctx context.Context, key string) (string, bool, error)
	SetPreference(ctx context.Context, key, value string) error
	DeletePreference(ctx context.Context, key string) error
	GetBoolPreference(ctx context.Context, key string, def bool) (bool, error)
	SetBoolPreference(ctx context.Context, key string, value bool) error
}

// AIService is the AI client holder, including credential updates.
type AIService interface {
	ai.Provider
	UpdateClient(apiKey, model string)
}

// UserContext is what the orchestrator knows about the user between refreshes.
type UserContext struct {
	TelepathyEnabled    bool
	HasAPIKey           bool
	AboutMe             string
	LocationEnabled     bool
	LocationLabel       string
	SelectedCalendarIDs []string
	LastPrioritized     time.Time
}

type Options struct {
	Store      Store
	AI         AIService
	Calendar   *calendar.Gateway
	Selection  *calendar.Selection
	Location   *location.Service
	Tracker    *location.Tracker
	Classifier *assist.Classifier
	Executor   *assist.Executor
	Notifier   notify.Notifier

	RecheckInterval time.Duration
	MaxTasks        int
	// APIKey is the configured credential, used when none was saved at runtime.
	APIKey string

	// WaitForLocation makes LoadSettings block on the first location lookup.
	WaitForLocation bool
}

// Orchestrator owns the task list and the priority view on top of it.
type Orchestrator struct {
	store      Store
	ai         AIService
	calendar   *calendar.Gateway
	selection  *calendar.Selection
	location   *location.Service
	tracker    *location.Tracker
	classifier *assist.Classifier
	executor   *assist.Executor
	notifier   notify.Notifier

	interval     time.Duration
	maxTasks     int
	configAPIKey string
	waitLocation bool
	now          func() time.Time

	mu        sync.RWMutex
	tasks     map[int64]*models.Task
	priority  []int64
	reasoning map[int64]bool
	greeting  string
	hasPrio   bool
	user      UserContext
	calendars []models.CalendarInfo

	busy      atomic.Bool
	assisting atomic.Bool
	msgChan   chan tea.Msg
}

func NewOrchestrator(opts Options) *Orchestrator {
	if opts.RecheckInterval <= 0 {
		opts.RecheckInterval = DefaultRecheckInterval
	}
	if opts.MaxTasks <= 0 {
		opts.MaxTasks = DefaultMaxTasks
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Log{}
	}
	o := &Orchestrator{
		store:        opts.Store,
		ai:           opts.AI,
		calendar:     opts.Calendar,
		selection:    opts.Selection,
		location:     opts.Location,
		tracker:      opts.Tracker,
		classifier:   opts.Classifier,
		executor:     opts.Executor,
		notifier:     opts.Notifier,
		interval:     opts.RecheckInterval,
		maxTasks:     opts.MaxTasks,
		configAPIKey: opts.APIKey,
		waitLocation: opts.WaitForLocation,
		now:          time.Now,
		tasks:        make(map[int64]*models.Task),
		reasoning:    make(map[int64]bool),
		msgChan:      make(chan tea.Msg, 100),
		user:         UserContext{LocationLabel: location.LabelDisabled},
	}
	if o.tracker != nil {
		o.tracker.OnLabel(o.setLocationLabel)
	}
	return o
}

// Messages streams UI updates. Sends never block; a slow reader misses updates.
func (o *Orchestrator) Messages() <-chan tea.Msg {
	return o.msgChan
}

func (o *Orchestrator) sendMsg(msg tea.Msg) {
	select {
	case o.msgChan <- msg:
	default:
	}
}

// LoadSettings rebuilds the user context from stored preferences and
// configures the AI client from the saved key (or the configured one).
func (o *Orchestrator) LoadSettings(ctx context.Context) error {
	enabled, err := o.store.GetBoolPreference(ctx, db.PrefTelepathyEnabled, false)
	if err != nil {
		return err
	}
	locationEnabled, err := o.store.GetBoolPreference(ctx, db.PrefLocationEnabled, false)
	if err != nil {
		return err
	}
	aboutMe, _, err := o.store.GetPreference(ctx, db.PrefAboutMe)
	if err != nil {
		return err
	}
	apiKey, _, err := o.store.GetPreference(ctx, db.PrefAPIKey)
	if err != nil {
		return err
	}
	if apiKey == "" {
		apiKey = o.configAPIKey
	}

	var selected []string
	var saved []models.CalendarInfo
	if o.selection != nil {
		saved, err = o.selection.Load(ctx)
		if err != nil {
			logging.Warn("orchestrator", "Failed to load saved calendars: %v", err)
		}
		selected = calendar.SelectedIDs(saved)
	}

	if o.ai != nil && apiKey != "" && !o.ai.IsInitialized() {
		o.ai.UpdateClient(apiKey, "")
	}

	o.mu.Lock()
	o.user.TelepathyEnabled = enabled
	o.user.LocationEnabled = locationEnabled
	o.user.AboutMe = aboutMe
	o.user.HasAPIKey = apiKey != ""
	o.user.SelectedCalendarIDs = selected
	o.calendars = saved
	o.mu.Unlock()

	if locationEnabled && o.tracker != nil {
		if o.waitLocation {
			o.tracker.Enable(ctx)
		} else {
			go o.tracker.Enable(ctx)
		}
	}
	return nil
}

// Load replaces the task list from the store. Transient fields of tasks that
// are still present survive.
func (o *Orchestrator) Load(ctx context.Context) error {
	tasks, err := o.store.ListTasks(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to load tasks: %w", err)
	}

	o.mu.Lock()
	inPriority := make(map[int64]bool, len(o.priority))
	for _, id := range o.priority {
		inPriority[id] = true
	}
	next := make(map[int64]*models.Task, len(tasks))
	for _, t := range tasks {
		if old, ok := o.tasks[t.ID]; ok {
			t.PriorityReasoning = old.PriorityReasoning
			t.IsPriority = old.IsPriority
			t.IsRecommendation = old.IsRecommendation
			if inPriority[t.ID] {
				t.AssistType = old.AssistType
				t.AssistData = old.AssistData
			}
		}
		next[t.ID] = t
	}
	o.tasks = next

	kept := o.priority[:0]
	for _, id := range o.priority {
		if _, ok := next[id]; ok {
			kept = append(kept, id)
		}
	}
	o.priority = kept
	o.mu.Unlock()

	o.sendMsg(TasksChangedMsg{})
	return nil
}

// Tasks returns copies of all tasks ordered by id.
func (o *Orchestrator) Tasks() []*models.Task {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]*models.Task, 0, len(o.tasks))
	for _, id := range o.sortedIDsLocked() {
		out = append(out, o.tasks[id].Clone())
	}
	return out
}

// Task returns a copy of one task, or nil.
func (o *Orchestrator) Task(id int64) *models.Task {
	o.mu.RLock()
	defer o.mu.RUnlock()
	t, ok := o.tasks[id]
	if !ok {
		return nil
	}
	return t.Clone()
}

// PriorityTasks projects the priority ids onto the task list, at most
// maxTasks of them. Completed or deleted tasks are left out.
func (o *Orchestrator) PriorityTasks() []models.PriorityTaskView {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.priorityViewsLocked()
}

func (o *Orchestrator) priorityViewsLocked() []models.PriorityTaskView {
	views := make([]models.PriorityTaskView, 0, len(o.priority))
	for _, id := range o.priority {
		if len(views) >= o.maxTasks {
			break
		}
		t, ok := o.tasks[id]
		if !ok || t.IsCompleted {
			continue
		}
		views = append(views, models.PriorityTaskView{
			TaskID:             id,
			ProjectName:        t.ProjectName,
			IsShowingReasoning: o.reasoning[id],
			Task:               t.Clone(),
		})
	}
	return views
}

func (o *Orchestrator) Greeting() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.greeting != "" {
		return o.greeting
	}
	return DefaultGreeting(TimeOfDay(o.now().Hour()))
}

func (o *Orchestrator) HasPriorityTasks() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.hasPrio
}

func (o *Orchestrator) IsBusy() bool {
	return o.busy.Load()
}

func (o *Orchestrator) HasCompletedTasks() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, t := range o.tasks {
		if t.IsCompleted {
			return true
		}
	}
	return false
}

// User returns a copy of the current user context.
func (o *Orchestrator) User() UserContext {
	o.mu.RLock()
	defer o.mu.RUnlock()
	u := o.user
	u.SelectedCalendarIDs = append([]string(nil), o.user.SelectedCalendarIDs...)
	return u
}

func (o *Orchestrator) setLocationLabel(label string) {
	o.mu.Lock()
	o.user.LocationLabel = label
	o.mu.Unlock()
	o.sendMsg(LocationMsg{Label: label})
}

func (o *Orchestrator) sortedIDsLocked() []int64 {
	ids := make([]int64, 0, len(o.tasks))
	for id := range o.tasks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (o *Orchestrator) publishPriorities() {
	o.mu.RLock()
	msg := PrioritiesUpdatedMsg{
		Greeting: o.greeting,
		Views:    o.priorityViewsLocked(),
		Visible:  o.hasPrio,
	}
	o.mu.RUnlock()
	if msg.Greeting == "" {
		msg.Greeting = o.Greeting()
	}
	o.sendMsg(msg)
}

// PrioritiesUpdatedMsg carries a fresh priority view.
type PrioritiesUpdatedMsg struct {
	Greeting string
	Views    []models.PriorityTaskView
	Visible  bool
}

// TasksChangedMsg reports that the task list changed.
type TasksChangedMsg struct{}

// BusyMsg reports the start and end of a refresh.
type BusyMsg struct {
	Busy bool
}

// LocationMsg carries a new location label.
type LocationMsg struct {
	Label string
}
