package orchestrator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ldi/telepathic/internal/logging"
	"github.com/ldi/telepathic/internal/notify"
	"github.com/ldi/telepathic/pkg/models"
	"github.com/robfig/cron/v3"
)

// Scheduler runs background refreshes and the daily digest.
type Scheduler struct {
	cron *cron.Cron
	orch *Orchestrator
	ctx  context.Context
}

func NewScheduler(ctx context.Context, o *Orchestrator, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron: cron.New(cron.WithLocation(loc), cron.WithSeconds()),
		orch: o,
		ctx:  ctx,
	}
}

// ScheduleRefresh reloads tasks and refreshes priorities on expr, a six
// field cron expression or descriptor. An empty expr runs every interval.
func (s *Scheduler) ScheduleRefresh(expr string, interval time.Duration) (cron.EntryID, error) {
	if expr == "" {
		if interval <= 0 {
			return 0, fmt.Errorf("interval must be positive")
		}
		seconds := int(interval.Seconds())
		if seconds <= 0 {
			seconds = 1
		}
		expr = fmt.Sprintf("@every %ds", seconds)
	}
	return s.cron.AddFunc(expr, s.refresh)
}

func (s *Scheduler) refresh() {
	if err := s.orch.Load(s.ctx); err != nil {
		logging.Warn("orchestrator", "Scheduled reload failed: %v", err)
		return
	}
	s.orch.Refresh(s.ctx)
}

// ScheduleDigest sends the greeting and the priority list to n every day at
// timeStr (HH:MM).
func (s *Scheduler) ScheduleDigest(timeStr string, n notify.Notifier) (cron.EntryID, error) {
	expr, err := buildDailyExpr(timeStr)
	if err != nil {
		return 0, err
	}
	return s.cron.AddFunc(expr, func() {
		s.refresh()
		n.Alert(s.orch.Greeting(), Digest(s.orch.PriorityTasks()))
	})
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Digest renders priority views as a short plain-text list.
func Digest(views []models.PriorityTaskView) string {
	if len(views) == 0 {
		return "Nothing needs your attention right now."
	}
	var sb strings.Builder
	for i, v := range views {
		if v.Task == nil {
			continue
		}
		fmt.Fprintf(&sb, "%d. %s", i+1, v.Task.Title)
		if v.Task.PriorityReasoning != "" {
			fmt.Fprintf(&sb, " - %s", v.Task.PriorityReasoning)
		}
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}

func buildDailyExpr(timeStr string) (string, error) {
	parts := strings.Split(timeStr, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time %q, expected HH:MM", timeStr)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour in %q", timeStr)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute in %q", timeStr)
	}
	return fmt.Sprintf("0 %d %d * * *", minute, hour), nil
}
