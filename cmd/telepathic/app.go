package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ldi/telepathic/internal/ai"
	"github.com/ldi/telepathic/internal/assist"
	"github.com/ldi/telepathic/internal/calendar"
	"github.com/ldi/telepathic/internal/config"
	"github.com/ldi/telepathic/internal/db"
	"github.com/ldi/telepathic/internal/extract"
	"github.com/ldi/telepathic/internal/location"
	"github.com/ldi/telepathic/internal/logging"
	"github.com/ldi/telepathic/internal/notify"
	"github.com/ldi/telepathic/internal/orchestrator"
)

// app holds the wired services for one command invocation.
type app struct {
	cfg        *config.Config
	db         *db.DB
	ai         *ai.Service
	location   *location.Service
	tracker    *location.Tracker
	gateway    *calendar.Gateway
	classifier *assist.Classifier
	executor   *assist.Executor
	extractor  *extract.Extractor
	orch       *orchestrator.Orchestrator
	notifier   notify.Notifier
}

type appOptions struct {
	notifier     notify.Notifier
	launcher     assist.Launcher
	autoSnapshot bool

	// oneShot commands need the location before their first refresh.
	oneShot bool
}

// newApp opens the database and wires every service on top of it. Tasks and
// settings are loaded before it returns.
func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := database.Init(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if _, err := database.SeedDefaults(ctx); err != nil {
		database.Close()
		return nil, err
	}
	if opts.autoSnapshot {
		database.EnableAutoSnapshot(cfg.SnapshotPath)
	}

	if opts.notifier == nil {
		opts.notifier = notify.Log{}
	}
	if opts.launcher == nil {
		opts.launcher = assist.NewSystemLauncher()
	}

	svc := ai.NewService(ai.Options{
		Model:              cfg.AI.Model,
		BaseURL:            cfg.AI.BaseURL,
		TranscriptionModel: cfg.AI.TranscriptionModel,
	}, nil)

	var loc *location.Service
	if cfg.Places.APIKey != "" {
		loc = location.NewService(location.NewPlacesClient(cfg.Places.APIKey, cfg.Places.BaseURL))
	} else {
		loc = location.NewService(nil)
	}
	tracker := location.NewTracker(location.NewStaticProvider(cfg.Location.Latitude, cfg.Location.Longitude), loc)

	provider, err := calendarProvider(cfg, database)
	if err != nil {
		database.Close()
		return nil, err
	}
	gateway := calendar.NewGateway(provider)

	classifier := assist.NewClassifier(svc)
	executor := assist.NewExecutor(opts.launcher, gateway, svc, loc, opts.notifier)

	orch := orchestrator.NewOrchestrator(orchestrator.Options{
		Store:           database,
		AI:              svc,
		Calendar:        gateway,
		Selection:       calendar.NewSelection(database),
		Location:        loc,
		Tracker:         tracker,
		Classifier:      classifier,
		Executor:        executor,
		Notifier:        opts.notifier,
		RecheckInterval: cfg.Priority.RecheckInterval,
		MaxTasks:        cfg.Priority.MaxTasks,
		APIKey:          cfg.AI.APIKey,
		WaitForLocation: opts.oneShot,
	})
	if err := orch.LoadSettings(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if err := orch.Load(ctx); err != nil {
		database.Close()
		return nil, err
	}

	return &app{
		cfg:        cfg,
		db:         database,
		ai:         svc,
		location:   loc,
		tracker:    tracker,
		gateway:    gateway,
		classifier: classifier,
		executor:   executor,
		extractor:  extract.NewExtractor(svc, database, classifier),
		orch:       orch,
		notifier:   opts.notifier,
	}, nil
}

func (a *app) Close() error {
	a.tracker.Disable()
	return a.db.Close()
}

func calendarProvider(cfg *config.Config, database *db.DB) (calendar.Provider, error) {
	switch cfg.Calendar.Provider {
	case "", "local":
		return calendar.NewLocalProvider(database), nil
	case "google":
		p, err := calendar.NewGoogleProvider(calendar.GoogleConfig{
			CredentialsFile: cfg.Calendar.GoogleCredentialsFile,
			CalendarIDs:     cfg.Calendar.GoogleCalendarIDs,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to set up google calendar: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown calendar provider: %s", cfg.Calendar.Provider)
	}
}

// chatNotifiers builds the configured chat sinks. Sinks that fail to connect
// are logged and skipped.
func chatNotifiers(cfg *config.Config) notify.Multi {
	var out notify.Multi
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != 0 {
		tg, err := notify.NewTelegram(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID)
		if err != nil {
			logging.Warn("main", "Telegram disabled: %v", err)
		} else {
			out = append(out, tg)
		}
	}
	if cfg.Notify.DiscordToken != "" && cfg.Notify.DiscordChannelID != "" {
		dc, err := notify.NewDiscord(cfg.Notify.DiscordToken, cfg.Notify.DiscordChannelID)
		if err != nil {
			logging.Warn("main", "Discord disabled: %v", err)
		} else {
			out = append(out, dc)
		}
	}
	return out
}

// startScheduler registers the configured refresh and digest jobs. It
// returns nil when neither is configured.
func startScheduler(ctx context.Context, a *app, digest notify.Notifier) (*orchestrator.Scheduler, error) {
	p := a.cfg.Priority
	if p.Schedule == "" && p.DigestTime == "" {
		return nil, nil
	}
	s := orchestrator.NewScheduler(ctx, a.orch, time.Local)
	if p.Schedule != "" {
		if _, err := s.ScheduleRefresh(p.Schedule, p.RecheckInterval); err != nil {
			return nil, fmt.Errorf("invalid priority schedule %q: %w", p.Schedule, err)
		}
	}
	if p.DigestTime != "" {
		if digest == nil {
			digest = a.notifier
		}
		if _, err := s.ScheduleDigest(p.DigestTime, digest); err != nil {
			return nil, fmt.Errorf("invalid digest time %q: %w", p.DigestTime, err)
		}
	}
	s.Start()
	logging.Info("main", "Scheduler started")
	return s, nil
}
