package feed

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/stayflow/backend/internal/storage"
	"github.com/stayflow/backend/internal/storage/models"
)

// Scheduler runs periodic property syncs. Each enabled sync config gets its
// own cron entry at its configured interval; a refresh pass picks up configs
// added or changed since startup.
type Scheduler struct {
	cron    *cron.Cron
	engine  *Engine
	configs *storage.SyncConfigRepository

	entries   map[string]cron.EntryID
	entriesMu sync.RWMutex

	defaultInterval time.Duration
	log             *zap.Logger
}

// NewScheduler creates a sync scheduler.
func NewScheduler(engine *Engine, configs *storage.SyncConfigRepository, defaultIntervalMin int, log *zap.Logger) *Scheduler {
	if defaultIntervalMin <= 0 {
		defaultIntervalMin = 15
	}
	return &Scheduler{
		cron:            cron.New(),
		engine:          engine,
		configs:         configs,
		entries:         make(map[string]cron.EntryID),
		defaultInterval: time.Duration(defaultIntervalMin) * time.Minute,
		log:             log,
	}
}

// Start loads all enabled configs, schedules them, and begins running.
func (s *Scheduler) Start(ctx context.Context) error {
	configs, err := s.configs.ListEnabled(ctx)
	if err != nil {
		return err
	}

	for _, cfg := range configs {
		s.ScheduleConfig(cfg)
	}

	// Pick up configs created or modified after startup.
	s.cron.AddFunc("@every 5m", func() {
		s.refreshSchedules(context.Background())
	})

	s.cron.Start()
	s.log.Info("sync scheduler started", zap.Int("configs", len(configs)))
	return nil
}

// Stop shuts the scheduler down, waiting for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("sync scheduler stopped")
}

// ScheduleConfig adds or replaces a config's sync entry.
func (s *Scheduler) ScheduleConfig(cfg models.SyncConfig) {
	if !cfg.Enabled {
		s.UnscheduleConfig(cfg.ID)
		return
	}

	s.entriesMu.Lock()
	defer s.entriesMu.Unlock()

	if existing, ok := s.entries[cfg.ID]; ok {
		s.cron.Remove(existing)
		delete(s.entries, cfg.ID)
	}

	interval := time.Duration(cfg.SyncIntervalMin) * time.Minute
	if interval < time.Minute {
		interval = s.defaultInterval
	}

	configID := cfg.ID
	entryID, err := s.cron.AddFunc("@every "+interval.String(), func() {
		s.runSync(configID)
	})
	if err != nil {
		s.log.Error("failed to schedule sync",
			zap.String("config_id", cfg.ID), zap.Error(err))
		return
	}

	s.entries[cfg.ID] = entryID
	s.log.Info("sync scheduled",
		zap.String("config_id", cfg.ID),
		zap.String("property_id", cfg.PropertyID),
		zap.Duration("interval", interval))
}

// UnscheduleConfig removes a config's sync entry.
func (s *Scheduler) UnscheduleConfig(configID string) {
	s.entriesMu.Lock()
	defer s.entriesMu.Unlock()

	if entryID, ok := s.entries[configID]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, configID)
	}
}

// TriggerSync runs an immediate sync for a config in the background.
func (s *Scheduler) TriggerSync(configID string) {
	go s.runSync(configID)
}

func (s *Scheduler) runSync(configID string) {
	ctx := context.Background()

	cfg, err := s.configs.GetByID(ctx, configID)
	if err != nil || cfg == nil {
		s.log.Warn("sync config not found, skipping run", zap.String("config_id", configID))
		return
	}

	result := s.engine.SyncProperty(ctx, *cfg)
	if result.Failed() {
		s.log.Warn("scheduled sync finished with errors",
			zap.String("property_id", cfg.PropertyID),
			zap.Int("errors", len(result.Errors)))
	}
}

// refreshSchedules reconciles cron entries with the current set of enabled
// configs.
func (s *Scheduler) refreshSchedules(ctx context.Context) {
	configs, err := s.configs.ListEnabled(ctx)
	if err != nil {
		s.log.Error("failed to refresh sync schedules", zap.Error(err))
		return
	}

	current := make(map[string]bool, len(configs))
	for _, cfg := range configs {
		current[cfg.ID] = true
		s.ScheduleConfig(cfg)
	}

	s.entriesMu.Lock()
	for id, entryID := range s.entries {
		if !current[id] {
			s.cron.Remove(entryID)
			delete(s.entries, id)
		}
	}
	s.entriesMu.Unlock()
}

// NextRun returns the next scheduled run time for a config, or nil when the
// config is not scheduled.
func (s *Scheduler) NextRun(configID string) *time.Time {
	s.entriesMu.RLock()
	defer s.entriesMu.RUnlock()

	if entryID, ok := s.entries[configID]; ok {
		entry := s.cron.Entry(entryID)
		if !entry.Next.IsZero() {
			return &entry.Next
		}
	}
	return nil
}
