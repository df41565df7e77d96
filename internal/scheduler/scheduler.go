package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"StopSentinel/internal/engine"
	"StopSentinel/internal/model"
	"StopSentinel/internal/notifier"
)

// Scheduler drives the refresh cycle and the daily digest off cron specs.
type Scheduler struct {
	Cron      *cron.Cron
	Processor *engine.Processor
	Notifier  *notifier.TelegramNotifier
	Ctx       context.Context

	// mu guards lastResults: cron runs each job in its own goroutine, and
	// the refresh and digest specs can fire at the same instant.
	mu          sync.Mutex
	lastResults []model.SymbolResult

	logger zerolog.Logger
}

// NewScheduler creates a Scheduler.
func NewScheduler(ctx context.Context, proc *engine.Processor, tn *notifier.TelegramNotifier) *Scheduler {
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Processor: proc,
		Notifier:  tn,
		Ctx:       ctx,
		logger:    log.With().Str("component", "scheduler").Logger(),
	}
}

// RegisterAll registers the refresh and digest tasks.
func (s *Scheduler) RegisterAll(refreshCron, digestCron string) error {
	if _, err := s.Cron.AddFunc(refreshCron, s.refreshTask); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	if _, err := s.Cron.AddFunc(digestCron, s.digestTask); err != nil {
		return fmt.Errorf("register digest task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.logger.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	s.logger.Info().Msg("scheduler stopped")
}

// RunRefreshNow executes the refresh task immediately (RUN_ON_START or a
// manual trigger).
func (s *Scheduler) RunRefreshNow() {
	s.refreshTask()
}

func (s *Scheduler) refreshTask() {
	s.logger.Info().Msg("running refresh cycle")
	results, err := s.Processor.Refresh()
	if err != nil {
		s.logger.Error().Err(err).Msg("refresh cycle failed")
		s.trySend(fmt.Sprintf("❌ Refresh cycle failed: %v", err))
		return
	}
	s.mu.Lock()
	s.lastResults = results
	s.mu.Unlock()

	if msg := notifier.FormatStopAlerts(results); msg != "" {
		s.trySend(msg)
	}
	if msg := notifier.FormatErrors(results); msg != "" {
		s.trySend(msg)
	}
}

func (s *Scheduler) digestTask() {
	s.logger.Info().Msg("sending daily digest")
	s.mu.Lock()
	results := s.lastResults
	s.mu.Unlock()
	s.trySend(notifier.FormatDigest(results))
}

func (s *Scheduler) trySend(msg string) {
	if s.Notifier == nil || !s.Notifier.Enabled() || msg == "" {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, msg, 3); err != nil {
		s.logger.Error().Err(err).Msg("notification failed")
	}
}
