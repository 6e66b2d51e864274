// Package scheduler runs the pipeline stages on cron schedules
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"axial/internal/logger"
	"axial/internal/pipeline"

	"github.com/robfig/cron/v3"
)

const (
	jobSync   = "sync"
	jobDigest = "digest"
)

// Runner is the pipeline surface the scheduler drives
type Runner interface {
	RunSync(ctx context.Context) (pipeline.SyncResult, error)
	RunEnrichment(ctx context.Context) (int, error)
	RunDigest(ctx context.Context) (bool, error)
}

// Config holds the schedule specs
type Config struct {
	Sync         string // Sync followed by enrichment
	Digest       string
	Timezone     string // IANA name, empty for UTC
	RunOnStartup bool   // Kick off a sync as soon as the scheduler starts
}

type job struct {
	name     string
	spec     string
	schedule cron.Schedule
}

// Scheduler triggers pipeline stages on their cron schedules
type Scheduler struct {
	runner   Runner
	cron     *cron.Cron
	jobs     []job
	location *time.Location
	startup  bool
	now      func() time.Time
	log      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New validates the schedules and registers the jobs. Nothing runs until Start.
func New(runner Runner, cfg Config) (*Scheduler, error) {
	location := time.UTC
	if cfg.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid schedule timezone %q: %w", cfg.Timezone, err)
		}
		location = loc
	}

	log := logger.Get().With("component", "scheduler")
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		runner:   runner,
		location: location,
		startup:  cfg.RunOnStartup,
		now:      time.Now,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
	s.cron = cron.New(
		cron.WithParser(parser),
		cron.WithLocation(location),
		cron.WithChain(cron.Recover(cronLogger{log})),
	)

	for _, def := range []struct {
		name string
		spec string
		run  func()
	}{
		{jobSync, cfg.Sync, s.syncAndEnrich},
		{jobDigest, cfg.Digest, s.digest},
	} {
		if def.spec == "" {
			continue
		}
		schedule, err := parser.Parse(def.spec)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("invalid %s schedule %q: %w", def.name, def.spec, err)
		}
		s.cron.Schedule(schedule, cron.FuncJob(def.run))
		s.jobs = append(s.jobs, job{name: def.name, spec: def.spec, schedule: schedule})
	}

	return s, nil
}

// Start begins firing jobs and, if configured, runs a sync right away
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("Scheduler started", "jobs", len(s.jobs), "timezone", s.location.String())

	if s.startup {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.syncAndEnrich()
		}()
	}
}

// Stop cancels running jobs and waits for them to return
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.log.Info("Scheduler stopped")
}

// Schedules lists each job with its next run time
func (s *Scheduler) Schedules() []pipeline.ScheduleEntry {
	now := s.now().In(s.location)
	entries := make([]pipeline.ScheduleEntry, 0, len(s.jobs))
	for _, j := range s.jobs {
		next := j.schedule.Next(now)
		entries = append(entries, pipeline.ScheduleEntry{Name: j.name, Spec: j.spec, NextRun: &next})
	}
	return entries
}

func (s *Scheduler) syncAndEnrich() {
	result, err := s.runner.RunSync(s.ctx)
	if err != nil {
		s.logRunError(pipeline.StageSync, err)
		return
	}
	s.log.Info("Scheduled sync finished", "fetched", result.Fetched, "new", result.New, "errors", result.Errors)

	enriched, err := s.runner.RunEnrichment(s.ctx)
	if err != nil {
		s.logRunError(pipeline.StageEnrich, err)
		return
	}
	s.log.Info("Scheduled enrichment finished", "enriched", enriched)
}

func (s *Scheduler) digest() {
	created, err := s.runner.RunDigest(s.ctx)
	if err != nil {
		s.logRunError(pipeline.StageDigest, err)
		return
	}
	s.log.Info("Scheduled digest finished", "created", created)
}

func (s *Scheduler) logRunError(stage pipeline.Stage, err error) {
	if errors.Is(err, pipeline.ErrStageBusy) {
		s.log.Info("Skipping scheduled run, stage busy", "stage", stage)
		return
	}
	logger.Error("Scheduled run failed", err, "stage", stage)
}

// cronLogger routes cron's internal logging through slog
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
