// Package scheduler triggers agents in-process on cron expressions, as an
// alternative to external cron hitting the HTTP routes.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/prashanttc/tweetAut/internal/pipeline"
	"github.com/prashanttc/tweetAut/pkg/logging"
)

type AgentRunner interface {
	Run(ctx context.Context, name string) (pipeline.Result, error)
}

// Job runs Agent whenever Spec fires. Jobs with an empty Spec are skipped.
type Job struct {
	Agent string
	Spec  string
}

type Config struct {
	Runner   AgentRunner
	Jobs     []Job
	Location *time.Location
	Logger   logging.Logger
}

type Scheduler struct {
	cron   *cron.Cron
	runner AgentRunner
	logger logging.Logger

	mu      sync.Mutex
	baseCtx context.Context
	entries map[string]cron.EntryID
}

// New validates every spec up front so a typo fails startup instead of
// silently never firing.
func New(cfg Config) (*Scheduler, error) {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	cl := cronLogger{logger: logger}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		runner:  cfg.Runner,
		logger:  logger,
		baseCtx: context.Background(),
		entries: map[string]cron.EntryID{},
	}

	for _, job := range cfg.Jobs {
		if job.Spec == "" {
			continue
		}
		agent := job.Agent
		id, err := s.cron.AddFunc(job.Spec, func() { s.run(agent) })
		if err != nil {
			return nil, fmt.Errorf("schedule %s %q: %w", agent, job.Spec, err)
		}
		s.entries[agent] = id
	}
	return s, nil
}

// Len is the number of scheduled jobs.
func (s *Scheduler) Len() int { return len(s.entries) }

// Next reports when agent fires next.
func (s *Scheduler) Next(agent string) (time.Time, bool) {
	id, ok := s.entries[agent]
	if !ok {
		return time.Time{}, false
	}
	e := s.cron.Entry(id)
	if !e.Valid() {
		return time.Time{}, false
	}
	return e.Next, !e.Next.IsZero()
}

// Start runs jobs until ctx ends, then waits for running jobs to finish.
func (s *Scheduler) Start(ctx context.Context) {
	if len(s.entries) == 0 {
		return
	}
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	s.cron.Start()
	for agent := range s.entries {
		if next, ok := s.Next(agent); ok {
			s.logger.WithFields(logging.Fields{"agent": agent, "next": next}).Info("Scheduler: job registered")
		}
	}

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler: stopped")
}

func (s *Scheduler) run(agent string) {
	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()
	if ctx.Err() != nil {
		return
	}

	res, err := s.runner.Run(ctx, agent)
	if err != nil {
		s.logger.WithError(err).WithField("agent", agent).Error("Scheduler: run could not start")
		return
	}
	s.logger.WithFields(logging.Fields{
		"agent":  agent,
		"status": string(res.Status),
	}).Debug("Scheduler: run finished")
}

// cronLogger routes cron's internal logging through logrus.
type cronLogger struct {
	logger logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(kvFields(keysAndValues)).Debug("Scheduler: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.WithError(err).WithFields(kvFields(keysAndValues)).Error("Scheduler: " + msg)
}

func kvFields(kv []interface{}) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
