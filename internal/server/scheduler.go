package server

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/copydesk/internal/pipeline"
	"github.com/mohammad-safakhou/copydesk/internal/store"
)

// Scheduler fires recurring briefs. The redis lock keeps multiple replicas
// from triggering the same brief in the same window.
type Scheduler struct {
	Store    *store.Store
	Orch     *pipeline.Orchestrator
	Rdb      *redis.Client // optional
	Interval time.Duration
	Stop     chan struct{}

	logger *log.Logger
}

func (s *Scheduler) Start() {
	if s.logger == nil {
		s.logger = log.New(log.Writer(), "[SCHED] ", log.LstdFlags)
	}
	interval := s.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	briefs, err := s.Store.ListBriefs(ctx)
	if err != nil {
		s.logger.Printf("list briefs: %v", err)
		return
	}
	for _, b := range briefs {
		if !isDue(b.CronSpec, b.LastRunAt) {
			continue
		}
		if s.Rdb != nil {
			lockKey := "sched:lock:" + b.ID
			ok, _ := s.Rdb.SetNX(ctx, lockKey, "1", 2*time.Minute).Result()
			if !ok {
				continue
			}
		}

		run, err := s.Orch.StartRun(b.Request)
		if err != nil {
			s.logger.Printf("brief %s: start run: %v", b.ID, err)
			continue
		}
		if err := s.Store.TouchBrief(ctx, b.ID); err != nil {
			s.logger.Printf("brief %s: touch: %v", b.ID, err)
		}

		go func(brief store.Brief, run *pipeline.Run) {
			runCtx, cancel := context.WithTimeout(context.Background(), runBudget)
			defer cancel()
			if _, err := s.Orch.Execute(runCtx, run); err != nil {
				s.logger.Printf("brief %s run %s: %v", brief.ID, run.ID, err)
			}
			archiveCtx, cancelArchive := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelArchive()
			if err := s.Store.ArchiveRun(archiveCtx, run, brief.UserID); err != nil {
				s.logger.Printf("brief %s run %s: archive: %v", brief.ID, run.ID, err)
			}
		}(b, run)
	}
}

// isDue determines whether a brief should fire now given its last run.
// Supports "@daily", "@hourly", and standard cron expressions.
func isDue(cronSpec string, last *time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			// invalid spec falls back to @daily
			if last == nil {
				return true
			}
			return now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			return true
		}
		return !expr.Next(*last).After(now)
	}
}
