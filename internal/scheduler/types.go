// Package scheduler triggers distribution cycles on cron schedules or
// fixed local post times. Jobs run on a small worker pool; a trigger that
// fires while the same job is still running is dropped, not queued.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"dealcast/pkg/logx"
)

// Config for the trigger service.
type Config struct {
	Enabled  bool
	Timezone string // IANA name; empty means local time
	Workers  int    // worker pool size, default 2
}

// JobFunc is one schedulable unit of work.
type JobFunc func(ctx context.Context) error

// Entry is a point-in-time snapshot of one registered job, for the
// operator status view.
type Entry struct {
	Name     string
	Specs    []string
	Running  bool
	Runs     int
	Skips    int
	LastRun  time.Time
	LastTook time.Duration
	LastErr  string
	Next     time.Time
}

type job struct {
	name  string
	specs []string
	run   JobFunc

	busy atomic.Bool

	mu      sync.Mutex
	runs    int
	skips   int
	lastRun time.Time
	lastDur time.Duration
	lastErr error

	ids []cron.EntryID
}

// Service owns the cron instance and the worker pool.
type Service struct {
	log    logx.Logger
	parser cron.Parser

	mu        sync.Mutex
	cfg       Config
	c         *cron.Cron
	loc       *time.Location
	jobs      []*job
	queue     chan *job
	runCtx    context.Context
	runCancel context.CancelFunc
	workerWG  sync.WaitGroup
}
