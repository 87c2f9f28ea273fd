package scheduler

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"dealcast/pkg/logx"
)

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg: cfg,
		log: log,
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Start begins cron triggering and spawns the worker pool. Calling Start
// on a running service is a no-op.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	if !s.cfg.Enabled {
		s.log.Info("scheduler disabled by config")
		return
	}

	loc := s.loadLocationLocked()
	s.loc = loc
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	s.runCtx, s.runCancel = context.WithCancel(ctx)

	workers := s.cfg.Workers
	if workers <= 0 {
		workers = 2
	}
	// Fresh queue per run so stale triggers from a previous start are never
	// executed after a stop/start toggle.
	s.queue = make(chan *job, 64)

	for _, j := range s.jobs {
		s.registerLocked(j)
	}

	runCtx := s.runCtx
	queue := s.queue
	s.workerWG.Add(workers)
	for i := 0; i < workers; i++ {
		idx := i
		go func() {
			defer s.workerWG.Done()
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("panic in scheduler worker",
						logx.Int("worker", idx),
						logx.Any("panic", r),
						logx.String("stack", string(debug.Stack())))
				}
			}()
			s.worker(runCtx, queue)
		}()
	}

	s.c.Start()
	s.log.Info("scheduler started",
		logx.Int("workers", workers),
		logx.String("tz", loc.String()),
		logx.Int("jobs", len(s.jobs)))
}

// Stop halts cron triggering and waits for in-flight jobs, bounded by ctx.
// Registered jobs survive a stop and resume on the next Start.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()

	s.mu.Lock()
	c := s.c
	cancel := s.runCancel
	queue := s.queue
	s.c = nil
	s.runCtx = nil
	s.runCancel = nil
	s.queue = nil
	for _, j := range s.jobs {
		j.ids = nil
	}
	s.mu.Unlock()

	if c == nil {
		return
	}
	if cancel != nil {
		cancel()
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		// best-effort
	}

	done := make(chan struct{})
	go func() {
		s.workerWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	// Triggers enqueued but never picked up would keep their job marked
	// running across a later Start; release them.
	for drained := false; !drained; {
		select {
		case j := <-queue:
			j.busy.Store(false)
		default:
			drained = true
		}
	}
	s.log.Info("scheduler stopped", logx.Duration("took", time.Since(start)))
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("bad timezone, falling back to local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

func (s *Service) registerLocked(j *job) {
	for _, spec := range j.specs {
		id, err := s.c.AddFunc(spec, func() { s.enqueue(j) })
		if err != nil {
			// Specs are validated at Add time; a failure here means the
			// parser configuration diverged.
			s.log.Error("register schedule", logx.String("job", j.name), logx.String("spec", spec), logx.Err(err))
			continue
		}
		j.ids = append(j.ids, id)
	}
}

// enqueue hands a fired trigger to the worker pool without blocking the
// cron goroutine. Overlap is resolved here: a job still running simply
// drops the trigger.
func (s *Service) enqueue(j *job) {
	if !j.busy.CompareAndSwap(false, true) {
		j.mu.Lock()
		j.skips++
		j.mu.Unlock()
		s.log.Warn("trigger dropped, job still running", logx.String("job", j.name))
		return
	}

	s.mu.Lock()
	queue := s.queue
	s.mu.Unlock()
	if queue == nil {
		j.busy.Store(false)
		return
	}
	select {
	case queue <- j:
	default:
		j.busy.Store(false)
		s.log.Warn("trigger dropped, queue full", logx.String("job", j.name))
	}
}

func (s *Service) worker(ctx context.Context, queue chan *job) {
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-queue:
			if !ok {
				return
			}
			s.execute(ctx, j)
		}
	}
}

func (s *Service) execute(ctx context.Context, j *job) {
	defer j.busy.Store(false)
	start := time.Now()

	err := j.run(ctx)

	j.mu.Lock()
	j.runs++
	j.lastRun = start
	j.lastDur = time.Since(start)
	j.lastErr = err
	j.mu.Unlock()

	if err != nil {
		s.log.Error("job failed", logx.String("job", j.name), logx.Duration("took", time.Since(start)), logx.Err(err))
		return
	}
	s.log.Debug("job finished", logx.String("job", j.name), logx.Duration("took", time.Since(start)))
}
