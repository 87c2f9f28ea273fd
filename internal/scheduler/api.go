package scheduler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/robfig/cron/v3"
)

// Add registers a job under one or more cron specs. Specs are validated
// up front; registration on a running service takes effect immediately.
func (s *Service) Add(name string, specs []string, run JobFunc) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("job name required")
	}
	if run == nil {
		return fmt.Errorf("job %s: run func required", name)
	}
	if len(specs) == 0 {
		return fmt.Errorf("job %s: at least one schedule required", name)
	}
	for _, spec := range specs {
		if _, err := s.parser.Parse(spec); err != nil {
			return fmt.Errorf("job %s: bad schedule %q: %w", name, spec, err)
		}
	}

	j := &job{name: name, specs: specs, run: run}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.jobs {
		if existing.name == name {
			return fmt.Errorf("job %s already registered", name)
		}
	}
	s.jobs = append(s.jobs, j)
	if s.c != nil {
		s.registerLocked(j)
	}
	return nil
}

// AddPostTimes registers a job fired daily at fixed local times given as
// "HH:MM".
func (s *Service) AddPostTimes(name string, times []string, run JobFunc) error {
	specs, err := SpecsForPostTimes(times)
	if err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}
	return s.Add(name, specs, run)
}

// SpecsForPostTimes converts "HH:MM" post times into daily cron specs.
func SpecsForPostTimes(times []string) ([]string, error) {
	if len(times) == 0 {
		return nil, fmt.Errorf("at least one post time required")
	}
	specs := make([]string, 0, len(times))
	for _, raw := range times {
		var hh, mm int
		if _, err := fmt.Sscanf(strings.TrimSpace(raw), "%d:%d", &hh, &mm); err != nil {
			return nil, fmt.Errorf("bad post time %q: want HH:MM", raw)
		}
		if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
			return nil, fmt.Errorf("bad post time %q: out of range", raw)
		}
		specs = append(specs, fmt.Sprintf("%d %d * * *", mm, hh))
	}
	return specs, nil
}

// TriggerNow fires a job immediately through the normal overlap guard and
// worker pool. It fails when the service is stopped or the name unknown.
func (s *Service) TriggerNow(name string) error {
	s.mu.Lock()
	var target *job
	for _, j := range s.jobs {
		if j.name == name {
			target = j
			break
		}
	}
	running := s.c != nil
	s.mu.Unlock()

	if target == nil {
		return fmt.Errorf("unknown job %s", name)
	}
	if !running {
		return fmt.Errorf("scheduler is not running")
	}
	s.enqueue(target)
	return nil
}

// Status snapshots all registered jobs, sorted by name.
func (s *Service) Status() []Entry {
	s.mu.Lock()
	jobs := append([]*job(nil), s.jobs...)
	c := s.c
	ids := make(map[string][]cron.EntryID, len(jobs))
	for _, j := range jobs {
		ids[j.name] = append([]cron.EntryID(nil), j.ids...)
	}
	s.mu.Unlock()

	entries := make([]Entry, 0, len(jobs))
	for _, j := range jobs {
		j.mu.Lock()
		e := Entry{
			Name:     j.name,
			Specs:    append([]string(nil), j.specs...),
			Running:  j.busy.Load(),
			Runs:     j.runs,
			Skips:    j.skips,
			LastRun:  j.lastRun,
			LastTook: j.lastDur,
		}
		if j.lastErr != nil {
			e.LastErr = j.lastErr.Error()
		}
		j.mu.Unlock()

		if c != nil {
			for _, id := range ids[j.name] {
				entry := c.Entry(id)
				if !entry.Next.IsZero() && (e.Next.IsZero() || entry.Next.Before(e.Next)) {
					e.Next = entry.Next
				}
			}
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, k int) bool { return entries[i].Name < entries[k].Name })
	return entries
}
