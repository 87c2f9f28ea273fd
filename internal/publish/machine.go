// Package publish drives one publish attempt through a channel's protocol
// as an explicit finite state machine. Synchronous channels finish in a
// single submit transition; asynchronous channels stage a remote container
// and wait for it with a bounded poll loop. Waiting is a first-class
// transition (PROCESSING with attempts++), not an implicit sleep, and no
// state is ever revisited beyond that bounded loop.
package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dealcast/internal/channel"
	"dealcast/internal/format"
	"dealcast/pkg/logx"
)

// State of one publish job.
type State int

const (
	StateInit State = iota
	StateContainerCreated
	StateProcessing
	StateReady
	StatePublished
	StateFailed
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateContainerCreated:
		return "CONTAINER_CREATED"
	case StateProcessing:
		return "PROCESSING"
	case StateReady:
		return "READY"
	case StatePublished:
		return "PUBLISHED"
	case StateFailed:
		return "FAILED"
	case StateTimedOut:
		return "TIMED_OUT"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether a job in this state is finished.
func (s State) Terminal() bool {
	return s == StatePublished || s == StateFailed || s == StateTimedOut
}

// ErrProcessingTimeout marks a job whose remote processing never finished
// within the configured poll budget.
var ErrProcessingTimeout = errors.New("remote processing timed out")

// Result is the tagged outcome returned to the orchestrator.
type Result struct {
	JobID    string
	State    State
	RemoteID string
	Attempts int
	Err      error
}

func (r Result) Succeeded() bool { return r.State == StatePublished }

// SleepFunc suspends between poll attempts. Tests inject their own so the
// poll loop runs without wall-clock time.
type SleepFunc func(ctx context.Context, d time.Duration) error

func defaultSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	tmr := time.NewTimer(d)
	defer tmr.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-tmr.C:
		return nil
	}
}

// Options tunes the asynchronous poll loop.
type Options struct {
	PollInterval    time.Duration
	MaxPollAttempts int
	Sleep           SleepFunc
	Log             logx.Logger
}

type Machine struct {
	opt Options
}

func New(opt Options) *Machine {
	if opt.Sleep == nil {
		opt.Sleep = defaultSleep
	}
	if opt.PollInterval <= 0 {
		opt.PollInterval = 30 * time.Second
	}
	if opt.MaxPollAttempts <= 0 {
		opt.MaxPollAttempts = 10
	}
	if opt.Log.IsZero() {
		opt.Log = logx.Nop()
	}
	return &Machine{opt: opt}
}

// RunSync performs a single-call publish: INIT -> PUBLISHED | FAILED.
func (m *Machine) RunSync(ctx context.Context, api channel.SyncAPI, p format.Payload) Result {
	res := Result{JobID: uuid.NewString(), State: StateInit}

	remoteID, err := api.Submit(ctx, p)
	if err != nil {
		res.State = StateFailed
		res.Err = err
		return res
	}
	res.State = StatePublished
	res.RemoteID = remoteID
	return res
}

// RunAsync performs the container publish protocol:
//
//	INIT -> CONTAINER_CREATED -> (PROCESSING)* -> READY -> PUBLISHED
//
// Remote ERROR moves to FAILED (terminal, no retry). Exhausting the poll
// budget moves to TIMED_OUT (terminal).
func (m *Machine) RunAsync(ctx context.Context, api channel.AsyncAPI, p format.Payload) Result {
	res := Result{JobID: uuid.NewString(), State: StateInit}
	log := m.opt.Log.With(logx.String("job", res.JobID))

	containerID, err := api.CreateContainer(ctx, p)
	if err != nil {
		res.State = StateFailed
		res.Err = err
		return res
	}
	res.State = StateContainerCreated
	log.Debug("container created", logx.String("container", containerID))

	st, err := m.awaitContainer(ctx, api, containerID, &res)
	if err != nil || st != StateReady {
		return res
	}

	remoteID, err := api.Publish(ctx, containerID)
	if err != nil {
		res.State = StateFailed
		res.Err = err
		return res
	}
	res.State = StatePublished
	res.RemoteID = remoteID
	return res
}

// awaitContainer drives the bounded poll loop for one container. On
// success it sets res.State to READY and returns it; any other outcome is
// written into res as a terminal state. The attempt budget is per
// container: res.Attempts accumulates the total across a carousel, but a
// child never inherits the budget earlier children consumed.
func (m *Machine) awaitContainer(ctx context.Context, api channel.AsyncAPI, containerID string, res *Result) (State, error) {
	log := m.opt.Log.With(logx.String("job", res.JobID), logx.String("container", containerID))

	attempts := 0
	for {
		status, err := api.Status(ctx, containerID)
		if err != nil {
			res.State = StateFailed
			res.Err = err
			return res.State, err
		}

		switch status {
		case channel.StatusFinished:
			res.State = StateReady
			return StateReady, nil

		case channel.StatusError:
			res.State = StateFailed
			res.Err = fmt.Errorf("remote processing failed for container %s", containerID)
			return res.State, res.Err

		case channel.StatusInProgress:
			attempts++
			res.Attempts++
			if attempts >= m.opt.MaxPollAttempts {
				res.State = StateTimedOut
				res.Err = ErrProcessingTimeout
				log.Warn("poll budget exhausted", logx.Int("attempts", attempts))
				return res.State, res.Err
			}
			res.State = StateProcessing
			if err := m.opt.Sleep(ctx, m.opt.PollInterval); err != nil {
				res.State = StateFailed
				res.Err = err
				return res.State, err
			}

		default:
			res.State = StateFailed
			res.Err = fmt.Errorf("unknown processing status %v", status)
			return res.State, res.Err
		}
	}
}
