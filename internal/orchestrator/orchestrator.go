// Package orchestrator runs distribution cycles: it pulls scored deal
// candidates, filters them against the publish ledger, clamps the batch to
// the channel's remaining rate capacity and walks the survivors through
// format and publish one at a time. Overlapping triggers for the same
// channel are dropped, so at most one cycle per channel is in flight.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"dealcast/internal/channel"
	"dealcast/internal/format"
	"dealcast/internal/ledger"
	"dealcast/internal/models"
	"dealcast/internal/publish"
	"dealcast/internal/ratelimit"
	"dealcast/internal/source"
	"dealcast/pkg/logx"
)

// Cycle outcome reasons surfaced on CycleReport.Reason.
const (
	ReasonRateLimited    = "rate_limited"
	ReasonAlreadyRunning = "already_running"
	ReasonAlreadyPosted  = "already_posted"
	ReasonNoCandidates   = "no_candidates"
	ReasonNoDeals        = "no_deals"
)

// candidate fetch headroom over capacity, so ledger-filtered items can be
// replaced by the next best candidate within the same cycle.
const fetchHeadroom = 4

// Target binds one channel to its formatter, API client and rate policy.
// Exactly one of Sync or Async must be set.
type Target struct {
	Channel        models.Channel
	Formatter      format.Formatter
	Sync           channel.SyncAPI
	Async          channel.AsyncAPI
	Policy         ratelimit.Policy
	ScoreThreshold float64

	// PollInterval and MaxPollAttempts tune the async publish wait.
	PollInterval    time.Duration
	MaxPollAttempts int
}

type target struct {
	Target
	busy    atomic.Bool
	echo    *channel.Echo
	machine *publish.Machine
}

// ThreadComposer plans the weekly roundup thread.
type ThreadComposer interface {
	Compose(ctx context.Context) (ThreadPlan, error)
}

// ThreadPlan is a composed, length-validated thread ready for publishing.
type ThreadPlan struct {
	// ID is stable per period so repeated triggers dedup through the ledger.
	ID       string
	Segments []format.Payload
}

// Orchestrator drives distribution cycles over registered channel targets.
type Orchestrator struct {
	src     source.Source
	led     ledger.Ledger
	roundup ThreadComposer
	log     logx.Logger
	dryRun  atomic.Bool

	mu      sync.RWMutex
	targets map[models.Channel]*target
}

func New(src source.Source, led ledger.Ledger, log logx.Logger) *Orchestrator {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Orchestrator{
		src:     src,
		led:     led,
		log:     log,
		targets: make(map[models.Channel]*target),
	}
}

// SetRoundup installs the thread composer used by RunRoundup.
func (o *Orchestrator) SetRoundup(c ThreadComposer) { o.roundup = c }

// SetDryRun toggles dry-run for subsequent cycles. In dry-run everything
// up to and including formatting runs for real, publishes go to an echo
// stand-in and nothing is recorded in the ledger.
func (o *Orchestrator) SetDryRun(on bool) { o.dryRun.Store(on) }

func (o *Orchestrator) DryRun() bool { return o.dryRun.Load() }

// Register adds a channel target. Registering the same channel twice
// replaces the earlier binding.
func (o *Orchestrator) Register(t Target) error {
	if t.Formatter == nil {
		return fmt.Errorf("target %s: formatter required", t.Channel)
	}
	if (t.Sync == nil) == (t.Async == nil) {
		return fmt.Errorf("target %s: exactly one of Sync or Async must be set", t.Channel)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.targets[t.Channel] = &target{
		Target: t,
		echo:   channel.NewEcho(t.Channel),
		machine: publish.New(publish.Options{
			PollInterval:    t.PollInterval,
			MaxPollAttempts: t.MaxPollAttempts,
			Log:             o.log.With(logx.Stringer("channel", t.Channel)),
		}),
	}
	return nil
}

// Channels lists the registered channels in registration-independent
// stable order.
func (o *Orchestrator) Channels() []models.Channel {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]models.Channel, 0, len(o.targets))
	for _, ch := range models.Channels() {
		if _, ok := o.targets[ch]; ok {
			out = append(out, ch)
		}
	}
	return out
}

func (o *Orchestrator) lookup(ch models.Channel) (*target, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	t, ok := o.targets[ch]
	if !ok {
		return nil, fmt.Errorf("channel %s is not registered", ch)
	}
	return t, nil
}

// RunCycle executes one distribution cycle for a channel. A second
// trigger while a cycle is running returns immediately with
// Reason=already_running. Ledger unavailability aborts the cycle; the
// items are retried on the next trigger.
func (o *Orchestrator) RunCycle(ctx context.Context, ch models.Channel) (models.CycleReport, error) {
	report := models.CycleReport{Channel: ch, DryRun: o.DryRun()}

	t, err := o.lookup(ch)
	if err != nil {
		return report, err
	}
	if !t.busy.CompareAndSwap(false, true) {
		report.Reason = ReasonAlreadyRunning
		return report, nil
	}
	defer t.busy.Store(false)

	log := o.log.With(logx.Stringer("channel", ch))

	capacity, err := ratelimit.Capacity(ctx, o.led, ch, t.Policy)
	if err != nil {
		return report, err
	}
	if capacity == 0 {
		report.Reason = ReasonRateLimited
		log.Info("cycle skipped, window budget exhausted")
		return report, nil
	}

	candidates, err := o.src.FetchCandidates(ctx, t.ScoreThreshold, capacity*fetchHeadroom)
	if err != nil {
		return report, fmt.Errorf("fetch candidates: %w", err)
	}
	if len(candidates) == 0 {
		report.Reason = ReasonNoCandidates
		return report, nil
	}

	pacer := ratelimit.NewPacer(t.Policy.PacingDelay)
	for _, deal := range candidates {
		// Failed submissions spend capacity too; headroom only replaces
		// ledger-skipped items, never grows the submission count.
		if report.Posted+report.Errors >= capacity {
			break
		}

		posted, err := o.led.IsPosted(ctx, deal.ID, ch)
		if err != nil {
			return report, err
		}
		if posted {
			report.Skipped++
			continue
		}

		if err := o.publishOne(ctx, t, pacer, deal, &report); err != nil {
			return report, err
		}
	}

	log.Info("cycle finished",
		logx.Int("posted", report.Posted),
		logx.Int("skipped", report.Skipped),
		logx.Int("errors", report.Errors),
		logx.Bool("dry_run", report.DryRun))
	return report, nil
}

// publishOne formats and publishes a single deal, updating the report.
// Remote and formatting failures are isolated to the item; only ledger
// failures and context cancellation bubble up as cycle errors.
func (o *Orchestrator) publishOne(ctx context.Context, t *target, pacer *ratelimit.Pacer, deal models.Deal, report *models.CycleReport) error {
	log := o.log.With(logx.Stringer("channel", t.Channel), logx.String("deal", deal.ID))

	payload, err := t.Formatter.Format(deal)
	if err != nil {
		if errors.Is(err, format.ErrNoMedia) {
			report.Skipped++
			log.Debug("skipped, channel requires media")
			return nil
		}
		report.Errors++
		log.Warn("format failed", logx.Err(err))
		return nil
	}

	if report.DryRun {
		res := o.runMachine(ctx, t, payload, true)
		if res.Succeeded() {
			report.Posted++
			report.Echoes = append(report.Echoes, payload.Text)
		} else {
			report.Errors++
		}
		return ctx.Err()
	}

	// Pace real publishes only; the first item in a cycle is never delayed
	// because the pacer starts with a full token.
	if err := pacer.Wait(ctx); err != nil {
		return err
	}

	res := o.runMachine(ctx, t, payload, false)
	if !res.Succeeded() {
		report.Errors++
		log.Warn("publish failed",
			logx.String("state", res.State.String()),
			logx.Err(res.Err))
		return o.recordAttempt(ctx, t.Channel, deal.ID, "", models.PostFailed)
	}

	if err := o.recordAttempt(ctx, t.Channel, deal.ID, res.RemoteID, models.PostSucceeded); err != nil {
		return err
	}
	report.Posted++
	log.Info("published", logx.String("remote_id", res.RemoteID))
	return nil
}

func (o *Orchestrator) runMachine(ctx context.Context, t *target, p format.Payload, dryRun bool) publish.Result {
	switch {
	case dryRun:
		if t.Sync != nil {
			return t.machine.RunSync(ctx, t.echo, p)
		}
		return t.machine.RunAsync(ctx, t.echo, p)
	case t.Sync != nil:
		return t.machine.RunSync(ctx, t.Sync, p)
	default:
		return t.machine.RunAsync(ctx, t.Async, p)
	}
}

func (o *Orchestrator) recordAttempt(ctx context.Context, ch models.Channel, itemID, remoteID string, status models.PostStatus) error {
	return o.led.RecordPosted(ctx, models.PostRecord{
		ItemID:       itemID,
		Channel:      ch,
		RemotePostID: remoteID,
		PostedAt:     time.Now().UTC(),
		Status:       status,
	})
}

// RunSingle publishes one specific deal to a channel, bypassing the score
// threshold but not the ledger: an already posted deal is reported as
// skipped, not re-published. It shares the channel's single-flight guard
// with RunCycle, so a trigger during a running cycle is dropped.
func (o *Orchestrator) RunSingle(ctx context.Context, ch models.Channel, dealID string) (models.CycleReport, error) {
	report := models.CycleReport{Channel: ch, DryRun: o.DryRun()}

	t, err := o.lookup(ch)
	if err != nil {
		return report, err
	}
	if !t.busy.CompareAndSwap(false, true) {
		report.Reason = ReasonAlreadyRunning
		return report, nil
	}
	defer t.busy.Store(false)

	deal, err := o.src.FetchDeal(ctx, dealID)
	if err != nil {
		return report, fmt.Errorf("fetch deal %s: %w", dealID, err)
	}

	posted, err := o.led.IsPosted(ctx, deal.ID, ch)
	if err != nil {
		return report, err
	}
	if posted {
		report.Skipped = 1
		report.Reason = ReasonAlreadyPosted
		return report, nil
	}

	if err := o.publishOne(ctx, t, nil, deal, &report); err != nil {
		return report, err
	}
	return report, nil
}

// RunRoundup composes and publishes the weekly thread on the thread
// channel. The plan id is deduped through the ledger so repeated triggers
// within the same period post nothing.
func (o *Orchestrator) RunRoundup(ctx context.Context) (models.CycleReport, error) {
	const ch = models.ChannelMicroblog
	report := models.CycleReport{Channel: ch, DryRun: o.DryRun()}

	if o.roundup == nil {
		return report, errors.New("no roundup composer configured")
	}
	t, err := o.lookup(ch)
	if err != nil {
		return report, err
	}
	if t.Sync == nil {
		return report, fmt.Errorf("channel %s cannot publish threads", ch)
	}
	if !t.busy.CompareAndSwap(false, true) {
		report.Reason = ReasonAlreadyRunning
		return report, nil
	}
	defer t.busy.Store(false)

	plan, err := o.roundup.Compose(ctx)
	if err != nil {
		return report, fmt.Errorf("compose roundup: %w", err)
	}
	if len(plan.Segments) == 0 {
		report.Reason = ReasonNoDeals
		return report, nil
	}

	posted, err := o.led.IsPosted(ctx, plan.ID, ch)
	if err != nil {
		return report, err
	}
	if posted {
		report.Skipped = len(plan.Segments)
		report.Reason = ReasonAlreadyPosted
		return report, nil
	}

	api := t.Sync
	if report.DryRun {
		api = channel.SyncAPI(t.echo)
	}

	results, chainErr := t.machine.RunChain(ctx, api, plan.Segments)
	for i, res := range results {
		if res.Succeeded() {
			report.Posted++
			if report.DryRun {
				report.Echoes = append(report.Echoes, plan.Segments[i].Text)
			}
		} else {
			report.Errors++
		}
	}

	if chainErr != nil {
		o.log.Warn("roundup thread incomplete",
			logx.String("plan", plan.ID),
			logx.Int("posted", report.Posted),
			logx.Err(chainErr))
		return report, nil
	}
	if report.DryRun {
		return report, nil
	}
	// The opener's remote id identifies the whole thread.
	return report, o.recordAttempt(ctx, ch, plan.ID, results[0].RemoteID, models.PostSucceeded)
}

// Stats returns the ledger statistics view for the operator surface.
func (o *Orchestrator) Stats(ctx context.Context, ch models.Channel) (ledger.Stats, error) {
	return o.led.Stats(ctx, ch)
}
