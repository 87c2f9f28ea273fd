// Package app assembles the distribution pipeline from configuration:
// logging, the dedup ledger, the deal source, channel clients, the
// orchestrator, the scheduler and the operator command surface.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"dealcast/internal/channel/mediagraph"
	"dealcast/internal/channel/microblog"
	"dealcast/internal/channel/telegram"
	"dealcast/internal/config"
	"dealcast/internal/format"
	"dealcast/internal/ledger"
	"dealcast/internal/models"
	"dealcast/internal/operator"
	"dealcast/internal/orchestrator"
	"dealcast/internal/ratelimit"
	"dealcast/internal/roundup"
	"dealcast/internal/scheduler"
	"dealcast/internal/source"
	"dealcast/pkg/logx"
)

type App struct {
	mgr    *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	led   ledger.Ledger
	orch  *orchestrator.Orchestrator
	sched *scheduler.Service
	bot   *tele.Bot

	runCancel context.CancelFunc
	wg        sync.WaitGroup
}

// New builds the pipeline from the manager's committed config. The
// manager must have loaded successfully before New is called.
func New(mgr *config.Manager) (*App, error) {
	cfg := mgr.Get()
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}

	logSvc, log := logx.New(logConfig(cfg))
	mgr.SetLogger(log.With(logx.String("component", "config")))

	a := &App{mgr: mgr, logSvc: logSvc, log: log}
	if err := a.build(cfg); err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	return a, nil
}

func logConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Relay: logx.RelayConfig{
			Enabled:    cfg.Logging.Relay.Enabled,
			MinLevel:   cfg.Logging.Relay.MinLevel,
			RatePerSec: cfg.Logging.Relay.RatePerSec,
		},
	}
}

func (a *App) build(cfg *config.Config) error {
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
	if err != nil {
		return err
	}
	led, err := ledger.Open(ledger.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, a.log.With(logx.String("component", "ledger")))
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	a.led = led

	srcTimeout, err := config.ParseDurationOrDefault("source.timeout", cfg.Source.Timeout, 15*time.Second)
	if err != nil {
		return err
	}
	src := source.NewClient(source.Config{
		BaseURL: cfg.Source.BaseURL,
		APIKey:  cfg.Source.APIKey,
		Timeout: srcTimeout,
	})

	a.orch = orchestrator.New(src, led, a.log.With(logx.String("component", "orchestrator")))
	a.orch.SetDryRun(cfg.DryRun)

	if needsBot(cfg) && cfg.Telegram.Token != "" {
		pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
		if err != nil {
			return err
		}
		bot, err := telegram.NewBot(telegram.Config{
			Token:       cfg.Telegram.Token,
			PollTimeout: pollTimeout,
		})
		if err != nil {
			return fmt.Errorf("telegram bot: %w", err)
		}
		a.bot = bot
	}

	if err := a.registerChannels(cfg); err != nil {
		return err
	}

	a.orch.SetRoundup(roundup.New(src, roundup.Config{
		TopN:      cfg.Roundup.TopN,
		Window:    time.Duration(cfg.Roundup.WindowDays) * 24 * time.Hour,
		CharLimit: cfg.Channels.Microblog.CharLimit,
	}))

	a.sched = scheduler.New(scheduler.Config{
		Enabled:  cfg.Scheduler.Enabled,
		Timezone: cfg.Scheduler.Timezone,
		Workers:  cfg.Scheduler.Workers,
	}, a.log.With(logx.String("component", "scheduler")))
	if err := a.registerJobs(cfg); err != nil {
		return err
	}

	if a.bot != nil && len(cfg.Telegram.OwnerUserIDs) > 0 {
		operator.New(a.bot, a.orch, a.sched, operator.Config{
			OwnerIDs: cfg.Telegram.OwnerUserIDs,
		}, a.log.With(logx.String("component", "operator"))).Register()

		if cfg.Logging.Relay.Enabled {
			a.logSvc.SetRelay(telegram.NewRelay(a.bot, cfg.Telegram.OwnerUserIDs[0]))
		}
	}
	return nil
}

// needsBot reports whether any configured surface requires the Telegram
// bot connection.
func needsBot(cfg *config.Config) bool {
	return cfg.Channels.ChatBot.Enabled || len(cfg.Telegram.OwnerUserIDs) > 0
}

// registerChannels wires every enabled channel that carries complete
// credentials. A credential gap disables just that channel: it is logged
// once and the rest of the pipeline keeps running.
func (a *App) registerChannels(cfg *config.Config) error {
	if mc := cfg.Channels.Microblog; mc.Enabled {
		if err := cfg.CredentialError("microblog"); err != nil {
			a.log.Warn("channel not registered", logx.Stringer("channel", models.ChannelMicroblog), logx.Err(err))
		} else {
			client, err := microblog.New(microblog.Config{BaseURL: mc.BaseURL, Token: mc.Token})
			if err != nil {
				return err
			}
			if err := a.registerTarget(models.ChannelMicroblog, mc, orchestrator.Target{Sync: client}); err != nil {
				return err
			}
		}
	}

	if mg := cfg.Channels.MediaGraph; mg.Enabled {
		if err := cfg.CredentialError("mediagraph"); err != nil {
			a.log.Warn("channel not registered", logx.Stringer("channel", models.ChannelMediaGraph), logx.Err(err))
		} else {
			client, err := mediagraph.New(mediagraph.Config{BaseURL: mg.BaseURL, Token: mg.Token, AccountID: mg.AccountID})
			if err != nil {
				return err
			}
			if err := a.registerTarget(models.ChannelMediaGraph, mg, orchestrator.Target{Async: client}); err != nil {
				return err
			}
		}
	}

	if cb := cfg.Channels.ChatBot; cb.Enabled {
		if err := cfg.CredentialError("chatbot"); err != nil || a.bot == nil {
			if err == nil {
				err = fmt.Errorf("telegram bot unavailable")
			}
			a.log.Warn("channel not registered", logx.Stringer("channel", models.ChannelChatBot), logx.Err(err))
		} else {
			ch := telegram.New(a.bot, cb.ChatID)
			if err := a.registerTarget(models.ChannelChatBot, cb, orchestrator.Target{Sync: ch}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *App) registerTarget(ch models.Channel, cc config.ChannelConfig, base orchestrator.Target) error {
	// No injected random source: hook variants are keyed to the deal id,
	// which keeps repeated dry runs of the same deal identical.
	f, err := format.For(ch, format.Options{CharLimit: cc.CharLimit})
	if err != nil {
		return err
	}
	pacing, err := config.ParseDurationOrDefault(string(ch)+".pacing_delay", cc.PacingDelay, 0)
	if err != nil {
		return err
	}
	pollInterval, err := config.ParseDurationOrDefault(string(ch)+".poll_interval", cc.PollInterval, 30*time.Second)
	if err != nil {
		return err
	}

	base.Channel = ch
	base.Formatter = f
	base.ScoreThreshold = cc.ScoreThreshold
	base.Policy = ratelimit.Policy{
		MaxPerWindow: cc.MaxPerWindow,
		Window:       time.Duration(cc.WindowHours) * time.Hour,
		MaxPerRun:    cc.MaxPostsPerRun,
		PacingDelay:  pacing,
	}
	base.PollInterval = pollInterval
	base.MaxPollAttempts = cc.MaxPollAttempts
	return a.orch.Register(base)
}

func (a *App) registerJobs(cfg *config.Config) error {
	channels := []struct {
		ch models.Channel
		cc config.ChannelConfig
	}{
		{models.ChannelMicroblog, cfg.Channels.Microblog},
		{models.ChannelMediaGraph, cfg.Channels.MediaGraph},
		{models.ChannelChatBot, cfg.Channels.ChatBot},
	}

	registered := make(map[models.Channel]bool)
	for _, ch := range a.orch.Channels() {
		registered[ch] = true
	}

	for _, entry := range channels {
		// Channels skipped for missing credentials get no schedule either.
		if !entry.cc.Enabled || !registered[entry.ch] {
			continue
		}
		specs, err := cycleSpecs(entry.cc)
		if err != nil {
			return fmt.Errorf("channel %s: %w", entry.ch, err)
		}
		if len(specs) == 0 {
			// Operator-triggered only.
			continue
		}
		ch := entry.ch
		err = a.sched.Add("cycle-"+string(ch), specs, func(ctx context.Context) error {
			_, err := a.orch.RunCycle(ctx, ch)
			return err
		})
		if err != nil {
			return err
		}
	}

	if cfg.Roundup.Enabled && registered[models.ChannelMicroblog] {
		spec := cfg.Roundup.Schedule
		if spec == "" {
			spec = "0 18 * * 0" // sunday evening
		}
		err := a.sched.Add("roundup", []string{spec}, func(ctx context.Context) error {
			_, err := a.orch.RunRoundup(ctx)
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// cycleSpecs derives cron specs from a channel's schedule config: fixed
// post times win, then a cron spec, then a plain interval ("45m").
func cycleSpecs(cc config.ChannelConfig) ([]string, error) {
	if len(cc.PostTimes) > 0 {
		return scheduler.SpecsForPostTimes(cc.PostTimes)
	}
	if cc.Schedule == "" {
		return nil, nil
	}
	if d, err := time.ParseDuration(cc.Schedule); err == nil {
		if d < time.Minute {
			return nil, fmt.Errorf("interval %q too short", cc.Schedule)
		}
		return []string{"@every " + d.String()}, nil
	}
	return []string{cc.Schedule}, nil
}

// Start launches the scheduler, the bot poll loop and the config watcher.
func (a *App) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	a.runCancel = cancel

	a.sched.Start(runCtx)

	if a.bot != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.log.Info("telegram polling started")
			a.bot.Start() // blocks until Stop
		}()
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.mgr.Watch(runCtx); err != nil && runCtx.Err() == nil {
			a.log.Warn("config watcher exited", logx.Err(err))
		}
	}()

	updates := a.mgr.Subscribe(4)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.mgr.Unsubscribe(updates)
		for {
			select {
			case <-runCtx.Done():
				return
			case cfg, ok := <-updates:
				if !ok {
					return
				}
				a.applyReload(cfg)
			}
		}
	}()

	a.log.Info("pipeline started", logx.Bool("dry_run", a.orch.DryRun()))
}

// applyReload applies the hot-reloadable subset of a config change:
// logging sinks/levels and the dry-run flag. Channel topology and
// schedules take effect on the next restart.
func (a *App) applyReload(cfg *config.Config) {
	a.logSvc.Apply(logConfig(cfg))
	if cfg.DryRun != a.orch.DryRun() {
		a.orch.SetDryRun(cfg.DryRun)
		a.log.Info("dry-run toggled by config reload", logx.Bool("dry_run", cfg.DryRun))
	}
	a.log.Info("configuration reloaded")
}

// Stop shuts everything down, bounded by ctx.
func (a *App) Stop(ctx context.Context) {
	if a.runCancel != nil {
		a.runCancel()
	}
	a.sched.Stop(ctx)
	if a.bot != nil {
		go a.bot.Stop()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	if err := a.led.Close(); err != nil {
		a.log.Warn("ledger close", logx.Err(err))
	}
	_ = a.logSvc.Close()
}
