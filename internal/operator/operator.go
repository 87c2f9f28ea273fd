// Package operator exposes the pipeline's manual controls as bot commands
// in the operator chat. Every command is restricted to configured owner
// ids; anyone else is silently ignored.
package operator

import (
	"context"
	"time"

	tele "gopkg.in/telebot.v4"

	"dealcast/internal/ledger"
	"dealcast/internal/models"
	"dealcast/internal/scheduler"
	"dealcast/pkg/logx"
)

// Pipeline is the slice of the orchestrator the operator drives.
type Pipeline interface {
	RunCycle(ctx context.Context, ch models.Channel) (models.CycleReport, error)
	RunSingle(ctx context.Context, ch models.Channel, dealID string) (models.CycleReport, error)
	RunRoundup(ctx context.Context) (models.CycleReport, error)
	Stats(ctx context.Context, ch models.Channel) (ledger.Stats, error)
	SetDryRun(on bool)
	DryRun() bool
	Channels() []models.Channel
}

// StatusProvider snapshots scheduler state for /status.
type StatusProvider interface {
	Status() []scheduler.Entry
}

// Config for the operator surface.
type Config struct {
	OwnerIDs       []int64
	CommandTimeout time.Duration // per-command budget, default 5m
}

type Service struct {
	bot   *tele.Bot
	pipe  Pipeline
	sched StatusProvider
	cfg   Config
	log   logx.Logger
}

func New(bot *tele.Bot, pipe Pipeline, sched StatusProvider, cfg Config, log logx.Logger) *Service {
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 5 * time.Minute
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{bot: bot, pipe: pipe, sched: sched, cfg: cfg, log: log}
}

// Register binds all command handlers. Call once before the bot starts.
func (s *Service) Register() {
	restricted := s.bot.Group()
	restricted.Use(s.ownersOnly)

	restricted.Handle("/post", s.wrap(s.cmdPost))
	restricted.Handle("/postone", s.wrap(s.cmdPostOne))
	restricted.Handle("/roundup", s.wrap(s.cmdRoundup))
	restricted.Handle("/stats", s.wrap(s.cmdStats))
	restricted.Handle("/dryrun", s.wrap(s.cmdDryRun))
	restricted.Handle("/status", s.wrap(s.cmdStatus))
	restricted.Handle("/help", s.wrap(s.cmdHelp))
}

func (s *Service) ownersOnly(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		sender := c.Sender()
		if sender == nil || !isOwner(s.cfg.OwnerIDs, sender.ID) {
			s.log.Debug("command from non-owner ignored",
				logx.Int64("from", senderID(sender)),
				logx.String("text", c.Text()))
			return nil
		}
		return next(c)
	}
}

func isOwner(owners []int64, id int64) bool {
	for _, o := range owners {
		if o == id {
			return true
		}
	}
	return false
}

func senderID(u *tele.User) int64 {
	if u == nil {
		return 0
	}
	return u.ID
}

// wrap adapts a command func into a telebot handler with a bounded context
// and a single reply.
func (s *Service) wrap(cmd func(ctx context.Context, args []string) string) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.CommandTimeout)
		defer cancel()
		return c.Reply(cmd(ctx, c.Args()))
	}
}
