package operator

import (
	"context"
	"fmt"
	"strings"

	"dealcast/internal/models"
	"dealcast/pkg/logx"
)

func (s *Service) cmdPost(ctx context.Context, args []string) string {
	if len(args) < 1 {
		return "usage: /post <" + channelList(s.pipe.Channels()) + ">"
	}
	ch, err := models.ParseChannel(args[0])
	if err != nil {
		return err.Error()
	}

	rep, err := s.pipe.RunCycle(ctx, ch)
	if err != nil {
		s.log.Error("operator cycle failed", logx.Stringer("channel", ch), logx.Err(err))
		return fmt.Sprintf("cycle failed: %v", err)
	}
	return reportReply(rep)
}

func (s *Service) cmdPostOne(ctx context.Context, args []string) string {
	if len(args) < 2 {
		return "usage: /postone <channel> <dealID>"
	}
	ch, err := models.ParseChannel(args[0])
	if err != nil {
		return err.Error()
	}

	rep, err := s.pipe.RunSingle(ctx, ch, args[1])
	if err != nil {
		return fmt.Sprintf("post failed: %v", err)
	}
	return reportReply(rep)
}

func (s *Service) cmdRoundup(ctx context.Context, _ []string) string {
	rep, err := s.pipe.RunRoundup(ctx)
	if err != nil {
		return fmt.Sprintf("roundup failed: %v", err)
	}
	return reportReply(rep)
}

func (s *Service) cmdStats(ctx context.Context, args []string) string {
	channels := s.pipe.Channels()
	if len(args) >= 1 {
		ch, err := models.ParseChannel(args[0])
		if err != nil {
			return err.Error()
		}
		channels = []models.Channel{ch}
	}

	var b strings.Builder
	for _, ch := range channels {
		st, err := s.pipe.Stats(ctx, ch)
		if err != nil {
			fmt.Fprintf(&b, "%s: stats unavailable: %v\n", ch, err)
			continue
		}
		fmt.Fprintf(&b, "%s: total=%d 24h=%d 7d=%d", ch, st.Total, st.Last24h, st.Last7d)
		if !st.LastPosted.IsZero() {
			fmt.Fprintf(&b, " last=%s", st.LastPosted.UTC().Format("2006-01-02 15:04"))
		}
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return "no channels registered"
	}
	return strings.TrimRight(b.String(), "\n")
}

func (s *Service) cmdDryRun(_ context.Context, args []string) string {
	if len(args) < 1 {
		if s.pipe.DryRun() {
			return "dry-run is on"
		}
		return "dry-run is off"
	}
	switch strings.ToLower(args[0]) {
	case "on":
		s.pipe.SetDryRun(true)
		return "dry-run enabled: cycles render and echo, nothing publishes"
	case "off":
		s.pipe.SetDryRun(false)
		return "dry-run disabled"
	}
	return "usage: /dryrun [on|off]"
}

func (s *Service) cmdStatus(_ context.Context, _ []string) string {
	entries := s.sched.Status()
	if len(entries) == 0 {
		return "no scheduled jobs"
	}

	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s: runs=%d skips=%d", e.Name, e.Runs, e.Skips)
		if e.Running {
			b.WriteString(" [running]")
		}
		if !e.Next.IsZero() {
			fmt.Fprintf(&b, " next=%s", e.Next.Format("01-02 15:04"))
		}
		if e.LastErr != "" {
			fmt.Fprintf(&b, " last_err=%q", e.LastErr)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (s *Service) cmdHelp(_ context.Context, _ []string) string {
	return strings.Join([]string{
		"/post <channel> — run a distribution cycle now",
		"/postone <channel> <dealID> — publish one deal",
		"/roundup — publish the weekly thread",
		"/stats [channel] — ledger statistics",
		"/dryrun [on|off] — toggle dry-run",
		"/status — scheduler snapshot",
	}, "\n")
}

func channelList(channels []models.Channel) string {
	parts := make([]string, 0, len(channels))
	for _, ch := range channels {
		parts = append(parts, ch.String())
	}
	return strings.Join(parts, "|")
}

// reportReply renders a cycle report for the operator chat, echoing
// rendered payloads in dry-run so the output can be reviewed.
func reportReply(rep models.CycleReport) string {
	s := rep.Summary()
	if rep.DryRun && len(rep.Echoes) > 0 {
		var b strings.Builder
		b.WriteString(s)
		for i, echo := range rep.Echoes {
			fmt.Fprintf(&b, "\n--- %d ---\n%s", i+1, echo)
		}
		return b.String()
	}
	return s
}
