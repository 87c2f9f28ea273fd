package models

import (
	"fmt"
	"strings"
	"time"
)

// Channel identifies one external distribution target.
type Channel string

const (
	ChannelMicroblog  Channel = "microblog"
	ChannelMediaGraph Channel = "mediagraph"
	ChannelChatBot    Channel = "chatbot"
)

// Channels lists all known channels in a stable order.
func Channels() []Channel {
	return []Channel{ChannelMicroblog, ChannelMediaGraph, ChannelChatBot}
}

func ParseChannel(s string) (Channel, error) {
	switch Channel(strings.ToLower(strings.TrimSpace(s))) {
	case ChannelMicroblog:
		return ChannelMicroblog, nil
	case ChannelMediaGraph:
		return ChannelMediaGraph, nil
	case ChannelChatBot:
		return ChannelChatBot, nil
	}
	return "", fmt.Errorf("unknown channel %q", s)
}

func (c Channel) String() string { return string(c) }

type PostStatus string

const (
	PostSucceeded PostStatus = "succeeded"
	PostFailed    PostStatus = "failed"
)

// PostRecord is one row of the append-only publish log.
// At most one succeeded record may exist per (ItemID, Channel) pair;
// the ledger enforces this.
type PostRecord struct {
	ItemID       string
	Channel      Channel
	RemotePostID string
	PostedAt     time.Time
	Status       PostStatus
}

// CycleReport aggregates the outcome of one distribution cycle.
type CycleReport struct {
	Channel Channel
	Posted  int
	Skipped int
	Errors  int
	Reason  string
	DryRun  bool

	// Echoes holds fully rendered payload texts in dry-run mode so an
	// operator can review what would have been published.
	Echoes []string
}

func (r CycleReport) Summary() string {
	s := fmt.Sprintf("%s: posted=%d skipped=%d errors=%d", r.Channel, r.Posted, r.Skipped, r.Errors)
	if r.Reason != "" {
		s += " reason=" + r.Reason
	}
	if r.DryRun {
		s += " (dry-run)"
	}
	return s
}
