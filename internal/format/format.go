// Package format renders deals into channel-specific payloads.
//
// Formatters are pure: the same deal renders the same text on every call.
// The hook sentence comes from a fixed variant list, keyed to the deal id
// unless a random source is injected (tests pin the seed). Every formatter
// upholds the channel length invariant for every possible variant.
package format

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"

	"dealcast/internal/models"
)

// Default text limits per channel. A channel config may override them.
const (
	MicroblogLimit  = 280
	MediaGraphLimit = 2200
	ChatBotLimit    = 4096
)

// ErrNoMedia is returned when a media channel formatter gets a deal without
// an image. The orchestrator skips such deals instead of failing the cycle.
var ErrNoMedia = errors.New("deal has no media")

// Payload is the rendered content for one publish attempt.
type Payload struct {
	Text     string
	MediaURL string
	// ReplyTo carries the remote id of the previous segment in a thread
	// chain. It is injected right before submission, never at format time.
	ReplyTo string
	Tags    []string
}

// Formatter renders one channel's payloads.
type Formatter interface {
	Format(deal models.Deal) (Payload, error)
	Limit() int
}

// Options tunes a formatter.
type Options struct {
	// CharLimit overrides the channel default when > 0.
	CharLimit int
	// Rand selects hook variants. When nil the variant is keyed to the
	// deal id, so repeated renders of the same deal stay identical.
	Rand *rand.Rand
}

// For returns the formatter for a channel.
func For(channel models.Channel, opts Options) (Formatter, error) {
	switch channel {
	case models.ChannelMicroblog:
		return newMicroblog(opts), nil
	case models.ChannelMediaGraph:
		return newMediaGraph(opts), nil
	case models.ChannelChatBot:
		return newChatBot(opts), nil
	}
	return nil, fmt.Errorf("no formatter for channel %q", channel)
}

func limitOr(opts Options, def int) int {
	if opts.CharLimit > 0 {
		return opts.CharLimit
	}
	return def
}

// hookFor picks one hook sentence. Without a random source the pick is a
// stable function of the deal id, which keeps dry runs repeatable.
func hookFor(r *rand.Rand, dealID string, variants []string) string {
	if len(variants) == 0 {
		return ""
	}
	if r != nil {
		return variants[r.Intn(len(variants))]
	}
	h := fnv.New32a()
	h.Write([]byte(dealID))
	return variants[int(h.Sum32())%len(variants)]
}
