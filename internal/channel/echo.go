package channel

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"dealcast/internal/format"
	"dealcast/internal/models"
)

// Echo is the dry-run stand-in for every remote API. It performs no network
// I/O, returns synthetic ids, and records every payload it sees so the
// operator can review what would have been published. Payloads still pass
// through the full formatter and length validation before reaching it.
type Echo struct {
	channel models.Channel

	mu   sync.Mutex
	seen []format.Payload
}

func NewEcho(ch models.Channel) *Echo {
	return &Echo{channel: ch}
}

// Seen returns a copy of every payload submitted so far.
func (e *Echo) Seen() []format.Payload {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]format.Payload(nil), e.seen...)
}

func (e *Echo) record(p format.Payload) {
	e.mu.Lock()
	e.seen = append(e.seen, p)
	e.mu.Unlock()
}

func (e *Echo) synthetic() string { return "dry-" + uuid.NewString() }

func (e *Echo) Submit(_ context.Context, p format.Payload) (string, error) {
	e.record(p)
	return e.synthetic(), nil
}

func (e *Echo) CreateContainer(_ context.Context, p format.Payload) (string, error) {
	e.record(p)
	return e.synthetic(), nil
}

func (e *Echo) Status(context.Context, string) (ProcessingStatus, error) {
	return StatusFinished, nil
}

func (e *Echo) Publish(context.Context, string) (string, error) {
	return e.synthetic(), nil
}

func (e *Echo) CreateGroup(_ context.Context, _ []string, p format.Payload) (string, error) {
	e.record(p)
	return e.synthetic(), nil
}
