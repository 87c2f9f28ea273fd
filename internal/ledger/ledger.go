// Package ledger persists the append-only publish log that supplies
// idempotency (has this item been posted to this channel?) and rolling
// window counts for rate limiting.
//
// The ledger fails closed: any backing-store error is surfaced as
// ErrLedgerUnavailable and must abort the running cycle. Reporting
// "not posted" on a read error would risk duplicate publishes.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dealcast/internal/models"
	"dealcast/pkg/logx"
)

// ErrLedgerUnavailable wraps any backing-store failure.
var ErrLedgerUnavailable = errors.New("ledger unavailable")

// Config configures the ledger backing store.
//
// Driver values:
//   - "sqlite": SQLite database file (default when empty)
//   - "file":   dependency-free jsonl append log
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Stats is the read-only operator statistics view.
type Stats struct {
	Channel    models.Channel
	Total      int
	Last24h    int
	Last7d     int
	LastPosted time.Time // zero when nothing was ever posted
}

// Ledger is the persistence API used by the distribution pipeline.
// RecordPosted is the only mutator; records are never updated or expired.
type Ledger interface {
	IsPosted(ctx context.Context, itemID string, channel models.Channel) (bool, error)
	RecordPosted(ctx context.Context, rec models.PostRecord) error
	RecentCount(ctx context.Context, channel models.Channel, window time.Duration) (int, error)
	Stats(ctx context.Context, channel models.Channel) (Stats, error)
	Close() error
}

// Open initializes the configured ledger store.
func Open(cfg Config, log logx.Logger) (Ledger, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "file":
		return openFile(cfg, log)
	default:
		return nil, fmt.Errorf("unknown ledger driver: %s", cfg.Driver)
	}
}

func unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
}
