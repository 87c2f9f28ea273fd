package ledger

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"dealcast/internal/models"
	"dealcast/pkg/logx"
)

// fileLedger is a dependency-free backend: one append-only JSON Lines file.
// On open, the log is replayed into an in-memory membership index and a
// per-channel list of succeeded publish times for window counts. The log is
// permanent; nothing is ever compacted away.
type fileLedger struct {
	log logx.Logger

	mu   sync.Mutex
	file *os.File

	posted    map[string]struct{}            // "itemID|channel" for succeeded rows
	succeeded map[models.Channel][]time.Time // posted-at times, append order
}

type fileRecord struct {
	ItemID       string `json:"item_id"`
	Channel      string `json:"channel"`
	RemotePostID string `json:"remote_post_id,omitempty"`
	PostedAt     int64  `json:"posted_at"` // unix milli
	Status       string `json:"status"`
}

func openFile(cfg Config, log logx.Logger) (Ledger, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("ledger path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	l := &fileLedger{
		log:       log,
		posted:    map[string]struct{}{},
		succeeded: map[models.Channel][]time.Time{},
	}
	if err := l.replay(path); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	l.file = f
	return l, nil
}

func (l *fileLedger) replay(path string) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lines := 0
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var rec fileRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			// A torn last line from a crash is tolerable; anything else
			// mid-file is not.
			l.log.Warn("skipping unreadable ledger line", logx.Int("line", lines+1), logx.Err(err))
			continue
		}
		l.index(rec)
		lines++
	}
	return sc.Err()
}

func (l *fileLedger) index(rec fileRecord) {
	if rec.Status != string(models.PostSucceeded) {
		return
	}
	ch := models.Channel(rec.Channel)
	l.posted[dedupKey(rec.ItemID, ch)] = struct{}{}
	l.succeeded[ch] = append(l.succeeded[ch], time.UnixMilli(rec.PostedAt))
}

func dedupKey(itemID string, ch models.Channel) string {
	return itemID + "|" + string(ch)
}

func (l *fileLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *fileLedger) IsPosted(ctx context.Context, itemID string, channel models.Channel) (bool, error) {
	_ = ctx
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return false, unavailable(errors.New("ledger closed"))
	}
	_, ok := l.posted[dedupKey(itemID, channel)]
	return ok, nil
}

func (l *fileLedger) RecordPosted(ctx context.Context, rec models.PostRecord) error {
	_ = ctx
	if rec.PostedAt.IsZero() {
		rec.PostedAt = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return unavailable(errors.New("ledger closed"))
	}
	if rec.Status == models.PostSucceeded {
		if _, dup := l.posted[dedupKey(rec.ItemID, rec.Channel)]; dup {
			return nil
		}
	}

	fr := fileRecord{
		ItemID:       rec.ItemID,
		Channel:      string(rec.Channel),
		RemotePostID: rec.RemotePostID,
		PostedAt:     rec.PostedAt.UnixMilli(),
		Status:       string(rec.Status),
	}
	b, err := json.Marshal(fr)
	if err != nil {
		return unavailable(err)
	}
	if _, err := l.file.Write(append(b, '\n')); err != nil {
		return unavailable(err)
	}
	l.index(fr)
	return nil
}

func (l *fileLedger) RecentCount(ctx context.Context, channel models.Channel, window time.Duration) (int, error) {
	_ = ctx
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return 0, unavailable(errors.New("ledger closed"))
	}
	since := time.Now().Add(-window)
	n := 0
	for _, at := range l.succeeded[channel] {
		if !at.Before(since) {
			n++
		}
	}
	return n, nil
}

func (l *fileLedger) Stats(ctx context.Context, channel models.Channel) (Stats, error) {
	_ = ctx
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return Stats{}, unavailable(errors.New("ledger closed"))
	}

	st := Stats{Channel: channel}
	now := time.Now()
	for _, at := range l.succeeded[channel] {
		st.Total++
		if now.Sub(at) <= 24*time.Hour {
			st.Last24h++
		}
		if now.Sub(at) <= 7*24*time.Hour {
			st.Last7d++
		}
		if at.After(st.LastPosted) {
			st.LastPosted = at
		}
	}
	return st, nil
}
