package ledger

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"dealcast/internal/models"
	"dealcast/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteLedger struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Ledger, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("ledger path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	l := &sqliteLedger{db: db, log: log}
	if err := l.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *sqliteLedger) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = l.db.ExecContext(ctx, string(b))
	return err
}

func (l *sqliteLedger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

func (l *sqliteLedger) IsPosted(ctx context.Context, itemID string, channel models.Channel) (bool, error) {
	var one int
	err := l.db.QueryRowContext(ctx,
		`SELECT 1 FROM posts WHERE item_id = ? AND channel = ? AND status = 'succeeded' LIMIT 1`,
		itemID, string(channel),
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, unavailable(err)
	}
	return true, nil
}

func (l *sqliteLedger) RecordPosted(ctx context.Context, rec models.PostRecord) error {
	if rec.PostedAt.IsZero() {
		rec.PostedAt = time.Now()
	}
	// ON CONFLICT DO NOTHING keeps the append idempotent under the unique
	// succeeded index; a second success for the same pair is a no-op.
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO posts(item_id, channel, remote_post_id, posted_at, status)
		 VALUES(?,?,?,?,?) ON CONFLICT DO NOTHING`,
		rec.ItemID, string(rec.Channel), nullStr(rec.RemotePostID), rec.PostedAt.UnixMilli(), string(rec.Status),
	)
	return unavailable(err)
}

func (l *sqliteLedger) RecentCount(ctx context.Context, channel models.Channel, window time.Duration) (int, error) {
	since := time.Now().Add(-window).UnixMilli()
	var n int
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts WHERE channel = ? AND status = 'succeeded' AND posted_at >= ?`,
		string(channel), since,
	).Scan(&n)
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

func (l *sqliteLedger) Stats(ctx context.Context, channel models.Channel) (Stats, error) {
	st := Stats{Channel: channel}

	var last sql.NullInt64
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MAX(posted_at) FROM posts WHERE channel = ? AND status = 'succeeded'`,
		string(channel),
	).Scan(&st.Total, &last)
	if err != nil {
		return Stats{}, unavailable(err)
	}
	if last.Valid {
		st.LastPosted = time.UnixMilli(last.Int64)
	}

	var err24, err7 error
	st.Last24h, err24 = l.RecentCount(ctx, channel, 24*time.Hour)
	st.Last7d, err7 = l.RecentCount(ctx, channel, 7*24*time.Hour)
	if err24 != nil {
		return Stats{}, err24
	}
	if err7 != nil {
		return Stats{}, err7
	}
	return st, nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
