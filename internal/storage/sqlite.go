package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "clickd/pkg/logx"
)

//go:embed migrations.sql
var migrationsSQL string

type sqliteStore struct {
	db   *sql.DB
	log  logx.Logger
	keep int
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.ExecContext(context.Background(), migrationsSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return &sqliteStore{db: db, log: log, keep: cfg.KeepRecords}, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) RecordSession(ctx context.Context, r SessionRecord) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions(id, origin, delay, kind, button, repeat_mode, started_at, ended_at, clicks, dropped, outcome, reason, err)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET ended_at=excluded.ended_at, clicks=excluded.clicks,
		   dropped=excluded.dropped, outcome=excluded.outcome, reason=excluded.reason, err=excluded.err`,
		r.ID, nullStr(r.Origin), r.Delay, r.Kind, r.Button, r.Repeat,
		r.StartedAt.UnixMilli(), r.EndedAt.UnixMilli(), int64(r.Clicks), int64(r.Dropped),
		r.Outcome, nullStr(r.Reason), nullStr(r.Error),
	)
	if err != nil {
		return err
	}
	pctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := s.prune(pctx); err != nil {
		s.log.Debug("session prune failed", logx.Err(err))
	}
	return nil
}

func (s *sqliteStore) RecentSessions(ctx context.Context, limit int) ([]SessionRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	if limit <= 0 {
		limit = s.keep
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, origin, delay, kind, button, repeat_mode, started_at, ended_at, clicks, dropped, outcome, reason, err
		 FROM sessions ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var (
			r                      SessionRecord
			origin, reason, errStr sql.NullString
			started, ended         int64
			clicks, dropped        int64
		)
		if err := rows.Scan(&r.ID, &origin, &r.Delay, &r.Kind, &r.Button, &r.Repeat,
			&started, &ended, &clicks, &dropped, &r.Outcome, &reason, &errStr); err != nil {
			return nil, err
		}
		r.Origin, r.Reason, r.Error = origin.String, reason.String, errStr.String
		r.StartedAt, r.EndedAt = time.UnixMilli(started), time.UnixMilli(ended)
		r.Clicks, r.Dropped = uint64(clicks), uint64(dropped)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteStore) prune(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id NOT IN (SELECT id FROM sessions ORDER BY started_at DESC, rowid DESC LIMIT ?)`,
		s.keep)
	return err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
