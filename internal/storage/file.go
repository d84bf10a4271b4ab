package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "clickd/pkg/logx"
)

// fileStore keeps history in <prefix>.sessions.jsonl (append-only JSON
// Lines). Every KeepRecords appends the file is rewritten with only the
// newest KeepRecords lines.
type fileStore struct {
	log  logx.Logger
	path string
	keep int

	mu      sync.Mutex
	f       *os.File
	appends int
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	full := filepath.Join(dir, base) + ".sessions.jsonl"

	f, err := os.OpenFile(full, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return &fileStore{log: log, path: full, keep: cfg.KeepRecords, f: f}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

func (s *fileStore) RecordSession(ctx context.Context, rec SessionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return errors.New("session file closed")
	}
	if err := json.NewEncoder(s.f).Encode(rec); err != nil {
		return err
	}
	s.appends++
	if s.appends%s.keep == 0 {
		if err := s.compactLocked(); err != nil {
			s.log.Warn("session history compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) RecentSessions(ctx context.Context, limit int) ([]SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := readRecords(s.path)
	if err != nil {
		return nil, err
	}
	n := len(recs)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]SessionRecord, 0, n)
	for i := len(recs) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, recs[i])
	}
	return out, nil
}

// compactLocked rewrites the file with the newest s.keep records.
func (s *fileStore) compactLocked() error {
	recs, err := readRecords(s.path)
	if err != nil {
		return err
	}
	if len(recs) <= s.keep {
		return nil
	}
	recs = recs[len(recs)-s.keep:]

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	for _, r := range recs {
		if err := enc.Encode(r); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := f.Close(); err != nil {
		return err
	}

	_ = s.f.Close()
	s.f = nil
	if err := os.Rename(tmp, s.path); err != nil {
		return err
	}
	nf, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	s.f = nf
	s.log.Debug("session history compacted", logx.Int("kept", len(recs)))
	return nil
}

// readRecords loads every well-formed line; a torn last line is skipped.
func readRecords(path string) ([]SessionRecord, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []SessionRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var r SessionRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil || r.ID == "" {
			continue
		}
		out = append(out, r)
	}
	return out, sc.Err()
}
