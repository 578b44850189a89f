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

	logx "jobmill/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Runs are appended to <prefix>.runs.jsonl (append-only JSON Lines). A small
// in-memory tail serves RecentRuns without re-reading the file; the tail is
// seeded from the file on open.
type fileStore struct {
	log logx.Logger

	mu   sync.Mutex
	file *os.File

	tail    []RunEntry
	tailCap int
}

const fileTailCap = 500

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(filepath.Base(path)))
	runsPath := filepath.Join(dir, base) + ".runs.jsonl"

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	st := &fileStore{log: log, tailCap: fileTailCap}
	st.seedTail(runsPath)

	f, err := os.OpenFile(runsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	st.file = f
	return st, nil
}

// seedTail loads the last tailCap entries from an existing runs file.
// Corrupt lines are skipped; history is best-effort.
func (s *fileStore) seedTail(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var e RunEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		s.tail = append(s.tail, e)
		if len(s.tail) > s.tailCap {
			s.tail = s.tail[len(s.tail)-s.tailCap:]
		}
	}
}

func (s *fileStore) AppendRun(ctx context.Context, e RunEntry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	b = append(b, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return ErrDisabled
	}
	if _, err := s.file.Write(b); err != nil {
		return err
	}
	s.tail = append(s.tail, e)
	if len(s.tail) > s.tailCap {
		s.tail = s.tail[len(s.tail)-s.tailCap:]
	}
	return nil
}

func (s *fileStore) RecentRuns(ctx context.Context, limit int) ([]RunEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.tail) {
		limit = len(s.tail)
	}
	out := make([]RunEntry, limit)
	copy(out, s.tail[len(s.tail)-limit:])
	return out, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
