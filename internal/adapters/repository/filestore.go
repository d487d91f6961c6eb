package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/okian/combatpower/internal/domain/model"
	"github.com/okian/combatpower/pkg/metrics"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// FileStore keeps the ranking and the battles as two JSON arrays on disk,
// rewritten atomically after each change. The highest id ever assigned is
// kept in a sidecar file so deleted ids are never handed out again.
type FileStore struct {
	mu          sync.Mutex
	rankingPath string
	battlePath  string
	seqPath     string
	lastID      int64
	entries     []model.ScoreEntry
	battles     []model.BattleResult
	now         func() time.Time
}

// NewFileStore loads (or creates) the JSON files under the data directory.
func NewFileStore(_ context.Context, opts ...Option) (*FileStore, error) {
	o := buildOptions(opts)
	if err := os.MkdirAll(o.dataDir, dirPerm); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s := &FileStore{
		rankingPath: filepath.Join(o.dataDir, defaultRankingFile),
		battlePath:  filepath.Join(o.dataDir, defaultBattleFile),
		seqPath:     filepath.Join(o.dataDir, defaultSequenceFile),
		now:         o.now,
	}
	if err := readJSON(s.rankingPath, &s.entries); err != nil {
		return nil, fmt.Errorf("load ranking: %w", err)
	}
	if err := readJSON(s.battlePath, &s.battles); err != nil {
		return nil, fmt.Errorf("load battles: %w", err)
	}
	var seq sequence
	if err := readJSON(s.seqPath, &seq); err != nil {
		return nil, fmt.Errorf("load id sequence: %w", err)
	}
	s.lastID = max(seq.LastID, s.maxID())
	sortRanking(s.entries)
	return s, nil
}

// Backend implements Repository.
func (s *FileStore) Backend() string { return BackendJSON }

// Close implements Repository; every change is already on disk.
func (s *FileStore) Close() error { return nil }

// Save implements Store.Save.
func (s *FileStore) Save(_ context.Context, e model.ScoreEntry) (model.ScoreEntry, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryUpdateLatency(BackendJSON, elapsedMs(start)) }()

	if err := validateEntry(e); err != nil {
		return model.ScoreEntry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	lastID := s.lastID
	if e.ID == 0 {
		e.ID = lastID + 1
	}
	if e.ID > lastID {
		// The mark goes to disk first; a crash afterwards skips an id
		// instead of reusing one.
		if err := writeJSON(s.seqPath, sequence{LastID: e.ID}); err != nil {
			return model.ScoreEntry{}, fmt.Errorf("save entry: %w", err)
		}
		s.lastID = e.ID
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}
	next := make([]model.ScoreEntry, 0, len(s.entries)+1)
	for _, old := range s.entries {
		if old.ID != e.ID {
			next = append(next, old)
		}
	}
	next = append(next, e)
	sortRanking(next)
	if err := writeJSON(s.rankingPath, next); err != nil {
		return model.ScoreEntry{}, fmt.Errorf("save entry: %w", err)
	}
	s.entries = next
	return e, nil
}

// Get implements Store.Get.
func (s *FileStore) Get(_ context.Context, id int64) (model.ScoreEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return model.ScoreEntry{}, ErrNotFound
}

// Position implements Store.Position.
func (s *FileStore) Position(_ context.Context, id int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.ID == id {
			return i + 1, nil
		}
	}
	return 0, ErrNotFound
}

// TopN implements Store.TopN.
func (s *FileStore) TopN(_ context.Context, n int) ([]model.ScoreEntry, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryQueryLatency(BackendJSON, elapsedMs(start)) }()

	if n < 1 {
		return nil, ErrInvalidLimit
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n = min(n, len(s.entries))
	return append([]model.ScoreEntry(nil), s.entries[:n]...), nil
}

// Delete implements Store.Delete.
func (s *FileStore) Delete(_ context.Context, ids []int64) (int, error) {
	drop := make(map[int64]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]model.ScoreEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if !drop[e.ID] {
			next = append(next, e)
		}
	}
	removed := len(s.entries) - len(next)
	if removed == 0 {
		return 0, nil
	}
	if err := writeJSON(s.rankingPath, next); err != nil {
		return 0, fmt.Errorf("delete entries: %w", err)
	}
	s.entries = next
	return removed, nil
}

// Clear implements Store.Clear.
func (s *FileStore) Clear(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeJSON(s.rankingPath, []model.ScoreEntry{}); err != nil {
		return 0, fmt.Errorf("clear ranking: %w", err)
	}
	n := len(s.entries)
	s.entries = nil
	return n, nil
}

// Count implements Store.Count.
func (s *FileStore) Count(_ context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// SaveBattle implements BattleStore.SaveBattle.
func (s *FileStore) SaveBattle(_ context.Context, r model.BattleResult) (model.BattleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == 0 {
		r.ID = int64(len(s.battles)) + 1
	}
	if r.BattleDate.IsZero() {
		r.BattleDate = s.now().UTC()
	}
	next := append(append([]model.BattleResult(nil), s.battles...), r)
	if err := writeJSON(s.battlePath, next); err != nil {
		return model.BattleResult{}, fmt.Errorf("save battle: %w", err)
	}
	s.battles = next
	return r, nil
}

// Battles implements BattleStore.Battles.
func (s *FileStore) Battles(_ context.Context) ([]model.BattleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.BattleResult(nil), s.battles...), nil
}

// sequence is the content of the id sidecar file.
type sequence struct {
	LastID int64 `json:"last_id"`
}

func (s *FileStore) maxID() int64 {
	var m int64
	for _, e := range s.entries {
		m = max(m, e.ID)
	}
	return m
}

func sortRanking(entries []model.ScoreEntry) {
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].RanksBefore(entries[j]) })
}

// readJSON decodes path into v; a missing file leaves v untouched.
func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, v)
}

// writeJSON replaces path atomically through a temp file in the same directory.
func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(filePerm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
