package repository

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/okian/combatpower/internal/domain/model"
	"github.com/okian/combatpower/pkg/metrics"
)

// Treap-based, in-memory Store.
//
// Ordering: score DESC, then id ASC. "less" means ranks earlier, so an
// in-order walk yields the ranking from best to worst. Subtree sizes give
// positions in O(log n).

type node struct {
	id    int64
	score int
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less reports whether (aScore, aID) ranks before (bScore, bID).
func less(aScore int, aID int64, bScore int, bID int64) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id int64, score int, prio uint64) *node {
	if n == nil {
		return &node{id: id, score: score, prio: prio, size: 1}
	}
	if less(score, id, n.score, n.id) {
		n.left = insert(n.left, id, score, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, score, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id int64, score int) *node {
	if n == nil {
		return nil
	}
	if score == n.score && id == n.id {
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, score)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, score)
		}
	} else if less(score, id, n.score, n.id) {
		n.left = deleteNode(n.left, id, score)
	} else {
		n.right = deleteNode(n.right, id, score)
	}
	fix(n)
	return n
}

// collectTopN appends up to limit entries in rank order.
func collectTopN(n *node, limit int, byID map[int64]model.ScoreEntry, out *[]model.ScoreEntry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, byID, out)
	if len(*out) < limit {
		if e, ok := byID[n.id]; ok {
			*out = append(*out, e)
		}
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, byID, out)
	}
}

// position counts the nodes ranking before (score, id), plus one.
func position(n *node, id int64, score int) int {
	before := 0
	for n != nil {
		switch {
		case n.id == id && n.score == score:
			return before + nsize(n.left) + 1
		case less(score, id, n.score, n.id):
			n = n.left
		default:
			before += nsize(n.left) + 1
			n = n.right
		}
	}
	return 0
}

// TreapStore keeps everything in memory; contents are lost on restart.
type TreapStore struct {
	mu      sync.RWMutex
	root    *node
	byID    map[int64]model.ScoreEntry
	nextID  int64
	battles []model.BattleResult
	now     func() time.Time

	metricsUpdateInterval time.Duration
	wg                    sync.WaitGroup
	stopChan              chan struct{}
	stopOnce              sync.Once
}

// NewTreapStore constructs an in-memory store and starts its metrics updater.
func NewTreapStore(ctx context.Context, opts ...Option) *TreapStore {
	o := buildOptions(opts)
	s := &TreapStore{
		byID:                  make(map[int64]model.ScoreEntry),
		now:                   o.now,
		metricsUpdateInterval: o.metricsUpdateInterval,
		stopChan:              make(chan struct{}),
	}
	s.startMetricsUpdater(ctx)
	return s
}

// Backend implements Repository.
func (s *TreapStore) Backend() string { return BackendMemory }

// Close stops the metrics updater.
func (s *TreapStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

// Save implements Store.Save in O(log n) expected time.
func (s *TreapStore) Save(_ context.Context, e model.ScoreEntry) (model.ScoreEntry, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryUpdateLatency(BackendMemory, elapsedMs(start)) }()

	if err := validateEntry(e); err != nil {
		return model.ScoreEntry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == 0 {
		s.nextID++
		e.ID = s.nextID
	} else if e.ID > s.nextID {
		s.nextID = e.ID
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}
	if old, ok := s.byID[e.ID]; ok {
		s.root = deleteNode(s.root, old.ID, old.Score)
	}
	s.byID[e.ID] = e
	s.root = insert(s.root, e.ID, e.Score, rand.Uint64())
	return e, nil
}

// Get implements Store.Get.
func (s *TreapStore) Get(_ context.Context, id int64) (model.ScoreEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		return model.ScoreEntry{}, ErrNotFound
	}
	return e, nil
}

// Position implements Store.Position in O(log n) expected time.
func (s *TreapStore) Position(_ context.Context, id int64) (int, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryQueryLatency(BackendMemory, elapsedMs(start)) }()

	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return 0, ErrNotFound
	}
	return position(s.root, e.ID, e.Score), nil
}

// TopN implements Store.TopN.
func (s *TreapStore) TopN(_ context.Context, n int) ([]model.ScoreEntry, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryQueryLatency(BackendMemory, elapsedMs(start)) }()

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ScoreEntry, 0, min(n, len(s.byID)))
	collectTopN(s.root, n, s.byID, &out)
	return out, nil
}

// Delete implements Store.Delete.
func (s *TreapStore) Delete(_ context.Context, ids []int64) (int, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryUpdateLatency(BackendMemory, elapsedMs(start)) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for _, id := range ids {
		if e, ok := s.byID[id]; ok {
			s.root = deleteNode(s.root, e.ID, e.Score)
			delete(s.byID, id)
			removed++
		}
	}
	return removed, nil
}

// Clear implements Store.Clear.
func (s *TreapStore) Clear(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.byID)
	s.root = nil
	s.byID = make(map[int64]model.ScoreEntry)
	return n, nil
}

// Count implements Store.Count.
func (s *TreapStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// SaveBattle implements BattleStore.SaveBattle.
func (s *TreapStore) SaveBattle(_ context.Context, r model.BattleResult) (model.BattleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == 0 {
		r.ID = int64(len(s.battles)) + 1
	}
	if r.BattleDate.IsZero() {
		r.BattleDate = s.now().UTC()
	}
	s.battles = append(s.battles, r)
	return r, nil
}

// Battles implements BattleStore.Battles.
func (s *TreapStore) Battles(_ context.Context) ([]model.BattleResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.BattleResult(nil), s.battles...), nil
}

func (s *TreapStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				metrics.UpdateRankingEntries(s.Count(ctx))
			}
		}
	}()
}
