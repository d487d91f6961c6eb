package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/combatpower/internal/domain/scoring"
)

const (
	defaultTTL           = 10 * time.Minute
	defaultJanitorPeriod = 30 * time.Second
	playerOne            = 1
	playerTwo            = 2
)

// Registry indexes live sessions by id and evicts idle ones.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	ttl     time.Duration
	period  time.Duration
	now     func() time.Time
	newID   func() string
	onEvict func(n int)
}

// Option applies a configuration option to the Registry.
type Option func(*Registry)

// WithTTL sets how long an idle session survives.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithJanitorPeriod sets how often Run sweeps for expired sessions.
func WithJanitorPeriod(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.period = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithIDGenerator replaces the uuid generator.
func WithIDGenerator(gen func() string) Option {
	return func(r *Registry) {
		if gen != nil {
			r.newID = gen
		}
	}
}

// WithEvictHook is called with the number of sessions removed by each sweep.
func WithEvictHook(fn func(n int)) Option {
	return func(r *Registry) {
		r.onEvict = fn
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[string]*Session),
		ttl:      defaultTTL,
		period:   defaultJanitorPeriod,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start opens a session for player (1 or 2) scoring with gender.
func (r *Registry) Start(gender scoring.Gender, player int) (*Session, error) {
	if player == 0 {
		player = playerOne
	}
	if player != playerOne && player != playerTwo {
		return nil, ErrInvalidPlayer
	}
	if gender == "" {
		gender = scoring.Male
	}
	now := r.now()
	s := &Session{
		id:        r.newID(),
		gender:    gender,
		player:    player,
		startedAt: now,
		expiresAt: now.Add(r.ttl),
	}

	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()
	return s, nil
}

// Get returns a live session and extends its lifetime.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	now := r.now()
	if s.expired(now) {
		return nil, ErrSessionNotFound
	}
	s.touch(now, r.ttl)
	return s, nil
}

// End removes a session and its stabilizer state.
func (r *Registry) End(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(r.sessions, id)
	return nil
}

// Len returns the number of tracked sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep removes sessions idle past their TTL and returns how many went.
func (r *Registry) Sweep() int {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, s := range r.sessions {
		if s.expired(now) {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}

// Run sweeps periodically until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 && r.onEvict != nil {
				r.onEvict(n)
			}
		}
	}
}
