package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aretw0/director"
	"github.com/aretw0/director/internal/logging"
	"github.com/aretw0/director/pkg/domain"
	"github.com/aretw0/director/pkg/ports"
)

const (
	// DefaultMaxEngines bounds the engines kept in memory.
	DefaultMaxEngines = 1024
	// DefaultLockTTL is the lease of a distributed session lock.
	DefaultLockTTL = 30 * time.Second
)

// Factory builds the engine of a session. state is nil for a new session.
type Factory func(ctx context.Context, sessionID string, state *domain.ConversationState) (*director.Engine, error)

// DefaultFactory builds engines with default settings.
func DefaultFactory(_ context.Context, sessionID string, state *domain.ConversationState) (*director.Engine, error) {
	return director.New(director.WithSessionID(sessionID), director.WithState(state))
}

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates session access, ensuring safe concurrent operations.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store   ports.StateStore
	factory Factory

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	engines    *lru.Cache[string, *director.Engine]
	maxEngines int

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the lease of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithFactory replaces DefaultFactory.
func WithFactory(f Factory) Option {
	return func(m *Manager) {
		m.factory = f
	}
}

// WithMaxEngines bounds the engines kept in memory. Evicted sessions are
// restored from the store on their next call.
func WithMaxEngines(n int) Option {
	return func(m *Manager) {
		m.maxEngines = n
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new Session Manager with the given persistence store.
func NewManager(store ports.StateStore, opts ...Option) (*Manager, error) {
	m := &Manager{
		store:      store,
		factory:    DefaultFactory,
		locks:      make(map[string]*lockEntry),
		maxEngines: DefaultMaxEngines,
		lockTTL:    DefaultLockTTL,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	engines, err := lru.New[string, *director.Engine](max(m.maxEngines, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to create engine cache: %w", err)
	}
	m.engines = engines
	return m, nil
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// Create starts a session and persists its empty state. Creating an
// existing session is a no-op.
func (m *Manager) Create(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		eng, err := m.engine(ctx, sessionID, true)
		if err != nil {
			return err
		}
		return m.save(ctx, sessionID, eng)
	})
}

// Evaluate runs one turn of the session, creating it on first use, and
// snapshots the resulting state. The Directive is valid even when the
// snapshot fails; the error reports the persistence problem.
func (m *Manager) Evaluate(ctx context.Context, sessionID string, req director.Request) (domain.Directive, error) {
	var d domain.Directive
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		eng, err := m.engine(ctx, sessionID, true)
		if err != nil {
			return err
		}
		d = eng.Evaluate(ctx, req)
		return m.save(ctx, sessionID, eng)
	})
	return d, err
}

// Opening returns the opening Directive of a session, creating it on first use.
func (m *Manager) Opening(ctx context.Context, sessionID, theme string, first domain.Label) (domain.Directive, error) {
	var d domain.Directive
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		eng, err := m.engine(ctx, sessionID, true)
		if err != nil {
			return err
		}
		d = eng.Opening(theme, first)
		return m.save(ctx, sessionID, eng)
	})
	return d, err
}

// Stats reports the usage of an existing session.
func (m *Manager) Stats(ctx context.Context, sessionID string) (director.Stats, error) {
	var s director.Stats
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		eng, err := m.engine(ctx, sessionID, false)
		if err != nil {
			return err
		}
		s = eng.Stats()
		return nil
	})
	return s, err
}

// State returns a copy of the state of an existing session.
func (m *Manager) State(ctx context.Context, sessionID string) (*domain.ConversationState, error) {
	var st *domain.ConversationState
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		eng, err := m.engine(ctx, sessionID, false)
		if err != nil {
			return err
		}
		st = eng.State()
		return nil
	})
	return st, err
}

// Reset forgets the session: its engine, verdict cache and snapshot.
func (m *Manager) Reset(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		eng, ok := m.engines.Peek(sessionID)
		if !ok {
			// Evicted here or served by another replica: a shared verdict
			// cache still holds the session's entries.
			var err error
			if eng, err = m.factory(ctx, sessionID, nil); err != nil {
				return fmt.Errorf("failed to create engine: %w", err)
			}
		}
		if err := eng.Reset(ctx); err != nil {
			m.logger.Warn("engine reset failed", "session_id", sessionID, "err", err)
		}
		m.engines.Remove(sessionID)
		if err := m.store.Delete(ctx, sessionID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			return fmt.Errorf("failed to delete session: %w", err)
		}
		return nil
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying state store.
func (m *Manager) Store() ports.StateStore {
	return m.store
}

// WithLock executes a function while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// engine returns the session's engine, restoring it from the store when it
// is not in memory. With a distributed locker another replica may have
// advanced the session, so a newer snapshot replaces the cached engine.
// Must be called under WithLock.
func (m *Manager) engine(ctx context.Context, sessionID string, create bool) (*director.Engine, error) {
	eng, cached := m.engines.Get(sessionID)
	if cached && m.locker == nil {
		return eng, nil
	}

	stored, err := m.store.Load(ctx, sessionID)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrSessionNotFound):
		if cached {
			return eng, nil
		}
		if !create {
			return nil, domain.ErrSessionNotFound
		}
		stored = nil
	default:
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if cached && stored.TurnCounter <= eng.State().TurnCounter {
		return eng, nil
	}

	eng, err = m.factory(ctx, sessionID, stored)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	m.engines.Add(sessionID, eng)
	m.logger.Debug("engine ready", "session_id", sessionID, "restored", stored != nil)
	return eng, nil
}

func (m *Manager) save(ctx context.Context, sessionID string, eng *director.Engine) error {
	if err := m.store.Save(ctx, sessionID, eng.State()); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}
