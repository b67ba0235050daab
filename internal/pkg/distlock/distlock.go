package distlock

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jbrand/leadintake/internal/pkg/logger"
)

// DistLock is the interface for distributed locking.
// A lock instance is owned by one request; create a new one per key.
type DistLock interface {
	// Acquire tries to acquire the lock without blocking. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

// Factory creates per-key locks. Stores depend on this rather than on a
// concrete backend so tests can run without one.
type Factory interface {
	NewLock(key string, ttl time.Duration) DistLock
}

// Backend picks Redis when a client is configured and falls back to
// PostgreSQL advisory locks otherwise. With neither, NewLock returns nil and
// Guard runs unlocked.
type Backend struct {
	Redis *redis.Client
	DB    func(ctx context.Context) (*sql.DB, error)
}

// NewLock creates a lock using the best available backend.
func (b Backend) NewLock(key string, ttl time.Duration) DistLock {
	if b.Redis != nil {
		return NewRedisLock(b.Redis, key, ttl)
	}
	if b.DB != nil {
		return NewPGAdvisoryLock(b.DB, key)
	}
	return nil
}

// Retry policy for Guard while another request holds the key.
const (
	guardAttempts = 5
	guardBackoff  = 40 * time.Millisecond
)

// connKey carries the session connection of a held PG advisory lock.
type connKey struct{}

// ConnFrom returns the connection pinned by a PG advisory lock that Guard
// acquired for ctx, or nil. Database work done while the lock is held must
// run on it: the lock already occupies one pool slot, and waiting for a
// second one can exhaust a small pool.
func ConnFrom(ctx context.Context) *sql.Conn {
	c, _ := ctx.Value(connKey{}).(*sql.Conn)
	return c
}

// connPinner is implemented by locks that hold a database session.
type connPinner interface {
	Conn() *sql.Conn
}

// Guard acquires a lock for key and returns the context to use while it is
// held, plus its release func. Locking is best effort: if the lock stays busy
// or the backend fails, Guard logs and lets the caller proceed unlocked. The
// returned func is always safe to call.
func Guard(ctx context.Context, f Factory, key string, ttl time.Duration) (context.Context, func()) {
	noop := func() {}
	if f == nil {
		return ctx, noop
	}
	l := f.NewLock(key, ttl)
	if l == nil {
		return ctx, noop
	}
	for attempt := 1; ; attempt++ {
		ok, err := l.Acquire(ctx)
		if err != nil {
			logger.Warn("lock acquire failed, continuing unlocked", "key", key, "error", err)
			return ctx, noop
		}
		if ok {
			locked := ctx
			if p, isPinner := l.(connPinner); isPinner && p.Conn() != nil {
				locked = context.WithValue(ctx, connKey{}, p.Conn())
			}
			return locked, func() {
				rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := l.Release(rctx); err != nil {
					logger.Warn("lock release failed", "key", key, "error", err)
				}
			}
		}
		if attempt == guardAttempts {
			logger.Warn("lock busy, continuing unlocked", "key", key)
			return ctx, noop
		}
		select {
		case <-ctx.Done():
			return ctx, noop
		case <-time.After(guardBackoff):
		}
	}
}

// PGAdvisoryLock implements DistLock with session-scoped PostgreSQL advisory
// locks. Acquire pins one pooled connection so that Release unlocks on the
// same session that took the lock; Guard shares that connection with the
// caller through ConnFrom.
type PGAdvisoryLock struct {
	db     func(ctx context.Context) (*sql.DB, error)
	lockID int64

	mu   sync.Mutex
	conn *sql.Conn
}

// NewPGAdvisoryLock creates a PG advisory lock with a deterministic lock ID
// derived from the given key string.
func NewPGAdvisoryLock(db func(ctx context.Context) (*sql.DB, error), key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{db: db, lockID: int64(h.Sum64())}
}

// Acquire tries pg_try_advisory_lock, which returns immediately.
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		return false, fmt.Errorf("advisory lock %d already held by this instance", l.lockID)
	}
	db, err := l.db(ctx)
	if err != nil {
		return false, err
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("advisory lock conn: %w", err)
	}
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, fmt.Errorf("advisory lock: %w", err)
	}
	if !acquired {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

// Conn returns the session connection while the lock is held.
func (l *PGAdvisoryLock) Conn() *sql.Conn {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn
}

// Release unlocks and returns the pinned connection to the pool.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	closeErr := l.conn.Close()
	l.conn = nil
	if err != nil {
		return fmt.Errorf("advisory unlock: %w", err)
	}
	return closeErr
}
