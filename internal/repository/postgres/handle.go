// Package postgres implements the contact and subscriber repositories on
// PostgreSQL via database/sql and lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/jbrand/leadintake/internal/pkg/distlock"
)

// ErrNotConfigured is returned by every repository call when no connection
// string was provided.
var ErrNotConfigured = errors.New("database not configured")

// Pool settings applied to the lazily opened *sql.DB.
const (
	maxOpenConns    = 10
	maxIdleConns    = 5
	connMaxLifetime = 30 * time.Minute
	pingTimeout     = 5 * time.Second
)

// Handle owns a lazily opened connection pool. Only a successfully pinged
// pool is kept; after a failed open the next caller tries again.
type Handle struct {
	dsn  string
	open func(driverName, dsn string) (*sql.DB, error)

	mu sync.Mutex
	db *sql.DB
}

// NewHandle returns a Handle for dsn. An empty dsn yields a Handle whose DB
// always fails with ErrNotConfigured.
func NewHandle(dsn string) *Handle { return &Handle{dsn: dsn, open: sql.Open} }

// NewHandleFromDB wraps an already opened pool.
func NewHandleFromDB(db *sql.DB) *Handle { return &Handle{db: db, open: sql.Open} }

// Configured reports whether a connection string or pool was provided.
func (h *Handle) Configured() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dsn != "" || h.db != nil
}

// DB returns the shared pool, opening it if no healthy pool exists yet. The
// ping runs on its own deadline so a cancelled request cannot fail the open
// for everyone else.
func (h *Handle) DB(ctx context.Context) (*sql.DB, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.db != nil {
		return h.db, nil
	}
	if h.dsn == "" {
		return nil, ErrNotConfigured
	}

	db, err := h.open("postgres", h.dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	pingCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	h.db = db
	return db, nil
}

// Ping checks connectivity for health probes.
func (h *Handle) Ping(ctx context.Context) error {
	db, err := h.DB(ctx)
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// Close releases the pool if it was opened.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.db == nil {
		return nil
	}
	err := h.db.Close()
	h.db = nil
	return err
}

// querier is the part of *sql.DB and *sql.Conn the repositories use.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// session returns the connection pinned by an advisory lock held for ctx,
// falling back to the pool.
func session(ctx context.Context, conn func(ctx context.Context) (*sql.DB, error)) (querier, error) {
	if c := distlock.ConnFrom(ctx); c != nil {
		return c, nil
	}
	db, err := conn(ctx)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// BuildDSN adds dbname to a connection string that does not name a
// database. Both URL and key=value forms are accepted.
func BuildDSN(raw, dbName string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || dbName == "" {
		return raw
	}
	if strings.HasPrefix(raw, "postgres://") || strings.HasPrefix(raw, "postgresql://") {
		u, err := url.Parse(raw)
		if err != nil {
			return raw
		}
		if strings.Trim(u.Path, "/") == "" {
			u.Path = "/" + dbName
		}
		return u.String()
	}
	for _, field := range strings.Fields(raw) {
		if strings.HasPrefix(field, "dbname=") {
			return raw
		}
	}
	return raw + " dbname=" + dbName
}
