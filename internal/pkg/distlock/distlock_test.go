package distlock

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestRedisLock_MutualExclusion(t *testing.T) {
	client, mr := newRedis(t)
	ctx := context.Background()

	a := NewRedisLock(client, "contact:jane@x.com", 10*time.Second)
	b := NewRedisLock(client, "contact:jane@x.com", 10*time.Second)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists(KeyPrefix+"contact:jane@x.com"))

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "second owner must not acquire a held lock")

	// b does not own the lock, so its release is a no-op
	require.NoError(t, b.Release(ctx))
	assert.True(t, mr.Exists(a.Key()))

	require.NoError(t, a.Release(ctx))
	assert.False(t, mr.Exists(a.Key()))

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLock_ExpiresAfterTTL(t *testing.T) {
	client, mr := newRedis(t)
	ctx := context.Background()

	a := NewRedisLock(client, "k", time.Second)
	ok, _ := a.Acquire(ctx)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	ok, err := NewRedisLock(client, "k", time.Second).Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGuard_ReleasesOnReturn(t *testing.T) {
	client, mr := newRedis(t)
	ctx := context.Background()

	_, release := Guard(ctx, Backend{Redis: client}, "subscriber:a@b.com", 5*time.Second)
	assert.True(t, mr.Exists(KeyPrefix+"subscriber:a@b.com"))
	release()
	assert.False(t, mr.Exists(KeyPrefix+"subscriber:a@b.com"))
}

func TestGuard_BusyLockProceedsUnlocked(t *testing.T) {
	client, _ := newRedis(t)
	ctx := context.Background()

	holder := NewRedisLock(client, "busy", 5*time.Second)
	ok, _ := holder.Acquire(ctx)
	require.True(t, ok)

	start := time.Now()
	_, release := Guard(ctx, Backend{Redis: client}, "busy", 5*time.Second)
	release()
	assert.GreaterOrEqual(t, time.Since(start), (guardAttempts-1)*guardBackoff)
}

func TestGuard_RedisDownProceedsUnlocked(t *testing.T) {
	client, mr := newRedis(t)
	mr.Close()

	_, release := Guard(context.Background(), Backend{Redis: client}, "k", time.Second)
	assert.NotNil(t, release)
	release()
}

func TestGuard_RedisLockPinsNothing(t *testing.T) {
	client, _ := newRedis(t)

	ctx, release := Guard(context.Background(), Backend{Redis: client}, "k", time.Second)
	defer release()
	assert.Nil(t, ConnFrom(ctx))
}

func TestGuard_NoBackend(t *testing.T) {
	_, release := Guard(context.Background(), nil, "k", time.Second)
	release()
	_, release = Guard(context.Background(), Backend{}, "k", time.Second)
	release()
}

func TestPGAdvisoryLock_AcquireRelease(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	lock := NewPGAdvisoryLock(func(context.Context) (*sql.DB, error) { return db, nil }, "contact:jane@x.com")

	mock.ExpectQuery("SELECT pg_try_advisory_lock").
		WithArgs(lock.lockID).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec("SELECT pg_advisory_unlock").
		WithArgs(lock.lockID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, lock.Release(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGAdvisoryLock_Busy(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	lock := NewPGAdvisoryLock(func(context.Context) (*sql.DB, error) { return db, nil }, "k")
	mock.ExpectQuery("SELECT pg_try_advisory_lock").
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

	ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, lock.Release(context.Background()), "release without ownership is a no-op")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGuard_PGLockSharesItsConnection(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	mock.ExpectQuery("SELECT pg_try_advisory_lock").
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectQuery("SELECT 1").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectExec("SELECT pg_advisory_unlock").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	locked, release := Guard(ctx, Backend{DB: func(context.Context) (*sql.DB, error) { return db, nil }},
		"contact:jane@x.com", time.Second)

	conn := ConnFrom(locked)
	require.NotNil(t, conn)
	var n int
	require.NoError(t, conn.QueryRowContext(locked, "SELECT 1").Scan(&n))
	assert.Equal(t, 1, n)

	release()
	assert.Zero(t, db.Stats().WaitCount, "work under the lock must not wait for a second connection")
	assert.Equal(t, 0, db.Stats().InUse)
	assert.NoError(t, mock.ExpectationsWereMet())
}
