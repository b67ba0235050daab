package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbrand/leadintake/internal/domain"
	"github.com/jbrand/leadintake/internal/pkg/distlock"
	"github.com/jbrand/leadintake/internal/service/contact"
	"github.com/jbrand/leadintake/internal/service/subscriber"
)

// newSinglePool returns a Handle over a pool of exactly one connection, so
// any query that waits for a second connection shows up in WaitCount.
func newSinglePool(t *testing.T) (*Handle, sqlmock.Sqlmock) {
	t.Helper()
	h, mock := newMock(t)
	db, err := h.DB(context.Background())
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	return h, mock
}

func TestContactService_SaveUnderAdvisoryLock(t *testing.T) {
	h, mock := newSinglePool(t)
	svc := contact.NewService(NewContactRepo(h.DB),
		contact.WithLocks(distlock.Backend{DB: h.DB}),
		contact.WithTimeout(500*time.Millisecond),
		contact.WithClock(func() time.Time { return ts }))

	mock.ExpectQuery(`SELECT pg_try_advisory_lock`).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectQuery(`FROM contacts\s+WHERE email = \$1`).
		WithArgs("jane@acme.com", ts.Add(-domain.DefaultDedupWindow)).
		WillReturnRows(sqlmock.NewRows(contactCols))
	mock.ExpectExec(`INSERT INTO contacts`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`SELECT pg_advisory_unlock`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	res, err := svc.Save(context.Background(), domain.ContactInput{
		Name:    "Jane Doe",
		Email:   "Jane@Acme.com",
		Message: "We need a new storefront.",
	}, domain.ClientInfo{})
	require.NoError(t, err)
	assert.True(t, res.Created)

	db, err := h.DB(context.Background())
	require.NoError(t, err)
	assert.Zero(t, db.Stats().WaitCount)
	assert.Equal(t, 0, db.Stats().InUse)
}

func TestContactService_DuplicateUnderAdvisoryLock(t *testing.T) {
	h, mock := newSinglePool(t)
	svc := contact.NewService(NewContactRepo(h.DB),
		contact.WithLocks(distlock.Backend{DB: h.DB}),
		contact.WithTimeout(500*time.Millisecond),
		contact.WithClock(func() time.Time { return ts }))

	mock.ExpectQuery(`SELECT pg_try_advisory_lock`).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectQuery(`FROM contacts\s+WHERE email = \$1`).
		WillReturnRows(sqlmock.NewRows(contactCols).AddRow(contactRow("c-1")...))
	mock.ExpectExec(`SELECT pg_advisory_unlock`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	res, err := svc.Save(context.Background(), domain.ContactInput{
		Name:    "Jane Doe",
		Email:   "jane@acme.com",
		Message: "We need a website.",
	}, domain.ClientInfo{})
	require.NoError(t, err)
	assert.True(t, res.IsDuplicate)
	assert.Equal(t, "c-1", res.ID)

	db, err := h.DB(context.Background())
	require.NoError(t, err)
	assert.Zero(t, db.Stats().WaitCount)
}

func TestSubscriberService_SubscribeUnderAdvisoryLock(t *testing.T) {
	h, mock := newSinglePool(t)
	svc := subscriber.NewService(NewSubscriberRepo(h.DB),
		subscriber.WithLocks(distlock.Backend{DB: h.DB}),
		subscriber.WithTimeout(500*time.Millisecond),
		subscriber.WithClock(func() time.Time { return ts }))

	mock.ExpectQuery(`SELECT pg_try_advisory_lock`).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectQuery(`FROM subscribers WHERE email = \$1`).
		WithArgs("sam@example.com").
		WillReturnRows(sqlmock.NewRows(subscriberCols))
	mock.ExpectExec(`INSERT INTO subscribers`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`SELECT pg_advisory_unlock`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	res, err := svc.Subscribe(context.Background(),
		domain.SubscriptionInput{Email: "sam@example.com", Source: "footer"}, domain.ClientInfo{})
	require.NoError(t, err)
	assert.False(t, res.IsExisting)
	assert.True(t, res.WelcomeDue())

	db, err := h.DB(context.Background())
	require.NoError(t, err)
	assert.Zero(t, db.Stats().WaitCount)
	assert.Equal(t, 0, db.Stats().InUse)
}
