package contact_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbrand/leadintake/internal/domain"
	"github.com/jbrand/leadintake/internal/pkg/distlock"
	"github.com/jbrand/leadintake/internal/repository/memory"
	"github.com/jbrand/leadintake/internal/service/contact"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// brokenRepo fails every call.
type brokenRepo struct{}

var errDown = errors.New("connection refused")

func (brokenRepo) FindRecentByEmail(context.Context, string, time.Time) (*domain.Contact, error) {
	return nil, errDown
}
func (brokenRepo) Insert(context.Context, *domain.Contact) error { return errDown }
func (brokenRepo) Get(context.Context, string) (*domain.Contact, error) {
	return nil, errDown
}
func (brokenRepo) UpdateStatus(context.Context, string, domain.ContactStatus, *string, time.Time) (*domain.Contact, error) {
	return nil, errDown
}
func (brokenRepo) Stats(context.Context, time.Time) (*domain.ContactStats, error) {
	return nil, errDown
}

func jane() domain.ContactInput {
	return domain.ContactInput{
		Name:    "Jane Doe",
		Email:   "Jane@Acme.com",
		Phone:   "+1 555 123 4567",
		Company: "Acme",
		Message: "We need a business website on a tight timeline, budget approved.",
	}
}

func newService(t *testing.T) (*contact.Service, *memory.ContactRepo, *clock) {
	t.Helper()
	repo := memory.NewContactRepo()
	clk := &clock{t: time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)}
	return contact.NewService(repo, contact.WithClock(clk.Now)), repo, clk
}

func TestSave_CreatesClassifiedRecord(t *testing.T) {
	svc, repo, _ := newService(t)

	res, err := svc.Save(context.Background(), jane(), domain.ClientInfo{IPAddress: "203.0.113.5"})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.False(t, res.IsDuplicate)
	assert.Equal(t, res.Record.ID, res.ID)

	got := res.Record
	assert.Equal(t, "jane@acme.com", got.Email)
	assert.Equal(t, domain.ContactNew, got.Status)
	assert.Equal(t, domain.PriorityHigh, got.Priority)
	assert.Equal(t, domain.ContactSource, got.Source)
	assert.Equal(t, "unknown", got.UserAgent)
	assert.Contains(t, got.Tags, "business")
	assert.Contains(t, got.Tags, "phone-provided")
	assert.GreaterOrEqual(t, got.LeadScore, 70)
	assert.Equal(t, 1, repo.Len())
}

func TestSave_DuplicateWithinWindow(t *testing.T) {
	svc, repo, clk := newService(t)
	ctx := context.Background()

	first, err := svc.Save(ctx, jane(), domain.ClientInfo{})
	require.NoError(t, err)

	clk.Advance(4 * time.Minute)
	in := jane()
	in.Email = "JANE@acme.com"
	second, err := svc.Save(ctx, in, domain.ClientInfo{})
	require.NoError(t, err)
	assert.True(t, second.IsDuplicate)
	assert.False(t, second.Created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, repo.Len())
}

func TestSave_AfterWindowCreatesNewRecord(t *testing.T) {
	svc, repo, clk := newService(t)
	ctx := context.Background()

	first, err := svc.Save(ctx, jane(), domain.ClientInfo{})
	require.NoError(t, err)

	clk.Advance(6 * time.Minute)
	second, err := svc.Save(ctx, jane(), domain.ClientInfo{})
	require.NoError(t, err)
	assert.True(t, second.Created)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, repo.Len())
}

func TestSave_CustomWindow(t *testing.T) {
	repo := memory.NewContactRepo()
	clk := &clock{t: time.Now().UTC()}
	svc := contact.NewService(repo, contact.WithClock(clk.Now), contact.WithDedupWindow(time.Minute))

	_, err := svc.Save(context.Background(), jane(), domain.ClientInfo{})
	require.NoError(t, err)
	clk.Advance(2 * time.Minute)
	res, err := svc.Save(context.Background(), jane(), domain.ClientInfo{})
	require.NoError(t, err)
	assert.True(t, res.Created)
}

func TestSave_ConcurrentSubmissionsStoreOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	repo := memory.NewContactRepo()
	svc := contact.NewService(repo, contact.WithLocks(distlock.Backend{Redis: rdb}))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Save(context.Background(), jane(), domain.ClientInfo{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, repo.Len())
}

func TestSave_StorageFailure(t *testing.T) {
	svc := contact.NewService(brokenRepo{})

	_, err := svc.Save(context.Background(), jane(), domain.ClientInfo{})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindStorage))
	assert.ErrorIs(t, err, errDown)
}

func TestUpdateStatus(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	res, err := svc.Save(ctx, jane(), domain.ClientInfo{})
	require.NoError(t, err)

	notes := "called back"
	got, err := svc.UpdateStatus(ctx, res.ID, domain.ContactQualified, &notes)
	require.NoError(t, err)
	assert.Equal(t, domain.ContactQualified, got.Status)
	assert.Equal(t, "called back", got.Notes)

	got, err = svc.UpdateStatus(ctx, res.ID, domain.ContactConverted, nil)
	require.NoError(t, err)
	assert.Equal(t, "called back", got.Notes, "nil notes leaves notes unchanged")
}

func TestUpdateStatus_Errors(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.UpdateStatus(ctx, "8c1f3a2e-4b7d-4c1e-9f0a-1b2c3d4e5f60", domain.ContactStatus("archived"), nil)
	assert.True(t, domain.IsKind(err, domain.KindInvalidStatus))

	_, err = svc.UpdateStatus(ctx, "8c1f3a2e-4b7d-4c1e-9f0a-1b2c3d4e5f60", domain.ContactClosed, nil)
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestGetAndStats(t *testing.T) {
	svc, _, clk := newService(t)
	ctx := context.Background()

	res, err := svc.Save(ctx, jane(), domain.ClientInfo{})
	require.NoError(t, err)

	got, err := svc.Get(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, res.ID, got.ID)

	_, err = svc.Get(ctx, "missing")
	assert.True(t, domain.IsKind(err, domain.KindNotFound))

	clk.Advance(25 * time.Hour)
	other := jane()
	other.Email = "bob@example.com"
	other.Company = ""
	other.Phone = ""
	_, err = svc.Save(ctx, other, domain.ClientInfo{})
	require.NoError(t, err)

	st, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Total)
	assert.Equal(t, 1, st.Last24Hours)
	assert.Equal(t, 2, st.ByStatus["new"])
	assert.Equal(t, 2, st.BySource[domain.ContactSource])
}
