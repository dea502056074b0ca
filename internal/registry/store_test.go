package registry

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	logx "imgbot/pkg/logx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func openTest(t *testing.T) (*Store, *fakeClock) {
	t.Helper()
	clk := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	s, err := Open(context.Background(), Config{
		Path:          filepath.Join(t.TempDir(), "bot.db"),
		DefaultLocale: "ru",
		Now:           clk.Now,
	}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, clk
}

func TestUpsertUserIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, clk := openTest(t)
	first := clk.Now()

	require.NoError(t, s.UpsertUser(ctx, Profile{ID: 1, Username: "alice", FirstName: "Alice"}))
	require.NoError(t, s.IncrementImageCount(ctx, 1))
	require.NoError(t, s.SetUserLocale(ctx, 1, "en"))

	clk.Set(first.Add(time.Hour))
	require.NoError(t, s.UpsertUser(ctx, Profile{ID: 1, Username: "renamed", FirstName: "Other"}))

	u, err := s.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "Alice", u.FirstName)
	assert.Equal(t, "", u.LastName)
	assert.Equal(t, "en", u.Locale)
	assert.EqualValues(t, 1, u.ImagesCount)
	assert.Equal(t, first.UnixMilli(), u.FirstSeen.UnixMilli())

	ids, err := s.ListAllUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids)
}

func TestNewUserDefaults(t *testing.T) {
	ctx := context.Background()
	s, clk := openTest(t)

	require.NoError(t, s.UpsertUser(ctx, Profile{ID: 5}))
	u, err := s.GetUser(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "ru", u.Locale)
	assert.Zero(t, u.ImagesCount)
	assert.Equal(t, clk.Now().UnixMilli(), u.LastActive.UnixMilli())

	loc, err := s.GetUserLocale(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "ru", loc)
}

func TestCounterIsMonotonic(t *testing.T) {
	ctx := context.Background()
	s, _ := openTest(t)
	require.NoError(t, s.UpsertUser(ctx, Profile{ID: 1}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.IncrementImageCount(ctx, 1))
		}()
	}
	wg.Wait()

	u, err := s.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 20, u.ImagesCount)
}

func TestTouchActivityNeverMovesBackwards(t *testing.T) {
	ctx := context.Background()
	s, clk := openTest(t)
	base := clk.Now()
	require.NoError(t, s.UpsertUser(ctx, Profile{ID: 1}))

	clk.Set(base.Add(2 * time.Hour))
	require.NoError(t, s.TouchActivity(ctx, 1))
	clk.Set(base.Add(time.Hour))
	require.NoError(t, s.TouchActivity(ctx, 1))

	u, err := s.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, base.Add(2*time.Hour).UnixMilli(), u.LastActive.UnixMilli())

	// unknown id is a silent no-op
	require.NoError(t, s.TouchActivity(ctx, 999))
	_, err = s.GetUser(ctx, 999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUnknownUser(t *testing.T) {
	ctx := context.Background()
	s, _ := openTest(t)

	require.ErrorIs(t, s.IncrementImageCount(ctx, 7), ErrNotFound)
	require.ErrorIs(t, s.SetUserLocale(ctx, 7, "en"), ErrNotFound)
	_, err := s.GetUserLocale(ctx, 7)
	require.ErrorIs(t, err, ErrNotFound)
	require.NotErrorIs(t, err, ErrStorage)

	err = s.RecordImage(ctx, 7, "https://img/x.png")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrStorage)
	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "record image", se.Op)
}

func TestRecordImageRejectsEmptyURL(t *testing.T) {
	ctx := context.Background()
	s, _ := openTest(t)
	require.NoError(t, s.UpsertUser(ctx, Profile{ID: 1}))
	require.Error(t, s.RecordImage(ctx, 1, "  "))
	require.Error(t, s.RecordUpload(ctx, 1, ""))

	st, err := s.ComputeStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.TotalImages)
}

func TestRecordImageDoesNotTouchCounter(t *testing.T) {
	ctx := context.Background()
	s, _ := openTest(t)
	require.NoError(t, s.UpsertUser(ctx, Profile{ID: 1}))
	require.NoError(t, s.RecordImage(ctx, 1, "https://img/a.png"))

	u, err := s.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, u.ImagesCount)
}

func TestRecordUploadIsAtomic(t *testing.T) {
	ctx := context.Background()
	s, _ := openTest(t)
	require.NoError(t, s.UpsertUser(ctx, Profile{ID: 1}))

	require.NoError(t, s.RecordUpload(ctx, 1, "https://img/a.png"))
	require.NoError(t, s.RecordUpload(ctx, 1, "https://img/b.png"))

	u, err := s.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, u.ImagesCount)

	imgs, err := s.ListImages(ctx, 1)
	require.NoError(t, err)
	require.Len(t, imgs, 2)
	assert.Equal(t, "https://img/a.png", imgs[0].URL)
	assert.Equal(t, "https://img/b.png", imgs[1].URL)
	assert.EqualValues(t, 1, imgs[0].UserID)
	assert.Less(t, imgs[0].ID, imgs[1].ID)
	assert.False(t, imgs[0].UploadedAt.IsZero())

	// unknown user: neither counter nor image row
	require.ErrorIs(t, s.RecordUpload(ctx, 2, "https://img/c.png"), ErrNotFound)
	imgs, err = s.ListImages(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, imgs)

	var n int64
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM images`).Scan(&n))
	assert.EqualValues(t, 2, n)
}

func TestListAllUserIDsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s, _ := openTest(t)
	for _, id := range []int64{30, 10, 20} {
		require.NoError(t, s.UpsertUser(ctx, Profile{ID: id}))
	}
	require.NoError(t, s.UpsertUser(ctx, Profile{ID: 10}))

	ids, err := s.ListAllUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{30, 10, 20}, ids)
}

func TestListAllUserIDsEmpty(t *testing.T) {
	s, _ := openTest(t)
	ids, err := s.ListAllUserIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestComputeStats(t *testing.T) {
	ctx := context.Background()
	s, clk := openTest(t)
	now := clk.Now()

	// user 1 registered 40 days ago and never came back
	clk.Set(now.Add(-40 * 24 * time.Hour))
	require.NoError(t, s.UpsertUser(ctx, Profile{ID: 1}))

	clk.Set(now.Add(-10 * 24 * time.Hour))
	require.NoError(t, s.UpsertUser(ctx, Profile{ID: 2}))
	require.NoError(t, s.RecordUpload(ctx, 2, "https://img/1.png"))
	require.NoError(t, s.RecordUpload(ctx, 2, "https://img/2.png"))

	clk.Set(now)
	require.NoError(t, s.UpsertUser(ctx, Profile{ID: 3}))
	for i := 0; i < 3; i++ {
		require.NoError(t, s.RecordUpload(ctx, 3, "https://img/3.png"))
	}

	st, err := s.ComputeStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{TotalUsers: 3, TotalImages: 5, ActiveUsers: 2}, st)
}

func TestStatsOnEmptyRegistry(t *testing.T) {
	s, _ := openTest(t)
	st, err := s.ComputeStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{}, st)
}

func TestClosedStoreReportsStorageError(t *testing.T) {
	s, _ := openTest(t)
	require.NoError(t, s.Close())

	_, err := s.ListAllUserIDs(context.Background())
	require.ErrorIs(t, err, ErrStorage)
	_, err = s.ComputeStats(context.Background())
	require.ErrorIs(t, err, ErrStorage)
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "bot.db")

	s, err := Open(ctx, Config{Path: path, DefaultLocale: "en"}, logx.Nop())
	require.NoError(t, err)
	require.NoError(t, s.UpsertUser(ctx, Profile{ID: 9, Username: "bob"}))
	require.NoError(t, s.Close())

	s, err = Open(ctx, Config{Path: path, DefaultLocale: "ru"}, logx.Nop())
	require.NoError(t, err)
	defer s.Close()
	u, err := s.GetUser(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, "bob", u.Username)
	assert.Equal(t, "en", u.Locale)
}
