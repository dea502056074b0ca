package stats

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgbot/internal/access"
	"imgbot/internal/eventbus"
	"imgbot/internal/i18n"
	"imgbot/internal/registry"
	"imgbot/internal/transport/transporttest"
	logx "imgbot/pkg/logx"
)

type fakeSource struct {
	st    registry.Stats
	err   error
	calls int
}

func (f *fakeSource) ComputeStats(ctx context.Context) (registry.Stats, error) {
	f.calls++
	return f.st, f.err
}

func newService(t *testing.T, src Source) *Service {
	t.Helper()
	texts, err := i18n.New(i18n.LocaleRU)
	require.NoError(t, err)
	return New(src, access.NewAdmin(7), texts)
}

func TestGetRequiresAdmin(t *testing.T) {
	src := &fakeSource{st: registry.Stats{TotalUsers: 3, TotalImages: 5, ActiveUsers: 2}}
	svc := newService(t, src)

	_, err := svc.Get(context.Background(), 8)
	require.ErrorIs(t, err, access.ErrUnauthorized)
	assert.Zero(t, src.calls)

	st, err := svc.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, src.st, st)
}

func TestGetPropagatesStorageError(t *testing.T) {
	src := &fakeSource{err: &registry.StorageError{Op: "compute stats", Err: errors.New("locked")}}
	svc := newService(t, src)

	_, err := svc.Get(context.Background(), 7)
	require.ErrorIs(t, err, registry.ErrStorage)
}

func TestRender(t *testing.T) {
	svc := newService(t, &fakeSource{})
	out := svc.Render(i18n.LocaleEN, registry.Stats{TotalUsers: 3, TotalImages: 5, ActiveUsers: 2})
	assert.Contains(t, out, "Total users: 3")
	assert.Contains(t, out, "Total images: 5")
	assert.Contains(t, out, "Active users: 2")

	ru := svc.Render("xx", registry.Stats{TotalUsers: 1})
	assert.Contains(t, ru, "Всего пользователей: 1")
}

func TestDigestRunOnce(t *testing.T) {
	svc := newService(t, &fakeSource{st: registry.Stats{TotalUsers: 4, TotalImages: 9, ActiveUsers: 1}})
	ad := &transporttest.Adapter{}
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(2)
	defer unsub()

	localeOf := func(ctx context.Context, id int64) (string, error) { return i18n.LocaleEN, nil }
	d := NewDigest(DigestConfig{}, svc, ad, localeOf, bus, logx.Nop())
	require.NoError(t, d.RunOnce(context.Background()))

	got := ad.SentTo(7)
	require.Len(t, got, 1)
	assert.Contains(t, got[0], "Daily digest")
	assert.Contains(t, got[0], "Total images: 9")

	ev := <-ch
	assert.Equal(t, eventbus.TypeDigestSent, ev.Type)
}

func TestDigestValidate(t *testing.T) {
	d := NewDigest(DigestConfig{}, newService(t, &fakeSource{}), &transporttest.Adapter{}, nil, nil, logx.Nop())

	require.NoError(t, d.Validate(DigestConfig{Enabled: false, Schedule: "garbage"}))
	require.NoError(t, d.Validate(DigestConfig{Enabled: true, Schedule: "0 9 * * *", Timezone: "UTC"}))
	require.NoError(t, d.Validate(DigestConfig{Enabled: true, Schedule: "@daily"}))
	require.Error(t, d.Validate(DigestConfig{Enabled: true, Schedule: "every day"}))
	require.Error(t, d.Validate(DigestConfig{Enabled: true, Schedule: "0 9 * * *", Timezone: "Mars/Olympus"}))
}

func TestDigestStartStopApply(t *testing.T) {
	d := NewDigest(DigestConfig{Enabled: true, Schedule: "0 9 * * *", Timezone: "UTC"}, newService(t, &fakeSource{}), &transporttest.Adapter{}, nil, nil, logx.Nop())
	ctx := context.Background()

	require.NoError(t, d.Start(ctx))
	require.NotNil(t, d.c)

	require.Error(t, d.Apply(DigestConfig{Enabled: true, Schedule: "nope"}))
	require.NotNil(t, d.c, "invalid config must keep the running schedule")

	require.NoError(t, d.Apply(DigestConfig{Enabled: false}))
	assert.Nil(t, d.c)

	require.NoError(t, d.Apply(DigestConfig{Enabled: true, Schedule: "@hourly"}))
	assert.NotNil(t, d.c)

	d.Stop(ctx)
	assert.Nil(t, d.c)
}
