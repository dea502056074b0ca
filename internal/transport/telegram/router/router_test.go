package router

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kit "imgbot/internal/transport"
	"imgbot/internal/transport/transporttest"
	logx "imgbot/pkg/logx"
)

type hit struct {
	route string
	req   *Request
}

func startRouter(t *testing.T, opts Options, build func(record func(string) HandlerFunc) Routes) (*Router, chan<- kit.Update, <-chan hit, *transporttest.Adapter) {
	t.Helper()
	ad := &transporttest.Adapter{}
	r := New(ad, opts, logx.Nop())
	hits := make(chan hit, 16)
	record := func(name string) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			hits <- hit{route: name, req: req}
			return nil
		}
	}
	r.SetRoutes(build(record))

	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan kit.Update, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run(ctx, updates)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return r, updates, hits, ad
}

func basicRoutes(record func(string) HandlerFunc) Routes {
	return Routes{
		Commands: []Command{
			{Name: "start", Aliases: []string{"help"}, Description: "welcome", Handle: record("start")},
			{Name: "all", Description: "broadcast", Hidden: true, Handle: record("all")},
			{Name: "lang", Description: "language", Handle: record("lang")},
		},
		Callbacks: []CallbackRoute{{Plugin: "lang", Action: "set", Handle: record("cb.lang.set")}},
		Photo:     record("photo"),
		Fallback:  record("text"),
	}
}

func textUpdate(text string) kit.Update {
	return kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ID: 1, ChatID: 100, From: kit.Sender{ID: 100}, Text: text}}
}

func wait(t *testing.T, hits <-chan hit) hit {
	t.Helper()
	select {
	case h := <-hits:
		return h
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not called")
		return hit{}
	}
}

func TestRouting(t *testing.T) {
	_, updates, hits, _ := startRouter(t, Options{}, basicRoutes)

	cases := []struct {
		text  string
		route string
		rest  string
		args  []string
	}{
		{"/start", "start", "", nil},
		{"/help", "start", "", nil},
		{"/START@img_bot", "start", "", nil},
		{"/all  hello  world\nsecond line", "all", "hello  world\nsecond line", []string{"hello", "world", "second", "line"}},
		{"/lang en", "lang", "en", []string{"en"}},
		{"/unknown thing", "text", "/unknown thing", nil},
		{"just words", "text", "just words", nil},
	}
	for _, tc := range cases {
		updates <- textUpdate(tc.text)
		h := wait(t, hits)
		assert.Equal(t, tc.route, h.route, tc.text)
		assert.Equal(t, tc.rest, h.req.Text, tc.text)
		assert.Equal(t, tc.args, h.req.Args, tc.text)
		assert.Equal(t, int64(100), h.req.Chat.ChatID)
		assert.NotEmpty(t, h.req.ReqID)
	}
}

func TestPhotoRouting(t *testing.T) {
	_, updates, hits, _ := startRouter(t, Options{}, basicRoutes)

	updates <- kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{
		ChatID: 5, From: kit.Sender{ID: 5}, Caption: "/start", Photo: &kit.Photo{FileID: "f1"},
	}}
	h := wait(t, hits)
	assert.Equal(t, "photo", h.route)
	assert.Equal(t, "f1", h.req.Update.Message.Photo.FileID)
}

func TestCallbackRouting(t *testing.T) {
	_, updates, hits, ad := startRouter(t, Options{}, basicRoutes)

	updates <- kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{ID: "cb1", ChatID: 7, From: kit.Sender{ID: 7}, Data: "lang:set:en"}}
	h := wait(t, hits)
	assert.Equal(t, "cb.lang.set", h.route)
	assert.Equal(t, "en", h.req.Payload)

	// unknown callbacks are answered and dropped
	updates <- kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{ID: "cb2", ChatID: 7, From: kit.Sender{ID: 7}, Data: "nope:x"}}
	assert.Eventually(t, func() bool {
		ids := map[string]bool{}
		for _, a := range ad.Answers() {
			ids[a.CallbackID] = true
		}
		return ids["cb1"] && ids["cb2"]
	}, 2*time.Second, 10*time.Millisecond)
}

type fakeTracker struct {
	mu   sync.Mutex
	seen []int64
	err  error
}

func (f *fakeTracker) Track(ctx context.Context, from kit.Sender) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, from.ID)
	return "en", f.err
}

func TestTrackingMiddleware(t *testing.T) {
	tr := &fakeTracker{}
	_, updates, hits, _ := startRouter(t, Options{Middleware: []Middleware{MWTrack(tr, nil)}}, basicRoutes)

	updates <- textUpdate("hi")
	h := wait(t, hits)
	assert.Equal(t, "en", h.req.Locale)
	tr.mu.Lock()
	assert.Equal(t, []int64{100}, tr.seen)
	tr.mu.Unlock()
}

func TestNonTextMessageReachesFallback(t *testing.T) {
	tr := &fakeTracker{}
	_, updates, hits, _ := startRouter(t, Options{Middleware: []Middleware{MWTrack(tr, nil)}}, basicRoutes)

	updates <- kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ChatID: 9, From: kit.Sender{ID: 9}, Caption: "my file"}}
	h := wait(t, hits)
	assert.Equal(t, "text", h.route)
	assert.Equal(t, "other", h.req.Command)
	assert.Equal(t, "my file", h.req.Text)
	assert.Equal(t, "en", h.req.Locale)

	updates <- kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ChatID: 9, From: kit.Sender{ID: 9}}}
	h = wait(t, hits)
	assert.Equal(t, "text", h.route)
	assert.Empty(t, h.req.Text)

	tr.mu.Lock()
	assert.Equal(t, []int64{9, 9}, tr.seen)
	tr.mu.Unlock()
}

func TestTrackingFailureSkipsHandler(t *testing.T) {
	tr := &fakeTracker{err: errors.New("db locked")}
	failed := make(chan error, 1)
	onErr := func(ctx context.Context, req *Request, err error) error {
		failed <- err
		return err
	}
	_, updates, hits, _ := startRouter(t, Options{Middleware: []Middleware{MWTrack(tr, onErr)}}, basicRoutes)

	updates <- textUpdate("/start")
	select {
	case err := <-failed:
		assert.ErrorIs(t, err, tr.err)
	case <-time.After(2 * time.Second):
		t.Fatal("onErr not called")
	}
	select {
	case h := <-hits:
		t.Fatalf("handler %q must not run", h.route)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPanicIsRecovered(t *testing.T) {
	_, updates, hits, _ := startRouter(t, Options{Workers: 1}, func(record func(string) HandlerFunc) Routes {
		rt := basicRoutes(record)
		rt.Commands = append(rt.Commands, Command{Name: "boom", Handle: func(context.Context, *Request) error { panic("boom") }})
		return rt
	})

	updates <- textUpdate("/boom")
	updates <- textUpdate("/start")
	assert.Equal(t, "start", wait(t, hits).route)
}

func TestTimeoutMiddleware(t *testing.T) {
	got := make(chan bool, 1)
	h := Chain(func(ctx context.Context, req *Request) error {
		_, ok := ctx.Deadline()
		got <- ok
		return nil
	}, MWTimeout(time.Second))
	require.NoError(t, h(context.Background(), &Request{}))
	assert.True(t, <-got)
}

func TestMenu(t *testing.T) {
	r := New(&transporttest.Adapter{}, Options{}, logx.Nop())
	menu := r.SetRoutes(basicRoutes(func(string) HandlerFunc { return func(context.Context, *Request) error { return nil } }))
	assert.Equal(t, []kit.BotCommand{
		{Command: "start", Description: "welcome"},
		{Command: "lang", Description: "language"},
	}, menu)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"a", "b c", "d e", "f g"}, tokenize(`a "b c" 'd e' f\ g`))
	assert.Equal(t, []string{""}, tokenize(`""`))
	assert.Nil(t, tokenize("   "))
}

func TestSplitCommand(t *testing.T) {
	name, rest, ok := splitCommand("/Lang@SomeBot ru")
	require.True(t, ok)
	assert.Equal(t, "lang", name)
	assert.Equal(t, "ru", rest)

	_, _, ok = splitCommand("/")
	assert.False(t, ok)
	_, _, ok = splitCommand("hello")
	assert.False(t, ok)
}

func TestSanitizeCommand(t *testing.T) {
	assert.Equal(t, "stats_digest", sanitizeCommand("Stats-Digest"))
	assert.Equal(t, "", sanitizeCommand("!!"))
}
