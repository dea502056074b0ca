// Package bot holds the chat-facing handlers. It translates router requests
// into registry, upload, stats and broadcast calls and maps every error kind
// onto one localized text; internal error text never reaches users.
package bot

import (
	"context"
	"errors"
	"time"

	"imgbot/internal/access"
	"imgbot/internal/broadcast"
	"imgbot/internal/eventbus"
	"imgbot/internal/i18n"
	"imgbot/internal/registry"
	"imgbot/internal/stats"
	kit "imgbot/internal/transport"
	"imgbot/internal/transport/telegram/router"
	"imgbot/internal/upload"
	logx "imgbot/pkg/logx"
)

// Registry is the part of the registry store the handlers use.
type Registry interface {
	UpsertUser(ctx context.Context, p registry.Profile) error
	TouchActivity(ctx context.Context, id int64) error
	GetUserLocale(ctx context.Context, id int64) (string, error)
	SetUserLocale(ctx context.Context, id int64, locale string) error
	RecordUpload(ctx context.Context, userID int64, url string) error
}

// Spawner runs long work outside the request; *supervisor.Supervisor satisfies it.
type Spawner interface {
	Go(name string, fn func(ctx context.Context) error)
}

type Deps struct {
	Registry  Registry
	Texts     *i18n.Resolver
	Admin     *access.Admin
	Stats     *stats.Service
	Broadcast *broadcast.Dispatcher
	Uploader  upload.Uploader
	Spawner   Spawner
	Bus       eventbus.Bus
	Log       logx.Logger
}

type Bot struct {
	reg       Registry
	texts     *i18n.Resolver
	admin     *access.Admin
	stats     *stats.Service
	broadcast *broadcast.Dispatcher
	uploader  upload.Uploader
	spawn     Spawner
	bus       eventbus.Bus
	log       logx.Logger
}

func New(d Deps) *Bot {
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	if d.Bus == nil {
		d.Bus = eventbus.Nop()
	}
	return &Bot{
		reg:       d.Registry,
		texts:     d.Texts,
		admin:     d.Admin,
		stats:     d.Stats,
		broadcast: d.Broadcast,
		uploader:  d.Uploader,
		spawn:     d.Spawner,
		bus:       d.Bus,
		log:       d.Log,
	}
}

// Routes is the bot's routing table.
func (b *Bot) Routes() router.Routes {
	return router.Routes{
		Commands: []router.Command{
			{Name: "start", Description: "Start / Начать", Handle: b.handleStart},
			{Name: "help", Description: "Help / Помощь", Handle: b.handleStart},
			{Name: "lang", Aliases: []string{"language"}, Description: "Language / Язык", Handle: b.handleLang},
			{Name: "stats", Hidden: true, Handle: b.handleStats},
			{Name: "all", Hidden: true, Handle: b.handleBroadcast},
		},
		Callbacks: []router.CallbackRoute{
			{Plugin: "lang", Action: "set", Handle: b.handleLangCallback},
		},
		Photo:    b.handlePhoto,
		Fallback: b.handleText,
	}
}

// Track registers the sender on first sight, bumps their activity and
// returns their stored locale.
func (b *Bot) Track(ctx context.Context, from kit.Sender) (string, error) {
	if err := b.reg.UpsertUser(ctx, registry.Profile{
		ID:        from.ID,
		Username:  from.Username,
		FirstName: from.FirstName,
		LastName:  from.LastName,
	}); err != nil {
		return "", err
	}
	if err := b.reg.TouchActivity(ctx, from.ID); err != nil {
		return "", err
	}
	loc, err := b.reg.GetUserLocale(ctx, from.ID)
	if errors.Is(err, registry.ErrNotFound) {
		return b.texts.Default(), nil
	}
	return loc, err
}

// TrackFailed answers a request whose tracking step failed.
func (b *Bot) TrackFailed(ctx context.Context, req *router.Request, err error) error {
	req.Logger.Error("user tracking failed", logx.Err(err))
	b.reply(ctx, req, b.texts.Text(b.texts.Default(), i18n.KeyGenericError))
	return err
}

func (b *Bot) reply(ctx context.Context, req *router.Request, text string) {
	if _, err := req.Reply(ctx, text, nil); err != nil {
		req.Logger.Warn("reply failed", logx.Err(err))
	}
}

func (b *Bot) t(req *router.Request, key i18n.Key, args ...any) string {
	return b.texts.Text(req.Locale, key, args...)
}

func (b *Bot) handleStart(ctx context.Context, req *router.Request) error {
	b.reply(ctx, req, b.t(req, i18n.KeyWelcome))
	return nil
}

func (b *Bot) handleText(ctx context.Context, req *router.Request) error {
	b.reply(ctx, req, b.t(req, i18n.KeySendPhotoHint))
	return nil
}

func (b *Bot) handleStats(ctx context.Context, req *router.Request) error {
	st, err := b.stats.Get(ctx, req.From.ID)
	switch {
	case errors.Is(err, access.ErrUnauthorized):
		b.reply(ctx, req, b.t(req, i18n.KeyAdminOnly))
		return nil
	case err != nil:
		b.reply(ctx, req, b.t(req, i18n.KeyStatsError))
		return err
	}
	b.reply(ctx, req, b.stats.Render(req.Locale, st))
	return nil
}

// handleBroadcast validates synchronously and delivers in the background so
// the router keeps serving other users while the run waits between sends.
func (b *Bot) handleBroadcast(ctx context.Context, req *router.Request) error {
	job, err := b.broadcast.Prepare(ctx, broadcast.Request{
		RequesterID: req.From.ID,
		Chat:        req.Chat,
		Text:        req.Text,
		Locale:      req.Locale,
	})
	switch {
	case errors.Is(err, access.ErrUnauthorized):
		b.reply(ctx, req, b.t(req, i18n.KeyAdminOnly))
		return nil
	case errors.Is(err, broadcast.ErrEmptyMessage):
		b.reply(ctx, req, b.t(req, i18n.KeyBroadcastUsage))
		return nil
	case errors.Is(err, broadcast.ErrBusy):
		b.reply(ctx, req, b.t(req, i18n.KeyBroadcastBusy))
		return nil
	case err != nil:
		b.reply(ctx, req, b.t(req, i18n.KeyBroadcastError))
		return err
	}

	run := func(ctx context.Context) error {
		job.Execute(ctx)
		return nil
	}
	if b.spawn == nil {
		return run(context.WithoutCancel(ctx))
	}
	b.spawn.Go("broadcast", run)
	return nil
}

func (b *Bot) publish(typ string, data any) {
	b.bus.Publish(eventbus.Event{Type: typ, Time: time.Now(), Data: data})
}
