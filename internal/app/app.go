// Package app builds every component once from the config file and owns
// their lifecycle: start order, hot reload fan-out and bounded shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"

	"imgbot/internal/access"
	"imgbot/internal/bot"
	"imgbot/internal/broadcast"
	"imgbot/internal/config"
	"imgbot/internal/eventbus"
	"imgbot/internal/i18n"
	"imgbot/internal/registry"
	"imgbot/internal/runtime/supervisor"
	"imgbot/internal/stats"
	kit "imgbot/internal/transport"
	telegram "imgbot/internal/transport/telegram/adapter"
	"imgbot/internal/transport/telegram/router"
	"imgbot/internal/upload"
	logx "imgbot/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store     *registry.Store
	adapter   kit.Adapter
	router    *router.Router
	bot       *bot.Bot
	broadcast *broadcast.Dispatcher
	digest    *stats.Digest

	updates chan kit.Update
}

type Option func(*options)

type options struct {
	adapter  kit.Adapter
	uploader upload.Uploader
	cfgOpts  []config.Option
}

// WithAdapter replaces the Telegram adapter.
func WithAdapter(ad kit.Adapter) Option { return func(o *options) { o.adapter = ad } }

// WithUploader replaces the configured upload provider.
func WithUploader(u upload.Uploader) Option { return func(o *options) { o.uploader = u } }

// WithConfigOptions is passed through to the config manager.
func WithConfigOptions(opts ...config.Option) Option {
	return func(o *options) { o.cfgOpts = append(o.cfgOpts, opts...) }
}

func New(ctx context.Context, cfgPath string, opts ...Option) (a *App, err error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	cfgm := config.NewManager(cfgPath, o.cfgOpts...)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	ad := o.adapter
	if ad == nil {
		pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
		if err != nil {
			return nil, err
		}
		bootLog := logx.NewConsole(cfg.Logging.Level).With(logx.String("comp", "telegram"))
		tg, err := telegram.New(telegram.Config{Token: cfg.Telegram.Token, PollTimeout: pollTimeout}, bootLog)
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
		ad = tg
	}

	logSvc, log := logx.New(logConfig(cfg), ad)
	logSvc.SetTelegramChat(cfg.Telegram.AdminID)
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	defer func() {
		if err != nil {
			_ = logSvc.Close()
		}
	}()

	texts, err := i18n.New(cfg.Locale.Default)
	if err != nil {
		return nil, fmt.Errorf("locale.default: %w", err)
	}

	rcfg, err := registryConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := registry.Open(ctx, rcfg, log.With(logx.String("comp", "registry")))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = store.Close()
		}
	}()

	uploader := o.uploader
	if uploader == nil {
		ucfg, err := uploadConfig(cfg)
		if err != nil {
			return nil, err
		}
		uploader, err = upload.New(ctx, ucfg, log.With(logx.String("comp", "upload")))
		if err != nil {
			return nil, err
		}
	}

	bcfg, err := broadcastConfig(cfg)
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()
	admin := access.NewAdmin(cfg.Telegram.AdminID)
	statsSvc := stats.New(store, admin, texts)
	dispatcher := broadcast.New(bcfg, ad, store, admin, texts, bus, log.With(logx.String("comp", "broadcast")))
	digest := stats.NewDigest(digestConfig(cfg), statsSvc, ad, store.GetUserLocale, bus, log.With(logx.String("comp", "stats.digest")))
	if err := digest.Validate(digestConfig(cfg)); err != nil {
		return nil, err
	}

	a = &App{
		cfgm:      cfgm,
		log:       log.With(logx.String("comp", "app")),
		logs:      logSvc,
		bus:       bus,
		store:     store,
		adapter:   ad,
		broadcast: dispatcher,
		digest:    digest,
		updates:   make(chan kit.Update, 256),
	}
	a.bot = bot.New(bot.Deps{
		Registry:  store,
		Texts:     texts,
		Admin:     admin,
		Stats:     statsSvc,
		Broadcast: dispatcher,
		Uploader:  uploader,
		Spawner:   a,
		Bus:       bus,
		Log:       log.With(logx.String("comp", "bot")),
	})
	a.router = router.New(ad, router.Options{
		Timeout:    2 * time.Minute,
		Middleware: []router.Middleware{router.MWTrack(a.bot, a.bot.TrackFailed)},
	}, log.With(logx.String("comp", "router")))
	return a, nil
}

// Go runs fn under the app supervisor. Work spawned before Start runs on a
// detached context.
func (a *App) Go(name string, fn func(ctx context.Context) error) {
	if a.sup == nil {
		go func() { _ = fn(context.Background()) }()
		return
	}
	a.sup.Go(name, fn)
}

// Done is closed when the app context is cancelled by a fatal error or Stop.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	c := a.sup.Context()

	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := broadcastConfig(cfg); err != nil {
			return err
		}
		return a.digest.Validate(digestConfig(cfg))
	})

	menu := a.router.SetRoutes(a.bot.Routes())
	if mu, ok := a.adapter.(kit.CommandMenuUpdater); ok {
		mctx, cancel := context.WithTimeout(c, 10*time.Second)
		if err := mu.UpdateMenuCommands(mctx, menu); err != nil {
			a.log.Warn("command menu update failed", logx.Err(err))
		}
		cancel()
	}

	if err := a.adapter.Start(c, a.updates); err != nil {
		return err
	}
	a.sup.Go("router", func(c context.Context) error {
		return a.router.Run(c, a.updates)
	})
	if err := a.digest.Start(c); err != nil {
		return err
	}

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time), logx.Any("data", e.Data))
			}
		}
	})

	sub := a.cfgm.Subscribe(4)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case cfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(last, cfg)
				last = cfg
			}
		}
	})
	a.sup.GoRestart("config.watch", a.cfgm.Watch,
		supervisor.WithRestartBackoff(time.Second, 30*time.Second),
	)

	a.log.Info("app started", logx.Int64("admin_id", a.cfgm.Get().Telegram.AdminID))
	return nil
}

// applyConfig pushes the hot-reloadable sections into running components.
func (a *App) applyConfig(prev, cfg *config.Config) {
	sections, fields := config.Summarize(prev, cfg)
	for _, f := range config.RestartRequired(prev, cfg) {
		a.log.Warn("config change needs a restart", logx.String("field", f))
	}
	if len(sections) == 0 {
		a.log.Info("config reloaded (no live changes)")
		return
	}

	a.logs.Apply(logConfig(cfg))
	if bcfg, err := broadcastConfig(cfg); err != nil {
		a.log.Warn("invalid broadcast config; keeping previous", logx.Err(err))
	} else {
		a.broadcast.Apply(bcfg)
	}
	if err := a.digest.Apply(digestConfig(cfg)); err != nil {
		a.log.Warn("invalid digest config; keeping previous", logx.Err(err))
	}

	a.log.Info("config reloaded", append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, fields...)...)
}

// Stop shuts components down in dependency order. Each step is bounded so
// one stuck component cannot hold the process; ctx caps the whole sequence.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return multierr.Combine(a.store.Close(), a.logs.Close())
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	var errs error
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		sctx, cancel := context.WithTimeout(ctx, max)
		defer cancel()
		if err := fn(sctx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("stop step failed", logx.String("step", name), logx.Err(err))
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
		}
		a.log.Debug("stop step done", logx.String("step", name), logx.Duration("took", time.Since(start)))
	}

	// stop intake first so nothing new reaches the router
	step("adapter", 3*time.Second, a.adapter.Stop)
	step("digest", 2*time.Second, func(c context.Context) error {
		a.digest.Stop(c)
		return nil
	})
	a.sup.Cancel()
	// broadcasts write their final report on a detached context; give them room
	step("supervisor", 15*time.Second, a.sup.Wait)
	step("registry", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	return multierr.Append(errs, a.logs.Close())
}
