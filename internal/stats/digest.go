package stats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"imgbot/internal/eventbus"
	"imgbot/internal/i18n"
	kit "imgbot/internal/transport"
	logx "imgbot/pkg/logx"
)

type DigestConfig struct {
	Enabled  bool
	Schedule string // 5-field cron, optional seconds field, or @descriptor
	Timezone string // IANA name; empty means local
}

// LocaleFunc returns the stored locale of a user.
type LocaleFunc func(ctx context.Context, userID int64) (string, error)

// Digest periodically sends the stats report to the administrator.
type Digest struct {
	mu  sync.Mutex
	cfg DigestConfig

	svc      *Service
	adapter  kit.Adapter
	localeOf LocaleFunc
	bus      eventbus.Bus
	log      logx.Logger

	parser cron.Parser
	c      *cron.Cron
	ctx    context.Context
}

func NewDigest(cfg DigestConfig, svc *Service, adapter kit.Adapter, localeOf LocaleFunc, bus eventbus.Bus, log logx.Logger) *Digest {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop()
	}
	return &Digest{
		cfg:      cfg,
		svc:      svc,
		adapter:  adapter,
		localeOf: localeOf,
		bus:      bus,
		log:      log,
		parser:   cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Validate checks a schedule and timezone without installing them.
func (d *Digest) Validate(cfg DigestConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if _, err := d.parser.Parse(strings.TrimSpace(cfg.Schedule)); err != nil {
		return fmt.Errorf("digest schedule %q: %w", cfg.Schedule, err)
	}
	if _, err := loadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("digest timezone %q: %w", cfg.Timezone, err)
	}
	return nil
}

// Start installs the schedule. It is a no-op when the digest is disabled.
func (d *Digest) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ctx = ctx
	return d.startLocked()
}

func (d *Digest) startLocked() error {
	if d.c != nil || !d.cfg.Enabled || d.ctx == nil {
		return nil
	}
	if err := d.Validate(d.cfg); err != nil {
		return err
	}
	loc, _ := loadLocation(d.cfg.Timezone)
	c := cron.New(cron.WithParser(d.parser), cron.WithLocation(loc))
	ctx := d.ctx
	if _, err := c.AddFunc(strings.TrimSpace(d.cfg.Schedule), func() {
		if err := d.RunOnce(ctx); err != nil {
			d.log.Warn("stats digest failed", logx.Err(err))
		}
	}); err != nil {
		return err
	}
	c.Start()
	d.c = c
	d.log.Info("stats digest scheduled", logx.String("schedule", d.cfg.Schedule), logx.String("tz", loc.String()))
	return nil
}

func (d *Digest) Stop(ctx context.Context) {
	d.mu.Lock()
	c := d.c
	d.c = nil
	d.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
}

// Apply reschedules when the schedule, timezone or enabled flag changed.
func (d *Digest) Apply(cfg DigestConfig) error {
	if err := d.Validate(cfg); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if cfg == d.cfg {
		return nil
	}
	d.cfg = cfg
	if d.c != nil {
		<-d.c.Stop().Done()
		d.c = nil
	}
	return d.startLocked()
}

// RunOnce sends one digest now.
func (d *Digest) RunOnce(ctx context.Context) error {
	adminID := d.svc.admin.ID()
	if adminID == 0 {
		return errors.New("stats digest: no administrator configured")
	}
	st, err := d.svc.Get(ctx, adminID)
	if err != nil {
		return err
	}
	loc := d.svc.texts.Default()
	if d.localeOf != nil {
		if l, err := d.localeOf(ctx, adminID); err == nil {
			loc = l
		}
	}
	txt := d.svc.texts.Text(loc, i18n.KeyStatsDigestTitle) + "\n\n" + d.svc.Render(loc, st)
	if _, err := d.adapter.SendText(ctx, kit.ChatTarget{ChatID: adminID}, txt, nil); err != nil {
		return err
	}
	d.bus.Publish(eventbus.Event{Type: eventbus.TypeDigestSent, Data: st})
	return nil
}

func loadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}
