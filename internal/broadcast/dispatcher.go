// Package broadcast fans an administrator message out to every registered
// user: one registry snapshot, then sequential throttled sends that never
// stop on an individual failure, with a live progress message.
package broadcast

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"imgbot/internal/access"
	"imgbot/internal/eventbus"
	"imgbot/internal/i18n"
	kit "imgbot/internal/transport"
	logx "imgbot/pkg/logx"
)

type Dispatcher struct {
	mu  sync.Mutex
	cfg Config

	adapter kit.Adapter
	dir     Directory
	admin   *access.Admin
	texts   *i18n.Resolver
	bus     eventbus.Bus
	log     logx.Logger

	running atomic.Bool
}

func New(cfg Config, adapter kit.Adapter, dir Directory, admin *access.Admin, texts *i18n.Resolver, bus eventbus.Bus, log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop()
	}
	return &Dispatcher{
		cfg:     cfg,
		adapter: adapter,
		dir:     dir,
		admin:   admin,
		texts:   texts,
		bus:     bus,
		log:     log,
	}
}

// Apply swaps the configuration. Runs already in progress keep theirs.
func (d *Dispatcher) Apply(cfg Config) {
	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()
}

func (d *Dispatcher) config() Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// Running reports whether a run is in progress.
func (d *Dispatcher) Running() bool { return d.running.Load() }

// Run validates, snapshots and delivers in the caller's goroutine.
func (d *Dispatcher) Run(ctx context.Context, req Request) (Result, error) {
	job, err := d.Prepare(ctx, req)
	if err != nil {
		return Result{}, err
	}
	return job.Execute(ctx), nil
}

// Job is a validated run holding its recipient snapshot. Execute must be
// called exactly once; it releases the single-flight slot.
type Job struct {
	d          *Dispatcher
	req        Request
	cfg        Config
	recipients []int64
	holdsSlot  bool
	once       sync.Once
}

// Total is the snapshot size.
func (j *Job) Total() int { return len(j.recipients) }

// Prepare performs every check that can fail before anything is sent:
// authorization, empty body, the single-flight guard and the registry snapshot.
func (d *Dispatcher) Prepare(ctx context.Context, req Request) (*Job, error) {
	if err := d.admin.Check(req.RequesterID); err != nil {
		d.log.Warn("broadcast rejected", logx.Int64("requester", req.RequesterID), logx.Err(err))
		return nil, err
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyMessage
	}

	cfg := d.config()
	job := &Job{d: d, req: req, cfg: cfg}
	if cfg.SingleFlight {
		if !d.running.CompareAndSwap(false, true) {
			return nil, ErrBusy
		}
		job.holdsSlot = true
	}

	ids, err := d.dir.ListAllUserIDs(ctx)
	if err != nil {
		job.release()
		return nil, fmt.Errorf("broadcast snapshot: %w", err)
	}
	job.recipients = ids
	return job, nil
}

func (j *Job) release() {
	if j.holdsSlot {
		j.d.running.Store(false)
		j.holdsSlot = false
	}
}

// Execute delivers to every recipient in snapshot order. It returns early
// only when ctx is cancelled.
func (j *Job) Execute(ctx context.Context) Result {
	var res Result
	j.once.Do(func() {
		defer j.release()
		res = j.d.execute(ctx, j)
	})
	return res
}

func (d *Dispatcher) execute(ctx context.Context, j *Job) Result {
	cfg := j.cfg
	res := Result{
		ID:        uuid.NewString(),
		Total:     len(j.recipients),
		StartedAt: time.Now(),
	}
	log := d.log.With(logx.String("run", res.ID))
	log.Info("broadcast started", logx.Int64("requester", j.req.RequesterID), logx.Int("total", res.Total), logx.Duration("send_delay", cfg.SendDelay))
	d.bus.Publish(eventbus.Event{Type: eventbus.TypeBroadcastStarted, Data: res})

	progress, progressErr := d.adapter.SendText(ctx, j.req.Chat, d.texts.Text(j.req.Locale, i18n.KeyBroadcastStarted, res.Total), nil)
	if progressErr != nil {
		log.Warn("broadcast progress message failed", logx.Err(progressErr))
	}

	attempted := 0
	for i, id := range j.recipients {
		wait := cfg.SendDelay
		if i == 0 {
			wait = 0
		}
		if err := pause(ctx, wait); err != nil {
			res.Canceled = true
			break
		}
		attempted++
		if err := d.deliver(ctx, id, j.req.Text, cfg); err != nil {
			res.Failed++
			if len(res.FailedIDs) < maxFailedIDs {
				res.FailedIDs = append(res.FailedIDs, id)
			}
			log.Warn("broadcast delivery failed", logx.Err(&DeliveryError{Recipient: id, Err: err}))
		} else {
			res.Successful++
		}

		if progressErr == nil && cfg.ProgressEvery > 0 && attempted%cfg.ProgressEvery == 0 && attempted < res.Total {
			txt := d.texts.Text(j.req.Locale, i18n.KeyBroadcastProgress, attempted, res.Total)
			if err := d.adapter.EditText(ctx, progress, txt, nil); err != nil {
				log.Debug("broadcast progress edit failed", logx.Err(err))
			}
		}
	}
	res.Failed += res.Total - attempted
	res.Duration = time.Since(res.StartedAt)

	fields := []logx.Field{
		logx.Int("total", res.Total),
		logx.Int("ok", res.Successful),
		logx.Int("failed", res.Failed),
		logx.Duration("took", res.Duration),
	}
	switch {
	case res.Canceled:
		log.Warn("broadcast interrupted; untried recipients counted as failed", append(fields, logx.Int("untried", res.Total-attempted))...)
	case res.Failed > 0:
		log.Warn("broadcast finished with failures", fields...)
	default:
		log.Info("broadcast finished", fields...)
	}

	d.report(ctx, j.req, progress, progressErr == nil, res)
	d.bus.Publish(eventbus.Event{Type: eventbus.TypeBroadcastFinished, Data: res})
	return res
}

// pause waits d after an attempt, whatever its outcome. A non-positive d
// only checks ctx.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	tmr := time.NewTimer(d)
	select {
	case <-ctx.Done():
		if !tmr.Stop() {
			<-tmr.C
		}
		return ctx.Err()
	case <-tmr.C:
		return nil
	}
}

func (d *Dispatcher) deliver(ctx context.Context, id int64, body string, cfg Config) error {
	loc := d.texts.Default()
	if cfg.Localize {
		if l, err := d.dir.GetUserLocale(ctx, id); err == nil {
			loc = l
		} else {
			d.log.Debug("recipient locale lookup failed; using default", logx.Int64("user_id", id), logx.Err(err))
		}
	}
	_, err := d.adapter.SendText(ctx, kit.ChatTarget{ChatID: id}, d.texts.Text(loc, i18n.KeyBroadcastHeader, body), nil)
	return err
}

// report edits the progress message into the final report, or sends the
// report as a new message when that is not possible.
func (d *Dispatcher) report(ctx context.Context, req Request, progress kit.MessageRef, hasProgress bool, res Result) {
	// the run may have been interrupted by shutdown; the report still goes out
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	txt := d.texts.Text(req.Locale, i18n.KeyBroadcastReport, res.Total, res.Successful, res.Failed)
	if hasProgress {
		err := d.adapter.EditText(rctx, progress, txt, nil)
		if err == nil {
			return
		}
		d.log.Debug("broadcast report edit failed; sending new message", logx.Err(err))
	}
	if _, err := d.adapter.SendText(rctx, req.Chat, txt, nil); err != nil {
		d.log.Error("broadcast report failed", logx.String("run", res.ID), logx.Err(err))
	}
}
