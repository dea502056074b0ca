// Package router turns inbound transport updates into handler calls.
//
// Commands are matched by name or alias ("/cmd@botname" is accepted), photo
// messages go to the photo handler, anything else textual goes to the
// fallback handler, and callbacks are routed by "plugin:action:payload".
// Every request runs on a bounded worker pool behind a middleware chain.
package router

import (
	"context"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	rtsup "imgbot/internal/runtime/supervisor"
	kit "imgbot/internal/transport"
	logx "imgbot/pkg/logx"
)

type HandlerFunc func(ctx context.Context, req *Request) error

type Command struct {
	Name        string
	Aliases     []string
	Description string
	Hidden      bool          // left out of the platform command menu
	Timeout     time.Duration // overrides Options.Timeout
	Handle      HandlerFunc
}

type CallbackRoute struct {
	Plugin  string
	Action  string
	Timeout time.Duration
	Handle  HandlerFunc
}

// Routes is the complete routing table; SetRoutes swaps it atomically.
type Routes struct {
	Commands  []Command
	Callbacks []CallbackRoute
	Photo     HandlerFunc // messages carrying a photo
	Fallback  HandlerFunc // plain text and unknown commands
}

type Request struct {
	Update kit.Update
	Chat   kit.ChatTarget
	From   kit.Sender

	Command string   // matched command name, "photo", "text" or "cb:plugin:action"
	Args    []string // tokenized arguments after the command word
	Text    string   // raw text after the command word; full text otherwise
	Payload string   // callback payload

	Locale  string // filled by the tracking middleware
	ReqID   string
	Adapter kit.Adapter
	Logger  logx.Logger
}

// Reply sends text to the request's chat.
func (r *Request) Reply(ctx context.Context, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	return r.Adapter.SendText(ctx, r.Chat, text, opt)
}

type Options struct {
	Workers    int           // 0 means max(2, NumCPU)
	QueueSize  int           // 0 means 256
	Timeout    time.Duration // default per-request timeout; 0 means none
	Middleware []Middleware  // run innermost, after recovery, logging and timeout
}

type Router struct {
	log     logx.Logger
	adapter kit.Adapter
	opts    Options

	mu        sync.RWMutex
	commands  map[string]*Command
	callbacks map[string]CallbackRoute // "plugin:action"
	photo     HandlerFunc
	fallback  HandlerFunc

	jobs chan func()
}

func New(adapter kit.Adapter, opts Options, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
		if opts.Workers < 2 {
			opts.Workers = 2
		}
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	return &Router{
		log:       log,
		adapter:   adapter,
		opts:      opts,
		commands:  map[string]*Command{},
		callbacks: map[string]CallbackRoute{},
		jobs:      make(chan func(), opts.QueueSize),
	}
}

// SetRoutes installs a routing table and returns the menu derived from it.
func (r *Router) SetRoutes(rt Routes) []kit.BotCommand {
	cmds := map[string]*Command{}
	visible := make([]Command, 0, len(rt.Commands))
	for i := range rt.Commands {
		c := rt.Commands[i]
		name := strings.ToLower(strings.TrimSpace(c.Name))
		if name == "" || c.Handle == nil {
			continue
		}
		c.Name = name
		cmds[name] = &c
		for _, a := range c.Aliases {
			a = strings.ToLower(strings.TrimSpace(a))
			if a == "" || strings.ContainsAny(a, " \t") {
				continue
			}
			if _, taken := cmds[a]; !taken {
				cmds[a] = &c
			}
		}
		if !c.Hidden {
			visible = append(visible, c)
		}
	}

	cbs := map[string]CallbackRoute{}
	for _, cb := range rt.Callbacks {
		p, a := strings.TrimSpace(cb.Plugin), strings.TrimSpace(cb.Action)
		if p == "" || a == "" || cb.Handle == nil {
			continue
		}
		cbs[p+":"+a] = cb
	}

	r.mu.Lock()
	r.commands = cmds
	r.callbacks = cbs
	r.photo = rt.Photo
	r.fallback = rt.Fallback
	r.mu.Unlock()

	return buildMenu(visible)
}

// Run consumes updates until ctx is done or updates is closed.
func (r *Router) Run(ctx context.Context, updates <-chan kit.Update) error {
	sup := rtsup.New(ctx,
		rtsup.WithLogger(r.log.With(logx.String("comp", "router"))),
		rtsup.WithCancelOnError(false),
	)
	for i := 0; i < r.opts.Workers; i++ {
		idx := i
		sup.GoRestart("router.worker."+strconv.Itoa(idx), func(c context.Context) error {
			r.worker(c, idx)
			return nil
		},
			rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second),
			rtsup.WithPublishFirstError(true),
		)
	}
	r.log.Info("router started", logx.Int("workers", r.opts.Workers), logx.Int("queue_cap", cap(r.jobs)))

	defer func() {
		sup.Cancel()
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		r.log.Info("router stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			r.Route(ctx, up)
		}
	}
}

func (r *Router) worker(ctx context.Context, idx int) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-r.jobs:
			func() {
				defer func() {
					if rec := recover(); rec != nil {
						r.log.Error("panic in router job", logx.Int("worker", idx), logx.Any("panic", rec), logx.String("stack", string(debug.Stack())))
					}
				}()
				job()
			}()
		}
	}
}

// Route resolves one update and enqueues its handler.
func (r *Router) Route(ctx context.Context, up kit.Update) {
	switch up.Kind {
	case kit.UpdateMessage:
		if up.Message != nil {
			r.routeMessage(ctx, up)
		}
	case kit.UpdateCallback:
		if up.Callback != nil {
			r.routeCallback(ctx, up)
		}
	}
}

func (r *Router) routeMessage(ctx context.Context, up kit.Update) {
	msg := up.Message
	req := &Request{
		Update: up,
		Chat:   kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID},
		From:   msg.From,
	}

	r.mu.RLock()
	photo, fallback := r.photo, r.fallback
	r.mu.RUnlock()

	if msg.Photo != nil {
		req.Command = "photo"
		req.Text = msg.Caption
		r.enqueue(ctx, req, photo, 0)
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		// stickers, documents, voice and the like still reach the fallback
		req.Command = "other"
		req.Text = strings.TrimSpace(msg.Caption)
		r.enqueue(ctx, req, fallback, 0)
		return
	}
	if name, rest, ok := splitCommand(text); ok {
		r.mu.RLock()
		cmd := r.commands[name]
		r.mu.RUnlock()
		if cmd != nil {
			req.Command = cmd.Name
			req.Text = rest
			req.Args = tokenize(rest)
			r.enqueue(ctx, req, cmd.Handle, cmd.Timeout)
			return
		}
	}
	req.Command = "text"
	req.Text = text
	r.enqueue(ctx, req, fallback, 0)
}

func (r *Router) routeCallback(ctx context.Context, up kit.Update) {
	cb := up.Callback
	parts := strings.SplitN(strings.TrimSpace(cb.Data), ":", 3)
	if len(parts) < 2 {
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "")
		return
	}
	key := parts[0] + ":" + parts[1]

	r.mu.RLock()
	route, ok := r.callbacks[key]
	r.mu.RUnlock()
	if !ok {
		r.log.Debug("unknown callback", logx.String("data", cb.Data))
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "")
		return
	}

	req := &Request{
		Update:  up,
		Chat:    kit.ChatTarget{ChatID: cb.ChatID, ThreadID: cb.ThreadID},
		From:    cb.From,
		Command: "cb:" + key,
	}
	if len(parts) == 3 {
		req.Payload = parts[2]
	}
	h := route.Handle
	r.enqueue(ctx, req, func(c context.Context, rq *Request) error {
		err := h(c, rq)
		// stop the client spinner; a handler that already answered makes this a no-op
		_ = rq.Adapter.AnswerCallback(c, cb.ID, "")
		return err
	}, route.Timeout)
}

func (r *Router) enqueue(ctx context.Context, req *Request, h HandlerFunc, timeout time.Duration) {
	if h == nil {
		return
	}
	if timeout <= 0 {
		timeout = r.opts.Timeout
	}
	req.ReqID = newReqID()
	req.Adapter = r.adapter
	req.Logger = r.log.With(
		logx.String("rid", req.ReqID),
		logx.Int64("chat_id", req.Chat.ChatID),
		logx.Int64("from_id", req.From.ID),
		logx.String("cmd", req.Command),
	)

	mws := append([]Middleware{
		MWPanicRecover(r.log),
		MWRequestLog(r.log),
		MWTimeout(timeout),
	}, r.opts.Middleware...)
	final := Chain(h, mws...)

	select {
	case r.jobs <- func() { _ = final(ctx, req) }:
	default:
		req.Logger.Warn("router queue full; update dropped", logx.Int("queue_cap", cap(r.jobs)))
	}
}

// splitCommand parses "/name@bot rest" into ("name", "rest").
func splitCommand(text string) (name, rest string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	word := text[1:]
	if i := strings.IndexAny(word, " \t\n"); i >= 0 {
		word, rest = word[:i], strings.TrimSpace(word[i+1:])
	}
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	word = strings.ToLower(word)
	return word, rest, word != ""
}
