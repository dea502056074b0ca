// Package transporttest provides a recording transport.Adapter for tests.
package transporttest

import (
	"context"
	"errors"
	"sync"

	kit "imgbot/internal/transport"
)

// ErrSend is the default failure injected by FailChat.
var ErrSend = errors.New("transporttest: send failed")

type Sent struct {
	To      kit.ChatTarget
	Text    string
	Opt     *kit.SendOptions
	Ref     kit.MessageRef
	PhotoOf string // photo URL for SendPhoto calls
}

type Edit struct {
	Ref  kit.MessageRef
	Text string
}

type Answer struct {
	CallbackID string
	Text       string
}

// Adapter records every outbound call. The zero value is ready to use.
type Adapter struct {
	mu sync.Mutex

	sent    []Sent
	edits   []Edit
	answers []Answer
	nextID  int

	failChats   map[int64]error
	failEdits   bool
	failPhotos  bool
	failAnswers bool
	files       map[string][]byte
	menu        []kit.BotCommand
}

var _ kit.Adapter = (*Adapter)(nil)

func (a *Adapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (a *Adapter) Stop(ctx context.Context) error { return nil }

// FailChat makes every send to chatID fail with err (ErrSend when nil).
func (a *Adapter) FailChat(chatID int64, err error) {
	if err == nil {
		err = ErrSend
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failChats == nil {
		a.failChats = map[int64]error{}
	}
	a.failChats[chatID] = err
}

// FailEdits makes every EditText fail.
func (a *Adapter) FailEdits(v bool) {
	a.mu.Lock()
	a.failEdits = v
	a.mu.Unlock()
}

// FailAnswers makes every AnswerCallback fail with ErrSend.
func (a *Adapter) FailAnswers(v bool) {
	a.mu.Lock()
	a.failAnswers = v
	a.mu.Unlock()
}

// FailPhotos makes every SendPhoto fail while text sends keep working.
func (a *Adapter) FailPhotos(v bool) {
	a.mu.Lock()
	a.failPhotos = v
	a.mu.Unlock()
}

// PutFile registers content for DownloadFile.
func (a *Adapter) PutFile(fileID string, data []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.files == nil {
		a.files = map[string][]byte{}
	}
	a.files[fileID] = data
}

func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	return a.record(ctx, to, text, "", opt)
}

func (a *Adapter) SendPhoto(ctx context.Context, to kit.ChatTarget, url, caption string, opt *kit.SendOptions) (kit.MessageRef, error) {
	a.mu.Lock()
	fail := a.failPhotos
	a.mu.Unlock()
	if fail {
		return kit.MessageRef{}, ErrSend
	}
	return a.record(ctx, to, caption, url, opt)
}

func (a *Adapter) record(ctx context.Context, to kit.ChatTarget, text, photo string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return kit.MessageRef{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.failChats[to.ChatID]; err != nil {
		return kit.MessageRef{}, err
	}
	a.nextID++
	ref := kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: a.nextID}
	a.sent = append(a.sent, Sent{To: to, Text: text, Opt: opt, Ref: ref, PhotoOf: photo})
	return ref, nil
}

func (a *Adapter) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failEdits {
		return ErrSend
	}
	a.edits = append(a.edits, Edit{Ref: ref, Text: text})
	return nil
}

func (a *Adapter) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.files[fileID]
	if !ok {
		return nil, errors.New("transporttest: file not found")
	}
	return append([]byte(nil), b...), nil
}

func (a *Adapter) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failAnswers {
		return ErrSend
	}
	a.answers = append(a.answers, Answer{CallbackID: callbackID, Text: text})
	return nil
}

func (a *Adapter) UpdateMenuCommands(ctx context.Context, cmds []kit.BotCommand) error {
	a.mu.Lock()
	a.menu = append([]kit.BotCommand(nil), cmds...)
	a.mu.Unlock()
	return nil
}

func (a *Adapter) Sent() []Sent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Sent(nil), a.sent...)
}

// SentTo returns the texts successfully sent to chatID, in order.
func (a *Adapter) SentTo(chatID int64) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []string
	for _, s := range a.sent {
		if s.To.ChatID == chatID {
			out = append(out, s.Text)
		}
	}
	return out
}

func (a *Adapter) Edits() []Edit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Edit(nil), a.edits...)
}

func (a *Adapter) Answers() []Answer {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Answer(nil), a.answers...)
}

func (a *Adapter) Menu() []kit.BotCommand {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]kit.BotCommand(nil), a.menu...)
}
