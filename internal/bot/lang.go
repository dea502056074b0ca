package bot

import (
	"context"
	"strings"

	tele "gopkg.in/telebot.v4"

	"imgbot/internal/eventbus"
	"imgbot/internal/i18n"
	kit "imgbot/internal/transport"
	"imgbot/internal/transport/telegram/router"
	logx "imgbot/pkg/logx"
	"imgbot/pkg/tgui"
)

// LocaleChange is the payload of user.locale_changed events.
type LocaleChange struct {
	UserID int64
	Locale string
}

func (b *Bot) langKeyboard() *kit.SendOptions {
	codes := i18n.Supported()
	btns := make([]tele.Btn, 0, len(codes))
	for _, c := range codes {
		btns = append(btns, tgui.Btn(i18n.Label(c), tgui.Data("lang", "set", c)))
	}
	return tgui.Options(tgui.Grid(2, btns...))
}

func (b *Bot) handleLang(ctx context.Context, req *router.Request) error {
	if len(req.Args) == 0 {
		if _, err := req.Reply(ctx, b.t(req, i18n.KeyLangPrompt), b.langKeyboard()); err != nil {
			req.Logger.Warn("reply failed", logx.Err(err))
		}
		return nil
	}
	txt, err := b.setLocale(ctx, req, req.Args[0])
	b.reply(ctx, req, txt)
	return err
}

func (b *Bot) handleLangCallback(ctx context.Context, req *router.Request) error {
	txt, err := b.setLocale(ctx, req, req.Payload)
	cb := req.Update.Callback
	if e := req.Adapter.AnswerCallback(ctx, cb.ID, txt); e != nil {
		req.Logger.Debug("language callback answer failed", logx.Err(e))
	}
	ref := kit.MessageRef{ChatID: cb.ChatID, ThreadID: cb.ThreadID, MessageID: cb.MessageID}
	if e := req.Adapter.EditText(ctx, ref, txt, nil); e != nil {
		req.Logger.Debug("language prompt edit failed", logx.Err(e))
	}
	return err
}

// setLocale stores a new locale and returns the text to show, rendered in
// the new locale on success.
func (b *Bot) setLocale(ctx context.Context, req *router.Request, code string) (string, error) {
	code = strings.TrimSpace(code)
	if !i18n.Has(code) {
		return b.t(req, i18n.KeyLangUnknown, strings.Join(i18n.Supported(), ", ")), nil
	}
	loc := b.texts.Resolve(code)
	if err := b.reg.SetUserLocale(ctx, req.From.ID, loc); err != nil {
		return b.t(req, i18n.KeyGenericError), err
	}
	req.Locale = loc
	b.publish(eventbus.TypeLocaleChanged, LocaleChange{UserID: req.From.ID, Locale: loc})
	return b.texts.Text(loc, i18n.KeyLangChanged, i18n.Label(loc)), nil
}
