package tgui

import (
	tele "gopkg.in/telebot.v4"

	kit "imgbot/internal/transport"
)

// Btn is a callback button; data is sent back verbatim.
func Btn(text, data string) tele.Btn {
	return tele.Btn{Text: text, Data: data}
}

// Grid lays buttons out cols per row.
func Grid(cols int, buttons ...tele.Btn) *tele.ReplyMarkup {
	if cols <= 0 {
		cols = 1
	}
	rm := &tele.ReplyMarkup{}
	rm.Inline(rm.Split(cols, buttons)...)
	return rm
}

// Options wraps markup for transport.Adapter calls.
func Options(rm *tele.ReplyMarkup) *kit.SendOptions {
	return &kit.SendOptions{ReplyMarkupAdapter: rm}
}
