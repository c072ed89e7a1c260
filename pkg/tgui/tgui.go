package tgui

import (
	tele "gopkg.in/telebot.v4"
)

// Inline is a small builder for inline keyboards.
type Inline struct {
	rm   *tele.ReplyMarkup
	rows []tele.Row
}

func NewInline() *Inline {
	return &Inline{rm: &tele.ReplyMarkup{}}
}

// Row appends a row; empty rows are skipped.
func (i *Inline) Row(btn ...tele.Btn) *Inline {
	if len(btn) == 0 {
		return i
	}
	i.rows = append(i.rows, i.rm.Row(btn...))
	i.rm.Inline(i.rows...)
	return i
}

// Rows reports how many rows were added.
func (i *Inline) Rows() int { return len(i.rows) }

func (i *Inline) Markup() *tele.ReplyMarkup { return i.rm }

// Btn creates a callback button with raw callback data.
func Btn(text, data string) tele.Btn {
	return tele.Btn{Text: text, Data: data}
}

// URLBtn creates a URL button. A blank url yields a zero button that Row
// callers should leave out.
func URLBtn(text, url string) tele.Btn {
	return tele.Btn{Text: text, URL: url}
}

// Grid2 splits buttons into 2 columns and returns a ready ReplyMarkup.
func Grid2(buttons []tele.Btn) *tele.ReplyMarkup {
	rm := &tele.ReplyMarkup{}
	rows := rm.Split(2, buttons)
	rm.Inline(rows...)
	return rm
}

// ConfirmInline builds a simple 2-button confirm keyboard.
func ConfirmInline(yes, no tele.Btn) *Inline {
	return NewInline().Row(yes, no)
}

// Reply builds a persistent reply keyboard (the bottom menu).
type Reply struct {
	rm   *tele.ReplyMarkup
	rows []tele.Row
}

func NewReply() *Reply {
	return &Reply{rm: &tele.ReplyMarkup{ResizeKeyboard: true, IsPersistent: true}}
}

// Row appends a row of plain text buttons.
func (r *Reply) Row(texts ...string) *Reply {
	btns := make([]tele.Btn, 0, len(texts))
	for _, t := range texts {
		btns = append(btns, r.rm.Text(t))
	}
	r.rows = append(r.rows, r.rm.Row(btns...))
	r.rm.Reply(r.rows...)
	return r
}

func (r *Reply) Markup() *tele.ReplyMarkup { return r.rm }

// RemoveKeyboard hides a previously sent reply keyboard.
func RemoveKeyboard() *tele.ReplyMarkup { return &tele.ReplyMarkup{RemoveKeyboard: true} }
