package tgui

import (
	"context"
	"strings"

	tele "gopkg.in/telebot.v4"

	"valubot/internal/transport"
)

// Message is a rendered UI payload: text plus send options.
type Message struct {
	Text string
	Opt  *transport.SendOptions
}

// Send delivers the message as text.
func (m Message) Send(ctx context.Context, s transport.Sender, to transport.ChatTarget) (transport.MessageRef, error) {
	return s.SendText(ctx, to, m.Text, m.options())
}

// Editor edits an already sent message.
type Editor interface {
	EditText(ctx context.Context, ref transport.MessageRef, text string, opt *transport.SendOptions) error
}

func (m Message) Edit(ctx context.Context, e Editor, ref transport.MessageRef) error {
	return e.EditText(ctx, ref, m.Text, m.options())
}

func (m Message) options() *transport.SendOptions {
	if m.Opt == nil {
		return &transport.SendOptions{}
	}
	return m.Opt
}

// Builder assembles HTML messages line by line. Defaults: ParseMode=HTML,
// previews disabled.
type Builder struct {
	disablePreview bool
	rm             *tele.ReplyMarkup
	lines          []string
}

func New() *Builder {
	return &Builder{disablePreview: true}
}

func (b *Builder) DisablePreview(v bool) *Builder {
	b.disablePreview = v
	return b
}

// Inline attaches an inline keyboard; nil clears it.
func (b *Builder) Inline(kb *Inline) *Builder {
	if kb == nil {
		b.rm = nil
		return b
	}
	b.rm = kb.Markup()
	return b
}

// Markup attaches any prepared markup (a reply keyboard, for instance).
func (b *Builder) Markup(rm *tele.ReplyMarkup) *Builder {
	b.rm = rm
	return b
}

// Title adds a bold title line. Emoji is optional.
func (b *Builder) Title(emoji, title string) *Builder {
	e, t := strings.TrimSpace(emoji), strings.TrimSpace(title)
	if t == "" {
		return b
	}
	if e != "" {
		b.lines = append(b.lines, Esc(e).String()+" "+B(t).String())
	} else {
		b.lines = append(b.lines, B(t).String())
	}
	return b
}

func (b *Builder) Section(title string) *Builder {
	if t := strings.TrimSpace(title); t != "" {
		b.lines = append(b.lines, B(t).String())
	}
	return b
}

// Line adds an escaped line.
func (b *Builder) Line(s string) *Builder {
	b.lines = append(b.lines, Esc(s).String())
	return b
}

// HTML appends already-safe HTML.
func (b *Builder) HTML(h H) *Builder {
	b.lines = append(b.lines, h.String())
	return b
}

func (b *Builder) Blank() *Builder { return b.Line("") }

// Bullets adds "• item" lines, skipping blanks.
func (b *Builder) Bullets(items ...string) *Builder {
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			b.Line("• " + it)
		}
	}
	return b
}

// KV adds a "• key: value" row with the key in bold.
func (b *Builder) KV(key, value string) *Builder {
	key = strings.TrimSpace(key)
	if key == "" {
		return b
	}
	b.lines = append(b.lines, "• "+B(key).String()+": "+Esc(strings.TrimSpace(value)).String())
	return b
}

func (b *Builder) Build() Message {
	opt := &transport.SendOptions{ParseMode: "HTML", DisablePreview: b.disablePreview}
	if b.rm != nil {
		opt.ReplyMarkup = b.rm
	}
	return Message{Text: strings.Trim(strings.Join(b.lines, "\n"), "\n"), Opt: opt}
}
