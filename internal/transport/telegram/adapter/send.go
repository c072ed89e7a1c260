package adapter

import (
	"context"
	"strings"

	tele "gopkg.in/telebot.v4"

	"valubot/internal/transport"
)

// captionLimit is Telegram's caption size limit in runes.
const captionLimit = 1024

func sendOptions(to transport.ChatTarget, opt *transport.SendOptions, withMarkup bool) *tele.SendOptions {
	so := &tele.SendOptions{
		ParseMode:             tele.ParseMode(opt.ParseMode),
		DisableWebPagePreview: opt.DisablePreview,
		ThreadID:              to.ThreadID,
	}
	if withMarkup {
		if rm, ok := opt.ReplyMarkup.(*tele.ReplyMarkup); ok {
			so.ReplyMarkup = rm
		}
	}
	return so
}

// within runs a blocking Bot API call and gives up when ctx ends first.
// telebot ignores contexts, so the abandoned call finishes in the background
// under the HTTP client's own timeout.
func within[T any](ctx context.Context, call func() (T, error)) (T, error) {
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := call()
		done <- result{v, err}
	}()
	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (a *Adapter) send(ctx context.Context, to tele.Recipient, what any, opt *tele.SendOptions) (*tele.Message, error) {
	msg, err := within(ctx, func() (*tele.Message, error) { return a.bot.Send(to, what, opt) })
	if err != nil && ctx.Err() == nil {
		return nil, mapError(err)
	}
	return msg, err
}

// SendText splits long text into several messages; only the first carries
// the reply markup and its reference is returned.
func (a *Adapter) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	if opt == nil {
		opt = &transport.SendOptions{}
	}
	chat := &tele.Chat{ID: to.ChatID}

	var first transport.MessageRef
	for i, chunk := range splitText(text, textLimit, opt.ParseMode) {
		msg, err := a.send(ctx, chat, chunk, sendOptions(to, opt, i == 0))
		if err != nil {
			return first, err
		}
		if i == 0 {
			first = transport.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}
		}
	}
	return first, nil
}

// SendPhoto sends an uploaded photo. A caption above Telegram's limit is
// sent as a follow-up text message instead.
func (a *Adapter) SendPhoto(ctx context.Context, to transport.ChatTarget, photo transport.Photo, caption string, opt *transport.SendOptions) (transport.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return transport.MessageRef{}, err
	}
	if opt == nil {
		opt = &transport.SendOptions{}
	}
	p := &tele.Photo{File: tele.File{FileID: photo.FileID}}
	long := len([]rune(caption)) > captionLimit
	if !long {
		p.Caption = caption
	}
	msg, err := a.send(ctx, &tele.Chat{ID: to.ChatID}, p, sendOptions(to, opt, true))
	if err != nil {
		return transport.MessageRef{}, err
	}
	ref := transport.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}
	if long {
		rest := *opt
		rest.ReplyMarkup = nil
		if _, err := a.SendText(ctx, to, caption, &rest); err != nil {
			return ref, err
		}
	}
	return ref, nil
}

// EditText replaces a message's text. Overflow beyond one message is sent
// as new messages below it.
func (a *Adapter) EditText(ctx context.Context, ref transport.MessageRef, text string, opt *transport.SendOptions) error {
	if opt == nil {
		opt = &transport.SendOptions{}
	}
	to := transport.ChatTarget{ChatID: ref.ChatID, ThreadID: ref.ThreadID}
	chunks := splitText(text, textLimit, opt.ParseMode)

	m := &tele.Message{ID: ref.MessageID, Chat: &tele.Chat{ID: ref.ChatID}}
	_, err := within(ctx, func() (*tele.Message, error) { return a.bot.Edit(m, chunks[0], sendOptions(to, opt, true)) })
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return err
		case isNotModified(err):
			return nil
		}
		return mapError(err)
	}
	for _, chunk := range chunks[1:] {
		if _, err := a.send(ctx, &tele.Chat{ID: ref.ChatID}, chunk, sendOptions(to, opt, false)); err != nil {
			return err
		}
	}
	return nil
}

func isNotModified(err error) bool {
	return strings.Contains(err.Error(), "message is not modified")
}

func (a *Adapter) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	_, err := within(ctx, func() (struct{}, error) {
		return struct{}{}, a.bot.Respond(&tele.Callback{ID: callbackID}, &tele.CallbackResponse{Text: text})
	})
	return err
}

// ResolveHandle reports whether a public user or chat with this username
// exists.
func (a *Adapter) ResolveHandle(ctx context.Context, handle string) (bool, error) {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if handle == "" {
		return false, nil
	}
	chat, err := within(ctx, func() (*tele.Chat, error) { return a.bot.ChatByUsername("@" + handle) })
	if err != nil {
		if ctx.Err() == nil && isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return chat != nil, nil
}
