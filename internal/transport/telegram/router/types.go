// Package router turns transport updates into plugin handler calls: slash
// commands, inline callbacks and free-form input, each run through the
// middleware chain on a bounded worker pool.
package router

import (
	"context"
	"time"

	"valubot/internal/transport"
	"valubot/pkg/logx"
	"valubot/pkg/tgui"
)

type HandlerFunc func(ctx context.Context, req *Request) error

type Access int

const (
	AccessEveryone Access = iota
	AccessOwnerOnly
)

type Command struct {
	Name        string
	Aliases     []string
	Description string
	Access      Access
	// Hidden commands work but are left out of the platform menu.
	Hidden  bool
	Timeout time.Duration
	Handle  HandlerFunc
}

type CallbackHandlerFunc func(ctx context.Context, req *Request, payload string) error

// CallbackAccess controls who can press a button. The zero value is
// owner-only; public screens opt in with CallbackAccessEveryone.
type CallbackAccess int

const (
	CallbackAccessOwnerOnly CallbackAccess = iota
	CallbackAccessEveryone
)

type CallbackRoute struct {
	NS      string
	Action  string
	Access  CallbackAccess
	Timeout time.Duration
	Handle  CallbackHandlerFunc
}

// InputFunc handles a non-command message. It returns false when the
// message is not meant for it so the next input route can try.
type InputFunc func(ctx context.Context, req *Request) (handled bool, err error)

type InputRoute struct {
	Name    string
	Access  Access
	Timeout time.Duration
	Handle  InputFunc
}

// Plugin is a chat surface that contributes routes.
type Plugin interface {
	Name() string
	Commands() []Command
	Callbacks() []CallbackRoute
	Inputs() []InputRoute
}

type Request struct {
	Update       transport.Update
	Chat         transport.ChatTarget
	FromID       int64
	FromUsername string
	FromLang     string
	// Command is the command name, "cb:<ns>:<action>" or "input:<name>".
	Command string
	Args    []string
	Text    string
	Photo   *transport.Photo
	// MessageID is the message the callback button belongs to.
	MessageID  int
	CallbackID string
	ReqID      string
	IsOwner    bool

	Adapter transport.Adapter
	Logger  logx.Logger
	Conv    *Conversations

	answered bool
}

// Reply sends msg to the request's chat.
func (r *Request) Reply(ctx context.Context, msg tgui.Message) error {
	_, err := msg.Send(ctx, r.Adapter, r.Chat)
	return err
}

// ReplyText sends plain HTML text to the request's chat.
func (r *Request) ReplyText(ctx context.Context, text string) error {
	_, err := r.Adapter.SendText(ctx, r.Chat, text, &transport.SendOptions{ParseMode: "HTML", DisablePreview: true})
	return err
}

// Edit replaces the message a callback came from, or replies when the
// request is not a callback.
func (r *Request) Edit(ctx context.Context, msg tgui.Message) error {
	if r.MessageID == 0 {
		return r.Reply(ctx, msg)
	}
	return msg.Edit(ctx, r.Adapter, transport.MessageRef{ChatID: r.Chat.ChatID, ThreadID: r.Chat.ThreadID, MessageID: r.MessageID})
}

// Answer shows a short toast for a callback. Without a call the router
// answers with an empty text after the handler returns.
func (r *Request) Answer(ctx context.Context, text string) error {
	if r.CallbackID == "" || r.answered {
		return nil
	}
	r.answered = true
	return r.Adapter.AnswerCallback(ctx, r.CallbackID, text)
}
