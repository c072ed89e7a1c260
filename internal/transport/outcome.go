package transport

import (
	"context"
	"errors"
)

// ErrRecipientBlocked means the recipient can no longer be reached: they
// blocked the bot, deleted the account or the chat is gone. Adapters wrap
// their platform errors with it.
var ErrRecipientBlocked = errors.New("transport: recipient blocked the bot")

type Outcome int

const (
	Delivered Outcome = iota
	Blocked
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Blocked:
		return "blocked"
	default:
		return "failed"
	}
}

// Classify maps a send result to its delivery outcome.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return Delivered
	case errors.Is(err, ErrRecipientBlocked):
		return Blocked
	default:
		return Failed
	}
}

// SenderFunc adapts a plain function to the text half of Sender; photos are
// rejected. Handy for tests.
type SenderFunc func(ctx context.Context, to ChatTarget, text string) error

var errPhotoUnsupported = errors.New("transport: photo not supported")

func (f SenderFunc) SendText(ctx context.Context, to ChatTarget, text string, _ *SendOptions) (MessageRef, error) {
	return MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID}, f(ctx, to, text)
}

func (f SenderFunc) SendPhoto(context.Context, ChatTarget, Photo, string, *SendOptions) (MessageRef, error) {
	return MessageRef{}, errPhotoUnsupported
}
