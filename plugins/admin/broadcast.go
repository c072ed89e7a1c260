package admin

import (
	"context"
	"strings"
	"time"

	"valubot/internal/notifier/broadcast"
	"valubot/internal/transport"
	"valubot/internal/transport/telegram/router"
	"valubot/pkg/logx"
)

const resultSendTimeout = 30 * time.Second

func (p *Plugin) onBroadcast(ctx context.Context, req *router.Request, _ string) error {
	req.Conv.Set(req.FromID, convOwner, stepBroadcast, nil)
	return req.Edit(ctx, broadcastPrompt())
}

// inputBroadcast turns the operator's message into a draft and shows it
// back exactly as users will see it.
func (p *Plugin) inputBroadcast(ctx context.Context, req *router.Request) error {
	text := strings.TrimSpace(req.Text)
	if req.Photo == nil && text == "" {
		return req.ReplyText(ctx, "⚠️ Send some text or a photo. /cancel aborts.")
	}
	msg := broadcast.Message{Text: text, Options: &transport.SendOptions{}}
	if req.Photo != nil {
		ph := *req.Photo
		msg.Photo = &ph
	}

	if msg.Photo != nil {
		if _, err := req.Adapter.SendPhoto(ctx, req.Chat, *msg.Photo, msg.Text, msg.Options); err != nil {
			req.Logger.Warn("broadcast preview failed", logx.Err(err))
			return req.ReplyText(ctx, "❌ Could not show the preview. Send the message again or /cancel.")
		}
	} else if _, err := req.Adapter.SendText(ctx, req.Chat, msg.Text, msg.Options); err != nil {
		req.Logger.Warn("broadcast preview failed", logx.Err(err))
		return req.ReplyText(ctx, "❌ Could not show the preview. Send the message again or /cancel.")
	}

	token := p.drafts.Put(msg)
	req.Conv.Clear(req.FromID, convOwner)
	return req.Reply(ctx, broadcastConfirm(token, msg))
}

func (p *Plugin) onBroadcastSend(ctx context.Context, req *router.Request, token string) error {
	msg, ok := p.drafts.Take(token)
	if !ok {
		_ = req.Answer(ctx, "Draft expired, start again")
		return req.Edit(ctx, withHome("⌛ This broadcast draft has expired."))
	}
	chat, adapter, log := req.Chat, req.Adapter, req.Logger
	id := p.d.Broadcast.Submit(msg, func(st broadcast.JobStatus) {
		sctx, cancel := context.WithTimeout(context.Background(), resultSendTimeout)
		defer cancel()
		if _, err := adapter.SendText(sctx, chat, broadcastResultText(st), &transport.SendOptions{ParseMode: "HTML"}); err != nil {
			log.Warn("broadcast result not delivered", logx.String("job", st.ID), logx.Err(err))
		}
	})
	req.Logger.Info("broadcast submitted", logx.String("job", id))
	_ = req.Answer(ctx, "📣 Queued")
	return req.Edit(ctx, withHome("📣 Broadcast queued. The result will follow when it finishes.\nJob: <code>"+id+"</code>"))
}

func (p *Plugin) onBroadcastDrop(ctx context.Context, req *router.Request, token string) error {
	p.drafts.Take(token)
	_ = req.Answer(ctx, "Discarded")
	return req.Edit(ctx, withHome("🗑 Broadcast discarded."))
}
