package adapter

import (
	"context"
	"hash/fnv"

	tele "gopkg.in/telebot.v4"

	"valubot/internal/transport"
	"valubot/pkg/logx"
)

const (
	maxCommands       = 100
	maxCommandDescLen = 256
)

// UpdateMenuCommands publishes the command menu (setMyCommands). It only
// calls Telegram when the list differs from the last one published.
func (a *Adapter) UpdateMenuCommands(ctx context.Context, cmds []transport.BotCommand) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	list := menuCommands(cmds)
	sum := menuHash(list)

	a.menuMu.Lock()
	defer a.menuMu.Unlock()
	if sum == a.menuHash {
		return nil
	}
	if err := a.bot.SetCommands(list); err != nil {
		return err
	}
	a.menuHash = sum
	a.log.Info("menu commands updated", logx.Int("count", len(list)))
	return nil
}

func menuCommands(cmds []transport.BotCommand) []tele.Command {
	out := make([]tele.Command, 0, len(cmds))
	for _, c := range cmds {
		if c.Command == "" {
			continue
		}
		d := c.Description
		if d == "" {
			d = c.Command
		}
		if r := []rune(d); len(r) > maxCommandDescLen {
			d = string(r[:maxCommandDescLen])
		}
		out = append(out, tele.Command{Text: c.Command, Description: d})
		if len(out) == maxCommands {
			break
		}
	}
	return out
}

func menuHash(cmds []tele.Command) uint64 {
	h := fnv.New64a()
	for _, c := range cmds {
		_, _ = h.Write([]byte(c.Text))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(c.Description))
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}
