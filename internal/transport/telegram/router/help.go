package router

import (
	"context"

	"valubot/pkg/tgui"
)

func (m *CommandManager) helpCommand() Command {
	return Command{
		Name:        "help",
		Description: "Show available commands",
		Access:      AccessEveryone,
		Handle: func(ctx context.Context, req *Request) error {
			return req.Reply(ctx, m.helpText(req.IsOwner))
		},
	}
}

// helpText lists the commands the caller may run; operator commands are
// shown to owners only.
func (m *CommandManager) helpText(owner bool) tgui.Message {
	m.mu.RLock()
	cmds := m.ordered
	m.mu.RUnlock()

	b := tgui.New().Title("📖", "Commands").Blank()
	var ops []Command
	for _, c := range cmds {
		if c.Access == AccessOwnerOnly {
			ops = append(ops, c)
			continue
		}
		b.HTML(helpLine(c))
	}
	if owner && len(ops) > 0 {
		b.Blank().Section("🔒 Operators")
		for _, c := range ops {
			b.HTML(helpLine(c))
		}
	}
	return b.Build()
}

func helpLine(c Command) tgui.H {
	line := tgui.Code("/" + c.Name)
	if c.Description != "" {
		line = tgui.JoinH(" ", line, tgui.Raw("·"), tgui.Esc(c.Description))
	}
	return line
}
