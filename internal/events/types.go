// Package events defines the closed set of user engagement events and the
// recorder that appends them.
package events

type Type string

const (
	FirstStart        Type = "first_start"
	BotRestart        Type = "bot_restart"
	GoToGroup         Type = "go_to_group"
	ContactManager    Type = "contact_manager"
	CheckNickname     Type = "check_nickname"
	ExitWithoutAction Type = "exit_without_action"
	StartCheckout     Type = "start_checkout"
	AbandonedCheckout Type = "abandoned_checkout"
	SuccessfulOrder   Type = "successful_order"
)

const fallbackGlyph = "📌"

var table = []struct {
	typ   Type
	glyph string
	label string
}{
	{FirstStart, "🎉", "First start"},
	{BotRestart, "🔄", "Bot restart"},
	{GoToGroup, "👥", "Go to group"},
	{ContactManager, "💬", "Contact manager"},
	{CheckNickname, "🔍", "Nickname check"},
	{ExitWithoutAction, "🚪", "Exit without action"},
	{StartCheckout, "🛒", "Checkout started"},
	{AbandonedCheckout, "⚠️", "Abandoned checkout"},
	{SuccessfulOrder, "✅", "Successful order"},
}

// All lists every type in display order.
func All() []Type {
	out := make([]Type, len(table))
	for i, row := range table {
		out[i] = row.typ
	}
	return out
}

func Parse(s string) (Type, bool) {
	for _, row := range table {
		if string(row.typ) == s {
			return row.typ, true
		}
	}
	return "", false
}

func (t Type) Valid() bool {
	_, ok := Parse(string(t))
	return ok
}

func (t Type) Glyph() string {
	for _, row := range table {
		if row.typ == t {
			return row.glyph
		}
	}
	return fallbackGlyph
}

func (t Type) Label() string {
	for _, row := range table {
		if row.typ == t {
			return row.label
		}
	}
	return string(t)
}

func (t Type) String() string { return string(t) }
