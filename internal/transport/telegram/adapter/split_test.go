package adapter

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"valubot/internal/transport"
)

func TestSplitTextShort(t *testing.T) {
	assert.Equal(t, []string{"hello"}, splitText("hello", 10, ""))
	assert.Equal(t, []string{""}, splitText("", 10, ""))
}

func TestSplitTextPrefersNewlines(t *testing.T) {
	s := strings.Repeat("a", 6) + "\n" + strings.Repeat("b", 6)
	got := splitText(s, 10, "")
	assert.Equal(t, []string{"aaaaaa", "bbbbbb"}, got)
}

func TestSplitTextRespectsLimitInRunes(t *testing.T) {
	s := strings.Repeat("я", 9001)
	got := splitText(s, textLimit, "")
	require.Len(t, got, 3)
	total := 0
	for _, c := range got {
		n := utf8.RuneCountInString(c)
		assert.LessOrEqual(t, n, textLimit)
		total += n
	}
	assert.Equal(t, 9001, total)
}

func TestSplitTextKeepsTagsWhole(t *testing.T) {
	s := strings.Repeat("x", 8) + "<b>bold</b>"
	got := splitText(s, 10, "HTML")
	require.GreaterOrEqual(t, len(got), 2)
	assert.Equal(t, strings.Repeat("x", 8), got[0])
	for _, c := range got {
		assert.Equal(t, strings.Count(c, "<"), strings.Count(c, ">"), "chunk %q cuts a tag", c)
	}
	assert.Equal(t, s, strings.Join(got, ""))
}

func TestMapError(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		err     error
		blocked bool
	}{
		{name: "blocked", err: tele.ErrBlockedByUser, blocked: true},
		{name: "deactivated", err: tele.ErrUserIsDeactivated, blocked: true},
		{name: "chat not found", err: fmt.Errorf("send: %w", tele.ErrChatNotFound), blocked: true},
		{name: "generic 403", err: tele.NewError(403, "Forbidden: bot was kicked"), blocked: true},
		{name: "flood", err: tele.NewError(429, "Too Many Requests: retry after 5"), blocked: false},
		{name: "network", err: errors.New("connection reset"), blocked: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := mapError(tt.err)
			assert.Equal(t, tt.blocked, errors.Is(got, transport.ErrRecipientBlocked))
			assert.ErrorIs(t, got, tt.err)
		})
	}
	assert.NoError(t, mapError(nil))
}

func TestMenuCommands(t *testing.T) {
	got := menuCommands([]transport.BotCommand{
		{Command: "start", Description: "Start"},
		{Command: ""},
		{Command: "help"},
	})
	assert.Equal(t, []tele.Command{{Text: "start", Description: "Start"}, {Text: "help", Description: "help"}}, got)
	assert.Equal(t, menuHash(got), menuHash(append([]tele.Command(nil), got...)))
	assert.NotEqual(t, menuHash(got), menuHash(got[:1]))
}
