package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// SenderFunc delivers one plain-text log line to a chat.
type SenderFunc func(ctx context.Context, chatID int64, threadID int, text string) error

const (
	telegramQueueSize  = 256
	telegramMaxLen     = 3500
	telegramSendWindow = 10 * time.Second
)

type telegramLine struct {
	chatID   int64
	threadID int
	text     string
}

// telegramSink is a zerolog LevelWriter that forwards lines at or above
// minLevel to an operator chat. Writes never block: lines beyond the rate
// limit or a full queue are dropped.
type telegramSink struct {
	mu       sync.Mutex
	send     SenderFunc
	chatID   int64
	threadID int
	minLevel zerolog.Level
	limiter  *rate.Limiter

	queue   chan telegramLine
	once    sync.Once
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	dropped int64
}

func newTelegramSink(send SenderFunc) *telegramSink {
	return &telegramSink{
		send:     send,
		minLevel: zerolog.WarnLevel,
		limiter:  rate.NewLimiter(1, 1),
		queue:    make(chan telegramLine, telegramQueueSize),
	}
}

func (t *telegramSink) setSender(send SenderFunc) {
	t.mu.Lock()
	t.send = send
	t.mu.Unlock()
}

func (t *telegramSink) setTarget(chatID int64, threadID int) {
	t.mu.Lock()
	t.chatID = chatID
	if threadID != 0 {
		t.threadID = threadID
	}
	t.mu.Unlock()
}

func (t *telegramSink) configure(cfg TelegramConfig) {
	rps := max(1, cfg.RatePerSec)
	t.mu.Lock()
	t.minLevel = ParseLevel(cfg.MinLevel, zerolog.WarnLevel)
	t.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	if cfg.ThreadID != 0 {
		t.threadID = cfg.ThreadID
	}
	t.mu.Unlock()
}

func (t *telegramSink) start() {
	t.once.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		t.mu.Lock()
		t.cancel = cancel
		t.mu.Unlock()
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			t.loop(ctx)
		}()
	})
}

func (t *telegramSink) stop() {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()
	if cancel != nil {
		cancel()
		t.wg.Wait()
	}
}

func (t *telegramSink) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case line := <-t.queue:
			t.mu.Lock()
			send := t.send
			t.mu.Unlock()
			if send == nil {
				continue
			}
			sctx, cancel := context.WithTimeout(ctx, telegramSendWindow)
			// A failure here cannot be logged without recursing into this sink.
			_ = send(sctx, line.chatID, line.threadID, line.text)
			cancel()
		}
	}
}

func (t *telegramSink) Write(p []byte) (int, error) {
	return t.WriteLevel(zerolog.InfoLevel, p)
}

func (t *telegramSink) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	t.mu.Lock()
	chatID, threadID := t.chatID, t.threadID
	lim, minLevel, send := t.limiter, t.minLevel, t.send
	t.mu.Unlock()

	if chatID == 0 || send == nil || level < minLevel || !lim.Allow() {
		return len(p), nil
	}
	text := formatLine(p)
	if text == "" {
		return len(p), nil
	}
	select {
	case t.queue <- telegramLine{chatID: chatID, threadID: threadID, text: text}:
	default:
		t.mu.Lock()
		t.dropped++
		t.mu.Unlock()
	}
	return len(p), nil
}

// formatLine renders a zerolog JSON line as "[LEVEL] message" followed by
// one "- key=value" line per field, keys sorted.
func formatLine(p []byte) string {
	p = bytes.TrimSpace(p)
	var m map[string]any
	if err := json.Unmarshal(p, &m); err != nil {
		return truncate(string(p), telegramMaxLen)
	}

	lvl, _ := m[zerolog.LevelFieldName].(string)
	msg, _ := m[zerolog.MessageFieldName].(string)

	var b strings.Builder
	if lvl != "" {
		b.WriteString("[" + strings.ToUpper(lvl) + "] ")
	}
	b.WriteString(msg)

	keys := make([]string, 0, len(m))
	for k := range m {
		switch k {
		case zerolog.TimestampFieldName, zerolog.LevelFieldName, zerolog.MessageFieldName:
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := fmt.Sprint(m[k])
		if k == "stack" {
			b.WriteString("\n- stack=\n" + truncate(v, 900))
			continue
		}
		b.WriteString("\n- " + k + "=" + truncate(v, 600))
	}
	return truncate(b.String(), telegramMaxLen)
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n < 10 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
