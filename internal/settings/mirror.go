package settings

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"

	"valubot/internal/config"
	"valubot/pkg/logx"
)

// envKeys maps .env variables to setting keys.
var envKeys = map[string]string{
	"REMINDER_DELAY_MINUTES":          KeyReminderDelay,
	"REMINDER_CHECK_INTERVAL_MINUTES": KeyReminderInterval,
	"REMINDER_ENABLED":                KeyReminderEnabled,
}

func envKeyFor(setting string) (string, bool) {
	for env, key := range envKeys {
		if key == setting {
			return env, true
		}
	}
	return "", false
}

// Mirror keeps the mapped .env variables and the settings table in step.
// File edits flow into the table; operator edits flow back into the file.
type Mirror struct {
	path string
	svc  *Service
	log  logx.Logger

	mu       sync.Mutex
	lastHash uint64
	seen     bool
}

func NewMirror(path string, svc *Service, log logx.Logger) *Mirror {
	return &Mirror{path: path, svc: svc, log: log.With(logx.String("comp", "env_mirror"))}
}

func (m *Mirror) Path() string { return m.path }

func hashOf(b []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}

// SyncFromFile pushes mapped values that differ from the table when the
// file content changed since the last call. The first call always pushes,
// so the file wins at startup. A missing file changes nothing.
func (m *Mirror) SyncFromFile(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, err := os.ReadFile(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("settings: read %s: %w", m.path, err)
	}
	if m.seen && hashOf(raw) == m.lastHash {
		return nil, nil
	}
	return m.pushLocked(ctx, raw, "")
}

// pushLocked copies the file's mapped values into the table, leaving skip
// alone, and records raw as seen. m.mu must be held.
func (m *Mirror) pushLocked(ctx context.Context, raw []byte, skip string) ([]string, error) {
	m.seen, m.lastHash = true, hashOf(raw)

	vals, err := godotenv.UnmarshalBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("settings: parse %s: %w", m.path, err)
	}

	var changed []string
	for env, key := range envKeys {
		v, ok := vals[env]
		if !ok || key == skip {
			continue
		}
		v = strings.TrimSpace(v)
		if err := Validate(key, v); err != nil {
			m.log.Warn("ignoring invalid .env value", logx.String("env", env), logx.String("value", v), logx.Err(err))
			continue
		}
		cur, found, err := m.svc.Get(ctx, key)
		if err != nil {
			return changed, err
		}
		if found && strings.TrimSpace(cur) == v {
			continue
		}
		if err := m.svc.set(ctx, key, v, 0, false); err != nil {
			return changed, err
		}
		changed = append(changed, key)
	}
	if len(changed) > 0 {
		m.log.Info("settings synced from .env", logx.Strings("keys", changed))
	}
	return changed, nil
}

// WriteKey rewrites the line of one mapped variable in place, appending it
// when absent. Every other byte of the file is kept. Edits made to the file
// since the last sync are pushed first so recording the new hash cannot
// swallow them. The new content hash is recorded so the write does not
// echo back.
func (m *Mirror) WriteKey(ctx context.Context, key, value string) error {
	env, ok := envKeyFor(key)
	if !ok {
		return fmt.Errorf("%w: %s has no .env mapping", ErrUnknownKey, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	perm := fs.FileMode(0o600)
	raw, err := os.ReadFile(m.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return fmt.Errorf("settings: read %s: %w", m.path, err)
	default:
		if fi, err := os.Stat(m.path); err == nil {
			perm = fi.Mode().Perm()
		}
		if !m.seen || hashOf(raw) != m.lastHash {
			if _, err := m.pushLocked(ctx, raw, key); err != nil {
				m.log.Warn("pending .env edits not synced", logx.Err(err))
			}
		}
	}

	out := setEnvLine(raw, env, value)
	if err := os.WriteFile(m.path, out, perm); err != nil {
		return fmt.Errorf("settings: write %s: %w", m.path, err)
	}
	m.seen, m.lastHash = true, hashOf(out)
	m.log.Info(".env updated", logx.String("env", env), logx.String("value", value))
	return nil
}

// setEnvLine replaces every assignment of env in raw with env=value and
// appends one when there is none. Line endings are kept.
func setEnvLine(raw []byte, env, value string) []byte {
	assign := env + "=" + value
	lines := strings.SplitAfter(string(raw), "\n")
	found := false
	for i, l := range lines {
		body := strings.TrimRight(l, "\r\n")
		name, _, ok := strings.Cut(strings.TrimPrefix(strings.TrimSpace(body), "export "), "=")
		if !ok || strings.TrimSpace(name) != env {
			continue
		}
		lines[i] = assign + l[len(body):]
		found = true
	}
	out := strings.Join(lines, "")
	if found {
		return []byte(out)
	}
	if out != "" && !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return []byte(out + assign + "\n")
}

// Watch syncs on every change of the file until ctx ends.
func (m *Mirror) Watch(ctx context.Context) error {
	return config.WatchFile(ctx, m.path, m.log, func() {
		if _, err := m.SyncFromFile(ctx); err != nil {
			m.log.Warn(".env sync failed", logx.Err(err))
		}
	})
}
