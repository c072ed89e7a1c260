package config

import (
	"context"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"valubot/pkg/logx"
)

const (
	watchDebounce       = 250 * time.Millisecond
	watchRestartBase    = 250 * time.Millisecond
	watchRestartCeiling = 5 * time.Second
)

// WatchFile calls onChange (debounced) whenever path is written, created,
// renamed or removed. The parent directory is watched so editors that swap
// files atomically are seen. A broken watcher is recreated with jittered
// backoff. Returns nil when ctx ends.
func WatchFile(ctx context.Context, path string, log logx.Logger, onChange func()) error {
	dir, file := filepath.Dir(path), filepath.Base(path)
	log = log.With(logx.String("path", path))

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	trigger := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(watchDebounce, func() {
			if ctx.Err() == nil {
				onChange()
			}
		})
	}
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	backoff := watchRestartBase
	sleep := func(reason string, err error) bool {
		wait := backoff + time.Duration(rand.Int64N(int64(backoff/2)+1))
		log.Warn(reason, logx.Err(err), logx.Duration("backoff", wait))
		backoff = min(backoff*2, watchRestartCeiling)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
			return true
		}
	}

	for ctx.Err() == nil {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			if !sleep("file watch init failed", err) {
				return nil
			}
			continue
		}
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			if !sleep("file watch add failed", err) {
				return nil
			}
			continue
		}
		backoff = watchRestartBase
		log.Debug("file watcher started")

		err = pump(ctx, w, file, trigger, log)
		_ = w.Close()
		if ctx.Err() != nil {
			return nil
		}
		if !sleep("file watcher stopped; restarting", err) {
			return nil
		}
	}
	return nil
}

// pump forwards relevant events until the watcher breaks or ctx ends.
func pump(ctx context.Context, w *fsnotify.Watcher, file string, trigger func(), log logx.Logger) error {
	const relevant = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove | fsnotify.Chmod
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if strings.EqualFold(filepath.Base(ev.Name), file) && ev.Op&relevant != 0 {
				trigger()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			if err == nil {
				continue
			}
			msg := strings.ToLower(err.Error())
			switch {
			case strings.Contains(msg, "overflow"):
				log.Warn("file watch overflow; forcing reload", logx.Err(err))
				trigger()
			case strings.Contains(msg, "closed"):
				return err
			default:
				log.Warn("file watch error", logx.Err(err))
			}
		}
	}
}
