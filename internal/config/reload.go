// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/mediaconv/internal/log"
)

// DefaultDebounce coalesces bursts of file events into one reload.
const DefaultDebounce = 500 * time.Millisecond

const reloadOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename

// Holder owns the live configuration and swaps it on successful reloads.
type Holder struct {
	loader   *Loader
	logger   zerolog.Logger
	debounce time.Duration

	mu        sync.RWMutex
	current   AppConfig
	listeners []chan<- AppConfig

	watcher *fsnotify.Watcher
	done    chan struct{}
}

func NewHolder(initial AppConfig, loader *Loader) *Holder {
	return &Holder{
		loader:   loader,
		logger:   xglog.WithComponent("config"),
		debounce: DefaultDebounce,
		current:  initial,
	}
}

func (h *Holder) Get() AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// RegisterListener adds ch to the set notified after each successful reload.
// Sends never block; a listener whose channel is full misses that update.
func (h *Holder) RegisterListener(ch chan<- AppConfig) {
	h.mu.Lock()
	h.listeners = append(h.listeners, ch)
	h.mu.Unlock()
}

// Reload runs the loader again. On failure the current config stays in place.
func (h *Holder) Reload(_ context.Context) error {
	next, err := h.loader.Load()
	if err != nil {
		h.logger.Error().Err(err).Str(xglog.FieldEvent, "config.reload_failed").Msg("config reload rejected, keeping previous config")
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	prev := h.current
	h.current = next
	listeners := append([]chan<- AppConfig(nil), h.listeners...)
	h.mu.Unlock()

	h.logDiff(prev, next)
	for _, ch := range listeners {
		select {
		case ch <- next:
		default:
			h.logger.Warn().Str(xglog.FieldEvent, "config.listener_skip").Msg("config listener not ready, update dropped")
		}
	}
	h.logger.Info().Str(xglog.FieldEvent, "config.reloaded").Msg("configuration reloaded")
	return nil
}

// StartWatcher reloads the config file whenever it changes, until ctx is done
// or Stop is called. It does nothing when no file was configured.
//
// The parent directory is watched so that saves which replace the file by
// rename are still seen.
func (h *Holder) StartWatcher(ctx context.Context) error {
	if h.loader.Path() == "" {
		h.logger.Info().Str(xglog.FieldEvent, "config.watcher_disabled").Msg("no config file, watcher disabled")
		return nil
	}
	path := filepath.Clean(h.loader.Path())

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return fmt.Errorf("config watcher: watch %s: %w", filepath.Dir(path), err)
	}
	h.watcher = w
	h.done = make(chan struct{})

	h.logger.Info().Str(xglog.FieldEvent, "config.watcher_started").Str(xglog.FieldPath, path).Msg("watching config file")
	go h.watch(ctx, path)
	return nil
}

// watch runs reloads on its own goroutine, so no reload can start after
// Stop returns.
func (h *Holder) watch(ctx context.Context, path string) {
	defer close(h.done)
	defer h.watcher.Close()

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != path || ev.Op&reloadOps == 0 {
				continue
			}
			h.logger.Debug().Str("op", ev.Op.String()).Msg("config file changed")
			timer.Reset(h.debounce)
		case <-timer.C:
			_ = h.Reload(ctx)
		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Warn().Err(err).Str(xglog.FieldEvent, "config.watcher_error").Msg("config watcher error")
		}
	}
}

// Stop closes the watcher and waits for the watch loop to exit.
func (h *Holder) Stop() {
	if h.watcher == nil {
		return
	}
	_ = h.watcher.Close()
	<-h.done
}

func (h *Holder) logDiff(prev, next AppConfig) {
	changed := func(key string, from, to any) {
		h.logger.Info().Interface("old", from).Interface("new", to).Str("key", key).Msg("config value changed")
	}
	if prev.Scheduler.Concurrency != next.Scheduler.Concurrency {
		changed("scheduler.concurrency", prev.Scheduler.Concurrency, next.Scheduler.Concurrency)
	}
	if prev.LogLevel != next.LogLevel {
		changed("logLevel", prev.LogLevel, next.LogLevel)
	}
	// Only the concurrency limit is applied live; the rest wait for a restart.
	if prev.Encoder.Strategy != next.Encoder.Strategy {
		changed("encoder.strategy", prev.Encoder.Strategy, next.Encoder.Strategy)
	}
	if prev.FFmpeg != next.FFmpeg {
		changed("ffmpeg", prev.FFmpeg, next.FFmpeg)
	}
}
