// Package config's Watcher watches, validates, and debounces changes to
// this engine's config file on disk, applying them through a single
// reload callback rather than a per-field validator/applier registry
// (over-general for one config document).
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads Config from Path whenever the file changes on disk,
// invoking OnReload with the newly validated config. A reload runs only
// after Cooldown has passed with no further write event, so editors that
// emit multiple write events per save cause one reload of the finished
// file.
type Watcher struct {
	Path     string
	Cooldown time.Duration
	OnReload func(Config)
	OnError  func(error)
}

// Run blocks watching Path until ctx is cancelled. It is safe to run in a
// background goroutine; the pipeline never blocks on it.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.Path); err != nil {
		return fmt.Errorf("watch %s: %w", w.Path, err)
	}

	cooldown := w.Cooldown
	if cooldown <= 0 {
		cooldown = time.Second
	}
	// reload fires once no write event has arrived for cooldown.
	var reload <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			reload = time.After(cooldown)
		case <-reload:
			reload = nil
			cfg, err := Load(w.Path)
			if err != nil {
				if w.OnError != nil {
					w.OnError(err)
				}
				continue
			}
			if w.OnReload != nil {
				w.OnReload(cfg)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			if w.OnError != nil {
				w.OnError(err)
			}
		}
	}
}
