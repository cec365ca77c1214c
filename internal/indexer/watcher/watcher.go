// Package watcher rebuilds the index when the document file changes on disk.
//
// The parent directory is watched rather than the file itself: editors and
// deploy tools usually replace a file by renaming a temporary one over it,
// which drops a watch held on the old inode. Bursts of events are collapsed
// into one reload after the debounce window goes quiet.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/logger"
)

const defaultDebounce = 500 * time.Millisecond

type Reloader interface {
	Reload(ctx context.Context, trigger string) (index.Stats, error)
}

type Watcher struct {
	path     string
	debounce time.Duration
	reloader Reloader
	fsw      *fsnotify.Watcher
	logger   *slog.Logger
}

// New starts watching the directory that holds path. Call Run to process
// events and Close (or cancel Run's context) to release the watch.
func New(path string, debounce time.Duration, r Reloader) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}
	return &Watcher{
		path:     abs,
		debounce: debounce,
		reloader: r,
		fsw:      fsw,
		logger:   logger.WithComponent("watcher").With("path", abs),
	}, nil
}

// Run blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	w.logger.Info("watching document file", "debounce", w.debounce)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("file event", "op", event.Op.String())
			pending = true
			timer.Reset(w.debounce)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		case <-timer.C:
			if !pending {
				continue
			}
			pending = false
			if _, err := w.reloader.Reload(ctx, indexer.TriggerWatch); err != nil {
				w.logger.Error("reload after file change failed", "error", err)
			}
		}
	}
}

// relevant reports whether event touches the watched file with an operation
// that can change its contents. Removal alone is ignored: the previous index
// keeps serving until a new file appears.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

func (w *Watcher) Close() error {
	return w.fsw.Close()
}
