package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleDelay debounces bursts of events produced by a single save.
const settleDelay = 100 * time.Millisecond

// Watch starts an fsnotify watcher on the document's directory and calls
// onChange with the new collection whenever another process rewrites the
// document. It blocks until ctx is cancelled.
//
// The directory is watched rather than the file because atomic writers replace
// the file, which drops a watch held on the old inode. Content identical to the
// last Set (our own write) or to the last delivered change is not reported again.
func (f *File) Watch(ctx context.Context, logger *slog.Logger, onChange ChangeFunc) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("storage: create watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(f.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("storage: watch %s: %w", dir, err)
	}

	logger.Info("watcher: started", slog.String("path", f.path))

	var settleTimer *time.Timer
	var settleCh <-chan time.Time

	scheduleSettle := func() {
		if settleTimer == nil {
			settleTimer = time.NewTimer(settleDelay)
			settleCh = settleTimer.C
		} else {
			settleTimer.Reset(settleDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if settleTimer != nil {
				settleTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-settleCh:
			settleTimer = nil
			settleCh = nil
			f.deliver(logger, onChange)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != f.path {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("watcher: event", slog.String("op", ev.Op.String()))
			scheduleSettle()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// deliver reads the document and hands it to onChange if it is new to us.
func (f *File) deliver(logger *slog.Logger, onChange ChangeFunc) {
	data, err := f.read()
	if err != nil {
		logger.Warn("watcher: read failed", slog.String("error", err.Error()))
		return
	}
	if !f.observe(data) {
		logger.Debug("watcher: content unchanged, skipped")
		return
	}
	entries, err := decode(data, f.path)
	if err != nil {
		logger.Warn("watcher: decode failed", slog.String("error", err.Error()))
		return
	}
	logger.Debug("watcher: external change", slog.Int("entries", len(entries)))
	if onChange != nil {
		onChange(entries)
	}
}
