// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"reflect"

	"github.com/fsnotify/fsnotify"

	"github.com/gogpu/xrbridge/event"
	"github.com/gogpu/xrbridge/internal/xrlog"
)

// Watcher reloads a settings file when it changes on disk and pushes each
// valid new version as an event.SettingsChanged.
type Watcher struct {
	path  string
	queue *event.Queue
	fsw   *fsnotify.Watcher
	last  *Settings
}

// NewWatcher starts watching path. The directory is watched rather than the
// file so that editors which replace the file by rename are seen. The file
// does not need to exist yet.
func NewWatcher(path string, q *event.Queue) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: watch: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: watch: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config: watch: %w", err)
	}
	w := &Watcher{path: abs, queue: q, fsw: fsw}
	if s, err := Load(abs); err == nil {
		w.last = s
	}
	return w, nil
}

// Run delivers reloads until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.reload()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			xrlog.Logger().Warn("config: watch error", "path", w.path, "err", err)
		}
	}
}

func (w *Watcher) reload() {
	s, err := Load(w.path)
	if err != nil {
		// Partial writes are common; the final write triggers another reload.
		xrlog.Logger().Debug("config: reload skipped", "path", w.path, "err", err)
		return
	}
	if w.last != nil && reflect.DeepEqual(w.last, s) {
		return
	}
	w.last = s
	w.queue.Push(event.SettingsChanged{Settings: s.Clone()})
	xrlog.Logger().Info("config: settings reloaded", "path", w.path)
}

// Close stops the watcher. Run returns after Close.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Watch watches path until ctx is done, pushing reloads to q.
func Watch(ctx context.Context, path string, q *event.Queue) error {
	w, err := NewWatcher(path, q)
	if err != nil {
		return err
	}
	return w.Run(ctx)
}
