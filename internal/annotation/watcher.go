/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package annotation

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	applog "rockviewer/internal/log"
)

// DefaultDebounce collapses the burst of events an editor produces on save.
const DefaultDebounce = 150 * time.Millisecond

// Watcher reloads local annotation files when they change on disk. It
// watches the annotations directory rather than single files so that files
// created after Watch, or replaced by an atomic rename, are picked up.
type Watcher struct {
	src      DirSource
	watcher  *fsnotify.Watcher
	debounce time.Duration
	log      *slog.Logger

	mu        sync.Mutex
	callbacks map[string]func([]Annotation) // keyed by absolute file path
	codes     map[string]string
	viewers   map[string]string
	timers    map[string]*time.Timer
	done      chan struct{}
	closeOnce sync.Once
}

// NewWatcher creates a watcher over src. debounce <= 0 means DefaultDebounce.
func NewWatcher(src DirSource, debounce time.Duration) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	dir, err := filepath.Abs(filepath.Dir(src.Path("x")))
	if err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to resolve %s: %w", src.Root, err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	return &Watcher{
		src:       src,
		watcher:   w,
		debounce:  debounce,
		log:       applog.WithComponent("annotation"),
		callbacks: make(map[string]func([]Annotation)),
		codes:     make(map[string]string),
		viewers:   make(map[string]string),
		timers:    make(map[string]*time.Timer),
		done:      make(chan struct{}),
	}, nil
}

// Watch registers fn to receive the annotations of code for viewer each
// time the file changes. A later Watch for the same code replaces fn.
func (w *Watcher) Watch(code, viewer string, fn func([]Annotation)) error {
	abs, err := filepath.Abs(w.src.Path(code))
	if err != nil {
		return fmt.Errorf("failed to resolve path for %s: %w", code, err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks[abs] = fn
	w.codes[abs] = code
	w.viewers[abs] = viewer
	return nil
}

// Unwatch drops the callback of code.
func (w *Watcher) Unwatch(code string) {
	abs, err := filepath.Abs(w.src.Path(code))
	if err != nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[abs]; ok {
		t.Stop()
		delete(w.timers, abs)
	}
	delete(w.callbacks, abs)
	delete(w.codes, abs)
	delete(w.viewers, abs)
}

// Start processes file events until ctx is done or Close is called.
func (w *Watcher) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = w.Close()
				return
			case <-w.done:
				return
			case ev, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					w.changed(ctx, ev.Name)
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.log.Warn("watcher error", slog.Any("err", err))
			}
		}
	}()
}

func (w *Watcher) changed(ctx context.Context, name string) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	fn, ok := w.callbacks[abs]
	if !ok {
		return
	}
	code, viewer := w.codes[abs], w.viewers[abs]
	if t, ok := w.timers[abs]; ok {
		t.Stop()
	}
	w.timers[abs] = time.AfterFunc(w.debounce, func() {
		w.log.Info("annotations changed", slog.String("code", code))
		fn(Load(ctx, w.src, code, viewer))
	})
}

// Close stops the watcher and any pending reload.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		for _, t := range w.timers {
			t.Stop()
		}
		w.timers = make(map[string]*time.Timer)
		w.mu.Unlock()
		err = w.watcher.Close()
	})
	return err
}
