package policy

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher keeps the latest successfully parsed threshold file in memory.
type Watcher struct {
	path   string
	logger *zap.Logger

	mu      sync.RWMutex
	current LoadedThresholds
}

// NewWatcher loads path once; Run then reloads it whenever the file changes.
func NewWatcher(path string, logger *zap.Logger) (*Watcher, error) {
	loaded, err := LoadThresholds(path)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{path: path, logger: logger, current: loaded}, nil
}

func (w *Watcher) Current() LoadedThresholds {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Reload re-reads the file. On failure the previous thresholds stay active.
func (w *Watcher) Reload() error {
	loaded, err := LoadThresholds(w.path)
	if err != nil {
		w.logger.Warn("threshold reload failed", zap.String("path", w.path), zap.Error(err))
		return err
	}

	w.mu.Lock()
	previous := w.current.Hash
	w.current = loaded
	w.mu.Unlock()

	if previous != loaded.Hash {
		w.logger.Info("thresholds reloaded",
			zap.String("path", w.path),
			zap.String("policy_id", loaded.PolicyID),
			zap.String("hash", loaded.Hash))
	}
	return nil
}

// Run watches the file's directory until ctx is done. Editors often replace files
// rather than write them in place, so events are matched by name.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	target := filepath.Clean(w.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				_ = w.Reload()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("threshold watcher error", zap.Error(err))
		}
	}
}
