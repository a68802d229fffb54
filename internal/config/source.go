package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Source provides the current configuration and change notification.
// Subscribers get no diff payload; a callback must re-read via Load.
type Source interface {
	Load() (*Config, error)
	Subscribe(fn func())
}

// FileSource watches a YAML config file and notifies subscribers when it
// changes. Events are debounced because editors and orchestrators often
// produce several writes per save.
type FileSource struct {
	path     string
	log      *zap.Logger
	debounce time.Duration

	mu   sync.Mutex
	subs []func()

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
}

// NewFileSource creates a source for the given file. Start must be called
// before subscribers receive notifications.
func NewFileSource(path string, log *zap.Logger) (*FileSource, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &FileSource{
		path:     abs,
		log:      log,
		debounce: 200 * time.Millisecond,
		watcher:  w,
		stopCh:   make(chan struct{}),
	}, nil
}

func (s *FileSource) Load() (*Config, error) {
	return Load(s.path, s.log)
}

func (s *FileSource) Subscribe(fn func()) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
}

// Start begins watching the file's directory. Watching the directory rather
// than the file survives rename-based atomic writes.
func (s *FileSource) Start(ctx context.Context) error {
	if err := s.watcher.Add(filepath.Dir(s.path)); err != nil {
		return err
	}
	s.log.Info("watching configuration file", zap.String("path", s.path))
	go s.watch(ctx)
	return nil
}

func (s *FileSource) Close() error {
	close(s.stopCh)
	return s.watcher.Close()
}

func (s *FileSource) watch(ctx context.Context) {
	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != s.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			s.log.Debug("config file changed", zap.String("op", ev.Op.String()))
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(s.debounce)
			fire = timer.C
		case <-fire:
			fire = nil
			s.notify()
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.Error("config watcher error", zap.Error(err))
		}
	}
}

func (s *FileSource) notify() {
	s.mu.Lock()
	subs := make([]func(), len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}
