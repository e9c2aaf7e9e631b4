package photos

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/capturecabinet/cabinet/pkg/logger"
)

const captureEventBuffer = 16

// DirectorySource serves screenshot assets from a watched directory. Asset
// refs are file names relative to the root; capture time is the file mtime.
type DirectorySource struct {
	root       string
	extensions map[string]struct{}
	log        *zap.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	events  chan Asset
	done    chan struct{}
}

// DirectoryOption customises a DirectorySource.
type DirectoryOption func(*DirectorySource)

// WithExtensions overrides the screenshot file extensions (with leading dot).
func WithExtensions(exts []string) DirectoryOption {
	return func(s *DirectorySource) {
		if len(exts) == 0 {
			return
		}
		s.extensions = make(map[string]struct{}, len(exts))
		for _, ext := range exts {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if ext == "" {
				continue
			}
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			s.extensions[ext] = struct{}{}
		}
	}
}

// NewDirectorySource constructs a source rooted at dir.
func NewDirectorySource(dir string, opts ...DirectoryOption) (*DirectorySource, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("photos: directory is required")
	}

	source := &DirectorySource{
		root: dir,
		extensions: map[string]struct{}{
			".png":  {},
			".jpg":  {},
			".jpeg": {},
			".heic": {},
		},
		log:    logger.WithModule("photos"),
		events: make(chan Asset, captureEventBuffer),
	}
	for _, opt := range opts {
		opt(source)
	}
	return source, nil
}

// RequestAccess maps filesystem state onto photo-library permission levels.
func (s *DirectorySource) RequestAccess(ctx context.Context) (AccessLevel, error) {
	info, err := os.Stat(s.root)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return AccessDenied, nil
	case errors.Is(err, os.ErrPermission):
		return AccessRestricted, nil
	case err != nil:
		return AccessDenied, err
	case !info.IsDir():
		return AccessDenied, nil
	}
	return AccessGranted, nil
}

// FetchSince lists screenshot files modified at or after the cutoff.
func (s *DirectorySource) FetchSince(ctx context.Context, cutoff time.Time) ([]Asset, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}

	var assets []Asset
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !s.matches(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			continue
		}
		assets = append(assets, Asset{Ref: entry.Name(), CapturedAt: info.ModTime()})
	}
	return assets, nil
}

// Resolve stats the file behind ref.
func (s *DirectorySource) Resolve(ctx context.Context, ref string) (*Asset, error) {
	path, err := s.assetPath(ref)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &Asset{Ref: ref, CapturedAt: info.ModTime()}, nil
}

// Delete removes the asset file.
func (s *DirectorySource) Delete(ctx context.Context, ref string) error {
	path, err := s.assetPath(ref)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// Events exposes capture events emitted by the watcher.
func (s *DirectorySource) Events() <-chan Asset {
	return s.events
}

// Start begins watching the root directory for newly captured screenshots.
func (s *DirectorySource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watcher != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(s.root); err != nil {
		_ = watcher.Close()
		return err
	}

	s.watcher = watcher
	s.done = make(chan struct{})
	go s.watchLoop(watcher, s.done)

	s.log.Info("watching screenshot directory", zap.String("dir", s.root))
	return nil
}

// Close stops the watcher and the capture event stream.
func (s *DirectorySource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watcher == nil {
		return nil
	}

	err := s.watcher.Close()
	<-s.done
	s.watcher = nil
	close(s.events)
	return err
}

func (s *DirectorySource) watchLoop(watcher *fsnotify.Watcher, done chan struct{}) {
	defer close(done)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			name := filepath.Base(event.Name)
			if !s.matches(name) {
				continue
			}
			info, err := os.Stat(event.Name)
			if err != nil || info.IsDir() {
				continue
			}
			select {
			case s.events <- Asset{Ref: name, CapturedAt: info.ModTime()}:
			default:
				s.log.Warn("dropping capture event, consumer too slow", zap.String("ref", name))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn("watcher error", zap.Error(err))
		}
	}
}

func (s *DirectorySource) matches(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	_, ok := s.extensions[ext]
	return ok
}

func (s *DirectorySource) assetPath(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || ref != filepath.Base(ref) {
		return "", ErrNotFound
	}
	return filepath.Join(s.root, ref), nil
}
