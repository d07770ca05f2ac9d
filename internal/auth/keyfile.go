package auth

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/bkr/apigateway/internal/observability"
)

// KeyFileProvider serves keys from a file and reloads them when the file
// changes. A failed reload keeps the previous keys.
type KeyFileProvider struct {
	path          string
	logger        observability.Logger
	debounceDelay time.Duration

	keys    atomic.Value // jwk.Set
	reloads atomic.Int64

	mu        sync.Mutex
	started   bool
	closed    bool
	watcher   *fsnotify.Watcher
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// KeyFileOption is a functional option for KeyFileProvider.
type KeyFileOption func(*KeyFileProvider)

// WithKeyFileLogger sets the logger.
func WithKeyFileLogger(logger observability.Logger) KeyFileOption {
	return func(p *KeyFileProvider) {
		p.logger = logger
	}
}

// WithDebounceDelay sets the delay between a file event and the reload.
func WithDebounceDelay(delay time.Duration) KeyFileOption {
	return func(p *KeyFileProvider) {
		p.debounceDelay = delay
	}
}

// NewKeyFileProvider loads path. Call Start to watch it for changes.
func NewKeyFileProvider(path string, opts ...KeyFileOption) (*KeyFileProvider, error) {
	p := &KeyFileProvider{
		path:          filepath.Clean(path),
		logger:        observability.NopLogger(),
		debounceDelay: 100 * time.Millisecond,
		stopCh:        make(chan struct{}),
		stoppedCh:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(p)
	}

	set, err := LoadKeyFile(p.path)
	if err != nil {
		return nil, err
	}
	p.keys.Store(set)

	return p, nil
}

// KeySet implements KeyProvider.
func (p *KeyFileProvider) KeySet(_ context.Context) (jwk.Set, error) {
	set, ok := p.keys.Load().(jwk.Set)
	if !ok || set.Len() == 0 {
		return nil, ErrNoKeys
	}
	return set, nil
}

// Reloads returns the number of successful reloads since start.
func (p *KeyFileProvider) Reloads() int64 {
	return p.reloads.Load()
}

// Start begins watching the key file's directory.
func (p *KeyFileProvider) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started || p.closed {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch key directory: %w", err)
	}

	p.watcher = watcher
	p.started = true

	p.logger.Info("watching key file", observability.String("path", p.path))

	go p.watchLoop(ctx)
	return nil
}

// Close stops the watcher.
func (p *KeyFileProvider) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	started := p.started
	p.mu.Unlock()

	close(p.stopCh)

	if !started {
		return nil
	}
	<-p.stoppedCh
	return p.watcher.Close()
}

// watchLoop handles file change events.
func (p *KeyFileProvider) watchLoop(ctx context.Context) {
	defer close(p.stoppedCh)

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case <-p.stopCh:
			return

		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != p.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.NewTimer(p.debounceDelay)
			debounceCh = debounceTimer.C

		case <-debounceCh:
			debounceCh = nil
			p.reload()

		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("key file watcher error", observability.Error(err))
		}
	}
}

// reload re-reads the key file.
func (p *KeyFileProvider) reload() {
	set, err := LoadKeyFile(p.path)
	if err != nil {
		p.logger.Error("failed to reload key file, keeping previous keys",
			observability.String("path", p.path),
			observability.Error(err),
		)
		return
	}

	p.keys.Store(set)
	p.reloads.Add(1)
	p.logger.Info("key file reloaded",
		observability.String("path", p.path),
		observability.Int("keys", set.Len()),
	)
}
