package gatestore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ahrav/go-gatekeeper/internal/domain"
	"github.com/ahrav/go-gatekeeper/internal/filewatch"
	"github.com/ahrav/go-gatekeeper/internal/ports"
)

// MetricGatesLoaded is the gauge set to the number of served gates after
// every successful load.
const MetricGatesLoaded = "gates_loaded"

var (
	_ ports.GateDefinitionProvider = (*FileStore)(nil)
	_ ports.GateLister             = (*FileStore)(nil)
)

// FileStore serves gates loaded from a directory of YAML files. With Watch
// enabled, edits are picked up without a restart; a reload that fails
// validation keeps the previous set.
type FileStore struct {
	dir      string
	loader   *Loader
	store    *MemoryStore
	logger   *zap.Logger
	debounce time.Duration
	onReload func(count int, err error)
	metrics  ports.MetricsCollector

	mu      sync.Mutex
	watcher *filewatch.Watcher
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) FileStoreOption {
	return func(s *FileStore) { s.logger = l }
}

// WithDebounce overrides the watch debounce window.
func WithDebounce(d time.Duration) FileStoreOption {
	return func(s *FileStore) { s.debounce = d }
}

// WithMetrics reports the served gate count to mc.
func WithMetrics(mc ports.MetricsCollector) FileStoreOption {
	return func(s *FileStore) { s.metrics = mc }
}

// WithReloadHook is called after every watch-triggered reload with the
// number of gates now served and the reload error, if any.
func WithReloadHook(fn func(count int, err error)) FileStoreOption {
	return func(s *FileStore) { s.onReload = fn }
}

// NewFileStore loads dir once and returns the store. Any invalid file
// fails construction.
func NewFileStore(ctx context.Context, dir string, opts ...FileStoreOption) (*FileStore, error) {
	loader, err := NewLoader()
	if err != nil {
		return nil, err
	}

	s := &FileStore{
		dir:      dir,
		loader:   loader,
		store:    NewMemoryStore(),
		logger:   zap.NewNop(),
		debounce: filewatch.DefaultDebounce,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// GetGate implements ports.GateDefinitionProvider.
func (s *FileStore) GetGate(ctx context.Context, id string) (*domain.GateDefinition, error) {
	return s.store.GetGate(ctx, id)
}

// ListGateIDs implements ports.GateLister.
func (s *FileStore) ListGateIDs(ctx context.Context) ([]string, error) {
	return s.store.ListGateIDs(ctx)
}

// Reload re-reads the directory and swaps the served set on success.
func (s *FileStore) Reload(ctx context.Context) error {
	gates, err := s.loader.LoadDir(ctx, s.dir)
	if err != nil {
		return fmt.Errorf("failed to load gates from %s: %w", s.dir, err)
	}
	s.store.Replace(gates)
	s.logger.Info("gates loaded", zap.String("dir", s.dir), zap.Int("count", len(gates)))
	if s.metrics != nil {
		s.metrics.RecordGauge(MetricGatesLoaded, float64(len(gates)), map[string]string{"dir": s.dir})
	}
	return nil
}

// Watch starts hot reload. It returns immediately; the watch stops when
// ctx is done or Close is called.
func (s *FileStore) Watch(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watcher != nil {
		return nil
	}

	w, err := filewatch.New([]string{s.dir}, IsGateFile, func() {
		err := s.Reload(ctx)
		if err != nil {
			s.logger.Error("gate reload failed, keeping previous definitions", zap.Error(err))
		}
		if s.onReload != nil {
			s.onReload(s.store.Len(), err)
		}
	}, filewatch.WithDebounce(s.debounce), filewatch.WithLogger(s.logger))
	if err != nil {
		return err
	}
	w.Start(ctx)
	s.watcher = w
	return nil
}

// Close stops the watch, if any.
func (s *FileStore) Close() error {
	s.mu.Lock()
	w := s.watcher
	s.watcher = nil
	s.mu.Unlock()

	if w != nil {
		w.Stop()
	}
	return nil
}
