// Package config loads service configuration from YAML files.
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-gatekeeper/internal/domain"
	"github.com/ahrav/go-gatekeeper/internal/filewatch"
	"github.com/ahrav/go-gatekeeper/internal/ports"
)

var _ ports.ConfigLoader = (*YAMLLoader)(nil)

// YAMLLoader reads one YAML file. ${VAR} references are expanded from the
// environment before decoding, and unknown keys are rejected.
type YAMLLoader struct {
	path     string
	validate func(any) error
	logger   *zap.Logger
	debounce time.Duration
}

// Option configures a YAMLLoader.
type Option func(*YAMLLoader)

// WithValidation runs fn on every decoded config before it is accepted.
func WithValidation(fn func(any) error) Option {
	return func(l *YAMLLoader) { l.validate = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *YAMLLoader) { l.logger = logger }
}

// WithDebounce overrides the watch debounce window.
func WithDebounce(d time.Duration) Option {
	return func(l *YAMLLoader) { l.debounce = d }
}

// NewYAMLLoader creates a loader for path.
func NewYAMLLoader(path string, opts ...Option) *YAMLLoader {
	l := &YAMLLoader{
		path:     path,
		logger:   zap.NewNop(),
		debounce: filewatch.DefaultDebounce,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Path returns the file the loader reads.
func (l *YAMLLoader) Path() string { return l.path }

// Load decodes the file over config, which must be a non-nil pointer.
// Fields absent from the file keep their current values, so callers
// usually pass a pointer to a populated default config. An empty file is
// not an error.
func (l *YAMLLoader) Load(ctx context.Context, config any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkTarget(config); err != nil {
		return err
	}

	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return ports.NewConfigError(l.path, fmt.Errorf("%w: %w", ports.ErrConfigNotFound, err))
	}
	if err != nil {
		return ports.NewConfigError(l.path, err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader([]byte(os.ExpandEnv(string(data)))))
	decoder.KnownFields(true)
	if err := decoder.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return ports.NewConfigError(l.path, fmt.Errorf("%w: %v", domain.ErrInvalidConfiguration, err))
	}

	if l.validate != nil {
		if err := l.validate(config); err != nil {
			return ports.NewConfigError(l.path, err)
		}
	}
	return nil
}

// Watch reloads the file whenever it changes and passes the new config to
// callback. Each reload starts from a copy of config, so config itself is
// never written. A file that fails to load or validate is logged and
// skipped; the previous config stays in effect.
func (l *YAMLLoader) Watch(ctx context.Context, config any, callback func(any)) (func(), error) {
	if err := checkTarget(config); err != nil {
		return nil, err
	}

	target, err := filepath.Abs(l.path)
	if err != nil {
		return nil, ports.NewConfigError(l.path, err)
	}
	isTarget := func(p string) bool {
		abs, err := filepath.Abs(p)
		return err == nil && abs == target
	}

	w, err := filewatch.New([]string{filepath.Dir(target)}, isTarget, func() {
		next, err := cloneConfig(config)
		if err != nil {
			l.logger.Error("config clone failed", zap.Error(err))
			return
		}
		if err := l.Load(ctx, next); err != nil {
			l.logger.Error("config reload failed, keeping previous config",
				zap.String("path", l.path), zap.Error(err))
			return
		}
		l.logger.Info("config reloaded", zap.String("path", l.path))
		callback(next)
	}, filewatch.WithDebounce(l.debounce), filewatch.WithLogger(l.logger))
	if err != nil {
		return nil, ports.NewConfigError(l.path, err)
	}

	w.Start(ctx)
	return w.Stop, nil
}

func checkTarget(config any) error {
	v := reflect.ValueOf(config)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return fmt.Errorf("%w: config target must be a non-nil pointer, got %T", domain.ErrInvalidConfiguration, config)
	}
	return nil
}

// cloneConfig deep-copies *config through its YAML form into a new value
// of the same type.
func cloneConfig(config any) (any, error) {
	raw, err := yaml.Marshal(config)
	if err != nil {
		return nil, err
	}
	next := reflect.New(reflect.TypeOf(config).Elem()).Interface()
	if err := yaml.Unmarshal(raw, next); err != nil {
		return nil, err
	}
	return next, nil
}
