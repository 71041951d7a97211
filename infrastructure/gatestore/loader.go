package gatestore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-gatekeeper/internal/domain"
)

// Loader parses and validates gate definition files. Parsed files are
// cached by the SHA-256 of their bytes, so reloading an unchanged
// directory does not re-validate every gate.
type Loader struct {
	validator *validator.Validate

	cacheMu sync.RWMutex
	cache   map[string][]*domain.GateDefinition

	sf singleflight.Group
}

// NewLoader creates a Loader with the gate id validator registered.
func NewLoader() (*Loader, error) {
	v := validator.New()
	if err := v.RegisterValidation("gateid", func(fl validator.FieldLevel) bool {
		return IsValidGateID(fl.Field().String())
	}); err != nil {
		return nil, fmt.Errorf("failed to register gateid validator: %w", err)
	}

	return &Loader{
		validator: v,
		cache:     make(map[string][]*domain.GateDefinition),
	}, nil
}

// Parse decodes one or more YAML documents, each holding a single gate.
// Unknown keys are rejected. The returned definitions are shared with the
// cache and must not be mutated.
func (l *Loader) Parse(data []byte) ([]*domain.GateDefinition, error) {
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	v, err, _ := l.sf.Do(hash, func() (any, error) {
		if defs, ok := l.cached(hash); ok {
			return defs, nil
		}

		defs, err := l.decode(data)
		if err != nil {
			return nil, err
		}

		l.cacheMu.Lock()
		l.cache[hash] = defs
		l.cacheMu.Unlock()
		return defs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*domain.GateDefinition), nil
}

func (l *Loader) cached(hash string) ([]*domain.GateDefinition, bool) {
	l.cacheMu.RLock()
	defer l.cacheMu.RUnlock()
	defs, ok := l.cache[hash]
	return defs, ok
}

func (l *Loader) decode(data []byte) ([]*domain.GateDefinition, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var defs []*domain.GateDefinition
	for i := 0; ; i++ {
		var file GateFile
		if err := decoder.Decode(&file); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%w: document %d: %v", domain.ErrInvalidGateDefinition, i, err)
		}
		if err := l.validator.Struct(file); err != nil {
			return nil, fmt.Errorf("%w: gate %q: %v", domain.ErrInvalidGateDefinition, file.ID, err)
		}
		if err := file.validateSemantics(); err != nil {
			return nil, fmt.Errorf("%w: gate %q: %v", domain.ErrInvalidGateDefinition, file.ID, err)
		}
		defs = append(defs, file.Definition())
	}
	return defs, nil
}

// LoadFile parses a single gate file.
func (l *Loader) LoadFile(ctx context.Context, path string) ([]*domain.GateDefinition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	defs, err := l.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

// LoadDir parses every *.yaml and *.yml file directly under dir. Gate ids
// must be unique across the directory.
func (l *Loader) LoadDir(ctx context.Context, dir string) (map[string]*domain.GateDefinition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read gate directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && IsGateFile(e.Name()) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	gates := make(map[string]*domain.GateDefinition)
	origin := make(map[string]string)
	for _, path := range files {
		defs, err := l.LoadFile(ctx, path)
		if err != nil {
			return nil, err
		}
		for _, def := range defs {
			if prev, exists := origin[def.ID]; exists {
				return nil, fmt.Errorf("%w: duplicate gate id %q in %s and %s",
					domain.ErrInvalidGateDefinition, def.ID, prev, path)
			}
			origin[def.ID] = path
			gates[def.ID] = def
		}
	}
	return gates, nil
}

// ClearCache drops all cached parses.
func (l *Loader) ClearCache() {
	l.cacheMu.Lock()
	defer l.cacheMu.Unlock()
	l.cache = make(map[string][]*domain.GateDefinition)
}

// IsGateFile reports whether name has a YAML extension.
func IsGateFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
