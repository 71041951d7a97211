package gatestore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-gatekeeper/internal/domain"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(
		&domain.GateDefinition{ID: "b", Type: domain.GateTypeGuidance},
		&domain.GateDefinition{ID: "a", Type: domain.GateTypeValidation, Name: "A"},
	)

	def, err := store.GetGate(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "A", def.Name)

	def.Name = "mutated"
	again, err := store.GetGate(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "A", again.Name, "callers get a copy")

	_, err = store.GetGate(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrGateNotFound)

	ids, err := store.ListGateIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	store.Put(&domain.GateDefinition{ID: "c"})
	store.Delete("a")
	store.Delete("never-existed")
	ids, _ = store.ListGateIDs(ctx)
	assert.Equal(t, []string{"b", "c"}, ids)

	store.Replace(map[string]*domain.GateDefinition{"z": {ID: "z"}})
	assert.Equal(t, 1, store.Len())

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = store.GetGate(cancelled, "z")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryStore_ConcurrentReplace(t *testing.T) {
	store := NewMemoryStore(&domain.GateDefinition{ID: "g"})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = store.GetGate(context.Background(), "g")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				store.Replace(map[string]*domain.GateDefinition{"g": {ID: "g"}})
			}
		}()
	}
	wg.Wait()

	_, err := store.GetGate(context.Background(), "g")
	assert.NoError(t, err)
}

func TestFileStore_LoadAndReload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, dir, "style.yaml", "id: style\ntype: guidance\nguidance: Be concise\n")

	store, err := NewFileStore(ctx, dir)
	require.NoError(t, err)

	def, err := store.GetGate(ctx, "style")
	require.NoError(t, err)
	assert.Equal(t, "Be concise", def.Guidance)

	writeFile(t, dir, "broken.yaml", "id: [\n")
	require.Error(t, store.Reload(ctx))

	def, err = store.GetGate(ctx, "style")
	require.NoError(t, err, "a failed reload keeps the previous set")
	assert.Equal(t, "Be concise", def.Guidance)
}

type gaugeRecorder struct {
	mu     sync.Mutex
	values []float64
}

func (g *gaugeRecorder) RecordLatency(string, time.Duration, map[string]string) {}
func (g *gaugeRecorder) RecordCounter(string, float64, map[string]string)      {}
func (g *gaugeRecorder) RecordHistogram(string, float64, map[string]string)    {}

func (g *gaugeRecorder) RecordGauge(metric string, value float64, _ map[string]string) {
	if metric != MetricGatesLoaded {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.values = append(g.values, value)
}

func TestFileStore_ReportsGateCount(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, dir, "style.yaml", "id: style\ntype: guidance\nguidance: Be concise\n")

	gauge := &gaugeRecorder{}
	store, err := NewFileStore(ctx, dir, WithMetrics(gauge))
	require.NoError(t, err)

	writeFile(t, dir, "tone.yaml", "id: tone\ntype: guidance\nguidance: Stay neutral\n")
	require.NoError(t, store.Reload(ctx))

	writeFile(t, dir, "broken.yaml", "id: [\n")
	require.Error(t, store.Reload(ctx))

	assert.Equal(t, []float64{1, 2}, gauge.values, "failed reloads leave the gauge alone")
}

func TestNewFileStore_InvalidDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.yaml", "id: bad id\ntype: guidance\n")

	_, err := NewFileStore(context.Background(), dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidGateDefinition)
}

func TestFileStore_Watch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	writeFile(t, dir, "style.yaml", "id: style\ntype: guidance\nguidance: Be concise\n")

	type reload struct {
		count int
		err   error
	}
	reloads := make(chan reload, 64)
	store, err := NewFileStore(ctx, dir,
		WithDebounce(100*time.Millisecond),
		WithReloadHook(func(count int, err error) { reloads <- reload{count, err} }))
	require.NoError(t, err)
	require.NoError(t, store.Watch(ctx))
	require.NoError(t, store.Watch(ctx), "second Watch is a no-op")
	defer store.Close()

	writeFile(t, dir, "tone.yaml", "id: tone\ntype: guidance\nguidance: Stay neutral\n")

	require.Eventually(t, func() bool {
		_, err := store.GetGate(ctx, "tone")
		return err == nil
	}, 3*time.Second, 20*time.Millisecond)

	writeFile(t, dir, "tone.yaml", "id: tone\ntype: nope\n")
	require.Eventually(t, func() bool {
		for {
			select {
			case r := <-reloads:
				if r.err != nil {
					return errors.Is(r.err, domain.ErrInvalidGateDefinition)
				}
			default:
				return false
			}
		}
	}, 3*time.Second, 20*time.Millisecond)

	def, err := store.GetGate(ctx, "tone")
	require.NoError(t, err)
	assert.Equal(t, "Stay neutral", def.Guidance)
	require.NoError(t, store.Close())
}
