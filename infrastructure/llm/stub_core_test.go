package llm

import (
	"context"
	"sync"
	"time"
)

// stubCore is a configurable CoreLLM used by middleware and client tests.
type stubCore struct {
	mu sync.Mutex

	response  string
	tokensIn  int
	tokensOut int
	model     string
	delay     time.Duration

	// errs is consumed one entry per call; once exhausted calls succeed.
	errs []error

	calls      int
	lastPrompt string
	lastOpts   map[string]any
}

func newStubCore() *stubCore {
	return &stubCore{response: `{"passed": true}`, tokensIn: 10, tokensOut: 20, model: "stub-model"}
}

func (s *stubCore) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	s.mu.Lock()
	s.calls++
	s.lastPrompt = prompt
	s.lastOpts = opts
	var err error
	if len(s.errs) > 0 {
		err = s.errs[0]
		s.errs = s.errs[1:]
	}
	delay := s.delay
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", 0, 0, ctx.Err()
		}
	}
	if err != nil {
		return "", 0, 0, err
	}
	return s.response, s.tokensIn, s.tokensOut, nil
}

func (s *stubCore) GetModel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

func (s *stubCore) SetModel(m string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = m
}

func (s *stubCore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// recordingCollector implements ports.MetricsCollector in memory.
type recordingCollector struct {
	mu         sync.Mutex
	counters   map[string]float64
	histograms map[string][]float64
	labels     []map[string]string
}

func newRecordingCollector() *recordingCollector {
	return &recordingCollector{counters: map[string]float64{}, histograms: map[string][]float64{}}
}

func (r *recordingCollector) RecordLatency(op string, d time.Duration, labels map[string]string) {
	r.RecordHistogram(op, d.Seconds(), labels)
}

func (r *recordingCollector) RecordCounter(metric string, value float64, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[metric] += value
	r.labels = append(r.labels, labels)
}

func (r *recordingCollector) RecordGauge(metric string, value float64, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[metric] = value
}

func (r *recordingCollector) RecordHistogram(metric string, value float64, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.histograms[metric] = append(r.histograms[metric], value)
}
