package application

import (
	"sync"
	"time"

	"github.com/ahrav/go-gatekeeper/internal/domain"
)

// statisticsWindow is the number of batch durations averaged.
const statisticsWindow = 100

// statistics holds validator counters. Counters only grow until reset.
type statistics struct {
	mu sync.Mutex

	total      int64
	successful int64
	failed     int64
	retries    int64

	window [statisticsWindow]time.Duration
	filled int
	next   int
}

func newStatistics() *statistics {
	return &statistics{}
}

func (s *statistics) recordGate(passed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if passed {
		s.successful++
	} else {
		s.failed++
	}
}

// recordBatch counts one ValidateGates call and adds its duration to the
// trailing window.
func (s *statistics) recordBatch(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	s.window[s.next] = d
	s.next = (s.next + 1) % statisticsWindow
	if s.filled < statisticsWindow {
		s.filled++
	}
}

func (s *statistics) recordRetry() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retries++
}

func (s *statistics) snapshot() domain.ValidationStatistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	var avg time.Duration
	if s.filled > 0 {
		var sum time.Duration
		for i := 0; i < s.filled; i++ {
			sum += s.window[i]
		}
		avg = sum / time.Duration(s.filled)
	}

	return domain.ValidationStatistics{
		TotalValidations:      s.total,
		SuccessfulValidations: s.successful,
		FailedValidations:     s.failed,
		RetryRequests:         s.retries,
		AverageValidationTime: avg,
	}
}

func (s *statistics) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total, s.successful, s.failed, s.retries = 0, 0, 0, 0
	s.window = [statisticsWindow]time.Duration{}
	s.filled, s.next = 0, 0
}
