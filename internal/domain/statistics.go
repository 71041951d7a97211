package domain

import "time"

// ValidationStatistics is a point-in-time snapshot of validator counters.
type ValidationStatistics struct {
	TotalValidations      int64
	SuccessfulValidations int64
	FailedValidations     int64
	RetryRequests         int64

	// AverageValidationTime is the mean over the trailing sample window.
	AverageValidationTime time.Duration
}
