package build

import (
	"sync"
	"time"
)

// Metrics tracks orchestrator performance across the process lifetime.
type Metrics struct {
	TotalCompiles      int64
	SuccessfulCompiles int64
	FailedCompiles     int64
	CacheHits          int64
	AverageDuration    time.Duration
	TotalDuration      time.Duration
	mutex              sync.RWMutex
}

func (m *Metrics) record(duration time.Duration, err error, cacheHit bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.TotalCompiles++
	m.TotalDuration += duration
	if cacheHit {
		m.CacheHits++
	}
	if err != nil {
		m.FailedCompiles++
	} else {
		m.SuccessfulCompiles++
	}
	if m.TotalCompiles > 0 {
		m.AverageDuration = m.TotalDuration / time.Duration(m.TotalCompiles)
	}
}

// MetricsSnapshot is a point-in-time copy of the orchestrator metrics.
type MetricsSnapshot struct {
	TotalCompiles      int64         `json:"totalCompiles"`
	SuccessfulCompiles int64         `json:"successfulCompiles"`
	FailedCompiles     int64         `json:"failedCompiles"`
	CacheHits          int64         `json:"cacheHits"`
	AverageDuration    time.Duration `json:"averageDuration"`
	TotalDuration      time.Duration `json:"totalDuration"`
}

// Snapshot returns a copy of the current metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return MetricsSnapshot{
		TotalCompiles:      m.TotalCompiles,
		SuccessfulCompiles: m.SuccessfulCompiles,
		FailedCompiles:     m.FailedCompiles,
		CacheHits:          m.CacheHits,
		AverageDuration:    m.AverageDuration,
		TotalDuration:      m.TotalDuration,
	}
}
