package monitoring

import (
	"sync"
	"time"
)

// Metrics collects lightweight in-process counters for the score API.
type Metrics struct {
	mu sync.RWMutex

	requestCount  int64
	errorCount    int64
	cacheHits     int64
	cacheMisses   int64
	rawScores     int64
	rankScores    int64
	responseTimes []time.Duration
	statusCodes   map[int]int64
	startTime     time.Time
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		responseTimes: make([]time.Duration, 0, 1024),
		statusCodes:   make(map[int]int64),
		startTime:     time.Now(),
	}
}

func (m *Metrics) IncrementRequest() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount++
}

func (m *Metrics) IncrementError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount++
}

func (m *Metrics) IncrementCacheHit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheHits++
}

func (m *Metrics) IncrementCacheMiss() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheMisses++
}

// RecordScore counts a completed pipeline computation by version tag.
func (m *Metrics) RecordScore(version string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch version {
	case "raw-v2":
		m.rawScores++
	default:
		m.rankScores++
	}
}

func (m *Metrics) RecordResponseTime(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Keep a sliding sample so memory stays bounded.
	if len(m.responseTimes) >= 1024 {
		m.responseTimes = m.responseTimes[1:]
	}
	m.responseTimes = append(m.responseTimes, duration)
}

func (m *Metrics) RecordRequestByStatus(statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusCodes[statusCode]++
}

// GetStats returns a snapshot of all counters.
func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var avgMs float64
	if len(m.responseTimes) > 0 {
		var total time.Duration
		for _, d := range m.responseTimes {
			total += d
		}
		avgMs = float64(total.Milliseconds()) / float64(len(m.responseTimes))
	}

	statusCodes := make(map[int]int64, len(m.statusCodes))
	for code, count := range m.statusCodes {
		statusCodes[code] = count
	}

	return map[string]interface{}{
		"request_count":   m.requestCount,
		"error_count":     m.errorCount,
		"cache_hits":      m.cacheHits,
		"cache_misses":    m.cacheMisses,
		"raw_scores":      m.rawScores,
		"rank_scores":     m.rankScores,
		"avg_response_ms": avgMs,
		"status_codes":    statusCodes,
		"uptime_seconds":  time.Since(m.startTime).Seconds(),
	}
}
