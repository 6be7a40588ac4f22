// Package metrics keeps the process performance counters reported by the
// /health and /metrics endpoints and the OpenTelemetry instruments exported
// for Prometheus scraping.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Reported targets for the Orpheus deployment.
const (
	MaxConcurrentStreams = 8
	TargetTokensPerSec   = 83
	ChunkSize            = 4096
	MaxGenerationTime    = 3.0
	StreamSuccessTarget  = 0.95
)

// Performance tracks running averages over successful primary syntheses.
type Performance struct {
	mu                sync.Mutex
	totalRequests     int64
	avgGenerationTime float64
	tokensPerSecond   float64

	activeStreams atomic.Int64
}

func NewPerformance() *Performance {
	return &Performance{}
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	TotalRequests     int64   `json:"total_requests"`
	AvgGenerationTime float64 `json:"avg_generation_time"`
	TokensPerSecond   float64 `json:"tokens_per_second"`
	StreamSuccessRate float64 `json:"stream_success_rate"`
}

// RecordGeneration folds one successful generation into the running
// averages. Tokens are estimated as one per hundred bytes of raw audio.
func (p *Performance) RecordGeneration(elapsed time.Duration, rawBytes int) {
	secs := elapsed.Seconds()
	tokens := float64(rawBytes / 100)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.totalRequests++
	n := float64(p.totalRequests)
	p.avgGenerationTime = (p.avgGenerationTime*(n-1) + secs) / n
	if secs > 0 {
		p.tokensPerSecond = (p.tokensPerSecond*(n-1) + tokens/secs) / n
	}
}

func (p *Performance) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		TotalRequests:     p.totalRequests,
		AvgGenerationTime: p.avgGenerationTime,
		TokensPerSecond:   p.tokensPerSecond,
	}
}

// BeginStream marks one synthesis in flight. The returned func ends it.
func (p *Performance) BeginStream() (end func()) {
	p.activeStreams.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() { p.activeStreams.Add(-1) })
	}
}

func (p *Performance) ActiveStreams() int64 {
	return p.activeStreams.Load()
}
