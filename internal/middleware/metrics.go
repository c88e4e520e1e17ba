package middleware

import (
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/bryanwahyu/contract-analysis/internal/domain/contracts"
)

// Metrics stores application counters. All methods are safe for concurrent use.
type Metrics struct {
	RequestsTotal      atomic.Uint64
	RequestsInProgress atomic.Int64
	RequestsSuccess    atomic.Uint64
	RequestsFailed     atomic.Uint64
	AnalysesTotal      atomic.Uint64
	AnalysesRunning    atomic.Int64
	AnalysesFailed     atomic.Uint64
	StartTime          time.Time

	stageFailures map[contracts.Stage]*atomic.Uint64
}

func NewMetrics() *Metrics {
	m := &Metrics{
		StartTime:     time.Now(),
		stageFailures: make(map[contracts.Stage]*atomic.Uint64),
	}
	for _, s := range []contracts.Stage{
		contracts.StageExtract, contracts.StageClassify, contracts.StageAnalyze, contracts.StagePersist,
	} {
		m.stageFailures[s] = new(atomic.Uint64)
	}
	return m
}

// AnalysisStarted counts a pipeline run that passed input validation.
func (m *Metrics) AnalysisStarted() {
	m.AnalysesTotal.Add(1)
	m.AnalysesRunning.Add(1)
}

// AnalysisFinished closes a run; failed is "" on success.
func (m *Metrics) AnalysisFinished(failed contracts.Stage) {
	m.AnalysesRunning.Add(-1)
	if failed == "" {
		return
	}
	m.AnalysesFailed.Add(1)
	if c, ok := m.stageFailures[failed]; ok {
		c.Add(1)
	}
}

// StageFailures returns the failure count for one stage.
func (m *Metrics) StageFailures(s contracts.Stage) uint64 {
	if c, ok := m.stageFailures[s]; ok {
		return c.Load()
	}
	return 0
}

// Snapshot returns current metrics
func (m *Metrics) Snapshot() map[string]any {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	stages := make(map[string]uint64, len(m.stageFailures))
	for s, c := range m.stageFailures {
		stages[string(s)] = c.Load()
	}
	return map[string]any{
		"requests_total":       m.RequestsTotal.Load(),
		"requests_in_progress": m.RequestsInProgress.Load(),
		"requests_success":     m.RequestsSuccess.Load(),
		"requests_failed":      m.RequestsFailed.Load(),
		"analyses_total":       m.AnalysesTotal.Load(),
		"analyses_running":     m.AnalysesRunning.Load(),
		"analyses_failed":      m.AnalysesFailed.Load(),
		"stage_failures":       stages,
		"uptime_seconds":       time.Since(m.StartTime).Seconds(),
		"memory": map[string]any{
			"alloc_bytes":       ms.Alloc,
			"total_alloc_bytes": ms.TotalAlloc,
			"sys_bytes":         ms.Sys,
			"num_gc":            ms.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// Middleware tracks request metrics
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.RequestsTotal.Add(1)
		m.RequestsInProgress.Add(1)
		defer m.RequestsInProgress.Add(-1)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			m.RequestsSuccess.Add(1)
		} else {
			m.RequestsFailed.Add(1)
		}
	})
}

// Handler returns metrics as JSON
func (m *Metrics) Handler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, m.Snapshot())
}
