package v1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// MetricsOverviewResponse represents the overview response of turn metrics since process start.
type MetricsOverviewResponse struct {
	TotalTurns     int64            `json:"total_turns"`
	SuccessRate    float64          `json:"success_rate"`
	AvgLatencyMs   int64            `json:"avg_latency_ms"`
	P50LatencyMs   int64            `json:"p50_latency_ms"`
	P95LatencyMs   int64            `json:"p95_latency_ms"`
	ErrorCount     int64            `json:"error_count"`
	PollAttempts   int64            `json:"poll_attempts"`
	ActiveSessions int              `json:"active_sessions"`
	FailureCodes   map[string]int64 `json:"failure_codes"`
	Surfaces       map[string]int64 `json:"surfaces"`
	Since          time.Time        `json:"since"`
}

// GetMetricsOverview returns the turn metrics overview
// GET /api/v1/system/metrics/overview
func (s *APIV1Service) GetMetricsOverview(c echo.Context) error {
	snap := s.Metrics.Snapshot()

	var totalMs, count int64
	surfaces := make(map[string]int64, len(snap.Surfaces))
	for name, sm := range snap.Surfaces {
		surfaces[name] = sm.TurnCount
		totalMs += sm.TotalDuration
		count += sm.TurnCount
	}
	var avg int64
	if count > 0 {
		avg = totalMs / count
	}

	resp := MetricsOverviewResponse{
		TotalTurns:   snap.TurnTotal,
		SuccessRate:  snap.SuccessRate(),
		AvgLatencyMs: avg,
		P50LatencyMs: snap.P50Latency.Milliseconds(),
		P95LatencyMs: snap.P95Latency.Milliseconds(),
		ErrorCount:   snap.TurnFailed,
		PollAttempts: snap.PollAttempts,
		FailureCodes: snap.FailureCodes,
		Surfaces:     surfaces,
		Since:        s.startedAt,
	}
	if s.Registry != nil {
		resp.ActiveSessions = s.Registry.Size()
	}
	return c.JSON(http.StatusOK, resp)
}
