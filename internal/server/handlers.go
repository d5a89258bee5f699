package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/ledgerkeep/ledgerkeep/internal/domain"
	"github.com/ledgerkeep/ledgerkeep/internal/recurring"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"version": "1.0.0",
		"service": "ledgerkeep",
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleDetailedHealth reports database integrity, rule counts, running jobs
// and host resource usage.
func (s *Server) handleDetailedHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := "healthy"

	dbHealth := map[string]interface{}{"healthy": true}
	if err := s.ledgerDB.HealthCheck(ctx); err != nil {
		status = "degraded"
		dbHealth["healthy"] = false
		dbHealth["error"] = err.Error()
	}
	if stats, err := s.ledgerDB.GetStats(); err == nil {
		dbHealth["stats"] = stats
	}

	ruleCounts, err := s.rules.Counts(time.Now())
	if err != nil {
		status = "degraded"
		s.log.Error().Err(err).Msg("Failed to count rules")
	}

	cpuPercent, ramPercent := s.getSystemStats()

	response := map[string]interface{}{
		"status":       status,
		"database":     dbHealth,
		"rules":        ruleCounts,
		"running_jobs": s.tracker.GetStatus(),
		"sweep":        s.tracker.GetJobStats(recurring.SweepJobName),
		"system": map[string]float64{
			"cpu_percent": cpuPercent,
			"ram_percent": ramPercent,
		},
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, response)
}

// handleTriggerSweep runs a recurring sweep on demand. A sweep already in
// flight maps to 409 rather than queueing a second pass.
func (s *Server) handleTriggerSweep(w http.ResponseWriter, r *http.Request) {
	result, err := s.sweeper.RunSweep(r.Context(), "manual")
	if err != nil {
		if errors.Is(err, domain.ErrSweepInProgress) {
			s.writeError(w, http.StatusConflict, "sweep already in progress")
			return
		}
		s.log.Error().Err(err).Msg("Manual sweep failed")
		s.writeError(w, http.StatusInternalServerError, "sweep failed")
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status": "completed",
		"result": result,
	})
}

// handleTriggerBackup starts a backup run in the background.
func (s *Server) handleTriggerBackup(w http.ResponseWriter, r *http.Request) {
	if s.backupJob == nil {
		s.writeError(w, http.StatusServiceUnavailable, "backups not configured")
		return
	}

	go func() {
		if err := s.backupJob.RunWithTrigger("manual"); err != nil {
			s.log.Error().Err(err).Msg("Manual backup failed")
		}
	}()

	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// handleJobsStatus returns currently running jobs.
func (s *Server) handleJobsStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"running": s.tracker.GetStatus(),
	})
}

// handleJobsHistory returns finished executions, most recent first.
// Query params: name (optional filter), limit (default 20).
func (s *Server) handleJobsHistory(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"history": s.tracker.GetJobHistory(name, limit),
	})
}

// handleJobsStats returns aggregate execution counts.
func (s *Server) handleJobsStats(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	s.writeJSON(w, http.StatusOK, s.tracker.GetJobStats(name))
}

// handleMetrics serves tracker counters in Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	if _, err := w.Write([]byte(s.tracker.MetricsText())); err != nil {
		s.log.Error().Err(err).Msg("Failed to write metrics response")
	}
}

// handleListRules lists recurring rules, optionally filtered by user_id.
func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.rules.ListRules(r.URL.Query().Get("user_id"))
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list rules")
		s.writeError(w, http.StatusInternalServerError, "failed to list rules")
		return
	}

	if rules == nil {
		rules = []domain.RecurringRule{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"rules": rules})
}

// handleGetRule returns one rule by id.
func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := s.rules.GetRule(chi.URLParam(r, "id"))
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to get rule")
		s.writeError(w, http.StatusInternalServerError, "failed to get rule")
		return
	}
	if rule == nil {
		s.writeError(w, http.StatusNotFound, "rule not found")
		return
	}

	s.writeJSON(w, http.StatusOK, rule)
}

// getSystemStats calculates CPU and RAM usage percentages
// Uses a short interval (100ms) so the health endpoint stays responsive
func (s *Server) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
