package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/alem-hub/albion-guild-ranking/internal/application/command"
	"github.com/alem-hub/albion-guild-ranking/internal/application/query"
	"github.com/alem-hub/albion-guild-ranking/internal/domain/ranking"
	"github.com/alem-hub/albion-guild-ranking/internal/domain/shared"
	"github.com/alem-hub/albion-guild-ranking/internal/infrastructure/scheduler"
	"github.com/alem-hub/albion-guild-ranking/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"name":    "Albion Guild Ranking API",
		"version": s.config.Version,
		"endpoints": map[string]string{
			"health":      "/health",
			"ranking":     "/api/v1/ranking?mode=cumulative|daily|weekly&category=total|pvp|pve|gathering|crafting&top=N",
			"daily_cycle": "POST /api/v1/admin/daily-cycle?force=true",
			"jobs":        "/api/v1/admin/jobs",
			"job_run":     "POST /api/v1/admin/jobs/{name}/run",
		},
	})
}

// handleHealth returns every check; 503 when a critical check fails.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	code := http.StatusOK
	if !status.Ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, status)
}

// handleReady handles the readiness probe endpoint.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Ready {
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": status.Message,
		})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"status": "alive",
		"uptime": s.Uptime().Round(time.Second).String(),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKING HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// EntryDTO is one board line.
type EntryDTO struct {
	Position int    `json:"position"`
	Name     string `json:"name"`
	Value    int64  `json:"value"`
}

// RankingDTO is the JSON view of a board.
type RankingDTO struct {
	Mode        string     `json:"mode"`
	Category    string     `json:"category"`
	Style       string     `json:"style"`
	Entries     []EntryDTO `json:"entries"`
	Unavailable bool       `json:"unavailable"`
	Reason      string     `json:"reason,omitempty"`
	GeneratedAt time.Time  `json:"generated_at"`
}

// handleGetRanking handles GET /api/v1/ranking.
func (s *Server) handleGetRanking(w http.ResponseWriter, r *http.Request) {
	mode, err := query.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_mode", err.Error())
		return
	}
	top, err := getQueryParamInt(r, "top", 0)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_top", err.Error())
		return
	}

	view, err := s.deps.RankingQuery.Handle(r.Context(), query.GetRankingQuery{
		Mode:     mode,
		Category: r.URL.Query().Get("category"),
		TopN:     top,
	})
	if err != nil {
		switch {
		case errors.Is(err, ranking.ErrUnknownCategory):
			writeJSONError(w, http.StatusBadRequest, "unknown_category", err.Error())
		case shared.IsValidation(err):
			writeJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
		case shared.IsExternalService(err):
			writeJSONError(w, http.StatusServiceUnavailable, "upstream_unavailable", "Albion API is unavailable")
		default:
			logger.FromContext(r.Context()).Error("failed to get ranking", "error", err)
			writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to get ranking")
		}
		return
	}

	writeJSON(w, r, http.StatusOK, toRankingDTO(view))
}

func toRankingDTO(view *query.RankingView) RankingDTO {
	dto := RankingDTO{
		Mode:        string(view.Mode),
		Category:    view.Category.String(),
		Style:       view.Style.String(),
		Entries:     make([]EntryDTO, len(view.Entries)),
		Unavailable: view.Unavailable,
		Reason:      view.Reason,
		GeneratedAt: view.GeneratedAt,
	}
	for i, e := range view.Entries {
		dto.Entries[i] = EntryDTO{Position: i + 1, Name: e.Name, Value: e.Value}
	}
	return dto
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// CycleResultDTO is the JSON view of a daily cycle run.
type CycleResultDTO struct {
	RunID        string   `json:"run_id"`
	Day          string   `json:"day"`
	Players      int      `json:"players"`
	Published    []string `json:"published"`
	WeeklyPosted bool     `json:"weekly_posted"`
	Skipped      bool     `json:"skipped"`
	Unavailable  bool     `json:"unavailable"`
	DurationMs   int64    `json:"duration_ms"`
}

// handleRunDailyCycle handles POST /api/v1/admin/daily-cycle.
func (s *Server) handleRunDailyCycle(w http.ResponseWriter, r *http.Request) {
	if s.deps.DailyCycle == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Daily cycle not configured")
		return
	}

	result, err := s.deps.DailyCycle.Handle(r.Context(), command.RunDailyCycleCommand{
		Now:     s.now(),
		Force:   getQueryParamBool(r, "force"),
		Trigger: "http",
	})
	if err != nil {
		if command.IsBusy(err) {
			writeJSONError(w, http.StatusConflict, "cycle_in_progress", "A daily cycle is already running")
			return
		}
		logger.FromContext(r.Context()).Error("daily cycle failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "cycle_failed", err.Error())
		return
	}

	dto := CycleResultDTO{
		RunID:        result.RunID,
		Day:          result.Day.String(),
		Players:      result.Players,
		Published:    make([]string, len(result.Published)),
		WeeklyPosted: result.WeeklyPosted,
		Skipped:      result.Skipped,
		Unavailable:  result.Unavailable,
		DurationMs:   result.Duration.Milliseconds(),
	}
	for i, c := range result.Published {
		dto.Published[i] = c.String()
	}

	status := http.StatusOK
	if result.Unavailable {
		status = http.StatusBadGateway
	}
	writeJSON(w, r, status, dto)
}

// JobDTO is the JSON view of a scheduled job.
type JobDTO struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Schedule    string     `json:"schedule"`
	Enabled     bool       `json:"enabled"`
	Running     bool       `json:"running"`
	LastRun     *time.Time `json:"last_run,omitempty"`
	NextRun     *time.Time `json:"next_run,omitempty"`
	RunCount    int64      `json:"run_count"`
	FailCount   int64      `json:"fail_count"`
	LastError   string     `json:"last_error,omitempty"`
}

// handleListJobs handles GET /api/v1/admin/jobs.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if s.deps.Jobs == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Scheduler not configured")
		return
	}

	jobs := s.deps.Jobs.ListJobs()
	out := make([]JobDTO, len(jobs))
	for i, j := range jobs {
		out[i] = JobDTO{
			Name:        j.Name,
			Description: j.Description,
			Schedule:    j.Schedule,
			Enabled:     j.Enabled,
			Running:     j.Running,
			LastRun:     timePtr(j.LastRun),
			NextRun:     timePtr(j.NextRun),
			RunCount:    j.RunCount,
			FailCount:   j.FailCount,
		}
		if j.LastResult != nil && j.LastResult.Error != nil {
			out[i].LastError = j.LastResult.Error.Error()
		}
	}

	writeJSON(w, r, http.StatusOK, out)
}

// JobResultDTO is the JSON view of one job execution.
type JobResultDTO struct {
	Job        string    `json:"job"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
	Success    bool      `json:"success"`
	Manual     bool      `json:"manual"`
	Error      string    `json:"error,omitempty"`
}

func toJobResultDTO(r scheduler.JobResult) JobResultDTO {
	dto := JobResultDTO{
		Job:        r.JobName,
		StartedAt:  r.StartedAt,
		DurationMs: r.Duration.Milliseconds(),
		Success:    r.Success,
		Manual:     r.Manual,
	}
	if r.Error != nil {
		dto.Error = r.Error.Error()
	}
	return dto
}

// handleJobHistory handles GET /api/v1/admin/jobs/history?limit=N.
func (s *Server) handleJobHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.Jobs == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Scheduler not configured")
		return
	}
	limit, err := getQueryParamInt(r, "limit", 20)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_limit", err.Error())
		return
	}

	history := s.deps.Jobs.GetHistory(limit)
	out := make([]JobResultDTO, len(history))
	for i, res := range history {
		out[i] = toJobResultDTO(res)
	}
	writeJSON(w, r, http.StatusOK, out)
}

// handleRunJob handles POST /api/v1/admin/jobs/{name}/run.
// The response waits for the job to finish.
func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	if s.deps.Jobs == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Scheduler not configured")
		return
	}

	name := r.PathValue("name")
	result, err := s.deps.Jobs.RunNow(r.Context(), name)
	switch {
	case errors.Is(err, scheduler.ErrJobNotFound):
		writeJSONError(w, http.StatusNotFound, "job_not_found", "Unknown job "+name)
	case errors.Is(err, scheduler.ErrJobRunning):
		writeJSONError(w, http.StatusConflict, "job_running", "Job "+name+" is already running")
	case result == nil:
		writeJSONError(w, http.StatusInternalServerError, "job_failed", err.Error())
	case !result.Success:
		logger.FromContext(r.Context()).Warn("manual job run failed", "job", name, "error", result.Error)
		writeJSON(w, r, http.StatusInternalServerError, toJobResultDTO(*result))
	default:
		writeJSON(w, r, http.StatusOK, toJobResultDTO(*result))
	}
}

// handleToggleJob handles POST /api/v1/admin/jobs/{name}/enable and /disable.
func (s *Server) handleToggleJob(enable bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Jobs == nil {
			writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Scheduler not configured")
			return
		}

		name := r.PathValue("name")
		toggle := s.deps.Jobs.DisableJob
		if enable {
			toggle = s.deps.Jobs.EnableJob
		}
		if err := toggle(name); err != nil {
			if errors.Is(err, scheduler.ErrJobNotFound) {
				writeJSONError(w, http.StatusNotFound, "job_not_found", "Unknown job "+name)
				return
			}
			writeJSONError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		writeJSON(w, r, http.StatusOK, map[string]any{"job": name, "enabled": enable})
	}
}

// handleStats handles GET /api/v1/admin/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]any{
		"uptime_seconds": int64(s.Uptime().Seconds()),
	}
	if s.deps.Stats != nil {
		stats["runtime"] = s.deps.Stats()
	}
	writeJSON(w, r, http.StatusOK, stats)
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
