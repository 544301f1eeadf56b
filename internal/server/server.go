// internal/server/server.go
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/user/taskping/internal/engine"
	"github.com/user/taskping/internal/types"
)

const timeFormat = "2006-01-02T15:04:05Z07:00"

// Server is a lightweight HTTP handler for the debug API. It exposes the
// engine's live session state and tuning; nothing here is required for the
// watch pipeline itself.
type Server struct {
	engine *engine.Engine
	mux    *http.ServeMux
}

// New creates a debug API server over the given engine.
func New(eng *engine.Engine) *Server {
	s := &Server{
		engine: eng,
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/sessions", s.handleSessions)
	s.mux.HandleFunc("GET /api/sessions/", s.handleSession)
	s.mux.HandleFunc("POST /api/flush", s.handleFlush)
	s.mux.HandleFunc("GET /api/config", s.handleGetConfig)
	s.mux.HandleFunc("PUT /api/config", s.handlePutConfig)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type sessionResponse struct {
	SessionID      string   `json:"session_id"`
	Project        string   `json:"project"`
	StartedAt      string   `json:"started_at"`
	LastActivityAt string   `json:"last_activity_at"`
	Summary        string   `json:"summary,omitempty"`
	TotalCost      float64  `json:"total_cost"`
	EventCount     int      `json:"event_count"`
	UserTurns      int      `json:"user_turns"`
	AssistantTurns int      `json:"assistant_turns"`
	LastEventUUID  string   `json:"last_event_uuid,omitempty"`
	TaskInProgress bool     `json:"task_in_progress"`
	TaskStartedAt  string   `json:"task_started_at,omitempty"`
	TaskCost       float64  `json:"task_cost"`
	TaskMessages   int      `json:"task_messages"`
	ArmedTimers    []string `json:"armed_timers"`
	Idle           bool     `json:"idle"`
}

func (s *Server) snapshot(info engine.SessionInfo) sessionResponse {
	resp := sessionResponse{
		SessionID:      string(info.ID),
		Project:        info.Project,
		StartedAt:      info.StartedAt.Format(timeFormat),
		LastActivityAt: info.LastActivityAt.Format(timeFormat),
		Summary:        info.Summary,
		TotalCost:      info.TotalCost,
		EventCount:     info.EventCount,
		UserTurns:      info.UserTurns,
		AssistantTurns: info.AssistantTurns,
		LastEventUUID:  info.LastEventUUID,
		TaskInProgress: info.TaskInProgress,
		TaskCost:       info.TaskCost,
		TaskMessages:   info.TaskMessages,
		ArmedTimers:    info.ArmedTimers,
		Idle:           s.engine.IsIdle(info.ID),
	}
	if !info.TaskStartedAt.IsZero() {
		resp.TaskStartedAt = info.TaskStartedAt.Format(timeFormat)
	}
	if resp.ArmedTimers == nil {
		resp.ArmedTimers = []string{}
	}
	return resp
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	ids := s.engine.ActiveSessions()
	result := make([]sessionResponse, 0, len(ids))
	for _, id := range ids {
		info, ok := s.engine.SessionInfo(id)
		if !ok {
			// Completed between the list and the lookup.
			continue
		}
		result = append(result, s.snapshot(info))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].LastActivityAt > result[j].LastActivityAt
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	if id == "" {
		http.Error(w, `{"error":"session id required"}`, http.StatusBadRequest)
		return
	}

	info, ok := s.engine.SessionInfo(types.SessionID(id))
	if !ok {
		http.Error(w, `{"error":"session not found"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.snapshot(info))
}

func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	flushed := len(s.engine.ActiveSessions())
	s.engine.CompleteAll()
	slog.Info("flush requested over debug API", "sessions", flushed)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"flushed": flushed})
}

type configResponse struct {
	InactivityTimeoutMS            int64   `json:"inactivity_timeout_ms"`
	SummaryMessageTimeoutMS        int64   `json:"summary_message_timeout_ms"`
	TaskCompletionTimeoutMS        int64   `json:"task_completion_timeout_ms"`
	DelayedTaskCompletionTimeoutMS int64   `json:"delayed_task_completion_timeout_ms"`
	MinTaskCost                    float64 `json:"min_task_cost"`
	MinTaskMessages                int     `json:"min_task_messages"`
	EnableProgress                 bool    `json:"enable_progress"`
	ProgressCheckIntervalMS        int64   `json:"progress_check_interval_ms"`
	MinProgressCost                float64 `json:"min_progress_cost"`
	MinProgressDurationMS          int64   `json:"min_progress_duration_ms"`
}

func configView(cfg engine.Config) configResponse {
	return configResponse{
		InactivityTimeoutMS:            cfg.InactivityTimeout.Milliseconds(),
		SummaryMessageTimeoutMS:        cfg.SummaryMessageTimeout.Milliseconds(),
		TaskCompletionTimeoutMS:        cfg.TaskCompletionTimeout.Milliseconds(),
		DelayedTaskCompletionTimeoutMS: cfg.DelayedTaskCompletionTimeout.Milliseconds(),
		MinTaskCost:                    cfg.MinTaskCost,
		MinTaskMessages:                cfg.MinTaskMessages,
		EnableProgress:                 cfg.EnableProgress,
		ProgressCheckIntervalMS:        cfg.ProgressCheckInterval.Milliseconds(),
		MinProgressCost:                cfg.MinProgressCost,
		MinProgressDurationMS:          cfg.MinProgressDuration.Milliseconds(),
	}
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(configView(s.engine.Config()))
}

// configUpdateRequest is the JSON body for PUT /api/config. Absent fields
// keep their current value.
type configUpdateRequest struct {
	InactivityTimeoutMS            *int64   `json:"inactivity_timeout_ms"`
	SummaryMessageTimeoutMS        *int64   `json:"summary_message_timeout_ms"`
	TaskCompletionTimeoutMS        *int64   `json:"task_completion_timeout_ms"`
	DelayedTaskCompletionTimeoutMS *int64   `json:"delayed_task_completion_timeout_ms"`
	MinTaskCost                    *float64 `json:"min_task_cost"`
	MinTaskMessages                *int     `json:"min_task_messages"`
	EnableProgress                 *bool    `json:"enable_progress"`
	ProgressCheckIntervalMS        *int64   `json:"progress_check_interval_ms"`
	MinProgressCost                *float64 `json:"min_progress_cost"`
	MinProgressDurationMS          *int64   `json:"min_progress_duration_ms"`
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var req configUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	ms := func(v *int64) *time.Duration {
		if v == nil {
			return nil
		}
		d := time.Duration(*v) * time.Millisecond
		return &d
	}
	s.engine.UpdateConfig(engine.ConfigUpdate{
		InactivityTimeout:            ms(req.InactivityTimeoutMS),
		SummaryMessageTimeout:        ms(req.SummaryMessageTimeoutMS),
		TaskCompletionTimeout:        ms(req.TaskCompletionTimeoutMS),
		DelayedTaskCompletionTimeout: ms(req.DelayedTaskCompletionTimeoutMS),
		MinTaskCost:                  req.MinTaskCost,
		MinTaskMessages:              req.MinTaskMessages,
		EnableProgress:               req.EnableProgress,
		ProgressCheckInterval:        ms(req.ProgressCheckIntervalMS),
		MinProgressCost:              req.MinProgressCost,
		MinProgressDuration:          ms(req.MinProgressDurationMS),
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(configView(s.engine.Config()))
}
