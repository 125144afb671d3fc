package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultRunsLimit = 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.version})
}

// statusResponse summarizes artifact presence across the corpus.
type statusResponse struct {
	Root      string `json:"root"`
	Items     int    `json:"items"`
	Fetched   int    `json:"fetched"`
	Extracted int    `json:"extracted"`
	Filtered  int    `json:"filtered"`
	Positives int    `json:"positives"`
	Recipes   int    `json:"recipes"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.corpus.Status()
	if err != nil {
		s.logger.Error("status scan failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := statusResponse{Root: s.corpus.Root(), Items: len(statuses)}
	for _, st := range statuses {
		if st.HasPDF {
			resp.Fetched++
		}
		if st.HasText {
			resp.Extracted++
		}
		if st.HasVerdict {
			resp.Filtered++
		}
		if st.Verdict != nil && st.Verdict.ContainsRecipe {
			resp.Positives++
		}
		if st.HasRecipe {
			resp.Recipes++
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.reporter.Count(r.Context())
	if err != nil {
		s.logger.Error("report failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, rep)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.respondError(w, http.StatusServiceUnavailable, "run ledger disabled")
		return
	}
	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := s.store.RecentRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing runs failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.respondError(w, http.StatusServiceUnavailable, "run ledger disabled")
		return
	}
	id := chi.URLParam(r, "id")
	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "run not found")
		return
	}
	items, err := s.store.RunItems(r.Context(), id)
	if err != nil {
		s.logger.Error("listing run items failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"run": run, "items": items})
}

// handleFilterStart launches a filter run in the background. Only one run at
// a time; the run id is handed out before the run finishes so clients can
// poll /api/runs/{id}.
func (s *Server) handleFilterStart(w http.ResponseWriter, r *http.Request) {
	s.filterMu.Lock()
	if s.filterBusy {
		s.filterMu.Unlock()
		s.respondError(w, http.StatusConflict, "a filter run is already in progress")
		return
	}
	s.filterBusy = true
	s.filterMu.Unlock()

	runID := uuid.New().String()
	s.logger.Info("filter run launched", zap.String("run_id", runID))
	go func() {
		defer func() {
			s.filterMu.Lock()
			s.filterBusy = false
			s.filterMu.Unlock()
		}()
		stats, err := s.runner.RunAs(s.runCtx, runID)
		if err != nil {
			s.logger.Error("filter run failed", zap.String("run_id", runID), zap.Error(err))
			return
		}
		s.logger.Info("filter run finished",
			zap.String("run_id", runID),
			zap.Int("processed", stats.Processed),
			zap.Int("positives", stats.Positives))
	}()
	s.respondJSON(w, http.StatusAccepted, map[string]string{"run_id": runID, "status": "started"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
