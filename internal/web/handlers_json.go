package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/vitos/crypto_intel/internal/domain"
	"github.com/vitos/crypto_intel/internal/usecase"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrRecoveryExhausted), errors.Is(err, domain.ErrModelNotInitialized):
		return http.StatusConflict
	case errors.Is(err, domain.ErrDataUnavailable), errors.Is(err, domain.ErrSubsystemCritical):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) handleViews(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.dashboard.Views())
}

func (s *Server) handleCoins(w http.ResponseWriter, r *http.Request) {
	coins := s.dashboard.Coins()
	if coins == nil {
		coins = []domain.Coin{}
	}
	s.writeJSON(w, http.StatusOK, coins)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history := s.dashboard.History()
	if history == nil {
		history = []domain.HistoricalSnapshot{}
	}
	s.writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleInfluencers(w http.ResponseWriter, r *http.Request) {
	list, err := s.influencers.Influencers(r.Context())
	if err != nil {
		s.logger.Error("Failed to list influencers", zap.Error(err))
		s.writeError(w, statusFor(err), "Failed to list influencers")
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleSort(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Field string `json:"field"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	views, err := s.dashboard.SelectSort(req.Field)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	mode, err := usecase.ParseFilterMode(req.Mode)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	views, err := s.dashboard.SetFilter(mode)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleRetrain(w http.ResponseWriter, r *http.Request) {
	if err := s.dashboard.Retrain(r.Context()); err != nil {
		s.logger.Error("Failed to retrain models", zap.Error(err))
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, s.dashboard.Views().System)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	// the pass outlives this request
	result := s.scheduler.Trigger(context.WithoutCancel(r.Context()))
	s.writeJSON(w, http.StatusAccepted, map[string]string{"result": string(result)})
}

type statusResponse struct {
	Status      domain.StatusLine `json:"status"`
	NextRefresh int               `json:"next_refresh"`
	Running     bool              `json:"running"`
	LastUpdated time.Time         `json:"last_updated"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, statusResponse{
		Status:      s.dashboard.Status(),
		NextRefresh: s.scheduler.Remaining(),
		Running:     s.scheduler.Running(),
		LastUpdated: s.dashboard.LastUpdated(),
	})
}

type healthResponse struct {
	Report           *domain.HealthReport `json:"report"`
	RecoveryAttempts int                  `json:"recovery_attempts"`
	FuseTripped      bool                 `json:"fuse_tripped"`
	DownAPIs         []string             `json:"down_apis"`
}

func (s *Server) healthResponse(report domain.HealthReport, ok bool) healthResponse {
	resp := healthResponse{
		RecoveryAttempts: s.health.RecoveryAttempts(),
		FuseTripped:      s.health.Exhausted(),
		DownAPIs:         []string{},
	}
	if ok {
		resp.Report = &report
		if down := usecase.DownAPIs(report); len(down) > 0 {
			resp.DownAPIs = down
		}
	}
	return resp
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report, ok := s.health.LastReport()
	s.writeJSON(w, http.StatusOK, s.healthResponse(report, ok))
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	report := s.dashboard.RunDiagnostics(r.Context())
	s.writeJSON(w, http.StatusOK, s.healthResponse(report, true))
}

func (s *Server) handleResetRecovery(w http.ResponseWriter, r *http.Request) {
	s.health.ResetRecovery()
	report, ok := s.health.LastReport()
	s.writeJSON(w, http.StatusOK, s.healthResponse(report, ok))
}

func (s *Server) handleErrors(w http.ResponseWriter, r *http.Request) {
	limit := s.recentLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.health.ErrorLog(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to read error log", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "Failed to read error log")
		return
	}
	if entries == nil {
		entries = []*domain.ErrorLogEntry{}
	}
	s.writeJSON(w, http.StatusOK, entries)
}
