package api

import (
	"errors"
	"net/http"

	"riskquant/internal/analysis"
	"riskquant/internal/history"
	"riskquant/internal/optimize"
	"riskquant/internal/risk"
	"riskquant/internal/visuals"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type optimiseRequest struct {
	Source        string    `json:"source"`
	SpendSteps    []float64 `json:"spendSteps" validate:"omitempty,min=2,max=64,dive,gte=0"`
	BudgetCap     *float64  `json:"budgetCap" validate:"omitempty,gte=0"`
	BenefitMetric string    `json:"benefitMetric" default:"p80CostReduction" validate:"oneof=p80CostReduction"`
}

type optimiseResponse struct {
	RequestID string          `json:"requestId"`
	Result    optimize.Result `json:"result"`
}

type contextRequest struct {
	Source     string       `json:"source" default:"default" validate:"max=128"`
	Risks      []risk.Draft `json:"risks" validate:"required,max=5000"`
	Iterations int          `json:"iterations" validate:"gte=0,lte=1000000"`
	Seed       *int64       `json:"seed"`
}

type contextResponse struct {
	RequestID  string           `json:"requestId"`
	Source     string           `json:"source"`
	Risks      int              `json:"risks"`
	NeutralP80 float64          `json:"neutralP80"`
	Rejections []risk.Rejection `json:"rejections,omitempty"`
}

type analysisRequest struct {
	Source     string       `json:"source" default:"default" validate:"max=128"`
	Risks      []risk.Draft `json:"risks" validate:"required,max=5000"`
	Iterations int          `json:"iterations" validate:"gte=0,lte=1000000"`
	Seed       *int64       `json:"seed"`
	DryRun     bool         `json:"dryRun"`
	Charts     bool         `json:"charts"`
}

type analysisResponse struct {
	RequestID string            `json:"requestId"`
	Report    analysis.Report   `json:"report"`
	Charts    map[string]string `json:"charts,omitempty"`
}

type historyResponse struct {
	RiskID    string             `json:"riskId"`
	Snapshots []history.Snapshot `json:"snapshots"`
}

type healthResponse struct {
	Status     string  `json:"status"`
	HasContext bool    `json:"hasContext"`
	NeutralP80 float64 `json:"neutralP80"`
}

// optimiseStatus maps optimiser errors onto HTTP statuses.
func optimiseStatus(err error) int {
	switch {
	case errors.Is(err, optimize.ErrMissingBaseline):
		return http.StatusConflict
	case errors.Is(err, optimize.ErrInvalidSpendSteps),
		errors.Is(err, optimize.ErrInvalidBudget),
		errors.Is(err, optimize.ErrUnsupportedMetric):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleOptimise(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()

	var req optimiseRequest
	if verrs := ReadAndValidateRequest(w, r, &req); verrs != nil {
		writeError(w, http.StatusBadRequest, requestID, "invalid optimisation request", verrs)
		return
	}

	s.optimise(w, requestID, req.Source, optimize.Request{
		SpendSteps:    req.SpendSteps,
		BudgetCap:     req.BudgetCap,
		BenefitMetric: req.BenefitMetric,
	})
}

func (s *Server) handleOptimiseStatus(w http.ResponseWriter, r *http.Request) {
	s.optimise(w, uuid.NewString(), r.URL.Query().Get("source"), optimize.Request{})
}

func (s *Server) optimise(w http.ResponseWriter, requestID, source string, req optimize.Request) {
	res, err := s.svc.Optimise(source, req)
	if err != nil {
		status := optimiseStatus(err)
		if status == http.StatusInternalServerError {
			log.Error().Err(err).Str("request_id", requestID).Msg("Optimisation failed")
		}
		writeError(w, status, requestID, err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, optimiseResponse{RequestID: requestID, Result: res})
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()

	var req contextRequest
	if verrs := ReadAndValidateRequest(w, r, &req); verrs != nil {
		writeError(w, http.StatusBadRequest, requestID, "invalid context request", verrs)
		return
	}

	sc, rejected, err := s.svc.Sync(r.Context(), req.Source, req.Risks, req.Iterations, req.Seed)
	if err != nil {
		log.Error().Err(err).Str("request_id", requestID).Msg("Context sync failed")
		writeError(w, http.StatusInternalServerError, requestID, err.Error(), nil)
		return
	}

	writeJSON(w, http.StatusOK, contextResponse{
		RequestID:  requestID,
		Source:     sc.Source,
		Risks:      len(sc.Risks),
		NeutralP80: sc.Neutral.P80Cost(),
		Rejections: rejected,
	})
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()

	var req analysisRequest
	if verrs := ReadAndValidateRequest(w, r, &req); verrs != nil {
		writeError(w, http.StatusBadRequest, requestID, "invalid analysis request", verrs)
		return
	}

	report, err := s.svc.Analyze(r.Context(), analysis.Request{
		Source:     req.Source,
		Risks:      req.Risks,
		Iterations: req.Iterations,
		Seed:       req.Seed,
		DryRun:     req.DryRun,
	})
	if err != nil {
		log.Error().Err(err).Str("request_id", requestID).Msg("Analysis failed")
		writeError(w, http.StatusInternalServerError, requestID, err.Error(), nil)
		return
	}

	resp := analysisResponse{RequestID: requestID, Report: report}
	if s.enableCharts || req.Charts {
		resp.Charts = s.charts(report)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) charts(report analysis.Report) map[string]string {
	snaps := s.svc.History().Get(visuals.TopRiskID(report))
	return visuals.GenerateReportCharts(report, snaps, s.criticalScore)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	riskID := chi.URLParam(r, "riskID")
	snaps := s.svc.History().Get(riskID)
	if len(snaps) == 0 {
		writeError(w, http.StatusNotFound, middlewareID(r), "no history for risk "+riskID, nil)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{RiskID: riskID, Snapshots: snaps})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	_, ok := s.svc.Contexts().Get("")
	writeJSON(w, http.StatusOK, healthResponse{
		Status:     "ok",
		HasContext: ok,
		NeutralP80: s.svc.Contexts().BaselineP80(""),
	})
}
