package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"riskquant/internal/analysis"
	"riskquant/internal/history"
	"riskquant/internal/metrics"
	"riskquant/internal/optimize"

	"github.com/google/go-cmp/cmp"
)

const register = `{
  "source": "site-a",
  "iterations": 2000,
  "seed": 42,
  "risks": [
    {"id": "R-1", "title": "Supplier insolvency", "probability": 0.3, "costImpact": 250000, "scheduleImpactDays": 20,
     "mitigation": {"effectiveness": 0.5, "confidence": 0.7}},
    {"id": "R-2", "title": "Permit delay", "probability": 0.6, "costImpact": 80000, "scheduleImpactDays": 5}
  ]
}`

func newTestServer(t *testing.T, opts ...Options) *Server {
	t.Helper()
	cfg := analysis.DefaultConfig()
	cfg.Simulation.Workers = 2
	rec := metrics.New()
	svc := analysis.NewService(cfg, history.NewStore(nil), optimize.NewContextHolder(), rec)
	return New(svc, append([]Options{WithMetrics(rec.Handler())}, opts...)...)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&out); err != nil {
		t.Fatalf("failed to decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestOptimise_MissingBaselineIsConflict(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/v1/mitigation/optimise", `{}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[errorResponse](t, rec)
	if resp.RequestID == "" {
		t.Error("error responses should carry a request id")
	}
}

func TestOptimise_AfterContextSync(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/v1/context", register)
	if rec.Code != http.StatusOK {
		t.Fatalf("context sync failed: %d %s", rec.Code, rec.Body.String())
	}
	ctxResp := decode[contextResponse](t, rec)
	if ctxResp.Source != "site-a" || ctxResp.Risks != 2 || ctxResp.NeutralP80 <= 0 {
		t.Fatalf("unexpected context response: %+v", ctxResp)
	}

	rec = do(t, srv, http.MethodPost, "/api/v1/mitigation/optimise",
		`{"source":"site-a","spendSteps":[0,10000,50000],"budgetCap":60000}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("optimise failed: %d %s", rec.Code, rec.Body.String())
	}
	resp := decode[optimiseResponse](t, rec)
	if resp.RequestID == "" {
		t.Error("missing request id")
	}
	if resp.Result.NeutralP80 != ctxResp.NeutralP80 {
		t.Errorf("baseline mismatch: %v vs %v", resp.Result.NeutralP80, ctxResp.NeutralP80)
	}
	if diff := cmp.Diff([]float64{0, 10000, 50000}, resp.Result.SpendSteps); diff != "" {
		t.Errorf("spend steps mismatch (-want +got):\n%s", diff)
	}
	if resp.Result.Plan == nil || resp.Result.Plan.AllocatedSpend > 60000 {
		t.Errorf("expected plan within budget, got %+v", resp.Result.Plan)
	}

	// GET uses the stored context with defaults.
	rec = do(t, srv, http.MethodGet, "/api/v1/mitigation/optimise?source=site-a", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status probe failed: %d %s", rec.Code, rec.Body.String())
	}
	status := decode[optimiseResponse](t, rec)
	if status.Result.Plan != nil {
		t.Error("GET without budget should not allocate")
	}
}

func TestOptimise_ValidationErrors(t *testing.T) {
	srv := newTestServer(t)
	do(t, srv, http.MethodPost, "/api/v1/context", register)

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"malformed json", `{"spendSteps":`, "ERR_UNKNOWN"},
		{"wrong type", `{"spendSteps":"cheap"}`, "ERR_TYPE"},
		{"single step", `{"spendSteps":[0]}`, "ERR_MIN"},
		{"negative step", `{"spendSteps":[0,-5]}`, "ERR_GTE"},
		{"negative budget", `{"budgetCap":-1}`, "ERR_GTE"},
		{"unknown metric", `{"benefitMetric":"p50"}`, "ERR_ONEOF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/v1/mitigation/optimise", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			resp := decode[errorResponse](t, rec)
			if len(resp.Details) == 0 {
				t.Fatalf("expected validation details, got %+v", resp)
			}
			if resp.Details[0].Code != tt.wantCode {
				t.Errorf("expected %s, got %s (%s)", tt.wantCode, resp.Details[0].Code, resp.Details[0].Message)
			}
		})
	}
}

func TestOptimise_DescendingStepsRejectedByEngine(t *testing.T) {
	srv := newTestServer(t)
	do(t, srv, http.MethodPost, "/api/v1/context", register)

	rec := do(t, srv, http.MethodPost, "/api/v1/mitigation/optimise", `{"spendSteps":[0,50000,10000]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAnalysis_ReturnsReportAndCharts(t *testing.T) {
	srv := newTestServer(t)

	body := strings.Replace(register, `"seed": 42,`, `"seed": 42, "charts": true,`, 1)
	rec := do(t, srv, http.MethodPost, "/api/v1/analysis", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("analysis failed: %d %s", rec.Code, rec.Body.String())
	}

	resp := decode[analysisResponse](t, rec)
	if len(resp.Report.Risks) != 2 {
		t.Fatalf("expected 2 analysed risks, got %d", len(resp.Report.Risks))
	}
	if resp.Report.Risks[0].Ranking.Rank != 1 {
		t.Errorf("risks should be in rank order, first has rank %d", resp.Report.Risks[0].Ranking.Rank)
	}
	for _, key := range []string{"costHistogram", "forecast", "scenarios", "history"} {
		if !strings.Contains(resp.Charts[key], "```mermaid") {
			t.Errorf("chart %q missing or not mermaid: %q", key, resp.Charts[key])
		}
	}

	// The analysis appended history for both risks.
	rec = do(t, srv, http.MethodGet, "/api/v1/history/R-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("history lookup failed: %d", rec.Code)
	}
	hist := decode[historyResponse](t, rec)
	if len(hist.Snapshots) != 1 || hist.Snapshots[0].Cycle != 1 {
		t.Errorf("unexpected history: %+v", hist)
	}
}

func TestAnalysis_HugeCostsStayFinite(t *testing.T) {
	srv := newTestServer(t)
	body := `{"seed": 1, "iterations": 500, "charts": true, "risks": [
		{"id": "H-1", "probability": 1, "costImpact": 1e308},
		{"id": "H-2", "probability": 1, "costImpact": 1e308, "consequence": 5}
	]}`

	for _, path := range []string{"/api/v1/context", "/api/v1/analysis"} {
		rec := do(t, srv, http.MethodPost, path, body)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", path, rec.Code, rec.Body.String())
		}
	}
}

func TestAnalysis_ChartsOffByDefault(t *testing.T) {
	srv := newTestServer(t)
	rec := do(t, srv, http.MethodPost, "/api/v1/analysis", register)
	if rec.Code != http.StatusOK {
		t.Fatalf("analysis failed: %d", rec.Code)
	}
	if resp := decode[analysisResponse](t, rec); resp.Charts != nil {
		t.Errorf("charts should be omitted, got %v", resp.Charts)
	}
}

func TestAnalysis_RequiresRisks(t *testing.T) {
	srv := newTestServer(t)
	rec := do(t, srv, http.MethodPost, "/api/v1/analysis", `{"source":"x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	resp := decode[errorResponse](t, rec)
	if resp.Details[0].Field != "risks" || resp.Details[0].Code != "ERR_REQUIRED" {
		t.Errorf("unexpected details: %+v", resp.Details)
	}
}

func TestHistory_UnknownRiskIsNotFound(t *testing.T) {
	srv := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/api/v1/history/R-404", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/healthz", "")
	health := decode[healthResponse](t, rec)
	if health.Status != "ok" || health.HasContext || health.NeutralP80 != 0 {
		t.Errorf("unexpected health before sync: %+v", health)
	}

	do(t, srv, http.MethodPost, "/api/v1/context", register)
	health = decode[healthResponse](t, do(t, srv, http.MethodGet, "/healthz", ""))
	if !health.HasContext || health.NeutralP80 <= 0 {
		t.Errorf("expected baseline after sync: %+v", health)
	}

	rec = do(t, srv, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "riskquant_") {
		t.Errorf("metrics endpoint missing riskquant series: %d", rec.Code)
	}
}
