package handler

import (
	"net/http"

	apperrors "github.com/sekou/sekou/pkg/errors"
	"github.com/sekou/sekou/pkg/stats"
)

// maxReportDays 单次统计的最大天数
const maxReportDays = 92

// Utilization 负荷统计
// GET /api/v1/stats/utilization?from=2025-03-01&to=2025-03-31[&format=text]
func (h *Handler) Utilization(w http.ResponseWriter, r *http.Request) {
	_, t, err := scope(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	q := r.URL.Query()

	from, err := h.deps.View.ParseDate(q.Get("from"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	to, err := h.deps.View.ParseDate(q.Get("to"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if to.Before(from) {
		respondError(w, r, apperrors.InvalidInput("to", "结束日期早于开始日期"))
		return
	}
	if to.Sub(from).Hours()/24 >= maxReportDays {
		respondError(w, r, apperrors.InvalidInput("to", "统计范围不能超过 92 天"))
		return
	}

	events, err := h.eventsBetween(r.Context(), t.Code, from, to)
	if err != nil {
		respondError(w, r, err)
		return
	}
	caps, err := h.deps.Capacities.Map(r.Context(), t.Code)
	if err != nil {
		respondError(w, r, err)
		return
	}
	workers, err := h.deps.Workers.List(r.Context(), t.Code)
	if err != nil {
		respondError(w, r, err)
		return
	}

	report := h.analyzer.Analyze(events, caps, workers, from, to)
	if h.deps.Metrics != nil && report.Balance != nil {
		h.deps.Metrics.SetUtilization(t.Code, report.OverallRate/100, report.Balance.Gini)
	}

	if q.Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(stats.GenerateReport(report)))
		return
	}
	respondJSON(w, http.StatusOK, report)
}
