package http

import (
	"net/http"

	"spendly/internal/charts"
	applog "spendly/internal/log"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}
	st, err := s.deps.Reports.Stats(r.Context(), userID)
	if err != nil {
		writeError(w, r, applog.OpStats, err)
		return
	}
	NewResponse().JSON(toStatsDTO(st)).Write(w)
}

// handleTrendChart renders the monthly trend; 204 when there is none.
func (s *Server) handleTrendChart(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}
	trend, err := s.deps.Reports.MonthlyTrend(r.Context(), userID)
	if err != nil {
		writeError(w, r, applog.OpStats, err)
		return
	}
	png, err := charts.MonthlyTrendPNG(trend)
	writePNG(w, r, png, err)
}

func (s *Server) handleCategoryChart(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}
	st, err := s.deps.Reports.Stats(r.Context(), userID)
	if err != nil {
		writeError(w, r, applog.OpStats, err)
		return
	}
	png, err := charts.CategoryPiePNG(st.CategoryDistribution)
	writePNG(w, r, png, err)
}

func writePNG(w http.ResponseWriter, r *http.Request, png []byte, err error) {
	switch {
	case err != nil:
		writeError(w, r, applog.OpStats, err)
	case png == nil:
		w.WriteHeader(http.StatusNoContent)
	default:
		NewResponse().Image(png, "image/png").Write(w)
	}
}
