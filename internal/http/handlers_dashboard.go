package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleSummary serves GET /api/summary?year=&month=.
func (s *Server) handleSummary(c *gin.Context) {
	p, err := parsePeriod(c, s.now(), s.svc.Ledger.Location())
	if err != nil {
		writeError(c, err)
		return
	}
	sum, err := s.svc.Dashboard.Summary(c.Request.Context(), p)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSummaryResponse(sum))
}

func (s *Server) handleInsights(c *gin.Context) {
	report, err := s.svc.Dashboard.Insights(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newInsightsResponse(report))
}

func (s *Server) handleYearly(c *gin.Context) {
	year, err := parseYear(c, s.now(), s.svc.Ledger.Location())
	if err != nil {
		writeError(c, err)
		return
	}
	y, err := s.svc.Dashboard.Yearly(c.Request.Context(), year)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newYearlyResponse(y))
}
