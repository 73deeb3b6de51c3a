package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/chartschool/chartschool/internal/reconcile"
)

// RunReconciliation accepts a multipart cohort CSV and runs the job
// synchronously. Cohorts are operator-sized; a long poll beats a job queue
// here.
func (s *Server) RunReconciliation(c *gin.Context) {
	file, _, err := c.Request.FormFile("cohort")
	if err != nil {
		AbortWithError(c, newValidationError("cohort", "missing_cohort_file", "cohort csv file is required"))
		return
	}
	defer file.Close()

	cohort, err := reconcile.LoadCohortCSV(file)
	if err != nil {
		AbortWithError(c, newValidationError("cohort", "invalid_cohort_csv", err.Error()))
		return
	}
	if len(cohort) == 0 {
		AbortWithError(c, newValidationError("cohort", "empty_cohort", "cohort csv has no rows"))
		return
	}

	report, err := s.reconcileSvc.Run(c.Request.Context(), cohort)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": report})
}

func (s *Server) ListReconciliationReports(c *gin.Context) {
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
			return
		}
		limit = parsed
	}

	reports, err := s.reconcileSvc.ListReports(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": reports})
}

func (s *Server) GetReconciliationReport(c *gin.Context) {
	runID := strings.TrimSpace(c.Param("run_id"))
	if runID == "" {
		AbortWithError(c, newValidationError("run_id", "invalid_run_id", "invalid run id"))
		return
	}

	report, err := s.reconcileSvc.GetReport(c.Request.Context(), runID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": report})
}
