package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	indicatordomain "github.com/chartschool/chartschool/internal/indicator/domain"
)

func (s *Server) ListIndicators(c *gin.Context) {
	var filter indicatordomain.ListRequest

	if raw := strings.TrimSpace(c.Query("tier")); raw != "" {
		tier := indicatordomain.Tier(raw)
		if !tier.Valid() {
			AbortWithError(c, newValidationError("tier", "invalid_tier", "invalid tier"))
			return
		}
		filter.Tier = &tier
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := indicatordomain.Status(raw)
		if status != indicatordomain.StatusActive && status != indicatordomain.StatusDisabled {
			AbortWithError(c, newValidationError("status", "invalid_status", "invalid status"))
			return
		}
		filter.Status = &status
	}

	indicators, err := s.indicatorSvc.List(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": indicators})
}
