package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chartschool/chartschool/internal/actorcontext"
	entitlementdomain "github.com/chartschool/chartschool/internal/entitlement/domain"
	indicatordomain "github.com/chartschool/chartschool/internal/indicator/domain"
)

type grantRequest struct {
	UserID      string `json:"user_id" binding:"required"`
	IndicatorID string `json:"indicator_id" binding:"required"`
	Duration    string `json:"duration" binding:"required"`
	Source      string `json:"source"`
}

func (s *Server) GrantEntitlement(c *gin.Context) {
	var req grantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	userID, err := parseSnowflakeID(req.UserID)
	if err != nil {
		AbortWithError(c, newValidationError("user_id", "invalid_user_id", "invalid user id"))
		return
	}
	indicatorID, err := parseSnowflakeID(req.IndicatorID)
	if err != nil {
		AbortWithError(c, newValidationError("indicator_id", "invalid_indicator_id", "invalid indicator id"))
		return
	}

	source := entitlementdomain.Source(req.Source)
	if req.Source == "" {
		source = entitlementdomain.SourceManual
	}

	ent, err := s.entitlementSvc.GrantOne(c.Request.Context(), entitlementdomain.GrantOneRequest{
		UserID:      userID,
		IndicatorID: indicatorID,
		Duration:    entitlementdomain.DurationCode(req.Duration),
		Source:      source,
		ActorID:     actorcontext.ActorFromContext(c.Request.Context()),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": ent})
}

type grantTierRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Tier     string `json:"tier" binding:"required"`
	Duration string `json:"duration" binding:"required"`
	Source   string `json:"source"`
}

func (s *Server) GrantTierEntitlements(c *gin.Context) {
	var req grantTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	userID, err := parseSnowflakeID(req.UserID)
	if err != nil {
		AbortWithError(c, newValidationError("user_id", "invalid_user_id", "invalid user id"))
		return
	}

	source := entitlementdomain.Source(req.Source)
	if req.Source == "" {
		source = entitlementdomain.SourceManual
	}

	resp, err := s.entitlementSvc.GrantTier(c.Request.Context(), entitlementdomain.GrantTierRequest{
		UserID:   userID,
		Tier:     indicatordomain.Tier(req.Tier),
		Duration: entitlementdomain.DurationCode(req.Duration),
		Source:   source,
		ActorID:  actorcontext.ActorFromContext(c.Request.Context()),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Outcomes})
}

type revokeRequest struct {
	UserID      string `json:"user_id" binding:"required"`
	IndicatorID string `json:"indicator_id" binding:"required"`
}

func (s *Server) RevokeEntitlement(c *gin.Context) {
	var req revokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	userID, err := parseSnowflakeID(req.UserID)
	if err != nil {
		AbortWithError(c, newValidationError("user_id", "invalid_user_id", "invalid user id"))
		return
	}
	indicatorID, err := parseSnowflakeID(req.IndicatorID)
	if err != nil {
		AbortWithError(c, newValidationError("indicator_id", "invalid_indicator_id", "invalid indicator id"))
		return
	}

	ent, err := s.entitlementSvc.RevokeOne(c.Request.Context(), entitlementdomain.RevokeOneRequest{
		UserID:      userID,
		IndicatorID: indicatorID,
		ActorID:     actorcontext.ActorFromContext(c.Request.Context()),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": ent})
}

type revokeTierRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Tier   string `json:"tier" binding:"required"`
}

func (s *Server) RevokeTierEntitlements(c *gin.Context) {
	var req revokeTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	userID, err := parseSnowflakeID(req.UserID)
	if err != nil {
		AbortWithError(c, newValidationError("user_id", "invalid_user_id", "invalid user id"))
		return
	}

	resp, err := s.entitlementSvc.RevokeTier(c.Request.Context(), entitlementdomain.RevokeTierRequest{
		UserID:  userID,
		Tier:    indicatordomain.Tier(req.Tier),
		ActorID: actorcontext.ActorFromContext(c.Request.Context()),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Outcomes})
}

type entitlementView struct {
	entitlementdomain.Entitlement
	// CurrentlyActive folds the read-side expiry interpretation into the
	// response so clients never re-implement it.
	CurrentlyActive  bool `json:"currently_active"`
	LogicallyExpired bool `json:"logically_expired"`
}

func (s *Server) ListUserEntitlements(c *gin.Context) {
	userID, err := parseSnowflakeID(c.Param("user_id"))
	if err != nil {
		AbortWithError(c, newValidationError("user_id", "invalid_user_id", "invalid user id"))
		return
	}

	ents, err := s.entitlementSvc.ListByUser(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	now := s.clock.Now()
	views := make([]entitlementView, 0, len(ents))
	for _, ent := range ents {
		views = append(views, entitlementView{
			Entitlement:      ent,
			CurrentlyActive:  ent.CurrentlyActive(now),
			LogicallyExpired: ent.IsLogicallyExpired(now),
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": views})
}
