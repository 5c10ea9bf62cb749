package settlement

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	httperr "github.com/stride-lab/project-stride/internal/core/errors"
	"github.com/stride-lab/project-stride/internal/core/rank"
	"github.com/stride-lab/project-stride/internal/tiers"
)

// ClaimRequest identifies the participant and category to settle.
type ClaimRequest struct {
	UserID   int64 `json:"user_id" binding:"required"`
	Category int   `json:"category"`
}

// ClaimResponse reports the claim outcome.
type ClaimResponse struct {
	Granted   bool               `json:"granted"`
	Reason    string             `json:"reason,omitempty"`
	Rank      int                `json:"rank,omitempty"`
	Rewards   []tiers.RewardItem `json:"rewards,omitempty"`
	GrantRef  string             `json:"grant_ref,omitempty"`
	Delivered bool               `json:"delivered"`
}

// RegisterRoutes registers the claim endpoints.
func (s *Service) RegisterRoutes(router gin.IRouter) {
	router.POST("/v1/rank/claim-week", s.HandleClaimWeek)
	router.POST("/v1/rank/claim-season", s.HandleClaimSeason)
}

// HandleClaimWeek handles POST /v1/rank/claim-week.
func (s *Service) HandleClaimWeek(c *gin.Context) {
	s.handleClaim(c, s.ClaimWeekly)
}

// HandleClaimSeason handles POST /v1/rank/claim-season.
func (s *Service) HandleClaimSeason(c *gin.Context) {
	s.handleClaim(c, s.ClaimSeason)
}

type claimFn func(ctx context.Context, userID int64, category rank.Category) (Result, error)

func (s *Service) handleClaim(c *gin.Context, claim claimFn) {
	var req ClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   "Invalid request body",
			Details:   err.Error(),
		})
		return
	}

	category := rank.Category(req.Category)
	if !category.Valid() {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpValidationError,
			Message:   "Unknown category",
		})
		return
	}

	result, err := claim(c.Request.Context(), req.UserID, category)
	if err != nil {
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to process claim",
		})
		return
	}

	c.JSON(http.StatusOK, ClaimResponse{
		Granted:   result.Granted,
		Reason:    result.Reason,
		Rank:      result.Rank,
		Rewards:   result.Rewards,
		GrantRef:  result.GrantRef,
		Delivered: result.Delivered,
	})
}
