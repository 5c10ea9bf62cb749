package activity

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	httperr "github.com/stride-lab/project-stride/internal/core/errors"
	"github.com/stride-lab/project-stride/internal/core/rank"
	"github.com/stride-lab/project-stride/internal/core/storage"
)

// SportRequest reports one completed activity unit.
type SportRequest struct {
	UserID         int64           `json:"user_id" binding:"required"`
	Category       int             `json:"category"`
	DistanceMeters decimal.Decimal `json:"distance_meters"`
	Calories       int             `json:"calories"`
	OccurredAt     *time.Time      `json:"occurred_at,omitempty"`
}

// RegisterRoutes registers the activity ingestion endpoint.
func (s *Service) RegisterRoutes(router gin.IRouter) {
	router.POST("/v1/activity/sport", s.HandleCompleteSport)
}

// HandleCompleteSport handles POST /v1/activity/sport.
func (s *Service) HandleCompleteSport(c *gin.Context) {
	var req SportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   "Invalid request body",
			Details:   err.Error(),
		})
		return
	}

	contribution := Contribution{
		UserID:   req.UserID,
		Category: rank.Category(req.Category),
		Distance: req.DistanceMeters,
		Calories: req.Calories,
	}
	if req.OccurredAt != nil {
		contribution.When = req.OccurredAt.UTC()
	}

	if err := s.Apply(c.Request.Context(), contribution); err != nil {
		if verr := contribution.Validate(); verr != nil {
			c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
				ErrorType: httperr.HttpValidationError,
				Message:   verr.Error(),
			})
			return
		}
		if errors.Is(err, storage.ErrContention) {
			// The contribution was applied zero times; the producer may retry.
			c.JSON(http.StatusServiceUnavailable, httperr.ErrorResponse{
				ErrorType: httperr.HttpUnavailableError,
				Message:   "Contribution not applied, retry later",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to apply contribution",
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}
