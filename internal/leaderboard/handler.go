package leaderboard

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	httperr "github.com/stride-lab/project-stride/internal/core/errors"
	"github.com/stride-lab/project-stride/internal/core/period"
	"github.com/stride-lab/project-stride/internal/core/rank"
	"github.com/stride-lab/project-stride/internal/core/storage"
)

const (
	defaultTopN = 100
	maxTopN     = 100
)

// LeaderboardRequest asks for a board's top list plus, optionally, the
// caller's own entry.
type LeaderboardRequest struct {
	PeriodKind int   `json:"period_kind" binding:"required"`
	Category   int   `json:"category"`
	Top        int   `json:"top"`
	UserID     int64 `json:"user_id"`
}

// LeaderboardResponse is the board view at the current period.
type LeaderboardResponse struct {
	PeriodKind int          `json:"period_kind"`
	PeriodID   int          `json:"period_id"`
	Category   int          `json:"category"`
	Top        []rank.Entry `json:"top"`
	Me         *rank.Entry  `json:"me,omitempty"`
}

// RegisterRoutes registers the leaderboard query endpoint.
func (r *Resolver) RegisterRoutes(router gin.IRouter) {
	router.POST("/v1/rank/leaderboard", r.HandleLeaderboard)
}

// HandleLeaderboard handles POST /v1/rank/leaderboard.
func (r *Resolver) HandleLeaderboard(c *gin.Context) {
	var req LeaderboardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   "Invalid request body",
			Details:   err.Error(),
		})
		return
	}

	kind := period.Kind(req.PeriodKind)
	category := rank.Category(req.Category)
	if !kind.Valid() || !category.Valid() {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpValidationError,
			Message:   "Unknown period kind or category",
		})
		return
	}

	topN := req.Top
	if topN <= 0 {
		topN = defaultTopN
	}
	if topN > maxTopN {
		topN = maxTopN
	}

	periodID, err := period.PeriodFor(r.nowFn(), kind)
	if err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpValidationError,
			Message:   err.Error(),
		})
		return
	}
	scope := rank.Scope{Kind: kind, PeriodID: periodID, Category: category}

	top, err := r.TopN(c.Request.Context(), scope, topN)
	if err != nil {
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to query leaderboard",
		})
		return
	}
	if top == nil {
		top = []rank.Entry{}
	}

	resp := LeaderboardResponse{
		PeriodKind: int(kind),
		PeriodID:   periodID,
		Category:   int(category),
		Top:        top,
	}

	if req.UserID > 0 {
		me, err := r.RankOf(c.Request.Context(), rank.Key{Scope: scope, UserID: req.UserID})
		switch {
		case err == nil:
			resp.Me = &me
		case errors.Is(err, storage.ErrNotFound):
			// No activity this period; leave Me empty.
		default:
			c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
				ErrorType: httperr.HttpInternalError,
				Message:   "Failed to resolve rank",
			})
			return
		}
	}

	c.JSON(http.StatusOK, resp)
}
