package settlement

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stride-lab/project-stride/internal/core/period"
	"github.com/stride-lab/project-stride/internal/core/rank"
	"github.com/stride-lab/project-stride/internal/tiers"
)

func newTestRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	svc.RegisterRoutes(r)
	return r
}

func postClaim(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestHandleClaimWeek(t *testing.T) {
	boards := newMemBoards()
	seedWeek(t, boards, map[int64]int64{7: 4000})
	svc := newTestService(boards, newMemLedger(), defaultTiers(), &memGranter{})
	router := newTestRouter(svc)

	w := postClaim(router, "/v1/rank/claim-week", `{"user_id":7,"category":0}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ClaimResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Granted)
	assert.True(t, resp.Delivered)
	assert.Equal(t, 1, resp.Rank)
	assert.Equal(t, []tiers.RewardItem{{ItemID: 101, Amount: 5}}, resp.Rewards)
	assert.NotEmpty(t, resp.GrantRef)

	// Same claim again over HTTP reports the settled state.
	w = postClaim(router, "/v1/rank/claim-week", `{"user_id":7,"category":0}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Granted)
	assert.Equal(t, ReasonAlreadySettled, resp.Reason)
}

func TestHandleClaimWeek_NoActivity(t *testing.T) {
	svc := newTestService(newMemBoards(), newMemLedger(), defaultTiers(), &memGranter{})
	router := newTestRouter(svc)

	w := postClaim(router, "/v1/rank/claim-week", `{"user_id":42,"category":1}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ClaimResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Granted)
	assert.Equal(t, ReasonNoActivity, resp.Reason)
}

func TestHandleClaimSeason(t *testing.T) {
	boards := newMemBoards()
	scope := rank.Scope{Kind: period.Seasonal, PeriodID: 2026, Category: rank.CategoryBicycle}
	key := rank.Key{Scope: scope, UserID: 3}
	require.NoError(t, boards.IncrementScore(context.Background(), key, decimal.NewFromInt(9000), claimNow))

	svc := newTestService(boards, newMemLedger(), defaultTiers(), &memGranter{})
	router := newTestRouter(svc)

	w := postClaim(router, "/v1/rank/claim-season", `{"user_id":3,"category":2}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ClaimResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Granted)
}

func TestHandleClaim_BadRequests(t *testing.T) {
	svc := newTestService(newMemBoards(), newMemLedger(), defaultTiers(), &memGranter{})
	router := newTestRouter(svc)

	for _, body := range []string{
		`{"category":0}`,
		`{"user_id":7,"category":9}`,
		`not json`,
	} {
		w := postClaim(router, "/v1/rank/claim-week", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body=%s", body)
	}
}
