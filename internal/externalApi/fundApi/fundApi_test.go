package fundApi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/KotFed0t/fund_tracker_bot/config"
	"github.com/KotFed0t/fund_tracker_bot/internal/externalApi"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApi(t *testing.T, handler http.HandlerFunc) *FundApi {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{API: config.API{
		Timeout: time.Second,
		FundApi: config.FundApi{Url: srv.URL},
	}}
	return New(cfg)
}

func TestSearch(t *testing.T) {
	api := newTestApi(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/funds/search", r.URL.Path)
		assert.Equal(t, "110011", r.URL.Query().Get("keyword"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"code":"110011","name":"易方达中小盘","full_name":"易方达中小盘混合","type":"混合型"}]`))
	})

	res, err := api.Search(context.Background(), "110011", 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "110011", res[0].Code)
	assert.Equal(t, "易方达中小盘", res[0].Name)
	assert.Equal(t, "混合型", res[0].Type)
}

func TestSearchEmpty(t *testing.T) {
	api := newTestApi(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	res, err := api.Search(context.Background(), "999999", 1)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestDetail(t *testing.T) {
	api := newTestApi(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/funds/000001/detail", r.URL.Path)
		_, _ = w.Write([]byte(`{"code":"000001","name":"华夏成长","rating":"4","risk_level":"中风险"}`))
	})

	res, err := api.Detail(context.Background(), "000001")
	require.NoError(t, err)
	assert.Equal(t, "华夏成长", res.Name)
	assert.Equal(t, "4", res.Rating)
	assert.Equal(t, "中风险", res.RiskLevel)
}

func TestEstimateNullFields(t *testing.T) {
	api := newTestApi(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/funds/000001/estimate", r.URL.Path)
		_, _ = w.Write([]byte(`{"code":"000001","estimate_value":1.2345,"yesterday_nav":null}`))
	})

	res, err := api.Estimate(context.Background(), "000001")
	require.NoError(t, err)
	assert.True(t, res.EstimateValue.Equal(decimal.RequireFromString("1.2345")))
	assert.True(t, res.YesterdayNav.IsZero())
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{name: "not found", status: http.StatusNotFound, want: externalApi.ErrNotFound},
		{name: "unauthorized", status: http.StatusUnauthorized, want: externalApi.ErrUnauthorized},
		{name: "bad request", status: http.StatusBadRequest, want: externalApi.ErrRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestApi(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"detail":"nope"}`))
			})

			_, err := api.Detail(context.Background(), "000001")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestServerError(t *testing.T) {
	api := newTestApi(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := api.Estimate(context.Background(), "000001")
	require.Error(t, err)
	assert.NotErrorIs(t, err, externalApi.ErrRejected)
}

func TestMalformedBody(t *testing.T) {
	api := newTestApi(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":`))
	})

	_, err := api.Detail(context.Background(), "000001")
	assert.Error(t, err)
}
