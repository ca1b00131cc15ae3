package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hmdamart/internal/geography"
	"hmdamart/internal/tiering"
	"hmdamart/pkg/testutil"
)

type stubReader struct {
	tracts []geography.TractPct
	err    error
}

func (s stubReader) TractMinority(context.Context, string, int) ([]geography.TractPct, error) {
	return s.tracts, s.err
}

func newRouter(t *testing.T, reader tiering.TractReader) chi.Router {
	t.Helper()
	svc, err := tiering.New(reader)
	require.NoError(t, err)
	r := chi.NewRouter()
	New(svc, nil).Register(r)
	return r
}

var region = []geography.TractPct{
	{Tract: "06037101110", Pct: 5},
	{Tract: "06037101122", Pct: 10},
	{Tract: "06037101210", Pct: 15},
	{Tract: "06037101220", Pct: 45},
	{Tract: "06037101300", Pct: 85},
}

func TestRegionTiersQuartile(t *testing.T) {
	router := newRouter(t, stubReader{tracts: region})

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/v1/regions/31084/tiers?year=2019"))
	require.Equal(t, http.StatusOK, rr.Code)

	resp := testutil.UnmarshalResponse[RegionResponse](t, rr)
	assert.Equal(t, "31084", resp.MSA)
	assert.Equal(t, "quartile", resp.Mode)
	require.NotNil(t, resp.Cuts)
	assert.Equal(t, CutsResponse{Q1: 10, Q2: 15, Q3: 45}, *resp.Cuts)
	require.Len(t, resp.Tracts, 5)
	assert.Equal(t, "high", resp.Tracts[4].Tier)
	assert.True(t, resp.Tracts[4].MajorityMinority)
	assert.False(t, resp.Tracts[3].MajorityMinority)
	assert.Equal(t, 5, resp.Counts["low"]+resp.Counts["moderate"]+resp.Counts["middle"]+resp.Counts["high"])
}

func TestRegionTiersFixed(t *testing.T) {
	router := newRouter(t, stubReader{tracts: region})

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/v1/regions/31084/tiers?year=2019&mode=FIXED"))
	require.Equal(t, http.StatusOK, rr.Code)

	resp := testutil.UnmarshalResponse[RegionResponse](t, rr)
	assert.Equal(t, "fixed", resp.Mode)
	assert.Nil(t, resp.Cuts)
	assert.Equal(t, map[string]int{"low": 3, "moderate": 1, "middle": 0, "high": 1}, resp.Counts)
}

func TestRegionTiersErrors(t *testing.T) {
	tests := []struct {
		name   string
		reader stubReader
		path   string
		status int
		code   string
	}{
		{
			name:   "missing year",
			reader: stubReader{tracts: region},
			path:   "/v1/regions/31084/tiers",
			status: http.StatusBadRequest,
			code:   "bad_request",
		},
		{
			name:   "unknown mode",
			reader: stubReader{tracts: region},
			path:   "/v1/regions/31084/tiers?year=2019&mode=decile",
			status: http.StatusBadRequest,
			code:   "bad_request",
		},
		{
			name:   "non-positive year",
			reader: stubReader{tracts: region},
			path:   "/v1/regions/31084/tiers?year=0",
			status: http.StatusBadRequest,
			code:   "bad_request",
		},
		{
			name:   "too few tracts",
			reader: stubReader{tracts: region[:3]},
			path:   "/v1/regions/31084/tiers?year=2019&mode=quartile",
			status: http.StatusUnprocessableEntity,
			code:   "insufficient_data",
		},
		{
			name:   "store failure",
			reader: stubReader{err: errors.New("connection reset")},
			path:   "/v1/regions/31084/tiers?year=2019",
			status: http.StatusInternalServerError,
			code:   "internal_error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(t, tt.reader)
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, tt.path))
			testutil.AssertStatusAndError(t, rr, tt.status, tt.code)
		})
	}
}

func TestFixedTier(t *testing.T) {
	router := newRouter(t, stubReader{})

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/v1/tiers/fixed?pct=50"))
	require.Equal(t, http.StatusOK, rr.Code)
	resp := testutil.UnmarshalResponse[TractResponse](t, rr)
	assert.Equal(t, TractResponse{MinorityPct: 50, Tier: "middle", MajorityMinority: true}, *resp)

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/v1/tiers/fixed?pct=120"))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
}
