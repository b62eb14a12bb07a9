package mlrisk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeverageHealthRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/leverage-health", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var snapshot PositionSnapshot
		require.NoError(t, json.NewDecoder(r.Body).Decode(&snapshot))
		assert.Equal(t, uint64(1_000_000), snapshot.TotalCollateral)

		json.NewEncoder(w).Encode(LeverageHealthResponse{
			CompositeRiskScore: 0.82,
			RiskLevel:          "CRITICAL",
			ActionRequired:     true,
			Recommendations:    []string{RecommendEmergencyDeleverage},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	resp, err := client.LeverageHealth(context.Background(), PositionSnapshot{
		TotalCollateral:     1_000_000,
		TotalBorrowed:       600_000,
		CurrentHealthFactor: 1.1,
		AITValue:            650_000,
	})
	require.NoError(t, err)
	assert.Equal(t, "CRITICAL", resp.RiskLevel)
	assert.Equal(t, []string{RecommendEmergencyDeleverage}, resp.Recommendations)
}

func TestNAVPrediction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(NAVPredictionResponse{PredictedNAV: 1.05, Confidence: 0.91})
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL).NAVPrediction(context.Background(), PoolSnapshot{TotalFaceValue: 5_000_000})
	require.NoError(t, err)
	assert.InDelta(t, 1.05, resp.PredictedNAV, 1e-9)
	assert.InDelta(t, 0.91, resp.Confidence, 1e-9)
}

func TestNon200IsExternalError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.KYCRisk(context.Background(), InvestmentProfile{Tier: 2, Jurisdiction: "US"})
	assert.Error(t, err)

	assert.Error(t, client.Health(context.Background()))
}

func TestHealthOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	assert.NoError(t, NewClient(srv.URL).Health(context.Background()))
}

func TestMicroUnits(t *testing.T) {
	assert.Equal(t, uint64(1_050_000), MicroUnits(1.05))
	assert.Equal(t, uint64(1_000_000), MicroUnits(1.0))
	assert.Equal(t, uint64(0), MicroUnits(-2))
	assert.InDelta(t, 1.05, Float(1_050_000), 1e-9)
}
