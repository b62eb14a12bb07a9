// Package mlrisk is the HTTP client for the risk-scoring engine. It only
// transports scores; the confidence-threshold policy lives in the keeper.
package mlrisk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/VeritasFi/aegis/internal/pkg/apperrors"
)

// PositionSnapshot is the leverage-health request payload. Field names match
// the engine's wire contract.
type PositionSnapshot struct {
	TotalCollateral     uint64  `json:"totalCollateral"`
	TotalBorrowed       uint64  `json:"totalBorrowed"`
	CurrentHealthFactor float64 `json:"currentHealthFactor"`
	AITValue            uint64  `json:"aitValue"`
}

// PoolSnapshot is the NAV-prediction request payload.
type PoolSnapshot struct {
	TotalFaceValue   uint64 `json:"totalFaceValue"`
	NumberOfInvoices uint64 `json:"numberOfInvoices"`
	WeightedMaturity uint64 `json:"weightedMaturity"`
	ExpectedYield    uint64 `json:"expectedYield"`
	DefaultRate      uint64 `json:"defaultRate"`
	RealizedYield    uint64 `json:"realizedYield"`
	TotalSupply      uint64 `json:"totalSupply"`
}

// InvestmentProfile is the KYC-risk request payload.
type InvestmentProfile struct {
	InvestmentAmount     uint64 `json:"investmentAmount"`
	Tier                 uint8  `json:"tier"`
	Jurisdiction         string `json:"jurisdiction"`
	TransactionFrequency int    `json:"transactionFrequency"`
	WalletAgeDays        int    `json:"walletAgeDays"`
	PreviousDefiExposure int    `json:"previousDefiExposure"`
}

type LeverageHealthResponse struct {
	CompositeRiskScore float64  `json:"composite_risk_score"`
	RiskLevel          string   `json:"risk_level"`
	ActionRequired     bool     `json:"action_required"`
	Recommendations    []string `json:"recommendations"`
	Timestamp          int64    `json:"timestamp"`
}

type NAVPredictionResponse struct {
	PredictedNAV           float64 `json:"predicted_nav"`
	Confidence             float64 `json:"confidence"`
	ExpectedCollectionRate float64 `json:"expected_collection_rate"`
	RiskAdjustedYield      float64 `json:"risk_adjusted_yield"`
	Timestamp              int64   `json:"timestamp"`
}

type KYCRiskResponse struct {
	KYCRiskScore         float64  `json:"kyc_risk_score"`
	RiskClassification   string   `json:"risk_classification"`
	VerificationRequired bool     `json:"verification_required"`
	ComplianceFlags      []string `json:"compliance_flags"`
	Timestamp            int64    `json:"timestamp"`
}

// Recommendation strings the engine emits for leverage health.
const (
	RecommendEmergencyDeleverage = "EMERGENCY_DELEVERAGE"
	RecommendReduceLeverage      = "REDUCE_LEVERAGE"
	RecommendPauseNewPositions   = "PAUSE_NEW_POSITIONS"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) LeverageHealth(ctx context.Context, snapshot PositionSnapshot) (*LeverageHealthResponse, error) {
	var out LeverageHealthResponse
	if err := c.post(ctx, "/api/v1/leverage-health", snapshot, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) NAVPrediction(ctx context.Context, snapshot PoolSnapshot) (*NAVPredictionResponse, error) {
	var out NAVPredictionResponse
	if err := c.post(ctx, "/api/v1/invoice-nav-prediction", snapshot, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) KYCRisk(ctx context.Context, profile InvestmentProfile) (*KYCRiskResponse, error) {
	var out KYCRiskResponse
	if err := c.post(ctx, "/api/v1/kyc-risk-assessment", profile, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health pings the engine's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.New(apperrors.ErrExternalProtocol, "ml engine unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apperrors.New(apperrors.ErrExternalProtocol, fmt.Sprintf("ml engine health returned status %d", resp.StatusCode), nil)
	}
	return nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.New(apperrors.ErrExternalProtocol, "ml engine call failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apperrors.New(apperrors.ErrExternalProtocol, fmt.Sprintf("ml engine returned status %d", resp.StatusCode), nil)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// MicroUnits converts an engine float price to micro-units without binary
// float drift (1.05 -> 1_050_000 exactly).
func MicroUnits(v float64) uint64 {
	if v <= 0 {
		return 0
	}
	return uint64(decimal.NewFromFloat(v).Mul(decimal.NewFromInt(1_000_000)).Round(0).IntPart())
}

// Float converts micro-units back to the engine's float convention.
func Float(micro uint64) float64 {
	f, _ := decimal.New(int64(micro), -6).Float64()
	return f
}
