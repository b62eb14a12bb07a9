package leverage

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VeritasFi/aegis/internal/ledger"
	"github.com/VeritasFi/aegis/internal/ledger/synthetic"
	"github.com/VeritasFi/aegis/internal/lending"
	"github.com/VeritasFi/aegis/internal/pkg/apperrors"
)

var strategySelf = common.HexToAddress("0x00000000000000000000000000000000000000d1")

// assetAdapter joins the synthetic ledger reads with its issuer capability,
// the same shape the service wiring uses.
type assetAdapter struct {
	l      *synthetic.Ledger
	issuer synthetic.Issuer
}

func (a assetAdapter) NAVPerToken(poolID string) (uint64, error) {
	return a.l.NAVPerToken(poolID)
}

func (a assetAdapter) Mint(poolID string, to common.Address, amount uint64) error {
	return a.issuer.Mint(poolID, to, amount)
}

func (a assetAdapter) Burn(poolID string, from common.Address, amount uint64) error {
	return a.issuer.Burn(poolID, from, amount)
}

type rig struct {
	strategy *Strategy
	vault    Vault
	keeper   Keeper
	market   *lending.Memory
	assets   *synthetic.Ledger
	oracle   synthetic.Oracle
}

func newRig(t *testing.T) *rig {
	t.Helper()

	assets, issuer, oracle, admin := synthetic.New(ledger.NopSink{})
	_, err := issuer.InitializePool("pool-1", 1_000_000*ledger.Scale, 100, 90, 800)
	require.NoError(t, err)
	require.NoError(t, admin.SetWhitelist("pool-1", strategySelf, true))

	// collateral marks at 1.0 with an 80% liquidation threshold
	market := lending.NewMemory("mETH", ledger.Scale, 8_000)

	cfg := Config{
		CollateralAsset: "mETH",
		BorrowAsset:     "USDC",
		PoolID:          "pool-1",
		TargetLTVBps:    6_500,
		MaxLTVBps:       7_500,
		MinHealthFactor: 1_200_000,
	}
	strategy, vault, keeper, err := New("strat-1", cfg, strategySelf, market, assetAdapter{l: assets, issuer: issuer}, ledger.NopSink{})
	require.NoError(t, err)

	return &rig{strategy: strategy, vault: vault, keeper: keeper, market: market, assets: assets, oracle: oracle}
}

func TestConfigValidation(t *testing.T) {
	_, _, _, err := New("bad", Config{TargetLTVBps: 8_000, MaxLTVBps: 7_000}, strategySelf, nil, nil, ledger.NopSink{})
	assert.Error(t, err)

	_, _, _, err = New("bad", Config{TargetLTVBps: 0, MaxLTVBps: 7_000}, strategySelf, nil, nil, ledger.NopSink{})
	assert.Error(t, err)
}

func TestLTVCeilingBoundary(t *testing.T) {
	ctx := context.Background()
	r := newRig(t)

	require.NoError(t, r.vault.SupplyCollateral(ctx, 10_000*ledger.Scale))

	// borrowing with no debt yet, exactly at the 65% target, must pass
	require.NoError(t, r.keeper.BorrowStablecoin(ctx, 6_500*ledger.Scale))

	m, err := r.strategy.Metrics()
	require.NoError(t, err)
	assert.Equal(t, uint64(6_500), m.LTVBps)

	// one more basis point of debt (collateral/10000) must fail
	err = r.keeper.BorrowStablecoin(ctx, ledger.Scale)
	assert.ErrorIs(t, err, ErrExceedsTargetLTV)

	m2, _ := r.strategy.Metrics()
	assert.Equal(t, m.TotalBorrowed, m2.TotalBorrowed, "rejected borrow must not mutate state")
}

func TestLTVCheckTruncates(t *testing.T) {
	ctx := context.Background()
	r := newRig(t)

	require.NoError(t, r.vault.SupplyCollateral(ctx, 10_000*ledger.Scale))

	// 6,500.999999 USDC against 10,000 collateral truncates to 6500 bps
	require.NoError(t, r.keeper.BorrowStablecoin(ctx, 6_500*ledger.Scale+999_999))
}

func TestBorrowWithoutCollateral(t *testing.T) {
	r := newRig(t)
	err := r.keeper.BorrowStablecoin(context.Background(), 1)
	assert.ErrorIs(t, err, ErrExceedsTargetLTV)
}

func TestBorrowPause(t *testing.T) {
	ctx := context.Background()
	r := newRig(t)
	require.NoError(t, r.vault.SupplyCollateral(ctx, 10_000*ledger.Scale))

	r.keeper.SetPaused(true)
	assert.ErrorIs(t, r.keeper.BorrowStablecoin(ctx, ledger.Scale), ErrBorrowPaused)

	r.keeper.SetPaused(false)
	assert.NoError(t, r.keeper.BorrowStablecoin(ctx, ledger.Scale))
}

func TestDeployPricesAtNAV(t *testing.T) {
	ctx := context.Background()
	r := newRig(t)
	require.NoError(t, r.vault.SupplyCollateral(ctx, 10_000*ledger.Scale))
	require.NoError(t, r.keeper.BorrowStablecoin(ctx, 6_500*ledger.Scale))

	assert.ErrorIs(t, r.keeper.DeployToRWA(ctx, 7_000*ledger.Scale), ErrInsufficientCash)

	require.NoError(t, r.keeper.DeployToRWA(ctx, 1_000*ledger.Scale))
	m, err := r.strategy.Metrics()
	require.NoError(t, err)
	assert.Equal(t, 1_000*ledger.Scale, m.AITHoldings) // NAV 1.00 -> 1:1
	assert.Equal(t, 5_500*ledger.Scale, m.CashBalance)
	assert.Equal(t, 1_000*ledger.Scale, r.assets.BalanceOf("pool-1", strategySelf))

	// NAV 1.25: 1,000 USDC buys 800 tokens exactly
	require.NoError(t, r.oracle.UpdateNAV("pool-1", 1_250_000))
	require.NoError(t, r.keeper.DeployToRWA(ctx, 1_000*ledger.Scale))
	m, _ = r.strategy.Metrics()
	assert.Equal(t, 1_800*ledger.Scale, m.AITHoldings)
}

func TestHarvestYield(t *testing.T) {
	ctx := context.Background()
	r := newRig(t)
	require.NoError(t, r.vault.SupplyCollateral(ctx, 10_000*ledger.Scale))
	require.NoError(t, r.keeper.BorrowStablecoin(ctx, 6_500*ledger.Scale))
	require.NoError(t, r.keeper.DeployToRWA(ctx, 6_500*ledger.Scale))

	// holdings are worth less than the derived cost basis: nothing to skim
	yield, err := r.keeper.HarvestYield(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), yield)

	// at NAV 1.60 holdings are worth 10,400 vs a 10,000 basis
	require.NoError(t, r.oracle.UpdateNAV("pool-1", 1_600_000))
	yield, err = r.keeper.HarvestYield(ctx)
	require.NoError(t, err)
	assert.Equal(t, 400*ledger.Scale, yield)

	m, _ := r.strategy.Metrics()
	assert.Equal(t, 6_500*ledger.Scale-250*ledger.Scale, m.AITHoldings) // 400/1.6 burned
	assert.Equal(t, 400*ledger.Scale, m.CashBalance)
}

func TestRepayDebt(t *testing.T) {
	ctx := context.Background()
	r := newRig(t)
	require.NoError(t, r.vault.SupplyCollateral(ctx, 10_000*ledger.Scale))
	require.NoError(t, r.keeper.BorrowStablecoin(ctx, 1_000*ledger.Scale))

	assert.ErrorIs(t, r.keeper.RepayDebt(ctx, 2_000*ledger.Scale), ErrInsufficientCash)

	require.NoError(t, r.keeper.RepayDebt(ctx, 400*ledger.Scale))
	m, _ := r.strategy.Metrics()
	assert.Equal(t, 600*ledger.Scale, m.TotalBorrowed)
	assert.Equal(t, 600*ledger.Scale, m.CashBalance)

	// build cash above the outstanding debt via a harvest, then over-repay
	require.NoError(t, r.keeper.DeployToRWA(ctx, 600*ledger.Scale))
	require.NoError(t, r.oracle.UpdateNAV("pool-1", 4_000_000))
	yield, err := r.keeper.HarvestYield(ctx)
	require.NoError(t, err)
	require.Greater(t, yield, 600*ledger.Scale)

	assert.ErrorIs(t, r.keeper.RepayDebt(ctx, 601*ledger.Scale), ErrOverRepay)
	require.NoError(t, r.keeper.RepayDebt(ctx, 600*ledger.Scale))
	m, _ = r.strategy.Metrics()
	assert.Equal(t, uint64(0), m.TotalBorrowed)
}

func TestEmergencyDeleverageGating(t *testing.T) {
	ctx := context.Background()
	r := newRig(t)
	require.NoError(t, r.vault.SupplyCollateral(ctx, 10_000*ledger.Scale))
	require.NoError(t, r.keeper.BorrowStablecoin(ctx, 6_500*ledger.Scale))
	require.NoError(t, r.keeper.DeployToRWA(ctx, 6_500*ledger.Scale))

	// healthy: HF = 0.8/0.65 = 1.2307 >= 1.2 floor
	err := r.keeper.EmergencyDeleverage(ctx, 1_000*ledger.Scale)
	assert.ErrorIs(t, err, ErrHealthFactorOK)

	// collateral marks down to 0.90: HF = 7200/6500 = 1.1076 < 1.2
	r.market.SetCollateralPrice(900_000)
	hf, err := r.keeper.RefreshHealthFactor(ctx)
	require.NoError(t, err)
	require.Less(t, hf, r.strategy.MinHealthFactor())

	assert.ErrorIs(t, r.keeper.EmergencyDeleverage(ctx, 7_000*ledger.Scale), ErrInsufficientHoldings)

	require.NoError(t, r.keeper.EmergencyDeleverage(ctx, 1_000*ledger.Scale))
	m, _ := r.strategy.Metrics()
	assert.Equal(t, 5_500*ledger.Scale, m.AITHoldings)
	assert.Equal(t, 5_500*ledger.Scale, m.TotalBorrowed) // 1,000 of proceeds repaid at NAV 1.00
}

func TestExternalProtocolErrorsAreDistinct(t *testing.T) {
	ctx := context.Background()
	r := newRig(t)

	r.market.FailNext("supply", errors.New("rpc timeout"))
	err := r.vault.SupplyCollateral(ctx, 10_000*ledger.Scale)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrExternalProtocol, appErr.Type)

	m, merr := r.strategy.Metrics()
	require.NoError(t, merr)
	assert.Equal(t, uint64(0), m.TotalCollateral, "failed supply must not mutate state")

	require.NoError(t, r.vault.SupplyCollateral(ctx, 10_000*ledger.Scale))
	r.market.FailNext("borrow", errors.New("nonce too low"))
	err = r.keeper.BorrowStablecoin(ctx, 1_000*ledger.Scale)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrExternalProtocol, appErr.Type)
}

func TestNetExposure(t *testing.T) {
	ctx := context.Background()
	r := newRig(t)
	require.NoError(t, r.vault.SupplyCollateral(ctx, 10_000*ledger.Scale))
	require.NoError(t, r.keeper.BorrowStablecoin(ctx, 6_500*ledger.Scale))
	require.NoError(t, r.keeper.DeployToRWA(ctx, 6_500*ledger.Scale))

	// holdings value equals debt: exposure floors at zero
	m, err := r.strategy.Metrics()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), m.NetExposure)

	require.NoError(t, r.oracle.UpdateNAV("pool-1", 1_100_000))
	m, _ = r.strategy.Metrics()
	assert.Equal(t, 650*ledger.Scale, m.NetExposure) // 7,150 - 6,500
}
