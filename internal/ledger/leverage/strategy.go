// Package leverage tracks one strategy instance: staked collateral supplied
// to the lending market, stablecoin borrowed against it, and the synthetic
// invoice-token position bought with the proceeds. The canonical sequence is
// supply -> borrow -> deploy -> (harvest | repay) -> emergencyDeleverage on a
// health-factor breach. Mutations are split across the Vault and Keeper
// capabilities.
package leverage

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/VeritasFi/aegis/internal/ledger"
	"github.com/VeritasFi/aegis/internal/lending"
	"github.com/VeritasFi/aegis/internal/pkg/apperrors"
	"github.com/VeritasFi/aegis/internal/pkg/metrics"
)

var (
	ErrExceedsTargetLTV     = apperrors.New(apperrors.ErrExceedsTargetLTV, "borrow would push LTV past the target ceiling", nil)
	ErrHealthFactorOK       = apperrors.New(apperrors.ErrHealthFactorOK, "health factor above the floor; emergency action not permitted", nil)
	ErrOverRepay            = apperrors.New(apperrors.ErrOverRepay, "repay amount exceeds outstanding debt", nil)
	ErrInsufficientCash     = apperrors.New(apperrors.ErrInsufficientBalance, "held borrow-asset balance is insufficient", nil)
	ErrInsufficientHoldings = apperrors.New(apperrors.ErrInsufficientBalance, "synthetic token holdings are insufficient", nil)
	ErrBorrowPaused         = apperrors.NewInvalidRequest("new borrowing is paused")
)

// AssetLedger is the read/mint/burn slice of the synthetic ledger the
// strategy needs. Deployment is modeled as a privileged mint at NAV rather
// than a market swap; a hardened design would route through an exchange.
type AssetLedger interface {
	NAVPerToken(poolID string) (uint64, error)
	Mint(poolID string, to common.Address, amount uint64) error
	Burn(poolID string, from common.Address, amount uint64) error
}

// Config fixes the strategy's immutable references and risk ceilings.
type Config struct {
	CollateralAsset string
	BorrowAsset     string
	PoolID          string
	TargetLTVBps    uint64
	MaxLTVBps       uint64
	MinHealthFactor uint64 // micro-units, 1.3 == 1_300_000
}

// Metrics is the read-only view of the position.
type Metrics struct {
	LTVBps          uint64 `json:"ltv_bps"`
	HealthFactor    uint64 `json:"health_factor"`
	AITValue        uint64 `json:"ait_value"`
	NetExposure     uint64 `json:"net_exposure"`
	TotalCollateral uint64 `json:"total_collateral"`
	TotalBorrowed   uint64 `json:"total_borrowed"`
	AITHoldings     uint64 `json:"ait_holdings"`
	CashBalance     uint64 `json:"cash_balance"`
	Paused          bool   `json:"paused"`
}

type Strategy struct {
	mu sync.Mutex

	id     string
	cfg    Config
	self   common.Address
	market lending.Protocol
	assets AssetLedger
	events ledger.EventSink

	totalCollateral     uint64
	totalBorrowed       uint64
	totalAITHoldings    uint64
	cashBalance         uint64
	currentHealthFactor uint64
	paused              bool
}

// New builds a strategy and hands out its two capabilities. SupplyCollateral
// requires the Vault handle; everything else mutating requires Keeper.
func New(id string, cfg Config, self common.Address, market lending.Protocol, assets AssetLedger, events ledger.EventSink) (*Strategy, Vault, Keeper, error) {
	if cfg.TargetLTVBps == 0 || cfg.TargetLTVBps > cfg.MaxLTVBps || cfg.MaxLTVBps > ledger.MaxBPS {
		return nil, Vault{}, Keeper{}, apperrors.NewInvalidRequest("require 0 < targetLTV <= maxLTV <= 10000 bps")
	}
	s := &Strategy{
		id:                  id,
		cfg:                 cfg,
		self:                self,
		market:              market,
		assets:              assets,
		events:              events,
		currentHealthFactor: lending.HealthFactorInfinity,
	}
	return s, Vault{s: s}, Keeper{s: s}, nil
}

// Vault is the capability for funding the position with collateral.
type Vault struct {
	s *Strategy
}

// Keeper is the capability driving borrow, deploy, harvest, repay and
// emergency deleveraging.
type Keeper struct {
	s *Strategy
}

// SupplyCollateral moves collateral into lending-market custody.
func (v Vault) SupplyCollateral(ctx context.Context, amount uint64) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	if err := v.s.market.Supply(ctx, v.s.cfg.CollateralAsset, amount); err != nil {
		return externalErr("supply", err)
	}
	old := v.s.totalCollateral
	v.s.totalCollateral += amount
	v.s.refreshHealthFactor(ctx)

	ledger.Emit(v.s.events, "leverage", "supply_collateral", "vault", v.s.id,
		map[string]interface{}{"total_collateral": old},
		map[string]interface{}{"total_collateral": v.s.totalCollateral, "amount": amount})
	metrics.LedgerOpsTotal.WithLabelValues("leverage", "supply_collateral", "ok").Inc()
	v.s.publishGauges()
	return nil
}

// BorrowStablecoin draws debt up to the target LTV ceiling. The check uses
// truncating basis-point division: a borrow landing exactly on the target
// passes, one more basis point fails.
func (k Keeper) BorrowStablecoin(ctx context.Context, amount uint64) error {
	k.s.mu.Lock()
	defer k.s.mu.Unlock()

	if k.s.paused {
		return ErrBorrowPaused
	}
	if k.s.totalCollateral == 0 {
		metrics.RiskRejects.WithLabelValues("exceeds_target_ltv").Inc()
		return ErrExceedsTargetLTV
	}
	newLTV := ledger.MulDiv(k.s.totalBorrowed+amount, ledger.MaxBPS, k.s.totalCollateral)
	if newLTV > k.s.cfg.TargetLTVBps {
		metrics.RiskRejects.WithLabelValues("exceeds_target_ltv").Inc()
		return ErrExceedsTargetLTV
	}

	if err := k.s.market.Borrow(ctx, k.s.cfg.BorrowAsset, amount); err != nil {
		return externalErr("borrow", err)
	}
	old := k.s.totalBorrowed
	k.s.totalBorrowed += amount
	k.s.cashBalance += amount
	k.s.refreshHealthFactor(ctx)

	ledger.Emit(k.s.events, "leverage", "borrow", "keeper", k.s.id,
		map[string]interface{}{"total_borrowed": old},
		map[string]interface{}{"total_borrowed": k.s.totalBorrowed, "amount": amount, "ltv_bps": newLTV})
	metrics.LedgerOpsTotal.WithLabelValues("leverage", "borrow", "ok").Inc()
	k.s.publishGauges()
	return nil
}

// DeployToRWA spends held stablecoin on synthetic tokens priced at pool NAV.
func (k Keeper) DeployToRWA(ctx context.Context, usdcAmount uint64) error {
	k.s.mu.Lock()
	defer k.s.mu.Unlock()

	if k.s.cashBalance < usdcAmount {
		return ErrInsufficientCash
	}
	nav, err := k.s.assets.NAVPerToken(k.s.cfg.PoolID)
	if err != nil {
		return err
	}
	if nav == 0 {
		return apperrors.NewInvalidRequest("pool NAV is zero; cannot price deployment")
	}
	aitToReceive := ledger.MulDiv(usdcAmount, ledger.Scale, nav)
	if err := k.s.assets.Mint(k.s.cfg.PoolID, k.s.self, aitToReceive); err != nil {
		return err
	}

	k.s.cashBalance -= usdcAmount
	old := k.s.totalAITHoldings
	k.s.totalAITHoldings += aitToReceive
	k.s.refreshHealthFactor(ctx)

	ledger.Emit(k.s.events, "leverage", "deploy_to_rwa", "keeper", k.s.id,
		map[string]interface{}{"ait_holdings": old},
		map[string]interface{}{"ait_holdings": k.s.totalAITHoldings, "usdc_amount": usdcAmount,
			"ait_received": aitToReceive, "nav_per_token": nav})
	metrics.LedgerOpsTotal.WithLabelValues("leverage", "deploy_to_rwa", "ok").Inc()
	k.s.publishGauges()
	return nil
}

// HarvestYield realizes NAV appreciation above the approximate cost basis
// (totalBorrowed / targetLTV) and returns it as cash. A zero surplus is a
// normal result, not an error.
func (k Keeper) HarvestYield(ctx context.Context) (uint64, error) {
	k.s.mu.Lock()
	defer k.s.mu.Unlock()

	nav, err := k.s.assets.NAVPerToken(k.s.cfg.PoolID)
	if err != nil {
		return 0, err
	}
	currentValue := ledger.MulDiv(k.s.totalAITHoldings, nav, ledger.Scale)
	initialValue := ledger.MulDiv(k.s.totalBorrowed, ledger.MaxBPS, k.s.cfg.TargetLTVBps)
	if currentValue <= initialValue || nav == 0 {
		return 0, nil
	}

	surplus := currentValue - initialValue
	aitToBurn := ledger.MulDiv(surplus, ledger.Scale, nav)
	if aitToBurn > k.s.totalAITHoldings {
		aitToBurn = k.s.totalAITHoldings
	}
	if err := k.s.assets.Burn(k.s.cfg.PoolID, k.s.self, aitToBurn); err != nil {
		return 0, err
	}

	k.s.totalAITHoldings -= aitToBurn
	k.s.cashBalance += surplus
	k.s.refreshHealthFactor(ctx)

	ledger.Emit(k.s.events, "leverage", "harvest_yield", "keeper", k.s.id, nil, map[string]interface{}{
		"yield": surplus, "ait_burned": aitToBurn, "nav_per_token": nav,
	})
	metrics.LedgerOpsTotal.WithLabelValues("leverage", "harvest_yield", "ok").Inc()
	k.s.publishGauges()
	return surplus, nil
}

// RepayDebt pays down borrowed principal from held cash.
func (k Keeper) RepayDebt(ctx context.Context, amount uint64) error {
	k.s.mu.Lock()
	defer k.s.mu.Unlock()

	if k.s.cashBalance < amount {
		return ErrInsufficientCash
	}
	if amount > k.s.totalBorrowed {
		return ErrOverRepay
	}
	if err := k.s.market.Repay(ctx, k.s.cfg.BorrowAsset, amount); err != nil {
		return externalErr("repay", err)
	}

	old := k.s.totalBorrowed
	k.s.cashBalance -= amount
	k.s.totalBorrowed -= amount
	k.s.refreshHealthFactor(ctx)

	ledger.Emit(k.s.events, "leverage", "repay_debt", "keeper", k.s.id,
		map[string]interface{}{"total_borrowed": old},
		map[string]interface{}{"total_borrowed": k.s.totalBorrowed, "amount": amount})
	metrics.LedgerOpsTotal.WithLabelValues("leverage", "repay_debt", "ok").Inc()
	k.s.publishGauges()
	return nil
}

// EmergencyDeleverage sells synthetic holdings at NAV and repays debt with
// the proceeds. Only permitted while the cached health factor is below the
// configured floor.
func (k Keeper) EmergencyDeleverage(ctx context.Context, aitToSell uint64) error {
	k.s.mu.Lock()
	defer k.s.mu.Unlock()

	if k.s.currentHealthFactor >= k.s.cfg.MinHealthFactor {
		metrics.RiskRejects.WithLabelValues("health_factor_ok").Inc()
		return ErrHealthFactorOK
	}
	if aitToSell > k.s.totalAITHoldings {
		return ErrInsufficientHoldings
	}
	nav, err := k.s.assets.NAVPerToken(k.s.cfg.PoolID)
	if err != nil {
		return err
	}
	proceeds := ledger.MulDiv(aitToSell, nav, ledger.Scale)
	repayAmount := proceeds
	if repayAmount > k.s.totalBorrowed {
		repayAmount = k.s.totalBorrowed
	}

	if err := k.s.assets.Burn(k.s.cfg.PoolID, k.s.self, aitToSell); err != nil {
		return err
	}
	if repayAmount > 0 {
		if err := k.s.market.Repay(ctx, k.s.cfg.BorrowAsset, repayAmount); err != nil {
			return externalErr("repay", err)
		}
	}

	oldAIT, oldBorrowed := k.s.totalAITHoldings, k.s.totalBorrowed
	k.s.totalAITHoldings -= aitToSell
	k.s.totalBorrowed -= repayAmount
	k.s.cashBalance += proceeds - repayAmount
	k.s.refreshHealthFactor(ctx)

	ledger.Emit(k.s.events, "leverage", "emergency_deleverage", "keeper", k.s.id,
		map[string]interface{}{"ait_holdings": oldAIT, "total_borrowed": oldBorrowed},
		map[string]interface{}{"ait_holdings": k.s.totalAITHoldings, "total_borrowed": k.s.totalBorrowed,
			"ait_sold": aitToSell, "proceeds": proceeds})
	metrics.LedgerOpsTotal.WithLabelValues("leverage", "emergency_deleverage", "ok").Inc()
	k.s.publishGauges()
	return nil
}

// SetPaused toggles the new-borrowing pause flag.
func (k Keeper) SetPaused(paused bool) {
	k.s.mu.Lock()
	defer k.s.mu.Unlock()
	if k.s.paused == paused {
		return
	}
	k.s.paused = paused
	ledger.Emit(k.s.events, "leverage", "set_paused", "keeper", k.s.id,
		map[string]interface{}{"paused": !paused},
		map[string]interface{}{"paused": paused})
}

// RefreshHealthFactor forces a cache refresh from the lending oracle and
// returns the new value. Unlike the best-effort refresh after mutations, a
// failure here propagates so the keeper can log and skip its cycle.
func (k Keeper) RefreshHealthFactor(ctx context.Context) (uint64, error) {
	k.s.mu.Lock()
	defer k.s.mu.Unlock()

	liq, err := k.s.market.AccountLiquidity(ctx, k.s.self)
	if err != nil {
		return 0, externalErr("getAccountLiquidity", err)
	}
	k.s.currentHealthFactor = liq.HealthFactor
	k.s.publishGauges()
	return liq.HealthFactor, nil
}

// Metrics reads the position snapshot, pricing holdings at current NAV.
func (s *Strategy) Metrics() (Metrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nav, err := s.assets.NAVPerToken(s.cfg.PoolID)
	if err != nil {
		return Metrics{}, err
	}
	aitValue := ledger.MulDiv(s.totalAITHoldings, nav, ledger.Scale)

	var ltv uint64
	if s.totalCollateral > 0 {
		ltv = ledger.MulDiv(s.totalBorrowed, ledger.MaxBPS, s.totalCollateral)
	}
	var netExposure uint64
	if aitValue > s.totalBorrowed {
		netExposure = aitValue - s.totalBorrowed
	}

	return Metrics{
		LTVBps:          ltv,
		HealthFactor:    s.currentHealthFactor,
		AITValue:        aitValue,
		NetExposure:     netExposure,
		TotalCollateral: s.totalCollateral,
		TotalBorrowed:   s.totalBorrowed,
		AITHoldings:     s.totalAITHoldings,
		CashBalance:     s.cashBalance,
		Paused:          s.paused,
	}, nil
}

// ID returns the strategy identifier.
func (s *Strategy) ID() string {
	return s.id
}

// MinHealthFactor returns the configured deleverage floor.
func (s *Strategy) MinHealthFactor() uint64 {
	return s.cfg.MinHealthFactor
}

// refreshHealthFactor is the best-effort post-mutation refresh: on oracle
// failure the cached value is kept. Requires s.mu held.
func (s *Strategy) refreshHealthFactor(ctx context.Context) {
	liq, err := s.market.AccountLiquidity(ctx, s.self)
	if err != nil {
		return
	}
	s.currentHealthFactor = liq.HealthFactor
}

// publishGauges requires s.mu held.
func (s *Strategy) publishGauges() {
	if s.currentHealthFactor != lending.HealthFactorInfinity {
		metrics.HealthFactor.WithLabelValues(s.id).Set(float64(s.currentHealthFactor))
	}
	if s.totalCollateral > 0 {
		metrics.CurrentLTV.WithLabelValues(s.id).Set(float64(ledger.MulDiv(s.totalBorrowed, ledger.MaxBPS, s.totalCollateral)))
	}
}

func externalErr(op string, cause error) error {
	return apperrors.New(apperrors.ErrExternalProtocol, "lending protocol "+op+" call failed", cause)
}
