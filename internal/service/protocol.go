package service

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/VeritasFi/aegis/internal/config"
	"github.com/VeritasFi/aegis/internal/ledger"
	"github.com/VeritasFi/aegis/internal/ledger/compliance"
	"github.com/VeritasFi/aegis/internal/ledger/leverage"
	"github.com/VeritasFi/aegis/internal/ledger/synthetic"
	"github.com/VeritasFi/aegis/internal/lending"
)

// Protocol owns the three ledgers and their capability handles. Handlers and
// the keeper receive only the slices they are entitled to; nothing outside
// this struct ever sees a capability it should not hold.
type Protocol struct {
	Registry         *compliance.Registry
	ComplianceIssuer compliance.Issuer
	ComplianceVault  compliance.Vault

	Assets      *synthetic.Ledger
	AssetIssuer synthetic.Issuer
	AssetOracle synthetic.Oracle
	AssetAdmin  synthetic.Admin

	Market         *lending.Memory
	Strategy       *leverage.Strategy
	StrategyVault  leverage.Vault
	StrategyKeeper leverage.Keeper
}

// assetAdapter joins the synthetic ledger's reads with the issuer capability
// into the slice the leverage strategy needs.
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

// NewProtocol builds and seeds the full ledger stack from config: the
// compliance registry, the synthetic pool, the in-memory lending market and
// the leverage strategy, with the strategy's own address whitelisted for
// deployment mints.
func NewProtocol(cfg *config.Config, events ledger.EventSink) (*Protocol, error) {
	registry, compIssuer, compVault := compliance.NewRegistry(nil, events)

	assets, assetIssuer, assetOracle, assetAdmin := synthetic.New(events)
	if _, err := assetIssuer.InitializePool(
		cfg.Pool.ID,
		cfg.Pool.FaceValue,
		cfg.Pool.NumberOfInvoices,
		cfg.Pool.WeightedMaturityDays,
		cfg.Pool.ExpectedYieldBps,
	); err != nil {
		return nil, err
	}

	self := common.HexToAddress(cfg.Strategy.Address)
	if err := assetAdmin.SetWhitelist(cfg.Pool.ID, self, true); err != nil {
		return nil, err
	}

	market := lending.NewMemory(cfg.Strategy.CollateralAsset, cfg.Lending.CollateralPrice, cfg.Lending.LiquidationThresholdBps)

	strategy, stratVault, stratKeeper, err := leverage.New(
		cfg.Strategy.ID,
		leverage.Config{
			CollateralAsset: cfg.Strategy.CollateralAsset,
			BorrowAsset:     cfg.Strategy.BorrowAsset,
			PoolID:          cfg.Pool.ID,
			TargetLTVBps:    cfg.Strategy.TargetLTVBps,
			MaxLTVBps:       cfg.Strategy.MaxLTVBps,
			MinHealthFactor: cfg.Strategy.MinHealthFactor,
		},
		self,
		market,
		assetAdapter{l: assets, issuer: assetIssuer},
		events,
	)
	if err != nil {
		return nil, err
	}

	return &Protocol{
		Registry:         registry,
		ComplianceIssuer: compIssuer,
		ComplianceVault:  compVault,
		Assets:           assets,
		AssetIssuer:      assetIssuer,
		AssetOracle:      assetOracle,
		AssetAdmin:       assetAdmin,
		Market:           market,
		Strategy:         strategy,
		StrategyVault:    stratVault,
		StrategyKeeper:   stratKeeper,
	}, nil
}
