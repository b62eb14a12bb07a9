// Package keeper runs the scheduled automation loops: leverage health
// monitoring, ML-driven NAV updates, compliance scans and an engine health
// check. Cycles are best-effort; an unreachable dependency logs and skips,
// it never stops the scheduler.
package keeper

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/VeritasFi/aegis/internal/config"
	"github.com/VeritasFi/aegis/internal/ledger"
	"github.com/VeritasFi/aegis/internal/ledger/compliance"
	"github.com/VeritasFi/aegis/internal/ledger/leverage"
	"github.com/VeritasFi/aegis/internal/ledger/synthetic"
	"github.com/VeritasFi/aegis/internal/lending"
	"github.com/VeritasFi/aegis/internal/mlrisk"
	"github.com/VeritasFi/aegis/internal/pkg/logger"
	"github.com/VeritasFi/aegis/internal/pkg/metrics"
)

// deleverage sells a quarter of holdings per critical cycle; repeated cycles
// walk the position down instead of dumping it in one shot.
const deleverageSliceBps = 2_500

// RiskEngine is the slice of the ML client the bot depends on.
type RiskEngine interface {
	LeverageHealth(ctx context.Context, snapshot mlrisk.PositionSnapshot) (*mlrisk.LeverageHealthResponse, error)
	NAVPrediction(ctx context.Context, snapshot mlrisk.PoolSnapshot) (*mlrisk.NAVPredictionResponse, error)
	KYCRisk(ctx context.Context, profile mlrisk.InvestmentProfile) (*mlrisk.KYCRiskResponse, error)
	Health(ctx context.Context) error
}

// Bot wires the risk engine's scores back into the ledgers through the
// keeper and oracle capabilities it holds.
type Bot struct {
	cfg      config.KeeperConfig
	engine   RiskEngine
	strategy *leverage.Strategy
	keeper   leverage.Keeper
	assets   *synthetic.Ledger
	oracle   synthetic.Oracle
	registry *compliance.Registry
	cron     *cron.Cron
	log      *slog.Logger

	mu        sync.Mutex
	lastCycle map[string]time.Time
}

func New(cfg config.KeeperConfig, engine RiskEngine, strategy *leverage.Strategy, keeper leverage.Keeper,
	assets *synthetic.Ledger, oracle synthetic.Oracle, registry *compliance.Registry) *Bot {
	return &Bot{
		cfg:       cfg,
		engine:    engine,
		strategy:  strategy,
		keeper:    keeper,
		assets:    assets,
		oracle:    oracle,
		registry:  registry,
		cron:      cron.New(),
		log:       logger.With(slog.String("component", "keeper")),
		lastCycle: make(map[string]time.Time),
	}
}

// Start registers the cron entries and starts the scheduler.
func (b *Bot) Start() error {
	schedules := []struct {
		spec string
		name string
		run  func(context.Context) error
	}{
		{b.cfg.LeverageCron, "leverage_health", b.LeverageHealthCycle},
		{b.cfg.NAVCron, "nav_update", b.NAVCycle},
		{b.cfg.ComplianceCron, "compliance_scan", b.ComplianceCycle},
		{b.cfg.HealthCron, "engine_health", b.EngineHealthCycle},
	}
	for _, s := range schedules {
		s := s
		if _, err := b.cron.AddFunc(s.spec, func() { b.runCycle(s.name, s.run) }); err != nil {
			return err
		}
	}
	b.cron.Start()
	b.log.Info("keeper started",
		slog.String("leverage_cron", b.cfg.LeverageCron),
		slog.String("nav_cron", b.cfg.NAVCron),
		slog.String("compliance_cron", b.cfg.ComplianceCron))
	return nil
}

// Stop halts the scheduler and waits for any running cycle to finish.
func (b *Bot) Stop() {
	ctx := b.cron.Stop()
	<-ctx.Done()
	b.log.Info("keeper stopped")
}

// LastRun reports when the named cycle last completed, for the status endpoint.
func (b *Bot) LastRun(task string) (time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.lastCycle[task]
	return t, ok
}

func (b *Bot) runCycle(name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := fn(ctx); err != nil {
		metrics.KeeperCyclesTotal.WithLabelValues(name, "error").Inc()
		logger.LogError(ctx, err, "keeper cycle failed", slog.String("task", name))
		return
	}
	metrics.KeeperCyclesTotal.WithLabelValues(name, "ok").Inc()
	b.mu.Lock()
	b.lastCycle[name] = time.Now().UTC()
	b.mu.Unlock()
}

// LeverageHealthCycle refreshes the health factor, sends the position to the
// risk engine and acts on its recommendations.
func (b *Bot) LeverageHealthCycle(ctx context.Context) error {
	hf, err := b.keeper.RefreshHealthFactor(ctx)
	if err != nil {
		return err
	}
	m, err := b.strategy.Metrics()
	if err != nil {
		return err
	}

	resp, err := b.engine.LeverageHealth(ctx, mlrisk.PositionSnapshot{
		TotalCollateral:     m.TotalCollateral,
		TotalBorrowed:       m.TotalBorrowed,
		CurrentHealthFactor: healthFactorFloat(hf),
		AITValue:            m.AITValue,
	})
	if err != nil {
		return err
	}

	b.log.Info("leverage health",
		slog.Float64("risk_score", resp.CompositeRiskScore),
		slog.String("risk_level", resp.RiskLevel),
		slog.Uint64("health_factor", hf),
		slog.Uint64("ltv_bps", m.LTVBps))

	if !resp.ActionRequired {
		return nil
	}
	for _, rec := range resp.Recommendations {
		b.act(ctx, rec, m)
	}
	return nil
}

// act applies one recommendation. Rejections from the ledger (health factor
// back above the floor, nothing to repay) are expected races, logged at info.
func (b *Bot) act(ctx context.Context, recommendation string, m leverage.Metrics) {
	switch recommendation {
	case mlrisk.RecommendEmergencyDeleverage:
		slice := ledger.MulDiv(m.AITHoldings, deleverageSliceBps, ledger.MaxBPS)
		if slice == 0 {
			return
		}
		err := b.keeper.EmergencyDeleverage(ctx, slice)
		switch {
		case errors.Is(err, leverage.ErrHealthFactorOK):
			b.log.Info("deleverage skipped, health factor recovered")
		case err != nil:
			logger.LogError(ctx, err, "emergency deleverage failed", slog.Uint64("ait_to_sell", slice))
		default:
			b.log.Warn("emergency deleverage executed", slog.Uint64("ait_sold", slice))
		}

	case mlrisk.RecommendReduceLeverage:
		repay := ledger.MulDiv(m.TotalBorrowed, deleverageSliceBps, ledger.MaxBPS)
		if repay > m.CashBalance {
			repay = m.CashBalance
		}
		if repay == 0 {
			b.log.Info("reduce leverage skipped, no cash on hand")
			return
		}
		if err := b.keeper.RepayDebt(ctx, repay); err != nil {
			logger.LogError(ctx, err, "debt repayment failed", slog.Uint64("amount", repay))
			return
		}
		b.log.Warn("leverage reduced", slog.Uint64("repaid", repay))

	case mlrisk.RecommendPauseNewPositions:
		b.keeper.SetPaused(true)
		b.log.Warn("new borrowing paused on engine recommendation")

	default:
		b.log.Info("unknown recommendation ignored", slog.String("recommendation", recommendation))
	}
}

// NAVCycle asks the engine for a NAV prediction per pool and applies it only
// when the model's confidence clears the configured threshold. Low-confidence
// predictions are logged and dropped; human oracle input stays authoritative.
func (b *Bot) NAVCycle(ctx context.Context) error {
	var firstErr error
	for _, poolID := range b.assets.Pools() {
		info, ok := b.assets.Info(poolID)
		if !ok {
			continue
		}
		resp, err := b.engine.NAVPrediction(ctx, mlrisk.PoolSnapshot{
			TotalFaceValue:   info.TotalFaceValue,
			NumberOfInvoices: info.NumberOfInvoices,
			WeightedMaturity: info.WeightedMaturityDays,
			ExpectedYield:    info.ExpectedYieldBps,
			DefaultRate:      info.DefaultRateBps,
			RealizedYield:    info.RealizedYield,
			TotalSupply:      info.TotalSupply,
		})
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			logger.LogError(ctx, err, "nav prediction failed", slog.String("pool", poolID))
			continue
		}

		if resp.Confidence <= b.cfg.ConfidenceThreshold {
			metrics.RiskRejects.WithLabelValues("low_confidence_nav").Inc()
			b.log.Info("nav prediction below confidence threshold, skipping",
				slog.String("pool", poolID),
				slog.Float64("confidence", resp.Confidence),
				slog.Float64("threshold", b.cfg.ConfidenceThreshold))
			continue
		}

		newNAV := mlrisk.MicroUnits(resp.PredictedNAV)
		if newNAV == 0 {
			b.log.Warn("nav prediction non-positive, skipping", slog.String("pool", poolID))
			continue
		}
		if err := b.oracle.UpdateNAV(poolID, newNAV); err != nil {
			logger.LogError(ctx, err, "nav update failed", slog.String("pool", poolID))
			continue
		}
		b.log.Info("nav updated from prediction",
			slog.String("pool", poolID),
			slog.Uint64("nav_per_token", newNAV),
			slog.Float64("confidence", resp.Confidence))
	}
	return firstErr
}

// ComplianceCycle scores every registered investor and surfaces the flagged
// ones. It never revokes on its own; revocation stays a human issuer action.
func (b *Bot) ComplianceCycle(ctx context.Context) error {
	var firstErr error
	for _, investor := range b.registry.Investors() {
		p, ok := b.registry.Profile(investor)
		if !ok || p.Revoked {
			continue
		}
		resp, err := b.engine.KYCRisk(ctx, mlrisk.InvestmentProfile{
			InvestmentAmount: p.Committed,
			Tier:             uint8(p.Tier),
			Jurisdiction:     p.Jurisdiction,
		})
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			logger.LogError(ctx, err, "kyc risk call failed", slog.String("investor", investor.Hex()))
			continue
		}
		if resp.VerificationRequired {
			metrics.RiskRejects.WithLabelValues("kyc_flagged").Inc()
			b.log.Warn("investor flagged for re-verification",
				slog.String("investor", investor.Hex()),
				slog.Float64("risk_score", resp.KYCRiskScore),
				slog.String("classification", resp.RiskClassification),
				slog.Any("flags", resp.ComplianceFlags))
		}
	}
	return firstErr
}

// EngineHealthCycle pings the risk engine so an outage shows up in metrics
// before the next scoring cycle silently fails.
func (b *Bot) EngineHealthCycle(ctx context.Context) error {
	if err := b.engine.Health(ctx); err != nil {
		return err
	}
	b.log.Debug("risk engine healthy")
	return nil
}

// healthFactorFloat maps the micro-unit health factor into the engine's float
// convention, clamping the no-debt sentinel to a large finite value.
func healthFactorFloat(hf uint64) float64 {
	if hf == lending.HealthFactorInfinity {
		return 1e9
	}
	return mlrisk.Float(hf)
}
