// Command simulate runs the full vault lifecycle offline against the
// in-memory lending fake: compliance onboarding, pool seeding, the
// supply -> borrow -> deploy -> harvest sequence, then a collateral shock
// and emergency deleverage. Useful for demos and smoke checks without any
// external services.
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/ethereum/go-ethereum/common"

	"github.com/VeritasFi/aegis/internal/config"
	"github.com/VeritasFi/aegis/internal/ledger"
	"github.com/VeritasFi/aegis/internal/ledger/compliance"
	"github.com/VeritasFi/aegis/internal/pkg/logger"
	"github.com/VeritasFi/aegis/internal/service"
)

func main() {
	logger.Init("warn")
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	protocol, err := service.NewProtocol(cfg, ledger.NopSink{})
	if err != nil {
		log.Fatalf("build protocol: %v", err)
	}

	investor := common.HexToAddress("0x00000000000000000000000000000000000000AA")

	// 1. Compliance onboarding
	profile, err := protocol.ComplianceIssuer.Issue(investor, compliance.TierRetail, 365, "US", common.Hash{})
	must("issue profile", err)
	fmt.Printf("profile issued: tier=%s cap=%s\n", profile.Tier, usd(profile.Cap))

	must("record investment", protocol.ComplianceVault.RecordInvestment(investor, 5_000*ledger.Scale))
	fmt.Printf("invested %s, remaining capacity %s\n",
		usd(5_000*ledger.Scale), usd(protocol.Registry.RemainingCapacity(investor)))

	// 2. Leverage loop
	must("supply collateral", protocol.StrategyVault.SupplyCollateral(ctx, 10_000*ledger.Scale))
	must("borrow", protocol.StrategyKeeper.BorrowStablecoin(ctx, 6_500*ledger.Scale))
	must("deploy", protocol.StrategyKeeper.DeployToRWA(ctx, 6_500*ledger.Scale))
	printMetrics(protocol)

	// 3. Issue the rest of the pool's supply, then collections lift NAV
	// to exactly 1.05: (1,000,000 face + 50,000 yield) / 1,000,000 tokens
	must("whitelist investor", protocol.AssetAdmin.SetWhitelist(cfg.Pool.ID, investor, true))
	must("mint to investor", protocol.AssetIssuer.Mint(cfg.Pool.ID, investor, 993_500*ledger.Scale))
	must("record cash flow", protocol.AssetOracle.RecordCashFlow(cfg.Pool.ID, 50_000*ledger.Scale, 50))
	info, _ := protocol.Assets.Info(cfg.Pool.ID)
	fmt.Printf("cash flow recorded: nav=%s realized_yield=%s\n", usd(info.NAVPerToken), usd(info.RealizedYield))

	// 4. A strong re-mark makes the position harvestable
	must("update nav", protocol.AssetOracle.UpdateNAV(cfg.Pool.ID, 1_600_000))
	yield, err := protocol.StrategyKeeper.HarvestYield(ctx)
	must("harvest", err)
	fmt.Printf("harvested yield: %s\n", usd(yield))
	printMetrics(protocol)

	// 5. Collateral shock and emergency deleverage
	protocol.Market.SetCollateralPrice(750_000)
	hf, err := protocol.StrategyKeeper.RefreshHealthFactor(ctx)
	must("refresh health factor", err)
	fmt.Printf("collateral marked down 25%%: health_factor=%s (floor %s)\n",
		usd(hf), usd(protocol.Strategy.MinHealthFactor()))

	m, _ := protocol.Strategy.Metrics()
	slice := ledger.MulDiv(m.AITHoldings, 2_500, ledger.MaxBPS)
	must("emergency deleverage", protocol.StrategyKeeper.EmergencyDeleverage(ctx, slice))
	fmt.Printf("deleveraged %s tokens\n", usd(slice))
	printMetrics(protocol)
}

func printMetrics(p *service.Protocol) {
	m, err := p.Strategy.Metrics()
	must("read metrics", err)
	fmt.Printf("position: collateral=%s borrowed=%s ltv=%dbps holdings=%s cash=%s net_exposure=%s\n",
		usd(m.TotalCollateral), usd(m.TotalBorrowed), m.LTVBps,
		usd(m.AITHoldings), usd(m.CashBalance), usd(m.NetExposure))
}

// usd renders micro-units with six decimals.
func usd(micro uint64) string {
	return fmt.Sprintf("%d.%06d", micro/ledger.Scale, micro%ledger.Scale)
}

func must(step string, err error) {
	if err != nil {
		log.Fatalf("%s: %v", step, err)
	}
}
