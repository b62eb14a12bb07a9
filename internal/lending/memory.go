package lending

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/VeritasFi/aegis/internal/ledger"
)

// Memory is a deterministic in-memory lending market for tests, the
// simulator and default server wiring. One instance models one account; the
// collateral price and liquidation threshold are settable so tests can push
// the health factor across the floor.
type Memory struct {
	mu sync.Mutex

	collateralAsset         string
	collateralPrice         uint64 // micro-units per collateral unit
	liquidationThresholdBps uint64

	supplied map[string]uint64
	borrowed map[string]uint64

	failNext map[string]error
}

func NewMemory(collateralAsset string, collateralPrice, liquidationThresholdBps uint64) *Memory {
	return &Memory{
		collateralAsset:         collateralAsset,
		collateralPrice:         collateralPrice,
		liquidationThresholdBps: liquidationThresholdBps,
		supplied:                make(map[string]uint64),
		borrowed:                make(map[string]uint64),
		failNext:                make(map[string]error),
	}
}

// SetCollateralPrice moves the mark price, shifting the health factor.
func (m *Memory) SetCollateralPrice(price uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collateralPrice = price
}

// FailNext arms a one-shot failure for the named op (supply, borrow, repay,
// withdraw, liquidity).
func (m *Memory) FailNext(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext[op] = err
}

func (m *Memory) takeFailure(op string) error {
	if err, ok := m.failNext[op]; ok {
		delete(m.failNext, op)
		return err
	}
	return nil
}

func (m *Memory) Supply(ctx context.Context, asset string, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure("supply"); err != nil {
		return err
	}
	m.supplied[asset] += amount
	return nil
}

func (m *Memory) Borrow(ctx context.Context, asset string, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure("borrow"); err != nil {
		return err
	}
	m.borrowed[asset] += amount
	return nil
}

func (m *Memory) Repay(ctx context.Context, asset string, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure("repay"); err != nil {
		return err
	}
	if m.borrowed[asset] < amount {
		return fmt.Errorf("repay exceeds outstanding borrow of %s", asset)
	}
	m.borrowed[asset] -= amount
	return nil
}

func (m *Memory) Withdraw(ctx context.Context, asset string, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure("withdraw"); err != nil {
		return err
	}
	if m.supplied[asset] < amount {
		return fmt.Errorf("withdraw exceeds supplied %s", asset)
	}
	m.supplied[asset] -= amount
	return nil
}

// AccountLiquidity prices supplied collateral at the mark price and reports
// healthFactor = collateralValue * liquidationThreshold / borrowValue.
func (m *Memory) AccountLiquidity(ctx context.Context, account common.Address) (AccountLiquidity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure("liquidity"); err != nil {
		return AccountLiquidity{}, err
	}

	collateralValue := ledger.MulDiv(m.supplied[m.collateralAsset], m.collateralPrice, ledger.Scale)

	var borrowValue uint64
	for _, amt := range m.borrowed {
		borrowValue += amt
	}

	hf := HealthFactorInfinity
	if borrowValue > 0 {
		adjusted := ledger.MulDiv(collateralValue, m.liquidationThresholdBps, ledger.MaxBPS)
		hf = ledger.MulDiv(adjusted, ledger.Scale, borrowValue)
	}

	return AccountLiquidity{
		CollateralValue: collateralValue,
		BorrowValue:     borrowValue,
		HealthFactor:    hf,
	}, nil
}
