// Package lending is the boundary to the external lending protocol. The
// leverage ledger calls it synchronously and trusts returned values verbatim.
package lending

import (
	"context"
	"math"

	"github.com/ethereum/go-ethereum/common"
)

// HealthFactorInfinity is reported when there is no debt.
const HealthFactorInfinity = uint64(math.MaxUint64)

// AccountLiquidity is the protocol's view of one account. Values are
// micro-unit scaled; HealthFactor 1.0 == 1_000_000.
type AccountLiquidity struct {
	CollateralValue uint64 `json:"collateral_value"`
	BorrowValue     uint64 `json:"borrow_value"`
	HealthFactor    uint64 `json:"health_factor"`
}

// Protocol is the supply/borrow/repay/withdraw surface of the lending market.
// Implementations must be safe for concurrent use.
type Protocol interface {
	Supply(ctx context.Context, asset string, amount uint64) error
	Borrow(ctx context.Context, asset string, amount uint64) error
	Repay(ctx context.Context, asset string, amount uint64) error
	Withdraw(ctx context.Context, asset string, amount uint64) error
	AccountLiquidity(ctx context.Context, account common.Address) (AccountLiquidity, error)
}
