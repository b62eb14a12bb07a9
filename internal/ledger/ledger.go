// Package ledger holds the numeric conventions and event plumbing shared by
// the three accounting ledgers. All currency amounts are unsigned integers in
// micro-units (Scale = 1e6); ratios are basis points. No floating point.
package ledger

import (
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/VeritasFi/aegis/internal/model"
)

const (
	// Scale is the fixed currency scale: 1.0 == 1_000_000 micro-units.
	Scale uint64 = 1_000_000

	// MaxBPS is 100% in basis points.
	MaxBPS uint64 = 10_000
)

// MulDiv returns a*b/c with truncating division, widening through big.Int so
// face-value-sized operands cannot overflow uint64 mid-computation. c must be
// non-zero; callers guard the zero-denominator cases explicitly.
func MulDiv(a, b, c uint64) uint64 {
	num := new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
	num.Quo(num, new(big.Int).SetUint64(c))
	return num.Uint64()
}

// EventSink receives one record per successful state transition.
type EventSink interface {
	Record(e *model.Event)
}

// NopSink discards events. Used by tests and the simulator.
type NopSink struct{}

func (NopSink) Record(*model.Event) {}

// Emit builds and records an event. Sink may be nil.
func Emit(sink EventSink, ledgerName, op, actor, entity string, old, new map[string]interface{}) {
	if sink == nil {
		return
	}
	sink.Record(&model.Event{
		ID:        uuid.NewString(),
		Ledger:    ledgerName,
		Op:        op,
		Actor:     actor,
		Entity:    entity,
		Old:       old,
		New:       new,
		CreatedAt: time.Now().UTC(),
	})
}
