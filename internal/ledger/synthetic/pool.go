// Package synthetic is the invoice-backed token ledger: per-pool claims
// bookkeeping (face value, realized yield, defaults, NAV) plus a fungible
// token ledger with a destination transfer allowlist. Pools live in one
// Ledger arena keyed by pool ID; mutations are split across the Issuer,
// Oracle and Admin capabilities.
package synthetic

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/VeritasFi/aegis/internal/ledger"
	"github.com/VeritasFi/aegis/internal/pkg/apperrors"
	"github.com/VeritasFi/aegis/internal/pkg/metrics"
)

var (
	ErrPoolNotFound          = apperrors.New(apperrors.ErrPoolNotFound, "pool is not initialized", nil)
	ErrAlreadyInitialized    = apperrors.New(apperrors.ErrAlreadyInitialized, "pool is already initialized", nil)
	ErrNotWhitelisted        = apperrors.New(apperrors.ErrNotWhitelisted, "destination is not on the transfer allowlist", nil)
	ErrInsufficientBalance   = apperrors.New(apperrors.ErrInsufficientBalance, "insufficient token balance", nil)
	ErrInsufficientAllowance = apperrors.New(apperrors.ErrInsufficientAllowance, "insufficient allowance", nil)
	ErrInsufficientFaceValue = apperrors.New(apperrors.ErrInsufficientFaceValue, "default amount exceeds pool face value", nil)
)

// PoolInfo is a read-only snapshot of one pool's accounting state.
type PoolInfo struct {
	ID                   string `json:"id"`
	TotalFaceValue       uint64 `json:"total_face_value"`
	NumberOfInvoices     uint64 `json:"number_of_invoices"`
	WeightedMaturityDays uint64 `json:"weighted_maturity_days"`
	ExpectedYieldBps     uint64 `json:"expected_yield_bps"`
	RealizedYield        uint64 `json:"realized_yield"`
	DefaultRateBps       uint64 `json:"default_rate_bps"`
	NAVPerToken          uint64 `json:"nav_per_token"`
	TotalSupply          uint64 `json:"total_supply"`
}

type pool struct {
	id                   string
	totalFaceValue       uint64
	numberOfInvoices     uint64
	weightedMaturityDays uint64
	expectedYieldBps     uint64
	realizedYield        uint64
	defaultRateBps       uint64
	navPerToken          uint64

	totalSupply uint64
	balances    map[common.Address]uint64
	allowances  map[common.Address]map[common.Address]uint64
	whitelist   map[common.Address]bool
}

func (p *pool) info() PoolInfo {
	return PoolInfo{
		ID:                   p.id,
		TotalFaceValue:       p.totalFaceValue,
		NumberOfInvoices:     p.numberOfInvoices,
		WeightedMaturityDays: p.weightedMaturityDays,
		ExpectedYieldBps:     p.expectedYieldBps,
		RealizedYield:        p.realizedYield,
		DefaultRateBps:       p.defaultRateBps,
		NAVPerToken:          p.navPerToken,
		TotalSupply:          p.totalSupply,
	}
}

type Ledger struct {
	mu     sync.Mutex
	pools  map[string]*pool
	events ledger.EventSink
	now    func() time.Time
}

// New builds the ledger arena and hands out its three capabilities.
func New(events ledger.EventSink) (*Ledger, Issuer, Oracle, Admin) {
	l := &Ledger{
		pools:  make(map[string]*pool),
		events: events,
		now:    time.Now,
	}
	return l, Issuer{l: l}, Oracle{l: l}, Admin{l: l}
}

// Issuer gates pool initialization and supply changes.
type Issuer struct {
	l *Ledger
}

// Oracle gates NAV, cash-flow and default updates.
type Oracle struct {
	l *Ledger
}

// Admin gates the transfer allowlist.
type Admin struct {
	l *Ledger
}

// InitializePool registers pool metadata and prices the token at 1.0. The
// transition is one-way: re-initializing an active pool fails instead of
// silently resetting realized-yield tracking.
func (i Issuer) InitializePool(id string, faceValue, numberOfInvoices, weightedMaturityDays, expectedYieldBps uint64) (PoolInfo, error) {
	if id == "" {
		return PoolInfo{}, apperrors.NewInvalidRequest("pool id is required")
	}
	i.l.mu.Lock()
	defer i.l.mu.Unlock()

	if _, exists := i.l.pools[id]; exists {
		return PoolInfo{}, ErrAlreadyInitialized
	}
	p := &pool{
		id:                   id,
		totalFaceValue:       faceValue,
		numberOfInvoices:     numberOfInvoices,
		weightedMaturityDays: weightedMaturityDays,
		expectedYieldBps:     expectedYieldBps,
		navPerToken:          ledger.Scale,
		balances:             make(map[common.Address]uint64),
		allowances:           make(map[common.Address]map[common.Address]uint64),
		whitelist:            make(map[common.Address]bool),
	}
	i.l.pools[id] = p

	ledger.Emit(i.l.events, "synthetic", "initialize_pool", "issuer", id, nil, map[string]interface{}{
		"total_face_value": faceValue, "number_of_invoices": numberOfInvoices,
		"weighted_maturity_days": weightedMaturityDays, "expected_yield_bps": expectedYieldBps,
	})
	metrics.LedgerOpsTotal.WithLabelValues("synthetic", "initialize_pool", "ok").Inc()
	metrics.NAVPerToken.WithLabelValues(id).Set(float64(p.navPerToken))
	return p.info(), nil
}

// UpdateNAV is the administrative direct override of navPerToken.
func (o Oracle) UpdateNAV(poolID string, newNAV uint64) error {
	o.l.mu.Lock()
	defer o.l.mu.Unlock()

	p, ok := o.l.pools[poolID]
	if !ok {
		return ErrPoolNotFound
	}
	old := p.navPerToken
	p.navPerToken = newNAV

	ledger.Emit(o.l.events, "synthetic", "update_nav", "oracle", poolID,
		map[string]interface{}{"nav_per_token": old},
		map[string]interface{}{"nav_per_token": newNAV, "timestamp": o.l.now().UTC()})
	metrics.LedgerOpsTotal.WithLabelValues("synthetic", "update_nav", "ok").Inc()
	metrics.NAVPerToken.WithLabelValues(poolID).Set(float64(newNAV))
	return nil
}

// RecordCashFlow books collected cash into realized yield and reprices the
// token at (faceValue + realizedYield) / totalSupply. With zero supply the
// recompute is skipped and NAV stays unchanged.
func (o Oracle) RecordCashFlow(poolID string, amount, invoicesPaid uint64) error {
	o.l.mu.Lock()
	defer o.l.mu.Unlock()

	p, ok := o.l.pools[poolID]
	if !ok {
		return ErrPoolNotFound
	}

	oldYield, oldNAV := p.realizedYield, p.navPerToken
	p.realizedYield += amount
	if p.totalSupply > 0 {
		p.navPerToken = ledger.MulDiv(p.totalFaceValue+p.realizedYield, ledger.Scale, p.totalSupply)
	}

	ledger.Emit(o.l.events, "synthetic", "record_cash_flow", "oracle", poolID,
		map[string]interface{}{"realized_yield": oldYield, "nav_per_token": oldNAV},
		map[string]interface{}{"realized_yield": p.realizedYield, "nav_per_token": p.navPerToken,
			"amount": amount, "invoices_paid": invoicesPaid})
	metrics.LedgerOpsTotal.WithLabelValues("synthetic", "record_cash_flow", "ok").Inc()
	metrics.NAVPerToken.WithLabelValues(poolID).Set(float64(p.navPerToken))
	return nil
}

// RecordDefault writes off defaulted face value. The default rate is computed
// against the face value before the write-off; NAV is repriced from the new
// face value alone (realized yield is already cash, not a claim).
func (o Oracle) RecordDefault(poolID string, amount uint64, invoiceID string) error {
	o.l.mu.Lock()
	defer o.l.mu.Unlock()

	p, ok := o.l.pools[poolID]
	if !ok {
		return ErrPoolNotFound
	}
	if amount > p.totalFaceValue {
		metrics.RiskRejects.WithLabelValues("insufficient_face_value").Inc()
		return ErrInsufficientFaceValue
	}

	before := p.totalFaceValue
	oldNAV := p.navPerToken
	p.totalFaceValue -= amount
	if before > 0 {
		p.defaultRateBps = ledger.MulDiv(amount, ledger.MaxBPS, before)
	} else {
		p.defaultRateBps = 0
	}
	if p.totalSupply > 0 {
		p.navPerToken = ledger.MulDiv(p.totalFaceValue, ledger.Scale, p.totalSupply)
	}

	ledger.Emit(o.l.events, "synthetic", "record_default", "oracle", poolID,
		map[string]interface{}{"total_face_value": before, "nav_per_token": oldNAV},
		map[string]interface{}{"total_face_value": p.totalFaceValue, "nav_per_token": p.navPerToken,
			"default_rate_bps": p.defaultRateBps, "amount": amount, "invoice_id": invoiceID})
	metrics.LedgerOpsTotal.WithLabelValues("synthetic", "record_default", "ok").Inc()
	metrics.NAVPerToken.WithLabelValues(poolID).Set(float64(p.navPerToken))
	return nil
}

// Info returns a snapshot of the pool.
func (l *Ledger) Info(poolID string) (PoolInfo, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.pools[poolID]
	if !ok {
		return PoolInfo{}, false
	}
	return p.info(), true
}

// NAVPerToken reads the current price per token in micro-units.
func (l *Ledger) NAVPerToken(poolID string) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.pools[poolID]
	if !ok {
		return 0, ErrPoolNotFound
	}
	return p.navPerToken, nil
}

// Pools lists every initialized pool ID.
func (l *Ledger) Pools() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.pools))
	for id := range l.pools {
		out = append(out, id)
	}
	return out
}
