package synthetic

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/VeritasFi/aegis/internal/ledger"
	"github.com/VeritasFi/aegis/internal/pkg/metrics"
)

// Token operations. Only destinations are checked against the allowlist;
// sources are exempt so holders can always exit toward burn sinks.

// Mint creates supply for a whitelisted destination.
func (i Issuer) Mint(poolID string, to common.Address, amount uint64) error {
	i.l.mu.Lock()
	defer i.l.mu.Unlock()

	p, ok := i.l.pools[poolID]
	if !ok {
		return ErrPoolNotFound
	}
	if !p.whitelist[to] {
		metrics.RiskRejects.WithLabelValues("not_whitelisted").Inc()
		return ErrNotWhitelisted
	}
	p.totalSupply += amount
	p.balances[to] += amount

	ledger.Emit(i.l.events, "synthetic", "mint", "issuer", poolID, nil, map[string]interface{}{
		"to": to.Hex(), "amount": amount, "total_supply": p.totalSupply,
	})
	metrics.LedgerOpsTotal.WithLabelValues("synthetic", "mint", "ok").Inc()
	return nil
}

// Burn destroys supply from the holder's balance.
func (i Issuer) Burn(poolID string, from common.Address, amount uint64) error {
	i.l.mu.Lock()
	defer i.l.mu.Unlock()

	p, ok := i.l.pools[poolID]
	if !ok {
		return ErrPoolNotFound
	}
	if p.balances[from] < amount {
		return ErrInsufficientBalance
	}
	p.balances[from] -= amount
	p.totalSupply -= amount

	ledger.Emit(i.l.events, "synthetic", "burn", "issuer", poolID, nil, map[string]interface{}{
		"from": from.Hex(), "amount": amount, "total_supply": p.totalSupply,
	})
	metrics.LedgerOpsTotal.WithLabelValues("synthetic", "burn", "ok").Inc()
	return nil
}

// Transfer moves tokens between holders. The destination must be on the
// allowlist; failing that, balances are untouched.
func (l *Ledger) Transfer(poolID string, from, to common.Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.pools[poolID]
	if !ok {
		return ErrPoolNotFound
	}
	return l.transfer(p, poolID, from, to, amount)
}

// Approve sets the spender's allowance over the owner's balance.
func (l *Ledger) Approve(poolID string, owner, spender common.Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.pools[poolID]
	if !ok {
		return ErrPoolNotFound
	}
	if p.allowances[owner] == nil {
		p.allowances[owner] = make(map[common.Address]uint64)
	}
	p.allowances[owner][spender] = amount

	ledger.Emit(l.events, "synthetic", "approve", owner.Hex(), poolID, nil, map[string]interface{}{
		"spender": spender.Hex(), "amount": amount,
	})
	return nil
}

// TransferFrom spends the caller's allowance to move the owner's tokens.
func (l *Ledger) TransferFrom(poolID string, spender, from, to common.Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.pools[poolID]
	if !ok {
		return ErrPoolNotFound
	}
	allowed := uint64(0)
	if p.allowances[from] != nil {
		allowed = p.allowances[from][spender]
	}
	if allowed < amount {
		return ErrInsufficientAllowance
	}
	if err := l.transfer(p, poolID, from, to, amount); err != nil {
		return err
	}
	p.allowances[from][spender] = allowed - amount
	return nil
}

// transfer requires l.mu held.
func (l *Ledger) transfer(p *pool, poolID string, from, to common.Address, amount uint64) error {
	if !p.whitelist[to] {
		metrics.RiskRejects.WithLabelValues("not_whitelisted").Inc()
		return ErrNotWhitelisted
	}
	if p.balances[from] < amount {
		return ErrInsufficientBalance
	}
	p.balances[from] -= amount
	p.balances[to] += amount

	ledger.Emit(l.events, "synthetic", "transfer", from.Hex(), poolID, nil, map[string]interface{}{
		"to": to.Hex(), "amount": amount,
	})
	metrics.LedgerOpsTotal.WithLabelValues("synthetic", "transfer", "ok").Inc()
	return nil
}

// SetWhitelist toggles allowlist membership. Idempotent.
func (a Admin) SetWhitelist(poolID string, account common.Address, status bool) error {
	a.l.mu.Lock()
	defer a.l.mu.Unlock()

	p, ok := a.l.pools[poolID]
	if !ok {
		return ErrPoolNotFound
	}
	old := p.whitelist[account]
	p.whitelist[account] = status
	if old == status {
		return nil
	}

	ledger.Emit(a.l.events, "synthetic", "set_whitelist", "admin", poolID,
		map[string]interface{}{"account": account.Hex(), "status": old},
		map[string]interface{}{"account": account.Hex(), "status": status})
	return nil
}

// BalanceOf reads the holder's balance; zero for unknown pools or holders.
func (l *Ledger) BalanceOf(poolID string, account common.Address) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.pools[poolID]
	if !ok {
		return 0
	}
	return p.balances[account]
}

// TotalSupply reads the pool's outstanding supply.
func (l *Ledger) TotalSupply(poolID string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.pools[poolID]
	if !ok {
		return 0
	}
	return p.totalSupply
}

// Allowance reads the spender's remaining allowance from the owner.
func (l *Ledger) Allowance(poolID string, owner, spender common.Address) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.pools[poolID]
	if !ok || p.allowances[owner] == nil {
		return 0
	}
	return p.allowances[owner][spender]
}

// Whitelisted reads allowlist membership.
func (l *Ledger) Whitelisted(poolID string, account common.Address) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.pools[poolID]
	if !ok {
		return false
	}
	return p.whitelist[account]
}
