// Package compliance tracks investor verification tiers, investment caps and
// cumulative committed amounts. One Registry instance owns all profiles;
// mutations happen only through the Issuer and Vault capabilities.
package compliance

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/VeritasFi/aegis/internal/ledger"
	"github.com/VeritasFi/aegis/internal/pkg/apperrors"
	"github.com/VeritasFi/aegis/internal/pkg/metrics"
)

type Tier uint8

const (
	TierNone Tier = iota
	TierRetail
	TierAccredited
	TierQualified
	TierInstitutional
)

func (t Tier) String() string {
	switch t {
	case TierRetail:
		return "retail"
	case TierAccredited:
		return "accredited"
	case TierQualified:
		return "qualified"
	case TierInstitutional:
		return "institutional"
	default:
		return "none"
	}
}

// ParseTier maps the wire name back to a tier. Unknown names map to TierNone.
func ParseTier(s string) Tier {
	switch s {
	case "retail":
		return TierRetail
	case "accredited":
		return TierAccredited
	case "qualified":
		return TierQualified
	case "institutional":
		return TierInstitutional
	default:
		return TierNone
	}
}

// DefaultTierCaps is the issuance cap table in micro-units.
var DefaultTierCaps = map[Tier]uint64{
	TierRetail:        10_000 * ledger.Scale,
	TierAccredited:    1_000_000 * ledger.Scale,
	TierQualified:     10_000_000 * ledger.Scale,
	TierInstitutional: 100_000_000 * ledger.Scale,
}

// Reason codes returned by CanInvest, in check priority order.
type Reason string

const (
	ReasonOK          Reason = "OK"
	ReasonNoProfile   Reason = "NO_PROFILE"
	ReasonRevoked     Reason = "REVOKED"
	ReasonExpired     Reason = "EXPIRED"
	ReasonCapExceeded Reason = "CAP_EXCEEDED"
)

var (
	ErrNoProfile    = apperrors.New(apperrors.ErrNoProfile, "investor has no compliance profile", nil)
	ErrRevoked      = apperrors.New(apperrors.ErrProfileRevoked, "compliance profile is revoked", nil)
	ErrExpired      = apperrors.New(apperrors.ErrProfileExpired, "compliance profile has expired", nil)
	ErrCapExceeded  = apperrors.New(apperrors.ErrCapExceeded, "investment would exceed the tier cap", nil)
	ErrNotAnUpgrade = apperrors.New(apperrors.ErrNotAnUpgrade, "new tier must be strictly higher", nil)
	ErrInvalidTier  = apperrors.NewInvalidRequest("tier must be a known tier other than none")
)

// Profile is one investor's compliance record. Committed never decreases;
// Revoked is one-way.
type Profile struct {
	Investor     common.Address `json:"investor"`
	Tier         Tier           `json:"tier"`
	Cap          uint64         `json:"cap"`
	Committed    uint64         `json:"committed"`
	IssuedAt     time.Time      `json:"issued_at"`
	ExpiresAt    time.Time      `json:"expires_at"`
	Revoked      bool           `json:"revoked"`
	Jurisdiction string         `json:"jurisdiction"`
	IdentityHash common.Hash    `json:"identity_hash"`
}

// Valid reports whether the profile currently grants compliance status.
func (p *Profile) Valid(now time.Time) bool {
	return p.Tier != TierNone && !p.Revoked && !now.After(p.ExpiresAt)
}

type Registry struct {
	mu       sync.Mutex
	tierCaps map[Tier]uint64
	profiles map[common.Address]*Profile
	events   ledger.EventSink
	now      func() time.Time
}

// NewRegistry builds the registry and hands out its two capabilities.
// Issue/UpgradeTier/Revoke require the Issuer handle; RecordInvestment
// requires the Vault handle. Reads are open on the registry itself.
func NewRegistry(tierCaps map[Tier]uint64, events ledger.EventSink) (*Registry, Issuer, Vault) {
	if tierCaps == nil {
		tierCaps = DefaultTierCaps
	}
	caps := make(map[Tier]uint64, len(tierCaps))
	for t, c := range tierCaps {
		caps[t] = c
	}
	r := &Registry{
		tierCaps: caps,
		profiles: make(map[common.Address]*Profile),
		events:   events,
		now:      time.Now,
	}
	return r, Issuer{r: r}, Vault{r: r}
}

// Issuer is the capability for profile issuance, upgrades and revocation.
type Issuer struct {
	r *Registry
}

// Vault is the capability for recording committed investments.
type Vault struct {
	r *Registry
}

// Issue creates or replaces the investor's profile. The cap comes from the
// tier table; committed resets to zero even when replacing a prior profile.
func (i Issuer) Issue(investor common.Address, tier Tier, validityDays int, jurisdiction string, identityHash common.Hash) (Profile, error) {
	if tier == TierNone {
		return Profile{}, ErrInvalidTier
	}
	i.r.mu.Lock()
	defer i.r.mu.Unlock()

	cap, ok := i.r.tierCaps[tier]
	if !ok {
		return Profile{}, ErrInvalidTier
	}

	now := i.r.now().UTC()
	p := &Profile{
		Investor:     investor,
		Tier:         tier,
		Cap:          cap,
		Committed:    0,
		IssuedAt:     now,
		ExpiresAt:    now.AddDate(0, 0, validityDays),
		Jurisdiction: jurisdiction,
		IdentityHash: identityHash,
	}

	var old map[string]interface{}
	if prev, ok := i.r.profiles[investor]; ok {
		old = map[string]interface{}{"tier": prev.Tier.String(), "cap": prev.Cap, "committed": prev.Committed}
	}
	i.r.profiles[investor] = p

	ledger.Emit(i.r.events, "compliance", "issue", "issuer", investor.Hex(), old, map[string]interface{}{
		"tier": tier.String(), "cap": cap, "expires_at": p.ExpiresAt,
	})
	metrics.LedgerOpsTotal.WithLabelValues("compliance", "issue", "ok").Inc()
	return *p, nil
}

// CanInvest is a pure read. It reports the first failing reason in priority
// order: no-profile, revoked, expired, cap-exceeded.
func (r *Registry) CanInvest(investor common.Address, amount uint64) (bool, Reason) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[investor]
	switch {
	case !ok || p.Tier == TierNone:
		return false, ReasonNoProfile
	case p.Revoked:
		return false, ReasonRevoked
	case r.now().After(p.ExpiresAt):
		return false, ReasonExpired
	case amount > p.Cap-p.Committed:
		return false, ReasonCapExceeded
	}
	return true, ReasonOK
}

// RecordInvestment adds amount to the investor's committed total. The check
// order matches CanInvest; on any failure state is unchanged.
func (v Vault) RecordInvestment(investor common.Address, amount uint64) error {
	v.r.mu.Lock()
	defer v.r.mu.Unlock()

	p, ok := v.r.profiles[investor]
	if !ok || p.Tier == TierNone {
		return ErrNoProfile
	}
	if p.Revoked {
		return ErrRevoked
	}
	if v.r.now().After(p.ExpiresAt) {
		return ErrExpired
	}
	// amount > cap-committed avoids the committed+amount overflow case
	if amount > p.Cap-p.Committed {
		metrics.RiskRejects.WithLabelValues("cap_exceeded").Inc()
		return ErrCapExceeded
	}

	old := p.Committed
	p.Committed += amount

	ledger.Emit(v.r.events, "compliance", "record_investment", "vault", investor.Hex(),
		map[string]interface{}{"committed": old},
		map[string]interface{}{"committed": p.Committed, "amount": amount})
	metrics.LedgerOpsTotal.WithLabelValues("compliance", "record_investment", "ok").Inc()
	return nil
}

// UpgradeTier moves the investor to a strictly higher tier. The cap resets to
// the new tier's table value; committed is preserved.
func (i Issuer) UpgradeTier(investor common.Address, newTier Tier) error {
	i.r.mu.Lock()
	defer i.r.mu.Unlock()

	p, ok := i.r.profiles[investor]
	if !ok {
		return ErrNoProfile
	}
	if newTier <= p.Tier {
		metrics.RiskRejects.WithLabelValues("not_an_upgrade").Inc()
		return ErrNotAnUpgrade
	}
	cap, ok := i.r.tierCaps[newTier]
	if !ok {
		return ErrInvalidTier
	}

	oldTier, oldCap := p.Tier, p.Cap
	p.Tier = newTier
	p.Cap = cap

	ledger.Emit(i.r.events, "compliance", "upgrade_tier", "issuer", investor.Hex(),
		map[string]interface{}{"tier": oldTier.String(), "cap": oldCap},
		map[string]interface{}{"tier": newTier.String(), "cap": cap})
	metrics.LedgerOpsTotal.WithLabelValues("compliance", "upgrade_tier", "ok").Inc()
	return nil
}

// Revoke permanently disables the profile. Revoking twice is a no-op.
func (i Issuer) Revoke(investor common.Address, reason string) error {
	i.r.mu.Lock()
	defer i.r.mu.Unlock()

	p, ok := i.r.profiles[investor]
	if !ok {
		return ErrNoProfile
	}
	if p.Revoked {
		return nil
	}
	p.Revoked = true

	ledger.Emit(i.r.events, "compliance", "revoke", "issuer", investor.Hex(),
		map[string]interface{}{"revoked": false},
		map[string]interface{}{"revoked": true, "reason": reason})
	metrics.LedgerOpsTotal.WithLabelValues("compliance", "revoke", "ok").Inc()
	return nil
}

// Profile returns a copy of the investor's profile.
func (r *Registry) Profile(investor common.Address) (Profile, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[investor]
	if !ok {
		return Profile{}, false
	}
	return *p, true
}

// RemainingCapacity returns cap minus committed, or zero without a profile.
func (r *Registry) RemainingCapacity(investor common.Address) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[investor]
	if !ok {
		return 0
	}
	return p.Cap - p.Committed
}

// Investors lists every registered address, for keeper compliance scans.
func (r *Registry) Investors() []common.Address {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]common.Address, 0, len(r.profiles))
	for addr := range r.profiles {
		out = append(out, addr)
	}
	return out
}
