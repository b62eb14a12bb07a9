package compliance

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VeritasFi/aegis/internal/ledger"
)

var investorA = common.HexToAddress("0x00000000000000000000000000000000000000a1")

func newTestRegistry(t *testing.T) (*Registry, Issuer, Vault) {
	t.Helper()
	r, issuer, vault := NewRegistry(nil, ledger.NopSink{})
	return r, issuer, vault
}

func TestIssueRequiresRealTier(t *testing.T) {
	_, issuer, _ := newTestRegistry(t)

	_, err := issuer.Issue(investorA, TierNone, 365, "US", common.Hash{})
	assert.ErrorIs(t, err, ErrInvalidTier)
}

func TestCapInvariant(t *testing.T) {
	r, issuer, vault := newTestRegistry(t)

	p, err := issuer.Issue(investorA, TierRetail, 365, "US", common.Hash{})
	require.NoError(t, err)
	require.Equal(t, 10_000*ledger.Scale, p.Cap)

	require.NoError(t, vault.RecordInvestment(investorA, 5_000*ledger.Scale))
	assert.Equal(t, 5_000*ledger.Scale, r.RemainingCapacity(investorA))

	// 6,000 USDC more would breach the 10,000 cap
	err = vault.RecordInvestment(investorA, 6_000*ledger.Scale)
	assert.ErrorIs(t, err, ErrCapExceeded)
	assert.Equal(t, 5_000*ledger.Scale, r.RemainingCapacity(investorA), "failed call must not mutate state")

	// exactly the remaining capacity is fine
	require.NoError(t, vault.RecordInvestment(investorA, 5_000*ledger.Scale))
	assert.Equal(t, uint64(0), r.RemainingCapacity(investorA))

	got, ok := r.Profile(investorA)
	require.True(t, ok)
	assert.LessOrEqual(t, got.Committed, got.Cap)
}

func TestCanInvestReasonPriority(t *testing.T) {
	r, issuer, vault := newTestRegistry(t)

	ok, reason := r.CanInvest(investorA, 1)
	assert.False(t, ok)
	assert.Equal(t, ReasonNoProfile, reason)

	_, err := issuer.Issue(investorA, TierRetail, 30, "US", common.Hash{})
	require.NoError(t, err)

	ok, reason = r.CanInvest(investorA, 1*ledger.Scale)
	assert.True(t, ok)
	assert.Equal(t, ReasonOK, reason)

	ok, reason = r.CanInvest(investorA, 10_001*ledger.Scale)
	assert.False(t, ok)
	assert.Equal(t, ReasonCapExceeded, reason)

	// expire the profile: expiry outranks cap in the reason ordering
	r.now = func() time.Time { return time.Now().AddDate(0, 0, 31) }
	ok, reason = r.CanInvest(investorA, 10_001*ledger.Scale)
	assert.False(t, ok)
	assert.Equal(t, ReasonExpired, reason)
	assert.ErrorIs(t, vault.RecordInvestment(investorA, 1), ErrExpired)

	// revocation outranks expiry
	r.now = time.Now
	require.NoError(t, issuer.Revoke(investorA, "sanctions hit"))
	r.now = func() time.Time { return time.Now().AddDate(0, 0, 31) }
	ok, reason = r.CanInvest(investorA, 1)
	assert.False(t, ok)
	assert.Equal(t, ReasonRevoked, reason)
}

func TestTierMonotonicity(t *testing.T) {
	r, issuer, vault := newTestRegistry(t)

	_, err := issuer.Issue(investorA, TierAccredited, 365, "DE", common.Hash{})
	require.NoError(t, err)
	require.NoError(t, vault.RecordInvestment(investorA, 250_000*ledger.Scale))

	assert.ErrorIs(t, issuer.UpgradeTier(investorA, TierAccredited), ErrNotAnUpgrade)
	assert.ErrorIs(t, issuer.UpgradeTier(investorA, TierRetail), ErrNotAnUpgrade)

	require.NoError(t, issuer.UpgradeTier(investorA, TierQualified))
	p, ok := r.Profile(investorA)
	require.True(t, ok)
	assert.Equal(t, TierQualified, p.Tier)
	assert.Equal(t, 10_000_000*ledger.Scale, p.Cap)
	// committed survives the upgrade; only the cap jumps
	assert.Equal(t, 250_000*ledger.Scale, p.Committed)
}

func TestReissueResetsCommitted(t *testing.T) {
	r, issuer, vault := newTestRegistry(t)

	_, err := issuer.Issue(investorA, TierRetail, 365, "US", common.Hash{})
	require.NoError(t, err)
	require.NoError(t, vault.RecordInvestment(investorA, 9_000*ledger.Scale))

	_, err = issuer.Issue(investorA, TierRetail, 365, "US", common.Hash{})
	require.NoError(t, err)

	p, ok := r.Profile(investorA)
	require.True(t, ok)
	assert.Equal(t, uint64(0), p.Committed)
}

func TestRevokeIsIdempotent(t *testing.T) {
	r, issuer, _ := newTestRegistry(t)

	assert.ErrorIs(t, issuer.Revoke(investorA, "unknown"), ErrNoProfile)

	_, err := issuer.Issue(investorA, TierInstitutional, 365, "SG", common.Hash{})
	require.NoError(t, err)

	require.NoError(t, issuer.Revoke(investorA, "compliance review"))
	require.NoError(t, issuer.Revoke(investorA, "compliance review"))

	p, _ := r.Profile(investorA)
	assert.True(t, p.Revoked)
}
