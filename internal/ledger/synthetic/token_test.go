package synthetic

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VeritasFi/aegis/internal/ledger"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	carol = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

func TestWhitelistGatingRoundTrip(t *testing.T) {
	l, issuer, _, admin := newActivePool(t, 1_000*ledger.Scale)

	// mint to a non-whitelisted destination fails and mints nothing
	err := issuer.Mint("pool-1", alice, 100*ledger.Scale)
	assert.ErrorIs(t, err, ErrNotWhitelisted)
	assert.Equal(t, uint64(0), l.TotalSupply("pool-1"))

	require.NoError(t, admin.SetWhitelist("pool-1", alice, true))
	require.NoError(t, issuer.Mint("pool-1", alice, 100*ledger.Scale))
	assert.Equal(t, 100*ledger.Scale, l.BalanceOf("pool-1", alice))

	// transfer to a non-member fails, balances unchanged
	err = l.Transfer("pool-1", alice, bob, 40*ledger.Scale)
	assert.ErrorIs(t, err, ErrNotWhitelisted)
	assert.Equal(t, 100*ledger.Scale, l.BalanceOf("pool-1", alice))
	assert.Equal(t, uint64(0), l.BalanceOf("pool-1", bob))

	// whitelisting then retrying the identical call succeeds exactly
	require.NoError(t, admin.SetWhitelist("pool-1", bob, true))
	require.NoError(t, l.Transfer("pool-1", alice, bob, 40*ledger.Scale))
	assert.Equal(t, 60*ledger.Scale, l.BalanceOf("pool-1", alice))
	assert.Equal(t, 40*ledger.Scale, l.BalanceOf("pool-1", bob))
}

func TestSourceIsExemptFromWhitelist(t *testing.T) {
	l, issuer, _, admin := newActivePool(t, 1_000*ledger.Scale)
	require.NoError(t, admin.SetWhitelist("pool-1", alice, true))
	require.NoError(t, issuer.Mint("pool-1", alice, 10*ledger.Scale))

	// de-listing the holder must not trap the balance
	require.NoError(t, admin.SetWhitelist("pool-1", alice, false))
	require.NoError(t, admin.SetWhitelist("pool-1", bob, true))
	require.NoError(t, l.Transfer("pool-1", alice, bob, 10*ledger.Scale))
	assert.Equal(t, 10*ledger.Scale, l.BalanceOf("pool-1", bob))
}

func TestBurnRequiresBalance(t *testing.T) {
	l, issuer, _, admin := newActivePool(t, 1_000*ledger.Scale)
	require.NoError(t, admin.SetWhitelist("pool-1", alice, true))
	require.NoError(t, issuer.Mint("pool-1", alice, 5*ledger.Scale))

	assert.ErrorIs(t, issuer.Burn("pool-1", alice, 6*ledger.Scale), ErrInsufficientBalance)

	require.NoError(t, issuer.Burn("pool-1", alice, 5*ledger.Scale))
	assert.Equal(t, uint64(0), l.TotalSupply("pool-1"))
}

func TestTransferFromSpendsAllowance(t *testing.T) {
	l, issuer, _, admin := newActivePool(t, 1_000*ledger.Scale)
	require.NoError(t, admin.SetWhitelist("pool-1", alice, true))
	require.NoError(t, admin.SetWhitelist("pool-1", carol, true))
	require.NoError(t, issuer.Mint("pool-1", alice, 100*ledger.Scale))

	err := l.TransferFrom("pool-1", bob, alice, carol, 30*ledger.Scale)
	assert.ErrorIs(t, err, ErrInsufficientAllowance)

	require.NoError(t, l.Approve("pool-1", alice, bob, 50*ledger.Scale))
	require.NoError(t, l.TransferFrom("pool-1", bob, alice, carol, 30*ledger.Scale))

	assert.Equal(t, 70*ledger.Scale, l.BalanceOf("pool-1", alice))
	assert.Equal(t, 30*ledger.Scale, l.BalanceOf("pool-1", carol))
	assert.Equal(t, 20*ledger.Scale, l.Allowance("pool-1", alice, bob))

	// a failed transfer must not burn allowance
	err = l.TransferFrom("pool-1", bob, alice, carol, 21*ledger.Scale)
	assert.ErrorIs(t, err, ErrInsufficientAllowance)
	err = l.TransferFrom("pool-1", bob, alice, common.Address{}, 20*ledger.Scale)
	assert.ErrorIs(t, err, ErrNotWhitelisted)
	assert.Equal(t, 20*ledger.Scale, l.Allowance("pool-1", alice, bob))
}

func TestWhitelistToggleIdempotent(t *testing.T) {
	l, _, _, admin := newActivePool(t, 1_000*ledger.Scale)

	require.NoError(t, admin.SetWhitelist("pool-1", alice, true))
	require.NoError(t, admin.SetWhitelist("pool-1", alice, true))
	assert.True(t, l.Whitelisted("pool-1", alice))

	require.NoError(t, admin.SetWhitelist("pool-1", alice, false))
	assert.False(t, l.Whitelisted("pool-1", alice))
}
