package wallet

import (
	"context"
	"math/big"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/tokenized/pkg/logger"
)

const testMnemonic = "test test test test test test test test test test test junk"

func TestRegisterPrivateKey(t *testing.T) {
	ctx := logger.ContextWithNoLogger(context.Background())
	w := New()

	_, err := w.RequestAccount(ctx)
	require.Equal(t, ErrNoKeys, err)

	address, err := w.Register("0x0000000000000000000000000000000000000000000000000000000000000001")
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress("0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf"), address)

	_, connected := w.ActiveAccount(ctx)
	require.False(t, connected)

	account, err := w.RequestAccount(ctx)
	require.NoError(t, err)
	require.Equal(t, address.Hex(), account)

	active, connected := w.ActiveAccount(ctx)
	require.True(t, connected)
	require.Equal(t, account, active)

	opts, err := w.TransactOpts(ctx, big.NewInt(84532))
	require.NoError(t, err)
	require.Equal(t, address, opts.From)

	w.Disconnect()
	_, err = w.TransactOpts(ctx, big.NewInt(84532))
	require.Equal(t, ErrNotConnected, err)
}

func TestRegisterInvalidKey(t *testing.T) {
	w := New()

	_, err := w.Register("")
	require.Error(t, err)

	_, err = w.Register("not hex")
	require.Error(t, err)
}

func TestDeriveKey(t *testing.T) {
	first, err := DeriveKey(testMnemonic, "", 0)
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"),
		first.Address)

	second, err := DeriveKey(testMnemonic, "", 1)
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"),
		second.Address)

	again, err := DeriveKey("  "+testMnemonic+"\n", "", 0)
	require.NoError(t, err)
	require.Equal(t, first.Address, again.Address)

	withPassphrase, err := DeriveKey(testMnemonic, "extra", 0)
	require.NoError(t, err)
	require.NotEqual(t, first.Address, withPassphrase.Address)

	_, err = DeriveKey(" ", "", 0)
	require.Error(t, err)
}

func TestDeriveKeyRejectsInvalidMnemonic(t *testing.T) {
	// Misspelled word.
	_, err := DeriveKey(strings.Replace(testMnemonic, "junk", "junc", 1), "", 0)
	require.Equal(t, ErrInvalidMnemonic, errors.Cause(err))

	// Known words with a bad checksum.
	_, err = DeriveKey(strings.Repeat("abandon ", 12), "", 0)
	require.Equal(t, ErrInvalidMnemonic, errors.Cause(err))

	// The valid form of the same words.
	_, err = DeriveKey(strings.Repeat("abandon ", 11)+"about", "", 0)
	require.NoError(t, err)

	w := New()
	_, err = w.RegisterMnemonic(strings.Repeat("abandon ", 12), "", 0)
	require.Error(t, err)
	require.Empty(t, w.KeyStore.GetAll())
}

func TestKeyFile(t *testing.T) {
	ctx := logger.ContextWithNoLogger(context.Background())
	dir := t.TempDir()

	private, err := crypto.GenerateKey()
	require.NoError(t, err)

	ks := keystore.NewKeyStore(dir, keystore.LightScryptN, keystore.LightScryptP)
	account, err := ks.ImportECDSA(private, "secret")
	require.NoError(t, err)

	w := New()
	w.KeyStore.ScryptN = keystore.LightScryptN
	w.KeyStore.ScryptP = keystore.LightScryptP

	_, err = w.RegisterKeyFile(account.URL.Path, "")
	require.Equal(t, ErrMissingPassword, err)

	_, err = w.RegisterKeyFile(account.URL.Path, "wrong")
	require.Error(t, err)

	address, err := w.RegisterKeyFile(account.URL.Path, "secret")
	require.NoError(t, err)
	require.Equal(t, account.Address, address)

	connected, err := w.RequestAccount(ctx)
	require.NoError(t, err)
	require.Equal(t, account.Address.Hex(), connected)

	// Export then load into a fresh wallet.
	path := filepath.Join(dir, "export", "key.json")
	require.NoError(t, w.Export(address, path, "other"))

	reloaded := New()
	again, err := reloaded.RegisterKeyFile(path, "other")
	require.NoError(t, err)
	require.Equal(t, address, again)
}

func TestKeyStoreOrder(t *testing.T) {
	ks := NewKeyStore()
	for i := uint32(0); i < 3; i++ {
		key, err := DeriveKey(testMnemonic, "", i)
		require.NoError(t, err)
		require.NoError(t, ks.Add(key))
	}

	all := ks.GetAll()
	require.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		require.Negative(t, all[i-1].Address.Big().Cmp(all[i].Address.Big()))
	}

	require.NoError(t, ks.Remove(all[0]))
	_, err := ks.Get(all[0].Address)
	require.Equal(t, ErrKeyNotFound, err)
}
