package wallet

/**
 * Wallet Service
 *
 * What is my purpose?
 * - You store keys
 * - You connect an account
 * - You sign pulls
 */

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/tokenized/pkg/logger"

	sync "github.com/sasha-s/go-deadlock"
)

const (
	SubSystem = "Wallet" // For logger
)

var (
	ErrNoKeys          = errors.New("No keys in wallet")
	ErrNotConnected    = errors.New("No account connected")
	ErrMissingPassword = errors.New("Missing key file password")
)

type Wallet struct {
	lock     sync.RWMutex
	KeyStore *KeyStore

	primary *Key
	active  *Key
}

func New() *Wallet {
	return &Wallet{
		KeyStore: NewKeyStore(),
	}
}

// Register a hex private key with the wallet.
func (w *Wallet) Register(secret string) (common.Address, error) {
	key, err := DecodeKeyString(secret)
	if err != nil {
		return common.Address{}, err
	}

	return key.Address, w.add(key)
}

// RegisterKey adds an existing key to the wallet.
func (w *Wallet) RegisterKey(key *Key) error {
	return w.add(key)
}

// RegisterMnemonic derives the key at account index from a mnemonic and registers it.
func (w *Wallet) RegisterMnemonic(mnemonic, passphrase string, index uint32) (common.Address,
	error) {

	key, err := DeriveKey(mnemonic, passphrase, index)
	if err != nil {
		return common.Address{}, err
	}

	return key.Address, w.add(key)
}

// RegisterKeyFile decrypts a JSON key file and registers its key.
func (w *Wallet) RegisterKeyFile(path, password string) (common.Address, error) {
	if len(password) == 0 {
		return common.Address{}, ErrMissingPassword
	}

	w.lock.Lock()
	defer w.lock.Unlock()

	key, err := w.KeyStore.Load(path, password)
	if err != nil {
		return common.Address{}, err
	}

	if w.primary == nil {
		w.primary = key
	}
	return key.Address, nil
}

func (w *Wallet) add(key *Key) error {
	w.lock.Lock()
	defer w.lock.Unlock()

	if err := w.KeyStore.Add(key); err != nil {
		return err
	}

	if w.primary == nil {
		w.primary = key
	}
	return nil
}

// Export writes the key for address to an encrypted JSON key file.
func (w *Wallet) Export(address common.Address, path, password string) error {
	if len(password) == 0 {
		return ErrMissingPassword
	}

	w.lock.RLock()
	defer w.lock.RUnlock()

	return w.KeyStore.Save(address, path, password)
}

// RequestAccount connects the first registered key and returns its address.
func (w *Wallet) RequestAccount(ctx context.Context) (string, error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	if w.primary == nil {
		return "", ErrNoKeys
	}

	w.active = w.primary
	logger.Verbose(logger.ContextWithLogSubSystem(ctx, SubSystem), "Connected account %s",
		w.active.Address.Hex())
	return w.active.Address.Hex(), nil
}

// ActiveAccount returns the connected account, if any.
func (w *Wallet) ActiveAccount(ctx context.Context) (string, bool) {
	w.lock.RLock()
	defer w.lock.RUnlock()

	if w.active == nil {
		return "", false
	}
	return w.active.Address.Hex(), true
}

// Disconnect clears the connected account. Registered keys are kept.
func (w *Wallet) Disconnect() {
	w.lock.Lock()
	defer w.lock.Unlock()

	w.active = nil
}

// TransactOpts returns signing options for the connected account on chainID.
func (w *Wallet) TransactOpts(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error) {
	w.lock.RLock()
	active := w.active
	w.lock.RUnlock()

	if active == nil {
		return nil, ErrNotConnected
	}

	opts, err := bind.NewKeyedTransactorWithChainID(active.PrivateKey, chainID)
	if err != nil {
		return nil, errors.Wrap(err, "transactor")
	}
	opts.Context = ctx

	return opts, nil
}
