package wallet

import (
	"crypto/ecdsa"
	"crypto/sha512"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	bip32 "github.com/tyler-smith/go-bip32"
	bip39 "github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/text/unicode/norm"
)

const (
	// seedIterations and seedLength are the BIP-0039 seed derivation parameters.
	seedIterations = 2048
	seedLength     = 64

	// coinTypeEther is the SLIP-0044 coin type used in m/44'/60'/0'/0/i.
	coinTypeEther = 60
)

var (
	ErrInvalidKey      = errors.New("Invalid private key")
	ErrInvalidMnemonic = errors.New("Invalid mnemonic")
)

type Key struct {
	Address    common.Address
	PrivateKey *ecdsa.PrivateKey
}

func NewKey(key *ecdsa.PrivateKey) *Key {
	return &Key{
		Address:    crypto.PubkeyToAddress(key.PublicKey),
		PrivateKey: key,
	}
}

// DecodeKeyString parses a hex private key with or without a 0x prefix.
func DecodeKeyString(s string) (*Key, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(s) == 0 {
		return nil, errors.Wrap(ErrInvalidKey, "empty")
	}

	key, err := crypto.HexToECDSA(s)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidKey, err.Error())
	}

	return NewKey(key), nil
}

// DeriveKey derives the key at m/44'/60'/0'/0/index from a BIP-0039 mnemonic.
func DeriveKey(mnemonic, passphrase string, index uint32) (*Key, error) {
	words := strings.Fields(mnemonic)
	if len(words) == 0 {
		return nil, errors.Wrap(ErrInvalidMnemonic, "empty")
	}
	phrase := strings.Join(words, " ")

	// Unknown words and bad checksums would otherwise silently derive a different account.
	if _, err := bip39.EntropyFromMnemonic(phrase); err != nil {
		return nil, errors.Wrap(ErrInvalidMnemonic, err.Error())
	}

	password := norm.NFKD.String(phrase)
	salt := norm.NFKD.String("mnemonic" + passphrase)
	seed := pbkdf2.Key([]byte(password), []byte(salt), seedIterations, seedLength, sha512.New)

	key, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, errors.Wrap(err, "master key")
	}

	path := []uint32{
		bip32.FirstHardenedChild + 44,
		bip32.FirstHardenedChild + coinTypeEther,
		bip32.FirstHardenedChild,
		0,
		index,
	}
	for _, child := range path {
		key, err = key.NewChildKey(child)
		if err != nil {
			return nil, errors.Wrapf(err, "child %d", child)
		}
	}

	private, err := crypto.ToECDSA(common.LeftPadBytes(key.Key, 32))
	if err != nil {
		return nil, errors.Wrap(ErrInvalidKey, err.Error())
	}

	return NewKey(private), nil
}
