package wallet

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrKeyNotFound = errors.New("Key not found")
)

type KeyStore struct {
	Keys map[common.Address]*Key

	// Scrypt cost parameters used when saving key files.
	ScryptN int
	ScryptP int
}

func NewKeyStore() *KeyStore {
	return &KeyStore{
		Keys:    make(map[common.Address]*Key),
		ScryptN: keystore.StandardScryptN,
		ScryptP: keystore.StandardScryptP,
	}
}

func (k KeyStore) Add(key *Key) error {
	if key == nil || key.PrivateKey == nil {
		return ErrInvalidKey
	}
	k.Keys[key.Address] = key
	return nil
}

func (k KeyStore) Remove(key *Key) error {
	delete(k.Keys, key.Address)
	return nil
}

// Get returns the key corresponding to the specified address.
func (k KeyStore) Get(address common.Address) (*Key, error) {
	key, ok := k.Keys[address]
	if !ok {
		return nil, ErrKeyNotFound
	}

	return key, nil
}

// GetAll returns the keys ordered by address.
func (k KeyStore) GetAll() []*Key {
	result := make([]*Key, 0, len(k.Keys))
	for _, key := range k.Keys {
		result = append(result, key)
	}

	sort.Slice(result, func(i, j int) bool {
		return bytes.Compare(result[i].Address[:], result[j].Address[:]) < 0
	})
	return result
}

// Load decrypts an encrypted JSON key file.
func (k KeyStore) Load(path, password string) (*Key, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read key file")
	}

	decrypted, err := keystore.DecryptKey(data, password)
	if err != nil {
		return nil, errors.Wrap(err, "decrypt key file")
	}

	key := NewKey(decrypted.PrivateKey)
	if err := k.Add(key); err != nil {
		return nil, err
	}

	return key, nil
}

// Save encrypts the key for address into a JSON key file at path.
func (k KeyStore) Save(address common.Address, path, password string) error {
	key, err := k.Get(address)
	if err != nil {
		return err
	}

	data, err := keystore.EncryptKey(&keystore.Key{
		Id:         uuid.New(),
		Address:    key.Address,
		PrivateKey: key.PrivateKey,
	}, password, k.ScryptN, k.ScryptP)
	if err != nil {
		return errors.Wrap(err, "encrypt key")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.Wrap(err, "create key directory")
	}

	return os.WriteFile(path, data, 0600)
}
