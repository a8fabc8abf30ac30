package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const (
	// DefaultContractAddress is the deployed gacha contract on Base Sepolia.
	DefaultContractAddress = "0x4625289Eaa6c73151106c69Ee65EF7146b95C8f7"

	masked = "*** Masked ***"
)

// Config is used to hold all runtime configuration.
type Config struct {
	Gacha struct {
		ContractAddress  string        `default:"0x4625289Eaa6c73151106c69Ee65EF7146b95C8f7" envconfig:"CONTRACT_ADDRESS"`
		Network          string        `default:"base-sepolia" envconfig:"NETWORK"`
		ChainID          int64         `envconfig:"CHAIN_ID"` // Overrides the network's chain id
		PullTimeout      time.Duration `default:"2m" envconfig:"PULL_TIMEOUT"`
		PersistRetryWait time.Duration `default:"500ms" envconfig:"PERSIST_RETRY_WAIT"`
	}
	Ethereum struct {
		RPCURL   string `default:"wss://sepolia.base.org" envconfig:"ETH_RPC_URL"`
		GasLimit uint64 `envconfig:"ETH_GAS_LIMIT"` // 0 estimates gas
		Simulate bool   `default:"false" envconfig:"ETH_SIMULATE"`

		// SimulateDelay is how long the simulated ledger takes to confirm a pull.
		SimulateDelay time.Duration `default:"2s" envconfig:"ETH_SIMULATE_DELAY"`
	}
	Wallet struct {
		PrivateKey       string `envconfig:"PRIV_KEY"`
		Mnemonic         string `envconfig:"MNEMONIC"`
		Passphrase       string `envconfig:"MNEMONIC_PASSPHRASE"`
		AccountIndex     uint32 `default:"0" envconfig:"ACCOUNT_INDEX"`
		KeystorePath     string `envconfig:"KEYSTORE_PATH"`
		KeystorePassword string `envconfig:"KEYSTORE_PASSWORD"`
	}
	Storage struct {
		Type   string `default:"document" envconfig:"STORAGE_TYPE"` // document, mongodb, dynamodb, postgres, sqlite, memory
		Bucket string `default:"standalone" envconfig:"CARD_STORAGE_BUCKET"`
		Root   string `default:"./tmp" envconfig:"CARD_STORAGE_ROOT"`
	}
	Mongo struct {
		URI        string `default:"mongodb://localhost:27017" envconfig:"MONGODB_URI"`
		Database   string `default:"gacha" envconfig:"MONGODB_DATABASE"`
		Collection string `default:"cards" envconfig:"MONGODB_COLLECTION"`
	}
	Dynamo struct {
		Table    string `default:"gacha_cards" envconfig:"DYNAMODB_TABLE"`
		Endpoint string `envconfig:"DYNAMODB_ENDPOINT"` // DynamoDB Local
	}
	SQL struct {
		PostgresURI string `envconfig:"POSTGRES_URI"`
		SQLitePath  string `default:"./tmp/cards.db" envconfig:"SQLITE_PATH"`
	}
	AWS struct {
		Region          string `default:"ap-southeast-2" envconfig:"AWS_REGION" json:"AWS_REGION"`
		AccessKeyID     string `envconfig:"AWS_ACCESS_KEY_ID" json:"AWS_ACCESS_KEY_ID"`
		SecretAccessKey string `envconfig:"AWS_SECRET_ACCESS_KEY" json:"AWS_SECRET_ACCESS_KEY"`
		MaxRetries      int    `default:"4" envconfig:"AWS_MAX_RETRIES"`
	}
	Scheduler struct {
		Frequency time.Duration `default:"500ms" envconfig:"SCHEDULER_FREQUENCY"`
	}
}

// RequiredChainID returns the chain id pulls must be submitted on.
func (cfg Config) RequiredChainID() int64 {
	if cfg.Gacha.ChainID != 0 {
		return cfg.Gacha.ChainID
	}
	return NewChainID(cfg.Gacha.Network)
}

// Validate checks values that envconfig can't.
func (cfg Config) Validate() error {
	if cfg.RequiredChainID() == 0 {
		return errors.Errorf("Unknown network %q and no chain id", cfg.Gacha.Network)
	}
	if len(cfg.Gacha.ContractAddress) == 0 {
		return errors.New("Missing contract address")
	}

	switch cfg.Storage.Type {
	case "document", "mongodb", "dynamodb", "postgres", "sqlite", "memory":
	default:
		return errors.Errorf("Unsupported storage type %q", cfg.Storage.Type)
	}

	if cfg.Storage.Type == "postgres" && len(cfg.SQL.PostgresURI) == 0 {
		return errors.New("Missing postgres URI")
	}

	return nil
}

// SafeConfig masks sensitive config values
func SafeConfig(cfg Config) *Config {
	cfgSafe := cfg

	if len(cfgSafe.Wallet.PrivateKey) > 0 {
		cfgSafe.Wallet.PrivateKey = masked
	}
	if len(cfgSafe.Wallet.Mnemonic) > 0 {
		cfgSafe.Wallet.Mnemonic = masked
	}
	if len(cfgSafe.Wallet.Passphrase) > 0 {
		cfgSafe.Wallet.Passphrase = masked
	}
	if len(cfgSafe.Wallet.KeystorePassword) > 0 {
		cfgSafe.Wallet.KeystorePassword = masked
	}
	if len(cfgSafe.AWS.AccessKeyID) > 0 {
		cfgSafe.AWS.AccessKeyID = masked
	}
	if len(cfgSafe.AWS.SecretAccessKey) > 0 {
		cfgSafe.AWS.SecretAccessKey = masked
	}
	if len(cfgSafe.SQL.PostgresURI) > 0 {
		cfgSafe.SQL.PostgresURI = masked
	}
	if len(cfgSafe.Mongo.URI) > 0 && cfgSafe.Mongo.URI != "mongodb://localhost:27017" {
		cfgSafe.Mongo.URI = masked
	}

	return &cfgSafe
}

// Environment returns configuration sourced from environment variables
func Environment() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("GACHA", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
