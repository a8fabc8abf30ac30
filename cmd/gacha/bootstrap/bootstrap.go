package bootstrap

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/tokenized/gacha/contracts/gacha"
	"github.com/tokenized/gacha/internal/ledger"
	"github.com/tokenized/gacha/internal/platform/config"
	"github.com/tokenized/gacha/internal/platform/logging"
	"github.com/tokenized/gacha/internal/pull"
	"github.com/tokenized/gacha/internal/recordstore"
	"github.com/tokenized/gacha/pkg/scheduler"
	"github.com/tokenized/gacha/pkg/wallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/tokenized/pkg/logger"
)

const (
	SubSystem = "Bootstrap" // For logger
)

// App holds the components used by the commands.
type App struct {
	Config     *config.Config
	Wallet     *wallet.Wallet
	Ledger     pull.Ledger
	Contract   *gacha.Gacha // nil when the ledger is simulated
	Store      recordstore.Store
	Scheduler  *scheduler.Scheduler
	Reconciler *pull.Reconciler

	closers []func()
}

func NewContextWithDevelopmentLogger() context.Context {
	return logging.ContextFromEnv(context.Background(),
		SubSystem,
		pull.SubSystem,
		ledger.SubSystem,
		recordstore.SubSystem,
		wallet.SubSystem,
		scheduler.SubSystem,
	)
}

func NewConfigFromEnv(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Environment()
	if err != nil {
		return nil, errors.Wrap(err, "parse config")
	}

	// Mask sensitive values
	cfgSafe := config.SafeConfig(*cfg)
	cfgJSON, err := json.MarshalIndent(cfgSafe, "", "    ")
	if err != nil {
		return nil, errors.Wrap(err, "marshal config")
	}
	logger.Verbose(logger.ContextWithLogSubSystem(ctx, SubSystem), "Config : %v", string(cfgJSON))

	return cfg, nil
}

// NewWallet registers the configured key source. A simulated ledger with no key source gets a
// fresh key.
func NewWallet(ctx context.Context, cfg *config.Config) (*wallet.Wallet, error) {
	w := wallet.New()
	ctx = logger.ContextWithLogSubSystem(ctx, SubSystem)

	if len(cfg.Wallet.PrivateKey) > 0 {
		if _, err := w.Register(cfg.Wallet.PrivateKey); err != nil {
			return nil, errors.Wrap(err, "register private key")
		}
	}

	if len(cfg.Wallet.Mnemonic) > 0 {
		if _, err := w.RegisterMnemonic(cfg.Wallet.Mnemonic, cfg.Wallet.Passphrase,
			cfg.Wallet.AccountIndex); err != nil {
			return nil, errors.Wrap(err, "register mnemonic")
		}
	}

	if len(cfg.Wallet.KeystorePath) > 0 {
		if _, err := w.RegisterKeyFile(cfg.Wallet.KeystorePath,
			cfg.Wallet.KeystorePassword); err != nil {
			return nil, errors.Wrap(err, "register key file")
		}
	}

	if len(w.KeyStore.Keys) == 0 && cfg.Ethereum.Simulate {
		key, err := crypto.GenerateKey()
		if err != nil {
			return nil, errors.Wrap(err, "generate key")
		}
		if err := w.RegisterKey(wallet.NewKey(key)); err != nil {
			return nil, err
		}
		logger.Info(ctx, "Using generated key for simulated ledger")
	}

	return w, nil
}

func NewRecordStore(ctx context.Context, cfg *config.Config) (recordstore.Store, error) {
	store, err := recordstore.New(ctx, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "record store %s", cfg.Storage.Type)
	}

	return store, nil
}

func NewScheduler(cfg *config.Config) *scheduler.Scheduler {
	return scheduler.NewScheduler(cfg.Scheduler.Frequency)
}

// NewApp builds every component from cfg. Close releases them.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{
		Config:    cfg,
		Scheduler: NewScheduler(cfg),
	}

	var err error
	app.Wallet, err = NewWallet(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Ethereum.Simulate {
		app.Ledger = ledger.NewSimulated(cfg.RequiredChainID(), cfg.Ethereum.SimulateDelay)
	} else {
		if !common.IsHexAddress(cfg.Gacha.ContractAddress) {
			return nil, errors.Errorf("Invalid contract address %s", cfg.Gacha.ContractAddress)
		}

		eth, client, err := ledger.Dial(ctx, cfg.Ethereum.RPCURL,
			common.HexToAddress(cfg.Gacha.ContractAddress), app.Wallet, cfg.Ethereum.GasLimit)
		if err != nil {
			return nil, errors.Wrapf(err, "ledger %s", cfg.Ethereum.RPCURL)
		}
		app.closers = append(app.closers, client.Close)
		app.Ledger = eth
		app.Contract = eth.Contract()
	}

	app.Store, err = NewRecordStore(ctx, cfg)
	if err != nil {
		app.Close(ctx)
		return nil, err
	}
	app.closers = append(app.closers, func() {
		if err := app.Store.Close(ctx); err != nil {
			logger.Warn(ctx, "Failed to close record store : %s", err)
		}
	})

	app.Reconciler = pull.NewReconciler(pull.Config{
		ChainID:          uint64(cfg.RequiredChainID()),
		PullTimeout:      cfg.Gacha.PullTimeout,
		PersistRetryWait: cfg.Gacha.PersistRetryWait,
	}, app.Wallet, app.Ledger, app.Store, app.Scheduler)

	return app, nil
}

// ChainID returns the chain id reported by the ledger.
func (app *App) ChainID(ctx context.Context) (*big.Int, error) {
	return app.Ledger.ChainID(ctx)
}

func (app *App) Close(ctx context.Context) {
	for i := len(app.closers) - 1; i >= 0; i-- {
		app.closers[i]()
	}
	app.closers = nil
}
