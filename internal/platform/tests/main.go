package tests

import (
	"context"
	"os"
	"time"

	"github.com/tokenized/gacha/internal/ledger"
	"github.com/tokenized/gacha/internal/platform/db"
	"github.com/tokenized/gacha/internal/platform/logging"
	"github.com/tokenized/gacha/internal/pull"
	"github.com/tokenized/gacha/internal/recordstore"
	"github.com/tokenized/gacha/pkg/scheduler"
	"github.com/tokenized/gacha/pkg/wallet"

	"github.com/pkg/errors"
	"github.com/tokenized/pkg/logger"
)

const (
	// ChainID is the chain the test ledger reports.
	ChainID = 84532

	// PrivateKey is the test account key. Its address is
	// 0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf.
	PrivateKey = "0x0000000000000000000000000000000000000000000000000000000000000001"
)

type Test struct {
	Context    context.Context
	Wallet     *wallet.Wallet
	Account    string
	Ledger     *ledger.Memory
	DB         *db.DB
	Store      *recordstore.DocumentStore
	schStarted bool
	Scheduler  *scheduler.Scheduler
	root       string
}

func (test *Test) Setup(ctx context.Context) error {
	test.Context = logging.ContextWithLogger(ctx, true, false, "", pull.SubSystem,
		ledger.SubSystem, recordstore.SubSystem, scheduler.SubSystem)

	var err error
	test.root, err = os.MkdirTemp("", "gacha-test")
	if err != nil {
		return errors.Wrap(err, "Failed to create storage root")
	}

	test.DB, err = db.New(&db.StorageConfig{
		Bucket: "standalone",
		Root:   test.root,
	})
	if err != nil {
		return errors.Wrap(err, "Failed to register DB")
	}
	test.Store = recordstore.NewDocumentStore(test.DB)

	test.Wallet = wallet.New()
	address, err := test.Wallet.Register(PrivateKey)
	if err != nil {
		return errors.Wrap(err, "Failed to register test key")
	}
	test.Account = address.Hex()

	test.Ledger = ledger.NewMemory(ChainID)

	test.Scheduler = scheduler.NewScheduler(5 * time.Millisecond)
	go func() {
		if err := test.Scheduler.Run(test.Context); err != nil {
			logger.Error(test.Context, "Scheduler failed : %s", err)
		}
	}()
	test.schStarted = true

	return nil
}

// NewReconciler returns a reconciler wired to the test components.
func (test *Test) NewReconciler(config pull.Config) *pull.Reconciler {
	if config.ChainID == 0 {
		config.ChainID = ChainID
	}
	if config.PersistRetryWait == 0 {
		config.PersistRetryWait = time.Millisecond
	}

	return pull.NewReconciler(config, test.Wallet, test.Ledger, test.Store, test.Scheduler)
}

func (test *Test) TearDown() {
	if test.schStarted {
		test.Scheduler.Stop(context.Background())
		test.schStarted = false
	}

	if test.DB != nil {
		test.DB.Close()
	}

	if len(test.root) > 0 {
		os.RemoveAll(test.root)
	}
}
