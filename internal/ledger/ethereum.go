package ledger

import (
	"context"
	"math"
	"math/big"
	"strings"

	"github.com/tokenized/gacha/contracts/gacha"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/event"
	"github.com/pkg/errors"
	"github.com/tokenized/pkg/logger"
	"go.opencensus.io/trace"

	sync "github.com/sasha-s/go-deadlock"
)

// Backend is the part of an Ethereum node client the ledger uses. *ethclient.Client implements
// it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

// Signer provides transaction options for the connected wallet account.
type Signer interface {
	TransactOpts(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error)
}

// Ethereum submits pulls to and reads events from an Ethereum compatible node.
type Ethereum struct {
	backend  Backend
	contract *gacha.Gacha
	signer   Signer
	gasLimit uint64

	lock    sync.Mutex
	chainID *big.Int
}

// Dial connects to the node at rawurl. Subscriptions need a websocket or IPC endpoint.
func Dial(ctx context.Context, rawurl string, contract common.Address, signer Signer,
	gasLimit uint64) (*Ethereum, *ethclient.Client, error) {

	client, err := ethclient.DialContext(ctx, rawurl)
	if err != nil {
		return nil, nil, errors.Wrap(err, "dial node")
	}

	e, err := NewEthereum(client, contract, signer, gasLimit)
	if err != nil {
		client.Close()
		return nil, nil, err
	}

	return e, client, nil
}

// NewEthereum returns a ledger using an existing node client.
func NewEthereum(backend Backend, contract common.Address, signer Signer,
	gasLimit uint64) (*Ethereum, error) {

	g, err := gacha.NewGacha(contract, backend)
	if err != nil {
		return nil, errors.Wrap(err, "bind contract")
	}

	return &Ethereum{
		backend:  backend,
		contract: g,
		signer:   signer,
		gasLimit: gasLimit,
	}, nil
}

// Contract returns the contract binding.
func (e *Ethereum) Contract() *gacha.Gacha {
	return e.contract
}

// ChainID returns the chain id of the connected node. It is fetched once.
func (e *Ethereum) ChainID(ctx context.Context) (*big.Int, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	if e.chainID != nil {
		return new(big.Int).Set(e.chainID), nil
	}

	id, err := e.backend.ChainID(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "chain id")
	}
	e.chainID = id

	return new(big.Int).Set(id), nil
}

// SubmitPull sends pullGacha from the wallet account and waits for it to be mined. It returns
// the transaction hash.
func (e *Ethereum) SubmitPull(ctx context.Context, from string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "internal.ledger.Ethereum.SubmitPull")
	defer span.End()

	ctx = logger.ContextWithLogSubSystem(ctx, SubSystem)

	chainID, err := e.ChainID(ctx)
	if err != nil {
		return "", err
	}

	opts, err := e.signer.TransactOpts(ctx, chainID)
	if err != nil {
		return "", errors.Wrap(err, "transact opts")
	}

	if !common.IsHexAddress(from) || opts.From != common.HexToAddress(from) {
		return "", errors.Errorf("Signer %s is not requester %s", opts.From.Hex(), from)
	}

	opts.Context = ctx
	if e.gasLimit > 0 {
		opts.GasLimit = e.gasLimit
	}

	tx, err := e.contract.Pull(opts)
	if err != nil {
		return "", errors.Wrap(err, "send pull")
	}

	txid := tx.Hash().Hex()
	ctx = logger.ContextWithLogTrace(ctx, txid)
	logger.Info(ctx, "Sent pull from %s", opts.From.Hex())

	receipt, err := bind.WaitMined(ctx, e.backend, tx)
	if err != nil {
		return "", errors.Wrap(err, "wait mined")
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return "", errors.Wrapf(ErrReverted, "block %d", receipt.BlockNumber.Uint64())
	}

	logger.Info(ctx, "Pull mined in block %d", receipt.BlockNumber.Uint64())
	return txid, nil
}

// Subscribe delivers GachaPulled events for every user to ch until the subscription is
// unsubscribed or fails.
func (e *Ethereum) Subscribe(ctx context.Context, ch chan<- Event) (event.Subscription, error) {
	ctx = logger.ContextWithLogSubSystem(ctx, SubSystem)

	query, err := e.contract.PulledFilter()
	if err != nil {
		return nil, errors.Wrap(err, "filter")
	}

	logs := make(chan types.Log, 64)
	sub, err := e.backend.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		return nil, errors.Wrap(err, "subscribe logs")
	}

	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()

		for {
			select {
			case log := <-logs:
				ev, err := e.convert(log)
				if err != nil {
					logger.Warn(ctx, "Skipping log %s:%d : %s", log.TxHash.Hex(), log.Index, err)
					continue
				}

				select {
				case ch <- ev:
				case <-quit:
					return nil
				}

			case err := <-sub.Err():
				return err

			case <-quit:
				return nil
			}
		}
	}), nil
}

// convert decodes a GachaPulled log into an Event.
func (e *Ethereum) convert(log types.Log) (Event, error) {
	if log.Removed {
		return Event{}, errors.New("Log removed by reorg")
	}

	pulled, err := e.contract.ParsePulled(log)
	if err != nil {
		return Event{}, errors.Wrap(err, "parse")
	}

	if pulled.TokenId == nil || !pulled.TokenId.IsUint64() {
		return Event{}, errors.Errorf("Token id out of range : %v", pulled.TokenId)
	}

	// Out of range categories are passed on so the reconciler rejects them as unknown.
	category := uint64(math.MaxUint64)
	if pulled.Rarity != nil && pulled.Rarity.IsUint64() {
		category = pulled.Rarity.Uint64()
	}

	return Event{
		Requester:     strings.ToLower(pulled.User.Hex()),
		ItemID:        pulled.TokenId.Uint64(),
		CategoryIndex: category,
		TxID:          log.TxHash.Hex(),
		BlockNumber:   log.BlockNumber,
		LogIndex:      log.Index,
	}, nil
}
