// Package gacha provides Go bindings for the gacha contract.
package gacha

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Gacha is a thin wrapper around the on-chain gacha contract.
type Gacha struct {
	abi      abi.ABI
	address  common.Address
	contract *bind.BoundContract
}

// Pulled is the decoded GachaPulled event.
type Pulled struct {
	User    common.Address
	TokenId *big.Int
	Rarity  *big.Int
	Raw     types.Log
}

// ParseABI returns the parsed contract ABI.
func ParseABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(GachaABI))
}

// NewGacha binds an already-deployed gacha contract.
func NewGacha(addr common.Address, backend bind.ContractBackend) (*Gacha, error) {
	parsed, err := ParseABI()
	if err != nil {
		return nil, err
	}
	return &Gacha{
		abi:      parsed,
		address:  addr,
		contract: bind.NewBoundContract(addr, parsed, backend, backend, backend),
	}, nil
}

// Address returns the contract address.
func (g *Gacha) Address() common.Address {
	return g.address
}

// Pull sends the pullGacha transaction.
func (g *Gacha) Pull(opts *bind.TransactOpts) (*types.Transaction, error) {
	return g.contract.Transact(opts, PullMethod)
}

// PulledFilter returns the log filter for GachaPulled events, optionally restricted to users.
func (g *Gacha) PulledFilter(users ...common.Address) (ethereum.FilterQuery, error) {
	var userRule []interface{}
	for _, user := range users {
		userRule = append(userRule, user)
	}

	query := [][]interface{}{{g.abi.Events[PulledEvent].ID}}
	if len(userRule) > 0 {
		query = append(query, userRule)
	}

	topics, err := abi.MakeTopics(query...)
	if err != nil {
		return ethereum.FilterQuery{}, err
	}

	return ethereum.FilterQuery{
		Addresses: []common.Address{g.address},
		Topics:    topics,
	}, nil
}

// ParsePulled decodes a GachaPulled log.
func (g *Gacha) ParsePulled(log types.Log) (*Pulled, error) {
	event := new(Pulled)
	if err := g.contract.UnpackLog(event, PulledEvent, log); err != nil {
		return nil, err
	}
	event.Raw = log
	return event, nil
}

// OwnerOf returns the current owner of a token.
func (g *Gacha) OwnerOf(ctx context.Context, tokenId *big.Int) (common.Address, error) {
	var out []interface{}
	err := g.contract.Call(&bind.CallOpts{Context: ctx}, &out, "ownerOf", tokenId)
	if err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// Name returns the token collection name.
func (g *Gacha) Name(ctx context.Context) (string, error) {
	return g.callString(ctx, "name")
}

// Symbol returns the token collection symbol.
func (g *Gacha) Symbol(ctx context.Context) (string, error) {
	return g.callString(ctx, "symbol")
}

func (g *Gacha) callString(ctx context.Context, method string) (string, error) {
	var out []interface{}
	if err := g.contract.Call(&bind.CallOpts{Context: ctx}, &out, method); err != nil {
		return "", err
	}
	return *abi.ConvertType(out[0], new(string)).(*string), nil
}
