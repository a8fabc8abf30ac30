package tests

import (
	"math/rand"
	"strings"
	"time"

	"github.com/tokenized/gacha/internal/ledger"

	"github.com/ethereum/go-ethereum/common"
)

var testHelperRand = rand.New(rand.NewSource(time.Now().UnixNano()))

// RandomTxID returns a random transaction hash.
func RandomTxID() string {
	var hash common.Hash
	testHelperRand.Read(hash[:])
	return hash.Hex()
}

// RandomAddress returns a random account address.
func RandomAddress() string {
	var address common.Address
	testHelperRand.Read(address[:])
	return address.Hex()
}

// PulledEvent returns a confirmation event for requester with the given transaction.
func PulledEvent(requester, txid string, itemID, category uint64) ledger.Event {
	return ledger.Event{
		Requester:     strings.ToLower(requester),
		ItemID:        itemID,
		CategoryIndex: category,
		TxID:          txid,
		BlockNumber:   uint64(testHelperRand.Intn(1000000)),
	}
}
