// Package ledger connects the reconciler to the chain the gacha contract lives on. It submits
// pull transactions and delivers GachaPulled events.
//
// Events are delivered at least once and may be duplicated or belong to other requesters.
// Filtering is the subscriber's job.
package ledger

import (
	"fmt"

	"github.com/pkg/errors"
)

const (
	SubSystem = "Ledger" // For logger
)

var (
	// ErrReverted is returned when a submitted transaction was mined but failed.
	ErrReverted = errors.New("Transaction reverted")
)

// Event is a completed pull reported by the ledger.
type Event struct {
	Requester     string `json:"requester"`
	ItemID        uint64 `json:"itemId"`
	CategoryIndex uint64 `json:"categoryIndex"`
	TxID          string `json:"txId"`
	BlockNumber   uint64 `json:"blockNumber"`
	LogIndex      uint   `json:"logIndex"`
}

func (e Event) String() string {
	return fmt.Sprintf("{requester:%s item:%d category:%d tx:%s block:%d}", e.Requester, e.ItemID,
		e.CategoryIndex, e.TxID, e.BlockNumber)
}
