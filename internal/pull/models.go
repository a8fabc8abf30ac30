package pull

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Status is the state of the current pull.
type Status uint8

const (
	StatusIdle Status = iota
	StatusSubmitted
	StatusAwaitingConfirmation
	StatusConfirmed
	StatusFailed
)

var statusLabels = [...]string{
	"Idle",
	"Submitted",
	"AwaitingConfirmation",
	"Confirmed",
	"Failed",
}

func (s Status) String() string {
	if int(s) >= len(statusLabels) {
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
	return statusLabels[s]
}

func (s Status) MarshalText() ([]byte, error) {
	if int(s) >= len(statusLabels) {
		return nil, errors.Errorf("Unknown status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// InFlight returns true while a pull is waiting on the ledger.
func (s Status) InFlight() bool {
	return s == StatusSubmitted || s == StatusAwaitingConfirmation
}

// Request is one user initiated pull.
type Request struct {
	ID          uuid.UUID `json:"id"`
	Requester   string    `json:"requester"`
	SubmittedAt time.Time `json:"submittedAt"`
	TxID        string    `json:"txId,omitempty"`
	Deadline    time.Time `json:"deadline,omitempty"`
	Status      Status    `json:"status"`
}

// Outcome is the result of a confirmed pull.
type Outcome struct {
	Requester     string    `json:"requester"`
	ItemID        uint64    `json:"itemId"`
	Rarity        Rarity    `json:"rarity"`
	CategoryIndex uint64    `json:"categoryIndex"`
	TxID          string    `json:"txId"`
	ConfirmedAt   time.Time `json:"confirmedAt"`
}

// CardRecord is the stored form of an Outcome. TxID is the idempotency key.
type CardRecord struct {
	TxID          string    `json:"txId" yaml:"txId"`
	User          string    `json:"user" yaml:"user"`
	TokenID       uint64    `json:"tokenId" yaml:"tokenId"`
	Rarity        string    `json:"rarity" yaml:"rarity"`
	CategoryIndex uint64    `json:"categoryIndex" yaml:"categoryIndex"`
	BlockNumber   uint64    `json:"blockNumber" yaml:"blockNumber"`
	PulledAt      time.Time `json:"pulledAt" yaml:"pulledAt"`
}

// NewCardRecord builds the record for an outcome confirmed in block blockNumber.
func NewCardRecord(outcome *Outcome, blockNumber uint64) *CardRecord {
	return &CardRecord{
		TxID:          outcome.TxID,
		User:          NormalizeIdentity(outcome.Requester),
		TokenID:       outcome.ItemID,
		Rarity:        outcome.Rarity.String(),
		CategoryIndex: outcome.CategoryIndex,
		BlockNumber:   blockNumber,
		PulledAt:      outcome.ConfirmedAt,
	}
}

// Snapshot is a copy of the reconciler state for display.
type Snapshot struct {
	State     Status      `json:"state"`
	Request   *Request    `json:"request,omitempty"`
	Outcome   *Outcome    `json:"outcome,omitempty"`
	Record    *CardRecord `json:"record,omitempty"`
	Persisted bool        `json:"persisted"`
	Err       error       `json:"-"`
}

// Terminal returns true when the pull will not change without a new submit, reset or persist
// retry.
func (s Snapshot) Terminal() bool {
	switch s.State {
	case StatusIdle, StatusFailed:
		return true
	case StatusConfirmed:
		return s.Persisted || s.Err != nil
	}
	return false
}
