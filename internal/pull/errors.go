package pull

import "github.com/pkg/errors"

var (
	// ErrNotConnected is returned when the requester is empty or is not the active wallet account.
	ErrNotConnected = errors.New("Wallet not connected")

	// ErrAlreadyInFlight is returned when a pull is submitted while another is outstanding.
	ErrAlreadyInFlight = errors.New("Pull already in flight")

	// ErrTransactionRejected is returned when the ledger rejects the submission or the ledger is
	// on the wrong network.
	ErrTransactionRejected = errors.New("Transaction rejected")

	// ErrUnknownCategory is returned for a category index outside the rarity table.
	ErrUnknownCategory = errors.New("Unknown category")

	// ErrPersistenceFailed is returned when a confirmed outcome could not be stored after retry.
	ErrPersistenceFailed = errors.New("Persistence failed")

	// ErrTimeout is the failure reason of a pull with no confirmation before its deadline.
	ErrTimeout = errors.New("Pull timed out")

	// ErrReset is returned by a submit whose request was reset before the ledger call returned.
	ErrReset = errors.New("Pull reset while submitting")

	// ErrNothingToPersist is returned by RetryPersist when there is no confirmed outcome.
	ErrNothingToPersist = errors.New("No confirmed outcome to persist")
)
