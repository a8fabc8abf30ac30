package ledger

import (
	"context"
	"math/big"
	"math/rand"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"
	"github.com/google/uuid"
	"github.com/tokenized/pkg/logger"

	sync "github.com/sasha-s/go-deadlock"
)

// simulatedWeights are the relative odds of each category when a Memory ledger confirms its own
// pulls. Higher categories are rarer.
var simulatedWeights = []int{30, 20, 15, 10, 8, 6, 4, 3, 2, 2}

// Submission is a pull accepted by a Memory ledger.
type Submission struct {
	From string
	TxID string
	At   time.Time
}

// Memory is an in process ledger. It is used for tests and to run the commands without a node.
type Memory struct {
	chainID *big.Int
	feed    event.Feed

	lock        sync.Mutex
	submissions []Submission
	submitErr   error
	autoConfirm bool
	confirmWait time.Duration
	nextItemID  uint64
	blockNumber uint64
	random      *rand.Rand
}

// NewMemory returns a ledger that only emits the events it is given.
func NewMemory(chainID int64) *Memory {
	return &Memory{
		chainID:     big.NewInt(chainID),
		nextItemID:  1,
		blockNumber: 1,
		random:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewSimulated returns a ledger that confirms every submitted pull with a random category after
// confirmWait.
func NewSimulated(chainID int64, confirmWait time.Duration) *Memory {
	m := NewMemory(chainID)
	m.autoConfirm = true
	m.confirmWait = confirmWait
	return m
}

// SetSubmitError makes subsequent submissions fail with err. Passing nil clears it.
func (m *Memory) SetSubmitError(err error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.submitErr = err
}

// SetChainID changes the reported chain id.
func (m *Memory) SetChainID(chainID int64) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.chainID = big.NewInt(chainID)
}

// ChainID returns the configured chain id.
func (m *Memory) ChainID(ctx context.Context) (*big.Int, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	return new(big.Int).Set(m.chainID), nil
}

// SubmitPull records the submission and returns a new transaction id.
func (m *Memory) SubmitPull(ctx context.Context, from string) (string, error) {
	m.lock.Lock()
	if m.submitErr != nil {
		err := m.submitErr
		m.lock.Unlock()
		return "", err
	}

	id := uuid.New()
	txid := crypto.Keccak256Hash(id[:]).Hex()
	m.submissions = append(m.submissions, Submission{
		From: from,
		TxID: txid,
		At:   time.Now(),
	})

	var ev *Event
	if m.autoConfirm {
		ev = &Event{
			Requester:     strings.ToLower(from),
			ItemID:        m.nextItemID,
			CategoryIndex: m.randomCategory(),
			TxID:          txid,
			BlockNumber:   m.blockNumber,
		}
		m.nextItemID++
		m.blockNumber++
	}
	m.lock.Unlock()

	if ev != nil {
		ctx = logger.ContextWithLogSubSystem(ctx, SubSystem)
		logger.Verbose(ctx, "Simulating confirmation of %s", txid)

		wait := m.confirmWait
		go func() {
			time.Sleep(wait)
			m.Emit(*ev)
		}()
	}

	return txid, nil
}

// Subscribe delivers every emitted event to ch.
func (m *Memory) Subscribe(ctx context.Context, ch chan<- Event) (event.Subscription, error) {
	return m.feed.Subscribe(ch), nil
}

// Emit sends ev to all subscribers and returns how many received it. It blocks until every
// subscriber has accepted the event.
func (m *Memory) Emit(ev Event) int {
	return m.feed.Send(ev)
}

// NextItemID returns an unused item id and advances the counter.
func (m *Memory) NextItemID() uint64 {
	m.lock.Lock()
	defer m.lock.Unlock()
	id := m.nextItemID
	m.nextItemID++
	return id
}

// Submissions returns a copy of the accepted submissions.
func (m *Memory) Submissions() []Submission {
	m.lock.Lock()
	defer m.lock.Unlock()

	result := make([]Submission, len(m.submissions))
	copy(result, m.submissions)
	return result
}

// randomCategory must be called with the lock held.
func (m *Memory) randomCategory() uint64 {
	total := 0
	for _, w := range simulatedWeights {
		total += w
	}

	n := m.random.Intn(total)
	for i, w := range simulatedWeights {
		if n < w {
			return uint64(i)
		}
		n -= w
	}

	return 0
}
