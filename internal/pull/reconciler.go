// Package pull reconciles a user initiated pull on the ledger with the asynchronous confirmation
// event and the card record stored for it.
//
// A Reconciler tracks one session. At most one pull is in flight at a time. Confirmation events
// may arrive at any time, more than once and for other requesters; only the first matching event
// for the in-flight pull is accepted and its card is stored once, keyed by transaction id.
package pull

import (
	"context"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/tokenized/gacha/internal/ledger"
	"github.com/tokenized/gacha/pkg/scheduler"

	"github.com/ethereum/go-ethereum/event"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/tokenized/pkg/logger"
	"go.opencensus.io/trace"

	sync "github.com/sasha-s/go-deadlock"
)

const (
	SubSystem = "Pull" // For logger

	// maxEarlyEvents bounds the events buffered while the ledger submission is outstanding.
	maxEarlyEvents = 16

	listenBuffer = 16
)

// Config holds the reconciler settings.
type Config struct {
	// ChainID is the network the ledger must be on for a submit to be accepted.
	ChainID uint64

	// PullTimeout is the default time allowed for a confirmation. Zero disables it.
	PullTimeout time.Duration

	// PersistRetryWait is the delay before the automatic persistence retry.
	PersistRetryWait time.Duration
}

// Session is the wallet connection.
type Session interface {
	ActiveAccount(ctx context.Context) (string, bool)
	RequestAccount(ctx context.Context) (string, error)
}

// Ledger submits pulls and delivers confirmation events.
type Ledger interface {
	ChainID(ctx context.Context) (*big.Int, error)
	SubmitPull(ctx context.Context, from string) (string, error)
	Subscribe(ctx context.Context, ch chan<- ledger.Event) (event.Subscription, error)
}

// Store persists card records. InsertIfAbsent returns false when a record with the key already
// exists.
type Store interface {
	InsertIfAbsent(ctx context.Context, key string, record *CardRecord) (bool, error)
	QueryByRequester(ctx context.Context, identity string) ([]CardRecord, error)
}

// Scheduler runs timeout jobs.
type Scheduler interface {
	ScheduleJob(ctx context.Context, job scheduler.Job) error
	CancelJob(ctx context.Context, job scheduler.Job) error
}

type Reconciler struct {
	config    Config
	session   Session
	ledger    Ledger
	store     Store
	scheduler Scheduler

	lock      sync.Mutex
	state     Status
	request   *Request
	outcome   *Outcome
	record    *CardRecord
	persisted bool
	err       error
	early     []ledger.Event
	changed   chan struct{}

	persisting int // background persists running
}

// NewReconciler returns a reconciler using the given collaborators. sch may be nil, in which case
// pulls never time out.
func NewReconciler(config Config, session Session, ldgr Ledger, store Store,
	sch Scheduler) *Reconciler {

	return &Reconciler{
		config:    config,
		session:   session,
		ledger:    ldgr,
		store:     store,
		scheduler: sch,
		changed:   make(chan struct{}),
	}
}

// Connect requests the wallet account and returns it.
func (r *Reconciler) Connect(ctx context.Context) (string, error) {
	account, err := r.session.RequestAccount(ctx)
	if err != nil {
		return "", errors.Wrap(ErrNotConnected, err.Error())
	}
	return account, nil
}

// Submit starts a pull for requester using the configured timeout.
func (r *Reconciler) Submit(ctx context.Context, requester string) (*Request, error) {
	return r.SubmitWithTimeout(ctx, requester, r.config.PullTimeout)
}

// SubmitWithTimeout starts a pull for requester. It returns once the ledger accepted the
// transaction, with the request awaiting confirmation. If timeout is positive and no matching
// confirmation arrives in time the pull fails with ErrTimeout.
func (r *Reconciler) SubmitWithTimeout(ctx context.Context, requester string,
	timeout time.Duration) (*Request, error) {

	ctx, span := trace.StartSpan(ctx, "internal.pull.Submit")
	defer span.End()

	ctx = logger.ContextWithLogSubSystem(ctx, SubSystem)

	if len(NormalizeIdentity(requester)) == 0 {
		return nil, errors.Wrap(ErrNotConnected, "empty requester")
	}

	active, ok := r.session.ActiveAccount(ctx)
	if !ok {
		return nil, errors.Wrap(ErrNotConnected, "no active account")
	}
	if !SameIdentity(active, requester) {
		return nil, errors.Wrapf(ErrNotConnected, "active account is %s", active)
	}

	now := time.Now()
	request := &Request{
		ID:          uuid.New(),
		Requester:   requester,
		SubmittedAt: now,
		Status:      StatusSubmitted,
	}
	if timeout > 0 {
		request.Deadline = now.Add(timeout)
	}

	r.lock.Lock()
	if r.state.InFlight() {
		r.lock.Unlock()
		return nil, ErrAlreadyInFlight
	}
	r.request = request
	r.outcome = nil
	r.record = nil
	r.persisted = false
	r.err = nil
	r.early = nil
	r.setState(StatusSubmitted)
	r.lock.Unlock()

	ctx = logger.ContextWithLogTrace(ctx, request.ID.String())

	txid, err := r.submitToLedger(ctx, requester)
	if err != nil {
		r.abort(request)
		logger.Warn(ctx, "Pull rejected : %s", err)
		return nil, err
	}

	r.lock.Lock()
	if r.request != request {
		r.lock.Unlock()
		return nil, ErrReset
	}
	request.TxID = txid
	request.Status = StatusAwaitingConfirmation
	r.setState(StatusAwaitingConfirmation)
	early := r.early
	r.early = nil
	result := *request
	r.lock.Unlock()

	logger.Info(ctx, "Pull submitted for %s : %s", requester, txid)

	if !request.Deadline.IsZero() {
		if r.scheduler == nil {
			logger.Warn(ctx, "No scheduler, pull timeout disabled")
		} else if err := r.scheduler.ScheduleJob(ctx, NewPullTimeout(r, request.ID,
			request.Deadline)); err != nil {
			logger.Error(ctx, "Failed to schedule pull timeout : %s", err)
		}
	}

	// Confirmations seen before the ledger returned the transaction id.
	for _, ev := range early {
		if ev.TxID != txid {
			continue
		}
		if err := r.OnConfirmationEvent(ctx, ev); err != nil {
			logger.Warn(ctx, "Failed to apply early confirmation : %s", err)
		}
	}

	return &result, nil
}

func (r *Reconciler) submitToLedger(ctx context.Context, requester string) (string, error) {
	chainID, err := r.ledger.ChainID(ctx)
	if err != nil {
		return "", errors.Wrap(ErrTransactionRejected, errors.Wrap(err, "chain id").Error())
	}

	if !chainID.IsUint64() || chainID.Uint64() != r.config.ChainID {
		return "", errors.Wrapf(ErrTransactionRejected, "wrong network : got chain %s, want %d",
			chainID, r.config.ChainID)
	}

	txid, err := r.ledger.SubmitPull(ctx, requester)
	if err != nil {
		return "", errors.Wrap(ErrTransactionRejected, err.Error())
	}

	return txid, nil
}

// abort returns to Idle after a failed submission, unless the request was already replaced.
func (r *Reconciler) abort(request *Request) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.request != request {
		return
	}

	r.request = nil
	r.early = nil
	r.setState(StatusIdle)
}

// OnConfirmationEvent applies a ledger confirmation. Events that do not belong to the in-flight
// pull are ignored and return nil. It returns once the card is stored or storing it failed.
func (r *Reconciler) OnConfirmationEvent(ctx context.Context, ev ledger.Event) error {
	ctx = logger.ContextWithLogSubSystem(ctx, SubSystem)

	record, err := r.confirm(ctx, ev)
	if err != nil || record == nil {
		return err
	}

	return r.persist(ctx, record, true)
}

// confirm moves the in-flight pull to Confirmed when ev belongs to it and returns the record to
// store. It returns a nil record when ev is ignored.
func (r *Reconciler) confirm(ctx context.Context, ev ledger.Event) (*CardRecord, error) {
	r.lock.Lock()

	if r.request == nil || !SameIdentity(ev.Requester, r.request.Requester) {
		r.lock.Unlock()
		return nil, nil
	}

	switch r.state {
	case StatusAwaitingConfirmation:
		// Redelivered events of an earlier pull by the same account.
		if len(ev.TxID) > 0 && !strings.EqualFold(ev.TxID, r.request.TxID) {
			r.lock.Unlock()
			logger.Verbose(ctx, "Ignoring confirmation of other transaction : %s", ev)
			return nil, nil
		}
	case StatusSubmitted:
		if len(r.early) < maxEarlyEvents {
			r.early = append(r.early, ev)
		}
		r.lock.Unlock()
		return nil, nil
	case StatusFailed:
		if r.err == ErrTimeout && ev.TxID == r.request.TxID {
			logger.Warn(ctx, "Confirmation after timeout : %s", ev)
		}
		r.lock.Unlock()
		return nil, nil
	default:
		r.lock.Unlock()
		return nil, nil
	}

	rarity, err := RarityFromIndex(ev.CategoryIndex)
	if err != nil {
		r.lock.Unlock()
		return nil, err
	}

	outcome := &Outcome{
		Requester:     r.request.Requester,
		ItemID:        ev.ItemID,
		Rarity:        rarity,
		CategoryIndex: ev.CategoryIndex,
		TxID:          ev.TxID,
		ConfirmedAt:   time.Now(),
	}
	record := NewCardRecord(outcome, ev.BlockNumber)

	r.request.Status = StatusConfirmed
	r.outcome = outcome
	r.record = record
	r.persisted = false
	r.err = nil
	r.setState(StatusConfirmed)
	requestID := r.request.ID
	r.lock.Unlock()

	logger.Info(ctx, "Pull confirmed for %s : item %d %s", outcome.Requester, outcome.ItemID,
		outcome.Rarity)

	r.cancelTimeout(ctx, requestID)

	return record, nil
}

// persistInBackground stores record on its own goroutine. Waiters are notified when it finishes.
func (r *Reconciler) persistInBackground(ctx context.Context, record *CardRecord) {
	r.lock.Lock()
	r.persisting++
	r.lock.Unlock()

	go func() {
		r.persist(ctx, record, true) // failures are logged and reported in Status

		r.lock.Lock()
		r.persisting--
		r.notify()
		r.lock.Unlock()
	}()
}

// waitPersisted blocks until no background persistence is running.
func (r *Reconciler) waitPersisted() {
	for {
		r.lock.Lock()
		if r.persisting == 0 {
			r.lock.Unlock()
			return
		}
		changed := r.changed
		r.lock.Unlock()

		<-changed
	}
}

// persist stores record. With retry set a failed insert is attempted once more after
// PersistRetryWait.
func (r *Reconciler) persist(ctx context.Context, record *CardRecord, retry bool) error {
	_, err := r.store.InsertIfAbsent(ctx, record.TxID, record)
	if err != nil && retry {
		logger.Warn(ctx, "Failed to persist card %s, retrying : %s", record.TxID, err)

		select {
		case <-time.After(r.config.PersistRetryWait):
			_, err = r.store.InsertIfAbsent(ctx, record.TxID, record)
		case <-ctx.Done():
			err = ctx.Err()
		}
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	current := r.record == record
	if err != nil {
		logger.Error(ctx, "Failed to persist card %s : %s", record.TxID, err)
		if current {
			r.err = ErrPersistenceFailed
			r.notify()
		}
		return errors.Wrap(ErrPersistenceFailed, err.Error())
	}

	if current {
		r.persisted = true
		r.err = nil
		r.notify()
	}
	return nil
}

// RetryPersist attempts once more to store the confirmed outcome. The ledger action is never
// repeated.
func (r *Reconciler) RetryPersist(ctx context.Context) error {
	ctx = logger.ContextWithLogSubSystem(ctx, SubSystem)

	r.lock.Lock()
	if r.state != StatusConfirmed || r.record == nil {
		r.lock.Unlock()
		return ErrNothingToPersist
	}
	if r.persisted {
		r.lock.Unlock()
		return nil
	}
	record := r.record
	r.lock.Unlock()

	return r.persist(ctx, record, false)
}

// expire fails the request if it is still awaiting confirmation.
func (r *Reconciler) expire(ctx context.Context, requestID uuid.UUID) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.request == nil || r.request.ID != requestID || r.state != StatusAwaitingConfirmation {
		return
	}

	r.request.Status = StatusFailed
	r.err = ErrTimeout
	r.setState(StatusFailed)

	logger.Warn(logger.ContextWithLogSubSystem(ctx, SubSystem), "Pull timed out : %s",
		r.request.TxID)
}

func (r *Reconciler) cancelTimeout(ctx context.Context, requestID uuid.UUID) {
	if r.scheduler == nil {
		return
	}

	err := r.scheduler.CancelJob(ctx, NewPullTimeout(r, requestID, time.Time{}))
	if err != nil && err != scheduler.NotFound {
		logger.Warn(ctx, "Failed to cancel pull timeout : %s", err)
	}
}

// ListOutcomes returns every card stored for identity, oldest first.
func (r *Reconciler) ListOutcomes(ctx context.Context, identity string) ([]CardRecord, error) {
	ctx, span := trace.StartSpan(ctx, "internal.pull.ListOutcomes")
	defer span.End()

	normalized := NormalizeIdentity(identity)
	if len(normalized) == 0 {
		return nil, errors.Wrap(ErrNotConnected, "empty identity")
	}

	records, err := r.store.QueryByRequester(ctx, normalized)
	if err != nil {
		return nil, errors.Wrap(err, "query cards")
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].PulledAt.Before(records[j].PulledAt)
	})

	return records, nil
}

// Status returns a snapshot of the current pull.
func (r *Reconciler) Status() Snapshot {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.snapshot()
}

func (r *Reconciler) snapshot() Snapshot {
	result := Snapshot{
		State:     r.state,
		Persisted: r.persisted,
		Err:       r.err,
	}
	if r.request != nil {
		request := *r.request
		result.Request = &request
	}
	if r.outcome != nil {
		outcome := *r.outcome
		result.Outcome = &outcome
	}
	if r.record != nil {
		record := *r.record
		result.Record = &record
	}
	return result
}

// Wait blocks until the pull reaches a terminal state or ctx is done.
func (r *Reconciler) Wait(ctx context.Context) (Snapshot, error) {
	for {
		r.lock.Lock()
		snapshot := r.snapshot()
		changed := r.changed
		r.lock.Unlock()

		if snapshot.Terminal() {
			return snapshot, nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return snapshot, ctx.Err()
		}
	}
}

// Reset ends the session. Late events for the previous request are ignored.
func (r *Reconciler) Reset(ctx context.Context) {
	r.lock.Lock()
	var requestID uuid.UUID
	if r.request != nil {
		requestID = r.request.ID
	}
	r.request = nil
	r.outcome = nil
	r.record = nil
	r.persisted = false
	r.err = nil
	r.early = nil
	r.setState(StatusIdle)
	r.lock.Unlock()

	if requestID != uuid.Nil {
		r.cancelTimeout(ctx, requestID)
	}
}

// setState must be called with the lock held.
func (r *Reconciler) setState(state Status) {
	r.state = state
	r.notify()
}

// notify wakes waiters. It must be called with the lock held.
func (r *Reconciler) notify() {
	close(r.changed)
	r.changed = make(chan struct{})
}

// Listener delivers ledger events to a reconciler until closed.
type Listener struct {
	sub  event.Subscription
	done chan struct{}
	err  error
}

// Listen subscribes to the ledger and applies events in the background. The subscription is
// active when Listen returns. Cards are stored off the listener so other events keep flowing.
func (r *Reconciler) Listen(ctx context.Context) (*Listener, error) {
	ctx = logger.ContextWithLogSubSystem(ctx, SubSystem)

	ch := make(chan ledger.Event, listenBuffer)
	sub, err := r.ledger.Subscribe(ctx, ch)
	if err != nil {
		return nil, errors.Wrap(err, "subscribe")
	}

	l := &Listener{
		sub:  sub,
		done: make(chan struct{}),
	}

	go func() {
		defer close(l.done)
		l.err = r.listen(ctx, ch, sub)
		sub.Unsubscribe()
		r.waitPersisted()
	}()

	return l, nil
}

func (r *Reconciler) listen(ctx context.Context, ch <-chan ledger.Event,
	sub event.Subscription) error {

	for {
		select {
		case ev := <-ch:
			record, err := r.confirm(ctx, ev)
			if err != nil {
				logger.Warn(ctx, "Failed to apply confirmation %s : %s", ev, err)
				continue
			}
			if record != nil {
				r.persistInBackground(ctx, record)
			}

		case err := <-sub.Err():
			if err != nil {
				logger.Error(ctx, "Subscription failed : %s", err)
			}
			return err

		case <-ctx.Done():
			return nil
		}
	}
}

// Done is closed when the listener stops.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

// Err returns the subscription error after Done is closed.
func (l *Listener) Err() error {
	<-l.done
	return l.err
}

// Close unsubscribes and waits for the listener to stop, including any card it is still storing.
func (l *Listener) Close() error {
	l.sub.Unsubscribe()
	<-l.done
	return l.err
}

// Watch applies ledger events until ctx is done or the subscription fails.
func (r *Reconciler) Watch(ctx context.Context) error {
	l, err := r.Listen(ctx)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return l.Close()
	case <-l.Done():
		return l.Err()
	}
}
