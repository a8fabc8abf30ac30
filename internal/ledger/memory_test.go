package ledger

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/tokenized/pkg/logger"
)

func TestMemorySubmitAndEmit(t *testing.T) {
	ctx := logger.ContextWithNoLogger(context.Background())
	m := NewMemory(84532)

	chainID, err := m.ChainID(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(84532), chainID.Int64())

	ch := make(chan Event, 1)
	sub, err := m.Subscribe(ctx, ch)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	txid, err := m.SubmitPull(ctx, "0xAbC")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(txid, "0x"))
	require.Len(t, txid, 66)

	subs := m.Submissions()
	require.Len(t, subs, 1)
	require.Equal(t, txid, subs[0].TxID)

	sent := Event{Requester: "0xabc", ItemID: 7, CategoryIndex: 3, TxID: txid}
	require.Equal(t, 1, m.Emit(sent))
	require.Equal(t, sent, <-ch)
}

func TestMemorySubmitError(t *testing.T) {
	ctx := logger.ContextWithNoLogger(context.Background())
	m := NewMemory(1)

	rejected := errors.New("User rejected")
	m.SetSubmitError(rejected)

	_, err := m.SubmitPull(ctx, "0xabc")
	require.Equal(t, rejected, err)
	require.Empty(t, m.Submissions())

	m.SetSubmitError(nil)
	_, err = m.SubmitPull(ctx, "0xabc")
	require.NoError(t, err)
}

func TestSimulatedConfirms(t *testing.T) {
	ctx := logger.ContextWithNoLogger(context.Background())
	m := NewSimulated(84532, time.Millisecond)

	ch := make(chan Event, 1)
	sub, err := m.Subscribe(ctx, ch)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	txid, err := m.SubmitPull(ctx, "0xABC")
	require.NoError(t, err)

	select {
	case ev := <-ch:
		require.Equal(t, txid, ev.TxID)
		require.Equal(t, "0xabc", ev.Requester)
		require.Less(t, ev.CategoryIndex, uint64(len(simulatedWeights)))
	case <-time.After(time.Second):
		t.Fatalf("No simulated confirmation")
	}
}
