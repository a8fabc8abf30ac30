package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/tokenized/gacha/internal/ledger"
	"github.com/tokenized/gacha/internal/platform/db"
	"github.com/tokenized/gacha/internal/pull"
	"github.com/tokenized/gacha/internal/recordstore"
	"github.com/tokenized/gacha/pkg/wallet"

	"github.com/pkg/errors"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
	"github.com/tokenized/pkg/logger"
	"gopkg.in/yaml.v3"
)

const (
	testKey     = "0x0000000000000000000000000000000000000000000000000000000000000001"
	testAddress = "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf"
	testUser    = "0x7e5f4552091a69125d5dfcb7b8c2659029395bdf"
)

// setupEnv configures a simulated ledger and a document store in a temp directory. It returns
// the storage root.
func setupEnv(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	t.Setenv("ETH_SIMULATE", "true")
	t.Setenv("ETH_SIMULATE_DELAY", "10ms")
	t.Setenv("PRIV_KEY", testKey)
	t.Setenv("STORAGE_TYPE", "document")
	t.Setenv("CARD_STORAGE_BUCKET", "standalone")
	t.Setenv("CARD_STORAGE_ROOT", root)
	t.Setenv("SCHEDULER_FREQUENCY", "5ms")
	t.Setenv("PULL_TIMEOUT", "10s")

	previous := newContext
	newContext = func() context.Context {
		return logger.ContextWithNoLogger(context.Background())
	}
	t.Cleanup(func() { newContext = previous })

	return root
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

func seedCards(t *testing.T, root string) {
	t.Helper()
	ctx := logger.ContextWithNoLogger(context.Background())

	masterDB, err := db.New(&db.StorageConfig{Bucket: "standalone", Root: root})
	require.NoError(t, err)
	store := recordstore.NewDocumentStore(masterDB)
	defer store.Close(ctx)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for _, record := range []pull.CardRecord{
		{TxID: "0x02", User: testUser, TokenID: 42, Rarity: "Legendary", CategoryIndex: 8,
			BlockNumber: 12, PulledAt: base.Add(2 * time.Minute)},
		{TxID: "0x01", User: testUser, TokenID: 1, Rarity: "Common", CategoryIndex: 0,
			BlockNumber: 10, PulledAt: base.Add(time.Minute)},
	} {
		record := record
		_, err := store.InsertIfAbsent(ctx, record.TxID, &record)
		require.NoError(t, err)
	}
}

func TestCardsText(t *testing.T) {
	root := setupEnv(t)
	seedCards(t, root)

	out, err := run(t, "cards", testAddress, "--format", "text")
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "cards_text", []byte(out))
}

func TestCardsJSON(t *testing.T) {
	root := setupEnv(t)
	seedCards(t, root)

	out, err := run(t, "cards", testAddress, "--format", "json")
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "cards_json", []byte(out))
}

func TestCardsYAML(t *testing.T) {
	root := setupEnv(t)
	seedCards(t, root)

	out, err := run(t, "cards", testAddress, "--format", "yaml")
	require.NoError(t, err)

	var records []pull.CardRecord
	require.NoError(t, yaml.Unmarshal([]byte(out), &records))
	require.Len(t, records, 2)
	require.Equal(t, "0x01", records[0].TxID)
	require.Equal(t, "Legendary", records[1].Rarity)
	require.True(t, records[1].PulledAt.Equal(time.Date(2024, 5, 1, 12, 2, 0, 0, time.UTC)))
}

func TestCardsEmpty(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "cards", "0xDEF", "--format", "text")
	require.NoError(t, err)
	require.Equal(t, "No cards\n", out)

	out, err = run(t, "cards", "0xDEF", "--format", "json")
	require.NoError(t, err)
	require.Equal(t, "[]\n", out)
}

func TestCardsInvalidFormat(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "cards", testAddress, "--format", "xml")
	require.Error(t, err)
}

func TestAccount(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "account")
	require.NoError(t, err)
	require.Equal(t, "Account : "+testAddress+"\n", out)
}

func TestPullSimulated(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "pull", "--format", "json")
	require.NoError(t, err)

	var card pull.CardRecord
	require.NoError(t, json.Unmarshal([]byte(out), &card))
	require.Equal(t, testUser, card.User)
	require.NotEmpty(t, card.TxID)
	require.Less(t, card.CategoryIndex, uint64(pull.RarityCount))

	rarity, err := pull.RarityFromIndex(card.CategoryIndex)
	require.NoError(t, err)
	require.Equal(t, rarity.String(), card.Rarity)

	// The pulled card is listed for the connected account.
	out, err = run(t, "cards", "--format", "json")
	require.NoError(t, err)

	var records []pull.CardRecord
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 1)
	require.Equal(t, card.TxID, records[0].TxID)
}

func TestInfoSimulated(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "info")
	require.NoError(t, err)
	require.Contains(t, out, "Required chain : 84532\n")
	require.Contains(t, out, "Ledger chain   : 84532\n")
	require.Contains(t, out, "Ledger         : simulated\n")
}

func TestConfigMasksSecrets(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "config")
	require.NoError(t, err)
	require.Contains(t, out, "*** Masked ***")
	require.False(t, strings.Contains(out, strings.TrimPrefix(testKey, "0x")),
		"private key printed")
}

func TestConfigRejectsTextFormat(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "config", "--format", "text")
	require.Error(t, err)
}

// unavailableStore fails every insert.
type unavailableStore struct {
	*recordstore.Memory
}

func (s unavailableStore) InsertIfAbsent(ctx context.Context, key string,
	record *pull.CardRecord) (bool, error) {
	return false, errors.New("Store unavailable")
}

type brokenWriter struct{}

func (brokenWriter) Write(p []byte) (int, error) {
	return 0, errors.New("Broken pipe")
}

func TestFinishPullNotStored(t *testing.T) {
	ctx := logger.ContextWithNoLogger(context.Background())

	w := wallet.New()
	_, err := w.Register(testKey)
	require.NoError(t, err)

	r := pull.NewReconciler(pull.Config{ChainID: 84532, PersistRetryWait: time.Millisecond}, w,
		ledger.NewMemory(84532), unavailableStore{recordstore.NewMemory()}, nil)

	account, err := r.Connect(ctx)
	require.NoError(t, err)
	request, err := r.Submit(ctx, account)
	require.NoError(t, err)

	err = r.OnConfirmationEvent(ctx, ledger.Event{Requester: testUser, ItemID: 42,
		CategoryIndex: 8, TxID: request.TxID})
	require.Equal(t, pull.ErrPersistenceFailed, errors.Cause(err))
	snapshot := r.Status()

	// The card is still shown when storing it fails.
	var out bytes.Buffer
	c := newPullCommand()
	c.SetOut(&out)
	err = finishPull(ctx, c, r, snapshot, FormatJSON)
	require.Equal(t, pull.ErrPersistenceFailed, errors.Cause(err))
	require.Contains(t, out.String(), request.TxID)

	// Both failures are reported.
	c.SetOut(brokenWriter{})
	err = finishPull(ctx, c, r, snapshot, FormatJSON)
	require.Equal(t, pull.ErrPersistenceFailed, errors.Cause(err))
	require.Contains(t, err.Error(), "Broken pipe")
	require.Contains(t, err.Error(), "card pulled but not stored")
}
