package recordstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tokenized/gacha/internal/platform/config"
	"github.com/tokenized/gacha/internal/platform/db"
	"github.com/tokenized/gacha/internal/pull"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/tokenized/pkg/logger"
)

// testStoreContract checks the behaviour every store must have.
func testStoreContract(t *testing.T, store Store) {
	ctx := logger.ContextWithNoLogger(context.Background())

	// Millisecond precision is the lowest any store keeps.
	base := time.Now().UTC().Truncate(time.Millisecond)
	userA := "0x" + uuid.New().String()[:8]
	userB := "0x" + uuid.New().String()[:8]

	records := []pull.CardRecord{
		{TxID: uuid.New().String(), User: userA, TokenID: 2, Rarity: "Gold", CategoryIndex: 4,
			BlockNumber: 11, PulledAt: base.Add(2 * time.Second)},
		{TxID: uuid.New().String(), User: userA, TokenID: 1, Rarity: "Common", CategoryIndex: 0,
			BlockNumber: 10, PulledAt: base.Add(time.Second)},
		{TxID: uuid.New().String(), User: userB, TokenID: 3, Rarity: "Mythic", CategoryIndex: 9,
			BlockNumber: 12, PulledAt: base},
	}

	for i := range records {
		inserted, err := store.InsertIfAbsent(ctx, records[i].TxID, &records[i])
		require.NoError(t, err)
		require.True(t, inserted, "record %d", i)
	}

	// Same key, different content, is not stored again.
	duplicate := records[0]
	duplicate.TokenID = 99
	inserted, err := store.InsertIfAbsent(ctx, duplicate.TxID, &duplicate)
	require.NoError(t, err)
	require.False(t, inserted)

	got, err := store.QueryByRequester(ctx, userA)
	require.NoError(t, err)
	require.Len(t, got, 2)

	for i, want := range []pull.CardRecord{records[1], records[0]} {
		require.Equal(t, want.TxID, got[i].TxID)
		require.Equal(t, want.User, got[i].User)
		require.Equal(t, want.TokenID, got[i].TokenID)
		require.Equal(t, want.Rarity, got[i].Rarity)
		require.Equal(t, want.CategoryIndex, got[i].CategoryIndex)
		require.Equal(t, want.BlockNumber, got[i].BlockNumber)
		require.True(t, want.PulledAt.Equal(got[i].PulledAt), "pulled at %s != %s",
			want.PulledAt, got[i].PulledAt)
	}

	none, err := store.QueryByRequester(ctx, "0xnobody")
	require.NoError(t, err)
	require.Empty(t, none)

	require.NoError(t, store.Close(ctx))
}

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, NewMemory())
}

func TestDocumentStore(t *testing.T) {
	masterDB, err := db.New(&db.StorageConfig{
		Bucket: "standalone",
		Root:   t.TempDir(),
	})
	require.NoError(t, err)

	testStoreContract(t, NewDocumentStore(masterDB))
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()

	store, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "data", "cards.db"))
	require.NoError(t, err)

	testStoreContract(t, store)
}

func TestSQLiteReopen(t *testing.T) {
	ctx := logger.ContextWithNoLogger(context.Background())
	path := filepath.Join(t.TempDir(), "cards.db")

	store, err := OpenSQLite(ctx, path)
	require.NoError(t, err)

	record := &pull.CardRecord{TxID: "0x01", User: "0xabc", TokenID: 1, Rarity: "Epic",
		CategoryIndex: 7, PulledAt: time.Now()}
	inserted, err := store.InsertIfAbsent(ctx, record.TxID, record)
	require.NoError(t, err)
	require.True(t, inserted)
	require.NoError(t, store.Close(ctx))

	store, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer store.Close(ctx)

	inserted, err = store.InsertIfAbsent(ctx, record.TxID, record)
	require.NoError(t, err)
	require.False(t, inserted)

	got, err := store.QueryByRequester(ctx, "0xabc")
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestRebind(t *testing.T) {
	s := &SQLStore{dialect: DialectPostgres}
	require.Equal(t, "SELECT * FROM cards WHERE a = $1 AND b = $2",
		s.rebind("SELECT * FROM cards WHERE a = ? AND b = ?"))

	s.dialect = DialectSQLite
	require.Equal(t, "a = ?", s.rebind("a = ?"))
}

func TestNewSelectsStore(t *testing.T) {
	ctx := logger.ContextWithNoLogger(context.Background())
	dir := t.TempDir()

	var cfg config.Config
	cfg.Storage.Bucket = "standalone"
	cfg.Storage.Root = dir
	cfg.SQL.SQLitePath = filepath.Join(dir, "cards.db")

	for _, tt := range []struct {
		storageType string
		check       func(Store) bool
	}{
		{"memory", func(s Store) bool { _, ok := s.(*Memory); return ok }},
		{"document", func(s Store) bool { _, ok := s.(*DocumentStore); return ok }},
		{"sqlite", func(s Store) bool { _, ok := s.(*SQLStore); return ok }},
	} {
		cfg.Storage.Type = tt.storageType
		store, err := New(ctx, &cfg)
		require.NoError(t, err, tt.storageType)
		require.True(t, tt.check(store), tt.storageType)
		require.NoError(t, store.Close(ctx))
	}

	cfg.Storage.Type = "firestore"
	_, err := New(ctx, &cfg)
	require.Error(t, err)
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("GACHA_TEST_MONGODB_URI")
	if uri == "" {
		t.Skip("GACHA_TEST_MONGODB_URI not set")
	}

	store, err := NewMongoStore(context.Background(), uri, "gacha_test", "cards")
	require.NoError(t, err)

	testStoreContract(t, store)
}

func TestDynamoStore(t *testing.T) {
	endpoint := os.Getenv("GACHA_TEST_DYNAMODB_ENDPOINT")
	if endpoint == "" {
		t.Skip("GACHA_TEST_DYNAMODB_ENDPOINT not set")
	}

	store, err := NewDynamoStore(context.Background(), DynamoConfig{
		Region:    "us-east-1",
		AccessKey: "local",
		Secret:    "local",
		Endpoint:  endpoint,
		Table:     "gacha_cards_test",
	})
	require.NoError(t, err)

	testStoreContract(t, store)
}

func TestPostgresStore(t *testing.T) {
	uri := os.Getenv("GACHA_TEST_POSTGRES_URI")
	if uri == "" {
		t.Skip("GACHA_TEST_POSTGRES_URI not set")
	}

	store, err := OpenPostgres(context.Background(), uri)
	require.NoError(t, err)

	testStoreContract(t, store)
}
