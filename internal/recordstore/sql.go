package recordstore

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tokenized/gacha/internal/pull"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/tokenized/pkg/logger"
	"go.opencensus.io/trace"
)

// Dialect is the SQL flavour of a SQLStore.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS cards (
		tx_id          TEXT PRIMARY KEY,
		user_id        TEXT NOT NULL,
		token_id       BIGINT NOT NULL,
		rarity         TEXT NOT NULL,
		category_index BIGINT NOT NULL,
		block_number   BIGINT NOT NULL,
		pulled_at      BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS cards_user_pulled_at ON cards (user_id, pulled_at)`,
}

var sqlitePragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
}

// SQLStore keeps cards in a SQL table with the transaction id as primary key. pulled_at holds
// unix nanoseconds.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// OpenPostgres connects to a PostgreSQL database and creates the table if needed.
func OpenPostgres(ctx context.Context, uri string) (*SQLStore, error) {
	db, err := sql.Open("postgres", uri)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}

	return newSQLStore(ctx, db, DialectPostgres)
}

// OpenSQLite opens or creates a SQLite database file.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrap(err, "create database directory")
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return newSQLStore(ctx, db, DialectSQLite)
}

func newSQLStore(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLStore, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping database")
	}

	var statements []string
	if dialect == DialectSQLite {
		statements = append(statements, sqlitePragmas...)
	}
	statements = append(statements, schema...)

	for _, statement := range statements {
		if _, err := db.ExecContext(ctx, statement); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "exec %q", firstLine(statement))
		}
	}

	return &SQLStore{
		db:      db,
		dialect: dialect,
	}, nil
}

func (s *SQLStore) InsertIfAbsent(ctx context.Context, key string,
	record *pull.CardRecord) (bool, error) {

	ctx, span := trace.StartSpan(ctx, "internal.recordstore.SQL.InsertIfAbsent")
	defer span.End()

	result, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO cards
		(tx_id, user_id, token_id, rarity, category_index, block_number, pulled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tx_id) DO NOTHING`),
		key, record.User, int64(record.TokenID), record.Rarity, int64(record.CategoryIndex),
		int64(record.BlockNumber), record.PulledAt.UnixNano())
	if err != nil {
		return false, errors.Wrap(err, "insert card")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "rows affected")
	}

	if affected > 0 {
		logger.Verbose(logger.ContextWithLogSubSystem(ctx, SubSystem), "Stored card %s", key)
	}
	return affected > 0, nil
}

func (s *SQLStore) QueryByRequester(ctx context.Context,
	identity string) ([]pull.CardRecord, error) {

	ctx, span := trace.StartSpan(ctx, "internal.recordstore.SQL.QueryByRequester")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT
		tx_id, user_id, token_id, rarity, category_index, block_number, pulled_at
		FROM cards WHERE user_id = ? ORDER BY pulled_at ASC, tx_id ASC`), identity)
	if err != nil {
		return nil, errors.Wrap(err, "query cards")
	}
	defer rows.Close()

	var result []pull.CardRecord
	for rows.Next() {
		var record pull.CardRecord
		var tokenID, categoryIndex, blockNumber, pulledAt int64
		if err := rows.Scan(&record.TxID, &record.User, &tokenID, &record.Rarity,
			&categoryIndex, &blockNumber, &pulledAt); err != nil {
			return nil, errors.Wrap(err, "scan card")
		}

		record.TokenID = uint64(tokenID)
		record.CategoryIndex = uint64(categoryIndex)
		record.BlockNumber = uint64(blockNumber)
		record.PulledAt = time.Unix(0, pulledAt).UTC()
		result = append(result, record)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "read cards")
	}

	return result, nil
}

func (s *SQLStore) Close(ctx context.Context) error {
	return s.db.Close()
}

// rebind converts ? placeholders to $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
