package recordstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/tokenized/gacha/internal/platform/db"
	"github.com/tokenized/gacha/internal/pull"

	"github.com/pkg/errors"
	"github.com/tokenized/pkg/logger"
	"go.opencensus.io/trace"

	sync "github.com/sasha-s/go-deadlock"
)

const (
	storageKey = "cards"
)

// DocumentStore keeps one JSON document per card in the document DB, under
// cards/<user>/<transaction id>.
type DocumentStore struct {
	masterDB *db.DB

	// The document DB has no conditional write, so inserts from this process are serialized.
	lock sync.Mutex
}

func NewDocumentStore(masterDB *db.DB) *DocumentStore {
	return &DocumentStore{
		masterDB: masterDB,
	}
}

func (s *DocumentStore) InsertIfAbsent(ctx context.Context, key string,
	record *pull.CardRecord) (bool, error) {

	ctx, span := trace.StartSpan(ctx, "internal.recordstore.Document.InsertIfAbsent")
	defer span.End()

	s.lock.Lock()
	defer s.lock.Unlock()

	path := buildStoragePath(record.User, key)

	_, err := s.masterDB.Fetch(ctx, path)
	if err == nil {
		return false, nil
	}
	if err != db.ErrNotFound {
		return false, errors.Wrap(err, "fetch card")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return false, errors.Wrap(err, "marshal card")
	}

	if err := s.masterDB.Put(ctx, path, data); err != nil {
		return false, errors.Wrap(err, "put card")
	}

	logger.Verbose(logger.ContextWithLogSubSystem(ctx, SubSystem), "Stored card %s", path)
	return true, nil
}

func (s *DocumentStore) QueryByRequester(ctx context.Context,
	identity string) ([]pull.CardRecord, error) {

	ctx, span := trace.StartSpan(ctx, "internal.recordstore.Document.QueryByRequester")
	defer span.End()

	data, err := s.masterDB.Search(ctx, fmt.Sprintf("%s/%s", storageKey, url.PathEscape(identity)))
	if err != nil {
		return nil, errors.Wrap(err, "search cards")
	}

	result := make([]pull.CardRecord, 0, len(data))
	for _, b := range data {
		var record pull.CardRecord
		if err := json.Unmarshal(b, &record); err != nil {
			return nil, errors.Wrap(err, "unmarshal card")
		}
		result = append(result, record)
	}

	sortByPulledAt(result)
	return result, nil
}

func (s *DocumentStore) Close(ctx context.Context) error {
	s.masterDB.Close()
	return nil
}

// Returns the storage path prefix for a given identifier.
func buildStoragePath(user, txid string) string {
	return fmt.Sprintf("%s/%s/%s", storageKey, url.PathEscape(user), url.PathEscape(txid))
}
