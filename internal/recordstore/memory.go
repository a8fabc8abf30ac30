package recordstore

import (
	"context"

	"github.com/tokenized/gacha/internal/pull"

	sync "github.com/sasha-s/go-deadlock"
)

// Memory is a process local store.
type Memory struct {
	lock    sync.Mutex
	records map[string]pull.CardRecord
}

func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]pull.CardRecord),
	}
}

func (m *Memory) InsertIfAbsent(ctx context.Context, key string,
	record *pull.CardRecord) (bool, error) {

	m.lock.Lock()
	defer m.lock.Unlock()

	if _, exists := m.records[key]; exists {
		return false, nil
	}

	m.records[key] = *record
	return true, nil
}

func (m *Memory) QueryByRequester(ctx context.Context, identity string) ([]pull.CardRecord,
	error) {

	m.lock.Lock()
	defer m.lock.Unlock()

	var result []pull.CardRecord
	for _, record := range m.records {
		if record.User == identity {
			result = append(result, record)
		}
	}

	sortByPulledAt(result)
	return result, nil
}

func (m *Memory) Close(ctx context.Context) error {
	return nil
}
