package wallet

import (
	"context"
	"sync"
	"testing"

	"github.com/kuya-relay/kuya_relay/internal/domain/entities"
	"github.com/kuya-relay/kuya_relay/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore mirrors the database semantics: Create is atomic per
// sender and returns the stored record when a concurrent insert won.
type memoryStore struct {
	mu      sync.Mutex
	records map[entities.SenderID]*entities.WalletRecord
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: map[entities.SenderID]*entities.WalletRecord{}}
}

func (s *memoryStore) GetBySenderID(ctx context.Context, senderID entities.SenderID) (*entities.WalletRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[senderID], nil
}

func (s *memoryStore) Create(ctx context.Context, record *entities.WalletRecord) (*entities.WalletRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.records[record.SenderID]; ok {
		return existing, nil
	}
	s.records[record.SenderID] = record
	return record, nil
}

func TestGetOrCreate_Idempotent(t *testing.T) {
	registry := NewRegistry(newMemoryStore(), logger.New("error", "development"))
	sender := entities.SenderID("whatsapp:+15550001111")

	first, err := registry.GetOrCreate(context.Background(), sender)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := registry.GetOrCreate(context.Background(), sender)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGetOrCreate_DistinctSendersGetDistinctAddresses(t *testing.T) {
	registry := NewRegistry(newMemoryStore(), logger.New("error", "development"))

	a, err := registry.GetOrCreate(context.Background(), "whatsapp:+15550001111")
	require.NoError(t, err)
	b, err := registry.GetOrCreate(context.Background(), "whatsapp:+15550002222")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestGetOrCreate_ConcurrentSingleBinding(t *testing.T) {
	registry := NewRegistry(newMemoryStore(), logger.New("error", "development"))
	sender := entities.SenderID("whatsapp:+15550001111")

	const workers = 16
	results := make([]string, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			addr, err := registry.GetOrCreate(context.Background(), sender)
			assert.NoError(t, err)
			results[i] = addr
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		assert.Equal(t, results[0], results[i], "worker %d bound a second address", i)
	}
}

func TestLookup_DoesNotProvision(t *testing.T) {
	store := newMemoryStore()
	registry := NewRegistry(store, logger.New("error", "development"))

	_, exists, err := registry.Lookup(context.Background(), "whatsapp:+15550001111")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Empty(t, store.records)
}
