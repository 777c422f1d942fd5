package inmemory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"homelab-agent/internal/models"
	"homelab-agent/internal/service"
)

// ErrAppendFailed возвращается, когда включен FailAppend.
var ErrAppendFailed = errors.New("mock: append failed")

// MockLogRepository - это in-memory реализация LogRepository для тестов.
type MockLogRepository struct {
	mu      sync.RWMutex
	records []models.LogRecord
	nextID  uint

	// FailAppend заставляет все вызовы Append возвращать ошибку.
	FailAppend bool
}

// NewMockLogRepository создает новый экземпляр мок-репозитория.
func NewMockLogRepository() *MockLogRepository {
	return &MockLogRepository{nextID: 1}
}

var _ service.LogRepository = (*MockLogRepository)(nil)

func (m *MockLogRepository) Append(ctx context.Context, record *models.LogRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailAppend {
		return ErrAppendFailed
	}
	if record.Timestamp == "" {
		record.Timestamp = models.FormatTimestamp(time.Now())
	}
	record.ID = m.nextID
	m.nextID++
	m.records = append(m.records, *record)
	return nil
}

// newestFirst возвращает записи, удовлетворяющие match, от новых к старым.
func (m *MockLogRepository) newestFirst(limit int, match func(models.LogRecord) bool) []models.LogRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.LogRecord
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		if match(m.records[i]) {
			out = append(out, m.records[i])
		}
	}
	return out
}

func (m *MockLogRepository) QueryByKind(ctx context.Context, kind string, limit int) ([]models.LogRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	return m.newestFirst(limit, func(r models.LogRecord) bool {
		return kind == "" || r.Kind == kind
	}), nil
}

func (m *MockLogRepository) SearchContent(ctx context.Context, query string, k int) ([]models.LogRecord, error) {
	if k <= 0 {
		k = 5
	}
	return m.newestFirst(k, func(r models.LogRecord) bool {
		return strings.Contains(r.Content, query)
	}), nil
}

func (m *MockLogRepository) RecentContext(ctx context.Context, k int) ([]models.ContextEntry, error) {
	if k <= 0 {
		k = 10
	}
	return service.ToContextEntries(m.newestFirst(k, func(models.LogRecord) bool { return true })), nil
}

func (m *MockLogRepository) Ping(ctx context.Context) error {
	return nil
}

// All возвращает копию всех записей в порядке добавления.
func (m *MockLogRepository) All() []models.LogRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.LogRecord(nil), m.records...)
}
