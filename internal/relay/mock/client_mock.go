package mock

import (
	"context"
	"sync"

	"homelab-agent/internal/models"
)

// RelayClientMock запоминает отправленные конверты вместо HTTP-запросов.
type RelayClientMock struct {
	mu        sync.Mutex
	envelopes []models.RelayEnvelope

	// FailNextCall используется для тестирования сценариев с ошибками.
	FailNextCall bool
}

// NewRelayClientMock создает новый экземпляр мока.
func NewRelayClientMock() *RelayClientMock {
	return &RelayClientMock{}
}

func (m *RelayClientMock) Relay(ctx context.Context, envelope models.RelayEnvelope) models.RelayOutcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.envelopes = append(m.envelopes, envelope)
	if m.FailNextCall {
		m.FailNextCall = false // Сбрасываем флаг после использования
		return models.RelayOutcome{ErrorKind: models.RelayConnection, Error: "Ошибка подключения к VPS: mock relay failed"}
	}
	return models.RelayOutcome{Success: true, Message: "Отправлено на VPS", Response: `{"ok":true}`, StatusCode: 200}
}

// Envelopes возвращает копию всех отправленных конвертов.
func (m *RelayClientMock) Envelopes() []models.RelayEnvelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.RelayEnvelope(nil), m.envelopes...)
}
