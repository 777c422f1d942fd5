package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"homelab-agent/internal/models"
)

// ErrMalformedPayload - тело вебхука не является JSON-объектом.
var ErrMalformedPayload = errors.New("malformed webhook payload")

// PayloadShape - форма входящего вебхука. Определяется один раз при разборе.
type PayloadShape string

const (
	ShapeTest   PayloadShape = "test"
	ShapeNested PayloadShape = "nested"
	ShapeFlat   PayloadShape = "flat"
)

// testMarker - подстрока, по которой Uptime Kuma помечает тестовые уведомления.
const testMarker = "Testing"

// NormalizedAlert - результат разбора вебхука. Для ShapeTest заполнен только
// TestMessage, для остальных форм - Incident.
type NormalizedAlert struct {
	Shape       PayloadShape
	TestMessage string
	Incident    *models.Incident
}

// Допустимые форматы времени heartbeat.time и alertDateTime.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// Normalizer приводит вебхуки Uptime Kuma любой версии к Incident.
type Normalizer struct {
	now func() time.Time
}

// NewNormalizer создает нормализатор. now используется, когда в вебхуке нет
// распознаваемого времени события.
func NewNormalizer(now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{now: now}
}

// Normalize разбирает тело вебхука. Ошибка возвращается только для
// некорректного JSON, отсутствующие поля заменяются значениями по умолчанию.
func (n *Normalizer) Normalize(raw []byte) (NormalizedAlert, error) {
	var payload models.UptimeKumaPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return NormalizedAlert{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	if payload.Msg.Valid && strings.Contains(payload.Msg.Value, testMarker) {
		return NormalizedAlert{Shape: ShapeTest, TestMessage: payload.Msg.Value}, nil
	}

	hb := payload.Heartbeat
	if hb == nil {
		hb = &models.KumaHeartbeat{}
	}
	mon := payload.Monitor
	if mon == nil {
		mon = &models.KumaMonitor{}
	}

	shape := ShapeFlat
	if payload.Heartbeat != nil || payload.Monitor != nil {
		shape = ShapeNested
	}

	code := firstInt(hb.Status, payload.MonitorStatus)
	incident := &models.Incident{
		MonitorName: firstString(mon.Name, payload.MonitorName, payload.Msg),
		MonitorType: models.MonitorUnknown,
		MonitorURL:  stringPtr(firstString(mon.URL, payload.MonitorURL)),
		Hostname:    stringPtr(firstString(mon.Hostname, payload.MonitorHostname)),
		Port:        firstInt(mon.Port, payload.MonitorPort),
		Status:      models.StatusFromCode(code),
		Message:     firstString(hb.Msg, payload.AlertMessage),
		OccurredAt:  n.occurredAt(firstString(hb.Time, payload.AlertDateTime)),
	}

	if incident.MonitorName == "" {
		incident.MonitorName = "Unknown Monitor"
	}
	if t := firstString(mon.Type, payload.MonitorType); t != "" {
		incident.MonitorType = models.CanonicalMonitorType(t)
	}
	if incident.Message == "" {
		if code != nil {
			incident.Message = fmt.Sprintf("Status changed to %d", *code)
		} else {
			incident.Message = "Status changed"
		}
	}

	return NormalizedAlert{Shape: shape, Incident: incident}, nil
}

func (n *Normalizer) occurredAt(raw string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t
		}
	}
	return n.now()
}

// firstString возвращает первое непустое значение по приоритету.
func firstString(values ...models.OptString) string {
	for _, v := range values {
		if v.Present() {
			return strings.TrimSpace(v.Value)
		}
	}
	return ""
}

func firstInt(values ...models.OptInt) *int {
	for _, v := range values {
		if v.Valid {
			return v.Ptr()
		}
	}
	return nil
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
