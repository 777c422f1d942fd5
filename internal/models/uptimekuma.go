package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// UptimeKumaPayload - корневая структура вебхука Uptime Kuma. Новые версии
// присылают вложенные heartbeat/monitor, старые - плоские поля monitor*/alert*.
type UptimeKumaPayload struct {
	Msg       OptString      `json:"msg"`
	Heartbeat *KumaHeartbeat `json:"heartbeat"`
	Monitor   *KumaMonitor   `json:"monitor"`

	MonitorStatus   OptInt    `json:"monitorStatus"`
	AlertMessage    OptString `json:"alertMessage"`
	AlertDateTime   OptString `json:"alertDateTime"`
	MonitorName     OptString `json:"monitorName"`
	MonitorType     OptString `json:"monitorType"`
	MonitorURL      OptString `json:"monitorURL"`
	MonitorHostname OptString `json:"monitorHostname"`
	MonitorPort     OptInt    `json:"monitorPort"`
}

// KumaHeartbeat - результат одной проверки.
type KumaHeartbeat struct {
	Status OptInt    `json:"status"`
	Msg    OptString `json:"msg"`
	Time   OptString `json:"time"`
}

// KumaMonitor описывает сам монитор.
type KumaMonitor struct {
	Name     OptString `json:"name"`
	Type     OptString `json:"type"`
	URL      OptString `json:"url"`
	Hostname OptString `json:"hostname"`
	Port     OptInt    `json:"port"`
}

// OptString принимает строку, число или null. Пустая строка считается заданной.
type OptString struct {
	Value string
	Valid bool
}

func (s *OptString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = OptString{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = OptString{Value: v, Valid: true}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*s = OptString{Value: n.String(), Valid: true}
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*s = OptString{Value: strconv.FormatBool(b), Valid: true}
		return nil
	}
	return fmt.Errorf("unsupported string value %s", data)
}

// Present сообщает, что значение задано и не пустое.
func (s OptString) Present() bool {
	return s.Valid && strings.TrimSpace(s.Value) != ""
}

// OptInt принимает целое число, числовую строку или null. Нечисловые строки
// не ошибка, а отсутствующее значение.
type OptInt struct {
	Value int
	Valid bool
}

func (i *OptInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*i = OptInt{}
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
	}
	if n, err := strconv.Atoi(raw); err == nil {
		*i = OptInt{Value: n, Valid: true}
		return nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && f == float64(int(f)) {
		*i = OptInt{Value: int(f), Valid: true}
		return nil
	}
	*i = OptInt{}
	return nil
}

// Ptr возвращает указатель на значение или nil.
func (i OptInt) Ptr() *int {
	if !i.Valid {
		return nil
	}
	v := i.Value
	return &v
}
