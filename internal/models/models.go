package models

import (
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// IncidentStatus определяет возможные состояния монитора.
type IncidentStatus string

const (
	StatusDown        IncidentStatus = "down"
	StatusUp          IncidentStatus = "up"
	StatusMaintenance IncidentStatus = "maintenance"
	StatusUnknown     IncidentStatus = "unknown"
	// StatusError приходит только от внешних систем, Uptime Kuma его не присылает.
	StatusError IncidentStatus = "error"
)

// IsFailure сообщает, требует ли статус полного диагностического отчета.
func (s IncidentStatus) IsFailure() bool {
	return s == StatusDown || s == StatusError
}

// Канонические типы мониторов.
const (
	MonitorHTTP      = "http"
	MonitorHTTPS     = "https"
	MonitorTCP       = "tcp"
	MonitorPing      = "ping"
	MonitorDNS       = "dns"
	MonitorDocker    = "docker"
	MonitorContainer = "container"
	MonitorUnknown   = "unknown"
)

// Incident - нормализованное событие монитора. Создается один раз на входящий
// вебхук и дальше не изменяется.
type Incident struct {
	MonitorName string         `json:"monitor_name"`
	MonitorType string         `json:"monitor_type"`
	MonitorURL  *string        `json:"monitor_url,omitempty"`
	Hostname    *string        `json:"hostname,omitempty"`
	Port        *int           `json:"port,omitempty"`
	Status      IncidentStatus `json:"status"`
	Message     string         `json:"message"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

// URLOrNA, HostOrNA и PortOrNA используются при выводе в отчеты.
func (i *Incident) URLOrNA() string {
	if i.MonitorURL == nil || *i.MonitorURL == "" {
		return "N/A"
	}
	return *i.MonitorURL
}

func (i *Incident) HostOrNA() string {
	if i.Hostname == nil || *i.Hostname == "" {
		return "N/A"
	}
	return *i.Hostname
}

func (i *Incident) PortOrNA() string {
	if i.Port == nil {
		return "N/A"
	}
	return strconv.Itoa(*i.Port)
}

// Kind записи в журнале. Набор открытый, здесь только те, что пишет сервис.
const (
	KindChatRequest         = "chat_request"
	KindChatResponse        = "chat_response"
	KindChatError           = "chat_error"
	KindUpload              = "upload"
	KindWebhook             = "webhook"
	KindWebhookError        = "webhook_error"
	KindIncidentAnalysis    = "incident_analysis"
	KindIncidentAnalysisLLM = "incident_analysis_llm"
)

// LogRecord - строка журнала. Записи только добавляются, обновления и удаления
// не предусмотрены.
type LogRecord struct {
	ID        uint              `gorm:"primarykey" json:"id"`
	Kind      string            `gorm:"index;not null" json:"kind"`
	Source    string            `json:"source"`
	Content   string            `gorm:"type:text" json:"content"`
	Metadata  datatypes.JSONMap `json:"metadata,omitempty"`
	Timestamp string            `gorm:"index;not null" json:"timestamp"`
}

// TableName фиксирует имя таблицы, совпадающее с миграциями.
func (LogRecord) TableName() string {
	return "log_records"
}

// TimestampFormat - формат поля Timestamp (ISO-8601, UTC).
const TimestampFormat = "2006-01-02T15:04:05.000000Z07:00"

// FormatTimestamp приводит время к формату журнала.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

// StatusFromCode переводит числовой код Uptime Kuma в статус. Функция тотальна:
// отсутствующий или незнакомый код дает StatusUnknown.
func StatusFromCode(code *int) IncidentStatus {
	if code == nil {
		return StatusUnknown
	}
	switch *code {
	case 0:
		return StatusDown
	case 1:
		return StatusUp
	case 2:
		return StatusMaintenance
	default:
		return StatusUnknown
	}
}

// monitorTypeRules проверяются по порядку: первое совпадение подстроки
// побеждает, поэтому https стоит раньше http, а docker раньше container.
var monitorTypeRules = []struct {
	keywords  []string
	canonical string
}{
	{[]string{"https"}, MonitorHTTPS},
	{[]string{"http", "keyword", "json-query", "real-browser"}, MonitorHTTP},
	{[]string{"tcp", "port"}, MonitorTCP},
	{[]string{"ping", "icmp"}, MonitorPing},
	{[]string{"dns"}, MonitorDNS},
	{[]string{"docker"}, MonitorDocker},
	{[]string{"container"}, MonitorContainer},
}

// CanonicalMonitorType сводит имена типов Uptime Kuma к каноническому набору
// по подстроке без учета регистра.
func CanonicalMonitorType(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	for _, rule := range monitorTypeRules {
		for _, kw := range rule.keywords {
			if strings.Contains(t, kw) {
				return rule.canonical
			}
		}
	}
	return MonitorUnknown
}
