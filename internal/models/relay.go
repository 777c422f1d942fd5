package models

import "time"

// RelayEnvelope - тело запроса на удаленный приемник (VPS).
type RelayEnvelope struct {
	Source           string          `json:"source"`
	Timestamp        string          `json:"timestamp"`
	Service          string          `json:"service"`
	Status           string          `json:"status"`
	Details          IncidentDetails `json:"details"`
	Host             string          `json:"host"`
	WebhookType      string          `json:"webhook_type"`
	IncidentAnalysis string          `json:"incident_analysis"`
	IncidentSeverity string          `json:"incident_severity"`
	AnalysisType     string          `json:"analysis_type"`
}

// IncidentDetails - полный набор полей инцидента в конверте.
type IncidentDetails struct {
	MonitorName string  `json:"monitor_name"`
	MonitorURL  string  `json:"monitor_url"`
	Status      string  `json:"status"`
	AlertType   string  `json:"alert_type"`
	Message     string  `json:"message"`
	DateTime    string  `json:"datetime"`
	MonitorType string  `json:"monitor_type"`
	Hostname    *string `json:"hostname"`
	Port        *int    `json:"port"`
}

// DetailsOf собирает детали инцидента для конверта и отчетов.
func DetailsOf(i *Incident) IncidentDetails {
	return IncidentDetails{
		MonitorName: i.MonitorName,
		MonitorURL:  i.URLOrNA(),
		Status:      string(i.Status),
		AlertType:   "status_change",
		Message:     i.Message,
		DateTime:    i.OccurredAt.Format(time.RFC3339),
		MonitorType: i.MonitorType,
		Hostname:    i.Hostname,
		Port:        i.Port,
	}
}

const (
	RelaySource      = "homelab_uptime_kuma"
	RelayWebhookType = "uptime_kuma"

	SeverityHigh   = "high"
	SeverityNormal = "normal"
)

// SeverityFor возвращает серьезность, которую видит приемник.
func SeverityFor(status IncidentStatus) string {
	if status.IsFailure() {
		return SeverityHigh
	}
	return SeverityNormal
}

// RelayErrorKind классифицирует неудачную доставку.
type RelayErrorKind string

const (
	RelayOK         RelayErrorKind = ""
	RelayNotFound   RelayErrorKind = "not_found"
	RelayHTTPStatus RelayErrorKind = "http_status"
	RelayTimeout    RelayErrorKind = "timeout"
	RelayConnection RelayErrorKind = "connection"
	RelayDisabled   RelayErrorKind = "disabled"
	RelayUnexpected RelayErrorKind = "unexpected"
)

// RelayOutcome - результат доставки. Ошибки доставки не прерывают обработку
// инцидента, поэтому возвращаются значением.
type RelayOutcome struct {
	Success    bool           `json:"success"`
	Message    string         `json:"message,omitempty"`
	Response   string         `json:"response,omitempty"`
	Error      string         `json:"error,omitempty"`
	ErrorKind  RelayErrorKind `json:"error_kind,omitempty"`
	StatusCode int            `json:"status_code,omitempty"`
}
