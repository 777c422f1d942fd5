package models

// ContextEntry - укороченная запись журнала для контекста агента.
type ContextEntry struct {
	ID        uint   `json:"id"`
	Kind      string `json:"kind"`
	Source    string `json:"source"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// Statistics - агрегаты по последним записям incident_analysis.
type Statistics struct {
	TotalIncidents  int            `json:"total_incidents"`
	DownIncidents   int            `json:"down_incidents"`
	UpIncidents     int            `json:"up_incidents"`
	MonitorTypes    map[string]int `json:"monitor_types"`
	Sources         map[string]int `json:"sources"`
	RecoveryPercent float64        `json:"recovery_percent"`
}
