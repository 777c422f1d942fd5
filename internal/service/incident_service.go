package service

import (
	"context"
	"log/slog"
	"time"

	"homelab-agent/internal/models"
)

// IncidentReport - уведомление о обработанном инциденте для бота.
type IncidentReport struct {
	Incident *models.Incident
	Analysis AnalysisResult
	Relay    models.RelayOutcome
}

// WebhookResult - итог обработки одного вебхука Uptime Kuma.
type WebhookResult struct {
	Shape       PayloadShape
	TestMessage string
	Incident    *models.Incident
	Analysis    AnalysisResult
	Relay       models.RelayOutcome
}

// IncidentService предоставляет конвейер обработки инцидентов:
// разбор, анализ, запись в журнал, пересылка и уведомление.
type IncidentService struct {
	normalizer       *Normalizer
	analyzer         *IncidentAnalyzer
	relay            RelayClient
	host             string
	now              func() time.Time
	notificationChan chan<- *IncidentReport // Канал для отправки уведомлений
	logger           *slog.Logger
}

// NewIncidentService создает новый экземпляр IncidentService. host - имя
// этой установки, которое видит приемник. notifChan может быть nil.
func NewIncidentService(normalizer *Normalizer, analyzer *IncidentAnalyzer, relay RelayClient, host string, notifChan chan<- *IncidentReport, logger *slog.Logger) *IncidentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IncidentService{
		normalizer:       normalizer,
		analyzer:         analyzer,
		relay:            relay,
		host:             host,
		now:              time.Now,
		notificationChan: notifChan,
		logger:           logger,
	}
}

// HandleUptimeKumaWebhook обрабатывает тело вебхука. Ошибка возвращается
// только для некорректного JSON: сбои модели, журнала и пересылки не
// прерывают обработку.
func (s *IncidentService) HandleUptimeKumaWebhook(ctx context.Context, raw []byte) (WebhookResult, error) {
	alert, err := s.normalizer.Normalize(raw)
	if err != nil {
		return WebhookResult{}, err
	}

	if alert.Shape == ShapeTest {
		s.logger.Info("uptime kuma test notification received", "message", alert.TestMessage)
		return WebhookResult{Shape: ShapeTest, TestMessage: alert.TestMessage}, nil
	}

	// Запись в журнал и пересылка не должны зависеть от того, дождался ли
	// отправитель ответа. Каждый шаг ограничен собственным таймаутом.
	ctx = context.WithoutCancel(ctx)

	incident := alert.Incident
	s.logger.Info("uptime kuma notification received",
		"monitor", incident.MonitorName,
		"status", incident.Status,
		"type", incident.MonitorType,
		"shape", alert.Shape,
	)

	analysis := s.analyzer.AnalyzeWithModel(ctx, incident)
	s.analyzer.RecordIncident(ctx, incident, analysis)

	outcome := s.relay.Relay(ctx, s.envelope(incident, analysis))
	if !outcome.Success {
		s.logger.Warn("relay failed", "monitor", incident.MonitorName, "kind", outcome.ErrorKind, "error", outcome.Error)
	}

	s.notify(&IncidentReport{Incident: incident, Analysis: analysis, Relay: outcome})

	return WebhookResult{
		Shape:    alert.Shape,
		Incident: incident,
		Analysis: analysis,
		Relay:    outcome,
	}, nil
}

// TestModelAnalysis прогоняет модельный анализ на синтетическом инциденте.
func (s *IncidentService) TestModelAnalysis(ctx context.Context) AnalysisResult {
	return s.analyzer.AnalyzeWithModel(ctx, SyntheticIncident(s.now()))
}

// SyntheticIncident - фиксированный инцидент для проверки модели.
func SyntheticIncident(at time.Time) *models.Incident {
	url := "http://localhost:8080"
	host := "localhost"
	port := 8080
	return &models.Incident{
		MonitorName: "test-service",
		MonitorType: models.MonitorHTTP,
		MonitorURL:  &url,
		Hostname:    &host,
		Port:        &port,
		Status:      models.StatusDown,
		Message:     "Connection timeout",
		OccurredAt:  at,
	}
}

func (s *IncidentService) envelope(incident *models.Incident, analysis AnalysisResult) models.RelayEnvelope {
	return models.RelayEnvelope{
		Source:           models.RelaySource,
		Timestamp:        s.now().Format(time.RFC3339),
		Service:          incident.MonitorName,
		Status:           string(incident.Status),
		Details:          models.DetailsOf(incident),
		Host:             s.host,
		WebhookType:      models.RelayWebhookType,
		IncidentAnalysis: analysis.Report,
		IncidentSeverity: models.SeverityFor(incident.Status),
		AnalysisType:     string(analysis.Strategy),
	}
}

// notify не блокирует конвейер: если бот не успевает, уведомление теряется.
func (s *IncidentService) notify(report *IncidentReport) {
	if s.notificationChan == nil {
		return
	}
	select {
	case s.notificationChan <- report:
	default:
		s.logger.Warn("notification channel is full, dropping report", "monitor", report.Incident.MonitorName)
	}
}
