package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"homelab-agent/internal/models"

	"gorm.io/datatypes"
)

// ErrModelUnavailable - языковая модель не настроена.
var ErrModelUnavailable = errors.New("language model is not configured")

var errEmptyAnswer = errors.New("language model returned an empty answer")

// AnalysisStrategy - каким способом был построен отчет.
type AnalysisStrategy string

const (
	StrategyRule  AnalysisStrategy = "rule"
	StrategyLLM   AnalysisStrategy = "llm"
	StrategyBasic AnalysisStrategy = "basic"
)

// AnalysisResult - отчет и способ его получения. Fallback содержит причину,
// по которой модель не использовалась, если ее пытались вызвать.
type AnalysisResult struct {
	Report   string
	Strategy AnalysisStrategy
	Fallback error
}

const (
	defaultModelTimeout = 30 * time.Second
	previewRunes        = 500
	analysisSource      = "uptime_kuma_webhook"
)

// IncidentAnalyzer строит отчеты по инцидентам: по таблице правил или с
// помощью модели с тихим откатом на правила.
type IncidentAnalyzer struct {
	model        ModelClient
	logs         LogRepository
	modelTimeout time.Duration
	logger       *slog.Logger
}

// NewIncidentAnalyzer создает анализатор. model может быть nil.
func NewIncidentAnalyzer(model ModelClient, logs LogRepository, logger *slog.Logger) *IncidentAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &IncidentAnalyzer{
		model:        model,
		logs:         logs,
		modelTimeout: defaultModelTimeout,
		logger:       logger,
	}
}

// Analyze строит отчет по таблице правил. Чистая функция без ввода-вывода.
func (a *IncidentAnalyzer) Analyze(incident *models.Incident) AnalysisResult {
	switch {
	case incident.Status.IsFailure():
		return AnalysisResult{Report: failureReport(incident), Strategy: StrategyRule}
	case incident.Status == models.StatusUp:
		return AnalysisResult{Report: restoredReport(incident), Strategy: StrategyBasic}
	default:
		return AnalysisResult{Report: statusChangeReport(incident), Strategy: StrategyBasic}
	}
}

// AnalyzeWithModel запрашивает анализ у модели для down/error. Любая ошибка
// модели дает отчет по правилам с заполненным Fallback, контракт тот же.
func (a *IncidentAnalyzer) AnalyzeWithModel(ctx context.Context, incident *models.Incident) AnalysisResult {
	if !incident.Status.IsFailure() {
		return a.Analyze(incident)
	}

	answer, err := a.askModel(ctx, incident)
	if err != nil {
		a.logger.Warn("model analysis failed, using rule-based report", "monitor", incident.MonitorName, "error", err)
		result := a.Analyze(incident)
		result.Fallback = err
		return result
	}

	a.persist(ctx, models.KindIncidentAnalysisLLM, incident, answer, StrategyLLM, "ИНЦИДЕНТ UPTIME KUMA (LLM АНАЛИЗ):", "LLM Анализ")
	return AnalysisResult{Report: answer, Strategy: StrategyLLM}
}

func (a *IncidentAnalyzer) askModel(ctx context.Context, incident *models.Incident) (string, error) {
	if a.model == nil {
		return "", ErrModelUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, a.modelTimeout)
	defer cancel()

	answer, err := a.model.Complete(ctx, buildAnalysisPrompt(incident))
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(answer) == "" {
		return "", errEmptyAnswer
	}
	return answer, nil
}

// RecordIncident добавляет в журнал запись incident_analysis. Ошибка записи
// только логируется.
func (a *IncidentAnalyzer) RecordIncident(ctx context.Context, incident *models.Incident, result AnalysisResult) {
	a.persist(ctx, models.KindIncidentAnalysis, incident, result.Report, result.Strategy, "ИНЦИДЕНТ UPTIME KUMA:", "Анализ")
}

func (a *IncidentAnalyzer) persist(ctx context.Context, kind string, incident *models.Incident, analysis string, strategy AnalysisStrategy, header, label string) {
	if a.logs == nil {
		return
	}
	content := fmt.Sprintf("%s\nМонитор: %s\nСтатус: %s\nТип: %s\nURL: %s\nСообщение: %s\nВремя: %s\n%s: %s",
		header,
		incident.MonitorName,
		incident.Status,
		incident.MonitorType,
		incident.URLOrNA(),
		incident.Message,
		incident.OccurredAt.Format(time.RFC3339),
		label,
		truncateRunes(analysis, previewRunes),
	)
	record := &models.LogRecord{
		Kind:    kind,
		Source:  analysisSource,
		Content: content,
		Metadata: datatypes.JSONMap{
			"monitor_name":  incident.MonitorName,
			"status":        string(incident.Status),
			"monitor_type":  incident.MonitorType,
			"timestamp":     incident.OccurredAt.Format(time.RFC3339),
			"analysis_type": string(strategy),
		},
	}
	if err := a.logs.Append(ctx, record); err != nil {
		a.logger.Error("failed to append analysis record", "kind", kind, "monitor", incident.MonitorName, "error", err)
	}
}

func buildAnalysisPrompt(incident *models.Incident) string {
	return fmt.Sprintf(`Ты - эксперт по DevOps и системному администрированию. Проанализируй следующий инцидент и предоставь детальный анализ.

ИНЦИДЕНТ:
- Монитор: %s
- Статус: %s
- Тип монитора: %s
- URL: %s
- Сообщение: %s
- Время: %s
- Хост: %s
- Порт: %s

ПРОВЕДИ ДЕТАЛЬНЫЙ АНАЛИЗ:

1. **АНАЛИЗ ПРИЧИН** - возможные причины инцидента
2. **ДИАГНОСТИКА** - команды для диагностики проблемы
3. **РЕШЕНИЕ** - пошаговые действия по устранению
4. **ПРОФИЛАКТИКА** - меры для предотвращения повторения
5. **ОЦЕНКА СЕРЬЕЗНОСТИ** - критичность инцидента (low/medium/high/critical)

Используй технический опыт и предоставь конкретные команды и рекомендации.
Формат ответа: используй markdown с заголовками, списками и блоками кода.`,
		incident.MonitorName,
		incident.Status,
		incident.MonitorType,
		incident.URLOrNA(),
		incident.Message,
		incident.OccurredAt.Format(time.RFC3339),
		incident.HostOrNA(),
		incident.PortOrNA(),
	)
}
