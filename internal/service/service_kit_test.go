package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"homelab-agent/internal/models"
	"homelab-agent/internal/relay/mock"
	"homelab-agent/internal/service"
	"homelab-agent/internal/storage/inmemory"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeModel struct {
	mu      sync.Mutex
	answer  string
	err     error
	prompts []string
}

func (f *fakeModel) Complete(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.answer, f.err
}

type agentCall struct {
	sessionID string
	messages  []service.ChatMessage
}

type fakeAgent struct {
	reply string
	err   error
	calls []agentCall
}

func (f *fakeAgent) Invoke(ctx context.Context, sessionID string, messages []service.ChatMessage) (service.ChatMessage, error) {
	f.calls = append(f.calls, agentCall{sessionID: sessionID, messages: messages})
	if f.err != nil {
		return service.ChatMessage{}, f.err
	}
	return service.ChatMessage{Role: "assistant", Content: f.reply}, nil
}

// --- Test Setup ---

type serviceTestKit struct {
	logs      *inmemory.MockLogRepository
	relay     *mock.RelayClientMock
	model     *fakeModel
	agent     *fakeAgent
	notify    chan *service.IncidentReport
	analyzer  *service.IncidentAnalyzer
	incidents *service.IncidentService
	history   *service.HistoryService
}

func setupServiceTest(t *testing.T) *serviceTestKit {
	logs := inmemory.NewMockLogRepository()
	relay := mock.NewRelayClientMock()
	model := &fakeModel{err: service.ErrModelUnavailable}
	notify := make(chan *service.IncidentReport, 1)

	analyzer := service.NewIncidentAnalyzer(model, logs, nil)
	normalizer := service.NewNormalizer(func() time.Time { return fixedNow })

	return &serviceTestKit{
		logs:      logs,
		relay:     relay,
		model:     model,
		agent:     &fakeAgent{reply: "Все хорошо"},
		notify:    notify,
		analyzer:  analyzer,
		incidents: service.NewIncidentService(normalizer, analyzer, relay, "homelab", notify, nil),
		history:   service.NewHistoryService(logs, nil),
	}
}

func (k *serviceTestKit) recordsOfKind(kind string) []models.LogRecord {
	var out []models.LogRecord
	for _, r := range k.logs.All() {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func incident(status models.IncidentStatus, monitorType string) *models.Incident {
	return &models.Incident{
		MonitorName: "nginx",
		MonitorType: monitorType,
		MonitorURL:  strPtr("http://nginx.lan"),
		Status:      status,
		Message:     "Connection refused",
		OccurredAt:  time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}
