package service_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"homelab-agent/internal/models"
	relay_http "homelab-agent/internal/relay/http"
	"homelab-agent/internal/service"
	storage_gorm "homelab-agent/internal/storage/gorm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const downPayload = `{
	"heartbeat": {"status": 0, "msg": "timeout", "time": "2024-05-01 10:00:00"},
	"monitor": {"name": "grafana", "type": "http", "url": "http://grafana.lan:3000", "hostname": "grafana.lan", "port": 3000}
}`

func TestHandleUptimeKumaWebhook_Pipeline(t *testing.T) {
	kit := setupServiceTest(t)

	result, err := kit.incidents.HandleUptimeKumaWebhook(context.Background(), []byte(downPayload))
	require.NoError(t, err)

	assert.Equal(t, service.ShapeNested, result.Shape)
	assert.Equal(t, "grafana", result.Incident.MonitorName)
	assert.Equal(t, service.StrategyRule, result.Analysis.Strategy)
	assert.ErrorIs(t, result.Analysis.Fallback, service.ErrModelUnavailable)
	assert.True(t, result.Relay.Success)

	envelopes := kit.relay.Envelopes()
	require.Len(t, envelopes, 1)
	env := envelopes[0]
	assert.Equal(t, "homelab_uptime_kuma", env.Source)
	assert.Equal(t, "uptime_kuma", env.WebhookType)
	assert.Equal(t, "homelab", env.Host)
	assert.Equal(t, "grafana", env.Service)
	assert.Equal(t, "down", env.Status)
	assert.Equal(t, "high", env.IncidentSeverity)
	assert.Equal(t, "rule", env.AnalysisType)
	assert.Equal(t, result.Analysis.Report, env.IncidentAnalysis)
	_, err = time.Parse(time.RFC3339, env.Timestamp)
	assert.NoError(t, err)

	assert.Equal(t, models.IncidentDetails{
		MonitorName: "grafana",
		MonitorURL:  "http://grafana.lan:3000",
		Status:      "down",
		AlertType:   "status_change",
		Message:     "timeout",
		DateTime:    "2024-05-01T10:00:00Z",
		MonitorType: "http",
		Hostname:    strPtr("grafana.lan"),
		Port:        intPtr(3000),
	}, env.Details)

	records := kit.recordsOfKind(models.KindIncidentAnalysis)
	require.Len(t, records, 1)
	assert.Equal(t, "grafana", records[0].Metadata["monitor_name"])

	select {
	case report := <-kit.notify:
		assert.Equal(t, "grafana", report.Incident.MonitorName)
		assert.True(t, report.Relay.Success)
	default:
		t.Fatal("expected a notification")
	}
}

func TestHandleUptimeKumaWebhook_UpIsNormalSeverity(t *testing.T) {
	kit := setupServiceTest(t)

	result, err := kit.incidents.HandleUptimeKumaWebhook(context.Background(), []byte(`{"monitorStatus": 1, "monitorName": "grafana"}`))
	require.NoError(t, err)

	assert.Equal(t, service.ShapeFlat, result.Shape)
	assert.Equal(t, service.StrategyBasic, result.Analysis.Strategy)
	assert.NoError(t, result.Analysis.Fallback)
	require.Len(t, kit.relay.Envelopes(), 1)
	assert.Equal(t, "normal", kit.relay.Envelopes()[0].IncidentSeverity)
	assert.Equal(t, "N/A", kit.relay.Envelopes()[0].Details.MonitorURL)
}

func TestHandleUptimeKumaWebhook_TestMessage(t *testing.T) {
	kit := setupServiceTest(t)

	result, err := kit.incidents.HandleUptimeKumaWebhook(context.Background(), []byte(`{"msg": "Testing notification"}`))
	require.NoError(t, err)

	assert.Equal(t, service.ShapeTest, result.Shape)
	assert.Equal(t, "Testing notification", result.TestMessage)
	assert.Empty(t, kit.relay.Envelopes())
	assert.Empty(t, kit.logs.All())
	assert.Empty(t, kit.notify)
}

func TestHandleUptimeKumaWebhook_RelayFailureDoesNotFail(t *testing.T) {
	kit := setupServiceTest(t)
	kit.relay.FailNextCall = true

	result, err := kit.incidents.HandleUptimeKumaWebhook(context.Background(), []byte(downPayload))
	require.NoError(t, err)

	assert.False(t, result.Relay.Success)
	assert.Equal(t, models.RelayConnection, result.Relay.ErrorKind)
	assert.Len(t, kit.recordsOfKind(models.KindIncidentAnalysis), 1)
	require.Len(t, kit.notify, 1)
}

func TestHandleUptimeKumaWebhook_FullChannelDrops(t *testing.T) {
	kit := setupServiceTest(t)

	for i := 0; i < 3; i++ {
		_, err := kit.incidents.HandleUptimeKumaWebhook(context.Background(), []byte(downPayload))
		require.NoError(t, err)
	}

	assert.Len(t, kit.notify, 1)
	assert.Len(t, kit.relay.Envelopes(), 3)
}

func TestHandleUptimeKumaWebhook_Malformed(t *testing.T) {
	kit := setupServiceTest(t)

	_, err := kit.incidents.HandleUptimeKumaWebhook(context.Background(), []byte(`not json`))

	assert.ErrorIs(t, err, service.ErrMalformedPayload)
	assert.Empty(t, kit.relay.Envelopes())
	assert.Empty(t, kit.logs.All())
}

func TestHandleUptimeKumaWebhook_NilChannel(t *testing.T) {
	kit := setupServiceTest(t)
	incidents := service.NewIncidentService(service.NewNormalizer(nil), kit.analyzer, kit.relay, "homelab", nil, nil)

	_, err := incidents.HandleUptimeKumaWebhook(context.Background(), []byte(downPayload))

	assert.NoError(t, err)
}

func TestTestModelAnalysis(t *testing.T) {
	kit := setupServiceTest(t)
	kit.model.err = nil
	kit.model.answer = "анализ"

	result := kit.incidents.TestModelAnalysis(context.Background())

	assert.Equal(t, service.StrategyLLM, result.Strategy)
	require.Len(t, kit.model.prompts, 1)
	assert.Contains(t, kit.model.prompts[0], "- Монитор: test-service")
	assert.Contains(t, kit.model.prompts[0], "- Порт: 8080")
}

func TestHandleUptimeKumaWebhook_CallerCancellationStillRecordsAndRelays(t *testing.T) {
	db, err := storage_gorm.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	logs, err := storage_gorm.NewGormLogRepository(db)
	require.NoError(t, err)

	var received int32
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&received, 1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(sink.Close)

	analyzer := service.NewIncidentAnalyzer(nil, logs, nil)
	incidents := service.NewIncidentService(service.NewNormalizer(nil), analyzer, relay_http.NewRelayClient(sink.URL, time.Second), "homelab", nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := incidents.HandleUptimeKumaWebhook(ctx, []byte(downPayload))
	require.NoError(t, err)

	assert.True(t, result.Relay.Success, "relay outcome: %+v", result.Relay)
	assert.Equal(t, int32(1), atomic.LoadInt32(&received))

	records, err := logs.QueryByKind(context.Background(), models.KindIncidentAnalysis, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Contains(t, records[0].Content, "Монитор: grafana")
}
