package bot

import (
	"errors"
	"strings"
	"testing"
	"time"

	"homelab-agent/internal/models"
	"homelab-agent/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v3"
)

type sentMessage struct {
	to   telebot.Recipient
	text string
}

type fakeSender struct {
	sent []sentMessage
	err  error
}

func (f *fakeSender) Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, sentMessage{to: to, text: what.(string)})
	return &telebot.Message{}, nil
}

func report(status models.IncidentStatus, analysis string) *service.IncidentReport {
	return &service.IncidentReport{
		Incident: &models.Incident{
			MonitorName: "nginx-proxy",
			MonitorType: models.MonitorHTTP,
			Status:      status,
			OccurredAt:  time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		},
		Analysis: service.AnalysisResult{Report: analysis, Strategy: service.StrategyRule},
		Relay:    models.RelayOutcome{Success: true},
	}
}

func TestDeliver(t *testing.T) {
	sender := &fakeSender{}
	b := newBot(sender, nil, nil, -100123, nil)

	b.deliver(report(models.StatusDown, "Проверьте nginx."))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "-100123", sender.sent[0].to.Recipient())
	assert.Contains(t, sender.sent[0].text, "🔴 *nginx\\-proxy: down*")
	assert.Contains(t, sender.sent[0].text, "Проверьте nginx\\.")
	assert.Contains(t, sender.sent[0].text, "*VPS:* ✅")
}

func TestDeliver_LongReportIsSplit(t *testing.T) {
	sender := &fakeSender{}
	b := newBot(sender, nil, nil, 42, nil)

	b.deliver(report(models.StatusDown, strings.Repeat("строка отчета\n", 400)))

	require.Greater(t, len(sender.sent), 1)
	for _, m := range sender.sent {
		assert.LessOrEqual(t, len([]rune(m.text)), 4096)
	}
	assert.True(t, strings.HasPrefix(sender.sent[0].text, "🔴"))
	assert.False(t, strings.HasPrefix(sender.sent[1].text, "🔴"))
}

func TestDeliver_SkipsWithoutChannel(t *testing.T) {
	sender := &fakeSender{}
	newBot(sender, nil, nil, 0, nil).deliver(report(models.StatusUp, "ok"))

	assert.Empty(t, sender.sent)
}

func TestDeliver_SendErrorStopsParts(t *testing.T) {
	sender := &fakeSender{err: errors.New("chat not found")}
	newBot(sender, nil, nil, 42, nil).deliver(report(models.StatusDown, strings.Repeat("x\n", 3000)))

	assert.Empty(t, sender.sent)
}

func TestFormatReport_RelayFailure(t *testing.T) {
	r := report(models.StatusUp, "восстановлен")
	r.Relay = models.RelayOutcome{Error: "Таймаут при отправке на VPS"}

	parts := formatReport(r)

	require.Len(t, parts, 1)
	assert.Contains(t, parts[0], "🟢")
	assert.Contains(t, parts[0], "*VPS:* ❌ Таймаут при отправке на VPS")
}

func TestChunkText(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		n        int
		expected []string
	}{
		{"empty", "", 10, nil},
		{"short", "abc", 10, []string{"abc"}},
		{"split on newline", "aaaa\nbbbb\ncc", 6, []string{"aaaa\n", "bbbb\n", "cc"}},
		{"hard split", "abcdefgh", 3, []string{"abc", "def", "gh"}},
		{"runes", "яяяяя", 2, []string{"яя", "яя", "я"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, chunkText(tc.input, tc.n))
		})
	}
}

func TestFormatRecent(t *testing.T) {
	records := []models.LogRecord{
		{Timestamp: "2024-05-01T10:00:00Z", Metadata: map[string]any{"monitor_name": "nginx", "status": "down", "analysis_type": "llm"}},
		{Timestamp: "2024-05-01T09:00:00Z", Content: "ИНЦИДЕНТ UPTIME KUMA:\nМонитор: db"},
	}

	out := formatRecent(records)

	assert.Contains(t, out, "2024-05-01T10:00:00Z nginx - down (llm)")
	assert.Contains(t, out, "2024-05-01T09:00:00Z ИНЦИДЕНТ UPTIME KUMA: - ")
	assert.Equal(t, "Инцидентов пока нет.", formatRecent(nil))
}

func TestChatSessionID(t *testing.T) {
	assert.Equal(t, "telegram_-100123", chatSessionID(-100123))
	assert.Equal(t, chatSessionID(42), chatSessionID(42))
}
