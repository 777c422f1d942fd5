package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"homelab-agent/internal/models"
	"homelab-agent/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prEvent(action string, number int) models.PullRequestEvent {
	return models.PullRequestEvent{
		Action:      action,
		PullRequest: json.RawMessage(fmt.Sprintf(`{"number": %d}`, number)),
		Repository: models.GitHubRepository{
			Owner: models.GitHubOwner{Login: "inview"},
			Name:  "homelab",
		},
	}
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"action":"opened"}`)
	svc := service.NewGitHubService(nil, nil, "s3cret", nil)

	testCases := []struct {
		name      string
		signature string
		valid     bool
	}{
		{"valid", service.SignPayload(body, "s3cret"), true},
		{"wrong secret", service.SignPayload(body, "other"), false},
		{"missing prefix", "abc", false},
		{"empty", "", false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.VerifySignature(body, tc.signature)
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, service.ErrInvalidSignature)
			}
		})
	}

	open := service.NewGitHubService(nil, nil, "", nil)
	assert.NoError(t, open.VerifySignature(body, ""))
}

func TestHandlePullRequestEvent(t *testing.T) {
	testCases := []struct {
		name         string
		event        models.PullRequestEvent
		agentReply   string
		agentErr     error
		expectedKind string
		expected     service.PRAnalysisResult
	}{
		{
			name:     "ignored action",
			event:    prEvent("closed", 7),
			expected: service.PRAnalysisResult{Status: "ignored", Reason: "Action closed not handled"},
		},
		{
			name:     "missing data",
			event:    prEvent("opened", 0),
			expected: service.PRAnalysisResult{Status: "error", Reason: "Missing pull_request or repository data"},
		},
		{
			name:         "success",
			event:        prEvent("opened", 7),
			agentReply:   "LGTM",
			expectedKind: models.KindWebhook,
			expected:     service.PRAnalysisResult{Status: "success", PR: "inview/homelab#7", Response: "LGTM"},
		},
		{
			name:         "empty reply",
			event:        prEvent("synchronize", 7),
			agentReply:   " ",
			expectedKind: models.KindWebhook,
			expected:     service.PRAnalysisResult{Status: "success", PR: "inview/homelab#7", Response: "Анализ не выполнен"},
		},
		{
			name:         "agent error",
			event:        prEvent("opened", 7),
			agentErr:     errors.New("boom"),
			expectedKind: models.KindWebhookError,
			expected:     service.PRAnalysisResult{Status: "error", PR: "inview/homelab#7", Error: "boom"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			kit := setupServiceTest(t)
			kit.agent.reply = tc.agentReply
			kit.agent.err = tc.agentErr
			svc := service.NewGitHubService(kit.agent, kit.logs, "", nil)

			result := svc.HandlePullRequestEvent(context.Background(), tc.event)

			assert.Equal(t, tc.expected, result)
			if tc.expectedKind == "" {
				assert.Empty(t, kit.agent.calls)
				assert.Empty(t, kit.logs.All())
				return
			}
			require.Len(t, kit.agent.calls, 1)
			assert.Equal(t, "github_pr_inview_homelab_7", kit.agent.calls[0].sessionID)
			assert.Equal(t, "анализ кода inview/homelab 7", kit.agent.calls[0].messages[0].Content)

			records := kit.logs.All()
			require.Len(t, records, 1)
			assert.Equal(t, tc.expectedKind, records[0].Kind)
			assert.Equal(t, "github_pr_inview_homelab_7", records[0].Source)
		})
	}
}

func TestHandlePullRequestEvent_NoAgent(t *testing.T) {
	kit := setupServiceTest(t)
	svc := service.NewGitHubService(nil, kit.logs, "", nil)

	result := svc.HandlePullRequestEvent(context.Background(), prEvent("opened", 3))

	assert.Equal(t, "error", result.Status)
	assert.Equal(t, service.ErrAgentUnavailable.Error(), result.Error)
	assert.Len(t, kit.recordsOfKind(models.KindWebhookError), 1)
}
