package service_test

import (
	"context"
	"errors"
	"testing"

	"homelab-agent/internal/models"
	"homelab-agent/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChat(t *testing.T) {
	kit := setupServiceTest(t)
	chat := service.NewChatService(kit.agent, kit.logs, nil)

	result, err := chat.Chat(context.Background(), "что с nginx?")
	require.NoError(t, err)

	_, err = uuid.Parse(result.SessionID)
	assert.NoError(t, err)
	assert.Equal(t, "Все хорошо", result.Response)
	require.Len(t, kit.agent.calls, 1)
	assert.Equal(t, result.SessionID, kit.agent.calls[0].sessionID)
	assert.Equal(t, []service.ChatMessage{{Role: "user", Content: "что с nginx?"}}, kit.agent.calls[0].messages)

	records := kit.logs.All()
	require.Len(t, records, 2)
	assert.Equal(t, models.KindChatRequest, records[0].Kind)
	assert.Equal(t, "что с nginx?", records[0].Content)
	assert.Equal(t, models.KindChatResponse, records[1].Kind)
	assert.Equal(t, result.SessionID, records[1].Source)
}

func TestChat_SessionsAreDistinct(t *testing.T) {
	kit := setupServiceTest(t)
	chat := service.NewChatService(kit.agent, kit.logs, nil)

	first, err := chat.Chat(context.Background(), "a")
	require.NoError(t, err)
	second, err := chat.Chat(context.Background(), "b")
	require.NoError(t, err)

	assert.NotEqual(t, first.SessionID, second.SessionID)
}

func TestChat_Errors(t *testing.T) {
	agentErr := errors.New("model down")

	testCases := []struct {
		name        string
		agent       service.Agent
		expectedErr error
	}{
		{"agent error", &fakeAgent{err: agentErr}, agentErr},
		{"no agent", nil, service.ErrAgentUnavailable},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			kit := setupServiceTest(t)
			chat := service.NewChatService(tc.agent, kit.logs, nil)

			_, err := chat.Chat(context.Background(), "hi")

			assert.ErrorIs(t, err, tc.expectedErr)
			records := kit.logs.All()
			require.Len(t, records, 1)
			assert.Equal(t, models.KindChatError, records[0].Kind)
			assert.Equal(t, "system", records[0].Source)
			assert.Contains(t, records[0].Content, "Ошибка в чате: ")
		})
	}
}

func TestChat_EmptyReply(t *testing.T) {
	kit := setupServiceTest(t)
	kit.agent.reply = ""
	chat := service.NewChatService(kit.agent, kit.logs, nil)

	result, err := chat.Chat(context.Background(), "hi")

	require.NoError(t, err)
	assert.Equal(t, "Не удалось получить ответ от агента", result.Response)
}

func TestChatInSession_KeepsSessionID(t *testing.T) {
	kit := setupServiceTest(t)
	chat := service.NewChatService(kit.agent, kit.logs, nil)

	for _, msg := range []string{"раз", "два"} {
		result, err := chat.ChatInSession(context.Background(), "telegram_42", msg)
		require.NoError(t, err)
		assert.Equal(t, "telegram_42", result.SessionID)
	}

	require.Len(t, kit.agent.calls, 2)
	assert.Equal(t, "telegram_42", kit.agent.calls[0].sessionID)
	assert.Equal(t, "telegram_42", kit.agent.calls[1].sessionID)
}
