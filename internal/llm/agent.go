package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"homelab-agent/internal/service"

	openai "github.com/sashabaranov/go-openai"
)

const (
	maxToolRounds   = 4
	maxSessionTurns = 20

	// Сессии вытесняются по давности использования и по количеству.
	DefaultSessionTTL  = time.Hour
	DefaultMaxSessions = 256

	toolSearchHistory = "search_incident_history"
	toolStatistics    = "get_incident_statistics"
)

const systemPrompt = `Ты - ассистент администратора домашней лаборатории (homelab).
Помогаешь разбирать инциденты мониторинга и делать ревью pull request'ов.
Для вопросов об истории инцидентов используй инструменты search_incident_history и get_incident_statistics.
Отвечай на русском языке, используй markdown.`

// HistoryTools - операции истории, доступные модели как инструменты.
type HistoryTools interface {
	SearchIncidentHistory(ctx context.Context, query string) string
	IncidentStatistics(ctx context.Context) string
}

var agentTools = []openai.Tool{
	{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        toolSearchHistory,
			Description: "Поиск по истории инцидентов в журнале",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {"query": {"type": "string", "description": "Поисковый запрос"}},
				"required": ["query"]
			}`),
		},
	},
	{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        toolStatistics,
			Description: "Статистика по последним инцидентам",
			Parameters:  json.RawMessage(`{"type": "object", "properties": {}}`),
		},
	},
}

// Agent - диалоговый агент поверх Client с вызовом инструментов истории.
// История диалога хранится в памяти по идентификатору сессии.
type Agent struct {
	client *Client
	tools  HistoryTools
	logger *slog.Logger

	mu          sync.Mutex
	sessions    map[string]*session
	sessionTTL  time.Duration
	maxSessions int
	now         func() time.Time
}

type session struct {
	turns    []openai.ChatCompletionMessage
	lastUsed time.Time
}

var _ service.Agent = (*Agent)(nil)

// NewAgent создает агента. tools может быть nil, тогда инструменты не передаются.
func NewAgent(client *Client, tools HistoryTools, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		client:   client,
		tools:    tools,
		logger:   logger,
		sessions:    make(map[string]*session),
		sessionTTL:  DefaultSessionTTL,
		maxSessions: DefaultMaxSessions,
		now:         time.Now,
	}
}

// WithSessionLimits задает время жизни и максимальное число сессий.
func (a *Agent) WithSessionLimits(ttl time.Duration, maxSessions int) *Agent {
	if ttl > 0 {
		a.sessionTTL = ttl
	}
	if maxSessions > 0 {
		a.maxSessions = maxSessions
	}
	return a
}

// SessionCount возвращает число хранимых сессий.
func (a *Agent) SessionCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sessions)
}

func (a *Agent) Invoke(ctx context.Context, sessionID string, messages []service.ChatMessage) (service.ChatMessage, error) {
	history := a.history(sessionID)
	for _, m := range messages {
		history = append(history, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	var tools []openai.Tool
	if a.tools != nil {
		tools = agentTools
	}

	for round := 0; round <= maxToolRounds; round++ {
		if round == maxToolRounds {
			tools = nil
		}
		reply, err := a.client.chat(ctx, history, tools)
		if err != nil {
			return service.ChatMessage{}, err
		}
		history = append(history, reply)

		if len(reply.ToolCalls) == 0 {
			a.store(sessionID, history)
			return service.ChatMessage{Role: openai.ChatMessageRoleAssistant, Content: reply.Content}, nil
		}
		for _, call := range reply.ToolCalls {
			history = append(history, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    a.callTool(ctx, call),
				ToolCallID: call.ID,
			})
		}
	}
	return service.ChatMessage{}, fmt.Errorf("agent exceeded %d tool rounds", maxToolRounds)
}

func (a *Agent) callTool(ctx context.Context, call openai.ToolCall) string {
	a.logger.Debug("agent tool call", "tool", call.Function.Name)
	switch call.Function.Name {
	case toolSearchHistory:
		var args struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return fmt.Sprintf("❌ Некорректные аргументы: %v", err)
		}
		return a.tools.SearchIncidentHistory(ctx, args.Query)
	case toolStatistics:
		return a.tools.IncidentStatistics(ctx)
	default:
		return fmt.Sprintf("❌ Неизвестный инструмент: %s", call.Function.Name)
	}
}

func (a *Agent) history(sessionID string) []openai.ChatCompletionMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	var stored []openai.ChatCompletionMessage
	if s, ok := a.sessions[sessionID]; ok && a.now().Sub(s.lastUsed) <= a.sessionTTL {
		stored = s.turns
	}
	history := make([]openai.ChatCompletionMessage, 0, len(stored)+2)
	history = append(history, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	return append(history, stored...)
}

// store сохраняет диалог без системного сообщения, оставляя последние ходы.
// Обрезка идет только по границе пользовательского сообщения, чтобы не
// разрывать пары tool_call/tool.
func (a *Agent) store(sessionID string, history []openai.ChatCompletionMessage) {
	turns := history[1:]
	if len(turns) > maxSessionTurns {
		cut := len(turns) - maxSessionTurns
		for cut < len(turns) && turns[cut].Role != openai.ChatMessageRoleUser {
			cut++
		}
		turns = turns[cut:]
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	a.sessions[sessionID] = &session{
		turns:    append([]openai.ChatCompletionMessage(nil), turns...),
		lastUsed: now,
	}
	a.evict(now)
}

// evict удаляет просроченные сессии, а затем самые старые сверх лимита.
// Вызывается под a.mu.
func (a *Agent) evict(now time.Time) {
	for id, s := range a.sessions {
		if now.Sub(s.lastUsed) > a.sessionTTL {
			delete(a.sessions, id)
		}
	}
	for len(a.sessions) > a.maxSessions {
		var oldestID string
		var oldest time.Time
		for id, s := range a.sessions {
			if oldestID == "" || s.lastUsed.Before(oldest) {
				oldestID, oldest = id, s.lastUsed
			}
		}
		delete(a.sessions, oldestID)
	}
}
