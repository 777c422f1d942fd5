package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"homelab-agent/internal/models"
	"homelab-agent/internal/service"
)

const maxBodyBytes = 5 << 20

type errorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

func timestamp() string {
	return time.Now().Format(time.RFC3339)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Success: false, Error: msg, Timestamp: timestamp()})
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
}

// --- Uptime Kuma ---

func handleUptimeKumaWebhook(svc *service.IncidentService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := readBody(w, r)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to read body: %v", err))
			return
		}

		result, err := svc.HandleUptimeKumaWebhook(r.Context(), body)
		if err != nil {
			logger.Error("uptime kuma webhook rejected", "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		if result.Shape == service.ShapeTest {
			writeJSON(w, http.StatusOK, map[string]any{
				"success":      true,
				"message":      "Тестовое сообщение получено",
				"test_message": result.TestMessage,
				"timestamp":    timestamp(),
			})
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success":           true,
			"message":           "Уведомление обработано",
			"incident_analysis": result.Analysis.Report,
			"analysis_type":     result.Analysis.Strategy,
			"vps_response":      result.Relay,
			"timestamp":         timestamp(),
		})
	}
}

func handleWebhookHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "healthy",
			"service":   "uptime-kuma-webhook",
			"timestamp": timestamp(),
		})
	}
}

func handleTestModelAnalysis(svc *service.IncidentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := svc.TestModelAnalysis(r.Context())
		resp := map[string]any{
			"success":           true,
			"message":           "LLM анализ протестирован",
			"incident_analysis": result.Report,
			"analysis_type":     result.Strategy,
			"timestamp":         timestamp(),
		}
		if result.Fallback != nil {
			resp["fallback_reason"] = result.Fallback.Error()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// --- GitHub ---

func handleGitHubWebhook(svc *service.GitHubService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := readBody(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read body: %v", err))
			return
		}
		if err := svc.VerifySignature(body, r.Header.Get("X-Hub-Signature-256")); err != nil {
			logger.Warn("github webhook signature rejected", "error", err)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid signature"})
			return
		}

		var event models.PullRequestEvent
		if err := json.Unmarshal(body, &event); err != nil {
			writeError(w, http.StatusBadRequest, "Failed to decode github webhook")
			return
		}
		writeJSON(w, http.StatusOK, svc.HandlePullRequestEvent(r.Context(), event))
	}
}

// --- Chat & history ---

type chatRequest struct {
	Message string `json:"message"`
}

func handleChat(svc *service.ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Message) == "" {
			writeError(w, http.StatusBadRequest, "message is required")
			return
		}
		result, err := svc.Chat(r.Context(), req.Message)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, service.ErrAgentUnavailable) || errors.Is(err, service.ErrModelUnavailable) {
				status = http.StatusServiceUnavailable
			}
			writeError(w, status, fmt.Sprintf("Ошибка обработки запроса: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func handleLogs(svc *service.HistoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := intQuery(r, "limit", 0)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		records, err := svc.Logs(r.Context(), r.URL.Query().Get("kind"), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func handleHistorySearch(svc *service.HistoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := strings.TrimSpace(r.URL.Query().Get("q"))
		if query == "" {
			writeError(w, http.StatusBadRequest, "query parameter q is required")
			return
		}
		k, err := intQuery(r, "k", 0)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		records, err := svc.Search(r.Context(), query, k)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func handleHistoryStatistics(svc *service.HistoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.Statistics(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

// --- Host ---

func handleHealth(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.Ping(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]any{
					"status":    "unhealthy",
					"error":     err.Error(),
					"timestamp": timestamp(),
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "healthy",
			"agent":     "available",
			"database":  "connected",
			"timestamp": timestamp(),
		})
	}
}

func handleServices(lister ServiceLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if lister == nil {
			writeError(w, http.StatusServiceUnavailable, "Docker недоступен")
			return
		}
		services, err := lister.ListServices(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("Ошибка получения статуса сервисов: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"services":  services,
			"total":     len(services),
			"timestamp": timestamp(),
		})
	}
}

func intQuery(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return n, nil
}
