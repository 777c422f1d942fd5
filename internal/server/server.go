package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"homelab-agent/internal/docker"
	"homelab-agent/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const shutdownTimeout = 10 * time.Second

// Pinger проверяет доступность базы для /api/health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ServiceLister возвращает контейнеры хоста для /api/services.
type ServiceLister interface {
	ListServices(ctx context.Context) ([]docker.Service, error)
}

// Deps - зависимости HTTP-слоя. DB и Docker могут быть nil.
type Deps struct {
	Incidents *service.IncidentService
	GitHub    *service.GitHubService
	Chat      *service.ChatService
	History   *service.HistoryService
	DB        Pinger
	Docker    ServiceLister
	// WebhookToken включает Bearer-авторизацию для вебхуков Uptime Kuma.
	WebhookToken string
	Logger       *slog.Logger
}

// Run слушает порт, пока ctx не отменен, затем корректно останавливает сервер.
func Run(ctx context.Context, port string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting API server", "port", port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down API server")
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("API server failed: %w", err)
	}
}

// NewRouter создает роутер всего API агента.
func NewRouter(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/webhook/github", handleGitHubWebhook(deps.GitHub, deps.Logger))

	r.Route("/api", func(r chi.Router) {
		r.Route("/webhook/uptime-kuma", func(r chi.Router) {
			r.Get("/health", handleWebhookHealth())
			r.Group(func(r chi.Router) {
				r.Use(webhookAuthMiddleware(deps.WebhookToken))
				r.Post("/", handleUptimeKumaWebhook(deps.Incidents, deps.Logger))
				r.Post("/test-llm", handleTestModelAnalysis(deps.Incidents))
			})
		})

		r.Post("/chat", handleChat(deps.Chat))
		r.Get("/logs", handleLogs(deps.History))
		r.Get("/health", handleHealth(deps.DB))
		r.Get("/services", handleServices(deps.Docker))
		r.Get("/history/search", handleHistorySearch(deps.History))
		r.Get("/history/statistics", handleHistoryStatistics(deps.History))
	})
	return r
}

// --- Middlewares ---

func webhookAuthMiddleware(expectedToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if expectedToken == "" { // Если токен не задан, пропускаем проверку
				next.ServeHTTP(w, r)
				return
			}
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
				return
			}
			if parts[1] != expectedToken {
				http.Error(w, "Invalid token", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
