package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"homelab-agent/internal/bot"
	"homelab-agent/internal/config"
	"homelab-agent/internal/docker"
	"homelab-agent/internal/github"
	"homelab-agent/internal/llm"
	"homelab-agent/internal/poller"
	relay_http "homelab-agent/internal/relay/http"
	"homelab-agent/internal/server"
	"homelab-agent/internal/service"
	storage_gorm "homelab-agent/internal/storage/gorm"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to the configuration file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Инициализация и миграция БД ---
	db, err := storage_gorm.Open(cfg.DB.Type, cfg.DB.DSN)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	logger.Info("database ready", "type", cfg.DB.Type)

	// --- Инициализация зависимостей (Dependency Injection) ---
	logRepo, err := storage_gorm.NewGormLogRepository(db)
	if err != nil {
		log.Fatalf("Failed to create log repository: %v", err)
	}

	modelClient := llm.New(llm.Config{
		GroqAPIKey:    cfg.LLM.GroqAPIKey,
		GroqModel:     cfg.LLM.Model,
		OpenAIAPIKey:  cfg.LLM.OpenAIAPIKey,
		OpenAIModel:   cfg.LLM.Model,
		OpenAIBaseURL: cfg.LLM.BaseURL,
		Timeout:       cfg.LLM.Timeout(),
	}, logger)
	if !modelClient.Available() {
		logger.Warn("no LLM provider configured, incident analysis will use rules only")
	}

	historyService := service.NewHistoryService(logRepo, logger)
	agent := llm.NewAgent(modelClient, historyService, logger)

	relayClient := relay_http.NewRelayClient(cfg.Relay.URL, cfg.Relay.Timeout())
	if cfg.Relay.URL == "" {
		logger.Warn("VPS webhook URL is not set, relay is disabled")
	}

	// Канал для уведомлений об обработанных инцидентах, нужен только боту
	var notificationChan chan *service.IncidentReport
	if cfg.Telegram.BotToken != "" {
		notificationChan = make(chan *service.IncidentReport, 10)
	}

	analyzer := service.NewIncidentAnalyzer(modelClient, logRepo, logger)
	incidentService := service.NewIncidentService(service.NewNormalizer(nil), analyzer, relayClient, cfg.Relay.Host, notificationChan, logger)
	githubService := service.NewGitHubService(agent, logRepo, cfg.GitHub.WebhookSecret, logger)
	chatService := service.NewChatService(agent, logRepo, logger)

	deps := server.Deps{
		Incidents:    incidentService,
		GitHub:       githubService,
		Chat:         chatService,
		History:      historyService,
		DB:           logRepo,
		WebhookToken: cfg.Server.WebhookToken,
		Logger:       logger,
	}
	dockerClient, err := docker.NewClient(logger)
	if err != nil {
		logger.Warn("docker is not available, /api/services is disabled", "error", err)
	} else {
		defer dockerClient.Close()
		deps.Docker = dockerClient
	}

	var wg sync.WaitGroup

	// --- Запуск HTTP-сервера ---
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Run(ctx, cfg.Server.Port, server.NewRouter(deps), logger); err != nil {
			log.Fatalf("Failed to run API server: %v", err)
		}
	}()

	// --- Запуск GitHub polling ---
	githubClient := github.NewClient(cfg.GitHub.Token, "")
	if !githubClient.HasToken() {
		logger.Info("GitHub token is not set. Polling will not start.")
	} else {
		dispatcher := poller.NewHTTPDispatcher(cfg.GitHub.AgentURL).WithFallback(poller.NewDirectDispatcher(githubService))
		prPoller := poller.New(
			poller.FileTargets(cfg.GitHub.TargetsFile, logger),
			githubClient,
			dispatcher,
			poller.NewSeenStore(cfg.GitHub.StateFile),
			poller.Config{Interval: cfg.GitHub.Interval()},
			logger,
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			prPoller.Run(ctx)
		}()
	}

	// --- Запуск Telegram-бота ---
	if cfg.Telegram.BotToken == "" {
		logger.Info("Telegram bot token is not set. Bot will not start.")
	} else {
		telegramBot, err := bot.NewBot(cfg.Telegram.BotToken, historyService, chatService, cfg.Telegram.AlertChannelID, logger)
		if err != nil {
			log.Fatalf("Failed to create bot: %v", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			telegramBot.Start(ctx, notificationChan)
		}()
	}

	logger.Info("Application started. Press Ctrl+C to exit.")
	wg.Wait()
	logger.Info("Application stopped.")
}

