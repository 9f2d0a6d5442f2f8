package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lifequest-app/lifequest/lifequest"
	"github.com/lifequest-app/lifequest/lifequest/database"
	"github.com/lifequest-app/lifequest/lifequest/database/repositories"
	"github.com/lifequest-app/lifequest/lifequest/llm"
	"github.com/lifequest-app/lifequest/lifequest/logger"
	"github.com/lifequest-app/lifequest/lifequest/server"
	"github.com/lifequest-app/lifequest/lifequest/services"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	configPath := "config.toml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	customHandler := logger.NewHandler("LifeQuest")
	slog.SetDefault(slog.New(customHandler))

	slog.Info("Starting LifeQuest quest service",
		slog.String("version", version),
		slog.String("commit", commit),
		slog.String("type", "sys"))

	cfg, err := lifequest.LoadConfig(configPath)
	if err != nil {
		slog.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	slog.Info("Connecting to database...", slog.String("type", "db"))
	db, err := database.New(ctx, database.DBConfig{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		Database: cfg.DB.Database,
		PoolSize: cfg.DB.PoolSize,
	})
	if err != nil {
		slog.Error("Failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	if err := db.InitializeSchema(ctx); err != nil {
		slog.Error("Failed to initialize schema", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("Database ready", slog.String("type", "db"))

	client, err := llm.NewGenkitClient(ctx, llm.ClientConfig{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
	})
	if err != nil {
		slog.Error("Failed to initialize generation client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	questRepo := repositories.NewQuestRepository(db.BunDB())
	stateRepo := repositories.NewQuestStateRepository(db.BunDB())
	userRepo := repositories.NewUserRepository(db.BunDB())
	habitRepo := repositories.NewHabitRepository(db.BunDB())

	progression := services.NewProgressionService(services.NewDefaultProgressionConfig(), userRepo)
	questService := services.NewQuestService(questRepo, progression)
	generator := services.NewQuestGenerator(questRepo, stateRepo, userRepo, habitRepo, client)
	tracker := services.NewQuestTracker(questRepo)

	addr := cfg.Server.Addr
	if addr == "" {
		addr = ":8080"
	}

	srv := server.New(addr, server.Deps{
		Generator:    generator,
		QuestService: questService,
		Tracker:      tracker,
		UserRepo:     userRepo,
		HabitRepo:    habitRepo,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			slog.Error("Server stopped", slog.String("error", err.Error()))
			os.Exit(1)
		}
	case <-sig:
		slog.Info("Shutting down...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown error", slog.String("error", err.Error()))
	}

	slog.Info("Shutdown complete")
}
