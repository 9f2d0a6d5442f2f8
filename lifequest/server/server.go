package server

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/lifequest-app/lifequest/lifequest/database/repositories"
	"github.com/lifequest-app/lifequest/lifequest/services"
)

// Server is the HTTP gateway in front of the quest subsystem. Session
// handling lives in the main API gateway; callers here are trusted to
// supply their identity in the X-User-ID header.
type Server struct {
	app  *fiber.App
	addr string
}

type Deps struct {
	Generator    *services.QuestGenerator
	QuestService *services.QuestService
	Tracker      *services.QuestTracker
	UserRepo     repositories.UserRepository
	HabitRepo    repositories.HabitRepository
}

func New(addr string, deps Deps) *Server {
	app := fiber.New(fiber.Config{
		AppName:      "LifeQuest API",
		ServerHeader: "LifeQuest",
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "http://localhost:3000",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,X-User-ID",
	}))
	app.Use(loggingMiddleware())

	h := &handlers{
		generator:    deps.Generator,
		questService: deps.QuestService,
		tracker:      deps.Tracker,
		userRepo:     deps.UserRepo,
		habitRepo:    deps.HabitRepo,
	}

	setupRoutes(app, h)

	return &Server{app: app, addr: addr}
}

func setupRoutes(app *fiber.App, h *handlers) {
	app.Get("/health", h.health)

	api := app.Group("/api")
	api.Post("/users", h.createUser)

	api.Use(requireUser())

	api.Post("/habits", h.createHabit)

	quests := api.Group("/quests")
	quests.Get("/", h.listQuests)
	quests.Post("/generate", h.generateQuests)
	quests.Post("/:id/activate", h.activateQuest)
	quests.Post("/:id/cancel", h.cancelQuest)
	quests.Post("/:id/claim", h.claimQuest)

	api.Post("/progress", h.reportProgress)
}

func (s *Server) Start() error {
	slog.Info("Starting HTTP server",
		slog.String("type", "http"),
		slog.String("address", s.addr))
	return s.app.Listen(s.addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
