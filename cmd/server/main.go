package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/makeasinger/producer/internal/client"
	"github.com/makeasinger/producer/internal/config"
	"github.com/makeasinger/producer/internal/db"
	"github.com/makeasinger/producer/internal/genre"
	"github.com/makeasinger/producer/internal/handler"
	"github.com/makeasinger/producer/internal/middleware"
	"github.com/makeasinger/producer/internal/service"
	"github.com/makeasinger/producer/internal/store"
	ws "github.com/makeasinger/producer/internal/websocket"
	"github.com/makeasinger/producer/internal/worker"
	"github.com/makeasinger/producer/internal/workspace"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Open the database and migrate
	gdb, err := db.Connect(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	st := store.New(gdb)

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Vendor clients, falling back to mocks in development
	var completion client.CompletionClient
	groq := client.NewGroqClient(&cfg.Groq)
	if groq.IsConfigured() {
		completion = groq
	} else {
		log.Println("Warning: Groq not configured, using mock completions")
		completion = client.NewMockCompletionClient()
	}

	var audio client.AudioGenerator
	suno := client.NewSunoClient(&cfg.Suno)
	if suno.IsConfigured() {
		audio = suno
	} else {
		log.Println("Warning: Suno not configured, using mock audio generation")
		audio = client.NewMockAudioGenerator()
	}

	var storage client.StorageClient
	if r2, err := client.NewR2Client(&cfg.R2); err != nil {
		log.Printf("Warning: R2 not configured (%v), mirroring workspace locally", err)
	} else if r2.IsConfigured() {
		storage = r2
	} else {
		log.Println("Warning: R2 not configured, mirroring workspace locally")
	}
	mirror := workspace.NewMirror(storage, cfg.Workspace.LocalDir)

	// Genre rules
	genres := genre.NewProvider()

	// Initialize services
	planner := service.NewPlanner(st, completion, genres, mirror, hub, cfg.Pipeline.SafetyRetries)
	lyricist := service.NewLyricist(st, completion, genres, mirror, hub, cfg.Pipeline.SafetyRetries, cfg.Pipeline.MinLyricsLength)
	reviewer := service.NewReviewer(st, lyricist, genres, hub)
	tracker := service.NewTracker(st, audio, hub)
	stager := service.NewStager(st, audio, tracker, hub)
	orchestrator := service.NewOrchestrator(st, lyricist, reviewer, stager, cfg.Pipeline.LeaseTTL, cfg.Pipeline.SubmitStagger)
	recovery := service.NewRecovery(st, orchestrator, tracker, hub, asynqClient, cfg.Pipeline.SongRetryCap, cfg.Pipeline.RetryBatch)
	productionService := service.NewProductionService(st, genres, hub, asynqClient, cfg.Pipeline.SongRetryCap)

	// Initialize handlers
	productionHandler := handler.NewProductionHandler(productionService, validate)
	callbackHandler := handler.NewCallbackHandler(tracker, validate)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Vendor callbacks (authenticated by job id lookup, not JWT)
	app.Post("/callbacks/suno", callbackHandler.Generation)

	// API routes
	api := app.Group("/api", authMiddleware.Authenticate())

	productions := api.Group("/productions")
	productions.Post("/", rateLimiter.CreateLimit(cfg.RateLimit.CreatePerHour), productionHandler.Create)
	productions.Get("/", productionHandler.List)
	productions.Get("/:id", productionHandler.Detail)
	productions.Get("/:id/progress", productionHandler.Progress)
	productions.Post("/:id/approve", productionHandler.Approve)
	productions.Post("/:id/cancel", productionHandler.Cancel)
	productions.Post("/:id/replan", productionHandler.Replan)
	productions.Post("/:id/retry", rateLimiter.RetryLimit(cfg.RateLimit.RetryPerHour), productionHandler.Retry)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/productions/:id", websocket.New(func(c *websocket.Conn) {
		productionID := c.Params("id")
		hub.HandleConnection(c, productionID)
	}))

	// Start Asynq worker server and the recovery schedule
	go startWorkerServer(redisOpt, planner, orchestrator, recovery)
	go startScheduler(redisOpt, cfg.Pipeline.RecoveryInterval)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(redisOpt asynq.RedisClientOpt, planner *service.Planner, orchestrator *service.Orchestrator, recovery *service.Recovery) {
	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				service.QueuePipeline: 10,
			},
		},
	)

	pipelineWorker := worker.NewPipelineWorker(planner, orchestrator, recovery)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypePlan, pipelineWorker.ProcessPlanTask)
	mux.HandleFunc(service.TaskTypeRun, pipelineWorker.ProcessRunTask)
	mux.HandleFunc(service.TaskTypeRecover, pipelineWorker.ProcessRecoverTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func startScheduler(redisOpt asynq.RedisClientOpt, interval time.Duration) {
	scheduler := asynq.NewScheduler(redisOpt, nil)

	spec := fmt.Sprintf("@every %s", interval)
	if _, err := scheduler.Register(spec, service.NewRecoverTask(), asynq.Queue(service.QueuePipeline)); err != nil {
		log.Printf("Failed to register recovery schedule: %v", err)
		return
	}

	if err := scheduler.Run(); err != nil {
		log.Printf("Asynq scheduler error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
