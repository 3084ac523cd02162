package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clipnotes-backend/internal/config"
	"clipnotes-backend/internal/database"
	"clipnotes-backend/internal/handlers"
	"clipnotes-backend/internal/repository"
	"clipnotes-backend/internal/router"
	"clipnotes-backend/internal/services"
	"clipnotes-backend/internal/websocket"
	"clipnotes-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting ClipNotes Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations"); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Initialize Repositories ────
	videoRepo := repository.NewVideoRepo(pool)
	frameRepo := repository.NewFrameRepo(pool)
	tagRepo := repository.NewTagRepo(pool)

	// ──── Initialize Services ────
	runner := services.NewCommandRunner()
	mediaService := services.NewMediaService(runner, cfg.FFmpegBin)
	captionService := services.NewCaptionService(
		mediaService, runner,
		cfg.PythonBin, cfg.CaptionsScript,
		cfg.WhisperBin, cfg.WhisperModel,
		time.Duration(cfg.CaptionTimeoutSecs)*time.Second,
		time.Duration(cfg.ASRTimeoutMins)*time.Minute,
	)
	chapterService := services.NewChapterService(time.Duration(cfg.CaptionTimeoutSecs) * time.Second)
	frameService := services.NewFrameService(mediaService, cfg.StoragePath, cfg.FrameThresholdSecs, cfg.MaxFrames)

	summarizer, err := services.NewSummarizer(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.TranscriptMaxChars, cfg.GeminiConcurrentReqs)
	if err != nil {
		log.Fatalf("✗ Gemini client initialization failed: %v", err)
	}
	defer summarizer.Close()
	if summarizer.Enabled() {
		log.Println("✓ Gemini Flash client initialized")
	} else {
		log.Println("✓ Summarizer in placeholder mode (no GEMINI_API_KEY)")
	}

	// ──── Initialize Handlers ────
	videoHandler := handlers.NewVideoHandler(
		videoRepo, frameRepo,
		captionService, chapterService, summarizer,
		mediaService, frameService,
		redisClients.Queue,
	)
	frameHandler := handlers.NewFrameHandler(videoRepo, frameRepo, frameService)
	chatHandler := handlers.NewChatHandler(videoRepo, frameRepo, summarizer, redisClients.PubSub)
	tagHandler := handlers.NewTagHandler(tagRepo, videoRepo)

	// ──── Step 5: Start Frame Worker Pool ────
	workerPool := worker.NewPool(redisClients.Queue, videoRepo, frameRepo, frameService, cfg.FrameWorkers)
	workerPool.Start()
	log.Printf("✓ Frame worker pool started (%d goroutines)", cfg.FrameWorkers)

	// ──── Step 6: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub)
	log.Println("✓ WebSocket hub started")

	// ──── Step 7: Start HTTP Server ────
	r := router.New(
		videoHandler,
		frameHandler,
		chatHandler,
		tagHandler,
		wsHub,
		cfg.StoragePath,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout: 15 * time.Second,
		// Summarize is synchronous and may sit behind caption fallback
		// and model generation for minutes on long videos.
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		workerPool.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ ClipNotes Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
