package router

import (
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"clipnotes-backend/internal/handlers"
	"clipnotes-backend/internal/middleware"
	"clipnotes-backend/internal/websocket"
)

func New(
	videoHandler *handlers.VideoHandler,
	frameHandler *handlers.FrameHandler,
	chatHandler *handlers.ChatHandler,
	tagHandler *handlers.TagHandler,
	wsHub *websocket.Hub,
	storagePath string,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Summarize rate limiter (10 req/min per IP); every request can fan
	// out into model calls and subprocess work.
	summarizeLimiter := middleware.NewRateLimiter(10, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Video Routes ────
		r.Route("/videos", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(summarizeLimiter.Middleware)
				r.Post("/summarize", videoHandler.Summarize)
			})

			r.Get("/", videoHandler.List)
			r.Get("/{id}", videoHandler.Get)
			r.Delete("/{id}", videoHandler.Delete)
			r.Put("/{id}/favorite", videoHandler.ToggleFavorite)

			// Frames
			r.Post("/{id}/frames", frameHandler.Extract)
			r.Get("/{id}/frames", frameHandler.List)

			// Chat
			r.Post("/{id}/chat", chatHandler.Send)
			r.Get("/{id}/chat", chatHandler.History)
			r.Delete("/{id}/chat", chatHandler.Clear)

			// Tags on a video
			r.Get("/{id}/tags", tagHandler.ListForVideo)
			r.Post("/{id}/tags", tagHandler.Attach)
			r.Delete("/{id}/tags/{tagID}", tagHandler.Detach)
		})

		// ──── Tag Routes ────
		r.Route("/tags", func(r chi.Router) {
			r.Get("/", tagHandler.List)
			r.Get("/{id}/videos", tagHandler.ListVideos)
			r.Delete("/{id}", tagHandler.Delete)
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	// Extracted frame images are served straight off disk.
	framesDir := http.Dir(filepath.Join(storagePath, "frames"))
	r.Handle("/frames/*", http.StripPrefix("/frames/", http.FileServer(framesDir)))

	return r
}
