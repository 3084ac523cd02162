package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Gemini AI. An empty key is allowed: the summarizer then produces
	// clearly labeled placeholder output instead of calling the API.
	GeminiAPIKey         string
	GeminiModel          string
	GeminiConcurrentReqs int
	TranscriptMaxChars   int

	// Storage
	StoragePath string

	// External tools
	PythonBin      string
	CaptionsScript string
	FFmpegBin      string
	WhisperBin     string
	WhisperModel   string

	// Caption acquisition
	CaptionTimeoutSecs int
	ASRTimeoutMins     int

	// Frame extraction
	FrameThresholdSecs int
	MaxFrames          int
	FrameWorkers       int

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:        getEnvOrDefault("PORT", "8080"),
		Env:         getEnvOrDefault("ENV", "development"),
		DatabaseURL: mustGetEnv("DATABASE_URL"),
		RedisURL:    mustGetEnv("REDIS_URL"),

		GeminiAPIKey:         getEnvOrDefault("GEMINI_API_KEY", ""),
		GeminiModel:          getEnvOrDefault("GEMINI_MODEL", "gemini-3-flash-preview"),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 4),
		TranscriptMaxChars:   getEnvAsIntOrDefault("TRANSCRIPT_MAX_CHARS", 60000),

		StoragePath: getEnvOrDefault("STORAGE_PATH", "./storage"),

		PythonBin:      getEnvOrDefault("PYTHON_BIN", "python3"),
		CaptionsScript: getEnvOrDefault("CAPTIONS_SCRIPT", "scripts/fetch_captions.py"),
		FFmpegBin:      getEnvOrDefault("FFMPEG_BIN", "ffmpeg"),
		WhisperBin:     getEnvOrDefault("WHISPER_BIN", "whisper-cli"),
		WhisperModel:   getEnvOrDefault("WHISPER_MODEL", "models/ggml-base.bin"),

		CaptionTimeoutSecs: getEnvAsIntOrDefault("CAPTION_TIMEOUT_SECONDS", 30),
		ASRTimeoutMins:     getEnvAsIntOrDefault("ASR_TIMEOUT_MINUTES", 10),

		FrameThresholdSecs: getEnvAsIntOrDefault("FRAME_DEDUP_SECONDS", 5),
		MaxFrames:          getEnvAsIntOrDefault("MAX_FRAMES", 15),
		FrameWorkers:       getEnvAsIntOrDefault("FRAME_WORKERS", 2),

		FrontendURL: getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
