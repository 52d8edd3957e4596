package config

import (
	"log"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config stores the application configuration. Values come from the
// environment (optionally via a .env file) with sensible defaults for a
// single-machine library.
type Config struct {
	LibraryPath  string // root directory scanned for audio files
	DatabasePath string // sqlite database file
	IndexPath    string // similarity index snapshot file

	// Analyzer invocation. The analyzer is an external program that prints
	// {"vector":[...],"tempo":...} JSON for a given audio file.
	AnalyzerCommand string
	AnalyzerArgs    []string

	WorkerCount       int     // feature extraction parallelism
	BatchSize         int     // rows per commit during indexing
	ProcessingTimeout int     // per-file analysis timeout, seconds
	RebuildThreshold  float64 // fraction of index growth that forces a rebuild

	CandidateMultiplier int     // similarity over-fetch factor
	QueryNoiseScale     float64 // query vector perturbation scale
	BPMJitterPercent    float64 // default tempo-sort jitter

	WatchDebounceSeconds int // quiet period before a watch-triggered reindex

	// Redis is optional; when RedisHost is empty the playlist cache is
	// disabled and everything else works unchanged.
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	LogLevel string
	LogPath  string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvFloat gets an environment variable as float64 or returns a default value.
func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load will not override variables already set in the environment.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}

	return &Config{
		LibraryPath:  getEnv("LIBRARY_PATH", "music"),
		DatabasePath: getEnv("DATABASE_PATH", "music.db"),
		IndexPath:    getEnv("INDEX_PATH", "similarity_index.bin"),

		AnalyzerCommand: getEnv("ANALYZER_COMMAND", "vibe-analyzer"),
		AnalyzerArgs:    strings.Fields(getEnv("ANALYZER_ARGS", "")),

		WorkerCount:       getEnvInt("WORKER_COUNT", runtime.NumCPU()),
		BatchSize:         getEnvInt("BATCH_SIZE", 10),
		ProcessingTimeout: getEnvInt("PROCESSING_TIMEOUT_SECONDS", 30),
		RebuildThreshold:  getEnvFloat("REBUILD_THRESHOLD", 0.10),

		CandidateMultiplier: getEnvInt("CANDIDATE_MULTIPLIER", 4),
		QueryNoiseScale:     getEnvFloat("QUERY_NOISE_SCALE", 0.05),
		BPMJitterPercent:    getEnvFloat("BPM_JITTER_PERCENT", 5.0),

		WatchDebounceSeconds: getEnvInt("WATCH_DEBOUNCE_SECONDS", 10),

		RedisHost:     getEnv("REDIS_HOST", ""),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogPath:  getEnv("LOG_PATH", ""),
	}
}
