package common

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	OCR       OCRConfig
	Inference InferenceConfig
	Export    ExportConfig
	Batch     BatchConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr    string
	LogLevel    slog.Level
	MaxMsgBytes int // gRPC send/receive limit; inline uploads travel base64 encoded
}

// OCRConfig holds rasterization and OCR configuration
type OCRConfig struct {
	Engine           string // "tesseract" | "gosseract"
	Tesseract        string
	Pdftoppm         string
	Lang             string
	DPI              int
	MaxPages         int
	PSM              int
	OEM              int
	TessdataDir      string
	HeicConverter    string
	ArtifactCacheDir string
	Normalize        bool
}

// InferenceConfig holds summarization / question-answering backend configuration
type InferenceConfig struct {
	Backend      string // "http" | "openai" | "none"
	URL          string
	SummaryModel string
	QAModel      string
	APIKey       string
	BaseURL      string
	Model        string
	Timeout      time.Duration
	RPS          float64
}

// ExportConfig holds export artifact configuration
type ExportConfig struct {
	Dir string
}

// BatchConfig holds batch orchestration configuration
type BatchConfig struct {
	Workers         int
	DocumentTimeout time.Duration
	RulesFile       string
}

// LoadDotEnv loads a .env file into the process environment if one exists.
// Variables already present in the environment win.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return WrapError(err, "load "+path)
	}
	return nil
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			GRPCAddr:    getEnv("GRPC_ADDR", ":8080"),
			LogLevel:    getEnvAsLevel("LOG_LEVEL", slog.LevelInfo),
			MaxMsgBytes: getEnvAsInt("GRPC_MAX_MSG_BYTES", 96<<20),
		},
		OCR: OCRConfig{
			Engine:           getEnv("OCR_ENGINE", "tesseract"),
			Tesseract:        getEnv("TESSERACT_BIN", "tesseract"),
			Pdftoppm:         getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Lang:             getEnv("OCR_LANG", "eng"),
			DPI:              getEnvAsInt("OCR_DPI", 300),
			MaxPages:         getEnvAsInt("OCR_MAX_PAGES", 0),
			PSM:              getEnvAsInt("OCR_PSM", 0),
			OEM:              getEnvAsInt("OCR_OEM", 0),
			TessdataDir:      getEnv("TESSDATA_PREFIX", ""),
			HeicConverter:    getEnv("HEIC_CONVERTER", "magick"),
			ArtifactCacheDir: getEnv("ARTIFACT_CACHE_DIR", "./tmp"),
			Normalize:        getEnvAsBool("OCR_NORMALIZE", false),
		},
		Inference: InferenceConfig{
			Backend:      getEnv("INFERENCE_BACKEND", "http"),
			URL:          getEnv("INFERENCE_URL", "http://localhost:8000"),
			SummaryModel: getEnv("SUMMARY_MODEL", "facebook/bart-large-cnn"),
			QAModel:      getEnv("QA_MODEL", "distilbert-base-cased-distilled-squad"),
			APIKey:       getEnv("OPENAI_API_KEY", ""),
			BaseURL:      getEnv("OPENAI_BASE_URL", ""),
			Model:        getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			Timeout:      getEnvAsDuration("INFERENCE_TIMEOUT", 60*time.Second),
			RPS:          getEnvAsFloat("INFERENCE_RPS", 0),
		},
		Export: ExportConfig{
			Dir: getEnv("EXPORT_DIR", "./exports"),
		},
		Batch: BatchConfig{
			Workers:         getEnvAsInt("BATCH_WORKERS", 4),
			DocumentTimeout: getEnvAsDuration("DOCUMENT_TIMEOUT", 3*time.Minute),
			RulesFile:       getEnv("RULES_FILE", ""),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsLevel(key string, defaultValue slog.Level) slog.Level {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(value)); err == nil {
			return lvl
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.OCR.Engine {
	case "tesseract", "gosseract":
	default:
		return NewAppError("CONFIG_ERROR", "OCR_ENGINE must be tesseract or gosseract", ErrInvalidInput)
	}
	if c.OCR.DPI <= 0 {
		return NewAppError("CONFIG_ERROR", "OCR_DPI must be positive", ErrInvalidInput)
	}
	switch c.Inference.Backend {
	case "http":
		if c.Inference.URL == "" {
			return NewAppError("CONFIG_ERROR", "INFERENCE_URL is required for the http backend", ErrInvalidInput)
		}
	case "openai":
		if c.Inference.APIKey == "" {
			return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required for the openai backend", ErrInvalidInput)
		}
	case "none":
	default:
		return NewAppError("CONFIG_ERROR", "INFERENCE_BACKEND must be http, openai or none", ErrInvalidInput)
	}
	if c.Export.Dir == "" {
		return NewAppError("CONFIG_ERROR", "EXPORT_DIR is required", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR is required", ErrInvalidInput)
	}
	if c.Server.MaxMsgBytes <= 0 {
		return NewAppError("CONFIG_ERROR", "GRPC_MAX_MSG_BYTES must be positive", ErrInvalidInput)
	}
	return nil
}
