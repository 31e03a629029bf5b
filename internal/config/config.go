package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"riskquant/internal/analysis"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// RedisConfig addresses the Redis history backend.
type RedisConfig struct {
	Addr     string `default:"localhost:6379" validate:"required"`
	Password string
	DB       int    `validate:"min=0"`
	Prefix   string `default:"riskquant"`
}

// AppConfig holds the complete application configuration.
type AppConfig struct {
	DataPath            string
	LogDir              string
	HistoryDir          string
	HTTPAddr            string `default:":8080" validate:"required"`
	HistoryBackend      string `default:"file" validate:"oneof=file redis memory"`
	Redis               RedisConfig
	EngineConfigPath    string
	EnableMermaidCharts bool
	Engine              analysis.Config
}

var validate = validator.New()

// Load loads the configuration from .env files, environment variables and
// the optional engine YAML file.
func Load() (*AppConfig, error) {
	// 1. Try to load from the executable's directory first
	exePath, err := os.Executable()
	exeDir := ""
	if err == nil {
		exeDir = filepath.Dir(exePath)
		envPath := filepath.Join(exeDir, ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Debug().Str("path", envPath).Msg("Loaded configuration from binary directory")
		}
	}

	// 2. Fallback to current working directory
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found in working directory, relying on environment variables or binary-relative .env")
	}

	// 3. Resolve data paths
	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		if exeDir != "" {
			dataPath = exeDir
		} else {
			dataPath = "."
		}
	}

	cfg := &AppConfig{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}

	cfg.DataPath = dataPath
	cfg.LogDir = filepath.Join(dataPath, "logs")
	cfg.HistoryDir = filepath.Join(dataPath, "history")
	cfg.HTTPAddr = getEnv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.HistoryBackend = getEnv("HISTORY_BACKEND", cfg.HistoryBackend)
	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvInt("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.Prefix = getEnv("REDIS_PREFIX", cfg.Redis.Prefix)
	cfg.EngineConfigPath = getEnv("ENGINE_CONFIG", "")
	cfg.EnableMermaidCharts = getEnvBool("ENABLE_MERMAID_CHARTS", false)

	engine, err := LoadEngine(cfg.EngineConfigPath)
	if err != nil {
		return nil, err
	}
	if workers := getEnvInt("SIM_WORKERS", 0); workers > 0 {
		engine.Simulation.Workers = workers
	}
	cfg.Engine = engine

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.HistoryBackend == "file" {
		if err := os.MkdirAll(cfg.HistoryDir, 0755); err != nil {
			log.Warn().Err(err).Str("path", cfg.HistoryDir).Msg("Failed to create history directory")
		}
	}

	return cfg, nil
}

// LoadEngine reads an engine YAML file over the stock defaults. Keys absent
// from the file keep their default values. An empty path returns the defaults.
func LoadEngine(path string) (analysis.Config, error) {
	cfg := analysis.DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read engine config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse engine config %s: %w", path, err)
	}

	log.Debug().Str("path", path).Msg("Loaded engine configuration")
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}
