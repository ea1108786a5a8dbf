// Package config provides centralized configuration management
// for the fodder analyzer. It supports loading from YAML files,
// .env files, environment variables, and AWS Secrets Manager (for Lambda).
package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/fodder-analyzer/internal/logging"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Data      DataConfig      `yaml:"data"`
	Assistant AssistantConfig `yaml:"assistant"`
	Upload    UploadConfig    `yaml:"upload"`
	Engine    EngineConfig    `yaml:"engine"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds server-related settings
type ServerConfig struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RateLimit      float64       `yaml:"rate_limit"` // requests per second per client
	RateBurst      int           `yaml:"rate_burst"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

// DataConfig locates the regional tables
type DataConfig struct {
	Dir             string        `yaml:"dir"`
	GapFile         string        `yaml:"gap_file"`
	SupplyFile      string        `yaml:"supply_file"`
	DemandFile      string        `yaml:"demand_file"`
	MandalFile      string        `yaml:"mandal_file"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// AssistantConfig selects and configures the generative collaborators
type AssistantConfig struct {
	// Provider is one of auto, ollama, openai, local
	Provider     string        `yaml:"provider"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
	Timeout      time.Duration `yaml:"timeout"`
	Ollama       OllamaConfig  `yaml:"ollama"`
	OpenAI       OpenAIConfig  `yaml:"openai"`
}

// OllamaConfig holds Ollama-specific configuration
type OllamaConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

// OpenAIConfig holds settings for any OpenAI-compatible endpoint
type OpenAIConfig struct {
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Endpoint string `yaml:"endpoint"`
}

// UploadConfig controls where uploaded previews are kept
type UploadConfig struct {
	// Store is file or redis
	Store       string        `yaml:"store"`
	Path        string        `yaml:"path"`
	PreviewRows int           `yaml:"preview_rows"`
	MaxBytes    int64         `yaml:"max_bytes"`
	Redis       RedisConfig   `yaml:"redis"`
	TTL         time.Duration `yaml:"ttl"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// EngineConfig tunes the chat engine
type EngineConfig struct {
	StateName string        `yaml:"state_name"`
	Aliases   []AliasConfig `yaml:"aliases"`
}

// AliasConfig maps an abbreviation to a canonical region name
type AliasConfig struct {
	Token  string `yaml:"token"`
	Region string `yaml:"region"`
}

// LoggingConfig holds logging-related settings
type LoggingConfig struct {
	Level       string `yaml:"level"`
	EnableFile  bool   `yaml:"enable_file"`
	EnableJSON  bool   `yaml:"enable_json"`
	EnableColor bool   `yaml:"enable_color"`
	LogDir      string `yaml:"log_dir"`
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8000,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   120 * time.Second,
			RateLimit:      5,
			RateBurst:      20,
			AllowedOrigins: []string{"*"},
		},
		Data: DataConfig{
			Dir:             "data",
			GapFile:         "fodder_gap_analysis.csv",
			SupplyFile:      "district_fodder_supply.csv",
			DemandFile:      "district_fodder_demand.csv",
			MandalFile:      "mandal_fodder_demand.csv",
			CacheTTL:        10 * time.Minute,
			CleanupInterval: 30 * time.Minute,
		},
		Assistant: AssistantConfig{
			Provider:     "auto",
			ProbeTimeout: 500 * time.Millisecond,
			Timeout:      60 * time.Second,
			Ollama: OllamaConfig{
				Endpoint:    "http://localhost:11434",
				Model:       "gemma3:1b",
				Temperature: 0.1,
			},
			OpenAI: OpenAIConfig{
				Model:    "gpt-4o-mini",
				Endpoint: "https://api.openai.com/v1",
			},
		},
		Upload: UploadConfig{
			Store:       "file",
			Path:        filepath.Join(os.TempDir(), "fodder-analyzer-upload.txt"),
			PreviewRows: 10,
			MaxBytes:    10 << 20,
			TTL:         24 * time.Hour,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "fodder:",
			},
		},
		Engine: EngineConfig{
			StateName: "Andhra Pradesh",
		},
		Logging: LoggingConfig{
			Level:       "info",
			EnableFile:  false,
			EnableJSON:  false,
			EnableColor: true,
			LogDir:      "logs",
		},
	}
}

// Get returns the global configuration (singleton)
func Get() *Config {
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig = load(defaultPaths())
	})
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}

// Reload reloads the configuration from file and environment
func Reload() error {
	cfg := load(defaultPaths())
	configOnce.Do(func() {})
	configMu.Lock()
	globalConfig = cfg
	configMu.Unlock()
	return nil
}

// Load builds a configuration from the first readable YAML file among
// paths, then applies .env and environment overrides.
func Load(paths ...string) *Config {
	return load(paths)
}

func load(paths []string) *Config {
	cfg := DefaultConfig()
	loadConfigFile(cfg, paths)
	loadEnvOverrides(cfg)
	return cfg
}

func defaultPaths() []string {
	return []string{
		"config.yaml",
		"config.yml",
		filepath.Join(getExecutableDir(), "config.yaml"),
		filepath.Join(getExecutableDir(), "config.yml"),
	}
}

// loadConfigFile merges the first parseable file into cfg
func loadConfigFile(cfg *Config, paths []string) {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			continue
		}
		break
	}
}

// loadEnvOverrides applies environment variable overrides. Values from a
// .env file in the working directory are visible here unless already set.
func loadEnvOverrides(cfg *Config) {
	_ = godotenv.Load()

	if port := os.Getenv("FODDER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if dir := os.Getenv("FODDER_DATA_DIR"); dir != "" {
		cfg.Data.Dir = dir
	}
	if ttl := os.Getenv("FODDER_CACHE_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			cfg.Data.CacheTTL = d
		}
	}
	if provider := os.Getenv("FODDER_ASSISTANT_PROVIDER"); provider != "" {
		cfg.Assistant.Provider = strings.ToLower(provider)
	}
	if probe := os.Getenv("FODDER_PROBE_TIMEOUT"); probe != "" {
		if d, err := time.ParseDuration(probe); err == nil {
			cfg.Assistant.ProbeTimeout = d
		}
	}
	if endpoint := os.Getenv("OLLAMA_ENDPOINT"); endpoint != "" {
		cfg.Assistant.Ollama.Endpoint = endpoint
	}
	if model := os.Getenv("OLLAMA_MODEL"); model != "" {
		cfg.Assistant.Ollama.Model = model
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		cfg.Assistant.OpenAI.Model = model
	}
	if endpoint := os.Getenv("OPENAI_ENDPOINT"); endpoint != "" {
		cfg.Assistant.OpenAI.Endpoint = endpoint
	}
	if store := os.Getenv("FODDER_UPLOAD_STORE"); store != "" {
		cfg.Upload.Store = strings.ToLower(store)
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Upload.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Upload.Redis.Password = password
	}
	if state := os.Getenv("FODDER_STATE_NAME"); state != "" {
		cfg.Engine.StateName = state
	}
	if level := os.Getenv("FODDER_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}

	// Lambda detection - adjust settings for Lambda environment
	if logging.IsLambda() {
		cfg.Logging.EnableFile = false
		cfg.Logging.EnableColor = false
		cfg.Logging.EnableJSON = true
		cfg.Upload.Path = "/tmp/fodder-analyzer-upload.txt"

		loadOpenAIKeyFromSecretsManager(cfg)
	}

	// The environment takes precedence over Secrets Manager
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.Assistant.OpenAI.APIKey = key
	}
}

// OpenAISecretPayload is the secret structure in AWS Secrets Manager
type OpenAISecretPayload struct {
	APIKey   string `json:"OPENAI_API_KEY"`
	Model    string `json:"OPENAI_MODEL"`
	Endpoint string `json:"OPENAI_ENDPOINT"`
}

// loadOpenAIKeyFromSecretsManager is only called when running in Lambda
func loadOpenAIKeyFromSecretsManager(cfg *Config) {
	secretName := os.Getenv("OPENAI_SECRET_NAME")
	if secretName == "" {
		secretName = "fodder-analyzer/openai"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		// The OpenAI collaborator stays disabled
		return
	}

	client := secretsmanager.NewFromConfig(awsCfg)
	result, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretName),
	})
	if err != nil || result.SecretString == nil {
		return
	}

	applyOpenAISecret(cfg, *result.SecretString)
}

func applyOpenAISecret(cfg *Config, secret string) bool {
	var payload OpenAISecretPayload
	if err := json.Unmarshal([]byte(secret), &payload); err != nil {
		return false
	}
	if payload.APIKey != "" {
		cfg.Assistant.OpenAI.APIKey = payload.APIKey
	}
	if payload.Model != "" {
		cfg.Assistant.OpenAI.Model = payload.Model
	}
	if payload.Endpoint != "" {
		cfg.Assistant.OpenAI.Endpoint = payload.Endpoint
	}
	return true
}

// DataPath joins a table file name onto the data directory unless it is
// already absolute.
func (d DataConfig) DataPath(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(d.Dir, name)
}

// getExecutableDir returns the directory containing the executable
func getExecutableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}
