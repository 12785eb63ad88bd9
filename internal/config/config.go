// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
)

// Singleton holding the current configuration
var (
	currentConfig *AppConfig
	configMutex   sync.RWMutex
	configFile    string
)

// CollaboratorProfile configures one external collaborator endpoint.
// Profiles are keyed "text", "vision" and "image".
type CollaboratorProfile struct {
	Provider   string `json:"provider"` // "azure" or "openai"
	Endpoint   string `json:"endpoint"`
	Deployment string `json:"deployment,omitempty"`
	APIVersion string `json:"api_version,omitempty"`
	APIKey     string `json:"api_key,omitempty"`
	Model      string `json:"model,omitempty"`
}

// TimingConfig carries lyric-alignment tunables.
type TimingConfig struct {
	SecondsPerScene float64 `json:"seconds_per_scene"`
	// Entries with at most this many words are dropped when the gap since
	// the last kept entry exceeds one scene duration.
	SparseWordLimit int `json:"sparse_word_limit"`
}

// ContinuityConfig carries the continuity-reference tunables. The source
// constants (0.55 threshold, 40 minimum length) are defaults, not re-derived.
type ContinuityConfig struct {
	SimilarityThreshold float64 `json:"similarity_threshold"`
	MinPromptLength     int     `json:"min_prompt_length"`
	ReferenceMaxEdge    int     `json:"reference_max_edge"` // downscale bound in pixels
}

// RetryConfig parameterizes the completion loop.
type RetryConfig struct {
	BatchSize     int `json:"batch_size"`
	MaxIterations int `json:"max_iterations"`
}

// AppConfig contains the full application configuration.
type AppConfig struct {
	Port         string `json:"port"`
	DataDir      string `json:"data_dir"`
	LogDir       string `json:"log_dir"`
	VocabPath    string `json:"vocab_path,omitempty"`
	DebugMode    bool   `json:"debug_mode"`
	AuditEnabled bool   `json:"audit_enabled"`

	Profiles   map[string]CollaboratorProfile `json:"profiles"`
	Timing     TimingConfig                   `json:"timing"`
	Continuity ContinuityConfig               `json:"continuity"`
	Retry      RetryConfig                    `json:"retry"`
}

// Defaults returns the built-in configuration.
func Defaults() *AppConfig {
	return &AppConfig{
		Port:         "8080",
		DataDir:      "data",
		LogDir:       "logs",
		DebugMode:    false,
		AuditEnabled: true,
		Profiles:     map[string]CollaboratorProfile{},
		Timing: TimingConfig{
			SecondsPerScene: 6,
			SparseWordLimit: 2,
		},
		Continuity: ContinuityConfig{
			SimilarityThreshold: 0.55,
			MinPromptLength:     40,
			ReferenceMaxEdge:    512,
		},
		Retry: RetryConfig{
			BatchSize:     14,
			MaxIterations: 10,
		},
	}
}

// Load builds the base configuration from environment variables. A .env file
// is honored when present.
func Load() (*AppConfig, error) {
	godotenv.Load()

	cfg := Defaults()
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.DataDir = getEnvPath("DATA_DIR", cfg.DataDir)
	cfg.LogDir = getEnvPath("LOG_DIR", cfg.LogDir)
	cfg.VocabPath = getEnv("VOCAB_PATH", "")
	cfg.DebugMode = getEnvBool("DEBUG_MODE", cfg.DebugMode)
	cfg.AuditEnabled = getEnvBool("AUDIT_ENABLED", cfg.AuditEnabled)

	if v := getEnvFloat("SECONDS_PER_SCENE", 0); v > 0 {
		cfg.Timing.SecondsPerScene = v
	}

	// A single key covers the common case of one Azure resource serving all
	// three collaborator roles; per-profile settings live in config.json.
	if key := os.Getenv("AZURE_OPENAI_API_KEY"); key != "" {
		endpoint := os.Getenv("AZURE_OPENAI_ENDPOINT")
		for _, role := range []string{"text", "vision", "image"} {
			if _, exists := cfg.Profiles[role]; !exists {
				cfg.Profiles[role] = CollaboratorProfile{
					Provider: "azure",
					Endpoint: endpoint,
					APIKey:   key,
				}
			}
		}
	}

	if len(cfg.Profiles) == 0 {
		log.Println("warning: no collaborator profiles configured; set AZURE_OPENAI_API_KEY or edit config.json")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0755); err != nil {
			fmt.Printf("warning: failed to create directory %s: %v\n", path, err)
		}
	}

	return path
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes"
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

// InitConfig loads config.json from the data dir on top of the environment
// configuration, creating the file on first run.
func InitConfig(dataDir string) error {
	configFile = filepath.Join(dataDir, "config.json")

	baseConfig, err := Load()
	if err != nil {
		return err
	}

	configMutex.Lock()
	defer configMutex.Unlock()

	currentConfig = baseConfig

	data, err := os.ReadFile(configFile)
	if os.IsNotExist(err) {
		return saveLocked()
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, currentConfig); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	normalizeLocked(currentConfig)
	return nil
}

// normalizeLocked backfills zero-valued tunables with defaults so an edited
// config file cannot disable the loop bounds outright.
func normalizeLocked(cfg *AppConfig) {
	def := Defaults()
	if cfg.Timing.SecondsPerScene <= 0 {
		cfg.Timing.SecondsPerScene = def.Timing.SecondsPerScene
	}
	if cfg.Timing.SparseWordLimit <= 0 {
		cfg.Timing.SparseWordLimit = def.Timing.SparseWordLimit
	}
	if cfg.Continuity.SimilarityThreshold <= 0 {
		cfg.Continuity.SimilarityThreshold = def.Continuity.SimilarityThreshold
	}
	if cfg.Continuity.MinPromptLength <= 0 {
		cfg.Continuity.MinPromptLength = def.Continuity.MinPromptLength
	}
	if cfg.Continuity.ReferenceMaxEdge <= 0 {
		cfg.Continuity.ReferenceMaxEdge = def.Continuity.ReferenceMaxEdge
	}
	if cfg.Retry.BatchSize <= 0 {
		cfg.Retry.BatchSize = def.Retry.BatchSize
	}
	if cfg.Retry.MaxIterations <= 0 {
		cfg.Retry.MaxIterations = def.Retry.MaxIterations
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]CollaboratorProfile{}
	}
}

// GetCurrentConfig returns the live configuration.
func GetCurrentConfig() *AppConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return currentConfig
}

// UpdateConfig applies a mutation and persists the result.
func UpdateConfig(mutate func(*AppConfig)) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return fmt.Errorf("configuration not initialized")
	}

	mutate(currentConfig)
	normalizeLocked(currentConfig)
	return saveLocked()
}

func saveLocked() error {
	if configFile == "" {
		return nil
	}

	data, err := json.MarshalIndent(currentConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(configFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
