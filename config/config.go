// Package config provides configuration management for the rena CLI and its
// meeting pipeline. It supports loading configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	DefaultConfigDir  = ".rena"
	DefaultConfigFile = "config.yaml"

	DefaultBotName = "Rena AI | Meeting Assistant"
)

// BotConfig holds meeting bot lifecycle settings.
type BotConfig struct {
	// Name is the display name the bot joins with.
	Name string `yaml:"name"`

	// PollInterval is how often the lifecycle loop observes room state.
	PollInterval time.Duration `yaml:"poll_interval"`

	// AdmissionTimeout bounds how long the bot waits in the waiting room.
	AdmissionTimeout time.Duration `yaml:"admission_timeout"`

	// IdleRoomTimeout is how long the bot stays in a meeting with zero other
	// participants before leaving.
	IdleRoomTimeout time.Duration `yaml:"idle_room_timeout"`
}

// CaptureConfig holds audio capture settings.
type CaptureConfig struct {
	// SinkName is the virtual audio sink the meeting output is routed through.
	SinkName string `yaml:"sink_name"`

	// OutputDir is where finished recordings are written.
	OutputDir string `yaml:"output_dir"`
}

// ServicesConfig holds external service endpoints and the model chain.
type ServicesConfig struct {
	// TranscriptionURL is the hosted transcription service endpoint.
	TranscriptionURL string `yaml:"transcription_url"`

	// DiarizationURL is the local diarization service endpoint.
	DiarizationURL string `yaml:"diarization_url"`

	// SynthesisURL is the structured-report synthesis service endpoint.
	SynthesisURL string `yaml:"synthesis_url"`

	// EmbeddingURL is the embedding service endpoint.
	EmbeddingURL string `yaml:"embedding_url"`

	// RoomDriverURL is the headless browser driver endpoint the bot uses to
	// join and observe meetings.
	RoomDriverURL string `yaml:"room_driver_url"`

	// CalendarURL is the calendar bridge endpoint the auto-join scheduler
	// polls for upcoming events.
	CalendarURL string `yaml:"calendar_url"`

	// PrimaryModel is attempted first for transcription and synthesis.
	PrimaryModel string `yaml:"primary_model"`

	// FallbackModel is the lower-cost model used when the primary fails.
	FallbackModel string `yaml:"fallback_model"`

	// CallTimeout bounds each external service call.
	CallTimeout time.Duration `yaml:"call_timeout"`
}

// KnowledgeBaseConfig holds chunking and retrieval settings.
type KnowledgeBaseConfig struct {
	// ChunkSize is the maximum chunk length in runes.
	ChunkSize int `yaml:"chunk_size"`

	// ChunkOverlap is the rune overlap between adjacent chunks.
	ChunkOverlap int `yaml:"chunk_overlap"`

	// TopK is how many chunks retrieval considers.
	TopK int `yaml:"top_k"`

	// SimilarityThreshold is the minimum similarity for a chunk to count as
	// relevant. Below it, queries answer "no relevant meeting found".
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	SSLMode  string `yaml:"sslmode"`
}

// RedisConfig holds redis connection settings for the indexing queue.
type RedisConfig struct {
	Addr string `yaml:"addr"`
	DB   int    `yaml:"db"`
}

// SchedulerConfig holds auto-join settings.
type SchedulerConfig struct {
	// PollInterval is how often the calendar is checked.
	PollInterval time.Duration `yaml:"poll_interval"`

	// JoinDelay is how long after an event's start the bot still joins; a
	// fixed grace is added on top.
	JoinDelay time.Duration `yaml:"join_delay"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Config is the root configuration for the rena CLI.
type Config struct {
	Bot       BotConfig           `yaml:"bot"`
	Capture   CaptureConfig       `yaml:"capture"`
	Services  ServicesConfig      `yaml:"services"`
	KB        KnowledgeBaseConfig `yaml:"knowledge_base"`
	Scheduler SchedulerConfig     `yaml:"scheduler"`
	Database  DatabaseConfig      `yaml:"database"`
	Redis     RedisConfig         `yaml:"redis"`
	Logging   LoggingConfig       `yaml:"logging"`
}

// Default returns a Config populated with default values.
func Default() *Config {
	return &Config{
		Bot: BotConfig{
			Name:             DefaultBotName,
			PollInterval:     5 * time.Second,
			AdmissionTimeout: 3 * time.Minute,
			IdleRoomTimeout:  5 * time.Minute,
		},
		Capture: CaptureConfig{
			SinkName:  "rena_capture",
			OutputDir: "~/.rena/recordings",
		},
		Services: ServicesConfig{
			TranscriptionURL: "http://localhost:8000",
			DiarizationURL:   "http://localhost:8001",
			SynthesisURL:     "http://localhost:8002",
			EmbeddingURL:     "http://localhost:8003",
			RoomDriverURL:    "http://localhost:8004",
			CalendarURL:      "http://localhost:8005",
			PrimaryModel:     "large-v3",
			FallbackModel:    "medium",
			CallTimeout:      5 * time.Minute,
		},
		Scheduler: SchedulerConfig{
			PollInterval: 30 * time.Second,
			JoinDelay:    2 * time.Minute,
		},
		KB: KnowledgeBaseConfig{
			ChunkSize:           1024,
			ChunkOverlap:        100,
			TopK:                10,
			SimilarityThreshold: 0.25,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "rena",
			User:     "rena",
			SSLMode:  "disable",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// ConfigPath returns the default config file path (~/.rena/config.yaml).
func ConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(DefaultConfigDir, DefaultConfigFile)
	}
	return filepath.Join(home, DefaultConfigDir, DefaultConfigFile)
}

// Load reads the config file at path, falling back to defaults for any value
// not set. A missing file is not an error; defaults apply. Environment
// variables override file values afterwards.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = ConfigPath()
	}
	path = expandPath(path)

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	cfg.Capture.OutputDir = expandPath(cfg.Capture.OutputDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides overrides config values from RENA_* environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RENA_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("RENA_DB_NAME"); v != "" {
		cfg.Database.Database = v
	}
	if v := os.Getenv("RENA_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("RENA_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("RENA_TRANSCRIPTION_URL"); v != "" {
		cfg.Services.TranscriptionURL = v
	}
	if v := os.Getenv("RENA_DIARIZATION_URL"); v != "" {
		cfg.Services.DiarizationURL = v
	}
	if v := os.Getenv("RENA_SYNTHESIS_URL"); v != "" {
		cfg.Services.SynthesisURL = v
	}
	if v := os.Getenv("RENA_EMBEDDING_URL"); v != "" {
		cfg.Services.EmbeddingURL = v
	}
	if v := os.Getenv("RENA_ROOM_DRIVER_URL"); v != "" {
		cfg.Services.RoomDriverURL = v
	}
	if v := os.Getenv("RENA_CALENDAR_URL"); v != "" {
		cfg.Services.CalendarURL = v
	}
	if v := os.Getenv("RENA_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the config for values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Bot.PollInterval <= 0 {
		return fmt.Errorf("bot.poll_interval must be positive")
	}
	if c.Bot.AdmissionTimeout <= 0 {
		return fmt.Errorf("bot.admission_timeout must be positive")
	}
	if c.Bot.IdleRoomTimeout <= 0 {
		return fmt.Errorf("bot.idle_room_timeout must be positive")
	}
	if c.KB.ChunkSize <= 0 {
		return fmt.Errorf("knowledge_base.chunk_size must be positive")
	}
	if c.KB.ChunkOverlap < 0 || c.KB.ChunkOverlap >= c.KB.ChunkSize {
		return fmt.Errorf("knowledge_base.chunk_overlap must be in [0, chunk_size)")
	}
	if c.KB.TopK <= 0 {
		return fmt.Errorf("knowledge_base.top_k must be positive")
	}
	if c.KB.SimilarityThreshold < 0 || c.KB.SimilarityThreshold > 1 {
		return fmt.Errorf("knowledge_base.similarity_threshold must be in [0, 1]")
	}
	if c.Services.PrimaryModel == "" || c.Services.FallbackModel == "" {
		return fmt.Errorf("services.primary_model and services.fallback_model are required")
	}
	if c.Scheduler.PollInterval <= 0 {
		return fmt.Errorf("scheduler.poll_interval must be positive")
	}
	if c.Scheduler.JoinDelay < 0 {
		return fmt.Errorf("scheduler.join_delay must not be negative")
	}
	return nil
}

// Save writes the config as YAML to path, creating parent directories.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}
	path = expandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
