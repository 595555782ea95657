package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the gateway and the ingestion worker.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Worker    WorkerConfig    `mapstructure:"worker"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// StorageConfig groups the queue backing store and the upload directory.
type StorageConfig struct {
	Redis   RedisConfig   `mapstructure:"redis"`
	Uploads UploadsConfig `mapstructure:"uploads"`
}

// RedisConfig contains Redis connection settings for the job queue.
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// Addr returns the host:port address of the Redis server.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// UploadsConfig contains settings for the durable upload directory shared
// between the gateway and the worker.
type UploadsConfig struct {
	Dir string `mapstructure:"dir"`
}

func (u UploadsConfig) Validate() error {
	if strings.TrimSpace(u.Dir) == "" {
		return fmt.Errorf("storage.uploads.dir required")
	}
	return nil
}

// ProvidersConfig contains the external model service configurations.
type ProvidersConfig struct {
	Embedding ProviderConfig `mapstructure:"embedding"`
	LLM       ProviderConfig `mapstructure:"llm"`
}

// ProviderConfig represents a single OpenAI-compatible provider endpoint.
type ProviderConfig struct {
	Type        string        `mapstructure:"type"` // openai-compatible only for now
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

func (p ProviderConfig) Validate(section string) error {
	if strings.TrimSpace(p.APIKey) == "" {
		return fmt.Errorf("providers.%s.api_key required", section)
	}
	if strings.TrimSpace(p.Model) == "" {
		return fmt.Errorf("providers.%s.model required", section)
	}
	return nil
}

// VectorConfig contains vector index connection settings.
type VectorConfig struct {
	URL        string        `mapstructure:"url"`
	APIKey     string        `mapstructure:"api_key"`
	Collection string        `mapstructure:"collection"`
	TopK       int           `mapstructure:"top_k"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

func (v VectorConfig) Validate() error {
	if strings.TrimSpace(v.URL) == "" {
		return fmt.Errorf("vector.url required")
	}
	if strings.TrimSpace(v.Collection) == "" {
		return fmt.Errorf("vector.collection required")
	}
	if v.TopK <= 0 {
		return fmt.Errorf("vector.top_k must be > 0")
	}
	return nil
}

// WorkerConfig contains ingestion worker settings.
type WorkerConfig struct {
	Stream       string `mapstructure:"stream"`
	Group        string `mapstructure:"group"`
	Concurrency  int    `mapstructure:"concurrency"`
	ChunkSize    int    `mapstructure:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap"`
	// MetricsAddress is where the worker exposes /metrics; empty disables it.
	MetricsAddress string `mapstructure:"metrics_address"`
}

func (w WorkerConfig) Validate() error {
	if strings.TrimSpace(w.Stream) == "" {
		return fmt.Errorf("worker.stream required")
	}
	if strings.TrimSpace(w.Group) == "" {
		return fmt.Errorf("worker.group required")
	}
	if w.Concurrency <= 0 {
		return fmt.Errorf("worker.concurrency must be > 0")
	}
	if w.ChunkSize <= 0 {
		return fmt.Errorf("worker.chunk_size must be > 0")
	}
	if w.ChunkOverlap < 0 || w.ChunkOverlap >= w.ChunkSize {
		return fmt.Errorf("worker.chunk_overlap must be in [0, chunk_size)")
	}
	return nil
}

// LoadConfig loads config from file. Missing or invalid configuration is fatal:
// the services cannot operate without the queue and provider endpoints.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("json")
	viper.SetDefault("server.address", ":8000")
	viper.SetDefault("storage.uploads.dir", "uploads")
	viper.SetDefault("storage.redis.db", 0)
	viper.SetDefault("providers.embedding.type", "openai")
	viper.SetDefault("providers.embedding.base_url", "https://router.huggingface.co/v1")
	viper.SetDefault("providers.embedding.model", "BAAI/bge-base-en-v1.5")
	viper.SetDefault("providers.embedding.timeout", 30*time.Second)
	viper.SetDefault("providers.llm.type", "openai")
	viper.SetDefault("providers.llm.base_url", "https://api.groq.com/openai/v1")
	viper.SetDefault("providers.llm.model", "openai/gpt-oss-20b")
	viper.SetDefault("providers.llm.timeout", 60*time.Second)
	viper.SetDefault("vector.url", "http://localhost:6333")
	viper.SetDefault("vector.collection", "pdf-collection")
	viper.SetDefault("vector.top_k", 2)
	viper.SetDefault("vector.timeout", 15*time.Second)
	viper.SetDefault("worker.stream", "pdf.uploads")
	viper.SetDefault("worker.group", "ingest-workers")
	viper.SetDefault("worker.concurrency", 5)
	viper.SetDefault("worker.chunk_size", 300)
	viper.SetDefault("worker.chunk_overlap", 0)
	viper.SetDefault("worker.metrics_address", ":9100")

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("PDFCHAT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv() // PDFCHAT_* overrides, e.g. PDFCHAT_PROVIDERS_LLM_API_KEY

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.Storage.Redis.Validate(); err != nil {
		panic(err)
	}
	if err := config.Storage.Uploads.Validate(); err != nil {
		panic(err)
	}
	if err := config.Providers.Embedding.Validate("embedding"); err != nil {
		panic(err)
	}
	if err := config.Providers.LLM.Validate("llm"); err != nil {
		panic(err)
	}
	if err := config.Vector.Validate(); err != nil {
		panic(err)
	}
	if err := config.Worker.Validate(); err != nil {
		panic(err)
	}
	return &config
}
