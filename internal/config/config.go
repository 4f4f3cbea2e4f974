package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/kdduha/apeiron/backend/internal/models"
)

type Config struct {
	Server      ServerConfig
	NVIDIA      NVIDIAConfig
	RedisConfig RedisConfig
	CacheEnable bool `env:"CACHE_ENABLE"`
}

type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR" envDefault:"redis:6379"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" envDefault:"0"`
	TTL      time.Duration `env:"REDIS_TTL" envDefault:"10m"`
}

type ServerConfig struct {
	Port            string        `env:"SERVER_PORT" envDefault:"3001"`
	Timeout         time.Duration `env:"SERVER_TIMEOUT" envDefault:"2m"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	ThrottleLimit   int           `env:"SERVER_THROTTLE_LIMIT" envDefault:"50"`
	MaxUploadBytes  int64         `env:"SERVER_MAX_UPLOAD_BYTES" envDefault:"104857600"`
	AllowedOrigins  []string      `env:"SERVER_ALLOWED_ORIGINS" envDefault:"http://localhost:8080"`
	StaticDir       string        `env:"SERVER_STATIC_DIR" envDefault:"dist"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty       bool          `env:"LOG_PRETTY"`
}

type NVIDIAConfig struct {
	APIKey         string            `env:"NVIDIA_API_KEY,required"`
	AssetsURL      string            `env:"NVIDIA_ASSETS_URL" envDefault:"https://api.nvcf.nvidia.com/v2/nvcf/assets"`
	InferenceURL   string            `env:"NVIDIA_INFERENCE_URL" envDefault:"https://ai.api.nvidia.com/v1/vlm/nvidia/vila"`
	Model          string            `env:"NVIDIA_MODEL" envDefault:"nvidia/vila"`
	Formats        map[string]string `env:"NVIDIA_SUPPORTED_FORMATS" envDefault:"png:image/png,jpg:image/jpg,jpeg:image/jpeg,mp4:video/mp4"`
	CleanupTimeout time.Duration     `env:"NVIDIA_CLEANUP_TIMEOUT" envDefault:"30s"`
	Generation     GenerationConfig
}

// GenerationConfig holds the decoding parameters sent with every inference call.
type GenerationConfig struct {
	MaxTokens          int     `env:"VILA_MAX_TOKENS" envDefault:"1024"`
	Temperature        float64 `env:"VILA_TEMPERATURE" envDefault:"0.2"`
	TopP               float64 `env:"VILA_TOP_P" envDefault:"0.7"`
	Seed               int     `env:"VILA_SEED" envDefault:"50"`
	FramesPerInference int     `env:"VILA_FRAMES_PER_INFERENCE" envDefault:"8"`
}

func (c NVIDIAConfig) FormatTable() models.FormatTable {
	return models.NewFormatTable(c.Formats)
}

// Load reads an optional .env file and then parses the process environment.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
