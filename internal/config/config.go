package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Upload UploadConfig `mapstructure:"upload"`
	Model  ModelConfig  `mapstructure:"model"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	StaticDir    string        `mapstructure:"static_dir"`
}

type UploadConfig struct {
	MaxSize      int64    `mapstructure:"max_size"`
	AllowedTypes []string `mapstructure:"allowed_types"`
}

type ModelConfig struct {
	CacheDir string `mapstructure:"cache_dir"`
	Device   string `mapstructure:"device"`
	TopK     int    `mapstructure:"top_k"`
	Debug    bool   `mapstructure:"debug"`
}

// Load reads configuration from a YAML file. The two environment
// toggles IMGCLASSD_DEBUG and IMGCLASSD_MODEL_CACHE override the file.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// New loads config.yaml from the working directory, falling back to
// defaults when the file is missing.
func New() *Config {
	cfg, err := Load("config.yaml")
	if err != nil {
		return getDefaultConfig()
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)
	v.SetDefault("server.static_dir", "./web/static")

	v.SetDefault("upload.max_size", 10*1024*1024)
	v.SetDefault("upload.allowed_types", []string{"jpeg", "png", "webp"})

	v.SetDefault("model.cache_dir", "./models")
	v.SetDefault("model.device", "gpu")
	v.SetDefault("model.top_k", 5)
	v.SetDefault("model.debug", false)
}

func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("model.debug", "IMGCLASSD_DEBUG")
	_ = v.BindEnv("model.cache_dir", "IMGCLASSD_MODEL_CACHE")
}

func getDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         ":8080",
			Mode:         "debug",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 120 * time.Second,
			StaticDir:    "./web/static",
		},
		Upload: UploadConfig{
			MaxSize:      10 * 1024 * 1024,
			AllowedTypes: []string{"jpeg", "png", "webp"},
		},
		Model: ModelConfig{
			CacheDir: "./models",
			Device:   "gpu",
			TopK:     5,
			Debug:    false,
		},
	}
}
