package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Capture CaptureConfig `yaml:"capture"`
	Vision  VisionConfig  `yaml:"vision"`
	NATS    NATSConfig    `yaml:"nats"`
	MinIO   MinIOConfig   `yaml:"minio"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Port     int    `yaml:"port"`
	AdminKey string `yaml:"admin_key"`
}

type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

// FacesDir is where identity metadata and embedding files live.
func (s StorageConfig) FacesDir() string {
	return filepath.Join(s.DataDir, "faces_db")
}

// LogsDir is where attendance CSV partitions live.
func (s StorageConfig) LogsDir() string {
	return filepath.Join(s.DataDir, "attendance_logs")
}

// SettingsPath is the runtime settings document.
func (s StorageConfig) SettingsPath() string {
	return filepath.Join(s.DataDir, "settings.json")
}

type CaptureConfig struct {
	// Source is any ffmpeg-readable input: a v4l2 device path, an RTSP
	// URL, or a video file.
	Source string `yaml:"source"`
	FPS    int    `yaml:"fps"`
	Width  int    `yaml:"width"`
}

type VisionConfig struct {
	ModelsDir    string `yaml:"models_dir"`
	EmbeddingDim int    `yaml:"embedding_dim"`
	MaxFaces     int    `yaml:"max_faces"`
}

type NATSConfig struct {
	// Empty URL disables event publishing.
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	// Empty endpoint disables snapshot archiving.
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Capture.Source == "" {
		cfg.Capture.Source = "/dev/video0"
	}
	if cfg.Capture.FPS == 0 {
		cfg.Capture.FPS = 5
	}
	if cfg.Capture.Width == 0 {
		cfg.Capture.Width = 640
	}
	if cfg.Vision.ModelsDir == "" {
		cfg.Vision.ModelsDir = "models"
	}
	if cfg.Vision.EmbeddingDim == 0 {
		cfg.Vision.EmbeddingDim = 128
	}
	if cfg.Vision.MaxFaces == 0 {
		cfg.Vision.MaxFaces = 5
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ATTEND_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ATTEND_ADMIN_KEY"); v != "" {
		cfg.Server.AdminKey = v
	}
	if v := os.Getenv("ATTEND_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("ATTEND_CAPTURE_SOURCE"); v != "" {
		cfg.Capture.Source = v
	}
	if v := os.Getenv("ATTEND_MODELS_DIR"); v != "" {
		cfg.Vision.ModelsDir = v
	}
	if v := os.Getenv("ATTEND_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("ATTEND_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("ATTEND_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("ATTEND_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("ATTEND_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
}
