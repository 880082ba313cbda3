package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config defines server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	DB      DBConfig      `yaml:"db"`
	Log     LogConfig     `yaml:"log"`
	Auth    AuthConfig    `yaml:"auth"`
	Detect  DetectConfig  `yaml:"detect"`
	Camera  CameraConfig  `yaml:"camera"`
	Capture CaptureConfig `yaml:"capture"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// AuthConfig holds the optional operator token. Empty disables auth.
type AuthConfig struct {
	Token string `yaml:"token"`
}

// DetectConfig points at the mark detection endpoint.
type DetectConfig struct {
	URL            string `yaml:"url"`
	Token          string `yaml:"token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// CameraConfig maps capture facings onto V4L2 device paths.
type CameraConfig struct {
	Facing            string `yaml:"facing"`
	EnvironmentDevice string `yaml:"environment_device"`
	UserDevice        string `yaml:"user_device"`
	Width             uint32 `yaml:"width"`
	Height            uint32 `yaml:"height"`
}

// CaptureConfig controls frame downsampling before detection.
type CaptureConfig struct {
	MaxWidth    int `yaml:"max_width"`
	JPEGQuality int `yaml:"jpeg_quality"`
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		DB: DBConfig{
			Path: "markscan.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Detect: DetectConfig{
			URL:            "https://mark-detector.baydershghl.workers.dev",
			TimeoutSeconds: 30,
		},
		Camera: CameraConfig{
			Facing:            "environment",
			EnvironmentDevice: "/dev/video0",
			UserDevice:        "/dev/video0",
			Width:             1920,
			Height:            1080,
		},
		Capture: CaptureConfig{
			MaxWidth:    800,
			JPEGQuality: 70,
		},
	}

	if path := os.Getenv("MARKSCAN_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if host := os.Getenv("MARKSCAN_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("MARKSCAN_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid MARKSCAN_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if dbPath := os.Getenv("MARKSCAN_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if level := os.Getenv("MARKSCAN_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if token := os.Getenv("MARKSCAN_AUTH_TOKEN"); token != "" {
		cfg.Auth.Token = token
	}
	if url := os.Getenv("MARKSCAN_DETECT_URL"); url != "" {
		cfg.Detect.URL = url
	}
	if token := os.Getenv("MARKSCAN_DETECT_TOKEN"); token != "" {
		cfg.Detect.Token = token
	}
	if device := os.Getenv("MARKSCAN_CAMERA_DEVICE"); device != "" {
		cfg.Camera.EnvironmentDevice = device
		cfg.Camera.UserDevice = device
	}
	if facing := os.Getenv("MARKSCAN_CAMERA_FACING"); facing != "" {
		cfg.Camera.Facing = facing
	}

	return cfg, nil
}

// Device resolves a facing to its configured V4L2 device path.
func (c CameraConfig) Device(facing string) string {
	if facing == "user" {
		return c.UserDevice
	}
	return c.EnvironmentDevice
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
