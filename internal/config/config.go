package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port        int              `json:"port"`
	JWTSecret   string           `json:"jwt_secret"`
	CORSOrigins []string         `json:"cors_origins"`
	MaxUploadMB int64            `json:"max_upload_mb"`
	LogConfig   logger.LogConfig `json:"log_config"`
	Database    DatabaseConfig   `json:"database"`
	FileStore   FileStoreConfig  `json:"file_store"`
	AI          AIConfig         `json:"ai"`
	Process     ProcessConfig    `json:"process"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type FileStoreConfig struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

type AIProviderConfig struct {
	Provider string                 `json:"provider"`
	Model    string                 `json:"model"`
	Data     map[string]interface{} `json:"data"`
}

type AIConfig struct {
	AIProviderConfig
	Fallbacks     []AIProviderConfig `json:"fallbacks"`
	MaxInputChars int                `json:"max_input_chars"`
	TimeoutSecs   int                `json:"timeout_secs"`
}

type ProcessConfig struct {
	PendingScanCron  string `json:"pending_scan_cron"`
	PendingDelayMins int    `json:"pending_delay_mins"`
	StuckScanCron    string `json:"stuck_scan_cron"`
	StuckCutoffMins  int    `json:"stuck_cutoff_mins"`
	URLTTLMins       int    `json:"url_ttl_mins"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.Database.DSN == "" && (cfg.Database.Host == "" || cfg.Database.DBName == "") {
		return nil, fmt.Errorf("database.dsn or database.host/dbname is required")
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 20
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	if cfg.AI.Provider == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	if cfg.AI.Model == "" {
		return nil, fmt.Errorf("ai.model is required")
	}
	if cfg.AI.MaxInputChars <= 0 {
		cfg.AI.MaxInputChars = 60000
	}
	if cfg.AI.TimeoutSecs <= 0 {
		cfg.AI.TimeoutSecs = 120
	}
	if cfg.Process.PendingScanCron == "" {
		cfg.Process.PendingScanCron = "*/5 * * * *"
	}
	if cfg.Process.PendingDelayMins <= 0 {
		cfg.Process.PendingDelayMins = 10
	}
	if cfg.Process.StuckScanCron == "" {
		cfg.Process.StuckScanCron = "*/10 * * * *"
	}
	if cfg.Process.StuckCutoffMins <= 0 {
		cfg.Process.StuckCutoffMins = 30
	}
	if cfg.Process.URLTTLMins <= 0 {
		cfg.Process.URLTTLMins = 10
	}
	return &cfg, nil
}
