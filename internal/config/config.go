package config

import (
	"errors"
	"fmt"
	"os"

	"simpkl/internal/availability"
	"simpkl/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig              `yaml:"app"`
	HTTP       HTTPConfig             `yaml:"http"`
	Auth       AuthConfig             `yaml:"auth"`
	RateLimit  RateLimitConfig        `yaml:"rate_limit"`
	Database   DatabaseConfig         `yaml:"database"`
	Redis      RedisConfig            `yaml:"redis"`
	Logging    LoggingConfig          `yaml:"logging"`
	Monitoring MonitoringConfig       `yaml:"monitoring"`
	Quotas     QuotasConfig           `yaml:"quotas"`
	Groups     []models.ResourceGroup `yaml:"groups"`
	Booking    BookingConfig          `yaml:"booking"`
	Telegram   TelegramConfig         `yaml:"telegram"`
	Google     GoogleConfig           `yaml:"google"`
	Exports    ExportConfig           `yaml:"exports"`
	Backup     BackupConfig           `yaml:"backup"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type HTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type AuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

// QuotasConfig is the per-day capacity table. Groups listed under
// `groups:` may also carry their own quota; explicit entries here win.
type QuotasConfig struct {
	Default int            `yaml:"default"`
	Groups  map[string]int `yaml:"groups"`
}

type BookingConfig struct {
	MaxAdvanceDays          int `yaml:"max_advance_days"`
	BlockedWindowDays       int `yaml:"blocked_window_days"`
	SubmissionLimit         int `yaml:"submission_limit"`
	SubmissionWindowSeconds int `yaml:"submission_window_seconds"`
}

type TelegramConfig struct {
	Enabled      bool    `yaml:"enabled"`
	BotToken     string  `yaml:"bot_token"`
	AdminChatIDs []int64 `yaml:"admin_chat_ids"`
}

type GoogleConfig struct {
	Enabled               bool   `yaml:"enabled"`
	CredentialsFile       string `yaml:"credentials_file"`
	BookingsSpreadsheetID string `yaml:"bookings_spreadsheet_id"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	StoragePath   string `yaml:"storage_path"`
	Interval      string `yaml:"interval"`
	RetentionDays int    `yaml:"retention_days"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; environment wins either way.
	_ = godotenv.Load()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Expand ${VAR} references before parsing.
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return errors.New("telegram.bot_token is required when telegram is enabled")
	}
	if c.Google.Enabled && (c.Google.CredentialsFile == "" || c.Google.BookingsSpreadsheetID == "") {
		return errors.New("google.credentials_file and google.bookings_spreadsheet_id are required when sheets sync is enabled")
	}
	return ValidateGroups(c.Groups)
}

func ValidateGroups(groups []models.ResourceGroup) error {
	names := make(map[string]bool)
	for _, g := range groups {
		if g.Name == "" {
			return errors.New("resource group with empty name")
		}
		if names[g.Name] {
			return fmt.Errorf("duplicate resource group: %s", g.Name)
		}
		if g.Quota < 0 {
			return fmt.Errorf("resource group %s has negative quota", g.Name)
		}
		names[g.Name] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Auth.HeaderAPIKey == "" {
		c.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.Auth.HeaderExtra == "" {
		c.Auth.HeaderExtra = "x-api-extra"
	}
	if c.Quotas.Default == 0 {
		c.Quotas.Default = models.DefaultQuota
	}
	if c.Booking.MaxAdvanceDays == 0 {
		c.Booking.MaxAdvanceDays = 365
	}
	if c.Booking.BlockedWindowDays == 0 {
		c.Booking.BlockedWindowDays = models.DefaultBlockedWindowDays
	}
	if c.Booking.SubmissionLimit == 0 {
		c.Booking.SubmissionLimit = models.RateLimitSubmissions
	}
	if c.Booking.SubmissionWindowSeconds == 0 {
		c.Booking.SubmissionWindowSeconds = models.RateLimitWindowSeconds
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
	if c.Backup.Enabled && c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "backups"
	}
}

// QuotaTable assembles the effective per-group quota table: the explicit
// quotas section wins, then per-group quota fields, then the default.
func (c *Config) QuotaTable() availability.QuotaTable {
	groups := make(map[string]int)
	for _, g := range c.Groups {
		if g.Quota > 0 {
			groups[g.Name] = g.Quota
		}
	}
	for name, quota := range c.Quotas.Groups {
		if quota > 0 {
			groups[name] = quota
		}
	}
	return availability.QuotaTable{Default: c.Quotas.Default, Groups: groups}
}
