package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"riad/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App           AppConfig          `yaml:"app"`
	Database      DatabaseConfig     `yaml:"database"`
	Redis         RedisConfig        `yaml:"redis"`
	Backup        BackupConfig       `yaml:"backup"`
	Monitoring    MonitoringConfig   `yaml:"monitoring"`
	Logging       LoggingConfig      `yaml:"logging"`
	API           APIConfig          `yaml:"api"`
	Booking       BookingConfig      `yaml:"booking"`
	Notifications NotificationConfig `yaml:"notifications"`
	Exports       ExportConfig       `yaml:"exports"`
	CatalogPath   string             `yaml:"catalog_path"`
}

// BookingConfig задает ценовую политику и политику отмены
type BookingConfig struct {
	DepositPercent   int    `yaml:"deposit_percent"`
	DepositMinimum   int64  `yaml:"deposit_minimum"`
	GracePeriodDays  int    `yaml:"grace_period_days"`
	PenaltyPercent   int    `yaml:"penalty_percent"`
	PenaltyBasis     string `yaml:"penalty_basis"`
	WizardTTLMinutes int    `yaml:"wizard_ttl_minutes"`
	LockRetries      int    `yaml:"lock_retries"`
}

type NotificationConfig struct {
	TelegramToken string `yaml:"telegram_token"`
	ChatID        int64  `yaml:"chat_id"`
	Debug         bool   `yaml:"debug"`
	QueueSize     int    `yaml:"queue_size"`
	MaxRetries    int    `yaml:"max_retries"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

// APIClientKey связывает ключ API с сотрудником, от имени которого идут запросы
type APIClientKey struct {
	Key     string `yaml:"key"`
	Name    string `yaml:"name"`
	StaffID int64  `yaml:"staff_id"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
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

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

func Load(configPath string) (*Config, error) {
	// Загружаем .env файл если существует
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
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

	if err := c.Booking.Validate(); err != nil {
		return err
	}

	if c.API.Auth.Enabled {
		return ValidateAPIKeys(c.API.Auth.APIKeys)
	}
	return nil
}

func (b BookingConfig) Validate() error {
	if b.DepositPercent < 0 || b.DepositPercent > 100 {
		return fmt.Errorf("booking.deposit_percent must be within 0..100, got %d", b.DepositPercent)
	}
	if b.DepositMinimum < 0 {
		return fmt.Errorf("booking.deposit_minimum must not be negative, got %d", b.DepositMinimum)
	}
	if b.PenaltyPercent < 0 || b.PenaltyPercent > 100 {
		return fmt.Errorf("booking.penalty_percent must be within 0..100, got %d", b.PenaltyPercent)
	}
	if b.GracePeriodDays < 0 {
		return fmt.Errorf("booking.grace_period_days must not be negative, got %d", b.GracePeriodDays)
	}
	switch b.PenaltyBasis {
	case models.PenaltyBasisPaid, models.PenaltyBasisTotal:
	default:
		return fmt.Errorf("booking.penalty_basis must be %q or %q, got %q", models.PenaltyBasisPaid, models.PenaltyBasisTotal, b.PenaltyBasis)
	}
	return nil
}

func ValidateAPIKeys(keys []APIClientKey) error {
	seen := make(map[string]bool)
	for _, k := range keys {
		if k.Key == "" {
			return fmt.Errorf("api key for '%s' is empty", k.Name)
		}
		if k.StaffID <= 0 {
			return fmt.Errorf("api key '%s' has invalid staff_id %d", k.Name, k.StaffID)
		}
		if seen[k.Key] {
			return fmt.Errorf("duplicate api key for '%s'", k.Name)
		}
		seen[k.Key] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = 10
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 20
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}

	// Booking defaults
	if c.Booking.DepositPercent == 0 {
		c.Booking.DepositPercent = models.DefaultDepositPercent
	}
	if c.Booking.GracePeriodDays == 0 {
		c.Booking.GracePeriodDays = models.DefaultGracePeriodDays
	}
	if c.Booking.PenaltyPercent == 0 {
		c.Booking.PenaltyPercent = models.DefaultPenaltyPercent
	}
	if c.Booking.PenaltyBasis == "" {
		c.Booking.PenaltyBasis = models.PenaltyBasisPaid
	}
	if c.Booking.WizardTTLMinutes == 0 {
		c.Booking.WizardTTLMinutes = models.DefaultWizardTTL / 60
	}
	if c.Booking.LockRetries == 0 {
		c.Booking.LockRetries = models.DefaultLockRetries
	}

	if c.Notifications.QueueSize == 0 {
		c.Notifications.QueueSize = models.NotificationQueueSize
	}
	if c.Notifications.MaxRetries == 0 {
		c.Notifications.MaxRetries = 5
	}
}

// ValidateCatalog checks the room catalog before it is synced into the store.
func ValidateCatalog(types []*models.RoomType, rooms []*models.Room) error {
	typeNames := make(map[string]bool, len(types))
	for _, t := range types {
		if t.Name == "" {
			return errors.New("room type with empty name")
		}
		if typeNames[t.Name] {
			return fmt.Errorf("duplicate room type: %s", t.Name)
		}
		typeNames[t.Name] = true
	}

	numbers := make(map[string]bool, len(rooms))
	for _, r := range rooms {
		if r.Number == "" {
			return errors.New("room with empty number")
		}
		if numbers[r.Number] {
			return fmt.Errorf("duplicate room number: %s", r.Number)
		}
		numbers[r.Number] = true

		if !typeNames[r.TypeName] {
			return fmt.Errorf("room %s has unknown type '%s'", r.Number, r.TypeName)
		}
		if r.Capacity <= 0 {
			return fmt.Errorf("room %s has invalid capacity %d", r.Number, r.Capacity)
		}
		if r.Price <= 0 {
			return fmt.Errorf("room %s has invalid price %d", r.Number, r.Price)
		}
		if r.StatusCode != "" && !models.ValidRoomStatus(r.StatusCode) {
			return fmt.Errorf("room %s has unknown status '%s'", r.Number, r.StatusCode)
		}
	}
	return nil
}
