package config

import (
	"os"
	"path/filepath"
	"testing"

	"riad/internal/models"
)

func TestLoadConfig(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("RIAD_TEST_DB", filepath.Join(tmpDir, "riad.db"))

	yamlContent := `
app:
  name: riad
database:
  path: "${RIAD_TEST_DB}"
booking:
  deposit_percent: 20
  penalty_basis: total
api:
  enabled: true
  auth:
    enabled: true
    api_keys:
      - key: "front-desk-key"
        name: "front desk"
        staff_id: 7
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Database.Path != filepath.Join(tmpDir, "riad.db") {
		t.Errorf("expected expanded database path, got %s", cfg.Database.Path)
	}
	if cfg.Booking.DepositPercent != 20 {
		t.Errorf("expected deposit_percent 20, got %d", cfg.Booking.DepositPercent)
	}
	if cfg.Booking.PenaltyBasis != models.PenaltyBasisTotal {
		t.Errorf("expected penalty_basis total, got %s", cfg.Booking.PenaltyBasis)
	}
	if !cfg.API.HTTP.Enabled {
		t.Errorf("expected http to be enabled with api")
	}
	if len(cfg.API.Auth.APIKeys) != 1 || cfg.API.Auth.APIKeys[0].StaffID != 7 {
		t.Errorf("expected 1 api key for staff 7")
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidateConfig(t *testing.T) {
	valid := func() Config {
		cfg := Config{Database: DatabaseConfig{Path: "path"}}
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "penalty above 100", mutate: func(c *Config) { c.Booking.PenaltyPercent = 120 }, wantErr: true},
		{name: "negative deposit", mutate: func(c *Config) { c.Booking.DepositPercent = -1 }, wantErr: true},
		{name: "unknown basis", mutate: func(c *Config) { c.Booking.PenaltyBasis = "nightly" }, wantErr: true},
		{name: "negative grace", mutate: func(c *Config) { c.Booking.GracePeriodDays = -2 }, wantErr: true},
		{
			name: "auth with bad key",
			mutate: func(c *Config) {
				c.API.Auth.Enabled = true
				c.API.Auth.APIKeys = []APIClientKey{{Key: "k", Name: "desk"}}
			},
			wantErr: true,
		},
		{
			name: "bad key ignored when auth disabled",
			mutate: func(c *Config) {
				c.API.Auth.APIKeys = []APIClientKey{{Key: "", Name: "desk"}}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if cfg.API.HTTP.Port != 8080 {
		t.Errorf("expected default HTTP port 8080, got %d", cfg.API.HTTP.Port)
	}
	if cfg.API.Auth.HeaderAPIKey != "x-api-key" {
		t.Errorf("expected default api key header, got %s", cfg.API.Auth.HeaderAPIKey)
	}
	if cfg.Booking.DepositPercent != models.DefaultDepositPercent {
		t.Errorf("expected default deposit percent %d, got %d", models.DefaultDepositPercent, cfg.Booking.DepositPercent)
	}
	if cfg.Booking.GracePeriodDays != models.DefaultGracePeriodDays {
		t.Errorf("expected default grace period %d, got %d", models.DefaultGracePeriodDays, cfg.Booking.GracePeriodDays)
	}
	if cfg.Booking.WizardTTLMinutes != 30 {
		t.Errorf("expected default wizard ttl 30, got %d", cfg.Booking.WizardTTLMinutes)
	}
	if cfg.Notifications.QueueSize != models.NotificationQueueSize {
		t.Errorf("expected default queue size %d, got %d", models.NotificationQueueSize, cfg.Notifications.QueueSize)
	}
}

func TestValidateAPIKeys(t *testing.T) {
	tests := []struct {
		name    string
		keys    []APIClientKey
		wantErr bool
	}{
		{
			name: "Valid keys",
			keys: []APIClientKey{
				{Key: "a", Name: "desk", StaffID: 1},
				{Key: "b", Name: "night", StaffID: 2},
			},
		},
		{
			name: "Duplicate key",
			keys: []APIClientKey{
				{Key: "a", Name: "desk", StaffID: 1},
				{Key: "a", Name: "night", StaffID: 2},
			},
			wantErr: true,
		},
		{
			name:    "Empty key",
			keys:    []APIClientKey{{Name: "desk", StaffID: 1}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAPIKeys(tt.keys)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAPIKeys() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCatalog(t *testing.T) {
	types := []*models.RoomType{{Name: "Patio Double"}, {Name: "Atlas Suite"}}
	room := func(number, typ string, capacity int, price int64, status string) *models.Room {
		return &models.Room{Number: number, TypeName: typ, Capacity: capacity, Price: price, StatusCode: status}
	}

	tests := []struct {
		name    string
		types   []*models.RoomType
		rooms   []*models.Room
		wantErr bool
	}{
		{
			name:  "Valid catalog",
			types: types,
			rooms: []*models.Room{
				room("101", "Patio Double", 2, 950000, ""),
				room("201", "Atlas Suite", 3, 1650000, models.RoomStatusOutOfService),
			},
		},
		{
			name:    "Duplicate type",
			types:   []*models.RoomType{{Name: "Patio Double"}, {Name: "Patio Double"}},
			wantErr: true,
		},
		{
			name:    "Duplicate room number",
			types:   types,
			rooms:   []*models.Room{room("101", "Patio Double", 2, 1, ""), room("101", "Atlas Suite", 3, 1, "")},
			wantErr: true,
		},
		{
			name:    "Unknown type",
			types:   types,
			rooms:   []*models.Room{room("301", "Family Duplex", 4, 1, "")},
			wantErr: true,
		},
		{
			name:    "Zero capacity",
			types:   types,
			rooms:   []*models.Room{room("101", "Patio Double", 0, 1, "")},
			wantErr: true,
		},
		{
			name:    "Unknown status",
			types:   types,
			rooms:   []*models.Room{room("101", "Patio Double", 2, 1, "DIRTY")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCatalog(tt.types, tt.rooms)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCatalog() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
