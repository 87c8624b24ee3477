package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithPath_Defaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("APP_NAME=concert-test\nSTORE_DRIVER=memory\n"), 0o600))

	cfg, err := LoadWithPath(path)
	require.NoError(t, err)

	assert.Equal(t, "concert-test", cfg.App.Name)
	assert.True(t, cfg.UsesMemoryStore())
	assert.Equal(t, 100, cfg.Queue.MaxActive)
	assert.Equal(t, 10*time.Minute, cfg.Queue.ActiveLease)
	assert.Equal(t, 30*time.Second, cfg.Queue.SweepInterval)
	assert.Equal(t, 6*time.Second, cfg.Queue.WaitPerSlot)
	assert.Equal(t, 5*time.Minute, cfg.Booking.HoldDuration)
	assert.Equal(t, 2*time.Hour, cfg.Cache.LayoutTTL)
	assert.Equal(t, 15*time.Minute, cfg.Cache.ScheduleTTL)
	assert.Equal(t, "mock", cfg.Payment.Gateway)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
}

func TestLoadWithPath_MissingFile(t *testing.T) {
	_, err := LoadWithPath(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, splitList(" a:9092, ,b:9092 "))
	assert.Empty(t, splitList(""))
}

func validConfig() *Config {
	return &Config{
		App:     AppConfig{Name: "concert-booking", Environment: "development"},
		Server:  ServerConfig{Port: 8080},
		Store:   StoreConfig{Driver: "memory"},
		JWT:     JWTConfig{Secret: "secret"},
		Queue:   QueueConfig{MaxActive: 100, ActiveLease: 10 * time.Minute},
		Booking: BookingConfig{HoldDuration: 5 * time.Minute},
		Payment: PaymentConfig{Gateway: "mock"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, true},
		{"empty secret", func(c *Config) { c.JWT.Secret = "" }, true},
		{"default secret in production", func(c *Config) {
			c.App.Environment = "production"
			c.JWT.Secret = "your-secret-key-change-in-production"
		}, true},
		{"unknown store driver", func(c *Config) { c.Store.Driver = "mongo" }, true},
		{"zero capacity", func(c *Config) { c.Queue.MaxActive = 0 }, true},
		{"zero hold", func(c *Config) { c.Booking.HoldDuration = 0 }, true},
		{"stripe without key", func(c *Config) { c.Payment.Gateway = "stripe" }, true},
		{"stripe with key", func(c *Config) {
			c.Payment.Gateway = "stripe"
			c.Payment.StripeSecretKey = "sk_test_123"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", d.DSN())
}
