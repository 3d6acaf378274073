package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var managedEnv = []string{
	"BIZOPS_APP_NAME",
	"BIZOPS_APP_ENV",
	"BIZOPS_APP_PORT",
	"BIZOPS_DATABASE_HOST",
	"BIZOPS_DATABASE_PORT",
	"BIZOPS_DATABASE_PASSWORD",
	"BIZOPS_DATABASE_SSLMODE",
	"BIZOPS_DATABASE_MAX_OPEN_CONNS",
	"BIZOPS_DATABASE_MAX_IDLE_CONNS",
	"BIZOPS_JWT_SECRET",
	"BIZOPS_DEVICE_ACTIVITY_WINDOW",
	"BIZOPS_DEVICE_COOKIE_NAME",
	"BIZOPS_DEVICE_COOKIE_SECURE",
	"BIZOPS_OPERATOR_CACHE_ENABLED",
	"BIZOPS_OPERATOR_CACHE_TTL",
	"BIZOPS_TELEMETRY_SAMPLING_RATIO",
}

// clearEnv blanks every managed variable; viper ignores empty values.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range managedEnv {
		t.Setenv(k, "")
	}
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "bizops-backend", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "bizops", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)
		assert.Equal(t, 30*24*time.Hour, cfg.Device.ActivityWindow)
		assert.Equal(t, "bizops_device_id", cfg.Device.CookieName)
		assert.True(t, cfg.Operator.CacheEnabled)
		assert.Equal(t, 5*time.Minute, cfg.Operator.CacheTTL)
		assert.Equal(t, "bizops-backend", cfg.Telemetry.ServiceName)
	})

	t.Run("loads values from environment variables with BIZOPS prefix", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("BIZOPS_APP_NAME", "test-app")
		t.Setenv("BIZOPS_APP_PORT", "9000")
		t.Setenv("BIZOPS_DATABASE_HOST", "testdb.local")
		t.Setenv("BIZOPS_DATABASE_PORT", "5433")
		t.Setenv("BIZOPS_DEVICE_ACTIVITY_WINDOW", "168h")
		t.Setenv("BIZOPS_DEVICE_COOKIE_NAME", "did")
		t.Setenv("BIZOPS_OPERATOR_CACHE_ENABLED", "false")
		t.Setenv("BIZOPS_OPERATOR_CACHE_TTL", "30s")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, 7*24*time.Hour, cfg.Device.ActivityWindow)
		assert.Equal(t, "did", cfg.Device.CookieName)
		assert.False(t, cfg.Operator.CacheEnabled)
		assert.Equal(t, 30*time.Second, cfg.Operator.CacheTTL)
		assert.Equal(t, "test-app", cfg.Telemetry.ServiceName)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("BIZOPS_DATABASE_MAX_OPEN_CONNS", "10")
		t.Setenv("BIZOPS_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("rejects negative activity window", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("BIZOPS_DEVICE_ACTIVITY_WINDOW", "-1h")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "device.activity_window")
	})

	t.Run("rejects sampling ratio above one", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("BIZOPS_TELEMETRY_SAMPLING_RATIO", "1.5")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sampling_ratio")
	})
}

func TestValidate_Production(t *testing.T) {
	base := func() *Config {
		cfg := &Config{App: AppConfig{Env: "production"}}
		applyDefaults(cfg)
		cfg.JWT.Secret = "0123456789abcdef0123456789abcdef"
		cfg.Database.Password = "secret"
		cfg.Database.SSLMode = "require"
		cfg.Device.CookieSecure = true
		return cfg
	}

	t.Run("accepts hardened config", func(t *testing.T) {
		assert.NoError(t, base().validate())
	})

	t.Run("requires jwt secret", func(t *testing.T) {
		cfg := base()
		cfg.JWT.Secret = ""
		assert.ErrorContains(t, cfg.validate(), "jwt.secret")
	})

	t.Run("requires secure device cookie", func(t *testing.T) {
		cfg := base()
		cfg.Device.CookieSecure = false
		assert.ErrorContains(t, cfg.validate(), "device.cookie_secure")
	})

	t.Run("rejects wildcard origin", func(t *testing.T) {
		cfg := base()
		cfg.HTTP.CORSAllowOrigins = []string{"*"}
		assert.ErrorContains(t, cfg.validate(), "cors_allow_origins")
	})

	t.Run("rejects sslmode disable", func(t *testing.T) {
		cfg := base()
		cfg.Database.SSLMode = "disable"
		assert.ErrorContains(t, cfg.validate(), "sslmode")
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db",
		Port:     5432,
		User:     "app",
		Password: "p@ss word",
		DBName:   "bizops",
		SSLMode:  "disable",
	}
	assert.Equal(t, "postgres://app:p%40ss%20word@db:5432/bizops?sslmode=disable", cfg.DSN())
}

func TestRedisConfig_Addr(t *testing.T) {
	assert.Equal(t, "cache:6380", RedisConfig{Host: "cache", Port: 6380}.Addr())
}
