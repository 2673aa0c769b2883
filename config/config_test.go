package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "PAYMENT_PROVIDER_TIMEOUT", "PAYMENT_EXPIRE_MINUTES", "CRON_ENABLED", "FRONTEND_URL"} {
		t.Setenv(k, "")
	}

	env, err := Get()
	require.NoError(t, err)
	assert.Equal(t, 8080, env.PORT)
	assert.Equal(t, 30*time.Second, env.PAYMENT_PROVIDER_TIMEOUT)
	assert.Equal(t, 15, env.PAYMENT_EXPIRE_MINUTES)
	assert.True(t, env.CRON_ENABLED)
	assert.Equal(t, "http://localhost:3000", env.FRONTEND_URL)
}

func TestGetOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("PAYMENT_PROVIDER_TIMEOUT", "5s")
	t.Setenv("CRON_ENABLED", "false")
	t.Setenv("FRONTEND_URL", "https://shop.example.test/")
	t.Setenv("GO_ENV", "production")

	env, err := Get()
	require.NoError(t, err)
	assert.Equal(t, 9000, env.PORT)
	assert.Equal(t, 5*time.Second, env.PAYMENT_PROVIDER_TIMEOUT)
	assert.False(t, env.CRON_ENABLED)
	assert.Equal(t, "https://shop.example.test", env.FRONTEND_URL)
	assert.True(t, env.IsProduction())
}

func TestPostgresDSN(t *testing.T) {
	env := &EnvironmentVariable{
		DB_HOST: "db", DB_USER_NAME: "app", DB_PASSWORD: "secret", DB_NAME: "shop", DB_PORT: "5432", DB_SSL_MODE: "disable",
	}
	assert.Equal(t, "host=db user=app password=secret dbname=shop port=5432 sslmode=disable TimeZone=UTC", env.PostgresDSN())
}
