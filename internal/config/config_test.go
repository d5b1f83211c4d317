package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "gmail.com", cfg.AllowedEmailDomain)
	assert.Equal(t, 0, cfg.TokenTTLMinutes)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Contains(t, cfg.Database.DSN, "@tcp(localhost:3306)/medichat")
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, 120*time.Second, cfg.LLM.Timeout)
	assert.False(t, cfg.Redis.Enabled())
}

func TestLoadConfig_Postgres(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USERNAME", "medi")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "host=db port=5432 user=medi password= dbname=medichat sslmode=disable", cfg.Database.DSN)
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Run("missing secret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")
		_, err := LoadConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "JWT_SECRET")
	})

	t.Run("bad driver", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("DB_DRIVER", "oracle")
		_, err := LoadConfig()
		require.Error(t, err)
	})

	t.Run("bad integer", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("TOKEN_TTL_MINUTES", "soon")
		_, err := LoadConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "TOKEN_TTL_MINUTES")
	})

	t.Run("gemini without key", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("LLM_PROVIDER", "gemini")
		t.Setenv("GEMINI_API_KEY", "")
		_, err := LoadConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "GEMINI_API_KEY")
	})
}

func TestLoadConfig_DomainPrefixStripped(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ALLOWED_EMAIL_DOMAIN", "@Clinic.Example")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "clinic.example", cfg.AllowedEmailDomain)
}
