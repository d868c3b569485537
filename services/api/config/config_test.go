package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPortPrecedence(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("PORT", "")
	t.Setenv("API_PORT", "9000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.ListenAddr())
	assert.Equal(t, "csv", cfg.StoreDriver)

	t.Setenv("PORT", "8081")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, 8081, cfg.Port)
}

func TestLoadRequestTimeout(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("API_REQUEST_TIMEOUT", "3s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)

	t.Setenv("API_REQUEST_TIMEOUT", "never")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoadPostgresNeedsURL(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	assert.Error(t, err)
}
