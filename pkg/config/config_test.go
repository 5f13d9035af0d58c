package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Port   int           `env:"TEST_CFG_PORT" envDefault:"8002"`
	Window time.Duration `env:"TEST_CFG_WINDOW" envDefault:"60s"`
	Hosts  []string      `env:"TEST_CFG_HOSTS" envDefault:"a,b" envSeparator:","`
}

type validatedConfig struct {
	Limit int `env:"TEST_CFG_LIMIT" envDefault:"10"`
}

func (c *validatedConfig) Validate() error {
	if c.Limit < 1 {
		return errors.New("limit must be positive")
	}
	return nil
}

func TestLoad_Defaults(t *testing.T) {
	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 8002, cfg.Port)
	assert.Equal(t, time.Minute, cfg.Window)
	assert.Equal(t, []string{"a", "b"}, cfg.Hosts)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "9090")
	t.Setenv("TEST_CFG_WINDOW", "2m")

	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 2*time.Minute, cfg.Window)
}

func TestLoad_ParseError(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "not-a-number")

	var cfg testConfig
	err := Load(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoad_RunsValidate(t *testing.T) {
	t.Setenv("TEST_CFG_LIMIT", "0")

	var cfg validatedConfig
	err := Load(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit must be positive")
}
