package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.False(t, cfg.Debug)
}

func TestParse_CustomPort(t *testing.T) {
	cfg, err := Parse([]string{"--port", "9001"})
	require.NoError(t, err)
	assert.Equal(t, 9001, cfg.Port)
}

func TestParse_Debug(t *testing.T) {
	cfg, err := Parse([]string{"--debug"})
	require.NoError(t, err)
	assert.True(t, cfg.Debug)
}

func TestParse_UnknownFlag(t *testing.T) {
	_, err := Parse([]string{"--bogus"})
	require.Error(t, err)
}
