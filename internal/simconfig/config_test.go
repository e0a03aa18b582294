package simconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, 4194304*time.Nanosecond, c.DMAPacing().ElementPeriod())
}

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yml")

	c, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, Default(), c)

	_, err = Load(path, true)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dmasim.yml")
	yml := `
mode: alternating
buffer:
  length: 256
  generator: clamped
  palindrome: true
sinks: [0, 1, 2, 3]
log:
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	t.Setenv("DMASIM_PACING__DIV", "4")
	t.Setenv("DMASIM_LOG__LEVEL", "debug")

	c, err := Load(path, true)
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, ModeAlternating, c.Mode)
	assert.Equal(t, GenClamped, c.Buffer.Generator)
	assert.True(t, c.Buffer.Palindrome)
	assert.Equal(t, []int{0, 1, 2, 3}, c.Sinks)
	assert.Equal(t, float64(4), c.Pacing.Div)
	assert.Equal(t, uint32(125000000), c.Pacing.SourceHz, "defaults survive a partial file")
	assert.Equal(t, uint32(4<<8), c.DMAPacing().DivQ8)

	l, err := c.Logger()
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, l.Formatter)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"mode", func(c *Config) { c.Mode = "burst" }},
		{"generator", func(c *Config) { c.Buffer.Generator = "sine" }},
		{"length", func(c *Config) { c.Buffer.Length = 100 }},
		{"divider", func(c *Config) { c.Pacing.Div = 0.5 }},
		{"period", func(c *Config) { c.Pacing.PeriodTicks = 0 }},
		{"block count", func(c *Config) { c.Mode = ModeStepped; c.BlockCount = 0 }},
		{"no sinks", func(c *Config) { c.Sinks = nil }},
		{"slice", func(c *Config) { c.Sinks = []int{8} }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.modify(&c)
			assert.ErrorIs(t, c.Validate(), ErrInvalid)
		})
	}
}

func TestBitRunIgnoresLength(t *testing.T) {
	c := Default()
	c.Mode = ModeStepped
	c.Buffer.Generator = GenBitRun
	c.Buffer.Length = 3
	assert.NoError(t, c.Validate())
}
