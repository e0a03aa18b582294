// Package simconfig holds the configuration of the dmasim command: defaults,
// an optional YAML file and DMASIM_ environment overrides, merged with koanf.
package simconfig

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/sirupsen/logrus"
	dma "github.com/tinygo-org/rp2dma/rp2-dma"
)

// EnvPrefix marks environment variables that override the file. A double
// underscore separates nesting levels: DMASIM_BUFFER__LENGTH sets buffer.length.
const EnvPrefix = "DMASIM_"

// Pipeline shapes.
const (
	ModeReplay      = "replay"
	ModeStepped     = "stepped"
	ModeAlternating = "alternating"
)

// Buffer generators.
const (
	GenQuadratic = "quadratic"
	GenClamped   = "clamped"
	GenBitRun    = "bitrun"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("simconfig: invalid configuration")

// Config is what dmasim simulates.
type Config struct {
	Mode   string `koanf:"mode" yaml:"mode"`
	Buffer Buffer `koanf:"buffer" yaml:"buffer"`
	Pacing Pacing `koanf:"pacing" yaml:"pacing"`
	// BlockCount is how many times a stepped pipeline repeats each element.
	BlockCount uint32 `koanf:"block_count" yaml:"block_count"`
	// Sinks are the PWM slices visited by an alternating pipeline, or the
	// first entry for the other modes.
	Sinks []int `koanf:"sinks" yaml:"sinks"`
	Log   Log   `koanf:"log" yaml:"log"`
}

// Buffer selects the waveform.
type Buffer struct {
	Length     int    `koanf:"length" yaml:"length"`
	Generator  string `koanf:"generator" yaml:"generator"`
	MaxLevel   uint32 `koanf:"max_level" yaml:"max_level"`
	Palindrome bool   `koanf:"palindrome" yaml:"palindrome"`
}

// Pacing is the trigger cadence of the simulated sink.
type Pacing struct {
	SourceHz    uint32  `koanf:"source_hz" yaml:"source_hz"`
	Div         float64 `koanf:"div" yaml:"div"`
	PeriodTicks uint32  `koanf:"period_ticks" yaml:"period_ticks"`
}

// Log configures the logger.
type Log struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
}

// Default returns the configuration of the fade firmware: 256 quadratic steps
// on PWM slice 0 at 125MHz / 8 with the counter wrapping every 65536 counts.
func Default() Config {
	return Config{
		Mode: ModeReplay,
		Buffer: Buffer{
			Length:    256,
			Generator: GenQuadratic,
			MaxLevel:  math.MaxUint16,
		},
		Pacing: Pacing{
			SourceHz:    125000000,
			Div:         8,
			PeriodTicks: 65536,
		},
		BlockCount: 10000,
		Sinks:      []int{0},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load merges the defaults, the YAML file at path if path is not empty, and
// the environment. A missing file is an error only if required is set.
func Load(path string, required bool) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("loading defaults: %w", err)
	}
	if path != "" {
		_, err := os.Stat(path)
		switch {
		case err == nil:
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return Config{}, fmt.Errorf("loading %s: %w", path, err)
			}
		case required || !errors.Is(err, os.ErrNotExist):
			return Config{}, fmt.Errorf("loading %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("loading environment: %w", err)
	}
	var c Config
	if err := k.Unmarshal("", &c); err != nil {
		return Config{}, fmt.Errorf("decoding configuration: %w", err)
	}
	return c, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Validate checks c for values the simulator cannot run.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeReplay, ModeStepped, ModeAlternating:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalid, c.Mode)
	}
	switch c.Buffer.Generator {
	case GenQuadratic, GenClamped:
		n := c.Buffer.Length
		if c.Buffer.Palindrome {
			n *= 2
		}
		if n <= 0 || n&(n-1) != 0 {
			return fmt.Errorf("%w: buffer length %d is not a power of two", ErrInvalid, n)
		}
	case GenBitRun:
	default:
		return fmt.Errorf("%w: unknown generator %q", ErrInvalid, c.Buffer.Generator)
	}
	if err := c.DMAPacing().Validate(); err != nil {
		return fmt.Errorf("%w: pacing: %v", ErrInvalid, err)
	}
	if c.Mode == ModeStepped && c.BlockCount == 0 {
		return fmt.Errorf("%w: stepped mode needs a block_count", ErrInvalid)
	}
	if len(c.Sinks) == 0 {
		return fmt.Errorf("%w: no sinks", ErrInvalid)
	}
	for _, s := range c.Sinks {
		if s < 0 || s > 7 {
			return fmt.Errorf("%w: PWM slice %d", ErrInvalid, s)
		}
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalid, c.Log.Format)
	}
	return nil
}

// DMAPacing converts the pacing section to the cadence model.
func (c Config) DMAPacing() dma.Pacing {
	return dma.Pacing{
		SourceHz:    c.Pacing.SourceHz,
		DivQ8:       uint32(math.Round(c.Pacing.Div * 256)),
		PeriodTicks: c.Pacing.PeriodTicks,
	}
}

// Logger returns a logger configured by the log section.
func (c Config) Logger() (*logrus.Logger, error) {
	l := logrus.New()
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	l.SetLevel(level)
	if c.Log.Format == "json" {
		l.Formatter = &logrus.JSONFormatter{}
	} else {
		l.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	}
	return l, nil
}
