// Package config loads the simulation parameters.
//
// Values are layered, lowest precedence first: built-in defaults, an
// optional YAML config file, DINING_* environment variables, then command
// line flags. Values are validated, never clamped.
package config

import (
	"fmt"
	"math"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roach88/dining/internal/engine"
)

// EnvPrefix is the prefix of environment variables, e.g. DINING_AGENTS.
const EnvPrefix = "DINING"

// Setting keys. Flags that configure a run use the same names.
const (
	KeyAgents   = "agents"
	KeyDuration = "duration"
	KeyThink    = "think"
	KeyEat      = "eat"
	KeySeed     = "seed"
	KeyGrace    = "grace"
)

var keys = []string{KeyAgents, KeyDuration, KeyThink, KeyEat, KeySeed, KeyGrace}

// Config holds the raw parameters in their user-facing units.
type Config struct {
	// Agents is the number of agents and utensils.
	Agents int `mapstructure:"agents" yaml:"agents"`
	// Duration is the run length in whole seconds.
	Duration int `mapstructure:"duration" yaml:"duration"`
	// Think is the maximum thinking time in milliseconds.
	Think int `mapstructure:"think" yaml:"think"`
	// Eat is the maximum eating time in milliseconds.
	Eat int `mapstructure:"eat" yaml:"eat"`
	// Seed seeds the agents' random sources; 0 derives one from the clock.
	Seed uint64 `mapstructure:"seed" yaml:"seed"`
	// Grace is the shutdown bound in seconds; 0 derives one from Eat.
	Grace int `mapstructure:"grace" yaml:"grace"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Agents:   5,
		Duration: 60,
		Think:    5000,
		Eat:      5000,
	}
}

// New returns a viper instance with defaults and environment lookup set up.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	return v
}

// SetDefaults registers Default() on v.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(KeyAgents, d.Agents)
	v.SetDefault(KeyDuration, d.Duration)
	v.SetDefault(KeyThink, d.Think)
	v.SetDefault(KeyEat, d.Eat)
	v.SetDefault(KeySeed, d.Seed)
	v.SetDefault(KeyGrace, d.Grace)
}

// BindFlags binds every flag in fs named after a setting key. Flags left
// at their default do not override lower layers.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, key := range keys {
		f := fs.Lookup(key)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %q: %w", key, err)
		}
	}
	return nil
}

// Load reads the configuration from v, and from the YAML file at path if
// path is not empty, and validates it. Keys in the file that are not
// settings are rejected.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.UnmarshalExact(&cfg); err != nil {
		return Config{}, &engine.ConfigError{Problems: []string{err.Error()}}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Largest whole numbers of seconds and milliseconds a time.Duration holds.
const (
	maxSeconds = math.MaxInt64 / int64(time.Second)
	maxMillis  = math.MaxInt64 / int64(time.Millisecond)
)

// Validate checks every field and reports all failures in one
// *engine.ConfigError.
func (c Config) Validate() error {
	var problems []string
	if c.Agents < 2 {
		problems = append(problems, fmt.Sprintf("agents must be at least 2, got %d", c.Agents))
	}
	if c.Duration <= 0 {
		problems = append(problems, fmt.Sprintf("duration must be a positive number of seconds, got %d", c.Duration))
	} else if int64(c.Duration) > maxSeconds {
		problems = append(problems, fmt.Sprintf("duration of %d seconds is too long", c.Duration))
	}
	if c.Think <= 0 {
		problems = append(problems, fmt.Sprintf("think must be a positive number of milliseconds, got %d", c.Think))
	} else if int64(c.Think) > maxMillis {
		problems = append(problems, fmt.Sprintf("think of %d milliseconds is too long", c.Think))
	}
	if c.Eat <= 0 {
		problems = append(problems, fmt.Sprintf("eat must be a positive number of milliseconds, got %d", c.Eat))
	} else if int64(c.Eat) > maxMillis {
		problems = append(problems, fmt.Sprintf("eat of %d milliseconds is too long", c.Eat))
	}
	if c.Grace < 0 {
		problems = append(problems, fmt.Sprintf("grace must not be negative, got %d", c.Grace))
	} else if int64(c.Grace) > maxSeconds {
		problems = append(problems, fmt.Sprintf("grace of %d seconds is too long", c.Grace))
	}
	if len(problems) > 0 {
		return &engine.ConfigError{Problems: problems}
	}
	return nil
}

// Engine converts c into the engine's configuration.
func (c Config) Engine() engine.Config {
	return engine.Config{
		Agents:      c.Agents,
		RunDuration: time.Duration(c.Duration) * time.Second,
		ThinkMax:    time.Duration(c.Think) * time.Millisecond,
		EatMax:      time.Duration(c.Eat) * time.Millisecond,
		Seed:        c.Seed,
		Grace:       time.Duration(c.Grace) * time.Second,
	}
}
