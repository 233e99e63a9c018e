package polytomous

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config manages polytomous engine configuration using Viper
type Config struct {
	v *viper.Viper
}

// NewConfig creates a new configuration with defaults.
//
// The JMLE damping and ceiling/floor constants are empirically tuned
// calibration parameters, not theoretically derived values; re-tune them
// against reference software before trusting them on a new population.
func NewConfig() *Config {
	v := viper.New()

	// Estimation parameters
	v.SetDefault("estimation.quadrature_points", 21)

	// JMLE iteration parameters
	v.SetDefault("jmle.max_iterations", 50)
	v.SetDefault("jmle.tolerance", 0.005)
	v.SetDefault("jmle.step_size", 0.2)
	v.SetDefault("jmle.max_step", 0.3)
	v.SetDefault("jmle.ability_step_factor", 0.5)
	v.SetDefault("jmle.ability_max_step", 0.2)
	v.SetDefault("jmle.ceiling_threshold", 0.65)
	v.SetDefault("jmle.floor_threshold", 0.35)

	// MML optimizer parameters
	v.SetDefault("mml.timeout_seconds", 60)
	v.SetDefault("mml.max_iterations", 500)

	// Logging parameters
	v.SetDefault("logging.level", "info")

	return &Config{v: v}
}

// LoadFromFile loads configuration from file
func (c *Config) LoadFromFile(path string) error {
	c.v.SetConfigFile(path)
	return c.v.ReadInConfig()
}

func (c *Config) QuadraturePoints() int { return c.v.GetInt("estimation.quadrature_points") }

func (c *Config) JMLEMaxIterations() int { return c.v.GetInt("jmle.max_iterations") }

func (c *Config) JMLETolerance() float64 { return c.v.GetFloat64("jmle.tolerance") }

func (c *Config) JMLEStepSize() float64 { return c.v.GetFloat64("jmle.step_size") }

func (c *Config) JMLEMaxStep() float64 { return c.v.GetFloat64("jmle.max_step") }

func (c *Config) JMLEAbilityStepFactor() float64 { return c.v.GetFloat64("jmle.ability_step_factor") }

func (c *Config) JMLEAbilityMaxStep() float64 { return c.v.GetFloat64("jmle.ability_max_step") }

func (c *Config) JMLECeilingThreshold() float64 { return c.v.GetFloat64("jmle.ceiling_threshold") }

func (c *Config) JMLEFloorThreshold() float64 { return c.v.GetFloat64("jmle.floor_threshold") }

func (c *Config) MMLTimeout() time.Duration {
	return time.Duration(c.v.GetInt("mml.timeout_seconds")) * time.Second
}

func (c *Config) MMLTimeoutSeconds() int { return c.v.GetInt("mml.timeout_seconds") }

func (c *Config) MMLMaxIterations() int { return c.v.GetInt("mml.max_iterations") }

func (c *Config) LogLevel() string { return c.v.GetString("logging.level") }

// Set allows dynamic configuration changes
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// CreateLogger creates a zerolog logger based on config
func (c *Config) CreateLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "15:04:05",
	}).Level(level).With().Timestamp().Str("service", "polytomous").Logger()
}
