package dichotomous

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config manages dichotomous engine configuration using Viper
type Config struct {
	v *viper.Viper
}

// NewConfig creates a new configuration with defaults
func NewConfig() *Config {
	v := viper.New()

	// Estimation parameters
	v.SetDefault("estimation.quadrature_points", 21)
	v.SetDefault("estimation.optimizer_max_iterations", 200)

	// Bootstrap standard errors
	v.SetDefault("bootstrap.enabled", true)
	v.SetDefault("bootstrap.iterations", 50)
	v.SetDefault("bootstrap.seed", int64(42))

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

func (c *Config) OptimizerMaxIterations() int {
	return c.v.GetInt("estimation.optimizer_max_iterations")
}

func (c *Config) BootstrapEnabled() bool { return c.v.GetBool("bootstrap.enabled") }

func (c *Config) BootstrapIterations() int { return c.v.GetInt("bootstrap.iterations") }

func (c *Config) BootstrapSeed() int64 { return c.v.GetInt64("bootstrap.seed") }

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
	}).Level(level).With().Timestamp().Str("service", "dichotomous").Logger()
}
