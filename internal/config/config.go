package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/shl-matching/internal/logging"
	"github.com/shl-matching/internal/match"
)

// EnvPrefix is prepended to every environment variable read by the matcher
const EnvPrefix = "MATCHER"

// Config keys
const (
	KeyPrimaryPath    = "primary_path"
	KeyCandidateDir   = "candidate_dir"
	KeyOutputDir      = "output_dir"
	KeyWorkers        = "workers"
	KeyRecordTimeout  = "record_timeout"
	KeyProgressEvery  = "progress_every"
	KeyDebug          = "debug"
	KeyMinEnrichScore = "min_enrich_score"
	KeyLogLevel       = "log.level"
	KeyLogFormat      = "log.format"
	KeyDBURL          = "db.url"
	KeyDBMaxConns     = "db.max_connections"
	KeyWebHost        = "web.host"
	KeyWebPort        = "web.port"
	KeyWebAPIKey      = "web.api_key"
	KeyReportFormat   = "report.format"
)

// Config holds the matcher configuration
type Config struct {
	PrimaryPath   string `validate:"required"`
	CandidateDir  string `validate:"required"`
	OutputDir     string `validate:"required"`
	Workers       int    `validate:"min=1"`
	ProgressEvery int    `validate:"min=0"`
	ReportFormat  string `validate:"oneof=csv yaml"`

	RecordTimeout  time.Duration
	MinEnrichScore float64
	Debug          bool

	Log logging.Config
	DB  DBConfig
	Web WebConfig
}

// DBConfig configures the optional run history database
type DBConfig struct {
	URL            string
	MaxConnections int `validate:"min=1"`
}

// WebConfig configures the HTTP API
type WebConfig struct {
	Host   string
	Port   int `validate:"min=1,max=65535"`
	APIKey string
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// SetDefaults registers the default value of every key
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyPrimaryPath, "data/in/primary.json")
	v.SetDefault(KeyCandidateDir, "data/scraped")
	v.SetDefault(KeyOutputDir, "data/out")
	v.SetDefault(KeyWorkers, 1)
	v.SetDefault(KeyRecordTimeout, time.Duration(0))
	v.SetDefault(KeyProgressEvery, 10)
	v.SetDefault(KeyDebug, false)
	v.SetDefault(KeyMinEnrichScore, match.NoMatchScore)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeyDBURL, "")
	v.SetDefault(KeyDBMaxConns, 20)
	v.SetDefault(KeyWebHost, "localhost")
	v.SetDefault(KeyWebPort, 8080)
	v.SetDefault(KeyWebAPIKey, "")
	v.SetDefault(KeyReportFormat, "csv")
}

// LoadEnv loads environment variables from the first .env file found in the
// current directory or its parents. Variables already set are not overridden.
func LoadEnv() error {
	envPaths := []string{".env", "../.env", "../../.env"}

	for _, envPath := range envPaths {
		if _, err := os.Stat(envPath); err != nil {
			continue
		}
		if err := godotenv.Load(envPath); err != nil {
			return fmt.Errorf("failed to load %s: %w", envPath, err)
		}
		break
	}
	return nil
}

// New creates a viper instance with defaults, MATCHER_ environment binding and
// the optional config file applied
func New(configFile string) (*viper.Viper, error) {
	v := viper.New()
	if err := Configure(v, configFile); err != nil {
		return nil, err
	}
	return v, nil
}

// Configure applies defaults, MATCHER_ environment binding and the optional
// config file to an existing viper instance
func Configure(v *viper.Viper, configFile string) error {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile == "" {
		return nil
	}

	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}
	return nil
}

// Load builds and validates the configuration from a viper instance
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		PrimaryPath:    v.GetString(KeyPrimaryPath),
		CandidateDir:   v.GetString(KeyCandidateDir),
		OutputDir:      v.GetString(KeyOutputDir),
		Workers:        v.GetInt(KeyWorkers),
		RecordTimeout:  v.GetDuration(KeyRecordTimeout),
		ProgressEvery:  v.GetInt(KeyProgressEvery),
		Debug:          v.GetBool(KeyDebug),
		MinEnrichScore: v.GetFloat64(KeyMinEnrichScore),
		ReportFormat:   strings.ToLower(v.GetString(KeyReportFormat)),
		Log: logging.Config{
			Level:  v.GetString(KeyLogLevel),
			Format: v.GetString(KeyLogFormat),
		},
		DB: DBConfig{
			URL:            v.GetString(KeyDBURL),
			MaxConnections: v.GetInt(KeyDBMaxConns),
		},
		Web: WebConfig{
			Host:   v.GetString(KeyWebHost),
			Port:   v.GetInt(KeyWebPort),
			APIKey: v.GetString(KeyWebAPIKey),
		},
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MatchOptions returns the matching options of the configuration
func (c *Config) MatchOptions() match.Options {
	return match.Options{
		Workers:       c.Workers,
		RecordTimeout: c.RecordTimeout,
		ProgressEvery: c.ProgressEvery,
		Debug:         c.Debug,
	}
}

// Addr returns the listen address of the HTTP API
func (w WebConfig) Addr() string {
	return fmt.Sprintf("%s:%d", w.Host, w.Port)
}

// GetEnv gets environment variable with default
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
