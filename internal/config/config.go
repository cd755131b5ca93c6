// Package config loads application configuration from, in order of
// precedence: command-line flags, RECALLFORGE_ environment variables, and an
// optional YAML file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/recallforge/recallforge/internal/fsrs"
)

// Config is the full application configuration.
type Config struct {
	HTTP      HTTPConfig      `koanf:"http"`
	DB        DBConfig        `koanf:"db"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Import    ImportConfig    `koanf:"import"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr        string   `koanf:"addr" validate:"required"`
	CORSOrigins []string `koanf:"cors_origins"`
}

// DBConfig configures the sqlite database.
type DBConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// SchedulerConfig tunes the spaced-repetition scheduler.
type SchedulerConfig struct {
	DesiredRetention float64         `koanf:"desired_retention" validate:"gt=0,lt=1"`
	MaximumInterval  int             `koanf:"maximum_interval" validate:"min=1"`
	LearningSteps    []time.Duration `koanf:"learning_steps" validate:"dive,gt=0"`
	RelearningSteps  []time.Duration `koanf:"relearning_steps" validate:"dive,gt=0"`
}

// ImportConfig configures deck imports.
type ImportConfig struct {
	ReposDir string `koanf:"repos_dir" validate:"required"`
}

// Flags defines the command-line flags with their defaults. Flag names match
// koanf keys so posflag can merge them directly.
func Flags() *pflag.FlagSet {
	f := pflag.NewFlagSet("recallforge", pflag.ExitOnError)
	f.String("config", "", "Path to a YAML config file (optional)")
	f.String("http.addr", ":8080", "Address for the API server to listen on")
	f.StringSlice("http.cors_origins", []string{"http://localhost:5173"}, "Allowed CORS origins")
	f.String("db.path", "recallforge.db", "Path to the SQLite database file")
	f.Float64("scheduler.desired_retention", 0.9, "Target recall probability at review time")
	f.Int("scheduler.maximum_interval", 36500, "Maximum review interval in days")
	f.DurationSlice("scheduler.learning_steps", []time.Duration{time.Minute, 10 * time.Minute}, "Learning step intervals")
	f.DurationSlice("scheduler.relearning_steps", []time.Duration{10 * time.Minute}, "Relearning step intervals")
	f.String("import.repos_dir", "repos", "Directory for cloned deck repositories")
	return f
}

// Load merges the config file, environment, and flags into a validated Config.
func Load(f *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path, _ := f.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// RECALLFORGE_HTTP__ADDR=:9090 → http.addr. Double underscore separates
	// nesting levels so keys may themselves contain underscores.
	if err := k.Load(env.Provider("RECALLFORGE_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "RECALLFORGE_"))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load environment: %w", err)
	}

	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SchedulerParams builds the scheduler parameters: stock FSRS-4.5 weights
// with the configured retention, cap, and step sequences.
func (c Config) SchedulerParams() (*fsrs.Params, error) {
	p := fsrs.DefaultParams()
	p.DesiredRetention = c.Scheduler.DesiredRetention
	p.MaximumInterval = c.Scheduler.MaximumInterval
	p.LearningSteps = c.Scheduler.LearningSteps
	p.RelearningSteps = c.Scheduler.RelearningSteps
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
