package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Projects ProjectsConfig `yaml:"projects" mapstructure:"projects"`
	Resolver ResolverConfig `yaml:"resolver" mapstructure:"resolver"`
	Shape    ShapeConfig    `yaml:"shape" mapstructure:"shape"`
	Mapdb    MapdbConfig    `yaml:"mapdb" mapstructure:"mapdb"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Export   ExportConfig   `yaml:"export" mapstructure:"export"`
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// ProjectsConfig configures archive discovery.
type ProjectsConfig struct {
	Root      string `yaml:"root" mapstructure:"root"`
	YearMin   int    `yaml:"year_min" mapstructure:"year_min"`
	YearMax   int    `yaml:"year_max" mapstructure:"year_max"`
	Overrides string `yaml:"overrides" mapstructure:"overrides"`
}

// ResolverConfig configures candidate resolution.
type ResolverConfig struct {
	DiscardTags []string `yaml:"discard_tags" mapstructure:"discard_tags"`
	AllowGuess  bool     `yaml:"allow_guess" mapstructure:"allow_guess"`
}

// ShapeConfig configures geometry file reading.
type ShapeConfig struct {
	FixPermissions bool `yaml:"fix_permissions" mapstructure:"fix_permissions"`
	SRID           int  `yaml:"srid" mapstructure:"srid"`
}

// MapdbConfig configures attribute database access.
type MapdbConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
}

// StoreConfig configures the audit database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ExportConfig configures report output.
type ExportConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentProjects int `yaml:"max_concurrent_projects" mapstructure:"max_concurrent_projects"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DSMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("projects.year_min", 1960)
	v.SetDefault("projects.year_max", 2050)
	v.SetDefault("resolver.allow_guess", false)
	v.SetDefault("shape.fix_permissions", true)
	v.SetDefault("shape.srid", 28992)
	v.SetDefault("mapdb.driver", "sqlite")
	v.SetDefault("store.path", "dsmap.db")
	v.SetDefault("export.dir", ".")
	v.SetDefault("batch.max_concurrent_projects", 4)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
