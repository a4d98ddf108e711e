package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ironsheep/contour-mcp/internal/detection"
	"github.com/ironsheep/contour-mcp/internal/raster"
)

// EnvPrefix is prepended to every environment override, e.g.
// CONTOUR_MCP_LOG_LEVEL=debug or CONTOUR_MCP_PIPELINE_MIN_AREA=5000.
const EnvPrefix = "CONTOUR_MCP"

type Config struct {
	Pipeline  PipelineConfig `mapstructure:"pipeline"`
	Reference raster.Rect    `mapstructure:"reference"`
	Log       LogConfig      `mapstructure:"log"`
	Cache     CacheConfig    `mapstructure:"cache"`
	Metrics   MetricsConfig  `mapstructure:"metrics"`
}

type PipelineConfig struct {
	Channel     int     `mapstructure:"channel"`
	AlphaCutoff int     `mapstructure:"alpha_cutoff"`
	GrayCutoff  int     `mapstructure:"gray_cutoff"`
	MinArea     float64 `mapstructure:"min_area"`
	Approx      string  `mapstructure:"approx"`
}

type LogConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

type CacheConfig struct {
	TTL   time.Duration `mapstructure:"ttl"`
	Redis RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load reads configuration from an optional YAML file and the environment.
// An empty path means defaults plus environment only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pipeline.channel", 3)
	v.SetDefault("pipeline.alpha_cutoff", 230)
	v.SetDefault("pipeline.gray_cutoff", 230)
	v.SetDefault("pipeline.min_area", 10000.0)
	v.SetDefault("pipeline.approx", "simple")

	v.SetDefault("reference.top", 77)
	v.SetDefault("reference.left", 217)
	v.SetDefault("reference.bottom", 191)
	v.SetDefault("reference.right", 585)

	v.SetDefault("log.mode", "release")
	v.SetDefault("log.level", "info")

	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("cache.redis.addr", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)

	v.SetDefault("metrics.addr", "")
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	p := c.Pipeline
	if p.Channel < 0 || p.Channel > 3 {
		return fmt.Errorf("pipeline.channel must be 0-3, got %d", p.Channel)
	}
	if p.AlphaCutoff < 0 || p.AlphaCutoff > 255 {
		return fmt.Errorf("pipeline.alpha_cutoff must be 0-255, got %d", p.AlphaCutoff)
	}
	if p.GrayCutoff < 0 || p.GrayCutoff > 255 {
		return fmt.Errorf("pipeline.gray_cutoff must be 0-255, got %d", p.GrayCutoff)
	}
	if p.MinArea < 0 {
		return fmt.Errorf("pipeline.min_area must be >= 0, got %v", p.MinArea)
	}
	if _, err := detection.ParseApprox(p.Approx); err != nil {
		return fmt.Errorf("pipeline.approx: %w", err)
	}
	if c.Reference.Empty() {
		return fmt.Errorf("reference rectangle %s is empty", c.Reference)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must be >= 0, got %s", c.Cache.TTL)
	}
	return nil
}
