// Package config parses regionwatch process configuration from the
// environment and command-line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Default pub/sub channel names. A regions document may override them through
// its topics block, and explicit configuration overrides both.
const (
	DefaultPoseChannel   = "/current_pose"
	DefaultRegionChannel = "/current_region"
	DefaultMarkerChannel = "/region_markers"
)

// Config holds regionwatch service configuration.
type Config struct {
	Regions           string        `env:"REGIONWATCH_REGIONS"`
	AllowEmpty        bool          `env:"REGIONWATCH_ALLOW_EMPTY"`
	ShapeNameField    string        `env:"REGIONWATCH_SHAPE_NAME_FIELD"      envDefault:"NAME"`
	GRPCAddr          string        `env:"REGIONWATCH_GRPC_ADDR"             envDefault:":50051"`
	MetricsAddr       string        `env:"REGIONWATCH_METRICS_ADDR"          envDefault:":9090"`
	BroadcastInterval time.Duration `env:"REGIONWATCH_BROADCAST_INTERVAL"    envDefault:"1s"`
	RedisAddr         string        `env:"REGIONWATCH_REDIS_ADDR"`
	RedisPassword     string        `env:"REGIONWATCH_REDIS_PASSWORD"`
	RedisDB           int           `env:"REGIONWATCH_REDIS_DB"`
	PoseChannel       string        `env:"REGIONWATCH_POSE_CHANNEL"`
	RegionChannel     string        `env:"REGIONWATCH_REGION_CHANNEL"`
	MarkerChannel     string        `env:"REGIONWATCH_MARKER_CHANNEL"`
	LogLevel          string        `env:"LOG_LEVEL"                         envDefault:"info"`
	LogFormat         string        `env:"LOG_FORMAT"                        envDefault:"text"`
}

// LoadDotEnv loads a .env file into the process environment when present.
// Variables already set are left untouched.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ParseConfig reads the environment, then applies flags from args. The first
// positional argument, when given, names the regions source.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.Regions, "regions", cfg.Regions, "regions source: yaml/json/shp path, sqlite://path or postgres:// DSN")
	fs.BoolVar(&cfg.AllowEmpty, "allow-empty", cfg.AllowEmpty, "accept a regions source with no regions")
	fs.StringVar(&cfg.ShapeNameField, "shape-name-field", cfg.ShapeNameField, "shapefile attribute holding region names")
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "gRPC listen address")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "metrics listen address (empty disables)")
	fs.DurationVar(&cfg.BroadcastInterval, "broadcast-interval", cfg.BroadcastInterval, "period between region marker broadcasts")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "redis address for the pub/sub bus (empty disables)")
	fs.IntVar(&cfg.RedisDB, "redis-db", cfg.RedisDB, "redis database index")
	fs.StringVar(&cfg.PoseChannel, "pose-channel", cfg.PoseChannel, "channel carrying pose updates")
	fs.StringVar(&cfg.RegionChannel, "region-channel", cfg.RegionChannel, "channel receiving the current region")
	fs.StringVar(&cfg.MarkerChannel, "marker-channel", cfg.MarkerChannel, "channel receiving region markers")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: text or json")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.Regions == "" && fs.NArg() > 0 {
		cfg.Regions = fs.Arg(0)
	}
	if cfg.Regions == "" {
		cfg.Regions = DefaultRegionsPath()
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate reports settings the service cannot start with.
func (c Config) Validate() error {
	if c.BroadcastInterval <= 0 {
		return fmt.Errorf("broadcast interval must be positive, got %s", c.BroadcastInterval)
	}
	if c.GRPCAddr == "" {
		return errors.New("grpc address is required")
	}
	if c.Regions == "" {
		return errors.New("regions source is required")
	}
	return nil
}

// Channels resolves pub/sub channel names: explicit configuration first, then
// the regions document's topics, then the defaults.
func (c Config) Channels(docPose, docRegion string) (pose, region, marker string) {
	pose = firstNonEmpty(c.PoseChannel, docPose, DefaultPoseChannel)
	region = firstNonEmpty(c.RegionChannel, docRegion, DefaultRegionChannel)
	marker = firstNonEmpty(c.MarkerChannel, DefaultMarkerChannel)
	return pose, region, marker
}

// DefaultRegionsPath is ../config/regions.yaml relative to the executable.
func DefaultRegionsPath() string {
	exe, err := os.Executable()
	if err != nil {
		return filepath.Join("config", "regions.yaml")
	}
	return filepath.Join(filepath.Dir(exe), "..", "config", "regions.yaml")
}

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
