/*
File: config.go
Version: 2.1.0
Description: YAML configuration structures, defaults, and loading.
             UPDATED: LLM advisor transport selection (h1/h3) and blocklist sources.
*/

package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// --- Configuration Structures ---

type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Logging   LoggingConfig   `yaml:"logging"`
	Capture   CaptureConfig   `yaml:"capture"`
	Detection DetectionConfig `yaml:"detection"`
	Decision  DecisionConfig  `yaml:"decision"`
	Overlay   OverlayConfig   `yaml:"overlay"`
	Browser   BrowserConfig   `yaml:"browser"`
	Blocklist BlocklistConfig `yaml:"blocklist"`
	Action    ActionConfig    `yaml:"action"`
	LLM       LLMConfig       `yaml:"llm"`
}

type ServiceConfig struct {
	StatsInterval string   `yaml:"stats_interval"` // "0" disables the periodic stats line
	BypassApps    []string `yaml:"bypass_apps"`

	parsedStatsInterval time.Duration
}

type LoggingConfig struct {
	Level   string   `yaml:"level"`
	Format  string   `yaml:"format"` // "text" (default) or "json", file output only
	Outputs []string `yaml:"outputs"`

	File struct {
		Path       string `yaml:"path"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"file"`
}

type CaptureConfig struct {
	Interval string `yaml:"interval"` // floor enforced at 500ms
	Budget   string `yaml:"budget"`   // per-screenshot timeout, default 3s

	parsedInterval time.Duration
	parsedBudget   time.Duration
}

type DetectionConfig struct {
	BlurFemaleFaces bool    `yaml:"blur_female_faces"`
	DetectNSFW      bool    `yaml:"detect_nsfw"`
	Sensitivity     float64 `yaml:"sensitivity"`      // 0..1
	NSFWThreshold   float64 `yaml:"nsfw_threshold"`   // user cap
	GenderThreshold float64 `yaml:"gender_threshold"` // user cap
	MinBlurDuration string  `yaml:"min_blur_duration"`
	MaxProcessing   string  `yaml:"max_processing_time"`
	AutoThreshold   bool    `yaml:"auto_threshold"`

	parsedMinBlurDuration time.Duration
	parsedMaxProcessing   time.Duration
}

type DecisionConfig struct {
	RegionDensityLimit int `yaml:"region_density_limit"` // default 6
	ReflectionSeconds  int `yaml:"reflection_seconds"`   // default 3
}

type OverlayConfig struct {
	Intensity string `yaml:"intensity"` // light|medium|strong|maximum
	Style     string `yaml:"style"`     // solid|pixelate|noise
}

type BrowserConfig struct {
	Enabled       bool     `yaml:"enabled"`
	ExtraBrowsers []string `yaml:"extra_browsers"` // package names beyond the built-in table
	MaxTreeDepth  int      `yaml:"max_tree_depth"` // default 8
}

type BlocklistConfig struct {
	Files []string `yaml:"files"`
	CIDRs []string `yaml:"cidrs"`

	// DNS-filter probe: resolve hosts through a family-filter resolver and
	// treat sinkhole answers as blocked. Off when resolver is empty.
	DNSFilter struct {
		Resolver string `yaml:"resolver"` // "ip:port"
		Timeout  string `yaml:"timeout"`  // default 2s

		parsedTimeout time.Duration
	} `yaml:"dns_filter"`

	CacheSize int `yaml:"cache_size"` // verdict cache, default 4096
}

type ActionConfig struct {
	MinGap string `yaml:"min_gap"` // default 2s

	parsedMinGap time.Duration
}

type LLMConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	Timeout   string `yaml:"timeout"`   // default 2s; rule fallback fires after this
	Transport string `yaml:"transport"` // "h1" (default) or "h3"

	parsedTimeout time.Duration
}

// Global config instance, set once by LoadConfig before anything else starts.
var config *Config

// --- Configuration Loading ---

func LoadConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)

	// Initialize Logger
	if err := InitLogger(cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	config = &cfg
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	if len(cfg.Logging.Outputs) == 0 {
		cfg.Logging.Outputs = []string{"console"}
	}

	cfg.Service.parsedStatsInterval = parseDurationOr("service.stats_interval", cfg.Service.StatsInterval, 60*time.Second)

	cfg.Capture.parsedInterval = parseDurationOr("capture.interval", cfg.Capture.Interval, captureIntervalFloor)
	if cfg.Capture.parsedInterval < captureIntervalFloor {
		LogWarn("[CONFIG] capture.interval below %v floor, clamping", captureIntervalFloor)
		cfg.Capture.parsedInterval = captureIntervalFloor
	}
	cfg.Capture.parsedBudget = parseDurationOr("capture.budget", cfg.Capture.Budget, captureBudget)

	if cfg.Detection.Sensitivity <= 0 {
		cfg.Detection.Sensitivity = 0.5
	}
	if cfg.Detection.NSFWThreshold <= 0 {
		cfg.Detection.NSFWThreshold = 0.5
	}
	if cfg.Detection.GenderThreshold <= 0 {
		cfg.Detection.GenderThreshold = 0.6
	}
	cfg.Detection.parsedMinBlurDuration = parseDurationOr("detection.min_blur_duration", cfg.Detection.MinBlurDuration, 2*time.Second)
	cfg.Detection.parsedMaxProcessing = parseDurationOr("detection.max_processing_time", cfg.Detection.MaxProcessing, 2*time.Second)

	if cfg.Decision.RegionDensityLimit <= 0 {
		cfg.Decision.RegionDensityLimit = 6
	}
	if cfg.Decision.ReflectionSeconds <= 0 {
		cfg.Decision.ReflectionSeconds = 3
	}

	if cfg.Overlay.Intensity == "" {
		cfg.Overlay.Intensity = "medium"
	}
	if cfg.Overlay.Style == "" {
		cfg.Overlay.Style = "pixelate"
	}

	if cfg.Browser.MaxTreeDepth <= 0 {
		cfg.Browser.MaxTreeDepth = 8
	}

	if cfg.Blocklist.CacheSize <= 0 {
		cfg.Blocklist.CacheSize = 4096
	}
	cfg.Blocklist.DNSFilter.parsedTimeout = parseDurationOr("blocklist.dns_filter.timeout", cfg.Blocklist.DNSFilter.Timeout, 2*time.Second)

	cfg.Action.parsedMinGap = parseDurationOr("action.min_gap", cfg.Action.MinGap, actionMinGap)

	if cfg.LLM.Enabled {
		if cfg.LLM.Transport == "" {
			cfg.LLM.Transport = "h1"
		}
		cfg.LLM.parsedTimeout = parseDurationOr("llm.timeout", cfg.LLM.Timeout, 2*time.Second)
	}
}

func parseDurationOr(name, val string, def time.Duration) time.Duration {
	if val == "" {
		return def
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		LogWarn("[CONFIG] Invalid %s '%s', defaulting to %v", name, val, def)
		return def
	}
	return d
}

// parseIntensity maps a config string to an Intensity tier.
func parseIntensity(s string) Intensity {
	switch s {
	case "light":
		return IntensityLight
	case "strong":
		return IntensityStrong
	case "maximum":
		return IntensityMaximum
	default:
		return IntensityMedium
	}
}

func parseStyle(s string) BlurStyle {
	switch s {
	case "solid":
		return StyleSolid
	case "noise":
		return StyleNoise
	default:
		return StylePixelate
	}
}

// SettingsFromConfig builds the per-cycle read-only snapshot.
func SettingsFromConfig(cfg *Config) Settings {
	return Settings{
		BlurFemaleFaces:    cfg.Detection.BlurFemaleFaces,
		DetectNSFW:         cfg.Detection.DetectNSFW,
		Sensitivity:        cfg.Detection.Sensitivity,
		NSFWThreshold:      cfg.Detection.NSFWThreshold,
		GenderThreshold:    cfg.Detection.GenderThreshold,
		BlurIntensity:      parseIntensity(cfg.Overlay.Intensity),
		Style:              parseStyle(cfg.Overlay.Style),
		CaptureInterval:    cfg.Capture.parsedInterval,
		MinBlurDuration:    cfg.Detection.parsedMinBlurDuration,
		MaxProcessingTime:  cfg.Detection.parsedMaxProcessing,
		RegionDensityLimit: cfg.Decision.RegionDensityLimit,
		ReflectionSeconds:  cfg.Decision.ReflectionSeconds,
		BypassApps:         cfg.Service.BypassApps,
	}
}
