package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr              string `json:"addr" yaml:"addr" toml:"addr" envconfig:"ADDR"`
	AssetsDir         string `json:"assets_dir" yaml:"assets_dir" toml:"assets_dir" envconfig:"ASSETS_DIR"`
	OutputDir         string `json:"output_dir" yaml:"output_dir" toml:"output_dir" envconfig:"OUTPUT_DIR"`
	DeviceBudgetMB    int    `json:"device_budget_mb" yaml:"device_budget_mb" toml:"device_budget_mb" envconfig:"DEVICE_BUDGET_MB"`
	DeviceMarginMB    int    `json:"device_margin_mb" yaml:"device_margin_mb" toml:"device_margin_mb" envconfig:"DEVICE_MARGIN_MB"`
	MaxConcurrentJobs int    `json:"max_concurrent_jobs" yaml:"max_concurrent_jobs" toml:"max_concurrent_jobs" envconfig:"MAX_CONCURRENT_JOBS"`
	MaxQueueDepth     int    `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth" envconfig:"MAX_QUEUE_DEPTH"`
	MaxWaitSeconds    int    `json:"max_wait_seconds" yaml:"max_wait_seconds" toml:"max_wait_seconds" envconfig:"MAX_WAIT_SECONDS"`
	// Wall-clock stage ceilings: base allowance plus a per-denoising-step
	// allowance, both in milliseconds. Zero keeps package defaults.
	StageBaseBudgetMS int `json:"stage_base_budget_ms" yaml:"stage_base_budget_ms" toml:"stage_base_budget_ms" envconfig:"STAGE_BASE_BUDGET_MS"`
	StageStepBudgetMS int `json:"stage_step_budget_ms" yaml:"stage_step_budget_ms" toml:"stage_step_budget_ms" envconfig:"STAGE_STEP_BUDGET_MS"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// ApplyEnv overlays VIDEOD_* environment variables onto cfg. Environment wins
// over file values, flags win over both (resolved in main).
func ApplyEnv(cfg Config) (Config, error) {
	if err := envconfig.Process("videod", &cfg); err != nil {
		return cfg, fmt.Errorf("env config: %w", err)
	}
	return cfg, nil
}
