// Package config loads and validates the recognized configuration surface
// from file, environment, and defaults, adapted from the viper-backed
// loader pattern (pkg/config/config.go) from server/cache/analysis
// sections to the sizing, transport, and model-fitting sections this
// pipeline needs.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/nosqlbench/vsmodel/pkg/vserrors"
)

// Sentinel validation errors.
var (
	ErrInvalidBudgetFraction  = errors.New("memory_budget_fraction must be in (0,1]")
	ErrInvalidOverheadFactor  = errors.New("overhead_factor must be >= 1.0")
	ErrInvalidPrefetchCount   = errors.New("prefetch_count must be >= 1")
	ErrInvalidPressureOrder   = errors.New("pressure_thresholds must satisfy 0 < moderate < high <= 1")
	ErrInvalidReservoirSize   = errors.New("reservoir_size must be >= 1000")
	ErrInvalidConvergenceTh   = errors.New("convergence_threshold must be in (0,1)")
	ErrInvalidMaxComponents   = errors.New("max_components must be in [2,10]")
	ErrInvalidProminenceTh    = errors.New("prominence_threshold must be in [0.01,1.0]")
	ErrInvalidClusteringMode  = errors.New("clustering_strategy must be HARD or EM")
	ErrInvalidVerificationLvl = errors.New("verification_level must be FAST, BALANCED, or THOROUGH")
	ErrInvalidMaxBytesPerSec  = errors.New("max_bytes_per_sec must be >= 0")
)

// Sizing holds the chunk-sizing and memory-pressure settings.
type Sizing struct {
	MemoryBudgetFraction float64 `mapstructure:"memory_budget_fraction"`
	MemoryBudgetBytes    uint64  `mapstructure:"memory_budget_bytes"`
	OverheadFactor       float64 `mapstructure:"overhead_factor"`
	ExplicitChunkSize    int     `mapstructure:"explicit_chunk_size"`
	PrefetchCount        int     `mapstructure:"prefetch_count"`
	ModerateThreshold    float64 `mapstructure:"pressure_threshold_moderate"`
	HighThreshold        float64 `mapstructure:"pressure_threshold_high"`
}

// Parallelism holds the worker-pool sizing for the model extractor's NUMA
// fitting pool.
type Parallelism struct {
	Workers   int  `mapstructure:"parallelism"`
	NUMAAware bool `mapstructure:"numa_aware"`
}

// Model holds the model-extractor's reservoir, convergence, and adaptive
// fit-chain settings.
type Model struct {
	ReservoirSize         int     `mapstructure:"reservoir_size"`
	ReservoirSampling     bool    `mapstructure:"reservoir_sampling"`
	ConvergenceThreshold  float64 `mapstructure:"convergence_threshold"`
	EarlyStopping         bool    `mapstructure:"early_stopping"`
	KSThresholdParametric float64 `mapstructure:"ks_threshold_parametric"`
	KSThresholdComposite  float64 `mapstructure:"ks_threshold_composite"`
	MaxComponents         int     `mapstructure:"max_components"`
	ClusteringStrategy    string  `mapstructure:"clustering_strategy"`
	InternalVerification  bool    `mapstructure:"internal_verification"`
	VerificationLevel     string  `mapstructure:"verification_level"`
	HistogramEnabled      bool    `mapstructure:"histogram_enabled"`
	HistogramBins         int     `mapstructure:"histogram_bins"`
	ProminenceThreshold   float64 `mapstructure:"prominence_threshold"`
}

// Transport holds the chunked-download retry/cache settings.
type Transport struct {
	MaxAttempts     int    `mapstructure:"max_attempts"`
	BlockCacheBytes int64  `mapstructure:"block_cache_bytes"`
	CacheDir        string `mapstructure:"cache_dir"`
	DatasetName     string `mapstructure:"dataset_name"`
	ProfileName     string `mapstructure:"profile_name"`

	// MaxBytesPerSec caps the HTTP transport's outbound range-request
	// throughput. Zero disables throttling.
	MaxBytesPerSec int64 `mapstructure:"max_bytes_per_sec"`
}

// Logging holds structured-logging settings, matching the
// logging section shape.
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Config is the full recognized configuration surface.
type Config struct {
	Sizing      Sizing      `mapstructure:"sizing"`
	Parallelism Parallelism `mapstructure:"parallelism"`
	Model       Model       `mapstructure:"model"`
	Transport   Transport   `mapstructure:"transport"`
	Logging     Logging     `mapstructure:"logging"`
}

// Load reads configuration from configPath (or the default search path if
// empty), environment variables prefixed VSMODEL_, and the defaults set
// below, then validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("vsmodel")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/vsmodel")
	}

	v.SetEnvPrefix("VSMODEL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sizing.memory_budget_fraction", 0.6)
	v.SetDefault("sizing.memory_budget_bytes", 0)
	v.SetDefault("sizing.overhead_factor", 1.2)
	v.SetDefault("sizing.explicit_chunk_size", 0)
	v.SetDefault("sizing.prefetch_count", 2)
	v.SetDefault("sizing.pressure_threshold_moderate", 0.70)
	v.SetDefault("sizing.pressure_threshold_high", 0.85)

	v.SetDefault("parallelism.parallelism", 0)
	v.SetDefault("parallelism.numa_aware", true)

	v.SetDefault("model.reservoir_size", 10_000)
	v.SetDefault("model.reservoir_sampling", true)
	v.SetDefault("model.convergence_threshold", 0.01)
	v.SetDefault("model.early_stopping", false)
	v.SetDefault("model.ks_threshold_parametric", 0.03)
	v.SetDefault("model.ks_threshold_composite", 0.05)
	v.SetDefault("model.max_components", 10)
	v.SetDefault("model.clustering_strategy", "HARD")
	v.SetDefault("model.internal_verification", false)
	v.SetDefault("model.verification_level", "BALANCED")
	v.SetDefault("model.histogram_enabled", true)
	v.SetDefault("model.histogram_bins", 64)
	v.SetDefault("model.prominence_threshold", 0.1)

	v.SetDefault("transport.max_attempts", 10)
	v.SetDefault("transport.block_cache_bytes", 256<<20)
	v.SetDefault("transport.cache_dir", "/tmp/vsmodel-cache")
	v.SetDefault("transport.dataset_name", "default")
	v.SetDefault("transport.profile_name", "default")
	v.SetDefault("transport.max_bytes_per_sec", 0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// Validate enforces every numeric range this configuration surface defines.
// Every returned error wraps both its specific sentinel and
// vserrors.ErrInvalidConfig, so callers can classify failures either way
// with errors.Is.
func (c *Config) Validate() error {
	s := c.Sizing

	if s.MemoryBudgetFraction <= 0 || s.MemoryBudgetFraction > 1 {
		return fmt.Errorf("%w: got %f: %w", ErrInvalidBudgetFraction, s.MemoryBudgetFraction, vserrors.ErrInvalidConfig)
	}

	if s.OverheadFactor < 1.0 {
		return fmt.Errorf("%w: got %f: %w", ErrInvalidOverheadFactor, s.OverheadFactor, vserrors.ErrInvalidConfig)
	}

	if s.PrefetchCount < 1 {
		return fmt.Errorf("%w: got %d: %w", ErrInvalidPrefetchCount, s.PrefetchCount, vserrors.ErrInvalidConfig)
	}

	if !(0 < s.ModerateThreshold && s.ModerateThreshold < s.HighThreshold && s.HighThreshold <= 1) {
		return fmt.Errorf("%w: got (%f, %f): %w", ErrInvalidPressureOrder, s.ModerateThreshold, s.HighThreshold, vserrors.ErrInvalidConfig)
	}

	m := c.Model

	if m.ReservoirSize < 1000 {
		return fmt.Errorf("%w: got %d: %w", ErrInvalidReservoirSize, m.ReservoirSize, vserrors.ErrInvalidConfig)
	}

	if m.ConvergenceThreshold <= 0 || m.ConvergenceThreshold >= 1 {
		return fmt.Errorf("%w: got %f: %w", ErrInvalidConvergenceTh, m.ConvergenceThreshold, vserrors.ErrInvalidConfig)
	}

	if m.MaxComponents < 2 || m.MaxComponents > 10 {
		return fmt.Errorf("%w: got %d: %w", ErrInvalidMaxComponents, m.MaxComponents, vserrors.ErrInvalidConfig)
	}

	if m.ProminenceThreshold < 0.01 || m.ProminenceThreshold > 1.0 {
		return fmt.Errorf("%w: got %f: %w", ErrInvalidProminenceTh, m.ProminenceThreshold, vserrors.ErrInvalidConfig)
	}

	if m.ClusteringStrategy != "HARD" && m.ClusteringStrategy != "EM" {
		return fmt.Errorf("%w: got %q: %w", ErrInvalidClusteringMode, m.ClusteringStrategy, vserrors.ErrInvalidConfig)
	}

	switch m.VerificationLevel {
	case "FAST", "BALANCED", "THOROUGH":
	default:
		return fmt.Errorf("%w: got %q: %w", ErrInvalidVerificationLvl, m.VerificationLevel, vserrors.ErrInvalidConfig)
	}

	if c.Transport.MaxBytesPerSec < 0 {
		return fmt.Errorf("%w: got %d: %w", ErrInvalidMaxBytesPerSec, c.Transport.MaxBytesPerSec, vserrors.ErrInvalidConfig)
	}

	return nil
}

// VerificationSampleCount maps the named verification levels to their
// sample counts
func (m Model) VerificationSampleCount() int {
	switch m.VerificationLevel {
	case "FAST":
		return 500
	case "THOROUGH":
		return 5000
	default:
		return 1000
	}
}
