package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"codeberg.org/mutker/framegov/internal/errors"
)

const (
	DefaultLogLevel  = LogLevelInfo
	defaultEnvPrefix = "FRAMEGOV"
	configName       = "framegov"
)

type Config struct {
	LogLevel   string           `mapstructure:"log_level"`
	Simulate   bool             `mapstructure:"simulate"`
	Tick       time.Duration    `mapstructure:"tick"`
	GPUIndex   int              `mapstructure:"gpu_index"`
	Governor   GovernorConfig   `mapstructure:"governor"`
	Pacer      PacerConfig      `mapstructure:"pacer"`
	Thresholds []ThresholdEntry `mapstructure:"thresholds"`
	Rules      []RuleEntry      `mapstructure:"rules"`
	Profiles   []ProfileEntry   `mapstructure:"profiles"`
	Tiers      []TierEntry      `mapstructure:"tiers"`
	Report     ReportConfig     `mapstructure:"report"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Simulation SimulationConfig `mapstructure:"simulation"`

	// File is the configuration file that was read, empty when none was.
	File string `mapstructure:"-"`
}

type GovernorConfig struct {
	HistorySize        int            `mapstructure:"history_size"`
	EvaluateEvery      int            `mapstructure:"evaluate_every"`
	ReportEvery        int            `mapstructure:"report_every"`
	MaxActionsPerCycle int            `mapstructure:"max_actions_per_cycle"`
	Hysteresis         float64        `mapstructure:"hysteresis"`
	AlertRetention     time.Duration  `mapstructure:"alert_retention"`
	MaxAlerts          int            `mapstructure:"max_alerts"`
	InitialProfile     string         `mapstructure:"initial_profile"`
	Cadence            map[string]int `mapstructure:"cadence"`
}

type PacerConfig struct {
	TargetFPS       float64       `mapstructure:"target_fps"`
	BackgroundFPS   float64       `mapstructure:"background_fps"`
	LowBand         float64       `mapstructure:"low_band"`
	HighBand        float64       `mapstructure:"high_band"`
	DegradeDwell    time.Duration `mapstructure:"degrade_dwell"`
	RecoverDwell    time.Duration `mapstructure:"recover_dwell"`
	Smoothing       float64       `mapstructure:"smoothing"`
	MemoryBudget    float64       `mapstructure:"memory_budget"`
	BatteryCritical float64       `mapstructure:"battery_critical"`
	Weights         WeightsConfig `mapstructure:"weights"`
}

type WeightsConfig struct {
	Frame  float64 `mapstructure:"frame"`
	Memory float64 `mapstructure:"memory"`
	CPU    float64 `mapstructure:"cpu"`
	GPU    float64 `mapstructure:"gpu"`
}

type ThresholdEntry struct {
	Name      string        `mapstructure:"name"`
	Metric    string        `mapstructure:"metric"`
	Direction string        `mapstructure:"direction"`
	Statistic string        `mapstructure:"statistic"`
	Warning   float64       `mapstructure:"warning"`
	Critical  float64       `mapstructure:"critical"`
	Enabled   *bool         `mapstructure:"enabled"`
	Cooldown  time.Duration `mapstructure:"cooldown"`
}

type RuleEntry struct {
	Name     string        `mapstructure:"name"`
	Kind     string        `mapstructure:"kind"`
	Priority int           `mapstructure:"priority"`
	Cooldown time.Duration `mapstructure:"cooldown"`
	Steps    int           `mapstructure:"steps"`
}

type ProfileEntry struct {
	ID     string             `mapstructure:"id"`
	Name   string             `mapstructure:"name"`
	Level  int                `mapstructure:"level"`
	Params map[string]float64 `mapstructure:"params"`
}

type TierEntry struct {
	Name              string  `mapstructure:"name"`
	MinMemoryBytes    uint64  `mapstructure:"min_memory_bytes"`
	MinCores          int     `mapstructure:"min_cores"`
	MinGPUMemoryBytes uint64  `mapstructure:"min_gpu_memory_bytes"`
	TargetFPS         float64 `mapstructure:"target_fps"`
	FloorLevel        int     `mapstructure:"floor_level"`
	InitialLevel      int     `mapstructure:"initial_level"`
}

type ReportConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Format   string        `mapstructure:"format"`
	Path     string        `mapstructure:"path"`
	Interval time.Duration `mapstructure:"interval"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

type SimulationConfig struct {
	Period    time.Duration `mapstructure:"period"`
	Amplitude float64       `mapstructure:"amplitude"`
	Seed      int64         `mapstructure:"seed"`
}

// Load reads configuration from defaults, the configuration file, the
// environment and finally the command line in args, each overriding the
// one before. The result is validated.
func Load(args []string, opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := options{envPrefix: defaultEnvPrefix}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidArgument, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}
	if err := bindFlags(v, fs); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := o.configPath
	if path == "" {
		path, _ = fs.GetString("config")
	}
	if path == "" {
		path = os.Getenv(o.envPrefix + "_CONFIG")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, configName))
		}
		v.AddConfigPath(filepath.Join("/etc", configName))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}
	cfg.File = v.ConfigFileUsed()
	cfg.fillLists()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Usage renders the command line flags.
func Usage() string {
	return newFlagSet().FlagUsages()
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet(configName, pflag.ContinueOnError)
	fs.SetOutput(nopWriter{})

	fs.StringP("config", "c", "", "Path to configuration file")
	fs.StringP("log-level", "l", string(DefaultLogLevel), "Log level (debug, info, warn, error)")
	fs.Bool("simulate", false, "Drive the governor from a synthetic frame source")
	fs.Duration("tick", defaultTick, "Governor tick interval when sampling the host")
	fs.Int("gpu-index", 0, "NVML device index")
	fs.Float64("target-fps", defaultTargetFPS, "Target frame rate, 0 uses the device tier")
	fs.Bool("report", false, "Export reports periodically")
	fs.String("report-format", defaultReportFormat, "Report format (text, json, yaml, csv)")
	fs.String("report-path", defaultReportPath, "Report destination, - for stdout")
	fs.Duration("report-interval", defaultReportInterval, "Interval between exported reports")
	fs.Bool("metrics", false, "Serve Prometheus metrics")
	fs.String("metrics-listen", defaultMetricsListen, "Metrics listen address")

	return fs
}

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"log-level":       "log_level",
	"simulate":        "simulate",
	"tick":            "tick",
	"gpu-index":       "gpu_index",
	"target-fps":      "pacer.target_fps",
	"report":          "report.enabled",
	"report-format":   "report.format",
	"report-path":     "report.path",
	"report-interval": "report.interval",
	"metrics":         "metrics.enabled",
	"metrics-listen":  "metrics.listen",
}

// bindFlags binds only flags set on the command line so unset flags do not
// mask the configuration file.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error
	fs.Visit(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		err = v.BindPFlag(key, f)
	})
	return err
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
