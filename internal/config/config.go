package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	LogLevel string        `mapstructure:"log_level"`
	Paths    PathsConfig   `mapstructure:"paths"`
	Core     CoreConfig    `mapstructure:"core"`
	Harness  HarnessConfig `mapstructure:"harness"`
}

type PathsConfig struct {
	OutputDir   string `mapstructure:"output_dir"`
	GoldenDir   string `mapstructure:"golden_dir"`
	WeightsFile string `mapstructure:"weights_file"`
}

type CoreConfig struct {
	Selection      string `mapstructure:"selection"`
	PE             int    `mapstructure:"pe"`
	SIMD           int    `mapstructure:"simd"`
	Workers        int    `mapstructure:"workers"`
	StreamCapacity int    `mapstructure:"stream_capacity"`
	OverflowCheck  bool   `mapstructure:"overflow_check"`
	OutputShift    uint   `mapstructure:"output_shift"`
	WeightsLayout  string `mapstructure:"weights_layout"`

	InputPrecision  string `mapstructure:"input_precision"`
	WeightPrecision string `mapstructure:"weight_precision"`
	OutputPrecision string `mapstructure:"output_precision"`
}

type HarnessConfig struct {
	Pattern string `mapstructure:"pattern"`
	Value   int64  `mapstructure:"value"`
	Format  string `mapstructure:"format"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Paths: PathsConfig{
			OutputDir:   ".",
			GoldenDir:   "deconv_data/exp_data",
			WeightsFile: "",
		},
		Core: CoreConfig{
			Selection:      "",
			PE:             0,
			SIMD:           0,
			Workers:        0,
			StreamCapacity: 16,
			OverflowCheck:  false,
			OutputShift:    0,
			WeightsLayout:  "canonical",

			InputPrecision:  "",
			WeightPrecision: "",
			OutputPrecision: "",
		},
		Harness: HarnessConfig{
			Pattern: "constant",
			Value:   1,
			Format:  "csv",
		},
	}
}

// flagKeys maps every flag to the config key it overrides.
var flagKeys = []struct{ flag, key string }{
	{"log-level", "log_level"},
	{"paths-output-dir", "paths.output_dir"},
	{"paths-golden-dir", "paths.golden_dir"},
	{"paths-weights-file", "paths.weights_file"},
	{"core-selection", "core.selection"},
	{"core-pe", "core.pe"},
	{"core-simd", "core.simd"},
	{"core-workers", "core.workers"},
	{"core-stream-capacity", "core.stream_capacity"},
	{"core-overflow-check", "core.overflow_check"},
	{"core-output-shift", "core.output_shift"},
	{"core-weights-layout", "core.weights_layout"},
	{"core-input-precision", "core.input_precision"},
	{"core-weight-precision", "core.weight_precision"},
	{"core-output-precision", "core.output_precision"},
	{"harness-pattern", "harness.pattern"},
	{"harness-value", "harness.value"},
	{"harness-format", "harness.format"},
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("log-level", defaults.LogLevel, "Log level: debug|info|warn|error")
	fs.String("paths-output-dir", defaults.Paths.OutputDir, "Directory for output dumps")
	fs.String("paths-golden-dir", defaults.Paths.GoldenDir, "Directory of golden <stem>_{input,weights,output}.csv files")
	fs.String("paths-weights-file", defaults.Paths.WeightsFile, "Weight table replacing the registry weights (CSV, decimal or hex)")
	fs.String("core-selection", defaults.Core.Selection, "Registry configuration: name, DECONV_CFG_* tag or index (empty = index 0)")
	fs.Int("core-pe", defaults.Core.PE, "Output-channel lanes (0 = registry default)")
	fs.Int("core-simd", defaults.Core.SIMD, "Input-channel lanes (0 = registry default)")
	fs.Int("core-workers", defaults.Core.Workers, "Goroutines splitting PE groups (0/1 = sequential)")
	fs.Int("core-stream-capacity", defaults.Core.StreamCapacity, "Depth of the input and output streams")
	fs.Bool("core-overflow-check", defaults.Core.OverflowCheck, "Fail when an accumulator leaves its declared width")
	fs.Uint("core-output-shift", defaults.Core.OutputShift, "Arithmetic right shift applied before saturation")
	fs.String("core-weights-layout", defaults.Core.WeightsLayout, "Layout of --paths-weights-file: canonical|tiled|torch")
	fs.String("core-input-precision", defaults.Core.InputPrecision, "Input element type, e.g. u4 or ap_uint<4> (empty = registry default)")
	fs.String("core-weight-precision", defaults.Core.WeightPrecision, "Weight element type, e.g. s8 or ap_int<8> (empty = registry default)")
	fs.String("core-output-precision", defaults.Core.OutputPrecision, "Output element type, e.g. u16 or ap_uint<16> (empty = registry default)")
	fs.String("harness-pattern", defaults.Harness.Pattern, "Synthetic input pattern: constant|ramp")
	fs.Int64("harness-value", defaults.Harness.Value, "Input value for the constant pattern")
	fs.String("harness-format", defaults.Harness.Format, "Dump format: csv|wav")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("DECONV")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("deconv")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("log_level", c.LogLevel)
	v.SetDefault("paths.output_dir", c.Paths.OutputDir)
	v.SetDefault("paths.golden_dir", c.Paths.GoldenDir)
	v.SetDefault("paths.weights_file", c.Paths.WeightsFile)
	v.SetDefault("core.selection", c.Core.Selection)
	v.SetDefault("core.pe", c.Core.PE)
	v.SetDefault("core.simd", c.Core.SIMD)
	v.SetDefault("core.workers", c.Core.Workers)
	v.SetDefault("core.stream_capacity", c.Core.StreamCapacity)
	v.SetDefault("core.overflow_check", c.Core.OverflowCheck)
	v.SetDefault("core.output_shift", c.Core.OutputShift)
	v.SetDefault("core.weights_layout", c.Core.WeightsLayout)
	v.SetDefault("core.input_precision", c.Core.InputPrecision)
	v.SetDefault("core.weight_precision", c.Core.WeightPrecision)
	v.SetDefault("core.output_precision", c.Core.OutputPrecision)
	v.SetDefault("harness.pattern", c.Harness.Pattern)
	v.SetDefault("harness.value", c.Harness.Value)
	v.SetDefault("harness.format", c.Harness.Format)
}

// bindFlags binds each registered flag to its nested key, so a flag only
// wins over the config file and environment when it is set explicitly.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, fk := range flagKeys {
		f := fs.Lookup(fk.flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(fk.key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", fk.flag, err)
		}
	}
	return nil
}
