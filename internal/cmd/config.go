package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"

	"github.com/mstoykov/envconfig"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"gopkg.in/guregu/null.v3"
	"gopkg.in/yaml.v3"

	"github.com/liuxd6825/k6streams/errext"
	"github.com/liuxd6825/k6streams/errext/exitcodes"
	"github.com/liuxd6825/k6streams/internal/cmd/state"
	"github.com/liuxd6825/k6streams/streams/sources"
)

// Config holds the settings of the streams set up by the commands.
type Config struct {
	HighWaterMark null.Float  `json:"highWaterMark" envconfig:"K6STREAMS_HIGH_WATER_MARK"`
	Rate          null.Float  `json:"rate" envconfig:"K6STREAMS_RATE"`
	Burst         null.Int    `json:"burst" envconfig:"K6STREAMS_BURST"`
	Decompress    null.String `json:"decompress" envconfig:"K6STREAMS_DECOMPRESS"`
	CSVHeader     null.Bool   `json:"csvHeader" envconfig:"K6STREAMS_CSV_HEADER"`
}

// newConfig returns the default configuration.
func newConfig() Config {
	return Config{
		HighWaterMark: null.NewFloat(16, false),
		Rate:          null.NewFloat(0, false),
		Burst:         null.NewInt(1, false),
		Decompress:    null.NewString(string(sources.DecompressionAuto), false),
		CSVHeader:     null.NewBool(true, false),
	}
}

// Apply overwrites the values of c with the valid values of cfg.
func (c Config) Apply(cfg Config) Config {
	if cfg.HighWaterMark.Valid {
		c.HighWaterMark = cfg.HighWaterMark
	}
	if cfg.Rate.Valid {
		c.Rate = cfg.Rate
	}
	if cfg.Burst.Valid {
		c.Burst = cfg.Burst
	}
	if cfg.Decompress.Valid {
		c.Decompress = cfg.Decompress
	}
	if cfg.CSVHeader.Valid {
		c.CSVHeader = cfg.CSVHeader
	}
	return c
}

func configFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.SortFlags = false
	flags.Float64("high-water-mark", 16, "number of chunks buffered ahead of the consumer")
	flags.Float64("rate", 0, "maximum number of chunks read per second, 0 for unlimited")
	flags.Int64("burst", 1, "number of chunks that can be read at once when rate limited")
	flags.String("decompress", string(sources.DecompressionAuto), "input decompression: auto, none, gzip, zstd or br")
	return flags
}

func getNullFloat(flags *pflag.FlagSet, key string) null.Float {
	v, err := flags.GetFloat64(key)
	if err != nil {
		panic(err)
	}
	return null.NewFloat(v, flags.Changed(key))
}

func getNullInt(flags *pflag.FlagSet, key string) null.Int {
	v, err := flags.GetInt64(key)
	if err != nil {
		panic(err)
	}
	return null.NewInt(v, flags.Changed(key))
}

func getNullString(flags *pflag.FlagSet, key string) null.String {
	v, err := flags.GetString(key)
	if err != nil {
		panic(err)
	}
	return null.NewString(v, flags.Changed(key))
}

func getNullBool(flags *pflag.FlagSet, key string) null.Bool {
	v, err := flags.GetBool(key)
	if err != nil {
		panic(err)
	}
	return null.NewBool(v, flags.Changed(key))
}

// getConfig returns the configuration set by flags. Flags that are not
// defined on the set are left unset.
func getConfig(flags *pflag.FlagSet) Config {
	var conf Config
	if flags.Lookup("high-water-mark") != nil {
		conf.HighWaterMark = getNullFloat(flags, "high-water-mark")
	}
	if flags.Lookup("rate") != nil {
		conf.Rate = getNullFloat(flags, "rate")
	}
	if flags.Lookup("burst") != nil {
		conf.Burst = getNullInt(flags, "burst")
	}
	if flags.Lookup("decompress") != nil {
		conf.Decompress = getNullString(flags, "decompress")
	}
	if flags.Lookup("csv-header") != nil {
		conf.CSVHeader = getNullBool(flags, "csv-header")
	}
	return conf
}

// readDiskConfig reads the YAML (or JSON) config file. A missing file at the
// default location is not an error.
func readDiskConfig(gs *state.GlobalState) (Config, error) {
	data, err := afero.ReadFile(gs.FS, gs.Flags.ConfigFilePath)
	if errors.Is(err, fs.ErrNotExist) && gs.Flags.ConfigFilePath == gs.DefaultFlags.ConfigFilePath {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("couldn't load the configuration from %q: %w", gs.Flags.ConfigFilePath, err)
	}

	// The null types only decode from JSON, YAML documents are converted first.
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Config{}, fmt.Errorf("couldn't parse the configuration from %q: %w", gs.Flags.ConfigFilePath, err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return Config{}, err
	}

	var conf Config
	if err := json.Unmarshal(raw, &conf); err != nil {
		return Config{}, fmt.Errorf("couldn't parse the configuration from %q: %w", gs.Flags.ConfigFilePath, err)
	}
	return conf, nil
}

func readEnvConfig(env map[string]string) (Config, error) {
	var conf Config
	err := envconfig.Process("", &conf, func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
	return conf, err
}

// consolidateConfig combines the defaults, the config file, the environment
// and the flags, each overriding the previous ones, and validates the result.
func consolidateConfig(gs *state.GlobalState, flags *pflag.FlagSet) (Config, error) {
	fileConf, err := readDiskConfig(gs)
	if err != nil {
		return Config{}, errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}

	envConf, err := readEnvConfig(gs.Env)
	if err != nil {
		return Config{}, errext.WithExitCodeIfNone(
			errext.WithHint(err, "check the K6STREAMS_* environment variables"), exitcodes.InvalidConfig)
	}

	conf := newConfig().Apply(fileConf).Apply(envConf).Apply(getConfig(flags))
	if err := conf.validate(); err != nil {
		return Config{}, errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}

	gs.Logger.WithFields(map[string]interface{}{
		"highWaterMark": conf.HighWaterMark.Float64,
		"rate":          conf.Rate.Float64,
		"burst":         conf.Burst.Int64,
		"decompress":    conf.Decompress.String,
	}).Debug("Consolidated the configuration")

	return conf, nil
}

func (c Config) validate() error {
	var errs []error
	if hwm := c.HighWaterMark.Float64; math.IsNaN(hwm) || hwm < 0 {
		errs = append(errs, fmt.Errorf("invalid high water mark %v, it must be a non-negative number", hwm))
	}
	if rate := c.Rate.Float64; math.IsNaN(rate) || rate < 0 {
		errs = append(errs, fmt.Errorf("invalid rate %v, it must be a non-negative number", rate))
	}
	if c.Rate.Float64 > 0 && c.Burst.Int64 < 1 {
		errs = append(errs, fmt.Errorf("invalid burst %d, it must be at least 1 when a rate is set", c.Burst.Int64))
	}
	if _, err := sources.ParseDecompression(c.Decompress.String); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return errext.WithHint(err, "see the --help output for the accepted values")
	}
	return nil
}
