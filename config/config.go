// Package config loads generator settings with viper. Values come from, in
// increasing precedence: defaults, stubgen.yaml, STUBGEN_* environment
// variables, and command-line flags.
package config

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/golemcloud/golem-cloud-cli/errors"
)

const (
	// FileName is the config file name without extension.
	FileName = "stubgen"
	// EnvPrefix prefixes environment overrides, e.g. STUBGEN_GO_OUT.
	EnvPrefix = "STUBGEN"
)

// Config holds the settings for one generator run.
type Config struct {
	World       string    `mapstructure:"world"`
	Inputs      []string  `mapstructure:"inputs"`
	Component   string    `mapstructure:"component"`
	Output      string    `mapstructure:"output"`
	Compose     bool      `mapstructure:"compose"`
	HostImports []string  `mapstructure:"host_imports"`
	EmbedSource bool      `mapstructure:"embed_source"`
	Go          GoConfig  `mapstructure:"go"`
	Log         LogConfig `mapstructure:"log"`
}

// GoConfig controls Go source output.
type GoConfig struct {
	// Out is the directory receiving one sub-package per stub module.
	// Empty disables writing sources.
	Out    string `mapstructure:"out"`
	Source bool   `mapstructure:"source"`
}

// LogConfig controls the CLI logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Compose:     true,
		HostImports: []string{"wasi:*/*"},
		Go:          GoConfig{Source: true},
		Log:         LogConfig{Level: "info"},
	}
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"world":        "world",
	"input":        "inputs",
	"component":    "component",
	"output":       "output",
	"compose":      "compose",
	"host-import":  "host_imports",
	"embed-source": "embed_source",
	"go-out":       "go.out",
	"go-source":    "go.source",
	"log-level":    "log.level",
}

// LoadOptions selects where configuration is read from.
type LoadOptions struct {
	// File is an explicit config file; it must exist.
	File string
	// Dir is searched for stubgen.yaml when File is empty.
	Dir string
	// Flags are bound on top of file and environment values. Only flags
	// the user changed override lower layers.
	Flags *pflag.FlagSet
}

// Load reads configuration. It returns the path of the file used, or ""
// when no file was found. Relative paths are relative to the working
// directory, not to the config file.
func Load(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", fmt.Errorf("load config canceled: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		for name, key := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, "", errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "bind flag "+name)
				}
			}
		}
	}

	path, err := readFile(v, opts)
	if err != nil {
		return nil, "", err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return &cfg, path, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("world", d.World)
	v.SetDefault("inputs", d.Inputs)
	v.SetDefault("component", d.Component)
	v.SetDefault("output", d.Output)
	v.SetDefault("compose", d.Compose)
	v.SetDefault("host_imports", d.HostImports)
	v.SetDefault("embed_source", d.EmbedSource)
	v.SetDefault("go.out", d.Go.Out)
	v.SetDefault("go.source", d.Go.Source)
	v.SetDefault("log.level", d.Log.Level)
}

func readFile(v *viper.Viper, opts LoadOptions) (string, error) {
	if opts.File != "" {
		if _, err := os.Stat(opts.File); err != nil {
			return "", errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, "config file")
		}
		v.SetConfigFile(opts.File)
	} else {
		dir := opts.Dir
		if dir == "" {
			dir = "."
		}
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.File == "" && stderrors.As(err, &notFound) {
			return "", nil
		}
		return "", errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "read config")
	}
	return v.ConfigFileUsed(), nil
}

// Validate checks the configuration and fills derived values.
func (c *Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("log.level").Value(c.Log.Level).Cause(err).Build()
	}
	if c.Output != "" && c.Component == "" {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("output").Detail("output requires component").Build()
	}
	if c.Composing() && c.Output == "" {
		ext := filepath.Ext(c.Component)
		c.Output = strings.TrimSuffix(c.Component, ext) + ".stubbed" + ext
	}
	if c.Composing() && c.Output == c.Component {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("output").Detail("output would overwrite component %s", c.Component).Build()
	}
	for _, p := range c.HostImports {
		if _, err := path.Match(p, ""); err != nil {
			return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Path("host_imports").Value(p).Cause(err).Build()
		}
	}
	return nil
}

// Composing reports whether the packager runs.
func (c *Config) Composing() bool {
	return c.Compose && c.Component != ""
}

// Logger builds a console logger at the configured level.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.DisableStacktrace = true
	zc.DisableCaller = true
	zc.EncoderConfig.TimeKey = ""
	return zc.Build()
}
