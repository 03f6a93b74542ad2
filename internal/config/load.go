package config

// This file binds Config to command-line flags, STREAMMUX_* environment
// variables and an optional YAML config file. Precedence: flags set on the
// command line, then environment, then the config file, then defaults.

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by [Load].
const EnvPrefix = "STREAMMUX"

// Flag names double as viper keys and config file keys.
const (
	keyOutput      = "output"
	keyContainer   = "container"
	keyRule        = "rule"
	keyRulesFile   = "rules-file"
	keyDryRun      = "dry-run"
	keyForce       = "force"
	keyReadAhead   = "read-ahead"
	keyFFprobe     = "ffprobe"
	keyMetricsFile = "metrics-file"
	keyVerbose     = "verbose"
	keyColor       = "color"
	keyLog         = "log"
	keyCheck       = "check"
)

// BindFlags registers every configurable field on fs with cfg's current
// values as defaults.
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringP(keyOutput, "o", cfg.Output, "Output file")
	fs.StringP(keyContainer, "f", cfg.Container, "Output container: matroska | webm | mpegts (default: from output extension)")
	fs.StringArrayP(keyRule, "r", cfg.Rules, `Selection rule, repeatable and ordered (e.g. "+v", "+a:lang=eng", "-s:forced=true")`)
	fs.String(keyRulesFile, cfg.RulesFile, "YAML file of selection rules, applied before --rule")
	fs.BoolP(keyDryRun, "n", cfg.DryRun, "Print the plan and the equivalent ffmpeg arguments; write nothing")
	fs.Bool(keyForce, cfg.Force, "Overwrite the output if it exists")
	fs.Int(keyReadAhead, cfg.ReadAhead, "Packets buffered per stream (0 reads sequentially)")
	fs.String(keyFFprobe, cfg.FFprobePath, "ffprobe binary used to enumerate non-TS inputs")
	fs.String(keyMetricsFile, cfg.MetricsFile, "Write Prometheus metrics to this textfile")
	fs.BoolP(keyVerbose, "v", cfg.Verbose, "Verbose output")
	fs.String(keyColor, string(cfg.ColorMode), "Color output: auto | always | never")
	fs.StringP(keyLog, "l", cfg.LogFile, "Append JSON logs to file")
	fs.BoolP(keyCheck, "c", cfg.CheckOnly, "Run diagnostics and exit")
}

// Load fills cfg from fs (already parsed), the environment and, when
// configFile is not empty, a YAML config file.
func Load(fs *pflag.FlagSet, cfg *Config, configFile string) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return errors.Wrap(err, "config: bind flags")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "config: read %s", configFile)
		}
	}

	cfg.Output = v.GetString(keyOutput)
	cfg.Container = v.GetString(keyContainer)
	cfg.Rules = v.GetStringSlice(keyRule)
	cfg.RulesFile = v.GetString(keyRulesFile)
	cfg.DryRun = v.GetBool(keyDryRun)
	cfg.Force = v.GetBool(keyForce)
	cfg.ReadAhead = v.GetInt(keyReadAhead)
	cfg.FFprobePath = v.GetString(keyFFprobe)
	cfg.MetricsFile = v.GetString(keyMetricsFile)
	cfg.Verbose = v.GetBool(keyVerbose)
	cfg.ColorMode = ColorMode(strings.ToLower(v.GetString(keyColor)))
	cfg.LogFile = v.GetString(keyLog)
	cfg.CheckOnly = v.GetBool(keyCheck)
	return nil
}
