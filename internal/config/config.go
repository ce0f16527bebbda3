// Package config loads ledgerbridge settings from YAML.
//
// YAML is parsed with gopkg.in/yaml.v3 and then unified with an embedded
// CUE schema, which supplies defaults and rejects unknown or out-of-range
// fields:
//
//	script: ./sdk/bootstrap.js
//	call_timeout: 10s
//	submit_rate: 20
//	sdk:
//	  api_key: abc
//	  network: mainnet
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Config is the resolved configuration. Every field is populated: values
// missing from the file take their schema defaults.
type Config struct {
	Script        string  `json:"script"`
	HandlerName   string  `json:"handler_name"`
	SubmitRate    float64 `json:"submit_rate"`
	SubmitBurst   int     `json:"submit_burst"`
	CallTimeout   string  `json:"call_timeout"`
	ScriptTimeout string  `json:"script_timeout"`
	JournalPath   string  `json:"journal_path"`
	LogLevel      string  `json:"log_level"`
	MetricsAddr   string  `json:"metrics_addr"`
	SDK           SDK     `json:"sdk"`
}

// SDK holds the arguments passed to the script's init call.
type SDK struct {
	APIKey      string `json:"api_key"`
	Network     string `json:"network"`
	DAppCode    string `json:"dapp_code"`
	Fingerprint string `json:"fingerprint"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	cfg, err := Parse(nil)
	if err != nil {
		// The embedded schema always resolves with no input.
		panic(fmt.Sprintf("config: default: %v", err))
	}
	return cfg
}

// Load reads and resolves the YAML file at path.
// An empty path yields Default().
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse resolves YAML bytes against the schema.
func Parse(data []byte) (Config, error) {
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("compile schema: %w", err)
	}

	value := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(raw))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return Config{}, fmt.Errorf("invalid config: %s", cueerrors.Details(err, nil))
	}

	var cfg Config
	if err := value.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// validate covers what the schema cannot express.
func (c Config) validate() error {
	if _, err := time.ParseDuration(c.CallTimeout); err != nil {
		return fmt.Errorf("call_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.ScriptTimeout); err != nil {
		return fmt.Errorf("script_timeout: %w", err)
	}
	return nil
}

// CallTimeoutDuration returns call_timeout as a time.Duration.
func (c Config) CallTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.CallTimeout)
	return d
}

// ScriptTimeoutDuration returns script_timeout as a time.Duration.
func (c Config) ScriptTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ScriptTimeout)
	return d
}

// SlogLevel maps log_level onto slog.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
