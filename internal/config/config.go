// Package config resolves apidash settings from flags, APIDASH_* environment
// variables and an optional config file, in that order of precedence.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"apidash/internal/catalog"
)

const envPrefix = "APIDASH"

const (
	KeyBaseURL       = "base-url"
	KeyTimeout       = "timeout"
	KeyStrict        = "strict"
	KeyValidateInput = "validate-input"
	KeyDebug         = "debug"
	KeyLogFile       = "log-file"
)

type Config struct {
	// BaseURL is joined with each endpoint path.
	BaseURL string
	// Timeout bounds each request. Zero never cancels.
	Timeout time.Duration
	// Strict rejects a send while another is in flight.
	Strict bool
	// ValidateInput refuses to send a form that fails its field rules.
	ValidateInput bool

	Debug   bool
	LogFile string
}

func Default() Config {
	return Config{BaseURL: catalog.DefaultBaseURL}
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	d := Default()
	v.SetDefault(KeyBaseURL, d.BaseURL)
	v.SetDefault(KeyTimeout, d.Timeout)
	v.SetDefault(KeyStrict, d.Strict)
	v.SetDefault(KeyValidateInput, d.ValidateInput)
	v.SetDefault(KeyDebug, d.Debug)
	v.SetDefault(KeyLogFile, d.LogFile)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// AddFlags registers the config flags on fs and binds them to v.
func AddFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	d := Default()
	fs.String(KeyBaseURL, d.BaseURL, "Base URL for executing requests")
	fs.Duration(KeyTimeout, d.Timeout, "Per-request timeout (0 disables)")
	fs.Bool(KeyStrict, d.Strict, "Reject a send while another request is in flight")
	fs.Bool(KeyValidateInput, d.ValidateInput, "Refuse to send forms that fail validation")
	fs.Bool(KeyDebug, d.Debug, "Write debug logs to --log-file")
	fs.String(KeyLogFile, d.LogFile, "Debug log file (default $TMPDIR/apidash.log)")

	for _, k := range []string{KeyBaseURL, KeyTimeout, KeyStrict, KeyValidateInput, KeyDebug, KeyLogFile} {
		if err := v.BindPFlag(k, fs.Lookup(k)); err != nil {
			return fmt.Errorf("bind flag %s: %w", k, err)
		}
	}
	return nil
}

// ReadFile merges a YAML/JSON/TOML config file into v. An empty path is a
// no-op.
func ReadFile(v *viper.Viper, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// Load resolves a validated Config from v.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		BaseURL:       normalizeBaseURL(v.GetString(KeyBaseURL)),
		Timeout:       v.GetDuration(KeyTimeout),
		Strict:        v.GetBool(KeyStrict),
		ValidateInput: v.GetBool(KeyValidateInput),
		Debug:         v.GetBool(KeyDebug),
		LogFile:       strings.TrimSpace(v.GetString(KeyLogFile)),
	}
	if cfg.BaseURL == "" {
		return Config{}, fmt.Errorf("%s must not be empty", KeyBaseURL)
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", KeyBaseURL, err)
	}
	if cfg.Timeout < 0 {
		return Config{}, fmt.Errorf("%s must not be negative", KeyTimeout)
	}
	return cfg, nil
}

func normalizeBaseURL(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return ""
	}
	if !strings.HasPrefix(in, "http://") && !strings.HasPrefix(in, "https://") {
		in = "http://" + in
	}
	return strings.TrimRight(in, "/")
}
