// Package config loads the tunables of §6.3 from YAML and validates them,
// and loads the supplemental subscription-preset bundles of SPEC_FULL §3.2.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Options carries every tunable in §6.3. Zero-valued fields are filled by
// Default() before validation; a caller loading from YAML only needs to
// specify the fields they want to override.
type Options struct {
	Endpoint            string        `yaml:"endpoint" validate:"required,url"`
	PingInterval        time.Duration `yaml:"ping_interval" validate:"gt=0"`
	PingTimeout         time.Duration `yaml:"ping_timeout" validate:"gt=0"`
	CloseTimeout        time.Duration `yaml:"close_timeout" validate:"gt=0"`
	HistoricalTimeout   time.Duration `yaml:"historical_timeout" validate:"gt=0"`
	ValidatorAttempts   int           `yaml:"validator_attempts" validate:"gte=1"`
	ValidatorBaseDelay  time.Duration `yaml:"validator_base_delay" validate:"gt=0"`
	UserAgent           string        `yaml:"user_agent" validate:"required"`
	VolumeStudyID       string        `yaml:"volume_study_id" validate:"required"`
	SymbolValidatorURL  string        `yaml:"symbol_validator_url" validate:"required,url"`
}

// Default values per §6.3.
const (
	DefaultEndpoint           = "wss://data.example-market.com/socket.io/websocket"
	DefaultPingInterval       = 20 * time.Second
	DefaultPingTimeout        = 10 * time.Second
	DefaultCloseTimeout       = 10 * time.Second
	DefaultHistoricalTimeout  = 30 * time.Second
	DefaultValidatorAttempts  = 3
	DefaultValidatorBaseDelay = 1 * time.Second
	DefaultUserAgent          = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	DefaultVolumeStudyID      = "Volume@tv-basicstudies-241"
	DefaultSymbolValidatorURL = "https://data.example-market.com/symbols"
)

// Default returns the §6.3 defaults.
func Default() Options {
	return Options{
		Endpoint:           DefaultEndpoint,
		PingInterval:       DefaultPingInterval,
		PingTimeout:        DefaultPingTimeout,
		CloseTimeout:       DefaultCloseTimeout,
		HistoricalTimeout:  DefaultHistoricalTimeout,
		ValidatorAttempts:  DefaultValidatorAttempts,
		ValidatorBaseDelay: DefaultValidatorBaseDelay,
		UserAgent:          DefaultUserAgent,
		VolumeStudyID:      DefaultVolumeStudyID,
		SymbolValidatorURL: DefaultSymbolValidatorURL,
	}
}

// applyDefaults fills zero-valued fields of o from Default(), the way the
// teacher's kraken.NewClient fills a partially-populated Config.
func applyDefaults(o Options) Options {
	d := Default()
	if o.Endpoint == "" {
		o.Endpoint = d.Endpoint
	}
	if o.PingInterval == 0 {
		o.PingInterval = d.PingInterval
	}
	if o.PingTimeout == 0 {
		o.PingTimeout = d.PingTimeout
	}
	if o.CloseTimeout == 0 {
		o.CloseTimeout = d.CloseTimeout
	}
	if o.HistoricalTimeout == 0 {
		o.HistoricalTimeout = d.HistoricalTimeout
	}
	if o.ValidatorAttempts == 0 {
		o.ValidatorAttempts = d.ValidatorAttempts
	}
	if o.ValidatorBaseDelay == 0 {
		o.ValidatorBaseDelay = d.ValidatorBaseDelay
	}
	if o.UserAgent == "" {
		o.UserAgent = d.UserAgent
	}
	if o.VolumeStudyID == "" {
		o.VolumeStudyID = d.VolumeStudyID
	}
	if o.SymbolValidatorURL == "" {
		o.SymbolValidatorURL = d.SymbolValidatorURL
	}
	return o
}

var validate = validator.New()

// Validate fills defaults and checks the struct tags, returning a usable
// Options or a descriptive error.
func Validate(o Options) (Options, error) {
	o = applyDefaults(o)
	if err := validate.Struct(o); err != nil {
		return Options{}, fmt.Errorf("config: invalid options: %w", err)
	}
	return o, nil
}

// Load reads Options from a YAML file at path, applies defaults to any
// field left unset, and validates the result.
func Load(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("config: failed to read options file: %w", err)
	}
	var o Options
	if err := yaml.Unmarshal(data, &o); err != nil {
		return Options{}, fmt.Errorf("config: failed to parse options YAML: %w", err)
	}
	return Validate(o)
}
