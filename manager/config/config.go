// Package config loads the delegation manager's settings from the
// environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// ErrConfigInvalid marks missing or malformed required settings. Fatal at
// startup.
var ErrConfigInvalid = errors.New("invalid configuration")

// Config holds all configuration loaded from environment variables
type Config struct {
	DelegationAccount string `env:"DELEGATION_ACCOUNT"`
	AdminAccount      string `env:"ADMIN_ACCOUNT"`
	// MuteAccount owns the mute list; empty disables the mute check.
	MuteAccount string `env:"MUTE_ACCOUNT"`
	// ReferrerAccount defaults to the delegation account.
	ReferrerAccount string `env:"REFERRER_ACCOUNT"`

	DelegationAmount     float64 `env:"DELEGATION_AMOUNT" envDefault:"25"`
	MaxOwnedPower        float64 `env:"MAX_OWNED_POWER" envDefault:"30"`
	MinPostMultiplier    int     `env:"MIN_POST_RC_MULTIPLIER" envDefault:"3"`
	DelegationLengthDays int     `env:"DELEGATION_LENGTH_DAYS" envDefault:"30"`
	BeneficiaryRemoval   bool    `env:"BENEFICIARY_REMOVAL" envDefault:"false"`
	NotifyUser           bool    `env:"NOTIFY_USER" envDefault:"true"`
	PowerWarningFloor    float64 `env:"POWER_WARNING_FLOOR" envDefault:"100"`
	CheckCycleMins       int     `env:"CHECK_CYCLE_MINS" envDefault:"10"`

	UserDataFile      string        `env:"USER_DATA_FILE" envDefault:"users.json"`
	HiveAPIURL        string        `env:"HIVE_API_URL" envDefault:"https://api.hive.blog"`
	WalletURL         string        `env:"WALLET_URL" envDefault:"http://localhost:8093"`
	HiveonboardAPIURL string        `env:"HIVEONBOARD_API_URL" envDefault:"https://hiveonboard.com"`
	HttpClientTimeout time.Duration `env:"HTTP_CLIENT_TIMEOUT" envDefault:"30s"`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
	LogHumanFriendly  bool          `env:"LOG_HUMAN_FRIENDLY" envDefault:"false"`
}

// New loads the configuration from environment variables and validates
// the required settings.
func New() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}
	if cfg.ReferrerAccount == "" {
		cfg.ReferrerAccount = cfg.DelegationAccount
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.DelegationAccount == "" {
		return fmt.Errorf("%w: DELEGATION_ACCOUNT is required", ErrConfigInvalid)
	}
	if c.AdminAccount == "" {
		return fmt.Errorf("%w: ADMIN_ACCOUNT is required", ErrConfigInvalid)
	}
	if c.DelegationAmount <= 0 {
		return fmt.Errorf("%w: DELEGATION_AMOUNT must be positive", ErrConfigInvalid)
	}
	if c.CheckCycleMins <= 0 {
		return fmt.Errorf("%w: CHECK_CYCLE_MINS must be positive", ErrConfigInvalid)
	}
	return nil
}
