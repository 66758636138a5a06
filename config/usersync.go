package config

import (
	"errors"
	"time"
)

// UserKeyCookie configures the first-party cookie holding the flipp user key.
type UserKeyCookie struct {
	Name    string `mapstructure:"name"`
	TTLDays int    `mapstructure:"ttl_days"`
	Domain  string `mapstructure:"domain"`
	// OptOutCookie, when present on a request with the configured value, forbids
	// reading or writing the user key cookie.
	OptOutCookie Cookie `mapstructure:"opt_out_cookie"`
}

type Cookie struct {
	Name  string `mapstructure:"name"`
	Value string `mapstructure:"value"`
}

func (c *UserKeyCookie) TTLDuration() time.Duration {
	return time.Duration(c.TTLDays) * 24 * time.Hour
}

func (c *UserKeyCookie) validate(errs []error) []error {
	if c.Name == "" {
		errs = append(errs, errors.New("user_key_cookie.name must not be empty"))
	}
	if c.TTLDays <= 0 {
		errs = append(errs, errors.New("user_key_cookie.ttl_days must be positive"))
	}
	return errs
}
