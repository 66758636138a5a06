package config

import (
	"bytes"
	"fmt"
	"regexp"
	"text/template"

	validator "github.com/asaskevich/govalidator"
)

type Adapter struct {
	Endpoints AdapterEndpoints `mapstructure:"endpoints"`
	Disabled  bool             `mapstructure:"disabled"`
	// NetworkID is the ad server network every placement is sent under.
	NetworkID int64 `mapstructure:"network_id"`
	// DefaultCPM is bid when neither the decision nor the response carry a price.
	DefaultCPM float64 `mapstructure:"default_cpm"`
	Currency   string  `mapstructure:"currency"`
	// TTL is how many seconds a bid stays usable by the host.
	TTL int `mapstructure:"ttl"`
	// LegacyMarkup makes decisions without a prebid creative render through the
	// Flipp tag instead of being dropped.
	LegacyMarkup bool `mapstructure:"legacy_markup"`
	// UserSyncURL is a Go template; {{.UID}} is replaced with the query-escaped user key.
	UserSyncURL string `mapstructure:"usersync_url"`
}

// AdapterEndpoints lists the campaign servers a page can target with the pb-env query parameter.
type AdapterEndpoints struct {
	Production  string `mapstructure:"production"`
	Staging     string `mapstructure:"staging"`
	Development string `mapstructure:"development"`
}

// UserSyncTemplateParams are the macros available to an adapter's usersync_url.
type UserSyncTemplateParams struct {
	UID string
}

const dummyUID = "30470a14-2949-4110-abce-b62d57304ad5"

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// validateAdapters validates adapter's endpoints and user sync URL
func validateAdapters(adapterMap map[string]Adapter, errs []error) []error {
	for adapterName, adapter := range adapterMap {
		if adapter.Disabled {
			continue
		}
		if adapter.Endpoints.Production == "" {
			errs = append(errs, fmt.Errorf("There's no production endpoint available for %s. "+
				"Please set adapters.%s.endpoints.production in your app config", adapterName, adapterName))
		} else {
			errs = validateAdapterEndpoint(adapter.Endpoints.Production, adapterName, errs)
		}
		if adapter.Endpoints.Staging != "" {
			errs = validateAdapterEndpoint(adapter.Endpoints.Staging, adapterName, errs)
		}
		if adapter.Endpoints.Development != "" {
			errs = validateAdapterEndpoint(adapter.Endpoints.Development, adapterName, errs)
		}
		errs = validateAdapterUserSyncURL(adapter.UserSyncURL, adapterName, errs)

		if adapter.TTL <= 0 {
			errs = append(errs, fmt.Errorf("adapters.%s.ttl must be positive, got %d", adapterName, adapter.TTL))
		}
		if !currencyPattern.MatchString(adapter.Currency) {
			errs = append(errs, fmt.Errorf("adapters.%s.currency must be a three letter ISO code, got %q", adapterName, adapter.Currency))
		}
		if adapter.DefaultCPM < 0 {
			errs = append(errs, fmt.Errorf("adapters.%s.default_cpm must not be negative", adapterName))
		}
	}
	return errs
}

// validateAdapterEndpoint makes sure that an endpoint is an absolute request URL.
//
// Validating using both IsURL and IsRequestURL because IsURL allows relative paths
// whereas IsRequestURL requires absolute path but fails to check other valid URL
// format constraints.
func validateAdapterEndpoint(endpoint string, adapterName string, errs []error) []error {
	if !validator.IsURL(endpoint) || !validator.IsRequestURL(endpoint) {
		errs = append(errs, fmt.Errorf("The endpoint: %s for %s is not a valid URL", endpoint, adapterName))
	}
	return errs
}

// validateAdapterUserSyncURL validates an adapter's user sync URL if it is set
func validateAdapterUserSyncURL(userSyncURL string, adapterName string, errs []error) []error {
	if userSyncURL == "" {
		return errs
	}

	syncTemplate, err := template.New("userSyncTemplate").Parse(userSyncURL)
	if err != nil {
		return append(errs, fmt.Errorf("Invalid user sync URL template: %s for adapter: %s. %v", userSyncURL, adapterName, err))
	}

	var resolved bytes.Buffer
	if err := syncTemplate.Execute(&resolved, UserSyncTemplateParams{UID: dummyUID}); err != nil {
		return append(errs, fmt.Errorf("Unable to resolve user sync URL: %s for adapter: %s. %v", userSyncURL, adapterName, err))
	}
	if !validator.IsURL(resolved.String()) {
		errs = append(errs, fmt.Errorf("The user sync URL: %s for %s is not a valid URL", resolved.String(), adapterName))
	}
	return errs
}
