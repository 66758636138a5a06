package flipp

import (
	"net/url"

	"github.com/flippback/prebid-flipp/config"
)

// Environment selects which campaign server a batch is sent to.
type Environment int

const (
	EnvironmentProduction Environment = iota
	EnvironmentStaging
	EnvironmentDevelopment
)

const (
	envQueryParam         = "pb-env"
	contentCodeQueryParam = "flipp-content-code"
)

// ParseEnvironment maps a pb-env value to an Environment. Anything unknown is production.
func ParseEnvironment(value string) Environment {
	switch value {
	case "dev":
		return EnvironmentDevelopment
	case "staging":
		return EnvironmentStaging
	default:
		return EnvironmentProduction
	}
}

func (e Environment) String() string {
	switch e {
	case EnvironmentDevelopment:
		return "dev"
	case EnvironmentStaging:
		return "staging"
	default:
		return "production"
	}
}

// Endpoint returns the configured URL for e. Unset staging or development endpoints
// fall back to production.
func (e Environment) Endpoint(endpoints config.AdapterEndpoints) string {
	switch {
	case e == EnvironmentStaging && endpoints.Staging != "":
		return endpoints.Staging
	case e == EnvironmentDevelopment && endpoints.Development != "":
		return endpoints.Development
	default:
		return endpoints.Production
	}
}

// pageContext is what the builder reads off the referrer, resolved once per batch.
type pageContext struct {
	environment Environment
	contentCode string
}

func parsePageContext(referrer string) pageContext {
	pageURL, err := url.Parse(referrer)
	if err != nil {
		return pageContext{}
	}
	query := pageURL.Query()
	return pageContext{
		environment: ParseEnvironment(query.Get(envQueryParam)),
		contentCode: query.Get(contentCodeQueryParam),
	}
}
