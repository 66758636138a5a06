package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/viper"
)

// Configuration
type Configuration struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	AdminPort      int    `mapstructure:"admin_port"`
	EnableGzip     bool   `mapstructure:"enable_gzip"`
	StatusResponse string `mapstructure:"status_response"`
	// MaxRequestSize caps inbound request bodies, in bytes.
	MaxRequestSize int64 `mapstructure:"max_request_size"`
	// BidderInfoDir holds one {bidder}.yaml descriptor per bidder.
	BidderInfoDir string `mapstructure:"bidder_info_dir"`
	// BidderParamsDir holds one {bidder}.json params schema per bidder.
	BidderParamsDir string `mapstructure:"bidder_params_dir"`

	Adapters      map[string]Adapter `mapstructure:"adapters"`
	UserKeyCookie UserKeyCookie      `mapstructure:"user_key_cookie"`
	HTTPClient    HTTPClient         `mapstructure:"http_client"`
	Metrics       Metrics            `mapstructure:"metrics"`

	RequestTimeoutHeaders RequestTimeoutHeaders `mapstructure:"request_timeout_headers"`
	RequestValidation     RequestValidation     `mapstructure:"request_validation"`
}

// RequestTimeoutHeaders names the headers a load balancer uses to report queue time.
// Leaving either empty disables the check.
type RequestTimeoutHeaders struct {
	RequestTimeInQueue    string `mapstructure:"request_time_in_queue"`
	RequestTimeoutInQueue string `mapstructure:"request_timeout_in_queue"`
}

type HTTPClient struct {
	MaxConnsPerHost     int `mapstructure:"max_connections_per_host"`
	MaxIdleConns        int `mapstructure:"max_idle_connections"`
	IdleConnTimeout     int `mapstructure:"idle_connection_timeout_seconds"`
	TimeoutMilliseconds int `mapstructure:"timeout_ms"`
	// PixelTimeoutMilliseconds bounds each user sync pixel GET.
	PixelTimeoutMilliseconds int `mapstructure:"pixel_timeout_ms"`
}

func (c HTTPClient) Timeout() time.Duration {
	return time.Duration(c.TimeoutMilliseconds) * time.Millisecond
}

func (c HTTPClient) PixelTimeout() time.Duration {
	return time.Duration(c.PixelTimeoutMilliseconds) * time.Millisecond
}

type Metrics struct {
	Prometheus PrometheusMetrics `mapstructure:"prometheus"`
}

type PrometheusMetrics struct {
	Port             int    `mapstructure:"port"`
	Namespace        string `mapstructure:"namespace"`
	Subsystem        string `mapstructure:"subsystem"`
	TimeoutMillisRaw int    `mapstructure:"timeout_ms"`
}

func (m *PrometheusMetrics) Timeout() time.Duration {
	return time.Duration(m.TimeoutMillisRaw) * time.Millisecond
}

// New uses viper to get our server configurations.
func New(v *viper.Viper) (*Configuration, error) {
	var c Configuration
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("viper failed to unmarshal app config: %v", err)
	}

	if errs := c.validate(); len(errs) > 0 {
		return &c, errors.Join(errs...)
	}
	return &c, nil
}

func (c *Configuration) validate() []error {
	var errs []error
	if c.Port == c.AdminPort && c.Port != 0 {
		errs = append(errs, fmt.Errorf("port and admin_port must differ, both are %d", c.Port))
	}
	if c.MaxRequestSize <= 0 {
		errs = append(errs, errors.New("max_request_size must be positive"))
	}
	if c.HTTPClient.TimeoutMilliseconds <= 0 {
		errs = append(errs, errors.New("http_client.timeout_ms must be positive"))
	}
	if err := c.RequestValidation.Parse(); err != nil {
		errs = append(errs, err)
	}
	errs = validateAdapters(c.Adapters, errs)
	errs = c.UserKeyCookie.validate(errs)
	return errs
}

// SetupViper registers every default and, when filename is not empty, reads
// {filename}.yaml from the working directory or /etc/config.
func SetupViper(v *viper.Viper, filename string) {
	if filename != "" {
		v.SetConfigName(filename)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/config")
	}

	v.SetDefault("host", "")
	v.SetDefault("port", 8000)
	v.SetDefault("admin_port", 6060)
	v.SetDefault("enable_gzip", false)
	v.SetDefault("status_response", "")
	v.SetDefault("max_request_size", 1024*256)
	v.SetDefault("bidder_info_dir", "static/bidder-info")
	v.SetDefault("bidder_params_dir", "static/bidder-params")

	v.SetDefault("adapters.flipp.endpoints.production", "https://gateflipp.flippback.com/flyer-locator-service/prebid_campaigns")
	v.SetDefault("adapters.flipp.endpoints.staging", "https://gateflipp-stg.flippback.com/flyer-locator-service-stg/prebid_campaigns")
	v.SetDefault("adapters.flipp.endpoints.development", "http://localhost:4000/flyer-locator-service/prebid_campaigns")
	v.SetDefault("adapters.flipp.disabled", false)
	v.SetDefault("adapters.flipp.network_id", 11090)
	v.SetDefault("adapters.flipp.default_cpm", 1.0)
	v.SetDefault("adapters.flipp.currency", "USD")
	v.SetDefault("adapters.flipp.ttl", 30)
	v.SetDefault("adapters.flipp.legacy_markup", false)
	v.SetDefault("adapters.flipp.usersync_url", "https://idsync.rlcdn.com/712559.gif?partner_uid={{.UID}}")

	v.SetDefault("user_key_cookie.name", "flipp-uid")
	v.SetDefault("user_key_cookie.ttl_days", 365)
	v.SetDefault("user_key_cookie.domain", "")
	v.SetDefault("user_key_cookie.opt_out_cookie.name", "")
	v.SetDefault("user_key_cookie.opt_out_cookie.value", "")

	v.SetDefault("http_client.max_connections_per_host", 10)
	v.SetDefault("http_client.max_idle_connections", 50)
	v.SetDefault("http_client.idle_connection_timeout_seconds", 60)
	v.SetDefault("http_client.timeout_ms", 1000)
	v.SetDefault("http_client.pixel_timeout_ms", 2000)

	v.SetDefault("request_timeout_headers.request_time_in_queue", "")
	v.SetDefault("request_timeout_headers.request_timeout_in_queue", "")

	v.SetDefault("request_validation.ipv4_private_networks", []string{"10.0.0.0/8", "100.64.0.0/10", "127.0.0.0/8", "169.254.0.0/16", "172.16.0.0/12", "192.168.0.0/16"})
	v.SetDefault("request_validation.ipv6_private_networks", []string{"::1/128", "fc00::/7", "fe80::/10", "ff00::/8", "2001:db8::/32"})

	v.SetDefault("metrics.prometheus.port", 0)
	v.SetDefault("metrics.prometheus.namespace", "")
	v.SetDefault("metrics.prometheus.subsystem", "")
	v.SetDefault("metrics.prometheus.timeout_ms", 10000)

	v.SetEnvPrefix("FLIPP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if filename != "" {
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				glog.Infof("No %s.yaml found, running with defaults and environment overrides", filename)
			} else {
				glog.Warningf("Failed to read %s.yaml: %v", filename, err)
			}
		}
	}
}
