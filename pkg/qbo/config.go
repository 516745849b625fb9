package qbo

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fivetwenty-io/qbo-client/internal/constants"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config is the caller-facing client configuration. It is normalized into an
// AppConfig by Clean.
//
// # Token storage
//
// Exactly one storage strategy must be configured:
//  1. Internal: AccessToken and/or RefreshToken are set. The token lives in
//     the client's memory only.
//  2. Class: TokenStore is set. Built-in stores live in pkg/tokenstore.
//  3. Function: GetTokenFunc and SaveTokenFunc are both set.
//
// Configuring none, or more than one, is a ConfigurationError.
//
// # Refresh
//
// AutoRefresh defaults to true, in which case AppKey and AppSecret are
// required and access tokens are refreshed AutoRefreshBufferSeconds before
// they expire.
type Config struct {
	// RealmID is the company the client talks to.
	RealmID string `mapstructure:"realm_id" yaml:"realm_id"`

	// App credentials.
	AppKey      string   `mapstructure:"app_key"      yaml:"app_key"`
	AppSecret   string   `mapstructure:"app_secret"   yaml:"app_secret"`
	RedirectURL string   `mapstructure:"redirect_url" yaml:"redirect_url" validate:"omitempty,url"`
	Scope       []string `mapstructure:"scope"        yaml:"scope"`

	// UseProduction selects the production API base. Endpoint overrides it.
	UseProduction bool   `mapstructure:"use_production" yaml:"use_production"`
	Endpoint      string `mapstructure:"endpoint"       yaml:"endpoint"       validate:"omitempty,url"`
	// MinorVersion is sent as the minorversion query parameter when set.
	MinorVersion string `mapstructure:"minor_version" yaml:"minor_version" validate:"omitempty,numeric"`

	AutoRefresh              *bool `mapstructure:"auto_refresh"                yaml:"auto_refresh"`
	AutoRefreshBufferSeconds *int  `mapstructure:"auto_refresh_buffer_seconds" yaml:"auto_refresh_buffer_seconds" validate:"omitempty,gte=0"`

	// Internal strategy.
	AccessToken  string `mapstructure:"access_token"  yaml:"access_token"`
	RefreshToken string `mapstructure:"refresh_token" yaml:"refresh_token"`

	// Class strategy.
	TokenStore TokenStore `mapstructure:"-" validate:"-" yaml:"-"`

	// Function strategy.
	GetTokenFunc  GetTokenFunc  `mapstructure:"-" yaml:"-"`
	SaveTokenFunc SaveTokenFunc `mapstructure:"-" yaml:"-"`

	// Extra is passed to the class and function strategies on every call.
	Extra any `mapstructure:"-" yaml:"-"`

	// OAuth endpoints, defaulted to Intuit's.
	TokenURL     string `mapstructure:"token_url"     yaml:"token_url"     validate:"omitempty,url"`
	RevokeURL    string `mapstructure:"revoke_url"    yaml:"revoke_url"    validate:"omitempty,url"`
	AuthorizeURL string `mapstructure:"authorize_url" yaml:"authorize_url" validate:"omitempty,url"`
	JWKSURL      string `mapstructure:"jwks_url"      yaml:"jwks_url"      validate:"omitempty,url"`
	Issuer       string `mapstructure:"issuer"        yaml:"issuer"`

	// Transport options.
	HTTPTimeout  time.Duration `mapstructure:"http_timeout"   yaml:"http_timeout"   validate:"gte=0"`
	RetryMax     int           `mapstructure:"retry_max"      yaml:"retry_max"      validate:"gte=0"`
	RetryWaitMin time.Duration `mapstructure:"retry_wait_min" yaml:"retry_wait_min" validate:"gte=0"`
	RetryWaitMax time.Duration `mapstructure:"retry_wait_max" yaml:"retry_wait_max" validate:"gte=0"`
	// RateLimit caps outgoing requests per second. Zero disables it.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit" validate:"gte=0"`
	RateBurst int     `mapstructure:"rate_burst" yaml:"rate_burst" validate:"gte=0"`
	// MaxQueryPages bounds fetch-all continuation. Zero means the default.
	MaxQueryPages int `mapstructure:"max_query_pages" yaml:"max_query_pages" validate:"gte=0"`
	// ResponseHeaders adds selected response headers to parsed bodies under
	// the "headers" key.
	ResponseHeaders bool   `mapstructure:"response_headers" yaml:"response_headers"`
	UserAgent       string `mapstructure:"user_agent"       yaml:"user_agent"`
	Debug           bool   `mapstructure:"debug"            yaml:"debug"`

	Logger     Logger       `mapstructure:"-" validate:"-" yaml:"-"`
	HTTPClient *http.Client `mapstructure:"-" validate:"-" yaml:"-"`
	// Metrics enables the prometheus interceptors when set.
	Metrics              *Metrics              `mapstructure:"-" validate:"-" yaml:"-"`
	RequestInterceptors  []RequestInterceptor  `mapstructure:"-" validate:"-" yaml:"-"`
	ResponseInterceptors []ResponseInterceptor `mapstructure:"-" validate:"-" yaml:"-"`
}

// AppConfig is a validated Config with defaults applied. It is built once per
// client and must not be modified afterwards.
type AppConfig struct {
	RealmID     string
	AppKey      string
	AppSecret   string
	RedirectURL string
	Scope       []string

	UseProduction bool
	Endpoint      string
	MinorVersion  string

	AutoRefresh              bool
	AutoRefreshBufferSeconds int

	TokenURL     string
	RevokeURL    string
	AuthorizeURL string
	JWKSURL      string
	Issuer       string

	HTTPTimeout     time.Duration
	RetryMax        int
	RetryWaitMin    time.Duration
	RetryWaitMax    time.Duration
	RateLimit       float64
	RateBurst       int
	MaxQueryPages   int
	ResponseHeaders bool
	UserAgent       string
	Debug           bool
}

// RefreshBuffer returns AutoRefreshBufferSeconds as a duration.
func (a *AppConfig) RefreshBuffer() time.Duration {
	return time.Duration(a.AutoRefreshBufferSeconds) * time.Second
}

// RequireAuthFlow checks the fields the authorization-code flow needs.
func (a *AppConfig) RequireAuthFlow() error {
	switch {
	case a.AppKey == "":
		return &ConfigurationError{Field: "app_key", Reason: "required for the authorization flow"}
	case a.AppSecret == "":
		return &ConfigurationError{Field: "app_secret", Reason: "required for the authorization flow"}
	case a.RedirectURL == "":
		return &ConfigurationError{Field: "redirect_url", Reason: "required for the authorization flow"}
	case len(a.Scope) == 0:
		return &ConfigurationError{Field: "scope", Reason: "required for the authorization flow"}
	}

	return nil
}

// Clean validates the configuration and returns it with defaults applied.
func (c *Config) Clean() (*AppConfig, error) {
	if c == nil {
		return nil, &ConfigurationError{Reason: ErrConfigRequired.Error()}
	}

	err := validate.Struct(c)
	if err != nil {
		return nil, toConfigurationError(err)
	}

	app := &AppConfig{
		RealmID:         strings.TrimSpace(c.RealmID),
		AppKey:          c.AppKey,
		AppSecret:       c.AppSecret,
		RedirectURL:     c.RedirectURL,
		Scope:           append([]string(nil), c.Scope...),
		UseProduction:   c.UseProduction,
		Endpoint:        c.Endpoint,
		MinorVersion:    c.MinorVersion,
		AutoRefresh:     true,
		TokenURL:        valueOr(c.TokenURL, constants.TokenURL),
		RevokeURL:       valueOr(c.RevokeURL, constants.RevokeURL),
		AuthorizeURL:    valueOr(c.AuthorizeURL, constants.AuthorizeURL),
		JWKSURL:         valueOr(c.JWKSURL, constants.JWKSURL),
		Issuer:          valueOr(c.Issuer, constants.Issuer),
		HTTPTimeout:     c.HTTPTimeout,
		RetryMax:        c.RetryMax,
		RetryWaitMin:    c.RetryWaitMin,
		RetryWaitMax:    c.RetryWaitMax,
		RateLimit:       c.RateLimit,
		RateBurst:       c.RateBurst,
		MaxQueryPages:   c.MaxQueryPages,
		ResponseHeaders: c.ResponseHeaders,
		UserAgent:       valueOr(c.UserAgent, constants.DefaultUserAgent),
		Debug:           c.Debug,

		AutoRefreshBufferSeconds: constants.DefaultRefreshBufferSeconds,
	}

	if c.AutoRefresh != nil {
		app.AutoRefresh = *c.AutoRefresh
	}

	if c.AutoRefreshBufferSeconds != nil {
		app.AutoRefreshBufferSeconds = *c.AutoRefreshBufferSeconds
	}

	if app.Endpoint == "" {
		app.Endpoint = constants.SandboxEndpoint
		if app.UseProduction {
			app.Endpoint = constants.ProductionEndpoint
		}
	}

	if !strings.HasSuffix(app.Endpoint, "/") {
		app.Endpoint += "/"
	}

	if app.HTTPTimeout == 0 {
		app.HTTPTimeout = constants.DefaultHTTPTimeout
	}

	if app.MaxQueryPages == 0 {
		app.MaxQueryPages = constants.DefaultMaxQueryPages
	}

	if app.RetryMax > 0 {
		app.RetryWaitMin = durationOr(app.RetryWaitMin, constants.DefaultRetryWaitMin)
		app.RetryWaitMax = durationOr(app.RetryWaitMax, constants.ExtendedRetryWaitMax)
	}

	if app.AutoRefresh {
		if app.AppKey == "" {
			return nil, &ConfigurationError{Field: "app_key", Reason: "required when auto refresh is enabled"}
		}

		if app.AppSecret == "" {
			return nil, &ConfigurationError{Field: "app_secret", Reason: "required when auto refresh is enabled"}
		}
	}

	return app, nil
}

func toConfigurationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return &ConfigurationError{Reason: err.Error()}
	}

	fe := validationErrors[0]

	var reason string

	switch fe.Tag() {
	case "required":
		reason = "is required"
	case "url":
		reason = "must be a valid URL"
	case "numeric":
		reason = "must be numeric"
	case "gte":
		reason = fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	default:
		reason = fmt.Sprintf("failed on '%s' validation", fe.Tag())
	}

	return &ConfigurationError{Field: fe.Field(), Reason: reason}
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}

	return value
}

func durationOr(value, fallback time.Duration) time.Duration {
	if value == 0 {
		return fallback
	}

	return value
}
