package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/dghubble/oauth1/twitter"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the credentials and provider endpoints used to build an
// authorization strategy.
type Config struct {
	ConsumerKey       string `yaml:"consumer_key" env:"SOCIALAUTH_CONSUMER_KEY"`
	ConsumerSecret    string `yaml:"consumer_secret" env:"SOCIALAUTH_CONSUMER_SECRET"`
	AccessToken       string `yaml:"access_token" env:"SOCIALAUTH_ACCESS_TOKEN"`
	AccessTokenSecret string `yaml:"access_token_secret" env:"SOCIALAUTH_ACCESS_TOKEN_SECRET"`

	ApplicationOnlyAuthEnabled bool   `yaml:"application_only_auth_enabled" env:"SOCIALAUTH_APPLICATION_ONLY_AUTH_ENABLED"`
	OAuth2TokenType            string `yaml:"oauth2_token_type" env:"SOCIALAUTH_OAUTH2_TOKEN_TYPE"`
	OAuth2AccessToken          string `yaml:"oauth2_access_token" env:"SOCIALAUTH_OAUTH2_ACCESS_TOKEN"`
	OAuth2Scope                string `yaml:"oauth2_scope" env:"SOCIALAUTH_OAUTH2_SCOPE"`

	User     string `yaml:"user" env:"SOCIALAUTH_USER"`
	Password string `yaml:"password" env:"SOCIALAUTH_PASSWORD"`

	RequestTokenURL          string `yaml:"request_token_url" env:"SOCIALAUTH_REQUEST_TOKEN_URL"`
	AuthorizationURL         string `yaml:"authorization_url" env:"SOCIALAUTH_AUTHORIZATION_URL"`
	AuthenticationURL        string `yaml:"authentication_url" env:"SOCIALAUTH_AUTHENTICATION_URL"`
	AccessTokenURL           string `yaml:"access_token_url" env:"SOCIALAUTH_ACCESS_TOKEN_URL"`
	OAuth2TokenURL           string `yaml:"oauth2_token_url" env:"SOCIALAUTH_OAUTH2_TOKEN_URL"`
	OAuth2InvalidateTokenURL string `yaml:"oauth2_invalidate_token_url" env:"SOCIALAUTH_OAUTH2_INVALIDATE_TOKEN_URL"`

	HTTPTimeout time.Duration `yaml:"http_timeout" env:"SOCIALAUTH_HTTP_TIMEOUT"`
	Debug       bool          `yaml:"debug" env:"SOCIALAUTH_DEBUG"`
}

// Default returns a Config pointing at the provider's public endpoints.
func Default() *Config {
	return &Config{
		RequestTokenURL:          twitter.AuthorizeEndpoint.RequestTokenURL,
		AuthorizationURL:         twitter.AuthorizeEndpoint.AuthorizeURL,
		AuthenticationURL:        twitter.AuthenticateEndpoint.AuthorizeURL,
		AccessTokenURL:           twitter.AuthorizeEndpoint.AccessTokenURL,
		OAuth2TokenURL:           "https://api.twitter.com/oauth2/token",
		OAuth2InvalidateTokenURL: "https://api.twitter.com/oauth2/invalidate_token",
		HTTPTimeout:              30 * time.Second,
	}
}

// Load reads defaults, then the YAML file at path (skipped when path is
// empty), then SOCIALAUTH_* environment variables. Later sources win.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("%w: parse env: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every endpoint is an absolute URL.
func (c *Config) Validate() error {
	endpoints := map[string]string{
		"request_token_url":           c.RequestTokenURL,
		"authorization_url":           c.AuthorizationURL,
		"authentication_url":          c.AuthenticationURL,
		"access_token_url":            c.AccessTokenURL,
		"oauth2_token_url":            c.OAuth2TokenURL,
		"oauth2_invalidate_token_url": c.OAuth2InvalidateTokenURL,
	}
	for name, raw := range endpoints {
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() || u.Host == "" {
			return fmt.Errorf("%w: %s must be an absolute URL, got %q", ErrInvalidConfig, name, raw)
		}
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("%w: http_timeout must not be negative", ErrInvalidConfig)
	}
	return nil
}

// HasConsumer reports whether both consumer key and secret are set.
func (c *Config) HasConsumer() bool {
	return c.ConsumerKey != "" && c.ConsumerSecret != ""
}
