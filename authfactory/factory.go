// Package authfactory selects the authorization strategy a configuration
// asks for.
package authfactory

import (
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/vatsimnerd/socialauth"
	"github.com/vatsimnerd/socialauth/config"
	"github.com/vatsimnerd/socialauth/oauth1"
	"github.com/vatsimnerd/socialauth/oauth2"
)

var (
	log = logrus.WithField("module", "authfactory")
)

type options struct {
	httpClient *http.Client
}

type Option func(*options)

// WithHTTPClient sets the client used by the flow controllers. By default a
// client with the configured timeout is used.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *options) {
		o.httpClient = httpClient
	}
}

// New returns, in order of precedence: an OAuth2 strategy when application
// only auth is enabled and a consumer is configured, an OAuth1 strategy when
// a consumer is configured, Basic when user and password are set, and
// socialauth.Null otherwise. Stored tokens in cfg are installed.
func New(cfg *config.Config, opts ...Option) (socialauth.Authorization, error) {
	o := options{httpClient: &http.Client{Timeout: cfg.HTTPTimeout}}
	for _, opt := range opts {
		opt(&o)
	}

	switch {
	case cfg.ApplicationOnlyAuthEnabled && cfg.HasConsumer():
		return newOAuth2(cfg, o)
	case cfg.HasConsumer():
		return newOAuth1(cfg, o)
	case cfg.User != "" && cfg.Password != "":
		log.Debug("using basic authorization")
		return socialauth.NewBasicAuthorization(cfg.User, cfg.Password), nil
	default:
		log.Debug("no credentials configured, requests will be sent unauthenticated")
		return socialauth.Null, nil
	}
}

func newOAuth2(cfg *config.Config, o options) (socialauth.Authorization, error) {
	a := oauth2.New(cfg.ConsumerKey, cfg.ConsumerSecret,
		oauth2.WithHTTPClient(o.httpClient),
		oauth2.WithScope(cfg.OAuth2Scope),
		oauth2.WithEndpoints(oauth2.Endpoints{
			TokenURL:           cfg.OAuth2TokenURL,
			InvalidateTokenURL: cfg.OAuth2InvalidateTokenURL,
		}),
	)
	if cfg.OAuth2TokenType != "" && cfg.OAuth2AccessToken != "" {
		token, err := socialauth.NewOAuth2Token(cfg.OAuth2TokenType, cfg.OAuth2AccessToken)
		if err != nil {
			return nil, err
		}
		if err := a.SetOAuth2Token(token); err != nil {
			return nil, err
		}
	}
	log.WithField("enabled", a.IsEnabled()).Debug("using oauth2 authorization")
	return a, nil
}

func newOAuth1(cfg *config.Config, o options) (socialauth.Authorization, error) {
	a := oauth1.New(cfg.ConsumerKey, cfg.ConsumerSecret,
		oauth1.WithHTTPClient(o.httpClient),
		oauth1.WithEndpoints(oauth1.Endpoints{
			RequestTokenURL:   cfg.RequestTokenURL,
			AuthorizationURL:  cfg.AuthorizationURL,
			AuthenticationURL: cfg.AuthenticationURL,
			AccessTokenURL:    cfg.AccessTokenURL,
		}),
	)
	if cfg.AccessToken != "" && cfg.AccessTokenSecret != "" {
		token, err := socialauth.NewAccessToken(cfg.AccessToken, cfg.AccessTokenSecret)
		if err != nil {
			return nil, err
		}
		if err := a.SetOAuthAccessToken(token); err != nil {
			return nil, err
		}
	}
	log.WithField("enabled", a.IsEnabled()).Debug("using oauth1 authorization")
	return a, nil
}
