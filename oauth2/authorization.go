package oauth2

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	dghubble "github.com/dghubble/oauth1"
	"github.com/sirupsen/logrus"
	"github.com/vatsimnerd/socialauth"
	xoauth2 "golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

type Endpoints struct {
	TokenURL           string
	InvalidateTokenURL string
}

var DefaultEndpoints = Endpoints{
	TokenURL:           "https://api.twitter.com/oauth2/token",
	InvalidateTokenURL: "https://api.twitter.com/oauth2/invalidate_token",
}

var (
	log = logrus.WithField("module", "oauth2")
)

// Authorization authenticates as the application with a bearer token
// obtained through the client credentials grant. Until the token is held
// it sends HTTP Basic over the consumer credential, which is what the token
// endpoints expect.
type Authorization struct {
	mu             sync.RWMutex
	consumerKey    string
	consumerSecret string
	token          *socialauth.OAuth2Token

	scope      string
	endpoints  Endpoints
	httpClient *http.Client
}

type Option func(*Authorization)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(a *Authorization) {
		a.httpClient = httpClient
	}
}

func WithEndpoints(endpoints Endpoints) Option {
	return func(a *Authorization) {
		a.endpoints = endpoints
	}
}

// WithScope sends scope with the token request.
func WithScope(scope string) Option {
	return func(a *Authorization) {
		a.scope = scope
	}
}

func New(consumerKey, consumerSecret string, opts ...Option) *Authorization {
	a := &Authorization{
		consumerKey:    consumerKey,
		consumerSecret: consumerSecret,
		endpoints:      DefaultEndpoints,
		httpClient:     http.DefaultClient,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetOAuthConsumer sets the consumer credential. It fails once a bearer
// token is held.
func (a *Authorization) SetOAuthConsumer(consumerKey, consumerSecret string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token != nil {
		return socialauth.IllegalState("consumer key/secret cannot be changed once a bearer token is set")
	}
	a.consumerKey = consumerKey
	a.consumerSecret = consumerSecret
	return nil
}

func (a *Authorization) AuthorizationHeader(*socialauth.Request) string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.token != nil {
		return a.token.AuthorizationHeader()
	}
	return a.basicHeader()
}

// basicHeader must be called with mu held.
func (a *Authorization) basicHeader() string {
	if a.consumerKey == "" {
		return ""
	}
	credentials := dghubble.PercentEncode(a.consumerKey) + ":" + dghubble.PercentEncode(a.consumerSecret)
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(credentials))
}

func (a *Authorization) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token != nil
}

func (a *Authorization) ConsumerKey() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.consumerKey
}

// Token returns the held bearer token or nil.
func (a *Authorization) Token() *socialauth.OAuth2Token {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

// OAuth2Token fetches a bearer token and keeps it for signing. It fails if a
// token is already held.
func (a *Authorization) OAuth2Token(ctx context.Context) (*socialauth.OAuth2Token, error) {
	a.mu.RLock()
	basic, held := a.basicHeader(), a.token != nil
	a.mu.RUnlock()
	if held {
		return nil, socialauth.IllegalState("bearer token already set")
	}
	if basic == "" {
		return nil, socialauth.IllegalState("consumer key/secret pair not set")
	}

	a.mu.RLock()
	cc := &clientcredentials.Config{
		ClientID:     a.consumerKey,
		ClientSecret: a.consumerSecret,
		TokenURL:     a.endpoints.TokenURL,
		Scopes:       strings.Fields(a.scope),
		AuthStyle:    xoauth2.AuthStyleInHeader,
	}
	a.mu.RUnlock()

	const op = "bearer token"
	tok, err := cc.Token(context.WithValue(ctx, xoauth2.HTTPClient, a.httpClient))
	if err != nil {
		log.WithError(err).WithField("endpoint", cc.TokenURL).Debug("error fetching bearer token")
		return nil, retrieveError(op, err)
	}
	token, err := socialauth.OAuth2TokenFromOAuth2(tok)
	if err != nil {
		log.WithError(err).Debug("error decoding bearer token")
		return nil, socialauth.NewServiceError(op, nil, err)
	}
	if err := a.SetOAuth2Token(token); err != nil {
		return nil, err
	}
	log.WithField("token_type", token.TokenType()).Debug("bearer token acquired")
	return token, nil
}

// SetOAuth2Token installs a stored bearer token.
func (a *Authorization) SetOAuth2Token(token *socialauth.OAuth2Token) error {
	if token == nil {
		return socialauth.ErrMalformedToken
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token != nil {
		return socialauth.IllegalState("bearer token already set")
	}
	a.token = token
	return nil
}

// InvalidateOAuth2Token revokes the held bearer token. The token is dropped
// before the call and put back if the provider does not confirm.
func (a *Authorization) InvalidateOAuth2Token(ctx context.Context) error {
	a.mu.Lock()
	token := a.token
	if token == nil {
		a.mu.Unlock()
		return socialauth.IllegalState("no bearer token to invalidate")
	}
	a.token = nil
	basic := a.basicHeader()
	a.mu.Unlock()

	params := url.Values{"access_token": {token.AccessToken()}}
	if _, err := a.post(ctx, "invalidate bearer token", a.endpoints.InvalidateTokenURL, params, basic); err != nil {
		a.mu.Lock()
		if a.token == nil {
			a.token = token
		}
		a.mu.Unlock()
		return err
	}
	log.Debug("bearer token invalidated")
	return nil
}

// retrieveError carries the status and body of a rejected token request
// into a ServiceError.
func retrieveError(op string, err error) error {
	var re *xoauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return &socialauth.ServiceError{
			Op:         op,
			StatusCode: re.Response.StatusCode,
			Body:       string(re.Body),
			Err:        err,
		}
	}
	return socialauth.NewServiceError(op, nil, err)
}

func (a *Authorization) post(ctx context.Context, op, endpoint string, params url.Values, header string) (*socialauth.Response, error) {
	auth := socialauth.AuthorizationFunc(func(*socialauth.Request) string { return header })
	resp, err := socialauth.PostForm(ctx, a.httpClient, endpoint, params, auth)
	if err != nil {
		return nil, socialauth.NewServiceError(op, nil, err)
	}
	if err := socialauth.CheckResponse(op, resp); err != nil {
		log.WithError(err).WithField("endpoint", endpoint).Debug("error response from oauth server")
		return nil, err
	}
	return resp, nil
}

// TokenSource returns an oauth2.TokenSource backed by a. The bearer token
// is fetched with ctx on first use when none is held.
func (a *Authorization) TokenSource(ctx context.Context) xoauth2.TokenSource {
	return &tokenSource{ctx: ctx, a: a}
}

type tokenSource struct {
	ctx context.Context
	a   *Authorization
}

func (s *tokenSource) Token() (*xoauth2.Token, error) {
	if t := s.a.Token(); t != nil {
		return t.ToOAuth2Token(), nil
	}
	t, err := s.a.OAuth2Token(s.ctx)
	if err != nil {
		// lost a race with another fetch
		if t := s.a.Token(); t != nil {
			return t.ToOAuth2Token(), nil
		}
		return nil, err
	}
	return t.ToOAuth2Token(), nil
}

func (a *Authorization) String() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return fmt.Sprintf("oauth2.Authorization{consumerKey=%s, consumerSecret=[REDACTED], token=%v}", a.consumerKey, a.token)
}
