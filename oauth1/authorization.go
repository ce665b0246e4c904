package oauth1

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/dghubble/oauth1/twitter"
	"github.com/sirupsen/logrus"
	"github.com/vatsimnerd/socialauth"
)

// Endpoints are the provider URLs used by the handshake.
type Endpoints struct {
	RequestTokenURL   string
	AuthorizationURL  string
	AuthenticationURL string
	AccessTokenURL    string
}

var DefaultEndpoints = Endpoints{
	RequestTokenURL:   twitter.AuthorizeEndpoint.RequestTokenURL,
	AuthorizationURL:  twitter.AuthorizeEndpoint.AuthorizeURL,
	AuthenticationURL: twitter.AuthenticateEndpoint.AuthorizeURL,
	AccessTokenURL:    twitter.AuthorizeEndpoint.AccessTokenURL,
}

var (
	log = logrus.WithField("module", "oauth1")
)

// Authorization signs requests with OAuth 1.0a and drives the three-legged
// handshake. It is unconfigured until a consumer key is set and enabled once
// an access token is held.
type Authorization struct {
	mu           sync.RWMutex
	signer       *Signer
	accessToken  *socialauth.AccessToken
	requestToken *socialauth.RequestToken

	method     SignatureMethod
	endpoints  Endpoints
	httpClient *http.Client
	realm      string
	nonce      func() string
	now        func() time.Time
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

func WithSignatureMethod(method SignatureMethod) Option {
	return func(a *Authorization) {
		a.method = method
	}
}

// WithRealm adds a realm parameter to every header.
func WithRealm(realm string) Option {
	return func(a *Authorization) {
		a.realm = realm
	}
}

func WithNonceFunc(nonce func() string) Option {
	return func(a *Authorization) {
		a.nonce = nonce
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Authorization) {
		a.now = now
	}
}

// New creates an OAuth 1.0a strategy. An empty consumerKey leaves it
// unconfigured until SetOAuthConsumer is called.
func New(consumerKey, consumerSecret string, opts ...Option) *Authorization {
	a := &Authorization{
		method:     HMACSHA1,
		endpoints:  DefaultEndpoints,
		httpClient: http.DefaultClient,
		nonce:      NewNonce,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if consumerKey != "" {
		a.signer = NewSigner(consumerKey, consumerSecret, a.method)
	}
	return a
}

// SetOAuthConsumer sets the consumer credential. It fails once an access
// token is held.
func (a *Authorization) SetOAuthConsumer(consumerKey, consumerSecret string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.accessToken != nil {
		return socialauth.IllegalState("consumer key/secret cannot be changed once an access token is set")
	}
	a.signer = NewSigner(consumerKey, consumerSecret, a.method)
	return nil
}

// AuthorizationHeader signs req with the access token when one is held and
// without a token otherwise. A nil req is signed as a bare GET.
func (a *Authorization) AuthorizationHeader(req *socialauth.Request) string {
	if req == nil {
		req = &socialauth.Request{Method: http.MethodGet}
	}
	a.mu.RLock()
	signer, at := a.signer, a.accessToken
	a.mu.RUnlock()
	if signer == nil {
		return ""
	}
	var tok *socialauth.OAuthToken
	if at != nil {
		tok = &at.OAuthToken
	}
	return a.sign(signer, req, tok)
}

func (a *Authorization) sign(signer *Signer, req *socialauth.Request, tok *socialauth.OAuthToken) string {
	var token, secret string
	if tok != nil {
		token, secret = tok.Token(), tok.TokenSecret()
	}
	h, err := signer.AuthorizationHeader(req.Method, req.URL, req.Params, a.nonce(), a.now().Unix(), token, secret, a.realm)
	if err != nil {
		log.WithError(err).WithField("url", req.URL).Error("error signing request")
		return ""
	}
	return h
}

func (a *Authorization) signWith(signer *Signer, tok *socialauth.OAuthToken) socialauth.AuthorizationFunc {
	return func(req *socialauth.Request) string {
		return a.sign(signer, req, tok)
	}
}

func (a *Authorization) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.accessToken != nil
}

func (a *Authorization) ConsumerKey() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.signer == nil {
		return ""
	}
	return a.signer.ConsumerKey()
}

// AccessToken returns the held access token or nil.
func (a *Authorization) AccessToken() *socialauth.AccessToken {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.accessToken
}

// RequestToken returns the pending request token or nil.
func (a *Authorization) RequestToken() *socialauth.RequestToken {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.requestToken
}

// configuredSigner returns the signer of a configured, not yet enabled
// strategy.
func (a *Authorization) configuredSigner() (*Signer, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.accessToken != nil {
		return nil, socialauth.IllegalState("access token already available")
	}
	if a.signer == nil {
		return nil, socialauth.IllegalState("consumer key/secret pair not set")
	}
	return a.signer, nil
}

// OAuthRequestToken performs the first handshake step and keeps the
// returned token pending for OAuthAccessToken.
func (a *Authorization) OAuthRequestToken(ctx context.Context, opts ...socialauth.RequestTokenOption) (*socialauth.RequestToken, error) {
	signer, err := a.configuredSigner()
	if err != nil {
		return nil, err
	}

	var p socialauth.RequestTokenParams
	for _, opt := range opts {
		opt(&p)
	}
	params := url.Values{}
	if p.CallbackURL != "" {
		params.Set("oauth_callback", p.CallbackURL)
	}
	if p.AccessType != "" {
		params.Set("x_auth_access_type", p.AccessType)
	}
	if p.XAuthMode != "" {
		params.Set("x_auth_mode", p.XAuthMode)
	}

	const op = "request token"
	resp, err := a.post(ctx, op, a.endpoints.RequestTokenURL, params, a.signWith(signer, nil))
	if err != nil {
		return nil, err
	}
	rt, err := socialauth.ParseRequestToken(string(resp.Body), a.endpoints.AuthorizationURL, a.endpoints.AuthenticationURL)
	if err != nil {
		log.WithError(err).Debug("error parsing request token response")
		return nil, socialauth.NewServiceError(op, resp, err)
	}

	a.mu.Lock()
	a.requestToken = rt
	a.mu.Unlock()
	return rt, nil
}

// OAuthAccessToken exchanges the pending (or given) request token and
// verifier for an access token, which is then used for signing.
func (a *Authorization) OAuthAccessToken(ctx context.Context, opts ...socialauth.AccessTokenOption) (*socialauth.AccessToken, error) {
	signer, err := a.configuredSigner()
	if err != nil {
		return nil, err
	}

	var p socialauth.AccessTokenParams
	for _, opt := range opts {
		opt(&p)
	}
	rt := p.RequestToken
	if rt == nil {
		rt = a.RequestToken()
	}
	if rt == nil {
		return nil, socialauth.IllegalState("no request token available")
	}

	params := url.Values{}
	if p.Verifier != "" {
		params.Set("oauth_verifier", p.Verifier)
	}
	return a.exchange(ctx, signer, params, &rt.OAuthToken)
}

// OAuthAccessTokenXAuth obtains an access token directly from user
// credentials. Deprecated by the provider and only available to approved
// applications.
func (a *Authorization) OAuthAccessTokenXAuth(ctx context.Context, screenName, password string) (*socialauth.AccessToken, error) {
	signer, err := a.configuredSigner()
	if err != nil {
		return nil, err
	}
	params := url.Values{
		"x_auth_username": {screenName},
		"x_auth_password": {password},
		"x_auth_mode":     {"client_auth"},
	}
	return a.exchange(ctx, signer, params, nil)
}

func (a *Authorization) exchange(ctx context.Context, signer *Signer, params url.Values, tok *socialauth.OAuthToken) (*socialauth.AccessToken, error) {
	const op = "access token"
	resp, err := a.post(ctx, op, a.endpoints.AccessTokenURL, params, a.signWith(signer, tok))
	if err != nil {
		return nil, err
	}
	at, err := socialauth.ParseAccessToken(string(resp.Body))
	if err != nil {
		log.WithError(err).Debug("error parsing access token response")
		return nil, socialauth.NewServiceError(op, resp, err)
	}
	if err := a.SetOAuthAccessToken(at); err != nil {
		return nil, err
	}
	log.WithField("user_id", at.UserID()).Debug("access token acquired")
	return at, nil
}

// SetOAuthAccessToken installs a stored access token, skipping the handshake.
func (a *Authorization) SetOAuthAccessToken(token *socialauth.AccessToken) error {
	if token == nil {
		return socialauth.ErrMalformedToken
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.accessToken != nil {
		return socialauth.IllegalState("access token already set")
	}
	a.accessToken = token
	a.requestToken = nil
	return nil
}

func (a *Authorization) post(ctx context.Context, op, endpoint string, params url.Values, auth socialauth.Authorization) (*socialauth.Response, error) {
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

func (a *Authorization) String() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	key := ""
	if a.signer != nil {
		key = a.signer.ConsumerKey()
	}
	return fmt.Sprintf("oauth1.Authorization{consumerKey=%s, consumerSecret=[REDACTED], accessToken=%v}", key, a.accessToken)
}
