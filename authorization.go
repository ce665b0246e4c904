// Package socialauth implements request authorization for the social network
// REST API: OAuth 1.0a signing, OAuth 2 application-only bearer tokens and
// HTTP Basic, behind a single Authorization capability.
package socialauth

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Authorization produces the Authorization header for outgoing requests.
type Authorization interface {
	// AuthorizationHeader returns the header value for req, or "" when the
	// strategy has nothing to send.
	AuthorizationHeader(req *Request) string
	// IsEnabled reports whether the strategy holds usable credentials.
	IsEnabled() bool
}

// OAuthSupport is implemented by strategies driving the OAuth 1.0a
// three-legged handshake.
type OAuthSupport interface {
	SetOAuthConsumer(consumerKey, consumerSecret string) error
	OAuthRequestToken(ctx context.Context, opts ...RequestTokenOption) (*RequestToken, error)
	OAuthAccessToken(ctx context.Context, opts ...AccessTokenOption) (*AccessToken, error)
	OAuthAccessTokenXAuth(ctx context.Context, screenName, password string) (*AccessToken, error)
	SetOAuthAccessToken(token *AccessToken) error
}

// OAuth2Support is implemented by strategies driving the application-only
// client credentials flow.
type OAuth2Support interface {
	SetOAuthConsumer(consumerKey, consumerSecret string) error
	OAuth2Token(ctx context.Context) (*OAuth2Token, error)
	SetOAuth2Token(token *OAuth2Token) error
	InvalidateOAuth2Token(ctx context.Context) error
}

// Request is the part of an outgoing HTTP request a strategy needs to see.
// Params holds both query and form body parameters.
type Request struct {
	Method string
	URL    string
	Params url.Values
}

// RequestTokenParams are the optional parameters of the request token step.
type RequestTokenParams struct {
	CallbackURL string
	AccessType  string
	XAuthMode   string
}

type RequestTokenOption func(*RequestTokenParams)

// WithCallbackURL sets oauth_callback. Use "oob" for PIN based flows.
func WithCallbackURL(callbackURL string) RequestTokenOption {
	return func(p *RequestTokenParams) {
		p.CallbackURL = callbackURL
	}
}

// WithAccessType sets x_auth_access_type ("read" or "write").
func WithAccessType(accessType string) RequestTokenOption {
	return func(p *RequestTokenParams) {
		p.AccessType = accessType
	}
}

func WithXAuthMode(mode string) RequestTokenOption {
	return func(p *RequestTokenParams) {
		p.XAuthMode = mode
	}
}

// AccessTokenParams are the optional parameters of the access token exchange.
type AccessTokenParams struct {
	RequestToken *RequestToken
	Verifier     string
}

type AccessTokenOption func(*AccessTokenParams)

// WithRequestToken exchanges the given request token instead of the pending one.
func WithRequestToken(token *RequestToken) AccessTokenOption {
	return func(p *AccessTokenParams) {
		p.RequestToken = token
	}
}

// WithVerifier sets oauth_verifier, the PIN or callback verifier.
func WithVerifier(verifier string) AccessTokenOption {
	return func(p *AccessTokenParams) {
		p.Verifier = verifier
	}
}

// RequestFromHTTP builds a Request from req. Query parameters and an
// application/x-www-form-urlencoded body are collected; the body is restored
// so req can still be sent.
func RequestFromHTTP(req *http.Request) (*Request, error) {
	u := *req.URL
	params := u.Query()
	u.RawQuery = ""
	u.Fragment = ""

	if req.Body != nil && req.Body != http.NoBody && isFormEncoded(req.Header.Get("Content-Type")) {
		data, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
		req.Body = io.NopCloser(bytes.NewReader(data))
		form, err := url.ParseQuery(string(data))
		if err != nil {
			return nil, err
		}
		for k, vs := range form {
			for _, v := range vs {
				params.Add(k, v)
			}
		}
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	return &Request{Method: method, URL: u.String(), Params: params}, nil
}

func isFormEncoded(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(contentType), "application/x-www-form-urlencoded")
}

// BasicAuthorization sends HTTP Basic credentials on every request.
type BasicAuthorization struct {
	userID   string
	password string
	digest   string
}

func NewBasicAuthorization(userID, password string) *BasicAuthorization {
	return &BasicAuthorization{
		userID:   userID,
		password: password,
		digest:   base64.StdEncoding.EncodeToString([]byte(userID + ":" + password)),
	}
}

func (a *BasicAuthorization) UserID() string {
	return a.userID
}

func (a *BasicAuthorization) Password() string {
	return a.password
}

func (a *BasicAuthorization) AuthorizationHeader(*Request) string {
	return "Basic " + a.digest
}

func (a *BasicAuthorization) IsEnabled() bool {
	return true
}

func (a *BasicAuthorization) String() string {
	return "BasicAuthorization{userID=" + a.userID + ", password=" + redacted + "}"
}

// NullAuthorization carries no credentials and never produces a header.
type NullAuthorization struct{}

// Null is the shared disabled strategy.
var Null Authorization = NullAuthorization{}

func (NullAuthorization) AuthorizationHeader(*Request) string {
	return ""
}

func (NullAuthorization) IsEnabled() bool {
	return false
}

func (NullAuthorization) String() string {
	return "NullAuthorization{}"
}
