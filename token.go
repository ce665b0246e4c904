package socialauth

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	dghubble "github.com/dghubble/oauth1"
	"golang.org/x/oauth2"
)

const redacted = "[REDACTED]"

// OAuthToken is the token/secret pair shared by request and access tokens.
type OAuthToken struct {
	token       string
	tokenSecret string
	raw         string
}

// NewOAuthToken builds a token from caller supplied values.
func NewOAuthToken(token, tokenSecret string) (OAuthToken, error) {
	if token == "" {
		return OAuthToken{}, fmt.Errorf("%w: token is empty", ErrMalformedToken)
	}
	if tokenSecret == "" {
		return OAuthToken{}, fmt.Errorf("%w: token secret is empty", ErrMalformedToken)
	}
	return OAuthToken{token: token, tokenSecret: tokenSecret}, nil
}

// parseOAuthToken reads oauth_token and oauth_token_secret from a
// key=value&key=value response body. Values are taken raw.
func parseOAuthToken(body string) (OAuthToken, error) {
	tok := OAuthToken{raw: body}
	var ok bool
	if tok.token, ok = responseParameter(body, "oauth_token"); !ok || tok.token == "" {
		return OAuthToken{}, fmt.Errorf("%w: oauth_token", ErrMissingParameter)
	}
	if tok.tokenSecret, ok = responseParameter(body, "oauth_token_secret"); !ok || tok.tokenSecret == "" {
		return OAuthToken{}, fmt.Errorf("%w: oauth_token_secret", ErrMissingParameter)
	}
	return tok, nil
}

func responseParameter(body, name string) (string, bool) {
	for _, pair := range strings.Split(strings.TrimSpace(body), "&") {
		key, value, found := strings.Cut(pair, "=")
		if found && key == name {
			return value, true
		}
	}
	return "", false
}

func (t OAuthToken) Token() string {
	return t.token
}

func (t OAuthToken) TokenSecret() string {
	return t.tokenSecret
}

// Parameter returns a raw parameter of the provider response the token was
// parsed from, or "" if absent.
func (t OAuthToken) Parameter(name string) string {
	v, _ := responseParameter(t.raw, name)
	return v
}

// Equal compares tokens by token and secret only.
func (t OAuthToken) Equal(other OAuthToken) bool {
	return t.token == other.token && t.tokenSecret == other.tokenSecret
}

func (t OAuthToken) String() string {
	return "OAuthToken{token=" + t.token + ", tokenSecret=" + redacted + "}"
}

// RequestToken is the unauthorized token issued by the first handshake step.
type RequestToken struct {
	OAuthToken
	authorizationBase  string
	authenticationBase string
}

func NewRequestToken(token, tokenSecret, authorizationBase, authenticationBase string) (*RequestToken, error) {
	t, err := NewOAuthToken(token, tokenSecret)
	if err != nil {
		return nil, err
	}
	return &RequestToken{OAuthToken: t, authorizationBase: authorizationBase, authenticationBase: authenticationBase}, nil
}

// ParseRequestToken parses a request token response body. The base URLs are
// used to derive AuthorizationURL and AuthenticationURL.
func ParseRequestToken(body, authorizationBase, authenticationBase string) (*RequestToken, error) {
	t, err := parseOAuthToken(body)
	if err != nil {
		return nil, err
	}
	return &RequestToken{OAuthToken: t, authorizationBase: authorizationBase, authenticationBase: authenticationBase}, nil
}

// AuthorizationURL is where the user is sent to grant access.
func (t *RequestToken) AuthorizationURL() string {
	return t.authorizationBase + "?oauth_token=" + t.token
}

// AuthenticationURL is the "sign in with" variant of AuthorizationURL.
func (t *RequestToken) AuthenticationURL() string {
	return t.authenticationBase + "?oauth_token=" + t.token
}

func (t *RequestToken) String() string {
	return "RequestToken{token=" + t.token + ", tokenSecret=" + redacted + "}"
}

// UnknownUserID is the user id of an access token that does not know its owner.
const UnknownUserID int64 = -1

// AccessToken authorizes calls on behalf of one user.
type AccessToken struct {
	OAuthToken
	screenName string
	userID     int64
}

// NewAccessToken builds an access token from a stored pair. The user id is
// taken from the "<userID>-" prefix of the token when there is one.
func NewAccessToken(token, tokenSecret string) (*AccessToken, error) {
	t, err := NewOAuthToken(token, tokenSecret)
	if err != nil {
		return nil, err
	}
	at := &AccessToken{OAuthToken: t, userID: UnknownUserID}
	if prefix, _, found := strings.Cut(token, "-"); found {
		if id, err := strconv.ParseInt(prefix, 10, 64); err == nil {
			at.userID = id
		}
	}
	return at, nil
}

// NewAccessTokenForUser builds an access token with an authoritative user id.
func NewAccessTokenForUser(token, tokenSecret string, userID int64) (*AccessToken, error) {
	t, err := NewOAuthToken(token, tokenSecret)
	if err != nil {
		return nil, err
	}
	return &AccessToken{OAuthToken: t, userID: userID}, nil
}

// ParseAccessToken parses an access token response body. user_id and
// screen_name are optional.
func ParseAccessToken(body string) (*AccessToken, error) {
	t, err := parseOAuthToken(body)
	if err != nil {
		return nil, err
	}
	at := &AccessToken{OAuthToken: t, userID: UnknownUserID}
	at.screenName, _ = responseParameter(body, "screen_name")
	if s, ok := responseParameter(body, "user_id"); ok && s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user_id %q: %w", s, err)
		}
		at.userID = id
	}
	return at, nil
}

// ScreenName is "" when unknown.
func (t *AccessToken) ScreenName() string {
	return t.screenName
}

// UserID is UnknownUserID when unknown.
func (t *AccessToken) UserID() int64 {
	return t.userID
}

func (t *AccessToken) String() string {
	return fmt.Sprintf("AccessToken{token=%s, tokenSecret=%s, screenName=%s, userID=%d}",
		t.token, redacted, t.screenName, t.userID)
}

// OAuth2Token is an application-only bearer token.
type OAuth2Token struct {
	tokenType   string
	accessToken string
}

type oauth2TokenResponse struct {
	TokenType   string `json:"token_type"`
	AccessToken string `json:"access_token"`
}

func NewOAuth2Token(tokenType, accessToken string) (*OAuth2Token, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("%w: access token is empty", ErrMalformedToken)
	}
	return &OAuth2Token{tokenType: tokenType, accessToken: accessToken}, nil
}

// ParseOAuth2Token decodes a {"token_type", "access_token"} JSON body. The
// access token arrives percent-encoded and is stored decoded.
func ParseOAuth2Token(body []byte) (*OAuth2Token, error) {
	var tr oauth2TokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("failed to parse bearer token response: %w", err)
	}
	return decodeOAuth2Token(tr.TokenType, tr.AccessToken)
}

// OAuth2TokenFromOAuth2 converts a token fetched through golang.org/x/oauth2,
// decoding its percent-encoded access token.
func OAuth2TokenFromOAuth2(tok *oauth2.Token) (*OAuth2Token, error) {
	if tok == nil {
		return nil, fmt.Errorf("%w: token is nil", ErrMalformedToken)
	}
	return decodeOAuth2Token(tok.TokenType, tok.AccessToken)
}

func decodeOAuth2Token(tokenType, encoded string) (*OAuth2Token, error) {
	if encoded == "" {
		return nil, fmt.Errorf("%w: access_token", ErrMissingParameter)
	}
	accessToken, err := url.QueryUnescape(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode access_token: %w", err)
	}
	return NewOAuth2Token(tokenType, accessToken)
}

func (t *OAuth2Token) TokenType() string {
	return t.tokenType
}

func (t *OAuth2Token) AccessToken() string {
	return t.accessToken
}

// AuthorizationHeader returns "Bearer <percent-encoded token>".
func (t *OAuth2Token) AuthorizationHeader() string {
	return "Bearer " + dghubble.PercentEncode(t.accessToken)
}

// ToOAuth2Token converts the token for use with golang.org/x/oauth2 clients.
func (t *OAuth2Token) ToOAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken: t.accessToken,
		TokenType:   t.tokenType,
	}
}

func (t *OAuth2Token) Equal(other *OAuth2Token) bool {
	if t == nil || other == nil {
		return t == other
	}
	return *t == *other
}

func (t *OAuth2Token) String() string {
	return "OAuth2Token{tokenType=" + t.tokenType + ", accessToken=" + redacted + "}"
}
