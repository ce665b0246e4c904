package oauth2

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vatsimnerd/socialauth"
	xoauth2 "golang.org/x/oauth2"
)

const (
	testConsumerKey    = "xvz1evFS4wEEPTGEFPHBog"
	testConsumerSecret = "L8qq9PZyRg6ieKGEKhZolGC0vJWLw8iEJ88DRdyOg"
	testBearer         = "AAAA/AAA=AAAAAAAA"
)

var testBasic = "Basic " + base64.StdEncoding.EncodeToString([]byte(testConsumerKey+":"+testConsumerSecret))

type fakeProvider struct {
	mu               sync.Mutex
	tokenCalls       int
	scope            string
	invalidated      []string
	invalidateCode   int
	tokenCode        int
	tokenBody        string
	apiAuthorization string
}

func (p *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch r.URL.Path {
	case "/oauth2/token":
		p.tokenCalls++
		if r.Header.Get("Authorization") != testBasic || r.FormValue("grant_type") != "client_credentials" {
			http.Error(w, `{"errors":[{"code":99,"message":"Unable to verify your credentials"}]}`, http.StatusForbidden)
			return
		}
		if p.tokenCode != 0 {
			http.Error(w, "unavailable", p.tokenCode)
			return
		}
		p.scope = r.FormValue("scope")
		body := p.tokenBody
		if body == "" {
			body = `{"token_type":"bearer","access_token":"AAAA%2FAAA%3DAAAAAAAA"}`
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))

	case "/oauth2/invalidate_token":
		if r.Header.Get("Authorization") != testBasic {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if p.invalidateCode != 0 {
			http.Error(w, "unavailable", p.invalidateCode)
			return
		}
		p.invalidated = append(p.invalidated, r.FormValue("access_token"))
		w.Write([]byte(`{"access_token":"AAAA%2FAAA%3DAAAAAAAA"}`))

	case "/api":
		p.apiAuthorization = r.Header.Get("Authorization")
		w.Write([]byte("ok"))

	default:
		http.NotFound(w, r)
	}
}

func newTestAuthorization(t *testing.T, opts ...Option) (*Authorization, *fakeProvider, *httptest.Server) {
	p := &fakeProvider{}
	server := httptest.NewServer(p)
	t.Cleanup(server.Close)

	opts = append([]Option{
		WithHTTPClient(server.Client()),
		WithEndpoints(Endpoints{
			TokenURL:           server.URL + "/oauth2/token",
			InvalidateTokenURL: server.URL + "/oauth2/invalidate_token",
		}),
	}, opts...)
	return New(testConsumerKey, testConsumerSecret, opts...), p, server
}

func TestAuthorizationHeaderStates(t *testing.T) {
	assert.Equal(t, "", New("", "").AuthorizationHeader(nil))

	a := New(testConsumerKey, testConsumerSecret)
	assert.Equal(t, testBasic, a.AuthorizationHeader(nil))
	assert.False(t, a.IsEnabled())

	escaped := New("key with space", "s&cret")
	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("key%20with%20space:s%26cret"))
	assert.Equal(t, want, escaped.AuthorizationHeader(nil))

	token, err := socialauth.NewOAuth2Token("bearer", testBearer)
	require.NoError(t, err)
	require.NoError(t, a.SetOAuth2Token(token))
	assert.Equal(t, "Bearer AAAA%2FAAA%3DAAAAAAAA", a.AuthorizationHeader(nil))
	assert.True(t, a.IsEnabled())
}

func TestOAuth2Token(t *testing.T) {
	a, p, _ := newTestAuthorization(t, WithScope("read"))
	ctx := context.Background()

	token, err := a.OAuth2Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bearer", token.TokenType())
	assert.Equal(t, testBearer, token.AccessToken())
	assert.True(t, a.IsEnabled())
	assert.Same(t, token, a.Token())
	assert.Equal(t, "read", p.scope)

	_, err = a.OAuth2Token(ctx)
	assert.ErrorIs(t, err, socialauth.ErrIllegalState)
	assert.Equal(t, 1, p.tokenCalls)

	assert.ErrorIs(t, a.SetOAuthConsumer("other", "other"), socialauth.ErrIllegalState)
	assert.ErrorIs(t, a.SetOAuth2Token(token), socialauth.ErrIllegalState)
}

func TestOAuth2TokenUnconfigured(t *testing.T) {
	_, err := New("", "").OAuth2Token(context.Background())
	assert.ErrorIs(t, err, socialauth.ErrIllegalState)
}

func TestOAuth2TokenServiceError(t *testing.T) {
	t.Run("rejected credentials", func(t *testing.T) {
		a, _, _ := newTestAuthorization(t)
		require.NoError(t, a.SetOAuthConsumer(testConsumerKey, "wrong"))

		_, err := a.OAuth2Token(context.Background())
		var se *socialauth.ServiceError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusForbidden, se.StatusCode)
		assert.Contains(t, se.Body, "Unable to verify your credentials")
		assert.True(t, se.Unauthorized())
		assert.False(t, a.IsEnabled())
	})

	t.Run("server failure", func(t *testing.T) {
		a, p, _ := newTestAuthorization(t)
		p.tokenCode = http.StatusInternalServerError

		_, err := a.OAuth2Token(context.Background())
		var se *socialauth.ServiceError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
		assert.Contains(t, se.Body, "unavailable")
		assert.False(t, se.Unauthorized())
	})

	t.Run("missing access token", func(t *testing.T) {
		a, p, _ := newTestAuthorization(t)
		p.tokenBody = `{"token_type":"bearer"}`

		_, err := a.OAuth2Token(context.Background())
		var se *socialauth.ServiceError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, "bearer token", se.Op)
		assert.False(t, a.IsEnabled())
	})

	t.Run("unreachable", func(t *testing.T) {
		a, _, server := newTestAuthorization(t)
		server.Close()

		_, err := a.OAuth2Token(context.Background())
		var se *socialauth.ServiceError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, 0, se.StatusCode)
		assert.False(t, a.IsEnabled())
	})
}

func TestInvalidateOAuth2Token(t *testing.T) {
	a, p, _ := newTestAuthorization(t)
	ctx := context.Background()

	assert.ErrorIs(t, a.InvalidateOAuth2Token(ctx), socialauth.ErrIllegalState)

	_, err := a.OAuth2Token(ctx)
	require.NoError(t, err)

	require.NoError(t, a.InvalidateOAuth2Token(ctx))
	assert.Equal(t, []string{testBearer}, p.invalidated)
	assert.False(t, a.IsEnabled())
	assert.Nil(t, a.Token())
	assert.Equal(t, testBasic, a.AuthorizationHeader(nil))

	assert.ErrorIs(t, a.InvalidateOAuth2Token(ctx), socialauth.ErrIllegalState)

	_, err = a.OAuth2Token(ctx)
	require.NoError(t, err, "a new token can be fetched after invalidation")
}

func TestInvalidateOAuth2TokenRollback(t *testing.T) {
	a, p, server := newTestAuthorization(t)
	ctx := context.Background()

	_, err := a.OAuth2Token(ctx)
	require.NoError(t, err)
	before := a.AuthorizationHeader(nil)

	p.invalidateCode = http.StatusServiceUnavailable
	err = a.InvalidateOAuth2Token(ctx)
	var se *socialauth.ServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)

	assert.True(t, a.IsEnabled())
	assert.Equal(t, before, a.AuthorizationHeader(nil))
	assert.Equal(t, "Bearer AAAA%2FAAA%3DAAAAAAAA", before)

	server.Close()
	err = a.InvalidateOAuth2Token(ctx)
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 0, se.StatusCode)
	assert.True(t, a.IsEnabled())
	assert.Equal(t, before, a.AuthorizationHeader(nil))
}

func TestTokenSource(t *testing.T) {
	a, p, server := newTestAuthorization(t)
	ctx := context.WithValue(context.Background(), xoauth2.HTTPClient, server.Client())

	client := xoauth2.NewClient(ctx, a.TokenSource(ctx))
	resp, err := client.Get(server.URL + "/api")
	require.NoError(t, err)
	defer resp.Body.Close()
	_, err = io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, "Bearer "+testBearer, p.apiAuthorization)
	assert.True(t, a.IsEnabled())

	tok, err := a.TokenSource(ctx).Token()
	require.NoError(t, err)
	assert.Equal(t, testBearer, tok.AccessToken)
	assert.Equal(t, 1, p.tokenCalls)
}

func TestTokenSourceError(t *testing.T) {
	a, _, _ := newTestAuthorization(t)
	require.NoError(t, a.SetOAuthConsumer(testConsumerKey, "wrong"))

	_, err := a.TokenSource(context.Background()).Token()
	var se *socialauth.ServiceError
	assert.True(t, errors.As(err, &se))
}

func TestStringRedactsSecret(t *testing.T) {
	a := New(testConsumerKey, testConsumerSecret)
	token, err := socialauth.NewOAuth2Token("bearer", testBearer)
	require.NoError(t, err)
	require.NoError(t, a.SetOAuth2Token(token))

	assert.NotContains(t, a.String(), testConsumerSecret)
	assert.NotContains(t, a.String(), testBearer)
}
