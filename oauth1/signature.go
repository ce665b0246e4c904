// Package oauth1 implements OAuth 1.0a request signing and the three-legged
// token handshake.
package oauth1

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	dghubble "github.com/dghubble/oauth1"
	"github.com/google/uuid"
)

type SignatureMethod string

const (
	HMACSHA1  SignatureMethod = "HMAC-SHA1"
	Plaintext SignatureMethod = "PLAINTEXT"

	Version = "1.0"
)

// Signer computes OAuth 1.0a signatures for one consumer. It is safe for
// concurrent use.
type Signer struct {
	consumerKey string
	method      SignatureMethod
	signer      dghubble.Signer
}

// plaintextSigner implements PLAINTEXT, which dghubble/oauth1 does not ship.
type plaintextSigner struct {
	consumerSecret string
}

func (s *plaintextSigner) Name() string {
	return string(Plaintext)
}

func (s *plaintextSigner) Sign(tokenSecret, _ string) (string, error) {
	return dghubble.PercentEncode(s.consumerSecret) + "&" + dghubble.PercentEncode(tokenSecret), nil
}

func NewSigner(consumerKey, consumerSecret string, method SignatureMethod) *Signer {
	if method == "" {
		method = HMACSHA1
	}
	var signer dghubble.Signer = &dghubble.HMACSigner{ConsumerSecret: consumerSecret}
	if method == Plaintext {
		signer = &plaintextSigner{consumerSecret: consumerSecret}
	}
	return &Signer{consumerKey: consumerKey, method: method, signer: signer}
}

func (s *Signer) ConsumerKey() string {
	return s.consumerKey
}

func (s *Signer) Method() SignatureMethod {
	return s.method
}

// AuthorizationHeader signs a request and returns the "OAuth ..." header
// value. token and tokenSecret are empty before an access or request token
// is known. realm is emitted first and not signed when not empty.
func (s *Signer) AuthorizationHeader(method, rawURL string, params url.Values, nonce string, timestamp int64, token, tokenSecret, realm string) (string, error) {
	oauthParams := s.protocolParams(nonce, timestamp, token)

	signed := url.Values{}
	for k, vs := range params {
		signed[k] = append(signed[k], vs...)
	}
	for k, vs := range oauthParams {
		signed[k] = append(signed[k], vs...)
	}

	signature, err := s.Sign(BaseString(method, rawURL, signed), tokenSecret)
	if err != nil {
		return "", err
	}
	oauthParams.Set("oauth_signature", signature)
	return formatHeader(realm, oauthParams), nil
}

func (s *Signer) protocolParams(nonce string, timestamp int64, token string) url.Values {
	p := url.Values{}
	p.Set("oauth_consumer_key", s.consumerKey)
	p.Set("oauth_signature_method", string(s.method))
	p.Set("oauth_timestamp", strconv.FormatInt(timestamp, 10))
	p.Set("oauth_nonce", nonce)
	p.Set("oauth_version", Version)
	if token != "" {
		p.Set("oauth_token", token)
	}
	return p
}

// Sign returns the base64 HMAC-SHA1 of baseString, or the bare key for
// PLAINTEXT. The key is the percent-encoded consumer secret and token secret
// joined by "&".
func (s *Signer) Sign(baseString, tokenSecret string) (string, error) {
	return s.signer.Sign(tokenSecret, baseString)
}

// BaseString builds the signature base string. Query parameters of rawURL
// are signed along with params.
func BaseString(method, rawURL string, params url.Values) string {
	all := url.Values{}
	for k, vs := range params {
		all[k] = append(all[k], vs...)
	}
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		if q, err := url.ParseQuery(rawURL[i+1:]); err == nil {
			for k, vs := range q {
				all[k] = append(all[k], vs...)
			}
		}
	}
	all.Del("oauth_signature")

	return strings.ToUpper(method) + "&" +
		dghubble.PercentEncode(NormalizeURL(rawURL)) + "&" +
		dghubble.PercentEncode(NormalizeParameters(all))
}

type pair struct {
	key, value string
}

func encodedPairs(params url.Values) []pair {
	pairs := make([]pair, 0, len(params))
	for k, vs := range params {
		ek := dghubble.PercentEncode(k)
		for _, v := range vs {
			pairs = append(pairs, pair{ek, dghubble.PercentEncode(v)})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].key != pairs[j].key {
			return pairs[i].key < pairs[j].key
		}
		return pairs[i].value < pairs[j].value
	})
	return pairs
}

// NormalizeParameters encodes, sorts and joins params as k=v&k=v.
func NormalizeParameters(params url.Values) string {
	var b strings.Builder
	for i, p := range encodedPairs(params) {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(p.key)
		b.WriteByte('=')
		b.WriteString(p.value)
	}
	return b.String()
}

// NormalizeURL strips query and fragment, lowercases scheme and host and
// drops the default port.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
			return rawURL[:i]
		}
		return rawURL
	}
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	if scheme == "http" {
		host = strings.TrimSuffix(host, ":80")
	} else if scheme == "https" {
		host = strings.TrimSuffix(host, ":443")
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return scheme + "://" + host + path
}

func formatHeader(realm string, oauthParams url.Values) string {
	var b strings.Builder
	b.WriteString("OAuth ")
	if realm != "" {
		b.WriteString(`realm="` + dghubble.PercentEncode(realm) + `", `)
	}
	for i, p := range encodedPairs(oauthParams) {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.key + `="` + p.value + `"`)
	}
	return b.String()
}

// NewNonce returns a random alphanumeric nonce.
func NewNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
