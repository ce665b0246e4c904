package socialauth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	log = logrus.WithField("module", "socialauth")
)

// AuthorizationFunc adapts a function to the Authorization interface. It is
// always enabled.
type AuthorizationFunc func(req *Request) string

func (f AuthorizationFunc) AuthorizationHeader(req *Request) string {
	return f(req)
}

func (f AuthorizationFunc) IsEnabled() bool {
	return true
}

// Response is a provider response read in full.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// PostForm sends params as an urlencoded POST to endpoint. auth, if not nil,
// is asked for the Authorization header. Only transport failures are returned
// as errors; the caller interprets the status code.
func PostForm(ctx context.Context, client *http.Client, endpoint string, params url.Values, auth Authorization) (*Response, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		log.WithError(err).Debug("error creating request")
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if auth != nil {
		if h := auth.AuthorizationHeader(&Request{Method: http.MethodPost, URL: endpoint, Params: params}); h != "" {
			req.Header.Set("Authorization", h)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		log.WithError(err).Debug("error sending request")
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		log.WithError(err).Debug("error reading response body")
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// Transport is an http.RoundTripper that adds the Authorization header
// produced by Authorization to every request it sends.
type Transport struct {
	// Base is the RoundTripper used to send requests. If nil,
	// http.DefaultTransport is used.
	Base          http.RoundTripper
	Authorization Authorization
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Authorization == nil {
		return nil, fmt.Errorf("socialauth: Transport's Authorization is nil")
	}
	req2 := cloneRequest(req)
	r, err := RequestFromHTTP(req2)
	if err != nil {
		log.WithError(err).Debug("error reading request parameters")
		return nil, err
	}
	if h := t.Authorization.AuthorizationHeader(r); h != "" {
		req2.Header.Set("Authorization", h)
	}
	return t.base().RoundTrip(req2)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// NewHTTPClient returns a client sending requests through a Transport for
// auth. The timeout and transport of base are kept when base is not nil.
func NewHTTPClient(auth Authorization, base *http.Client) *http.Client {
	c := &http.Client{}
	if base != nil {
		*c = *base
	}
	c.Transport = &Transport{Base: c.Transport, Authorization: auth}
	return c
}

// cloneRequest returns a shallow copy of req with its own Header map.
func cloneRequest(req *http.Request) *http.Request {
	r2 := new(http.Request)
	*r2 = *req
	r2.Header = make(http.Header, len(req.Header))
	for k, s := range req.Header {
		r2.Header[k] = append([]string(nil), s...)
	}
	return r2
}
