package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/dghubble/oauth1"
	"github.com/dghubble/sling"
	"github.com/rs/zerolog"
)

const formContentType = "application/x-www-form-urlencoded"

var (
	// ErrUnsupportedMethod is returned for anything but GET and POST.
	ErrUnsupportedMethod = errors.New("unsupported method")
	// ErrTokenExchange wraps every failure of the xAuth exchange in Open.
	ErrTokenExchange = errors.New("error requesting OAuth token")
)

// StatusError is returned when the API answers with a status other than
// 200 or 201.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: invalid response: %d", e.Method, e.URL, e.StatusCode)
}

// Credentials are the consumer and account secrets used by the xAuth
// exchange.
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	Account        string
	Password       string
	AccessTokenURL string
}

// Session signs requests with the access token obtained in Open. The token
// is written once and only read afterwards.
type Session struct {
	config *oauth1.Config
	token  *oauth1.Token
	base   *http.Client
	http   *http.Client
	log    zerolog.Logger
}

type Option func(*Session)

// WithHTTPClient sets the client whose transport carries the signed
// requests.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) {
		if c != nil {
			s.base = c
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// Open exchanges the account credentials for an access token and returns a
// session that signs every request with it.
func Open(ctx context.Context, creds Credentials, opts ...Option) (*Session, error) {
	s := &Session{
		base: http.DefaultClient,
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.config = oauth1.NewConfig(creds.ConsumerKey, creds.ConsumerSecret)
	s.config.Endpoint = oauth1.Endpoint{AccessTokenURL: creds.AccessTokenURL}
	s.config.Signer = &oauth1.HMACSigner{ConsumerSecret: creds.ConsumerSecret}
	s.config.HTTPClient = s.base

	// The exchange itself is signed with the consumer secret only. oauth1
	// still writes the parameter, so the header carries oauth_token="".
	s.useToken(ctx, oauth1.NewToken("", ""))

	params := url.Values{}
	params.Set("x_auth_username", creds.Account)
	params.Set("x_auth_password", creds.Password)
	params.Set("x_auth_mode", "client_auth")

	body, err := s.Request(ctx, http.MethodPost, creds.AccessTokenURL, params)
	if err != nil {
		s.log.Error().Err(err).Msg("Error requesting OAuth token")
		return nil, fmt.Errorf("%w: %w", ErrTokenExchange, err)
	}

	values, err := url.ParseQuery(strings.TrimSpace(string(body)))
	if err != nil {
		s.log.Error().Err(err).Msg("Error requesting OAuth token")
		return nil, fmt.Errorf("%w: parsing token response: %w", ErrTokenExchange, err)
	}
	token, secret := values.Get("oauth_token"), values.Get("oauth_token_secret")
	if token == "" || secret == "" {
		s.log.Error().Msg("Error requesting OAuth token: response missing oauth_token or oauth_token_secret")
		return nil, fmt.Errorf("%w: response missing oauth_token or oauth_token_secret", ErrTokenExchange)
	}

	s.log.Info().Msg("Authentication successful")
	s.log.Debug().Str("oauth_token", token).Msg("access token received")

	s.useToken(ctx, oauth1.NewToken(token, secret))
	return s, nil
}

func (s *Session) useToken(ctx context.Context, t *oauth1.Token) {
	s.token = t
	s.http = s.config.Client(context.WithValue(ctx, oauth1.HTTPClient, s.base), t)
}

// Token returns the access token currently used for signing.
func (s *Session) Token() oauth1.Token {
	return *s.token
}

// Request sends a signed GET or POST to rawURL and returns the raw response
// body. POST params travel as a form body, GET params in the query string.
func (s *Session) Request(ctx context.Context, method, rawURL string, params url.Values) ([]byte, error) {
	return s.send(ctx, s.http, method, rawURL, params)
}

// RequestUnsigned behaves like Request without the OAuth signature.
func (s *Session) RequestUnsigned(ctx context.Context, method, rawURL string, params url.Values) ([]byte, error) {
	return s.send(ctx, s.base, method, rawURL, params)
}

func (s *Session) send(ctx context.Context, client *http.Client, method, rawURL string, params url.Values) ([]byte, error) {
	s.log.Debug().
		Str("url", rawURL).
		Str("method", method).
		Str("body", redact(params).Encode()).
		Msg("request")

	sl := sling.New().Doer(client).ResponseDecoder(rawDecoder{})
	switch strings.ToUpper(method) {
	case http.MethodPost:
		sl = sl.Post(rawURL)
		if len(params) > 0 {
			sl = sl.Body(strings.NewReader(params.Encode())).Set("Content-Type", formContentType)
		}
	case http.MethodGet:
		target, err := withQuery(rawURL, params)
		if err != nil {
			return nil, err
		}
		sl = sl.Get(target)
	default:
		s.log.Error().Str("method", method).Msg("Invalid method")
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}

	req, err := sl.Request()
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	var body []byte
	resp, err := sl.Do(req.WithContext(ctx), &body, &body)
	if err != nil {
		return nil, fmt.Errorf("request to %s: %w", rawURL, err)
	}

	s.log.Debug().Int("status", resp.StatusCode).Bytes("content", body).Msg("response")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		s.log.Error().Int("status", resp.StatusCode).Str("url", rawURL).Msg("Invalid response")
		return nil, &StatusError{Method: req.Method, URL: rawURL, StatusCode: resp.StatusCode, Body: body}
	}
	return body, nil
}

func withQuery(rawURL string, params url.Values) (string, error) {
	if len(params) == 0 {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing url: %w", err)
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func redact(params url.Values) url.Values {
	if params.Get("x_auth_password") == "" {
		return params
	}
	out := make(url.Values, len(params))
	for k, v := range params {
		out[k] = v
	}
	out.Set("x_auth_password", "********")
	return out
}

// rawDecoder hands the response body back unparsed.
type rawDecoder struct{}

func (rawDecoder) Decode(resp *http.Response, v interface{}) error {
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	*(v.(*[]byte)) = b
	return nil
}
