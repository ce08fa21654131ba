package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCreds = Credentials{
	ConsumerKey:    "ck",
	ConsumerSecret: "cs",
	Account:        "me@example.com",
	Password:       "hunter2",
}

// tokenServer answers the xAuth exchange on /oauth/access_token and hands
// every other request to next.
func tokenServer(t *testing.T, exchanges *int32, next http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/access_token" {
			atomic.AddInt32(exchanges, 1)
			w.Write([]byte("oauth_token=tok&oauth_token_secret=sec"))
			return
		}
		next(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func open(t *testing.T, srv *httptest.Server, opts ...Option) *Session {
	t.Helper()
	creds := testCreds
	creds.AccessTokenURL = srv.URL + "/oauth/access_token"
	s, err := Open(context.Background(), creds, opts...)
	require.NoError(t, err)
	return s
}

func TestOpen_ExchangesTokenOnce(t *testing.T) {
	var exchanges int32
	var gotForm map[string]string
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&exchanges, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, formContentType, r.Header.Get("Content-Type"))
		assert.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"x_auth_username": r.PostForm.Get("x_auth_username"),
			"x_auth_password": r.PostForm.Get("x_auth_password"),
			"x_auth_mode":     r.PostForm.Get("x_auth_mode"),
		}
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte("oauth_token=tok&oauth_token_secret=sec\n"))
	}))
	defer srv.Close()

	s := open(t, srv)

	assert.Equal(t, int32(1), atomic.LoadInt32(&exchanges))
	assert.Equal(t, map[string]string{
		"x_auth_username": "me@example.com",
		"x_auth_password": "hunter2",
		"x_auth_mode":     "client_auth",
	}, gotForm)
	assert.True(t, strings.HasPrefix(gotAuth, "OAuth "), "exchange must be signed: %q", gotAuth)
	assert.Contains(t, gotAuth, `oauth_consumer_key="ck"`)
	assert.Contains(t, gotAuth, `oauth_signature_method="HMAC-SHA1"`)
	assert.Contains(t, gotAuth, `oauth_token=""`)
	assert.NotContains(t, gotAuth, "x_auth_password")

	tok := s.Token()
	assert.Equal(t, "tok", tok.Token)
	assert.Equal(t, "sec", tok.TokenSecret)
}

func TestOpen_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		status  int
	}{
		{
			name: "rejected credentials",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte("Invalid xAuth credentials."))
			},
			status: http.StatusUnauthorized,
		},
		{
			name: "missing secret",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("oauth_token=tok"))
			},
		},
		{
			name: "unparsable body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("%zz"))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			creds := testCreds
			creds.AccessTokenURL = srv.URL
			s, err := Open(context.Background(), creds)
			require.Error(t, err)
			assert.Nil(t, s)
			assert.ErrorIs(t, err, ErrTokenExchange)

			if tt.status != 0 {
				var serr *StatusError
				require.True(t, errors.As(err, &serr))
				assert.Equal(t, tt.status, serr.StatusCode)
			}
		})
	}
}

func TestRequest_SignsWithAccessToken(t *testing.T) {
	var exchanges int32
	var gotAuth, gotBody string
	srv := tokenServer(t, &exchanges, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Write([]byte(`{"response":{}}`))
	})
	s := open(t, srv)

	params := map[string][]string{"id": {"1"}, "reblog_key": {"k"}}
	body, err := s.Request(context.Background(), "post", srv.URL+"/v2/user/unlike", params)
	require.NoError(t, err)
	assert.Equal(t, `{"response":{}}`, string(body))
	assert.Contains(t, gotAuth, `oauth_token="tok"`)
	assert.Equal(t, "id=1&reblog_key=k", gotBody)
	assert.Equal(t, int32(1), atomic.LoadInt32(&exchanges))
}

func TestRequest_GetParamsInQuery(t *testing.T) {
	var exchanges int32
	var gotQuery, gotMethod string
	srv := tokenServer(t, &exchanges, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{}`))
	})
	s := open(t, srv)

	_, err := s.Request(context.Background(), http.MethodGet, srv.URL+"/v2/blog/b/followers?limit=5", map[string][]string{"offset": {"20"}})
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, gotMethod)
	assert.Equal(t, "limit=5&offset=20", gotQuery)
}

func TestRequest_UnsupportedMethod(t *testing.T) {
	var exchanges, calls int32
	srv := tokenServer(t, &exchanges, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})
	s := open(t, srv)

	for _, method := range []string{http.MethodPut, http.MethodDelete, "PATCH", ""} {
		t.Run(method, func(t *testing.T) {
			body, err := s.Request(context.Background(), method, srv.URL+"/v2/user/likes", nil)
			assert.Nil(t, body)
			assert.ErrorIs(t, err, ErrUnsupportedMethod)
		})
	}
	assert.Zero(t, atomic.LoadInt32(&calls), "no request may reach the network")
}

func TestRequest_StatusPolicy(t *testing.T) {
	tests := []struct {
		status int
		ok     bool
	}{
		{http.StatusOK, true},
		{http.StatusCreated, true},
		{http.StatusAccepted, false},
		{http.StatusNotFound, false},
		{http.StatusInternalServerError, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var exchanges int32
			srv := tokenServer(t, &exchanges, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"meta":{"status":0}}`))
			})
			s := open(t, srv)

			body, err := s.Request(context.Background(), http.MethodPost, srv.URL+"/v2/user/likes", nil)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, `{"meta":{"status":0}}`, string(body))
				return
			}
			assert.Nil(t, body)
			var serr *StatusError
			require.True(t, errors.As(err, &serr), "expected *StatusError, got %v", err)
			assert.Equal(t, tt.status, serr.StatusCode)
			assert.Equal(t, http.MethodPost, serr.Method)
		})
	}
}

func TestRequest_TransportError(t *testing.T) {
	var exchanges int32
	srv := tokenServer(t, &exchanges, func(w http.ResponseWriter, r *http.Request) {})
	s := open(t, srv)

	_, err := s.Request(context.Background(), http.MethodGet, "http://127.0.0.1:0/unreachable", nil)
	require.Error(t, err)
	var serr *StatusError
	assert.False(t, errors.As(err, &serr))
}

func TestRequestUnsigned(t *testing.T) {
	var exchanges int32
	var gotAuth string
	srv := tokenServer(t, &exchanges, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte("plain"))
	})
	s := open(t, srv)

	body, err := s.RequestUnsigned(context.Background(), http.MethodGet, srv.URL+"/public", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain", string(body))
	assert.Empty(t, gotAuth)
}

func TestOpen_DebugLogRedactsPassword(t *testing.T) {
	var exchanges int32
	srv := tokenServer(t, &exchanges, func(w http.ResponseWriter, r *http.Request) {})

	var buf bytes.Buffer
	open(t, srv, WithLogger(zerolog.New(&buf).Level(zerolog.DebugLevel)))

	assert.NotContains(t, buf.String(), "hunter2")
	assert.Contains(t, buf.String(), "x_auth_username=me%40example.com")
	assert.Contains(t, buf.String(), "Authentication successful")
}

func TestWithHTTPClient(t *testing.T) {
	var exchanges, routed int32
	srv := tokenServer(t, &exchanges, func(w http.ResponseWriter, r *http.Request) {})

	client := &http.Client{Transport: countingTransport{n: &routed}}
	open(t, srv, WithHTTPClient(client))

	assert.Equal(t, int32(1), atomic.LoadInt32(&routed), "the exchange must use the injected transport")
}

type countingTransport struct{ n *int32 }

func (c countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	atomic.AddInt32(c.n, 1)
	return http.DefaultTransport.RoundTrip(req)
}
