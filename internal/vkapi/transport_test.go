package vkapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/dmitrijs2005/vksync/internal/logging"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPTransport_Do(t *testing.T) {
	var gotPath string
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		_, _ = io.WriteString(w, `{"response":[{"id":1,"first_name":"Ann"}]}`)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL+"/", time.Second)
	got, err := tr.Do(context.Background(), "tok", "users.get", url.Values{"user_ids": {"1"}, "v": {"5.131"}})
	require.NoError(t, err)

	assert.Equal(t, "/method/users.get", gotPath)
	assert.Equal(t, "tok", gotForm.Get("access_token"))
	assert.Equal(t, "1", gotForm.Get("user_ids"))
	assert.Equal(t, []any{map[string]any{"id": json.Number("1"), "first_name": "Ann"}}, got)
}

func TestHTTPTransport_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "error envelope",
			status: http.StatusOK,
			body:   `{"error":{"error_code":6,"error_msg":"Too many requests per second"}}`,
			check: func(t *testing.T, err error) {
				var e *Error
				require.ErrorAs(t, err, &e)
				assert.Equal(t, CodeTooManyRequests, e.Code)
				assert.Equal(t, "users.get", e.Method)
				assert.Equal(t, "1", e.Params.Get("user_ids"))
			},
		},
		{
			name:   "server error",
			status: http.StatusBadGateway,
			body:   "bad gateway",
			check: func(t *testing.T, err error) {
				var e *HTTPError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, http.StatusBadGateway, e.StatusCode)
				assert.True(t, IsTransient(err))
			},
		},
		{
			name:   "not json",
			status: http.StatusOK,
			body:   "<html>",
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrMalformedResponse)
				assert.False(t, IsTransient(err))
			},
		},
		{
			name:   "no response key",
			status: http.StatusOK,
			body:   `{}`,
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrMalformedResponse)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewHTTPTransport(srv.URL, time.Second).Do(context.Background(), "tok", "users.get", url.Values{"user_ids": {"1"}})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestHTTPTransport_ConnectionRefusedIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := NewHTTPTransport(addr, time.Second).Do(context.Background(), "", "users.get", nil)
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

type failingTransport struct {
	err   error
	calls int
}

func (f *failingTransport) Do(context.Context, string, string, url.Values) (any, error) {
	f.calls++
	return nil, f.err
}

func TestBreakerTransport_OpensOnTransientFailures(t *testing.T) {
	next := &failingTransport{err: &HTTPError{StatusCode: 503}}
	b := NewBreakerTransport(next, "test-open", time.Minute, logging.NewNopLogger())

	for i := 0; i < 5; i++ {
		_, err := b.Do(context.Background(), "", "users.get", nil)
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := b.Do(context.Background(), "", "users.get", nil)
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.True(t, IsTransient(err))
	assert.Equal(t, 5, next.calls, "open breaker short-circuits")
}

func TestBreakerTransport_RemoteErrorsKeepItClosed(t *testing.T) {
	next := &failingTransport{err: &Error{Code: CodeTooManyRequests}}
	b := NewBreakerTransport(next, "test-closed", time.Minute, logging.NewNopLogger())

	for i := 0; i < 10; i++ {
		_, err := b.Do(context.Background(), "", "users.get", nil)
		var e *Error
		require.True(t, errors.As(err, &e))
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
	assert.Equal(t, 10, next.calls)
}
