package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	c := New(cfg, zap.NewNop())
	c.lookupHost = func(_ context.Context, host string) ([]string, error) {
		return []string{"127.0.0.1"}, nil
	}
	return c
}

func TestFetchRejectsMalformedURLs(t *testing.T) {
	c := newTestClient(t, Config{})
	lookups := 0
	c.lookupHost = func(_ context.Context, _ string) ([]string, error) {
		lookups++
		return nil, nil
	}

	for _, raw := range []string{"", "not a url", "ftp://example.com/a", "http://"} {
		_, err := c.Fetch(context.Background(), raw)
		require.ErrorIs(t, err, ErrMalformedURL, "url %q", raw)
	}
	require.Zero(t, lookups, "no DNS lookup for malformed URLs")
}

func TestFetchResolutionFailureIsNotRetried(t *testing.T) {
	c := New(Config{MaxRetries: 3}, zap.NewNop())
	lookups := 0
	c.lookupHost = func(_ context.Context, _ string) ([]string, error) {
		lookups++
		return nil, errors.New("no such host")
	}

	_, err := c.Fetch(context.Background(), "http://nonexistent.example.invalid/a")
	require.ErrorIs(t, err, ErrResolution)
	require.Equal(t, 1, lookups)

	_, ok := KindOf(err)
	require.False(t, ok, "resolution failures carry no retryable kind")
}

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer srv.Close()

	c := newTestClient(t, Config{MaxRetries: 1})
	page, err := c.Fetch(context.Background(), srv.URL+"/article/1.html")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, page.StatusCode)
	require.Contains(t, string(page.Body), "hello")
	require.Equal(t, srv.URL+"/article/1.html", page.URL)
	require.NotZero(t, page.Duration)
}

func TestFetchSendsExtraHeaders(t *testing.T) {
	var gotAccept, gotLang, gotReferer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		gotLang = r.Header.Get("Accept-Language")
		gotReferer = r.Header.Get("Referer")
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := newTestClient(t, Config{
		MaxRetries: 1,
		ExtraHeaders: map[string]string{
			"Accept":          "text/html,application/xhtml+xml",
			"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8",
		},
	})
	_, err := c.Fetch(context.Background(), srv.URL+"/a.html")
	require.NoError(t, err)
	require.Equal(t, "text/html,application/xhtml+xml", gotAccept)
	require.Equal(t, "zh-CN,zh;q=0.9,en;q=0.8", gotLang)
	require.Equal(t, srv.URL+"/", gotReferer)
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	c := newTestClient(t, Config{MaxRetries: 3, RetryBase: time.Millisecond})
	page, err := c.Fetch(context.Background(), srv.URL+"/a")
	require.NoError(t, err)
	require.Equal(t, int32(3), hits.Load())
	require.Contains(t, string(page.Body), "recovered")
}

func TestFetchExhaustsRetriesOnHTTPStatus(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := newTestClient(t, Config{MaxRetries: 2, RetryBase: time.Millisecond})
	_, err := c.Fetch(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
	require.Equal(t, int32(2), hits.Load())

	kind, ok := KindOf(err)
	require.True(t, ok)
	require.Equal(t, KindHTTPStatus, kind)

	var fe *Error
	require.ErrorAs(t, err, &fe)
	require.Equal(t, http.StatusNotFound, fe.StatusCode)
}

func TestFetchHonorsCanceledContext(t *testing.T) {
	c := newTestClient(t, Config{DelayMin: time.Second, DelayMax: 2 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Fetch(ctx, "http://example.com/a")
	require.ErrorIs(t, err, context.Canceled)
}

func TestClassify(t *testing.T) {
	timeoutErr := &url.Error{Op: "Get", URL: "http://x", Err: timeoutError{}}

	e := classify("http://x", 0, timeoutErr)
	require.Equal(t, KindTimeout, e.Kind)

	e = classify("http://x", http.StatusBadGateway, errors.New("Bad Gateway"))
	require.Equal(t, KindHTTPStatus, e.Kind)
	require.Equal(t, http.StatusBadGateway, e.StatusCode)

	e = classify("http://x", 0, errors.New("connection reset"))
	require.Equal(t, KindProtocol, e.Kind)
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }
