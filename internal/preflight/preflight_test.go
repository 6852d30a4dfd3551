package preflight

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/require"
)

func TestCheckReportsStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	t.Cleanup(srv.Close)

	c := New(Config{UserAgent: "auditor-test", Timeout: 2 * time.Second})

	res, err := c.Check(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.Status)
	require.Equal(t, srv.URL+"/", res.FinalURL)

	res, err = c.Check(context.Background(), srv.URL+"/missing")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, res.Status)

	// Revisiting the same address must not be suppressed.
	res, err = c.Check(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.Status)
}

func TestCheckTransportFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := srv.URL
	srv.Close()

	_, err := New(Config{Timeout: time.Second}).Check(context.Background(), addr)
	require.Error(t, err)
}

func TestCheckCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Config{}).Check(ctx, "http://127.0.0.1:1/")
	require.Error(t, err)
}

type stubHooks struct {
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) { s.onResponse = cb }
func (s *stubHooks) OnError(cb colly.ErrorCallback)       { s.onError = cb }

func TestConfigureHooks(t *testing.T) {
	t.Parallel()

	c := New(Config{})
	var (
		result   Result
		checkErr error
	)
	hooks := &stubHooks{}
	c.configureHooks(hooks, time.Now(), &result, &checkErr)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	u, err := url.Parse("https://example.com/home")
	require.NoError(t, err)
	hooks.onResponse(&colly.Response{StatusCode: http.StatusAccepted, Request: &colly.Request{URL: u}})
	require.Equal(t, http.StatusAccepted, result.Status)
	require.Equal(t, "https://example.com/home", result.FinalURL)

	hooks.onError(nil, errors.New("boom"))
	require.EqualError(t, checkErr, "boom")
}

func TestNewDefaults(t *testing.T) {
	t.Parallel()

	c := New(Config{})
	require.Equal(t, defaultTimeout, c.cfg.Timeout)
	require.Equal(t, defaultMaxBodySize, c.cfg.MaxBodySize)
	collector := c.buildCollector()
	require.True(t, collector.AllowURLRevisit)
	require.True(t, collector.ParseHTTPErrorResponse)
}
