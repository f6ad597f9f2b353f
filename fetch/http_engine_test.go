package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webpeel/webpeel/models"
)

func TestHTTPEngine_Fetch(t *testing.T) {
	var gotUA, gotCookie, gotCustom string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotCustom = r.Header.Get("X-Custom")
		if c, err := r.Cookie("session"); err == nil {
			gotCookie = c.Value
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(goodHTML))
	}))
	defer srv.Close()

	eng := NewHTTPEngine(nil)
	res, err := eng.Fetch(context.Background(), &Request{
		URL:     srv.URL,
		Headers: map[string]string{"X-Custom": "yes"},
		Cookies: []models.Cookie{{Name: "session", Value: "abc"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 200, res.Status)
	assert.Contains(t, string(res.Body), "real readable text")
	assert.Contains(t, gotUA, "Mozilla/5.0")
	assert.Equal(t, "yes", gotCustom)
	assert.Equal(t, "abc", gotCookie)
}

func TestHTTPEngine_UserAgentOverrideAndRotation(t *testing.T) {
	var uas []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uas = append(uas, r.Header.Get("User-Agent"))
	}))
	defer srv.Close()

	eng := NewHTTPEngine(nil)
	_, err := eng.Fetch(context.Background(), &Request{URL: srv.URL, UserAgent: "custom-agent/1.0"})
	require.NoError(t, err)
	assert.Equal(t, "custom-agent/1.0", uas[0])

	// Without an override, successive fetches rotate through the pool.
	for i := 0; i < 3; i++ {
		_, err = eng.Fetch(context.Background(), &Request{URL: srv.URL})
		require.NoError(t, err)
	}
	assert.NotEqual(t, uas[1], uas[2])
}

func TestHTTPEngine_ErrorStatusReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(cloudflareHTML))
	}))
	defer srv.Close()

	eng := NewHTTPEngine(nil)
	res, err := eng.Fetch(context.Background(), &Request{URL: srv.URL})
	require.NoError(t, err, "an HTTP error status is a result, not an error")
	assert.Equal(t, 403, res.Status)
	assert.Contains(t, string(res.Body), "cf-browser-verification")
}

func TestHTTPEngine_RetryAfterParsed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	eng := NewHTTPEngine(nil)
	res, err := eng.Fetch(context.Background(), &Request{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, 429, res.Status)
	assert.Equal(t, 7, res.RetryAfterSecs)
}

func TestHTTPEngine_FollowsRedirects(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/start" {
			http.Redirect(w, r, "/final", http.StatusFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(goodHTML))
	}))
	defer srv.Close()

	eng := NewHTTPEngine(nil)
	res, err := eng.Fetch(context.Background(), &Request{URL: srv.URL + "/start"})
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/final", res.FinalURL)
}

func TestHTTPEngine_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng := NewHTTPEngine(nil)
	_, err := eng.Fetch(ctx, &Request{URL: srv.URL})
	require.Error(t, err)
	pe, ok := err.(*models.PeelError)
	require.True(t, ok)
	assert.Equal(t, models.ErrCodeAbort, pe.Code)
}
