package fetch_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/lucasfdcampos/lead-scraper/internal/fetch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plainTransport() *http.Transport {
	return &http.Transport{}
}

func TestClient_Fetch(t *testing.T) {
	t.Parallel()

	t.Run("classifies a clean 200 as success", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("<html><body>listings</body></html>"))
		}))
		defer srv.Close()

		c := fetch.NewClient(fetch.ClientOptions{Transport: plainTransport})
		out := c.Fetch(context.Background(), srv.URL, fetch.Identity{})

		require.NoError(t, out.Err)
		assert.Equal(t, fetch.OutcomeSuccess, out.Kind)
		assert.Equal(t, http.StatusOK, out.Status)
		assert.Contains(t, string(out.Body), "listings")
	})

	t.Run("classifies a challenge page as soft block", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("<html><head><title>Just a moment...</title></head></html>"))
		}))
		defer srv.Close()

		c := fetch.NewClient(fetch.ClientOptions{Transport: plainTransport})
		out := c.Fetch(context.Background(), srv.URL, fetch.Identity{})

		assert.Equal(t, fetch.OutcomeSoftBlock, out.Kind)
		assert.Error(t, out.Err)
		assert.NotEmpty(t, out.Body)
	})

	t.Run("classifies non-200 as error", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		c := fetch.NewClient(fetch.ClientOptions{Transport: plainTransport})
		out := c.Fetch(context.Background(), srv.URL, fetch.Identity{})

		assert.Equal(t, fetch.OutcomeError, out.Kind)
		assert.Equal(t, http.StatusForbidden, out.Status)
	})

	t.Run("classifies a transport failure as error", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		c := fetch.NewClient(fetch.ClientOptions{Transport: plainTransport})
		out := c.Fetch(context.Background(), url, fetch.Identity{})

		assert.Equal(t, fetch.OutcomeError, out.Kind)
		assert.Zero(t, out.Status)
		assert.Error(t, out.Err)
	})

	t.Run("uses a custom detector", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("please solve the puzzle"))
		}))
		defer srv.Close()

		c := fetch.NewClient(fetch.ClientOptions{
			Transport: plainTransport,
			Detector:  fetch.NewMarkerDetector("Solve The Puzzle"),
		})
		out := c.Fetch(context.Background(), srv.URL, fetch.Identity{})

		assert.Equal(t, fetch.OutcomeSoftBlock, out.Kind)
	})

	t.Run("sends identity headers and cookies", func(t *testing.T) {
		t.Parallel()

		var got http.Header
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r.Header.Clone()
			_, _ = w.Write([]byte("ok"))
		}))
		defer srv.Close()

		c := fetch.NewClient(fetch.ClientOptions{
			Transport: plainTransport,
			Cookies:   "cf_clearance=abc; __cf_bm=def",
		})
		id := fetch.Identity{UserAgent: "test-agent/1.0", AcceptLanguage: "es-MX,es;q=0.9"}
		out := c.Fetch(context.Background(), srv.URL, id)

		require.Equal(t, fetch.OutcomeSuccess, out.Kind)
		assert.Equal(t, "test-agent/1.0", got.Get("User-Agent"))
		assert.Equal(t, "es-MX,es;q=0.9", got.Get("Accept-Language"))
		assert.Equal(t, "https://www.google.com/", got.Get("Referer"))
		assert.Equal(t, "no-cache", got.Get("Cache-Control"))
		assert.Contains(t, got.Get("Cookie"), "cf_clearance=abc")
		assert.Equal(t, id, out.Identity)
	})

	t.Run("warm-up seeds cookies for the real request", func(t *testing.T) {
		t.Parallel()

		var warmups atomic.Int32
		var cookie string
		mux := http.NewServeMux()
		mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
			warmups.Add(1)
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "seeded", Path: "/"})
		})
		mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
			if c, err := r.Cookie("session"); err == nil {
				cookie = c.Value
			}
			_, _ = w.Write([]byte("results"))
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		c := fetch.NewClient(fetch.ClientOptions{Transport: plainTransport, Homepage: srv.URL + "/"})
		out := c.Fetch(context.Background(), srv.URL+"/search", fetch.Identity{})

		require.Equal(t, fetch.OutcomeSuccess, out.Kind)
		assert.Equal(t, int32(1), warmups.Load())
		assert.Equal(t, "seeded", cookie)
	})

	t.Run("failed warm-up does not fail the fetch", func(t *testing.T) {
		t.Parallel()

		dead := httptest.NewServer(http.NotFoundHandler())
		deadURL := dead.URL
		dead.Close()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("results"))
		}))
		defer srv.Close()

		c := fetch.NewClient(fetch.ClientOptions{Transport: plainTransport, Homepage: deadURL})
		out := c.Fetch(context.Background(), srv.URL, fetch.Identity{})

		assert.Equal(t, fetch.OutcomeSuccess, out.Kind)
	})
}

func TestMarkerDetector_Detect(t *testing.T) {
	t.Parallel()

	d := fetch.NewMarkerDetector()

	marker, blocked := d.Detect([]byte(`<script src="/cdn-cgi/challenge-platform/h/b/orchestrate"></script>`))
	assert.True(t, blocked)
	assert.Equal(t, "/cdn-cgi/challenge-platform/", marker)

	_, blocked = d.Detect([]byte("<html><title>Plumbers in Houston</title></html>"))
	assert.False(t, blocked)
}

func TestSequenceIdentities_Next(t *testing.T) {
	t.Parallel()

	a := fetch.Identity{UserAgent: "a"}
	b := fetch.Identity{UserAgent: "b", Proxy: "http://proxy:8080"}
	ids := fetch.NewSequenceIdentities(a, b)

	assert.Equal(t, a, ids.Next())
	assert.Equal(t, b, ids.Next())
	assert.Equal(t, a, ids.Next())
}

func TestRandomIdentities_Next(t *testing.T) {
	t.Parallel()

	proxies := []string{"http://p1:8080", "http://p2:8080"}
	ids := fetch.NewRandomIdentities([]string{"ua-1", "ua-2"}, nil, proxies)

	for range 20 {
		id := ids.Next()
		assert.Contains(t, []string{"ua-1", "ua-2"}, id.UserAgent)
		assert.Contains(t, fetch.DefaultAcceptLanguages, id.AcceptLanguage)
		assert.Contains(t, proxies, id.Proxy)
	}

	direct := fetch.NewRandomIdentities(nil, nil, nil).Next()
	assert.Equal(t, fetch.DefaultUserAgent, direct.UserAgent)
	assert.Empty(t, direct.Proxy)
}
