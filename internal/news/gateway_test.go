package news

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const rssBody = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <item>
      <title>Markets rally on earnings</title>
      <link>https://example.com/rally</link>
      <pubDate>Fri, 29 Aug 2025 09:00:00 GMT</pubDate>
      <source url="https://example.com">Example Wire</source>
    </item>
    <item>
      <title>Tech stocks slip</title>
      <link>https://example.com/slip</link>
      <pubDate>Fri, 29 Aug 2025 08:00:00 GMT</pubDate>
      <source url="https://example.com">Example Wire</source>
    </item>
  </channel>
</rss>`

func TestFetch_NewsAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/everything", r.URL.Path)
		assert.Equal(t, "budget", r.URL.Query().Get("q"))
		assert.Equal(t, "test-key", r.URL.Query().Get("apiKey"))
		w.Write([]byte(`{"articles":[
			{"title":"Budget day moves markets","url":"https://example.com/a","source":{"name":"Example"},"publishedAt":"2025-08-29T09:00:00Z"}
		]}`))
	}))
	defer srv.Close()

	g := NewGateway("test-key", time.Second, discardLogger())
	g.newsAPIBase = srv.URL

	articles := g.Fetch(context.Background(), "budget")
	require.Len(t, articles, 1)
	assert.Equal(t, "Budget day moves markets", articles[0].Title)
	assert.Equal(t, "Example", articles[0].Source)
}

func TestFetch_FallsBackToRSS(t *testing.T) {
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer apiSrv.Close()

	rssSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rss/search", r.URL.Path)
		w.Write([]byte(rssBody))
	}))
	defer rssSrv.Close()

	g := NewGateway("test-key", time.Second, discardLogger())
	g.newsAPIBase = apiSrv.URL
	g.rssBase = rssSrv.URL

	articles := g.Fetch(context.Background(), "stocks")
	require.Len(t, articles, 2)
	assert.Equal(t, "Markets rally on earnings", articles[0].Title)
	assert.Equal(t, "https://example.com/rally", articles[0].URL)
}

func TestFetch_NoKeySkipsNewsAPI(t *testing.T) {
	rssSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rssBody))
	}))
	defer rssSrv.Close()

	g := NewGateway("", time.Second, discardLogger())
	g.newsAPIBase = "http://127.0.0.1:0" // must never be contacted
	g.rssBase = rssSrv.URL

	articles := g.Fetch(context.Background(), "")
	require.Len(t, articles, 2)
}

func TestFetch_AllUpstreamsDown(t *testing.T) {
	g := NewGateway("test-key", 100*time.Millisecond, discardLogger())
	g.newsAPIBase = "http://127.0.0.1:1"
	g.rssBase = "http://127.0.0.1:1"

	// Failures degrade to an empty, non-nil list rather than an error.
	articles := g.Fetch(context.Background(), "stocks")
	assert.NotNil(t, articles)
	assert.Empty(t, articles)
}
