// Package news fetches a small list of market headlines for the dashboard.
// Failures never propagate: any upstream problem degrades to an empty list
// so the trade and portfolio paths are unaffected.
package news

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gameoftrades/engine/internal/model"
)

const defaultPageSize = 8

// Gateway queries NewsAPI when an API key is configured, falling back to
// the Google News RSS search feed, and finally to an empty list.
type Gateway struct {
	client      *http.Client
	log         *slog.Logger
	apiKey      string
	newsAPIBase string
	rssBase     string
}

// NewGateway creates a gateway with the given API key (may be empty) and
// request timeout.
func NewGateway(apiKey string, timeout time.Duration, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		client:      &http.Client{Timeout: timeout},
		log:         logger,
		apiKey:      apiKey,
		newsAPIBase: "https://newsapi.org",
		rssBase:     "https://news.google.com",
	}
}

// Fetch returns up to eight headlines for the query. It never returns an
// error; the worst case is an empty slice.
func (g *Gateway) Fetch(ctx context.Context, query string) []model.Article {
	if query == "" {
		query = "stock market"
	}

	if g.apiKey != "" {
		if articles := g.fetchNewsAPI(ctx, query); len(articles) > 0 {
			return articles
		}
	}
	if articles := g.fetchRSS(ctx, query); len(articles) > 0 {
		return articles
	}
	return []model.Article{}
}

// --- NewsAPI ---

type newsAPIResponse struct {
	Articles []struct {
		Title  string `json:"title"`
		URL    string `json:"url"`
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

func (g *Gateway) fetchNewsAPI(ctx context.Context, query string) []model.Article {
	u := g.newsAPIBase + "/v2/everything?" + url.Values{
		"q":        {query},
		"pageSize": {"8"},
		"sortBy":   {"publishedAt"},
		"language": {"en"},
		"apiKey":   {g.apiKey},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil
	}
	resp, err := g.client.Do(req)
	if err != nil {
		g.log.Warn("newsapi fetch failed", "err", err)
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		g.log.Warn("newsapi fetch failed", "status", resp.StatusCode)
		return nil
	}

	var body newsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil
	}

	articles := make([]model.Article, 0, len(body.Articles))
	for _, a := range body.Articles {
		if a.Title == "" {
			continue
		}
		articles = append(articles, model.Article{
			Title:       a.Title,
			URL:         a.URL,
			Source:      a.Source.Name,
			PublishedAt: a.PublishedAt,
		})
		if len(articles) == defaultPageSize {
			break
		}
	}
	return articles
}

// --- Google News RSS fallback ---

type rssFeed struct {
	Channel struct {
		Items []struct {
			Title   string `xml:"title"`
			Link    string `xml:"link"`
			PubDate string `xml:"pubDate"`
			Source  string `xml:"source"`
		} `xml:"item"`
	} `xml:"channel"`
}

func (g *Gateway) fetchRSS(ctx context.Context, query string) []model.Article {
	u := g.rssBase + "/rss/search?" + url.Values{
		"q":    {query},
		"hl":   {"en-IN"},
		"gl":   {"IN"},
		"ceid": {"IN:en"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil
	}
	resp, err := g.client.Do(req)
	if err != nil {
		g.log.Warn("news rss fetch failed", "err", err)
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		g.log.Warn("news rss fetch failed", "status", resp.StatusCode)
		return nil
	}

	var feed rssFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		g.log.Warn("news rss parse failed", "err", err)
		return nil
	}

	var articles []model.Article
	for _, item := range feed.Channel.Items {
		if item.Title == "" {
			continue
		}
		articles = append(articles, model.Article{
			Title:       item.Title,
			URL:         item.Link,
			Source:      item.Source,
			PublishedAt: item.PubDate,
		})
		if len(articles) == defaultPageSize {
			break
		}
	}
	return articles
}
