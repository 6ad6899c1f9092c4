// Package websearch queries the DuckDuckGo HTML endpoint and scrapes results.
package websearch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// DefaultEndpoint is the no-JS DuckDuckGo results page
const DefaultEndpoint = "https://html.duckduckgo.com/html/"

// Result is one search hit
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// DefaultTimeout bounds one search request
const DefaultTimeout = 15 * time.Second

// Client performs web searches
type Client struct {
	endpoint string
	client   *http.Client
	limit    int
}

// NewClient creates a search client. An empty endpoint uses DefaultEndpoint.
func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultTimeout},
		limit:    3,
	}
}

// Search returns the top results for query
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}

	u := c.endpoint + "?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; Jarvis/1.0)")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned HTTP %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse results: %w", err)
	}
	return parseResults(doc, c.limit), nil
}

func parseResults(doc *goquery.Document, limit int) []Result {
	var results []Result
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		link := s.Find(".result__a").First()
		title := strings.TrimSpace(link.Text())
		if title == "" {
			return true
		}
		href, _ := link.Attr("href")
		results = append(results, Result{
			Title:   title,
			URL:     resolveRedirect(href),
			Snippet: strings.Join(strings.Fields(s.Find(".result__snippet").Text()), " "),
		})
		return len(results) < limit
	})
	return results
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= redirect links
func resolveRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}

// Summarize renders results as a short spoken-style summary
func Summarize(results []Result) string {
	if len(results) == 0 {
		return "I couldn't find anything."
	}
	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%d. %s", i+1, r.Title)
		if r.Snippet != "" {
			sb.WriteString(": " + r.Snippet)
		}
	}
	return sb.String()
}
