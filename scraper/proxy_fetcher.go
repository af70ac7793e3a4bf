package scraper

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"

	"golang.org/x/time/rate"
	"listing_ledger/config"
	"listing_ledger/httputil"
)

const maxErrorBody = 512

// ProxyFetcher requests pages through a scraping API when a key is set, or
// directly through the scraping client otherwise.
type ProxyFetcher struct {
	apiURL  string
	apiKey  string
	api     *http.Client
	direct  *http.Client
	limiter *rate.Limiter
}

func NewProxyFetcher(cfg *config.FetchConfig, clients *httputil.Clients) *ProxyFetcher {
	limit := rate.Inf
	if cfg.PageDelay > 0 {
		limit = rate.Every(cfg.PageDelay)
	}
	return &ProxyFetcher{
		apiURL:  cfg.ScraperAPIURL,
		apiKey:  cfg.ScraperAPIKey,
		api:     clients.API,
		direct:  clients.Scraping,
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (f *ProxyFetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL, client, err := f.requestTarget(pageURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	log.Printf("Fetched %s: %d", pageURL, resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func (f *ProxyFetcher) requestTarget(pageURL string) (string, *http.Client, error) {
	if f.apiKey == "" {
		return pageURL, f.direct, nil
	}

	u, err := url.Parse(f.apiURL)
	if err != nil {
		return "", nil, fmt.Errorf("scraper api url: %w", err)
	}
	q := u.Query()
	q.Set("url", pageURL)
	q.Set("api_key", f.apiKey)
	u.RawQuery = q.Encode()
	return u.String(), f.api, nil
}

func (f *ProxyFetcher) Close() error {
	return nil
}
