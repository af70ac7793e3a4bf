package scraper

import (
	"context"
	"fmt"

	"listing_ledger/config"
	"listing_ledger/httputil"
)

// Fetcher retrieves the HTML of one results page.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) ([]byte, error)
	Close() error
}

func NewFetcher(cfg *config.FetchConfig, clients *httputil.Clients) (Fetcher, error) {
	switch cfg.Fetcher {
	case "", "proxy":
		return NewProxyFetcher(cfg, clients), nil
	case "browser":
		return NewBrowserFetcher(cfg), nil
	default:
		return nil, fmt.Errorf("unknown fetcher: %s", cfg.Fetcher)
	}
}
