package httputil

import (
	"crypto/tls"
	"net/http"
	"net/url"
	"time"

	"listing_ledger/config"
)

type Clients struct {
	Scraping *http.Client // optionally proxied, for search pages
	API      *http.Client // direct, for the scraping API
}

func NewClients(fetchCfg *config.FetchConfig) *Clients {
	transport := &http.Transport{
		ForceAttemptHTTP2: false,
		TLSNextProto:      make(map[string]func(string, *tls.Conn) http.RoundTripper),
	}
	if fetchCfg.ProxyURL != "" {
		if proxyURL, err := url.Parse(fetchCfg.ProxyURL); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	scraping := &http.Client{
		Timeout:   15 * time.Second,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &Clients{
		Scraping: scraping,
		// The scraping API renders the target page before answering.
		API: &http.Client{Timeout: 70 * time.Second},
	}
}
