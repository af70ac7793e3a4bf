package scraper

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"listing_ledger/config"
)

// BrowserFetcher renders pages in a persistent Chromium profile. Used when
// the search site blocks plain HTTP clients.
type BrowserFetcher struct {
	delay       time.Duration
	pw          *playwright.Playwright
	context     playwright.BrowserContext
	mu          sync.Mutex
	initialized bool
	lastFetch   time.Time
}

func NewBrowserFetcher(cfg *config.FetchConfig) *BrowserFetcher {
	return &BrowserFetcher{delay: cfg.PageDelay}
}

func (f *BrowserFetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	if err := f.ensureBrowser(); err != nil {
		return nil, err
	}
	if err := f.wait(ctx); err != nil {
		return nil, err
	}

	page, err := f.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	resp, err := page.Goto(pageURL, playwright.PageGotoOptions{
		Timeout:   playwright.Float(60000),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}
	if resp != nil && resp.Status() != 200 {
		return nil, fmt.Errorf("unexpected status %d", resp.Status())
	}

	html, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	log.Printf("Browser: rendered %s (%d bytes)", pageURL, len(html))
	return []byte(html), nil
}

func (f *BrowserFetcher) wait(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if remaining := f.delay - time.Since(f.lastFetch); remaining > 0 {
		select {
		case <-time.After(remaining):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.lastFetch = time.Now()
	return nil
}

func (f *BrowserFetcher) ensureBrowser() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.initialized {
		return nil
	}

	var err error
	f.pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	cwd, _ := os.Getwd()
	userDataDir := filepath.Join(cwd, "browser_data")
	f.context, err = f.pw.Chromium.LaunchPersistentContext(userDataDir, playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		f.pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	f.initialized = true
	return nil
}

func (f *BrowserFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.initialized {
		return nil
	}
	var err error
	if f.context != nil {
		err = f.context.Close()
	}
	if f.pw != nil {
		if stopErr := f.pw.Stop(); err == nil {
			err = stopErr
		}
	}
	f.initialized = false
	return err
}
