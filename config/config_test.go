package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadReadsEnv(t *testing.T) {
	t.Setenv("SEARCH_ZIPS", " 78701, 78702 ,,")
	t.Setenv("FORCE_REFRESH", "true")
	t.Setenv("MAX_PAGES", "3")
	t.Setenv("PAGE_DELAY_MS", "250")
	t.Setenv("SCRAPE_INTERVAL", "6h")
	t.Setenv("SITES_DIR", "sites")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Ingest.Zips) != 2 || cfg.Ingest.Zips[0] != "78701" || cfg.Ingest.Zips[1] != "78702" {
		t.Fatalf("unexpected zips %q", cfg.Ingest.Zips)
	}
	if !cfg.Ingest.ForceRefresh || cfg.Ingest.FirstPageOnly {
		t.Fatalf("unexpected flags %+v", cfg.Ingest)
	}
	if cfg.Ingest.MaxPages != 3 {
		t.Fatalf("expected max pages 3, got %d", cfg.Ingest.MaxPages)
	}
	if cfg.Fetch.PageDelay != 250*time.Millisecond {
		t.Fatalf("expected 250ms delay, got %s", cfg.Fetch.PageDelay)
	}
	if cfg.Scheduler.Interval != 6*time.Hour {
		t.Fatalf("expected 6h interval, got %s", cfg.Scheduler.Interval)
	}
	site, err := cfg.Site()
	if err != nil {
		t.Fatalf("site: %v", err)
	}
	if site.BaseURL != "https://www.redfin.com" || len(site.Selectors.Cards) != 2 {
		t.Fatalf("unexpected site config %+v", site)
	}
}

func TestPageDelayFromSiteRateLimit(t *testing.T) {
	dir := t.TempDir()
	site := "id: slow\nbase_url: https://example.com\nrate_limit_ms: 2500\nselectors:\n  cards: [div.card]\n"
	if err := os.WriteFile(filepath.Join(dir, "slow.yaml"), []byte(site), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SITES_DIR", dir)
	t.Setenv("SITE", "slow")
	t.Setenv("PAGE_DELAY_MS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Fetch.PageDelay != 2500*time.Millisecond {
		t.Fatalf("expected site rate limit 2.5s, got %s", cfg.Fetch.PageDelay)
	}

	t.Setenv("PAGE_DELAY_MS", "100")
	if cfg, err = Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Fetch.PageDelay != 100*time.Millisecond {
		t.Fatalf("PAGE_DELAY_MS should override site rate limit, got %s", cfg.Fetch.PageDelay)
	}
}

func TestLoadSiteConfigRequiresCards(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("id: x\nbase_url: https://example.com\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSiteConfig(path); err == nil {
		t.Fatal("expected error for site without card selectors")
	}
}

func TestGetEnvBoolFallsBack(t *testing.T) {
	t.Setenv("SOME_FLAG", "maybe")
	if !getEnvBool("SOME_FLAG", true) {
		t.Fatal("unparsable value should keep default")
	}
}
