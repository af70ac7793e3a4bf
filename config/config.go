package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Ingest    IngestConfig
	Dataset   DatasetConfig
	Fetch     FetchConfig
	Scheduler SchedulerConfig
	Postgres  PostgresConfig
	S3        S3Config
	DBPath    string
	LogPath   string
	LogLevel  string
	SiteID    string
	Sites     map[string]*SiteConfig
}

// IngestConfig controls a single ingestion run.
type IngestConfig struct {
	Zips             []string
	ForceRefresh     bool
	FirstPageOnly    bool
	MaxPages         int
	PersistEachPage  bool
	StrictInvariants bool
	ExtractWorkers   int
}

type DatasetConfig struct {
	Dir             string
	FeaturesFile    string
	HistoryFile     string
	CollapseSameDay bool
}

type FetchConfig struct {
	Fetcher       string // "proxy" or "browser"
	ScraperAPIKey string
	ScraperAPIURL string
	ProxyURL      string
	PageDelay     time.Duration
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type PostgresConfig struct {
	DSN string
}

type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	Prefix    string
}

func (c S3Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// SiteConfig describes where a listing site's search pages live and how to
// pick listing cards out of them.
type SiteConfig struct {
	ID          string    `yaml:"id"`
	Name        string    `yaml:"name"`
	BaseURL     string    `yaml:"base_url"`
	RateLimitMS int       `yaml:"rate_limit_ms"`
	Selectors   Selectors `yaml:"selectors"`
}

type Selectors struct {
	Cards     []string `yaml:"cards"`
	Price     string   `yaml:"price"`
	Stats     string   `yaml:"stats"`
	Address   string   `yaml:"address"`
	PageCount string   `yaml:"page_count"`
}

const defaultPageDelayMS = 1000

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Ingest: IngestConfig{
			Zips:             splitList(os.Getenv("SEARCH_ZIPS")),
			ForceRefresh:     getEnvBool("FORCE_REFRESH", false),
			FirstPageOnly:    getEnvBool("FIRST_PAGE_ONLY", false),
			MaxPages:         getEnvInt("MAX_PAGES", 0),
			PersistEachPage:  getEnvBool("PERSIST_EACH_PAGE", false),
			StrictInvariants: getEnvBool("STRICT_INVARIANTS", false),
			ExtractWorkers:   getEnvInt("EXTRACT_WORKERS", 4),
		},
		Dataset: DatasetConfig{
			Dir:             getEnv("DATA_DIR", "out"),
			FeaturesFile:    getEnv("FEATURES_FILE", "listing_dataset.csv"),
			HistoryFile:     getEnv("HISTORY_FILE", "price_history.csv"),
			CollapseSameDay: getEnvBool("COLLAPSE_SAME_DAY", false),
		},
		Fetch: FetchConfig{
			Fetcher:       getEnv("FETCHER", "proxy"),
			ScraperAPIKey: os.Getenv("SCRAPERAPI_KEY"),
			ScraperAPIURL: getEnv("SCRAPERAPI_URL", "https://api.scraperapi.com/"),
			ProxyURL:      os.Getenv("PROXY_URL"),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("SCRAPE_CRON"),
		},
		Postgres: PostgresConfig{
			DSN: os.Getenv("PG_DSN"),
		},
		S3: S3Config{
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			Region:    getEnv("S3_REGION", "us-east-1"),
			Bucket:    os.Getenv("S3_BUCKET"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			Prefix:    getEnv("S3_PREFIX", "snapshots"),
		},
		DBPath:   getEnv("DB_PATH", "ledger.db"),
		LogPath:  getEnv("LOG_PATH", "ingest.log"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		SiteID:   getEnv("SITE", "redfin"),
		Sites:    make(map[string]*SiteConfig),
	}

	if interval := os.Getenv("SCRAPE_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if err := cfg.loadSiteConfigs(getEnv("SITES_DIR", "config/sites")); err != nil {
		return nil, err
	}

	// PAGE_DELAY_MS overrides the site's rate_limit_ms
	delayMS := defaultPageDelayMS
	if site, ok := cfg.Sites[cfg.SiteID]; ok && site.RateLimitMS > 0 {
		delayMS = site.RateLimitMS
	}
	cfg.Fetch.PageDelay = time.Duration(getEnvInt("PAGE_DELAY_MS", delayMS)) * time.Millisecond

	return cfg, nil
}

// Site returns the configured site for this run.
func (c *Config) Site() (*SiteConfig, error) {
	site, ok := c.Sites[c.SiteID]
	if !ok {
		return nil, fmt.Errorf("no site config for %q", c.SiteID)
	}
	return site, nil
}

func (c *Config) loadSiteConfigs(configDir string) error {
	entries, err := os.ReadDir(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		site, err := LoadSiteConfig(filepath.Join(configDir, entry.Name()))
		if err != nil {
			return err
		}
		c.Sites[site.ID] = site
	}

	return nil
}

// LoadSiteConfig reads one site file.
func LoadSiteConfig(path string) (*SiteConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var site SiteConfig
	if err := yaml.Unmarshal(data, &site); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if site.ID == "" || site.BaseURL == "" {
		return nil, fmt.Errorf("%s: id and base_url are required", path)
	}
	if len(site.Selectors.Cards) == 0 {
		return nil, fmt.Errorf("%s: at least one card selector is required", path)
	}
	return &site, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
