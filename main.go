package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"listing_ledger/config"
	"listing_ledger/dataset"
	"listing_ledger/httputil"
	"listing_ledger/ingest"
	"listing_ledger/logging"
	"listing_ledger/models"
	"listing_ledger/report"
	"listing_ledger/scheduler"
	"listing_ledger/scraper"
	"listing_ledger/storage"
)

var (
	scrapeNow    = flag.Bool("scrape", false, "Run ingestion once and exit")
	zips         = flag.String("zip", "", "Comma-separated zip codes, overrides SEARCH_ZIPS")
	forceRefresh = flag.Bool("force-refresh", false, "Ignore persisted tables and rebuild from scratch")
	firstPage    = flag.Bool("first-page", false, "Only ingest the first results page")
	head         = flag.Int("head", 0, "Print the first N Features rows and exit (after the run with -scrape)")
	runs         = flag.Int("runs", 0, "Print the N most recent runs from the ledger and exit")
	send         = flag.String("send", "", "Queue a command for a running daemon (scrape_now, scrape_zip, pause, resume) and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(cfg)

	logFile, err := logging.Setup(cfg.LogPath, 0)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}
	logging.SetLevel(cfg.LogLevel)

	log.Println("Starting listing_ledger...")

	if *head > 0 && !*scrapeNow {
		printHead(cfg, *head)
		return
	}
	if *runs > 0 || *send != "" {
		if err := ledgerOnly(cfg); err != nil {
			log.Fatalf("Ledger: %v", err)
		}
		return
	}

	site, err := cfg.Site()
	if err != nil {
		log.Fatalf("Failed to load site config: %v", err)
	}
	log.Printf("Site: %s (%s), zips: %s", site.Name, site.BaseURL, strings.Join(cfg.Ingest.Zips, ","))

	clients := httputil.NewClients(&cfg.Fetch)
	fetcher, err := scraper.NewFetcher(&cfg.Fetch, clients)
	if err != nil {
		log.Fatalf("Failed to create fetcher: %v", err)
	}
	defer fetcher.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer sqliteStore.Close()
	log.Printf("SQLite ledger: %s", cfg.DBPath)

	var mirror ingest.Mirror
	if cfg.Postgres.DSN != "" {
		pgStore, err := storage.NewPostgresStore(ctx, cfg.Postgres.DSN)
		if err != nil {
			log.Printf("Warning: Postgres mirror disabled: %v", err)
		} else {
			defer pgStore.Close()
			mirror = pgStore
			log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.Postgres.DSN))
		}
	}

	var archiver ingest.Archiver
	if cfg.S3.Enabled() {
		uploader, err := storage.NewS3Uploader(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKey,
			SecretAccessKey: cfg.S3.SecretKey,
			Prefix:          cfg.S3.Prefix,
		})
		if err != nil {
			log.Printf("Warning: snapshot archive disabled: %v", err)
		} else {
			archiver = uploader
			log.Printf("Archiving snapshots to s3://%s/%s", cfg.S3.Bucket, cfg.S3.Prefix)
		}
	}

	runner := ingest.NewRunner(cfg, site, fetcher, scraper.NewPageParser(site))
	runner.SetServices(sqliteStore, mirror, archiver)

	if *scrapeNow {
		log.Println("Running ingestion...")
		all, err := runner.RunAll(ctx)
		fmt.Print(report.Runs(all, err))
		if err != nil {
			var te *ingest.TransportError
			if errors.As(err, &te) {
				log.Fatalf("Request failed for %s: %v", te.URL, te.Err)
			}
			log.Fatalf("Ingestion failed: %v", err)
		}
		if *head > 0 {
			if store := runner.Dataset(); store != nil {
				fmt.Println(report.Head(store, *head))
			}
		}
		log.Println("Ingestion complete!")
		return
	}

	// Daemon mode
	sched := scheduler.New(&cfg.Scheduler, runner, sqliteStore)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	cancel()
	sched.Stop()
	log.Println("Goodbye!")
}

// applyFlags lets command-line flags override the environment. It runs
// before anything reads cfg.
func applyFlags(cfg *config.Config) {
	if *zips != "" {
		cfg.Ingest.Zips = nil
		for _, z := range strings.Split(*zips, ",") {
			if z = strings.TrimSpace(z); z != "" {
				cfg.Ingest.Zips = append(cfg.Ingest.Zips, z)
			}
		}
	}
	if *forceRefresh {
		cfg.Ingest.ForceRefresh = true
	}
	if *firstPage {
		cfg.Ingest.FirstPageOnly = true
	}
}

func printHead(cfg *config.Config, n int) {
	paths := dataset.PathsIn(cfg.Dataset.Dir, cfg.Dataset.FeaturesFile, cfg.Dataset.HistoryFile)
	store, rep := dataset.Load(paths, dataset.LoadOptions{})
	if rep.Err != nil {
		log.Printf("Warning: %v", rep.Err)
	}
	fmt.Println(report.Head(store, n))
}

// ledgerOnly serves -runs and -send against the SQLite ledger without
// starting a fetcher.
func ledgerOnly(cfg *config.Config) error {
	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if *send != "" {
		cmd, params, err := commandFor(*send, cfg.Ingest.Zips, *forceRefresh)
		if err != nil {
			return err
		}
		if err := store.EnqueueCommand(cmd, params); err != nil {
			return fmt.Errorf("queue %s: %w", cmd, err)
		}
		log.Printf("Queued %s", cmd)
	}

	if *runs > 0 {
		recent, err := store.RecentRuns(*runs)
		if err != nil {
			return err
		}
		fmt.Println(report.Ledger(recent))
	}
	return nil
}

// commandFor builds a daemon command from -send. scrape_zip takes the first
// configured zip, so -zip picks it.
func commandFor(name string, zips []string, force bool) (models.CommandType, *models.CommandParams, error) {
	cmd := models.CommandType(name)
	switch cmd {
	case models.CmdScrapeNow, models.CmdPause, models.CmdResume:
		return cmd, nil, nil
	case models.CmdScrapeZip:
		if len(zips) == 0 {
			return "", nil, fmt.Errorf("scrape_zip needs -zip")
		}
		return cmd, &models.CommandParams{Zip: zips[0], ForceRefresh: force}, nil
	default:
		return "", nil, fmt.Errorf("unknown command %q", name)
	}
}

// maskConnectionString masks password in connection string for logging
func maskConnectionString(connStr string) string {
	start := strings.Index(connStr, "://")
	if start < 0 {
		return connStr
	}
	start += 3

	at := strings.Index(connStr[start:], "@")
	if at < 0 {
		return connStr
	}
	at += start

	colon := strings.Index(connStr[start:at], ":")
	if colon < 0 {
		return connStr
	}
	colon += start
	return connStr[:colon+1] + "****" + connStr[at:]
}
