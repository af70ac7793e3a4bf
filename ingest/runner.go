package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"listing_ledger/config"
	"listing_ledger/dataset"
	"listing_ledger/models"
)

// CommandSource resolves the parameters of a queued command.
type CommandSource interface {
	ParseCommandParams(cmd *models.Command) (*models.CommandParams, error)
}

// Runner drives engine runs for every configured zip code. It is what the
// scheduler and the one-shot CLI call.
type Runner struct {
	cfg      *config.Config
	site     *config.SiteConfig
	fetcher  PageFetcher
	parser   PageParser
	ledger   RunLedger
	mirror   Mirror
	archiver Archiver

	runMu  sync.Mutex
	mu     sync.Mutex
	paused bool
	last   *Engine
}

func NewRunner(cfg *config.Config, site *config.SiteConfig, fetcher PageFetcher, parser PageParser) *Runner {
	return &Runner{
		cfg:     cfg,
		site:    site,
		fetcher: fetcher,
		parser:  parser,
	}
}

// SetServices injects the optional run ledger, Postgres mirror and archive.
func (r *Runner) SetServices(ledger RunLedger, mirror Mirror, archiver Archiver) {
	r.ledger = ledger
	r.mirror = mirror
	r.archiver = archiver
}

// OptionsFor builds the engine options for one zip code.
func (r *Runner) OptionsFor(zip string, forceRefresh bool) Options {
	ic := r.cfg.Ingest
	dc := r.cfg.Dataset
	return Options{
		BaseURL:          r.site.BaseURL,
		Target:           zip,
		Dataset:          dataset.PathsIn(dc.Dir, dc.FeaturesFile, dc.HistoryFile),
		ForceRefresh:     forceRefresh,
		FirstPageOnly:    ic.FirstPageOnly,
		MaxPages:         ic.MaxPages,
		PersistEachPage:  ic.PersistEachPage,
		CollapseSameDay:  dc.CollapseSameDay,
		StrictInvariants: ic.StrictInvariants,
		Workers:          ic.ExtractWorkers,
	}
}

// RunAll ingests every configured zip code in turn. A transport failure
// stops the remaining zips; other failures are logged and the next zip runs.
// The zips share one dataset, so a force refresh applies only until the
// first zip completes and later zips build on what it persisted.
func (r *Runner) RunAll(ctx context.Context) ([]RunStats, error) {
	if r.IsPaused() {
		log.Println("Ingestion is paused, skipping run")
		return nil, nil
	}
	if len(r.cfg.Ingest.Zips) == 0 {
		return nil, fmt.Errorf("no zip codes configured (SEARCH_ZIPS)")
	}

	var all []RunStats
	var firstErr error
	refresh := r.cfg.Ingest.ForceRefresh
	for _, zip := range r.cfg.Ingest.Zips {
		stats, err := r.RunZip(ctx, zip, refresh)
		all = append(all, stats)
		if err == nil {
			refresh = false
			continue
		}
		var te *TransportError
		if errors.As(err, &te) || ctx.Err() != nil {
			return all, err
		}
		log.Printf("Error ingesting %s: %v", zip, err)
		if firstErr == nil {
			firstErr = err
		}
	}
	return all, firstErr
}

// RunZip ingests one zip code. Runs are serialized since they share the
// dataset files.
func (r *Runner) RunZip(ctx context.Context, zip string, forceRefresh bool) (RunStats, error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	e := New(r.OptionsFor(zip, forceRefresh), r.fetcher, r.parser)
	if r.ledger != nil {
		e.SetLedger(r.ledger)
	}
	if r.mirror != nil {
		e.SetMirror(r.mirror)
	}
	if r.archiver != nil {
		e.SetArchiver(r.archiver)
	}
	r.mu.Lock()
	r.last = e
	r.mu.Unlock()
	return e.Run(ctx)
}

// Dataset returns the store of the most recent run, or nil before any run.
func (r *Runner) Dataset() *dataset.Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return nil
	}
	return r.last.Dataset()
}

func (r *Runner) HandleCommand(ctx context.Context, cmds CommandSource, cmd *models.Command) error {
	params, err := cmds.ParseCommandParams(cmd)
	if err != nil {
		return err
	}

	switch cmd.Command {
	case models.CmdScrapeNow:
		_, err := r.RunAll(ctx)
		return err
	case models.CmdScrapeZip:
		if params.Zip == "" {
			_, err := r.RunAll(ctx)
			return err
		}
		_, err := r.RunZip(ctx, params.Zip, params.ForceRefresh || r.cfg.Ingest.ForceRefresh)
		return err
	case models.CmdPause:
		r.setPaused(true)
		log.Println("Ingestion paused")
	case models.CmdResume:
		r.setPaused(false)
		log.Println("Ingestion resumed")
	default:
		return fmt.Errorf("unknown command: %s", cmd.Command)
	}
	return nil
}

func (r *Runner) IsPaused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paused
}

func (r *Runner) setPaused(p bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused = p
}
