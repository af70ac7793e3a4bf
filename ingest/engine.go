// Package ingest runs one ingestion pass over a search target: fetch each
// results page, route every listing card into the dataset, and persist it.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"listing_ledger/dataset"
	"listing_ledger/extract"
	"listing_ledger/identity"
	"listing_ledger/logging"
	"listing_ledger/models"
	"listing_ledger/queue"
	"listing_ledger/scraper"
)

// Options are fixed for the lifetime of an Engine.
type Options struct {
	BaseURL          string
	Target           string // zip code
	Dataset          dataset.Paths
	ForceRefresh     bool
	FirstPageOnly    bool
	MaxPages         int // 0 means no cap
	PersistEachPage  bool
	CollapseSameDay  bool
	StrictInvariants bool
	Workers          int
}

// PageFetcher returns the raw HTML of a results page.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) ([]byte, error)
}

// PageParser splits results-page HTML into listing fragments.
type PageParser interface {
	ParseBytes(html []byte) (*scraper.Page, error)
}

// RunLedger records runs and their log lines.
type RunLedger interface {
	CreateRun(run *models.ScrapeRun) (int64, error)
	UpdateRun(run *models.ScrapeRun) error
	Log(runID *int64, level models.LogLevel, message, target string) error
}

// Mirror receives the rows a run added.
type Mirror interface {
	MirrorFeatures(ctx context.Context, rows []models.FeatureRow) (int, error)
	MirrorHistory(ctx context.Context, obs []models.PriceObservation) (int, error)
}

// Archiver stores copies of the persisted tables.
type Archiver interface {
	Archive(ctx context.Context, runID uuid.UUID, startedAt time.Time, files ...string) error
}

// TransportError means a results page could not be fetched. It always ends
// the run.
type TransportError struct {
	URL  string
	Page int
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch page %d (%s): %v", e.Page, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RunStats summarizes one run.
type RunStats struct {
	RunID        uuid.UUID
	Target       string
	FromDisk     bool
	Pages        int
	Fragments    int
	FeaturesNew  int
	HistoryAdded int
	Collapsed    int
	Skipped      int
	Defects      int
	Duration     time.Duration
}

type Engine struct {
	opts     Options
	fetcher  PageFetcher
	parser   PageParser
	ledger   RunLedger
	mirror   Mirror
	archiver Archiver
	now      func() time.Time

	started time.Time
	store   *dataset.Store
	runID   int64
	added   runAdditions
}

// runAdditions collects what a run appended, for the mirror.
type runAdditions struct {
	features []models.FeatureRow
	history  []models.PriceObservation
}

func New(opts Options, fetcher PageFetcher, parser PageParser) *Engine {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Engine{
		opts:    opts,
		fetcher: fetcher,
		parser:  parser,
		now:     time.Now,
	}
}

func (e *Engine) SetLedger(l RunLedger)  { e.ledger = l }
func (e *Engine) SetMirror(m Mirror)     { e.mirror = m }
func (e *Engine) SetArchiver(a Archiver) { e.archiver = a }

// Dataset returns the store used by the last run.
func (e *Engine) Dataset() *dataset.Store {
	return e.store
}

// Run performs one full ingestion pass. On a fetch failure it returns a
// *TransportError and persists nothing beyond pages already persisted.
func (e *Engine) Run(ctx context.Context) (RunStats, error) {
	e.started = e.now()
	stats := RunStats{RunID: uuid.New(), Target: e.opts.Target}
	run := &models.ScrapeRun{
		UUID:      stats.RunID,
		Target:    e.opts.Target,
		StartedAt: e.started,
		Status:    models.RunStatusRunning,
	}
	e.startRun(run)
	e.added = runAdditions{}

	err := e.run(ctx, &stats)
	stats.Duration = e.now().Sub(e.started)
	e.finishRun(run, stats, err)
	return stats, err
}

func (e *Engine) run(ctx context.Context, stats *RunStats) error {
	store, report := dataset.Load(e.opts.Dataset, dataset.LoadOptions{
		ForceRefresh:    e.opts.ForceRefresh,
		CollapseSameDay: e.opts.CollapseSameDay,
	})
	e.store = store
	stats.FromDisk = report.FromDisk
	if report.Err != nil {
		e.log(models.LogLevelWarn, fmt.Sprintf("Dataset unusable, starting empty: %v", report.Err))
	}
	features, history := store.Len()
	e.log(models.LogLevelInfo, fmt.Sprintf("Dataset: %s (%d features, %d history)", report.Reason, features, history))

	q := queue.New()
	total := 1
	for page := 1; page <= total; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		pageURL, err := scraper.SearchURL(e.opts.BaseURL, scraper.SearchZipcode, e.opts.Target, page)
		if err != nil {
			return err
		}
		html, err := e.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			return &TransportError{URL: pageURL, Page: page, Err: err}
		}
		parsed, err := e.parser.ParseBytes(html)
		if err != nil {
			return fmt.Errorf("parse page %d (%s): %w", page, pageURL, err)
		}
		stats.Pages++

		if page == 1 {
			total = e.pageLimit(parsed.PageCount)
			e.log(models.LogLevelInfo, fmt.Sprintf("Found %d pages, scraping %d", parsed.PageCount, total))
		}

		if err := e.IngestPage(ctx, q, parsed.Fragments, stats); err != nil {
			return err
		}
		e.log(models.LogLevelInfo, fmt.Sprintf("Page %d: %d cards", page, len(parsed.Fragments)))

		if e.opts.PersistEachPage {
			if err := store.FlushToDisk(); err != nil {
				return fmt.Errorf("persist page %d: %w", page, err)
			}
		}
	}

	if err := store.FlushToDisk(); err != nil {
		return fmt.Errorf("persist dataset: %w", err)
	}
	e.publish(ctx, stats.RunID)
	return nil
}

func (e *Engine) pageLimit(reported int) int {
	n := max(reported, 1)
	if e.opts.FirstPageOnly {
		n = 1
	}
	if e.opts.MaxPages > 0 && n > e.opts.MaxPages {
		n = e.opts.MaxPages
	}
	return n
}

// cardResult is the outcome of examining one fragment.
type cardResult struct {
	key     string
	known   bool
	price   uint32
	listing models.StructuredListing
	addrErr error
	extrErr error
}

// IngestPage routes every fragment of one page and flushes the queue into
// the dataset. Extraction runs in parallel; results are applied in fragment
// order. It returns an error only for dataset failures or, with strict
// invariants, for the first invariant violation.
func (e *Engine) IngestPage(ctx context.Context, q *queue.ListingQueue, fragments []extract.Fragment, stats *RunStats) error {
	observedAt := e.now().Unix()
	results := make([]cardResult, len(fragments))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i := range fragments {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.examine(fragments[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, r := range results {
		stats.Fragments++
		switch {
		case r.addrErr != nil:
			stats.Skipped++
			e.log(models.LogLevelWarn, fmt.Sprintf("Skipping card %d: %v", i, r.addrErr))

		case r.known:
			if r.extrErr != nil {
				stats.Skipped++
				e.log(models.LogLevelWarn, fmt.Sprintf("Skipping price for %s: %v", r.key, r.extrErr))
				continue
			}
			obs := models.PriceObservation{AddressKey: r.key, ObservedAt: observedAt, Price: r.price}
			added, err := e.store.AppendHistory(obs)
			if err != nil {
				return fmt.Errorf("append history: %w", err)
			}
			if !added {
				stats.Collapsed++
				continue
			}
			stats.HistoryAdded++
			e.added.history = append(e.added.history, obs)

		case r.extrErr != nil:
			if extract.IsDefect(r.extrErr) {
				stats.Defects++
				e.log(models.LogLevelError, fmt.Sprintf("Card %d (%s): %v", i, r.key, r.extrErr))
				if e.opts.StrictInvariants {
					return fmt.Errorf("card %d: %w", i, r.extrErr)
				}
				continue
			}
			stats.Skipped++
			e.log(models.LogLevelWarn, fmt.Sprintf("Skipping card %d: %v", i, r.extrErr))

		default:
			q.Enqueue(r.listing)
		}
	}

	return e.flushQueue(q, observedAt, stats)
}

// examine decides whether the card is already known and extracts only what
// that route needs. Store reads are safe here: nothing writes to the store
// until every card of the page has been examined.
func (e *Engine) examine(f extract.Fragment) cardResult {
	addr, err := extract.ExtractAddress(f)
	if err != nil {
		return cardResult{addrErr: err}
	}
	r := cardResult{key: identity.Key(addr)}

	if !e.opts.ForceRefresh && e.store.Exists(r.key) {
		r.known = true
		r.price, r.extrErr = extract.ExtractPrice(f)
		return r
	}
	r.listing, r.extrErr = extract.Extract(f)
	return r
}

// flushQueue appends the queued listings as new Features rows. Repeats of
// the same address keep the first occurrence; addresses already present
// (possible under force refresh) are dropped.
func (e *Engine) flushQueue(q *queue.ListingQueue, observedAt int64, stats *RunStats) error {
	pending := q.Flush()
	if len(pending) == 0 {
		return nil
	}

	batch := make([]models.StructuredListing, 0, len(pending))
	seen := make(map[string]struct{}, len(pending))
	for _, l := range pending {
		key := identity.Key(l.Address)
		if _, dup := seen[key]; dup || e.store.Exists(key) {
			logging.Debugf("dropping repeated listing %s", key)
			continue
		}
		seen[key] = struct{}{}
		batch = append(batch, l)
	}

	if err := e.store.AppendFeatures(batch, observedAt); err != nil {
		return fmt.Errorf("flush queue: %w", err)
	}
	stats.FeaturesNew += len(batch)
	for _, l := range batch {
		row := identity.FeatureRow(l)
		e.added.features = append(e.added.features, row)
		e.added.history = append(e.added.history, models.PriceObservation{
			AddressKey: row.AddrStr,
			ObservedAt: observedAt,
			Price:      l.CurrentPrice,
		})
	}
	return nil
}

// publish pushes the run's additions to the mirror and archives the tables.
// Failures here are logged; the CSV files are already persisted.
func (e *Engine) publish(ctx context.Context, runID uuid.UUID) {
	if e.mirror != nil {
		n, err := e.mirror.MirrorFeatures(ctx, e.added.features)
		if err != nil {
			e.log(models.LogLevelWarn, fmt.Sprintf("Mirror features failed: %v", err))
		} else if m, err := e.mirror.MirrorHistory(ctx, e.added.history); err != nil {
			e.log(models.LogLevelWarn, fmt.Sprintf("Mirror history failed: %v", err))
		} else {
			e.log(models.LogLevelInfo, fmt.Sprintf("Mirrored %d features, %d observations", n, m))
		}
	}

	if e.archiver != nil {
		paths := e.store.Paths()
		if err := e.archiver.Archive(ctx, runID, e.started, paths.Features, paths.History); err != nil {
			e.log(models.LogLevelWarn, fmt.Sprintf("Archive failed: %v", err))
		}
	}
}

func (e *Engine) startRun(run *models.ScrapeRun) {
	e.runID = 0
	if e.ledger == nil {
		return
	}
	id, err := e.ledger.CreateRun(run)
	if err != nil {
		logging.Warnf("failed to record run: %v", err)
		return
	}
	run.ID = id
	e.runID = id
}

func (e *Engine) finishRun(run *models.ScrapeRun, stats RunStats, err error) {
	run.Status = models.RunStatusCompleted
	if err != nil {
		run.Status = models.RunStatusFailed
		run.ErrorMessage = err.Error()
		e.log(models.LogLevelError, fmt.Sprintf("Run failed: %v", err))
	} else {
		e.log(models.LogLevelInfo, fmt.Sprintf("Completed: %d pages, %d cards, %d new, %d observations, %d skipped, %d defects",
			stats.Pages, stats.Fragments, stats.FeaturesNew, stats.HistoryAdded, stats.Skipped, stats.Defects))
	}

	if e.ledger == nil || run.ID == 0 {
		return
	}
	finished := e.now()
	run.FinishedAt = &finished
	run.PagesFetched = stats.Pages
	run.FragmentsSeen = stats.Fragments
	run.FeaturesNew = stats.FeaturesNew
	run.HistoryAdded = stats.HistoryAdded
	run.Skipped = stats.Skipped
	run.Defects = stats.Defects
	if err := e.ledger.UpdateRun(run); err != nil {
		logging.Warnf("failed to update run %d: %v", run.ID, err)
	}
}

func (e *Engine) log(level models.LogLevel, message string) {
	logging.Printf(level, "%s: %s", e.opts.Target, message)
	if e.ledger != nil && e.runID != 0 {
		runID := e.runID
		e.ledger.Log(&runID, level, message, e.opts.Target)
	}
}
