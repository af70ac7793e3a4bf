package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"listing_ledger/config"
	"listing_ledger/ingest"
	"listing_ledger/models"
)

// Runner is the part of ingest.Runner the scheduler drives.
type Runner interface {
	RunAll(ctx context.Context) ([]ingest.RunStats, error)
	HandleCommand(ctx context.Context, cmds ingest.CommandSource, cmd *models.Command) error
}

// CommandStore is the daemon's command queue.
type CommandStore interface {
	ingest.CommandSource
	GetPendingCommands() ([]models.Command, error)
	MarkCommandProcessed(id int64) error
}

type Scheduler struct {
	cfg          *config.SchedulerConfig
	runner       Runner
	store        CommandStore
	cron         *cron.Cron
	ticker       *time.Ticker
	pollInterval time.Duration
	stopCh       chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

func New(cfg *config.SchedulerConfig, runner Runner, store CommandStore) *Scheduler {
	return &Scheduler{
		cfg:          cfg,
		runner:       runner,
		store:        store,
		cron:         cron.New(),
		pollInterval: 2 * time.Second,
		stopCh:       make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.store != nil {
		s.wg.Add(1)
		go s.pollCommands(ctx)
	}

	if s.cfg.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Cron)
		_, err := s.cron.AddFunc(s.cfg.Cron, func() {
			s.runScheduled(ctx)
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Interval > 0 {
		log.Printf("Starting scheduler with interval: %s", s.cfg.Interval)
		s.ticker = time.NewTicker(s.cfg.Interval)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.ticker.C:
					s.runScheduled(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		log.Println("No schedule configured, daemon will only respond to commands")
	}

	return nil
}

func (s *Scheduler) runScheduled(ctx context.Context) {
	all, err := s.runner.RunAll(ctx)
	if err != nil {
		log.Printf("Scheduled run error: %v", err)
	}
	for _, st := range all {
		log.Printf("Scheduled run %s: %d new, %d observations in %s",
			st.Target, st.FeaturesNew, st.HistoryAdded, st.Duration.Round(time.Millisecond))
	}
}

// Stop halts scheduling and waits for the background loops. A cron job
// already running is allowed to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		<-s.cron.Stop().Done()
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
	})
	s.wg.Wait()
}

func (s *Scheduler) pollCommands(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processCommands(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) processCommands(ctx context.Context) {
	cmds, err := s.store.GetPendingCommands()
	if err != nil {
		log.Printf("Error getting commands: %v", err)
		return
	}

	for _, cmd := range cmds {
		log.Printf("Processing command: %s", cmd.Command)
		if err := s.runner.HandleCommand(ctx, s.store, &cmd); err != nil {
			log.Printf("Command error: %v", err)
		}
		if err := s.store.MarkCommandProcessed(cmd.ID); err != nil {
			log.Printf("Error marking command processed: %v", err)
		}
	}
}
