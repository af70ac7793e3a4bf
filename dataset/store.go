// Package dataset owns the Features and History tables and their CSV files.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"listing_ledger/identity"
	"listing_ledger/logging"
	"listing_ledger/models"
)

const secondsPerDay = 24 * 60 * 60

// Paths locates the two persisted tables.
type Paths struct {
	Features string
	History  string
}

// PathsIn places both tables inside dir.
func PathsIn(dir, featuresFile, historyFile string) Paths {
	return Paths{
		Features: filepath.Join(dir, featuresFile),
		History:  filepath.Join(dir, historyFile),
	}
}

// LoadOptions are fixed for the lifetime of a Store.
type LoadOptions struct {
	// ForceRefresh ignores any persisted tables and starts empty.
	ForceRefresh bool
	// CollapseSameDay drops an observation when the same address was already
	// observed on the same UTC day.
	CollapseSameDay bool
}

// LoadReport says where the loaded tables came from.
type LoadReport struct {
	FromDisk bool
	Reason   string
	// Err is set when persisted tables existed but could not be used.
	Err error
}

// Store holds both tables in memory. Every History key has a Features row
// and Features rows are unique by key.
type Store struct {
	mu       sync.RWMutex
	paths    Paths
	opts     LoadOptions
	features []models.FeatureRow
	index    map[string]int
	history  []models.PriceObservation
	lastDay  map[string]int64
}

func newStore(paths Paths, opts LoadOptions) *Store {
	return &Store{
		paths:   paths,
		opts:    opts,
		index:   make(map[string]int),
		lastDay: make(map[string]int64),
	}
}

// Load reads the persisted tables, or starts empty when told to refresh, when
// nothing is persisted yet, or when the files do not match the schema.
func Load(paths Paths, opts LoadOptions) (*Store, LoadReport) {
	if opts.ForceRefresh {
		return newStore(paths, opts), LoadReport{Reason: "force refresh"}
	}

	s, err := loadFromDisk(paths, opts)
	if errors.Is(err, fs.ErrNotExist) {
		return newStore(paths, opts), LoadReport{Reason: "no local data"}
	}
	if err != nil {
		return newStore(paths, opts), LoadReport{Reason: "persisted data unusable", Err: err}
	}
	return s, LoadReport{FromDisk: true, Reason: "loaded from disk"}
}

func loadFromDisk(paths Paths, opts LoadOptions) (*Store, error) {
	s := newStore(paths, opts)

	err := readTable(paths.Features, FeatureColumns, func(idx map[string]int, rec []string) error {
		row, err := parseFeatureRecord(idx, rec)
		if err != nil {
			return err
		}
		if _, dup := s.index[row.AddrStr]; dup {
			return fmt.Errorf("%w: duplicate features row %q", ErrSchemaMismatch, row.AddrStr)
		}
		s.index[row.AddrStr] = len(s.features)
		s.features = append(s.features, row)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = readTable(paths.History, HistoryColumns, func(idx map[string]int, rec []string) error {
		obs, err := parseHistoryRecord(idx, rec)
		if err != nil {
			return err
		}
		if _, ok := s.index[obs.AddressKey]; !ok {
			return fmt.Errorf("%w: history row for unknown key %q", ErrSchemaMismatch, obs.AddressKey)
		}
		s.recordHistory(obs)
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		logging.Warnf("features table %s has no history file, starting history empty", paths.Features)
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func readTable(path string, columns []string, fn func(map[string]int, []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err == io.EOF {
		return fmt.Errorf("%w: %s has no header", ErrSchemaMismatch, path)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSchemaMismatch, path, err)
	}
	idx, err := columnIndex(header, columns)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrSchemaMismatch, path, err)
		}
		if err := fn(idx, rec); err != nil {
			return fmt.Errorf("%s line %d: %w", path, line, err)
		}
	}
}

func (s *Store) Paths() Paths {
	return s.paths
}

// Exists reports whether Features has a row for key.
func (s *Store) Exists(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[key]
	return ok
}

// AppendFeatures adds one Features row per listing plus each listing's first
// price observation. The whole batch is rejected if any key is already
// present or repeats within the batch.
func (s *Store) AppendFeatures(batch []models.StructuredListing, observedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := make([]models.FeatureRow, len(batch))
	inBatch := make(map[string]struct{}, len(batch))
	for i, l := range batch {
		rows[i] = identity.FeatureRow(l)
		key := rows[i].AddrStr
		if _, ok := s.index[key]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateKey, key)
		}
		if _, ok := inBatch[key]; ok {
			return fmt.Errorf("%w: %s repeated in batch", ErrDuplicateKey, key)
		}
		inBatch[key] = struct{}{}
	}

	for i, row := range rows {
		s.index[row.AddrStr] = len(s.features)
		s.features = append(s.features, row)
		s.recordHistory(models.PriceObservation{
			AddressKey: row.AddrStr,
			ObservedAt: observedAt,
			Price:      batch[i].CurrentPrice,
		})
	}
	return nil
}

// AppendHistory records a price observation for a known address. It returns
// false when the observation was collapsed into an earlier one from the same day.
func (s *Store) AppendHistory(obs models.PriceObservation) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[obs.AddressKey]; !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownKey, obs.AddressKey)
	}
	if s.opts.CollapseSameDay {
		if day, ok := s.lastDay[obs.AddressKey]; ok && day == obs.ObservedAt/secondsPerDay {
			return false, nil
		}
	}
	s.recordHistory(obs)
	return true, nil
}

func (s *Store) recordHistory(obs models.PriceObservation) {
	s.history = append(s.history, obs)
	day := obs.ObservedAt / secondsPerDay
	if prev, ok := s.lastDay[obs.AddressKey]; !ok || day > prev {
		s.lastDay[obs.AddressKey] = day
	}
}

// Feature returns the Features row for key.
func (s *Store) Feature(key string) (models.FeatureRow, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[key]
	if !ok {
		return models.FeatureRow{}, false
	}
	return s.features[i], true
}

func (s *Store) Features() []models.FeatureRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.FeatureRow(nil), s.features...)
}

func (s *Store) History() []models.PriceObservation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.PriceObservation(nil), s.history...)
}

// Len returns the row counts of both tables.
func (s *Store) Len() (features, history int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.features), len(s.history)
}

// Head returns up to n Features rows from the start of the table.
func (s *Store) Head(n int) []models.FeatureRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n > len(s.features) {
		n = len(s.features)
	}
	return append([]models.FeatureRow(nil), s.features[:n]...)
}

// FlushToDisk writes both tables. Each file is written to a temporary
// sibling and renamed into place, so a failed write leaves the old file intact.
func (s *Store) FlushToDisk() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := writeTable(s.paths.Features, FeatureColumns, len(s.features), func(i int) []string {
		return featureRecord(s.features[i])
	}); err != nil {
		return fmt.Errorf("write features: %w", err)
	}
	if err := writeTable(s.paths.History, HistoryColumns, len(s.history), func(i int) []string {
		return historyRecord(s.history[i])
	}); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}

func writeTable(path string, header []string, n int, record func(int) []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	cleanup := func() {
		f.Close()
		os.Remove(tmp)
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		cleanup()
		return err
	}
	for i := 0; i < n; i++ {
		if err := w.Write(record(i)); err != nil {
			cleanup()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		cleanup()
		return err
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
