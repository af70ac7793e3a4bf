package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"listing_ledger/identity"
	"listing_ledger/models"
)

func listing(street string, apt *int, price uint32) models.StructuredListing {
	return models.StructuredListing{
		CurrentPrice: price,
		Beds:         3,
		Baths:        2,
		SqFt:         1850,
		LotSize:      21780,
		Address: models.Address{
			Street: street,
			Apt:    apt,
			City:   "Springfield",
			State:  "IL",
			Zip:    62701,
		},
	}
}

func testPaths(t *testing.T) Paths {
	t.Helper()
	return PathsIn(t.TempDir(), "features.csv", "history.csv")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadMissingFilesStartsEmpty(t *testing.T) {
	s, rep := Load(testPaths(t), LoadOptions{})
	if rep.FromDisk || rep.Err != nil {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if f, h := s.Len(); f != 0 || h != 0 {
		t.Fatalf("expected empty store, got %d features %d history", f, h)
	}
}

func TestExistsIsMembership(t *testing.T) {
	s, _ := Load(testPaths(t), LoadOptions{})
	known := listing("123 Main Street", nil, 350000)
	if err := s.AppendFeatures([]models.StructuredListing{known}, 1700000000); err != nil {
		t.Fatalf("append: %v", err)
	}

	if !s.Exists(identity.Key(known.Address)) {
		t.Fatal("expected appended key to exist")
	}
	other := listing("9 Elm Street Extension", nil, 1)
	if s.Exists(identity.Key(other.Address)) {
		t.Fatal("unseen address reported as existing")
	}
	apt := 4
	if s.Exists(identity.Key(listing("123 Main Street", &apt, 1).Address)) {
		t.Fatal("unit address collided with no-unit address")
	}
}

func TestAppendFeaturesRecordsFirstObservation(t *testing.T) {
	s, _ := Load(testPaths(t), LoadOptions{})
	l := listing("123 Main Street", nil, 350000)
	if err := s.AppendFeatures([]models.StructuredListing{l}, 1700000000); err != nil {
		t.Fatalf("append: %v", err)
	}

	hist := s.History()
	if len(hist) != 1 {
		t.Fatalf("expected 1 history row, got %d", len(hist))
	}
	want := models.PriceObservation{AddressKey: identity.Key(l.Address), ObservedAt: 1700000000, Price: 350000}
	if hist[0] != want {
		t.Fatalf("history row = %+v; want %+v", hist[0], want)
	}
}

func TestAppendFeaturesRejectsDuplicates(t *testing.T) {
	s, _ := Load(testPaths(t), LoadOptions{})
	a := listing("123 Main Street", nil, 350000)
	b := listing("456 Oak Avenue", nil, 200000)
	if err := s.AppendFeatures([]models.StructuredListing{a}, 1); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := s.AppendFeatures([]models.StructuredListing{b, a}, 2); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey for existing key, got %v", err)
	}
	if err := s.AppendFeatures([]models.StructuredListing{b, b}, 2); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey for in-batch repeat, got %v", err)
	}
	if f, h := s.Len(); f != 1 || h != 1 {
		t.Fatalf("rejected batch mutated store: %d features %d history", f, h)
	}
}

func TestAppendHistoryUnknownKey(t *testing.T) {
	s, _ := Load(testPaths(t), LoadOptions{})
	_, err := s.AppendHistory(models.PriceObservation{AddressKey: "nope", ObservedAt: 1, Price: 1})
	if !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
}

func TestAppendHistoryCollapseSameDay(t *testing.T) {
	const day = 1700006400 // midnight UTC
	l := listing("123 Main Street", nil, 350000)
	key := identity.Key(l.Address)

	tests := []struct {
		name     string
		collapse bool
		at       int64
		want     bool
	}{
		{"default appends same day", false, day + 3600, true},
		{"collapse skips same day", true, day + 3600, false},
		{"collapse keeps next day", true, day + 86400, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := Load(testPaths(t), LoadOptions{CollapseSameDay: tt.collapse})
			if err := s.AppendFeatures([]models.StructuredListing{l}, day); err != nil {
				t.Fatalf("append: %v", err)
			}
			got, err := s.AppendHistory(models.PriceObservation{AddressKey: key, ObservedAt: tt.at, Price: 340000})
			if err != nil {
				t.Fatalf("append history: %v", err)
			}
			if got != tt.want {
				t.Fatalf("AppendHistory = %v; want %v", got, tt.want)
			}
		})
	}
}

func TestFlushRoundTrip(t *testing.T) {
	paths := testPaths(t)
	s, _ := Load(paths, LoadOptions{})
	apt := 12
	a := listing("123 Main Street", nil, 350000)
	b := listing("77 Harbor View Road", &apt, 199000)
	b.Address.Street = `77 Harbor | "View" Road, Rear`
	b.LotSize = models.UnknownLot
	b.SqFt = 0
	if err := s.AppendFeatures([]models.StructuredListing{a, b}, 1700000000); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := s.AppendHistory(models.PriceObservation{AddressKey: identity.Key(a.Address), ObservedAt: 1700100000, Price: 345000}); err != nil {
		t.Fatalf("append history: %v", err)
	}
	if err := s.FlushToDisk(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	loaded, rep := Load(paths, LoadOptions{})
	if !rep.FromDisk {
		t.Fatalf("expected load from disk, got %+v", rep)
	}
	gotF, wantF := loaded.Features(), s.Features()
	if len(gotF) != len(wantF) {
		t.Fatalf("features: got %d rows, want %d", len(gotF), len(wantF))
	}
	for i := range wantF {
		if gotF[i] != wantF[i] {
			t.Errorf("features[%d] = %+v; want %+v", i, gotF[i], wantF[i])
		}
	}
	gotH, wantH := loaded.History(), s.History()
	if len(gotH) != len(wantH) {
		t.Fatalf("history: got %d rows, want %d", len(gotH), len(wantH))
	}
	for i := range wantH {
		if gotH[i] != wantH[i] {
			t.Errorf("history[%d] = %+v; want %+v", i, gotH[i], wantH[i])
		}
	}
	if !loaded.Exists(identity.Key(b.Address)) {
		t.Fatal("reloaded store lost key")
	}

	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(paths.Features), "*.tmp"))
	if len(matches) != 0 {
		t.Fatalf("temporary files left behind: %v", matches)
	}
}

func TestLoadForceRefreshIgnoresDisk(t *testing.T) {
	paths := testPaths(t)
	s, _ := Load(paths, LoadOptions{})
	if err := s.AppendFeatures([]models.StructuredListing{listing("123 Main Street", nil, 1)}, 1); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.FlushToDisk(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	fresh, rep := Load(paths, LoadOptions{ForceRefresh: true})
	if rep.FromDisk {
		t.Fatal("force refresh loaded from disk")
	}
	if f, _ := fresh.Len(); f != 0 {
		t.Fatalf("force refresh store has %d features", f)
	}
}

func TestLoadColumnOrderImmaterial(t *testing.T) {
	paths := testPaths(t)
	writeFile(t, paths.Features,
		"addr_str,zip,state,city,apt,street,lot_size,sqft,baths,beds\n"+
			"k1,62701,IL,Springfield,-1,123 Main Street,21780,1850,2,3\n")
	writeFile(t, paths.History, "price,date,addr_str\n350000,1700000000,k1\n")

	s, rep := Load(paths, LoadOptions{})
	if !rep.FromDisk {
		t.Fatalf("expected load from disk, got %+v", rep)
	}
	row, ok := s.Feature("k1")
	if !ok {
		t.Fatal("row k1 missing")
	}
	if row.Beds != 3 || row.SqFt != 1850 || row.Street != "123 Main Street" || row.Apt != models.NoApt {
		t.Fatalf("row parsed wrong: %+v", row)
	}
	if h := s.History(); len(h) != 1 || h[0].Price != 350000 {
		t.Fatalf("history parsed wrong: %+v", h)
	}
}

func TestLoadFallsBackOnBadData(t *testing.T) {
	const header = "beds,baths,sqft,lot_size,street,apt,city,state,zip,addr_str\n"
	const row = "3,2,1850,21780,123 Main Street,-1,Springfield,IL,62701,k1\n"

	tests := []struct {
		name     string
		features string
		history  string
	}{
		{"wrong columns", "beds,baths,price\n1,2,3\n", ""},
		{"extra column", "beds,baths,sqft,lot_size,street,apt,city,state,zip,addr_str,x\n", ""},
		{"bad cell", header + "three,2,1850,21780,123 Main Street,-1,Springfield,IL,62701,k1\n", ""},
		{"duplicate key", header + row + row, ""},
		{"empty file", "", ""},
		{"history orphan", header + row, "addr_str,date,price\nk2,1,1\n"},
		{"history bad header", header + row, "addr_str,when,price\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paths := testPaths(t)
			writeFile(t, paths.Features, tt.features)
			if tt.history != "" {
				writeFile(t, paths.History, tt.history)
			}

			s, rep := Load(paths, LoadOptions{})
			if rep.FromDisk {
				t.Fatal("expected fallback to empty dataset")
			}
			if !errors.Is(rep.Err, ErrSchemaMismatch) {
				t.Fatalf("expected ErrSchemaMismatch, got %v", rep.Err)
			}
			if f, h := s.Len(); f != 0 || h != 0 {
				t.Fatalf("fallback store not empty: %d/%d", f, h)
			}
		})
	}
}

func TestLoadFeaturesWithoutHistory(t *testing.T) {
	paths := testPaths(t)
	writeFile(t, paths.Features,
		"beds,baths,sqft,lot_size,street,apt,city,state,zip,addr_str\n"+
			"3,2,1850,21780,123 Main Street,-1,Springfield,IL,62701,k1\n")

	s, rep := Load(paths, LoadOptions{})
	if !rep.FromDisk {
		t.Fatalf("expected load from disk, got %+v", rep)
	}
	if f, h := s.Len(); f != 1 || h != 0 {
		t.Fatalf("got %d features %d history; want 1/0", f, h)
	}
}

func TestHead(t *testing.T) {
	s, _ := Load(testPaths(t), LoadOptions{})
	batch := []models.StructuredListing{
		listing("1 First Street", nil, 1),
		listing("2 Second Street", nil, 2),
		listing("3 Third Street", nil, 3),
	}
	if err := s.AppendFeatures(batch, 1); err != nil {
		t.Fatalf("append: %v", err)
	}
	if got := s.Head(2); len(got) != 2 || got[0].Street != "1 First Street" {
		t.Fatalf("Head(2) = %+v", got)
	}
	if got := s.Head(10); len(got) != 3 {
		t.Fatalf("Head(10) returned %d rows", len(got))
	}
}
