package scraper

import (
	"os"
	"path/filepath"
	"testing"

	"listing_ledger/config"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	path := filepath.Join("testdata", name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return data
}

func redfinSite(t *testing.T) *config.SiteConfig {
	t.Helper()
	site, err := config.LoadSiteConfig(filepath.Join("..", "config", "sites", "redfin.yaml"))
	if err != nil {
		t.Fatalf("load site config: %v", err)
	}
	return site
}

func TestParsePage_ZipResults(t *testing.T) {
	parser := NewPageParser(redfinSite(t))
	page, err := parser.ParseBytes(loadFixture(t, "redfin_zip_page.html"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if page.PageCount != 12 {
		t.Fatalf("expected 12 pages, got %d", page.PageCount)
	}
	if len(page.Fragments) != 3 {
		t.Fatalf("expected 3 cards, got %d", len(page.Fragments))
	}

	focused := page.Fragments[0]
	if focused.Price != "$350,000" {
		t.Fatalf("unexpected price %q", focused.Price)
	}
	if focused.Address != "123 Main Street, Austin, TX 78701" {
		t.Fatalf("unexpected address %q", focused.Address)
	}
	want := []string{"3 Beds", "2 Baths", "1,850 Sq Ft", "0.5 Acres (Lot)"}
	if len(focused.Stats) != len(want) {
		t.Fatalf("expected %d stats, got %q", len(want), focused.Stats)
	}
	for i := range want {
		if focused.Stats[i] != want[i] {
			t.Fatalf("stat %d = %q; want %q", i, focused.Stats[i], want[i])
		}
	}

	if page.Fragments[1].Address != "400 Congress Avenue, Unit 1204, Austin, TX 78701" {
		t.Fatalf("unexpected second address %q", page.Fragments[1].Address)
	}
	if page.Fragments[2].Price != "$89,900" {
		t.Fatalf("unexpected third price %q", page.Fragments[2].Price)
	}
}

func TestParsePage_NoPager(t *testing.T) {
	parser := NewPageParser(redfinSite(t))
	page, err := parser.ParseBytes(loadFixture(t, "redfin_single_page.html"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if page.PageCount != 1 {
		t.Fatalf("expected 1 page, got %d", page.PageCount)
	}
	if len(page.Fragments) != 1 {
		t.Fatalf("expected 1 card, got %d", len(page.Fragments))
	}
}

func TestParsePageCount(t *testing.T) {
	tests := []struct {
		text    string
		want    int
		wantErr bool
	}{
		{"Viewing page 1 of 7", 7, false},
		{"Viewing page 1 of 12", 12, false},
		{"Viewing page 3 of 105", 105, false},
		{"", 0, true},
		{"Viewing page 1 of", 0, true},
		{"Viewing page 1 of 0", 0, true},
	}
	for _, tt := range tests {
		got, err := ParsePageCount(tt.text)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePageCount(%q) error = %v; wantErr %v", tt.text, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePageCount(%q) = %d; want %d", tt.text, got, tt.want)
		}
	}
}

func TestSearchURL(t *testing.T) {
	tests := []struct {
		page int
		want string
	}{
		{1, "https://www.redfin.com/zipcode/78701"},
		{2, "https://www.redfin.com/zipcode/78701/page-2"},
		{11, "https://www.redfin.com/zipcode/78701/page-11"},
	}
	for _, tt := range tests {
		got, err := SearchURL("https://www.redfin.com/", SearchZipcode, "78701", tt.page)
		if err != nil {
			t.Fatalf("SearchURL page %d: %v", tt.page, err)
		}
		if got != tt.want {
			t.Errorf("SearchURL page %d = %q; want %q", tt.page, got, tt.want)
		}
	}
}

func TestSearchURLRejectsUnsupported(t *testing.T) {
	if _, err := SearchURL("https://www.redfin.com", SearchCity, "Austin", 1); err == nil {
		t.Fatal("expected error for city search")
	}
	if _, err := SearchURL("https://www.redfin.com", SearchZipcode, "7870", 1); err == nil {
		t.Fatal("expected error for short zip")
	}
	if _, err := SearchURL("https://www.redfin.com", SearchZipcode, "78701", 0); err == nil {
		t.Fatal("expected error for page 0")
	}
}
