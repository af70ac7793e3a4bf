package main

import (
	"testing"

	"listing_ledger/models"
)

func TestMaskConnectionString(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"postgres://user:secret@db:5432/ledger", "postgres://user:****@db:5432/ledger"},
		{"postgres://user@db/ledger", "postgres://user@db/ledger"},
		{"host=db user=x", "host=db user=x"},
	}
	for _, tt := range tests {
		if got := maskConnectionString(tt.in); got != tt.want {
			t.Errorf("maskConnectionString(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestCommandFor(t *testing.T) {
	cmd, params, err := commandFor("scrape_zip", []string{"78702", "78703"}, true)
	if err != nil {
		t.Fatalf("scrape_zip: %v", err)
	}
	if cmd != models.CmdScrapeZip || params == nil || params.Zip != "78702" || !params.ForceRefresh {
		t.Fatalf("unexpected command %s %+v", cmd, params)
	}

	cmd, params, err = commandFor("pause", nil, false)
	if err != nil || cmd != models.CmdPause || params != nil {
		t.Fatalf("pause: %s %+v %v", cmd, params, err)
	}

	for _, bad := range []string{"reboot", "scrape_zip"} {
		if _, _, err := commandFor(bad, nil, false); err == nil {
			t.Errorf("commandFor(%q) should fail", bad)
		}
	}
}
