// Package identity derives the dedup key for a listing address.
package identity

import (
	"fmt"
	"strconv"
	"strings"

	"listing_ledger/models"
)

const noApt = "apt:none"

var escaper = strings.NewReplacer(`\`, `\\`, `|`, `\|`)

// Key returns the canonical dedup key for addr. Distinct addresses always
// produce distinct keys; a missing unit is spelled out rather than encoded
// as a number so it can never collide with a real unit.
func Key(addr models.Address) string {
	apt := noApt
	if addr.Apt != nil {
		apt = "apt:" + strconv.Itoa(*addr.Apt)
	}
	return fmt.Sprintf("%s|%s|%s|%s|%05d",
		escaper.Replace(addr.Street),
		apt,
		escaper.Replace(addr.City),
		escaper.Replace(addr.State),
		addr.Zip,
	)
}

// Display formats addr the way it appears on a listing card.
func Display(addr models.Address) string {
	if addr.Apt == nil {
		return fmt.Sprintf("%s, %s, %s %05d", addr.Street, addr.City, addr.State, addr.Zip)
	}
	return fmt.Sprintf("%s, %d, %s, %s %05d", addr.Street, *addr.Apt, addr.City, addr.State, addr.Zip)
}

// FeatureRow converts a listing into its Features table row.
func FeatureRow(l models.StructuredListing) models.FeatureRow {
	return models.FeatureRow{
		Beds:    l.Beds,
		Baths:   l.Baths,
		SqFt:    l.SqFt,
		LotSize: l.LotSize,
		Street:  l.Address.Street,
		Apt:     l.Address.AptOrNone(),
		City:    l.Address.City,
		State:   l.Address.State,
		Zip:     l.Address.Zip,
		AddrStr: Key(l.Address),
	}
}

// AddressFromRow rebuilds the address stored in a Features row.
func AddressFromRow(r models.FeatureRow) models.Address {
	addr := models.Address{Street: r.Street, City: r.City, State: r.State, Zip: r.Zip}
	if r.Apt != models.NoApt {
		apt := int(r.Apt)
		addr.Apt = &apt
	}
	return addr
}
