// Package extract turns one listing card into a models.StructuredListing.
// Extraction is pure: the same Fragment always yields the same result.
package extract

import (
	"strconv"
	"strings"

	"listing_ledger/logging"
	"listing_ledger/models"
)

// Fragment holds the text pulled out of one listing card.
type Fragment struct {
	Price   string
	Stats   []string
	Address string
}

// ParsePrice parses "$1,234,567" style prices.
func ParsePrice(raw string) (uint32, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, priceError(raw, "empty")
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, priceError(raw, "not numeric")
	}
	return uint32(v), nil
}

// ExtractPrice parses only the card's price.
func ExtractPrice(f Fragment) (uint32, error) {
	return ParsePrice(f.Price)
}

// ExtractAddress parses only the card's address. The engine uses it to
// decide whether a card is already known before doing a full extraction.
func ExtractAddress(f Fragment) (models.Address, error) {
	return ParseAddress(f.Address)
}

// Extract parses the whole card. The result must resolve at least one of
// beds and baths; a card where both are still unknown, or where sqft equals
// the lot size, is rejected with a KindInvariant error. A card with only one
// of the two unresolved is accepted.
func Extract(f Fragment) (models.StructuredListing, error) {
	price, err := ParsePrice(f.Price)
	if err != nil {
		return models.StructuredListing{}, err
	}

	listing := models.StructuredListing{
		CurrentPrice: price,
		Beds:         models.UnknownBeds,
		Baths:        models.UnknownBaths,
		LotSize:      models.UnknownLot,
	}
	for _, raw := range f.Stats {
		applyStat(&listing, ClassifyStat(raw))
	}

	addr, err := ParseAddress(f.Address)
	if err != nil {
		return models.StructuredListing{}, err
	}
	listing.Address = addr

	if listing.Beds == models.UnknownBeds && listing.Baths == models.UnknownBaths {
		return models.StructuredListing{}, invariantError(strings.Join(f.Stats, " | "), "neither beds nor baths resolved")
	}
	if int64(listing.SqFt) == int64(listing.LotSize) {
		return models.StructuredListing{}, invariantError(strings.Join(f.Stats, " | "), "sqft equals lot size")
	}
	return listing, nil
}

func applyStat(l *models.StructuredListing, tok StatToken) {
	switch tok.Kind {
	case StatBed:
		l.Beds = int32(tok.Value)
	case StatBath:
		l.Baths = int32(tok.Value)
	case StatLot:
		if tok.Unit == LotUnknown {
			logging.Warnf("lot token %q has %d words, leaving lot size unset", tok.Text, len(strings.Fields(tok.Text)))
			return
		}
		if tok.Value < 0 {
			logging.Warnf("unreadable lot size %q", tok.Text)
			return
		}
		l.LotSize = int32(tok.Value)
	case StatHouseArea:
		if tok.Value < 0 {
			logging.Warnf("unreadable house area %q", tok.Text)
			return
		}
		l.SqFt = uint32(tok.Value)
	default:
		logging.Infof("ignoring stat token %q", tok.Text)
	}
}
