package dataset

import (
	"errors"
	"fmt"
	"strconv"

	"listing_ledger/models"
)

// Persisted column layouts. Column order on disk may differ; the set of
// names must match exactly.
var (
	FeatureColumns = []string{"beds", "baths", "sqft", "lot_size", "street", "apt", "city", "state", "zip", "addr_str"}
	HistoryColumns = []string{"addr_str", "date", "price"}
)

var (
	ErrSchemaMismatch = errors.New("dataset: schema mismatch")
	ErrDuplicateKey   = errors.New("dataset: address key already in features")
	ErrUnknownKey     = errors.New("dataset: address key not in features")
)

// columnIndex maps each expected column to its position in header.
func columnIndex(header, want []string) (map[string]int, error) {
	if len(header) != len(want) {
		return nil, fmt.Errorf("%w: got %d columns, want %d", ErrSchemaMismatch, len(header), len(want))
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[name] = i
	}
	for _, name := range want {
		if _, ok := idx[name]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrSchemaMismatch, name)
		}
	}
	return idx, nil
}

func featureRecord(r models.FeatureRow) []string {
	return []string{
		strconv.FormatInt(int64(r.Beds), 10),
		strconv.FormatInt(int64(r.Baths), 10),
		strconv.FormatUint(uint64(r.SqFt), 10),
		strconv.FormatInt(int64(r.LotSize), 10),
		r.Street,
		strconv.FormatInt(int64(r.Apt), 10),
		r.City,
		r.State,
		strconv.FormatUint(uint64(r.Zip), 10),
		r.AddrStr,
	}
}

func historyRecord(o models.PriceObservation) []string {
	return []string{
		o.AddressKey,
		strconv.FormatInt(o.ObservedAt, 10),
		strconv.FormatUint(uint64(o.Price), 10),
	}
}

// fieldParser reads typed cells from one record, keeping the first error.
type fieldParser struct {
	idx    map[string]int
	record []string
	err    error
}

func (p *fieldParser) str(col string) string {
	return p.record[p.idx[col]]
}

func (p *fieldParser) int32(col string) int32 {
	v, err := strconv.ParseInt(p.str(col), 10, 32)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("%w: column %s: %v", ErrSchemaMismatch, col, err)
	}
	return int32(v)
}

func (p *fieldParser) uint32(col string) uint32 {
	v, err := strconv.ParseUint(p.str(col), 10, 32)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("%w: column %s: %v", ErrSchemaMismatch, col, err)
	}
	return uint32(v)
}

func parseFeatureRecord(idx map[string]int, record []string) (models.FeatureRow, error) {
	p := &fieldParser{idx: idx, record: record}
	row := models.FeatureRow{
		Beds:    p.int32("beds"),
		Baths:   p.int32("baths"),
		SqFt:    p.uint32("sqft"),
		LotSize: p.int32("lot_size"),
		Street:  p.str("street"),
		Apt:     p.int32("apt"),
		City:    p.str("city"),
		State:   p.str("state"),
		Zip:     p.uint32("zip"),
		AddrStr: p.str("addr_str"),
	}
	if p.err == nil && row.AddrStr == "" {
		p.err = fmt.Errorf("%w: empty addr_str", ErrSchemaMismatch)
	}
	return row, p.err
}

func parseHistoryRecord(idx map[string]int, record []string) (models.PriceObservation, error) {
	p := &fieldParser{idx: idx, record: record}
	obs := models.PriceObservation{
		AddressKey: p.str("addr_str"),
		ObservedAt: int64(p.uint32("date")),
		Price:      p.uint32("price"),
	}
	return obs, p.err
}
