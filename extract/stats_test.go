package extract

import "testing"

func TestClassifyStat(t *testing.T) {
	tests := []struct {
		raw   string
		kind  StatKind
		unit  LotUnit
		value int64
	}{
		{"3 beds", StatBed, LotUnknown, 3},
		{"1 bed", StatBed, LotUnknown, 1},
		{"2.5 baths", StatBath, LotUnknown, 2},
		{"— baths", StatBath, LotUnknown, -1},
		{"Studio bed", StatBed, LotUnknown, -1},
		{"1,850 sq ft", StatHouseArea, LotUnknown, 1850},
		{"1,850 Sq Ft", StatHouseArea, LotUnknown, 1850},
		{"6,000 sq ft lot", StatLot, LotArea, 6000},
		{"0.5 acres (lot)", StatLot, LotAcres, 21780},
		{"lot size unknown here now", StatLot, LotUnknown, -1},
		{"sq ft", StatHouseArea, LotUnknown, -1},
		{"Price cut", StatUnrecognized, LotUnknown, -1},
	}
	for _, tt := range tests {
		got := ClassifyStat(tt.raw)
		if got.Kind != tt.kind || got.Unit != tt.unit || got.Value != tt.value {
			t.Errorf("ClassifyStat(%q) = {%s unit=%d value=%d}; want {%s unit=%d value=%d}",
				tt.raw, got.Kind, got.Unit, got.Value, tt.kind, tt.unit, tt.value)
		}
	}
}

func TestLotAreaUsesValueDirectly(t *testing.T) {
	tok := ClassifyStat("6,000 square feet lot")
	if tok.Unit != LotArea || tok.Value != 6000 {
		t.Fatalf("expected area lot of 6000, got unit=%d value=%d", tok.Unit, tok.Value)
	}
}

func TestLotAcresConversion(t *testing.T) {
	tok := ClassifyStat("0.5 acres lot")
	if tok.Unit != LotAcres {
		t.Fatalf("expected acres unit, got %d", tok.Unit)
	}
	if tok.Value != 21780 {
		t.Fatalf("expected round(0.5 * %d) = 21780, got %d", AcreSqFt, tok.Value)
	}
}

func TestAcresToSqFtMonotonic(t *testing.T) {
	prev := AcresToSqFt(0)
	for acres := 0.001; acres < 200; acres += 0.137 {
		cur := AcresToSqFt(acres)
		if cur < prev {
			t.Fatalf("conversion not monotonic at %.3f acres: %d < %d", acres, cur, prev)
		}
		prev = cur
	}
}

func TestAcresToSqFtOverflow(t *testing.T) {
	if got := AcresToSqFt(1e6); got != -1 {
		t.Fatalf("expected -1 for out-of-range acreage, got %d", got)
	}
}
