package models

// Address is a parsed listing address. Apt is nil when the listing has no unit.
type Address struct {
	Street string `json:"street"`
	Apt    *int   `json:"apt,omitempty"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    uint32 `json:"zip"`
}

// AptOrNone returns the unit number, or NoApt when the address has none.
func (a Address) AptOrNone() int32 {
	if a.Apt == nil {
		return NoApt
	}
	return int32(*a.Apt)
}

// Sentinels used in persisted rows.
const (
	NoApt        int32 = -1
	UnknownBeds  int32 = -1
	UnknownBaths int32 = -1
	UnknownLot   int32 = -1
)

// StructuredListing is one listing card after field extraction.
type StructuredListing struct {
	CurrentPrice uint32  `json:"current_price"`
	Beds         int32   `json:"beds"`
	Baths        int32   `json:"baths"`
	SqFt         uint32  `json:"sqft"`
	LotSize      int32   `json:"lot_size"`
	Address      Address `json:"address"`
}

// PriceObservation records a price seen for an address at a point in time.
type PriceObservation struct {
	AddressKey string `json:"addr_str" db:"addr_str"`
	ObservedAt int64  `json:"date" db:"date"`
	Price      uint32 `json:"price" db:"price"`
}

// FeatureRow is one persisted row of the Features table.
type FeatureRow struct {
	Beds    int32  `json:"beds" db:"beds"`
	Baths   int32  `json:"baths" db:"baths"`
	SqFt    uint32 `json:"sqft" db:"sqft"`
	LotSize int32  `json:"lot_size" db:"lot_size"`
	Street  string `json:"street" db:"street"`
	Apt     int32  `json:"apt" db:"apt"`
	City    string `json:"city" db:"city"`
	State   string `json:"state" db:"state"`
	Zip     uint32 `json:"zip" db:"zip"`
	AddrStr string `json:"addr_str" db:"addr_str"`
}
