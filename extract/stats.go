package extract

import (
	"math"
	"strconv"
	"strings"
)

// AcreSqFt is the number of square feet in one acre.
const AcreSqFt = 43560

// StatKind tags a classified stat token.
type StatKind int

const (
	StatUnrecognized StatKind = iota
	StatBed
	StatBath
	StatLot
	StatHouseArea
)

func (k StatKind) String() string {
	switch k {
	case StatBed:
		return "bed"
	case StatBath:
		return "bath"
	case StatLot:
		return "lot"
	case StatHouseArea:
		return "house_area"
	default:
		return "unrecognized"
	}
}

// LotUnit says how a lot token reported its size.
type LotUnit int

const (
	LotUnknown LotUnit = iota
	LotArea
	LotAcres
)

// StatToken is one stat line of a listing card after classification.
// Value is the count for beds/baths and square feet for lot and house area;
// -1 means the token was recognized but its value could not be read.
type StatToken struct {
	Kind  StatKind
	Unit  LotUnit
	Value int64
	Acres float64
	Text  string
}

// ClassifyStat turns one raw stat token into a StatToken. "lot" is tested
// before "sq ft" because lot tokens given in area contain both.
func ClassifyStat(raw string) StatToken {
	text := strings.TrimSpace(raw)
	lower := strings.ToLower(text)
	words := strings.Fields(text)

	switch {
	case strings.Contains(lower, "lot"):
		return classifyLot(text, words)
	case strings.Contains(lower, "bed"):
		return StatToken{Kind: StatBed, Value: leadingDigit(text), Text: text}
	case strings.Contains(lower, "bath"):
		return StatToken{Kind: StatBath, Value: leadingDigit(text), Text: text}
	case strings.Contains(lower, "sq ft"):
		tok := StatToken{Kind: StatHouseArea, Value: -1, Text: text}
		if len(words) == 3 {
			tok.Value = parseArea(words[0])
		}
		return tok
	default:
		return StatToken{Kind: StatUnrecognized, Value: -1, Text: text}
	}
}

func classifyLot(text string, words []string) StatToken {
	tok := StatToken{Kind: StatLot, Value: -1, Text: text}
	switch len(words) {
	case 4:
		tok.Unit = LotArea
		tok.Value = parseArea(words[0])
	case 3:
		tok.Unit = LotAcres
		acres, err := strconv.ParseFloat(strings.ReplaceAll(words[0], ",", ""), 64)
		if err != nil || acres < 0 || math.IsInf(acres, 0) || math.IsNaN(acres) {
			return tok
		}
		tok.Acres = acres
		tok.Value = AcresToSqFt(acres)
	}
	return tok
}

// AcresToSqFt converts acres to whole square feet, or -1 when the result does
// not fit the lot_size column.
func AcresToSqFt(acres float64) int64 {
	sqft := math.Round(acres * AcreSqFt)
	if sqft > math.MaxInt32 {
		return -1
	}
	return int64(sqft)
}

func parseArea(word string) int64 {
	v, err := strconv.ParseUint(strings.ReplaceAll(word, ",", ""), 10, 31)
	if err != nil {
		return -1
	}
	return int64(v)
}

func leadingDigit(text string) int64 {
	if text == "" || text[0] < '0' || text[0] > '9' {
		return -1
	}
	return int64(text[0] - '0')
}
