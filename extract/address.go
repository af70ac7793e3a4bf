package extract

import (
	"strconv"
	"strings"

	"listing_ledger/models"
)

// ParseAddress parses "street, city, ST zip" or "street, unit, city, ST zip".
func ParseAddress(raw string) (models.Address, error) {
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) < 3 {
		return models.Address{}, addressError(raw, "too few components")
	}

	stateZip := strings.Fields(parts[len(parts)-1])
	if len(stateZip) != 2 {
		return models.Address{}, addressError(raw, "last component is not \"state zip\"")
	}
	comps := append(parts[:len(parts)-1:len(parts)-1], stateZip...)

	var addr models.Address
	switch len(comps) {
	case 4:
	case 5:
		apt, ok := parseUnit(comps[1])
		if !ok {
			return models.Address{}, addressError(raw, "unreadable unit")
		}
		addr.Apt = &apt
		comps = append(comps[:1], comps[2:]...)
	default:
		return models.Address{}, addressError(raw, "unexpected component count")
	}

	addr.Street, addr.City, addr.State = comps[0], comps[1], comps[2]
	if addr.Street == "" || addr.City == "" {
		return models.Address{}, addressError(raw, "empty street or city")
	}
	if !isStateCode(addr.State) {
		return models.Address{}, addressError(raw, "state is not two letters")
	}
	// The street must be longer than the city; otherwise the split landed on the wrong comma.
	if len(addr.Street) <= len(addr.City) {
		return models.Address{}, addressError(raw, "street not longer than city")
	}

	zip, ok := parseZip(comps[3])
	if !ok {
		return models.Address{}, addressError(raw, "bad zip")
	}
	addr.Zip = zip
	return addr, nil
}

// parseUnit reads designators such as "Apt 4", "Unit 12", "#7" or "3".
func parseUnit(s string) (int, bool) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, false
	}
	num := strings.TrimPrefix(fields[len(fields)-1], "#")
	n, err := strconv.ParseInt(num, 10, 32)
	if err != nil || n < 0 {
		return 0, false
	}
	return int(n), true
}

func parseZip(s string) (uint32, bool) {
	if i := strings.IndexByte(s, '-'); i > 0 {
		s = s[:i]
	}
	if len(s) != 5 {
		return 0, false
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}

func isStateCode(s string) bool {
	if len(s) != 2 {
		return false
	}
	for i := 0; i < 2; i++ {
		c := s[i]
		if (c < 'A' || c > 'Z') && (c < 'a' || c > 'z') {
			return false
		}
	}
	return true
}
