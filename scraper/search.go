package scraper

import (
	"fmt"
	"strings"
)

// SearchBy is the kind of search a results page was built from.
type SearchBy int

const (
	SearchZipcode SearchBy = iota
	SearchCity
	SearchAddress
	SearchSchool
	SearchAgent
)

func (s SearchBy) String() string {
	switch s {
	case SearchZipcode:
		return "zipcode"
	case SearchCity:
		return "city"
	case SearchAddress:
		return "address"
	case SearchSchool:
		return "school"
	case SearchAgent:
		return "agent"
	}
	return fmt.Sprintf("SearchBy(%d)", int(s))
}

// SearchURL builds the results URL for a target. Page 1 has no page suffix.
// Only zip code searches have a known URL layout.
func SearchURL(baseURL string, by SearchBy, target string, page int) (string, error) {
	if by != SearchZipcode {
		return "", fmt.Errorf("search by %s is not supported", by)
	}
	if !isZip(target) {
		return "", fmt.Errorf("invalid zip code %q", target)
	}
	if page < 1 {
		return "", fmt.Errorf("invalid page %d", page)
	}

	u := strings.TrimRight(baseURL, "/") + "/zipcode/" + target
	if page > 1 {
		u += fmt.Sprintf("/page-%d", page)
	}
	return u, nil
}

func isZip(s string) bool {
	if len(s) != 5 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
