package extract

import (
	"errors"
	"fmt"
)

// Kind identifies why a fragment could not be turned into a listing.
type Kind int

const (
	// KindPrice means the price text was not a number.
	KindPrice Kind = iota + 1
	// KindAddress means the address text did not split into valid components.
	KindAddress
	// KindInvariant means the stats disagreed with what a listing card must contain.
	// It points at a change in the page markup rather than at a bad listing.
	KindInvariant
)

func (k Kind) String() string {
	switch k {
	case KindPrice:
		return "price"
	case KindAddress:
		return "address"
	case KindInvariant:
		return "invariant"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is returned for every extraction failure. Raw holds the offending text.
type Error struct {
	Kind   Kind
	Raw    string
	Reason string
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("extract %s: %q", e.Kind, e.Raw)
	}
	return fmt.Sprintf("extract %s: %s: %q", e.Kind, e.Reason, e.Raw)
}

func priceError(raw, reason string) error {
	return &Error{Kind: KindPrice, Raw: raw, Reason: reason}
}

func addressError(raw, reason string) error {
	return &Error{Kind: KindAddress, Raw: raw, Reason: reason}
}

func invariantError(raw, reason string) error {
	return &Error{Kind: KindInvariant, Raw: raw, Reason: reason}
}

// KindOf returns the extraction kind of err, or 0 if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsDefect reports whether err signals a broken assumption about the page
// markup instead of a single malformed listing.
func IsDefect(err error) bool {
	return KindOf(err) == KindInvariant
}
