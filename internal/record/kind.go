package record

import (
	"fmt"
	"strings"
)

// Kind classifies why a stock change happened.
type Kind string

const (
	// KindManual is a direct edit in an admin surface.
	KindManual Kind = "manual"

	// KindOrder is stock consumed by order fulfillment.
	KindOrder Kind = "order"

	// KindRestore is stock returned by an order cancellation or refund.
	KindRestore Kind = "restore"

	// KindProgrammatic is an update made through the programmatic API.
	KindProgrammatic Kind = "programmatic"
)

// legacyProgrammatic is the value older logs used for programmatic changes.
const legacyProgrammatic = "rest_api"

// Kinds lists every valid kind in display order.
var Kinds = []Kind{KindManual, KindOrder, KindRestore, KindProgrammatic}

// ParseKind parses a kind name, accepting the legacy "rest_api" alias.
func ParseKind(s string) (Kind, error) {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case string(KindManual), string(KindOrder), string(KindRestore), string(KindProgrammatic):
		return Kind(v), nil
	case legacyProgrammatic:
		return KindProgrammatic, nil
	default:
		return "", fmt.Errorf("invalid change kind %q: must be one of manual, order, restore, programmatic", s)
	}
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindManual, KindOrder, KindRestore, KindProgrammatic:
		return true
	}
	return false
}

// Label returns the human-readable label used in listings.
func (k Kind) Label() string {
	switch k {
	case KindManual:
		return "Manual"
	case KindOrder:
		return "Order"
	case KindRestore:
		return "Restore"
	case KindProgrammatic:
		return "API"
	default:
		return string(k)
	}
}
