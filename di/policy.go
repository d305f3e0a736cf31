package di

import "errors"

// ErrDuplicateEntry is returned by ApplyPolicy when PolicyFail meets an
// existing entry.
var ErrDuplicateEntry = errors.New("di: duplicate entry")

// ApplyPolicy decides between an existing and an incoming binding.
//
// It returns the binding to keep and whether incoming took the slot. When
// nothing is present incoming always wins. With an existing binding,
// PolicyOverride takes incoming, PolicyDrop keeps existing and PolicyFail
// keeps existing and returns ErrDuplicateEntry.
//
// It is shared by single-binding registration and multi-binding aggregation.
func ApplyPolicy[T any](existing T, present bool, incoming T, policy OverridePolicy) (T, bool, error) {
	if !present {
		return incoming, true, nil
	}
	switch policy {
	case PolicyOverride:
		return incoming, true, nil
	case PolicyDrop:
		return existing, false, nil
	default:
		return existing, false, ErrDuplicateEntry
	}
}
