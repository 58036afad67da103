package state

import (
	"errors"

	"github.com/nashra-hq/nashra-dispatch/internal/domain"
)

// Package state persists the last published fingerprint per source.

// ErrUnavailable marks storage failures. Callers must treat it as "no safe
// decision possible" for the cycle, never as "nothing seen": assuming an
// empty store would re-publish already delivered items.
var ErrUnavailable = errors.New("state store unavailable")

// Store tracks the last published item fingerprint per source. Records are
// created on first successful publish and advanced only after a fully
// successful publish cycle.
type Store interface {
	// GetLast returns the stored fingerprint for the source. An empty string
	// with a nil error means no item was ever published for that source.
	GetLast(source domain.SourceID) (string, error)
	// SetLast durably records the fingerprint before returning nil; the
	// caller treats a nil return as the commit point of the cycle.
	SetLast(source domain.SourceID, fingerprint string) error
	Close() error
}
