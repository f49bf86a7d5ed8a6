package core

import "errors"

var (
	// ErrConfiguration marks every failure raised while building a RegionStore.
	// Specific causes below are wrapped alongside it, so callers can match on
	// either.
	ErrConfiguration = errors.New("configuration error")

	ErrNoRegions       = errors.New("no regions configured")
	ErrTooFewVertices  = errors.New("polygon needs at least 3 vertices")
	ErrEmptyRegionName = errors.New("region name is empty")
	ErrDuplicateRegion = errors.New("duplicate region name")
	ErrNonFiniteVertex = errors.New("vertex is not finite")
	ErrTooManyRegions  = errors.New("too many regions")

	// ErrSlotOutOfRange is returned for a visualization slot outside 0..Count()-1.
	ErrSlotOutOfRange = errors.New("region slot out of range")

	// ErrMalformedPosition is returned when a position event cannot be reduced
	// to a finite (x, y) pair. The event should be dropped.
	ErrMalformedPosition = errors.New("malformed position")
)
