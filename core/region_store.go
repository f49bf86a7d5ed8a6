package core

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"

	"github.com/signalsfoundry/regionwatch/model"
)

// UnknownRegion is reported for a position outside every region.
const UnknownRegion = "unknown"

// MembershipResult is the outcome of classifying one position: either a single
// region or unknown. A region literally named "unknown" publishes the same
// name as no match; use Known to tell them apart.
type MembershipResult struct {
	name string
	slot int
}

// Unknown returns the result for a position outside every region.
func Unknown() MembershipResult { return MembershipResult{slot: -1} }

// Name returns the region name, or UnknownRegion.
func (r MembershipResult) Name() string {
	if r.slot < 0 {
		return UnknownRegion
	}
	return r.name
}

// Known reports whether a region matched.
func (r MembershipResult) Known() bool { return r.slot >= 0 }

// Slot returns the load-order slot of the matched region, or -1.
func (r MembershipResult) Slot() int { return r.slot }

func (r MembershipResult) String() string { return r.Name() }

type storedRegion struct {
	region model.Region
	ring   orb.Ring
	bound  orb.Bound
}

// RegionStore holds the named polygons loaded at startup. It is immutable once
// built, so every method is safe for concurrent use without locking.
//
// Slots follow load order. Classification walks slots in that order and the
// first containing region wins; configurations use this to place a large
// fallback region after the smaller regions it encloses.
type RegionStore struct {
	regions []storedRegion
}

type storeOptions struct {
	allowEmpty bool
}

// StoreOption customises RegionStore construction.
type StoreOption func(*storeOptions)

// AllowEmpty permits a store with no regions. Every position then classifies
// as unknown.
func AllowEmpty() StoreOption {
	return func(o *storeOptions) { o.allowEmpty = true }
}

// NewRegionStore validates regions and builds a store. Input slices are copied.
// On any validation failure it returns a nil store and an error matching
// ErrConfiguration.
func NewRegionStore(regions []model.Region, opts ...StoreOption) (*RegionStore, error) {
	var o storeOptions
	for _, opt := range opts {
		opt(&o)
	}

	if len(regions) == 0 && !o.allowEmpty {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, ErrNoRegions)
	}
	if len(regions) > LabelIDOffset {
		return nil, fmt.Errorf("%w: %w: %d regions, limit is %d", ErrConfiguration, ErrTooManyRegions, len(regions), LabelIDOffset)
	}

	seen := make(map[string]int, len(regions))
	stored := make([]storedRegion, 0, len(regions))
	for i, r := range regions {
		if err := validateRegion(r); err != nil {
			return nil, fmt.Errorf("%w: region[%d] %q: %w", ErrConfiguration, i, r.Name, err)
		}
		if first, dup := seen[r.Name]; dup {
			return nil, fmt.Errorf("%w: region[%d] %q: %w (first defined at region[%d])", ErrConfiguration, i, r.Name, ErrDuplicateRegion, first)
		}
		seen[r.Name] = i

		clone := r.Clone()
		ring := closedRing(clone.Vertices)
		stored = append(stored, storedRegion{
			region: clone,
			ring:   ring,
			bound:  ring.Bound(),
		})
	}

	return &RegionStore{regions: stored}, nil
}

func validateRegion(r model.Region) error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrEmptyRegionName
	}
	if len(r.Vertices) < 3 {
		return fmt.Errorf("%w: got %d", ErrTooFewVertices, len(r.Vertices))
	}
	for j, v := range r.Vertices {
		if !v.IsFinite() {
			return fmt.Errorf("%w: vertex[%d] = (%v, %v)", ErrNonFiniteVertex, j, v.X, v.Y)
		}
	}
	return nil
}

// Count returns the number of loaded regions.
func (s *RegionStore) Count() int {
	if s == nil {
		return 0
	}
	return len(s.regions)
}

// Classify returns the first region, in load order, whose polygon contains p.
// Points on a boundary count as contained.
func (s *RegionStore) Classify(p model.Point) MembershipResult {
	if s == nil {
		return Unknown()
	}
	for i := range s.regions {
		r := &s.regions[i]
		if ringContains(r.ring, r.bound, p) {
			return MembershipResult{name: r.region.Name, slot: i}
		}
	}
	return Unknown()
}

// Region returns a copy of the region at slot.
func (s *RegionStore) Region(slot int) (model.Region, bool) {
	if s == nil || slot < 0 || slot >= len(s.regions) {
		return model.Region{}, false
	}
	return s.regions[slot].region.Clone(), true
}

// Regions returns copies of all regions in slot order.
func (s *RegionStore) Regions() []model.Region {
	out := make([]model.Region, 0, s.Count())
	for slot := 0; slot < s.Count(); slot++ {
		out = append(out, s.regions[slot].region.Clone())
	}
	return out
}

// Visualization derives the outline and label markers for slot. The result
// depends only on the stored polygon, so repeated calls return equal payloads.
func (s *RegionStore) Visualization(slot int) (VisualizationPayload, error) {
	if s == nil || slot < 0 || slot >= len(s.regions) {
		return VisualizationPayload{}, fmt.Errorf("%w: %d (have %d)", ErrSlotOutOfRange, slot, s.Count())
	}
	r := &s.regions[slot]

	return VisualizationPayload{
		Slot: slot,
		Outline: Marker{
			ID:        outlineID(slot),
			Namespace: OutlineNamespace,
			Frame:     MapFrame,
			Kind:      MarkerLineStrip,
			Points:    ringPoints(r.ring),
			LineWidth: OutlineLineWidth,
			Color:     OutlineColor,
		},
		Label: Marker{
			ID:         labelID(slot),
			Namespace:  LabelNamespace,
			Frame:      MapFrame,
			Kind:       MarkerText,
			Anchor:     vertexMean(r.region.Vertices),
			Text:       r.region.Name,
			TextHeight: LabelTextHeight,
			Color:      LabelColor,
		},
	}, nil
}

// Visualizations returns every payload in slot order.
func (s *RegionStore) Visualizations() []VisualizationPayload {
	out := make([]VisualizationPayload, 0, s.Count())
	for slot := 0; slot < s.Count(); slot++ {
		p, _ := s.Visualization(slot)
		out = append(out, p)
	}
	return out
}
