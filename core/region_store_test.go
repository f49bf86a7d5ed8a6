package core

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"testing"

	"github.com/signalsfoundry/regionwatch/model"
)

func square(name string, x0, y0, size float64) model.Region {
	return model.Region{
		Name: name,
		Vertices: []model.Point{
			{X: x0, Y: y0},
			{X: x0 + size, Y: y0},
			{X: x0 + size, Y: y0 + size},
			{X: x0, Y: y0 + size},
		},
	}
}

func mustStore(t *testing.T, regions []model.Region, opts ...StoreOption) *RegionStore {
	t.Helper()
	s, err := NewRegionStore(regions, opts...)
	if err != nil {
		t.Fatalf("NewRegionStore() error = %v", err)
	}
	return s
}

func TestClassifySquare(t *testing.T) {
	s := mustStore(t, []model.Region{square("room", 0, 0, 10)})

	tests := []struct {
		name string
		pt   model.Point
		want string
	}{
		{"interior", model.Point{X: 5, Y: 5}, "room"},
		{"outside", model.Point{X: 15, Y: 15}, UnknownRegion},
		{"vertex", model.Point{X: 0, Y: 0}, "room"},
		{"opposite vertex", model.Point{X: 10, Y: 10}, "room"},
		{"bottom edge", model.Point{X: 5, Y: 0}, "room"},
		{"right edge", model.Point{X: 10, Y: 3}, "room"},
		{"just outside edge", model.Point{X: 10.0001, Y: 3}, UnknownRegion},
		{"negative", model.Point{X: -1, Y: 5}, UnknownRegion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Classify(tt.pt).Name(); got != tt.want {
				t.Fatalf("Classify(%v) = %q, want %q", tt.pt, got, tt.want)
			}
		})
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	s := mustStore(t, []model.Region{
		square("A", 0, 0, 10),
		square("B", 5, 5, 10),
	})

	got := s.Classify(model.Point{X: 7, Y: 7})
	if got.Name() != "A" || got.Slot() != 0 {
		t.Fatalf("Classify(7,7) = %q slot %d, want A slot 0", got.Name(), got.Slot())
	}
	if got := s.Classify(model.Point{X: 12, Y: 12}).Name(); got != "B" {
		t.Fatalf("Classify(12,12) = %q, want B", got)
	}
}

func TestClassifyNestedFallbackLast(t *testing.T) {
	s := mustStore(t, []model.Region{
		square("desk", 2, 2, 1),
		square("office", 0, 0, 10),
	})
	if got := s.Classify(model.Point{X: 2.5, Y: 2.5}).Name(); got != "desk" {
		t.Fatalf("Classify inside nested region = %q, want desk", got)
	}
	if got := s.Classify(model.Point{X: 8, Y: 8}).Name(); got != "office" {
		t.Fatalf("Classify inside fallback region = %q, want office", got)
	}
}

func TestClassifyConcavePolygon(t *testing.T) {
	// L-shape: the notch at (7.5, 7.5) is outside.
	l := model.Region{
		Name: "L",
		Vertices: []model.Point{
			{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 5},
			{X: 5, Y: 5}, {X: 5, Y: 10}, {X: 0, Y: 10},
		},
	}
	s := mustStore(t, []model.Region{l})

	if got := s.Classify(model.Point{X: 2, Y: 8}).Name(); got != "L" {
		t.Fatalf("Classify(2,8) = %q, want L", got)
	}
	if got := s.Classify(model.Point{X: 7.5, Y: 7.5}).Name(); got != UnknownRegion {
		t.Fatalf("Classify(7.5,7.5) = %q, want unknown", got)
	}
	if got := s.Classify(model.Point{X: 5, Y: 7}).Name(); got != "L" {
		t.Fatalf("Classify on inner edge = %q, want L", got)
	}
}

func TestEmptyStoreClassifiesUnknown(t *testing.T) {
	s := mustStore(t, nil, AllowEmpty())
	if s.Count() != 0 {
		t.Fatalf("Count() = %d, want 0", s.Count())
	}
	for _, p := range []model.Point{{}, {X: 1e9, Y: -1e9}, {X: 3, Y: 4}} {
		got := s.Classify(p)
		if got.Known() || got.Name() != UnknownRegion || got.Slot() != -1 {
			t.Fatalf("Classify(%v) = %+v, want unknown", p, got)
		}
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	s := mustStore(t, []model.Region{square("A", 0, 0, 10), square("B", 5, 5, 10)})
	p := model.Point{X: 9, Y: 9}
	first := s.Classify(p)
	for i := 0; i < 10; i++ {
		if got := s.Classify(p); got != first {
			t.Fatalf("Classify() call %d = %+v, want %+v", i, got, first)
		}
	}
}

func TestNewRegionStoreRejects(t *testing.T) {
	tests := []struct {
		name    string
		regions []model.Region
		want    error
	}{
		{
			name:    "empty list",
			regions: nil,
			want:    ErrNoRegions,
		},
		{
			name: "two vertices",
			regions: []model.Region{{
				Name:     "line",
				Vertices: []model.Point{{X: 0, Y: 0}, {X: 1, Y: 1}},
			}},
			want: ErrTooFewVertices,
		},
		{
			name:    "blank name",
			regions: []model.Region{square("  ", 0, 0, 1)},
			want:    ErrEmptyRegionName,
		},
		{
			name:    "duplicate name",
			regions: []model.Region{square("A", 0, 0, 1), square("A", 5, 5, 1)},
			want:    ErrDuplicateRegion,
		},
		{
			name: "nan vertex",
			regions: []model.Region{{
				Name:     "bad",
				Vertices: []model.Point{{X: 0, Y: 0}, {X: math.NaN(), Y: 1}, {X: 1, Y: 0}},
			}},
			want: ErrNonFiniteVertex,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewRegionStore(tt.regions)
			if s != nil {
				t.Fatalf("NewRegionStore() returned a store, want nil")
			}
			if !errors.Is(err, ErrConfiguration) {
				t.Fatalf("NewRegionStore() error = %v, want ErrConfiguration", err)
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("NewRegionStore() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewRegionStoreRejectsTooMany(t *testing.T) {
	regions := make([]model.Region, LabelIDOffset+1)
	for i := range regions {
		regions[i] = square(fmt.Sprintf("r%d", i), float64(i), 0, 1)
	}
	if _, err := NewRegionStore(regions); !errors.Is(err, ErrTooManyRegions) {
		t.Fatalf("NewRegionStore() error = %v, want ErrTooManyRegions", err)
	}
}

func TestRegionStoreCopiesInput(t *testing.T) {
	in := []model.Region{square("A", 0, 0, 10)}
	s := mustStore(t, in)

	in[0].Name = "mutated"
	in[0].Vertices[0] = model.Point{X: 100, Y: 100}

	r, ok := s.Region(0)
	if !ok {
		t.Fatalf("Region(0) not found")
	}
	if r.Name != "A" || r.Vertices[0] != (model.Point{}) {
		t.Fatalf("store changed after caller mutation: %+v", r)
	}

	r.Vertices[1] = model.Point{X: -5, Y: -5}
	again, _ := s.Region(0)
	if again.Vertices[1] != (model.Point{X: 10, Y: 0}) {
		t.Fatalf("Region() returned shared storage: %+v", again)
	}
}

func TestVisualizationPayload(t *testing.T) {
	s := mustStore(t, []model.Region{square("unit", 0, 0, 1)})

	p, err := s.Visualization(0)
	if err != nil {
		t.Fatalf("Visualization(0) error = %v", err)
	}

	wantPoints := []model.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}, {X: 0, Y: 0}}
	if !reflect.DeepEqual(p.Outline.Points, wantPoints) {
		t.Fatalf("Outline.Points = %v, want %v", p.Outline.Points, wantPoints)
	}
	if p.Outline.ID != 0 || p.Outline.Namespace != OutlineNamespace || p.Outline.Kind != MarkerLineStrip {
		t.Fatalf("Outline identity = %d/%s/%v", p.Outline.ID, p.Outline.Namespace, p.Outline.Kind)
	}
	if p.Outline.LineWidth != 0.1 || p.Outline.Color != (Color{R: 1, A: 1}) {
		t.Fatalf("Outline style = %v %+v", p.Outline.LineWidth, p.Outline.Color)
	}

	if p.Label.Anchor != (model.Point{X: 0.5, Y: 0.5}) {
		t.Fatalf("Label.Anchor = %v, want (0.5, 0.5)", p.Label.Anchor)
	}
	if p.Label.ID != 1000 || p.Label.Namespace != LabelNamespace || p.Label.Kind != MarkerText {
		t.Fatalf("Label identity = %d/%s/%v", p.Label.ID, p.Label.Namespace, p.Label.Kind)
	}
	if p.Label.Text != "unit" || p.Label.TextHeight != 1.0 || p.Label.Color != (Color{B: 1, A: 1}) {
		t.Fatalf("Label = %+v", p.Label)
	}
	if p.Outline.Frame != MapFrame || p.Label.Frame != MapFrame {
		t.Fatalf("frames = %q/%q, want map", p.Outline.Frame, p.Label.Frame)
	}
}

func TestVisualizationIsIdempotent(t *testing.T) {
	s := mustStore(t, []model.Region{square("A", 0, 0, 3), square("B", 4, 4, 2)})
	for slot := 0; slot < s.Count(); slot++ {
		first, err := s.Visualization(slot)
		if err != nil {
			t.Fatalf("Visualization(%d) error = %v", slot, err)
		}
		second, _ := s.Visualization(slot)
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("Visualization(%d) differs between calls", slot)
		}
	}
}

func TestVisualizationSlotOutOfRange(t *testing.T) {
	s := mustStore(t, []model.Region{square("A", 0, 0, 1)})
	for _, slot := range []int{-1, 1, 50} {
		if _, err := s.Visualization(slot); !errors.Is(err, ErrSlotOutOfRange) {
			t.Fatalf("Visualization(%d) error = %v, want ErrSlotOutOfRange", slot, err)
		}
	}
}

func TestMarkerIDsNeverCollide(t *testing.T) {
	const n = 999
	regions := make([]model.Region, n)
	for i := range regions {
		regions[i] = square(fmt.Sprintf("r%03d", i), float64(i)*2, 0, 1)
	}
	s := mustStore(t, regions)

	outline := make(map[int]bool, n)
	for slot := 0; slot < n; slot++ {
		p, err := s.Visualization(slot)
		if err != nil {
			t.Fatalf("Visualization(%d) error = %v", slot, err)
		}
		if p.Outline.ID != slot {
			t.Fatalf("outline id for slot %d = %d", slot, p.Outline.ID)
		}
		if p.Label.ID != 1000+slot {
			t.Fatalf("label id for slot %d = %d", slot, p.Label.ID)
		}
		outline[p.Outline.ID] = true
	}
	for slot := 0; slot < n; slot++ {
		if outline[slot+LabelIDOffset] {
			t.Fatalf("label id %d collides with an outline id", slot+LabelIDOffset)
		}
	}
}

func TestVertexMeanIsNotAreaCentroid(t *testing.T) {
	// Extra collinear vertex pulls the mean right while the area centroid
	// stays at the middle.
	r := model.Region{
		Name: "skewed",
		Vertices: []model.Point{
			{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 4}, {X: 0, Y: 4},
		},
	}
	s := mustStore(t, []model.Region{r})
	p, _ := s.Visualization(0)
	if p.Label.Anchor != (model.Point{X: 2, Y: 1.6}) {
		t.Fatalf("Label.Anchor = %v, want (2, 1.6)", p.Label.Anchor)
	}
}
