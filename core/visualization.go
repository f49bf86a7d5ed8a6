package core

import "github.com/signalsfoundry/regionwatch/model"

// LabelIDOffset separates label marker ids from outline marker ids. Outline
// ids are the slot itself; label ids are slot+LabelIDOffset.
const LabelIDOffset = 1000

// Marker namespaces and frame shared with existing map viewers.
const (
	OutlineNamespace = "regions"
	LabelNamespace   = "region_labels"
	MapFrame         = "map"
)

// Fixed marker styling. Viewers rely on these values.
const (
	OutlineLineWidth = 0.1
	LabelTextHeight  = 1.0
)

var (
	OutlineColor = Color{R: 1, G: 0, B: 0, A: 1}
	LabelColor   = Color{R: 0, G: 0, B: 1, A: 1}
)

// MarkerKind is the drawable shape of a marker.
type MarkerKind int

const (
	// MarkerLineStrip is a polyline through Points.
	MarkerLineStrip MarkerKind = iota
	// MarkerText is Text drawn facing the viewer at Anchor.
	MarkerText
)

func (k MarkerKind) String() string {
	switch k {
	case MarkerLineStrip:
		return "LINE_STRIP"
	case MarkerText:
		return "TEXT_VIEW_FACING"
	default:
		return "UNKNOWN"
	}
}

// Color is an RGBA colour with components in [0, 1].
type Color struct {
	R, G, B, A float64
}

// Marker is an abstract drawable. It carries geometry, style and a stable id;
// turning it into pixels is the viewer's job.
type Marker struct {
	ID        int
	Namespace string
	Frame     string
	Kind      MarkerKind

	// Points is set for line strips.
	Points []model.Point
	// Anchor and Text are set for text markers.
	Anchor model.Point
	Text   string

	LineWidth  float64
	TextHeight float64
	Color      Color
}

// VisualizationPayload is the outline and label pair for one region slot.
type VisualizationPayload struct {
	Slot    int
	Outline Marker
	Label   Marker
}

// Markers returns the outline followed by the label.
func (p VisualizationPayload) Markers() []Marker {
	return []Marker{p.Outline, p.Label}
}

func outlineID(slot int) int { return slot }

func labelID(slot int) int { return slot + LabelIDOffset }
