// Package markerwire converts core markers to and from the generic document
// layout map viewers consume: header.frame_id, ns, id, type, action, scale,
// color, points, pose.position and text.
package markerwire

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/regionwatch/core"
	"github.com/signalsfoundry/regionwatch/model"
)

// ActionAdd is the only marker action emitted; markers are re-sent whole.
const ActionAdd = "ADD"

// ErrMalformedMarker is returned when a document is not a marker.
var ErrMalformedMarker = errors.New("malformed marker")

// Encode returns the document form of m. Numbers are float64 so the result
// survives JSON and structpb round trips unchanged.
func Encode(m core.Marker) map[string]any {
	doc := map[string]any{
		"header": map[string]any{"frame_id": m.Frame},
		"ns":     m.Namespace,
		"id":     float64(m.ID),
		"type":   m.Kind.String(),
		"action": ActionAdd,
		"color": map[string]any{
			"r": m.Color.R,
			"g": m.Color.G,
			"b": m.Color.B,
			"a": m.Color.A,
		},
		"color_hex": colorful.Color{R: m.Color.R, G: m.Color.G, B: m.Color.B}.Hex(),
	}

	switch m.Kind {
	case core.MarkerText:
		doc["scale"] = vec(0, 0, m.TextHeight)
		doc["pose"] = map[string]any{"position": vec(m.Anchor.X, m.Anchor.Y, 0)}
		doc["text"] = m.Text
	default:
		doc["scale"] = vec(m.LineWidth, 0, 0)
		points := make([]any, 0, len(m.Points))
		for _, p := range m.Points {
			points = append(points, vec(p.X, p.Y, 0))
		}
		doc["points"] = points
	}
	return doc
}

// Decode parses a marker document produced by Encode, or decoded from its JSON
// or structpb form.
func Decode(doc map[string]any) (core.Marker, error) {
	if doc == nil {
		return core.Marker{}, fmt.Errorf("%w: empty document", ErrMalformedMarker)
	}

	var m core.Marker
	kind, _ := doc["type"].(string)
	switch kind {
	case core.MarkerLineStrip.String():
		m.Kind = core.MarkerLineStrip
	case core.MarkerText.String():
		m.Kind = core.MarkerText
	default:
		return core.Marker{}, fmt.Errorf("%w: unsupported type %q", ErrMalformedMarker, kind)
	}

	id, ok := number(doc["id"])
	if !ok || id != math.Trunc(id) {
		return core.Marker{}, fmt.Errorf("%w: id is not an integer", ErrMalformedMarker)
	}
	m.ID = int(id)
	m.Namespace, _ = doc["ns"].(string)
	if header, ok := doc["header"].(map[string]any); ok {
		m.Frame, _ = header["frame_id"].(string)
	}

	if c, ok := doc["color"].(map[string]any); ok {
		m.Color.R, _ = number(c["r"])
		m.Color.G, _ = number(c["g"])
		m.Color.B, _ = number(c["b"])
		m.Color.A, _ = number(c["a"])
	} else if hex, ok := doc["color_hex"].(string); ok {
		c, err := colorful.Hex(hex)
		if err != nil {
			return core.Marker{}, fmt.Errorf("%w: color_hex: %w", ErrMalformedMarker, err)
		}
		m.Color = core.Color{R: c.R, G: c.G, B: c.B, A: 1}
	}

	scale, _ := doc["scale"].(map[string]any)
	switch m.Kind {
	case core.MarkerText:
		m.TextHeight, _ = number(scale["z"])
		m.Text, _ = doc["text"].(string)
		pose, _ := doc["pose"].(map[string]any)
		pos, ok := pose["position"].(map[string]any)
		if !ok {
			return core.Marker{}, fmt.Errorf("%w: text marker without pose.position", ErrMalformedMarker)
		}
		p, err := point(pos)
		if err != nil {
			return core.Marker{}, err
		}
		m.Anchor = p
	case core.MarkerLineStrip:
		m.LineWidth, _ = number(scale["x"])
		raw, _ := doc["points"].([]any)
		m.Points = make([]model.Point, 0, len(raw))
		for i, r := range raw {
			pm, ok := r.(map[string]any)
			if !ok {
				return core.Marker{}, fmt.Errorf("%w: point %d is %T", ErrMalformedMarker, i, r)
			}
			p, err := point(pm)
			if err != nil {
				return core.Marker{}, err
			}
			m.Points = append(m.Points, p)
		}
	}
	return m, nil
}

// ToStruct converts m to a protobuf Struct.
func ToStruct(m core.Marker) (*structpb.Struct, error) {
	return structpb.NewStruct(Encode(m))
}

// FromStruct converts a protobuf Struct back into a marker.
func FromStruct(s *structpb.Struct) (core.Marker, error) {
	if s == nil {
		return core.Marker{}, fmt.Errorf("%w: nil struct", ErrMalformedMarker)
	}
	return Decode(s.AsMap())
}

// Marshal encodes m as JSON.
func Marshal(m core.Marker) ([]byte, error) {
	return json.Marshal(Encode(m))
}

// Unmarshal decodes a JSON marker document.
func Unmarshal(data []byte) (core.Marker, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return core.Marker{}, fmt.Errorf("%w: %w", ErrMalformedMarker, err)
	}
	return Decode(doc)
}

func vec(x, y, z float64) map[string]any {
	return map[string]any{"x": x, "y": y, "z": z}
}

func point(m map[string]any) (model.Point, error) {
	x, okX := number(m["x"])
	y, okY := number(m["y"])
	if !okX || !okY {
		return model.Point{}, fmt.Errorf("%w: point needs numeric x and y", ErrMalformedMarker)
	}
	return model.Point{X: x, Y: y}, nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
