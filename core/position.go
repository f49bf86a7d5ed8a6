package core

import (
	"fmt"
	"math"

	"github.com/signalsfoundry/regionwatch/model"
)

// PositionFromFields reduces a decoded pose document to a planar point.
//
// Accepted shapes, checked in order:
//
//	{"pose": {"position": {"x": .., "y": .., "z": ..}}}   (stamped pose; header ignored)
//	{"position": {"x": .., "y": ..}}
//	{"x": .., "y": ..}
//
// z and any other field are ignored. Missing, non-numeric or non-finite x/y
// yield ErrMalformedPosition.
func PositionFromFields(fields map[string]any) (model.Point, error) {
	if fields == nil {
		return model.Point{}, fmt.Errorf("%w: empty document", ErrMalformedPosition)
	}

	src := fields
	if pose, ok := fields["pose"]; ok {
		m, ok := pose.(map[string]any)
		if !ok {
			return model.Point{}, fmt.Errorf("%w: pose is %T, want object", ErrMalformedPosition, pose)
		}
		src = m
	}
	if pos, ok := src["position"]; ok {
		m, ok := pos.(map[string]any)
		if !ok {
			return model.Point{}, fmt.Errorf("%w: position is %T, want object", ErrMalformedPosition, pos)
		}
		src = m
	}

	x, err := coordinate(src, "x")
	if err != nil {
		return model.Point{}, err
	}
	y, err := coordinate(src, "y")
	if err != nil {
		return model.Point{}, err
	}
	return model.Point{X: x, Y: y}, nil
}

func coordinate(m map[string]any, key string) (float64, error) {
	raw, ok := m[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing %s", ErrMalformedPosition, key)
	}
	var v float64
	switch n := raw.(type) {
	case float64:
		v = n
	case float32:
		v = float64(n)
	case int:
		v = float64(n)
	case int64:
		v = float64(n)
	default:
		return 0, fmt.Errorf("%w: %s is %T, want number", ErrMalformedPosition, key, raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s is not finite", ErrMalformedPosition, key)
	}
	return v, nil
}
