package core

import (
	"errors"
	"math"
	"testing"

	"github.com/signalsfoundry/regionwatch/model"
)

func TestPositionFromFields(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]any
		want   model.Point
	}{
		{
			name: "stamped pose",
			fields: map[string]any{
				"header": map[string]any{"frame_id": "map"},
				"pose": map[string]any{
					"position":    map[string]any{"x": 1.5, "y": -2.0, "z": 9.0},
					"orientation": map[string]any{"w": 1.0},
				},
			},
			want: model.Point{X: 1.5, Y: -2},
		},
		{
			name:   "position only",
			fields: map[string]any{"position": map[string]any{"x": 3.0, "y": 4.0}},
			want:   model.Point{X: 3, Y: 4},
		},
		{
			name:   "flat",
			fields: map[string]any{"x": 7.0, "y": 8.0},
			want:   model.Point{X: 7, Y: 8},
		},
		{
			name:   "integers",
			fields: map[string]any{"x": 2, "y": int64(3)},
			want:   model.Point{X: 2, Y: 3},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PositionFromFields(tt.fields)
			if err != nil {
				t.Fatalf("PositionFromFields() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("PositionFromFields() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPositionFromFieldsMalformed(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]any
	}{
		{"nil", nil},
		{"missing y", map[string]any{"x": 1.0}},
		{"string x", map[string]any{"x": "1.0", "y": 2.0}},
		{"nan", map[string]any{"x": math.NaN(), "y": 2.0}},
		{"inf", map[string]any{"x": 1.0, "y": math.Inf(-1)}},
		{"pose not object", map[string]any{"pose": 3.0}},
		{"position not object", map[string]any{"pose": map[string]any{"position": []any{1.0, 2.0}}}},
		{"empty pose", map[string]any{"pose": map[string]any{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := PositionFromFields(tt.fields); !errors.Is(err, ErrMalformedPosition) {
				t.Fatalf("PositionFromFields() error = %v, want ErrMalformedPosition", err)
			}
		})
	}
}
