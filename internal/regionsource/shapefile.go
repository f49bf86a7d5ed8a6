package regionsource

import (
	"fmt"
	"strings"

	shp "github.com/jonas-p/go-shp"

	"github.com/signalsfoundry/regionwatch/core"
	"github.com/signalsfoundry/regionwatch/model"
)

// DefaultShapeNameField is the attribute read for region names when none is
// configured.
const DefaultShapeNameField = "NAME"

// LoadShapefile reads polygon records from a shapefile. Each record's first
// ring becomes one region, named by the nameField attribute; record order is
// slot order.
func LoadShapefile(path, nameField string) (*Document, error) {
	if nameField == "" {
		nameField = DefaultShapeNameField
	}

	reader, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open shapefile: %w", err)
	}
	defer reader.Close()

	nameIdx := -1
	for i, f := range reader.Fields() {
		if strings.EqualFold(cleanAttr(f.String()), nameField) {
			nameIdx = i
			break
		}
	}
	if nameIdx < 0 {
		return nil, fmt.Errorf("%w: shapefile has no %q attribute", core.ErrConfiguration, nameField)
	}

	doc := &Document{}
	for reader.Next() {
		n, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			return nil, fmt.Errorf("%w: record %d is %T, want polygon", core.ErrConfiguration, n, shape)
		}
		doc.Regions = append(doc.Regions, model.Region{
			Name:     cleanAttr(reader.ReadAttribute(n, nameIdx)),
			Vertices: firstRing(poly),
		})
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("read shapefile: %w", err)
	}
	return doc, nil
}

// firstRing returns the outer ring of poly without the closing vertex.
func firstRing(poly *shp.Polygon) []model.Point {
	end := len(poly.Points)
	if poly.NumParts > 1 {
		end = int(poly.Parts[1])
	}
	start := 0
	if poly.NumParts > 0 {
		start = int(poly.Parts[0])
	}

	ring := make([]model.Point, 0, end-start)
	for _, p := range poly.Points[start:end] {
		ring = append(ring, model.Point{X: p.X, Y: p.Y})
	}
	if n := len(ring); n > 1 && ring[0] == ring[n-1] {
		ring = ring[:n-1]
	}
	return ring
}

// WriteShapefile writes regions as closed polygon records with a name
// attribute.
func WriteShapefile(path, nameField string, regions []model.Region) error {
	if nameField == "" {
		nameField = DefaultShapeNameField
	}
	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return fmt.Errorf("create shapefile: %w", err)
	}
	defer w.Close()

	width := uint8(1)
	for _, r := range regions {
		if l := len(r.Name); l > int(width) {
			width = uint8(min(l, 254))
		}
	}
	if err := w.SetFields([]shp.Field{shp.StringField(nameField, width)}); err != nil {
		return fmt.Errorf("set shapefile fields: %w", err)
	}

	for _, r := range regions {
		ring := make([]shp.Point, 0, len(r.Vertices)+1)
		for _, v := range r.Vertices {
			ring = append(ring, shp.Point{X: v.X, Y: v.Y})
		}
		if len(ring) > 0 {
			ring = append(ring, ring[0])
		}
		poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{ring}))
		row := w.Write(&poly)
		if err := w.WriteAttribute(int(row), 0, r.Name); err != nil {
			return fmt.Errorf("write shapefile attribute: %w", err)
		}
	}
	return nil
}

func cleanAttr(s string) string {
	return strings.TrimSpace(strings.Trim(s, "\x00"))
}
