// Package regionsource loads region definitions from files and databases.
package regionsource

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/signalsfoundry/regionwatch/core"
	"github.com/signalsfoundry/regionwatch/model"
)

// ErrUnsupportedSource is returned when a source string matches no loader.
var ErrUnsupportedSource = errors.New("unsupported regions source")

// Topics are the channel names a regions document asks for. Empty fields
// leave the choice to configuration.
type Topics struct {
	Region string
	Pose   string
}

// Document is a loaded regions source.
type Document struct {
	NodeName string
	Topics   Topics
	Regions  []model.Region
}

// Options tune loaders that need more than a location.
type Options struct {
	// ShapeNameField is the shapefile attribute holding region names.
	ShapeNameField string
}

// Load reads regions from source. The loader is chosen by scheme
// (sqlite://, postgres://, postgresql://) or by file extension (.yaml, .yml,
// .json, .shp).
func Load(ctx context.Context, source string, opts Options) (*Document, error) {
	switch {
	case strings.HasPrefix(source, "sqlite://"):
		return LoadSQL(ctx, source)
	case strings.HasPrefix(source, "postgres://"), strings.HasPrefix(source, "postgresql://"):
		return LoadSQL(ctx, source)
	}

	switch strings.ToLower(filepath.Ext(source)) {
	case ".yaml", ".yml":
		return LoadYAML(source)
	case ".json":
		return LoadJSON(source)
	case ".shp":
		return LoadShapefile(source, opts.ShapeNameField)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSource, source)
	}
}

// rawRegion is the file form shared by YAML and JSON documents.
type rawRegion struct {
	Name   string      `yaml:"name" json:"name"`
	Points [][]float64 `yaml:"points" json:"points"`
}

type rawDocument struct {
	Node struct {
		Name string `yaml:"name" json:"name"`
	} `yaml:"node" json:"node"`
	Topics struct {
		Publish struct {
			CurrentRegion string `yaml:"current_region" json:"current_region"`
		} `yaml:"publish" json:"publish"`
		Subscribe struct {
			Pose string `yaml:"pose" json:"pose"`
		} `yaml:"subscribe" json:"subscribe"`
	} `yaml:"topics" json:"topics"`
	Regions []rawRegion `yaml:"regions" json:"regions"`
}

func (d rawDocument) toDocument() (*Document, error) {
	doc := &Document{
		NodeName: d.Node.Name,
		Topics: Topics{
			Region: d.Topics.Publish.CurrentRegion,
			Pose:   d.Topics.Subscribe.Pose,
		},
		Regions: make([]model.Region, 0, len(d.Regions)),
	}
	for i, r := range d.Regions {
		vertices := make([]model.Point, 0, len(r.Points))
		for j, p := range r.Points {
			// A third coordinate is elevation and ignored.
			if len(p) < 2 || len(p) > 3 {
				return nil, fmt.Errorf("%w: region %d (%q) point %d has %d coordinates",
					core.ErrConfiguration, i, r.Name, j, len(p))
			}
			vertices = append(vertices, model.Point{X: p[0], Y: p[1]})
		}
		doc.Regions = append(doc.Regions, model.Region{Name: r.Name, Vertices: vertices})
	}
	return doc, nil
}

func fromRegions(regions []model.Region) rawDocument {
	var d rawDocument
	d.Regions = make([]rawRegion, 0, len(regions))
	for _, r := range regions {
		points := make([][]float64, 0, len(r.Vertices))
		for _, v := range r.Vertices {
			points = append(points, []float64{v.X, v.Y})
		}
		d.Regions = append(d.Regions, rawRegion{Name: r.Name, Points: points})
	}
	return d
}
