// Command regionctl inspects and converts region sources offline.
//
//	regionctl validate <source>
//	regionctl classify <source> <x> <y>
//	regionctl render [-out regions.png] [-width 1000] [-height 1000] [-at x,y] <source>
//	regionctl export -to <target> <source>
//
// A source is a .yaml, .json or .shp file, or a sqlite:// or postgres:// URL.
// Export targets are .yaml and .shp files and sqlite:// or postgres:// URLs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/signalsfoundry/regionwatch/core"
	"github.com/signalsfoundry/regionwatch/internal/config"
	"github.com/signalsfoundry/regionwatch/internal/regionsource"
	"github.com/signalsfoundry/regionwatch/internal/render"
	"github.com/signalsfoundry/regionwatch/model"
)

var errUsage = errors.New("usage: regionctl validate|classify|render|export [flags] <source> [args]")

func main() {
	if err := config.LoadDotEnv(); err != nil {
		config.Exitf("regionctl: %v", err)
	}
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		config.Exitf("regionctl: %v", err)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "validate":
		return validate(ctx, rest, out)
	case "classify":
		return classify(ctx, rest, out)
	case "render":
		return renderPNG(ctx, rest, out)
	case "export":
		return export(ctx, rest, out)
	default:
		return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
	}
}

// common parses the flags shared by every command and loads the store.
type common struct {
	fs         *flag.FlagSet
	nameField  string
	allowEmpty bool
}

func newCommon(name string) *common {
	c := &common{fs: flag.NewFlagSet(name, flag.ContinueOnError)}
	c.fs.SetOutput(io.Discard)
	c.fs.StringVar(&c.nameField, "shape-name-field", regionsource.DefaultShapeNameField, "shapefile attribute holding region names")
	c.fs.BoolVar(&c.allowEmpty, "allow-empty", false, "accept a source with no regions")
	return c
}

func (c *common) load(ctx context.Context, source string) (*regionsource.Document, *core.RegionStore, error) {
	doc, err := regionsource.Load(ctx, source, regionsource.Options{ShapeNameField: c.nameField})
	if err != nil {
		return nil, nil, err
	}
	var opts []core.StoreOption
	if c.allowEmpty {
		opts = append(opts, core.AllowEmpty())
	}
	store, err := core.NewRegionStore(doc.Regions, opts...)
	if err != nil {
		return nil, nil, err
	}
	return doc, store, nil
}

func validate(ctx context.Context, args []string, out io.Writer) error {
	c := newCommon("validate")
	if err := c.fs.Parse(args); err != nil {
		return err
	}
	if c.fs.NArg() != 1 {
		return errUsage
	}
	_, store, err := c.load(ctx, c.fs.Arg(0))
	if err != nil {
		return err
	}
	for slot, r := range store.Regions() {
		fmt.Fprintf(out, "%d\t%s\t%d vertices\n", slot, r.Name, len(r.Vertices))
	}
	fmt.Fprintf(out, "ok: %d regions\n", store.Count())
	return nil
}

func classify(ctx context.Context, args []string, out io.Writer) error {
	c := newCommon("classify")
	if err := c.fs.Parse(args); err != nil {
		return err
	}
	if c.fs.NArg() != 3 {
		return errUsage
	}
	_, store, err := c.load(ctx, c.fs.Arg(0))
	if err != nil {
		return err
	}
	p, err := parsePoint(c.fs.Arg(1), c.fs.Arg(2))
	if err != nil {
		return err
	}
	fmt.Fprintln(out, store.Classify(p).Name())
	return nil
}

func renderPNG(ctx context.Context, args []string, out io.Writer) error {
	c := newCommon("render")
	opts := render.DefaultOptions()
	outPath := c.fs.String("out", "regions.png", "output PNG path")
	at := c.fs.String("at", "", "mark a position, as x,y")
	c.fs.IntVar(&opts.Width, "width", opts.Width, "image width in pixels")
	c.fs.IntVar(&opts.Height, "height", opts.Height, "image height in pixels")
	c.fs.StringVar(&opts.Background, "background", opts.Background, "background colour as #rrggbb")
	if err := c.fs.Parse(args); err != nil {
		return err
	}
	if c.fs.NArg() != 1 {
		return errUsage
	}
	_, store, err := c.load(ctx, c.fs.Arg(0))
	if err != nil {
		return err
	}
	if *at != "" {
		xs, ys, ok := strings.Cut(*at, ",")
		if !ok {
			return fmt.Errorf("-at wants x,y, got %q", *at)
		}
		p, err := parsePoint(xs, ys)
		if err != nil {
			return err
		}
		opts.Position = &p
	}
	if err := render.SavePNG(*outPath, store.Visualizations(), opts); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s\n", *outPath)
	return nil
}

func export(ctx context.Context, args []string, out io.Writer) error {
	c := newCommon("export")
	to := c.fs.String("to", "", "target: .yaml or .shp path, sqlite:// or postgres:// URL")
	if err := c.fs.Parse(args); err != nil {
		return err
	}
	if c.fs.NArg() != 1 || *to == "" {
		return errUsage
	}
	doc, store, err := c.load(ctx, c.fs.Arg(0))
	if err != nil {
		return err
	}
	regions := store.Regions()

	switch target := *to; {
	case strings.Contains(target, "://"):
		err = regionsource.SaveSQL(ctx, target, regions)
	case hasExt(target, ".yaml", ".yml"):
		err = writeYAML(target, &regionsource.Document{NodeName: doc.NodeName, Topics: doc.Topics, Regions: regions})
	case hasExt(target, ".shp"):
		err = regionsource.WriteShapefile(target, c.nameField, regions)
	default:
		err = fmt.Errorf("%w: %q", regionsource.ErrUnsupportedSource, target)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "exported %d regions to %s\n", len(regions), *to)
	return nil
}

func writeYAML(path string, doc *regionsource.Document) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := regionsource.WriteYAML(f, doc); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func parsePoint(xs, ys string) (model.Point, error) {
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return model.Point{}, fmt.Errorf("x: %w", err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return model.Point{}, fmt.Errorf("y: %w", err)
	}
	p := model.Point{X: x, Y: y}
	if !p.IsFinite() {
		return model.Point{}, fmt.Errorf("%w: (%s, %s)", core.ErrMalformedPosition, xs, ys)
	}
	return p, nil
}

func hasExt(path string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
