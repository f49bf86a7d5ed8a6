package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signalsfoundry/regionwatch/core"
)

const regionsYAML = `regions:
  - name: kitchen
    points: [[0, 0], [4, 0], [4, 4], [0, 4]]
  - name: hall
    points: [[4, 0], [8, 0], [8, 4], [4, 4]]
`

func sourceFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "regions.yaml")
	if err := os.WriteFile(path, []byte(regionsYAML), 0o600); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), args, &out)
	return out.String(), err
}

func TestValidate(t *testing.T) {
	out, err := runCmd(t, "validate", sourceFile(t))
	if err != nil {
		t.Fatalf("validate error = %v", err)
	}
	if !strings.Contains(out, "0\tkitchen\t4 vertices") || !strings.HasSuffix(out, "ok: 2 regions\n") {
		t.Fatalf("validate output = %q", out)
	}
}

func TestClassify(t *testing.T) {
	src := sourceFile(t)
	tests := []struct {
		x, y string
		want string
	}{
		{"1", "1", "kitchen"},
		{"6", "2", "hall"},
		// Shared edge belongs to the first region loaded.
		{"4", "2", "kitchen"},
		{"-3", "1", core.UnknownRegion},
	}
	for _, tt := range tests {
		out, err := runCmd(t, "classify", src, tt.x, tt.y)
		if err != nil {
			t.Fatalf("classify %s %s error = %v", tt.x, tt.y, err)
		}
		if got := strings.TrimSpace(out); got != tt.want {
			t.Fatalf("classify %s %s = %q, want %q", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestClassifyBadCoordinate(t *testing.T) {
	if _, err := runCmd(t, "classify", sourceFile(t), "NaN", "1"); !errors.Is(err, core.ErrMalformedPosition) {
		t.Fatalf("classify NaN error = %v, want ErrMalformedPosition", err)
	}
	if _, err := runCmd(t, "classify", sourceFile(t), "one", "1"); err == nil {
		t.Fatalf("classify one error = nil")
	}
}

func TestRender(t *testing.T) {
	png := filepath.Join(t.TempDir(), "out.png")
	out, err := runCmd(t, "render", "-out", png, "-width", "120", "-height", "80", "-at", "1,1", sourceFile(t))
	if err != nil {
		t.Fatalf("render error = %v", err)
	}
	if !strings.Contains(out, png) {
		t.Fatalf("render output = %q", out)
	}
	info, err := os.Stat(png)
	if err != nil || info.Size() == 0 {
		t.Fatalf("rendered file: %v", err)
	}
}

func TestExportRoundTrips(t *testing.T) {
	src := sourceFile(t)
	dir := t.TempDir()
	targets := []string{
		filepath.Join(dir, "copy.yaml"),
		filepath.Join(dir, "copy.shp"),
		"sqlite://" + filepath.Join(dir, "regions.db"),
	}
	for _, target := range targets {
		if _, err := runCmd(t, "export", "-to", target, src); err != nil {
			t.Fatalf("export to %s error = %v", target, err)
		}
		out, err := runCmd(t, "classify", target, "6", "2")
		if err != nil {
			t.Fatalf("classify %s error = %v", target, err)
		}
		if got := strings.TrimSpace(out); got != "hall" {
			t.Fatalf("classify %s = %q, want hall", target, got)
		}
	}
}

func TestExportUnsupportedTarget(t *testing.T) {
	_, err := runCmd(t, "export", "-to", filepath.Join(t.TempDir(), "out.csv"), sourceFile(t))
	if err == nil || !strings.Contains(err.Error(), "out.csv") {
		t.Fatalf("export error = %v, want unsupported target", err)
	}
}

func TestUsage(t *testing.T) {
	for _, args := range [][]string{nil, {"frobnicate"}, {"classify", "only-source"}, {"export", "src.yaml"}} {
		if _, err := runCmd(t, args...); !errors.Is(err, errUsage) {
			t.Fatalf("run(%q) error = %v, want usage", args, err)
		}
	}
}
