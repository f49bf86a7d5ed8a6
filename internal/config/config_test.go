package config

import (
	"flag"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("regionwatch", flag.ContinueOnError)

	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.GRPCAddr != ":50051" {
		t.Fatalf("expected default grpc addr, got %q", cfg.GRPCAddr)
	}
	if cfg.BroadcastInterval != time.Second {
		t.Fatalf("expected 1s broadcast interval, got %s", cfg.BroadcastInterval)
	}
	if cfg.ShapeNameField != "NAME" {
		t.Fatalf("expected NAME shape field, got %q", cfg.ShapeNameField)
	}
	if !strings.HasSuffix(cfg.Regions, filepath.Join("config", "regions.yaml")) {
		t.Fatalf("expected default regions path, got %q", cfg.Regions)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestParseConfigEnvThenFlags(t *testing.T) {
	t.Setenv("REGIONWATCH_GRPC_ADDR", "127.0.0.1:6000")
	t.Setenv("REGIONWATCH_BROADCAST_INTERVAL", "250ms")
	t.Setenv("REGIONWATCH_REDIS_ADDR", "redis:6379")

	fs := flag.NewFlagSet("regionwatch", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-broadcast-interval", "2s", "lab.yaml"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.GRPCAddr != "127.0.0.1:6000" {
		t.Fatalf("grpc addr = %q, want env value", cfg.GRPCAddr)
	}
	if cfg.BroadcastInterval != 2*time.Second {
		t.Fatalf("broadcast interval = %s, want flag value", cfg.BroadcastInterval)
	}
	if cfg.RedisAddr != "redis:6379" {
		t.Fatalf("redis addr = %q", cfg.RedisAddr)
	}
	if cfg.Regions != "lab.yaml" {
		t.Fatalf("regions = %q, want positional argument", cfg.Regions)
	}
}

func TestParseConfigRegionsFlagWinsOverPositional(t *testing.T) {
	fs := flag.NewFlagSet("regionwatch", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-regions", "sqlite:///tmp/r.db", "ignored.yaml"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Regions != "sqlite:///tmp/r.db" {
		t.Fatalf("regions = %q", cfg.Regions)
	}
}

func TestParseEnvError(t *testing.T) {
	t.Setenv("REGIONWATCH_REDIS_DB", "not-an-int")

	fs := flag.NewFlagSet("regionwatch", flag.ContinueOnError)
	_, err := ParseConfig(fs, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	base := Config{Regions: "r.yaml", GRPCAddr: ":1", BroadcastInterval: time.Second}
	if err := base.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	zero := base
	zero.BroadcastInterval = 0
	if err := zero.Validate(); err == nil {
		t.Fatal("expected error for zero broadcast interval")
	}

	noAddr := base
	noAddr.GRPCAddr = ""
	if err := noAddr.Validate(); err == nil {
		t.Fatal("expected error for empty grpc addr")
	}
}

func TestChannelsPrecedence(t *testing.T) {
	cfg := Config{RegionChannel: "/explicit_region"}
	pose, region, marker := cfg.Channels("/doc_pose", "/doc_region")
	if pose != "/doc_pose" {
		t.Fatalf("pose = %q, want document topic", pose)
	}
	if region != "/explicit_region" {
		t.Fatalf("region = %q, want explicit channel", region)
	}
	if marker != DefaultMarkerChannel {
		t.Fatalf("marker = %q, want default", marker)
	}

	pose, region, _ = Config{}.Channels("", "")
	if pose != DefaultPoseChannel || region != DefaultRegionChannel {
		t.Fatalf("defaults = %q, %q", pose, region)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("REGIONWATCH_TEST_DOTENV=loaded\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("REGIONWATCH_TEST_DOTENV", "")
	os.Unsetenv("REGIONWATCH_TEST_DOTENV")

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("REGIONWATCH_TEST_DOTENV"); got != "loaded" {
		t.Fatalf("REGIONWATCH_TEST_DOTENV = %q, want loaded", got)
	}
}

// Exitf calls os.Exit, so it runs in a subprocess.
func TestExitfExitsWithCode1(t *testing.T) {
	if os.Getenv("TEST_EXITF_SUBPROCESS") == "1" {
		Exitf("fatal: %s", "something broke")
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestExitfExitsWithCode1$")
	cmd.Env = append(os.Environ(), "TEST_EXITF_SUBPROCESS=1")

	out, err := cmd.CombinedOutput()

	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		t.Fatalf("expected *exec.ExitError, got %T: %v", err, err)
	}
	if exitErr.ExitCode() != 1 {
		t.Fatalf("expected exit code 1, got %d", exitErr.ExitCode())
	}
	if !strings.Contains(string(out), "fatal: something broke") {
		t.Fatalf("expected output to contain %q, got %q", "fatal: something broke", string(out))
	}
}
