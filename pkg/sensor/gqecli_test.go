package sensor

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	path := filepath.Join(t.TempDir(), "gqe-cli")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestGQECLIArgs(t *testing.T) {
	g := NewGQECLI("./gqe-cli")
	d := Descriptor{DevicePath: "/dev/ttyUSB0", UnitModel: "GQEMF390", FirmwareRevision: "Re 3.70", Metric: EMF}
	got := strings.Join(g.Args(d), "|")
	want := "/dev/ttyUSB0|--unit|GQEMF390|--revision|Re 3.70|--get-emf"
	if got != want {
		t.Fatalf("args: got %q want %q", got, want)
	}
}

func TestGQECLIQueryPassesArguments(t *testing.T) {
	path := writeScript(t, `printf '%s|' "$@"`)
	g := NewGQECLI(path)
	d := Descriptor{DevicePath: "/dev/ttyUSB1", UnitModel: "GMC500Plus", FirmwareRevision: "Re 2.42", Metric: CPM}
	out, err := g.Query(context.Background(), d)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if out != "/dev/ttyUSB1|--unit|GMC500Plus|--revision|Re 2.42|--get-cpm|" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestGQECLIQueryTrimsOutput(t *testing.T) {
	path := writeScript(t, `echo "  EMF = 3.45 mG  "`)
	out, err := NewGQECLI(path).Query(context.Background(), Descriptor{DevicePath: "/dev/ttyUSB0", Metric: EMF})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if out != "EMF = 3.45 mG" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestGQECLIQueryFailure(t *testing.T) {
	path := writeScript(t, `echo "device not found" >&2; exit 3`)
	_, err := NewGQECLI(path).Query(context.Background(), Descriptor{DevicePath: "/dev/ttyUSB9", Metric: CPM})
	if err == nil {
		t.Fatalf("expected error for non-zero exit")
	}
	if !strings.Contains(err.Error(), "device not found") {
		t.Fatalf("stderr missing from error: %v", err)
	}
}

func TestGQECLIQueryTimeout(t *testing.T) {
	path := writeScript(t, `exec sleep 5`)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := NewGQECLI(path).Query(ctx, Descriptor{DevicePath: "/dev/ttyUSB0", Metric: EMF})
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if time.Since(start) > 3*time.Second {
		t.Fatalf("query did not honor the deadline")
	}
}

func TestGQECLIMissingBinary(t *testing.T) {
	g := NewGQECLI(filepath.Join(t.TempDir(), "nope"))
	if _, err := g.Query(context.Background(), Descriptor{DevicePath: "/dev/ttyUSB0", Metric: EMF}); err == nil {
		t.Fatalf("expected error for missing binary")
	}
}

func TestGQECLIUnsupportedMetric(t *testing.T) {
	if _, err := NewGQECLI("true").Query(context.Background(), Descriptor{Metric: "RF"}); err == nil {
		t.Fatalf("expected error for unsupported metric")
	}
}
