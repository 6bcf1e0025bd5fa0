package cmd

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aweris/rfile"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		w, h    int
		wantErr bool
	}{
		{"800x600", 800, 600, false},
		{"1X1", 1, 1, false},
		{"800", 0, 0, true},
		{"ax600", 0, 0, true},
		{"800x", 0, 0, true},
		{"0x10", 0, 0, true},
		{"-5x10", 0, 0, true},
	}
	for _, tt := range tests {
		w, h, err := parseSize(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseSize(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if w != tt.w || h != tt.h {
			t.Errorf("parseSize(%q) = %dx%d, want %dx%d", tt.in, w, h, tt.w, tt.h)
		}
	}

	if _, _, err := parseSize("0x0"); !errors.Is(err, rfile.ErrInvalidSize) {
		t.Errorf("expected ErrInvalidSize, got %v", err)
	}
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("rfile %s: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return strings.TrimSpace(out.String())
}

func TestCLI_PutFitInfoDelete(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("RFILE_BUCKET", "media")
	t.Setenv("RFILE_STORE_DRIVER", "fs")
	t.Setenv("RFILE_STORE_FS_ROOT", filepath.Join(dir, "store"))
	t.Setenv("RFILE_TEMP_DIR", dir)
	t.Setenv("RFILE_LOG_LEVEL", "error")

	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 400, 200))); err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(dir, "in.png")
	if err := os.WriteFile(src, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	key := run(t, "put", src)
	if !strings.HasSuffix(key, ".png") {
		t.Fatalf("unexpected key %q", key)
	}

	if got := run(t, "fit", key, "100x100"); got != key {
		t.Errorf("fit printed %q, want %q", got, key)
	}

	info := run(t, "info", key)
	if !strings.Contains(info, "image:   100x50") {
		t.Errorf("info output:\n%s", info)
	}

	run(t, "delete", key)
	if _, err := os.Stat(filepath.Join(dir, "store", "media", filepath.FromSlash(key))); !os.IsNotExist(err) {
		t.Errorf("object still on disk: %v", err)
	}
}
