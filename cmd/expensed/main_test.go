package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunVersion(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), &out, &out, []string{"version"}); err != nil {
		t.Fatalf("run(version) failed: %v", err)
	}
	if !strings.Contains(out.String(), "expensed") {
		t.Errorf("output = %q", out.String())
	}
	if !strings.Contains(out.String(), "go_version") {
		t.Errorf("output missing go_version: %q", out.String())
	}
}

func TestRunUsage(t *testing.T) {
	for _, args := range [][]string{nil, {"-h"}, {"--help"}} {
		var out bytes.Buffer
		if err := run(context.Background(), &out, &out, args); err != nil {
			t.Fatalf("run(%v) failed: %v", args, err)
		}
		if !strings.Contains(out.String(), "Usage: expensed") {
			t.Errorf("run(%v) output = %q", args, out.String())
		}
	}
}

func TestRunRejectsUnknownInput(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), &out, &out, []string{"frobnicate"}); err == nil {
		t.Error("unknown command accepted")
	}
	if err := run(context.Background(), &out, &out, []string{"-bogus"}); err == nil {
		t.Error("unknown flag accepted")
	}
	if err := run(context.Background(), &out, &out, []string{"ask", "only-snapshot.json"}); err == nil {
		t.Error("ask without a message accepted")
	}
}

func TestRunInit(t *testing.T) {
	dir := t.TempDir()

	var out bytes.Buffer
	if err := run(context.Background(), &out, &out, []string{"init", dir}); err != nil {
		t.Fatalf("run(init) failed: %v", err)
	}

	configPath := filepath.Join(dir, "config.yaml")
	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if !strings.Contains(string(content), "provider:") {
		t.Errorf("config content = %q", content)
	}

	// Second run must not clobber an edited config.
	if err := os.WriteFile(configPath, []byte("provider: openai\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := run(context.Background(), &out, &out, []string{"init", dir}); err != nil {
		t.Fatalf("second init failed: %v", err)
	}
	content, _ = os.ReadFile(configPath)
	if string(content) != "provider: openai\n" {
		t.Error("init overwrote an existing config")
	}
}

func TestConfigFlagVariants(t *testing.T) {
	// Both -config <path> and -config=<path> must reach the loader; a
	// missing explicit file is an error either way.
	for _, args := range [][]string{
		{"-config", "/no/such/config.yaml", "version"},
		{"-config=/no/such/config.yaml", "serve"},
	} {
		var out bytes.Buffer
		err := run(context.Background(), &out, &out, args)
		if args[len(args)-1] == "version" {
			// version never touches config
			if err != nil {
				t.Errorf("run(%v) failed: %v", args, err)
			}
			continue
		}
		if err == nil || !strings.Contains(err.Error(), "config file not found") {
			t.Errorf("run(%v) err = %v, want config not found", args, err)
		}
	}
}
