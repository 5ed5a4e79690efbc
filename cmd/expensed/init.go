package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rhassine/expense-tracker/internal/defaults"
)

// runInit writes a starter configuration into dir. An existing
// config.yaml is never overwritten.
func runInit(w io.Writer, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		fmt.Fprintf(w, "%s already exists, leaving it alone\n", configPath)
		return nil
	}

	if err := os.WriteFile(configPath, defaults.ConfigYAML, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", configPath, err)
	}

	fmt.Fprintf(w, "Wrote %s\n", configPath)
	fmt.Fprintln(w, "Edit it (or set ANTHROPIC_API_KEY / OPENAI_API_KEY) and run: expensed serve")
	return nil
}
