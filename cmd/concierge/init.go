package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cenourinhas/concierge/internal/defaults"
)

// runInit writes an example config.yaml and persona.md into dir.
// Existing files are left untouched.
func runInit(w io.Writer, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	files := []struct {
		name string
		data []byte
		perm os.FileMode
	}{
		// config.yaml may hold expanded secrets.
		{"config.yaml", defaults.ConfigYAML, 0o600},
		{"persona.md", defaults.PersonaMD, 0o644},
	}
	for _, f := range files {
		if err := writeIfMissing(w, filepath.Join(dir, f.name), f.data, f.perm); err != nil {
			return err
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Next steps:")
	fmt.Fprintln(w, "  1. Put secrets (MERCADO_PAGO_ACCESS_TOKEN, ANTHROPIC_API_KEY) in .env")
	fmt.Fprintln(w, "  2. Import the guest list:   concierge import-guests contacts.vcf")
	fmt.Fprintln(w, "  3. Import the gift catalog: concierge import-gifts gifts.yaml")
	fmt.Fprintln(w, "  4. Start the server:        concierge serve")
	return nil
}

// writeIfMissing writes data to path unless the file already exists.
func writeIfMissing(w io.Writer, path string, data []byte, perm os.FileMode) error {
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(w, "  skip  %s (exists)\n", path)
		return nil
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(w, "  wrote %s\n", path)
	return nil
}
