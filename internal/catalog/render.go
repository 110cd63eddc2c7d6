package catalog

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// HeaderPrefix starts the provenance comment on the first line of every catalog file.
const HeaderPrefix = "// This file was automatically generated from the file names at "

const indent = "    "

// Render formats a catalog file. The output has no trailing newline and
// every entry, including the last, is followed by a comma.
func Render(c *Catalog) []byte {
	var buf bytes.Buffer
	buf.WriteString(HeaderPrefix)
	buf.WriteString(c.Source())
	buf.WriteString("\n[\n")
	for _, entry := range c.Entries {
		buf.WriteString(indent)
		buf.WriteString(strconv.Quote(entry))
		buf.WriteString(",\n")
	}
	buf.WriteString("]")
	return buf.Bytes()
}

// FileName returns the catalog file name for a version: <prefix>-<version>.txt.
// Path separators in the version are replaced so the file stays in its directory.
func FileName(prefix, version string) string {
	safe := strings.NewReplacer("/", "_", `\`, "_").Replace(version)
	return prefix + "-" + safe + ".txt"
}

// Write renders c into dir, replacing any existing file, and returns the
// path written. The file is written to a temporary name first and renamed
// into place so readers never observe a partial catalog.
func Write(dir, prefix string, c *Catalog) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	path := filepath.Join(dir, FileName(prefix, c.Version))

	tmp, err := os.CreateTemp(dir, ".catalog-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temporary catalog: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(Render(c)); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing catalog: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return "", fmt.Errorf("setting catalog permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing catalog: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("replacing %s: %w", path, err)
	}
	return path, nil
}
