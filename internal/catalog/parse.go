package catalog

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ErrMalformed is returned when a catalog file does not have the rendered layout.
var ErrMalformed = errors.New("malformed catalog file")

// File is a parsed catalog file.
type File struct {
	Source  string
	Entries []string
}

// Read parses the catalog file at path.
func Read(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse reads back the layout produced by Render.
func Parse(data []byte) (*File, error) {
	malformed := func(line int, format string, args ...any) error {
		return fmt.Errorf("%w: line %d: %s", ErrMalformed, line, fmt.Sprintf(format, args...))
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	next := func() (string, bool) {
		if !scanner.Scan() {
			return "", false
		}
		lineNo++
		return strings.TrimRight(scanner.Text(), "\r"), true
	}

	header, ok := next()
	if !ok || !strings.HasPrefix(header, HeaderPrefix) {
		return nil, malformed(1, "missing provenance header")
	}
	f := &File{Source: strings.TrimPrefix(header, HeaderPrefix), Entries: []string{}}

	if open, ok := next(); !ok || open != "[" {
		return nil, malformed(2, "expected '['")
	}

	for {
		line, ok := next()
		if !ok {
			if err := scanner.Err(); err != nil {
				return nil, err
			}
			return nil, malformed(lineNo+1, "missing closing ']'")
		}
		if line == "]" {
			break
		}
		quoted, found := strings.CutSuffix(strings.TrimSpace(line), ",")
		if !found {
			return nil, malformed(lineNo, "entry without trailing comma")
		}
		entry, err := strconv.Unquote(quoted)
		if err != nil {
			return nil, malformed(lineNo, "bad entry %s", quoted)
		}
		f.Entries = append(f.Entries, entry)
	}

	for {
		line, ok := next()
		if !ok {
			break
		}
		if strings.TrimSpace(line) != "" {
			return nil, malformed(lineNo, "content after ']'")
		}
	}
	return f, scanner.Err()
}
