// Package catalog turns the file names of a documentation directory into a
// sorted list of class names and reads and writes the catalog files that
// carry those lists.
package catalog

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"
)

// ErrSubdirNotFound is returned when the directory to enumerate is missing.
var ErrSubdirNotFound = errors.New("catalog subdirectory not found")

// Filter selects and normalizes entry names.
type Filter struct {
	// Suffix must end every accepted name and is stripped from it.
	Suffix string
	// ExcludePrefix rejects names that start with it. Empty disables.
	ExcludePrefix string
}

// Match reports whether name is an entry and returns it without the suffix.
// Names that would be empty once the suffix is removed are rejected.
func (f Filter) Match(name string) (string, bool) {
	if f.ExcludePrefix != "" && strings.HasPrefix(name, f.ExcludePrefix) {
		return "", false
	}
	if !strings.HasSuffix(name, f.Suffix) {
		return "", false
	}
	entry := strings.TrimSuffix(name, f.Suffix)
	if entry == "" {
		return "", false
	}
	return entry, true
}

// Enumerate lists the immediate entries of dir that pass the filter,
// stripped and sorted in byte order.
func Enumerate(dir string, f Filter) ([]string, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSubdirNotFound, dir)
		}
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	entries := make([]string, 0, len(dirEntries))
	for _, de := range dirEntries {
		if entry, ok := f.Match(de.Name()); ok {
			entries = append(entries, entry)
		}
	}

	// Stripping the suffix can change relative order, so sort the stripped names.
	slices.Sort(entries)
	return slices.Compact(entries), nil
}

// Catalog is the list of entries extracted for one version.
type Catalog struct {
	Version string
	RepoURL string
	Subdir  string
	Entries []string
}

// Source returns the browsable location the entries were taken from:
// <repo-url>/tree/<version>/<subdir>. Credentials and a trailing .git are
// dropped from the repository URL.
func (c *Catalog) Source() string {
	return strings.TrimSuffix(PublicURL(c.RepoURL), ".git") + "/tree/" + c.Version + "/" + strings.Trim(c.Subdir, "/")
}

// PublicURL strips user info from a repository URL so tokens never end up in
// generated files or logs. Inputs that are not URLs are returned unchanged.
func PublicURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = nil
	return u.String()
}
