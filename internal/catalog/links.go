package catalog

import "strings"

// Link pairs an entry with its documentation page.
type Link struct {
	Entry string
	URL   string
}

// DocURL returns the documentation page of an entry:
// <base>/<version>/classes/class_<lowercase entry>.html.
func DocURL(base, version, entry string) string {
	return strings.TrimSuffix(base, "/") + "/" + version + "/classes/class_" + strings.ToLower(entry) + ".html"
}

// Links maps every entry to its documentation page, preserving order.
func Links(base, version string, entries []string) []Link {
	links := make([]Link, len(entries))
	for i, entry := range entries {
		links[i] = Link{Entry: entry, URL: DocURL(base, version, entry)}
	}
	return links
}
