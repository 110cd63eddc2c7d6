package git

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRef is returned for names git would reject as a branch or tag.
var ErrInvalidRef = errors.New("invalid ref")

// ValidateRef checks a branch or tag name against the rules of
// git check-ref-format, plus a ban on a leading dash so the name can never be
// parsed as an option.
func ValidateRef(name string) error {
	reject := func(reason string) error {
		return fmt.Errorf("%w %q: %s", ErrInvalidRef, name, reason)
	}

	switch {
	case name == "":
		return reject("empty")
	case name == "@":
		return reject("reserved name")
	case strings.HasPrefix(name, "-"):
		return reject("starts with '-'")
	case strings.HasSuffix(name, "/"), strings.HasSuffix(name, "."):
		return reject("bad trailing character")
	case strings.HasSuffix(name, ".lock"):
		return reject("ends with .lock")
	case strings.Contains(name, ".."), strings.Contains(name, "@{"), strings.Contains(name, "//"):
		return reject("forbidden sequence")
	}

	for _, r := range name {
		if r < 0x20 || r == 0x7f || strings.ContainsRune(" ~^:?*[\\", r) {
			return reject(fmt.Sprintf("forbidden character %q", r))
		}
	}
	for _, part := range strings.Split(name, "/") {
		if strings.HasPrefix(part, ".") {
			return reject("component starts with '.'")
		}
	}
	return nil
}
