// Package git provides the small set of Git primitives classcatalog needs.
//
// It wraps the git command line behind a Runner so every invocation has an
// explicit working directory, a timeout and a checked exit status, and it
// reads HEAD and FETCH_HEAD straight from the repository metadata so callers
// can confirm that a checkout actually landed on the fetched commit.
package git
