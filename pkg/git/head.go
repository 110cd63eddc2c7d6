package git

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNotGitRepo indicates the directory is not a Git repository
	ErrNotGitRepo = errors.New("not a git repository")

	// ErrHeadNotFound indicates the .git/HEAD file is missing
	ErrHeadNotFound = errors.New("HEAD file not found")

	// ErrFetchHeadNotFound indicates nothing has been fetched yet
	ErrFetchHeadNotFound = errors.New("FETCH_HEAD not found")
)

// Head describes what a repository's HEAD points at.
type Head struct {
	// Branch is set when HEAD is a symbolic ref to refs/heads/<branch>.
	Branch string
	// Hash is set when HEAD is detached.
	Hash string
}

// Detached reports whether HEAD points directly at a commit.
func (h Head) Detached() bool {
	return h.Branch == ""
}

// IsRepository reports whether dir contains a .git directory.
func IsRepository(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil && info.IsDir()
}

// ReadHead reads HEAD from the .git directory of a working copy.
//
// A symbolic ref yields Head.Branch; anything else is treated as a detached
// commit and returned in Head.Hash (empty for an empty HEAD file).
func ReadHead(dir string) (Head, error) {
	gitDir := filepath.Join(dir, ".git")
	if !IsRepository(dir) {
		return Head{}, fmt.Errorf("%w: %s", ErrNotGitRepo, dir)
	}

	headFile := filepath.Join(gitDir, "HEAD")
	content, err := os.ReadFile(headFile)
	if err != nil {
		if os.IsNotExist(err) {
			return Head{}, fmt.Errorf("%w: %s", ErrHeadNotFound, headFile)
		}
		return Head{}, fmt.Errorf("reading HEAD file: %w", err)
	}

	head := strings.TrimSpace(string(content))
	if strings.HasPrefix(head, "ref: refs/heads/") {
		return Head{Branch: strings.TrimPrefix(head, "ref: refs/heads/")}, nil
	}
	return Head{Hash: head}, nil
}

// ReadFetchHead returns the commit recorded on the first line of FETCH_HEAD,
// which is the first ref named in the most recent fetch.
func ReadFetchHead(dir string) (string, error) {
	if !IsRepository(dir) {
		return "", fmt.Errorf("%w: %s", ErrNotGitRepo, dir)
	}

	path := filepath.Join(dir, ".git", "FETCH_HEAD")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrFetchHeadNotFound, path)
		}
		return "", fmt.Errorf("reading FETCH_HEAD: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("reading FETCH_HEAD: %w", err)
		}
		return "", fmt.Errorf("%w: %s is empty", ErrFetchHeadNotFound, path)
	}

	// <hash>\t[not-for-merge]\t<description>
	fields := strings.Fields(scanner.Text())
	if len(fields) == 0 || !IsHash(fields[0]) {
		return "", fmt.Errorf("malformed FETCH_HEAD line %q", scanner.Text())
	}
	return fields[0], nil
}

// IsHash reports whether s is a full lowercase SHA-1 or SHA-256 object name.
func IsHash(s string) bool {
	if len(s) != 40 && len(s) != 64 {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdef", c) {
			return false
		}
	}
	return true
}
