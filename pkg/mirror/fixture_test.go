package mirror

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

// origin is a local upstream repository:
//
//	3.2         doc/classes: @GlobalScope.xml Node.xml Node2D.xml readme.md
//	            other: Big.xml (outside the sparse subdirectory)
//	3.3         doc/classes: @GlobalScope.xml Node.xml Sprite.xml readme.md
//	3.4-stable  annotated tag on the 3.3 commit
type origin struct {
	URL    string
	Commit map[string]string
}

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

func newOrigin(t *testing.T) *origin {
	t.Helper()
	dir := t.TempDir()

	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	sig := &object.Signature{Name: "Test Author", Email: "test@example.com", When: time.Unix(1700000000, 0)}

	write := func(name string) {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("<class name=\""+name+"\"/>\n"), 0o644))
		_, err := wt.Add(name)
		require.NoError(t, err)
	}
	branch := func(name string, h plumbing.Hash) {
		ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), h)
		require.NoError(t, repo.Storer.SetReference(ref))
	}

	for _, name := range []string{
		"README.md",
		"doc/classes/@GlobalScope.xml",
		"doc/classes/Node.xml",
		"doc/classes/Node2D.xml",
		"doc/classes/readme.md",
		"other/Big.xml",
	} {
		write(name)
	}
	first, err := wt.Commit("3.2 classes", &gogit.CommitOptions{Author: sig})
	require.NoError(t, err)
	branch("3.2", first)

	_, err = wt.Remove("doc/classes/Node2D.xml")
	require.NoError(t, err)
	write("doc/classes/Sprite.xml")
	second, err := wt.Commit("3.3 classes", &gogit.CommitOptions{Author: sig})
	require.NoError(t, err)
	branch("3.3", second)

	_, err = repo.CreateTag("3.4-stable", second, &gogit.CreateTagOptions{Tagger: sig, Message: "3.4 stable"})
	require.NoError(t, err)

	return &origin{
		URL: "file://" + filepath.ToSlash(dir),
		Commit: map[string]string{
			"3.2":        first.String(),
			"3.3":        second.String(),
			"3.4-stable": second.String(),
		},
	}
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
