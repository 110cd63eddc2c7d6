package main

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/classcatalog/internal/catalog"
	"github.com/fyrsmithlabs/classcatalog/internal/config"
)

// execute runs the CLI in a fresh working directory and returns stdout.
func execute(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	t.Chdir(dir)

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func writeCatalog(t *testing.T, dir, version string, entries ...string) {
	t.Helper()
	_, err := catalog.Write(dir, "godot_classes", &catalog.Catalog{
		Version: version,
		RepoURL: "https://github.com/godotengine/godot",
		Subdir:  "doc/classes",
		Entries: entries,
	})
	require.NoError(t, err)
}

func TestShow(t *testing.T) {
	dir := t.TempDir()
	writeCatalog(t, dir, "3.2", "Node", "Node2D")

	out, err := execute(t, dir, "show", "3.2")
	require.NoError(t, err)
	assert.Equal(t, "Node\nNode2D\n", out)

	out, err = execute(t, dir, "show", "3.2", "--source")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "# https://github.com/godotengine/godot/tree/3.2/doc/classes\n"))
}

func TestShow_MissingCatalog(t *testing.T) {
	_, err := execute(t, t.TempDir(), "show", "3.9")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLinks(t *testing.T) {
	dir := t.TempDir()
	writeCatalog(t, dir, "3.3", "Node", "Sprite")

	out, err := execute(t, dir, "links", "3.3")
	require.NoError(t, err)
	assert.Contains(t, out, "https://docs.godotengine.org/en/3.3/classes/class_node.html")
	assert.Contains(t, out, "https://docs.godotengine.org/en/3.3/classes/class_sprite.html")
	assert.Contains(t, out, "Sprite")
}

func TestLinks_EmptyCatalog(t *testing.T) {
	dir := t.TempDir()
	writeCatalog(t, dir, "3.4")

	out, err := execute(t, dir, "links", "3.4")
	require.NoError(t, err)
	assert.Equal(t, "Catalog is empty.\n", out)
}

func TestLinks_CustomDocsURL(t *testing.T) {
	dir := t.TempDir()
	writeCatalog(t, dir, "3.5", "AABB")
	t.Setenv("CLASSCATALOG_SOURCE_DOCS_URL", "https://docs.example.com/engine")

	out, err := execute(t, dir, "links", "3.5")
	require.NoError(t, err)
	assert.Contains(t, out, "https://docs.example.com/engine/3.5/classes/class_aabb.html")
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "classcatalog dev"))
}

func TestGenerate_InvalidFlags(t *testing.T) {
	tests := map[string][]string{
		"backend":        {"generate", "--backend", "svn"},
		"failure policy": {"--failure-policy", "sometimes"},
		"bad version":    {"generate", "--version", "3.2..3.3"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := execute(t, t.TempDir(), args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid config")
		})
	}
}

func TestGenerateOptions_Apply(t *testing.T) {
	opts := &generateOptions{}
	cmd := &cobra.Command{Use: "generate"}
	opts.addFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{
		"--version", "3.4", "--version", "3.5",
		"--output-dir", "gen",
		"--backend", "go-git",
	}))

	cfg := config.Default()
	opts.apply(cmd, cfg)

	assert.Equal(t, []string{"3.4", "3.5"}, cfg.Source.Versions)
	assert.Equal(t, "gen", cfg.Output.Dir)
	assert.Equal(t, config.BackendGoGit, cfg.Mirror.Backend)
	assert.Equal(t, "godot", cfg.Mirror.Dir)
	assert.Equal(t, config.PolicyFailFast, cfg.Run.FailurePolicy)
}

// newUpstream builds a repository with branches 3.2 and 3.3 and returns its URL.
func newUpstream(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	sig := &object.Signature{Name: "Test Author", Email: "test@example.com", When: time.Unix(1700000000, 0)}

	commit := func(branch string, files ...string) {
		for _, f := range files {
			path := filepath.Join(dir, "doc", "classes", f)
			require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
			require.NoError(t, os.WriteFile(path, []byte(f), 0o644))
			_, err := wt.Add("doc/classes/" + f)
			require.NoError(t, err)
		}
		h, err := wt.Commit(branch, &gogit.CommitOptions{Author: sig})
		require.NoError(t, err)
		require.NoError(t, repo.Storer.SetReference(
			plumbing.NewHashReference(plumbing.NewBranchReferenceName(branch), h)))
	}
	commit("3.2", "Node.xml", "Node2D.xml", "@GlobalScope.xml", "readme.md")
	commit("3.3", "Sprite.xml")

	return "file://" + filepath.ToSlash(dir)
}

func TestGenerate_EndToEnd(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
	if testing.Short() {
		t.Skip("skipping git integration test in short mode")
	}

	for _, backend := range []string{config.BackendExec, config.BackendGoGit} {
		t.Run(backend, func(t *testing.T) {
			work := t.TempDir()
			t.Setenv("CLASSCATALOG_SOURCE_URL", newUpstream(t))
			t.Setenv("CLASSCATALOG_MIRROR_DEPTH", "-1")
			t.Setenv("CLASSCATALOG_METRICS_TEXTFILE", filepath.Join(work, "metrics", "classcatalog.prom"))

			out, err := execute(t, work, "generate", "--backend", backend, "--version", "3.2", "--version", "3.3")
			require.NoError(t, err)
			assert.Contains(t, out, "3.2\t2 entries")
			assert.Contains(t, out, "3.3\t3 entries")

			first, err := os.ReadFile(filepath.Join(work, "godot_classes-3.2.txt"))
			require.NoError(t, err)
			assert.Equal(t, catalog.HeaderPrefix+newURLTree(t, "3.2")+"\n[\n    \"Node\",\n    \"Node2D\",\n]", string(first))

			out, err = execute(t, work, "show", "3.3")
			require.NoError(t, err)
			assert.Equal(t, "Node\nNode2D\nSprite\n", out)

			assert.FileExists(t, filepath.Join(work, "metrics", "classcatalog.prom"))
			assert.DirExists(t, filepath.Join(work, "godot", ".git"))

			// Second run reuses the mirror and rewrites identical files.
			_, err = execute(t, work, "--backend", backend, "--version", "3.2")
			require.NoError(t, err)
			second, err := os.ReadFile(filepath.Join(work, "godot_classes-3.2.txt"))
			require.NoError(t, err)
			assert.Equal(t, first, second)
		})
	}
}

// newURLTree renders the header source for the upstream under test.
func newURLTree(t *testing.T, version string) string {
	t.Helper()
	return catalog.PublicURL(os.Getenv("CLASSCATALOG_SOURCE_URL")) + "/tree/" + version + "/doc/classes"
}
