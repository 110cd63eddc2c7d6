package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_RenderedCatalog(t *testing.T) {
	c := godotCatalog("3.2", "Node", "Node2D", `Odd"Name`)

	f, err := Parse(Render(c))
	require.NoError(t, err)
	assert.Equal(t, c.Source(), f.Source)
	assert.Equal(t, c.Entries, f.Entries)
}

func TestParse_EmptyCatalog(t *testing.T) {
	f, err := Parse(Render(godotCatalog("3.3")))
	require.NoError(t, err)
	assert.Empty(t, f.Entries)
	assert.NotNil(t, f.Entries)
}

func TestParse_ToleratesTrailingNewlineAndCRLF(t *testing.T) {
	data := "// This file was automatically generated from the file names at https://example.com/tree/1/docs\r\n[\r\n    \"A\",\r\n]\r\n"

	f, err := Parse([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, f.Entries)
	assert.Equal(t, "https://example.com/tree/1/docs", f.Source)
}

func TestParse_Malformed(t *testing.T) {
	header := HeaderPrefix + "https://example.com/tree/1/docs\n"

	tests := map[string]string{
		"empty":             "",
		"no header":         "[\n]",
		"no open bracket":   header + "\"A\",\n]",
		"missing comma":     header + "[\n    \"A\"\n]",
		"unquoted entry":    header + "[\n    A,\n]",
		"unterminated list": header + "[\n    \"A\",\n",
		"trailing content":  header + "[\n]\nextra",
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(data))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestRead(t *testing.T) {
	dir := t.TempDir()
	path, err := Write(dir, "godot_classes", godotCatalog("3.4", "Array", "Node"))
	require.NoError(t, err)

	f, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Array", "Node"}, f.Entries)

	_, err = Read(filepath.Join(dir, "missing.txt"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDocURL(t *testing.T) {
	assert.Equal(t,
		"https://docs.godotengine.org/en/3.2/classes/class_node2d.html",
		DocURL("https://docs.godotengine.org/en", "3.2", "Node2D"))
	assert.Equal(t,
		"https://docs.godotengine.org/en/3.5/classes/class_aabb.html",
		DocURL("https://docs.godotengine.org/en/", "3.5", "AABB"))
}

func TestLinks(t *testing.T) {
	links := Links("https://docs.godotengine.org/en", "3.3", []string{"Array", "int"})
	require.Len(t, links, 2)
	assert.Equal(t, Link{Entry: "Array", URL: "https://docs.godotengine.org/en/3.3/classes/class_array.html"}, links[0])
	assert.Equal(t, "int", links[1].Entry)
}
