package pages

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ppiankov/sixc/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadDir_NaturalOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "page10.txt"), "ten")
	writeFile(t, filepath.Join(dir, "page2.txt"), "two\r\nlines")
	writeFile(t, filepath.Join(dir, "page1.txt"), "one")
	writeFile(t, filepath.Join(dir, "notes.md"), "ignored")

	doc, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, model.Pages{"one", "two\nlines", "ten"}, doc.Pages)
	assert.Nil(t, doc.Citations)
}

func TestLoadText_FormFeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	writeFile(t, path, "first page\fsecond page\f")

	doc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, model.Pages{"first page", "second page"}, doc.Pages)
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()

	bare := filepath.Join(dir, "bare.json")
	writeFile(t, bare, `["a", "b"]`)
	doc, err := Load(bare)
	require.NoError(t, err)
	assert.Equal(t, model.Pages{"a", "b"}, doc.Pages)

	full := filepath.Join(dir, "full.json")
	writeFile(t, full, `{"pages": ["body ¹"], "citations": {"footnotes": {"items": {"1": "Smith 2020."}, "intext": []}}}`)
	doc, err = Load(full)
	require.NoError(t, err)
	require.NotNil(t, doc.Citations)
	assert.Equal(t, "Smith 2020.", doc.Citations.Footnotes.Items[1])
}

func TestParseJSON_HitIndexShapes(t *testing.T) {
	data := []byte(`{
		"pages": ["body ³ and ¹²"],
		"citations": {
			"footnotes": {"items": {}, "intext": [{"index": 3, "anchor_text": "body", "style": "footnote"}]},
			"numeric": [{"index": "12", "anchor_text": "and", "style": "numeric"}],
			"tex": [{"index": "iv", "style": "roman"}],
			"author_year": [{"index": "Smith 2020", "style": "author_year"}]
		}
	}`)

	doc, err := ParseJSON("doc.json", data)
	require.NoError(t, err)

	hits := doc.Citations.AllHits()
	require.Len(t, hits, 4)
	assert.Equal(t, "3", hits[0].Index)
	assert.Equal(t, 3, hits[0].Number)
	assert.Equal(t, "iv", hits[1].Index)
	assert.Equal(t, 4, hits[1].Number)
	assert.Equal(t, "12", hits[2].Index)
	assert.Equal(t, 12, hits[2].Number)
	assert.Equal(t, "Smith 2020", hits[3].Index)
	assert.Equal(t, 0, hits[3].Number)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.txt")
	writeFile(t, empty, "  \f \n")
	_, err = Load(empty)
	assert.True(t, errors.Is(err, ErrNoPages))

	emptyDir := filepath.Join(dir, "nothing")
	require.NoError(t, os.Mkdir(emptyDir, 0o755))
	_, err = Load(emptyDir)
	assert.True(t, errors.Is(err, ErrNoPages))

	badJSON := filepath.Join(dir, "bad.json")
	writeFile(t, badJSON, `{"pages": 3}`)
	_, err = Load(badJSON)
	assert.Error(t, err)
}

func TestNaturalLess(t *testing.T) {
	assert.True(t, naturalLess("p2.txt", "p10.txt"))
	assert.False(t, naturalLess("p10.txt", "p2.txt"))
	assert.True(t, naturalLess("p002.txt", "p10.txt"))
	assert.True(t, naturalLess("a.txt", "b.txt"))
	assert.True(t, naturalLess("p1", "p1a"))
}
