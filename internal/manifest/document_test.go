package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "package.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParsePreservesOrder(t *testing.T) {
	doc, err := Parse([]byte(`{"zeta": 1, "alpha": {"b": 2, "a": 1}, "mid": "x"}`))
	require.NoError(t, err)

	if diff := cmp.Diff([]string{"zeta", "alpha", "mid"}, doc.Keys()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}

	sub, err := doc.Object("alpha")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, sub.Keys())
}

func TestParseErrors(t *testing.T) {
	for name, input := range map[string]string{
		"empty":    ``,
		"array":    `[1,2]`,
		"broken":   `{"a": }`,
		"trailing": `{"a": 1} {"b": 2}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(input))
			var pe *ParseError
			assert.True(t, errors.As(err, &pe), "expected ParseError, got %v", err)
		})
	}
}

func TestLoadSetsPathOnParseError(t *testing.T) {
	path := writeManifest(t, `not json`)
	_, err := Load(path)

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, path, pe.Path)
	assert.Contains(t, err.Error(), path)
}

func TestSetKeepsPositionAndAppends(t *testing.T) {
	doc, err := Parse([]byte(`{"name": "atom", "version": "1.0.0", "description": "old"}`))
	require.NoError(t, err)

	require.NoError(t, doc.Set("version", "2.0.0"))
	require.NoError(t, doc.Set("productName", "Learn IDE"))

	assert.Equal(t, []string{"name", "version", "description", "productName"}, doc.Keys())
	v, ok := doc.GetString("version")
	require.True(t, ok)
	assert.Equal(t, "2.0.0", v)
}

func TestDelete(t *testing.T) {
	doc, err := Parse([]byte(`{"a": 1, "b": 2, "c": 3}`))
	require.NoError(t, err)

	assert.True(t, doc.Delete("b"))
	assert.False(t, doc.Delete("b"))
	assert.Equal(t, []string{"a", "c"}, doc.Keys())
}

func TestEncodeFormatting(t *testing.T) {
	doc, err := Parse([]byte(`{"name":"atom","engines":{},"files":[],"url":"a<b>&c"}`))
	require.NoError(t, err)
	require.NoError(t, doc.Set("html", "<tag>"))

	out, err := doc.Encode()
	require.NoError(t, err)

	want := `{
  "name": "atom",
  "engines": {},
  "files": [],
  "url": "a<b>&c",
  "html": "<tag>"
}
`
	if diff := cmp.Diff(want, string(out)); diff != "" {
		t.Errorf("encoding mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := writeManifest(t, `{"b": 1, "a": 2}`)
	doc, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, doc.Save(path))

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, again.Keys())
}
