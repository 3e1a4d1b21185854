package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute_Identical(t *testing.T) {
	d := Compute("a.js", "x\ny\n", "x\ny\n", DefaultContext)
	assert.True(t, d.Empty())
	assert.Equal(t, "", d.Unified())
}

func TestCompute_SingleLineChange(t *testing.T) {
	oldContent := "one\ntwo\nconst name = 'Atom'\nfour\nfive\n"
	newContent := "one\ntwo\nconst name = 'Learn IDE'\nfour\nfive\n"

	d := Compute("script/lib/package-application.js", oldContent, newContent, 1)
	require.Len(t, d.Hunks, 1)

	want := "--- a/script/lib/package-application.js\n" +
		"+++ b/script/lib/package-application.js\n" +
		"@@ -2,3 +2,3 @@\n" +
		" two\n" +
		"-const name = 'Atom'\n" +
		"+const name = 'Learn IDE'\n" +
		" four\n"
	assert.Equal(t, want, d.Unified())
}

func TestCompute_DistantChangesSplitHunks(t *testing.T) {
	oldContent := "a\nb\nc\nd\ne\nf\ng\nh\ni\nj\n"
	newContent := "A\nb\nc\nd\ne\nf\ng\nh\ni\nJ\n"

	d := Compute("f", oldContent, newContent, 1)
	require.Len(t, d.Hunks, 2)
	assert.Equal(t, 1, d.Hunks[0].OldStart)
	assert.Equal(t, 2, d.Hunks[0].OldCount)
	assert.Equal(t, 9, d.Hunks[1].OldStart)
	assert.Equal(t, 2, d.Hunks[1].NewCount)
}

func TestCompute_NearbyChangesShareHunk(t *testing.T) {
	d := Compute("f", "a\nb\nc\nd\n", "A\nb\nC\nd\n", 1)
	require.Len(t, d.Hunks, 1)
	assert.Equal(t, 4, d.Hunks[0].OldCount)
	assert.Equal(t, 4, d.Hunks[0].NewCount)
}
