package patch

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"ideforge/internal/logging"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "target.js")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLiteralReplacesFirstOccurrenceOnly(t *testing.T) {
	out, rep, err := Apply("atom atom atom", []Rule{{Match: "atom", Replace: "learn_ide"}})
	require.NoError(t, err)
	assert.Equal(t, "learn_ide atom atom", out)
	assert.Equal(t, 1, rep.Applied)
	assert.True(t, rep.Changed)
}

func TestRegexFirstAndGlobal(t *testing.T) {
	in := "'Atom Beta' : 'Atom' and 'Atom Beta' : 'Atom'"
	rule := Rule{Match: `'Atom Beta' : 'Atom'`, Replace: "'Learn IDE' : 'Learn IDE'", Regex: true}

	out, _, err := Apply(in, []Rule{rule})
	require.NoError(t, err)
	assert.Equal(t, "'Learn IDE' : 'Learn IDE' and 'Atom Beta' : 'Atom'", out)

	rule.Global = true
	out, _, err = Apply(in, []Rule{rule})
	require.NoError(t, err)
	assert.Equal(t, "'Learn IDE' : 'Learn IDE' and 'Learn IDE' : 'Learn IDE'", out)
}

func TestRegexGroupExpansion(t *testing.T) {
	in := "<key>CFBundleURLSchemes</key>\n<array>\n<string>atom</string>\n</array>"
	out, rep, err := Apply(in, []Rule{{
		Match:   `(CFBundleURLSchemes.+\n.+\n.+)(atom)(.+)`,
		Replace: "${1}learn-ide${3}",
		Regex:   true,
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Applied)
	assert.Equal(t, "<key>CFBundleURLSchemes</key>\n<array>\n<string>learn-ide</string>\n</array>", out)
}

func TestRulesApplyInOrder(t *testing.T) {
	out, _, err := Apply("a", []Rule{
		{Match: "a", Replace: "b"},
		{Match: "b", Replace: "c"},
	})
	require.NoError(t, err)
	assert.Equal(t, "c", out)
}

func TestLiteralMissLeavesFileByteIdentical(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	restore := logging.Replace(zap.New(core))
	defer restore()

	content := "const x = 'unchanged'\r\n\ttrailing  \n"
	path := writeFile(t, content)
	before, err := os.Stat(path)
	require.NoError(t, err)

	rep, err := ApplyFile(path, []Rule{{Match: "not-present", Replace: "x"}})
	require.NoError(t, err)
	assert.False(t, rep.Changed)
	require.Len(t, rep.Missed, 1)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))

	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())

	assert.Equal(t, 1, logs.FilterMessageSnippet("pattern not found").Len())
}

func TestSecondApplicationIsNoop(t *testing.T) {
	path := writeFile(t, "return 'atom'\n")
	rules := []Rule{{Match: `return 'atom'`, Replace: "return 'learn_ide'", Regex: true}}

	rep, err := ApplyFile(path, rules)
	require.NoError(t, err)
	assert.True(t, rep.Changed)
	first, _ := os.ReadFile(path)

	rep, err = ApplyFile(path, rules)
	require.NoError(t, err)
	assert.False(t, rep.Changed)
	second, _ := os.ReadFile(path)

	assert.Equal(t, string(first), string(second))
	assert.Equal(t, "return 'learn_ide'\n", string(second))
}

func TestMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.js")
	_, err := ApplyFile(path, []Rule{{Match: "a", Replace: "b"}})

	var nf *FileNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, path, nf.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestInvalidRules(t *testing.T) {
	assert.Error(t, Validate([]Rule{{Match: "(", Regex: true}}))
	assert.Error(t, Validate([]Rule{{Match: ""}}))
	assert.NoError(t, Validate([]Rule{{Match: "(x)", Regex: true}, {Match: "y"}}))

	path := writeFile(t, "keep")
	_, err := ApplyFile(path, []Rule{{Match: "[", Regex: true}})
	assert.Error(t, err)
	data, _ := os.ReadFile(path)
	assert.Equal(t, "keep", string(data))
}

func TestSkips(t *testing.T) {
	fr := FileRules{Path: "script/lib/package-application.js", SkipPlatforms: []string{"linux"}}
	assert.True(t, fr.Skips("linux"))
	assert.False(t, fr.Skips("windows"))
}

func TestRuleString(t *testing.T) {
	assert.Equal(t, `literal "a"`, Rule{Match: "a"}.String())
	assert.Equal(t, `regex/g "a"`, Rule{Match: "a", Regex: true, Global: true}.String())
}
