package rebrand

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ideforge/internal/config"
)

const toolManifest = `{
  "name": "learn-ide",
  "version": "2.6.0",
  "description": "A text editor for Learn",
  "repository": "https://github.com/learn-co/learn-ide",
  "packageDependencies": {
    "learn-ide-tree": "1.0.0",
    "learn-ide-notifier": "2.0.0"
  }
}
`

const wantManifest = `{
  "name": "mastermind",
  "version": "2.6.0",
  "description": "The Learn IDE's evil twin that we use for testing",
  "repository": "https://github.com/learn-co/mastermind",
  "packageDependencies": {
    "learn-ide-notifier": "2.0.0",
    "mirage": "learn-co/mirage#master"
  }
}
`

const menu = `'menu': [
  {
    'label': 'Learn IDE'
    'submenu': [
      { 'label': 'About Learn IDE', 'command': 'learn-ide:about' }
    ]
  }
]
`

type workspace struct {
	manifest string
	config   string
	menu     string
}

func setup(t *testing.T, manifestJSON string) workspace {
	t.Helper()
	dir := t.TempDir()
	ws := workspace{
		manifest: filepath.Join(dir, "package.json"),
		config:   filepath.Join(dir, "forge.yaml"),
		menu:     filepath.Join(dir, "menus", "learn-ide.cson"),
	}
	require.NoError(t, os.WriteFile(ws.manifest, []byte(manifestJSON), 0o644))
	shipped, err := os.ReadFile(filepath.Join("..", "..", "forge.yaml"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(ws.config, shipped, 0o644))
	require.NoError(t, os.MkdirAll(filepath.Dir(ws.menu), 0o755))
	require.NoError(t, os.WriteFile(ws.menu, []byte(menu), 0o644))
	return ws
}

func (w workspace) options() Options {
	return Options{ManifestPath: w.manifest, ConfigPath: w.config, MenuPath: w.menu, Settings: config.DefaultRebrand()}
}

func read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func assertProductName(t *testing.T, path, want string) {
	t.Helper()
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, cfg.Product.Name)
}

func TestApply(t *testing.T) {
	ws := setup(t, toolManifest)

	res, err := Apply(ws.options())
	require.NoError(t, err)
	assert.True(t, res.Manifest)
	assert.True(t, res.Config)
	require.NotNil(t, res.Menu)

	if diff := cmp.Diff(wantManifest, read(t, ws.manifest)); diff != "" {
		t.Errorf("manifest mismatch (-want +got):\n%s", diff)
	}
	assertProductName(t, ws.config, "Mastermind IDE")
	assert.Contains(t, read(t, ws.config), "# Learn IDE defaults.")
	assert.NotContains(t, read(t, ws.menu), "Learn IDE")
	assert.Contains(t, read(t, ws.menu), "'About Mastermind'")
	assert.Contains(t, read(t, ws.menu), "'learn-ide:about'")
}

func TestApply_AlreadyApplied(t *testing.T) {
	ws := setup(t, toolManifest)
	_, err := Apply(ws.options())
	require.NoError(t, err)

	before := read(t, ws.config)
	_, err = Apply(ws.options())
	assert.True(t, errors.Is(err, ErrAlreadyApplied))
	assert.Equal(t, before, read(t, ws.config))
}

func TestApply_RepositoryObject(t *testing.T) {
	ws := setup(t, `{"name": "learn-ide", "repository": {"type": "git", "url": "https://github.com/learn-co/learn-ide.git"}}`)

	_, err := Apply(ws.options())
	require.NoError(t, err)
	assert.Contains(t, read(t, ws.manifest), `"url": "https://github.com/learn-co/mastermind.git"`)
	assert.Contains(t, read(t, ws.manifest), `"type": "git"`)
}

func TestApply_MissingMenuIsSkipped(t *testing.T) {
	ws := setup(t, toolManifest)
	require.NoError(t, os.Remove(ws.menu))

	res, err := Apply(ws.options())
	require.NoError(t, err)
	assert.Nil(t, res.Menu)
	assert.True(t, res.Config)
}

func TestApply_MissingConfigIsCreated(t *testing.T) {
	ws := setup(t, toolManifest)
	require.NoError(t, os.Remove(ws.config))

	res, err := Apply(ws.options())
	require.NoError(t, err)
	assert.True(t, res.Config)
	assertProductName(t, ws.config, "Mastermind IDE")
}

func TestApply_ConfigWithoutProductSection(t *testing.T) {
	ws := setup(t, toolManifest)
	require.NoError(t, os.WriteFile(ws.config, []byte("# local overrides\nbuild_dir: out\n"), 0o644))

	_, err := Apply(ws.options())
	require.NoError(t, err)
	assertProductName(t, ws.config, "Mastermind IDE")

	cfg, err := config.Load(ws.config)
	require.NoError(t, err)
	assert.Equal(t, "out", cfg.BuildDir)
	assert.Contains(t, read(t, ws.config), "# local overrides")
}

func TestApply_MissingManifest(t *testing.T) {
	opts := Options{ManifestPath: filepath.Join(t.TempDir(), "package.json"), Settings: config.DefaultRebrand()}
	_, err := Apply(opts)
	assert.Error(t, err)
}
