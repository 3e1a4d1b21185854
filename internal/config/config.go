package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"ideforge/internal/assets"
	"ideforge/internal/fsutil"
	"ideforge/internal/manifest"
	"ideforge/internal/platform"
)

// DefaultPath is the config file looked up in the workspace.
const DefaultPath = "forge.yaml"

// Config holds all ideforge configuration.
type Config struct {
	// Branded product identity
	Product ProductConfig `yaml:"product"`

	// Upstream editor archive
	Upstream UpstreamConfig `yaml:"upstream"`

	// Target platform; empty means the host platform
	Platform string `yaml:"platform"`

	// Build tree, relative to the workspace
	BuildDir string `yaml:"build_dir"`

	// The tool's own package manifest (name, version, bundled packages)
	PackageManifest string `yaml:"package_manifest"`

	Packages PackagesConfig   `yaml:"packages"`
	Assets   []assets.Mapping `yaml:"assets"`
	Branding BrandingConfig   `yaml:"branding"`
	Builder  BuilderConfig    `yaml:"builder"`
	Windows  WindowsConfig    `yaml:"windows"`
	Signing  SigningConfig    `yaml:"signing"`
	Fetch    FetchConfig      `yaml:"fetch"`
	Setup    SetupConfig      `yaml:"setup"`
	Ledger   LedgerConfig     `yaml:"ledger"`
	Logging  LoggingConfig    `yaml:"logging"`
	Rebrand  RebrandConfig    `yaml:"rebrand"`
}

// UpstreamConfig locates the editor source archive. "{version}" in
// ArchiveURL is replaced with Version, or with the local manifest's
// atomVersion when Version is empty.
type UpstreamConfig struct {
	ArchiveURL string `yaml:"archive_url"`
	Version    string `yaml:"version"`
}

// PackagesConfig controls the bundled package list of the build manifest.
type PackagesConfig struct {
	Remove []string              `yaml:"remove"`
	Extra  []manifest.Dependency `yaml:"extra,omitempty"`
}

// BrandingConfig points at an alternative substitution table.
type BrandingConfig struct {
	Rules string `yaml:"rules"`
}

// BuilderConfig configures the upstream build script invocation.
type BuilderConfig struct {
	Script  string            `yaml:"script"`
	Timeout string            `yaml:"timeout"`
	Env     map[string]string `yaml:"env,omitempty"`
}

// WindowsConfig configures the installer finalize step.
type WindowsConfig struct {
	OutDir             string `yaml:"out_dir"`
	GeneratedInstaller string `yaml:"generated_installer"`
	Signtool           string `yaml:"signtool"`
}

// SigningConfig names the environment variables holding signing material.
type SigningConfig struct {
	CertEnv     string `yaml:"cert_env"`
	PasswordEnv string `yaml:"password_env"`
}

// FetchConfig configures the archive download.
type FetchConfig struct {
	Timeout string `yaml:"timeout"`
}

// SetupConfig configures the setup task.
type SetupConfig struct {
	EnvExample string `yaml:"env_example"`
	EnvFile    string `yaml:"env_file"`
}

// LedgerConfig configures the run history database.
type LedgerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns the stock Learn IDE configuration.
func DefaultConfig() *Config {
	return &Config{
		Product:         DefaultProduct(),
		Upstream:        UpstreamConfig{ArchiveURL: "https://github.com/atom/atom/archive/v{version}.tar.gz"},
		BuildDir:        "build",
		PackageManifest: "package.json",
		Packages: PackagesConfig{
			Remove: []string{"welcome", "tree-view", "about"},
		},
		Assets: []assets.Mapping{
			{Source: "resources/app-icons/**/*", Dest: "resources/app-icons/stable"},
			{Source: "resources/win/**/*", Dest: "resources/win"},
			{Source: "resources/script-replacements/**/*", Dest: "script/lib"},
		},
		Builder: BuilderConfig{
			Script: "script/build",
		},
		Windows: WindowsConfig{
			OutDir:   "out",
			Signtool: "script/node_modules/electron-winstaller/vendor/signtool.exe",
		},
		Signing: SigningConfig{
			CertEnv:     "FLATIRON_P12KEY_PATH",
			PasswordEnv: "FLATIRON_P12KEY_PASSWORD",
		},
		Setup: SetupConfig{
			EnvExample: ".env.example",
			EnvFile:    ".env",
		},
		Ledger: LedgerConfig{
			Enabled: true,
			Path:    ".forge/history.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Rebrand: DefaultRebrand(),
	}
}

// Load loads configuration from a YAML file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := fsutil.WriteFileAtomic(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("FORGE_BUILD_DIR"); dir != "" {
		c.BuildDir = dir
	}
	if p := os.Getenv("FORGE_PLATFORM"); p != "" {
		c.Platform = p
	}
	if v := os.Getenv("FORGE_ATOM_VERSION"); v != "" {
		c.Upstream.Version = v
	}
}

// GetFetchTimeout returns the download timeout; zero means none.
func (c *Config) GetFetchTimeout() time.Duration {
	return optionalDuration(c.Fetch.Timeout)
}

// GetBuilderTimeout returns the build script timeout; zero means none.
func (c *Config) GetBuilderTimeout() time.Duration {
	return optionalDuration(c.Builder.Timeout)
}

func optionalDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Product.Name == "" {
		return fmt.Errorf("product.name is required")
	}
	if c.BuildDir == "" {
		return fmt.Errorf("build_dir is required")
	}
	if c.Upstream.ArchiveURL == "" {
		return fmt.Errorf("upstream.archive_url is required")
	}
	if c.Builder.Script == "" {
		return fmt.Errorf("builder.script is required")
	}
	if c.Platform != "" {
		if _, err := platform.Parse(c.Platform); err != nil {
			return err
		}
	}
	for i, m := range c.Assets {
		if m.Source == "" || m.Dest == "" {
			return fmt.Errorf("assets[%d]: source and dest are required", i)
		}
	}
	for name, s := range map[string]string{"fetch.timeout": c.Fetch.Timeout, "builder.timeout": c.Builder.Timeout} {
		if s == "" {
			continue
		}
		if _, err := time.ParseDuration(s); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, s, err)
		}
	}
	return nil
}
