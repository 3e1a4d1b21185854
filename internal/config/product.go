package config

import "strings"

// ProductConfig describes the branded product.
type ProductConfig struct {
	Name          string `yaml:"name"`
	BetaSuffix    string `yaml:"beta_suffix"`
	URLScheme     string `yaml:"url_scheme"`
	CommandPrefix string `yaml:"command_prefix"`
	IconURL       string `yaml:"icon_url"`
	UITheme       string `yaml:"ui_theme"`
	SyntaxTheme   string `yaml:"syntax_theme"`
}

// DefaultProduct returns the Learn IDE identity.
func DefaultProduct() ProductConfig {
	return ProductConfig{
		Name:          "Learn IDE",
		BetaSuffix:    " Beta",
		URLScheme:     "learn-ide",
		CommandPrefix: "learn-ide",
		IconURL:       "https://raw.githubusercontent.com/learn-co/learn-ide/master/resources/app-icons/atom.ico",
		UITheme:       "learn-ide-material-ui",
		SyntaxTheme:   "atom-material-syntax",
	}
}

// IsBeta reports whether a version string names a beta release.
func IsBeta(version string) bool {
	return strings.Contains(version, "beta")
}

// ProductName is the display name for version.
func (p ProductConfig) ProductName(version string) string {
	if IsBeta(version) {
		return p.Name + p.BetaSuffix
	}
	return p.Name
}

// ExecutableName lower-cases name and turns spaces into underscores.
func ExecutableName(productName string) string {
	return strings.ReplaceAll(strings.ToLower(productName), " ", "_")
}

// WindowsInstallerName is the branded installer file name.
func WindowsInstallerName(productName string) string {
	return strings.ReplaceAll(productName, " ", "") + "Setup.exe"
}

// GeneratedInstallerName is the name the upstream Squirrel step produces.
func GeneratedInstallerName(productName string) string {
	return productName + "Setup.exe"
}
