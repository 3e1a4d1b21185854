package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Platform
	}{
		{"win32", Windows},
		{"Windows", Windows},
		{"darwin", MacOS},
		{"macos", MacOS},
		{" linux ", Linux},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Parse("plan9")
	assert.Error(t, err)
}

func TestBuilderCommand(t *testing.T) {
	bin, args, err := Windows.BuilderCommand(`script\build`)
	require.NoError(t, err)
	assert.Equal(t, "cmd", bin)
	assert.Equal(t, []string{"/s", "/c", `script\build`, "--create-windows-installer"}, args)

	bin, args, err = MacOS.BuilderCommand("script/build")
	require.NoError(t, err)
	assert.Equal(t, "script/build", bin)
	assert.Equal(t, []string{"--compress-artifacts", "--code-sign"}, args)

	bin, args, err = Linux.BuilderCommand("script/build")
	require.NoError(t, err)
	assert.Equal(t, "script/build", bin)
	assert.Equal(t, []string{"--create-rpm-package", "--create-debian-package"}, args)

	_, _, err = Platform("plan9").BuilderCommand("x")
	assert.Error(t, err)
}

func TestBuilderCommandDoesNotAliasProfile(t *testing.T) {
	_, args, err := Linux.BuilderCommand("a")
	require.NoError(t, err)
	args[0] = "mutated"

	prof, err := Linux.Profile()
	require.NoError(t, err)
	assert.Equal(t, "--create-rpm-package", prof.BuilderArgs[0])
}

func TestFinalizeKinds(t *testing.T) {
	for _, p := range All() {
		prof, err := p.Profile()
		require.NoError(t, err)
		if p == Windows {
			assert.Equal(t, FinalizeRenameSign, prof.Finalize)
		} else {
			assert.Equal(t, FinalizeNone, prof.Finalize)
		}
	}
}
