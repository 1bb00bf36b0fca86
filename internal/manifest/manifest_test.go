package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, identifier, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, identifier+".json"), []byte(body), 0o644))
}

func TestLoadValidManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "delve", `{
		"identifier": "delve",
		"executable": "/usr/bin/dlv",
		"arguments": ["dap"],
		"environment": {"GOFLAGS": "-mod=mod"}
	}`)

	d, err := Load(dir, "delve")
	require.NoError(t, err)
	require.Equal(t, "delve", d.Identifier)
	require.Equal(t, "/usr/bin/dlv", d.Executable)
	require.Equal(t, []string{"dap"}, d.Arguments)
	require.Equal(t, "-mod=mod", d.Environment["GOFLAGS"])
}

func TestLoadMissingManifest(t *testing.T) {
	_, err := Load(t.TempDir(), "nope")
	require.Error(t, err)
}

func TestLoadInvalidManifestMissingExecutable(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "broken", `{"identifier": "broken"}`)
	_, err := Load(dir, "broken")
	require.Error(t, err)
}

func TestLoadDefaultsIdentifierToFilename(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "anon", `{"executable": "/bin/true"}`)
	d, err := Load(dir, "anon")
	require.NoError(t, err)
	require.Equal(t, "anon", d.Identifier)
}
