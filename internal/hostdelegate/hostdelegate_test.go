package hostdelegate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nanashili/dap-client/internal/jsonvalue"
	"github.com/nanashili/dap-client/internal/protocol"
)

func TestRunInTerminalSpawnsProcess(t *testing.T) {
	d := &Delegate{}
	result, err := d.RunInTerminal(protocol.RunInTerminalArguments{Args: []string{"/bin/echo", "hi"}})
	require.NoError(t, err)
	require.Greater(t, result.ProcessID, int64(0))
}

func TestStartDebuggingRequiresManifestDir(t *testing.T) {
	d := &Delegate{}
	err := d.StartDebugging(protocol.StartDebuggingArguments{
		Configuration: jsonvalue.Object(map[string]jsonvalue.Value{"identifier": jsonvalue.String("x")}),
	})
	require.Error(t, err)
}

func TestStartDebuggingRequiresIdentifier(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "echo.json"), []byte(`{"executable": "/bin/cat"}`), 0o644))

	d := &Delegate{ManifestDir: dir}
	err := d.StartDebugging(protocol.StartDebuggingArguments{
		Configuration: jsonvalue.Object(map[string]jsonvalue.Value{}),
	})
	require.Error(t, err)
}

func TestStartDebuggingLaunchesNestedSession(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "echo.json"), []byte(`{"executable": "/bin/cat"}`), 0o644))

	d := &Delegate{ManifestDir: dir}
	err := d.StartDebugging(protocol.StartDebuggingArguments{
		Configuration: jsonvalue.Object(map[string]jsonvalue.Value{
			"identifier": jsonvalue.String("echo"),
			"program":    jsonvalue.String("/tmp/app"),
		}),
	})
	// cat never answers the DAP handshake, so this only asserts launch
	// and session construction succeeded without error; the nested
	// session's Start goroutine will simply block awaiting a response
	// that never comes.
	require.NoError(t, err)
}
