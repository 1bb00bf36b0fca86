// Package launcher implements the process-spawn mechanics of spec.md §6
// ("Adapter subprocess contract"): starting the adapter child process and
// wiring its stdin/stdout into internal/dapio, with stderr routed to
// structured logging.
package launcher

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"

	"github.com/nanashili/dap-client/internal/dapio"
	"github.com/nanashili/dap-client/internal/manifest"
	"github.com/nanashili/dap-client/internal/protoerr"
)

// Process is a launched adapter subprocess together with the Transport
// wired to its stdio and the raw stdout stream for driving its receive
// loop.
type Process struct {
	cmd       *exec.Cmd
	Transport *dapio.Transport
	Stdout    io.Reader
}

// stdio combines a child process's stdout and stdin into the
// io.ReadWriteCloser dapio.Transport expects.
type stdio struct {
	io.Reader
	io.WriteCloser
}

// Launch starts d.Executable with d.Arguments, in d.WorkingDirectory
// (if set), with d.Environment merged on top of the host environment.
// Its stdout/stdin become a Transport; its stderr is logged at Warn.
func Launch(ctx context.Context, d manifest.Descriptor, logger *slog.Logger) (*Process, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cmd := exec.CommandContext(ctx, d.Executable, d.Arguments...)
	if d.WorkingDirectory != "" {
		cmd.Dir = d.WorkingDirectory
	}
	cmd.Env = mergeEnvironment(os.Environ(), d.Environment)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, protoerr.Wrap(protoerr.KindProcessLaunchFailed, "open adapter stdin", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, protoerr.Wrap(protoerr.KindProcessLaunchFailed, "open adapter stdout", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, protoerr.Wrap(protoerr.KindProcessLaunchFailed, "open adapter stderr", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, protoerr.Wrap(protoerr.KindProcessLaunchFailed, "start adapter "+d.Identifier, err)
	}

	go logStderr(logger, d.Identifier, stderr)

	transport := dapio.New(stdio{Reader: stdout, WriteCloser: stdin}, logger)
	return &Process{cmd: cmd, Transport: transport, Stdout: stdout}, nil
}

// Wait blocks until the subprocess exits.
func (p *Process) Wait() error {
	if err := p.cmd.Wait(); err != nil {
		return protoerr.Wrap(protoerr.KindProcessLaunchFailed, "adapter process exited", err)
	}
	return nil
}

func logStderr(logger *slog.Logger, identifier string, stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		logger.Warn("adapter stderr", "adapter", identifier, "line", scanner.Text())
	}
}

func mergeEnvironment(base []string, overlay map[string]string) []string {
	merged := append([]string(nil), base...)
	for k, v := range overlay {
		merged = append(merged, k+"="+v)
	}
	return merged
}
