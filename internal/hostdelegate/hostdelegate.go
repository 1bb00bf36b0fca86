// Package hostdelegate implements a reference session.HostDelegate
// (spec.md §4.3's reverse-request servicing, §6's "HostDelegate
// interface (produced)"): run_in_terminal spawns a local command, and
// start_debugging launches a nested client session against the same
// manifest directory.
package hostdelegate

import (
	"context"
	"log/slog"
	"os"
	"os/exec"

	"github.com/nanashili/dap-client/internal/jsonvalue"
	"github.com/nanashili/dap-client/internal/launcher"
	"github.com/nanashili/dap-client/internal/manifest"
	"github.com/nanashili/dap-client/internal/persistence"
	"github.com/nanashili/dap-client/internal/protocol"
	"github.com/nanashili/dap-client/internal/protoerr"
	"github.com/nanashili/dap-client/internal/session"
)

// Delegate is the reference HostDelegate. ManifestDir is consulted when
// startDebugging names a nested adapter by identifier; if empty,
// startDebugging always fails with UnsupportedFeature.
type Delegate struct {
	ManifestDir string
	Store       persistence.Store
	Logger      *slog.Logger
}

// RunInTerminal spawns args[0] with the remaining args as its arguments,
// in cwd (if set), with env overlaid on the host environment.
func (d *Delegate) RunInTerminal(args protocol.RunInTerminalArguments) (protocol.RunInTerminalResult, error) {
	cmd := exec.Command(args.Args[0], args.Args[1:]...)
	if args.Cwd != "" {
		cmd.Dir = args.Cwd
	}
	env := os.Environ()
	for k, v := range args.Env {
		env = append(env, k+"="+v)
	}
	cmd.Env = env
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	if err := cmd.Start(); err != nil {
		return protocol.RunInTerminalResult{}, protoerr.Wrap(protoerr.KindProcessLaunchFailed, "runInTerminal spawn", err)
	}
	go cmd.Wait() // reference implementation: fire-and-forget, like a terminal tab

	return protocol.RunInTerminalResult{ProcessID: int64(cmd.Process.Pid)}, nil
}

// StartDebugging launches a nested session against the adapter named by
// configuration's own identifier, found under ManifestDir.
func (d *Delegate) StartDebugging(args protocol.StartDebuggingArguments) error {
	if d.ManifestDir == "" {
		return protoerr.New(protoerr.KindUnsupportedFeature, "no manifest directory configured for nested startDebugging")
	}
	idVal, ok := args.Configuration.Get("identifier")
	if !ok {
		return protoerr.New(protoerr.KindInvalidMessage, "startDebugging configuration missing \"identifier\"")
	}
	identifier, ok := idVal.AsString()
	if !ok {
		return protoerr.New(protoerr.KindInvalidMessage, "startDebugging \"identifier\" must be a string")
	}

	desc, err := manifest.Load(d.ManifestDir, identifier)
	if err != nil {
		return err
	}

	proc, err := launcher.Launch(context.Background(), desc, d.Logger)
	if err != nil {
		return err
	}

	cfg := args.Configuration
	if cfg.IsNull() {
		cfg = jsonvalue.Object(map[string]jsonvalue.Value{})
	}
	nested := session.New(proc.Transport, session.Config{
		Identifier:          desc.Identifier,
		LaunchConfiguration: cfg,
		Delegate:            d,
		Logger:              d.Logger,
		Store:               d.Store,
	})
	go nested.Start(proc.Stdout)
	return nil
}
