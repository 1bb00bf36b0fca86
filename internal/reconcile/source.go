package reconcile

import (
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nanashili/dap-client/internal/dapio"
	"github.com/nanashili/dap-client/internal/jsonvalue"
	"github.com/nanashili/dap-client/internal/protoerr"
)

// RequestSender is the subset of *broker.Broker the reconciler needs.
// Defined here rather than imported to keep this package independent of
// the broker's concrete type.
type RequestSender interface {
	SendRequest(command string, arguments jsonvalue.Value) (dapio.Message, error)
}

// CapabilityChecker reports whether the adapter advertised capability
// name at handshake.
type CapabilityChecker func(name string) bool

// State is the reconciler state of spec.md §3, normally embedded in a
// Session. All methods are safe for concurrent use.
type State struct {
	mu sync.Mutex

	desiredSource    map[string][]ConditionalBreakpoint
	lastSynchronized map[string]struct{}
	pendingSource    bool

	desiredFilters          []string
	desiredFilterOptions    []ExceptionFilterOption
	desiredExceptionOptions []jsonvalue.Value
	pendingException        bool
}

// NewState returns an empty reconciler state. pendingException starts
// true: spec.md §8 Scenario S1 requires the handshake's first flush to
// send setExceptionBreakpoints with an empty filter list even when the
// caller never touches exception breakpoints.
func NewState() *State {
	return &State{
		desiredSource:    make(map[string][]ConditionalBreakpoint),
		lastSynchronized: make(map[string]struct{}),
		pendingException: true,
	}
}

// SetSourceBreakpoints replaces the desired breakpoint list for file and
// marks a source flush pending. An empty bps clears file from the
// desired set entirely, so a subsequent flush pushes an empty list and
// then drops file from last_synchronized_files.
func (s *State) SetSourceBreakpoints(file string, bps []ConditionalBreakpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(bps) == 0 {
		delete(s.desiredSource, file)
	} else {
		cp := make([]ConditionalBreakpoint, len(bps))
		copy(cp, bps)
		s.desiredSource[file] = cp
	}
	s.pendingSource = true
}

// FlushSource implements spec.md §4.4's flush_source_breakpoints. It is a
// no-op unless a source flush is pending.
func (s *State) FlushSource(sender RequestSender) error {
	s.mu.Lock()
	if !s.pendingSource {
		s.mu.Unlock()
		return nil
	}
	s.pendingSource = false

	grouped := make(map[string][]ConditionalBreakpoint, len(s.desiredSource))
	for f, bps := range s.desiredSource {
		grouped[f] = bps
	}
	filesToUpdate := make(map[string]struct{}, len(s.lastSynchronized)+len(grouped))
	for f := range s.lastSynchronized {
		filesToUpdate[f] = struct{}{}
	}
	for f := range grouped {
		filesToUpdate[f] = struct{}{}
	}
	s.mu.Unlock()

	var g errgroup.Group
	for file := range filesToUpdate {
		file := file
		g.Go(func() error {
			return flushOneFile(sender, file, grouped[file])
		})
	}

	if err := g.Wait(); err != nil {
		s.mu.Lock()
		s.pendingSource = true
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	synced := make(map[string]struct{}, len(grouped))
	for f := range grouped {
		synced[f] = struct{}{}
	}
	s.lastSynchronized = synced
	s.mu.Unlock()
	return nil
}

func flushOneFile(sender RequestSender, file string, bps []ConditionalBreakpoint) error {
	arr := make([]jsonvalue.Value, 0, len(bps))
	for _, bp := range bps {
		arr = append(arr, bp.ToValue())
	}
	args := jsonvalue.Object(map[string]jsonvalue.Value{
		"source": jsonvalue.Object(map[string]jsonvalue.Value{
			"name": jsonvalue.String(filepath.Base(file)),
			"path": jsonvalue.String(file),
		}),
		"breakpoints": jsonvalue.Array(arr...),
	})
	resp, err := sender.SendRequest("setBreakpoints", args)
	if err != nil {
		return err
	}
	if !resp.Success {
		reason := resp.Message
		if reason == "" {
			reason = "adapter rejected setBreakpoints for " + file
		}
		return protoerr.New(protoerr.KindAdapterUnavailable, reason)
	}
	return nil
}
