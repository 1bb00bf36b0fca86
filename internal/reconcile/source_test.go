package reconcile

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nanashili/dap-client/internal/dapio"
	"github.com/nanashili/dap-client/internal/jsonvalue"
)

// fakeSender records every setBreakpoints-style request it receives and
// replies with a canned success response.
type fakeSender struct {
	mu       sync.Mutex
	requests []dapio.Message
	fail     map[string]bool // command -> force failure
}

func newFakeSender() *fakeSender {
	return &fakeSender{fail: map[string]bool{}}
}

func (f *fakeSender) SendRequest(command string, arguments jsonvalue.Value) (dapio.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, dapio.NewRequest(len(f.requests)+1, command, arguments))
	if f.fail[command] {
		return dapio.NewErrorResponse(0, 0, command, "adapter refused"), nil
	}
	return dapio.NewResponse(0, 0, command, jsonvalue.Object(map[string]jsonvalue.Value{
		"breakpoints": jsonvalue.Array(),
	})), nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func TestFlushSourceIdempotentWhenUnchanged(t *testing.T) {
	s := NewState()
	sender := newFakeSender()

	s.SetSourceBreakpoints("a.go", []ConditionalBreakpoint{{Line: 4, Condition: "x>1"}})
	require.NoError(t, s.FlushSource(sender))
	require.Equal(t, 1, sender.count())

	// No further SetSourceBreakpoints call: pendingSource stays false.
	require.NoError(t, s.FlushSource(sender))
	require.Equal(t, 1, sender.count(), "a flush with nothing pending issues no requests")
}

func TestFlushSourceClosesRemovedFiles(t *testing.T) {
	s := NewState()
	sender := newFakeSender()

	s.SetSourceBreakpoints("a.go", []ConditionalBreakpoint{{Line: 4}})
	require.NoError(t, s.FlushSource(sender))
	require.Equal(t, 1, sender.count())

	// Desired state moves from A to B: A must be pushed with an empty
	// list so the adapter clears it, and B with its new breakpoints.
	s.SetSourceBreakpoints("a.go", nil)
	s.SetSourceBreakpoints("b.go", []ConditionalBreakpoint{{Line: 10}})
	require.NoError(t, s.FlushSource(sender))
	require.Equal(t, 3, sender.count())

	seenEmpty := false
	sender.mu.Lock()
	for _, req := range sender.requests[1:] {
		sourceVal, _ := req.Arguments.Get("source")
		pathVal, _ := sourceVal.Get("path")
		path, _ := pathVal.AsString()
		bpsVal, _ := req.Arguments.Get("breakpoints")
		arr, _ := bpsVal.AsArray()
		if path == "a.go" {
			require.Empty(t, arr)
			seenEmpty = true
		}
	}
	sender.mu.Unlock()
	require.True(t, seenEmpty)

	// A third flush with no changes issues no requests.
	require.NoError(t, s.FlushSource(sender))
	require.Equal(t, 3, sender.count())
}

func TestFlushSourceFailureReraisesPending(t *testing.T) {
	s := NewState()
	sender := newFakeSender()
	sender.fail["setBreakpoints"] = true

	s.SetSourceBreakpoints("a.go", []ConditionalBreakpoint{{Line: 1}})
	err := s.FlushSource(sender)
	require.Error(t, err)

	// pendingSource was re-raised, so a later flush (adapter recovers)
	// retries without a new SetSourceBreakpoints call.
	sender.fail["setBreakpoints"] = false
	require.NoError(t, s.FlushSource(sender))
	require.Equal(t, 2, sender.count())
}
