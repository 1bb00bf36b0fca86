package session

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nanashili/dap-client/internal/dapfixture"
	"github.com/nanashili/dap-client/internal/dapio"
	"github.com/nanashili/dap-client/internal/jsonvalue"
)

// fakeAdapter stands in for the external debug adapter process: it
// collects the requests the Session under test sends, and the test replies
// to each one and pushes events of its own on demand.
type fakeAdapter struct {
	out     *dapio.Transport // writes to the session's receive side
	inbound chan dapio.Message
}

// newFakeAdapter wires a Session to a simulated adapter over two pipes
// and returns both, together with the session's Config. adapterOutR is
// the reader the Session.Start call drives; the adapter reads everything
// the session writes from sessionOutR.
func newFakeAdapter(t *testing.T) (*Session, *fakeAdapter, Config) {
	t.Helper()
	sessionOutR, sessionOutW := io.Pipe()
	adapterOutR, adapterOutW := io.Pipe()

	sessionTransport := dapio.New(rwPair{Writer: sessionOutW}, nil)
	cfg := Config{
		Identifier:          "fake-adapter",
		LaunchConfiguration: jsonvalue.Object(map[string]jsonvalue.Value{"program": jsonvalue.String("/tmp/app")}),
	}
	s := New(sessionTransport, cfg)

	adapter := &fakeAdapter{
		out:     dapio.New(rwPair{Writer: adapterOutW}, nil),
		inbound: make(chan dapio.Message, 64),
	}
	go adapter.out.StartReceiving(sessionOutR, func(msg dapio.Message, err error) {
		if err == nil {
			adapter.inbound <- msg
		}
	})

	t.Cleanup(func() {
		s.broker.Close()
		sessionOutW.Close()
		adapterOutW.Close()
		sessionOutR.Close()
		adapterOutR.Close()
	})

	// The Session's Start(r) reads from adapterOutR: everything the fake
	// adapter sends over adapter.out lands there.
	go s.Start(adapterOutR)

	return s, adapter, cfg
}

type rwPair struct {
	io.Reader
	io.Writer
}

func (a *fakeAdapter) await(t *testing.T) dapio.Message {
	t.Helper()
	select {
	case m := <-a.inbound:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a request from the session")
		return dapio.Message{}
	}
}

func (a *fakeAdapter) respond(t *testing.T, req dapio.Message, body jsonvalue.Value) {
	t.Helper()
	require.NoError(t, a.out.Send(dapio.NewResponse(req.Seq, req.Seq, req.Command, body)))
}

func (a *fakeAdapter) sendEvent(t *testing.T, event string, body jsonvalue.Value) {
	t.Helper()
	require.NoError(t, a.out.Send(dapio.NewEvent(1, event, body)))
}

// driveHandshake runs the canonical S1 handshake: initialize ->
// initialized event -> configurationDone -> launch ->
// setExceptionBreakpoints, replying to each with an empty success body
// (except initialize, whose body carries capabilities). The fourth
// message is sent unconditionally by the session's post-launch flush,
// even when the caller never touches exception breakpoints.
func driveHandshake(t *testing.T, adapter *fakeAdapter, capabilities jsonvalue.Value) []dapio.Message {
	t.Helper()
	var seen []dapio.Message

	initReq := adapter.await(t)
	seen = append(seen, initReq)
	require.Equal(t, "initialize", initReq.Command)
	adapter.respond(t, initReq, jsonvalue.Object(map[string]jsonvalue.Value{"capabilities": capabilities}))

	adapter.sendEvent(t, "initialized", jsonvalue.Null())

	cfgReq := adapter.await(t)
	seen = append(seen, cfgReq)
	require.Equal(t, "configurationDone", cfgReq.Command)
	adapter.respond(t, cfgReq, jsonvalue.Null())

	launchReq := adapter.await(t)
	seen = append(seen, launchReq)
	adapter.respond(t, launchReq, jsonvalue.Null())

	excReq := adapter.await(t)
	seen = append(seen, excReq)
	require.Equal(t, "setExceptionBreakpoints", excReq.Command)
	adapter.respond(t, excReq, jsonvalue.Null())

	return seen
}

func TestHandshakeOrderingS1(t *testing.T) {
	s, adapter, _ := newFakeAdapter(t)
	seen := driveHandshake(t, adapter, jsonvalue.Object(map[string]jsonvalue.Value{}))

	require.Equal(t, "initialize", seen[0].Command)
	require.Equal(t, "configurationDone", seen[1].Command)
	require.Equal(t, "launch", seen[2].Command)
	require.Equal(t, "setExceptionBreakpoints", seen[3].Command)

	program, ok := seen[2].Arguments.Get("program")
	require.True(t, ok)
	str, _ := program.AsString()
	require.Equal(t, "/tmp/app", str)

	filters, ok := seen[3].Arguments.Get("filters")
	require.True(t, ok)
	arr, ok := filters.AsArray()
	require.True(t, ok)
	require.Empty(t, arr)

	require.Eventually(t, func() bool { return s.State() == StateRunning }, time.Second, 10*time.Millisecond)
}

func TestHandshakeAttachStripsRequestKey(t *testing.T) {
	sessionOutR, sessionOutW := io.Pipe()
	adapterOutR, adapterOutW := io.Pipe()
	sessionTransport := dapio.New(rwPair{Writer: sessionOutW}, nil)
	cfg := Config{
		Identifier: "fake-adapter",
		LaunchConfiguration: jsonvalue.Object(map[string]jsonvalue.Value{
			"request":   jsonvalue.String("attach"),
			"processId": jsonvalue.Int(42),
		}),
	}
	s := New(sessionTransport, cfg)
	adapter := &fakeAdapter{out: dapio.New(rwPair{Writer: adapterOutW}, nil), inbound: make(chan dapio.Message, 64)}
	go adapter.out.StartReceiving(sessionOutR, func(msg dapio.Message, err error) {
		if err == nil {
			adapter.inbound <- msg
		}
	})
	t.Cleanup(func() {
		s.broker.Close()
		sessionOutW.Close()
		adapterOutW.Close()
		sessionOutR.Close()
		adapterOutR.Close()
	})
	go s.Start(adapterOutR)

	initReq := adapter.await(t)
	adapter.respond(t, initReq, jsonvalue.Object(map[string]jsonvalue.Value{"capabilities": jsonvalue.Object(map[string]jsonvalue.Value{})}))
	adapter.sendEvent(t, "initialized", jsonvalue.Null())
	cfgReq := adapter.await(t)
	adapter.respond(t, cfgReq, jsonvalue.Null())

	attachReq := adapter.await(t)
	require.Equal(t, "attach", attachReq.Command)
	_, hasRequest := attachReq.Arguments.Get("request")
	require.False(t, hasRequest)
	pid, ok := attachReq.Arguments.Get("processId")
	require.True(t, ok)
	n, _ := pid.ExactInt()
	require.Equal(t, int64(42), n)
	adapter.respond(t, attachReq, jsonvalue.Null())

	excReq := adapter.await(t)
	require.Equal(t, "setExceptionBreakpoints", excReq.Command)
	adapter.respond(t, excReq, jsonvalue.Null())
}

func TestCapabilityGateBlocksStepBack(t *testing.T) {
	s, adapter, _ := newFakeAdapter(t)
	driveHandshake(t, adapter, jsonvalue.Object(map[string]jsonvalue.Value{}))
	require.Eventually(t, func() bool { return s.State() == StateRunning }, time.Second, 10*time.Millisecond)

	err := s.StepBack(1, StepOptions{})
	require.Error(t, err)

	select {
	case <-adapter.inbound:
		t.Fatal("step back must not reach the wire without the capability")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCapabilityPresentAllowsStepBack(t *testing.T) {
	s, adapter, _ := newFakeAdapter(t)
	driveHandshake(t, adapter, jsonvalue.Object(map[string]jsonvalue.Value{"supportsStepBack": jsonvalue.Bool(true)}))
	require.Eventually(t, func() bool { return s.State() == StateRunning }, time.Second, 10*time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- s.StepBack(1, StepOptions{}) }()

	req := adapter.await(t)
	require.Equal(t, "stepBack", req.Command)
	adapter.respond(t, req, jsonvalue.Null())
	require.NoError(t, <-done)
}

func TestRuntimeOperationRequiresRunningState(t *testing.T) {
	s, _, _ := newFakeAdapter(t)
	err := s.Continue(1)
	require.Error(t, err)
}

func TestStoppedEventReachesSubscribers(t *testing.T) {
	s, adapter, _ := newFakeAdapter(t)
	driveHandshake(t, adapter, jsonvalue.Object(map[string]jsonvalue.Value{}))

	received := make(chan Event, 1)
	s.Subscribe(func(e Event) {
		if e.Kind == EventStopped {
			received <- e
		}
	})
	adapter.sendEvent(t, "stopped", dapfixture.Stopped("breakpoint", 7, false))

	select {
	case e := <-received:
		require.Equal(t, "breakpoint", e.Stopped.Reason)
		require.Equal(t, int64(7), e.Stopped.ThreadID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stopped event")
	}
}
