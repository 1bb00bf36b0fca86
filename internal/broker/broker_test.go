package broker

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nanashili/dap-client/internal/dapfixture"
	"github.com/nanashili/dap-client/internal/dapio"
	"github.com/nanashili/dap-client/internal/jsonvalue"
)

// rwPair combines a writer half and a reader half into one io.ReadWriter
// so dapio.Transport (which requires one) can be built over a pipe.
type rwPair struct {
	io.Reader
	io.Writer
}

// harness wires a Broker to an in-memory pair of pipes standing in for
// the adapter side: outbound writes land in toAdapter, and test code
// feeds inbound bytes through fromAdapter.
type harness struct {
	b           *Broker
	sent        chan dapio.Message
	fromAdapter *io.PipeWriter
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	toAdapterR, toAdapterW := io.Pipe()
	fromAdapterR, fromAdapterW := io.Pipe()

	transport := dapio.New(rwPair{Reader: nil, Writer: toAdapterW}, nil)
	b := New(transport, nil)
	b.Start(fromAdapterR)

	sent := make(chan dapio.Message, 64)
	recvTransport := dapio.New(rwPair{Reader: toAdapterR, Writer: io.Discard}, nil)
	go recvTransport.StartReceiving(toAdapterR, func(msg dapio.Message, err error) {
		if err == nil {
			sent <- msg
		}
	})

	h := &harness{b: b, sent: sent, fromAdapter: fromAdapterW}
	t.Cleanup(func() {
		b.Close()
		fromAdapterW.Close()
		toAdapterW.Close()
		toAdapterR.Close()
	})
	return h
}

func (h *harness) deliver(t *testing.T, msg dapio.Message) {
	t.Helper()
	tmp := dapio.New(rwPair{Reader: nil, Writer: h.fromAdapter}, nil)
	require.NoError(t, tmp.Send(msg))
}

func (h *harness) awaitSent(t *testing.T) dapio.Message {
	t.Helper()
	select {
	case m := <-h.sent:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broker to send a message")
		return dapio.Message{}
	}
}

func TestSequenceMonotonicity(t *testing.T) {
	h := newHarness(t)
	go func() {
		req1 := h.awaitSent(t)
		h.deliver(t, dapio.NewResponse(100, req1.Seq, req1.Command, jsonvalue.Null()))
	}()
	resp1, err := h.b.SendRequest("initialize", jsonvalue.Null())
	require.NoError(t, err)

	go func() {
		req2 := h.awaitSent(t)
		h.deliver(t, dapio.NewResponse(101, req2.Seq, req2.Command, jsonvalue.Null()))
	}()
	resp2, err := h.b.SendRequest("configurationDone", jsonvalue.Null())
	require.NoError(t, err)

	require.True(t, resp2.RequestSeq > resp1.RequestSeq)
}

func TestResponseCorrelation(t *testing.T) {
	h := newHarness(t)
	done := make(chan struct{})
	go func() {
		req := h.awaitSent(t)
		h.deliver(t, dapio.NewResponse(50, req.Seq, req.Command, jsonvalue.String("ok")))
		close(done)
	}()
	resp, err := h.b.SendRequest("launch", jsonvalue.Null())
	require.NoError(t, err)
	<-done

	sentReqSeq := resp.RequestSeq
	require.Greater(t, sentReqSeq, 0)
}

func TestStaleResponseIsDroppedSafely(t *testing.T) {
	h := newHarness(t)
	// Deliver a response correlated to nothing pending.
	h.deliver(t, dapio.NewResponse(1, 999, "whatever", jsonvalue.Null()))

	// A subsequent real request must still resolve normally.
	go func() {
		req := h.awaitSent(t)
		h.deliver(t, dapio.NewResponse(2, req.Seq, req.Command, jsonvalue.Null()))
	}()
	_, err := h.b.SendRequest("threads", jsonvalue.Null())
	require.NoError(t, err)
}

func TestReverseRequestCompletenessUnregistered(t *testing.T) {
	h := newHarness(t)
	h.deliver(t, dapio.NewRequest(1, "runInTerminal", jsonvalue.Null()))

	resp := h.awaitSent(t)
	require.Equal(t, dapio.TypeResponse, resp.Type)
	require.False(t, resp.Success)
	require.Equal(t, 1, resp.RequestSeq)
	require.Contains(t, resp.Message, "runInTerminal")
}

func TestReverseRequestServicedByHandler(t *testing.T) {
	h := newHarness(t)
	h.b.RegisterRequestHandler("runInTerminal", func(args jsonvalue.Value) (jsonvalue.Value, error) {
		return jsonvalue.Object(map[string]jsonvalue.Value{"processId": jsonvalue.Int(1234)}), nil
	})
	h.deliver(t, dapio.NewRequest(7, "runInTerminal", jsonvalue.Null()))

	resp := h.awaitSent(t)
	require.True(t, resp.Success)
	require.Equal(t, 7, resp.RequestSeq)
	pid, ok := resp.Body.Get("processId")
	require.True(t, ok)
	n, _ := pid.ExactInt()
	require.Equal(t, int64(1234), n)
}

// TestReverseRequestResponsesStaySequenceOrdered delivers two reverse
// requests back to back where the first is serviced by a slow handler
// (standing in for startDebugging launching a nested process) and the
// second by a fast one (standing in for runInTerminal). The fast
// handler's response reaches the actor first and is sent first; the
// invariant under test is that whichever response is sent first also
// carries the lower wire sequence number — allocation and send happen
// atomically, so the two can never observe a higher number sent ahead
// of a lower one.
func TestReverseRequestResponsesStaySequenceOrdered(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	h.b.RegisterRequestHandler("startDebugging", func(args jsonvalue.Value) (jsonvalue.Value, error) {
		<-release
		return jsonvalue.Object(map[string]jsonvalue.Value{}), nil
	})
	h.b.RegisterRequestHandler("runInTerminal", func(args jsonvalue.Value) (jsonvalue.Value, error) {
		return jsonvalue.Object(map[string]jsonvalue.Value{"processId": jsonvalue.Int(1)}), nil
	})

	h.deliver(t, dapio.NewRequest(1, "startDebugging", jsonvalue.Null()))
	h.deliver(t, dapio.NewRequest(2, "runInTerminal", jsonvalue.Null()))

	// Give the fast handler every chance to finish and attempt its send
	// before the slow one is released.
	time.Sleep(50 * time.Millisecond)
	close(release)

	first := h.awaitSent(t)
	second := h.awaitSent(t)

	require.Equal(t, 2, first.RequestSeq, "the fast runInTerminal handler must be the first response sent")
	require.Equal(t, 1, second.RequestSeq, "the slow startDebugging handler's response follows once released")
	require.True(t, first.Seq < second.Seq, "wire sequence numbers must strictly increase in send order")
}

func TestEventHandlersFireInRegistrationOrderPerEvent(t *testing.T) {
	h := newHarness(t)
	var order []string
	done := make(chan struct{}, 2)
	h.b.RegisterEventHandler("stopped", func(body jsonvalue.Value) {
		order = append(order, "first")
		done <- struct{}{}
	})
	h.b.RegisterEventHandler("stopped", func(body jsonvalue.Value) {
		order = append(order, "second")
		done <- struct{}{}
	})
	h.deliver(t, dapio.NewEvent(1, "stopped", dapfixture.Stopped("breakpoint", 1, true)))
	<-done
	<-done
	require.Equal(t, []string{"first", "second"}, order)
}

func TestCloseFailsPendingRequests(t *testing.T) {
	h := newHarness(t)
	errCh := make(chan error, 1)
	go func() {
		_, err := h.b.SendRequest("continue", jsonvalue.Null())
		errCh <- err
	}()
	// Give SendRequest a moment to install its pending slot, then close.
	time.Sleep(50 * time.Millisecond)
	h.b.Close()

	err := <-errCh
	require.Error(t, err)
}
