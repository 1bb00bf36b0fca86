// Package dapio implements the Content-Length-framed transport described
// in spec.md §4.1: reading and writing Messages over a bidirectional byte
// stream, typically the stdio of a child adapter process.
package dapio

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/nanashili/dap-client/internal/jsonvalue"
	"github.com/nanashili/dap-client/internal/protoerr"
)

const headerTerminator = "\r\n\r\n"

// Handler is invoked once per decoded Message, and once per framing
// error that the transport could resync past.
type Handler func(msg Message, err error)

// Transport reads framed Messages from an io.Reader and writes framed
// Messages to an io.Writer. It is safe to call Send concurrently with a
// running receive loop; a single goroutine drives StartReceiving.
type Transport struct {
	logger *slog.Logger

	writeMu sync.Mutex
	w       io.Writer

	closeOnce sync.Once
	closed    chan struct{}
	closer    io.Closer
}

// New constructs a Transport over rw. If rw also implements io.Closer,
// Close closes it; otherwise Close is a no-op on the underlying stream.
func New(rw io.ReadWriter, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Transport{
		logger: logger,
		w:      rw,
		closed: make(chan struct{}),
	}
	if c, ok := rw.(io.Closer); ok {
		t.closer = c
	}
	return t
}

// Send encodes and writes a single Message. The Content-Length header
// and body are written as one buffered write, making the send atomic at
// Message granularity as required by spec.md §4.1.
func (t *Transport) Send(msg Message) error {
	select {
	case <-t.closed:
		return protoerr.New(protoerr.KindTransportFailure, "transport is closed")
	default:
	}

	body, err := jsonvalue.Encode(msg.ToValue())
	if err != nil {
		return protoerr.Wrap(protoerr.KindTransportFailure, "encode message", err)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Content-Length: %d%s", len(body), headerTerminator)
	buf.Write(body)

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.w.Write(buf.Bytes()); err != nil {
		return protoerr.Wrap(protoerr.KindTransportFailure, "write message", err)
	}
	return nil
}

// StartReceiving reads from r, reassembling partial reads, and invokes
// handler once per decoded Message or recoverable framing error. It
// blocks until r returns an error (including io.EOF) or the transport is
// closed, and always returns a non-nil error describing why it stopped.
func (t *Transport) StartReceiving(r io.Reader, handler Handler) error {
	var buf bytes.Buffer
	chunk := make([]byte, 4096)

	for {
		select {
		case <-t.closed:
			return protoerr.New(protoerr.KindTransportFailure, "transport is closed")
		default:
		}

		idx := bytes.Index(buf.Bytes(), []byte(headerTerminator))
		if idx == -1 {
			n, err := r.Read(chunk)
			if n > 0 {
				buf.Write(chunk[:n])
				continue
			}
			if err != nil {
				return protoerr.Wrap(protoerr.KindTransportFailure, "read from transport", err)
			}
			continue
		}

		headerBlock := buf.Bytes()[:idx]
		contentLength, ok := parseContentLength(headerBlock)
		if !ok {
			t.logger.Warn("discarding transport buffer after malformed header", "header", string(headerBlock))
			handler(Message{}, protoerr.New(protoerr.KindInvalidMessage, "missing or malformed Content-Length header"))
			// Protocol resync is undefined on malformed headers: discard
			// everything read so far and start fresh.
			buf.Reset()
			continue
		}

		bodyStart := idx + len(headerTerminator)
		needed := bodyStart + contentLength
		if buf.Len() < needed {
			n, err := r.Read(chunk)
			if n > 0 {
				buf.Write(chunk[:n])
				continue
			}
			if err != nil {
				return protoerr.Wrap(protoerr.KindTransportFailure, "read from transport", err)
			}
			continue
		}

		raw := buf.Bytes()[bodyStart:needed]
		body := make([]byte, len(raw))
		copy(body, raw)
		remaining := make([]byte, buf.Len()-needed)
		copy(remaining, buf.Bytes()[needed:])
		buf.Reset()
		buf.Write(remaining)

		val, err := jsonvalue.Decode(body)
		if err != nil {
			handler(Message{}, protoerr.Wrap(protoerr.KindInvalidMessage, "body is not valid JSON", err))
			continue
		}
		msg, err := FromValue(val)
		if err != nil {
			handler(Message{}, protoerr.Wrap(protoerr.KindInvalidMessage, "body does not match a known message shape", err))
			continue
		}
		handler(msg, nil)
	}
}

// parseContentLength scans a header block (the bytes before the blank
// line) for a case-insensitive "content-length" header and parses its
// decimal value.
func parseContentLength(headerBlock []byte) (int, bool) {
	lines := strings.Split(string(headerBlock), "\r\n")
	for _, line := range lines {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(parts[0]), "content-length") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || n < 0 {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// Close idempotently closes the underlying stream, if closeable. After
// Close, Send fails with TransportFailure.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		if t.closer != nil {
			err = t.closer.Close()
		}
	})
	return err
}
