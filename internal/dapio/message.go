package dapio

import (
	"fmt"

	"github.com/nanashili/dap-client/internal/jsonvalue"
)

// MessageType distinguishes the three DAP message shapes.
type MessageType int

const (
	TypeRequest MessageType = iota
	TypeResponse
	TypeEvent
)

// Message is the tagged variant described in spec.md §3: every DAP
// envelope the transport ever reads or writes is one of these three
// shapes, carrying a positive Seq.
type Message struct {
	Type MessageType

	// Common
	Seq int

	// Request fields
	Command   string
	Arguments jsonvalue.Value // may be the null Value if absent

	// Response fields
	RequestSeq int
	Success    bool
	Message    string // optional; empty means absent
	Body       jsonvalue.Value

	// Event fields
	Event string
}

// ToValue renders the Message as a jsonvalue.Value suitable for Encode.
func (m Message) ToValue() jsonvalue.Value {
	fields := map[string]jsonvalue.Value{
		"seq": jsonvalue.Int(m.Seq),
	}
	switch m.Type {
	case TypeRequest:
		fields["type"] = jsonvalue.String("request")
		fields["command"] = jsonvalue.String(m.Command)
		if !m.Arguments.IsNull() {
			fields["arguments"] = m.Arguments
		}
	case TypeResponse:
		fields["type"] = jsonvalue.String("response")
		fields["request_seq"] = jsonvalue.Int(m.RequestSeq)
		fields["success"] = jsonvalue.Bool(m.Success)
		fields["command"] = jsonvalue.String(m.Command)
		if m.Message != "" {
			fields["message"] = jsonvalue.String(m.Message)
		}
		if !m.Body.IsNull() {
			fields["body"] = m.Body
		}
	case TypeEvent:
		fields["type"] = jsonvalue.String("event")
		fields["event"] = jsonvalue.String(m.Event)
		if !m.Body.IsNull() {
			fields["body"] = m.Body
		}
	}
	return jsonvalue.Object(fields)
}

// FromValue parses a decoded JSON object into a Message, failing fast on
// any missing required field.
func FromValue(v jsonvalue.Value) (Message, error) {
	typ, ok := v.Get("type")
	if !ok {
		return Message{}, fmt.Errorf("message missing \"type\" field")
	}
	typeName, ok := typ.AsString()
	if !ok {
		return Message{}, fmt.Errorf("message \"type\" field is not a string")
	}

	seqVal, ok := v.Get("seq")
	if !ok {
		return Message{}, fmt.Errorf("message missing \"seq\" field")
	}
	seq, ok := seqVal.ExactInt()
	if !ok || seq <= 0 {
		return Message{}, fmt.Errorf("message \"seq\" must be a positive integer")
	}

	switch typeName {
	case "request":
		cmd, ok := v.Get("command")
		cmdStr, okStr := cmd.AsString()
		if !ok || !okStr {
			return Message{}, fmt.Errorf("request missing \"command\" field")
		}
		args, _ := v.Get("arguments")
		return Message{Type: TypeRequest, Seq: int(seq), Command: cmdStr, Arguments: args}, nil
	case "response":
		reqSeqVal, ok := v.Get("request_seq")
		if !ok {
			return Message{}, fmt.Errorf("response missing \"request_seq\" field")
		}
		reqSeq, ok := reqSeqVal.ExactInt()
		if !ok {
			return Message{}, fmt.Errorf("response \"request_seq\" must be an integer")
		}
		successVal, _ := v.Get("success")
		success, _ := successVal.AsBool()
		cmd, _ := v.Get("command")
		cmdStr, _ := cmd.AsString()
		var msg string
		if mv, ok := v.Get("message"); ok {
			msg, _ = mv.AsString()
		}
		body, _ := v.Get("body")
		return Message{
			Type:       TypeResponse,
			Seq:        int(seq),
			RequestSeq: int(reqSeq),
			Success:    success,
			Command:    cmdStr,
			Message:    msg,
			Body:       body,
		}, nil
	case "event":
		ev, ok := v.Get("event")
		evStr, okStr := ev.AsString()
		if !ok || !okStr {
			return Message{}, fmt.Errorf("event missing \"event\" field")
		}
		body, _ := v.Get("body")
		return Message{Type: TypeEvent, Seq: int(seq), Event: evStr, Body: body}, nil
	default:
		return Message{}, fmt.Errorf("unknown message type %q", typeName)
	}
}

// NewRequest builds an outbound Request Message. seq is assigned by the
// broker, not here.
func NewRequest(seq int, command string, arguments jsonvalue.Value) Message {
	return Message{Type: TypeRequest, Seq: seq, Command: command, Arguments: arguments}
}

// NewEvent builds an outbound Event Message.
func NewEvent(seq int, event string, body jsonvalue.Value) Message {
	return Message{Type: TypeEvent, Seq: seq, Event: event, Body: body}
}

// NewResponse builds a successful outbound Response Message.
func NewResponse(seq, requestSeq int, command string, body jsonvalue.Value) Message {
	return Message{Type: TypeResponse, Seq: seq, RequestSeq: requestSeq, Command: command, Success: true, Body: body}
}

// NewErrorResponse builds a failure outbound Response Message.
func NewErrorResponse(seq, requestSeq int, command, message string) Message {
	return Message{Type: TypeResponse, Seq: seq, RequestSeq: requestSeq, Command: command, Success: false, Message: message}
}
