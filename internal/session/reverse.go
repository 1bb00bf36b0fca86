package session

import (
	"github.com/nanashili/dap-client/internal/jsonvalue"
	"github.com/nanashili/dap-client/internal/protocol"
	"github.com/nanashili/dap-client/internal/protoerr"
)

// registerReverseHandlers wires runInTerminal and startDebugging to the
// configured HostDelegate per spec.md §4.3: "at session construction,
// register handlers for runInTerminal and startDebugging."
func (s *Session) registerReverseHandlers() {
	s.broker.RegisterRequestHandler("runInTerminal", func(args jsonvalue.Value) (jsonvalue.Value, error) {
		parsed, err := protocol.ParseRunInTerminalArguments(args)
		if err != nil {
			return jsonvalue.Null(), protoerr.New(protoerr.KindInvalidMessage, err.Error())
		}
		if s.cfg.Delegate == nil {
			return jsonvalue.Null(), protoerr.New(protoerr.KindUnsupportedFeature, "no host delegate configured for runInTerminal")
		}
		result, err := s.cfg.Delegate.RunInTerminal(parsed)
		if err != nil {
			return jsonvalue.Null(), err
		}
		return result.ToValue(), nil
	})

	s.broker.RegisterRequestHandler("startDebugging", func(args jsonvalue.Value) (jsonvalue.Value, error) {
		parsed, err := protocol.ParseStartDebuggingArguments(args)
		if err != nil {
			return jsonvalue.Null(), protoerr.New(protoerr.KindInvalidMessage, err.Error())
		}
		if s.cfg.Delegate == nil {
			return jsonvalue.Null(), protoerr.New(protoerr.KindUnsupportedFeature, "no host delegate configured for startDebugging")
		}
		if err := s.cfg.Delegate.StartDebugging(parsed); err != nil {
			return jsonvalue.Null(), err
		}
		return jsonvalue.Object(map[string]jsonvalue.Value{}), nil
	})
}

// registerRuntimeEventHandlers wires stopped/continued/terminated/output
// to the high-level session event stream per spec.md §4.3's "Runtime
// events" section. Malformed bodies are logged and dropped without
// failing the session.
func (s *Session) registerRuntimeEventHandlers() {
	s.broker.RegisterEventHandler("stopped", func(body jsonvalue.Value) {
		parsed, err := protocol.ParseStoppedEventBody(body)
		if err != nil {
			s.logger.Warn("malformed stopped event", "err", err)
			return
		}
		s.emit(Event{Kind: EventStopped, Stopped: parsed})
	})

	s.broker.RegisterEventHandler("continued", func(body jsonvalue.Value) {
		parsed, err := protocol.ParseContinuedEventBody(body)
		if err != nil {
			s.logger.Warn("malformed continued event", "err", err)
			return
		}
		s.emit(Event{Kind: EventContinued, Continued: parsed})
	})

	s.broker.RegisterEventHandler("terminated", func(body jsonvalue.Value) {
		parsed, err := protocol.ParseTerminatedEventBody(body)
		if err != nil {
			s.logger.Warn("malformed terminated event", "err", err)
		}
		s.setState(StateTerminated)
		s.emit(Event{Kind: EventTerminated, Terminated: parsed})
	})

	s.broker.RegisterEventHandler("output", func(body jsonvalue.Value) {
		parsed, err := protocol.ParseOutputEventBody(body)
		if err != nil {
			s.logger.Warn("malformed output event", "err", err)
			return
		}
		s.emit(Event{Kind: EventOutput, Output: parsed})
	})
}
