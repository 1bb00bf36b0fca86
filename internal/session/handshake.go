package session

import (
	"io"
	"sync"
	"time"

	"github.com/nanashili/dap-client/internal/jsonvalue"
	"github.com/nanashili/dap-client/internal/persistence"
	"github.com/nanashili/dap-client/internal/protoerr"
)

// Start implements spec.md §4.3's handshake from Idle. It blocks until
// the handshake resolves (success or failure) and returns the resolved
// error, if any. r is the adapter's outbound stream (typically its
// stdout).
func (s *Session) Start(r io.Reader) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return protoerr.New(protoerr.KindSessionNotActive, "session already started")
	}
	s.state = StateStarting
	s.mu.Unlock()

	s.broker.Start(r)

	requestCmd, launchArgs := splitRequestArguments(s.cfg.LaunchConfiguration)

	var once sync.Once
	handshakeDone := make(chan error, 1)
	complete := func(err error) {
		once.Do(func() { handshakeDone <- err })
	}

	// Step 3: install the initialized handler before sending initialize,
	// so there is no window in which the adapter's event could arrive
	// unhandled.
	s.broker.RegisterEventHandler("initialized", func(jsonvalue.Value) {
		if _, err := s.broker.SendRequest("configurationDone", jsonvalue.Object(map[string]jsonvalue.Value{})); err != nil {
			complete(protoerr.Wrap(protoerr.KindAdapterUnavailable, "configurationDone", err))
			return
		}
		if _, err := s.broker.SendRequest(requestCmd, launchArgs); err != nil {
			complete(protoerr.Wrap(protoerr.KindAdapterUnavailable, requestCmd, err))
			return
		}
		s.setState(StateRunning)
		s.emit(Event{Kind: EventInitialized})
		s.flush()
		complete(nil)
	})

	initArgs := jsonvalue.Object(map[string]jsonvalue.Value{
		"adapterID":              jsonvalue.String(s.cfg.Identifier),
		"pathFormat":             jsonvalue.String("path"),
		"supportsVariableType":   jsonvalue.Bool(true),
		"supportsVariablePaging": jsonvalue.Bool(true),
	})
	resp, err := s.broker.SendRequest("initialize", initArgs)
	if err != nil {
		s.setState(StateTerminated)
		return protoerr.Wrap(protoerr.KindAdapterUnavailable, "initialize", err)
	}
	s.mu.Lock()
	s.capabilities = extractCapabilities(resp.Body)
	s.mu.Unlock()

	if err := <-handshakeDone; err != nil {
		s.setState(StateTerminated)
		return err
	}

	s.persist()
	return nil
}

// splitRequestArguments implements spec.md §4.3 step 2: determine the
// launch-or-attach command from the "request" key, defaulting to
// "launch", and strip it from the arguments passed on to that command.
func splitRequestArguments(cfg jsonvalue.Value) (command string, args jsonvalue.Value) {
	command = "launch"
	fields, ok := cfg.AsObject()
	if !ok {
		return command, jsonvalue.Object(map[string]jsonvalue.Value{})
	}
	if reqVal, ok := fields["request"]; ok {
		if s, ok := reqVal.AsString(); ok && s != "" {
			command = s
		}
	}
	delete(fields, "request")
	return command, jsonvalue.Object(fields)
}

// extractCapabilities implements spec.md §4.3 step 5: the key set of the
// initialize response's "capabilities" object, regardless of value.
func extractCapabilities(body jsonvalue.Value) map[string]struct{} {
	caps := make(map[string]struct{})
	capVal, ok := body.Get("capabilities")
	if !ok {
		return caps
	}
	for _, k := range capVal.Keys() {
		caps[k] = struct{}{}
	}
	return caps
}

func (s *Session) flush() {
	if err := s.reconciler.FlushSource(s.broker); err != nil {
		s.logger.Warn("source breakpoint flush failed", "err", err)
	}
	if err := s.reconciler.FlushExceptions(s.broker, s.hasCapability); err != nil {
		s.logger.Warn("exception breakpoint flush failed", "err", err)
	}
}

func (s *Session) persist() {
	if s.cfg.Store == nil {
		return
	}
	record := persistence.SessionRecord{
		SessionID:         s.sessionID,
		AdapterIdentifier: s.cfg.Identifier,
		Configuration:     s.cfg.LaunchConfiguration,
		Timestamp:         time.Now(),
	}
	if err := s.cfg.Store.Save(record); err != nil {
		s.logger.Warn("failed to persist session record", "err", err)
	}
}
