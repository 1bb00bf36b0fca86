package session

import (
	"encoding/base64"
	"strings"

	"github.com/nanashili/dap-client/internal/jsonvalue"
	"github.com/nanashili/dap-client/internal/protocol"
	"github.com/nanashili/dap-client/internal/protoerr"
	"github.com/nanashili/dap-client/internal/reconcile"
)

// StepOptions carries the optional fields shared by the stepping
// commands: singleThread and granularity merge into the request
// arguments only when present.
type StepOptions struct {
	SingleThread *bool
	Granularity  string
}

func (o StepOptions) apply(fields map[string]jsonvalue.Value) {
	if o.SingleThread != nil {
		fields["singleThread"] = jsonvalue.Bool(*o.SingleThread)
	}
	if o.Granularity != "" {
		fields["granularity"] = jsonvalue.String(o.Granularity)
	}
}

func (s *Session) sendRuntime(command string, fields map[string]jsonvalue.Value) error {
	if err := s.requireRunning(); err != nil {
		return err
	}
	resp, err := s.broker.SendRequest(command, jsonvalue.Object(fields))
	if err != nil {
		return err
	}
	if !resp.Success {
		return protoerr.New(protoerr.KindAdapterUnavailable, resp.Message)
	}
	return nil
}

// Continue resumes thread (or all threads, adapter-dependent).
func (s *Session) Continue(threadID int64) error {
	return s.sendRuntime("continue", map[string]jsonvalue.Value{"threadId": jsonvalue.Int(int(threadID))})
}

// Pause suspends thread.
func (s *Session) Pause(threadID int64) error {
	return s.sendRuntime("pause", map[string]jsonvalue.Value{"threadId": jsonvalue.Int(int(threadID))})
}

// StepIn steps into the current statement. A non-nil targetID requires
// supportsStepInTargetsRequest.
func (s *Session) StepIn(threadID int64, targetID *int64, opts StepOptions) error {
	if targetID != nil && !s.hasCapability("supportsStepInTargetsRequest") {
		return protoerr.New(protoerr.KindUnsupportedFeature, "adapter does not support step-in targets")
	}
	fields := map[string]jsonvalue.Value{"threadId": jsonvalue.Int(int(threadID))}
	if targetID != nil {
		fields["targetId"] = jsonvalue.Int(int(*targetID))
	}
	opts.apply(fields)
	return s.sendRuntime("stepIn", fields)
}

// StepOut steps out of the current function.
func (s *Session) StepOut(threadID int64, opts StepOptions) error {
	fields := map[string]jsonvalue.Value{"threadId": jsonvalue.Int(int(threadID))}
	opts.apply(fields)
	return s.sendRuntime("stepOut", fields)
}

// StepOver steps over the current statement.
func (s *Session) StepOver(threadID int64, opts StepOptions) error {
	fields := map[string]jsonvalue.Value{"threadId": jsonvalue.Int(int(threadID))}
	opts.apply(fields)
	return s.sendRuntime("next", fields)
}

// StepBack requires supportsStepBack.
func (s *Session) StepBack(threadID int64, opts StepOptions) error {
	if !s.hasCapability("supportsStepBack") {
		return protoerr.New(protoerr.KindUnsupportedFeature, "adapter does not support step back")
	}
	fields := map[string]jsonvalue.Value{"threadId": jsonvalue.Int(int(threadID))}
	opts.apply(fields)
	return s.sendRuntime("stepBack", fields)
}

func (s *Session) fetch(command string, fields map[string]jsonvalue.Value) (jsonvalue.Value, error) {
	if err := s.requireRunning(); err != nil {
		return jsonvalue.Null(), err
	}
	resp, err := s.broker.SendRequest(command, jsonvalue.Object(fields))
	if err != nil {
		return jsonvalue.Null(), err
	}
	if !resp.Success {
		return jsonvalue.Null(), protoerr.New(protoerr.KindAdapterUnavailable, resp.Message)
	}
	return resp.Body, nil
}

// FetchThreads returns the adapter's current thread list.
func (s *Session) FetchThreads() ([]protocol.Thread, error) {
	body, err := s.fetch("threads", map[string]jsonvalue.Value{})
	if err != nil {
		return nil, err
	}
	return protocol.ParseThreads(body)
}

// FetchStackTrace returns the call stack for thread, optionally windowed
// by start/levels.
func (s *Session) FetchStackTrace(threadID int64, start, levels *int) ([]protocol.StackFrame, error) {
	fields := map[string]jsonvalue.Value{"threadId": jsonvalue.Int(int(threadID))}
	if start != nil {
		fields["startFrame"] = jsonvalue.Int(*start)
	}
	if levels != nil {
		fields["levels"] = jsonvalue.Int(*levels)
	}
	body, err := s.fetch("stackTrace", fields)
	if err != nil {
		return nil, err
	}
	return protocol.ParseStackTrace(body)
}

// FetchScopes returns the variable scopes rooted at frame.
func (s *Session) FetchScopes(frameID int64) ([]protocol.Scope, error) {
	body, err := s.fetch("scopes", map[string]jsonvalue.Value{"frameId": jsonvalue.Int(int(frameID))})
	if err != nil {
		return nil, err
	}
	return protocol.ParseScopes(body)
}

// FetchVariables returns the variables under variablesReference.
func (s *Session) FetchVariables(variablesReference int64) ([]protocol.Variable, error) {
	body, err := s.fetch("variables", map[string]jsonvalue.Value{"variablesReference": jsonvalue.Int(int(variablesReference))})
	if err != nil {
		return nil, err
	}
	return protocol.ParseVariables(body)
}

// FetchLoadedSources returns the adapter's loaded source list.
func (s *Session) FetchLoadedSources() ([]protocol.LoadedSource, error) {
	body, err := s.fetch("loadedSources", map[string]jsonvalue.Value{})
	if err != nil {
		return nil, err
	}
	return protocol.ParseLoadedSources(body)
}

// FetchModules returns the adapter's loaded module list.
func (s *Session) FetchModules() ([]protocol.Module, error) {
	body, err := s.fetch("modules", map[string]jsonvalue.Value{})
	if err != nil {
		return nil, err
	}
	return protocol.ParseModules(body)
}

// FetchCompletions returns completion candidates for text at the given
// cursor position, optionally scoped to frame.
func (s *Session) FetchCompletions(text string, column int, line *int, frameID *int64) ([]protocol.CompletionItem, error) {
	fields := map[string]jsonvalue.Value{
		"text":   jsonvalue.String(text),
		"column": jsonvalue.Int(column),
	}
	if line != nil {
		fields["line"] = jsonvalue.Int(*line)
	}
	if frameID != nil {
		fields["frameId"] = jsonvalue.Int(int(*frameID))
	}
	body, err := s.fetch("completions", fields)
	if err != nil {
		return nil, err
	}
	return protocol.ParseCompletions(body)
}

// FetchStepInTargets requires supportsStepInTargetsRequest.
func (s *Session) FetchStepInTargets(frameID int64) ([]protocol.StepInTarget, error) {
	if !s.hasCapability("supportsStepInTargetsRequest") {
		return nil, protoerr.New(protoerr.KindUnsupportedFeature, "adapter does not support step-in targets")
	}
	body, err := s.fetch("stepInTargets", map[string]jsonvalue.Value{"frameId": jsonvalue.Int(int(frameID))})
	if err != nil {
		return nil, err
	}
	return protocol.ParseStepInTargets(body)
}

// ReadMemory reads count bytes from ref (+offset), returning the
// adapter-reported address and the decoded bytes. Adapter output is
// tolerated with surrounding whitespace per spec.md §4.3.
func (s *Session) ReadMemory(ref string, offset *int, count int) (address string, data []byte, err error) {
	fields := map[string]jsonvalue.Value{
		"memoryReference": jsonvalue.String(ref),
		"count":           jsonvalue.Int(count),
	}
	if offset != nil {
		fields["offset"] = jsonvalue.Int(*offset)
	}
	body, err := s.fetch("readMemory", fields)
	if err != nil {
		return "", nil, err
	}
	addrVal, ok := body.Get("address")
	if !ok {
		return "", nil, protoerr.New(protoerr.KindInvalidResponse, "readMemory response missing \"address\"")
	}
	address, _ = addrVal.AsString()
	dataVal, ok := body.Get("data")
	if !ok {
		return address, nil, nil
	}
	encoded, _ := dataVal.AsString()
	decoded, decErr := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if decErr != nil {
		return "", nil, protoerr.Wrap(protoerr.KindInvalidResponse, "readMemory data is not valid base64", decErr)
	}
	return address, decoded, nil
}

// WriteMemory writes data to ref (+offset).
func (s *Session) WriteMemory(ref string, offset *int, data []byte) error {
	fields := map[string]jsonvalue.Value{
		"memoryReference": jsonvalue.String(ref),
		"data":            jsonvalue.String(base64.StdEncoding.EncodeToString(data)),
	}
	if offset != nil {
		fields["offset"] = jsonvalue.Int(*offset)
	}
	return s.sendRuntime("writeMemory", fields)
}

// SetExpression requires supportsSetExpression.
func (s *Session) SetExpression(expr, value string, frameID *int64, format jsonvalue.Value) (string, error) {
	if !s.hasCapability("supportsSetExpression") {
		return "", protoerr.New(protoerr.KindUnsupportedFeature, "adapter does not support setExpression")
	}
	fields := map[string]jsonvalue.Value{
		"expression": jsonvalue.String(expr),
		"value":      jsonvalue.String(value),
	}
	if frameID != nil {
		fields["frameId"] = jsonvalue.Int(int(*frameID))
	}
	if !format.IsNull() {
		fields["format"] = format
	}
	body, err := s.fetch("setExpression", fields)
	if err != nil {
		return "", err
	}
	v, _ := body.Get("value")
	result, _ := v.AsString()
	return result, nil
}

// SetVariable requires supportsSetVariable.
func (s *Session) SetVariable(container int64, name, value string, format jsonvalue.Value) (string, error) {
	if !s.hasCapability("supportsSetVariable") {
		return "", protoerr.New(protoerr.KindUnsupportedFeature, "adapter does not support setVariable")
	}
	fields := map[string]jsonvalue.Value{
		"variablesReference": jsonvalue.Int(int(container)),
		"name":               jsonvalue.String(name),
		"value":              jsonvalue.String(value),
	}
	if !format.IsNull() {
		fields["format"] = format
	}
	body, err := s.fetch("setVariable", fields)
	if err != nil {
		return "", err
	}
	v, _ := body.Get("value")
	result, _ := v.AsString()
	return result, nil
}

// SetSourceBreakpoints updates the desired breakpoint list for file and
// triggers a reconciliation flush when the session is Running.
func (s *Session) SetSourceBreakpoints(file string, bps []reconcile.ConditionalBreakpoint) error {
	s.reconciler.SetSourceBreakpoints(file, bps)
	if s.State() != StateRunning {
		return nil
	}
	return s.reconciler.FlushSource(s.broker)
}

// SetExceptionBreakpoints updates desired exception-breakpoint state and
// flushes it when the session is Running.
func (s *Session) SetExceptionBreakpoints(filters []string, filterOptions []reconcile.ExceptionFilterOption, exceptionOptions []jsonvalue.Value) error {
	s.reconciler.SetExceptionFilters(filters)
	s.reconciler.SetExceptionFilterOptions(filterOptions)
	s.reconciler.SetExceptionOptions(exceptionOptions)
	if s.State() != StateRunning {
		return nil
	}
	return s.reconciler.FlushExceptions(s.broker, s.hasCapability)
}

// SetFunctionBreakpoints is one-shot, not reconciled.
func (s *Session) SetFunctionBreakpoints(bps []reconcile.FunctionBreakpoint) ([]protocol.ResolvedBreakpoint, error) {
	if err := s.requireRunning(); err != nil {
		return nil, err
	}
	return reconcile.SetFunctionBreakpoints(s.broker, s.hasCapability, bps)
}

// SetInstructionBreakpoints is one-shot, not reconciled.
func (s *Session) SetInstructionBreakpoints(bps []reconcile.InstructionBreakpoint) ([]protocol.ResolvedBreakpoint, error) {
	if err := s.requireRunning(); err != nil {
		return nil, err
	}
	return reconcile.SetInstructionBreakpoints(s.broker, s.hasCapability, bps)
}

// SetDataBreakpoints is one-shot, not reconciled.
func (s *Session) SetDataBreakpoints(bps []reconcile.DataBreakpoint) ([]protocol.ResolvedBreakpoint, error) {
	if err := s.requireRunning(); err != nil {
		return nil, err
	}
	return reconcile.SetDataBreakpoints(s.broker, s.hasCapability, bps)
}

// BreakpointLocations requires supportsBreakpointLocationsRequest.
func (s *Session) BreakpointLocations(path string, line int, column, endLine, endColumn *int) ([]protocol.BreakpointLocation, error) {
	if err := s.requireRunning(); err != nil {
		return nil, err
	}
	return reconcile.BreakpointLocations(s.broker, s.hasCapability, path, line, column, endLine, endColumn)
}
