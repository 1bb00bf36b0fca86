// Package protocol implements the typed DAP request/response/event body
// model of spec.md §3's "Protocol model types" component: fail-fast
// parsers over jsonvalue.Value for the shapes the session layer needs.
package protocol

import (
	"fmt"

	"github.com/nanashili/dap-client/internal/jsonvalue"
)

// Source describes a source file as DAP represents it on the wire.
type Source struct {
	Name string
	Path string
}

func (s Source) ToValue() jsonvalue.Value {
	fields := map[string]jsonvalue.Value{}
	if s.Name != "" {
		fields["name"] = jsonvalue.String(s.Name)
	}
	if s.Path != "" {
		fields["path"] = jsonvalue.String(s.Path)
	}
	return jsonvalue.Object(fields)
}

// Thread is a single adapter-reported thread.
type Thread struct {
	ID   int64
	Name string
}

func ParseThread(v jsonvalue.Value) (Thread, error) {
	idv, ok := v.Get("id")
	if !ok {
		return Thread{}, fmt.Errorf("thread missing \"id\"")
	}
	id, ok := idv.ExactInt()
	if !ok {
		return Thread{}, fmt.Errorf("thread \"id\" is not an integer")
	}
	name, _ := getString(v, "name")
	return Thread{ID: id, Name: name}, nil
}

func ParseThreads(v jsonvalue.Value) ([]Thread, error) {
	items, ok := v.Get("threads")
	if !ok {
		return nil, fmt.Errorf("response missing \"threads\"")
	}
	arr, ok := items.AsArray()
	if !ok {
		return nil, fmt.Errorf("\"threads\" is not an array")
	}
	out := make([]Thread, 0, len(arr))
	for _, e := range arr {
		th, err := ParseThread(e)
		if err != nil {
			return nil, err
		}
		out = append(out, th)
	}
	return out, nil
}

// StackFrame is a single frame in a thread's call stack.
type StackFrame struct {
	ID     int64
	Name   string
	Line   int64
	Column int64
	Source *Source
}

func ParseStackFrame(v jsonvalue.Value) (StackFrame, error) {
	idv, ok := v.Get("id")
	if !ok {
		return StackFrame{}, fmt.Errorf("stack frame missing \"id\"")
	}
	id, ok := idv.ExactInt()
	if !ok {
		return StackFrame{}, fmt.Errorf("stack frame \"id\" is not an integer")
	}
	name, _ := getString(v, "name")
	line, _ := getInt(v, "line")
	col, _ := getInt(v, "column")
	fr := StackFrame{ID: id, Name: name, Line: line, Column: col}
	if sv, ok := v.Get("source"); ok && !sv.IsNull() {
		name, _ := getString(sv, "name")
		path, _ := getString(sv, "path")
		fr.Source = &Source{Name: name, Path: path}
	}
	return fr, nil
}

func ParseStackTrace(v jsonvalue.Value) ([]StackFrame, error) {
	items, ok := v.Get("stackFrames")
	if !ok {
		return nil, fmt.Errorf("response missing \"stackFrames\"")
	}
	arr, ok := items.AsArray()
	if !ok {
		return nil, fmt.Errorf("\"stackFrames\" is not an array")
	}
	out := make([]StackFrame, 0, len(arr))
	for _, e := range arr {
		fr, err := ParseStackFrame(e)
		if err != nil {
			return nil, err
		}
		out = append(out, fr)
	}
	return out, nil
}

// Scope names a variable scope rooted at a frame.
type Scope struct {
	Name               string
	VariablesReference int64
	Expensive          bool
}

func ParseScope(v jsonvalue.Value) (Scope, error) {
	name, ok := getString(v, "name")
	if !ok {
		return Scope{}, fmt.Errorf("scope missing \"name\"")
	}
	ref, ok := getInt(v, "variablesReference")
	if !ok {
		return Scope{}, fmt.Errorf("scope missing \"variablesReference\"")
	}
	expensive, _ := getBool(v, "expensive")
	return Scope{Name: name, VariablesReference: ref, Expensive: expensive}, nil
}

func ParseScopes(v jsonvalue.Value) ([]Scope, error) {
	items, ok := v.Get("scopes")
	if !ok {
		return nil, fmt.Errorf("response missing \"scopes\"")
	}
	arr, ok := items.AsArray()
	if !ok {
		return nil, fmt.Errorf("\"scopes\" is not an array")
	}
	out := make([]Scope, 0, len(arr))
	for _, e := range arr {
		sc, err := ParseScope(e)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

// Variable is a single named value within a scope or container.
type Variable struct {
	Name               string
	Value              string
	Type               string
	VariablesReference int64
}

func ParseVariable(v jsonvalue.Value) (Variable, error) {
	name, ok := getString(v, "name")
	if !ok {
		return Variable{}, fmt.Errorf("variable missing \"name\"")
	}
	value, _ := getString(v, "value")
	typ, _ := getString(v, "type")
	ref, _ := getInt(v, "variablesReference")
	return Variable{Name: name, Value: value, Type: typ, VariablesReference: ref}, nil
}

func ParseVariables(v jsonvalue.Value) ([]Variable, error) {
	items, ok := v.Get("variables")
	if !ok {
		return nil, fmt.Errorf("response missing \"variables\"")
	}
	arr, ok := items.AsArray()
	if !ok {
		return nil, fmt.Errorf("\"variables\" is not an array")
	}
	out := make([]Variable, 0, len(arr))
	for _, e := range arr {
		va, err := ParseVariable(e)
		if err != nil {
			return nil, err
		}
		out = append(out, va)
	}
	return out, nil
}

// Module is a loaded module reported by the adapter.
type Module struct {
	ID   string
	Name string
}

func ParseModule(v jsonvalue.Value) (Module, error) {
	name, ok := getString(v, "name")
	if !ok {
		return Module{}, fmt.Errorf("module missing \"name\"")
	}
	id := ""
	if idv, ok := v.Get("id"); ok {
		if s, ok := idv.AsString(); ok {
			id = s
		} else if n, ok := idv.ExactInt(); ok {
			id = fmt.Sprintf("%d", n)
		}
	}
	return Module{ID: id, Name: name}, nil
}

func ParseModules(v jsonvalue.Value) ([]Module, error) {
	items, ok := v.Get("modules")
	if !ok {
		return nil, fmt.Errorf("response missing \"modules\"")
	}
	arr, ok := items.AsArray()
	if !ok {
		return nil, fmt.Errorf("\"modules\" is not an array")
	}
	out := make([]Module, 0, len(arr))
	for _, e := range arr {
		m, err := ParseModule(e)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// LoadedSource mirrors a loadedSources response entry.
type LoadedSource struct {
	Name string
	Path string
}

func ParseLoadedSources(v jsonvalue.Value) ([]LoadedSource, error) {
	items, ok := v.Get("sources")
	if !ok {
		return nil, fmt.Errorf("response missing \"sources\"")
	}
	arr, ok := items.AsArray()
	if !ok {
		return nil, fmt.Errorf("\"sources\" is not an array")
	}
	out := make([]LoadedSource, 0, len(arr))
	for _, e := range arr {
		name, _ := getString(e, "name")
		path, _ := getString(e, "path")
		out = append(out, LoadedSource{Name: name, Path: path})
	}
	return out, nil
}

// StepInTarget names a candidate for a stepIn request targeting a
// specific call at the current line.
type StepInTarget struct {
	ID    int64
	Label string
}

func ParseStepInTargets(v jsonvalue.Value) ([]StepInTarget, error) {
	items, ok := v.Get("targets")
	if !ok {
		return nil, fmt.Errorf("response missing \"targets\"")
	}
	arr, ok := items.AsArray()
	if !ok {
		return nil, fmt.Errorf("\"targets\" is not an array")
	}
	out := make([]StepInTarget, 0, len(arr))
	for _, e := range arr {
		idv, ok := e.Get("id")
		if !ok {
			return nil, fmt.Errorf("step-in target missing \"id\"")
		}
		id, ok := idv.ExactInt()
		if !ok {
			return nil, fmt.Errorf("step-in target \"id\" is not an integer")
		}
		label, _ := getString(e, "label")
		out = append(out, StepInTarget{ID: id, Label: label})
	}
	return out, nil
}

// BreakpointLocation is a candidate location returned by
// breakpointLocations.
type BreakpointLocation struct {
	Line      int64
	Column    int64
	EndLine   int64
	EndColumn int64
}

func ParseBreakpointLocations(v jsonvalue.Value) ([]BreakpointLocation, error) {
	items, ok := v.Get("breakpoints")
	if !ok {
		return nil, fmt.Errorf("response missing \"breakpoints\"")
	}
	arr, ok := items.AsArray()
	if !ok {
		return nil, fmt.Errorf("\"breakpoints\" is not an array")
	}
	out := make([]BreakpointLocation, 0, len(arr))
	for _, e := range arr {
		line, _ := getInt(e, "line")
		col, _ := getInt(e, "column")
		endLine, _ := getInt(e, "endLine")
		endCol, _ := getInt(e, "endColumn")
		out = append(out, BreakpointLocation{Line: line, Column: col, EndLine: endLine, EndColumn: endCol})
	}
	return out, nil
}

// ResolvedBreakpoint is the adapter's acknowledgement of one breakpoint,
// as returned in the "breakpoints" array of a setXBreakpoints response.
type ResolvedBreakpoint struct {
	ID       int64
	Verified bool
	Message  string
	Line     int64
}

func ParseResolvedBreakpoints(v jsonvalue.Value) ([]ResolvedBreakpoint, error) {
	items, ok := v.Get("breakpoints")
	if !ok {
		return nil, fmt.Errorf("response missing \"breakpoints\"")
	}
	arr, ok := items.AsArray()
	if !ok {
		return nil, fmt.Errorf("\"breakpoints\" is not an array")
	}
	out := make([]ResolvedBreakpoint, 0, len(arr))
	for _, e := range arr {
		id, _ := getInt(e, "id")
		verified, _ := getBool(e, "verified")
		msg, _ := getString(e, "message")
		line, _ := getInt(e, "line")
		out = append(out, ResolvedBreakpoint{ID: id, Verified: verified, Message: msg, Line: line})
	}
	return out, nil
}

// CompletionItem is one candidate from a completions request.
type CompletionItem struct {
	Label string
	Text  string
	Type  string
}

func ParseCompletions(v jsonvalue.Value) ([]CompletionItem, error) {
	items, ok := v.Get("targets")
	if !ok {
		return nil, fmt.Errorf("response missing \"targets\"")
	}
	arr, ok := items.AsArray()
	if !ok {
		return nil, fmt.Errorf("\"targets\" is not an array")
	}
	out := make([]CompletionItem, 0, len(arr))
	for _, e := range arr {
		label, ok := getString(e, "label")
		if !ok {
			return nil, fmt.Errorf("completion item missing \"label\"")
		}
		text, _ := getString(e, "text")
		typ, _ := getString(e, "type")
		out = append(out, CompletionItem{Label: label, Text: text, Type: typ})
	}
	return out, nil
}

// --- event bodies ---

type StoppedEventBody struct {
	Reason            string
	ThreadID          int64
	AllThreadsStopped bool
	Text              string
}

func ParseStoppedEventBody(v jsonvalue.Value) (StoppedEventBody, error) {
	reason, ok := getString(v, "reason")
	if !ok {
		return StoppedEventBody{}, fmt.Errorf("stopped event missing \"reason\"")
	}
	threadID, _ := getInt(v, "threadId")
	all, _ := getBool(v, "allThreadsStopped")
	text, _ := getString(v, "text")
	return StoppedEventBody{Reason: reason, ThreadID: threadID, AllThreadsStopped: all, Text: text}, nil
}

type ContinuedEventBody struct {
	ThreadID            int64
	AllThreadsContinued bool
}

func ParseContinuedEventBody(v jsonvalue.Value) (ContinuedEventBody, error) {
	threadID, ok := getInt(v, "threadId")
	if !ok {
		return ContinuedEventBody{}, fmt.Errorf("continued event missing \"threadId\"")
	}
	all, _ := getBool(v, "allThreadsContinued")
	return ContinuedEventBody{ThreadID: threadID, AllThreadsContinued: all}, nil
}

type OutputEventBody struct {
	Category string
	Output   string
}

func ParseOutputEventBody(v jsonvalue.Value) (OutputEventBody, error) {
	output, ok := getString(v, "output")
	if !ok {
		return OutputEventBody{}, fmt.Errorf("output event missing \"output\"")
	}
	category, _ := getString(v, "category")
	return OutputEventBody{Category: category, Output: output}, nil
}

type TerminatedEventBody struct {
	Restart bool
}

func ParseTerminatedEventBody(v jsonvalue.Value) (TerminatedEventBody, error) {
	if v.IsNull() {
		return TerminatedEventBody{}, nil
	}
	restart, _ := getBool(v, "restart")
	return TerminatedEventBody{Restart: restart}, nil
}

// --- reverse request argument/result shapes ---

type RunInTerminalArguments struct {
	Args []string
	Cwd  string
	Env  map[string]string
}

// ParseRunInTerminalArguments parses args, dropping non-string env
// values silently (spec.md §9 Open Question 2: preserved tolerance).
func ParseRunInTerminalArguments(v jsonvalue.Value) (RunInTerminalArguments, error) {
	argsVal, ok := v.Get("args")
	if !ok {
		return RunInTerminalArguments{}, fmt.Errorf("runInTerminal missing \"args\"")
	}
	arr, ok := argsVal.AsArray()
	if !ok || len(arr) == 0 {
		return RunInTerminalArguments{}, fmt.Errorf("runInTerminal \"args\" must be a non-empty array")
	}
	args := make([]string, 0, len(arr))
	for _, e := range arr {
		s, ok := e.AsString()
		if !ok {
			return RunInTerminalArguments{}, fmt.Errorf("runInTerminal \"args\" entries must be strings")
		}
		args = append(args, s)
	}
	cwd, _ := getString(v, "cwd")
	env := map[string]string{}
	if envVal, ok := v.Get("env"); ok {
		if obj, ok := envVal.AsObject(); ok {
			for k, ev := range obj {
				if s, ok := ev.AsString(); ok {
					env[k] = s
				}
				// non-string values are silently dropped.
			}
		}
	}
	return RunInTerminalArguments{Args: args, Cwd: cwd, Env: env}, nil
}

type RunInTerminalResult struct {
	ProcessID int64
}

func (r RunInTerminalResult) ToValue() jsonvalue.Value {
	return jsonvalue.Object(map[string]jsonvalue.Value{
		"processId": jsonvalue.Int(int(r.ProcessID)),
	})
}

type StartDebuggingArguments struct {
	Configuration jsonvalue.Value
	Request       string
}

func ParseStartDebuggingArguments(v jsonvalue.Value) (StartDebuggingArguments, error) {
	cfg, ok := v.Get("configuration")
	if !ok {
		return StartDebuggingArguments{}, fmt.Errorf("startDebugging missing \"configuration\"")
	}
	if _, ok := cfg.AsObject(); !ok {
		return StartDebuggingArguments{}, fmt.Errorf("startDebugging \"configuration\" must be an object")
	}
	request, _ := getString(v, "request")
	return StartDebuggingArguments{Configuration: cfg, Request: request}, nil
}

// --- small helpers ---

func getString(v jsonvalue.Value, field string) (string, bool) {
	f, ok := v.Get(field)
	if !ok {
		return "", false
	}
	return f.AsString()
}

func getInt(v jsonvalue.Value, field string) (int64, bool) {
	f, ok := v.Get(field)
	if !ok {
		return 0, false
	}
	return f.ExactInt()
}

func getBool(v jsonvalue.Value, field string) (bool, bool) {
	f, ok := v.Get(field)
	if !ok {
		return false, false
	}
	return f.AsBool()
}
