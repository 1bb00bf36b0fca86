// Package reconcile implements the breakpoint reconciliation operations
// of spec.md §4.4: idempotent per-source diffing against the adapter,
// plus the one-shot function/instruction/data breakpoint and
// breakpointLocations requests. State here is held by the session layer
// (spec.md §3's "Reconciler state (owned by Session)"); this package
// supplies the pure diff/flush logic and the wire-shape types over it.
package reconcile

import "github.com/nanashili/dap-client/internal/jsonvalue"

// ConditionalBreakpoint is a single desired source breakpoint. Identity
// is positional: (file, Line).
type ConditionalBreakpoint struct {
	Line         int
	Condition    string
	HitCondition string
	LogMessage   string
}

func (b ConditionalBreakpoint) ToValue() jsonvalue.Value {
	fields := map[string]jsonvalue.Value{"line": jsonvalue.Int(b.Line)}
	if b.Condition != "" {
		fields["condition"] = jsonvalue.String(b.Condition)
	}
	if b.HitCondition != "" {
		fields["hitCondition"] = jsonvalue.String(b.HitCondition)
	}
	if b.LogMessage != "" {
		fields["logMessage"] = jsonvalue.String(b.LogMessage)
	}
	return jsonvalue.Object(fields)
}

// FunctionBreakpoint is a one-shot (non-reconciled) function breakpoint.
type FunctionBreakpoint struct {
	Name         string
	Condition    string
	HitCondition string
}

func (b FunctionBreakpoint) ToValue() jsonvalue.Value {
	fields := map[string]jsonvalue.Value{"name": jsonvalue.String(b.Name)}
	if b.Condition != "" {
		fields["condition"] = jsonvalue.String(b.Condition)
	}
	if b.HitCondition != "" {
		fields["hitCondition"] = jsonvalue.String(b.HitCondition)
	}
	return jsonvalue.Object(fields)
}

// InstructionBreakpoint is a one-shot instruction breakpoint.
type InstructionBreakpoint struct {
	InstructionReference string
	Offset               int
	Condition            string
	HitCondition         string
}

func (b InstructionBreakpoint) ToValue() jsonvalue.Value {
	fields := map[string]jsonvalue.Value{"instructionReference": jsonvalue.String(b.InstructionReference)}
	if b.Offset != 0 {
		fields["offset"] = jsonvalue.Int(b.Offset)
	}
	if b.Condition != "" {
		fields["condition"] = jsonvalue.String(b.Condition)
	}
	if b.HitCondition != "" {
		fields["hitCondition"] = jsonvalue.String(b.HitCondition)
	}
	return jsonvalue.Object(fields)
}

// DataBreakpoint is a one-shot data breakpoint.
type DataBreakpoint struct {
	DataID       string
	AccessType   string
	Condition    string
	HitCondition string
}

func (b DataBreakpoint) ToValue() jsonvalue.Value {
	fields := map[string]jsonvalue.Value{"dataId": jsonvalue.String(b.DataID)}
	if b.AccessType != "" {
		fields["accessType"] = jsonvalue.String(b.AccessType)
	}
	if b.Condition != "" {
		fields["condition"] = jsonvalue.String(b.Condition)
	}
	if b.HitCondition != "" {
		fields["hitCondition"] = jsonvalue.String(b.HitCondition)
	}
	return jsonvalue.Object(fields)
}

// ExceptionFilterOption pairs a named exception filter with a condition,
// part of the combined setExceptionBreakpoints arguments.
type ExceptionFilterOption struct {
	FilterID  string
	Condition string
}

func (o ExceptionFilterOption) ToValue() jsonvalue.Value {
	fields := map[string]jsonvalue.Value{"filterId": jsonvalue.String(o.FilterID)}
	if o.Condition != "" {
		fields["condition"] = jsonvalue.String(o.Condition)
	}
	return jsonvalue.Object(fields)
}
