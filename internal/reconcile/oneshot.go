package reconcile

import (
	"github.com/nanashili/dap-client/internal/jsonvalue"
	"github.com/nanashili/dap-client/internal/protocol"
	"github.com/nanashili/dap-client/internal/protoerr"
)

func unsupportedFeature(reason string) error {
	return protoerr.New(protoerr.KindUnsupportedFeature, reason)
}

// SetFunctionBreakpoints issues a one-shot (non-reconciled)
// setFunctionBreakpoints request.
func SetFunctionBreakpoints(sender RequestSender, hasCapability CapabilityChecker, bps []FunctionBreakpoint) ([]protocol.ResolvedBreakpoint, error) {
	if !hasCapability("supportsFunctionBreakpoints") {
		return nil, unsupportedFeature("adapter does not support function breakpoints")
	}
	arr := make([]jsonvalue.Value, 0, len(bps))
	for _, b := range bps {
		arr = append(arr, b.ToValue())
	}
	resp, err := sender.SendRequest("setFunctionBreakpoints", jsonvalue.Object(map[string]jsonvalue.Value{
		"breakpoints": jsonvalue.Array(arr...),
	}))
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, protoerr.New(protoerr.KindAdapterUnavailable, resp.Message)
	}
	return protocol.ParseResolvedBreakpoints(resp.Body)
}

// SetInstructionBreakpoints issues a one-shot setInstructionBreakpoints
// request.
func SetInstructionBreakpoints(sender RequestSender, hasCapability CapabilityChecker, bps []InstructionBreakpoint) ([]protocol.ResolvedBreakpoint, error) {
	if !hasCapability("supportsInstructionBreakpoints") {
		return nil, unsupportedFeature("adapter does not support instruction breakpoints")
	}
	arr := make([]jsonvalue.Value, 0, len(bps))
	for _, b := range bps {
		arr = append(arr, b.ToValue())
	}
	resp, err := sender.SendRequest("setInstructionBreakpoints", jsonvalue.Object(map[string]jsonvalue.Value{
		"breakpoints": jsonvalue.Array(arr...),
	}))
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, protoerr.New(protoerr.KindAdapterUnavailable, resp.Message)
	}
	return protocol.ParseResolvedBreakpoints(resp.Body)
}

// SetDataBreakpoints issues a one-shot setDataBreakpoints request.
func SetDataBreakpoints(sender RequestSender, hasCapability CapabilityChecker, bps []DataBreakpoint) ([]protocol.ResolvedBreakpoint, error) {
	if !hasCapability("supportsDataBreakpoints") {
		return nil, unsupportedFeature("adapter does not support data breakpoints")
	}
	arr := make([]jsonvalue.Value, 0, len(bps))
	for _, b := range bps {
		arr = append(arr, b.ToValue())
	}
	resp, err := sender.SendRequest("setDataBreakpoints", jsonvalue.Object(map[string]jsonvalue.Value{
		"breakpoints": jsonvalue.Array(arr...),
	}))
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, protoerr.New(protoerr.KindAdapterUnavailable, resp.Message)
	}
	return protocol.ParseResolvedBreakpoints(resp.Body)
}

// BreakpointLocations issues breakpointLocations, requiring
// supportsBreakpointLocationsRequest.
func BreakpointLocations(sender RequestSender, hasCapability CapabilityChecker, path string, line int, column, endLine, endColumn *int) ([]protocol.BreakpointLocation, error) {
	if !hasCapability("supportsBreakpointLocationsRequest") {
		return nil, unsupportedFeature("adapter does not support breakpointLocations")
	}
	fields := map[string]jsonvalue.Value{
		"source": jsonvalue.Object(map[string]jsonvalue.Value{"path": jsonvalue.String(path)}),
		"line":   jsonvalue.Int(line),
	}
	if column != nil {
		fields["column"] = jsonvalue.Int(*column)
	}
	if endLine != nil {
		fields["endLine"] = jsonvalue.Int(*endLine)
	}
	if endColumn != nil {
		fields["endColumn"] = jsonvalue.Int(*endColumn)
	}
	resp, err := sender.SendRequest("breakpointLocations", jsonvalue.Object(fields))
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, protoerr.New(protoerr.KindAdapterUnavailable, resp.Message)
	}
	return protocol.ParseBreakpointLocations(resp.Body)
}
