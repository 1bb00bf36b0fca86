// Package dapfixture builds spec-correct DAP wire bodies for test
// fixtures using github.com/google/go-dap's struct definitions, so test
// cases construct messages the way a real adapter would shape them
// rather than hand-building JSON field-by-field. It is not imported by
// any non-test code.
package dapfixture

import (
	"encoding/json"
	"fmt"

	"github.com/google/go-dap"

	"github.com/nanashili/dap-client/internal/jsonvalue"
)

func toValue(v interface{}) jsonvalue.Value {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("dapfixture: marshal %T: %v", v, err))
	}
	val, err := jsonvalue.Decode(raw)
	if err != nil {
		panic(fmt.Sprintf("dapfixture: decode %T: %v", v, err))
	}
	return val
}

// Capabilities renders a dap.Capabilities body with everything the
// caller doesn't set left at its zero value (unsupported).
func Capabilities(set func(*dap.Capabilities)) jsonvalue.Value {
	caps := dap.Capabilities{}
	if set != nil {
		set(&caps)
	}
	return toValue(caps)
}

// Stopped renders a dap.StoppedEventBody.
func Stopped(reason string, threadID int, allThreadsStopped bool) jsonvalue.Value {
	return toValue(dap.StoppedEventBody{
		Reason:            reason,
		ThreadId:          threadID,
		AllThreadsStopped: allThreadsStopped,
	})
}

// Continued renders a dap.ContinuedEventBody.
func Continued(threadID int, allThreadsContinued bool) jsonvalue.Value {
	return toValue(dap.ContinuedEventBody{
		ThreadId:            threadID,
		AllThreadsContinued: allThreadsContinued,
	})
}

// Output renders a dap.OutputEventBody.
func Output(category, output string) jsonvalue.Value {
	return toValue(dap.OutputEventBody{Category: category, Output: output})
}

// Terminated renders a dap.TerminatedEventBody.
func Terminated(restart bool) jsonvalue.Value {
	return toValue(dap.TerminatedEventBody{Restart: restart})
}

// Threads renders a dap.ThreadsResponseBody with the given thread
// id/name pairs.
func Threads(pairs ...[2]interface{}) jsonvalue.Value {
	threads := make([]dap.Thread, 0, len(pairs))
	for _, p := range pairs {
		threads = append(threads, dap.Thread{Id: p[0].(int), Name: p[1].(string)})
	}
	return toValue(dap.ThreadsResponseBody{Threads: threads})
}
