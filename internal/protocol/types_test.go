package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nanashili/dap-client/internal/jsonvalue"
)

func TestParseThreads(t *testing.T) {
	v := jsonvalue.Object(map[string]jsonvalue.Value{
		"threads": jsonvalue.Array(
			jsonvalue.Object(map[string]jsonvalue.Value{"id": jsonvalue.Int(1), "name": jsonvalue.String("main")}),
			jsonvalue.Object(map[string]jsonvalue.Value{"id": jsonvalue.Int(2), "name": jsonvalue.String("worker")}),
		),
	})
	threads, err := ParseThreads(v)
	require.NoError(t, err)
	require.Len(t, threads, 2)
	require.Equal(t, Thread{ID: 1, Name: "main"}, threads[0])
	require.Equal(t, Thread{ID: 2, Name: "worker"}, threads[1])
}

func TestParseThreadsMissingID(t *testing.T) {
	v := jsonvalue.Object(map[string]jsonvalue.Value{
		"threads": jsonvalue.Array(jsonvalue.Object(map[string]jsonvalue.Value{"name": jsonvalue.String("main")})),
	})
	_, err := ParseThreads(v)
	require.Error(t, err)
}

func TestParseStackTraceWithSource(t *testing.T) {
	v := jsonvalue.Object(map[string]jsonvalue.Value{
		"stackFrames": jsonvalue.Array(jsonvalue.Object(map[string]jsonvalue.Value{
			"id":     jsonvalue.Int(9),
			"name":   jsonvalue.String("main.main"),
			"line":   jsonvalue.Int(12),
			"column": jsonvalue.Int(1),
			"source": jsonvalue.Object(map[string]jsonvalue.Value{
				"name": jsonvalue.String("main.go"),
				"path": jsonvalue.String("/tmp/main.go"),
			}),
		})),
	})
	frames, err := ParseStackTrace(v)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.Equal(t, int64(9), frames[0].ID)
	require.NotNil(t, frames[0].Source)
	require.Equal(t, "main.go", frames[0].Source.Name)
}

func TestParseStoppedEventBody(t *testing.T) {
	v := jsonvalue.Object(map[string]jsonvalue.Value{
		"reason":            jsonvalue.String("breakpoint"),
		"threadId":          jsonvalue.Int(3),
		"allThreadsStopped": jsonvalue.Bool(true),
	})
	body, err := ParseStoppedEventBody(v)
	require.NoError(t, err)
	require.Equal(t, "breakpoint", body.Reason)
	require.Equal(t, int64(3), body.ThreadID)
	require.True(t, body.AllThreadsStopped)
}

func TestParseStoppedEventBodyMissingReason(t *testing.T) {
	_, err := ParseStoppedEventBody(jsonvalue.Object(map[string]jsonvalue.Value{}))
	require.Error(t, err)
}

func TestParseRunInTerminalArgumentsDropsNonStringEnv(t *testing.T) {
	v := jsonvalue.Object(map[string]jsonvalue.Value{
		"args": jsonvalue.Array(jsonvalue.String("echo"), jsonvalue.String("hi")),
		"cwd":  jsonvalue.String("/tmp"),
		"env": jsonvalue.Object(map[string]jsonvalue.Value{
			"GOOD": jsonvalue.String("1"),
			"BAD":  jsonvalue.Int(1),
		}),
	})
	args, err := ParseRunInTerminalArguments(v)
	require.NoError(t, err)
	require.Equal(t, []string{"echo", "hi"}, args.Args)
	require.Equal(t, "/tmp", args.Cwd)
	require.Equal(t, map[string]string{"GOOD": "1"}, args.Env)
}

func TestParseRunInTerminalArgumentsRequiresArgs(t *testing.T) {
	_, err := ParseRunInTerminalArguments(jsonvalue.Object(map[string]jsonvalue.Value{}))
	require.Error(t, err)

	_, err = ParseRunInTerminalArguments(jsonvalue.Object(map[string]jsonvalue.Value{
		"args": jsonvalue.Array(),
	}))
	require.Error(t, err)
}

func TestParseStartDebuggingArguments(t *testing.T) {
	v := jsonvalue.Object(map[string]jsonvalue.Value{
		"configuration": jsonvalue.Object(map[string]jsonvalue.Value{"program": jsonvalue.String("a.out")}),
		"request":       jsonvalue.String("launch"),
	})
	args, err := ParseStartDebuggingArguments(v)
	require.NoError(t, err)
	require.Equal(t, "launch", args.Request)
	prog, ok := args.Configuration.Get("program")
	require.True(t, ok)
	s, _ := prog.AsString()
	require.Equal(t, "a.out", s)
}

func TestParseResolvedBreakpoints(t *testing.T) {
	v := jsonvalue.Object(map[string]jsonvalue.Value{
		"breakpoints": jsonvalue.Array(
			jsonvalue.Object(map[string]jsonvalue.Value{"id": jsonvalue.Int(1), "verified": jsonvalue.Bool(true), "line": jsonvalue.Int(5)}),
			jsonvalue.Object(map[string]jsonvalue.Value{"id": jsonvalue.Int(2), "verified": jsonvalue.Bool(false), "message": jsonvalue.String("no such line")}),
		),
	})
	bps, err := ParseResolvedBreakpoints(v)
	require.NoError(t, err)
	require.Len(t, bps, 2)
	require.True(t, bps[0].Verified)
	require.False(t, bps[1].Verified)
	require.Equal(t, "no such line", bps[1].Message)
}
