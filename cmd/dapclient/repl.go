package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gookit/color"
	"github.com/peterh/liner"

	"github.com/nanashili/dap-client/internal/manifest"
	"github.com/nanashili/dap-client/internal/reconcile"
	"github.com/nanashili/dap-client/internal/session"
)

// replSession drives a session.Session interactively: commands issued at
// the prompt become runtime operations, and the session's own event
// stream prints asynchronously as "stopped"/"output"/"terminated"
// arrive.
type replSession struct {
	sess     *session.Session
	desc     manifest.Descriptor
	line     *liner.State
	histFile string

	// currentThread is the thread the REPL's stepping/frame commands
	// operate against; set by the most recent "stopped" event.
	currentThread int64
	done          chan struct{}
}

func newReplSession(sess *session.Session, desc manifest.Descriptor) *replSession {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	histFile := filepath.Join(os.TempDir(), ".dapclient-history")
	if f, err := os.Open(histFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	return &replSession{
		sess:     sess,
		desc:     desc,
		line:     line,
		histFile: histFile,
		done:     make(chan struct{}),
	}
}

// watchEvents subscribes to the session event stream and prints each
// event as it arrives, independent of whatever the prompt is doing.
func (r *replSession) watchEvents() {
	r.sess.Subscribe(func(e session.Event) {
		switch e.Kind {
		case session.EventInitialized:
			color.Green.Println("adapter initialized")
		case session.EventStopped:
			r.currentThread = e.Stopped.ThreadID
			color.Bold.Print("stopped: ")
			color.OpUnderscore.Printf("%s (thread %d)\n", e.Stopped.Reason, e.Stopped.ThreadID)
			if e.Stopped.Text != "" {
				fmt.Println(e.Stopped.Text)
			}
		case session.EventContinued:
			fmt.Printf("continued (thread %d)\n", e.Continued.ThreadID)
		case session.EventOutput:
			fmt.Print(e.Output.Output)
		case session.EventTerminated:
			color.Red.Println("adapter terminated")
			close(r.done)
		}
	})
}

func (r *replSession) run() {
	defer r.line.Close()
	defer func() {
		if f, err := os.Create(r.histFile); err == nil {
			r.line.WriteHistory(f)
			f.Close()
		}
	}()

	for {
		select {
		case <-r.done:
			return
		default:
		}

		input, err := r.line.Prompt(r.prompt())
		if err == liner.ErrPromptAborted || err == io.EOF {
			return
		}
		r.line.AppendHistory(input)
		if !r.dispatch(strings.TrimSpace(input)) {
			return
		}
	}
}

func (r *replSession) prompt() string {
	if r.currentThread != 0 {
		return fmt.Sprintf("[thread %d]> ", r.currentThread)
	}
	return "> "
}

// dispatch runs one command line. It returns false when the REPL should
// exit.
func (r *replSession) dispatch(input string) bool {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return true
	}

	switch parts[0] {
	case "q", "quit":
		return false
	case "c", "continue":
		r.guard(r.sess.Continue(r.currentThread))
	case "n", "next":
		r.guard(r.sess.StepOver(r.currentThread, session.StepOptions{}))
	case "s", "step":
		r.guard(r.sess.StepIn(r.currentThread, nil, session.StepOptions{}))
	case "out":
		r.guard(r.sess.StepOut(r.currentThread, session.StepOptions{}))
	case "back":
		r.guard(r.sess.StepBack(r.currentThread, session.StepOptions{}))
	case "pause":
		r.guard(r.sess.Pause(r.currentThread))
	case "threads":
		r.printThreads()
	case "trace":
		r.printStackTrace()
	case "b", "break":
		r.setBreakpoint(parts[1:])
	case "vars":
		r.printVariables(parts[1:])
	case "":
	default:
		fmt.Printf("unknown command: %s\n", parts[0])
	}
	return true
}

func (r *replSession) guard(err error) {
	if err != nil {
		color.Red.Println(err.Error())
	}
}

func (r *replSession) printThreads() {
	threads, err := r.sess.FetchThreads()
	if err != nil {
		color.Red.Println(err.Error())
		return
	}
	for _, th := range threads {
		fmt.Printf("- %d: %s\n", th.ID, th.Name)
	}
}

func (r *replSession) printStackTrace() {
	if r.currentThread == 0 {
		fmt.Println("not stopped")
		return
	}
	frames, err := r.sess.FetchStackTrace(r.currentThread, nil, nil)
	if err != nil {
		color.Red.Println(err.Error())
		return
	}
	for _, f := range frames {
		fmt.Printf("- %s", f.Name)
		if f.Source != nil {
			fmt.Print("\t")
			color.Gray.Printf("%s:%d:%d", f.Source.Path, f.Line, f.Column)
		}
		fmt.Println()
	}
}

func (r *replSession) printVariables(args []string) {
	if len(args) == 0 {
		fmt.Println("usage: vars <variablesReference>")
		return
	}
	ref, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Printf("invalid variablesReference: %s\n", err.Error())
		return
	}
	vars, err := r.sess.FetchVariables(ref)
	if err != nil {
		color.Red.Println(err.Error())
		return
	}
	for _, v := range vars {
		fmt.Printf("- %s = %s", v.Name, v.Value)
		if v.Type != "" {
			color.Gray.Printf(" (%s)", v.Type)
		}
		fmt.Println()
	}
}

// setBreakpoint parses "b <file>:<line>" and replaces the desired
// breakpoint list for that file with a single breakpoint at that line,
// triggering a reconciliation flush. Breakpoints set earlier in the same
// file are not kept.
func (r *replSession) setBreakpoint(args []string) {
	if len(args) == 0 {
		fmt.Println("usage: b <file>:<line>")
		return
	}
	file, lineStr, ok := strings.Cut(args[0], ":")
	if !ok {
		fmt.Println("must specify file and line separated by `:`")
		return
	}
	line, err := strconv.Atoi(lineStr)
	if err != nil {
		fmt.Printf("invalid line number: %s\n", err.Error())
		return
	}
	if err := r.sess.SetSourceBreakpoints(file, []reconcile.ConditionalBreakpoint{{Line: line}}); err != nil {
		color.Red.Println(err.Error())
		return
	}
	fmt.Printf("breakpoint set at %s:%d\n", file, line)
}
