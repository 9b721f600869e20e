// Package execx launches mutator units as subprocesses with captured
// output, wall-clock timeouts, and forced process-tree termination.
//
// Commands carry a true argument vector; nothing is ever passed through a
// shell. Stdout and stderr are drained concurrently with the awaited
// process so a chatty unit cannot deadlock on a full pipe buffer.
package execx

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/tunectl/tunectl/pkg/tune/logging"
)

// DefaultTimeout bounds a unit that specifies no timeout of its own.
const DefaultTimeout = 10 * time.Minute

// flushGrace is how long Run waits after killing a process tree for the
// stream readers to finish. A straggler is logged, not treated as a
// failure.
const flushGrace = 2 * time.Second

// Stream identifies which pipe a captured line came from.
type Stream string

// Output streams.
const (
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)

// LineSink receives captured output lines in real time.
type LineSink func(stream Stream, line string)

// Command describes one subprocess invocation.
type Command struct {
	// Path is the resolved binary or interpreter path.
	Path string

	// Args is the argument vector, excluding the program name.
	Args []string

	// Dir is the working directory. Empty inherits the caller's.
	Dir string

	// Timeout is the hard wall-clock budget. Zero uses DefaultTimeout.
	Timeout time.Duration
}

// Result captures the outcome of a subprocess run.
type Result struct {
	// ExitCode is the process exit code. -1 when the process was killed.
	ExitCode int

	// TimedOut is true when the wall-clock budget expired and the process
	// tree was forcibly terminated.
	TimedOut bool

	// Duration is the observed wall-clock runtime.
	Duration time.Duration

	// Stdout and Stderr hold the captured lines, best effort.
	Stdout []string
	Stderr []string
}

// Runner launches subprocesses with a shared logger.
type Runner struct {
	log *logging.Logger
}

// NewRunner creates a Runner. A nil logger discards internal diagnostics.
func NewRunner(logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{log: logger.Named("exec")}
}

// Run launches the command and blocks until it exits or its timeout
// expires. Output lines are forwarded to sink as they arrive and also
// collected into the result. A nil sink only collects.
//
// Run returns an error only for launch-level failures; a non-zero exit
// code is reported through Result.ExitCode and left for the caller to
// interpret.
func (r *Runner) Run(ctx context.Context, cmd Command, sink LineSink) (Result, error) {
	if cmd.Path == "" {
		return Result{ExitCode: -1}, errors.New("command path cannot be empty")
	}
	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	proc := exec.Command(cmd.Path, cmd.Args...)
	proc.Dir = cmd.Dir
	setProcessGroup(proc)

	stdoutPipe, err := proc.StdoutPipe()
	if err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderrPipe, err := proc.StderrPipe()
	if err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("creating stderr pipe: %w", err)
	}

	start := time.Now()
	if err := proc.Start(); err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("starting %s: %w", cmd.Path, err)
	}
	r.log.Debug("process started", "path", cmd.Path, "pid", proc.Process.Pid, "timeout", timeout)

	stdoutLines := make(chan []string, 1)
	stderrLines := make(chan []string, 1)
	go drain(stdoutPipe, Stdout, sink, stdoutLines)
	go drain(stderrPipe, Stderr, sink, stderrLines)

	// Wait must not run until both pipes hit EOF: Wait closes the parent's
	// read ends, cutting off anything still buffered. The process tree
	// holds the only write ends, so EOF follows its exit.
	done := make(chan Result, 1)
	go func() {
		var collected Result
		collected.Stdout = <-stdoutLines
		collected.Stderr = <-stderrLines
		collected.ExitCode = exitCode(proc.Wait())
		done <- collected
	}()

	var res Result
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res = <-done:

	case <-timer.C:
		r.log.Warn("timeout expired, killing process tree", "path", cmd.Path, "pid", proc.Process.Pid)
		res = r.abort(proc, done, cmd.Path)

	case <-ctx.Done():
		r.log.Warn("context cancelled, killing process tree", "path", cmd.Path, "pid", proc.Process.Pid)
		res = r.abort(proc, done, cmd.Path)
	}
	res.Duration = time.Since(start)

	r.log.Debug("process finished",
		"path", cmd.Path, "exit", res.ExitCode, "timed_out", res.TimedOut, "duration", res.Duration)
	return res, nil
}

// abort kills the process tree and collects whatever output the drain
// goroutines can still flush. The window is bounded so an orphan holding
// a pipe open cannot wedge the pipeline; a straggler forfeits its lines.
func (r *Runner) abort(proc *exec.Cmd, done <-chan Result, path string) Result {
	res := Result{ExitCode: -1, TimedOut: true}
	killTree(proc)

	grace := time.NewTimer(flushGrace)
	defer grace.Stop()
	select {
	case flushed := <-done:
		res.Stdout = flushed.Stdout
		res.Stderr = flushed.Stderr
	case <-grace.C:
		r.log.Warn("output reader did not flush in time", "path", path)
	}
	return res
}

// drain reads a pipe line by line, forwarding each line to the sink and
// accumulating them for the result.
func drain(pipe io.Reader, stream Stream, sink LineSink, out chan<- []string) {
	var lines []string
	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		lines = append(lines, line)
		if sink != nil {
			sink(stream, line)
		}
	}
	out <- lines
}

// exitCode extracts the exit code from a Wait error.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
