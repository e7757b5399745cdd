package subprocess

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/semaphore"
	"k8s.io/utils/clock"

	"github.com/wagiedev/agentwire/internal/config"
	"github.com/wagiedev/agentwire/internal/errors"
)

const (
	// DefaultGraceTimeout is how long Close waits for a voluntary exit after
	// ending input.
	DefaultGraceTimeout = 5 * time.Second

	// DefaultTermTimeout is how long Close waits after SIGTERM before killing.
	DefaultTermTimeout = 5 * time.Second

	// frameBuffer is the capacity of the decoded message channel.
	frameBuffer = 64

	// stderrDrainTimeout bounds the wait for trailing stderr after an exit.
	stderrDrainTimeout = 100 * time.Millisecond
)

// State is the lifecycle state of a Transport.
type State int32

const (
	StateUnconnected State = iota
	StateConnected
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Config describes the process to spawn.
type Config struct {
	// Path is the executable to run.
	Path string

	// Args are passed to the executable.
	Args []string

	// Env is the full environment. Nil inherits the parent's.
	Env []string

	// Cwd is the working directory. Empty uses the parent's.
	Cwd string

	// Stderr receives each stderr line as it arrives.
	Stderr func(string)

	// MaxLineSize bounds one stdout line. Zero means 1MB.
	MaxLineSize int

	// GraceTimeout and TermTimeout control staged shutdown.
	// Zero means the package defaults.
	GraceTimeout time.Duration
	TermTimeout  time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// Transport runs the agent CLI as a child process and speaks NDJSON over its
// standard streams.
type Transport struct {
	log   *slog.Logger
	cfg   Config
	clock clock.Clock

	state atomic.Int32

	lifecycleMu sync.Mutex
	writeSem    *semaphore.Weighted

	pipeMu      sync.Mutex
	stdin       io.WriteCloser
	stdinClosed atomic.Bool

	cmd    *exec.Cmd
	stdout *os.File
	stderr *os.File

	frames chan config.Frame
	taken  atomic.Bool

	done       chan struct{}
	exited     chan struct{}
	stderrDone chan struct{}

	exitMu     sync.Mutex
	exitErr    error
	exitCode   int
	exitedSelf bool

	closing   atomic.Bool
	stderrBuf stderrBuffer

	wg              sync.WaitGroup
	closeOnce       sync.Once
	closeFramesOnce sync.Once
	closeErr        error
}

// Compile-time verification that Transport implements config.Transport.
var _ config.Transport = (*Transport)(nil)

// New creates an unconnected transport.
func New(cfg Config) *Transport {
	if cfg.GraceTimeout <= 0 {
		cfg.GraceTimeout = DefaultGraceTimeout
	}

	if cfg.TermTimeout <= 0 {
		cfg.TermTimeout = DefaultTermTimeout
	}

	if cfg.MaxLineSize <= 0 {
		cfg.MaxLineSize = defaultMaxLineSize
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Transport{
		log:        log.With("component", "subprocess_transport"),
		cfg:        cfg,
		clock:      clk,
		frames:     make(chan config.Frame, frameBuffer),
		done:       make(chan struct{}),
		exited:     make(chan struct{}),
		stderrDone: make(chan struct{}),
		writeSem:   semaphore.NewWeighted(1),
	}
}

// State returns the current lifecycle state.
func (t *Transport) State() State {
	return State(t.state.Load())
}

// Connect spawns the process and starts the reader, stderr collector and
// exit monitor.
//
// Returns CLINotFoundError if the executable does not exist, or
// ConnectionError for any other spawn failure.
func (t *Transport) Connect(ctx context.Context) error {
	t.lifecycleMu.Lock()
	defer t.lifecycleMu.Unlock()

	switch t.State() {
	case StateConnected:
		return &errors.ConnectionError{Err: errors.ErrAlreadyConnected}
	case StateClosing, StateClosed:
		return &errors.ConnectionError{Err: errors.ErrTransportClosed}
	}

	if err := ctx.Err(); err != nil {
		return &errors.ConnectionError{Err: err}
	}

	t.log.Info("Starting agent subprocess", "path", t.cfg.Path)
	t.log.Debug("Subprocess arguments", "args", t.cfg.Args)

	// The process outlives ctx; Close owns termination.
	//nolint:gosec // G204: launching the configured CLI is the purpose of this transport
	cmd := exec.Command(t.cfg.Path, t.cfg.Args...)
	cmd.Dir = t.cfg.Cwd
	cmd.Env = t.cfg.Env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return &errors.ConnectionError{Err: fmt.Errorf("stdin pipe: %w", err)}
	}

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		_ = stdin.Close()

		return &errors.ConnectionError{Err: fmt.Errorf("stdout pipe: %w", err)}
	}

	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		_ = stdin.Close()
		_ = stdoutR.Close()
		_ = stdoutW.Close()

		return &errors.ConnectionError{Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()

		for _, f := range []*os.File{stdoutR, stdoutW, stderrR, stderrW} {
			_ = f.Close()
		}

		t.log.Error("Failed to start agent subprocess", "error", err)

		if stderrors.Is(err, exec.ErrNotFound) || stderrors.Is(err, fs.ErrNotExist) {
			return &errors.CLINotFoundError{SearchedPaths: []string{t.cfg.Path}, Err: err}
		}

		return &errors.ConnectionError{Err: fmt.Errorf("start process: %w", err)}
	}

	// The child holds its own copies of the write ends.
	_ = stdoutW.Close()
	_ = stderrW.Close()

	t.cmd = cmd
	t.stdout = stdoutR
	t.stderr = stderrR

	t.pipeMu.Lock()
	t.stdin = stdin
	t.pipeMu.Unlock()

	t.state.Store(int32(StateConnected))
	t.log.Info("Agent subprocess started", "pid", cmd.Process.Pid)

	t.wg.Go(t.readLoop)
	t.wg.Go(t.collectStderr)
	t.wg.Go(t.monitorExit)

	return nil
}

func (t *Transport) readLoop() {
	defer t.closeFrames()

	emit := func(f config.Frame) bool {
		if f.Err != nil {
			t.log.Warn("Skipping undecodable line", "error", f.Err)
		}

		select {
		case t.frames <- f:
			return true
		case <-t.done:
			return false
		}
	}

	err := scanFrames(t.stdout, t.cfg.MaxLineSize, emit)
	if err != nil {
		select {
		case <-t.done:
			return
		default:
		}

		t.log.Error("Reading subprocess stdout failed", "error", err)
		emit(config.Frame{Err: &errors.IOError{Op: "read from stdout", Err: err}})
	} else {
		t.log.Debug("Subprocess stdout reached EOF")
	}

	t.markNotReady()

	// Consumers read ExitError once the stream closes, so it must be
	// recorded first.
	select {
	case <-t.exited:
	case <-t.done:
	}
}

func (t *Transport) collectStderr() {
	defer close(t.stderrDone)

	err := collectStderr(t.stderr, &t.stderrBuf, t.cfg.Stderr)
	if err != nil {
		select {
		case <-t.done:
		default:
			t.log.Debug("Reading subprocess stderr failed", "error", err)
		}
	}
}

func (t *Transport) monitorExit() {
	defer close(t.exited)

	err := t.cmd.Wait()

	if t.closing.Load() {
		t.log.Debug("Subprocess exited during shutdown", "error", err)

		return
	}

	// Give the collector a moment to capture trailing output.
	select {
	case <-t.stderrDone:
	case <-t.clock.After(stderrDrainTimeout):
	}

	exitCode := 0
	if err != nil {
		exitCode = -1
		if exitErr, ok := stderrors.AsType[*exec.ExitError](err); ok {
			exitCode = exitErr.ExitCode()
		}
	}

	t.exitMu.Lock()
	t.exitCode = exitCode
	t.exitedSelf = true

	if err != nil {
		t.exitErr = &errors.ProcessError{
			ExitCode: exitCode,
			Stderr:   cleanStderr(t.stderrBuf.String()),
			Err:      err,
		}
	}
	t.exitMu.Unlock()

	if err != nil {
		t.log.Warn("Agent subprocess exited unexpectedly", "exit_code", exitCode)
	} else {
		t.log.Info("Agent subprocess exited")
	}

	t.markNotReady()
}

func (t *Transport) markNotReady() {
	t.state.CompareAndSwap(int32(StateConnected), int32(StateClosed))
}

func (t *Transport) closeFrames() {
	t.closeFramesOnce.Do(func() { close(t.frames) })
}

// Write sends one line to the process's stdin. Concurrent calls never
// interleave within a line.
//
// When ctx ends while the pipe is full, Write returns ctx.Err() and the line
// is still delivered in the background; later writes queue behind it. Input
// stays open.
func (t *Transport) Write(ctx context.Context, data []byte) error {
	if t.State() == StateUnconnected {
		return &errors.ConnectionError{Err: errors.ErrTransportNotConnected}
	}

	if err := t.writeSem.Acquire(ctx, 1); err != nil {
		return err
	}

	released := false

	defer func() {
		if !released {
			t.writeSem.Release(1)
		}
	}()

	if t.stdinClosed.Load() {
		return &errors.IOError{Op: "write to stdin", Err: errors.ErrStdinClosed}
	}

	if t.State() != StateConnected {
		if exitErr := t.ExitError(); exitErr != nil {
			return &errors.IOError{Op: "write to stdin", Err: exitErr}
		}

		return &errors.IOError{Op: "write to stdin", Err: errors.ErrTransportClosed}
	}

	t.pipeMu.Lock()
	stdin := t.stdin
	t.pipeMu.Unlock()

	if stdin == nil {
		return &errors.IOError{Op: "write to stdin", Err: errors.ErrStdinClosed}
	}

	// Copy so a caller's spare capacity is never written into.
	line := make([]byte, len(data), len(data)+1)
	copy(line, data)

	if len(line) == 0 || line[len(line)-1] != '\n' {
		line = append(line, '\n')
	}

	t.log.Debug("Writing line to subprocess", "data_len", len(line))

	result := make(chan error, 1)

	// The goroutine owns the write slot from here on and releases it once
	// the line is fully written or the pipe fails.
	released = true

	go func() {
		defer t.writeSem.Release(1)

		_, err := stdin.Write(line)
		result <- err
	}()

	select {
	case err := <-result:
		if err != nil {
			t.log.Error("Failed to write to subprocess", "error", err)

			return &errors.IOError{Op: "write to stdin", Err: err}
		}

		return nil

	case <-ctx.Done():
		t.log.Debug("Context ended during write, line continues in background", "data_len", len(line))

		return ctx.Err()
	}
}

// EndInput closes stdin so the process sees end of input. It is idempotent
// and succeeds on a transport that was never connected.
func (t *Transport) EndInput() error {
	return t.closeStdin()
}

func (t *Transport) closeStdin() error {
	if !t.stdinClosed.CompareAndSwap(false, true) {
		return nil
	}

	t.pipeMu.Lock()
	stdin := t.stdin
	t.stdin = nil
	t.pipeMu.Unlock()

	if stdin == nil {
		return nil
	}

	t.log.Debug("Closing subprocess stdin")

	if err := stdin.Close(); err != nil && !stderrors.Is(err, os.ErrClosed) {
		return &errors.IOError{Op: "close stdin", Err: err}
	}

	return nil
}

// Messages returns the decoded output stream. Only the first call succeeds.
func (t *Transport) Messages() (<-chan config.Frame, error) {
	if !t.taken.CompareAndSwap(false, true) {
		return nil, errors.ErrMessagesTaken
	}

	return t.frames, nil
}

// IsReady reports whether the process is running and accepting input.
func (t *Transport) IsReady() bool {
	return t.State() == StateConnected
}

// ExitError returns the ProcessError recorded for an unexpected non-zero
// exit, or nil.
func (t *Transport) ExitError() error {
	t.exitMu.Lock()
	defer t.exitMu.Unlock()

	return t.exitErr
}

// ExitCode returns the process's exit status once it has exited on its own,
// without Close having started the shutdown. A zero status is a clean exit
// and carries no ExitError.
func (t *Transport) ExitCode() (int, bool) {
	t.exitMu.Lock()
	defer t.exitMu.Unlock()

	return t.exitCode, t.exitedSelf
}

// Stderr returns the stderr captured so far.
func (t *Transport) Stderr() string {
	return t.stderrBuf.String()
}

// Close ends input, waits for the process to exit, and escalates to SIGTERM
// and then SIGKILL when it does not. All background goroutines have returned
// when Close does. Subsequent calls return the first call's result.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.shutdown()
	})

	return t.closeErr
}

func (t *Transport) shutdown() error {
	t.lifecycleMu.Lock()
	defer t.lifecycleMu.Unlock()

	prev := State(t.state.Swap(int32(StateClosing)))
	if prev == StateUnconnected {
		t.stdinClosed.Store(true)
		t.state.Store(int32(StateClosed))
		t.closeFrames()

		return nil
	}

	t.closing.Store(true)

	pid := t.cmd.Process.Pid
	log := t.log.With("pid", pid)

	if err := t.closeStdin(); err != nil {
		log.Debug("Closing stdin failed", "error", err)
	}

	var shutdownErr error

	if !t.waitExit(t.cfg.GraceTimeout) {
		log.Debug("Subprocess still running after grace period, sending SIGTERM")

		if err := signalProcess(t.cmd.Process, syscall.SIGTERM); err != nil {
			log.Warn("SIGTERM failed", "error", err)
		}

		if !t.waitExit(t.cfg.TermTimeout) {
			log.Warn("Subprocess ignored SIGTERM, killing")

			if err := t.cmd.Process.Kill(); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
				shutdownErr = fmt.Errorf("kill agent subprocess (pid %d): %w", pid, err)
			}

			<-t.exited
		}
	}

	close(t.done)
	_ = t.stdout.Close()
	_ = t.stderr.Close()

	t.wg.Wait()
	t.state.Store(int32(StateClosed))

	log.Info("Agent subprocess closed")

	return shutdownErr
}

func (t *Transport) waitExit(timeout time.Duration) bool {
	select {
	case <-t.exited:
		return true
	case <-t.clock.After(timeout):
		return false
	}
}

// signalProcess delivers sig, treating an already-exited process as success.
func signalProcess(p *os.Process, sig os.Signal) error {
	if err := p.Signal(sig); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
		return err
	}

	return nil
}
