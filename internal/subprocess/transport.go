package subprocess

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/wagiedev/regbot/internal/config"
	"github.com/wagiedev/regbot/internal/errors"
)

const (
	// maxScanTokenSize is the maximum buffer size for reading server
	// output lines.
	maxScanTokenSize = 1024 * 1024 // 1MB

	// initialScanBufferSize is the scanner's starting allocation.
	initialScanBufferSize = 64 * 1024
)

// ServerTransport implements Transport by spawning a registration server
// subprocess.
type ServerTransport struct {
	log         *slog.Logger
	command     []string
	stderrLimit int

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	stderrMu  sync.Mutex // Protects stderrBuf
	stderrBuf strings.Builder
	stderrWg  sync.WaitGroup

	waitOnce sync.Once
	waitErr  error

	mu          sync.Mutex // Protects stdin writes and the flags below
	closing     bool       // Whether Close() has been called (intentional shutdown)
	stdinClosed bool       // Whether stdin was closed
}

// Compile-time verification that ServerTransport implements the Transport
// interface.
var _ config.Transport = (*ServerTransport)(nil)

// NewServerTransport creates a transport that will spawn the server
// command from opts. When opts.LedgerPath is set it is appended to the
// argv as "--ledger <path>".
func NewServerTransport(log *slog.Logger, opts *config.Options) *ServerTransport {
	command := opts.ServerCommand
	if len(command) == 0 {
		command = config.DefaultServerCommand()
	}

	if opts.LedgerPath != "" {
		command = append(append([]string{}, command...), "--ledger", opts.LedgerPath)
	}

	stderrLimit := opts.StderrLimit
	if stderrLimit <= 0 {
		stderrLimit = config.DefaultStderrLimit
	}

	return &ServerTransport{
		log:         log.With("component", "server_transport"),
		command:     command,
		stderrLimit: stderrLimit,
	}
}

// Start spawns the server process and wires up its pipes. The stderr
// capture goroutine starts immediately so startup failures are reported
// with the server's own words.
//
// Returns ServerUnavailableError if the process cannot be spawned.
func (t *ServerTransport) Start(ctx context.Context) error {
	t.log.Info("Starting registration server subprocess", "command", t.command)

	binary, err := resolveServerBinary(t.log, t.command[0])
	if err != nil {
		return err
	}

	//nolint:gosec // G204: Spawning a configured server command is the transport's purpose
	cmd := exec.CommandContext(ctx, binary, t.command[1:]...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		t.log.Error("Failed to create stdin pipe", "error", err)

		return &errors.ServerUnavailableError{Err: fmt.Errorf("stdin pipe: %w", err)}
	}

	t.stdin = stdin

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		t.log.Error("Failed to create stdout pipe", "error", err)

		return &errors.ServerUnavailableError{Err: fmt.Errorf("stdout pipe: %w", err)}
	}

	t.stdout = stdout

	stderr, err := cmd.StderrPipe()
	if err != nil {
		t.log.Error("Failed to create stderr pipe", "error", err)

		return &errors.ServerUnavailableError{Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	t.stderr = stderr

	if err := cmd.Start(); err != nil {
		t.log.Error("Failed to start server process", "error", err)

		return &errors.ServerUnavailableError{Err: fmt.Errorf("start process: %w", err)}
	}

	t.cmd = cmd

	t.stderrWg.Add(1)

	go t.captureStderr()

	t.log.Info("Registration server subprocess started", "pid", cmd.Process.Pid)

	return nil
}

// captureStderr buffers the server's stderr up to the configured limit.
// Relies on process kill to close the pipe and unblock Scan.
func (t *ServerTransport) captureStderr() {
	defer t.stderrWg.Done()

	scanner := bufio.NewScanner(t.stderr)

	for scanner.Scan() {
		line := scanner.Text()

		t.stderrMu.Lock()

		if t.stderrBuf.Len() < t.stderrLimit {
			if t.stderrBuf.Len() > 0 {
				t.stderrBuf.WriteString("\n")
			}

			t.stderrBuf.WriteString(line)
		}

		t.stderrMu.Unlock()
	}

	if err := scanner.Err(); err != nil {
		t.log.Debug("Stderr scanner error", "error", err)
	}
}

// Stderr returns the server stderr captured so far.
func (t *ServerTransport) Stderr() string {
	t.stderrMu.Lock()
	defer t.stderrMu.Unlock()

	return t.stderrBuf.String()
}

// ReadResponses reads raw response lines from the server stdout.
//
// The returned line channel closes when the server's stdout reaches EOF;
// the error channel carries at most one terminal error (scanner failure
// or context cancellation). After the line channel closes the process has
// been reaped and Stderr() holds everything it wrote.
func (t *ServerTransport) ReadResponses(ctx context.Context) (<-chan []byte, <-chan error) {
	lines := make(chan []byte)
	errs := make(chan error, 1)

	go func() {
		defer close(lines)
		defer close(errs)
		defer t.log.Debug("ReadResponses goroutine stopped")

		scanner := bufio.NewScanner(t.stdout)
		scanner.Buffer(make([]byte, 0, initialScanBufferSize), maxScanTokenSize)

		for scanner.Scan() {
			line := make([]byte, len(scanner.Bytes()))
			copy(line, scanner.Bytes())

			select {
			case lines <- line:
			case <-ctx.Done():
				t.log.Debug("Context cancelled during response send", "error", ctx.Err())

				errs <- ctx.Err()

				return
			}
		}

		if err := scanner.Err(); err != nil {
			t.log.Error("Scanner error while reading server output", "error", err)

			errs <- fmt.Errorf("scanner error: %w", err)
		}

		waitErr := t.reap()

		t.mu.Lock()
		isClosing := t.closing
		t.mu.Unlock()

		switch {
		case waitErr == nil:
			t.log.Info("Server process exited cleanly")
		case isClosing:
			t.log.Debug("Server process terminated during shutdown")
		default:
			t.log.Warn("Server process exited with error", "error", waitErr, "stderr", t.Stderr())
		}
	}()

	return lines, errs
}

// reap waits for the process exactly once. The stderr capture goroutine
// must finish first; exec pipes cannot be read after Wait returns.
func (t *ServerTransport) reap() error {
	t.waitOnce.Do(func() {
		t.stderrWg.Wait()
		t.waitErr = t.cmd.Wait()
	})

	return t.waitErr
}

// SendRequest writes one framed request line to the server stdin.
//
// A newline is appended when missing. This method is safe for concurrent
// use and respects context cancellation even during blocking writes: if
// the context expires mid-write, stdin is closed to unblock the writer
// and subsequent calls return ErrStdinClosed.
func (t *ServerTransport) SendRequest(ctx context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stdin == nil {
		return errors.ErrTransportNotStarted
	}

	if t.stdinClosed {
		return errors.ErrStdinClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	t.log.Debug("Sending request to server", "data_len", len(data))

	// Explicit copy so the caller's backing array is never mutated.
	if len(data) == 0 || data[len(data)-1] != '\n' {
		newData := make([]byte, len(data)+1)
		copy(newData, data)
		newData[len(data)] = '\n'
		data = newData
	}

	done := make(chan error, 1)

	go func() {
		_, err := t.stdin.Write(data)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.log.Error("Failed to write request", "error", err)

			return fmt.Errorf("write to stdin: %w", err)
		}

		return nil

	case <-ctx.Done():
		t.log.Debug("Context cancelled during write, closing stdin")

		if t.stdin != nil {
			_ = t.stdin.Close()
			t.stdinClosed = true
		}

		select {
		case <-done:
		case <-time.After(1 * time.Second):
			t.log.Warn("Write goroutine did not exit after stdin close, potential leak")
		}

		return ctx.Err()
	}
}

// IsReady reports whether the server process is running with stdin open.
func (t *ServerTransport) IsReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.cmd != nil && t.cmd.Process != nil && t.stdin != nil && !t.stdinClosed
}

// CloseStdin closes the server's stdin to signal end of input. The server
// finishes pending requests and exits on its own.
func (t *ServerTransport) CloseStdin() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stdin != nil && !t.stdinClosed {
		t.log.Debug("Closing stdin pipe")

		err := t.stdin.Close()
		t.stdinClosed = true
		t.stdin = nil

		return err
	}

	return nil
}

// Close terminates the server process.
//
// The kill is unconditional so no exit path can leave an orphaned server
// behind. Safe to call multiple times or on an already-dead process; the
// process is reaped in the background when no reader is draining it.
func (t *ServerTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closing = true
	t.stdinClosed = true

	if t.cmd != nil && t.cmd.Process != nil {
		t.log.Debug("Killing server process", "pid", t.cmd.Process.Pid)

		if err := t.cmd.Process.Kill(); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("kill server process (pid %d): %w", t.cmd.Process.Pid, err)
		}

		go func() {
			_ = t.reap()
		}()
	}

	return nil
}
