package model

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// State is the lifecycle state of the bridge's worker process.
type State int

const (
	// StateNotStarted - no worker has been spawned yet
	StateNotStarted State = iota
	// StateRunning - a worker is alive and ready for (or receiving) a request
	StateRunning
	// StateAwaitingExit - the request was written and stdin closed; reading the response
	StateAwaitingExit
	// StateExited - the last worker is gone; the next request respawns
	StateExited
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "NotStarted"
	case StateRunning:
		return "Running"
	case StateAwaitingExit:
		return "AwaitingExit"
	case StateExited:
		return "Exited"
	default:
		return "Unknown"
	}
}

const stderrTailBytes = 4 << 10

// worker is one launched recommendation process.
// done closes when the process has exited and its stderr is drained;
// eof closes when its stdout reached end-of-stream or was closed by us.
type worker struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc

	stdin  io.WriteCloser
	stdout *os.File
	output *cappedBuffer
	stderr *tailBuffer

	eof     chan struct{}
	readErr error

	done    chan struct{}
	waitErr error

	startedAt time.Time
}

func spawnWorker(cfg Config) (*worker, error) {
	ctx, cancel := context.WithCancel(context.Background())

	cmd := exec.CommandContext(ctx, cfg.InterpreterPath, cfg.ScriptPath)
	cmd.Dir = cfg.WorkDir
	if len(cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), cfg.Env...)
	}
	cmd.WaitDelay = cfg.WaitDelay

	stderr := newTailBuffer(stderrTailBytes)
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}

	// stdout is wired to a pipe we own, so end-of-stream is observed
	// independently of process exit.
	pr, pw, err := os.Pipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stdout = pw

	if err := cmd.Start(); err != nil {
		cancel()
		pr.Close()
		pw.Close()
		return nil, err
	}
	pw.Close()

	w := &worker{
		cmd:       cmd,
		cancel:    cancel,
		stdin:     stdin,
		stdout:    pr,
		output:    newCappedBuffer(cfg.MaxOutputBytes),
		stderr:    stderr,
		eof:       make(chan struct{}),
		done:      make(chan struct{}),
		startedAt: time.Now(),
	}

	go func() {
		_, w.readErr = io.Copy(w.output, w.stdout)
		close(w.eof)
	}()
	go func() {
		w.waitErr = cmd.Wait()
		close(w.done)
	}()

	return w, nil
}

func (w *worker) pid() int {
	if w.cmd.Process == nil {
		return 0
	}
	return w.cmd.Process.Pid
}

func (w *worker) alive() bool {
	select {
	case <-w.done:
		return false
	default:
		return true
	}
}

// kill terminates the process and waits until both goroutines are finished.
func (w *worker) kill() {
	w.cancel()
	<-w.done
	w.stdout.Close()
	<-w.eof
}

// release lets a worker that already answered exit on its own within grace,
// then kills it. A one-shot worker cannot take another request once stdin is closed.
func (w *worker) release(grace time.Duration) {
	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-w.done:
		w.cancel()
		w.stdout.Close()
		<-w.eof
	case <-timer.C:
		w.kill()
	}
}

// cappedBuffer keeps the first limit bytes written and records overflow.
type cappedBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func newCappedBuffer(limit int) *cappedBuffer {
	return &cappedBuffer{limit: limit}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	room := b.limit - b.buf.Len()
	if room <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if len(p) > room {
		b.buf.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *cappedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Clone(b.buf.Bytes())
}

func (b *cappedBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.truncated
}

// tailBuffer keeps the last limit bytes written.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(bytes.TrimSpace(b.buf))
}
