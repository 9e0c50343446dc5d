package model

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/actuallystonmai/dineright-service/internal/domain"
)

const (
	defaultResultLimit    = 10
	defaultResultsKey     = "place_ids"
	defaultTimeout        = 30 * time.Second
	defaultWaitDelay      = 2 * time.Second
	defaultMaxOutputBytes = 1 << 20
)

// ErrClosed is returned for requests issued after Close.
var ErrClosed = errors.New("recommendation bridge closed")

// Config describes the external recommendation worker.
type Config struct {
	// InterpreterPath and ScriptPath are executed as `InterpreterPath ScriptPath`.
	InterpreterPath string
	ScriptPath      string
	WorkDir         string
	// Env is appended to the current process environment.
	Env []string

	// ResultLimit is sent as n when the request carries none.
	ResultLimit int
	// ResultsKey names the response field holding the ranked ids.
	ResultsKey string

	// Timeout bounds one cycle after the worker is running. Expiry kills the worker.
	Timeout time.Duration
	// WaitDelay bounds how long an answered worker may linger before it is killed.
	WaitDelay time.Duration
	// MaxOutputBytes caps the accepted size of the worker's stdout.
	MaxOutputBytes int

	// Prewarm spawns the next worker in the background after each cycle.
	Prewarm bool
}

func (c *Config) applyDefaults() {
	if c.ResultLimit <= 0 {
		c.ResultLimit = defaultResultLimit
	}
	if c.ResultsKey == "" {
		c.ResultsKey = defaultResultsKey
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.WaitDelay <= 0 {
		c.WaitDelay = defaultWaitDelay
	}
	if c.MaxOutputBytes <= 0 {
		c.MaxOutputBytes = defaultMaxOutputBytes
	}
}

// Bridge runs recommendation requests against a one-shot worker process.
//
// Every call holds an exclusive lock for the whole
// liveness check, spawn, write, read and parse sequence, so at most one
// request is ever in flight against the worker. Each cycle consumes its
// worker: closing stdin is the end-of-request marker, after which the
// worker writes its answer and exits.
type Bridge struct {
	cfg     Config
	logger  *zap.Logger
	metrics MetricsCollector

	// sem is the single-flight lock around a full cycle.
	sem *semaphore.Weighted

	mu      sync.Mutex
	current *worker
	state   State
	closed  bool

	closeCtx    context.Context
	closeCancel context.CancelFunc
	prewarmWG   sync.WaitGroup
}

func NewBridge(cfg Config, logger *zap.Logger, opts ...Option) *Bridge {
	cfg.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	b := &Bridge{
		cfg:         cfg,
		logger:      logger.Named("model"),
		metrics:     NewNoopMetricsCollector(),
		sem:         semaphore.NewWeighted(1),
		state:       StateNotStarted,
		closeCtx:    ctx,
		closeCancel: cancel,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start spawns a worker ahead of the first request.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer b.sem.Release(1)

	_, err := b.ensureWorker(b.logger)
	return err
}

// State reports the worker lifecycle state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current != nil && !b.current.alive() && b.state == StateRunning {
		return StateExited
	}
	return b.state
}

// GetRecommendations sends req to a worker and returns the ranked restaurant ids
// in worker order. A zero ResultLimit is replaced by the configured default.
// Worker failures are returned as *Error; context errors are returned as is.
func (b *Bridge) GetRecommendations(ctx context.Context, req domain.RecommendationRequest) ([]int64, error) {
	if req.ResultLimit <= 0 {
		req.ResultLimit = b.cfg.ResultLimit
	}
	payload, err := encodeRequest(req)
	if err != nil {
		return nil, newError(ProtocolFailure, "encode request", err)
	}

	queued := time.Now()
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("wait for recommendation worker: %w", err)
	}
	defer b.sem.Release(1)
	b.metrics.LockWait(time.Since(queued))

	if b.isClosed() {
		return nil, newError(SpawnFailure, "spawn worker", ErrClosed)
	}

	log := b.logger.With(zap.String("cycle_id", uuid.NewString()))
	start := time.Now()

	ids, err := b.cycle(ctx, log, payload)
	elapsed := time.Since(start)

	if err != nil {
		kind := KindOf(err)
		b.metrics.CycleFailed(elapsed, kind)
		log.Warn("recommendation cycle failed",
			zap.Stringer("kind", kind),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
	} else {
		b.metrics.CycleCompleted(elapsed, len(ids))
		log.Debug("recommendation cycle completed",
			zap.Int("results", len(ids)),
			zap.Duration("elapsed", elapsed),
		)
	}

	if b.cfg.Prewarm {
		b.schedulePrewarm()
	}
	return ids, err
}

// Close kills any live worker and rejects further requests.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	w := b.current
	b.current = nil
	b.state = StateExited
	b.mu.Unlock()

	b.closeCancel()
	if w != nil {
		w.kill()
	}
	b.prewarmWG.Wait()
	return nil
}

func (b *Bridge) cycle(ctx context.Context, log *zap.Logger, payload []byte) ([]int64, error) {
	w, err := b.ensureWorker(log)
	if err != nil {
		return nil, err
	}
	log = log.With(zap.Int("pid", w.pid()))

	timer := time.NewTimer(b.cfg.Timeout)
	defer timer.Stop()

	written := make(chan error, 1)
	go func() {
		_, err := w.stdin.Write(payload)
		if cerr := w.stdin.Close(); err == nil {
			err = cerr
		}
		written <- err
	}()

	select {
	case err := <-written:
		if err != nil {
			b.retire(w, true)
			return nil, b.withStderr(w, newError(PipeFailure, "write request", err))
		}
	case <-timer.C:
		b.retire(w, true)
		return nil, b.withStderr(w, newError(TimeoutFailure, "write request",
			fmt.Errorf("worker did not accept the request within %s", b.cfg.Timeout)))
	case <-ctx.Done():
		b.retire(w, true)
		return nil, fmt.Errorf("write request: %w", ctx.Err())
	}
	b.setState(StateAwaitingExit)

	select {
	case <-w.eof:
	case <-timer.C:
		b.retire(w, true)
		return nil, b.withStderr(w, newError(TimeoutFailure, "await response",
			fmt.Errorf("worker did not respond within %s", b.cfg.Timeout)))
	case <-ctx.Done():
		b.retire(w, true)
		return nil, fmt.Errorf("await response: %w", ctx.Err())
	}
	b.retire(w, false)

	if w.readErr != nil {
		return nil, b.withStderr(w, newError(PipeFailure, "read response", w.readErr))
	}
	if w.waitErr != nil {
		log.Warn("recommendation worker exited abnormally",
			zap.Error(w.waitErr),
			zap.String("stderr", w.stderr.String()),
		)
	}
	if w.output.Truncated() {
		return nil, b.withStderr(w, newError(ProtocolFailure, "read response",
			fmt.Errorf("output exceeds %d bytes", b.cfg.MaxOutputBytes)))
	}

	ids, err := decodeResponse(w.output.Bytes(), b.cfg.ResultsKey)
	if err != nil {
		if errors.Is(err, errEmptyOutput) && w.waitErr != nil {
			err = fmt.Errorf("%w: %v", err, w.waitErr)
		}
		return nil, b.withStderr(w, newError(ProtocolFailure, "parse response", err))
	}
	return ids, nil
}

// ensureWorker returns a live worker, spawning one if there is none or the
// current one died. Callers must hold sem.
func (b *Bridge) ensureWorker(log *zap.Logger) (*worker, error) {
	b.mu.Lock()
	w := b.current
	b.mu.Unlock()

	if w != nil {
		if w.alive() {
			return w, nil
		}
		log.Info("recommendation worker exited before use, respawning",
			zap.Int("pid", w.pid()),
			zap.Error(w.waitErr),
			zap.String("stderr", w.stderr.String()),
		)
		b.retire(w, true)
	}

	w, err := spawnWorker(b.cfg)
	if err != nil {
		b.setState(StateExited)
		return nil, newError(SpawnFailure, "spawn worker", err)
	}
	b.metrics.WorkerSpawned()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		w.kill()
		return nil, newError(SpawnFailure, "spawn worker", ErrClosed)
	}
	b.current = w
	b.state = StateRunning
	b.mu.Unlock()

	log.Info("spawned recommendation worker",
		zap.Int("pid", w.pid()),
		zap.String("interpreter", b.cfg.InterpreterPath),
		zap.String("script", b.cfg.ScriptPath),
	)
	return w, nil
}

// retire stops tracking w and makes sure it is gone.
func (b *Bridge) retire(w *worker, force bool) {
	if force {
		w.kill()
	} else {
		w.release(b.cfg.WaitDelay)
	}

	b.mu.Lock()
	if b.current == w {
		b.current = nil
	}
	if !b.closed {
		b.state = StateExited
	}
	b.mu.Unlock()
}

func (b *Bridge) schedulePrewarm() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	b.prewarmWG.Add(1)
	go func() {
		defer b.prewarmWG.Done()
		if err := b.sem.Acquire(b.closeCtx, 1); err != nil {
			return
		}
		defer b.sem.Release(1)

		if b.isClosed() {
			return
		}
		if _, err := b.ensureWorker(b.logger); err != nil {
			b.logger.Warn("prewarm recommendation worker failed", zap.Error(err))
		}
	}()
}

func (b *Bridge) withStderr(w *worker, err *Error) *Error {
	err.Stderr = w.stderr.String()
	return err
}

func (b *Bridge) setState(s State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.state = s
	}
}

func (b *Bridge) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
