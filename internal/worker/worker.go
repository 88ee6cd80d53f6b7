package worker

import (
	"errors"
	"time"

	"github.com/workerdom/coordinator/internal/protocol"
)

// DefaultMaxProgramSize caps worker-bound author code, in characters.
const DefaultMaxProgramSize = 150000

var (
	// ErrProgramTooLarge means the author payload exceeded the size cap.
	// The component degrades to "does not activate", never to partial
	// activation.
	ErrProgramTooLarge = errors.New("worker: program exceeds maximum size")

	// ErrTerminated means the worker is gone; messages to it are discarded.
	ErrTerminated = errors.New("worker: terminated")
)

// Config holds worker runtime limits.
type Config struct {
	// MaxProgramSize in characters; zero means DefaultMaxProgramSize.
	MaxProgramSize int
	// ExecTimeout bounds one synchronous author-code execution.
	ExecTimeout time.Duration
}

// DefaultConfig returns the default worker limits.
func DefaultConfig() Config {
	return Config{
		MaxProgramSize: DefaultMaxProgramSize,
		ExecTimeout:    5 * time.Second,
	}
}

// Worker is an isolated execution context the coordinator exchanges
// messages with. Send never blocks on worker-side work; Messages is the
// ordered output stream, closed on termination. Terminate is idempotent
// and irrecoverable.
type Worker interface {
	Send(msg protocol.ToWorker) error
	Messages() <-chan protocol.FromWorker
	Terminate()
}

// CheckProgramSize validates author code against the cap before any worker
// is started.
func CheckProgramSize(program string, maxSize int) error {
	if maxSize <= 0 {
		maxSize = DefaultMaxProgramSize
	}
	if len(program) > maxSize {
		return ErrProgramTooLarge
	}
	return nil
}
