package capability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrUnsupported is returned by host bindings for operations the running host
// does not expose.
var ErrUnsupported = errors.New("capability: operation not supported by host")

// ErrGated is returned by Invoke when the host level is below the
// operation's minimum; the operation is not attempted.
var ErrGated = errors.New("capability: host level below minimum")

// Result classifies the outcome of a single probe.
type Result string

const (
	ResultOK          Result = "ok"
	ResultGated       Result = "gated"
	ResultUnsupported Result = "unsupported"
	ResultFailed      Result = "failed"
)

// Prober gates host operations on the host's capability level and degrades
// every failure to "unavailable". It never returns host errors to callers.
type Prober struct {
	level   Level
	logger  *slog.Logger
	observe func(op string, r Result)
}

// Option configures a Prober.
type Option func(*Prober)

// WithLogger sets the logger used for probe diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(p *Prober) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithObserver registers a callback invoked once per probe with its result.
func WithObserver(fn func(op string, r Result)) Option {
	return func(p *Prober) {
		p.observe = fn
	}
}

// NewProber creates a Prober for a host running at level.
func NewProber(level Level, opts ...Option) *Prober {
	p := &Prober{
		level:  level,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "prober")
	return p
}

// Level returns the host level the prober gates against.
func (p *Prober) Level() Level {
	return p.level
}

// Allows reports whether an operation requiring min may be attempted.
func (p *Prober) Allows(min Level) bool {
	return p.level.AtLeast(min)
}

// Probe invokes fn when the host level satisfies min. It returns the value
// and true on success. Level gating, ErrUnsupported, any other error and a
// panic inside fn all yield the zero value and false.
func Probe[T any](ctx context.Context, p *Prober, op string, min Level, fn func(context.Context) (T, error)) (T, bool) {
	var (
		zero T
		v    T
	)
	err := p.Invoke(ctx, op, min, func(ctx context.Context) error {
		var err error
		v, err = fn(ctx)
		return err
	})
	if err != nil {
		return zero, false
	}
	return v, true
}

// Invoke runs a command-style operation under the same gating, recovery and
// logging as Probe but returns the classified error: ErrGated when the level
// is too low, an error wrapping ErrUnsupported when the host lacks the
// operation, or the host's own error. A panic is converted into an error.
func (p *Prober) Invoke(ctx context.Context, op string, min Level, fn func(context.Context) error) (err error) {
	if !p.Allows(min) {
		p.logger.Debug("operation gated", "op", op, "min", min.String(), "level", p.level.String())
		p.record(op, ResultGated)
		return fmt.Errorf("%s: %w (needs %s, host at %s)", op, ErrGated, min, p.level)
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("operation panicked", "op", op, "panic", fmt.Sprint(r))
			p.record(op, ResultFailed)
			err = fmt.Errorf("%s: panic: %v", op, r)
		}
	}()

	if err := fn(ctx); err != nil {
		if errors.Is(err, ErrUnsupported) {
			p.logger.Debug("operation unsupported", "op", op)
			p.record(op, ResultUnsupported)
		} else {
			p.logger.Warn("operation failed", "op", op, "error", err)
			p.record(op, ResultFailed)
		}
		return err
	}

	p.record(op, ResultOK)
	return nil
}

// Unavailable reports whether err from Invoke means the operation could not
// be used at all, as opposed to having been invoked and failed.
func Unavailable(err error) bool {
	return errors.Is(err, ErrGated) || errors.Is(err, ErrUnsupported)
}

func (p *Prober) record(op string, r Result) {
	if p.observe != nil {
		p.observe(op, r)
	}
}
