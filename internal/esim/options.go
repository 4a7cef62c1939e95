package esim

import (
	"log/slog"
	"time"

	"github.com/dusk-indust/esimctl/internal/capability"
)

// Delays holds how long to let the host settle after each kind of command
// before reading back the active subscription. The defaults are empirical.
type Delays struct {
	PreferredData time.Duration
	Switch        time.Duration
	Legacy        time.Duration
	Enable        time.Duration
}

// DefaultDelays returns the verification delays used when none are set.
func DefaultDelays() Delays {
	return Delays{
		PreferredData: 1500 * time.Millisecond,
		Switch:        2 * time.Second,
		Legacy:        1 * time.Second,
		Enable:        1500 * time.Millisecond,
	}
}

// DefaultCallbackTimeout bounds how long to wait for the host's preferred
// data callback before giving up on the attempt.
const DefaultCallbackTimeout = 10 * time.Second

// Recorder receives probe and activation outcomes, typically for metrics.
// Implementations must be safe for concurrent use.
type Recorder interface {
	ObserveProbe(op string, result capability.Result)
	ObserveActivation(strategy string, outcome Outcome, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveProbe(string, capability.Result)            {}
func (nopRecorder) ObserveActivation(string, Outcome, time.Duration) {}

type settings struct {
	logger          *slog.Logger
	recorder        Recorder
	delays          Delays
	callbackTimeout time.Duration
	onEvent         func(Event)
}

func newSettings(opts []Option) settings {
	s := settings{
		logger:          slog.Default(),
		recorder:        nopRecorder{},
		delays:          DefaultDelays(),
		callbackTimeout: DefaultCallbackTimeout,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func (s settings) prober(level capability.Level) *capability.Prober {
	return capability.NewProber(level,
		capability.WithLogger(s.logger),
		capability.WithObserver(s.recorder.ObserveProbe),
	)
}

// Option configures a Discoverer or an Activator.
type Option func(*settings)

// WithLogger sets the logger for engine diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRecorder sets the outcome recorder.
func WithRecorder(r Recorder) Option {
	return func(s *settings) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithDelays overrides the verification delays. Zero fields keep their
// defaults.
func WithDelays(d Delays) Option {
	return func(s *settings) {
		if d.PreferredData > 0 {
			s.delays.PreferredData = d.PreferredData
		}
		if d.Switch > 0 {
			s.delays.Switch = d.Switch
		}
		if d.Legacy > 0 {
			s.delays.Legacy = d.Legacy
		}
		if d.Enable > 0 {
			s.delays.Enable = d.Enable
		}
	}
}

// WithCallbackTimeout bounds the wait for asynchronous host callbacks.
func WithCallbackTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.callbackTimeout = d
		}
	}
}

// WithEventHandler registers fn to receive activation progress events.
// fn is called synchronously and may be called from timer goroutines.
func WithEventHandler(fn func(Event)) Option {
	return func(s *settings) {
		s.onEvent = fn
	}
}
