// Package service is the caller-side orchestration on top of the engines:
// it resolves profiles by id, keeps one switch in flight per host and
// rediscovers once a switch completes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/dusk-indust/esimctl/internal/esim"
	"github.com/dusk-indust/esimctl/internal/telephony"
)

var (
	// ErrUnknownProfile means no discovered embedded profile has the id.
	ErrUnknownProfile = errors.New("service: unknown profile")
	// ErrBusy means a switch to a different profile is still in flight.
	ErrBusy = errors.New("service: another switch is in progress")
)

// SwitchRecorder receives guard decisions, typically for metrics.
type SwitchRecorder interface {
	RecordSwitchRejected()
	RecordSwitchJoined()
}

// SwitchResult is the outcome of Switch.
type SwitchResult struct {
	Attempt esim.Attempt `json:"attempt"`
	// Profiles is the rediscovered profile list after the attempt.
	Profiles []esim.Profile `json:"profiles"`
	// Joined is set when the call shared an attempt already in flight.
	Joined bool `json:"joined"`
}

// Service serves profile queries and switches for one host.
type Service struct {
	host       telephony.Host
	discoverer *esim.Discoverer
	activator  *esim.Activator
	logger     *slog.Logger
	recorder   SwitchRecorder

	group    singleflight.Group
	mu       sync.Mutex
	inflight int // target holding the host token
	holders  int
}

// Option configures a Service.
type Option func(*config)

type config struct {
	logger   *slog.Logger
	recorder SwitchRecorder
	engine   []esim.Option
}

// WithLogger sets the logger for the service and its engines.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSwitchRecorder sets the recorder for guard decisions.
func WithSwitchRecorder(r SwitchRecorder) Option {
	return func(c *config) {
		c.recorder = r
	}
}

// WithEngineOptions passes options through to the discovery and activation
// engines.
func WithEngineOptions(opts ...esim.Option) Option {
	return func(c *config) {
		c.engine = append(c.engine, opts...)
	}
}

// New creates a Service for host.
func New(host telephony.Host, opts ...Option) *Service {
	cfg := config{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	engine := append([]esim.Option{esim.WithLogger(cfg.logger)}, cfg.engine...)
	return &Service{
		host:       host,
		discoverer: esim.NewDiscoverer(engine...),
		activator:  esim.NewActivator(engine...),
		logger:     cfg.logger.With("component", "service"),
		recorder:   cfg.recorder,
		inflight:   esim.NoSubscription,
	}
}

// Profiles discovers the host's embedded profiles.
func (s *Service) Profiles(ctx context.Context) []esim.Profile {
	return s.discoverer.Discover(ctx, s.host)
}

// Active returns the active embedded profile, if any.
func (s *Service) Active(ctx context.Context) (esim.Profile, bool) {
	for _, p := range s.Profiles(ctx) {
		if p.Active {
			return p, true
		}
	}
	return esim.Profile{}, false
}

// Switch makes the profile with id active. A concurrent Switch to the same
// id shares the in-flight attempt, which runs under the first caller's
// context; a concurrent Switch to another id fails with ErrBusy.
func (s *Service) Switch(ctx context.Context, id int) (SwitchResult, error) {
	target, ok := s.find(ctx, id)
	if !ok {
		return SwitchResult{}, fmt.Errorf("%w: %d", ErrUnknownProfile, id)
	}

	if err := s.acquire(id); err != nil {
		if s.recorder != nil {
			s.recorder.RecordSwitchRejected()
		}
		return SwitchResult{}, err
	}
	defer s.release()

	v, _, shared := s.group.Do(strconv.Itoa(id), func() (any, error) {
		s.logger.Info("switching profile", "target", id, "name", target.DisplayName)
		return s.activator.ActivateWait(ctx, s.host, target), nil
	})
	if shared && s.recorder != nil {
		s.recorder.RecordSwitchJoined()
	}

	attempt := v.(esim.Attempt)
	return SwitchResult{
		Attempt:  attempt,
		Profiles: s.Profiles(ctx),
		Joined:   shared,
	}, nil
}

func (s *Service) find(ctx context.Context, id int) (esim.Profile, bool) {
	for _, p := range s.Profiles(ctx) {
		if p.SubscriptionID == id {
			return p, true
		}
	}
	return esim.Profile{}, false
}

// acquire takes the host token for id, or shares it when id already holds
// it. The token is free again once every holder has released it.
func (s *Service) acquire(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.holders > 0 && s.inflight != id {
		return fmt.Errorf("%w: switching to %d", ErrBusy, s.inflight)
	}
	s.inflight = id
	s.holders++
	return nil
}

func (s *Service) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holders--
	if s.holders == 0 {
		s.inflight = esim.NoSubscription
	}
}
