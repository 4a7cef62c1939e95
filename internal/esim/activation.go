package esim

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dusk-indust/esimctl/internal/capability"
	"github.com/dusk-indust/esimctl/internal/telephony"
)

// Activation strategy names, highest capability first.
const (
	StrategyPreferredData  = "preferred-data"
	StrategySwitch         = "switch-to"
	StrategyLegacyDefaults = "legacy-defaults"
	StrategyEnable         = "enable"
)

type step int

const (
	// stepNext means the strategy did not engage; try the next one.
	stepNext step = iota
	// stepEngaged means completion will come from a callback or verification.
	stepEngaged
	// stepDone means the attempt has already been completed.
	stepDone
)

type strategy struct {
	name string
	min  capability.Level
	run  func(r *attemptRun, ctx context.Context) step
}

var strategies = []strategy{
	{StrategyPreferredData, capability.LevelPreferredData, (*attemptRun).preferredData},
	{StrategySwitch, capability.LevelSwitching, (*attemptRun).switchTo},
	{StrategyLegacyDefaults, capability.LevelDefaultSubscriptions, (*attemptRun).legacyDefaults},
	{StrategyEnable, capability.LevelEmbedded, (*attemptRun).enable},
}

// minStrategyLevel is the lowest level at which any strategy can run.
var minStrategyLevel = capability.LevelDefaultSubscriptions

// Strategies returns the activation strategy names in evaluation order.
func Strategies() []string {
	names := make([]string, len(strategies))
	for i, s := range strategies {
		names[i] = s.name
	}
	return names
}

// Activator makes a profile the host's active subscription. It does not
// serialize overlapping calls; callers must not activate concurrently
// against the same host.
type Activator struct {
	settings
	logger *slog.Logger
}

// NewActivator creates an Activator.
func NewActivator(opts ...Option) *Activator {
	s := newSettings(opts)
	return &Activator{
		settings: s,
		logger:   s.logger.With("component", "activation"),
	}
}

// Activate tries the activation strategies for target and reports through
// onComplete whether the host confirmed target as active. onComplete is
// called exactly once, possibly from another goroutine after Activate has
// returned. Activate itself blocks only while host commands run.
func (a *Activator) Activate(ctx context.Context, host telephony.Host, target Profile, onComplete func(success bool)) {
	a.activate(ctx, host, target.SubscriptionID, func(at Attempt) {
		if onComplete != nil {
			onComplete(at.Success())
		}
	})
}

// ActivateWait runs Activate and blocks until the attempt completes.
func (a *Activator) ActivateWait(ctx context.Context, host telephony.Host, target Profile) Attempt {
	done := make(chan Attempt, 1)
	a.activate(ctx, host, target.SubscriptionID, func(at Attempt) { done <- at })
	return <-done
}

func (a *Activator) activate(ctx context.Context, host telephony.Host, targetID int, complete func(Attempt)) {
	id := uuid.NewString()
	r := &attemptRun{
		a:        a,
		ctx:      ctx,
		host:     host,
		logger:   a.logger.With("attempt", shortID(id), "target", targetID),
		complete: complete,
		attempt: Attempt{
			ID:         id,
			TargetID:   targetID,
			Strategies: Strategies(),
			Index:      -1,
			Outcome:    OutcomePending,
			Started:    time.Now(),
		},
	}
	r.emit(Event{Kind: EventStarted})

	if err := ctx.Err(); err != nil {
		r.finish(OutcomeUnverifiable, "cancelled before start: "+err.Error())
		return
	}
	r.watch(ctx)

	if permissionDenied(ctx, host, r.logger) {
		r.finish(OutcomeFailure, "phone-state permission denied")
		return
	}

	level := hostLevel(ctx, host, r.logger)
	if !level.AtLeast(minStrategyLevel) {
		r.finish(OutcomeFailure, fmt.Sprintf("no activation strategy available at level %s", level))
		return
	}
	r.prober = a.prober(level)

	for i, s := range strategies {
		if r.isFinished() {
			return
		}
		r.enter(i, s.name)
		if s.run(r, ctx) != stepNext {
			return
		}
	}
	r.finish(OutcomeFailure, "no activation strategy engaged")
}

// attemptRun carries the mutable state of one activation call.
type attemptRun struct {
	a        *Activator
	ctx      context.Context
	host     telephony.Host
	prober   *capability.Prober
	logger   *slog.Logger
	complete func(Attempt)
	once     sync.Once

	mu            sync.Mutex
	attempt       Attempt
	finished      bool
	callbackSeen  bool
	callbackTimer *time.Timer
	verifyTimer   *time.Timer
	stopWatch     func() bool
}

// preferredData asks the host to prefer the target for data and verifies
// once the host's asynchronous callback arrives.
func (r *attemptRun) preferredData(ctx context.Context) step {
	setter, ok := r.host.(telephony.PreferredDataSetter)
	err := r.prober.Invoke(ctx, telephony.OpSetPreferredData, capability.LevelPreferredData, func(ctx context.Context) error {
		if !ok {
			return telephony.ErrUnsupported
		}
		return setter.SetPreferredDataSubscription(ctx, r.attempt.TargetID, false, r.onPreferredDataResult)
	})
	if err != nil {
		if r.hasCallback() {
			return stepEngaged
		}
		r.skip(err)
		return stepNext
	}
	r.emit(Event{Kind: EventEngaged, Message: "waiting for host callback"})
	r.armCallbackTimeout()
	return stepEngaged
}

func (r *attemptRun) onPreferredDataResult(code int) {
	r.mu.Lock()
	if r.callbackSeen || r.finished {
		r.mu.Unlock()
		return
	}
	if r.attempt.Strategy != StrategyPreferredData {
		current := r.attempt.Strategy
		r.mu.Unlock()
		r.logger.Debug("late preferred data callback ignored", "code", code, "strategy", current)
		return
	}
	r.callbackSeen = true
	if r.callbackTimer != nil {
		r.callbackTimer.Stop()
	}
	r.mu.Unlock()

	r.emit(Event{Kind: EventCallback, Message: fmt.Sprintf("host result code %d", code)})
	r.verifyAfter(r.a.delays.PreferredData)
}

// switchTo issues a direct switch command. A command that fails outright is
// final; the host does not get a second chance through older strategies.
func (r *attemptRun) switchTo(ctx context.Context) step {
	sw, ok := r.host.(telephony.Switcher)
	err := r.prober.Invoke(ctx, telephony.OpSwitchTo, capability.LevelSwitching, func(ctx context.Context) error {
		if !ok {
			return telephony.ErrUnsupported
		}
		return sw.SwitchToSubscription(ctx, r.attempt.TargetID, func(code int) {
			r.logger.Debug("switch confirmation", "code", code)
		})
	})
	switch {
	case err == nil:
		r.emit(Event{Kind: EventEngaged})
		r.verifyAfter(r.a.delays.Switch)
		return stepEngaged
	case capability.Unavailable(err):
		r.skip(err)
		return stepNext
	default:
		r.finish(OutcomeFailure, "switch command failed: "+err.Error())
		return stepDone
	}
}

// legacyDefaults moves the data, SMS and voice defaults to the target. Any
// failure falls through to the enable strategy.
func (r *attemptRun) legacyDefaults(ctx context.Context) step {
	ds, ok := r.host.(telephony.DefaultSubscriptionSetter)
	if !ok {
		ds = unsupportedDefaults{}
	}
	commands := []struct {
		op  string
		set func(context.Context, int) error
	}{
		{telephony.OpSetDefaultData, ds.SetDefaultDataSubscription},
		{telephony.OpSetDefaultSMS, ds.SetDefaultSMSSubscription},
		{telephony.OpSetDefaultVoice, ds.SetDefaultVoiceSubscription},
	}
	for _, c := range commands {
		err := r.prober.Invoke(ctx, c.op, capability.LevelDefaultSubscriptions, func(ctx context.Context) error {
			return c.set(ctx, r.attempt.TargetID)
		})
		if err != nil {
			r.skip(err)
			return stepNext
		}
	}
	r.emit(Event{Kind: EventEngaged})
	r.verifyAfter(r.a.delays.Legacy)
	return stepEngaged
}

// enable is the last resort: turn the target subscription on.
func (r *attemptRun) enable(ctx context.Context) step {
	en, ok := r.host.(telephony.Enabler)
	err := r.prober.Invoke(ctx, telephony.OpSetEnabled, capability.LevelEmbedded, func(ctx context.Context) error {
		if !ok {
			return telephony.ErrUnsupported
		}
		return en.SetSubscriptionEnabled(ctx, r.attempt.TargetID, true)
	})
	switch {
	case err == nil:
		r.emit(Event{Kind: EventEngaged})
		r.verifyAfter(r.a.delays.Enable)
		return stepEngaged
	case capability.Unavailable(err):
		r.skip(err)
		return stepNext
	default:
		r.finish(OutcomeFailure, "enable command failed: "+err.Error())
		return stepDone
	}
}

// verifyAfter schedules the single read-back of the active subscription.
func (r *attemptRun) verifyAfter(d time.Duration) {
	r.mu.Lock()
	if r.finished || r.verifyTimer != nil {
		r.mu.Unlock()
		return
	}
	r.verifyTimer = time.AfterFunc(d, r.verify)
	r.mu.Unlock()

	r.emit(Event{Kind: EventVerifying, Message: fmt.Sprintf("reading back active subscription in %s", d)})
}

func (r *attemptRun) verify() {
	defer func() {
		if p := recover(); p != nil {
			r.finish(OutcomeFailure, fmt.Sprintf("verification panicked: %v", p))
		}
	}()

	baseline, err := activeSubscriptions(r.ctx, r.host)
	if err != nil {
		r.logger.Warn("verification read-back failed", "error", err)
		r.finish(OutcomeFailure, "verification read-back failed: "+err.Error())
		return
	}
	got := activeIDFrom(baseline)
	if got == r.attempt.TargetID {
		r.finish(OutcomeSuccess, "")
		return
	}
	r.finish(OutcomeFailure, fmt.Sprintf("host reports subscription %d active after settle delay", got))
}

func (r *attemptRun) armCallbackTimeout() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.callbackSeen || r.finished {
		return
	}
	timeout := r.a.callbackTimeout
	r.callbackTimer = time.AfterFunc(timeout, func() {
		r.finish(OutcomeUnverifiable, fmt.Sprintf("host callback not received within %s", timeout))
	})
}

// watch completes the attempt early if ctx is cancelled.
func (r *attemptRun) watch(ctx context.Context) {
	stop := context.AfterFunc(ctx, func() {
		r.finish(OutcomeUnverifiable, "cancelled: "+context.Cause(ctx).Error())
	})
	r.mu.Lock()
	r.stopWatch = stop
	r.mu.Unlock()
}

// finish records the outcome and calls complete. Only the first call has
// any effect.
func (r *attemptRun) finish(outcome Outcome, reason string) {
	r.once.Do(func() {
		r.mu.Lock()
		r.finished = true
		for _, t := range []*time.Timer{r.callbackTimer, r.verifyTimer} {
			if t != nil {
				t.Stop()
			}
		}
		stopWatch := r.stopWatch
		r.attempt.Outcome = outcome
		r.attempt.Reason = reason
		r.attempt.Finished = time.Now()
		snapshot := r.attempt
		snapshot.Strategies = slices.Clone(r.attempt.Strategies)
		r.mu.Unlock()

		if stopWatch != nil {
			stopWatch()
		}

		label := snapshot.Strategy
		if label == "" {
			label = "none"
		}
		r.logger.Info("activation complete",
			"outcome", string(outcome), "strategy", label, "elapsed", snapshot.Elapsed(), "reason", reason)
		r.a.recorder.ObserveActivation(label, outcome, snapshot.Elapsed())
		r.emit(Event{Kind: EventCompleted, Outcome: outcome, Message: reason})
		r.complete(snapshot)
	})
}

func (r *attemptRun) enter(i int, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempt.Index = i
	r.attempt.Strategy = name
}

func (r *attemptRun) skip(err error) {
	r.emit(Event{Kind: EventSkipped, Message: err.Error()})
}

func (r *attemptRun) isFinished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finished
}

func (r *attemptRun) hasCallback() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.callbackSeen
}

func (r *attemptRun) emit(ev Event) {
	r.mu.Lock()
	ev.AttemptID = r.attempt.ID
	ev.TargetID = r.attempt.TargetID
	if ev.Strategy == "" {
		ev.Strategy = r.attempt.Strategy
	}
	r.mu.Unlock()

	r.logger.Debug(string(ev.Kind), "strategy", ev.Strategy, "message", ev.Message)
	if r.a.onEvent != nil {
		r.a.onEvent(ev)
	}
}

// unsupportedDefaults stands in for hosts without the legacy setters.
type unsupportedDefaults struct{}

func (unsupportedDefaults) SetDefaultDataSubscription(context.Context, int) error {
	return telephony.ErrUnsupported
}

func (unsupportedDefaults) SetDefaultSMSSubscription(context.Context, int) error {
	return telephony.ErrUnsupported
}

func (unsupportedDefaults) SetDefaultVoiceSubscription(context.Context, int) error {
	return telephony.ErrUnsupported
}
