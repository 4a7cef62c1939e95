package telephony

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/esimctl/internal/capability"
)

// Compile-time checks: the simulated host exposes every optional primitive.
var (
	_ Host                      = (*SimHost)(nil)
	_ PermissionChecker         = (*SimHost)(nil)
	_ AvailableEnumerator       = (*SimHost)(nil)
	_ AccessibleEnumerator      = (*SimHost)(nil)
	_ AllEnumerator             = (*SimHost)(nil)
	_ PreferredDataSetter       = (*SimHost)(nil)
	_ Switcher                  = (*SimHost)(nil)
	_ DefaultSubscriptionSetter = (*SimHost)(nil)
	_ Enabler                   = (*SimHost)(nil)
)

// Mode controls how the simulated host answers one operation.
type Mode string

const (
	// ModeOK performs the operation normally.
	ModeOK Mode = "ok"
	// ModeUnsupported reports ErrUnsupported.
	ModeUnsupported Mode = "unsupported"
	// ModeDenied reports ErrPermissionDenied.
	ModeDenied Mode = "denied"
	// ModeFail reports a generic host failure.
	ModeFail Mode = "fail"
	// ModeIneffective accepts a command without changing any state.
	ModeIneffective Mode = "ineffective"
	// ModeSilent accepts a command but never invokes its callback.
	ModeSilent Mode = "silent"
)

// Enumeration names accepted in SimSubscription.ListedIn.
const (
	ListAvailable  = "available"
	ListAccessible = "accessible"
	ListAll        = "all"
)

// SimSubscription is one subscription held by the simulated host.
type SimSubscription struct {
	SubscriptionInfo `yaml:",inline"`

	// Active marks the subscription as currently enabled.
	Active bool `yaml:"active"`

	// ListedIn names the extra enumerations that report this subscription.
	// Nil means all of them.
	ListedIn []string `yaml:"listed_in,omitempty"`
}

// Fixture describes a simulated host in YAML.
type Fixture struct {
	PlatformVersion  string            `yaml:"platform_version,omitempty"`
	Level            string            `yaml:"level,omitempty"`
	PermissionDenied bool              `yaml:"permission_denied,omitempty"`
	Primary          int               `yaml:"primary,omitempty"`
	SettleDelay      time.Duration     `yaml:"settle_delay,omitempty"`
	CallbackDelay    time.Duration     `yaml:"callback_delay,omitempty"`
	Operations       map[string]Mode   `yaml:"operations,omitempty"`
	Subscriptions    []SimSubscription `yaml:"subscriptions"`
}

// LoadFixture reads a simulated host description from a YAML file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("telephony: read fixture: %w", err)
	}
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("telephony: parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// SimHost is an in-memory telephony subsystem driven by a Fixture. Mutating
// commands take effect after the fixture's settle delay, which lets callers
// exercise delayed verification. It is safe for concurrent use.
type SimHost struct {
	mu               sync.Mutex
	level            capability.Level
	permissionDenied bool
	primary          int
	settle           time.Duration
	callbackDelay    time.Duration
	modes            map[string]Mode
	subs             []SimSubscription
	calls            []string
}

// NewSimHost builds a simulated host from f. Level takes precedence over
// PlatformVersion; with neither set the host runs at the highest level.
func NewSimHost(f Fixture) (*SimHost, error) {
	level := capability.LevelPreferredData
	var err error
	switch {
	case f.Level != "":
		level, err = capability.ParseLevel(f.Level)
	case f.PlatformVersion != "":
		level, err = capability.ParseVersion(f.PlatformVersion)
	}
	if err != nil {
		return nil, fmt.Errorf("telephony: fixture level: %w", err)
	}

	seen := make(map[int]bool, len(f.Subscriptions))
	for _, s := range f.Subscriptions {
		if seen[s.SubscriptionID] {
			return nil, fmt.Errorf("telephony: fixture: duplicate subscription id %d", s.SubscriptionID)
		}
		seen[s.SubscriptionID] = true
	}

	h := &SimHost{
		level:            level,
		permissionDenied: f.PermissionDenied,
		primary:          f.Primary,
		settle:           f.SettleDelay,
		callbackDelay:    f.CallbackDelay,
		modes:            make(map[string]Mode, len(f.Operations)),
		subs:             slices.Clone(f.Subscriptions),
	}
	for op, m := range f.Operations {
		h.modes[op] = m
	}
	if h.primary == 0 {
		for _, s := range h.subs {
			if s.Active {
				h.primary = s.SubscriptionID
				break
			}
		}
	}
	return h, nil
}

// NewSimHostFromFile loads a fixture file and builds a simulated host.
func NewSimHostFromFile(path string) (*SimHost, error) {
	f, err := LoadFixture(path)
	if err != nil {
		return nil, err
	}
	return NewSimHost(*f)
}

// SetMode changes how op is answered from now on.
func (h *SimHost) SetMode(op string, m Mode) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.modes[op] = m
}

// SetPermissionDenied toggles the host-wide permission denial.
func (h *SimHost) SetPermissionDenied(denied bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.permissionDenied = denied
}

// Calls returns every operation invoked so far, in order.
func (h *SimHost) Calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.calls)
}

// CommandCalls returns only the mutating operations invoked so far.
func (h *SimHost) CommandCalls() []string {
	var cmds []string
	for _, c := range h.Calls() {
		switch c {
		case OpSetPreferredData, OpSwitchTo, OpSetDefaultData, OpSetDefaultSMS, OpSetDefaultVoice, OpSetEnabled:
			cmds = append(cmds, c)
		}
	}
	return cmds
}

// PrimaryID returns the id the host currently reports as active, or -1.
func (h *SimHost) PrimaryID() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if i := h.indexOf(h.primary); i < 0 || !h.subs[i].Active {
		return -1
	}
	return h.primary
}

// Level implements Host.
func (h *SimHost) Level(context.Context) (capability.Level, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.level, nil
}

// CheckPermission implements PermissionChecker.
func (h *SimHost) CheckPermission(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.enter(OpCheckPermission)
	return err
}

// ActiveSubscriptions implements Host. The primary subscription comes first.
func (h *SimHost) ActiveSubscriptions(context.Context) ([]SubscriptionInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := h.enter(OpActiveSubscriptions); err != nil {
		return nil, err
	}

	var out []SubscriptionInfo
	if i := h.indexOf(h.primary); i >= 0 && h.subs[i].Active {
		out = append(out, h.subs[i].SubscriptionInfo)
	}
	for _, s := range h.subs {
		if s.Active && s.SubscriptionID != h.primary {
			out = append(out, s.SubscriptionInfo)
		}
	}
	return out, nil
}

// AvailableSubscriptions implements AvailableEnumerator.
func (h *SimHost) AvailableSubscriptions(context.Context) ([]SubscriptionInfo, error) {
	return h.listed(OpAvailableSubscriptions, ListAvailable)
}

// AccessibleSubscriptions implements AccessibleEnumerator.
func (h *SimHost) AccessibleSubscriptions(context.Context) ([]SubscriptionInfo, error) {
	return h.listed(OpAccessibleSubscriptions, ListAccessible)
}

// AllSubscriptions implements AllEnumerator.
func (h *SimHost) AllSubscriptions(context.Context) ([]SubscriptionInfo, error) {
	return h.listed(OpAllSubscriptions, ListAll)
}

// SetPreferredDataSubscription implements PreferredDataSetter. done is
// invoked with code 0 after the callback delay unless the operation is
// ModeSilent.
func (h *SimHost) SetPreferredDataSubscription(_ context.Context, id int, _ bool, done func(code int)) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	mode, err := h.enter(OpSetPreferredData)
	if err != nil {
		return err
	}
	if err := h.scheduleActivate(id, mode); err != nil {
		return err
	}
	if mode != ModeSilent && done != nil {
		time.AfterFunc(h.callbackDelay, func() { done(0) })
	}
	return nil
}

// SwitchToSubscription implements Switcher.
func (h *SimHost) SwitchToSubscription(_ context.Context, id int, confirm func(code int)) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	mode, err := h.enter(OpSwitchTo)
	if err != nil {
		return err
	}
	if err := h.scheduleActivate(id, mode); err != nil {
		return err
	}
	if mode != ModeSilent && confirm != nil {
		time.AfterFunc(h.callbackDelay, func() { confirm(0) })
	}
	return nil
}

// SetDefaultDataSubscription implements DefaultSubscriptionSetter. Moving
// the data default is what makes the target the reported active one.
func (h *SimHost) SetDefaultDataSubscription(_ context.Context, id int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	mode, err := h.enter(OpSetDefaultData)
	if err != nil {
		return err
	}
	return h.scheduleActivate(id, mode)
}

// SetDefaultSMSSubscription implements DefaultSubscriptionSetter.
func (h *SimHost) SetDefaultSMSSubscription(_ context.Context, id int) error {
	return h.recordOnly(OpSetDefaultSMS, id)
}

// SetDefaultVoiceSubscription implements DefaultSubscriptionSetter.
func (h *SimHost) SetDefaultVoiceSubscription(_ context.Context, id int) error {
	return h.recordOnly(OpSetDefaultVoice, id)
}

// SetSubscriptionEnabled implements Enabler.
func (h *SimHost) SetSubscriptionEnabled(_ context.Context, id int, enabled bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	mode, err := h.enter(OpSetEnabled)
	if err != nil {
		return err
	}
	if enabled {
		return h.scheduleActivate(id, mode)
	}
	i := h.indexOf(id)
	if i < 0 {
		return fmt.Errorf("telephony: %s: unknown subscription %d", OpSetEnabled, id)
	}
	if mode != ModeIneffective {
		h.after(func() { h.subs[i].Active = false })
	}
	return nil
}

// enter records op and applies its configured mode. Callers hold h.mu.
func (h *SimHost) enter(op string) (Mode, error) {
	h.calls = append(h.calls, op)
	if h.permissionDenied {
		return "", fmt.Errorf("telephony: %s: %w", op, ErrPermissionDenied)
	}
	mode := h.modes[op]
	switch mode {
	case ModeUnsupported:
		return mode, fmt.Errorf("telephony: %s: %w", op, ErrUnsupported)
	case ModeDenied:
		return mode, fmt.Errorf("telephony: %s: %w", op, ErrPermissionDenied)
	case ModeFail:
		return mode, fmt.Errorf("telephony: %s: host command failed", op)
	case "":
		return ModeOK, nil
	}
	return mode, nil
}

func (h *SimHost) recordOnly(op string, id int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := h.enter(op); err != nil {
		return err
	}
	if h.indexOf(id) < 0 {
		return fmt.Errorf("telephony: %s: unknown subscription %d", op, id)
	}
	return nil
}

func (h *SimHost) listed(op, list string) ([]SubscriptionInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := h.enter(op); err != nil {
		return nil, err
	}
	var out []SubscriptionInfo
	for _, s := range h.subs {
		if s.ListedIn == nil || slices.Contains(s.ListedIn, list) {
			out = append(out, s.SubscriptionInfo)
		}
	}
	return out, nil
}

// scheduleActivate makes id the primary subscription after the settle delay.
// Only one embedded subscription is active at a time. Callers hold h.mu.
func (h *SimHost) scheduleActivate(id int, mode Mode) error {
	i := h.indexOf(id)
	if i < 0 {
		return fmt.Errorf("telephony: unknown subscription %d", id)
	}
	if mode == ModeIneffective {
		return nil
	}
	h.after(func() {
		if h.subs[i].Embedded {
			for j := range h.subs {
				if h.subs[j].Embedded {
					h.subs[j].Active = false
				}
			}
		}
		h.subs[i].Active = true
		h.primary = id
	})
	return nil
}

// after runs fn under h.mu once the settle delay elapses. With no delay fn
// runs immediately; callers already hold h.mu in that case.
func (h *SimHost) after(fn func()) {
	if h.settle <= 0 {
		fn()
		return
	}
	time.AfterFunc(h.settle, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		fn()
	})
}

func (h *SimHost) indexOf(id int) int {
	for i, s := range h.subs {
		if s.SubscriptionID == id {
			return i
		}
	}
	return -1
}
