package esim

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/esimctl/internal/capability"
	"github.com/dusk-indust/esimctl/internal/telephony"
)

func fixturePath(name string) string {
	return filepath.Join("..", "..", "testdata", "hosts", name)
}

func loadSim(t *testing.T, name string) *telephony.SimHost {
	t.Helper()
	h, err := telephony.NewSimHostFromFile(fixturePath(name))
	require.NoError(t, err)
	return h
}

func info(id int, embedded bool) telephony.SubscriptionInfo {
	return telephony.SubscriptionInfo{SubscriptionID: id, Embedded: embedded}
}

func profileIDs(ps []Profile) []int {
	out := make([]int, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.SubscriptionID)
	}
	return out
}

// scriptedHost is a host whose answers are fixed up front. It exposes the
// enumeration primitives but no commands.
type scriptedHost struct {
	level       capability.Level
	levelErr    error
	baseline    []telephony.SubscriptionInfo
	baselineErr error
	available   []telephony.SubscriptionInfo
	accessible  []telephony.SubscriptionInfo
	all         []telephony.SubscriptionInfo
	listErr     error
	panicOn     string

	mu    sync.Mutex
	calls []string
}

func (h *scriptedHost) record(op string) {
	h.mu.Lock()
	h.calls = append(h.calls, op)
	h.mu.Unlock()
	if h.panicOn == op {
		panic("scripted panic in " + op)
	}
}

func (h *scriptedHost) Calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

func (h *scriptedHost) Level(context.Context) (capability.Level, error) {
	if h.panicOn == telephony.OpLevel {
		panic("scripted panic in " + telephony.OpLevel)
	}
	return h.level, h.levelErr
}

func (h *scriptedHost) ActiveSubscriptions(context.Context) ([]telephony.SubscriptionInfo, error) {
	h.record(telephony.OpActiveSubscriptions)
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.baseline, h.baselineErr
}

func (h *scriptedHost) AvailableSubscriptions(context.Context) ([]telephony.SubscriptionInfo, error) {
	h.record(telephony.OpAvailableSubscriptions)
	return h.available, h.listErr
}

func (h *scriptedHost) AccessibleSubscriptions(context.Context) ([]telephony.SubscriptionInfo, error) {
	h.record(telephony.OpAccessibleSubscriptions)
	return h.accessible, h.listErr
}

func (h *scriptedHost) AllSubscriptions(context.Context) ([]telephony.SubscriptionInfo, error) {
	h.record(telephony.OpAllSubscriptions)
	return h.all, h.listErr
}

// commandHost wraps a scripted host with activation commands whose results
// are controlled per test. With activate set, a successful command makes the
// target the only active subscription immediately.
type commandHost struct {
	*scriptedHost

	switchErr    error
	enableErr    error
	defaultsErr  error
	preferredErr error
	callback     bool // invoke the preferred data callback synchronously
	holdCallback bool // keep the preferred data callback for takeCallback
	activate     bool // make the target active when a command succeeds

	held func(int)
}

// takeCallback returns the preferred data callback kept by holdCallback.
func (h *commandHost) takeCallback() func(int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	done := h.held
	h.held = nil
	return done
}

func (h *commandHost) makeActive(id int) {
	if !h.activate {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.baseline = []telephony.SubscriptionInfo{info(id, true)}
}

func (h *commandHost) SetPreferredDataSubscription(_ context.Context, id int, _ bool, done func(int)) error {
	h.record(telephony.OpSetPreferredData)
	if h.holdCallback {
		h.mu.Lock()
		h.held = done
		h.mu.Unlock()
	}
	if h.callback {
		h.makeActive(id)
		done(0)
	}
	return h.preferredErr
}

func (h *commandHost) SwitchToSubscription(_ context.Context, id int, _ func(int)) error {
	h.record(telephony.OpSwitchTo)
	if h.switchErr == nil {
		h.makeActive(id)
	}
	return h.switchErr
}

func (h *commandHost) SetDefaultDataSubscription(_ context.Context, id int) error {
	h.record(telephony.OpSetDefaultData)
	if h.defaultsErr == nil {
		h.makeActive(id)
	}
	return h.defaultsErr
}

func (h *commandHost) SetDefaultSMSSubscription(context.Context, int) error {
	h.record(telephony.OpSetDefaultSMS)
	return h.defaultsErr
}

func (h *commandHost) SetDefaultVoiceSubscription(context.Context, int) error {
	h.record(telephony.OpSetDefaultVoice)
	return h.defaultsErr
}

func (h *commandHost) SetSubscriptionEnabled(_ context.Context, id int, _ bool) error {
	h.record(telephony.OpSetEnabled)
	if h.enableErr == nil {
		h.makeActive(id)
	}
	return h.enableErr
}

var errHost = errors.New("host exploded")
