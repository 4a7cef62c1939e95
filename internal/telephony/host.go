// Package telephony defines the boundary to the host telephony subsystem:
// the subscription record it reports and the query and command primitives
// it may expose. Only the baseline query is mandatory; every other primitive
// is an optional interface discovered at runtime.
package telephony

import (
	"context"
	"errors"

	"github.com/dusk-indust/esimctl/internal/capability"
)

// Sentinel errors reported by host bindings.
var (
	// ErrUnsupported means the host does not expose the operation.
	ErrUnsupported = capability.ErrUnsupported

	// ErrPermissionDenied means the host refused the call.
	ErrPermissionDenied = errors.New("telephony: permission denied")

	// ErrNoSubscriptionService means the host has no subscription manager.
	ErrNoSubscriptionService = errors.New("telephony: subscription service unavailable")
)

// SubscriptionInfo is one subscription record as reported by the host.
// Pointer fields are nil when the host withholds or lacks the value.
type SubscriptionInfo struct {
	SubscriptionID int     `json:"subscriptionId" yaml:"id"`
	ICCID          *string `json:"iccId,omitempty" yaml:"icc_id,omitempty"`
	DisplayName    *string `json:"displayName,omitempty" yaml:"display_name,omitempty"`
	CarrierName    *string `json:"carrierName,omitempty" yaml:"carrier_name,omitempty"`
	Embedded       bool    `json:"isEmbedded" yaml:"embedded"`
}

// Host is the mandatory surface of a telephony binding.
type Host interface {
	// Level reports the host's capability level at call time.
	Level(ctx context.Context) (capability.Level, error)

	// ActiveSubscriptions is the baseline enumeration, ordered with the
	// currently active subscription first.
	ActiveSubscriptions(ctx context.Context) ([]SubscriptionInfo, error)
}

// PermissionChecker is implemented by hosts that can report whether the
// caller holds phone-state permission before any primitive is used.
type PermissionChecker interface {
	CheckPermission(ctx context.Context) error
}

// AvailableEnumerator lists subscriptions available on the device,
// including inactive embedded profiles.
type AvailableEnumerator interface {
	AvailableSubscriptions(ctx context.Context) ([]SubscriptionInfo, error)
}

// AccessibleEnumerator lists subscriptions the caller is allowed to manage.
type AccessibleEnumerator interface {
	AccessibleSubscriptions(ctx context.Context) ([]SubscriptionInfo, error)
}

// AllEnumerator lists every subscription the host has ever seen.
type AllEnumerator interface {
	AllSubscriptions(ctx context.Context) ([]SubscriptionInfo, error)
}

// PreferredDataSetter sets the preferred data subscription. The host reports
// a result code through done asynchronously; the code is not trustworthy.
type PreferredDataSetter interface {
	SetPreferredDataSubscription(ctx context.Context, id int, needValidation bool, done func(code int)) error
}

// Switcher asks the host to switch to an embedded subscription. The host may
// report a confirmation code through confirm; it may also never call it.
type Switcher interface {
	SwitchToSubscription(ctx context.Context, id int, confirm func(code int)) error
}

// DefaultSubscriptionSetter is the legacy per-channel default selector.
type DefaultSubscriptionSetter interface {
	SetDefaultDataSubscription(ctx context.Context, id int) error
	SetDefaultSMSSubscription(ctx context.Context, id int) error
	SetDefaultVoiceSubscription(ctx context.Context, id int) error
}

// Enabler toggles a subscription on or off.
type Enabler interface {
	SetSubscriptionEnabled(ctx context.Context, id int, enabled bool) error
}

// Operation names used for probing, logging and the RPC method table.
const (
	OpCheckPermission         = "check-permission"
	OpLevel                   = "level"
	OpActiveSubscriptions     = "enumerate-active"
	OpAvailableSubscriptions  = "enumerate-available"
	OpAccessibleSubscriptions = "enumerate-accessible"
	OpAllSubscriptions        = "enumerate-all"
	OpSetPreferredData        = "set-preferred-data"
	OpSwitchTo                = "switch-to"
	OpSetDefaultData          = "set-default-data"
	OpSetDefaultSMS           = "set-default-sms"
	OpSetDefaultVoice         = "set-default-voice"
	OpSetEnabled              = "set-enabled"
)

// StringPtr returns a pointer to s; convenient for building SubscriptionInfo.
func StringPtr(s string) *string {
	return &s
}
