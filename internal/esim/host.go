package esim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dusk-indust/esimctl/internal/capability"
	"github.com/dusk-indust/esimctl/internal/telephony"
)

// hostLevel reads the host's capability level. A host that cannot report
// its level is treated as having none.
func hostLevel(ctx context.Context, host telephony.Host, logger *slog.Logger) capability.Level {
	var level capability.Level
	err := safely(telephony.OpLevel, func() (err error) {
		level, err = host.Level(ctx)
		return err
	})
	if err != nil {
		logger.Warn("host level unavailable", "error", err)
		return capability.LevelNone
	}
	return level
}

// permissionDenied reports whether the host refuses phone-state access
// outright. Hosts without a permission check are assumed to allow it.
func permissionDenied(ctx context.Context, host telephony.Host, logger *slog.Logger) bool {
	pc, ok := host.(telephony.PermissionChecker)
	if !ok {
		return false
	}
	err := safely(telephony.OpCheckPermission, func() error {
		return pc.CheckPermission(ctx)
	})
	switch {
	case err == nil:
		return false
	case errors.Is(err, telephony.ErrPermissionDenied):
		logger.Error("phone-state permission denied", "error", err)
		return true
	default:
		logger.Warn("permission check failed, continuing", "error", err)
		return false
	}
}

// activeIDFrom derives the active subscription id from a baseline
// enumeration: its first entry, or NoSubscription.
func activeIDFrom(baseline []telephony.SubscriptionInfo) int {
	if len(baseline) == 0 {
		return NoSubscription
	}
	return baseline[0].SubscriptionID
}

// queryActiveID re-reads the baseline enumeration and derives the active id.
// Activation verification performs the same read but keeps the error.
func queryActiveID(ctx context.Context, host telephony.Host, logger *slog.Logger) int {
	baseline, err := activeSubscriptions(ctx, host)
	if err != nil {
		logger.Warn("active subscription query failed", "error", err)
		return NoSubscription
	}
	return activeIDFrom(baseline)
}

// activeSubscriptions runs the baseline enumeration with panics recovered.
func activeSubscriptions(ctx context.Context, host telephony.Host) ([]telephony.SubscriptionInfo, error) {
	var infos []telephony.SubscriptionInfo
	err := safely(telephony.OpActiveSubscriptions, func() (err error) {
		infos, err = host.ActiveSubscriptions(ctx)
		return err
	})
	return infos, err
}

// safely runs a host call that bypasses the prober, converting a panic
// into an error so it never escapes the engines.
func safely(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", op, r)
		}
	}()
	return fn()
}
