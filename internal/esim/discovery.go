package esim

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/esimctl/internal/capability"
	"github.com/dusk-indust/esimctl/internal/telephony"
)

// enumeration is one optional subscription listing, merged after the
// baseline in table order.
type enumeration struct {
	op   string
	min  capability.Level
	list func(ctx context.Context, host telephony.Host) ([]telephony.SubscriptionInfo, error)
}

// enumerations are ordered from least to most permissive.
var enumerations = []enumeration{
	{
		op:  telephony.OpAvailableSubscriptions,
		min: capability.LevelEmbedded,
		list: func(ctx context.Context, host telephony.Host) ([]telephony.SubscriptionInfo, error) {
			e, ok := host.(telephony.AvailableEnumerator)
			if !ok {
				return nil, telephony.ErrUnsupported
			}
			return e.AvailableSubscriptions(ctx)
		},
	},
	{
		op:  telephony.OpAccessibleSubscriptions,
		min: capability.LevelSwitching,
		list: func(ctx context.Context, host telephony.Host) ([]telephony.SubscriptionInfo, error) {
			e, ok := host.(telephony.AccessibleEnumerator)
			if !ok {
				return nil, telephony.ErrUnsupported
			}
			return e.AccessibleSubscriptions(ctx)
		},
	},
	{
		op:  telephony.OpAllSubscriptions,
		min: capability.LevelSubscriptions,
		list: func(ctx context.Context, host telephony.Host) ([]telephony.SubscriptionInfo, error) {
			e, ok := host.(telephony.AllEnumerator)
			if !ok {
				return nil, telephony.ErrUnsupported
			}
			return e.AllSubscriptions(ctx)
		},
	},
}

// Discoverer enumerates the embedded profiles a host exposes. It keeps no
// state between calls and is safe for concurrent use.
type Discoverer struct {
	settings
	logger *slog.Logger
}

// NewDiscoverer creates a Discoverer.
func NewDiscoverer(opts ...Option) *Discoverer {
	s := newSettings(opts)
	return &Discoverer{
		settings: s,
		logger:   s.logger.With("component", "discovery"),
	}
}

// Discover returns the host's embedded profiles: baseline subscriptions
// first, then those only the optional enumerations report, each id once.
// Physical SIMs are dropped. The result is empty when the host denies
// phone-state access or the baseline query fails; a failing optional
// enumeration only loses its own contribution.
func (d *Discoverer) Discover(ctx context.Context, host telephony.Host) []Profile {
	level := hostLevel(ctx, host, d.logger)
	if !level.AtLeast(capability.LevelSubscriptions) {
		d.logger.Warn("host has no subscription service", "level", level.String())
		return nil
	}
	if permissionDenied(ctx, host, d.logger) {
		return nil
	}

	baseline, err := activeSubscriptions(ctx, host)
	if err != nil {
		d.logger.Error("baseline subscription query failed", "error", err)
		return nil
	}
	d.logger.Debug("baseline subscriptions", "count", len(baseline))

	extras := d.enumerate(ctx, host, d.prober(level))
	merged := mergeSubscriptions(append([][]telephony.SubscriptionInfo{baseline}, extras...)...)
	activeID := activeIDFrom(baseline)

	var profiles []Profile
	for _, info := range merged {
		if !info.Embedded {
			continue
		}
		profiles = append(profiles, newProfile(info, activeID))
	}

	d.logger.Debug("discovery complete",
		"merged", len(merged), "profiles", len(profiles), "active", activeID)
	return profiles
}

// ActiveID re-reads the host's active subscription id. It returns
// NoSubscription when nothing is active or the query fails.
func (d *Discoverer) ActiveID(ctx context.Context, host telephony.Host) int {
	return queryActiveID(ctx, host, d.logger)
}

// enumerate runs the optional enumerations concurrently. Results keep table
// order so the merge is deterministic; an unavailable enumeration yields nil.
func (d *Discoverer) enumerate(ctx context.Context, host telephony.Host, prober *capability.Prober) [][]telephony.SubscriptionInfo {
	results := make([][]telephony.SubscriptionInfo, len(enumerations))
	g, gctx := errgroup.WithContext(ctx)
	for i, e := range enumerations {
		g.Go(func() error {
			infos, ok := capability.Probe(gctx, prober, e.op, e.min, func(ctx context.Context) ([]telephony.SubscriptionInfo, error) {
				return e.list(ctx, host)
			})
			if ok {
				d.logger.Debug("enumeration merged", "op", e.op, "count", len(infos))
				results[i] = infos
			}
			return nil
		})
	}
	_ = g.Wait() // probes never fail the group
	return results
}

// mergeSubscriptions concatenates sets, keeping the first record seen for
// each subscription id.
func mergeSubscriptions(sets ...[]telephony.SubscriptionInfo) []telephony.SubscriptionInfo {
	seen := make(map[int]bool)
	var merged []telephony.SubscriptionInfo
	for _, set := range sets {
		for _, info := range set {
			if seen[info.SubscriptionID] {
				continue
			}
			seen[info.SubscriptionID] = true
			merged = append(merged, info)
		}
	}
	return merged
}
