package capability

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Level describes the telephony capability tier of the running host.
// Every probe and activation strategy declares the minimum Level at which its
// host primitive is expected to exist.
type Level int

const (
	// LevelNone has no subscription service at all.
	LevelNone Level = iota

	// LevelSubscriptions exposes the baseline active-subscription query and
	// the hidden "all subscriptions" enumeration.
	LevelSubscriptions

	// LevelDefaultSubscriptions adds the legacy per-channel default
	// data/SMS/voice setters.
	LevelDefaultSubscriptions

	// LevelEmbedded adds the "available" enumeration and set-enabled.
	LevelEmbedded

	// LevelSwitching adds the "accessible" enumeration and switch-to.
	LevelSwitching

	// LevelPreferredData adds set-preferred-data with an async callback.
	LevelPreferredData
)

func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelSubscriptions:
		return "subscriptions"
	case LevelDefaultSubscriptions:
		return "default-subscriptions"
	case LevelEmbedded:
		return "embedded"
	case LevelSwitching:
		return "switching"
	case LevelPreferredData:
		return "preferred-data"
	default:
		return "unknown"
	}
}

// AtLeast reports whether l satisfies the minimum level min.
func (l Level) AtLeast(min Level) bool {
	return l >= min
}

// platformLevels maps platform release versions onto capability levels,
// highest first.
var platformLevels = []struct {
	constraint string
	level      Level
}{
	{">= 11", LevelPreferredData},
	{">= 10", LevelSwitching},
	{">= 9", LevelEmbedded},
	{">= 7", LevelDefaultSubscriptions},
	{">= 5.1", LevelSubscriptions},
}

// ParseVersion converts a host platform release version ("9", "10",
// "11.0.1") into a capability Level. Versions older than the first release
// with a subscription service map to LevelNone.
func ParseVersion(version string) (Level, error) {
	v, err := semver.NewVersion(strings.TrimSpace(version))
	if err != nil {
		return LevelNone, fmt.Errorf("capability: parse platform version %q: %w", version, err)
	}
	for _, pl := range platformLevels {
		c, err := semver.NewConstraint(pl.constraint)
		if err != nil {
			return LevelNone, fmt.Errorf("capability: constraint %q: %w", pl.constraint, err)
		}
		if c.Check(v) {
			return pl.level, nil
		}
	}
	return LevelNone, nil
}

// ParseLevel accepts a level name ("switching"), an indexed level ("level4")
// or a platform version ("10.0") and returns the matching Level.
func ParseLevel(s string) (Level, error) {
	s = strings.TrimSpace(s)
	for l := LevelNone; l <= LevelPreferredData; l++ {
		if strings.EqualFold(s, l.String()) {
			return l, nil
		}
	}
	if strings.HasPrefix(s, "level") {
		n, err := strconv.Atoi(strings.TrimPrefix(s, "level"))
		if err == nil && n >= int(LevelNone) && n <= int(LevelPreferredData) {
			return Level(n), nil
		}
	}
	return ParseVersion(s)
}
