// Package esim discovers the embedded SIM profiles a host exposes and makes
// one of them the active subscription. Both engines degrade across hosts
// whose telephony primitives differ by platform level, vendor build and
// permission grant; neither ever returns a host error to its caller.
package esim

import "github.com/dusk-indust/esimctl/internal/telephony"

// NoSubscription is the active identifier reported when the host has no
// active subscription. It never matches a real subscription id.
const NoSubscription = -1

// Placeholders substituted for fields the host withholds.
const (
	UnknownICCID       = "Unknown"
	DefaultDisplayName = "eSIM Profile"
	UnknownCarrier     = "Unknown Carrier"
)

// Profile is an embedded subscription profile as seen by one discovery.
// Profiles are values; activation never mutates one, callers rediscover.
type Profile struct {
	SubscriptionID int    `json:"subscriptionId"`
	ICCID          string `json:"iccId"`
	DisplayName    string `json:"displayName"`
	CarrierName    string `json:"carrierName"`
	Embedded       bool   `json:"isEmbedded"`
	Active         bool   `json:"isActive"`
}

// FormattedICCID shortens long serials to their first and last four digits.
func (p Profile) FormattedICCID() string {
	if len(p.ICCID) > 10 {
		return p.ICCID[:4] + "..." + p.ICCID[len(p.ICCID)-4:]
	}
	return p.ICCID
}

func newProfile(info telephony.SubscriptionInfo, activeID int) Profile {
	return Profile{
		SubscriptionID: info.SubscriptionID,
		ICCID:          orDefault(info.ICCID, UnknownICCID),
		DisplayName:    orDefault(info.DisplayName, DefaultDisplayName),
		CarrierName:    orDefault(info.CarrierName, UnknownCarrier),
		Embedded:       true,
		Active:         info.SubscriptionID == activeID,
	}
}

func orDefault(s *string, def string) string {
	if s == nil || *s == "" {
		return def
	}
	return *s
}
