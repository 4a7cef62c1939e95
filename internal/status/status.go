// Package status renders profiles and activation attempts for terminals.
package status

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dusk-indust/esimctl/internal/esim"
)

// WriteProfiles renders profiles as an aligned table. The active profile is
// marked with an asterisk.
func WriteProfiles(w io.Writer, profiles []esim.Profile) error {
	if len(profiles) == 0 {
		_, err := fmt.Fprintln(w, "no eSIM profiles found")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tNAME\tCARRIER\tICCID")
	for _, p := range profiles {
		marker := ""
		if p.Active {
			marker = "*"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n",
			marker, p.SubscriptionID, p.DisplayName, p.CarrierName, p.FormattedICCID())
	}
	return tw.Flush()
}

// DescribeProfile is a one-line description of p.
func DescribeProfile(p esim.Profile) string {
	return fmt.Sprintf("%s (%s, id %d, iccid %s)", p.DisplayName, p.CarrierName, p.SubscriptionID, p.FormattedICCID())
}

// SummarizeAttempt describes a completed activation attempt.
func SummarizeAttempt(at esim.Attempt) string {
	var b strings.Builder
	if at.Success() {
		fmt.Fprintf(&b, "switched to %d via %s", at.TargetID, at.Strategy)
	} else {
		fmt.Fprintf(&b, "switch to %d failed (%s)", at.TargetID, at.Outcome)
		if at.Strategy != "" {
			fmt.Fprintf(&b, " after %s", at.Strategy)
		}
	}
	fmt.Fprintf(&b, " in %s", at.Elapsed().Round(time.Millisecond))
	if at.Reason != "" {
		b.WriteString(": " + at.Reason)
	}
	return b.String()
}

// EventWriter returns an activation event handler printing each event on
// its own line.
func EventWriter(w io.Writer) func(esim.Event) {
	return func(ev esim.Event) {
		fmt.Fprintln(w, ev.String())
	}
}
