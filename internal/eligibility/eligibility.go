// Package eligibility decides which records need a remote update.
package eligibility

import (
	"time"

	"github.com/turbolytics/duesync/internal"
)

// Unprocessed is the processed flag value of a record awaiting update.
const Unprocessed = "No"

// IsEligible reports whether r is due at now and not yet processed.
// A record without a due timestamp is never eligible.
func IsEligible(r internal.Record, now time.Time) bool {
	return r.DueAt != nil &&
		!r.DueAt.After(now) &&
		r.ProcessedFlag == Unprocessed
}

// Filter returns the eligible records in input order, all evaluated against
// the same now.
func Filter(records []internal.Record, now time.Time) []internal.Record {
	var out []internal.Record
	for _, r := range records {
		if IsEligible(r, now) {
			out = append(out, r)
		}
	}
	return out
}
