package coordinator

import (
	"github.com/turbolytics/duesync/internal"
	"github.com/turbolytics/duesync/internal/dispatcher"
)

// Reconcile returns a copy of records where every record the dispatcher
// updated carries completedValue as its processed flag. records is not
// modified.
func Reconcile(records []internal.Record, result dispatcher.Result, completedValue string) []internal.Record {
	updated := make(map[string]struct{}, len(result.Outcomes))
	for _, id := range result.UpdatedIDs() {
		updated[id] = struct{}{}
	}

	out := make([]internal.Record, len(records))
	for i, r := range records {
		if _, ok := updated[r.ID]; ok {
			r.ProcessedFlag = completedValue
		}
		out[i] = r
	}
	return out
}
