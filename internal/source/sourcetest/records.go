package sourcetest

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/turbolytics/duesync/internal/source"
)

// GenerateRecords builds n raw source records keyed by the attribute names
// of m. Roughly half are due before now, and a third are already processed.
// The same seed always yields the same records.
func GenerateRecords(n int, now time.Time, m source.FieldMap, seed uint64) []map[string]any {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	records := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		due := now.Add(time.Duration(rng.IntN(240)-120) * time.Hour).UTC()
		processed := "No"
		if rng.IntN(3) == 0 {
			processed = source.DefaultCompletedValue
		}

		rec := map[string]any{
			m.ID:            fmt.Sprintf("00000000-0000-0000-0000-%012d", i+1),
			m.Name:          fmt.Sprintf("Contact %d", i+1),
			m.Email:         fmt.Sprintf("contact%d@example.com", i+1),
			m.Phone:         fmt.Sprintf("+1 555 %04d", rng.IntN(10000)),
			m.Street:        fmt.Sprintf("%d Main Street", i+1),
			m.City:          fmt.Sprintf("%d Town", i%7+1),
			m.PostalCode:    fmt.Sprintf("%05d", rng.IntN(100000)),
			m.Country:       "US",
			m.Amount:        float64(rng.IntN(1000000)) / 100,
			m.Quantity:      rng.IntN(50),
			m.Latitude:      rng.Float64()*180 - 90,
			m.Longitude:     rng.Float64()*360 - 180,
			m.DueAt:         due.Format(time.RFC3339),
			m.ProcessedFlag: processed,
		}
		// sparse optionals, the way real sources omit empty columns
		if rng.IntN(5) == 0 {
			rec[m.Latitude] = nil
			rec[m.Longitude] = nil
		}
		if rng.IntN(10) == 0 {
			delete(rec, m.DueAt)
		}
		delete(rec, "")
		records = append(records, rec)
	}
	return records
}
