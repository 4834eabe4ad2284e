package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSummary_Message(t *testing.T) {
	testCases := []struct {
		name     string
		summary  Summary
		expected string
	}{
		{
			name: "completed",
			summary: Summary{
				State:    "completed",
				Fetched:  5,
				Duration: 1234567 * time.Microsecond,
			},
			expected: "Successfully processed 5 records. Time Taken: 1.235s",
		},
		{
			name: "completed with nothing fetched",
			summary: Summary{
				State:    "completed",
				Duration: 40 * time.Millisecond,
			},
			expected: "Successfully processed 0 records. Time Taken: 40ms",
		},
		{
			name: "failed",
			summary: Summary{
				State: "failed",
				Stage: "fetching",
				Error: "source unavailable",
			},
			expected: "Sync failed during fetching: source unavailable",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.summary.Message())
		})
	}
}
