package eligibility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/turbolytics/duesync/internal"
)

func at(t time.Time) *time.Time {
	return &t
}

func TestIsEligible(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		record internal.Record
		want   bool
	}{
		{"due in the past, unprocessed", internal.Record{DueAt: at(now.Add(-time.Hour)), ProcessedFlag: "No"}, true},
		{"due exactly now", internal.Record{DueAt: at(now), ProcessedFlag: "No"}, true},
		{"due in another zone before now", internal.Record{DueAt: at(now.Add(-time.Minute).In(time.FixedZone("x", 5*3600))), ProcessedFlag: "No"}, true},
		{"due in the future", internal.Record{DueAt: at(now.Add(time.Nanosecond)), ProcessedFlag: "No"}, false},
		{"already processed", internal.Record{DueAt: at(now.Add(-time.Hour)), ProcessedFlag: "Yes"}, false},
		{"flag differs in case", internal.Record{DueAt: at(now.Add(-time.Hour)), ProcessedFlag: "no"}, false},
		{"empty flag", internal.Record{DueAt: at(now.Add(-time.Hour))}, false},
		{"missing due timestamp", internal.Record{ProcessedFlag: "No"}, false},
		{"zero record", internal.Record{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsEligible(tt.record, now))
		})
	}
}

func TestFilter(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	records := []internal.Record{
		{ID: "a", DueAt: at(now.Add(-time.Hour)), ProcessedFlag: "No"},
		{ID: "b", DueAt: at(now.Add(time.Hour)), ProcessedFlag: "No"},
		{ID: "c", ProcessedFlag: "No"},
		{ID: "d", DueAt: at(now.Add(-48 * time.Hour)), ProcessedFlag: "No"},
		{ID: "e", DueAt: at(now.Add(-48 * time.Hour)), ProcessedFlag: "Yes"},
	}

	got := Filter(records, now)
	assert.Equal(t, []string{"a", "d"}, internal.IDs(got))
	assert.Empty(t, Filter(nil, now))
}
