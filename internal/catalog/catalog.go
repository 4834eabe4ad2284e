package catalog

import (
	"fmt"
	"time"
)

/*
The summary is the record of one sync run: what was fetched, what was
updated on the source, where the archive went and how long it took.
It is built by the coordinator once the run reaches a terminal state and is
not modified afterwards.
*/

type Failure struct {
	ID         string `json:"id"`
	Attempts   int    `json:"attempts"`
	LastStatus int    `json:"last_status,omitempty"`
	Error      string `json:"error"`
}

// Summary represents the outcome of a single run.
type Summary struct {
	RunID string `json:"run_id"`
	State string `json:"state"`

	// Stage and Error are only set when the run failed.
	Stage string `json:"stage,omitempty"`
	Error string `json:"error,omitempty"`

	Fetched  int       `json:"fetched"`
	Eligible int       `json:"eligible"`
	Updated  int       `json:"updated"`
	Failed   int       `json:"failed"`
	Failures []Failure `json:"failures,omitempty"`

	Location string `json:"location,omitempty"`

	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
}

func (s Summary) Completed() bool {
	return s.State == "completed"
}

// Message is the human readable outcome returned to whoever triggered the run.
func (s Summary) Message() string {
	if !s.Completed() {
		return fmt.Sprintf("Sync failed during %s: %s", s.Stage, s.Error)
	}
	return fmt.Sprintf(
		"Successfully processed %d records. Time Taken: %s",
		s.Fetched,
		s.Duration.Round(time.Millisecond),
	)
}
