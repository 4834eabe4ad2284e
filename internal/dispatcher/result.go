package dispatcher

import "fmt"

// UpdateFailure records a record whose update exhausted its attempts.
type UpdateFailure struct {
	ID         string `json:"id"`
	Attempts   int    `json:"attempts"`
	LastStatus int    `json:"last_status,omitempty"`
	Err        error  `json:"-"`
}

func (f UpdateFailure) Error() string {
	return fmt.Sprintf("update %s failed after %d attempts (last status %d): %v",
		f.ID, f.Attempts, f.LastStatus, f.Err)
}

func (f UpdateFailure) Unwrap() error {
	return f.Err
}

// Outcome is the result of updating one record. Failure is nil when the
// record was updated.
type Outcome struct {
	ID       string
	Attempts int
	Failure  *UpdateFailure
}

func (o Outcome) Updated() bool {
	return o.Failure == nil
}

// Result holds one Outcome per dispatched id, in dispatch order.
type Result struct {
	Outcomes []Outcome
}

func (r Result) Updated() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Updated() {
			n++
		}
	}
	return n
}

func (r Result) Failed() int {
	return len(r.Outcomes) - r.Updated()
}

func (r Result) Failures() []UpdateFailure {
	var out []UpdateFailure
	for _, o := range r.Outcomes {
		if o.Failure != nil {
			out = append(out, *o.Failure)
		}
	}
	return out
}

func (r Result) UpdatedIDs() []string {
	var out []string
	for _, o := range r.Outcomes {
		if o.Updated() {
			out = append(out, o.ID)
		}
	}
	return out
}
