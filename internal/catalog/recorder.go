package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"path"

	"github.com/turbolytics/duesync/internal"
)

// Recorder stores each summary as JSON next to the archives, under
// <prefix>/runs/<yyyy>/<MM>/<dd>/<run id>.json. Failed runs are recorded too.
type Recorder struct {
	repository internal.Repository
	prefix     string
}

func NewRecorder(r internal.Repository, prefix string) *Recorder {
	return &Recorder{repository: r, prefix: prefix}
}

func (r *Recorder) Key(s Summary) string {
	t := s.StartedAt.UTC()
	return path.Join(
		r.prefix,
		"runs",
		t.Format("2006"),
		t.Format("01"),
		t.Format("02"),
		s.RunID+".json",
	)
}

func (r *Recorder) Record(ctx context.Context, s Summary) error {
	bs, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return r.repository.Write(ctx, r.Key(s), bytes.NewReader(bs))
}
