package coordinator

import (
	"fmt"
	"path"
	"time"
)

const (
	DefaultArchivePrefix = "exports"
	DefaultArchiveLabel  = "records"
)

// ArchivePath lays out archive keys as
// <prefix>/<yyyy>/<MM>/<dd>/<label>_<HHmmss>.<ext>, in UTC.
type ArchivePath struct {
	Prefix string
	Label  string
}

func (a ArchivePath) Key(t time.Time, ext string) string {
	t = t.UTC()
	label := a.Label
	if label == "" {
		label = DefaultArchiveLabel
	}
	return path.Join(
		a.Prefix,
		t.Format("2006"),
		t.Format("01"),
		t.Format("02"),
		fmt.Sprintf("%s_%s.%s", label, t.Format("150405"), ext),
	)
}
