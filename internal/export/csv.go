package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/turbolytics/duesync/internal"
)

// CSV writes RFC 4180 documents with CRLF row endings and a header row.
// Field contents are written verbatim inside quotes, so a bare \r or \n in
// a value is never rewritten.
type CSV struct{}

func (CSV) Extension() string   { return "csv" }
func (CSV) ContentType() string { return "text/csv" }

func (CSV) Encode(w io.Writer, records []internal.Record) error {
	rw := &rowWriter{w: w}
	if err := rw.write(internal.Fields); err != nil {
		return &EncodingError{Format: FormatCSV, Err: err}
	}

	row := make([]string, len(internal.Fields))
	for _, r := range records {
		for i, v := range r.Columns() {
			row[i] = formatValue(v)
		}
		if err := rw.write(row); err != nil {
			return &EncodingError{Format: FormatCSV, Err: err}
		}
	}
	return nil
}

// rowWriter quotes one row at a time with encoding/csv and terminates it
// with CRLF itself. csv.Writer.UseCRLF would also rewrite line breaks inside
// quoted fields.
type rowWriter struct {
	w   io.Writer
	buf bytes.Buffer
}

func (rw *rowWriter) write(row []string) error {
	rw.buf.Reset()
	cw := csv.NewWriter(&rw.buf)
	if err := cw.Write(row); err != nil {
		return err
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}

	line := bytes.TrimSuffix(rw.buf.Bytes(), []byte("\n"))
	if _, err := rw.w.Write(line); err != nil {
		return err
	}
	_, err := io.WriteString(rw.w, "\r\n")
	return err
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}
