// Package export serializes fetched records into archive files.
package export

import (
	"errors"
	"fmt"
	"io"

	"github.com/turbolytics/duesync/internal"
)

var ErrEncoding = errors.New("encoding failed")

// EncodingError is returned when records could not be written to the sink.
type EncodingError struct {
	Format string
	Err    error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding %s: %v", e.Format, e.Err)
}

func (e *EncodingError) Unwrap() []error {
	return []error{ErrEncoding, e.Err}
}

type Encoder interface {
	Encode(w io.Writer, records []internal.Record) error
	Extension() string
	ContentType() string
}

const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

// New returns the encoder registered for format. The empty format is CSV.
func New(format string) (Encoder, error) {
	switch format {
	case "", FormatCSV:
		return CSV{}, nil
	case FormatParquet:
		return Parquet{}, nil
	default:
		return nil, fmt.Errorf("unsupported export format: %q", format)
	}
}
