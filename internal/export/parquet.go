package export

import (
	"io"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/turbolytics/duesync/internal"
)

type row struct {
	ID            string   `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Name          string   `parquet:"name=name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Email         string   `parquet:"name=email, type=BYTE_ARRAY, convertedtype=UTF8"`
	Phone         string   `parquet:"name=phone, type=BYTE_ARRAY, convertedtype=UTF8"`
	Street        string   `parquet:"name=street, type=BYTE_ARRAY, convertedtype=UTF8"`
	City          string   `parquet:"name=city, type=BYTE_ARRAY, convertedtype=UTF8"`
	PostalCode    string   `parquet:"name=postal_code, type=BYTE_ARRAY, convertedtype=UTF8"`
	Country       string   `parquet:"name=country, type=BYTE_ARRAY, convertedtype=UTF8"`
	Amount        *float64 `parquet:"name=amount, type=DOUBLE, repetitiontype=OPTIONAL"`
	Quantity      *int64   `parquet:"name=quantity, type=INT64, repetitiontype=OPTIONAL"`
	Latitude      *float64 `parquet:"name=latitude, type=DOUBLE, repetitiontype=OPTIONAL"`
	Longitude     *float64 `parquet:"name=longitude, type=DOUBLE, repetitiontype=OPTIONAL"`
	DueAt         *int64   `parquet:"name=due_at, type=INT64, convertedtype=TIMESTAMP_MICROS, repetitiontype=OPTIONAL"`
	ProcessedFlag string   `parquet:"name=processed_flag, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func toRow(r internal.Record) row {
	out := row{
		ID:            r.ID,
		Name:          r.Name,
		Email:         r.Email,
		Phone:         r.Phone,
		Street:        r.Street,
		City:          r.City,
		PostalCode:    r.PostalCode,
		Country:       r.Country,
		Amount:        r.Amount,
		Quantity:      r.Quantity,
		Latitude:      r.Latitude,
		Longitude:     r.Longitude,
		ProcessedFlag: r.ProcessedFlag,
	}
	if r.DueAt != nil {
		micros := r.DueAt.UTC().UnixMicro()
		out.DueAt = &micros
	}
	return out
}

// Parquet writes a single row group, snappy compressed.
type Parquet struct{}

func (Parquet) Extension() string   { return "parquet" }
func (Parquet) ContentType() string { return "application/vnd.apache.parquet" }

func (Parquet) Encode(w io.Writer, records []internal.Record) error {
	pw, err := writer.NewParquetWriterFromWriter(w, new(row), 1)
	if err != nil {
		return &EncodingError{Format: FormatParquet, Err: err}
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, r := range records {
		if err := pw.Write(toRow(r)); err != nil {
			return &EncodingError{Format: FormatParquet, Err: err}
		}
	}
	if err := pw.WriteStop(); err != nil {
		return &EncodingError{Format: FormatParquet, Err: err}
	}
	return nil
}
