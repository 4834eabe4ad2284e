package internal

import "time"

// Fields lists the exported attribute names of a Record.
// Field order is critical for the tabular serializers, Columns follows it.
var Fields = []string{
	"id",
	"name",
	"email",
	"phone",
	"street",
	"city",
	"postal_code",
	"country",
	"amount",
	"quantity",
	"latitude",
	"longitude",
	"due_at",
	"processed_flag",
}

// Record is one entity read from the remote source.
// Records are values: once the fetcher has built one it is never modified,
// ProcessedFlag is the flag as it was at fetch time.
type Record struct {
	ID         string
	Name       string
	Email      string
	Phone      string
	Street     string
	City       string
	PostalCode string
	Country    string

	Amount    *float64
	Quantity  *int64
	Latitude  *float64
	Longitude *float64

	DueAt         *time.Time
	ProcessedFlag string
}

// Columns returns the record values in Fields order.
// Absent optional values are returned as untyped nil.
func (r Record) Columns() []any {
	cols := []any{
		r.ID,
		r.Name,
		r.Email,
		r.Phone,
		r.Street,
		r.City,
		r.PostalCode,
		r.Country,
		nil,
		nil,
		nil,
		nil,
		nil,
		r.ProcessedFlag,
	}
	if r.Amount != nil {
		cols[8] = *r.Amount
	}
	if r.Quantity != nil {
		cols[9] = *r.Quantity
	}
	if r.Latitude != nil {
		cols[10] = *r.Latitude
	}
	if r.Longitude != nil {
		cols[11] = *r.Longitude
	}
	if r.DueAt != nil {
		cols[12] = *r.DueAt
	}
	return cols
}

// IDs returns the identifiers of records in order.
func IDs(records []Record) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return ids
}
