package source

import (
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"github.com/turbolytics/duesync/internal"
)

const (
	recordsKey  = "value"
	nextLinkKey = "@odata.nextLink"
)

// FieldMap names the source attribute each Record field is read from.
// An empty name leaves the field unmapped; ID must always be mapped.
type FieldMap struct {
	ID            string `yaml:"id" mapstructure:"id"`
	Name          string `yaml:"name" mapstructure:"name"`
	Email         string `yaml:"email" mapstructure:"email"`
	Phone         string `yaml:"phone" mapstructure:"phone"`
	Street        string `yaml:"street" mapstructure:"street"`
	City          string `yaml:"city" mapstructure:"city"`
	PostalCode    string `yaml:"postal_code" mapstructure:"postal_code"`
	Country       string `yaml:"country" mapstructure:"country"`
	Amount        string `yaml:"amount" mapstructure:"amount"`
	Quantity      string `yaml:"quantity" mapstructure:"quantity"`
	Latitude      string `yaml:"latitude" mapstructure:"latitude"`
	Longitude     string `yaml:"longitude" mapstructure:"longitude"`
	DueAt         string `yaml:"due_at" mapstructure:"due_at"`
	ProcessedFlag string `yaml:"processed_flag" mapstructure:"processed_flag"`
}

// DefaultFieldMap matches a contact entity extended with due date and
// processed flag columns.
func DefaultFieldMap() FieldMap {
	return FieldMap{
		ID:            "contactid",
		Name:          "fullname",
		Email:         "emailaddress1",
		Phone:         "telephone1",
		Street:        "address1_line1",
		City:          "address1_city",
		PostalCode:    "address1_postalcode",
		Country:       "address1_country",
		Amount:        "new_amount",
		Quantity:      "new_quantity",
		Latitude:      "address1_latitude",
		Longitude:     "address1_longitude",
		DueAt:         "new_duedate",
		ProcessedFlag: "new_processed",
	}
}

func (m FieldMap) names() []string {
	return []string{
		m.ID, m.Name, m.Email, m.Phone, m.Street, m.City, m.PostalCode, m.Country,
		m.Amount, m.Quantity, m.Latitude, m.Longitude, m.DueAt, m.ProcessedFlag,
	}
}

// Select returns the mapped attribute names, without duplicates, in Record
// field order. It is the field selection sent with every query.
func (m FieldMap) Select() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, n := range m.names() {
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// DecodePage parses a page body strictly. Any record without an identifier,
// or with a value of the wrong type, fails the whole page.
func (m FieldMap) DecodePage(body string) (Page, error) {
	if !gjson.Valid(body) {
		return Page{}, &SchemaError{Index: -1, Reason: "body is not valid json"}
	}

	var page Page
	var values gjson.Result
	gjson.Parse(body).ForEach(func(key, value gjson.Result) bool {
		switch key.String() {
		case recordsKey:
			values = value
		case nextLinkKey:
			page.Next = value.String()
		}
		return true
	})

	if !values.IsArray() {
		return Page{}, &SchemaError{Index: -1, Field: recordsKey, Reason: "missing record array"}
	}

	items := values.Array()
	page.Records = make([]internal.Record, 0, len(items))
	for i, item := range items {
		r, err := m.decodeRecord(i, item)
		if err != nil {
			return Page{}, err
		}
		page.Records = append(page.Records, r)
	}
	return page, nil
}

func (m FieldMap) decodeRecord(i int, item gjson.Result) (internal.Record, error) {
	var r internal.Record
	if !item.IsObject() {
		return r, &SchemaError{Index: i, Field: m.ID, Reason: "record is not an object"}
	}

	d := decoder{index: i, item: item}

	id := item.Get(gjson.Escape(m.ID))
	if !present(id) || id.String() == "" {
		return r, &SchemaError{Index: i, Field: m.ID, Reason: "missing identifier"}
	}
	r.ID = d.str(m.ID)
	r.Name = d.str(m.Name)
	r.Email = d.str(m.Email)
	r.Phone = d.str(m.Phone)
	r.Street = d.str(m.Street)
	r.City = d.str(m.City)
	r.PostalCode = d.str(m.PostalCode)
	r.Country = d.str(m.Country)
	r.Amount = d.number(m.Amount)
	r.Quantity = d.integer(m.Quantity)
	r.Latitude = d.number(m.Latitude)
	r.Longitude = d.number(m.Longitude)
	r.DueAt = d.timestamp(m.DueAt)
	r.ProcessedFlag = d.str(m.ProcessedFlag)

	return r, d.err
}

func present(v gjson.Result) bool {
	return v.Exists() && v.Type != gjson.Null
}

// decoder reads typed values from one record, keeping the first error.
type decoder struct {
	index int
	item  gjson.Result
	err   error
}

func (d *decoder) get(path string) (gjson.Result, bool) {
	if path == "" || d.err != nil {
		return gjson.Result{}, false
	}
	v := d.item.Get(gjson.Escape(path))
	return v, present(v)
}

func (d *decoder) fail(path, reason string) {
	d.err = &SchemaError{Index: d.index, Field: path, Reason: reason}
}

func (d *decoder) str(path string) string {
	v, ok := d.get(path)
	if !ok {
		return ""
	}
	if v.IsObject() || v.IsArray() {
		d.fail(path, "expected a scalar")
		return ""
	}
	return v.String()
}

func (d *decoder) number(path string) *float64 {
	v, ok := d.get(path)
	if !ok {
		return nil
	}
	if v.Type != gjson.Number {
		d.fail(path, "expected a number")
		return nil
	}
	f := v.Float()
	return &f
}

func (d *decoder) integer(path string) *int64 {
	v, ok := d.get(path)
	if !ok {
		return nil
	}
	if v.Type != gjson.Number {
		d.fail(path, "expected an integer")
		return nil
	}
	n, err := strconv.ParseInt(v.Raw, 10, 64)
	if err != nil {
		d.fail(path, "expected an integer")
		return nil
	}
	return &n
}

func (d *decoder) timestamp(path string) *time.Time {
	v, ok := d.get(path)
	if !ok {
		return nil
	}
	if v.Type != gjson.String {
		d.fail(path, "expected an RFC 3339 timestamp")
		return nil
	}
	t, err := time.Parse(time.RFC3339, v.Str)
	if err != nil {
		d.fail(path, "expected an RFC 3339 timestamp")
		return nil
	}
	t = t.UTC()
	return &t
}
