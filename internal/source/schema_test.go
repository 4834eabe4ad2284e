package source

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldMap_Select(t *testing.T) {
	m := FieldMap{ID: "id", Name: "name", Email: "", DueAt: "due", ProcessedFlag: "name"}
	assert.Equal(t, []string{"id", "name", "due"}, m.Select())
}

func TestFieldMap_DecodePage(t *testing.T) {
	m := DefaultFieldMap()

	t.Run("typed records and next link", func(t *testing.T) {
		body := `{
			"@odata.context": "ignored",
			"value": [
				{
					"contactid": "c-1",
					"fullname": "Ada Lovelace",
					"new_amount": 12.5,
					"new_quantity": 4,
					"address1_latitude": 51.5,
					"address1_longitude": null,
					"new_duedate": "2024-03-01T09:30:00+01:00",
					"new_processed": "No"
				},
				{"contactid": "c-2"}
			],
			"@odata.nextLink": "https://example.com/api/data/v9.2/contacts?$skiptoken=2"
		}`

		page, err := m.DecodePage(body)
		require.NoError(t, err)
		require.Len(t, page.Records, 2)
		assert.Equal(t, "https://example.com/api/data/v9.2/contacts?$skiptoken=2", page.Next)

		r := page.Records[0]
		assert.Equal(t, "c-1", r.ID)
		assert.Equal(t, "Ada Lovelace", r.Name)
		require.NotNil(t, r.Amount)
		assert.Equal(t, 12.5, *r.Amount)
		require.NotNil(t, r.Quantity)
		assert.Equal(t, int64(4), *r.Quantity)
		require.NotNil(t, r.Latitude)
		assert.Nil(t, r.Longitude)
		require.NotNil(t, r.DueAt)
		assert.Equal(t, time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC), *r.DueAt)
		assert.Equal(t, "No", r.ProcessedFlag)

		empty := page.Records[1]
		assert.Nil(t, empty.Amount)
		assert.Nil(t, empty.DueAt)
		assert.Equal(t, "", empty.ProcessedFlag)
	})

	t.Run("last page has no next link", func(t *testing.T) {
		page, err := m.DecodePage(`{"value": []}`)
		require.NoError(t, err)
		assert.Empty(t, page.Records)
		assert.Equal(t, "", page.Next)
	})

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"invalid json", `{"value": [`, ""},
		{"missing value array", `{"items": []}`, "value"},
		{"missing identifier", `{"value": [{"fullname": "x"}]}`, "contactid"},
		{"empty identifier", `{"value": [{"contactid": ""}]}`, "contactid"},
		{"null identifier", `{"value": [{"contactid": null}]}`, "contactid"},
		{"record not an object", `{"value": ["c-1"]}`, "contactid"},
		{"amount not a number", `{"value": [{"contactid": "c", "new_amount": "12"}]}`, "new_amount"},
		{"quantity not an integer", `{"value": [{"contactid": "c", "new_quantity": 1.5}]}`, "new_quantity"},
		{"due date not a timestamp", `{"value": [{"contactid": "c", "new_duedate": "tomorrow"}]}`, "new_duedate"},
		{"name is an object", `{"value": [{"contactid": "c", "fullname": {"first": "a"}}]}`, "fullname"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.DecodePage(tt.body)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSchema))

			var se *SchemaError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.field, se.Field)
		})
	}
}

func TestFieldMap_DecodePage_LiteralAttributeNames(t *testing.T) {
	m := DefaultFieldMap()
	m.Name = "_owner_value@OData.Community.Display.V1.FormattedValue"
	m.City = "address1.city"
	m.Country = "country*"

	body := `{"value": [{
		"contactid": "c-1",
		"_owner_value@OData.Community.Display.V1.FormattedValue": "Ada Lovelace",
		"address1.city": "London",
		"address1": {"city": "nested"},
		"country*": "GB",
		"countryX": "wildcard"
	}]}`

	page, err := m.DecodePage(body)
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "Ada Lovelace", page.Records[0].Name)
	assert.Equal(t, "London", page.Records[0].City)
	assert.Equal(t, "GB", page.Records[0].Country)
}
