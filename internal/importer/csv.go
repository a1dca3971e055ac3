// Package importer turns CSV uploads into contact import rows. It maps
// column headers to canonical contact fields through an alias table and
// routes configured custom-field columns into the row's custom values.
package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/ignite/crm-contacts/internal/domain"
	"github.com/ignite/crm-contacts/internal/service/contact"
)

// headerAliases maps common CSV column spellings to canonical contact
// columns. Lookup is case-insensitive after trimming.
var headerAliases = map[string]string{
	"email":            "email",
	"email_address":    "email",
	"e-mail":           "email",
	"emailaddress":     "email",
	"mail":             "email",
	"subscriber_email": "email",
	"prefix":           "prefix",
	"name_prefix":      "prefix",
	"first_name":       "first_name",
	"firstname":        "first_name",
	"first":            "first_name",
	"fname":            "first_name",
	"given_name":       "first_name",
	"last_name":        "last_name",
	"lastname":         "last_name",
	"last":             "last_name",
	"lname":            "last_name",
	"surname":          "last_name",
	"family_name":      "last_name",
	"full_name":        "full_name",
	"fullname":         "full_name",
	"name":             "full_name",
	"status":           "status",
	"sub_status":       "status",
	"contact_type":     "contact_type",
	"type":             "contact_type",
	"address_line_1":   "address_line_1",
	"address1":         "address_line_1",
	"address":          "address_line_1",
	"address_line_2":   "address_line_2",
	"address2":         "address_line_2",
	"postal_code":      "postal_code",
	"zip":              "postal_code",
	"zip_code":         "postal_code",
	"city":             "city",
	"state":            "state",
	"country":          "country",
	"phone":            "phone",
	"phone_number":     "phone",
	"timezone":         "timezone",
	"date_of_birth":    "date_of_birth",
	"dob":              "date_of_birth",
	"source":           "source",
	"ip":               "ip",
	"ip_address":       "ip",
}

// Mapping describes how CSV columns feed a contact row: by index, either a
// canonical field name or a custom field slug.
type Mapping struct {
	fields map[int]string // column index -> canonical field
	custom map[int]string // column index -> custom field slug
}

// MapHeader resolves a CSV header row. Columns matching an alias become
// contact fields; columns matching a configured custom field slug become
// custom values; everything else is dropped. Returns an error when no email
// column can be found, since email is the import dedup key.
func MapHeader(header []string, customSlugs []string) (*Mapping, error) {
	slugSet := make(map[string]bool, len(customSlugs))
	for _, s := range customSlugs {
		slugSet[s] = true
	}

	m := &Mapping{fields: map[int]string{}, custom: map[int]string{}}
	hasEmail := false
	for i, col := range header {
		key := strings.ToLower(strings.TrimSpace(col))
		if field, ok := headerAliases[key]; ok {
			m.fields[i] = field
			if field == "email" {
				hasEmail = true
			}
			continue
		}
		if slugSet[key] {
			m.custom[i] = key
		}
	}
	if !hasEmail {
		return nil, fmt.Errorf("no email column detected in header: %v", header)
	}
	return m, nil
}

// ReadRows parses a CSV stream into import rows using the given custom
// field slugs. Rows without an email value are skipped and counted.
func ReadRows(r io.Reader, customSlugs []string) ([]contact.ImportRow, int, error) {
	reader := csv.NewReader(stripBOM(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	mapping, err := MapHeader(header, customSlugs)
	if err != nil {
		return nil, 0, err
	}

	var rows []contact.ImportRow
	skipped := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}

		row := contact.ImportRow{Fields: domain.FieldMap{}}
		for i, value := range record {
			value = strings.TrimSpace(value)
			if value == "" {
				continue
			}
			if field, ok := mapping.fields[i]; ok {
				row.Fields[field] = value
			} else if slug, ok := mapping.custom[i]; ok {
				if row.CustomValues == nil {
					row.CustomValues = map[string]string{}
				}
				row.CustomValues[slug] = value
			}
		}
		if domain.NormalizeEmail(row.Fields["email"]) == "" {
			skipped++
			continue
		}
		rows = append(rows, row)
	}
	return rows, skipped, nil
}

// stripBOM wraps a reader to pass through a UTF-8 BOM-prefixed stream
// without the marker leaking into the first header cell.
func stripBOM(r io.Reader) io.Reader {
	buf := make([]byte, 3)
	n, err := io.ReadFull(r, buf)
	if err != nil {
		return io.MultiReader(strings.NewReader(string(buf[:n])), r)
	}
	if buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF {
		return r
	}
	return io.MultiReader(strings.NewReader(string(buf[:n])), r)
}
