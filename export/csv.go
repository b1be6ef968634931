package export

import (
	"encoding/csv"
	"io"
)

// CSVWriter writes one row per field: section, field, label, value.
type CSVWriter struct{}

func (CSVWriter) Format() Format      { return FormatCSV }
func (CSVWriter) ContentType() string { return "text/csv; charset=utf-8" }
func (CSVWriter) Extension() string   { return "csv" }

func (CSVWriter) Write(w io.Writer, snapshot Snapshot) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"section", "field", "label", "value"}); err != nil {
		return err
	}

	for _, section := range snapshot.Sections() {
		for _, f := range section.Fields {
			if err := cw.Write([]string{section.Name, f.Key, f.Label, f.Value}); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}
