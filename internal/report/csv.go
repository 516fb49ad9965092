package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"slices"
	"strings"

	"github.com/Raam977/citius-scraper/internal/model"
)

// Column names of the CSV export that are not plain record fields.
const (
	columnCreditorsJSON = "Credores_JSON"
	columnLinks         = "Links"
)

// CSVWriter outputs one row per record. The header lists every column that
// at least one record populates, sorted by name. The creditor list is
// flattened into a Credores_JSON cell and links into a JSON array cell.
type CSVWriter struct {
	baseWriter
}

// NewCSVWriter creates a CSVWriter that outputs to the given writer.
func NewCSVWriter(output io.Writer) *CSVWriter {
	return &CSVWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the records as CSV. Nothing is written when there are no
// records.
func (w *CSVWriter) Write(result *model.SearchResult) (int, error) {
	if len(result.Records) == 0 {
		return 0, nil
	}

	rows := make([]map[string]string, 0, len(result.Records))
	present := make(map[string]struct{})
	for i := range result.Records {
		row, err := csvRow(&result.Records[i])
		if err != nil {
			return 0, err
		}
		for k := range row {
			present[k] = struct{}{}
		}
		rows = append(rows, row)
	}

	header := make([]string, 0, len(present))
	for k := range present {
		header = append(header, k)
	}
	slices.Sort(header)

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(header); err != nil {
		return 0, err
	}
	for _, row := range rows {
		line := make([]string, len(header))
		for i, k := range header {
			line[i] = row[k]
		}
		if err := cw.Write(line); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, err
	}

	return w.output.Write(buf.Bytes())
}

// csvRow returns the populated columns of r.
func csvRow(r *model.Record) (map[string]string, error) {
	row := make(map[string]string)
	for _, c := range []struct {
		name  string
		value string
	}{
		{"Tribunal", r.Court},
		{"Ato", r.ActType},
		{"Referência", r.Reference},
		{"Processo", r.CaseNumber},
		{"Espécie", r.Kind},
		{"Data", r.Date},
		{"Data da propositura da ação", r.FilingDate},
		{"Insolvente", r.InsolventParty},
		{"NIF/NIPC", r.InsolventIdentifier},
		{"Administrador Insolvência", r.Administrator},
		{"Administrador NIF/NIPC", r.AdministratorIdentifier},
		{"Descrição", r.Description},
		{"Credor", r.SingleCreditorFallback},
		{"Credor NIF/NIPC", r.SingleCreditorFallbackIdentifier},
	} {
		if c.value != "" {
			row[c.name] = c.value
		}
	}

	creditors := r.Creditors
	if creditors == nil {
		creditors = make([]model.Creditor, 0)
	}
	cell, err := jsonCell(creditors)
	if err != nil {
		return nil, err
	}
	row[columnCreditorsJSON] = cell

	if len(r.Links) > 0 {
		cell, err := jsonCell(r.Links)
		if err != nil {
			return nil, err
		}
		row[columnLinks] = cell
	}

	return row, nil
}

// jsonCell encodes v on a single line without HTML escaping.
func jsonCell(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
