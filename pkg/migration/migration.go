// Package migration bulk-imports person records into SlashID.
package migration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"slashid/pkg/gateway"
	"slashid/pkg/persons"
)

const (
	bulkImportPath = "persons/bulk-import"
	uploadField    = "persons"
	uploadFilename = "persons.csv"
)

var header = []string{
	"slashid:emails",
	"slashid:phone_numbers",
	"slashid:region",
	"slashid:roles",
	"slashid:groups",
	"slashid:attributes",
	"slashid:password",
}

// Result is the per-batch outcome reported by the API. FailedCSV holds the
// rejected rows, if any, in the upload format.
type Result struct {
	FailedCSV         string `json:"failed_csv,omitempty"`
	SuccessfulImports int    `json:"successful_imports"`
	FailedImports     int    `json:"failed_imports"`
}

// API is the subset of gateway.Client the exporter needs.
type API interface {
	Upload(ctx context.Context, path, field, filename string, content []byte) (json.RawMessage, error)
}

type Exporter struct {
	api API
	log *zap.SugaredLogger
}

func NewExporter(api API, log *zap.SugaredLogger) *Exporter {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Exporter{api: api, log: log}
}

// Migrate uploads records as one CSV file. Partial failure is reported in the
// Result, not as an error.
func (e *Exporter) Migrate(ctx context.Context, records []persons.Record) (Result, error) {
	csv, err := BuildCSV(records)
	if err != nil {
		return Result{}, err
	}
	raw, err := e.api.Upload(ctx, bulkImportPath, uploadField, uploadFilename, csv)
	if err != nil {
		return Result{}, err
	}
	res, err := gateway.Decode[Result](raw)
	if err != nil {
		return Result{}, err
	}
	e.log.Infow("bulk import finished", "records", len(records), "succeeded", res.SuccessfulImports, "failed", res.FailedImports)
	return res, nil
}

// BuildCSV renders records in the bulk-import format. Every field is quoted,
// multi-valued fields are comma-joined, and the roles column is left empty.
func BuildCSV(records []persons.Record) ([]byte, error) {
	var buf bytes.Buffer
	writeRow(&buf, header)
	for i, r := range records {
		attrs, err := encodeAttributes(r.AllAttributes())
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		writeRow(&buf, []string{
			strings.Join(r.EmailAddresses(), ","),
			strings.Join(r.PhoneNumbers(), ","),
			r.Region(),
			"",
			strings.Join(r.Groups(), ","),
			attrs,
			r.LegacyPasswordHash(),
		})
	}
	return buf.Bytes(), nil
}

func writeRow(buf *bytes.Buffer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strings.ReplaceAll(f, `"`, `""`))
		buf.WriteByte('"')
	}
	buf.WriteByte('\n')
}

func encodeAttributes(attrs persons.Attributes) (string, error) {
	if len(attrs) == 0 {
		return "{}", nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(attrs); err != nil {
		return "", fmt.Errorf("encoding attributes: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
