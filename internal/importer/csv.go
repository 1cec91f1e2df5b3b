// Package importer parses transaction CSV files into domain
// transactions. Column headers are matched case-insensitively against
// a set of common aliases so exports from other tools load without
// manual renaming.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"paytrack/internal/core"
)

var ErrNoHeader = errors.New("csv file has no header row")
var ErrMissingColumns = errors.New("csv header is missing required columns")

// headerAliases maps canonical column names to accepted spellings.
var headerAliases = map[string][]string{
	"date":        {"date", "day", "when"},
	"amount":      {"amount", "amt", "value", "money", "cost", "price"},
	"type":        {"type", "kind"},
	"description": {"description", "desc", "note", "memo", "details"},
	"category":    {"category", "cat"},
	"payee":       {"payee", "payer", "from", "to", "recipient"},
	"recurrence":  {"recurrence", "recurring", "repeat", "pattern"},
}

// dateLayouts are tried in order when parsing the date column.
var dateLayouts = []string{"2006-01-02", "2006/01/02", "01/02/2006"}

// RowResult is the tagged outcome for one data row.
type RowResult struct {
	Line        int // 1-based line number in the file, header included
	Transaction core.Transaction
	Err         error
}

// Report collects per-row parse results.
type Report struct {
	Rows []RowResult
}

// Transactions returns the successfully parsed transactions in file order.
func (r Report) Transactions() []core.Transaction {
	var out []core.Transaction
	for _, row := range r.Rows {
		if row.Err == nil {
			out = append(out, row.Transaction)
		}
	}
	return out
}

// FailedCount returns the number of rows that could not be parsed.
func (r Report) FailedCount() int {
	n := 0
	for _, row := range r.Rows {
		if row.Err != nil {
			n++
		}
	}
	return n
}

// ParseCSV reads a transaction CSV. Rows that fail to parse are
// recorded in the report and do not stop the rest of the file; a
// returned error means the file itself is unusable.
func ParseCSV(r io.Reader) (Report, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return Report{}, ErrNoHeader
	}
	if err != nil {
		return Report{}, fmt.Errorf("read header: %w", err)
	}

	columns := mapColumns(header)
	if _, ok := columns["date"]; !ok {
		return Report{}, fmt.Errorf("%w: no date column", ErrMissingColumns)
	}
	if _, ok := columns["amount"]; !ok {
		return Report{}, fmt.Errorf("%w: no amount column", ErrMissingColumns)
	}

	var report Report
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			report.Rows = append(report.Rows, RowResult{Line: line, Err: fmt.Errorf("malformed row: %w", err)})
			continue
		}

		t, err := parseRow(record, columns)
		if err != nil {
			report.Rows = append(report.Rows, RowResult{Line: line, Err: err})
			continue
		}
		report.Rows = append(report.Rows, RowResult{Line: line, Transaction: t})
	}

	slog.Debug("Parsed transaction CSV",
		"rows", len(report.Rows),
		"failed", report.FailedCount())

	return report, nil
}

// mapColumns resolves header cells to canonical column indexes. The
// first match wins when a file repeats an alias.
func mapColumns(header []string) map[string]int {
	columns := make(map[string]int)
	for i, cell := range header {
		name := strings.ToLower(strings.TrimSpace(cell))
		for canonical, aliases := range headerAliases {
			if _, taken := columns[canonical]; taken {
				continue
			}
			for _, alias := range aliases {
				if name == alias {
					columns[canonical] = i
					break
				}
			}
		}
	}
	return columns
}

func parseRow(record []string, columns map[string]int) (core.Transaction, error) {
	field := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	date, err := parseRowDate(field("date"))
	if err != nil {
		return core.Transaction{}, err
	}

	amountStr := strings.ReplaceAll(field("amount"), ",", ".")
	amount, err := strconv.ParseFloat(amountStr, 64)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("invalid amount %q", field("amount"))
	}

	// A signed amount implies the type when the type column is empty.
	txType := core.TransactionType(strings.ToLower(field("type")))
	if txType == "" {
		if amount < 0 {
			txType = core.Withdrawal
		} else {
			txType = core.Deposit
		}
	}
	if !txType.Valid() {
		return core.Transaction{}, fmt.Errorf("invalid type %q", field("type"))
	}

	t := core.Transaction{
		Date:        date,
		Amount:      math.Abs(amount),
		Type:        txType,
		Description: field("description"),
		Category:    field("category"),
		Payee:       field("payee"),
	}

	if pattern := core.RecurrencePattern(strings.ToLower(field("recurrence"))); pattern != "" {
		if !pattern.Valid() {
			return core.Transaction{}, fmt.Errorf("invalid recurrence pattern %q", field("recurrence"))
		}
		t.IsTemplate = true
		t.RecurrencePattern = pattern
	}

	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

func parseRowDate(value string) (core.Date, error) {
	if value == "" {
		return core.Date{}, errors.New("missing date")
	}
	for _, layout := range dateLayouts {
		if d, err := core.ParseDateLayout(value, layout); err == nil {
			return d, nil
		}
	}
	return core.Date{}, fmt.Errorf("invalid date %q", value)
}
