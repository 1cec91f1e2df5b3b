package importer

import (
	"errors"
	"strings"
	"testing"

	"paytrack/internal/core"
)

func TestParseCSV(t *testing.T) {
	input := "date,amount,type,description,category,payee\n" +
		"2024-01-05,1000,deposit,salary,income,acme\n" +
		"2024-01-10,50.25,withdrawal,groceries,food,market\n"

	report, err := ParseCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	rows := report.Transactions()
	if len(rows) != 2 {
		t.Fatalf("transactions = %d, want 2", len(rows))
	}
	if report.FailedCount() != 0 {
		t.Fatalf("failed = %d, want 0", report.FailedCount())
	}

	first := rows[0]
	if first.Date.String() != "2024-01-05" || first.Amount != 1000 || first.Type != core.Deposit {
		t.Errorf("first row = %+v", first)
	}
	if first.Description != "salary" || first.Category != "income" || first.Payee != "acme" {
		t.Errorf("first row fields = %+v", first)
	}
	if rows[1].Type != core.Withdrawal || rows[1].Amount != 50.25 {
		t.Errorf("second row = %+v", rows[1])
	}
}

func TestParseCSVHeaderAliases(t *testing.T) {
	input := "Day,Amt,Kind,Memo,Cat,From\n" +
		"2024-02-01,75,deposit,refund,shopping,store\n"

	report, err := ParseCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	rows := report.Transactions()
	if len(rows) != 1 {
		t.Fatalf("transactions = %d, want 1", len(rows))
	}
	got := rows[0]
	if got.Description != "refund" || got.Category != "shopping" || got.Payee != "store" {
		t.Errorf("aliased columns not mapped: %+v", got)
	}
}

func TestParseCSVSignedAmountInfersType(t *testing.T) {
	input := "date,amount\n" +
		"2024-01-01,-42.50\n" +
		"2024-01-02,42.50\n"

	report, err := ParseCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	rows := report.Transactions()
	if len(rows) != 2 {
		t.Fatalf("transactions = %d, want 2", len(rows))
	}
	if rows[0].Type != core.Withdrawal || rows[0].Amount != 42.50 {
		t.Errorf("negative row = %+v, want withdrawal 42.50", rows[0])
	}
	if rows[1].Type != core.Deposit || rows[1].Amount != 42.50 {
		t.Errorf("positive row = %+v, want deposit 42.50", rows[1])
	}
}

func TestParseCSVDateLayouts(t *testing.T) {
	input := "date,amount\n" +
		"2024-03-05,10\n" +
		"2024/03/06,10\n" +
		"03/07/2024,10\n"

	report, err := ParseCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	rows := report.Transactions()
	if len(rows) != 3 {
		t.Fatalf("transactions = %d, want 3", len(rows))
	}
	want := []string{"2024-03-05", "2024-03-06", "2024-03-07"}
	for i, w := range want {
		if rows[i].Date.String() != w {
			t.Errorf("row %d date = %s, want %s", i, rows[i].Date, w)
		}
	}
}

func TestParseCSVDecimalComma(t *testing.T) {
	input := "date,amount\n" +
		"2024-01-01,\"19,99\"\n"

	report, err := ParseCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	rows := report.Transactions()
	if len(rows) != 1 || rows[0].Amount != 19.99 {
		t.Fatalf("rows = %+v, want one row with amount 19.99", rows)
	}
}

func TestParseCSVRecurrenceColumnMakesTemplates(t *testing.T) {
	input := "date,amount,type,recurrence\n" +
		"2024-01-01,50,withdrawal,weekly\n" +
		"2024-01-10,1200,deposit,\n"

	report, err := ParseCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	rows := report.Transactions()
	if len(rows) != 2 {
		t.Fatalf("transactions = %d, want 2", len(rows))
	}
	if !rows[0].IsTemplate || rows[0].RecurrencePattern != core.Weekly {
		t.Errorf("recurrence row = %+v, want weekly template", rows[0])
	}
	if rows[1].IsTemplate || rows[1].RecurrencePattern != "" {
		t.Errorf("plain row = %+v, want instance", rows[1])
	}
}

func TestParseCSVRecordsRowFailures(t *testing.T) {
	input := "date,amount,type\n" +
		"2024-01-01,10,deposit\n" +
		"not-a-date,10,deposit\n" +
		"2024-01-03,abc,deposit\n" +
		"2024-01-04,0,deposit\n" +
		"2024-01-05,10,transfer\n" +
		"2024-01-06,10,deposit\n"

	report, err := ParseCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(report.Transactions()) != 2 {
		t.Fatalf("transactions = %d, want 2", len(report.Transactions()))
	}
	if report.FailedCount() != 4 {
		t.Fatalf("failed = %d, want 4", report.FailedCount())
	}

	// Line numbers count from the top of the file, header included.
	wantFailedLines := []int{3, 4, 5, 6}
	var gotFailedLines []int
	for _, row := range report.Rows {
		if row.Err != nil {
			gotFailedLines = append(gotFailedLines, row.Line)
		}
	}
	if len(gotFailedLines) != len(wantFailedLines) {
		t.Fatalf("failed lines = %v, want %v", gotFailedLines, wantFailedLines)
	}
	for i := range wantFailedLines {
		if gotFailedLines[i] != wantFailedLines[i] {
			t.Errorf("failed line[%d] = %d, want %d", i, gotFailedLines[i], wantFailedLines[i])
		}
	}
	if !errors.Is(report.Rows[3].Err, core.ErrInvalidAmount) {
		t.Errorf("zero amount row err = %v, want ErrInvalidAmount", report.Rows[3].Err)
	}
}

func TestParseCSVHeaderErrors(t *testing.T) {
	if _, err := ParseCSV(strings.NewReader("")); !errors.Is(err, ErrNoHeader) {
		t.Errorf("empty file err = %v, want ErrNoHeader", err)
	}
	if _, err := ParseCSV(strings.NewReader("amount,type\n10,deposit\n")); !errors.Is(err, ErrMissingColumns) {
		t.Errorf("missing date column err = %v, want ErrMissingColumns", err)
	}
	if _, err := ParseCSV(strings.NewReader("date,type\n2024-01-01,deposit\n")); !errors.Is(err, ErrMissingColumns) {
		t.Errorf("missing amount column err = %v, want ErrMissingColumns", err)
	}
}
