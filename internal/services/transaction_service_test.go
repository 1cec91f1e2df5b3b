package services

import (
	"context"
	"errors"
	"math"
	"testing"

	"paytrack/internal/core"
	"paytrack/internal/storage/memory"
)

const balanceTolerance = 1e-2

func newTestService(t *testing.T) (*TransactionService, *memory.Store) {
	t.Helper()
	store := memory.New()
	return NewTransactionService(store, nil), store
}

func TestCreateValidates(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), core.Transaction{
		Date: core.NewDate(2024, 1, 1), Amount: 0, Type: core.Deposit,
	})
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestCreateBatchIsolatesFailures(t *testing.T) {
	svc, _ := newTestService(t)

	report := svc.CreateBatch(context.Background(), []core.Transaction{
		{Date: core.NewDate(2024, 1, 1), Amount: 10, Type: core.Deposit},
		{Date: core.NewDate(2024, 1, 2), Amount: -5, Type: core.Deposit},
		{Date: core.NewDate(2024, 1, 3), Amount: 7, Type: core.Withdrawal},
		{Date: core.NewDate(2024, 1, 4), Amount: 3, Type: core.TransactionType("transfer")},
	})

	if got := len(report.Created()); got != 2 {
		t.Fatalf("created %d, want 2", got)
	}
	if got := report.FailedCount(); got != 2 {
		t.Fatalf("failed %d, want 2", got)
	}
	if report.Results[1].Err == nil || report.Results[3].Err == nil {
		t.Fatal("invalid items must carry their error")
	}
	if !errors.Is(report.Results[1].Err, core.ErrInvalidAmount) {
		t.Fatalf("item 1: expected ErrInvalidAmount, got %v", report.Results[1].Err)
	}
	if !errors.Is(report.Results[3].Err, core.ErrInvalidType) {
		t.Fatalf("item 3: expected ErrInvalidType, got %v", report.Results[3].Err)
	}
	for _, res := range report.Results {
		if res.Err == nil && res.Transaction.ID == 0 {
			t.Fatal("successful items must carry the persisted id")
		}
	}
}

func TestDeleteReportsExistence(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	saved, err := svc.Create(ctx, core.Transaction{
		Date: core.NewDate(2024, 1, 1), Amount: 10, Type: core.Deposit,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	ok, err := svc.Delete(ctx, saved.ID)
	if err != nil || !ok {
		t.Fatalf("delete existing: ok=%v err=%v", ok, err)
	}
	ok, err = svc.Delete(ctx, saved.ID)
	if err != nil || ok {
		t.Fatalf("delete missing: ok=%v err=%v", ok, err)
	}
}

func TestBalanceUpTo(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	fixtures := []core.Transaction{
		{Date: core.NewDate(2024, 1, 5), Amount: 1000, Type: core.Deposit},
		{Date: core.NewDate(2024, 1, 10), Amount: 250.50, Type: core.Withdrawal},
		{Date: core.NewDate(2024, 2, 1), Amount: 99.99, Type: core.Withdrawal},
		// Templates never touch the ledger.
		{Date: core.NewDate(2024, 1, 1), Amount: 500, Type: core.Deposit,
			IsTemplate: true, RecurrencePattern: core.Monthly},
	}
	for _, f := range fixtures {
		if _, err := store.CreateTransaction(ctx, f); err != nil {
			t.Fatalf("fixture: %v", err)
		}
	}

	tests := []struct {
		name   string
		target core.Date
		want   float64
	}{
		{"before any activity", core.NewDate(2024, 1, 1), 0},
		{"inclusive of target date", core.NewDate(2024, 1, 10), 749.50},
		{"full history", core.NewDate(2024, 12, 31), 649.51},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.BalanceUpTo(ctx, tt.target)
			if err != nil {
				t.Fatalf("BalanceUpTo: %v", err)
			}
			if math.Abs(got-tt.want) > balanceTolerance {
				t.Fatalf("balance = %.2f, want %.2f", got, tt.want)
			}
		})
	}
}

func TestWeeklyBalances_Partitioning(t *testing.T) {
	svc, _ := newTestService(t)

	// March 2024 starts on a Friday: first week Mar 1-3, then four full
	// Monday-Sunday weeks, the last ending on Sunday the 31st.
	weeks, err := svc.WeeklyBalances(context.Background(), 2024, 3)
	if err != nil {
		t.Fatalf("WeeklyBalances: %v", err)
	}

	type span struct{ start, end core.Date }
	want := []span{
		{core.NewDate(2024, 3, 1), core.NewDate(2024, 3, 3)},
		{core.NewDate(2024, 3, 4), core.NewDate(2024, 3, 10)},
		{core.NewDate(2024, 3, 11), core.NewDate(2024, 3, 17)},
		{core.NewDate(2024, 3, 18), core.NewDate(2024, 3, 24)},
		{core.NewDate(2024, 3, 25), core.NewDate(2024, 3, 31)},
	}
	if len(weeks) != len(want) {
		t.Fatalf("got %d weeks, want %d", len(weeks), len(want))
	}
	for i, w := range weeks {
		if !w.WeekStart.Equal(want[i].start) || !w.WeekEnd.Equal(want[i].end) {
			t.Errorf("week %d: [%s, %s], want [%s, %s]",
				i, w.WeekStart, w.WeekEnd, want[i].start, want[i].end)
		}
	}
}

func TestWeeklyBalances_TruncatesAtMonthEnd(t *testing.T) {
	svc, _ := newTestService(t)

	// April 2024 starts on a Monday and ends mid-week on Tuesday the 30th.
	weeks, err := svc.WeeklyBalances(context.Background(), 2024, 4)
	if err != nil {
		t.Fatalf("WeeklyBalances: %v", err)
	}
	last := weeks[len(weeks)-1]
	if !last.WeekStart.Equal(core.NewDate(2024, 4, 29)) || !last.WeekEnd.Equal(core.NewDate(2024, 4, 30)) {
		t.Fatalf("last week = [%s, %s], want [2024-04-29, 2024-04-30]", last.WeekStart, last.WeekEnd)
	}
}

func TestWeeklyBalances_CarryOverAndChaining(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	fixtures := []core.Transaction{
		// Prior history sets the carry-over.
		{Date: core.NewDate(2024, 1, 15), Amount: 2000, Type: core.Deposit},
		{Date: core.NewDate(2024, 2, 20), Amount: 300, Type: core.Withdrawal},
		// Activity inside March.
		{Date: core.NewDate(2024, 3, 2), Amount: 150, Type: core.Withdrawal},
		{Date: core.NewDate(2024, 3, 10), Amount: 1200, Type: core.Deposit},
		{Date: core.NewDate(2024, 3, 28), Amount: 80.25, Type: core.Withdrawal},
	}
	for _, f := range fixtures {
		if _, err := store.CreateTransaction(ctx, f); err != nil {
			t.Fatalf("fixture: %v", err)
		}
	}

	weeks, err := svc.WeeklyBalances(ctx, 2024, 3)
	if err != nil {
		t.Fatalf("WeeklyBalances: %v", err)
	}

	if math.Abs(weeks[0].StartingBalance-1700) > balanceTolerance {
		t.Fatalf("carry-over = %.2f, want 1700.00", weeks[0].StartingBalance)
	}

	for i, w := range weeks {
		if math.Abs(w.EndingBalance-(w.StartingBalance+w.NetChange)) > balanceTolerance {
			t.Errorf("week %d: ending %.2f != starting %.2f + net %.2f",
				i, w.EndingBalance, w.StartingBalance, w.NetChange)
		}
		if i > 0 && math.Abs(w.StartingBalance-weeks[i-1].EndingBalance) > balanceTolerance {
			t.Errorf("week %d: starting %.2f does not chain from prior ending %.2f",
				i, w.StartingBalance, weeks[i-1].EndingBalance)
		}
	}

	// The month's last ending balance must equal the first starting
	// balance plus the sum of all net changes.
	sum := 0.0
	for _, w := range weeks {
		sum += w.NetChange
	}
	last := weeks[len(weeks)-1]
	if math.Abs(last.EndingBalance-(weeks[0].StartingBalance+sum)) > balanceTolerance {
		t.Fatalf("month ending %.2f, want %.2f", last.EndingBalance, weeks[0].StartingBalance+sum)
	}
	if math.Abs(last.EndingBalance-2669.75) > balanceTolerance {
		t.Fatalf("month ending = %.2f, want 2669.75", last.EndingBalance)
	}
}

func TestListForMonth(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	dates := []core.Date{
		core.NewDate(2024, 1, 31),
		core.NewDate(2024, 2, 1),
		core.NewDate(2024, 2, 29),
		core.NewDate(2024, 3, 1),
	}
	for _, d := range dates {
		if _, err := store.CreateTransaction(ctx, core.Transaction{Date: d, Amount: 1, Type: core.Deposit}); err != nil {
			t.Fatalf("fixture: %v", err)
		}
	}

	got, err := svc.ListForMonth(ctx, 2024, 2, "")
	if err != nil {
		t.Fatalf("ListForMonth: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}
	if !got[0].Date.Equal(core.NewDate(2024, 2, 1)) || !got[1].Date.Equal(core.NewDate(2024, 2, 29)) {
		t.Fatalf("unexpected rows: %v, %v", got[0].Date, got[1].Date)
	}
}
