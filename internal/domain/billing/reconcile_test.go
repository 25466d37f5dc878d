package billing

import (
	"testing"
	"time"

	"clinicore/internal/core/types"
)

func TestDeriveStatus(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	tests := []struct {
		name      string
		cancelled bool
		amount    string
		paid      string
		dueDate   *time.Time
		want      InvoiceStatus
	}{
		{"unpaid no due date", false, "100", "0", nil, InvoicePending},
		{"unpaid before due date", false, "100", "0", &future, InvoicePending},
		{"unpaid past due date", false, "100", "0", &past, InvoiceOverdue},
		{"partially paid", false, "100", "40", nil, InvoicePartial},
		{"fully paid", false, "100", "100", nil, InvoicePaid},
		// Precedence: settlement progress wins over lateness.
		{"partial past due stays partial", false, "100", "40", &past, InvoicePartial},
		{"paid past due stays paid", false, "100", "100", &past, InvoicePaid},
		// Cancellation is terminal and wins over everything.
		{"cancelled fully paid", true, "100", "100", nil, InvoiceCancelled},
		{"cancelled past due", true, "100", "0", &past, InvoiceCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveStatus(tt.cancelled,
				types.MustMoney(tt.amount), types.MustMoney(tt.paid), tt.dueDate, now)
			if got != tt.want {
				t.Errorf("DeriveStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestReconcileNeverOverwritesCancellation(t *testing.T) {
	inv := NewInvoice(testClientID(), types.MustMoney("100"))
	inv.Status = InvoiceCancelled
	inv.PaidAmount = types.MustMoney("100")

	inv.Reconcile(time.Now().UTC())

	if inv.Status != InvoiceCancelled {
		t.Errorf("Reconcile() rewrote cancelled status to %s", inv.Status)
	}
}

func TestPendingAmountNeverNegative(t *testing.T) {
	inv := NewInvoice(testClientID(), types.MustMoney("100"))
	inv.PaidAmount = types.MustMoney("150")

	if !inv.PendingAmount().IsZero() {
		t.Errorf("PendingAmount() = %s, want 0", inv.PendingAmount())
	}
}
