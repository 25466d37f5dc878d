package billing

import (
	"time"

	"clinicore/internal/core/types"
)

// DeriveStatus computes the invoice status from its settlement facts.
//
// Precedence is significant: a fully paid invoice is PAID even past its due
// date, and a partially paid overdue invoice is PARTIAL, not OVERDUE
// (partial progress is surfaced over lateness).
func DeriveStatus(cancelled bool, amount, paidAmount types.Money, dueDate *time.Time, now time.Time) InvoiceStatus {
	switch {
	case cancelled:
		return InvoiceCancelled
	case paidAmount.GreaterThanOrEqual(amount):
		return InvoicePaid
	case paidAmount.IsPositive():
		return InvoicePartial
	case dueDate != nil && dueDate.Before(now):
		return InvoiceOverdue
	default:
		return InvoicePending
	}
}

// Reconcile recomputes the invoice status in place. Cancellation is terminal
// and never overwritten by derivation.
func (inv *Invoice) Reconcile(now time.Time) {
	inv.Status = DeriveStatus(inv.IsCancelled(), inv.Amount, inv.PaidAmount, inv.DueDate, now)
}
