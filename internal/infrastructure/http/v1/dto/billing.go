package dto

import (
	"time"

	"clinicore/internal/core/apperror"
	"clinicore/internal/core/id"
	"clinicore/internal/domain/billing"
)

// --- Invoices ---

// CreateInvoiceRequest for ad-hoc (manual) invoicing.
type CreateInvoiceRequest struct {
	ClientID      string     `json:"clientId" binding:"required,uuid"`
	AppointmentID *string    `json:"appointmentId"`
	Amount        string     `json:"amount" binding:"required"`
	DueDate       *time.Time `json:"dueDate"`
	Notes         *string    `json:"notes"`
}

// ToInput converts the request to service input.
func (r CreateInvoiceRequest) ToInput() (billing.CreateInvoiceInput, error) {
	clientID, err := id.Parse(r.ClientID)
	if err != nil {
		return billing.CreateInvoiceInput{}, apperror.NewValidation("invalid client id").
			WithDetail("field", "clientId")
	}

	amount, err := parseMoney(r.Amount)
	if err != nil {
		return billing.CreateInvoiceInput{}, err
	}

	var appointmentID *id.ID
	if r.AppointmentID != nil && *r.AppointmentID != "" {
		parsed, err := id.Parse(*r.AppointmentID)
		if err != nil {
			return billing.CreateInvoiceInput{}, apperror.NewValidation("invalid appointment id").
				WithDetail("field", "appointmentId")
		}
		appointmentID = &parsed
	}

	return billing.CreateInvoiceInput{
		ClientID:      clientID,
		AppointmentID: appointmentID,
		Amount:        amount,
		DueDate:       r.DueDate,
		Notes:         r.Notes,
	}, nil
}

// InvoiceResponse represents an invoice in API responses.
type InvoiceResponse struct {
	DocumentResponse
	ClientID      string     `json:"clientId"`
	AppointmentID *string    `json:"appointmentId,omitempty"`
	Amount        string     `json:"amount"`
	PaidAmount    string     `json:"paidAmount"`
	PendingAmount string     `json:"pendingAmount"`
	Status        string     `json:"status"`
	DueDate       *time.Time `json:"dueDate,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
}

// FromInvoice creates response from domain entity.
func FromInvoice(inv *billing.Invoice) InvoiceResponse {
	var appointmentID *string
	if inv.AppointmentID != nil {
		s := inv.AppointmentID.String()
		appointmentID = &s
	}

	return InvoiceResponse{
		DocumentResponse: FromDocument(inv.Document),
		ClientID:         inv.ClientID.String(),
		AppointmentID:    appointmentID,
		Amount:           inv.Amount.String(),
		PaidAmount:       inv.PaidAmount.String(),
		PendingAmount:    inv.PendingAmount().String(),
		Status:           string(inv.Status),
		DueDate:          inv.DueDate,
		Notes:            inv.Notes,
	}
}

// InvoiceSnapshotResponse is the settlement view of an invoice.
type InvoiceSnapshotResponse struct {
	InvoiceID     string `json:"invoiceId"`
	Number        string `json:"number"`
	Amount        string `json:"amount"`
	PaidAmount    string `json:"paidAmount"`
	PendingAmount string `json:"pendingAmount"`
	Status        string `json:"status"`
}

// FromSnapshot creates response from the settlement view.
func FromSnapshot(s billing.Snapshot) InvoiceSnapshotResponse {
	return InvoiceSnapshotResponse{
		InvoiceID:     s.InvoiceID.String(),
		Number:        s.Number,
		Amount:        s.Amount.String(),
		PaidAmount:    s.PaidAmount.String(),
		PendingAmount: s.PendingAmount.String(),
		Status:        string(s.Status),
	}
}

// --- Payments ---

// ApplyPaymentRequest posts a settled payment.
type ApplyPaymentRequest struct {
	ClientID      string  `json:"clientId" binding:"required,uuid"`
	InvoiceID     *string `json:"invoiceId"`
	AppointmentID *string `json:"appointmentId"`
	Amount        string  `json:"amount" binding:"required"`
	Method        string  `json:"method"`
	TransactionID *string `json:"transactionId"`

	// IdempotencyKey makes retried postings safe
	IdempotencyKey *string `json:"idempotencyKey"`
}

// ToInput converts the request to service input.
func (r ApplyPaymentRequest) ToInput() (billing.ApplyPaymentInput, error) {
	clientID, err := id.Parse(r.ClientID)
	if err != nil {
		return billing.ApplyPaymentInput{}, apperror.NewValidation("invalid client id").
			WithDetail("field", "clientId")
	}

	amount, err := parseMoney(r.Amount)
	if err != nil {
		return billing.ApplyPaymentInput{}, err
	}

	var invoiceID *id.ID
	if r.InvoiceID != nil && *r.InvoiceID != "" {
		parsed, err := id.Parse(*r.InvoiceID)
		if err != nil {
			return billing.ApplyPaymentInput{}, apperror.NewValidation("invalid invoice id").
				WithDetail("field", "invoiceId")
		}
		invoiceID = &parsed
	}

	var appointmentID *id.ID
	if r.AppointmentID != nil && *r.AppointmentID != "" {
		parsed, err := id.Parse(*r.AppointmentID)
		if err != nil {
			return billing.ApplyPaymentInput{}, apperror.NewValidation("invalid appointment id").
				WithDetail("field", "appointmentId")
		}
		appointmentID = &parsed
	}

	return billing.ApplyPaymentInput{
		ClientID:       clientID,
		InvoiceID:      invoiceID,
		AppointmentID:  appointmentID,
		Amount:         amount,
		Method:         billing.PaymentMethod(r.Method),
		TransactionID:  r.TransactionID,
		IdempotencyKey: r.IdempotencyKey,
	}, nil
}

// PlannedPaymentRequest records a PENDING installment payment.
type PlannedPaymentRequest struct {
	ApplyPaymentRequest
	DueDate time.Time `json:"dueDate" binding:"required"`
}

// PaymentResponse represents a payment in API responses.
type PaymentResponse struct {
	DocumentResponse
	ClientID      string     `json:"clientId"`
	AppointmentID *string    `json:"appointmentId,omitempty"`
	InvoiceID     *string    `json:"invoiceId,omitempty"`
	Amount        string     `json:"amount"`
	Method        string     `json:"method"`
	Status        string     `json:"status"`
	DueDate       *time.Time `json:"dueDate,omitempty"`
	PaidDate      *time.Time `json:"paidDate,omitempty"`
	TransactionID *string    `json:"transactionId,omitempty"`
}

// FromPayment creates response from domain entity.
func FromPayment(p *billing.Payment) PaymentResponse {
	var appointmentID, invoiceID *string
	if p.AppointmentID != nil {
		s := p.AppointmentID.String()
		appointmentID = &s
	}
	if p.InvoiceID != nil {
		s := p.InvoiceID.String()
		invoiceID = &s
	}

	return PaymentResponse{
		DocumentResponse: FromDocument(p.Document),
		ClientID:         p.ClientID.String(),
		AppointmentID:    appointmentID,
		InvoiceID:        invoiceID,
		Amount:           p.Amount.String(),
		Method:           string(p.Method),
		Status:           string(p.Status),
		DueDate:          p.DueDate,
		PaidDate:         p.PaidDate,
		TransactionID:    p.TransactionID,
	}
}

// ApplyPaymentResponse is the outcome of a payment posting.
type ApplyPaymentResponse struct {
	Payment PaymentResponse          `json:"payment"`
	Invoice *InvoiceSnapshotResponse `json:"invoice,omitempty"`
}

// FromApplyResult creates response from the posting result.
func FromApplyResult(res *billing.ApplyResult) ApplyPaymentResponse {
	out := ApplyPaymentResponse{
		Payment: FromPayment(res.Payment),
	}
	if res.Invoice != nil {
		snap := FromSnapshot(*res.Invoice)
		out.Invoice = &snap
	}
	return out
}
