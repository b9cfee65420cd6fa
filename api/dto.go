/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for API communication, decoupling the domain model
  from the external contract. Amounts travel as decimal strings so no
  precision is lost at the boundary.

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *DTO / *Response: Types returned to clients

VALIDATION:
  Request types carry go-playground/validator tags; handlers run the
  validator before touching domain logic.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/rcm-engine/gst"
	"github.com/warp/rcm-engine/ledger"
	"github.com/warp/rcm-engine/recon"
	"github.com/warp/rcm-engine/selfinvoice"
	"github.com/warp/rcm-engine/utilization"
)

// =============================================================================
// SHARED
// =============================================================================

// TaxAmountDTO carries a per-head amount triple.
type TaxAmountDTO struct {
	IGST decimal.Decimal `json:"igst"`
	CGST decimal.Decimal `json:"cgst"`
	SGST decimal.Decimal `json:"sgst"`
}

func toTaxAmountDTO(t gst.TaxAmount) TaxAmountDTO {
	return TaxAmountDTO{IGST: t.IGST, CGST: t.CGST, SGST: t.SGST}
}

func (d TaxAmountDTO) toDomain() gst.TaxAmount {
	return gst.TaxAmount{IGST: d.IGST, CGST: d.CGST, SGST: d.SGST}
}

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

type ClassifyRequest struct {
	Code              string `json:"code" validate:"required"`
	CounterpartyGSTIN string `json:"counterparty_gstin,omitempty"`
	AsOf              string `json:"as_of" validate:"required,datetime=2006-01-02"`
}

type ClassifyResponse struct {
	Applicable    bool            `json:"applicable"`
	RuleID        string          `json:"rule_id,omitempty"`
	Description   string          `json:"description,omitempty"`
	GSTRate       decimal.Decimal `json:"gst_rate,omitempty"`
	MatchedPrefix string          `json:"matched_prefix,omitempty"`
}

// =============================================================================
// COMPLIANCE
// =============================================================================

type DueDateRequest struct {
	ReceiptDate string `json:"receipt_date" validate:"required,datetime=2006-01-02"`
}

type DueDateResponse struct {
	DueDate       string `json:"due_date"`
	IsOverdue     bool   `json:"is_overdue"`
	DaysPastDue   int    `json:"days_past_due"`
	Category      string `json:"category"`
	WindowWarning string `json:"window_warning"`
}

type InterestRequest struct {
	Principal         decimal.Decimal `json:"principal" validate:"required"`
	DaysOverdue       int             `json:"days_overdue"`
	AnnualRatePercent decimal.Decimal `json:"annual_rate_percent" validate:"required"`
}

type InterestResponse struct {
	Interest decimal.Decimal `json:"interest"`
}

// =============================================================================
// SELF-INVOICE
// =============================================================================

type TransactionDTO struct {
	ID                string           `json:"id" validate:"required"`
	SupplierName      string           `json:"supplier_name"`
	SupplierGSTIN     string           `json:"supplier_gstin,omitempty"`
	SupplierStateCode string           `json:"supplier_state_code" validate:"required,len=2"`
	HSNSACCode        string           `json:"hsn_sac_code" validate:"required"`
	TransactionDate   string           `json:"transaction_date" validate:"required,datetime=2006-01-02"`
	ReceiptDate       string           `json:"receipt_date" validate:"required,datetime=2006-01-02"`
	TaxableAmount     decimal.Decimal  `json:"taxable_amount"`
	ForeignAmount     *decimal.Decimal `json:"foreign_amount,omitempty"`
	ExchangeRate      *decimal.Decimal `json:"exchange_rate,omitempty"`
	CessRate          decimal.Decimal  `json:"cess_rate"`
}

func (d TransactionDTO) toDomain() selfinvoice.Transaction {
	txnDate, _ := time.Parse("2006-01-02", d.TransactionDate)
	receipt, _ := time.Parse("2006-01-02", d.ReceiptDate)
	return selfinvoice.Transaction{
		ID:                d.ID,
		SupplierName:      d.SupplierName,
		SupplierGSTIN:     d.SupplierGSTIN,
		SupplierStateCode: d.SupplierStateCode,
		HSNSACCode:        d.HSNSACCode,
		TransactionDate:   txnDate,
		ReceiptDate:       receipt,
		TaxableAmount:     d.TaxableAmount,
		ForeignAmount:     d.ForeignAmount,
		ExchangeRate:      d.ExchangeRate,
		CessRate:          d.CessRate,
	}
}

type RecipientDTO struct {
	GSTIN     string `json:"gstin" validate:"required,len=15"`
	LegalName string `json:"legal_name"`
	StateCode string `json:"state_code" validate:"required,len=2"`
}

func (d RecipientDTO) toDomain() selfinvoice.RecipientProfile {
	return selfinvoice.RecipientProfile{
		GSTIN:     d.GSTIN,
		LegalName: d.LegalName,
		StateCode: d.StateCode,
	}
}

type GenerateInvoiceRequest struct {
	Recipient   RecipientDTO   `json:"recipient" validate:"required"`
	Transaction TransactionDTO `json:"transaction" validate:"required"`
}

type GenerateBatchRequest struct {
	Recipient    RecipientDTO     `json:"recipient" validate:"required"`
	Transactions []TransactionDTO `json:"transactions" validate:"required,min=1,dive"`
}

type SelfInvoiceDTO struct {
	Number              string          `json:"number"`
	SourceTransactionID string          `json:"source_transaction_id"`
	IssueDate           string          `json:"issue_date"`
	RecipientGSTIN      string          `json:"recipient_gstin"`
	SupplierName        string          `json:"supplier_name,omitempty"`
	SupplierGSTIN       string          `json:"supplier_gstin,omitempty"`
	HSNSACCode          string          `json:"hsn_sac_code"`
	RuleID              string          `json:"rule_id"`
	TaxableValue        decimal.Decimal `json:"taxable_value"`
	GSTRate             decimal.Decimal `json:"gst_rate"`
	Tax                 TaxAmountDTO    `json:"tax"`
	Cess                decimal.Decimal `json:"cess"`
	TotalValue          decimal.Decimal `json:"total_value"`
	IssuedWithinTime    bool            `json:"issued_within_time"`
	DaysDelayed         int             `json:"days_delayed"`
}

func toSelfInvoiceDTO(inv *selfinvoice.SelfInvoice) SelfInvoiceDTO {
	return SelfInvoiceDTO{
		Number:              inv.Number,
		SourceTransactionID: inv.SourceTransactionID,
		IssueDate:           inv.IssueDate.Format("2006-01-02"),
		RecipientGSTIN:      inv.RecipientGSTIN,
		SupplierName:        inv.SupplierName,
		SupplierGSTIN:       inv.SupplierGSTIN,
		HSNSACCode:          inv.HSNSACCode,
		RuleID:              inv.RuleID,
		TaxableValue:        inv.TaxableValue,
		GSTRate:             inv.GSTRate,
		Tax:                 toTaxAmountDTO(inv.Tax),
		Cess:                inv.Cess,
		TotalValue:          inv.TotalValue,
		IssuedWithinTime:    inv.IssuedWithinTime,
		DaysDelayed:         inv.DaysDelayed,
	}
}

type BatchFailureDTO struct {
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
}

type GenerateBatchResponse struct {
	Generated []SelfInvoiceDTO  `json:"generated"`
	Failures  []BatchFailureDTO `json:"failures"`
}

// =============================================================================
// LEDGER
// =============================================================================

type PostEntryRequest struct {
	Date      string       `json:"date" validate:"required,datetime=2006-01-02"`
	Type      string       `json:"type" validate:"required,oneof=CREDIT DEBIT REVERSAL ADJUSTMENT"`
	Amount    TaxAmountDTO `json:"amount" validate:"required"`
	Status    string       `json:"status,omitempty" validate:"omitempty,oneof=PROVISIONAL FINAL"`
	Reference string       `json:"reference,omitempty"`
	Reason    string       `json:"reason,omitempty"`

	// IdempotencyKey dedups queue retries; optional for manual posts.
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type EntryDTO struct {
	ID        string       `json:"id"`
	GSTIN     string       `json:"gstin"`
	Date      string       `json:"date"`
	Type      string       `json:"type"`
	Amount    TaxAmountDTO `json:"amount"`
	Status    string       `json:"status,omitempty"`
	Reference string       `json:"reference,omitempty"`
	Reason    string       `json:"reason,omitempty"`
	CreatedAt string       `json:"created_at,omitempty"`
}

func toEntryDTO(e ledger.Entry) EntryDTO {
	dto := EntryDTO{
		ID:        e.ID,
		GSTIN:     e.GSTIN,
		Date:      e.Date.Format("2006-01-02"),
		Type:      string(e.Type),
		Amount:    toTaxAmountDTO(e.Amount),
		Status:    string(e.Status),
		Reference: e.Reference,
		Reason:    e.Reason,
	}
	if !e.CreatedAt.IsZero() {
		dto.CreatedAt = e.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

type BalanceDTO struct {
	GSTIN string          `json:"gstin"`
	IGST  decimal.Decimal `json:"igst"`
	CGST  decimal.Decimal `json:"cgst"`
	SGST  decimal.Decimal `json:"sgst"`
	Total decimal.Decimal `json:"total"`
}

// =============================================================================
// RECONCILIATION
// =============================================================================

type StatementEntryDTO struct {
	SupplierGSTIN          string          `json:"supplier_gstin" validate:"required"`
	TradeName              string          `json:"trade_name,omitempty"`
	DocumentNumber         string          `json:"document_number" validate:"required"`
	DocumentDate           string          `json:"document_date" validate:"required,datetime=2006-01-02"`
	TaxableValue           decimal.Decimal `json:"taxable_value"`
	Tax                    TaxAmountDTO    `json:"tax"`
	EligibleITC            TaxAmountDTO    `json:"eligible_itc"`
	BlockedITC             TaxAmountDTO    `json:"blocked_itc"`
	IsAmendment            bool            `json:"is_amendment,omitempty"`
	OriginalDocumentNumber string          `json:"original_document_number,omitempty"`
	OriginalDocumentDate   string          `json:"original_document_date,omitempty"`
}

func (d StatementEntryDTO) toDomain() recon.StatementEntry {
	docDate, _ := time.Parse("2006-01-02", d.DocumentDate)
	origDate, _ := time.Parse("2006-01-02", d.OriginalDocumentDate)
	return recon.StatementEntry{
		SupplierGSTIN:          d.SupplierGSTIN,
		TradeName:              d.TradeName,
		DocumentNumber:         d.DocumentNumber,
		DocumentDate:           docDate,
		TaxableValue:           d.TaxableValue,
		Tax:                    d.Tax.toDomain(),
		EligibleITC:            d.EligibleITC.toDomain(),
		BlockedITC:             d.BlockedITC.toDomain(),
		IsAmendment:            d.IsAmendment,
		OriginalDocumentNumber: d.OriginalDocumentNumber,
		OriginalDocumentDate:   origDate,
	}
}

type ClaimedEntryDTO struct {
	SupplierGSTIN  string          `json:"supplier_gstin,omitempty"`
	DocumentNumber string          `json:"document_number" validate:"required"`
	DocumentDate   string          `json:"document_date" validate:"required,datetime=2006-01-02"`
	TaxableValue   decimal.Decimal `json:"taxable_value"`
	Claimed        TaxAmountDTO    `json:"claimed"`
	Source         string          `json:"source,omitempty" validate:"omitempty,oneof=PURCHASE RCM"`
}

func (d ClaimedEntryDTO) toDomain() recon.ClaimedEntry {
	docDate, _ := time.Parse("2006-01-02", d.DocumentDate)
	source := recon.ClaimSource(d.Source)
	if source == "" {
		source = recon.SourcePurchase
	}
	return recon.ClaimedEntry{
		SupplierGSTIN:  d.SupplierGSTIN,
		DocumentNumber: d.DocumentNumber,
		DocumentDate:   docDate,
		TaxableValue:   d.TaxableValue,
		Claimed:        d.Claimed.toDomain(),
		Source:         source,
	}
}

type ReconcileRequest struct {
	GSTIN     string              `json:"gstin" validate:"required,len=15"`
	Period    string              `json:"period" validate:"required,len=6"`
	Statement []StatementEntryDTO `json:"statement" validate:"dive"`
	Claimed   []ClaimedEntryDTO   `json:"claimed" validate:"dive"`

	// PostCorrections appends the derived correction entries to the
	// ledger as part of the run.
	PostCorrections bool `json:"post_corrections,omitempty"`
}

type PairingDTO struct {
	DocumentNumber string       `json:"document_number"`
	SupplierGSTIN  string       `json:"supplier_gstin"`
	Status         string       `json:"status"`
	Claimed        TaxAmountDTO `json:"claimed"`
	Statement      TaxAmountDTO `json:"statement"`
	Difference     TaxAmountDTO `json:"difference,omitempty"`
}

type ViolationDTO struct {
	Code           string       `json:"code"`
	DocumentNumber string       `json:"document_number"`
	Excess         TaxAmountDTO `json:"excess"`
}

type ReconcileResponse struct {
	Matched       []PairingDTO      `json:"matched"`
	Mismatches    []PairingDTO      `json:"mismatches"`
	ClaimOnly     []ClaimedEntryDTO `json:"claim_only"`
	StatementOnly []string          `json:"statement_only"` // document numbers
	Violations    []ViolationDTO    `json:"violations"`
	Amendments    []string          `json:"amendments"` // document numbers
	ManualEntry   []string          `json:"manual_entry"`
	Corrections   []EntryDTO        `json:"corrections,omitempty"`
}

type RunSummaryDTO struct {
	ID            string `json:"id"`
	GSTIN         string `json:"gstin"`
	Period        string `json:"period"`
	Matched       int    `json:"matched"`
	Mismatched    int    `json:"mismatched"`
	ClaimOnly     int    `json:"claim_only"`
	StatementOnly int    `json:"statement_only"`
	Violations    int    `json:"violations"`
	ManualEntry   int    `json:"manual_entry"`
	CreatedAt     string `json:"created_at"`
}

func toRunSummaryDTO(run recon.RunSummary) RunSummaryDTO {
	return RunSummaryDTO{
		ID:            run.ID,
		GSTIN:         run.GSTIN,
		Period:        run.Period.String(),
		Matched:       run.Matched,
		Mismatched:    run.Mismatched,
		ClaimOnly:     run.ClaimOnly,
		StatementOnly: run.StatementOnly,
		Violations:    run.Violations,
		ManualEntry:   run.ManualEntry,
		CreatedAt:     run.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// UTILIZATION
// =============================================================================

type AllocateRequest struct {
	Available TaxAmountDTO `json:"available" validate:"required"`
	Liability TaxAmountDTO `json:"liability" validate:"required"`
}

type AllocateResponse struct {
	Used         TaxAmountDTO    `json:"used"`
	RemainingITC TaxAmountDTO    `json:"remaining_itc"`
	CashRequired TaxAmountDTO    `json:"cash_required"`
	CashTotal    decimal.Decimal `json:"cash_total"`
}

func toAllocateResponse(r utilization.Result) AllocateResponse {
	return AllocateResponse{
		Used:         toTaxAmountDTO(r.Used),
		RemainingITC: toTaxAmountDTO(r.RemainingITC),
		CashRequired: toTaxAmountDTO(r.CashRequired),
		CashTotal:    r.CashTotal,
	}
}
