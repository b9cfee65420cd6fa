/*
handlers.go - HTTP API handlers for the reverse-charge engine

PURPOSE:
  Exposes the engine via REST API. Handles HTTP request/response, JSON
  serialization and input validation, and delegates to domain logic.

ENDPOINTS:
  Classification:
    POST   /api/classify                      Match a code against the rule set
    GET    /api/rules                         List the loaded rule set

  Compliance:
    POST   /api/compliance/due-date           Due date + overdue status
    POST   /api/compliance/interest           Prorated interest

  Self-invoices:
    POST   /api/self-invoices                 Issue one (idempotent per txn)
    POST   /api/self-invoices/batch           Issue a batch
    GET    /api/self-invoices/{sourceTxnID}   Look up by source transaction

  Credit ledger:
    GET    /api/ledger/{gstin}/balance        Derived balance (?as_of=)
    GET    /api/ledger/{gstin}/entries        History (?from=&to=)
    POST   /api/ledger/{gstin}/entries        Post an entry

  Reconciliation:
    POST   /api/reconciliation/run            Run claim-vs-statement matching
    GET    /api/reconciliation/runs           Run summaries (?gstin=)

  Utilization:
    POST   /api/utilization/allocate          Credit-vs-liability allocation

ERROR HANDLING:
  Errors map to HTTP status by category:
  - 400: Validation errors, malformed input
  - 404: Resource not found
  - 409: Duplicate reference (idempotent retry)
  - 422: Compliance violation, insufficient balance
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/warp/rcm-engine/compliance"
	"github.com/warp/rcm-engine/gst"
	"github.com/warp/rcm-engine/ledger"
	"github.com/warp/rcm-engine/recon"
	"github.com/warp/rcm-engine/rules"
	"github.com/warp/rcm-engine/selfinvoice"
	"github.com/warp/rcm-engine/store/sqlite"
	"github.com/warp/rcm-engine/utilization"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    *sqlite.Store
	Registry *rules.Registry
	Timer    *compliance.Timer
	Issuer   *selfinvoice.Issuer
	Ledger   *ledger.Ledger

	validate *validator.Validate
	log      zerolog.Logger
}

// NewHandler wires the engine components to the HTTP layer.
func NewHandler(store *sqlite.Store, registry *rules.Registry, timer *compliance.Timer,
	issuer *selfinvoice.Issuer, led *ledger.Ledger, log zerolog.Logger) *Handler {
	return &Handler{
		Store:    store,
		Registry: registry,
		Timer:    timer,
		Issuer:   issuer,
		Ledger:   led,
		validate: validator.New(),
		log:      log,
	}
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			h.log.Error().Err(err).Msg("failed to encode response")
		}
	}
}

// respondError maps the error taxonomy to HTTP status codes.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var status int
	var code string
	switch {
	case errors.Is(err, gst.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, gst.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, gst.ErrDuplicateReference):
		status, code = http.StatusConflict, "DUPLICATE_REFERENCE"
	case errors.Is(err, gst.ErrComplianceViolation):
		status = http.StatusUnprocessableEntity
		var cv *gst.ComplianceViolationError
		if errors.As(err, &cv) {
			code = cv.Code
		}
	case errors.Is(err, gst.ErrInsufficientBalance):
		status, code = http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE"
	default:
		status = http.StatusInternalServerError
		h.log.Error().Err(err).Msg("internal error")
	}
	h.respondJSON(w, status, ErrorResponse{Error: err.Error(), Code: code})
}

// decode parses and validates a request body.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON: " + err.Error()})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Details: err.Error()})
		return false
	}
	return true
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

// Classify matches a product/service code against the notified rule set.
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if !h.decode(w, r, &req) {
		return
	}
	asOf, _ := time.Parse("2006-01-02", req.AsOf)

	match, ok := h.Registry.Match(req.Code, req.CounterpartyGSTIN, asOf)
	if !ok {
		h.respondJSON(w, http.StatusOK, ClassifyResponse{Applicable: false})
		return
	}
	h.respondJSON(w, http.StatusOK, ClassifyResponse{
		Applicable:    true,
		RuleID:        match.Rule.ID,
		Description:   match.Rule.Description,
		GSTRate:       match.Rule.GSTRate,
		MatchedPrefix: match.MatchedPrefix,
	})
}

// ListRules returns the loaded rule set.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.Registry.Rules())
}

// =============================================================================
// COMPLIANCE
// =============================================================================

// GetDueDate computes the statutory due date and the overdue status for a
// receipt date.
func (h *Handler) GetDueDate(w http.ResponseWriter, r *http.Request) {
	var req DueDateRequest
	if !h.decode(w, r, &req) {
		return
	}
	receipt, _ := time.Parse("2006-01-02", req.ReceiptDate)

	due, err := h.Timer.DueDate(receipt)
	if err != nil {
		h.respondError(w, err)
		return
	}
	now := time.Now().UTC()
	status := h.Timer.Overdue(due, now)
	h.respondJSON(w, http.StatusOK, DueDateResponse{
		DueDate:       due.Format("2006-01-02"),
		IsOverdue:     status.IsOverdue,
		DaysPastDue:   status.DaysPastDue,
		Category:      string(status.Category),
		WindowWarning: string(h.Timer.WindowWarning(receipt, now)),
	})
}

// ComputeInterest prices a late payment.
func (h *Handler) ComputeInterest(w http.ResponseWriter, r *http.Request) {
	var req InterestRequest
	if !h.decode(w, r, &req) {
		return
	}
	interest, err := h.Timer.Interest(req.Principal, req.DaysOverdue, req.AnnualRatePercent)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, InterestResponse{Interest: interest})
}

// =============================================================================
// SELF-INVOICES
// =============================================================================

// IssueSelfInvoice generates and persists the self-invoice for one
// transaction. Re-posting the same transaction returns the stored invoice.
func (h *Handler) IssueSelfInvoice(w http.ResponseWriter, r *http.Request) {
	var req GenerateInvoiceRequest
	if !h.decode(w, r, &req) {
		return
	}

	inv, err := h.Issuer.Issue(r.Context(), req.Transaction.toDomain(), req.Recipient.toDomain())
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.log.Info().
		Str("invoice", inv.Number).
		Str("source_txn", inv.SourceTransactionID).
		Bool("within_time", inv.IssuedWithinTime).
		Msg("self-invoice issued")
	h.respondJSON(w, http.StatusCreated, toSelfInvoiceDTO(inv))
}

// IssueSelfInvoiceBatch issues invoices for a batch, isolating per-item
// failures so one bad transaction cannot sink the batch.
func (h *Handler) IssueSelfInvoiceBatch(w http.ResponseWriter, r *http.Request) {
	var req GenerateBatchRequest
	if !h.decode(w, r, &req) {
		return
	}

	txns := make([]selfinvoice.Transaction, 0, len(req.Transactions))
	for _, t := range req.Transactions {
		txns = append(txns, t.toDomain())
	}

	invoices, failures := h.Issuer.IssueBatch(r.Context(), txns, req.Recipient.toDomain())

	resp := GenerateBatchResponse{
		Generated: make([]SelfInvoiceDTO, 0, len(invoices)),
		Failures:  make([]BatchFailureDTO, 0, len(failures)),
	}
	for _, inv := range invoices {
		resp.Generated = append(resp.Generated, toSelfInvoiceDTO(inv))
	}
	for _, f := range failures {
		resp.Failures = append(resp.Failures, BatchFailureDTO{
			TransactionID: f.TransactionID,
			Reason:        f.Err.Error(),
		})
	}
	h.log.Info().
		Int("generated", len(invoices)).
		Int("failed", len(failures)).
		Msg("self-invoice batch processed")
	h.respondJSON(w, http.StatusOK, resp)
}

// GetSelfInvoice looks up the invoice issued for a source transaction.
func (h *Handler) GetSelfInvoice(w http.ResponseWriter, r *http.Request) {
	sourceTxnID := chi.URLParam(r, "sourceTxnID")
	inv, err := h.Store.InvoiceBySource(r.Context(), sourceTxnID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toSelfInvoiceDTO(inv))
}

// =============================================================================
// CREDIT LEDGER
// =============================================================================

// GetBalance derives the issuer's balance, optionally as of a date.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	gstin := chi.URLParam(r, "gstin")

	var (
		snap ledger.BalanceSnapshot
		err  error
	)
	if asOfStr := r.URL.Query().Get("as_of"); asOfStr != "" {
		asOf, perr := time.Parse("2006-01-02", asOfStr)
		if perr != nil {
			h.respondError(w, gst.Invalid("as_of", "must be YYYY-MM-DD"))
			return
		}
		snap, err = h.Ledger.BalanceAsOf(r.Context(), gstin, asOf)
	} else {
		snap, err = h.Ledger.CurrentBalance(r.Context(), gstin)
	}
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, BalanceDTO{
		GSTIN: gstin,
		IGST:  snap.IGST,
		CGST:  snap.CGST,
		SGST:  snap.SGST,
		Total: snap.Total,
	})
}

// GetEntries returns the issuer's ledger history, optionally bounded.
func (h *Handler) GetEntries(w http.ResponseWriter, r *http.Request) {
	gstin := chi.URLParam(r, "gstin")

	var (
		entries []ledger.Entry
		err     error
	)
	fromStr, toStr := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if fromStr != "" || toStr != "" {
		from, ferr := time.Parse("2006-01-02", fromStr)
		to, terr := time.Parse("2006-01-02", toStr)
		if ferr != nil || terr != nil {
			h.respondError(w, gst.Invalid("from/to", "must both be YYYY-MM-DD"))
			return
		}
		entries, err = h.Ledger.EntriesInRange(r.Context(), gstin, from, to)
	} else {
		entries, err = h.Ledger.Entries(r.Context(), gstin)
	}
	if err != nil {
		h.respondError(w, err)
		return
	}

	out := make([]EntryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryDTO(e))
	}
	h.respondJSON(w, http.StatusOK, out)
}

// PostEntry appends one ledger entry for the issuer.
func (h *Handler) PostEntry(w http.ResponseWriter, r *http.Request) {
	gstin := chi.URLParam(r, "gstin")

	var req PostEntryRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, _ := time.Parse("2006-01-02", req.Date)

	e := ledger.Entry{
		ID:             uuid.NewString(),
		GSTIN:          gstin,
		Date:           date,
		Type:           ledger.EntryType(req.Type),
		Amount:         req.Amount.toDomain(),
		Status:         ledger.EntryStatus(req.Status),
		Reference:      req.Reference,
		IdempotencyKey: req.IdempotencyKey,
		Reason:         req.Reason,
	}
	if err := h.Ledger.Post(r.Context(), e); err != nil {
		h.respondError(w, err)
		return
	}
	h.log.Info().
		Str("gstin", gstin).
		Str("type", req.Type).
		Str("entry", e.ID).
		Msg("ledger entry posted")
	h.respondJSON(w, http.StatusCreated, toEntryDTO(e))
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// RunReconciliation matches claimed credit against the period statement,
// persists a run summary, and optionally posts correction entries.
func (h *Handler) RunReconciliation(w http.ResponseWriter, r *http.Request) {
	var req ReconcileRequest
	if !h.decode(w, r, &req) {
		return
	}
	period, err := gst.ParsePeriod(req.Period)
	if err != nil {
		h.respondError(w, err)
		return
	}

	statement := make([]recon.StatementEntry, 0, len(req.Statement))
	for _, s := range req.Statement {
		statement = append(statement, s.toDomain())
	}
	claimed := make([]recon.ClaimedEntry, 0, len(req.Claimed))
	for _, c := range req.Claimed {
		claimed = append(claimed, c.toDomain())
	}

	res := recon.Match(statement, claimed)

	run := recon.Summarize(res, req.GSTIN, period)
	run.ID = uuid.NewString()
	run.CreatedAt = time.Now().UTC()
	if err := h.Store.SaveReconciliationRun(r.Context(), run); err != nil {
		h.respondError(w, err)
		return
	}

	resp := toReconcileResponse(res)
	if req.PostCorrections {
		corrections := recon.CorrectionEntries(res, req.GSTIN, period.End())
		for i := range corrections {
			corrections[i].ID = uuid.NewString()
		}
		if err := h.Ledger.PostBatch(r.Context(), req.GSTIN, corrections); err != nil {
			h.respondError(w, err)
			return
		}
		for _, c := range corrections {
			resp.Corrections = append(resp.Corrections, toEntryDTO(c))
		}
	}

	h.log.Info().
		Str("gstin", req.GSTIN).
		Str("period", period.String()).
		Int("matched", run.Matched).
		Int("mismatched", run.Mismatched).
		Int("violations", run.Violations).
		Msg("reconciliation run complete")
	h.respondJSON(w, http.StatusOK, resp)
}

func toReconcileResponse(res recon.Result) ReconcileResponse {
	resp := ReconcileResponse{
		Matched:       make([]PairingDTO, 0, len(res.Matched)),
		Mismatches:    make([]PairingDTO, 0, len(res.Mismatches)),
		ClaimOnly:     make([]ClaimedEntryDTO, 0, len(res.ClaimOnly)),
		StatementOnly: make([]string, 0, len(res.StatementOnly)),
		Violations:    make([]ViolationDTO, 0, len(res.Violations)),
		Amendments:    make([]string, 0, len(res.Amendments)),
		ManualEntry:   make([]string, 0, len(res.ManualEntry)),
	}
	toPairing := func(p recon.Pairing) PairingDTO {
		return PairingDTO{
			DocumentNumber: p.Claim.DocumentNumber,
			SupplierGSTIN:  p.Claim.SupplierGSTIN,
			Status:         string(p.Status),
			Claimed:        toTaxAmountDTO(p.Claim.Claimed),
			Statement:      toTaxAmountDTO(p.Statement.Tax),
			Difference:     toTaxAmountDTO(p.Difference),
		}
	}
	for _, p := range res.Matched {
		resp.Matched = append(resp.Matched, toPairing(p))
	}
	for _, p := range res.Mismatches {
		resp.Mismatches = append(resp.Mismatches, toPairing(p))
	}
	for _, c := range res.ClaimOnly {
		resp.ClaimOnly = append(resp.ClaimOnly, ClaimedEntryDTO{
			SupplierGSTIN:  c.SupplierGSTIN,
			DocumentNumber: c.DocumentNumber,
			DocumentDate:   c.DocumentDate.Format("2006-01-02"),
			TaxableValue:   c.TaxableValue,
			Claimed:        toTaxAmountDTO(c.Claimed),
			Source:         string(c.Source),
		})
	}
	for _, s := range res.StatementOnly {
		resp.StatementOnly = append(resp.StatementOnly, s.DocumentNumber)
	}
	for _, v := range res.Violations {
		resp.Violations = append(resp.Violations, ViolationDTO{
			Code:           string(v.Code),
			DocumentNumber: v.Claim.DocumentNumber,
			Excess:         toTaxAmountDTO(v.Excess),
		})
	}
	for _, a := range res.Amendments {
		resp.Amendments = append(resp.Amendments, a.Statement.DocumentNumber)
	}
	for _, c := range res.ManualEntry {
		resp.ManualEntry = append(resp.ManualEntry, c.DocumentNumber)
	}
	return resp
}

// ListReconciliationRuns returns persisted run summaries for an issuer.
func (h *Handler) ListReconciliationRuns(w http.ResponseWriter, r *http.Request) {
	gstin := r.URL.Query().Get("gstin")
	if gstin == "" {
		h.respondError(w, gst.Invalid("gstin", "query parameter is required"))
		return
	}
	runs, err := h.Store.ListReconciliationRuns(r.Context(), gstin)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]RunSummaryDTO, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunSummaryDTO(run))
	}
	h.respondJSON(w, http.StatusOK, out)
}

// =============================================================================
// UTILIZATION
// =============================================================================

// AllocateCredit applies available credit against a liability in the
// fixed statutory order and reports the residual cash requirement.
func (h *Handler) AllocateCredit(w http.ResponseWriter, r *http.Request) {
	var req AllocateRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := utilization.Allocate(req.Available.toDomain(), req.Liability.toDomain())
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toAllocateResponse(res))
}

// =============================================================================
// HEALTH
// =============================================================================

// Health is the liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
