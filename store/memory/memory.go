// Package memory provides in-memory store implementations for tests and
// development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/rcm-engine/gst"
	"github.com/warp/rcm-engine/ledger"
	"github.com/warp/rcm-engine/selfinvoice"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// Store implements ledger.Store and selfinvoice.InvoiceStore in memory.
type Store struct {
	mu          sync.RWMutex
	entries     map[string][]ledger.Entry // by GSTIN, ordered by date
	idempotency map[string]bool

	invoices  map[string]selfinvoice.SelfInvoice // by source transaction ID
	sequences map[seqKey]int
}

type seqKey struct {
	gstin string
	fy    gst.FiscalYear
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		entries:     make(map[string][]ledger.Entry),
		idempotency: make(map[string]bool),
		invoices:    make(map[string]selfinvoice.SelfInvoice),
		sequences:   make(map[seqKey]int),
	}
}

// =============================================================================
// LEDGER STORE (ledger.Store interface)
// =============================================================================

// AppendEntry adds one entry. Append-only.
func (m *Store) AppendEntry(_ context.Context, e ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.IdempotencyKey != "" && m.idempotency[e.IdempotencyKey] {
		return gst.ErrDuplicateReference
	}

	list := m.entries[e.GSTIN]

	// Insert in date order so balance replay stays chronological.
	i := sort.Search(len(list), func(i int) bool {
		return list[i].Date.After(e.Date)
	})
	list = append(list, ledger.Entry{})
	copy(list[i+1:], list[i:])
	list[i] = e
	m.entries[e.GSTIN] = list

	if e.IdempotencyKey != "" {
		m.idempotency[e.IdempotencyKey] = true
	}
	return nil
}

// LoadEntries returns all entries for an issuer.
func (m *Store) LoadEntries(_ context.Context, gstin string) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ledger.Entry, len(m.entries[gstin]))
	copy(out, m.entries[gstin])
	return out, nil
}

// LoadEntriesRange returns entries dated within [from, to].
func (m *Store) LoadEntriesRange(_ context.Context, gstin string, from, to time.Time) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.Entry
	for _, e := range m.entries[gstin] {
		if !e.Date.Before(from) && !e.Date.After(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

// EntryExists checks whether an idempotency key has been used.
func (m *Store) EntryExists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}

// =============================================================================
// INVOICE STORE (selfinvoice.InvoiceStore interface)
// =============================================================================

// SaveInvoice persists an invoice, enforcing source-transaction uniqueness.
func (m *Store) SaveInvoice(_ context.Context, inv selfinvoice.SelfInvoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.invoices[inv.SourceTransactionID]; exists {
		return gst.ErrDuplicateReference
	}
	m.invoices[inv.SourceTransactionID] = inv
	return nil
}

// InvoiceBySource returns the invoice for a source transaction.
func (m *Store) InvoiceBySource(_ context.Context, sourceTransactionID string) (*selfinvoice.SelfInvoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inv, ok := m.invoices[sourceTransactionID]
	if !ok {
		return nil, gst.ErrNotFound
	}
	return &inv, nil
}

// NextSequence returns the next sequence number per issuer per fiscal year.
func (m *Store) NextSequence(_ context.Context, gstin string, fy gst.FiscalYear) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := seqKey{gstin: gstin, fy: fy}
	m.sequences[k]++
	return m.sequences[k], nil
}
