/*
ledger.go - Serialized ledger service over a Store

PURPOSE:
  The pure Apply/Balance functions in entry.go operate on already-loaded
  histories. This service adds the two things the calling layer needs:
  durable persistence behind the Store interface, and the serialization
  the non-negative invariant requires.

CONCURRENCY:
  Two concurrent debits must not both pass a balance check against a
  stale snapshot. Appends for the same issuer are therefore serialized
  with a per-GSTIN lock around read-balance-then-append. Different
  issuers proceed in parallel.

RETRIES:
  The wider system invokes this engine from a queue with at-least-once
  delivery. Entries carry an idempotency key; a duplicate append returns
  ErrDuplicateReference, which callers treat as already-done.
*/
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/warp/rcm-engine/gst"
)

// =============================================================================
// STORE - Persistence interface (append-only)
// =============================================================================

// Store persists ledger entries. Append-only: no update, no delete.
type Store interface {
	// AppendEntry persists one entry. Returns ErrDuplicateReference if
	// the idempotency key already exists.
	AppendEntry(ctx context.Context, e Entry) error

	// LoadEntries returns all entries for an issuer, ordered by date
	// then creation time.
	LoadEntries(ctx context.Context, gstin string) ([]Entry, error)

	// LoadEntriesRange returns entries dated within [from, to].
	LoadEntriesRange(ctx context.Context, gstin string, from, to time.Time) ([]Entry, error)

	// EntryExists checks whether an idempotency key has been used.
	EntryExists(ctx context.Context, idempotencyKey string) (bool, error)
}

// =============================================================================
// LEDGER SERVICE
// =============================================================================

// Ledger enforces the non-negative invariant over a Store.
type Ledger struct {
	store Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-GSTIN append serialization
}

// New creates a ledger service over a store.
func New(store Store) *Ledger {
	return &Ledger{store: store, locks: make(map[string]*sync.Mutex)}
}

func (l *Ledger) lockFor(gstin string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[gstin]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[gstin] = lock
	}
	return lock
}

// Post appends one entry, holding the issuer's lock across the
// read-balance-then-append so concurrent posts cannot both pass the
// balance check against a stale snapshot.
func (l *Ledger) Post(ctx context.Context, e Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}

	lock := l.lockFor(e.GSTIN)
	lock.Lock()
	defer lock.Unlock()

	if e.IdempotencyKey != "" {
		exists, err := l.store.EntryExists(ctx, e.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return gst.ErrDuplicateReference
		}
	}

	entries, err := l.store.LoadEntries(ctx, e.GSTIN)
	if err != nil {
		return err
	}
	if _, err := Apply(entries, e); err != nil {
		return err
	}
	return l.store.AppendEntry(ctx, e)
}

// PostBatch appends entries for one issuer in order, all under a single
// hold of the issuer's lock. The first rejected entry stops the batch;
// entries already appended stand (each is independently valid).
func (l *Ledger) PostBatch(ctx context.Context, gstin string, batch []Entry) error {
	lock := l.lockFor(gstin)
	lock.Lock()
	defer lock.Unlock()

	entries, err := l.store.LoadEntries(ctx, gstin)
	if err != nil {
		return err
	}

	for _, e := range batch {
		if e.GSTIN != gstin {
			return gst.Invalid("entry.gstin", "batch entries must share one issuer")
		}
		if e.IdempotencyKey != "" {
			exists, err := l.store.EntryExists(ctx, e.IdempotencyKey)
			if err != nil {
				return err
			}
			if exists {
				continue // retry of an already-posted entry
			}
		}
		next, err := Apply(entries, e)
		if err != nil {
			return err
		}
		if err := l.store.AppendEntry(ctx, e); err != nil {
			return err
		}
		entries = next
	}
	return nil
}

// CurrentBalance derives the issuer's balance from the full history.
func (l *Ledger) CurrentBalance(ctx context.Context, gstin string) (BalanceSnapshot, error) {
	entries, err := l.store.LoadEntries(ctx, gstin)
	if err != nil {
		return BalanceSnapshot{}, err
	}
	return Balance(entries), nil
}

// BalanceAsOf derives the balance from entries dated up to and including
// the given date.
func (l *Ledger) BalanceAsOf(ctx context.Context, gstin string, asOf time.Time) (BalanceSnapshot, error) {
	entries, err := l.store.LoadEntries(ctx, gstin)
	if err != nil {
		return BalanceSnapshot{}, err
	}
	var upTo []Entry
	for _, e := range entries {
		if !e.Date.After(asOf) {
			upTo = append(upTo, e)
		}
	}
	return Balance(upTo), nil
}

// Entries returns the issuer's full history.
func (l *Ledger) Entries(ctx context.Context, gstin string) ([]Entry, error) {
	return l.store.LoadEntries(ctx, gstin)
}

// EntriesInRange returns the issuer's entries dated within [from, to].
func (l *Ledger) EntriesInRange(ctx context.Context, gstin string, from, to time.Time) ([]Entry, error) {
	return l.store.LoadEntriesRange(ctx, gstin, from, to)
}
