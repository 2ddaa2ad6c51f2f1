package statement

import (
	"fmt"
	"sync"

	"github.com/dvloznov/budget-ledger/internal/domain"
)

// Staging holds one parsed statement and the user's selection while they
// filter and group it. Selection survives filter changes; parsing another
// statement replaces the whole Staging.
type Staging struct {
	mu  sync.RWMutex
	txs []Transaction
}

// NewStaging starts a staging area with nothing selected.
func NewStaging(result Result) *Staging {
	txs := make([]Transaction, len(result.Transactions))
	copy(txs, result.Transactions)
	for i := range txs {
		txs[i].Seq = i
		txs[i].Selected = false
	}
	return &Staging{txs: txs}
}

// Len returns the number of staged transactions.
func (s *Staging) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.txs)
}

// View applies f to a snapshot of the staged transactions.
func (s *Staging) View(f Filter) []Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return f.Apply(s.txs)
}

// Groups applies f and groups the result by merchant.
func (s *Staging) Groups(f Filter) []Group {
	return GroupByMerchant(s.View(f))
}

// SetSelected marks the transactions with the given sequence numbers.
func (s *Staging) SetSelected(selected bool, seqs ...int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, seq := range seqs {
		if seq < 0 || seq >= len(s.txs) {
			return fmt.Errorf("SetSelected: %w: no staged transaction %d", domain.ErrValidation, seq)
		}
	}
	for _, seq := range seqs {
		s.txs[seq].Selected = selected
	}
	return nil
}

// Toggle flips the selection of one transaction.
func (s *Staging) Toggle(seq int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq < 0 || seq >= len(s.txs) {
		return fmt.Errorf("Toggle: %w: no staged transaction %d", domain.ErrValidation, seq)
	}
	s.txs[seq].Selected = !s.txs[seq].Selected
	return nil
}

// SelectMatching sets the selection of every transaction passing f and
// returns how many were touched.
func (s *Staging) SelectMatching(f Filter, selected bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for i := range s.txs {
		if f.Match(s.txs[i]) {
			s.txs[i].Selected = selected
			n++
		}
	}
	return n
}

// SelectMerchant sets the selection of every transaction of one merchant
// group within f.
func (s *Staging) SelectMerchant(f Filter, merchant string, selected bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for i := range s.txs {
		if s.txs[i].Merchant == merchant && f.Match(s.txs[i]) {
			s.txs[i].Selected = selected
			n++
		}
	}
	return n
}

// Selected returns the selected transactions in staging order.
func (s *Staging) Selected() []Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Transaction
	for _, t := range s.txs {
		if t.Selected {
			out = append(out, t)
		}
	}
	return out
}

// ClearSelection deselects everything.
func (s *Staging) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.txs {
		s.txs[i].Selected = false
	}
}

// Sessions keeps one Staging per user.
type Sessions struct {
	mu      sync.Mutex
	staging map[string]*Staging
}

// NewSessions creates an empty registry.
func NewSessions() *Sessions {
	return &Sessions{staging: make(map[string]*Staging)}
}

// Start replaces the user's staging area with a new one for result.
func (s *Sessions) Start(userID string, result Result) *Staging {
	st := NewStaging(result)
	s.mu.Lock()
	s.staging[userID] = st
	s.mu.Unlock()
	return st
}

// Get returns the user's staging area, if any.
func (s *Sessions) Get(userID string) (*Staging, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.staging[userID]
	return st, ok
}

// End discards the user's staging area.
func (s *Sessions) End(userID string) {
	s.mu.Lock()
	delete(s.staging, userID)
	s.mu.Unlock()
}

// EndIf discards the user's staging area only while it is still st, so a
// preview started in the meantime survives. It reports whether st was
// removed.
func (s *Sessions) EndIf(userID string, st *Staging) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.staging[userID]; !ok || cur != st {
		return false
	}
	delete(s.staging, userID)
	return true
}
