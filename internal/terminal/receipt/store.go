package receipt

import "sync"

// Store is a transient single-slot handoff between the checkout flow and
// the receipt view. Only the most recent receipt is held; nothing
// survives process exit.
type Store struct {
	mu      sync.Mutex
	current *Receipt
}

func NewStore() *Store {
	return &Store{}
}

// Put replaces the held receipt
func (s *Store) Put(r *Receipt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = r
}

// Lookup returns the held receipt when its identifier matches id. On a
// mismatch or empty store it returns a zero-valued Receipt so the view
// renders blank fields rather than failing.
func (s *Store) Lookup(id string) Receipt {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.current.ID != id {
		return Receipt{}
	}
	return *s.current
}
