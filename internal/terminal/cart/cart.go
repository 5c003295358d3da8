package cart

import (
	"sync"

	"pos-register/internal/terminal/catalog"

	"github.com/google/uuid"
)

// Item is one line of the cart: a product plus its quantity
type Item struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	SKU       string    `json:"sku"`
	Price     float64   `json:"price"`
	Quantity  int       `json:"quantity"`
}

// Subscriber observes the item list after every mutation. The slice
// passed in is a copy; subscribers may retain it.
type Subscriber interface {
	CartChanged(items []Item)
}

// Store holds the working cart. Items are unique by product id and keep
// insertion order. The total is recomputed on every read, never cached.
// All mutations notify subscribers with the resulting item list.
type Store struct {
	mu    sync.Mutex
	items []Item
	subs  []Subscriber
}

func NewStore() *Store {
	return &Store{}
}

// Restore seeds the cart from a previously persisted item list
func Restore(items []Item) *Store {
	s := &Store{}
	for _, item := range items {
		if item.Quantity < 1 {
			continue
		}
		if s.indexOf(item.ProductID) >= 0 {
			continue
		}
		s.items = append(s.items, item)
	}
	return s
}

// Subscribe registers a mutation observer
func (s *Store) Subscribe(sub Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, sub)
}

// Add inserts the product with quantity 1, or increments an existing
// line's quantity by 1
func (s *Store) Add(p catalog.Product) {
	s.mu.Lock()
	if i := s.indexOf(p.ID); i >= 0 {
		s.items[i].Quantity++
	} else {
		s.items = append(s.items, Item{
			ProductID: p.ID,
			Name:      p.Name,
			SKU:       p.SKU,
			Price:     p.Price,
			Quantity:  1,
		})
	}
	s.notifyLocked()
}

// SetQuantity sets the line's quantity; n <= 0 removes the line
func (s *Store) SetQuantity(productID uuid.UUID, n int) {
	s.mu.Lock()
	i := s.indexOf(productID)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	if n <= 0 {
		s.items = append(s.items[:i], s.items[i+1:]...)
	} else {
		s.items[i].Quantity = n
	}
	s.notifyLocked()
}

// Remove deletes the line unconditionally
func (s *Store) Remove(productID uuid.UUID) {
	s.mu.Lock()
	i := s.indexOf(productID)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.notifyLocked()
}

// Clear empties the cart
func (s *Store) Clear() {
	s.mu.Lock()
	s.items = nil
	s.notifyLocked()
}

// Items returns a copy of the current lines in insertion order
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

// Total is Σ(price × quantity) over all lines
func (s *Store) Total() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total float64
	for _, item := range s.items {
		total += item.Price * float64(item.Quantity)
	}
	return total
}

func (s *Store) indexOf(productID uuid.UUID) int {
	for i, item := range s.items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

func (s *Store) copyLocked() []Item {
	items := make([]Item, len(s.items))
	copy(items, s.items)
	return items
}

// notifyLocked snapshots the items, releases the lock, then fans out so
// subscribers can call back into the store
func (s *Store) notifyLocked() {
	items := s.copyLocked()
	subs := s.subs
	s.mu.Unlock()
	for _, sub := range subs {
		sub.CartChanged(items)
	}
}
