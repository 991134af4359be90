package server

import "sync"

// ItemStore keeps items in memory. Ownership checks belong to the handlers;
// the store only guards its own state.
type ItemStore struct {
	mu     sync.RWMutex
	items  []Item
	nextID int64
}

// NewItemStore constructs an empty store. IDs start at 1.
func NewItemStore() *ItemStore {
	return &ItemStore{nextID: 1}
}

// Create inserts an item and assigns its id.
func (s *ItemStore) Create(item Item) Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = s.nextID
	s.nextID++
	s.items = append(s.items, item)
	return item
}

// Get returns the item with the given id.
func (s *ItemStore) Get(id int64) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Item{}, false
}

// ByOwner lists items owned by ownerID in insertion order.
func (s *ItemStore) ByOwner(ownerID int64) []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Item{}
	for _, item := range s.items {
		if item.OwnerID == ownerID {
			out = append(out, item)
		}
	}
	return out
}

// Update replaces the item with the given id, preserving its owner.
func (s *ItemStore) Update(id int64, req ItemRequest) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, item := range s.items {
		if item.ID == id {
			updated := Item{
				ID:          id,
				Name:        req.Name,
				Description: req.Description,
				Price:       req.Price,
				OwnerID:     item.OwnerID,
			}
			s.items[i] = updated
			return updated, true
		}
	}
	return Item{}, false
}

// Delete removes the item with the given id.
func (s *ItemStore) Delete(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, item := range s.items {
		if item.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}
