// Package selection holds the contract for the item set a bulk action runs
// over. The set is populated by UI collaborators; the engine only reads item
// snapshots and writes back rack-layer updates after a confirmed relocation.
package selection

import (
	"sync"

	"stocktake/internal/domain"
)

// Snapshot carries the catalog fields the engine needs for location
// comparison. Opaque beyond that.
type Snapshot struct {
	RackLayerID string `json:"rackLayerId"`
	Name        string `json:"name,omitempty"`
}

// Item is one selected catalog item.
type Item struct {
	ID       string          `json:"id"`
	Type     domain.ItemType `json:"type"`
	Snapshot Snapshot        `json:"snapshot"`
}

// Set is the canonical list of items chosen for a bulk action.
type Set struct {
	mu    sync.RWMutex
	items []Item
}

func NewSet() *Set {
	return &Set{}
}

// Replace swaps the whole selection, preserving caller order.
func (s *Set) Replace(items []Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append([]Item(nil), items...)
}

// Items returns a copy of the current selection.
func (s *Set) Items() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Item(nil), s.items...)
}

// Len returns the selection size.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// UpdateRackLayer rewrites the snapshot location for one item so an immediate
// re-comparison reflects a confirmed move.
func (s *Set) UpdateRackLayer(itemID string, itemType domain.ItemType, rackLayerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == itemID && s.items[i].Type == itemType {
			s.items[i].Snapshot.RackLayerID = rackLayerID
		}
	}
}
