package catalog

import (
	"context"
	"iter"
	"strings"

	"konterku/engine/internal/domain"
)

// Loader fetches the master list for one item resource (e.g. "sparepart",
// "voucher"). Implemented by the API client; a load happens exactly once per
// dialog lifecycle, so stock figures are a point-in-time copy.
type Loader interface {
	LoadCatalog(ctx context.Context, resource string) ([]domain.CatalogItem, error)
}

// Snapshot is the immutable per-dialog catalog copy with lookup indexes.
// All resolution is case-insensitive; barcodes and names are normalized once
// here rather than at every read site.
type Snapshot struct {
	items     []domain.CatalogItem
	byID      map[string]int
	byBarcode map[string]int
	byName    map[string]int
}

// Build normalizes the loaded items and indexes them. Items without an id are
// dropped. When two items collide on barcode or exact name, the first one
// wins, matching the backend's uniqueness guarantee for well-formed data.
func Build(items []domain.CatalogItem) *Snapshot {
	s := &Snapshot{
		items:     make([]domain.CatalogItem, 0, len(items)),
		byID:      make(map[string]int, len(items)),
		byBarcode: make(map[string]int, len(items)),
		byName:    make(map[string]int, len(items)),
	}

	for _, item := range items {
		item.ID = strings.TrimSpace(item.ID)
		item.Name = strings.TrimSpace(item.Name)
		item.Barcode = strings.ToUpper(strings.TrimSpace(item.Barcode))
		if item.ID == "" {
			continue
		}
		if _, exists := s.byID[item.ID]; exists {
			continue
		}

		idx := len(s.items)
		s.items = append(s.items, item)
		s.byID[item.ID] = idx
		if item.Barcode != "" {
			if _, exists := s.byBarcode[item.Barcode]; !exists {
				s.byBarcode[item.Barcode] = idx
			}
		}
		if key := strings.ToLower(item.Name); key != "" {
			if _, exists := s.byName[key]; !exists {
				s.byName[key] = idx
			}
		}
	}

	return s
}

func (s *Snapshot) Len() int {
	return len(s.items)
}

// Items returns a copy of the snapshot contents in load order.
func (s *Snapshot) Items() []domain.CatalogItem {
	out := make([]domain.CatalogItem, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Snapshot) ResolveByID(id string) (domain.CatalogItem, bool) {
	idx, ok := s.byID[strings.TrimSpace(id)]
	if !ok {
		return domain.CatalogItem{}, false
	}
	return s.items[idx], true
}

func (s *Snapshot) ResolveByBarcode(code string) (domain.CatalogItem, bool) {
	idx, ok := s.byBarcode[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return domain.CatalogItem{}, false
	}
	return s.items[idx], true
}

func (s *Snapshot) ResolveByExactName(name string) (domain.CatalogItem, bool) {
	idx, ok := s.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return domain.CatalogItem{}, false
	}
	return s.items[idx], true
}

// Resolve tries barcode, then id, then exact name for a user-entered token.
func (s *Snapshot) Resolve(token string) (domain.CatalogItem, bool) {
	if item, ok := s.ResolveByBarcode(token); ok {
		return item, true
	}
	if item, ok := s.ResolveByID(token); ok {
		return item, true
	}
	return s.ResolveByExactName(token)
}

// Suggest yields items whose name contains partial, case-insensitively, in
// load order. The sequence is lazy and restartable: each keystroke simply
// ranges over a fresh call. An empty partial yields nothing.
func (s *Snapshot) Suggest(partial string) iter.Seq[domain.CatalogItem] {
	needle := strings.ToLower(strings.TrimSpace(partial))
	return func(yield func(domain.CatalogItem) bool) {
		if needle == "" {
			return
		}
		for _, item := range s.items {
			if strings.Contains(strings.ToLower(item.Name), needle) {
				if !yield(item) {
					return
				}
			}
		}
	}
}
