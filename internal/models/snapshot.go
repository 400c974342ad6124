package models

// Snapshot is the whole-tenant state persisted by the local store. It is
// rewritten in full on every mutation so a crash loses at most the last
// unflushed in-memory delta.
type Snapshot struct {
	Products   []Product  `json:"products"`
	Categories []Category `json:"categories"`
	Members    []Member   `json:"members"`
	Sales      []Sale     `json:"sales"`
	Settings   Settings   `json:"settings"`
}

// DefaultCategories returns the seed categories for a new store,
// including the protected "all items" sentinel.
func DefaultCategories() []Category {
	return []Category{
		{ID: ProtectedCategoryID, Name: "All", Icon: "fa-border-all", Color: "purple", Protected: true},
		{ID: 2, Name: "Drinks", Icon: "fa-mug-hot", Color: "blue"},
		{ID: 3, Name: "Food", Icon: "fa-utensils", Color: "green"},
		{ID: 4, Name: "Desserts", Icon: "fa-ice-cream", Color: "pink"},
	}
}

// DefaultSnapshot returns the well-defined empty state used when no
// snapshot exists locally or the persisted one cannot be parsed:
// default categories only, zero products, members and sales.
func DefaultSnapshot() *Snapshot {
	return &Snapshot{
		Products:   []Product{},
		Categories: DefaultCategories(),
		Members:    []Member{},
		Sales:      []Sale{},
		Settings:   DefaultSettings(),
	}
}

// EnsureProtectedCategory inserts the sentinel category at the front of
// the list if it is missing. Returns true when a synthesis happened.
func (s *Snapshot) EnsureProtectedCategory() bool {
	for _, c := range s.Categories {
		if c.ID == ProtectedCategoryID {
			return false
		}
	}
	sentinel := DefaultCategories()[0]
	s.Categories = append([]Category{sentinel}, s.Categories...)
	return true
}
