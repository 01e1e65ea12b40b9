package domain

// Category is a top-level catalog entry. ID is zero until the catalog is committed.
type Category struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`

	// Subcategories is filled by readers of a committed catalog, never by the crawler.
	Subcategories []*Subcategory `json:"subcategories,omitempty"`
}

type Subcategory struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	ImageURL string    `json:"image_url"`
	Category *Category `json:"-"`
}

// Item is a leaf instrument. SKU is optional and never set by the crawler.
type Item struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	SKU         string       `json:"sku,omitempty"`
	ImageURL    string       `json:"image_url"`
	Subcategory *Subcategory `json:"-"`
}

func NewCategory(name, imageURL string) *Category {
	return &Category{Name: name, ImageURL: imageURL}
}

func NewSubcategory(name, imageURL string) *Subcategory {
	return &Subcategory{Name: name, ImageURL: imageURL}
}

func NewItem(name, imageURL string) *Item {
	return &Item{Name: name, ImageURL: imageURL}
}

// LinkedTo returns a copy of s owned by category. The receiver is left untouched.
func (s *Subcategory) LinkedTo(category *Category) *Subcategory {
	linked := *s
	linked.Category = category
	return &linked
}

// LinkedTo returns a copy of i owned by subcategory. The receiver is left untouched.
func (i *Item) LinkedTo(subcategory *Subcategory) *Item {
	linked := *i
	linked.Subcategory = subcategory
	return &linked
}
