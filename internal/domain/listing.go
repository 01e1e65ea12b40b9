package domain

// EntityFactory builds a bare entity of one hierarchy level from a listing entry.
type EntityFactory[T any] func(name, imageURL string) T

// ListingRecord pairs a freshly parsed entity with the URL of the page listing its children.
type ListingRecord[T any] struct {
	Entity T      `json:"entity"`
	URL    string `json:"url"`
}
