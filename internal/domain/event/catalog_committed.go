package event

import "time"

type CatalogCommitted struct {
	RunID         string    `json:"run_id"`
	RootURL       string    `json:"root_url"`
	Categories    int       `json:"categories"`    // Committed categories
	Subcategories int       `json:"subcategories"` // Committed subcategories
	Items         int       `json:"items"`         // Committed instruments
	CommittedAt   time.Time `json:"committed_at"`
}

func (e *CatalogCommitted) EventType() string {
	return "CatalogCommitted"
}

func (e *CatalogCommitted) EventValue() ([]byte, error) {
	return DefaultEventValue(e)
}
