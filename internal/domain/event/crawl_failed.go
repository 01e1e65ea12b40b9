package event

import "time"

type CrawlFailed struct {
	RunID    string    `json:"run_id"`
	RootURL  string    `json:"root_url"`
	Stage    string    `json:"stage"` // "crawl" or "commit"
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

func (e *CrawlFailed) EventType() string {
	return "CrawlFailed"
}

func (e *CrawlFailed) EventValue() ([]byte, error) {
	return DefaultEventValue(e)
}
