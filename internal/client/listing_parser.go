package client

import (
	"fmt"
	"net/url"
	"strings"

	"instruments/scraper/internal/config"
	"instruments/scraper/internal/domain"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"
)

type ListingParser struct {
	selectors config.SelectorsConfig
}

func NewListingParser(selectors config.SelectorsConfig) *ListingParser {
	return &ListingParser{
		selectors: selectors,
	}
}

type listing struct {
	title    string
	imageSrc string
	href     string
}

// ParseListing extracts one record per well-formed listing container on page.
// Containers without a title, an image with src or a direct child link with a non-empty href
// are skipped.
func ParseListing[T any](p *ListingParser, page *Page, factory domain.EntityFactory[T]) ([]domain.ListingRecord[T], error) {
	listings, err := p.scan(page)
	if err != nil {
		return nil, err
	}

	records := make([]domain.ListingRecord[T], 0, len(listings))
	for _, l := range listings {
		records = append(records, domain.ListingRecord[T]{
			Entity: factory(l.title, l.imageSrc),
			URL:    l.href,
		})
	}

	return records, nil
}

func (p *ListingParser) scan(page *Page) ([]listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	// Relative hrefs are resolved against the page they were found on.
	base, err := url.Parse(page.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL %q: %w", page.URL, err)
	}

	listings := make([]listing, 0)
	doc.Find(p.selectors.Container).Each(func(i int, s *goquery.Selection) {
		title := s.Find(p.selectors.Title).First()
		image := s.Find(p.selectors.Image).First()
		link := s.ChildrenFiltered(p.selectors.Link).First()
		if title.Length() == 0 || image.Length() == 0 || link.Length() == 0 {
			return
		}

		src, ok := image.Attr("src")
		if !ok {
			return
		}
		// An empty href points back at the listing page itself.
		href, ok := link.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}

		listings = append(listings, listing{
			title:    strings.TrimSpace(title.Text()),
			imageSrc: src,
			href:     resolveURL(base, href),
		})
	})

	log.Debugf("Extracted %d listings from %s", len(listings), page.URL)
	return listings, nil
}

func resolveURL(base *url.URL, href string) string {
	if base == nil {
		return href
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
