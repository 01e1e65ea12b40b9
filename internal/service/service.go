package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"instruments/scraper/internal/client"
	"instruments/scraper/internal/domain"
	"instruments/scraper/internal/domain/event"
	"instruments/scraper/internal/queue"
	"instruments/scraper/internal/repository"
	"instruments/scraper/internal/state"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrRunInProgress is returned by Run when another crawl holds the run lock.
var ErrRunInProgress = errors.New("another crawl run is in progress")

const (
	stageCrawl  = "crawl"
	stageCommit = "commit"
)

type Service struct {
	fetcher      client.PageFetcher
	parser       *client.ListingParser
	repository   repository.CatalogRepository
	stateManager state.RunStateManager // optional
	publisher    queue.Publisher       // optional
	rootURL      string
	maxWorkers   int
	lockTTL      time.Duration
}

// NewService builds the crawl orchestrator. stateManager and publisher may be nil,
// in which case runs are neither locked nor reported and no events are published.
func NewService(
	fetcher client.PageFetcher,
	parser *client.ListingParser,
	repository repository.CatalogRepository,
	stateManager state.RunStateManager,
	publisher queue.Publisher,
	rootURL string,
	maxWorkers int,
	lockTTL int,
) *Service {
	return &Service{
		fetcher:      fetcher,
		parser:       parser,
		repository:   repository,
		stateManager: stateManager,
		publisher:    publisher,
		rootURL:      rootURL,
		maxWorkers:   max(1, maxWorkers),
		lockTTL:      time.Duration(lockTTL) * time.Second,
	}
}

// Run crawls the whole catalog below the root URL and commits it to the repository in one batch.
// The returned report is nil only when the run never started.
func (s *Service) Run(ctx context.Context) (*domain.RunReport, error) {
	report := &domain.RunReport{
		RunID:     uuid.NewString(),
		RootURL:   s.rootURL,
		Status:    domain.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	logger := log.WithField("run_id", report.RunID)

	if s.stateManager != nil {
		acquired, err := s.stateManager.AcquireRunLock(ctx, report.RunID, s.lockTTL)
		if err != nil {
			return nil, err
		}
		if !acquired {
			return nil, ErrRunInProgress
		}
		defer func() {
			if err := s.stateManager.ReleaseRunLock(context.WithoutCancel(ctx), report.RunID); err != nil {
				logger.Warnf("⚠️ %v", err)
			}
		}()
		s.saveReport(ctx, report)
	}

	logger.Infof("🚀 Starting crawl from %s", s.rootURL)

	var pages atomic.Int64
	staging, err := s.crawl(ctx, &pages)
	report.PagesFetched = pages.Load()
	if err != nil {
		return report, s.fail(ctx, report, stageCrawl, err)
	}

	counts := staging.Counts()
	report.Categories = counts[domain.LevelCategory]
	report.Subcategories = counts[domain.LevelSubcategory]
	report.Items = counts[domain.LevelItem]

	if err := s.Flush(ctx, staging); err != nil {
		return report, s.fail(ctx, report, stageCommit, err)
	}

	report.Status = domain.RunStatusSucceeded
	report.FinishedAt = time.Now().UTC()
	s.saveReport(ctx, report)
	s.publish(ctx, &event.CatalogCommitted{
		RunID:         report.RunID,
		RootURL:       report.RootURL,
		Categories:    report.Categories,
		Subcategories: report.Subcategories,
		Items:         report.Items,
		CommittedAt:   report.FinishedAt,
	})

	logger.Infof("✅ Committed %d categories, %d subcategories, %d instruments from %d pages in %s",
		report.Categories, report.Subcategories, report.Items, report.PagesFetched, report.Duration())

	return report, nil
}

// Crawl walks categories, their subcategories and their items and returns everything staged,
// parent-linked and in depth-first page order. Nothing is written to the repository.
func (s *Service) Crawl(ctx context.Context) (*domain.Staging, error) {
	var pages atomic.Int64
	return s.crawl(ctx, &pages)
}

// Flush hands the staged catalog to the repository and commits it once.
func (s *Service) Flush(ctx context.Context, staging *domain.Staging) error {
	s.repository.AddCategories(staging.Categories)
	s.repository.AddSubcategories(staging.Subcategories)
	s.repository.AddItems(staging.Items)

	if err := s.repository.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit catalog: %w", err)
	}
	return nil
}

func (s *Service) crawl(ctx context.Context, pages *atomic.Int64) (*domain.Staging, error) {
	c := &crawler{Service: s, pages: pages, staging: domain.NewStaging()}

	root, err := c.fetch(ctx, "root", s.rootURL)
	if err != nil {
		return nil, err
	}

	categories, err := client.ParseListing(s.parser, root, domain.NewCategory)
	if err != nil {
		return nil, fmt.Errorf("failed to parse root page: %w", err)
	}
	log.Infof("🔄 Found %d %s on %s", len(categories), domain.LevelCategory.GetDisplayName(), s.rootURL)

	for _, record := range categories {
		c.staging.AddCategories(record.Entity)
	}

	for _, record := range categories {
		if err := c.crawlCategory(ctx, record); err != nil {
			return nil, err
		}
	}

	return c.staging, nil
}

// crawler carries the state of one traversal. staging is only written from the goroutine
// that called crawl.
type crawler struct {
	*Service
	pages   *atomic.Int64
	staging *domain.Staging
}

func (c *crawler) fetch(ctx context.Context, owner string, url string) (*client.Page, error) {
	page, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s page: %w", owner, err)
	}
	c.pages.Add(1)
	return page, nil
}

func (c *crawler) crawlCategory(ctx context.Context, category domain.ListingRecord[*domain.Category]) error {
	page, err := c.fetch(ctx, domain.LevelCategory.String(), category.URL)
	if err != nil {
		return err
	}

	records, err := client.ParseListing(c.parser, page, domain.NewSubcategory)
	if err != nil {
		return fmt.Errorf("failed to parse %s page %s: %w", domain.LevelCategory, category.URL, err)
	}
	log.Infof("🔄 Found %d %s in %s %q",
		len(records), domain.LevelCategory.Child().GetDisplayName(), domain.LevelCategory, category.Entity.Name)

	subcategories := make([]domain.ListingRecord[*domain.Subcategory], 0, len(records))
	for _, record := range records {
		linked := record.Entity.LinkedTo(category.Entity)
		if err := c.staging.AddSubcategories(linked); err != nil {
			return err
		}
		subcategories = append(subcategories, domain.ListingRecord[*domain.Subcategory]{Entity: linked, URL: record.URL})
	}

	return c.crawlSubcategories(ctx, subcategories)
}

// crawlSubcategories fetches the item pages of one category's subcategories, up to maxWorkers at
// a time, and stages the items in subcategory order once all of them succeeded.
func (c *crawler) crawlSubcategories(ctx context.Context, subcategories []domain.ListingRecord[*domain.Subcategory]) error {
	results := make([][]*domain.Item, len(subcategories))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxWorkers)

	for i, subcategory := range subcategories {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			items, err := c.crawlItems(gctx, subcategory)
			if err != nil {
				return err
			}
			results[i] = items
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	for _, items := range results {
		if err := c.staging.AddItems(items...); err != nil {
			return err
		}
	}
	return nil
}

func (c *crawler) crawlItems(ctx context.Context, subcategory domain.ListingRecord[*domain.Subcategory]) ([]*domain.Item, error) {
	page, err := c.fetch(ctx, domain.LevelSubcategory.String(), subcategory.URL)
	if err != nil {
		return nil, err
	}

	records, err := client.ParseListing(c.parser, page, domain.NewItem)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s page %s: %w", domain.LevelSubcategory, subcategory.URL, err)
	}
	log.Debugf("Found %d %s in %s %q",
		len(records), domain.LevelSubcategory.Child().GetDisplayName(), domain.LevelSubcategory, subcategory.Entity.Name)

	items := make([]*domain.Item, 0, len(records))
	for _, record := range records {
		items = append(items, record.Entity.LinkedTo(subcategory.Entity))
	}
	return items, nil
}

func (s *Service) fail(ctx context.Context, report *domain.RunReport, stage string, err error) error {
	report.Status = domain.RunStatusFailed
	report.FinishedAt = time.Now().UTC()
	report.Error = err.Error()

	log.WithField("run_id", report.RunID).Errorf("❌ Crawl failed during %s: %v", stage, err)

	s.saveReport(ctx, report)
	s.publish(ctx, &event.CrawlFailed{
		RunID:    report.RunID,
		RootURL:  report.RootURL,
		Stage:    stage,
		Error:    report.Error,
		FailedAt: report.FinishedAt,
	})
	return err
}

// saveReport and publish are best effort: a failure is logged and never changes the run outcome.
func (s *Service) saveReport(ctx context.Context, report *domain.RunReport) {
	if s.stateManager == nil {
		return
	}
	if err := s.stateManager.SaveReport(context.WithoutCancel(ctx), report); err != nil {
		log.Warnf("⚠️ %v", err)
	}
}

func (s *Service) publish(ctx context.Context, e event.Event) {
	if s.publisher == nil {
		return
	}
	if _, err := s.publisher.Publish(context.WithoutCancel(ctx), e); err != nil {
		log.Warnf("⚠️ Failed to publish %s: %v", e.EventType(), err)
	}
}
