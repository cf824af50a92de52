package crawler

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/gbstd/std-crawler/internal/metrics"
)

// PaginatorConfig controls the pagination engine.
type PaginatorConfig struct {
	// NavTimeout bounds the initial search navigation.
	NavTimeout time.Duration
	// SettleDelay lets the result iframe finish rendering after load.
	SettleDelay time.Duration
}

// Paginator drives one keyword through consecutive result pages until a
// stop condition: an empty page, a missing next-page affordance, or the
// maxPages bound.
type Paginator struct {
	session Session
	pacer   Pacer
	cfg     PaginatorConfig
	logger  *zap.Logger
}

// NewPaginator builds a Paginator over an exclusively-owned session.
func NewPaginator(session Session, pacer Pacer, cfg PaginatorConfig, logger *zap.Logger) *Paginator {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 2 * time.Second
	}
	return &Paginator{
		session: session,
		pacer:   pacer,
		cfg:     cfg,
		logger:  logger,
	}
}

// Search issues a query for keyword and accumulates records from up to
// maxPages result pages. The loop is bounded by maxPages regardless of what
// the site reports; filter application failures are non-fatal.
func (p *Paginator) Search(ctx context.Context, keyword string, maxPages int, filter SearchFilter) ([]Record, error) {
	searchURL := fmt.Sprintf("%s?q=%s", SearchURL, url.QueryEscape(keyword))
	p.logger.Info("starting search", zap.String("keyword", keyword), zap.Int("max_pages", maxPages))

	if err := p.session.Navigate(ctx, searchURL, p.cfg.NavTimeout); err != nil {
		return nil, fmt.Errorf("navigate search page: %w", err)
	}
	if err := p.session.WaitIdle(ctx); err != nil {
		return nil, fmt.Errorf("wait for search page: %w", err)
	}
	p.pacer.Sleep(ctx, p.cfg.SettleDelay)

	p.applyFilter(ctx, filter)

	if html, err := p.session.FrameHTML(ctx); err == nil {
		if total := ParseTotalCount(html); total != "" {
			// Diagnostic only; never drives the loop.
			p.logger.Info("result count reported", zap.String("keyword", keyword), zap.String("total", total))
		}
	}

	var records []Record
	for page := 1; page <= maxPages; page++ {
		html, err := p.session.FrameHTML(ctx)
		if err != nil {
			return records, fmt.Errorf("read page %d: %w", page, err)
		}
		pageRecords, err := ParseSearchRows(html)
		if err != nil {
			return records, fmt.Errorf("parse page %d: %w", page, err)
		}
		if len(pageRecords) == 0 {
			p.logger.Info("no more results", zap.String("keyword", keyword), zap.Int("page", page))
			break
		}
		records = append(records, pageRecords...)
		metrics.ObservePage(len(pageRecords))
		p.logger.Debug("page parsed",
			zap.String("keyword", keyword),
			zap.Int("page", page),
			zap.Int("records", len(pageRecords)),
		)

		if page >= maxPages || !HasNextPage(html) {
			break
		}
		if err := p.nextPage(ctx); err != nil {
			p.logger.Warn("pagination stopped early", zap.String("keyword", keyword), zap.Int("page", page), zap.Error(err))
			break
		}
		p.pacer.Pause(ctx)
	}

	p.logger.Info("search finished", zap.String("keyword", keyword), zap.Int("records", len(records)))
	return records, nil
}

// applyFilter clicks the requested filter labels. Failure to apply a filter
// is non-fatal; the crawl proceeds unfiltered.
func (p *Paginator) applyFilter(ctx context.Context, filter SearchFilter) {
	for _, label := range filterLabels(filter) {
		if err := p.session.ClickText(ctx, label); err != nil {
			p.logger.Warn("filter not applied", zap.String("filter", label), zap.Error(err))
			continue
		}
		p.pacer.Sleep(ctx, time.Second)
	}
}

func filterLabels(filter SearchFilter) []string {
	var labels []string
	if filter.TypeActive() {
		labels = append(labels, filter.StdType)
	}
	if filter.StatusActive() {
		labels = append(labels, filter.StdStatus)
	}
	return labels
}

func (p *Paginator) nextPage(ctx context.Context) error {
	if err := p.session.ClickText(ctx, nextPageText); err != nil {
		return fmt.Errorf("click next page: %w", err)
	}
	if err := p.session.WaitIdle(ctx); err != nil {
		return fmt.Errorf("wait after paging: %w", err)
	}
	p.pacer.Sleep(ctx, time.Second)
	return nil
}
