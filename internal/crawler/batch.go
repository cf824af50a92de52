package crawler

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// EnrichCap bounds how many records per keyword get detail enrichment.
const EnrichCap = 20

// DefaultRetryBudget is the per-record detail retry allowance.
const DefaultRetryBudget = 2

// ProgressFunc receives coarse progress updates while a crawl runs.
type ProgressFunc func(percent int, message string)

// Coordinator sequences keywords through the pagination engine and,
// optionally, the detail enrichment engine.
type Coordinator struct {
	paginator *Paginator
	enricher  *Enricher
	pacer     Pacer
	logger    *zap.Logger
	progress  ProgressFunc
}

// NewCoordinator builds a Coordinator. progress may be nil.
func NewCoordinator(paginator *Paginator, enricher *Enricher, pacer Pacer, logger *zap.Logger, progress ProgressFunc) *Coordinator {
	return &Coordinator{
		paginator: paginator,
		enricher:  enricher,
		pacer:     pacer,
		logger:    logger,
		progress:  progress,
	}
}

// Run executes params against the shared session: batch mode tags every
// record with the keyword that produced it, single mode does not. Any search
// error fails the whole run; the caller discards the partial aggregate.
func (c *Coordinator) Run(ctx context.Context, params TaskParams) ([]Record, error) {
	tag := params.Mode == TaskModeBatch
	var aggregate []Record

	for i, keyword := range params.Keywords {
		c.report(percentDone(i, len(params.Keywords)), fmt.Sprintf("searching %q (%d/%d)", keyword, i+1, len(params.Keywords)))

		records, err := c.paginator.Search(ctx, keyword, params.MaxPages, params.Filter)
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", keyword, err)
		}

		if params.WithDetails {
			c.enrich(ctx, keyword, records)
		}
		if tag {
			for _, rec := range records {
				rec[FieldSearchKeyword] = keyword
			}
		}
		aggregate = append(aggregate, records...)

		if i < len(params.Keywords)-1 {
			c.pacer.Pause(ctx)
		}
	}
	return aggregate, nil
}

// BatchSearch runs keywords in order with keyword tagging, concatenating
// all results. No deduplication is performed across keywords.
func (c *Coordinator) BatchSearch(ctx context.Context, keywords []string, maxPages int, filter SearchFilter, withDetails bool) ([]Record, error) {
	return c.Run(ctx, TaskParams{
		Keywords:    keywords,
		MaxPages:    maxPages,
		Filter:      filter,
		WithDetails: withDetails,
		Mode:        TaskModeBatch,
	})
}

// enrich merges detail metadata into at most the first EnrichCap records,
// pausing between detail fetches.
func (c *Coordinator) enrich(ctx context.Context, keyword string, records []Record) {
	limit := len(records)
	if limit > EnrichCap {
		limit = EnrichCap
	}
	for i := 0; i < limit; i++ {
		url := records[i][FieldURL]
		if url == "" {
			continue
		}
		detail := c.enricher.FetchDetail(ctx, url, c.enricher.cfg.RetryBudget)
		for k, v := range detail {
			records[i][k] = v
		}
		c.logger.Debug("record enriched",
			zap.String("keyword", keyword),
			zap.Int("index", i),
			zap.Int("fields", len(detail)),
		)
		c.pacer.PauseEnrich(ctx)
	}
}

func (c *Coordinator) report(percent int, message string) {
	if c.progress == nil {
		return
	}
	c.progress(percent, message)
}

func percentDone(done, total int) int {
	if total <= 0 {
		return 0
	}
	return done * 100 / total
}
