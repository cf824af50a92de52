package crawler

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/gbstd/std-crawler/internal/metrics"
)

// EnricherConfig controls the detail enrichment engine.
type EnricherConfig struct {
	// NavTimeout bounds each detail-page navigation; detail pages on the
	// platform can be slow, so the default is generous.
	NavTimeout time.Duration
	// SettleDelay lets the page finish rendering after navigation.
	SettleDelay time.Duration
	// BackoffUnit is multiplied by the attempt index between retries.
	BackoffUnit time.Duration
	// RetryBudget is the number of extra attempts after the first.
	RetryBudget int
}

// Enricher fetches and merges extended metadata for one record at a time.
// It never fails past its boundary: the caller always receives a mapping,
// possibly empty.
type Enricher struct {
	session Session
	pacer   Pacer
	cfg     EnricherConfig
	logger  *zap.Logger
}

// NewEnricher builds an Enricher over an exclusively-owned session.
func NewEnricher(session Session, pacer Pacer, cfg EnricherConfig, logger *zap.Logger) *Enricher {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 60 * time.Second
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 2 * time.Second
	}
	if cfg.BackoffUnit <= 0 {
		cfg.BackoffUnit = 2 * time.Second
	}
	if cfg.RetryBudget < 0 {
		cfg.RetryBudget = DefaultRetryBudget
	}
	return &Enricher{
		session: session,
		pacer:   pacer,
		cfg:     cfg,
		logger:  logger,
	}
}

// FetchDetail attempts up to retryBudget+1 times to extract detail-page
// metadata for url. Attempts that yield nothing trigger an attempt-scaled
// backoff before the next try; the final accumulation is returned as-is.
func (e *Enricher) FetchDetail(ctx context.Context, url string, retryBudget int) map[string]string {
	detail := map[string]string{}
	attempts := retryBudget + 1

	for attempt := 1; attempt <= attempts; attempt++ {
		e.attempt(ctx, url, detail)
		if len(detail) > 0 {
			metrics.ObserveDetailAttempt("ok")
			return detail
		}
		metrics.ObserveDetailAttempt("empty")
		if attempt < attempts {
			backoff := time.Duration(attempt) * e.cfg.BackoffUnit
			e.logger.Warn("detail fetch yielded nothing, retrying",
				zap.String("url", url),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
			)
			e.pacer.Sleep(ctx, backoff)
		}
	}
	return detail
}

// attempt runs one navigation plus a series of independent best-effort
// extractions. A failed sub-step never aborts the others.
func (e *Enricher) attempt(ctx context.Context, url string, detail map[string]string) {
	if err := e.session.Navigate(ctx, url, e.cfg.NavTimeout); err != nil {
		e.logger.Warn("detail navigation failed", zap.String("url", url), zap.Error(err))
		return
	}
	e.pacer.Sleep(ctx, e.cfg.SettleDelay)

	html, err := e.session.PageHTML(ctx)
	if err != nil {
		e.logger.Warn("detail snapshot failed", zap.String("url", url), zap.Error(err))
		return
	}
	fields, err := ParseDetail(html)
	if err != nil {
		e.logger.Warn("detail parse failed", zap.String("url", url), zap.Error(err))
		return
	}

	if fields.CNTitle != "" {
		detail[FieldCNTitle] = fields.CNTitle
	}
	if fields.ENTitle != "" {
		detail[FieldENTitle] = fields.ENTitle
	}
	for _, pair := range fields.Pairs {
		detail[pair.Label] = pair.Value
	}
	if fields.DraftingUnit != "" {
		detail[FieldDraftingUnit] = fields.DraftingUnit
	}
	if fields.Drafters != "" {
		detail[FieldDrafters] = fields.Drafters
	}

	// Document links are only worth chasing once the page identified
	// itself; a title-less page is a shell or an error page.
	if detail[FieldCNTitle] != "" {
		e.extractDocumentLinks(ctx, fields, detail)
	}
}

func (e *Enricher) extractDocumentLinks(ctx context.Context, fields DetailFields, detail map[string]string) {
	detail[FieldHasPDFDownload] = strconv.FormatBool(fields.HasDownload)
	detail[FieldHasPreview] = strconv.FormatBool(fields.HasPreview)
	if !fields.HasPreview {
		return
	}

	pageURL, err := e.session.ObserveTab(ctx, previewText)
	if err != nil {
		e.logger.Warn("preview tab observation failed", zap.Error(err))
		return
	}
	detail[FieldPDFPageURL] = pageURL
	if hcno := ExtractHCNO(pageURL); hcno != "" {
		detail[FieldHCNO] = hcno
		detail[FieldPDFDownloadURL] = DownloadURL(hcno)
	}
}
