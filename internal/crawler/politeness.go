package crawler

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/gbstd/std-crawler/internal/metrics"
)

// PacerConfig controls the politeness delay controller.
type PacerConfig struct {
	// Delay is the base inter-page interval; a uniform jitter of up to
	// Jitter is added on every pause.
	Delay  time.Duration
	Jitter time.Duration
	// EnrichDelay spaces consecutive detail enrichments.
	EnrichDelay  time.Duration
	EnrichJitter time.Duration
	// MaxRPS caps the overall request rate to the target host. Zero
	// means uncapped.
	MaxRPS float64
}

// DelayPacer implements Pacer with randomized waits behind a shared rate
// limiter. One DelayPacer is shared by all tasks so the cap holds across
// parallel sessions.
type DelayPacer struct {
	cfg     PacerConfig
	limiter *rate.Limiter

	mu  sync.Mutex
	rng *rand.Rand
}

// NewDelayPacer builds a DelayPacer.
func NewDelayPacer(cfg PacerConfig) *DelayPacer {
	limit := rate.Inf
	if cfg.MaxRPS > 0 {
		limit = rate.Limit(cfg.MaxRPS)
	}
	return &DelayPacer{
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Pause waits the inter-page politeness interval.
func (p *DelayPacer) Pause(ctx context.Context) {
	p.wait(ctx, p.cfg.Delay, p.cfg.Jitter)
}

// PauseEnrich waits the between-enrichments interval.
func (p *DelayPacer) PauseEnrich(ctx context.Context) {
	p.wait(ctx, p.cfg.EnrichDelay, p.cfg.EnrichJitter)
}

// Sleep waits d, honoring context cancellation.
func (p *DelayPacer) Sleep(ctx context.Context, d time.Duration) {
	sleep(ctx, d)
}

func (p *DelayPacer) wait(ctx context.Context, base, jitter time.Duration) {
	if err := p.limiter.Wait(ctx); err != nil {
		return
	}
	d := base + p.randomJitter(jitter)
	metrics.ObservePolitenessDelay(d)
	sleep(ctx, d)
}

func (p *DelayPacer) randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Duration(p.rng.Int63n(int64(limit)))
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
