package crawler

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"
)

// fakeSession scripts page content per query and per detail URL. FrameHTML
// serves result pages in order, advancing when the next-page affordance is
// clicked; PageHTML serves detail pages in order per navigated URL.
type fakeSession struct {
	mu sync.Mutex

	resultPages map[string][]string
	detailPages map[string][]string

	tabURL string
	tabErr error

	navErr    error
	navHook   func() error
	clickErrs map[string]error

	currentQuery string
	currentURL   string
	pageIdx      int
	detailIdx    map[string]int

	navigations []string
	clicks      []string
	closed      bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		resultPages: map[string][]string{},
		detailPages: map[string][]string{},
		clickErrs:   map[string]error{},
		detailIdx:   map[string]int{},
	}
}

func (s *fakeSession) Navigate(_ context.Context, target string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.navErr != nil {
		return s.navErr
	}
	if s.navHook != nil {
		if err := s.navHook(); err != nil {
			return err
		}
	}
	s.navigations = append(s.navigations, target)
	s.currentURL = target
	if strings.Contains(target, "/search/std") {
		if u, err := url.Parse(target); err == nil {
			s.currentQuery = u.Query().Get("q")
		}
		s.pageIdx = 0
	}
	return nil
}

func (s *fakeSession) WaitIdle(context.Context) error { return nil }

func (s *fakeSession) PageHTML(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pages := s.detailPages[s.currentURL]
	if len(pages) == 0 {
		return "<html></html>", nil
	}
	idx := s.detailIdx[s.currentURL]
	if idx >= len(pages) {
		idx = len(pages) - 1
	}
	s.detailIdx[s.currentURL]++
	return pages[idx], nil
}

func (s *fakeSession) FrameHTML(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pages := s.resultPages[s.currentQuery]
	if s.pageIdx >= len(pages) {
		return "<html></html>", nil
	}
	return pages[s.pageIdx], nil
}

func (s *fakeSession) ClickText(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.clickErrs[text]; err != nil {
		return err
	}
	s.clicks = append(s.clicks, text)
	if text == nextPageText {
		s.pageIdx++
	}
	return nil
}

func (s *fakeSession) ObserveTab(_ context.Context, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tabErr != nil {
		return "", s.tabErr
	}
	s.clicks = append(s.clicks, text)
	return s.tabURL, nil
}

func (s *fakeSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *fakeSession) clickCount(text string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.clicks {
		if c == text {
			n++
		}
	}
	return n
}

func (s *fakeSession) navigationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.navigations)
}

// fakePacer records pacing calls without sleeping.
type fakePacer struct {
	mu           sync.Mutex
	pauses       int
	enrichPauses int
	sleeps       []time.Duration
}

func (p *fakePacer) Pause(context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pauses++
}

func (p *fakePacer) PauseEnrich(context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enrichPauses++
}

func (p *fakePacer) Sleep(_ context.Context, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sleeps = append(p.sleeps, d)
}
