package crawler

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gbstd/std-crawler/internal/metrics"
)

func resultPageHTML(ids []string, hasNext bool) string {
	page := "<html><body>"
	for _, id := range ids {
		page += fmt.Sprintf(
			`<table><tr><td><a href="/gb/search/gbDetailed?id=%s">GB/T %s-2020 测试标准</a></td><td>现行</td></tr></table>`,
			id, id,
		)
	}
	if hasNext {
		page += `<a href="#">下一页</a>`
	}
	return page + "</body></html>"
}

func TestPaginatorStopsAtMaxPages(t *testing.T) {
	t.Parallel()
	metrics.Init()

	session := newFakeSession()
	session.resultPages["sensor"] = []string{
		resultPageHTML([]string{"1001", "1002"}, true),
		resultPageHTML([]string{"1003"}, true),
		resultPageHTML([]string{"1004"}, true),
	}
	pacer := &fakePacer{}
	paginator := NewPaginator(session, pacer, PaginatorConfig{}, zap.NewNop())

	records, err := paginator.Search(context.Background(), "sensor", 2, SearchFilter{})
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, 1, session.clickCount(nextPageText))
}

func TestPaginatorZeroMaxPages(t *testing.T) {
	t.Parallel()
	metrics.Init()

	session := newFakeSession()
	session.resultPages["sensor"] = []string{
		resultPageHTML([]string{"1001"}, true),
	}
	paginator := NewPaginator(session, &fakePacer{}, PaginatorConfig{}, zap.NewNop())

	records, err := paginator.Search(context.Background(), "sensor", 0, SearchFilter{})
	require.NoError(t, err)
	require.Empty(t, records)
	require.Zero(t, session.clickCount(nextPageText))
}

func TestPaginatorStopsOnEmptyPage(t *testing.T) {
	t.Parallel()
	metrics.Init()

	// The page still advertises a next-page affordance; an empty page wins.
	session := newFakeSession()
	session.resultPages["nothing"] = []string{
		resultPageHTML(nil, true),
	}
	paginator := NewPaginator(session, &fakePacer{}, PaginatorConfig{}, zap.NewNop())

	records, err := paginator.Search(context.Background(), "nothing", 5, SearchFilter{})
	require.NoError(t, err)
	require.Empty(t, records)
	require.Zero(t, session.clickCount(nextPageText))
}

func TestPaginatorStopsWithoutNextAffordance(t *testing.T) {
	t.Parallel()
	metrics.Init()

	session := newFakeSession()
	session.resultPages["sensor"] = []string{
		resultPageHTML([]string{"1001"}, false),
		resultPageHTML([]string{"never"}, false),
	}
	paginator := NewPaginator(session, &fakePacer{}, PaginatorConfig{}, zap.NewNop())

	records, err := paginator.Search(context.Background(), "sensor", 5, SearchFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Zero(t, session.clickCount(nextPageText))
}

func TestPaginatorAppliesFilters(t *testing.T) {
	t.Parallel()
	metrics.Init()

	session := newFakeSession()
	session.resultPages["食品"] = []string{
		resultPageHTML([]string{"2760"}, false),
	}
	paginator := NewPaginator(session, &fakePacer{}, PaginatorConfig{}, zap.NewNop())

	filter := SearchFilter{StdType: StdTypeNational, StdStatus: StdStatusCurrent}
	records, err := paginator.Search(context.Background(), "食品", 1, filter)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, 1, session.clickCount(StdTypeNational))
	require.Equal(t, 1, session.clickCount(StdStatusCurrent))
}

func TestPaginatorSkipsAllFilter(t *testing.T) {
	t.Parallel()
	metrics.Init()

	session := newFakeSession()
	session.resultPages["食品"] = []string{
		resultPageHTML([]string{"2760"}, false),
	}
	paginator := NewPaginator(session, &fakePacer{}, PaginatorConfig{}, zap.NewNop())

	filter := SearchFilter{StdType: FilterAll, StdStatus: FilterAll}
	_, err := paginator.Search(context.Background(), "食品", 1, filter)
	require.NoError(t, err)
	require.Zero(t, session.clickCount(FilterAll))
}

func TestPaginatorFilterFailureIsNonFatal(t *testing.T) {
	t.Parallel()
	metrics.Init()

	session := newFakeSession()
	session.resultPages["食品"] = []string{
		resultPageHTML([]string{"2760"}, false),
	}
	session.clickErrs[StdTypeIndustry] = errors.New("element not found")
	paginator := NewPaginator(session, &fakePacer{}, PaginatorConfig{}, zap.NewNop())

	records, err := paginator.Search(context.Background(), "食品", 1, SearchFilter{StdType: StdTypeIndustry})
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestPaginatorNavigationError(t *testing.T) {
	t.Parallel()
	metrics.Init()

	session := newFakeSession()
	session.navErr = errors.New("net::ERR_TIMED_OUT")
	paginator := NewPaginator(session, &fakePacer{}, PaginatorConfig{}, zap.NewNop())

	_, err := paginator.Search(context.Background(), "sensor", 1, SearchFilter{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "navigate search page")
}
