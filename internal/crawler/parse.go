package crawler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Textual affordances on the platform's pages.
const (
	nextPageText  = "下一页"
	totalHintText = "为您找到相关结果约"
	downloadText  = "下载标准"
	previewText   = "在线预览"
)

var hcnoPattern = regexp.MustCompile(`hcno=([0-9A-Fa-f]+)`)

// SplitTitle splits a normalized standard title into (code, name) on the first
// whitespace boundary. A title with no whitespace yields an empty code and
// the whole string as name.
func SplitTitle(title string) (code, name string) {
	fields := strings.Fields(title)
	if len(fields) < 2 {
		return "", strings.TrimSpace(title)
	}
	return fields[0], strings.Join(fields[1:], " ")
}

// normalizeSpace collapses runs of whitespace into single spaces.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ParseSearchRows extracts records from one rendered result page. Rows that
// cannot be parsed are skipped; the page itself never fails on a bad row.
func ParseSearchRows(html string) ([]Record, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse result page: %w", err)
	}

	var records []Record
	doc.Find(`a[href*='Detailed']`).Each(func(_ int, link *goquery.Selection) {
		title := normalizeSpace(link.Text())
		href, ok := link.Attr("href")
		if title == "" || !ok || href == "" {
			return
		}
		code, name := SplitTitle(title)
		rec := Record{
			FieldStdCode: code,
			FieldStdName: name,
			FieldTitle:   title,
			FieldURL:     absoluteURL(href),
			FieldStatus:  "",
		}
		if row := link.Closest("table"); row.Length() > 0 {
			rec[FieldStatus] = normalizeSpace(row.Find("td").Last().Text())
		}
		records = append(records, rec)
	})
	return records, nil
}

func absoluteURL(href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return BaseURL + href
}

// ParseTotalCount returns the diagnostic result-count text, or "" when the
// page does not carry one. The value is never used for loop control.
func ParseTotalCount(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return shortestTextContaining(doc, totalHintText)
}

// HasNextPage reports whether the page advertises a next-page affordance.
func HasNextPage(html string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	found := false
	doc.Find("a, span, button").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if normalizeSpace(s.Text()) == nextPageText {
			found = true
			return false
		}
		return true
	})
	return found
}

// DetailFields holds the independent best-effort extractions from one
// rendered detail page.
type DetailFields struct {
	CNTitle      string
	ENTitle      string
	Pairs        []LabelValue
	DraftingUnit string
	Drafters     string
	HasDownload  bool
	HasPreview   bool
}

// LabelValue is one defined-term / definition pair from the detail page.
type LabelValue struct {
	Label string
	Value string
}

// ParseDetail extracts whatever the detail page offers. Every sub-step is
// independently best-effort; a missing piece leaves its field zero-valued.
func ParseDetail(html string) (DetailFields, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return DetailFields{}, fmt.Errorf("parse detail page: %w", err)
	}

	out := DetailFields{
		CNTitle:     normalizeSpace(doc.Find("div.title h4").First().Text()),
		ENTitle:     normalizeSpace(doc.Find("div.title h5").First().Text()),
		HasDownload: containsText(doc, downloadText),
		HasPreview:  containsText(doc, previewText),
	}
	if out.CNTitle == "" {
		out.CNTitle = normalizeSpace(doc.Find("h4").First().Text())
	}
	if out.ENTitle == "" {
		out.ENTitle = normalizeSpace(doc.Find("h5").First().Text())
	}

	out.Pairs = parseLabelValuePairs(doc)
	out.DraftingUnit = phraseField(doc, "起草单位")
	out.Drafters = phraseField(doc, "起草人")
	return out, nil
}

// parseLabelValuePairs zips dt labels with dd values positionally; values
// beyond the shorter list are ignored.
func parseLabelValuePairs(doc *goquery.Document) []LabelValue {
	labels := doc.Find("dt")
	values := doc.Find("dd")
	n := labels.Length()
	if values.Length() < n {
		n = values.Length()
	}
	var pairs []LabelValue
	for i := 0; i < n; i++ {
		label := cleanLabel(labels.Eq(i).Text())
		value := normalizeSpace(values.Eq(i).Text())
		if label == "" || value == "" {
			continue
		}
		pairs = append(pairs, LabelValue{Label: label, Value: value})
	}
	return pairs
}

func cleanLabel(s string) string {
	s = normalizeSpace(s)
	s = strings.TrimSuffix(s, "：")
	return strings.TrimSuffix(s, ":")
}

// phraseField locates the tightest element containing phrase and returns its
// text with the label phrase stripped.
func phraseField(doc *goquery.Document, phrase string) string {
	text := shortestTextContaining(doc, phrase)
	if text == "" {
		return ""
	}
	text = strings.Replace(text, phrase, "", 1)
	return strings.TrimSpace(strings.TrimLeft(text, "：: "))
}

// shortestTextContaining returns the shortest block-level text containing
// phrase, which approximates the innermost matching element.
func shortestTextContaining(doc *goquery.Document, phrase string) string {
	best := ""
	doc.Find("p, div, span, td, li, dd, dt").Each(func(_ int, s *goquery.Selection) {
		t := normalizeSpace(s.Text())
		if !strings.Contains(t, phrase) {
			return
		}
		if best == "" || len(t) < len(best) {
			best = t
		}
	})
	return best
}

func containsText(doc *goquery.Document, text string) bool {
	found := false
	doc.Find("a, button, span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(normalizeSpace(s.Text()), text) {
			found = true
			return false
		}
		return true
	})
	return found
}

// ExtractHCNO pulls the content-handle token out of a document-viewer URL.
func ExtractHCNO(url string) string {
	m := hcnoPattern.FindStringSubmatch(url)
	if len(m) != 2 {
		return ""
	}
	return m[1]
}

// DownloadURL derives the stable download link for a content-handle token.
func DownloadURL(hcno string) string {
	return "http://c.gb688.cn/bzgk/gb/showGb?type=download&hcno=" + hcno
}
