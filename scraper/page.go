package scraper

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"listing_ledger/config"
	"listing_ledger/extract"
	"listing_ledger/logging"
)

// Page is one parsed results page.
type Page struct {
	Fragments []extract.Fragment
	// PageCount is the total number of result pages reported by the pager,
	// or 1 when the page has no pager.
	PageCount int
}

// PageParser turns results-page HTML into listing fragments using the
// site's configured selectors.
type PageParser struct {
	sel config.Selectors
}

func NewPageParser(site *config.SiteConfig) *PageParser {
	return &PageParser{sel: site.Selectors}
}

func (p *PageParser) ParseBytes(html []byte) (*Page, error) {
	return p.Parse(bytes.NewReader(html))
}

// Parse extracts every listing card in document order.
func (p *PageParser) Parse(r io.Reader) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	page := &Page{PageCount: p.pageCount(doc)}

	doc.Find(strings.Join(p.sel.Cards, ", ")).Each(func(i int, card *goquery.Selection) {
		page.Fragments = append(page.Fragments, p.fragment(card))
	})

	return page, nil
}

func (p *PageParser) fragment(card *goquery.Selection) extract.Fragment {
	f := extract.Fragment{
		Price:   cleanText(card.Find(p.sel.Price).First().Text()),
		Address: cleanText(card.Find(p.sel.Address).First().Text()),
	}
	card.Find(p.sel.Stats).Each(func(i int, s *goquery.Selection) {
		if text := cleanText(s.Text()); text != "" {
			f.Stats = append(f.Stats, text)
		}
	})
	return f
}

// pageCount reads the pager text ("Viewing page 1 of 12") and returns its
// trailing number.
func (p *PageParser) pageCount(doc *goquery.Document) int {
	if p.sel.PageCount == "" {
		return 1
	}
	pager := doc.Find(p.sel.PageCount).First()
	if pager.Length() == 0 {
		return 1
	}

	text := cleanText(pager.Text())
	n, err := ParsePageCount(text)
	if err != nil {
		logging.Warnf("unreadable page count %q, assuming one page", text)
		return 1
	}
	return n
}

// ParsePageCount returns the last whitespace-separated number in text.
func ParsePageCount(text string) (int, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty page count")
	}
	n, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil {
		return 0, fmt.Errorf("page count %q: %w", text, err)
	}
	if n < 1 {
		return 0, fmt.Errorf("page count %q: must be positive", text)
	}
	return n, nil
}

// cleanText collapses runs of whitespace, which card markup is full of.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
