package jsonapi

import (
	"fmt"
	"net/url"
	"strconv"
)

// Page is a requested page of a list.
type Page struct {
	Number int
	Size   int
}

// Offset is the index of the page's first element.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// ParsePage reads page[number] and page[size] from a query. The bare
// "limit" parameter is accepted as a page size. Missing values fall back to
// page 1 of defaultSize; sizes above maxSize are clamped.
func ParsePage(q url.Values, defaultSize, maxSize int) (Page, *Error) {
	p := Page{Number: 1, Size: defaultSize}

	if raw := q.Get("page[number]"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			e := ErrBadParameter("page[number]", "page[number] must be a positive integer")
			return p, &e
		}
		p.Number = n
	}

	for _, name := range []string{"page[size]", "limit"} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			e := ErrBadParameter(name, name+" must be a positive integer")
			return p, &e
		}
		p.Size = n
		break
	}
	if maxSize > 0 && p.Size > maxSize {
		p.Size = maxSize
	}
	return p, nil
}

// Pagination describes one page of a list of known length.
type Pagination struct {
	Page    Page
	Total   int
	BaseURL string
}

// NewPagination pages a list of total elements.
func NewPagination(total int, page Page, baseURL string) *Pagination {
	if page.Number < 1 {
		page.Number = 1
	}
	if page.Size < 1 {
		page.Size = 1
	}
	return &Pagination{Page: page, Total: total, BaseURL: baseURL}
}

// TotalPages is at least 1, so an empty list still has a first page.
func (p *Pagination) TotalPages() int {
	return max((p.Total+p.Page.Size-1)/p.Page.Size, 1)
}

// Bounds returns the slice bounds of the page within the full list.
func (p *Pagination) Bounds() (start, end int) {
	start = min(p.Page.Offset(), p.Total)
	end = min(start+p.Page.Size, p.Total)
	return start, end
}

// Meta reports the list size and the current page.
func (p *Pagination) Meta() Meta {
	return Meta{
		"total":    p.Total,
		"page":     p.Page.Number,
		"per_page": p.Page.Size,
		"pages":    p.TotalPages(),
	}
}

// Links returns self, first and last links plus prev and next where they
// exist.
func (p *Pagination) Links() *Links {
	last := p.TotalPages()
	links := &Links{
		Self:  p.url(p.Page.Number),
		First: p.url(1),
		Last:  p.url(last),
	}
	if p.Page.Number > 1 {
		links.Prev = p.url(min(p.Page.Number-1, last))
	}
	if p.Page.Number < last {
		links.Next = p.url(p.Page.Number + 1)
	}
	return links
}

func (p *Pagination) url(number int) string {
	q := url.Values{}
	q.Set("page[number]", strconv.Itoa(number))
	q.Set("page[size]", strconv.Itoa(p.Page.Size))
	return fmt.Sprintf("%s?%s", p.BaseURL, q.Encode())
}

// Paginate returns the page's portion of all.
func Paginate[T any](all []T, p *Pagination) []T {
	start, end := p.Bounds()
	return all[start:end]
}
