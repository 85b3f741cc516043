package attempt

import "exam-attempt-service/internal/domain"

// DefaultPageSize is the number of questions shown at once.
const DefaultPageSize = 7

// Pager tracks which fixed-size window of the shuffled list is visible.
// It never mutates questions; Project builds a fresh display slice.
type Pager struct {
	pageSize      int
	totalElements int
	current       int
}

func NewPager(totalElements, pageSize int) *Pager {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if totalElements < 0 {
		totalElements = 0
	}
	return &Pager{pageSize: pageSize, totalElements: totalElements}
}

func (p *Pager) PageSize() int { return p.pageSize }
func (p *Pager) TotalElements() int { return p.totalElements }
func (p *Pager) Current() int { return p.current }

// TotalPages is ceil(totalElements / pageSize).
func (p *Pager) TotalPages() int {
	return (p.totalElements + p.pageSize - 1) / p.pageSize
}

// GoToPage moves to page n, clamped to [0, TotalPages-1].
func (p *Pager) GoToPage(n int) int {
	last := p.TotalPages() - 1
	if n > last {
		n = last
	}
	if n < 0 {
		n = 0
	}
	p.current = n
	return p.current
}

// Next advances one page; a no-op on the last page.
func (p *Pager) Next() int {
	if p.current < p.TotalPages()-1 {
		p.current++
	}
	return p.current
}

// Prev goes back one page; a no-op on the first page.
func (p *Pager) Prev() int {
	if p.current > 0 {
		p.current--
	}
	return p.current
}

// Window returns the half-open bounds [start, end) of page n.
func (p *Pager) Window(n int) (int, int) {
	start := n * p.pageSize
	if start > p.totalElements {
		start = p.totalElements
	}
	end := start + p.pageSize
	if end > p.totalElements {
		end = p.totalElements
	}
	return start, end
}

// Project returns the current page of shuffled with answers merged in from
// the ledger. Questions without an entry get an empty answer.
func (p *Pager) Project(shuffled []domain.Question, ledger *Ledger) []domain.Question {
	start, end := p.Window(p.current)
	if end > len(shuffled) {
		end = len(shuffled)
	}
	if start > end {
		start = end
	}
	page := make([]domain.Question, 0, end-start)
	for _, q := range shuffled[start:end] {
		q.GivenAnswer, _ = ledger.Answer(q.ID)
		page = append(page, q)
	}
	return page
}
