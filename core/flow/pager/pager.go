// Package pager paginates a list of values inside a single flow step. The
// step never changes: page turns are Stay transitions whose event data carries
// the absolute target page, so paging needs no per-session state and a stale
// page button is harmless.
package pager

import (
	"context"
	"fmt"
	"strconv"

	"github.com/m3rciful/botflow/core/flow"
)

// ActionPage is the action id page-turn buttons trigger. The event data is
// the decimal index of the requested page.
const ActionPage = "page"

// Pager slices values into fixed-size pages.
type Pager[T any] struct {
	values  []T
	perPage int
}

// DefaultPerPage is used when New gets a non-positive page size.
const DefaultPerPage = 10

// New builds a pager over values. The slice is not copied; callers must not
// mutate it while the pager is in use.
func New[T any](values []T, perPage int) *Pager[T] {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	return &Pager[T]{values: values, perPage: perPage}
}

// MaxPage returns the number of pages, zero when there are no values.
func (p *Pager[T]) MaxPage() int {
	div := len(p.values) / p.perPage
	if len(p.values)%p.perPage != 0 {
		div++
	}
	return div
}

// Clamp maps any requested page onto a valid one.
func (p *Pager[T]) Clamp(page int) int {
	if max := p.MaxPage(); page >= max {
		page = max - 1
	}
	if page < 0 {
		page = 0
	}
	return page
}

// Window returns the values visible on page, clamped to valid bounds.
func (p *Pager[T]) Window(page int) []T {
	if p.MaxPage() == 0 {
		return nil
	}
	page = p.Clamp(page)
	lo := page * p.perPage
	hi := lo + p.perPage
	if hi > len(p.values) {
		hi = len(p.values)
	}
	return p.values[lo:hi]
}

// Label renders the "current/total" position indicator.
func (p *Pager[T]) Label(page int) string {
	max := p.MaxPage()
	if max == 0 {
		return "1/1"
	}
	return fmt.Sprintf("%d/%d", p.Clamp(page)+1, max)
}

// Nav describes the page-turn controls for the given page. Targets are
// absolute page indexes to put into the buttons' event data.
type Nav struct {
	First, Prev, Next, Last int
	HasPrev, HasNext        bool
}

// Nav computes the controls for page.
func (p *Pager[T]) Nav(page int) Nav {
	max := p.MaxPage()
	if max == 0 {
		return Nav{}
	}
	page = p.Clamp(page)
	return Nav{
		First:   0,
		Prev:    page - 1,
		Next:    page + 1,
		Last:    max - 1,
		HasPrev: page > 0,
		HasNext: page < max-1,
	}
}

// Action returns the page-turn action to declare on the paginated step.
func (p *Pager[T]) Action() flow.Action {
	return flow.Action{ID: ActionPage, Target: flow.Resolve(p.resolve)}
}

// Step builds a flow step whose payload is the pager itself, with the
// page-turn action plus any extra actions the caller declares.
func Step[T any](id string, p *Pager[T], extra ...flow.Action) flow.Step {
	return flow.Step{
		ID:      id,
		Payload: p,
		Actions: append([]flow.Action{p.Action()}, extra...),
	}
}

// resolve validates the requested page and re-renders the current step.
// Out-of-range pages clamp on render, so a stale button never errors; only
// malformed data does.
func (p *Pager[T]) resolve(ctx context.Context, current *flow.Step, ev flow.Event) (flow.Target, error) {
	if _, err := ParsePage(ev.Data); err != nil {
		return flow.Target{}, err
	}
	return flow.Stay(), nil
}

// ParsePage extracts the page index from event data set by page-turn buttons.
func ParsePage(data any) (int, error) {
	switch v := data.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("pager: bad page %q", v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("pager: bad page data %T", data)
	}
}
