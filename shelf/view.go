package shelf

import (
	"strings"
	"sync"
	"time"

	"bookshelf/library"
)

// Page is what the listing shows right now.
type Page struct {
	Query   string
	Items   []library.Book
	Matches int
	HasMore bool
}

// ViewOptions sizes the paginated listing.
type ViewOptions struct {
	Debounce time.Duration
	PageSize int
	PageStep int
	Clock    Clock
}

func (o *ViewOptions) setDefaults() {
	if o.Debounce <= 0 {
		o.Debounce = 300 * time.Millisecond
	}
	if o.PageSize <= 0 {
		o.PageSize = 12
	}
	if o.PageStep <= 0 {
		o.PageStep = 8
	}
	if o.Clock == nil {
		o.Clock = RealClock
	}
}

// View is a filtered, paginated projection of the collection. Search input
// is debounced; the filter pass runs once per settled query.
type View struct {
	source func() []library.Book
	deb    *Debouncer
	opts   ViewOptions

	mu       sync.Mutex
	input    string
	query    string
	visible  int
	passes   int
	onChange func(Page)
}

// NewView returns a view over the books returned by source.
func NewView(source func() []library.Book, opts ViewOptions) *View {
	opts.setDefaults()
	v := &View{source: source, opts: opts, visible: opts.PageSize}
	v.deb = NewDebouncer(opts.Clock, opts.Debounce, v.apply)
	return v
}

// OnChange sets the callback run with the new page whenever it may have
// changed.
func (v *View) OnChange(fn func(Page)) {
	v.mu.Lock()
	v.onChange = fn
	v.mu.Unlock()
}

// SetQuery records raw search input. The filter follows once the input has
// been quiet for the debounce interval.
func (v *View) SetQuery(raw string) {
	v.mu.Lock()
	v.input = raw
	v.mu.Unlock()
	v.deb.Trigger(raw)
}

func (v *View) apply(raw string) {
	q := library.Fold(raw)
	v.mu.Lock()
	if q != v.query {
		v.visible = v.opts.PageSize
	}
	v.query = q
	v.passes++
	v.mu.Unlock()
	v.changed()
}

// LoadMore reveals the next batch of matches.
func (v *View) LoadMore() Page {
	v.mu.Lock()
	v.visible += v.opts.PageStep
	v.mu.Unlock()
	return v.changed()
}

// Page filters the current collection by the settled query.
func (v *View) Page() Page {
	v.mu.Lock()
	q, visible := v.query, v.visible
	v.mu.Unlock()

	var matches []library.Book
	for _, b := range v.source() {
		if matchBook(b, q) {
			matches = append(matches, b)
		}
	}
	p := Page{Query: q, Matches: len(matches)}
	if len(matches) > visible {
		p.Items = matches[:visible]
		p.HasMore = true
	} else {
		p.Items = matches
	}
	return p
}

func matchBook(b library.Book, q string) bool {
	if q == "" {
		return true
	}
	return strings.Contains(library.Fold(b.Title), q) || strings.Contains(library.Fold(b.Authors), q)
}

// Input returns the raw, possibly not yet applied, search text.
func (v *View) Input() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.input
}

// Passes counts applied filter passes.
func (v *View) Passes() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.passes
}

// Refresh re-renders after the underlying collection changed.
func (v *View) Refresh() { v.changed() }

// Reset drops the query, any pending input and extra pages.
func (v *View) Reset() {
	v.deb.Stop()
	v.mu.Lock()
	v.input, v.query = "", ""
	v.visible = v.opts.PageSize
	v.mu.Unlock()
	v.changed()
}

// Stop cancels pending input without touching the current query.
func (v *View) Stop() { v.deb.Stop() }

func (v *View) changed() Page {
	p := v.Page()
	v.mu.Lock()
	fn := v.onChange
	v.mu.Unlock()
	if fn != nil {
		fn(p)
	}
	return p
}
