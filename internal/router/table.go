package router

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bkr/apigateway/internal/util"
)

// ErrTableFrozen is returned by Register after Freeze.
var ErrTableFrozen = errors.New("route table is frozen")

// Route binds a matcher to an upstream target.
type Route struct {
	ID       string
	Matcher  Matcher
	Target   *url.URL
	Priority int

	// Timeout overrides the dispatcher default when positive.
	Timeout time.Duration

	seq int
}

// Table is an ordered set of routes.
//
// Register is serialized by a mutex and publishes a new immutable snapshot;
// Match only loads the current snapshot, so lookups never block.
type Table struct {
	mu       sync.Mutex
	byID     map[string]*Route
	nextSeq  int
	frozen   bool
	snapshot atomic.Pointer[[]*Route]
}

// NewTable creates an empty table.
func NewTable() *Table {
	t := &Table{byID: make(map[string]*Route)}
	empty := make([]*Route, 0)
	t.snapshot.Store(&empty)
	return t
}

// Register adds a route. It fails with a *util.DuplicateRouteError when
// the id is taken and with ErrTableFrozen after Freeze.
func (t *Table) Register(route Route) error {
	if route.ID == "" {
		return fmt.Errorf("route id is required")
	}
	if route.Matcher == nil {
		return fmt.Errorf("route %s: matcher is required", route.ID)
	}
	if route.Target == nil {
		return fmt.Errorf("route %s: target is required", route.ID)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.frozen {
		return ErrTableFrozen
	}
	if _, exists := t.byID[route.ID]; exists {
		return util.NewDuplicateRouteError(route.ID)
	}

	r := route
	r.seq = t.nextSeq
	t.nextSeq++
	t.byID[r.ID] = &r

	current := *t.snapshot.Load()
	next := make([]*Route, len(current), len(current)+1)
	copy(next, current)
	next = append(next, &r)
	sort.SliceStable(next, func(i, j int) bool {
		if next[i].Priority != next[j].Priority {
			return next[i].Priority > next[j].Priority
		}
		return next[i].seq < next[j].seq
	})
	t.snapshot.Store(&next)

	return nil
}

// Freeze ends the registration phase.
func (t *Table) Freeze() {
	t.mu.Lock()
	t.frozen = true
	t.mu.Unlock()
}

// Frozen reports whether Freeze has been called.
func (t *Table) Frozen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frozen
}

// Match returns the first route, in priority then registration order,
// whose matcher accepts the request, or nil.
func (t *Table) Match(method, path string, header http.Header) *Route {
	for _, r := range *t.snapshot.Load() {
		if r.Matcher.Matches(method, path, header) {
			recordMatch(r.ID)
			return r
		}
	}
	recordMiss()
	return nil
}

// MatchRequest normalizes the request path and matches it. It returns a
// *util.RouteNotFoundError when nothing matches.
func (t *Table) MatchRequest(req *http.Request) (*Route, error) {
	path := NormalizePath(req.URL.Path)
	if r := t.Match(req.Method, path, req.Header); r != nil {
		return r, nil
	}
	return nil, util.NewRouteNotFoundError(req.Method, path)
}

// Routes returns the routes in evaluation order.
func (t *Table) Routes() []*Route {
	current := *t.snapshot.Load()
	out := make([]*Route, len(current))
	copy(out, current)
	return out
}

// Get returns the route with the given id.
func (t *Table) Get(id string) (*Route, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.byID[id]
	return r, ok
}

// Len returns the number of routes.
func (t *Table) Len() int {
	return len(*t.snapshot.Load())
}
