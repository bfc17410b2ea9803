// Package reconciler keeps the mount points of one live template stable
// across render passes.
//
// After new markup is written into the container, the reconciler finds the
// stubs carrying the template's scope ID and matches them by key against the
// nodes it found on the previous pass. A previous node whose tag matches the
// fresh stub is put back in the stub's place, so whatever content was
// projected into it survives. Sibling order is not part of the match.
package reconciler

import (
	"context"

	"golang.org/x/net/html"

	"github.com/conneroisu/slotter/internal/dom"
	"github.com/conneroisu/slotter/internal/logging"
	"github.com/conneroisu/slotter/internal/namespace"
)

// State is the lifecycle state of a Reconciler.
type State int

const (
	// Uninitialized means no discovery has run yet.
	Uninitialized State = iota
	// Mounted means a mount point set, possibly empty, is known.
	Mounted
)

func (s State) String() string {
	if s == Mounted {
		return "mounted"
	}
	return "uninitialized"
}

// Point is a discovered stub.
type Point struct {
	Key  string
	Node *html.Node
}

// Result describes one reconcile run.
type Result struct {
	// Changed reports whether the mount point set was replaced.
	Changed bool
	// Reused lists keys whose previous node was kept or put back.
	Reused []string
	// Fresh lists keys that got a new node.
	Fresh []string
	// Dropped lists previous keys that were not discovered again.
	Dropped []string
}

// Discover returns the descendants of container owned by scope, in document
// order. Stubs of other scopes, including nested templates, are skipped.
// A key seen twice keeps its first node.
func Discover(container *html.Node, scope string) []Point {
	nodes := dom.QueryByAttribute(container, namespace.AttrScope, scope)
	points := make([]Point, 0, len(nodes))
	seen := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		key, ok := dom.Attr(n, namespace.AttrKey)
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		points = append(points, Point{Key: key, Node: n})
	}
	return points
}

// Reconciler owns the mount points of one template instance.
// It is not safe for concurrent use.
type Reconciler struct {
	state  State
	points map[string]*html.Node
	order  []string
	logger logging.Logger
}

// New returns an uninitialized Reconciler.
func New(logger logging.Logger) *Reconciler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Reconciler{
		points: make(map[string]*html.Node),
		logger: logger.WithComponent("reconciler"),
	}
}

// State returns the lifecycle state.
func (r *Reconciler) State() State {
	return r.state
}

// Reconcile discovers the stubs of scope in container and recycles previous
// mount points into them. The first run adopts whatever it finds.
func (r *Reconciler) Reconcile(ctx context.Context, container *html.Node, scope string) Result {
	found := Discover(container, scope)

	if r.state == Uninitialized {
		res := Result{Changed: len(found) > 0}
		for _, p := range found {
			res.Fresh = append(res.Fresh, p.Key)
		}
		r.adopt(found)
		r.state = Mounted
		r.logger.Debug(ctx, "Mount points discovered", "scope", scope, "count", len(found))
		return res
	}

	var res Result
	next := make([]Point, 0, len(found))
	for _, p := range found {
		prev, ok := r.points[p.Key]
		switch {
		case ok && prev == p.Node:
			res.Reused = append(res.Reused, p.Key)
		case ok && dom.Tag(prev) == dom.Tag(p.Node) && p.Node.Parent != nil:
			dom.ReplaceChild(p.Node.Parent, p.Node, prev)
			p.Node = prev
			res.Reused = append(res.Reused, p.Key)
		default:
			res.Fresh = append(res.Fresh, p.Key)
			res.Changed = true
		}
		next = append(next, p)
	}

	current := make(map[string]bool, len(next))
	for _, p := range next {
		current[p.Key] = true
	}
	for _, key := range r.order {
		if !current[key] {
			res.Dropped = append(res.Dropped, key)
		}
	}
	if len(next) != len(r.points) {
		res.Changed = true
	}

	if res.Changed {
		r.adopt(next)
	} else {
		r.order = r.order[:0]
		for _, p := range next {
			r.order = append(r.order, p.Key)
		}
	}

	r.logger.Debug(ctx, "Mount points reconciled",
		"scope", scope,
		"reused", len(res.Reused),
		"fresh", len(res.Fresh),
		"dropped", len(res.Dropped),
		"changed", res.Changed,
	)
	return res
}

func (r *Reconciler) adopt(points []Point) {
	r.points = make(map[string]*html.Node, len(points))
	r.order = r.order[:0]
	for _, p := range points {
		r.points[p.Key] = p.Node
		r.order = append(r.order, p.Key)
	}
}

// Lookup returns the mount point for key.
func (r *Reconciler) Lookup(key string) (*html.Node, bool) {
	n, ok := r.points[key]
	return n, ok
}

// Points returns a copy of the current mount points.
func (r *Reconciler) Points() map[string]*html.Node {
	out := make(map[string]*html.Node, len(r.points))
	for k, v := range r.points {
		out[k] = v
	}
	return out
}

// Keys returns the current keys in document order as of the last Reconcile.
func (r *Reconciler) Keys() []string {
	return append([]string(nil), r.order...)
}

// Len returns the number of current mount points.
func (r *Reconciler) Len() int {
	return len(r.points)
}

// Reset forgets all mount points and returns to Uninitialized.
func (r *Reconciler) Reset() {
	r.points = make(map[string]*html.Node)
	r.order = nil
	r.state = Uninitialized
}
