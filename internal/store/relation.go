package store

import "slices"

// Relation is a non-owning one-to-many index from a parent key to the keys of
// its children. The stores own the entities; a Relation only lets the graph
// walk from a parent to its dependents without holding pointers.
type Relation[P comparable, C comparable] struct {
	compare  func(a, b C) int
	children map[P]map[C]struct{}
}

// NewRelation builds an empty relation. compare orders the children returned
// by Children.
func NewRelation[P comparable, C comparable](compare func(a, b C) int) *Relation[P, C] {
	return &Relation[P, C]{compare: compare, children: make(map[P]map[C]struct{})}
}

// Link records child under parent.
func (r *Relation[P, C]) Link(parent P, child C) {
	set, ok := r.children[parent]
	if !ok {
		set = make(map[C]struct{})
		r.children[parent] = set
	}
	set[child] = struct{}{}
}

// Unlink forgets child under parent.
func (r *Relation[P, C]) Unlink(parent P, child C) {
	set, ok := r.children[parent]
	if !ok {
		return
	}
	delete(set, child)
	if len(set) == 0 {
		delete(r.children, parent)
	}
}

// Move re-parents every child of from under to.
func (r *Relation[P, C]) Move(from, to P) {
	set, ok := r.children[from]
	if !ok || from == to {
		return
	}
	delete(r.children, from)
	for child := range set {
		r.Link(to, child)
	}
}

// Children returns a sorted copy of the children of parent.
func (r *Relation[P, C]) Children(parent P) []C {
	set := r.children[parent]
	out := make([]C, 0, len(set))
	for child := range set {
		out = append(out, child)
	}
	if r.compare != nil {
		slices.SortFunc(out, r.compare)
	}
	return out
}

// Has reports whether child is linked under parent.
func (r *Relation[P, C]) Has(parent P, child C) bool {
	_, ok := r.children[parent][child]
	return ok
}

// Count returns the number of children of parent.
func (r *Relation[P, C]) Count(parent P) int {
	return len(r.children[parent])
}

// Parents returns the number of parents with at least one child.
func (r *Relation[P, C]) Parents() int {
	return len(r.children)
}
