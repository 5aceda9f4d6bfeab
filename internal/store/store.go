// Package store provides the in-memory keyed tables that own every entity of
// the registration graph, together with the change bus used to keep
// dependent tables consistent.
package store

import (
	"errors"
	"fmt"
	"slices"
)

// ErrNullKey is returned when an item without a usable key reaches a store.
// It signals a programming error rather than bad user input.
var ErrNullKey = errors.New("store: null key")

// Config describes how a Store reads and writes the key of its items.
type Config[K comparable, V any] struct {
	// Name is used in error messages.
	Name string
	// KeyOf extracts the key of an item.
	KeyOf func(V) K
	// SetKey rewrites the key of an item in place. Required for Rekey.
	SetKey func(V, K)
	// Compare orders keys for iteration. When nil the store iterates in
	// insertion order.
	Compare func(a, b K) int
	// ValidKey reports whether a key is usable. Defaults to "not the zero value".
	ValidKey func(K) bool
	// Admit may refuse an item before it is stored.
	Admit func(V) error
}

// Store is a single-key table. It is the only owner of its items; every
// mutation is announced on Bus.
//
// Store is not safe for concurrent use.
type Store[K comparable, V any] struct {
	cfg   Config[K, V]
	items map[K]V
	order []K
	bus   Bus[K, V]
}

// New builds an empty store.
func New[K comparable, V any](cfg Config[K, V]) *Store[K, V] {
	if cfg.KeyOf == nil {
		panic("store: KeyOf is required")
	}
	if cfg.ValidKey == nil {
		cfg.ValidKey = func(k K) bool {
			var zero K
			return k != zero
		}
	}
	return &Store[K, V]{cfg: cfg, items: make(map[K]V)}
}

// Name returns the configured store name.
func (s *Store[K, V]) Name() string { return s.cfg.Name }

// Bus exposes the change bus of the store.
func (s *Store[K, V]) Bus() *Bus[K, V] { return &s.bus }

// Subscribe is shorthand for Bus().Subscribe.
func (s *Store[K, V]) Subscribe(l Listener[K, V]) { s.bus.Subscribe(l) }

// Add inserts item, or replaces the item stored under the same key. A fresh
// insert fires ItemAdded; a replacement fires ItemReplaced instead.
func (s *Store[K, V]) Add(item V) (previous V, replaced bool, err error) {
	key := s.cfg.KeyOf(item)
	if !s.cfg.ValidKey(key) {
		return previous, false, fmt.Errorf("%s add: %w", s.cfg.Name, ErrNullKey)
	}
	if s.cfg.Admit != nil {
		if err := s.cfg.Admit(item); err != nil {
			return previous, false, err
		}
	}
	previous, replaced = s.items[key]
	s.items[key] = item
	if replaced {
		s.bus.replaced(previous, item)
		return previous, true, nil
	}
	s.order = append(s.order, key)
	s.bus.added(item)
	return previous, false, nil
}

// Get returns the item stored under key.
func (s *Store[K, V]) Get(key K) (V, bool) {
	item, ok := s.items[key]
	return item, ok
}

// Contains reports whether key is present.
func (s *Store[K, V]) Contains(key K) bool {
	_, ok := s.items[key]
	return ok
}

// Len returns the number of stored items.
func (s *Store[K, V]) Len() int { return len(s.items) }

// Remove deletes the item under key. ItemRemoved fires only when something
// was removed.
func (s *Store[K, V]) Remove(key K) (V, bool) {
	item, ok := s.items[key]
	if !ok {
		return item, false
	}
	s.detach(key)
	s.bus.removed(item)
	return item, true
}

// Rekey moves the item under oldKey to newKey and rewrites the key held by
// the item. It fails without mutation when the keys are equal, when newKey is
// taken or invalid, or when oldKey is absent.
func (s *Store[K, V]) Rekey(oldKey, newKey K) bool {
	return s.RekeyAll([]K{oldKey}, func(K) K { return newKey })
}

// RekeyAll applies remap to every key in keys as one operation. It is the
// generic way to change one component of a composite key: every target is
// validated before anything moves, and nothing moves if any target is
// rejected. One KeyChanged fires per moved item, in the order of keys.
func (s *Store[K, V]) RekeyAll(keys []K, remap func(K) K) bool {
	if len(keys) == 0 {
		return true
	}
	if s.cfg.SetKey == nil {
		panic(fmt.Sprintf("store %s: SetKey is required for rekey", s.cfg.Name))
	}
	moving := make(map[K]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := s.items[k]; !ok {
			return false
		}
		if _, dup := moving[k]; dup {
			return false
		}
		moving[k] = struct{}{}
	}
	targets := make([]K, len(keys))
	seen := make(map[K]struct{}, len(keys))
	for i, k := range keys {
		next := remap(k)
		if next == k || !s.cfg.ValidKey(next) {
			return false
		}
		if _, dup := seen[next]; dup {
			return false
		}
		if _, taken := s.items[next]; taken {
			if _, freed := moving[next]; !freed {
				return false
			}
		}
		seen[next] = struct{}{}
		targets[i] = next
	}

	items := make([]V, len(keys))
	for i, k := range keys {
		items[i] = s.items[k]
		s.detach(k)
	}
	for i, item := range items {
		s.cfg.SetKey(item, targets[i])
		s.items[targets[i]] = item
		s.order = append(s.order, targets[i])
	}
	for i, item := range items {
		s.bus.keyChanged(keys[i], item)
	}
	return true
}

// Keys returns the keys in iteration order.
func (s *Store[K, V]) Keys() []K {
	keys := make([]K, len(s.order))
	copy(keys, s.order)
	if s.cfg.Compare != nil {
		slices.SortFunc(keys, s.cfg.Compare)
	}
	return keys
}

// Items returns the items in iteration order.
func (s *Store[K, V]) Items() []V {
	keys := s.Keys()
	out := make([]V, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.items[k])
	}
	return out
}

// Each calls fn for every item in iteration order until fn returns false.
// The iteration works on a snapshot of the keys, so fn may mutate the store.
func (s *Store[K, V]) Each(fn func(K, V) bool) {
	for _, k := range s.Keys() {
		item, ok := s.items[k]
		if !ok {
			continue
		}
		if !fn(k, item) {
			return
		}
	}
}

func (s *Store[K, V]) detach(key K) {
	delete(s.items, key)
	if i := slices.Index(s.order, key); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
}
