package store

import "reflect"

// Listener receives change notifications from a Store.
//
// Notifications are delivered synchronously, in subscription order, before the
// mutating call returns. Ordering is only guaranteed within one kind of event.
type Listener[K comparable, V any] interface {
	ItemAdded(item V)
	ItemReplaced(old, item V)
	ItemRemoved(item V)
	KeyChanged(oldKey K, item V)
}

// Funcs adapts optional callbacks to a Listener. Register it by pointer so
// that Subscribe and Unsubscribe can recognise it.
type Funcs[K comparable, V any] struct {
	OnAdded      func(item V)
	OnReplaced   func(old, item V)
	OnRemoved    func(item V)
	OnKeyChanged func(oldKey K, item V)
}

func (f *Funcs[K, V]) ItemAdded(item V) {
	if f.OnAdded != nil {
		f.OnAdded(item)
	}
}

func (f *Funcs[K, V]) ItemReplaced(old, item V) {
	if f.OnReplaced != nil {
		f.OnReplaced(old, item)
	}
}

func (f *Funcs[K, V]) ItemRemoved(item V) {
	if f.OnRemoved != nil {
		f.OnRemoved(item)
	}
}

func (f *Funcs[K, V]) KeyChanged(oldKey K, item V) {
	if f.OnKeyChanged != nil {
		f.OnKeyChanged(oldKey, item)
	}
}

// Bus fans store mutations out to subscribed listeners.
type Bus[K comparable, V any] struct {
	listeners []Listener[K, V]
}

// Subscribe registers l. Subscribing the same listener twice has no effect.
// Listeners are matched by ==, so pass pointers: a listener whose dynamic
// type is not comparable is never deduplicated and cannot be unsubscribed.
func (b *Bus[K, V]) Subscribe(l Listener[K, V]) {
	if l == nil || b.index(l) >= 0 {
		return
	}
	b.listeners = append(b.listeners, l)
}

// Unsubscribe removes l. Unknown listeners are ignored.
func (b *Bus[K, V]) Unsubscribe(l Listener[K, V]) {
	i := b.index(l)
	if i < 0 {
		return
	}
	b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
}

// Len returns the number of subscribed listeners.
func (b *Bus[K, V]) Len() int {
	return len(b.listeners)
}

func (b *Bus[K, V]) index(l Listener[K, V]) int {
	for i, existing := range b.listeners {
		if sameListener(existing, l) {
			return i
		}
	}
	return -1
}

func sameListener[K comparable, V any](a, b Listener[K, V]) bool {
	t := reflect.TypeOf(a)
	if t != reflect.TypeOf(b) || !t.Comparable() {
		return false
	}
	return a == b
}

// snapshot guards delivery against listeners that subscribe or unsubscribe
// while an event is being dispatched.
func (b *Bus[K, V]) snapshot() []Listener[K, V] {
	if len(b.listeners) == 0 {
		return nil
	}
	out := make([]Listener[K, V], len(b.listeners))
	copy(out, b.listeners)
	return out
}

func (b *Bus[K, V]) added(item V) {
	for _, l := range b.snapshot() {
		l.ItemAdded(item)
	}
}

func (b *Bus[K, V]) replaced(old, item V) {
	for _, l := range b.snapshot() {
		l.ItemReplaced(old, item)
	}
}

func (b *Bus[K, V]) removed(item V) {
	for _, l := range b.snapshot() {
		l.ItemRemoved(item)
	}
}

func (b *Bus[K, V]) keyChanged(oldKey K, item V) {
	for _, l := range b.snapshot() {
		l.KeyChanged(oldKey, item)
	}
}
