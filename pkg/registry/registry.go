// SPDX-FileCopyrightText: Copyright 2026 The MPD Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry models the process-scoped fleet state spec.md ยง9 calls
// out: gBundles, gLinks, and gPhyses. Workers must re-resolve a link or
// bundle by its stable id rather than caching a pointer, because the
// foreground may reconfigure or tear down the fleet concurrently (spec.md
// ยง5 "Shared mutable state"). Registry is that lookup-by-id seam.
package registry

import "sync"

// ID is a stable numeric identifier for a link, bundle, or physical
// interface. It remains valid for the lifetime of the fleet entry and is
// never reused while the entry is reachable.
type ID uint64

// Registry is a concurrency-safe map from ID to an entry of type T. The
// zero value is not usable; use New.
type Registry[T any] struct {
	mu      sync.RWMutex
	entries map[ID]T
}

// New creates an empty Registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{entries: make(map[ID]T)}
}

// Put registers or replaces the entry for id.
func (r *Registry[T]) Put(id ID, entry T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = entry
}

// Remove removes the entry for id, if present.
func (r *Registry[T]) Remove(id ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Lookup resolves id to its current entry. Returns the zero value and
// false if the entry is gone — the caller (typically a worker finisher)
// must treat that as "link is gone, drop and return" (spec.md ยง4.3 step
// 2(c)), never as an error worth retrying.
func (r *Registry[T]) Lookup(id ID) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	return entry, ok
}

// Len returns the number of entries currently registered.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Each calls fn for every entry currently registered. fn must not call
// back into the Registry (Put/Remove/Lookup) — Each holds the read lock
// for its duration.
func (r *Registry[T]) Each(fn func(ID, T)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, entry := range r.entries {
		fn(id, entry)
	}
}

// CountMatching returns the number of entries for which predicate reports
// true. Used by the pre-check gate to enforce the per-user concurrent
// session cap (spec.md ยง4.4) without exposing the internal map.
func (r *Registry[T]) CountMatching(predicate func(T) bool) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, entry := range r.entries {
		if predicate(entry) {
			n++
		}
	}
	return n
}
