// SPDX-FileCopyrightText: Copyright 2026 The MPD Authors
// SPDX-License-Identifier: Apache-2.0

// Package precheck implements the Pre-Check Gate (spec.md ยง4.4): the
// invariants enforced before any backend runs. It never touches a
// backend, so it always completes synchronously on the foreground.
package precheck

import (
	"fmt"

	mpderrors "github.com/mpd-project/mpd/pkg/errors"
)

// BundleCounter reports how many currently-open bundles match a predicate.
// A pkg/registry.Registry[string] satisfies this directly via
// CountMatching; registries of other entry types are adapted with
// NewBundleCounter.
type BundleCounter interface {
	CountMatching(predicate func(authname string) bool) int
}

// authnameCounter adapts a registry.Registry[T] (whose entries aren't
// plain strings) into BundleCounter via a projection function. Kept
// unexported: callers build one with NewBundleCounter.
type authnameCounter struct {
	count func(predicate func(string) bool) int
}

func (a authnameCounter) CountMatching(predicate func(string) bool) int {
	return a.count(predicate)
}

// NewBundleCounter adapts any "count matching" source (typically
// registry.Registry[*Bundle].CountMatching composed with a field
// projection) into a BundleCounter.
func NewBundleCounter(count func(predicate func(string) bool) int) BundleCounter {
	return authnameCounter{count: count}
}

// Gate runs the Pre-Check invariants of spec.md ยง4.4.
type Gate struct {
	// MaxLogins is gMaxLogins: the per-user concurrent-session cap. Zero
	// means unlimited.
	MaxLogins int
	Bundles   BundleCounter
}

// Check validates authname against the invariants. Returns nil if the
// attempt may proceed to the backend chain.
func (g *Gate) Check(authname string) error {
	if authname == "" {
		return mpderrors.NewInvalidLoginError("empty authname", nil)
	}

	if g.MaxLogins > 0 && g.Bundles != nil {
		open := g.Bundles.CountMatching(func(a string) bool { return a == authname })
		if open >= g.MaxLogins {
			return mpderrors.NewInvalidLoginError(
				fmt.Sprintf("authname %q already has %d open sessions (limit %d)", authname, open, g.MaxLogins),
				nil,
			)
		}
	}

	return nil
}
