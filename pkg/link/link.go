// SPDX-FileCopyrightText: Copyright 2026 The MPD Authors
// SPDX-License-Identifier: Apache-2.0

// Package link implements the Link Authentication Context of spec.md §3:
// the per-link bag of protocol sub-state, configuration, and timers that
// pkg/controller drives and pkg/worker's finisher writes back into. One
// Context exists per physical/logical link; its lifetime is owned by
// whatever out-of-scope LCP driver embeds this package.
package link

import (
	"sync"
	"time"

	"github.com/mpd-project/mpd/pkg/authdata"
	"github.com/mpd-project/mpd/pkg/authparams"
	"github.com/mpd-project/mpd/pkg/chap"
	"github.com/mpd-project/mpd/pkg/eap"
	"github.com/mpd-project/mpd/pkg/pap"
	"github.com/mpd-project/mpd/pkg/ppp"
	"github.com/mpd-project/mpd/pkg/registry"
	"github.com/mpd-project/mpd/pkg/worker"
)

// Protocol identifies the negotiated authentication protocol for one
// direction of a link. It is spec.md §3's per-direction protocol
// selection; pkg/ppp owns the concrete values so state machines and the
// controller agree on wire framing.
type Protocol = ppp.Protocol

// Config is the per-link option set of spec.md §6: the link-scoped
// options a config reload applies (see pkg/config for how these are
// sourced).
type Config struct {
	Authname       string
	Password       string
	MaxLogins      int
	ExtAuthScript  string
	AcctUpdate     time.Duration
	UpdateLimitIn  uint64
	UpdateLimitOut uint64
	Timeout        time.Duration

	EnableExternal bool
	EnableRadius   bool
	EnableSystem   bool
	EnableOPIE     bool
	EnableInternal bool

	RetryTimeout time.Duration
	Retries      int

	ChapAlgorithm authparams.ChapAlgorithm
	EAPMode       eap.Mode
	EAPLocalType  eap.LocalType
}

// Context is the LinkAuthContext of spec.md §3: one per physical/logical
// link, carrying both directions' protocol sub-state, the live
// AuthParams, configuration, and the auth/accounting timers.
type Context struct {
	ID registry.ID

	SelfToPeer Protocol
	PeerToSelf Protocol

	Conf   Config
	Params *authparams.Params

	PAPOut  *pap.Machine
	PAPIn   *pap.Machine
	ChapOut *chap.Machine
	ChapIn  *chap.Machine
	EAPIn   *eap.Machine

	AuthTimer *worker.Timer
	AcctTimer *worker.Timer

	// numDirections is how many of {PAPOut/ChapOut, PAPIn/ChapIn/EAPIn}
	// are actually active for this link; onResolved fires once that many
	// have reported in, per spec.md §4.1 "finish once both directions
	// have resolved" (a link negotiating only one direction resolves as
	// soon as that direction does).
	numDirections int
	doneCount     int
	ok            bool
	onResolved    func(ok bool)

	workerMu sync.Mutex
	inFlight bool
}

// ApplyParams implements worker.LinkTarget: once a backend attempt
// resolves, the finisher re-resolves this Context by id and copies the
// enriched AuthParams back into its live state (spec.md §4.3 step 3(d)).
// A Stop accounting event is the one exception (spec.md §4.7 "Finisher
// policy for accounting"): the link is going away, so its params are not
// copied back.
func (c *Context) ApplyParams(data *authdata.Data) {
	if data.AcctType == authdata.AcctStop {
		return
	}
	if data.Params != nil {
		c.Params = data.Params.Copy()
	}
}

// SetDirectionCount declares how many directions this link negotiates.
// Must be called before the first MarkDirectionDone.
func (c *Context) SetDirectionCount(n int) {
	c.numDirections = n
	c.doneCount = 0
	c.ok = true
}

// MarkDirectionDone records that one direction (self-to-peer or
// peer-to-self) has resolved, and reports the link's overall result via
// onResolved once every direction set by SetDirectionCount has finished.
// The overall result is the logical AND of every direction's outcome.
func (c *Context) MarkDirectionDone(ok bool) {
	if !ok {
		c.ok = false
	}
	c.doneCount++
	if c.doneCount < c.numDirections {
		return
	}
	if c.onResolved != nil {
		c.onResolved(c.ok)
	}
}

// OnResolved registers the callback MarkDirectionDone invokes once every
// negotiated direction has finished.
func (c *Context) OnResolved(fn func(ok bool)) {
	c.onResolved = fn
}

// TryAcquireWorker reports whether no worker is currently in flight for
// this link's peer-to-self direction, claiming the slot if so. Callers
// must pair a true result with a later ReleaseWorker once the worker's
// continuation has run (spec.md §4.1 "input... rejects the packet if
// another worker is in flight", Testable Property #1).
func (c *Context) TryAcquireWorker() bool {
	c.workerMu.Lock()
	defer c.workerMu.Unlock()
	if c.inFlight {
		return false
	}
	c.inFlight = true
	return true
}

// ReleaseWorker clears the in-flight flag claimed by TryAcquireWorker.
func (c *Context) ReleaseWorker() {
	c.workerMu.Lock()
	defer c.workerMu.Unlock()
	c.inFlight = false
}

// Stop halts any running protocol retransmit timers and the auth/acct
// timers, without destroying the Context itself (spec.md §4.1 "Stop").
func (c *Context) Stop() {
	if c.PAPOut != nil {
		c.PAPOut.Stop()
	}
	if c.PAPIn != nil {
		c.PAPIn.Stop()
	}
	if c.ChapOut != nil {
		c.ChapOut.Stop()
	}
	if c.ChapIn != nil {
		c.ChapIn.Stop()
	}
	if c.AuthTimer != nil {
		c.AuthTimer.Stop()
	}
	if c.AcctTimer != nil {
		c.AcctTimer.Stop()
	}
}
