// SPDX-FileCopyrightText: Copyright 2026 The MPD Authors
// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/mpd-project/mpd/pkg/authdata"
	mpderrors "github.com/mpd-project/mpd/pkg/errors"
	"github.com/mpd-project/mpd/pkg/logger"
	"github.com/mpd-project/mpd/pkg/precheck"
	"github.com/mpd-project/mpd/pkg/registry"
)

// Serializer is the "process-wide giant mutex" of spec.md §5: it
// serializes any call a backend documents as non-reentrant (secrets-file
// read, crypt, OPIE state, popen). The default is a plain sync.Mutex; a
// backend whose client is documented thread-safe (RADIUS is called out in
// spec.md §9 as "the natural first candidate") may be given its own
// Serializer instead of sharing the daemon-wide one.
type Serializer interface {
	Lock()
	Unlock()
}

// GiantLock is the default process-wide Serializer.
type GiantLock struct {
	mu sync.Mutex
}

// Lock implements Serializer.
func (g *GiantLock) Lock() { g.mu.Lock() }

// Unlock implements Serializer.
func (g *GiantLock) Unlock() { g.mu.Unlock() }

// BackendChain is the subset of backend.Chain the Runner depends on.
type BackendChain interface {
	Run(ctx context.Context, data *authdata.Data)
}

// LinkTarget is the live link state a finisher copies an attempt's
// enriched AuthParams back into, once it re-resolves the link by its
// stable id (spec.md §4.3 step 3(c)-(d)). Registry[T] entries implement
// this directly when T exposes ApplyParams.
type LinkTarget interface {
	ApplyParams(data *authdata.Data)
}

// Runner implements the Worker Runner of spec.md §4.3.
type Runner struct {
	Gate  *precheck.Gate
	Chain BackendChain

	// Serializer guards the backend chain's non-reentrant calls. Defaults
	// to a fresh GiantLock if nil.
	Serializer Serializer

	// Pool bounds the number of concurrently running backend-chain
	// goroutines (spec.md §7 "Inability to start a worker"). A nil Pool
	// means effectively unbounded.
	Pool *semaphore.Weighted

	// Links resolves a link by its stable id for the finisher step
	// (spec.md §4.3 step 3(c)); never cache the result across calls.
	Links *registry.Registry[LinkTarget]

	mu        sync.Mutex
	cancelled map[registry.ID]struct{}
}

// Run implements the run(link, auth_data, finish_continuation) contract.
// linkID identifies the link in the Links registry for the finisher's
// re-resolution step.
func (r *Runner) Run(ctx context.Context, linkID registry.ID, data *authdata.Data) {
	if err := r.Gate.Check(data.Params.Authname); err != nil {
		// Pre-Check failure: synthesize Fail and invoke the continuation
		// synchronously, no goroutine spawned (spec.md §4.3 step 1).
		data.SetFail(classifyPrecheckError(err))
		r.finish(linkID, data, false)
		return
	}

	pool := r.Pool
	if pool == nil {
		r.spawn(ctx, linkID, data)
		return
	}

	if err := pool.Acquire(ctx, 1); err != nil {
		// Inability to start a worker: resource exhaustion (spec.md §7).
		data.SetFail(mpderrors.NotExpected)
		r.finish(linkID, data, false)
		return
	}
	go func() {
		defer pool.Release(1)
		r.runChain(ctx, linkID, data)
	}()
}

func (r *Runner) spawn(ctx context.Context, linkID registry.ID, data *authdata.Data) {
	go r.runChain(ctx, linkID, data)
}

func (r *Runner) runChain(ctx context.Context, linkID registry.ID, data *authdata.Data) {
	serializer := r.Serializer
	if serializer == nil {
		serializer = &GiantLock{}
	}

	serializer.Lock()
	// The backend call runs to completion uninterrupted even if Cancel was
	// called meanwhile; cancellation is observed only by the finisher
	// (spec.md §9 "Worker cancellation").
	r.Chain.Run(ctx, data)
	serializer.Unlock()

	r.finish(linkID, data, r.wasCancelled(linkID))
}

// finish implements spec.md §4.3 step 3: release resources, check
// cancellation, re-resolve the link by id, copy params back, invoke the
// continuation, and destroy the AuthData.
func (r *Runner) finish(linkID registry.ID, data *authdata.Data, wasCancelled bool) {
	r.clearCancelled(linkID)

	if wasCancelled {
		data.Destroy()
		return
	}

	link, ok := r.linkTarget(linkID)
	if !ok {
		logger.Debugf("worker finisher: link %d gone, dropping result", linkID)
		data.Destroy()
		return
	}

	link.ApplyParams(data)

	if data.Finish != nil {
		data.Finish(data)
	}
	data.Destroy()
}

func (r *Runner) linkTarget(linkID registry.ID) (LinkTarget, bool) {
	if r.Links == nil {
		return nil, false
	}
	return r.Links.Lookup(linkID)
}

// Cancel marks linkID's in-flight attempt as cancelled. The backend chain
// itself is not interrupted; only the finisher observes this flag
// (spec.md §4.3 "Cancellation").
func (r *Runner) Cancel(linkID registry.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelled == nil {
		r.cancelled = make(map[registry.ID]struct{})
	}
	r.cancelled[linkID] = struct{}{}
}

func (r *Runner) wasCancelled(linkID registry.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.cancelled[linkID]
	return ok
}

func (r *Runner) clearCancelled(linkID registry.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cancelled, linkID)
}

// classifyPrecheckError maps a precheck.Gate error to a why_fail Type.
// precheck.Gate only ever returns InvalidLogin-typed errors today (empty
// authname, per-user cap); this indirection keeps Runner from assuming
// that forever.
func classifyPrecheckError(err error) mpderrors.Type {
	if mpderrors.IsInvalidLogin(err) {
		return mpderrors.InvalidLogin
	}
	return mpderrors.NotExpected
}
