// SPDX-FileCopyrightText: Copyright 2026 The MPD Authors
// SPDX-License-Identifier: Apache-2.0

// Package accounting implements the Session Accountant of spec.md §4.7:
// Start/Update/Stop events dispatched through the Worker Runner against
// backends that, unlike the authentication backend chain, all run in
// parallel rather than in precedence order.
package accounting

import (
	"context"
	"sync"
	"time"

	"github.com/mpd-project/mpd/pkg/authdata"
	"github.com/mpd-project/mpd/pkg/authparams"
	"github.com/mpd-project/mpd/pkg/logger"
	"github.com/mpd-project/mpd/pkg/registry"
	"github.com/mpd-project/mpd/pkg/worker"
)

// Backend is one accounting sink (RADIUS accounting, UTMP/WTMP). Every
// configured Backend runs concurrently for each event (spec.md §4.7
// "Backends (all runnable in parallel through the Worker Runner)").
type Backend interface {
	Name() string
	Run(ctx context.Context, data *authdata.Data) error
}

// ParallelChain implements worker.BackendChain by fanning an accounting
// event out to every Backend concurrently and waiting for them all,
// rather than stopping at the first decisive verdict the way
// backend.Chain does for authentication.
type ParallelChain struct {
	Backends []Backend
}

// Run implements worker.BackendChain.
func (p *ParallelChain) Run(ctx context.Context, data *authdata.Data) {
	var wg sync.WaitGroup
	for _, b := range p.Backends {
		wg.Add(1)
		go func(b Backend) {
			defer wg.Done()
			if err := b.Run(ctx, data); err != nil {
				logger.Warnf("accounting backend %q: %v", b.Name(), err)
			}
		}(b)
	}
	wg.Wait()
	// Accounting has no peer-visible Success/Fail outcome; mark success so
	// the worker finisher's generic path always copies params back (except
	// for Stop, handled by link.Context.ApplyParams).
	data.SetSuccess()
}

// Config is an accounting session's static configuration (spec.md §3
// "conf": accounting update interval, suppression thresholds).
type Config struct {
	UpdateInterval time.Duration
	LimitRecv      uint64
	LimitXmit      uint64
}

// Accountant drives one link's Start/Update/Stop lifecycle.
type Accountant struct {
	LinkID  registry.ID
	Conf    Config
	Runner  *worker.Runner
	Metrics *Metrics

	snapshot authdata.LinkSnapshot
	timer    *worker.Timer

	mu             sync.Mutex
	lastRecvOctets uint64
	lastXmitOctets uint64
}

// Start dispatches the Start event and, if an update interval is
// configured (the per-AuthParams value takes precedence over the
// per-link Config, per spec.md §4.7), arms the periodic timer. snapshot
// is expected to already carry an assigned MSessionID (spec.md §10
// "generated with google/uuid at bundle-up time").
func (a *Accountant) Start(ctx context.Context, snapshot authdata.LinkSnapshot, params *authparams.Params) {
	a.snapshot = snapshot
	a.lastRecvOctets = snapshot.RecvOctets
	a.lastXmitOctets = snapshot.XmitOctets

	if a.Metrics != nil {
		a.Metrics.SessionsActive.Inc()
	}

	a.dispatch(ctx, authdata.AcctStart, params)

	interval := a.updateInterval(params)
	if interval > 0 {
		a.timer = worker.NewTimer(func() { a.onTimerFire(ctx, params) })
		a.timer.Start(interval)
	}
}

func (a *Accountant) updateInterval(params *authparams.Params) time.Duration {
	if params != nil && params.AcctUpdate > 0 {
		return time.Duration(params.AcctUpdate) * time.Second
	}
	return a.Conf.UpdateInterval
}

func (a *Accountant) onTimerFire(ctx context.Context, params *authparams.Params) {
	a.update(ctx, params)
	if a.timer != nil {
		a.timer.Reset(a.updateInterval(params))
	}
}

// update implements the periodic Update event of spec.md §4.7: if the
// octet delta since the last update is below both suppression
// thresholds, the dispatch is skipped (but metrics still record the
// suppression).
func (a *Accountant) update(ctx context.Context, params *authparams.Params) {
	a.mu.Lock()
	recvDelta := a.snapshot.RecvOctets - a.lastRecvOctets
	xmitDelta := a.snapshot.XmitOctets - a.lastXmitOctets
	a.mu.Unlock()

	suppressed := recvDelta < a.Conf.LimitRecv && xmitDelta < a.Conf.LimitXmit
	if a.Metrics != nil {
		a.Metrics.observe(recvDelta, xmitDelta, suppressed)
	}
	if suppressed {
		return
	}

	a.mu.Lock()
	a.lastRecvOctets = a.snapshot.RecvOctets
	a.lastXmitOctets = a.snapshot.XmitOctets
	a.mu.Unlock()

	a.dispatch(ctx, authdata.AcctUpdate, params)
}

// Stop cancels any in-flight periodic timer and dispatches the final Stop
// event, which is never suppressed (spec.md §4.7 "On Stop").
func (a *Accountant) Stop(ctx context.Context, params *authparams.Params) {
	if a.timer != nil {
		a.timer.Stop()
	}
	if a.Metrics != nil {
		a.Metrics.SessionsActive.Dec()
	}
	a.dispatch(ctx, authdata.AcctStop, params)
}

func (a *Accountant) dispatch(ctx context.Context, acctType authdata.AcctType, params *authparams.Params) {
	data := authdata.New(a.snapshot, params, 0, 0, 0, nil)
	data.AcctType = acctType
	a.Runner.Run(ctx, a.LinkID, data)
}

// UpdateSnapshot refreshes the live octet counters the next Update will
// diff against. The embedding link driver calls this whenever it learns
// new stats from the data path.
func (a *Accountant) UpdateSnapshot(snapshot authdata.LinkSnapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snapshot = snapshot
}
