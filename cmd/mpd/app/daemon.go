// SPDX-FileCopyrightText: Copyright 2026 The MPD Authors
// SPDX-License-Identifier: Apache-2.0

// Package app provides the entry point for the mpd command-line daemon.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mpd-project/mpd/pkg/accounting"
	"github.com/mpd-project/mpd/pkg/accounting/utmpwtmp"
	"github.com/mpd-project/mpd/pkg/authdata"
	"github.com/mpd-project/mpd/pkg/authparams"
	"github.com/mpd-project/mpd/pkg/backend"
	"github.com/mpd-project/mpd/pkg/backend/external"
	"github.com/mpd-project/mpd/pkg/backend/internal"
	"github.com/mpd-project/mpd/pkg/backend/opie"
	"github.com/mpd-project/mpd/pkg/backend/radius"
	"github.com/mpd-project/mpd/pkg/backend/system"
	"github.com/mpd-project/mpd/pkg/config"
	"github.com/mpd-project/mpd/pkg/controller"
	"github.com/mpd-project/mpd/pkg/link"
	"github.com/mpd-project/mpd/pkg/linkapi"
	"github.com/mpd-project/mpd/pkg/logger"
	"github.com/mpd-project/mpd/pkg/ppp"
	"github.com/mpd-project/mpd/pkg/precheck"
	"github.com/mpd-project/mpd/pkg/registry"
	"github.com/mpd-project/mpd/pkg/secretsfile"
	"github.com/mpd-project/mpd/pkg/worker"
)

// HostDeps are the host-specific facilities spec.md §4.5 deliberately
// leaves out of this repo (System password database, OPIE key storage,
// RADIUS wire client): getpwnam(3), an OPIE state file, and RADIUS
// attribute encoding are all platform or transport concerns this module
// doesn't implement. A link whose config enables one of these backends
// without the matching dependency injected here logs a warning and skips
// that backend rather than constructing it half-wired.
type HostDeps struct {
	SystemDB     system.PasswordDB
	OPIEKeys     opie.KeyLookup
	RadiusClient radius.Client
}

// LinkDaemon wires one link's Controller, accounting Runner, and Gate
// from its LinkOptions (spec.md §4.1/§4.4/§4.7). It is the library
// surface an embedding PPP process (out of scope) drives via AuthStart
// and Input once it owns real frame I/O.
type LinkDaemon struct {
	Name       string
	Controller *controller.Controller
	Accounting *accounting.Accountant
	Conf       link.Config
}

// Daemon assembles every configured link plus shared metrics; the
// embedding process looks a link up by name to drive it.
type Daemon struct {
	Links   map[string]*LinkDaemon
	Metrics *accounting.Metrics
}

// NewDaemon builds a Daemon from cfg against writer/lcp (the out-of-scope
// frame transport and negotiation engine) and deps (the out-of-scope
// host/network facilities). reg receives every registered prometheus
// collector; pass nil to skip registration (e.g. in tests).
func NewDaemon(cfg *config.Config, writer linkapi.DataWriter, lcp linkapi.LCP, deps HostDeps, reg prometheus.Registerer) (*Daemon, error) {
	secrets := &secretsfile.Store{Path: cfg.Daemon.SecretsFilePath}
	metrics := accounting.NewMetrics(reg)

	var utmpStore *utmpwtmp.Store
	if cfg.Daemon.UtmpPath != "" && cfg.Daemon.WtmpPath != "" {
		utmpStore = &utmpwtmp.Store{UtmpPath: cfg.Daemon.UtmpPath, WtmpPath: cfg.Daemon.WtmpPath}
	}

	d := &Daemon{Links: make(map[string]*LinkDaemon), Metrics: metrics}
	for name, opts := range cfg.Links {
		ld, err := newLinkDaemon(name, opts, secrets, writer, lcp, deps, metrics, utmpStore)
		if err != nil {
			return nil, fmt.Errorf("mpd: link %q: %w", name, err)
		}
		d.Links[name] = ld
	}
	return d, nil
}

func newLinkDaemon(
	name string,
	opts config.LinkOptions,
	secrets *secretsfile.Store,
	writer linkapi.DataWriter,
	lcp linkapi.LCP,
	deps HostDeps,
	metrics *accounting.Metrics,
	utmpStore *utmpwtmp.Store,
) (*LinkDaemon, error) {
	conf := opts.ToLinkConfig()

	// Shared between the controller and both worker.Runners: every
	// consumer resolves the same link.Context by the same stable id
	// (spec.md §4.3 step 3(c), §4.7 "reuses the Worker Runner").
	links := registry.New[worker.LinkTarget]()
	gate := &precheck.Gate{
		MaxLogins: opts.MaxLogins,
		Bundles: precheck.NewBundleCounter(func(predicate func(string) bool) int {
			return links.CountMatching(func(target worker.LinkTarget) bool {
				lctx, ok := target.(*link.Context)
				return ok && lctx.Params != nil && predicate(lctx.Params.Authname)
			})
		}),
	}

	chain := &backend.Chain{Verifiers: buildVerifiers(opts, secrets, deps, name)}
	runner := &worker.Runner{Gate: gate, Chain: chain, Links: links}

	ctrl := &controller.Controller{
		Links:  links,
		Writer: writer,
		LCP:    lcp,
		Runner: runner,
	}

	acctChain := &accounting.ParallelChain{Backends: buildAccountingBackends(opts, deps, utmpStore)}
	acctRunner := &worker.Runner{Gate: &precheck.Gate{}, Chain: acctChain, Links: links}
	acct := &accounting.Accountant{
		Conf: accounting.Config{
			UpdateInterval: opts.AcctUpdate,
			LimitRecv:      opts.UpdateLimitIn,
			LimitXmit:      opts.UpdateLimitOut,
		},
		Runner:  acctRunner,
		Metrics: metrics,
	}

	return &LinkDaemon{Name: name, Controller: ctrl, Accounting: acct, Conf: conf}, nil
}

// buildVerifiers assembles the authentication backend chain in the
// precedence order fixed by spec.md §4.5: External, RADIUS (EAP
// passthrough then Auth), System, OPIE, Internal.
func buildVerifiers(opts config.LinkOptions, secrets *secretsfile.Store, deps HostDeps, linkName string) []backend.Verifier {
	var verifiers []backend.Verifier

	if opts.EnableExternal && opts.ExtAuthScript != "" {
		verifiers = append(verifiers, &external.Backend{Script: opts.ExtAuthScript})
	}
	if opts.EnableRadius {
		if deps.RadiusClient != nil {
			verifiers = append(verifiers, &radius.EAPProxy{Client: deps.RadiusClient})
			verifiers = append(verifiers, &radius.Auth{Client: deps.RadiusClient})
		} else {
			logger.Warnf("link %q: enable-radius set but no RADIUS client configured, skipping", linkName)
		}
	}
	if opts.EnableSystem {
		if deps.SystemDB != nil {
			verifiers = append(verifiers, &system.Backend{DB: deps.SystemDB})
		} else {
			logger.Warnf("link %q: enable-system set but no password database configured, skipping", linkName)
		}
	}
	if opts.EnableOPIE {
		if deps.OPIEKeys != nil {
			verifiers = append(verifiers, &opie.Backend{Keys: deps.OPIEKeys})
		} else {
			logger.Warnf("link %q: enable-opie set but no OPIE key store configured, skipping", linkName)
		}
	}
	if opts.EnableInternal {
		verifiers = append(verifiers, &internal.Backend{Store: secrets})
	}
	return verifiers
}

// buildAccountingBackends assembles the accounting fan-out of spec.md
// §4.7: RADIUS accounting and UTMP/WTMP, both optional per link.
func buildAccountingBackends(opts config.LinkOptions, deps HostDeps, utmpStore *utmpwtmp.Store) []accounting.Backend {
	var backends []accounting.Backend
	if opts.EnableRadius && deps.RadiusClient != nil {
		backends = append(backends, &accounting.RadiusBackend{Client: deps.RadiusClient})
	}
	if utmpStore != nil {
		backends = append(backends, &accounting.UtmpBackend{Store: utmpStore})
	}
	return backends
}

// AuthStart begins authentication on linkID over the named link config
// (spec.md §4.1 "AuthStart").
func (d *Daemon) AuthStart(name string, linkID registry.ID, selfToPeer, peerToSelf ppp.Protocol) error {
	ld, ok := d.Links[name]
	if !ok {
		return fmt.Errorf("mpd: unknown link config %q", name)
	}
	_, err := ld.Controller.AuthStart(linkID, ld.Conf, selfToPeer, peerToSelf)
	return err
}

// Input dispatches one inbound frame to the named link's controller.
func (d *Daemon) Input(ctx context.Context, name string, linkID registry.ID, proto ppp.Protocol, frame []byte) error {
	ld, ok := d.Links[name]
	if !ok {
		return fmt.Errorf("mpd: unknown link config %q", name)
	}
	return ld.Controller.Input(ctx, linkID, proto, frame)
}

// LinkUp starts accounting for a link that has come up (spec.md §4.7
// "Start"), once the embedding process has authenticated it and knows
// its initial snapshot. linkID must match the id the Controller assigned
// during AuthStart so the accounting Runner resolves the same
// worker.LinkTarget.
func (d *Daemon) LinkUp(ctx context.Context, name string, linkID registry.ID, snapshot authdata.LinkSnapshot, params *authparams.Params) error {
	ld, ok := d.Links[name]
	if !ok {
		return fmt.Errorf("mpd: unknown link config %q", name)
	}
	ld.Accounting.LinkID = linkID
	ld.Accounting.Start(ctx, snapshot, params)
	return nil
}

// LinkDown dispatches the final Stop accounting event for linkID (spec.md
// §4.7 "On Stop"). The embedding process calls this once, when the
// physical link actually goes down, not on every auth failure.
func (d *Daemon) LinkDown(ctx context.Context, name string, params *authparams.Params) error {
	ld, ok := d.Links[name]
	if !ok {
		return fmt.Errorf("mpd: unknown link config %q", name)
	}
	ld.Accounting.Stop(ctx, params)
	return nil
}

// UpdateSnapshot refreshes the live octet counters an interim accounting
// Update will next diff against (spec.md §4.7 suppression thresholds).
func (d *Daemon) UpdateSnapshot(name string, snapshot authdata.LinkSnapshot) error {
	ld, ok := d.Links[name]
	if !ok {
		return fmt.Errorf("mpd: unknown link config %q", name)
	}
	ld.Accounting.UpdateSnapshot(snapshot)
	return nil
}
