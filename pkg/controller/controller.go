// SPDX-FileCopyrightText: Copyright 2026 The MPD Authors
// SPDX-License-Identifier: Apache-2.0

// Package controller implements the Link Auth Controller of spec.md §4.1
// and §4.8: AuthStart/Input/Finish/Stop/Cleanup, packet dispatch, and
// frame assembly. It owns no transport of its own — write_frame,
// link-id lookup, and peer metadata getters are the narrow linkapi
// interfaces this package consumes.
package controller

import (
	"context"
	"fmt"

	"github.com/mpd-project/mpd/pkg/authdata"
	"github.com/mpd-project/mpd/pkg/authparams"
	"github.com/mpd-project/mpd/pkg/chap"
	"github.com/mpd-project/mpd/pkg/eap"
	mpderrors "github.com/mpd-project/mpd/pkg/errors"
	"github.com/mpd-project/mpd/pkg/link"
	"github.com/mpd-project/mpd/pkg/linkapi"
	"github.com/mpd-project/mpd/pkg/logger"
	"github.com/mpd-project/mpd/pkg/pap"
	"github.com/mpd-project/mpd/pkg/ppp"
	"github.com/mpd-project/mpd/pkg/registry"
	"github.com/mpd-project/mpd/pkg/worker"
)

// Runner is the subset of worker.Runner the controller depends on.
type Runner interface {
	Run(ctx context.Context, linkID registry.ID, data *authdata.Data)
	Cancel(linkID registry.ID)
}

// Controller drives every link's authentication negotiation: it creates
// a link.Context per link id, wires the protocol state machines for the
// negotiated directions, dispatches inbound frames to them, and reports
// the final outcome to linkapi.LCP (spec.md §4.1).
// Links is shared verbatim with the worker.Runner that drives this
// controller's backend and accounting chains: both need to resolve the
// same link by the same stable id, the Runner only through the narrower
// worker.LinkTarget view (spec.md §4.3 step 3(c)).
type Controller struct {
	Links  *registry.Registry[worker.LinkTarget]
	Writer linkapi.DataWriter
	LCP    linkapi.LCP
	Runner Runner
}

// New creates a Controller with its own link registry.
func New(writer linkapi.DataWriter, lcp linkapi.LCP, runner Runner) *Controller {
	return &Controller{
		Links:  registry.New[worker.LinkTarget](),
		Writer: writer,
		LCP:    lcp,
		Runner: runner,
	}
}

// lookup resolves linkID to its *link.Context. Every entry Put into Links
// is a *link.Context (AuthStart is the only writer), so the assertion
// never fails for a present entry.
func (c *Controller) lookup(linkID registry.ID) (*link.Context, bool) {
	entry, ok := c.Links.Lookup(linkID)
	if !ok {
		return nil, false
	}
	return entry.(*link.Context), true
}

// AuthStart begins authentication negotiation for linkID: builds the
// per-link Context, wires a state machine for each negotiated direction,
// registers the Context, and kicks off whichever side initiates the
// exchange (spec.md §4.1 "AuthStart").
func (c *Controller) AuthStart(linkID registry.ID, conf link.Config, selfToPeer, peerToSelf ppp.Protocol) (*link.Context, error) {
	ctx := &link.Context{
		ID:         linkID,
		SelfToPeer: selfToPeer,
		PeerToSelf: peerToSelf,
		Conf:       conf,
		Params:     &authparams.Params{Authname: conf.Authname},
	}

	directions := 0
	if selfToPeer != ppp.ProtoNone {
		directions++
	}
	if peerToSelf != ppp.ProtoNone {
		directions++
	}
	ctx.SetDirectionCount(directions)
	ctx.OnResolved(func(ok bool) {
		if ctx.AuthTimer != nil {
			ctx.AuthTimer.Stop()
		}
		c.Finish(linkID, ok)
	})

	if directions == 0 {
		// Neither direction negotiates a protocol: MarkDirectionDone would
		// never fire, so report success to the LCP immediately (spec.md
		// §4.1 "AuthStart... if both directions are 'none', immediately
		// reports success").
		c.Links.Put(linkID, ctx)
		c.Finish(linkID, true)
		return ctx, nil
	}

	// Overall per-link auth timer (spec.md §4.1 "arms the overall auth
	// timer (conf.timeout seconds)... Timer expiry => stop(link) + report
	// failure to LCP"). ctx.OnResolved above stops this the instant a
	// normal resolution fires, so a link that finishes in time never sees
	// it go off. conf.Validate enforces Timeout > 20s in production; a
	// zero Timeout (the test-only zero value) leaves the link unbounded.
	if conf.Timeout > 0 {
		ctx.AuthTimer = worker.NewTimer(func() {
			c.Stop(linkID)
			c.Finish(linkID, false)
		})
		ctx.AuthTimer.Start(conf.Timeout)
	}

	if err := c.startSelfToPeer(ctx); err != nil {
		return nil, err
	}
	if err := c.startPeerToSelf(ctx); err != nil {
		return nil, err
	}

	c.Links.Put(linkID, ctx)
	return ctx, nil
}

func (c *Controller) startSelfToPeer(ctx *link.Context) error {
	switch ctx.SelfToPeer {
	case ppp.ProtoNone:
		return nil
	case ppp.ProtoPAP:
		ctx.PAPOut = &pap.Machine{
			LinkID: ctx.ID,
			Conf:   pap.Config{Authname: ctx.Conf.Authname, Password: ctx.Conf.Password, RetryTimeout: ctx.Conf.RetryTimeout, Retries: ctx.Conf.Retries},
			Writer: c.Writer,
			Finish: func(ok bool) { ctx.MarkDirectionDone(ok) },
		}
		ctx.PAPOut.StartSelfToPeer()
		return nil
	case ppp.ProtoCHAP:
		// The peer challenges us; ChapOut only responds once HandleChallenge
		// fires, so there is nothing to send at AuthStart.
		ctx.ChapOut = &chap.Machine{
			LinkID: ctx.ID,
			Conf:   chap.Config{MyName: ctx.Conf.Authname, Secret: ctx.Conf.Password, Algorithm: ctx.Conf.ChapAlgorithm},
			Writer: c.Writer,
			Finish: func(ok bool) { ctx.MarkDirectionDone(ok) },
		}
		return nil
	case ppp.ProtoEAP:
		return mpderrors.NewNotExpectedError("self-to-peer EAP is not modeled by this daemon", nil)
	default:
		return fmt.Errorf("unknown self-to-peer protocol %v", ctx.SelfToPeer)
	}
}

func (c *Controller) startPeerToSelf(ctx *link.Context) error {
	switch ctx.PeerToSelf {
	case ppp.ProtoNone:
		return nil
	case ppp.ProtoPAP:
		ctx.PAPIn = &pap.Machine{
			LinkID:  ctx.ID,
			Writer:  c.Writer,
			Runner:  c.Runner,
			Finish:  func(ok bool) { ctx.MarkDirectionDone(ok) },
			Release: ctx.ReleaseWorker,
		}
		return nil
	case ppp.ProtoCHAP:
		ctx.ChapIn = &chap.Machine{
			LinkID:  ctx.ID,
			Conf:    chap.Config{MyName: ctx.Conf.Authname, Algorithm: ctx.Conf.ChapAlgorithm, RetryTimeout: ctx.Conf.RetryTimeout, Retries: ctx.Conf.Retries},
			Writer:  c.Writer,
			Runner:  c.Runner,
			Finish:  func(ok bool) { ctx.MarkDirectionDone(ok) },
			Release: ctx.ReleaseWorker,
		}
		ctx.ChapIn.StartChallenge()
		return nil
	case ppp.ProtoEAP:
		ctx.EAPIn = &eap.Machine{
			LinkID:  ctx.ID,
			Conf:    eap.Config{MyName: ctx.Conf.Authname, Secret: ctx.Conf.Password, Mode: ctx.Conf.EAPMode, LocalType: ctx.Conf.EAPLocalType},
			Writer:  c.Writer,
			Runner:  c.Runner,
			Finish:  func(ok bool) { ctx.MarkDirectionDone(ok) },
			Release: ctx.ReleaseWorker,
		}
		c.sendEAPIdentityRequest(ctx)
		return nil
	default:
		return fmt.Errorf("unknown peer-to-self protocol %v", ctx.PeerToSelf)
	}
}

// sendEAPIdentityRequest issues the initial EAP-Request/Identity frame.
// eap.Machine's verification role begins once the peer's Identity
// response arrives at HandleIdentity, so the opening request is built
// directly here rather than in pkg/eap.
func (c *Controller) sendEAPIdentityRequest(ctx *link.Context) {
	frame := ppp.BuildHeader(ppp.EapRequest, 1, []byte{ppp.EapTypeIdentity})
	_ = c.Writer.WriteFrame(uint64(ctx.ID), ppp.ProtoEAP, frame)
}

// Input dispatches one inbound FSM frame to the appropriate protocol
// state machine for linkID, based on proto and the frame's code byte
// (spec.md §4.1 "Input", §4.8 packet dispatch).
func (c *Controller) Input(ctx context.Context, linkID registry.ID, proto ppp.Protocol, frame []byte) error {
	lctx, ok := c.lookup(linkID)
	if !ok {
		return fmt.Errorf("controller: input for unknown link %d", linkID)
	}

	header, payload, err := ppp.ParseHeader(frame)
	if err != nil {
		logger.Warnf("controller: link %d: %v", linkID, err)
		return err
	}

	switch proto {
	case ppp.ProtoPAP:
		return c.inputPAP(ctx, lctx, header, payload)
	case ppp.ProtoCHAP:
		return c.inputCHAP(ctx, lctx, header, payload)
	case ppp.ProtoEAP:
		return c.inputEAP(ctx, lctx, header, payload)
	default:
		return fmt.Errorf("controller: link %d: unsupported protocol %v", linkID, proto)
	}
}

func (c *Controller) inputPAP(ctx context.Context, lctx *link.Context, header ppp.Header, payload []byte) error {
	switch header.Code {
	case ppp.PAPAck, ppp.PAPNak:
		if lctx.PAPOut == nil {
			return fmt.Errorf("link %d: unexpected PAP ack/nak, no self-to-peer PAP in progress", lctx.ID)
		}
		lctx.PAPOut.HandleAckNak(header)
	case ppp.PAPRequest:
		if lctx.PAPIn == nil {
			return fmt.Errorf("link %d: unexpected PAP request, no peer-to-self PAP configured", lctx.ID)
		}
		if !lctx.TryAcquireWorker() {
			logger.Warnf("link %d: dropping PAP request, a worker is already in flight", lctx.ID)
			return nil
		}
		lctx.PAPIn.HandleRequest(ctx, header, payload)
	default:
		return fmt.Errorf("link %d: unknown PAP code %d", lctx.ID, header.Code)
	}
	return nil
}

func (c *Controller) inputCHAP(ctx context.Context, lctx *link.Context, header ppp.Header, payload []byte) error {
	switch header.Code {
	case ppp.ChapChallenge:
		if lctx.ChapOut == nil {
			return fmt.Errorf("link %d: unexpected CHAP challenge, no self-to-peer CHAP configured", lctx.ID)
		}
		lctx.ChapOut.HandleChallenge(header, payload)
	case ppp.ChapResponse:
		if lctx.ChapIn == nil {
			return fmt.Errorf("link %d: unexpected CHAP response, no peer-to-self CHAP in progress", lctx.ID)
		}
		if !lctx.TryAcquireWorker() {
			logger.Warnf("link %d: dropping CHAP response, a worker is already in flight", lctx.ID)
			return nil
		}
		lctx.ChapIn.HandleResponse(ctx, header, payload)
	case ppp.ChapSuccess, ppp.ChapFailure:
		if lctx.ChapOut == nil {
			return fmt.Errorf("link %d: unexpected CHAP outcome, no self-to-peer CHAP in progress", lctx.ID)
		}
		lctx.ChapOut.HandleOutcome(header)
	default:
		return fmt.Errorf("link %d: unknown CHAP code %d", lctx.ID, header.Code)
	}
	return nil
}

func (c *Controller) inputEAP(ctx context.Context, lctx *link.Context, header ppp.Header, payload []byte) error {
	if lctx.EAPIn == nil {
		return fmt.Errorf("link %d: unexpected EAP frame, no peer-to-self EAP configured", lctx.ID)
	}
	if len(payload) < 1 {
		return mpderrors.NewInvalidPacketError("empty EAP response payload", nil)
	}
	switch payload[0] {
	case ppp.EapTypeIdentity:
		lctx.EAPIn.HandleIdentity(ctx, header, payload[1:])
	default:
		if !lctx.TryAcquireWorker() {
			logger.Warnf("link %d: dropping EAP response, a worker is already in flight", lctx.ID)
			return nil
		}
		lctx.EAPIn.HandleResponse(ctx, header, payload)
	}
	return nil
}

// Finish reports linkID's overall authentication result to the LCP
// (spec.md §4.1 "finish"). The result is not recorded on the Context.
func (c *Controller) Finish(linkID registry.ID, ok bool) {
	c.LCP.ReportAuthResult(uint64(linkID), ok)
}

// Stop halts linkID's protocol timers without tearing down its Context,
// e.g. when the underlying physical link goes down but the fleet entry
// is kept briefly for diagnostics (spec.md §4.1 "Stop").
func (c *Controller) Stop(linkID registry.ID) {
	lctx, ok := c.lookup(linkID)
	if !ok {
		return
	}
	lctx.Stop()
	c.Runner.Cancel(linkID)
}

// Cleanup stops linkID and removes its Context from the registry
// (spec.md §4.1 "Cleanup").
func (c *Controller) Cleanup(linkID registry.ID) {
	c.Stop(linkID)
	c.Links.Remove(linkID)
}
