// SPDX-FileCopyrightText: Copyright 2026 The MPD Authors
// SPDX-License-Identifier: Apache-2.0

// Package radius defines the RADIUS backend's request/response contract
// (spec.md §4.5 items 2-3) without implementing wire attribute encoding,
// which is explicitly out of scope (spec.md §1). It provides two
// Verifiers: EAPProxy (item 2, full passthrough for EAP) and Auth (item
// 3, authenticate-or-fall-through).
package radius

import (
	"context"
	"errors"

	"github.com/cenkalti/backoff/v5"

	"github.com/mpd-project/mpd/pkg/authdata"
	"github.com/mpd-project/mpd/pkg/authparams"
	"github.com/mpd-project/mpd/pkg/backend"
	mpderrors "github.com/mpd-project/mpd/pkg/errors"
	"github.com/mpd-project/mpd/pkg/ppp"
)

// AuthRequest is what this package asks a RADIUS client to authenticate.
type AuthRequest struct {
	Authname   string
	Password   string
	CallingNum string
	CalledNum  string
	NASPort    string

	// EAPMessage and State carry an EAP passthrough attempt verbatim; set
	// only when Proto is EAP.
	EAPMessage []byte
	State      []byte
}

// AuthResponse is a RADIUS Access-Accept/Reject, with any reply
// attributes this package understands.
type AuthResponse struct {
	Accept       bool
	ReplyMessage string

	// EAPMessage/State carry an EAP passthrough reply verbatim.
	EAPMessage []byte
	State      []byte

	SessionTimeout int
	IdleTimeout    int
	Routes         []authparams.Route
	ACL            []authparams.ACLRule
}

// AcctRequest is one Accounting-Request.
type AcctRequest struct {
	Type       authdata.AcctType
	SessionID  string
	Authname   string
	RecvOctets uint64
	XmitOctets uint64
}

// Client is the RADIUS request/response contract this package consumes.
// Wire attribute encoding lives entirely outside this repo, per spec.md
// §1.
//
//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=radius.go Client
type Client interface {
	Authenticate(ctx context.Context, req *AuthRequest) (*AuthResponse, error)
	Account(ctx context.Context, req *AcctRequest) error
}

// ErrTransient should be returned (wrapped) by a Client implementation to
// mark a failure as retryable (timeout, connection refused). Any other
// error is treated as permanent.
var ErrTransient = errors.New("radius: transient error")

// withRetry retries op up to 3 attempts total, but only for errors marked
// ErrTransient (timeout, connection refused); any other error is
// permanent and returned immediately, per spec.md §4.5's backend-chain
// precedence — a non-transient RADIUS failure should fall through to the
// next backend, not be retried against a server that has already spoken.
func withRetry[T any](ctx context.Context, op func() (T, error)) (T, error) {
	wrapped := func() (T, error) {
		v, err := op()
		if err != nil && !errors.Is(err, ErrTransient) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}
	return backoff.Retry(ctx, wrapped, backoff.WithMaxTries(3))
}

// EAPProxy implements spec.md §4.5 item 2: when the inbound attempt was
// tagged eap_radius, delegate entirely to RADIUS and return its verdict
// as-is (no fallthrough).
type EAPProxy struct {
	Client Client
}

// Name implements backend.Verifier.
func (p *EAPProxy) Name() authparams.Backend { return authparams.BackendRadius }

// Verify implements backend.Verifier.
func (p *EAPProxy) Verify(ctx context.Context, data *authdata.Data) (*backend.Result, error) {
	if data.Proto != ppp.ProtoEAP {
		return &backend.Result{Status: authdata.Undefined}, nil
	}

	req := &AuthRequest{
		Authname:   data.Params.Authname,
		CallingNum: data.Params.CallingNum,
		CalledNum:  data.Params.CalledNum,
		EAPMessage: data.Params.EAPMsg,
		State:      data.Params.State,
	}
	resp, err := withRetry(ctx, func() (*AuthResponse, error) { return p.Client.Authenticate(ctx, req) })
	if err != nil {
		return nil, err
	}
	return applyResponse(data, resp), nil
}

// Auth implements spec.md §4.5 item 3: on Success, return; on any other
// outcome, fall through to the next backend.
type Auth struct {
	Client Client
}

// Name implements backend.Verifier.
func (a *Auth) Name() authparams.Backend { return authparams.BackendRadius }

// Verify implements backend.Verifier.
func (a *Auth) Verify(ctx context.Context, data *authdata.Data) (*backend.Result, error) {
	req := &AuthRequest{
		Authname:   data.Params.Authname,
		Password:   data.Params.Password,
		CallingNum: data.Params.CallingNum,
		CalledNum:  data.Params.CalledNum,
	}
	if data.Proto == ppp.ProtoPAP {
		req.Password = data.Params.PAP.PeerPass
	}

	resp, err := withRetry(ctx, func() (*AuthResponse, error) { return a.Client.Authenticate(ctx, req) })
	if err != nil {
		return nil, err
	}
	if !resp.Accept {
		// Anything but Success falls through, per spec.md §4.5 item 3.
		return &backend.Result{Status: authdata.Undefined}, nil
	}
	return applyResponse(data, resp), nil
}

// applyResponse enriches data.Params in place with whatever the RADIUS
// reply carried, rather than replacing Params wholesale (which would
// discard fields RADIUS didn't speak to, like Authname).
func applyResponse(data *authdata.Data, resp *AuthResponse) *backend.Result {
	if !resp.Accept {
		return &backend.Result{Status: authdata.Fail, WhyFail: mpderrors.InvalidLogin}
	}

	if resp.SessionTimeout != 0 {
		data.Params.SessionTimeout = resp.SessionTimeout
	}
	if resp.IdleTimeout != 0 {
		data.Params.IdleTimeout = resp.IdleTimeout
	}
	if resp.Routes != nil {
		data.Params.Routes = resp.Routes
	}
	if resp.ACL != nil {
		data.Params.ACL = resp.ACL
	}
	if resp.EAPMessage != nil {
		data.Params.EAPMsg = resp.EAPMessage
	}
	if resp.State != nil {
		data.Params.State = resp.State
	}

	return &backend.Result{Status: authdata.Success, ReplyMessage: resp.ReplyMessage}
}
