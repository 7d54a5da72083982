// SPDX-FileCopyrightText: Copyright 2026 The MPD Authors
// SPDX-License-Identifier: Apache-2.0

// Package backend implements the Backend Chain of spec.md ยง4.5: an
// ordered sequence of pluggable Verifiers, evaluated in precedence order
// until one returns a decisive result. The pattern is grounded on the
// teacher's token-introspection provider registry (an ordered list of
// providers, the first CanHandle match wins) generalized here to "the
// first non-Undefined verdict wins."
package backend

import (
	"context"

	"github.com/mpd-project/mpd/pkg/authdata"
	"github.com/mpd-project/mpd/pkg/authparams"
	mpderrors "github.com/mpd-project/mpd/pkg/errors"
	"github.com/mpd-project/mpd/pkg/logger"
)

// Result is the (status, why_fail, enriched params) triple a Verifier
// produces (spec.md ยง2 item 2).
type Result struct {
	Status  authdata.Status
	WhyFail mpderrors.Type

	// Params, if non-nil, replaces data.Params after this Verifier runs.
	// Most backends mutate data.Params in place and leave this nil.
	Params *authparams.Params

	ReplyMessage string
	MSChapError  string
	MSChapV2Resp string
}

// Verifier is one backend driver in the chain.
type Verifier interface {
	// Name identifies the backend for AuthParams.Authentic and logging.
	Name() authparams.Backend
	// Verify inspects/authenticates data and returns a Result. A Result
	// with Status == Undefined defers the decision to a later backend (or,
	// if no later backend is decisive, to the calling protocol state
	// machine's own comparison against an enriched Params.Password).
	Verify(ctx context.Context, data *authdata.Data) (*Result, error)
}

// Chain runs a fixed, ordered list of Verifiers and stops at the first
// decisive (Success or Fail) result, exactly as spec.md ยง4.5 specifies.
// Construct the list in precedence order: External, RadiusEAP, Radius,
// System, OPIE, Internal.
type Chain struct {
	Verifiers []Verifier
}

// Run evaluates the chain against data, in place: it sets data.Status,
// data.WhyFail, data.Params.Authentic, and any reply/MS-CHAP fields.
//
// If the chain exhausts without a decisive Success or Fail, Status stays
// Undefined when a backend left a secret for the protocol state machine
// to compare against (see hasDeferredSecret); otherwise the result is
// {Fail, InvalidLogin} and a "ran out of backends" message is logged, per
// spec.md ยง4.5.
func (c *Chain) Run(ctx context.Context, data *authdata.Data) {
	for _, v := range c.Verifiers {
		result, err := v.Verify(ctx, data)
		if err != nil {
			// Backend invocation errors are logged and treated as
			// Undefined so the chain continues (spec.md ยง7 "Backend
			// invocation errors").
			logger.Warnf("backend %s errored, continuing chain: %v", v.Name(), err)
			continue
		}
		if result == nil || result.Status == authdata.Undefined {
			continue
		}

		applyResult(data, v.Name(), result)
		return
	}

	if hasDeferredSecret(data.Params) {
		// Every backend deferred: at least one resolved a secret into
		// data.Params but left Status Undefined so the calling protocol
		// state machine performs the final comparison itself (spec.md
		// ยง4.5 items 4-6). Leave Status as Undefined for it to see.
		return
	}

	data.SetFail(mpderrors.InvalidLogin)
	logger.Warnf("auth chain for %q ran out of backends", data.Params.Authname)
}

// hasDeferredSecret reports whether a backend populated material a
// protocol state machine can run its own terminal comparison against: a
// plaintext password (PAP, or CHAP's algorithm 5) or an MS-CHAP
// NT-hash-hash (CHAP's MS-CHAPv1/v2 algorithms).
func hasDeferredSecret(p *authparams.Params) bool {
	return p.Password != "" || len(p.MSChap.NTHashHash) > 0
}

func applyResult(data *authdata.Data, name authparams.Backend, result *Result) {
	if result.Params != nil {
		data.Params = result.Params
	}
	data.Params.Authentic = name

	switch result.Status {
	case authdata.Success:
		data.SetSuccess()
	case authdata.Fail:
		data.SetFail(result.WhyFail)
	}

	if result.ReplyMessage != "" {
		data.ReplyMessage = result.ReplyMessage
	}
	if result.MSChapError != "" {
		data.MSChapError = result.MSChapError
	}
	if result.MSChapV2Resp != "" {
		data.MSChapV2Resp = result.MSChapV2Resp
	}
}
