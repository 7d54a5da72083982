// SPDX-FileCopyrightText: Copyright 2026 The MPD Authors
// SPDX-License-Identifier: Apache-2.0

// Package authdata defines AuthData, the heap-owned snapshot handed from a
// protocol state machine to the worker runner and back (spec.md ยง3). It
// decouples the foreground link from background backend execution:
// nothing in Data is shared mutably with the link while a worker holds it
// (invariant #2).
package authdata

import (
	"time"

	"github.com/mpd-project/mpd/pkg/authparams"
	"github.com/mpd-project/mpd/pkg/errors"
	"github.com/mpd-project/mpd/pkg/ppp"
)

// Status is the outcome of a single authentication or accounting attempt.
type Status int

// Status values (spec.md ยง3).
const (
	Undefined Status = iota
	Success
	Fail
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case Fail:
		return "fail"
	default:
		return "undefined"
	}
}

// AcctType identifies which accounting event a Data snapshot represents.
type AcctType int

// Accounting event kinds (spec.md ยง4.7).
const (
	AcctNone AcctType = iota
	AcctStart
	AcctUpdate
	AcctStop
)

// LinkSnapshot is the copy of link identity taken at dispatch time (spec.md
// ยง3): everything a backend might need to know about the physical link
// without holding a live reference to it.
type LinkSnapshot struct {
	LinkName       string
	MSessionID     string
	SessionID      string
	LinkID         uint64
	PhysType       string
	BundleLinks    int
	PeerIP         string
	OpenTime       time.Time
	RecvOctets     uint64
	XmitOctets     uint64
	LastDownReason string
}

// Continuation is the callback a protocol state machine hands to the
// worker runner; invoked on the foreground once the backend chain
// completes (or is short-circuited by the pre-check gate). This replaces
// the source's function-pointer trampoline (spec.md ยง9 "Continuation
// pattern").
type Continuation func(data *Data)

// Data is the per-attempt snapshot described in spec.md ยง3.
type Data struct {
	Link LinkSnapshot

	// Params is a copy of AuthParams at the moment of issue; the backend
	// chain may enrich it, and the worker finisher copies it back into the
	// link's live AuthParams on completion.
	Params *authparams.Params

	Proto ppp.Protocol
	ID    byte
	Code  byte

	Status   Status
	WhyFail  errors.Type
	AcctType AcctType

	ReplyMessage  string
	MSChapError   string
	MSChapV2Resp  string

	Finish Continuation
}

// New creates a Data snapshot for an authentication or accounting attempt.
// params is copied (never aliased) per the copy-on-dispatch contract of
// spec.md ยง9.
func New(link LinkSnapshot, params *authparams.Params, proto ppp.Protocol, id, code byte, finish Continuation) *Data {
	return &Data{
		Link:   link,
		Params: params.Copy(),
		Proto:  proto,
		ID:     id,
		Code:   code,
		Finish: finish,
	}
}

// SetSuccess marks the attempt successful. Per invariant #3 (spec.md ยง3),
// WhyFail is meaningless once Status is Success.
func (d *Data) SetSuccess() {
	d.Status = Success
	d.WhyFail = ""
}

// SetFail marks the attempt failed with the given reason. Per invariant
// #3, Fail always carries a why_fail.
func (d *Data) SetFail(why errors.Type) {
	d.Status = Fail
	d.WhyFail = why
}

// Destroy releases the owned AuthParams copy. Mirrors the source's manual
// AuthData destructor (spec.md ยง4.3 step 2(f)).
func (d *Data) Destroy() {
	if d.Params != nil {
		d.Params.Reset()
	}
	d.Params = nil
}
