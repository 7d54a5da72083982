// SPDX-FileCopyrightText: Copyright 2026 The MPD Authors
// SPDX-License-Identifier: Apache-2.0

// Package pap implements the PAP protocol state machine of spec.md §4.2:
// plaintext REQUEST/ACK/NAK, both self-to-peer (issuing credentials) and
// peer-to-self (verifying them via the Worker Runner).
package pap

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/mpd-project/mpd/pkg/authdata"
	"github.com/mpd-project/mpd/pkg/authparams"
	mpderrors "github.com/mpd-project/mpd/pkg/errors"
	"github.com/mpd-project/mpd/pkg/linkapi"
	"github.com/mpd-project/mpd/pkg/ppp"
	"github.com/mpd-project/mpd/pkg/registry"
	"github.com/mpd-project/mpd/pkg/worker"
)

// Runner is the subset of worker.Runner the PAP state machine depends on.
type Runner interface {
	Run(ctx context.Context, linkID registry.ID, data *authdata.Data)
}

// Config is the per-link static configuration the PAP machine needs
// (spec.md §3 "conf"): own credentials for self-to-peer, and retry
// policy.
type Config struct {
	Authname     string
	Password     string
	RetryTimeout time.Duration
	Retries      int
}

// FinishFunc is called once a direction resolves (spec.md §4.1 "finish").
type FinishFunc func(ok bool)

// Machine is one direction's worth of PAP state. Use two Machines per
// link, one per direction.
type Machine struct {
	LinkID registry.ID
	Conf   Config
	Writer linkapi.DataWriter
	Runner Runner
	Finish FinishFunc

	// Release, if set, is called once the in-flight worker started by
	// HandleRequest completes, clearing the per-link in-flight guard the
	// controller checked before dispatching (spec.md §4.1 "rejects the
	// packet if another worker is in flight").
	Release func()

	nextID byte
	retry  int
	timer  *worker.Timer

	// lastSent caches the last REQUEST payload so a retransmit resends
	// byte-identical content with the same id (spec.md §4.2 "resend with
	// same id").
	lastSent []byte
}

// StartSelfToPeer begins issuing credentials to the peer (spec.md §4.2
// "Self-to-peer: on entry...").
func (m *Machine) StartSelfToPeer() {
	m.nextID = 1
	m.retry = m.Conf.Retries
	m.sendRequest()
	m.armRetransmit()
}

func (m *Machine) sendRequest() {
	var payload []byte
	payload = ppp.AppendLengthPrefixed(payload, []byte(m.Conf.Authname))
	payload = ppp.AppendLengthPrefixed(payload, []byte(m.Conf.Password))
	frame := ppp.BuildHeader(ppp.PAPRequest, m.nextID, payload)
	m.lastSent = frame
	_ = m.Writer.WriteFrame(uint64(m.LinkID), ppp.ProtoPAP, frame)
}

func (m *Machine) armRetransmit() {
	if m.timer == nil {
		m.timer = worker.NewTimer(m.onRetransmitFire)
		m.timer.Start(m.Conf.RetryTimeout)
		return
	}
	m.timer.Reset(m.Conf.RetryTimeout)
}

func (m *Machine) onRetransmitFire() {
	m.retry--
	if m.retry <= 0 {
		if m.Finish != nil {
			m.Finish(false)
		}
		return
	}
	// Resend with the same id and challenge content (spec.md §4.2).
	_ = m.Writer.WriteFrame(uint64(m.LinkID), ppp.ProtoPAP, m.lastSent)
	m.timer.Reset(m.Conf.RetryTimeout)
}

// HandleAckNak processes an inbound ACK/NAK on the self-to-peer
// direction.
func (m *Machine) HandleAckNak(header ppp.Header) {
	if m.timer != nil {
		m.timer.Stop()
	}
	ok := header.Code == ppp.PAPAck
	if m.Finish != nil {
		m.Finish(ok)
	}
}

// HandleRequest processes an inbound REQUEST on the peer-to-self
// direction: sanity-checks the length-prefixed fields, records the
// offered identity, runs Pre-Check + the backend chain via Runner, and
// replies ACK/NAK once the worker completes (spec.md §4.2
// "Peer-to-self").
func (m *Machine) HandleRequest(ctx context.Context, header ppp.Header, payload []byte) {
	name, rest, err := ppp.ReadLengthPrefixed(payload)
	if err != nil {
		m.nak(header.ID, "malformed request")
		return
	}
	pass, _, err := ppp.ReadLengthPrefixed(rest)
	if err != nil {
		m.nak(header.ID, "malformed request")
		return
	}

	params := &authparams.Params{
		Authname: string(name),
		PAP:      authparams.PAPParams{PeerPass: string(pass)},
	}
	data := authdata.New(authdata.LinkSnapshot{}, params, ppp.ProtoPAP, header.ID, header.Code, func(d *authdata.Data) {
		m.onWorkerDone(d)
	})

	m.Runner.Run(ctx, m.LinkID, data)
}

func (m *Machine) onWorkerDone(data *authdata.Data) {
	if m.Release != nil {
		m.Release()
	}

	finalizeDeferred(data)

	if data.Status == authdata.Success {
		m.ack(data.ID, data.ReplyMessage)
	} else {
		m.nakReason(data.ID, data.WhyFail, data.ReplyMessage)
	}
	if m.Finish != nil {
		m.Finish(data.Status == authdata.Success)
	}
}

// finalizeDeferred performs the plaintext password compare a backend
// defers by returning Undefined with Params.Password populated (spec.md
// §4.5 items 4-6: Internal/OPIE/System "so the state machine performs
// the final response check"). A decisive Success/Fail from the chain is
// left untouched.
func finalizeDeferred(data *authdata.Data) {
	if data.Status != authdata.Undefined {
		return
	}
	if data.Params.Password == "" ||
		subtle.ConstantTimeCompare([]byte(data.Params.Password), []byte(data.Params.PAP.PeerPass)) != 1 {
		data.SetFail(mpderrors.InvalidLogin)
		return
	}
	data.SetSuccess()
}

func (m *Machine) ack(id byte, message string) {
	if message == "" {
		message = "Welcome"
	}
	var payload []byte
	payload = ppp.AppendLengthPrefixed(payload, []byte(message))
	frame := ppp.BuildHeader(ppp.PAPAck, id, payload)
	_ = m.Writer.WriteFrame(uint64(m.LinkID), ppp.ProtoPAP, frame)
}

func (m *Machine) nakReason(id byte, why mpderrors.Type, message string) {
	if message == "" {
		message = failureMessage(why)
	}
	m.nak(id, message)
}

func (m *Machine) nak(id byte, message string) {
	var payload []byte
	payload = ppp.AppendLengthPrefixed(payload, []byte(message))
	frame := ppp.BuildHeader(ppp.PAPNak, id, payload)
	_ = m.Writer.WriteFrame(uint64(m.LinkID), ppp.ProtoPAP, frame)
}

func failureMessage(why mpderrors.Type) string {
	switch why {
	case mpderrors.InvalidPacket:
		return "Malformed packet"
	case mpderrors.AcctDisabled:
		return "Account disabled"
	case mpderrors.NoPermission:
		return "No dial-in permission"
	case mpderrors.RestrictedHours:
		return "Restricted logon hours"
	default:
		return "Login incorrect"
	}
}

// Stop halts any running retransmit timer.
func (m *Machine) Stop() {
	if m.timer != nil {
		m.timer.Stop()
	}
}
