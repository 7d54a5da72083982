// SPDX-FileCopyrightText: Copyright 2026 The MPD Authors
// SPDX-License-Identifier: Apache-2.0

// Package chap implements the CHAP protocol state machine of spec.md
// §4.2: challenge issue, response computation, and verification for the
// three algorithm variants (MD5 = 5, MS-CHAPv1 = 0x80, MS-CHAPv2 = 0x81).
package chap

import (
	"context"
	"crypto/md5" //nolint:gosec // CHAP's "algorithm 5" response is defined as MD5(id || secret || challenge); RFC-mandated, not a security choice.
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/mpd-project/mpd/pkg/authdata"
	"github.com/mpd-project/mpd/pkg/authparams"
	mpderrors "github.com/mpd-project/mpd/pkg/errors"
	"github.com/mpd-project/mpd/pkg/linkapi"
	"github.com/mpd-project/mpd/pkg/ppp"
	"github.com/mpd-project/mpd/pkg/registry"
	"github.com/mpd-project/mpd/pkg/worker"
)

// Runner is the subset of worker.Runner the CHAP state machine depends on.
type Runner interface {
	Run(ctx context.Context, linkID registry.ID, data *authdata.Data)
}

// challengeLen returns the challenge length for an algorithm, per
// spec.md §4.2 ("length chosen per algorithm").
func challengeLen(alg authparams.ChapAlgorithm) int {
	switch alg {
	case authparams.ChapAlgMSCHAPv1:
		return 8
	default:
		return 16
	}
}

// Config is the per-link static configuration the CHAP machine needs.
type Config struct {
	MyName       string
	Secret       string
	Algorithm    authparams.ChapAlgorithm
	RetryTimeout time.Duration
	Retries      int
}

// FinishFunc is called once this direction resolves.
type FinishFunc func(ok bool)

// Machine is one direction's worth of CHAP state.
type Machine struct {
	LinkID registry.ID
	Conf   Config
	Writer linkapi.DataWriter
	Runner Runner
	Finish FinishFunc

	// Release, if set, is called once the in-flight worker started by
	// HandleResponse completes, clearing the per-link in-flight guard the
	// controller checked before dispatching (spec.md §4.1 "rejects the
	// packet if another worker is in flight").
	Release func()

	id        byte
	retry     int
	chalData  []byte
	timer     *worker.Timer
	lastFrame []byte
}

// StartChallenge issues a fresh challenge to the peer (spec.md §4.2
// "Challenge side").
func (m *Machine) StartChallenge() {
	m.id = 1
	m.retry = m.Conf.Retries
	m.chalData = make([]byte, challengeLen(m.Conf.Algorithm))
	_, _ = rand.Read(m.chalData)
	m.sendChallenge()
	m.armRetransmit()
}

func (m *Machine) sendChallenge() {
	var payload []byte
	payload = ppp.AppendLengthPrefixed(payload, m.chalData)
	payload = append(payload, []byte(m.Conf.MyName)...)
	frame := ppp.BuildHeader(ppp.ChapChallenge, m.id, payload)
	m.lastFrame = frame
	_ = m.Writer.WriteFrame(uint64(m.LinkID), ppp.ProtoCHAP, frame)
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
	// Retransmit reuses the same challenge and id (spec.md §4.2).
	_ = m.Writer.WriteFrame(uint64(m.LinkID), ppp.ProtoCHAP, m.lastFrame)
	m.timer.Reset(m.Conf.RetryTimeout)
}

// HandleChallenge computes the algorithm-specific response and sends
// RESPONSE (spec.md §4.2 "Response side").
func (m *Machine) HandleChallenge(header ppp.Header, payload []byte) {
	chal, _, err := ppp.ReadLengthPrefixed(payload)
	if err != nil {
		return
	}

	value := m.computeResponse(header.ID, chal)

	var out []byte
	out = ppp.AppendLengthPrefixed(out, value)
	out = append(out, []byte(m.Conf.MyName)...)
	frame := ppp.BuildHeader(ppp.ChapResponse, header.ID, out)
	_ = m.Writer.WriteFrame(uint64(m.LinkID), ppp.ProtoCHAP, frame)
}

func (m *Machine) computeResponse(id byte, challenge []byte) []byte {
	switch m.Conf.Algorithm {
	case authparams.ChapAlgMD5:
		h := md5.New()
		h.Write([]byte{id})
		h.Write([]byte(m.Conf.Secret))
		h.Write(challenge)
		return h.Sum(nil)
	default:
		// MS-CHAPv1/v2: NT-hash-hash is derived by the backend chain
		// (pkg/backend/system); here the local secret stands in directly
		// for a peer issuing its own response against a known hash.
		h := md5.New()
		h.Write([]byte(m.Conf.Secret))
		ntHashHash := h.Sum(nil)
		var chal8, hash16 [16]byte
		copy(chal8[:], challenge)
		copy(hash16[:], ntHashHash)
		var c8 [8]byte
		copy(c8[:], chal8[:8])
		resp := ChallengeResponse(c8, hash16)
		return resp[:]
	}
}

// HandleResponse handles an inbound RESPONSE on the verification side:
// fills AuthData.Params.Chap and hands off to the Worker Runner (spec.md
// §4.2 "Verification side").
func (m *Machine) HandleResponse(ctx context.Context, header ppp.Header, payload []byte) {
	value, rest, err := ppp.ReadLengthPrefixed(payload)
	if err != nil {
		return
	}
	name := string(rest)

	params := &authparams.Params{
		Authname: name,
		Chap: authparams.ChapParams{
			ChalData: m.chalData,
			Value:    value,
			RecvAlg:  m.Conf.Algorithm,
		},
	}
	data := authdata.New(authdata.LinkSnapshot{}, params, ppp.ProtoCHAP, header.ID, header.Code, m.onWorkerDone)
	m.Runner.Run(ctx, m.LinkID, data)
}

func (m *Machine) onWorkerDone(data *authdata.Data) {
	if m.timer != nil {
		m.timer.Stop()
	}
	if m.Release != nil {
		m.Release()
	}

	m.finalizeDeferred(data)

	if data.Status == authdata.Success {
		m.success(data)
	} else {
		m.failure(data)
	}
}

// finalizeDeferred recomputes the expected challenge response and
// compares it against the peer-submitted value when a backend defers by
// returning Undefined with Params.Password (algorithm 5) or
// Params.MSChap.NTHashHash (MS-CHAPv1/v2) populated (spec.md §4.5 items
// 4-6). A decisive Success/Fail from the chain is left untouched.
func (m *Machine) finalizeDeferred(data *authdata.Data) {
	if data.Status != authdata.Undefined {
		return
	}

	var expected []byte
	switch m.Conf.Algorithm {
	case authparams.ChapAlgMD5:
		if data.Params.Password == "" {
			data.SetFail(mpderrors.InvalidLogin)
			return
		}
		h := md5.New()
		h.Write([]byte{data.ID})
		h.Write([]byte(data.Params.Password))
		h.Write(data.Params.Chap.ChalData)
		expected = h.Sum(nil)
	default:
		if len(data.Params.MSChap.NTHashHash) != 16 {
			data.SetFail(mpderrors.InvalidLogin)
			return
		}
		var hash16 [16]byte
		copy(hash16[:], data.Params.MSChap.NTHashHash)
		var c8 [8]byte
		copy(c8[:], data.Params.Chap.ChalData)
		resp := ChallengeResponse(c8, hash16)
		expected = resp[:]
	}

	if subtle.ConstantTimeCompare(expected, data.Params.Chap.Value) != 1 {
		data.SetFail(mpderrors.InvalidLogin)
		return
	}
	data.SetSuccess()
}

func (m *Machine) success(data *authdata.Data) {
	msg := data.ReplyMessage
	if msg == "" {
		msg = "Access granted"
	}
	if m.Conf.Algorithm == authparams.ChapAlgMSCHAPv2 && data.MSChapV2Resp != "" {
		msg = data.MSChapV2Resp
	}
	frame := ppp.BuildHeader(ppp.ChapSuccess, data.ID, []byte(msg))
	_ = m.Writer.WriteFrame(uint64(m.LinkID), ppp.ProtoCHAP, frame)
	if m.Finish != nil {
		m.Finish(true)
	}
}

func (m *Machine) failure(data *authdata.Data) {
	var message string
	if m.Conf.Algorithm == authparams.ChapAlgMD5 {
		message = data.MSChapError
		if message == "" {
			message = failureMessage(data.WhyFail)
		}
	} else {
		message = fmt.Sprintf("E=%d R=0 M=%s", data.WhyFail.MSCHAPCode(), failureMessage(data.WhyFail))
	}
	frame := ppp.BuildHeader(ppp.ChapFailure, data.ID, []byte(message))
	_ = m.Writer.WriteFrame(uint64(m.LinkID), ppp.ProtoCHAP, frame)
	if m.Finish != nil {
		m.Finish(false)
	}
}

func failureMessage(why mpderrors.Type) string {
	switch why {
	case mpderrors.AcctDisabled:
		return "Account disabled"
	case mpderrors.NoPermission:
		return "No dial-in permission"
	case mpderrors.RestrictedHours:
		return "Restricted logon hours"
	default:
		return "Authentication failure"
	}
}

// HandleOutcome processes an inbound SUCCESS/FAILURE on the responding
// side (the Machine that sent RESPONSE): stops the retransmit timer and
// reports the outcome via Finish (spec.md §4.2 "Response side").
func (m *Machine) HandleOutcome(header ppp.Header) {
	if m.timer != nil {
		m.timer.Stop()
	}
	ok := header.Code == ppp.ChapSuccess
	if m.Finish != nil {
		m.Finish(ok)
	}
}

// Stop halts any running retransmit timer.
func (m *Machine) Stop() {
	if m.timer != nil {
		m.timer.Stop()
	}
}
