// SPDX-FileCopyrightText: Copyright 2026 The MPD Authors
// SPDX-License-Identifier: Apache-2.0

// Package eap implements the EAP protocol state machine of spec.md §4.2:
// Identity → MD5-Challenge or MS-CHAPv2, handled locally with the same
// verification semantics as CHAP, plus RADIUS passthrough when the
// configured mode permits.
package eap

import (
	"context"
	"crypto/rand"

	"github.com/mpd-project/mpd/pkg/authdata"
	"github.com/mpd-project/mpd/pkg/authparams"
	"github.com/mpd-project/mpd/pkg/linkapi"
	"github.com/mpd-project/mpd/pkg/ppp"
	"github.com/mpd-project/mpd/pkg/registry"
)

// Runner is the subset of worker.Runner the EAP state machine depends on.
type Runner interface {
	Run(ctx context.Context, linkID registry.ID, data *authdata.Data)
}

// Mode selects whether the Identity reply is handled locally or
// forwarded to RADIUS (spec.md §4.2 "Passthrough").
type Mode int

// Mode values.
const (
	ModeLocal Mode = iota
	ModeRadiusPassthrough
)

// LocalType selects which locally-handled EAP method to drive, once an
// Identity has been received.
type LocalType byte

// Supported locally-handled EAP types (spec.md §4.2).
const (
	LocalTypeMD5Challenge LocalType = LocalType(ppp.EapTypeMD5Challenge)
	LocalTypeMSCHAPv2     LocalType = LocalType(ppp.EapTypeMSCHAPv2)
)

// Config is the per-link static configuration the EAP machine needs.
type Config struct {
	MyName    string
	Secret    string
	Mode      Mode
	LocalType LocalType
}

// FinishFunc is called once this direction resolves.
type FinishFunc func(ok bool)

// Machine drives the verification side of EAP (identity → challenge →
// verify). The issuing side reuses the same challenge/response shape as
// CHAP and is intentionally not duplicated here; EAP's distinguishing
// behavior is the Identity round-trip and RADIUS passthrough.
type Machine struct {
	LinkID registry.ID
	Conf   Config
	Writer linkapi.DataWriter
	Runner Runner
	Radius Proxy
	Finish FinishFunc

	// Release, if set, is called once the in-flight worker started by
	// HandleResponse completes, clearing the per-link in-flight guard the
	// controller checked before dispatching (spec.md §4.1 "rejects the
	// packet if another worker is in flight").
	Release func()

	id       byte
	chalData []byte
	state    []byte
	identity string
}

// Proxy is the RADIUS passthrough contract: forward an EAP message
// (opaque) and round-trip its opaque state attribute (spec.md §4.2
// "Passthrough").
type Proxy interface {
	Forward(ctx context.Context, eapMsg, state []byte) (replyEapMsg, replyState []byte, err error)
}

// HandleIdentity processes an inbound Identity response and issues the
// next challenge per the configured local type, or forwards to RADIUS in
// passthrough mode.
func (m *Machine) HandleIdentity(ctx context.Context, header ppp.Header, payload []byte) {
	if m.Conf.Mode == ModeRadiusPassthrough && m.Radius != nil {
		m.passthrough(ctx, ppp.BuildHeader(header.Code, header.ID, append([]byte{byte(ppp.EapTypeIdentity)}, payload...)))
		return
	}

	m.id = header.ID + 1
	m.identity = string(payload)
	m.chalData = make([]byte, 16)
	_, _ = rand.Read(m.chalData)

	var out []byte
	out = append(out, byte(m.Conf.LocalType))
	out = append(out, m.chalData...)
	frame := ppp.BuildHeader(ppp.EapRequest, m.id, out)
	_ = m.Writer.WriteFrame(uint64(m.LinkID), ppp.ProtoEAP, frame)
}

func (m *Machine) passthrough(ctx context.Context, eapFrame []byte) {
	replyMsg, replyState, err := m.Radius.Forward(ctx, eapFrame, m.state)
	if err != nil {
		if m.Finish != nil {
			m.Finish(false)
		}
		return
	}
	m.state = replyState
	_ = m.Writer.WriteFrame(uint64(m.LinkID), ppp.ProtoEAP, replyMsg)
}

// HandleResponse processes an inbound EAP Response carrying an
// MD5-Challenge or MS-CHAPv2 reply: fills AuthData and hands off to the
// Worker Runner, with verification semantics identical to CHAP (spec.md
// §4.2 "identical verification semantics to CHAP").
func (m *Machine) HandleResponse(ctx context.Context, header ppp.Header, payload []byte) {
	if len(payload) < 1 {
		return
	}
	value := payload[1:]

	var alg authparams.ChapAlgorithm
	switch LocalType(payload[0]) {
	case LocalTypeMSCHAPv2:
		alg = authparams.ChapAlgMSCHAPv2
	default:
		alg = authparams.ChapAlgMD5
	}

	params := &authparams.Params{
		Authname: m.identity,
		Chap: authparams.ChapParams{
			ChalData: m.chalData,
			Value:    value,
			RecvAlg:  alg,
		},
	}
	data := authdata.New(authdata.LinkSnapshot{}, params, ppp.ProtoEAP, header.ID, header.Code, m.onWorkerDone)
	m.Runner.Run(ctx, m.LinkID, data)
}

func (m *Machine) onWorkerDone(data *authdata.Data) {
	if m.Release != nil {
		m.Release()
	}

	code := ppp.EapFailure
	if data.Status == authdata.Success {
		code = ppp.EapSuccess
	}
	frame := ppp.BuildHeader(code, data.ID, nil)
	_ = m.Writer.WriteFrame(uint64(m.LinkID), ppp.ProtoEAP, frame)
	if m.Finish != nil {
		m.Finish(data.Status == authdata.Success)
	}
}
