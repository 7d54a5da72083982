// SPDX-FileCopyrightText: Copyright 2026 The MPD Authors
// SPDX-License-Identifier: Apache-2.0

// Package linkapi defines the narrow interfaces pkg/controller and
// pkg/accounting consume from the rest of the (out-of-scope) daemon:
// LCP result reporting, frame writing, and peer metadata getters
// (spec.md §4.8); links are looked up by stable id through pkg/registry,
// not through an interface here. No production implementation lives in
// this repo; this package additionally ships a minimal in-memory fake,
// used by tests and by cmd/mpd's serve command, grounded on the
// teacher's StatusUpdater fake-interface
// pattern (pkg/auth/monitored_token_source_test.go).
package linkapi

import "github.com/mpd-project/mpd/pkg/ppp"

// LCP is the out-of-scope negotiation engine this package reports
// authentication outcomes to.
type LCP interface {
	// ReportAuthResult reports the final bidirectional outcome for linkID
	// once both directions have resolved (spec.md §4.1 "finish").
	ReportAuthResult(linkID uint64, ok bool)
}

// DataWriter writes an assembled outbound frame to the link's data path.
type DataWriter interface {
	WriteFrame(linkID uint64, proto ppp.Protocol, frame []byte) error
}

// PeerInfo exposes the peer metadata the protocol state machines and
// accounting record snapshot at dispatch time (spec.md §3 LinkSnapshot).
type PeerInfo interface {
	PeerAddr(linkID uint64) string
	CallingNumber(linkID uint64) string
	CalledNumber(linkID uint64) string
	LinkName(linkID uint64) string
	PhysType(linkID uint64) string
}

// Fake is an in-memory LCP + DataWriter + PeerInfo, used by tests and by
// cmd/mpd's serve command.
type Fake struct {
	Results map[uint64]bool
	Frames  []FakeFrame

	Peers map[uint64]FakePeer
}

// FakeFrame records one WriteFrame call.
type FakeFrame struct {
	LinkID uint64
	Proto  ppp.Protocol
	Frame  []byte
}

// FakePeer is the peer metadata Fake returns for a link id.
type FakePeer struct {
	Addr, Calling, Called, Name, Phys string
}

// NewFake creates an empty Fake.
func NewFake() *Fake {
	return &Fake{Results: make(map[uint64]bool), Peers: make(map[uint64]FakePeer)}
}

// ReportAuthResult implements LCP.
func (f *Fake) ReportAuthResult(linkID uint64, ok bool) { f.Results[linkID] = ok }

// WriteFrame implements DataWriter.
func (f *Fake) WriteFrame(linkID uint64, proto ppp.Protocol, frame []byte) error {
	f.Frames = append(f.Frames, FakeFrame{LinkID: linkID, Proto: proto, Frame: append([]byte(nil), frame...)})
	return nil
}

// PeerAddr implements PeerInfo.
func (f *Fake) PeerAddr(linkID uint64) string { return f.Peers[linkID].Addr }

// CallingNumber implements PeerInfo.
func (f *Fake) CallingNumber(linkID uint64) string { return f.Peers[linkID].Calling }

// CalledNumber implements PeerInfo.
func (f *Fake) CalledNumber(linkID uint64) string { return f.Peers[linkID].Called }

// LinkName implements PeerInfo.
func (f *Fake) LinkName(linkID uint64) string { return f.Peers[linkID].Name }

// PhysType implements PeerInfo.
func (f *Fake) PhysType(linkID uint64) string { return f.Peers[linkID].Phys }
