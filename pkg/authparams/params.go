// SPDX-FileCopyrightText: Copyright 2026 The MPD Authors
// SPDX-License-Identifier: Apache-2.0

// Package authparams defines AuthParams, the plain, freely-copyable data
// accumulated across authentication negotiation and accounting (spec.md
// ยง3). Copy produces a deep clone so the worker runner can hand a snapshot
// to a background backend without aliasing the link's live state
// (invariant #2 in spec.md ยง3).
package authparams

// Backend identifies which backend produced a successful verdict.
type Backend string

// Backend identifiers, in the precedence order of spec.md ยง4.5.
const (
	BackendNone     Backend = ""
	BackendExternal Backend = "external"
	BackendRadius   Backend = "radius"
	BackendSystem   Backend = "system"
	BackendOPIE     Backend = "opie"
	BackendInternal Backend = "internal"
)

// PAPParams holds PAP-specific exchange data.
type PAPParams struct {
	PeerPass string
}

// ChapAlgorithm identifies a CHAP algorithm variant.
type ChapAlgorithm byte

// CHAP algorithm identifiers (spec.md ยง4.2).
const (
	ChapAlgMD5       ChapAlgorithm = 5
	ChapAlgMSCHAPv1  ChapAlgorithm = 0x80
	ChapAlgMSCHAPv2  ChapAlgorithm = 0x81
)

// ChapParams holds CHAP-specific exchange data.
type ChapParams struct {
	ChalData []byte
	Value    []byte
	RecvAlg  ChapAlgorithm
	XmitAlg  ChapAlgorithm
}

// MSChapArtifacts holds MS-CHAP derived key material produced once a
// backend has resolved the user's secret.
type MSChapArtifacts struct {
	NTHash     []byte
	NTHashHash []byte
	HasKeys    bool
	Policy     uint32
	Types      uint32
}

// ACLRule is one ordered ACL entry assigned to a session. Source mpd
// represents these as a singly-linked list processed in insertion order;
// here they are an ordered slice, per Design Note in spec.md ยง9.
type ACLRule struct {
	Rule   string
	Pipe   string
	Queue  string
	Table  string
	// Filters holds up to N filter specs (the upstream N is a tunable, not
	// a hard protocol limit, so it is left unbounded here).
	Filters []string
	// Limits holds the inbound/outbound throughput limits, [0]=in [1]=out.
	Limits [2]uint64
	// CedarPolicy is an optional Cedar policy statement (see
	// pkg/aclpolicy) a backend may attach instead of, or in addition to,
	// the raw fields above.
	CedarPolicy string
}

// Route is one route assigned to the session.
type Route struct {
	Dest    string
	Gateway string
	Netmask string
}

// IPRange is an assigned address range, e.g. from the secrets file or a
// backend.
type IPRange struct {
	Addr string
	Bits int
}

// Params is the AuthParams object of spec.md ยง3: a plain, copyable bag of
// identity, protocol sub-state, and assigned-framework data.
type Params struct {
	Authname   string
	Password   string
	PeerAddr   string
	CallingNum string
	CalledNum  string
	MSDomain   string

	PAP  PAPParams
	Chap ChapParams

	// EAPMsg and State are opaque passthrough byte slices for EAP/RADIUS.
	EAPMsg []byte
	State  []byte

	Range      IPRange
	RangeValid bool
	MTU        int

	SessionTimeout int
	IdleTimeout    int
	AcctUpdate     int

	Routes []Route
	ACL    []ACLRule

	MSChap MSChapArtifacts

	Authentic Backend
}

// Copy returns a deep copy of p. Every owned slice and nested struct is
// cloned so mutating the copy never touches p, satisfying the AuthParams
// round-trip invariant (spec.md ยง8, Testable Property #4) and the
// copy-on-dispatch / copy-on-return contract of spec.md ยง9.
func (p *Params) Copy() *Params {
	if p == nil {
		return nil
	}
	out := *p

	out.Chap.ChalData = cloneBytes(p.Chap.ChalData)
	out.Chap.Value = cloneBytes(p.Chap.Value)
	out.EAPMsg = cloneBytes(p.EAPMsg)
	out.State = cloneBytes(p.State)
	out.MSChap.NTHash = cloneBytes(p.MSChap.NTHash)
	out.MSChap.NTHashHash = cloneBytes(p.MSChap.NTHashHash)

	if p.Routes != nil {
		out.Routes = make([]Route, len(p.Routes))
		copy(out.Routes, p.Routes)
	}
	if p.ACL != nil {
		out.ACL = make([]ACLRule, len(p.ACL))
		for i, rule := range p.ACL {
			cloned := rule
			if rule.Filters != nil {
				cloned.Filters = make([]string, len(rule.Filters))
				copy(cloned.Filters, rule.Filters)
			}
			out.ACL[i] = cloned
		}
	}

	return &out
}

// Reset clears p to its zero value, releasing all owned lists. Mirrors the
// source's manual AuthParams destroy step (spec.md ยง3).
func (p *Params) Reset() {
	*p = Params{}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
