// SPDX-FileCopyrightText: Copyright 2026 The MPD Authors
// SPDX-License-Identifier: Apache-2.0

// Package ppp defines the wire-level constants and frame shapes shared by
// the authentication protocol state machines and the controller: the
// per-direction protocol selection, the 4-byte FSM header, and the code
// points each protocol uses (spec.md ยง6 "PPP authentication frames").
package ppp

import (
	"encoding/binary"
	"fmt"
)

// Protocol identifies which authentication protocol a direction negotiated.
type Protocol int

// Protocol values (spec.md ยง3).
const (
	ProtoNone Protocol = iota
	ProtoPAP
	ProtoCHAP
	ProtoEAP
)

// String implements fmt.Stringer.
func (p Protocol) String() string {
	switch p {
	case ProtoNone:
		return "none"
	case ProtoPAP:
		return "pap"
	case ProtoCHAP:
		return "chap"
	case ProtoEAP:
		return "eap"
	default:
		return fmt.Sprintf("protocol(%d)", int(p))
	}
}

// PAP codes.
const (
	PAPRequest byte = 1
	PAPAck     byte = 2
	PAPNak     byte = 3
)

// CHAP codes.
const (
	ChapChallenge byte = 1
	ChapResponse  byte = 2
	ChapSuccess   byte = 3
	ChapFailure   byte = 4
)

// EAP codes.
const (
	EapRequest  byte = 1
	EapResponse byte = 2
	EapSuccess  byte = 3
	EapFailure  byte = 4
)

// EAP types.
const (
	EapTypeIdentity     byte = 1
	EapTypeMD5Challenge byte = 4
	EapTypeMSCHAPv2     byte = 26
)

// HeaderLen is the length of the 4-byte FSM header shared by PAP, CHAP, and
// EAP: {code, id, length_hi, length_lo}.
const HeaderLen = 4

// Header is the common {code, id, length} FSM header (spec.md ยง6).
type Header struct {
	Code   byte
	ID     byte
	Length uint16
}

// ParseHeader parses the 4-byte FSM header from the front of data. It
// returns an error if data is shorter than HeaderLen, or if the declared
// length is shorter than the header itself or longer than the packet
// actually received (the caller is expected to have already truncated to
// the link-layer frame boundary).
func ParseHeader(data []byte) (Header, []byte, error) {
	if len(data) < HeaderLen {
		return Header{}, nil, fmt.Errorf("short packet: %d bytes, need at least %d", len(data), HeaderLen)
	}
	h := Header{
		Code:   data[0],
		ID:     data[1],
		Length: binary.BigEndian.Uint16(data[2:4]),
	}
	if int(h.Length) < HeaderLen {
		return Header{}, nil, fmt.Errorf("declared length %d shorter than header", h.Length)
	}
	if int(h.Length) > len(data) {
		return Header{}, nil, fmt.Errorf("declared length %d exceeds packet size %d", h.Length, len(data))
	}
	// Truncate to the declared length (spec.md ยง4.1 input: "truncates to
	// declared length").
	return h, data[HeaderLen:h.Length], nil
}

// BuildHeader assembles the 4-byte FSM header followed by payload.
func BuildHeader(code, id byte, payload []byte) []byte {
	total := HeaderLen + len(payload)
	out := make([]byte, total)
	out[0] = code
	out[1] = id
	binary.BigEndian.PutUint16(out[2:4], uint16(total))
	copy(out[HeaderLen:], payload)
	return out
}

// AppendLengthPrefixed appends a 1-byte length prefix followed by s to buf,
// matching the length-prefixed name/challenge/response sub-fields PAP and
// CHAP bodies use (spec.md ยง6).
func AppendLengthPrefixed(buf []byte, s []byte) []byte {
	buf = append(buf, byte(len(s)))
	return append(buf, s...)
}

// ReadLengthPrefixed reads a 1-byte length prefix followed by that many
// bytes from buf, returning the extracted slice and the remainder.
func ReadLengthPrefixed(buf []byte) ([]byte, []byte, error) {
	if len(buf) < 1 {
		return nil, nil, fmt.Errorf("buffer too short for length prefix")
	}
	n := int(buf[0])
	if len(buf) < 1+n {
		return nil, nil, fmt.Errorf("buffer too short: need %d bytes, have %d", n, len(buf)-1)
	}
	return buf[1 : 1+n], buf[1+n:], nil
}
