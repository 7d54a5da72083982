// SPDX-FileCopyrightText: Copyright 2026 The MPD Authors
// SPDX-License-Identifier: Apache-2.0

package chap

import (
	"crypto/des" //nolint:staticcheck // MS-CHAP's ChallengeResponse is literally defined in terms of DES (RFC 2433 §8.5); no pack library replaces it, and crypto/des is still the correct stdlib primitive (see DESIGN.md).
)

// desEncryptBlock encrypts the 8-byte clear block with an 8-byte DES key
// built by inserting a parity bit after every 7 bits of a 7-byte key half,
// per RFC 2433 §8.5 ("DesEncrypt").
func desEncryptBlock(clear [8]byte, key7 [7]byte) [8]byte {
	key8 := expandDESKey(key7)
	block, err := des.NewCipher(key8[:])
	if err != nil {
		// Only possible on a malformed key length, which expandDESKey
		// never produces.
		panic(err)
	}
	var out [8]byte
	block.Encrypt(out[:], clear[:])
	return out
}

// expandDESKey expands a 7-byte key into 8 bytes by inserting an odd
// parity bit as the low bit of each byte, per the classic
// DES-key-from-56-bits construction MS-CHAP relies on.
func expandDESKey(key7 [7]byte) [8]byte {
	var out [8]byte
	out[0] = key7[0] >> 1
	out[1] = (key7[0]<<7 | key7[1]>>2) & 0xff
	out[2] = (key7[1]<<6 | key7[2]>>3) & 0xff
	out[3] = (key7[2]<<5 | key7[3]>>4) & 0xff
	out[4] = (key7[3]<<4 | key7[4]>>5) & 0xff
	out[5] = (key7[4]<<3 | key7[5]>>6) & 0xff
	out[6] = (key7[5]<<2 | key7[6]>>7) & 0xff
	out[7] = key7[6] << 1
	for i := range out {
		out[i] = setOddParity(out[i])
	}
	return out
}

func setOddParity(b byte) byte {
	b &^= 1
	parity := byte(0)
	for i := 1; i < 8; i++ {
		parity ^= (b >> i) & 1
	}
	return b | (1 ^ parity)
}

// ChallengeResponse computes the classic MS-CHAP 24-byte
// ChallengeResponse from a 16-byte NT-hash-hash (here reused directly as
// the 21-byte-padded key material's source) and an 8-byte challenge, per
// RFC 2433 §8.5 / RFC 2759 §8.1 ("GenerateAuthenticatorResponse" uses the
// same ChallengeResponse primitive).
func ChallengeResponse(challenge [8]byte, passwordHash [16]byte) [24]byte {
	var padded [21]byte
	copy(padded[:], passwordHash[:])

	var out [24]byte
	var k1, k2, k3 [7]byte
	copy(k1[:], padded[0:7])
	copy(k2[:], padded[7:14])
	copy(k3[:], padded[14:21])

	copy(out[0:8], desEncryptBlock(challenge, k1)[:])
	copy(out[8:16], desEncryptBlock(challenge, k2)[:])
	copy(out[16:24], desEncryptBlock(challenge, k3)[:])
	return out
}
