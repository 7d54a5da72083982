// SPDX-FileCopyrightText: Copyright 2026 The MPD Authors
// SPDX-License-Identifier: Apache-2.0

// Package opie implements the one-time-password backend of spec.md §4.5
// item 5: a classic S/Key-style hash chain. For PAP it verifies the
// peer's offered response against the challenge; for CHAP it recovers the
// current OTP by reading the secret through the Credential Store and
// folding the hash chain n-1 times, then writes it into params.Password
// so the protocol state machine performs the comparison.
package opie

import (
	"context"

	"golang.org/x/crypto/md4" //nolint:staticcheck // the OPIE hash fold is defined over MD4, per the classic S/Key construction.

	"github.com/mpd-project/mpd/pkg/authdata"
	"github.com/mpd-project/mpd/pkg/authparams"
	"github.com/mpd-project/mpd/pkg/backend"
	mpderrors "github.com/mpd-project/mpd/pkg/errors"
	"github.com/mpd-project/mpd/pkg/ppp"
)

// KeyLookup resolves an authname to its OPIE state: the long-term secret
// and the current iteration count n.
type KeyLookup interface {
	Lookup(ctx context.Context, authname string) (secret string, seed string, n int, ok bool, err error)
}

// Backend is the OPIE Verifier. The challenge itself is issued to the peer
// by the protocol layer on the prior turn (spec.md §4.5 item 5); Verify
// only recovers and compares the current OTP.
type Backend struct {
	Keys KeyLookup
}

// Name implements backend.Verifier.
func (b *Backend) Name() authparams.Backend { return authparams.BackendOPIE }

// Verify implements backend.Verifier.
func (b *Backend) Verify(ctx context.Context, data *authdata.Data) (*backend.Result, error) {
	secret, seed, n, ok, err := b.Keys.Lookup(ctx, data.Params.Authname)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &backend.Result{Status: authdata.Undefined}, nil
	}

	current := fold(seed, secret, n)

	switch data.Proto {
	case ppp.ProtoPAP:
		return b.verifyPAP(current, data), nil
	default:
		// CHAP (and anything else OPIE covers): write the recovered OTP
		// into Password and let the protocol layer compare, per spec.md
		// §4.5 item 5.
		data.Params.Password = current
		return &backend.Result{Status: authdata.Undefined}, nil
	}
}

func (b *Backend) verifyPAP(current string, data *authdata.Data) *backend.Result {
	if current == data.Params.PAP.PeerPass {
		return &backend.Result{Status: authdata.Success}
	}
	return &backend.Result{Status: authdata.Fail, WhyFail: mpderrors.InvalidLogin}
}

// fold recovers the current one-time password by iterating the classic
// S/Key hash fold (MD4(seed || secret), folded to a fixed-width word,
// re-hashed) n-1 times starting from the stored secret, per spec.md §4.5
// item 5.
func fold(seed, secret string, n int) string {
	word := hashFold(seed + secret)
	for i := 1; i < n; i++ {
		word = hashFold(string(word))
	}
	return encodeHex(word)
}

func hashFold(input string) []byte {
	h := md4.New()
	_, _ = h.Write([]byte(input))
	sum := h.Sum(nil)

	// Classic S/Key folds the 16-byte MD4 digest down to 8 bytes by
	// XOR-ing the two halves together.
	out := make([]byte, 8)
	for i := 0; i < 8; i++ {
		out[i] = sum[i] ^ sum[i+8]
	}
	return out
}

func encodeHex(b []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexDigits[c>>4]
		out[i*2+1] = hexDigits[c&0x0f]
	}
	return string(out)
}
