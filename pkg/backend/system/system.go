// SPDX-FileCopyrightText: Copyright 2026 The MPD Authors
// SPDX-License-Identifier: Apache-2.0

// Package system implements the System password database backend of
// spec.md §4.5 item 4: for PAP, compares the peer's password against a
// stored hash; for MS-CHAP, extracts an NT-hash from a `$3$$<hex>` stored
// form and derives its hash-of-hash so the protocol layer can perform the
// final response check.
package system

import (
	"context"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/md4" //nolint:staticcheck // MS-CHAP's NT-hash is defined in terms of MD4.

	"github.com/mpd-project/mpd/pkg/authdata"
	"github.com/mpd-project/mpd/pkg/authparams"
	"github.com/mpd-project/mpd/pkg/backend"
	"github.com/mpd-project/mpd/pkg/ppp"
)

// ntHashPrefix marks a stored password as an NT-hash in hex, per spec.md
// §4.5 item 4's `$3$$<nt_hash_hex>` form.
const ntHashPrefix = "$3$$"

// PasswordDB is the subset of the system password database this backend
// depends on (modeled on getpwnam(3); out of scope to implement here).
type PasswordDB interface {
	// Lookup returns the stored password field for authname: either a
	// crypt-style hash (for PAP) or an `$3$$<hex>` NT-hash (for MS-CHAP).
	Lookup(ctx context.Context, authname string) (stored string, ok bool, err error)
}

// Backend is the System password database Verifier.
type Backend struct {
	DB PasswordDB
}

// Name implements backend.Verifier.
func (b *Backend) Name() authparams.Backend { return authparams.BackendSystem }

// Verify implements backend.Verifier.
func (b *Backend) Verify(ctx context.Context, data *authdata.Data) (*backend.Result, error) {
	stored, ok, err := b.DB.Lookup(ctx, data.Params.Authname)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Not found: fall through to the next backend (spec.md §4.5 item 4
		// "on Fail, fall through" — a missing system account is not this
		// backend's verdict to render, it simply has nothing to say).
		return &backend.Result{Status: authdata.Undefined}, nil
	}

	switch data.Proto {
	case ppp.ProtoPAP:
		return b.verifyPAP(stored, data)
	case ppp.ProtoCHAP:
		return b.verifyMSCHAP(stored, data)
	default:
		return &backend.Result{Status: authdata.Undefined}, nil
	}
}

func (b *Backend) verifyPAP(stored string, data *authdata.Data) (*backend.Result, error) {
	// The traditional crypt(3) form is not reachable from the standard
	// library; stored hashes here are bcrypt, the modern equivalent.
	err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(data.Params.PAP.PeerPass))
	if err != nil {
		// Per spec.md §4.5 item 4, a Fail here falls through to the next
		// backend rather than ending the chain — modeled as Undefined, the
		// documented exception to the chain's usual stop-on-Fail rule.
		return &backend.Result{Status: authdata.Undefined}, nil
	}
	return &backend.Result{Status: authdata.Success}, nil
}

func (b *Backend) verifyMSCHAP(stored string, data *authdata.Data) (*backend.Result, error) {
	if !strings.HasPrefix(stored, ntHashPrefix) {
		// Not stored in the expected form: this backend has nothing useful
		// to say about an MS-CHAP attempt.
		return &backend.Result{Status: authdata.Undefined}, nil
	}

	ntHash, err := hex.DecodeString(strings.TrimPrefix(stored, ntHashPrefix))
	if err != nil {
		return &backend.Result{Status: authdata.Undefined}, nil
	}

	h := md4.New()
	_, _ = h.Write(ntHash)
	ntHashHash := h.Sum(nil)

	data.Params.MSChap.NTHash = ntHash
	data.Params.MSChap.NTHashHash = ntHashHash
	data.Params.MSChap.HasKeys = true

	return &backend.Result{Status: authdata.Undefined}, nil
}
