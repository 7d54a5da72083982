// SPDX-FileCopyrightText: Copyright 2026 The MPD Authors
// SPDX-License-Identifier: Apache-2.0

// Package internal implements the last-resort backend of spec.md §4.5
// item 6: a thin wrapper over the Credential Store. It populates
// params.Password (and the address range, if any) and leaves Status
// Undefined so the calling protocol state machine performs the actual
// comparison — exactly as the source does for PAP/CHAP plaintext compare.
package internal

import (
	"context"

	"github.com/mpd-project/mpd/pkg/authdata"
	"github.com/mpd-project/mpd/pkg/authparams"
	"github.com/mpd-project/mpd/pkg/backend"
	mpderrors "github.com/mpd-project/mpd/pkg/errors"
	"github.com/mpd-project/mpd/pkg/secretsfile"
)

// Lookuper is the subset of secretsfile.Store this backend depends on.
type Lookuper interface {
	Lookup(ctx context.Context, authname string) (*secretsfile.Entry, error)
}

// Backend is the Internal secrets file Verifier.
type Backend struct {
	Store Lookuper
}

// Name implements backend.Verifier.
func (b *Backend) Name() authparams.Backend { return authparams.BackendInternal }

// Verify implements backend.Verifier. Per spec.md §4.5 item 6: if the user
// is not found, returns {Fail, InvalidLogin}; otherwise populates
// params.Password/Range and returns Undefined so the protocol layer
// compares.
func (b *Backend) Verify(ctx context.Context, data *authdata.Data) (*backend.Result, error) {
	entry, err := b.Store.Lookup(ctx, data.Params.Authname)
	if err != nil {
		if _, ok := err.(*secretsfile.ErrNotFound); ok {
			return &backend.Result{Status: authdata.Fail, WhyFail: mpderrors.InvalidLogin}, nil
		}
		return nil, err
	}

	data.Params.Password = entry.Password
	if entry.RangeValid {
		data.Params.Range = entry.Range
		data.Params.RangeValid = true
	}
	return &backend.Result{Status: authdata.Undefined}, nil
}
